package browser

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"

	"bds-scraper/utils"
)

// ChromeOptions configures the browser session.
type ChromeOptions struct {
	Headless        bool
	BinaryPath      string
	WaitTimeout     time.Duration
	PageLoadTimeout time.Duration
}

// Chrome is a Fetcher backed by one long-lived Chrome process. Every Fetch
// opens a fresh tab.
type Chrome struct {
	opts   ChromeOptions
	logger *utils.Logger

	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	closeOnce     sync.Once
}

// NewChrome launches the browser. The session outlives ctx; ctx only bounds
// the startup.
func NewChrome(ctx context.Context, opts ChromeOptions, logger *utils.Logger) (*Chrome, error) {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = defaultWaitTimeout
	}
	if opts.PageLoadTimeout <= 0 {
		opts.PageLoadTimeout = defaultPageLoadTimeout
	}

	chromeBin := opts.BinaryPath
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	logger.Info("[chrome] Using browser binary: %q (headless=%v)", chromeBin, opts.Headless)

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(userAgent),
	)
	if chromeBin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...any) {}))

	stop := context.AfterFunc(ctx, cancelBrowser)
	err := chromedp.Run(browserCtx)
	stop()
	if err != nil {
		cancelBrowser()
		cancelAlloc()
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "chrome: start browser")
		}
		return nil, eris.Wrap(err, "chrome: start browser")
	}

	return &Chrome{
		opts:          opts,
		logger:        logger,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}, nil
}

// Fetch navigates a new tab to url, waits up to WaitTimeout for
// waitSelector and returns the page's outer HTML.
func (c *Chrome) Fetch(ctx context.Context, url, waitSelector string) (string, error) {
	if c.browserCtx.Err() != nil {
		return "", ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return "", eris.Wrap(err, "chrome: fetch")
	}

	tabCtx, cancelTab := chromedp.NewContext(c.browserCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	// The first Run creates the tab; it must not carry a timeout or the
	// tab would be torn down with it, so a timer bounds it instead.
	fired, err := runWithin(c.opts.PageLoadTimeout, cancelTab, func() error {
		return chromedp.Run(tabCtx)
	})
	if err != nil {
		if fired && ctx.Err() == nil && c.browserCtx.Err() == nil {
			return "", eris.Errorf("chrome: open tab timed out after %v", c.opts.PageLoadTimeout)
		}
		return "", c.fail(ctx, err, "open tab")
	}

	loadCtx, cancelLoad := context.WithTimeout(tabCtx, c.opts.PageLoadTimeout)
	err = chromedp.Run(loadCtx, chromedp.Navigate(url))
	timedOut := loadCtx.Err() == context.DeadlineExceeded
	cancelLoad()
	if err != nil {
		if timedOut && tabCtx.Err() == nil {
			return "", eris.Errorf("chrome: load %s timed out after %v", url, c.opts.PageLoadTimeout)
		}
		return "", c.fail(ctx, err, "navigate "+url)
	}

	if waitSelector != "" {
		waitCtx, cancelWait := context.WithTimeout(tabCtx, c.opts.WaitTimeout)
		err = chromedp.Run(waitCtx, chromedp.WaitReady(waitSelector, chromedp.ByQuery))
		timedOut = waitCtx.Err() == context.DeadlineExceeded
		cancelWait()
		if err != nil {
			if timedOut && tabCtx.Err() == nil {
				return "", eris.Wrapf(ErrElementMissing, "%q on %s after %v", waitSelector, url, c.opts.WaitTimeout)
			}
			return "", c.fail(ctx, err, "wait for "+waitSelector)
		}
	}

	var html string
	if err = chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", c.fail(ctx, err, "read html")
	}
	return html, nil
}

// runWithin runs fn and calls cancel if fn has not returned after d.
// It reports whether cancel fired.
func runWithin(d time.Duration, cancel context.CancelFunc, fn func() error) (bool, error) {
	timer := time.AfterFunc(d, cancel)
	err := fn()
	return !timer.Stop(), err
}

// fail maps a chromedp error onto the caller's cancellation, a dead
// browser, or a plain page failure.
func (c *Chrome) fail(ctx context.Context, err error, what string) error {
	switch {
	case ctx.Err() != nil:
		return eris.Wrapf(ctx.Err(), "chrome: %s", what)
	case c.browserCtx.Err() != nil:
		return ErrSessionClosed
	default:
		return eris.Wrapf(err, "chrome: %s", what)
	}
}

// Close shuts the browser down. Safe to call more than once.
func (c *Chrome) Close() error {
	c.closeOnce.Do(func() {
		c.logger.Info("[chrome] Closing browser")
		c.cancelBrowser()
		c.cancelAlloc()
	})
	return nil
}

// findChromeBinary locates a Chrome/Chromium binary. Empty means let
// chromedp search its defaults.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	for _, name := range []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	for _, p := range []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
