// Package browser loads pages for the scraper, either through a real
// Chrome session or through plain HTTP requests.
package browser

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

var (
	// ErrSessionClosed means the underlying browser is gone. The run cannot
	// continue once this is returned.
	ErrSessionClosed = eris.New("browser: session closed")

	// ErrElementMissing means the wait selector did not show up in time.
	ErrElementMissing = eris.New("browser: element not found")
)

const (
	defaultWaitTimeout     = 15 * time.Second
	defaultPageLoadTimeout = 60 * time.Second

	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Fetcher returns the rendered markup of a page once waitSelector matches.
// An empty waitSelector skips the wait.
type Fetcher interface {
	Fetch(ctx context.Context, url, waitSelector string) (string, error)
	Close() error
}

// IsFatal reports whether err should stop the whole run rather than a
// single page.
func IsFatal(err error) bool {
	return eris.Is(err, ErrSessionClosed) || eris.Is(err, context.Canceled)
}
