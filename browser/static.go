package browser

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly"
	"github.com/rotisserie/eris"

	"bds-scraper/utils"
)

// Static is a Fetcher that issues plain HTTP requests. It never runs page
// scripts, so the wait selector is checked once against the returned markup.
type Static struct {
	collector *colly.Collector
	logger    *utils.Logger
}

// NewStatic builds an HTTP fetcher whose requests time out after timeout.
func NewStatic(timeout time.Duration, logger *utils.Logger) *Static {
	if timeout <= 0 {
		timeout = defaultPageLoadTimeout
	}

	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(timeout)

	return &Static{collector: c, logger: logger}
}

// Fetch downloads url and checks that waitSelector matches something.
func (s *Static) Fetch(ctx context.Context, url, waitSelector string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", eris.Wrap(err, "static: fetch")
	}

	c := s.collector.Clone()

	var (
		body     []byte
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = eris.Wrapf(err, "static: GET %s (status %d)", url, r.StatusCode)
	})

	if err := c.Visit(url); err != nil && fetchErr == nil {
		fetchErr = eris.Wrapf(err, "static: GET %s", url)
	}
	if fetchErr != nil {
		return "", fetchErr
	}
	if err := ctx.Err(); err != nil {
		return "", eris.Wrap(err, "static: fetch")
	}

	html := string(body)
	if waitSelector == "" {
		return html, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", eris.Wrapf(err, "static: parse %s", url)
	}
	if doc.Find(waitSelector).Length() == 0 {
		return "", eris.Wrapf(ErrElementMissing, "%q on %s", waitSelector, url)
	}
	return html, nil
}

// Close is a no-op; the collector holds no open resources.
func (s *Static) Close() error {
	s.logger.Debug("[static] Fetcher closed")
	return nil
}
