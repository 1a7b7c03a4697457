// Package batdongsan crawls batdongsan-style listing searches: list pages
// yield detail links, detail pages yield property records.
package batdongsan

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"bds-scraper/browser"
	"bds-scraper/config"
	"bds-scraper/ledger"
	"bds-scraper/models"
	"bds-scraper/services"
	"bds-scraper/storage"
	"bds-scraper/utils"
)

// Scraper drives the page loop for every target. It is a single sequential
// worker: the fetcher is never called concurrently.
type Scraper struct {
	fetcher   browser.Fetcher
	ledger    *ledger.Ledger
	sink      storage.RecordSink
	cleaner   *services.Cleaner
	extractor *Extractor
	logger    *utils.Logger
	retry     *utils.RetryConfig
	itemPacer *utils.Pacer
	pagePacer *utils.Pacer
}

// New wires a Scraper. The caller owns fetcher, led and sink and closes
// them after Scrape returns.
func New(cfg config.ScraperConfig, fetcher browser.Fetcher, led *ledger.Ledger, sink storage.RecordSink, logger *utils.Logger) *Scraper {
	itemMin, itemMax := cfg.ItemDelay.Durations()
	pageMin, pageMax := cfg.PageDelay.Durations()

	return &Scraper{
		fetcher:   fetcher,
		ledger:    led,
		sink:      sink,
		cleaner:   services.NewCleaner(logger),
		extractor: NewExtractor(logger),
		logger:    logger,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
			Retryable:   func(err error) bool { return !browser.IsFatal(err) },
		},
		itemPacer: utils.NewPacer(itemMin, itemMax),
		pagePacer: utils.NewPacer(pageMin, pageMax),
	}
}

// link is a detail page that is not in the ledger yet.
type link struct {
	url    string
	postID string
	tt     models.TransactionType
}

// Scrape processes every enabled target in order. Per-item and per-page
// failures are logged and counted; a lost fetch session or a cancelled ctx
// stops the run. The summary is returned in every case.
func (s *Scraper) Scrape(ctx context.Context, targets []config.Target) (*models.RunSummary, error) {
	summary := &models.RunSummary{RunID: s.ledger.RunID(), StartedAt: time.Now()}
	s.logger.Info("[scraper] Starting run %s with %d targets", summary.RunID, len(targets))

	var runErr error
	for _, t := range targets {
		if !t.IsEnabled() {
			s.logger.Info("[scraper] Target %q disabled, skipping", t.Name)
			continue
		}

		stats, err := s.scrapeTarget(ctx, t)
		summary.Add(stats)
		if err != nil {
			runErr = eris.Wrapf(err, "target %q", t.Name)
			break
		}
	}

	summary.Err = runErr
	summary.Duration = time.Since(summary.StartedAt)

	statsCtx := ctx
	if ctx.Err() != nil {
		statsCtx = context.WithoutCancel(ctx)
	}
	if ls, err := s.ledger.Stats(statsCtx); err != nil {
		s.logger.Warn("[scraper] Ledger stats unavailable: %v", err)
	} else {
		summary.LedgerStats = ls
	}

	return summary, runErr
}

func (s *Scraper) scrapeTarget(ctx context.Context, t config.Target) (models.TargetStats, error) {
	stats := models.TargetStats{Name: t.Name}
	log := s.logger.With("target", t.Name)
	log.Info("[scraper] Target %q: pages %d-%d from %s", t.Name, t.StartPage, t.EndPage, t.URL)

	for page := t.StartPage; page <= t.EndPage; page++ {
		if page > t.StartPage {
			if err := s.pagePacer.Wait(ctx); err != nil {
				return stats, eris.Wrap(err, "page delay")
			}
		}

		stats.PagesProcessed++
		if err := s.scrapePage(ctx, log, PageURL(t.URL, page), page, &stats); err != nil {
			if browser.IsFatal(err) || ctx.Err() != nil {
				return stats, err
			}
			log.Warn("[scraper] Page %d skipped: %v", page, err)
		}
	}

	log.Info("[scraper] Target %q done: %d pages, %d new, %d duplicates, %d failed",
		t.Name, stats.PagesProcessed, stats.NewRecords, stats.DuplicatesSkipped, stats.Failed)
	return stats, nil
}

func (s *Scraper) scrapePage(ctx context.Context, log *utils.Logger, pageURL string, page int, stats *models.TargetStats) error {
	log.Info("[scraper] Page %d: %s", page, pageURL)

	markup, err := s.fetch(ctx, pageURL, ListCardSelector)
	if err != nil {
		return eris.Wrapf(err, "list page %d", page)
	}
	hrefs, err := s.extractor.ExtractListLinks(markup, pageURL)
	if err != nil {
		log.Error("[scraper] %v", err)
		return err
	}

	fresh := s.filterLinks(log, hrefs, stats)
	if len(fresh) == 0 {
		log.Info("[scraper] Page %d: no new links among %d cards", page, len(hrefs))
		return nil
	}
	log.Info("[scraper] Page %d: %d new links among %d cards", page, len(fresh), len(hrefs))

	raw := make([]*models.RawExtraction, 0, len(fresh))
	var abortErr error
	for i, l := range fresh {
		if i > 0 {
			if err := s.itemPacer.Wait(ctx); err != nil {
				abortErr = eris.Wrap(err, "item delay")
				break
			}
		}

		r, err := s.scrapeDetail(ctx, log, l.url)
		if err != nil {
			if browser.IsFatal(err) || ctx.Err() != nil {
				abortErr = err
				break
			}
			stats.Failed++
			if mErr := s.ledger.MarkFailed(ctx, l.postID, l.tt, l.url); mErr != nil {
				log.Error("[scraper] %v", mErr)
			}
			continue
		}
		raw = append(raw, r)
	}

	if abortErr != nil {
		// What was extracted before the abort is still stored and marked.
		if len(raw) > 0 {
			log.Warn("[scraper] Page %d interrupted, saving %d extracted records", page, len(raw))
		}
		s.persist(context.WithoutCancel(ctx), log, page, raw, stats)
		return abortErr
	}

	s.persist(ctx, log, page, raw, stats)
	return nil
}

// filterLinks drops links without a post id, repeats on the same page and
// listings the ledger already holds.
func (s *Scraper) filterLinks(log *utils.Logger, hrefs []string, stats *models.TargetStats) []link {
	onPage := utils.NewKeySet()
	fresh := make([]link, 0, len(hrefs))

	for _, href := range hrefs {
		l := link{url: href, postID: ExtractPostID(href), tt: ClassifyTransactionType(href)}
		if l.postID == "" {
			log.Debug("[scraper] No post id in %s", href)
			continue
		}
		if !onPage.Add(models.ListingKey(l.postID, l.tt)) {
			continue
		}
		if s.ledger.Contains(l.postID, l.tt) {
			stats.DuplicatesSkipped++
			continue
		}
		fresh = append(fresh, l)
	}
	return fresh
}

func (s *Scraper) scrapeDetail(ctx context.Context, log *utils.Logger, detailURL string) (*models.RawExtraction, error) {
	markup, err := s.fetch(ctx, detailURL, DetailTitleSelector)
	if err != nil {
		log.Warn("[scraper] Fetch %s failed: %v", detailURL, err)
		return nil, err
	}

	raw, err := s.extractor.ExtractDetail(markup, detailURL)
	if err != nil {
		log.Error("[scraper] %v", err)
		return nil, err
	}
	return raw, nil
}

// persist stores the batch and then marks every stored key in the ledger.
// Nothing is marked when the sink fails, even if it reports a partial count:
// the sink does not say which records made it, so those listings are fetched
// again next run and skipped by the store's unique key.
func (s *Scraper) persist(ctx context.Context, log *utils.Logger, page int, raw []*models.RawExtraction, stats *models.TargetStats) {
	records := s.cleaner.Clean(raw)
	stats.Failed += len(raw) - len(records)
	if len(records) == 0 {
		return
	}

	inserted, err := s.sink.Persist(ctx, records)
	stats.NewRecords += inserted
	if err != nil {
		log.Error("[scraper] Persist page %d: %d of %d records stored before failure: %v",
			page, inserted, len(records), err)
		return
	}
	stats.DuplicatesSkipped += len(records) - inserted

	for _, rec := range records {
		if err := s.ledger.Mark(ctx, rec.PostID, rec.TransactionType, rec.URL); err != nil {
			log.Error("[scraper] %v", err)
		}
	}
	log.Info("[scraper] Page %d: stored %d of %d records", page, inserted, len(records))
}

func (s *Scraper) fetch(ctx context.Context, pageURL, waitSelector string) (string, error) {
	var markup string
	err := s.retry.Do(ctx, "fetch "+pageURL, func(ctx context.Context) error {
		var err error
		markup, err = s.fetcher.Fetch(ctx, pageURL, waitSelector)
		return err
	})
	return markup, err
}

// PageURL returns the address of page n of a search: the search URL itself
// for the first page, <url>/p<n> afterwards.
func PageURL(searchURL string, n int) string {
	if n <= 1 {
		return searchURL
	}
	u, err := url.Parse(searchURL)
	if err != nil {
		return strings.TrimRight(searchURL, "/") + fmt.Sprintf("/p%d", n)
	}
	u.Path = strings.TrimRight(u.Path, "/") + fmt.Sprintf("/p%d", n)
	return u.String()
}
