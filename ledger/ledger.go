// Package ledger remembers which listings were already stored so that a
// re-run does not fetch them again.
package ledger

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"bds-scraper/models"
	"bds-scraper/utils"
)

// Status is the outcome recorded for a listing.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

const dateLayout = "2006-01-02 15:04:05"

// Entry is one row of the scrape log.
type Entry struct {
	PostID          string
	TransactionType models.TransactionType
	URL             string
	Status          Status
	ScrapedDate     time.Time
	RunID           string
}

// Key is the dedup key of the entry.
func (e Entry) Key() string {
	return models.ListingKey(e.PostID, e.TransactionType)
}

// Backend stores ledger entries durably.
type Backend interface {
	// Load returns the successful entries only.
	Load(ctx context.Context) ([]Entry, error)
	// Save inserts the entry, or upgrades a failed entry. A success entry
	// is never overwritten.
	Save(ctx context.Context, e Entry) error
	// Stats counts stored entries per status.
	Stats(ctx context.Context) (map[string]int, error)
	Close() error
}

// Ledger is the in-memory view of the successful keys, backed by a Backend.
type Ledger struct {
	backend Backend
	seen    *utils.KeySet
	runID   string
	logger  *utils.Logger
	now     func() time.Time
}

// Open loads every successful key from backend. An empty backend gives an
// empty ledger.
func Open(ctx context.Context, backend Backend, runID string, logger *utils.Logger) (*Ledger, error) {
	entries, err := backend.Load(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: load")
	}

	l := &Ledger{
		backend: backend,
		seen:    utils.NewKeySet(),
		runID:   runID,
		logger:  logger,
		now:     time.Now,
	}
	for _, e := range entries {
		if e.Status == StatusSuccess {
			l.seen.Add(e.Key())
		}
	}

	logger.Info("[ledger] Loaded %d previously scraped listings", l.seen.Size())
	return l, nil
}

// Contains reports whether (postID, tt) was stored successfully before.
func (l *Ledger) Contains(postID string, tt models.TransactionType) bool {
	return l.seen.Contains(models.ListingKey(postID, tt))
}

// Mark records a successful store. The backend is written first so the
// in-memory view never runs ahead of the durable one. Marking a key twice
// is a no-op.
func (l *Ledger) Mark(ctx context.Context, postID string, tt models.TransactionType, url string) error {
	if l.Contains(postID, tt) {
		return nil
	}
	if err := l.save(ctx, postID, tt, url, StatusSuccess); err != nil {
		return err
	}
	l.seen.Add(models.ListingKey(postID, tt))
	return nil
}

// MarkFailed logs a listing that could not be fetched or extracted. It does
// not affect Contains.
func (l *Ledger) MarkFailed(ctx context.Context, postID string, tt models.TransactionType, url string) error {
	if l.Contains(postID, tt) {
		return nil
	}
	return l.save(ctx, postID, tt, url, StatusFailed)
}

func (l *Ledger) save(ctx context.Context, postID string, tt models.TransactionType, url string, status Status) error {
	e := Entry{
		PostID:          postID,
		TransactionType: tt,
		URL:             url,
		Status:          status,
		ScrapedDate:     l.now(),
		RunID:           l.runID,
	}
	if err := l.backend.Save(ctx, e); err != nil {
		return eris.Wrapf(err, "ledger: save %s as %s", e.Key(), status)
	}
	return nil
}

// Len is the number of successful keys.
func (l *Ledger) Len() int { return l.seen.Size() }

// RunID identifies the run writing to this ledger.
func (l *Ledger) RunID() string { return l.runID }

// Stats reports stored entries per status.
func (l *Ledger) Stats(ctx context.Context) (map[string]int, error) {
	stats, err := l.backend.Stats(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: stats")
	}
	return stats, nil
}

// Close releases the backend.
func (l *Ledger) Close() error {
	return l.backend.Close()
}
