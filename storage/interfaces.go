package storage

import (
	"context"

	"bds-scraper/models"
)

// RecordSink is the interface any storage backend must satisfy.
//
// Persist stores the records and returns how many were actually inserted.
// Records whose (post_id, transaction_type) already exist are skipped, not
// treated as failures. On an unexpected storage error the returned count
// covers only what was written before it.
type RecordSink interface {
	Persist(ctx context.Context, records []*models.PropertyRecord) (int, error)
	Close() error
}
