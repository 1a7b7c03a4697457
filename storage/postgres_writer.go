package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/rotisserie/eris"

	"bds-scraper/models"
	"bds-scraper/utils"
)

const (
	pgBatchSize = 50
	pgColumns   = 14
)

// PostgresWriter persists property records to PostgreSQL.
type PostgresWriter struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(ctx context.Context, dsn string, logger *utils.Logger) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: open")
	}

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		if sleepErr := utils.Sleep(ctx, 2*time.Second); sleepErr != nil {
			break
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "postgres: ping failed after retries")
	}

	pw := &PostgresWriter{db: db, logger: logger}
	if err := pw.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "postgres: migrate")
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate(ctx context.Context) error {
	_, err := pw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS properties (
			id                SERIAL PRIMARY KEY,
			post_id           TEXT          NOT NULL,
			transaction_type  VARCHAR(16)   NOT NULL,
			property_category VARCHAR(64)   NOT NULL DEFAULT 'Unknown',
			property_url      TEXT          NOT NULL DEFAULT '',
			title             TEXT          NOT NULL DEFAULT '',
			price             BIGINT,
			area              BIGINT,
			price_per_area    NUMERIC(20,2),
			district          TEXT,
			city              TEXT,
			date_posted       TEXT,
			scraped_at        TEXT,
			news_type         TEXT,
			document          JSONB         NOT NULL,
			created_at        TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
			UNIQUE (post_id, transaction_type)
		);

		CREATE INDEX IF NOT EXISTS idx_properties_category ON properties(property_category);
		CREATE INDEX IF NOT EXISTS idx_properties_city     ON properties(city);
		CREATE INDEX IF NOT EXISTS idx_properties_price    ON properties(price);
	`)
	return err
}

// Persist batch-inserts the records. Existing keys are skipped by the
// unique constraint; a failing batch is logged and the remaining batches
// still run.
func (pw *PostgresWriter) Persist(ctx context.Context, records []*models.PropertyRecord) (int, error) {
	inserted := 0
	var firstErr error

	for i := 0; i < len(records); i += pgBatchSize {
		end := i + pgBatchSize
		if end > len(records) {
			end = len(records)
		}

		n, err := pw.insertBatch(ctx, records[i:end])
		inserted += n
		if err != nil {
			pw.logger.Error("[postgres] Batch %d-%d failed: %v", i, end, err)
			if firstErr == nil {
				firstErr = err
			}
			if ctx.Err() != nil {
				break
			}
		}
	}

	return inserted, firstErr
}

func (pw *PostgresWriter) insertBatch(ctx context.Context, batch []*models.PropertyRecord) (int, error) {
	query, args, err := buildInsert(batch)
	if err != nil {
		return 0, err
	}

	res, err := pw.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert batch")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "postgres: rows affected")
	}
	return int(n), nil
}

// buildInsert renders one multi-row INSERT for batch.
func buildInsert(batch []*models.PropertyRecord) (string, []any, error) {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*pgColumns)

	for idx, r := range batch {
		doc, err := json.Marshal(r)
		if err != nil {
			return "", nil, eris.Wrapf(err, "postgres: encode %s", r.Key())
		}

		placeholders := make([]string, pgColumns)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", idx*pgColumns+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")

		var district, city any
		if r.Address != nil {
			district, city = nullString(r.Address.District), nullString(r.Address.City)
		}
		valueArgs = append(valueArgs,
			r.PostID, string(r.TransactionType), string(r.PropertyCategory), r.URL, r.Title,
			r.Price, r.Area, r.PricePerArea, district, city,
			nullString(r.DatePosted), nullString(r.ScrapedAt), string(doc), nullString(r.NewsType),
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO properties (post_id, transaction_type, property_category, property_url, title,
			price, area, price_per_area, district, city, date_posted, scraped_at, document, news_type)
		VALUES %s
		ON CONFLICT (post_id, transaction_type) DO NOTHING
	`, strings.Join(valueStrings, ","))

	return query, valueArgs, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
