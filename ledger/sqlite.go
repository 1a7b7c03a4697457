package ledger

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"bds-scraper/models"
)

// DefaultSQLitePath is where the scrape log lives unless configured.
const DefaultSQLitePath = "data/scraping_status.db"

// SQLiteBackend keeps the scrape log in an embedded SQLite database.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (or creates) the database at path and migrates it.
func NewSQLiteBackend(ctx context.Context, path string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, eris.Wrap(err, "sqlite: create data dir")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: open %q", path)
	}
	db.SetMaxOpenConns(1)

	b := &SQLiteBackend{db: db}
	if err := b.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "sqlite: migrate")
	}
	return b, nil
}

func (b *SQLiteBackend) migrate(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS scrape_log (
			post_id          TEXT NOT NULL,
			transaction_type TEXT NOT NULL,
			url              TEXT NOT NULL DEFAULT '',
			scraped_date     TEXT NOT NULL,
			status           TEXT NOT NULL,
			run_id           TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (post_id, transaction_type)
		);

		CREATE INDEX IF NOT EXISTS idx_scrape_log_status ON scrape_log(status);
	`)
	return err
}

func (b *SQLiteBackend) Load(ctx context.Context) ([]Entry, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT post_id, transaction_type, url, scraped_date, status, run_id
		FROM scrape_log
		WHERE status = ?
	`, string(StatusSuccess))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			tt, status string
			date       string
		)
		if err := rows.Scan(&e.PostID, &tt, &e.URL, &date, &status, &e.RunID); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan row")
		}
		e.TransactionType = models.TransactionType(tt)
		e.Status = Status(status)
		e.ScrapedDate, _ = time.ParseInLocation(dateLayout, date, time.Local)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (b *SQLiteBackend) Save(ctx context.Context, e Entry) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO scrape_log (post_id, transaction_type, url, scraped_date, status, run_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (post_id, transaction_type) DO UPDATE SET
			url          = excluded.url,
			scraped_date = excluded.scraped_date,
			status       = excluded.status,
			run_id       = excluded.run_id
		WHERE scrape_log.status <> 'success'
	`, e.PostID, string(e.TransactionType), e.URL, e.ScrapedDate.Format(dateLayout), string(e.Status), e.RunID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save %s", e.Key())
	}
	return nil
}

func (b *SQLiteBackend) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM scrape_log GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats")
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stats")
		}
		stats[status] = n
	}
	return stats, rows.Err()
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
