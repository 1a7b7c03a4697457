package ledger

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"bds-scraper/models"
)

// FileBackend is an append-only tab-separated file with one successful
// listing per line:
//
//	post_id  transaction_type  url  scraped_date  run_id
//
// Failed entries are not recorded.
type FileBackend struct {
	mu   sync.Mutex
	path string
}

// NewFileBackend uses the file at path, creating its directory if needed.
// The file itself is created on first Save.
func NewFileBackend(path string) (*FileBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, eris.Wrap(err, "ledger file: create dir")
	}
	return &FileBackend{path: path}, nil
}

func (b *FileBackend) Load(ctx context.Context) ([]Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, err := os.Open(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ledger file: open %q", b.path)
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fields := strings.Split(sc.Text(), "\t")
		if len(fields) < 2 || strings.TrimSpace(fields[0]) == "" {
			continue
		}
		e := Entry{
			PostID:          strings.TrimSpace(fields[0]),
			TransactionType: models.TransactionType(strings.TrimSpace(fields[1])),
			Status:          StatusSuccess,
		}
		if len(fields) > 2 {
			e.URL = fields[2]
		}
		if len(fields) > 3 {
			e.ScrapedDate, _ = time.ParseInLocation(dateLayout, fields[3], time.Local)
		}
		if len(fields) > 4 {
			e.RunID = fields[4]
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrapf(err, "ledger file: read %q", b.path)
	}
	return entries, nil
}

func (b *FileBackend) Save(_ context.Context, e Entry) error {
	if e.Status != StatusSuccess {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	f, err := os.OpenFile(b.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return eris.Wrapf(err, "ledger file: open %q", b.path)
	}

	line := fmt.Sprintf("%s\t%s\t%s\t%s\t%s\n",
		e.PostID, e.TransactionType, e.URL, e.ScrapedDate.Format(dateLayout), e.RunID)
	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "ledger file: append %s", e.Key())
	}
	return f.Close()
}

func (b *FileBackend) Stats(ctx context.Context) (map[string]int, error) {
	entries, err := b.Load(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]int{string(StatusSuccess): len(entries)}, nil
}

func (b *FileBackend) Close() error { return nil }
