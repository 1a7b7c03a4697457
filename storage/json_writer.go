package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"bds-scraper/models"
	"bds-scraper/utils"
)

// JSONWriter appends records to a dated batch file <dir>/bds_YYYYMMDD.json
// holding a JSON array. It is safe for concurrent use.
type JSONWriter struct {
	mu     sync.Mutex
	dir    string
	logger *utils.Logger
	now    func() time.Time
}

// NewJSONWriter creates dir if needed.
func NewJSONWriter(dir string, logger *utils.Logger) (*JSONWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, eris.Wrap(err, "json: create output dir")
	}
	return &JSONWriter{dir: dir, logger: logger, now: time.Now}, nil
}

// Path returns today's batch file.
func (w *JSONWriter) Path() string {
	return filepath.Join(w.dir, fmt.Sprintf("bds_%s.json", w.now().Format("20060102")))
}

// recordKey is the part of a stored record needed for dedup.
type recordKey struct {
	PostID          string                 `json:"post_id"`
	TransactionType models.TransactionType `json:"transaction_type"`
}

// Persist reads today's batch, appends the records whose key is not in it
// yet and rewrites the file through a temp file and rename.
func (w *JSONWriter) Persist(ctx context.Context, records []*models.PropertyRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	path := w.Path()
	batch := w.readBatch(path)

	seen := make(map[string]struct{}, len(batch)+len(records))
	for _, raw := range batch {
		var k recordKey
		if err := json.Unmarshal(raw, &k); err == nil {
			seen[models.ListingKey(k.PostID, k.TransactionType)] = struct{}{}
		}
	}

	inserted := 0
	for _, rec := range records {
		if _, dup := seen[rec.Key()]; dup {
			continue
		}
		raw, err := marshalRecord(rec)
		if err != nil {
			return 0, eris.Wrapf(err, "json: encode %s", rec.Key())
		}
		batch = append(batch, raw)
		seen[rec.Key()] = struct{}{}
		inserted++
	}

	if inserted == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := w.writeBatch(path, batch); err != nil {
		return 0, err
	}

	w.logger.Info("[json] Appended %d records to %s (%d total)", inserted, path, len(batch))
	return inserted, nil
}

// readBatch treats a missing or unreadable file as an empty batch.
func (w *JSONWriter) readBatch(path string) []json.RawMessage {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		w.logger.Warn("[json] Cannot read %s, starting a new batch: %v", path, err)
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	var batch []json.RawMessage
	if err := json.Unmarshal(data, &batch); err != nil {
		w.logger.Warn("[json] %s is corrupt, starting a new batch: %v", path, err)
		return nil
	}
	return batch
}

func (w *JSONWriter) writeBatch(path string, batch []json.RawMessage) error {
	tmp, err := os.CreateTemp(w.dir, ".bds_*.json.tmp")
	if err != nil {
		return eris.Wrap(err, "json: create temp file")
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(batch); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "json: write batch")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "json: close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "json: replace %q", path)
	}
	return nil
}

func marshalRecord(rec *models.PropertyRecord) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}
	return json.RawMessage(bytes.TrimSpace(buf.Bytes())), nil
}

func (w *JSONWriter) Close() error { return nil }
