package storage

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"bds-scraper/models"
	"bds-scraper/utils"
)

func record(id string, tt models.TransactionType) *models.PropertyRecord {
	price, area := int64(4_160_000_000), int64(64)
	return &models.PropertyRecord{
		PostID:           id,
		URL:              "https://batdongsan.com.vn/ban-can-ho-chung-cu/x-pr" + id,
		TransactionType:  tt,
		PropertyCategory: models.CategoryApartment,
		Title:            "Căn hộ <view hồ>",
		Price:            &price,
		Area:             &area,
		Address:          &models.Address{District: "Hà Đông", City: "Hà Nội"},
	}
}

func newJSONWriter(t *testing.T) *JSONWriter {
	t.Helper()
	w, err := NewJSONWriter(t.TempDir(), utils.NewNopLogger())
	if err != nil {
		t.Fatalf("NewJSONWriter: %v", err)
	}
	w.now = func() time.Time { return time.Date(2025, 12, 19, 9, 0, 0, 0, time.Local) }
	return w
}

func readStored(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var out []map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return out
}

func TestJSONWriterSkipsExistingKeys(t *testing.T) {
	ctx := context.Background()
	w := newJSONWriter(t)

	if !strings.HasSuffix(w.Path(), "bds_20251219.json") {
		t.Fatalf("Path: got %s", w.Path())
	}

	n, err := w.Persist(ctx, []*models.PropertyRecord{record("1", models.TransactionSale)})
	if err != nil || n != 1 {
		t.Fatalf("first Persist: n=%d err=%v", n, err)
	}

	batch := []*models.PropertyRecord{
		record("1", models.TransactionSale),
		record("2", models.TransactionSale),
		record("1", models.TransactionRent),
	}
	n, err = w.Persist(ctx, batch)
	if err != nil {
		t.Fatalf("second Persist: %v", err)
	}
	if n != 2 {
		t.Errorf("inserted: got %d, want 2", n)
	}

	stored := readStored(t, w.Path())
	if len(stored) != 3 {
		t.Fatalf("stored: got %d records, want 3", len(stored))
	}
	if stored[0]["title"] != "Căn hộ <view hồ>" {
		t.Errorf("title should round-trip unescaped, got %v", stored[0]["title"])
	}
	if _, ok := stored[0]["price_per_area"]; ok {
		t.Error("absent price_per_area should be omitted")
	}
}

func TestJSONWriterToleratesCorruptFile(t *testing.T) {
	w := newJSONWriter(t)
	if err := os.WriteFile(w.Path(), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	n, err := w.Persist(context.Background(), []*models.PropertyRecord{record("9", models.TransactionSale)})
	if err != nil || n != 1 {
		t.Fatalf("Persist over corrupt file: n=%d err=%v", n, err)
	}
	if got := readStored(t, w.Path()); len(got) != 1 {
		t.Errorf("stored: got %d, want 1", len(got))
	}
}

func TestJSONWriterEmptyBatch(t *testing.T) {
	w := newJSONWriter(t)
	n, err := w.Persist(context.Background(), nil)
	if err != nil || n != 0 {
		t.Fatalf("empty Persist: n=%d err=%v", n, err)
	}
	if _, err := os.Stat(w.Path()); !os.IsNotExist(err) {
		t.Error("an empty batch should not create the file")
	}
}

func TestCountInserted(t *testing.T) {
	dup := mongo.BulkWriteError{WriteError: mongo.WriteError{Index: 1, Code: duplicateKeyCode, Message: "E11000 duplicate key"}}
	other := mongo.BulkWriteError{WriteError: mongo.WriteError{Index: 2, Code: 121, Message: "validation failed"}}

	tests := []struct {
		name    string
		err     error
		want    int
		wantErr bool
	}{
		{name: "no error", err: nil, want: 3},
		{name: "one duplicate", err: mongo.BulkWriteException{WriteErrors: []mongo.BulkWriteError{dup}}, want: 2},
		{name: "other write error", err: mongo.BulkWriteException{WriteErrors: []mongo.BulkWriteError{dup, other}}, want: 1, wantErr: true},
		{name: "connection lost", err: context.DeadlineExceeded, want: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := countInserted(3, tt.err)
			if got != tt.want {
				t.Errorf("inserted: got %d, want %d", got, tt.want)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("err: got %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildInsert(t *testing.T) {
	batch := []*models.PropertyRecord{record("1", models.TransactionSale), record("2", models.TransactionRent)}
	batch[1].Address = nil

	query, args, err := buildInsert(batch)
	if err != nil {
		t.Fatalf("buildInsert: %v", err)
	}
	if len(args) != 2*pgColumns {
		t.Fatalf("args: got %d, want %d", len(args), 2*pgColumns)
	}
	if !strings.Contains(query, "$28)") || !strings.Contains(query, "ON CONFLICT (post_id, transaction_type) DO NOTHING") {
		t.Errorf("unexpected query: %s", query)
	}
	if args[9] != "Hà Nội" {
		t.Errorf("city arg: got %v", args[9])
	}
	if args[pgColumns+9] != nil {
		t.Errorf("missing address should give NULL city, got %v", args[pgColumns+9])
	}
}
