package services

import (
	"testing"

	"bds-scraper/models"
	"bds-scraper/utils"
)

func newTestLogger() *utils.Logger { return utils.NewNopLogger() }

func sampleRaw(id string) *models.RawExtraction {
	lat := 20.9624
	return &models.RawExtraction{
		PostID:           id,
		URL:              "https://batdongsan.com.vn/ban-can-ho-chung-cu-xa-la/can-ho-dep-pr" + id,
		TransactionType:  models.TransactionSale,
		PropertyCategory: models.CategoryApartment,
		Title:            "  Căn hộ   Xa La  ",
		Address:          "Phố Phùng Hưng, Phường Phúc La, Hà Đông, Hà Nội",
		PriceText:        "4,16 tỷ",
		AreaText:         "64 m²",
		Latitude:         &lat,
		Specs: map[string]string{
			"bedroom":     "2 phòng",
			"bathroom":    "2.0",
			"orientation": "Tây - Bắc",
			"num_floor":   "không rõ",
		},
		Description: "Thông tin mô tả  Căn góc view hồ.",
		Images:      []string{"https://img/1.jpg", "  ", "https://img/2.jpg"},
		PostedText:  "4/12/2025",
		ExpiredText: "19/12/2025",
		Contact:     &models.Contact{Name: "Phương"},
		Project:     &models.Project{},
		ScrapedAt:   "2025-12-19T02:04:05.123456+07:00",
	}
}

func TestCleanOneNormalizesFields(t *testing.T) {
	c := NewCleaner(newTestLogger())

	rec, err := c.CleanOne(sampleRaw("38619623"))
	if err != nil {
		t.Fatalf("CleanOne: %v", err)
	}

	if rec.Title != "Căn hộ Xa La" {
		t.Errorf("Title: got %q", rec.Title)
	}
	if rec.Price == nil || *rec.Price != 4_160_000_000 {
		t.Errorf("Price: got %v, want 4160000000", rec.Price)
	}
	if rec.Area == nil || *rec.Area != 64 {
		t.Errorf("Area: got %v, want 64", rec.Area)
	}
	if rec.PricePerArea == nil || *rec.PricePerArea != 65_000_000 {
		t.Errorf("PricePerArea: got %v, want 65000000", rec.PricePerArea)
	}
	if rec.Address == nil || rec.Address.City != "Hà Nội" || rec.Address.Street != "Phố Phùng Hưng" {
		t.Errorf("Address: got %+v", rec.Address)
	}
	if rec.Spec["bedroom"] != int64(2) || rec.Spec["bathroom"] != int64(2) {
		t.Errorf("Spec ints: got %v", rec.Spec)
	}
	if _, ok := rec.Spec["num_floor"]; ok {
		t.Errorf("unparseable num_floor should be dropped, got %v", rec.Spec["num_floor"])
	}
	if rec.Spec["orientation"] != "Tây - Bắc" {
		t.Errorf("orientation: got %v", rec.Spec["orientation"])
	}
	if rec.Description != "Căn góc view hồ." {
		t.Errorf("Description: got %q", rec.Description)
	}
	if len(rec.Images) != 2 {
		t.Errorf("Images: got %v", rec.Images)
	}
	if rec.DatePosted != "2025-12-04" || rec.DateExpired != "2025-12-19" {
		t.Errorf("dates: got %q / %q", rec.DatePosted, rec.DateExpired)
	}
	if rec.ScrapedAt != "2025-12-19 02:04:05" {
		t.Errorf("ScrapedAt: got %q", rec.ScrapedAt)
	}
	if rec.ContactInfo == nil || rec.ContactInfo.Name != "Phương" {
		t.Errorf("ContactInfo: got %+v", rec.ContactInfo)
	}
	if rec.Project != nil {
		t.Errorf("empty project should be dropped, got %+v", rec.Project)
	}
}

func TestCleanOneWithoutAreaHasNoPricePerArea(t *testing.T) {
	c := NewCleaner(newTestLogger())
	raw := sampleRaw("1")
	raw.AreaText = ""

	rec, err := c.CleanOne(raw)
	if err != nil {
		t.Fatalf("CleanOne: %v", err)
	}
	if rec.Area != nil || rec.PricePerArea != nil {
		t.Errorf("expected nil area and price_per_area, got %v / %v", rec.Area, rec.PricePerArea)
	}
}

func TestCleanerDropsMissingPostID(t *testing.T) {
	c := NewCleaner(newTestLogger())
	raw := []*models.RawExtraction{
		sampleRaw(""),
		sampleRaw("2"),
	}

	cleaned := c.Clean(raw)
	if len(cleaned) != 1 {
		t.Errorf("expected 1 record after dropping empty post id, got %d", len(cleaned))
	}
}

func TestCleanerDeduplicatesKey(t *testing.T) {
	c := NewCleaner(newTestLogger())
	rent := sampleRaw("7")
	rent.TransactionType = models.TransactionRent

	cleaned := c.Clean([]*models.RawExtraction{sampleRaw("7"), sampleRaw("7"), rent})
	if len(cleaned) != 2 {
		t.Errorf("expected 2 records (sale + rent), got %d", len(cleaned))
	}
}

func TestCleanOneDefaultsUnknownClassification(t *testing.T) {
	c := NewCleaner(newTestLogger())
	rec, err := c.CleanOne(&models.RawExtraction{PostID: "9", URL: "https://example.com/x-pr9"})
	if err != nil {
		t.Fatalf("CleanOne: %v", err)
	}
	if rec.TransactionType != models.TransactionUnknown || rec.PropertyCategory != models.CategoryUnknown {
		t.Errorf("got %q / %q", rec.TransactionType, rec.PropertyCategory)
	}
	if rec.Address != nil || rec.Spec != nil || rec.ContactInfo != nil {
		t.Errorf("empty sub-records should be nil: %+v", rec)
	}
}
