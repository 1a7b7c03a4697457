package services

import (
	"testing"

	"bds-scraper/models"
)

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
		null bool
	}{
		{raw: "9 tỷ", want: 9_000_000_000},
		{raw: "4.16 tỷ", want: 4_160_000_000},
		{raw: "9,5 tỷ", want: 9_500_000_000},
		{raw: "800 triệu", want: 800_000_000},
		{raw: "15 triệu/tháng", want: 15_000_000},
		{raw: "500 nghìn", want: 500_000},
		{raw: "Giá 120", want: 120},
		{raw: "", null: true},
		{raw: "Thỏa thuận", null: true},
		{raw: "99999999999 tỷ", null: true},
		{raw: "9999999999999999999999", null: true},
	}

	for _, tt := range tests {
		got := ParseCurrency(tt.raw)
		if tt.null {
			if got != nil {
				t.Errorf("ParseCurrency(%q) = %d; want nil", tt.raw, *got)
			}
			continue
		}
		if got == nil || *got != tt.want {
			t.Errorf("ParseCurrency(%q) = %v; want %d", tt.raw, got, tt.want)
		}
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
		null bool
	}{
		{raw: "6.0", want: 6},
		{raw: "6", want: 6},
		{raw: "64 m²", want: 64},
		{raw: "5,5 m", want: 5},
		{raw: "bad", null: true},
		{raw: "99999999999999999999", null: true},
		{raw: "9223372036854775807", null: true},
		{raw: "", null: true},
	}

	for _, tt := range tests {
		got := ParseInt(tt.raw)
		if tt.null {
			if got != nil {
				t.Errorf("ParseInt(%q) = %d; want nil", tt.raw, *got)
			}
			continue
		}
		if got == nil || *got != tt.want {
			t.Errorf("ParseInt(%q) = %v; want %d", tt.raw, got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"26/12/2025", "2025-12-26"},
		{"4/2/2025", "2025-02-04"},
		{"Ngày đăng: 1/1/2024", "2024-01-01"},
		{"N/A", "N/A"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ParseDate(tt.raw); got != tt.want {
			t.Errorf("ParseDate(%q) = %q; want %q", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"2025-12-19T02:04:05.123456", "2025-12-19 02:04:05"},
		{"2025-12-19T02:04:05Z", "2025-12-19 02:04:05"},
		{"2025-12-19T02:04:05.5+07:00", "2025-12-19 02:04:05"},
		{"2025-12-19 02:04:05", "2025-12-19 02:04:05"},
	}

	for _, tt := range tests {
		if got := NormalizeTimestamp(tt.raw); got != tt.want {
			t.Errorf("NormalizeTimestamp(%q) = %q; want %q", tt.raw, got, tt.want)
		}
	}
}

func TestSplitAddress(t *testing.T) {
	tests := []struct {
		raw  string
		want models.Address
	}{
		{
			raw:  "Phố X, Phường Y, Quận Z, Hà Nội",
			want: models.Address{Street: "Phố X", Ward: "Phường Y", District: "Quận Z", City: "Hà Nội"},
		},
		{
			raw:  "Số 5, Ngõ 10, Phường Y, Quận Z, Hà Nội",
			want: models.Address{Street: "Số 5, Ngõ 10", Ward: "Phường Y", District: "Quận Z", City: "Hà Nội"},
		},
		{
			raw:  "Short Street",
			want: models.Address{Street: "Short Street", City: "Short Street"},
		},
		{
			raw:  "Quận Z, Hà Nội",
			want: models.Address{Street: "Quận Z", District: "Quận Z", City: "Hà Nội"},
		},
		{
			raw:  "   ",
			want: models.Address{},
		},
	}

	for _, tt := range tests {
		if got := SplitAddress(tt.raw); got != tt.want {
			t.Errorf("SplitAddress(%q) = %+v; want %+v", tt.raw, got, tt.want)
		}
	}
}

func TestStripKnownPrefix(t *testing.T) {
	if got := StripKnownPrefix("Thông tin mô tả  Nhà đẹp ", DescriptionPrefix); got != "Nhà đẹp" {
		t.Errorf("got %q", got)
	}
	if got := StripKnownPrefix(" Nhà đẹp", DescriptionPrefix); got != "Nhà đẹp" {
		t.Errorf("text without prefix: got %q", got)
	}
}

func TestPricePerArea(t *testing.T) {
	price, area, zero := int64(4_160_000_000), int64(64), int64(0)

	got := PricePerArea(&price, &area)
	if got == nil || *got != 65_000_000.0 {
		t.Errorf("PricePerArea: got %v, want 65000000", got)
	}
	if PricePerArea(&price, &zero) != nil {
		t.Error("zero area should give nil")
	}
	if PricePerArea(&price, nil) != nil || PricePerArea(nil, &area) != nil {
		t.Error("missing side should give nil")
	}

	odd := int64(3)
	ten := int64(10)
	if v := PricePerArea(&ten, &odd); v == nil || *v != 3.33 {
		t.Errorf("rounding: got %v, want 3.33", v)
	}
}
