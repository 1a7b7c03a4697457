package services

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"bds-scraper/models"
)

var (
	// numberRegexp captures the first numeric token, "," or "." as separators
	numberRegexp = regexp.MustCompile(`\d[\d.,]*`)
	// dateRegexp captures D/M/YYYY anywhere in the text
	dateRegexp = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
	// tzSuffixRegexp matches a trailing zone designator: Z, +07:00, -0500
	tzSuffixRegexp = regexp.MustCompile(`(Z|[+-]\d{2}:?\d{2})$`)
)

// Currency unit words, checked largest first.
var currencyUnits = []struct {
	words []string
	scale float64
}{
	{[]string{"tỷ", "tỉ"}, 1e9},
	{[]string{"triệu"}, 1e6},
	{[]string{"nghìn", "ngàn"}, 1e3},
}

// ParseCurrency converts texts like "9 tỷ" or "800 triệu" into whole
// currency units. It returns nil when no number is present.
func ParseCurrency(text string) *int64 {
	lower := strings.ToLower(strings.TrimSpace(text))
	val, ok := firstNumber(lower)
	if !ok {
		return nil
	}

	for _, unit := range currencyUnits {
		if containsAny(lower, unit.words) {
			val *= unit.scale
			break
		}
	}

	return toInt64(math.Round(val))
}

// ParseInt extracts the first number and truncates it, so "6.0" and
// "64 m²" become 6 and 64. It returns nil on failure.
func ParseInt(text string) *int64 {
	val, ok := firstNumber(text)
	if !ok {
		return nil
	}
	return toInt64(math.Trunc(val))
}

// toInt64 returns nil for values an int64 cannot hold.
func toInt64(val float64) *int64 {
	if math.IsNaN(val) || val < math.MinInt64 || val >= math.MaxInt64 {
		return nil
	}
	n := int64(val)
	return &n
}

// ParseDate rewrites the first D/M/YYYY found in text as YYYY-MM-DD.
// Unmatched text comes back unchanged.
func ParseDate(text string) string {
	m := dateRegexp.FindStringSubmatch(text)
	if m == nil {
		return text
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	return fmt.Sprintf("%s-%02d-%02d", m[3], month, day)
}

// NormalizeTimestamp turns an ISO-8601 timestamp into "YYYY-MM-DD HH:MM:SS",
// dropping fractional seconds and the zone designator.
func NormalizeTimestamp(text string) string {
	text = strings.TrimSpace(text)
	if !strings.Contains(text, "T") {
		return text
	}
	text = strings.Replace(text, "T", " ", 1)
	text = tzSuffixRegexp.ReplaceAllString(text, "")
	if i := strings.Index(text, "."); i != -1 {
		text = text[:i]
	}
	return text
}

// SplitAddress assigns comma separated parts from the right: city,
// district, ward, and whatever is left joined as street. Addresses with
// fewer than four parts reuse the first part as street.
func SplitAddress(raw string) models.Address {
	var addr models.Address
	if strings.TrimSpace(raw) == "" {
		return addr
	}

	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	n := len(parts)
	addr.City = parts[n-1]
	if n >= 2 {
		addr.District = parts[n-2]
	}
	if n >= 3 {
		addr.Ward = parts[n-3]
	}
	if n >= 4 {
		addr.Street = strings.Join(parts[:n-3], ", ")
	} else {
		addr.Street = parts[0]
	}
	return addr
}

// StripKnownPrefix removes a leading boilerplate phrase, then trims.
func StripKnownPrefix(text, prefix string) string {
	text = strings.TrimSpace(text)
	if prefix != "" {
		text = strings.TrimPrefix(text, prefix)
	}
	return strings.TrimSpace(text)
}

// PricePerArea is price / area rounded to two decimals, or nil when either
// side is missing or the area is not positive.
func PricePerArea(price, area *int64) *float64 {
	if price == nil || area == nil || *area <= 0 {
		return nil
	}
	v := math.Round(float64(*price)/float64(*area)*100) / 100
	return &v
}

func firstNumber(text string) (float64, bool) {
	match := numberRegexp.FindString(text)
	if match == "" {
		return 0, false
	}
	val, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return val, true
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
