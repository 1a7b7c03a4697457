package services

import (
	"strings"
	"unicode"

	"github.com/rotisserie/eris"

	"bds-scraper/models"
	"bds-scraper/utils"
)

// DescriptionPrefix is the section heading the site prepends to every
// description block.
const DescriptionPrefix = "Thông tin mô tả"

// ErrMissingPostID marks a raw extraction that cannot become a record.
var ErrMissingPostID = eris.New("cleaner: missing post id")

// intSpecKeys are the listing spec keys stored as integers; everything else
// stays as text.
var intSpecKeys = map[string]bool{
	"bedroom":     true,
	"bathroom":    true,
	"num_floor":   true,
	"front_width": true,
	"road_width":  true,
}

// Cleaner transforms RawExtractions into clean, validated PropertyRecords.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean processes a batch of raw extractions. Records without a post id are
// dropped and repeated (post_id, transaction_type) keys keep the first one.
func (c *Cleaner) Clean(raw []*models.RawExtraction) []*models.PropertyRecord {
	seen := make(map[string]struct{})
	result := make([]*models.PropertyRecord, 0, len(raw))

	for _, r := range raw {
		rec, err := c.CleanOne(r)
		if err != nil {
			c.logger.Warn("[cleaner] Dropping extraction from %s: %v", r.URL, err)
			continue
		}

		if _, dup := seen[rec.Key()]; dup {
			c.logger.Debug("[cleaner] Duplicate key skipped: %s", rec.Key())
			continue
		}
		seen[rec.Key()] = struct{}{}

		result = append(result, rec)
	}

	if dropped := len(raw) - len(result); dropped > 0 {
		c.logger.Info("[cleaner] Cleaned %d -> %d records (dropped %d)", len(raw), len(result), dropped)
	}
	return result
}

// CleanOne normalizes a single extraction. It only fails when the post id
// is missing; malformed field text degrades to an absent field.
func (c *Cleaner) CleanOne(r *models.RawExtraction) (*models.PropertyRecord, error) {
	if r == nil || strings.TrimSpace(r.PostID) == "" {
		return nil, ErrMissingPostID
	}

	rec := &models.PropertyRecord{
		PostID:           strings.TrimSpace(r.PostID),
		URL:              strings.TrimSpace(r.URL),
		TransactionType:  r.TransactionType,
		PropertyCategory: r.PropertyCategory,
		Title:            normaliseText(r.Title),
		Latitude:         r.Latitude,
		Longitude:        r.Longitude,
		Price:            ParseCurrency(r.PriceText),
		Area:             ParseInt(r.AreaText),
		Spec:             cleanSpec(r.Specs),
		Description:      StripKnownPrefix(r.Description, DescriptionPrefix),
		Images:           cleanImages(r.Images),
		DatePosted:       ParseDate(strings.TrimSpace(r.PostedText)),
		DateExpired:      ParseDate(strings.TrimSpace(r.ExpiredText)),
		NewsType:         normaliseText(r.NewsType),
		ScrapedAt:        NormalizeTimestamp(r.ScrapedAt),
	}
	if rec.TransactionType == "" {
		rec.TransactionType = models.TransactionUnknown
	}
	if rec.PropertyCategory == "" {
		rec.PropertyCategory = models.CategoryUnknown
	}

	rec.PricePerArea = PricePerArea(rec.Price, rec.Area)

	if addr := SplitAddress(r.Address); !addr.IsZero() {
		rec.Address = &addr
	}
	if !r.Contact.IsZero() {
		contact := *r.Contact
		rec.ContactInfo = &contact
	}
	if !r.Project.IsZero() {
		project := *r.Project
		rec.Project = &project
	}

	return rec, nil
}

func cleanSpec(raw map[string]string) map[string]any {
	spec := make(map[string]any, len(raw))
	for key, value := range raw {
		value = normaliseText(value)
		if value == "" {
			continue
		}
		if intSpecKeys[key] {
			if n := ParseInt(value); n != nil {
				spec[key] = *n
			}
			continue
		}
		spec[key] = value
	}
	if len(spec) == 0 {
		return nil
	}
	return spec
}

func cleanImages(raw []string) []string {
	var images []string
	for _, img := range raw {
		if img = strings.TrimSpace(img); img != "" {
			images = append(images, img)
		}
	}
	return images
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
