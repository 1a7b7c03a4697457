package batdongsan

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"bds-scraper/models"
	"bds-scraper/utils"
)

const (
	// ListCardSelector marks one listing card on a search page.
	ListCardSelector = ".js__card"
	// DetailTitleSelector appears once a detail page has rendered.
	DetailTitleSelector = "h1.re__pr-title"
)

var (
	latitudeRe  = regexp.MustCompile(`["']?latitude["']?\s*:\s*(-?[\d.]+)`)
	longitudeRe = regexp.MustCompile(`["']?longitude["']?\s*:\s*(-?[\d.]+)`)
	digitsRe    = regexp.MustCompile(`\d+`)

	errEmptyDocument = eris.New("empty document")
)

// ExtractError tags a detail page whose markup could not be parsed at all.
type ExtractError struct {
	URL string
	Err error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.URL, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// Extractor turns page markup into raw listing data.
type Extractor struct {
	logger *utils.Logger
	now    func() time.Time
}

func NewExtractor(logger *utils.Logger) *Extractor {
	return &Extractor{logger: logger, now: time.Now}
}

// ExtractListLinks returns the first link of every listing card, resolved
// against pageURL, in page order and without repeats.
func (e *Extractor) ExtractListLinks(markup, pageURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, &ExtractError{URL: pageURL, Err: err}
	}

	seen := utils.NewKeySet()
	var links []string
	doc.Find(ListCardSelector).Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Find("a[href]").First().Attr("href")
		if !ok {
			return
		}
		link := resolveURL(pageURL, href)
		if link == "" || !seen.Add(link) {
			return
		}
		links = append(links, link)
	})
	return links, nil
}

// ExtractDetail parses one detail page. Sections are extracted
// independently: a section that is missing or breaks leaves its fields
// empty and the rest still fill in.
func (e *Extractor) ExtractDetail(markup, pageURL string) (*models.RawExtraction, error) {
	if strings.TrimSpace(markup) == "" {
		return nil, &ExtractError{URL: pageURL, Err: errEmptyDocument}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, &ExtractError{URL: pageURL, Err: err}
	}

	raw := &models.RawExtraction{
		PostID:           ExtractPostID(pageURL),
		URL:              pageURL,
		TransactionType:  ClassifyTransactionType(pageURL),
		PropertyCategory: ClassifyPropertyCategory(pageURL),
		ScrapedAt:        e.now().Format(time.RFC3339),
	}

	e.section(raw, "title", func() bool {
		raw.Title = text(doc.Find("h1").First())
		return raw.Title != ""
	})
	e.section(raw, "address", func() bool {
		raw.Address = text(doc.Find("span.re__pr-short-description").First())
		return raw.Address != ""
	})
	e.section(raw, "price_per_area", func() bool {
		raw.PerAreaText = text(doc.Find("span.ext").First())
		return raw.PerAreaText != ""
	})
	e.section(raw, "coordinates", func() bool {
		raw.Latitude, raw.Longitude = ExtractCoordinates(markup)
		return raw.Latitude != nil || raw.Longitude != nil
	})
	e.section(raw, "specs", func() bool { return extractSpecs(doc, raw) })
	e.section(raw, "sub_info", func() bool { return extractSubInfo(doc, raw) })
	e.section(raw, "description", func() bool {
		raw.Description = text(doc.Find(".re__pr-description").First())
		return raw.Description != ""
	})
	e.section(raw, "images", func() bool {
		raw.Images = extractImages(doc)
		return len(raw.Images) > 0
	})
	e.section(raw, "agent", func() bool {
		raw.Contact = extractAgent(doc, pageURL)
		return raw.Contact != nil
	})
	e.section(raw, "project", func() bool {
		raw.Project = extractProject(doc, pageURL)
		return raw.Project != nil
	})

	if len(raw.MissingParts) > 0 {
		e.logger.Debug("[extract] %s: no %s", pageURL, strings.Join(raw.MissingParts, ", "))
	}
	return raw, nil
}

// section runs fn, recording the section as missing when fn finds nothing
// or panics.
func (e *Extractor) section(raw *models.RawExtraction, name string, fn func() bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("[extract] %s: section %s failed: %v", raw.URL, name, r)
			raw.MissingParts = append(raw.MissingParts, name)
		}
	}()
	if !fn() {
		raw.MissingParts = append(raw.MissingParts, name)
	}
}

// ExtractCoordinates scans the raw markup for latitude/longitude pairs.
// The values live in an inline script, so the DOM is not consulted.
func ExtractCoordinates(markup string) (lat, lon *float64) {
	return matchFloat(latitudeRe, markup), matchFloat(longitudeRe, markup)
}

func matchFloat(re *regexp.Regexp, s string) *float64 {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &v
}

func extractSpecs(doc *goquery.Document, raw *models.RawExtraction) bool {
	found := false
	doc.Find(".re__pr-specs-content-item").Each(func(_ int, item *goquery.Selection) {
		label := item.Find(".re__pr-specs-content-item-title")
		value := item.Find(".re__pr-specs-content-item-value")
		if label.Length() == 0 || value.Length() == 0 {
			return
		}
		key, val := CanonicalSpecKey(text(label.First())), text(value.First())
		if key == "" || val == "" {
			return
		}
		found = true
		switch key {
		case "price":
			raw.PriceText = val
		case "area":
			raw.AreaText = val
		default:
			if raw.Specs == nil {
				raw.Specs = make(map[string]string)
			}
			raw.Specs[key] = val
		}
	})
	return found
}

func extractSubInfo(doc *goquery.Document, raw *models.RawExtraction) bool {
	found := false
	doc.Find("div.re__pr-short-info-item").Each(func(_ int, item *goquery.Selection) {
		title := item.Find("span.title")
		value := item.Find("span.value")
		if title.Length() == 0 || value.Length() == 0 {
			return
		}
		val := text(value.First())
		switch NormalizeKey(text(title.First())) {
		case "ngay_dang":
			raw.PostedText = val
		case "ngay_het_han":
			raw.ExpiredText = val
		case "loai_tin":
			raw.NewsType = val
		default:
			return
		}
		found = found || val != ""
	})
	return found
}

func extractImages(doc *goquery.Document) []string {
	var images []string
	doc.Find("div.re__media-thumb-item.js__media-thumbs-item").Each(func(_ int, item *goquery.Selection) {
		img := item.Find("img").First()
		src := strings.TrimSpace(img.AttrOr("data-src", ""))
		if src == "" {
			src = strings.TrimSpace(img.AttrOr("src", ""))
		}
		if src != "" {
			images = append(images, src)
		}
	})
	return images
}

func extractAgent(doc *goquery.Document, pageURL string) *models.Contact {
	c := &models.Contact{}

	name := doc.Find("div.re__ldp-contact-box div.re__agent-infor.re__agent-name").
		Find("a.re__contact-name, a.js__agent-contact-name").First()
	if name.Length() > 0 {
		c.Name = text(name)
		if href, ok := name.Attr("href"); ok {
			c.ProfileURL = resolveURL(pageURL, href)
		}
	}

	c.AvatarURL = strings.TrimSpace(doc.Find("img.re__contact-avatar").First().AttrOr("src", ""))
	c.Phone = text(doc.Find("div.js__phone span").First())
	c.ZaloURL = strings.TrimSpace(doc.Find("a.js__zalo-chat").First().AttrOr("data-href", ""))

	doc.Find("div.re__agent-experiment div.agent-deail-infor").Each(func(_ int, item *goquery.Selection) {
		label := strings.ToLower(text(item.Find("span").First()))
		value := text(item.Find("i").First())
		switch {
		case strings.Contains(label, "tham gia"):
			c.JoinDuration = value
		case strings.Contains(label, "tin đăng"):
			c.Listings = value
		}
	})

	if c.IsZero() {
		return nil
	}
	return c
}

func extractProject(doc *goquery.Document, pageURL string) *models.Project {
	card := doc.Find("div.re__ldp-project-info").First()
	if card.Length() == 0 {
		return nil
	}

	p := &models.Project{Name: text(card.Find("div.re__project-title").First())}

	card.Find("span.re__prj-card-config-value").Each(func(_ int, item *goquery.Selection) {
		label := strings.ToLower(stripAccents(item.AttrOr("aria-label", "")))
		switch {
		case strings.Contains(label, "trang thai"):
			p.Status = text(item)
		case strings.Contains(label, "gia"):
			p.Price = text(item)
		}
	})
	p.Investor = text(card.Find("span.re__prj-card-config-value i.re__icon-office--sm + span.re__long-text").First())

	avatar := card.Find("div.re__section-avatar")
	p.Image = strings.TrimSpace(avatar.Find("img").First().AttrOr("src", ""))
	if href, ok := avatar.Find("a").First().Attr("href"); ok {
		p.ProjectURL = resolveURL(pageURL, href)
	}

	count := strings.ReplaceAll(text(card.Find("a.re__link-pr span").First()), ",", "")
	if m := digitsRe.FindString(count); m != "" {
		p.ListingCount, _ = strconv.Atoi(m)
	}

	if p.IsZero() {
		return nil
	}
	return p
}

// text returns the trimmed text of sel with internal whitespace collapsed.
func text(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}

// resolveURL makes href absolute relative to base. Unparseable input gives "".
func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref.String()
	}
	return b.ResolveReference(ref).String()
}
