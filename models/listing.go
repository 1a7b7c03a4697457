package models

import "time"

// TransactionType tells whether a listing is offered for sale or for rent.
type TransactionType string

const (
	TransactionSale    TransactionType = "sale"
	TransactionRent    TransactionType = "rent"
	TransactionUnknown TransactionType = "unknown"
)

// PropertyCategory is the canonical category derived from the listing URL.
type PropertyCategory string

const (
	CategoryApartment     PropertyCategory = "Apartment"
	CategoryMiniApartment PropertyCategory = "Mini Apartment"
	CategoryPrivateHouse  PropertyCategory = "Private House"
	CategoryVilla         PropertyCategory = "Villa/Townhouse"
	CategoryStorefront    PropertyCategory = "Storefront House"
	CategoryShophouse     PropertyCategory = "Shophouse"
	CategoryProjectLand   PropertyCategory = "Project Land"
	CategoryLandPlot      PropertyCategory = "Land Plot"
	CategoryFarmResort    PropertyCategory = "Farm/Resort"
	CategoryCondotel      PropertyCategory = "Condotel"
	CategoryWarehouse     PropertyCategory = "Warehouse/Factory"
	CategoryOffice        PropertyCategory = "Office Space"
	CategoryShopKiosk     PropertyCategory = "Shop/Kiosk"
	CategoryRoom          PropertyCategory = "Room"
	CategoryUnknown       PropertyCategory = "Unknown"
)

// RawExtraction holds the unprocessed text pulled from one detail page.
// Empty strings and nil collections mean the field was absent.
type RawExtraction struct {
	PostID           string
	URL              string
	TransactionType  TransactionType
	PropertyCategory PropertyCategory

	Title        string
	Address      string
	PriceText    string
	PerAreaText  string
	AreaText     string
	Latitude     *float64
	Longitude    *float64
	Specs        map[string]string
	Description  string
	Images       []string
	PostedText   string
	ExpiredText  string
	NewsType     string
	Contact      *Contact
	Project      *Project
	ScrapedAt    string
	MissingParts []string
}

// Address is the structured form of the comma separated address line.
type Address struct {
	Street   string `json:"street,omitempty" bson:"street,omitempty"`
	Ward     string `json:"ward,omitempty" bson:"ward,omitempty"`
	District string `json:"district,omitempty" bson:"district,omitempty"`
	City     string `json:"city,omitempty" bson:"city,omitempty"`
}

// IsZero reports whether no address part is set.
func (a Address) IsZero() bool {
	return a.Street == "" && a.Ward == "" && a.District == "" && a.City == ""
}

// Contact describes the agent or owner advertising the listing.
type Contact struct {
	Name         string `json:"name,omitempty" bson:"name,omitempty"`
	ProfileURL   string `json:"profile_url,omitempty" bson:"profile_url,omitempty"`
	AvatarURL    string `json:"avatar_url,omitempty" bson:"avatar_url,omitempty"`
	Phone        string `json:"phone,omitempty" bson:"phone,omitempty"`
	ZaloURL      string `json:"zalo_url,omitempty" bson:"zalo_url,omitempty"`
	JoinDuration string `json:"join_duration,omitempty" bson:"join_duration,omitempty"`
	Listings     string `json:"listings,omitempty" bson:"listings,omitempty"`
}

// IsZero reports whether every contact field is empty.
func (c *Contact) IsZero() bool {
	return c == nil || *c == Contact{}
}

// Project is the development a listing belongs to, when the page shows one.
type Project struct {
	Name         string `json:"name,omitempty" bson:"name,omitempty"`
	Status       string `json:"status,omitempty" bson:"status,omitempty"`
	Price        string `json:"price,omitempty" bson:"price,omitempty"`
	Investor     string `json:"investor,omitempty" bson:"investor,omitempty"`
	Image        string `json:"image,omitempty" bson:"image,omitempty"`
	ProjectURL   string `json:"project_url,omitempty" bson:"project_url,omitempty"`
	ListingCount int    `json:"listing_count,omitempty" bson:"listing_count,omitempty"`
}

// IsZero reports whether every project field is empty.
func (p *Project) IsZero() bool {
	return p == nil || *p == Project{}
}

// PropertyRecord is the cleaned, validated record handed to storage.
// It is written once and never updated.
type PropertyRecord struct {
	PostID           string           `json:"post_id" bson:"post_id"`
	URL              string           `json:"property_url,omitempty" bson:"property_url,omitempty"`
	TransactionType  TransactionType  `json:"transaction_type" bson:"transaction_type"`
	PropertyCategory PropertyCategory `json:"property_category" bson:"property_category"`
	Title            string           `json:"title,omitempty" bson:"title,omitempty"`
	Address          *Address         `json:"address,omitempty" bson:"address,omitempty"`
	Latitude         *float64         `json:"latitude,omitempty" bson:"latitude,omitempty"`
	Longitude        *float64         `json:"longitude,omitempty" bson:"longitude,omitempty"`
	Price            *int64           `json:"price,omitempty" bson:"price,omitempty"`
	Area             *int64           `json:"area,omitempty" bson:"area,omitempty"`
	PricePerArea     *float64         `json:"price_per_area,omitempty" bson:"price_per_area,omitempty"`
	Spec             map[string]any   `json:"spec,omitempty" bson:"spec,omitempty"`
	Description      string           `json:"description,omitempty" bson:"description,omitempty"`
	Images           []string         `json:"images,omitempty" bson:"images,omitempty"`
	DatePosted       string           `json:"date_posted,omitempty" bson:"date_posted,omitempty"`
	DateExpired      string           `json:"date_expired,omitempty" bson:"date_expired,omitempty"`
	NewsType         string           `json:"news_type,omitempty" bson:"news_type,omitempty"`
	ContactInfo      *Contact         `json:"contact_info,omitempty" bson:"contact_info,omitempty"`
	Project          *Project         `json:"project,omitempty" bson:"project,omitempty"`
	ScrapedAt        string           `json:"scraped_at,omitempty" bson:"scraped_at,omitempty"`
}

// Key returns the dedup identity of the record.
func (r *PropertyRecord) Key() string {
	return ListingKey(r.PostID, r.TransactionType)
}

// ListingKey joins a post id and transaction type into one lookup key.
func ListingKey(postID string, tt TransactionType) string {
	return string(tt) + ":" + postID
}

// TargetStats holds the counters collected for a single crawl target.
type TargetStats struct {
	Name              string
	PagesProcessed    int
	NewRecords        int
	DuplicatesSkipped int
	Failed            int
}

// RunSummary is reported to the caller at the end of every run.
type RunSummary struct {
	RunID             string
	StartedAt         time.Time
	Duration          time.Duration
	PagesProcessed    int
	NewRecords        int
	DuplicatesSkipped int
	Failed            int
	Targets           []TargetStats
	LedgerStats       map[string]int
	Err               error
}

// DurationSeconds returns the run duration truncated to whole seconds.
func (s *RunSummary) DurationSeconds() int {
	return int(s.Duration / time.Second)
}

// Add folds a target's counters into the run totals.
func (s *RunSummary) Add(t TargetStats) {
	s.Targets = append(s.Targets, t)
	s.PagesProcessed += t.PagesProcessed
	s.NewRecords += t.NewRecords
	s.DuplicatesSkipped += t.DuplicatesSkipped
	s.Failed += t.Failed
}
