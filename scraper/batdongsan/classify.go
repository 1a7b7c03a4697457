package batdongsan

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"bds-scraper/models"
)

var saleCategories = map[string]models.PropertyCategory{
	"ban-can-ho-chung-cu":              models.CategoryApartment,
	"ban-can-ho-chung-cu-mini":         models.CategoryMiniApartment,
	"ban-nha-rieng":                    models.CategoryPrivateHouse,
	"ban-nha-biet-thu-lien-ke":         models.CategoryVilla,
	"ban-nha-mat-pho":                  models.CategoryStorefront,
	"ban-shophouse-nha-pho-thuong-mai": models.CategoryShophouse,
	"ban-dat-nen-du-an":                models.CategoryProjectLand,
	"ban-dat":                          models.CategoryLandPlot,
	"ban-trang-trai-khu-nghi-duong":    models.CategoryFarmResort,
	"ban-condotel":                     models.CategoryCondotel,
	"ban-kho-nha-xuong":                models.CategoryWarehouse,
}

var rentCategories = map[string]models.PropertyCategory{
	"cho-thue-can-ho-chung-cu":              models.CategoryApartment,
	"cho-thue-can-ho-chung-cu-mini":         models.CategoryMiniApartment,
	"cho-thue-nha-rieng":                    models.CategoryPrivateHouse,
	"cho-thue-nha-biet-thu-lien-ke":         models.CategoryVilla,
	"cho-thue-nha-mat-pho":                  models.CategoryStorefront,
	"cho-thue-shophouse-nha-pho-thuong-mai": models.CategoryShophouse,
	"cho-thue-dat":                          models.CategoryLandPlot,
	"cho-thue-trang-trai-khu-nghi-duong":    models.CategoryFarmResort,
	"cho-thue-condotel":                     models.CategoryCondotel,
	"cho-thue-kho-nha-xuong":                models.CategoryWarehouse,
	"cho-thue-van-phong":                    models.CategoryOffice,
	"cho-thue-cua-hang-ki-ot":               models.CategoryShopKiosk,
	"cho-thue-phong-tro":                    models.CategoryRoom,
}

// specKeys maps normalized spec labels to their canonical names. Labels not
// listed keep their normalized form.
var specKeys = map[string]string{
	"khoang_gia":              "price",
	"dien_tich":               "area",
	"so_phong_ngu":            "bedroom",
	"so_phong_tam_ve_sinh":    "bathroom",
	"so_tang":                 "num_floor",
	"huong_nha":               "orientation",
	"huong_ban_cong":          "balcony_direction",
	"mat_tien":                "front_width",
	"duong_vao":               "road_width",
	"phap_ly":                 "legal",
	"noi_that":                "furniture",
	"thoi_gian_du_kien_vao_o": "exdate",
	"muc_gia_dien":            "electricity",
	"muc_gia_nuoc":            "water",
	"muc_gia_internet":        "internet",
	"tien_ich":                "utilities",
}

type categoryPrefix struct {
	prefix   string
	category models.PropertyCategory
}

// categoryPrefixes is every known prefix, longest first, so that
// "ban-dat-nen-du-an" wins over "ban-dat".
var categoryPrefixes = func() []categoryPrefix {
	all := make([]categoryPrefix, 0, len(saleCategories)+len(rentCategories))
	for p, c := range saleCategories {
		all = append(all, categoryPrefix{p, c})
	}
	for p, c := range rentCategories {
		all = append(all, categoryPrefix{p, c})
	}
	sort.Slice(all, func(i, j int) bool {
		if len(all[i].prefix) != len(all[j].prefix) {
			return len(all[i].prefix) > len(all[j].prefix)
		}
		return all[i].prefix < all[j].prefix
	})
	return all
}()

var (
	postIDRe     = regexp.MustCompile(`pr(\d+)$`)
	keySepRe     = regexp.MustCompile(`[\s,]+`)
	keyInvalidRe = regexp.MustCompile(`[^a-z0-9_]`)
	keyRepeatRe  = regexp.MustCompile(`_+`)
)

// listingPath returns the lower-cased URL path without surrounding slashes.
func listingPath(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.Trim(strings.ToLower(u.Path), "/")
}

// ClassifyPropertyCategory maps the first path segment of a listing URL to a
// category. A prefix only matches when it is the whole path or is followed
// by a hyphen.
func ClassifyPropertyCategory(rawURL string) models.PropertyCategory {
	path := listingPath(rawURL)
	for _, cp := range categoryPrefixes {
		if !strings.HasPrefix(path, cp.prefix) {
			continue
		}
		if len(path) == len(cp.prefix) {
			return cp.category
		}
		if path[len(cp.prefix)] == '-' {
			return cp.category
		}
	}
	return models.CategoryUnknown
}

// ClassifyTransactionType reads sale or rent off the path prefix.
func ClassifyTransactionType(rawURL string) models.TransactionType {
	path := listingPath(rawURL)
	switch {
	case strings.HasPrefix(path, "ban-"):
		return models.TransactionSale
	case strings.HasPrefix(path, "cho-thue-"):
		return models.TransactionRent
	default:
		return models.TransactionUnknown
	}
}

// ExtractPostID returns the digits of the trailing "pr<digits>" in the URL
// path, or "" when there is none.
func ExtractPostID(rawURL string) string {
	path := listingPath(rawURL)
	if path == "" {
		return ""
	}
	m := postIDRe.FindStringSubmatch(path)
	if m == nil {
		return ""
	}
	return m[1]
}

// NormalizeKey turns a Vietnamese label into an ASCII snake_case key:
// "Số phòng ngủ" becomes "so_phong_ngu".
func NormalizeKey(label string) string {
	key := stripAccents(label)
	key = strings.ToLower(key)
	key = keySepRe.ReplaceAllString(key, "_")
	key = keyInvalidRe.ReplaceAllString(key, "")
	key = keyRepeatRe.ReplaceAllString(key, "_")
	return strings.Trim(key, "_")
}

// CanonicalSpecKey normalizes label and maps it to the canonical listing spec key.
func CanonicalSpecKey(label string) string {
	key := NormalizeKey(label)
	if mapped, ok := specKeys[key]; ok {
		return mapped
	}
	return key
}

func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.NewReplacer("đ", "d", "Đ", "D").Replace(out)
}
