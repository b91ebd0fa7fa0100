// Package normalizer converts raw attribute maps into canonical product
// records. Every field walks a fallback chain: explicit structured data first,
// DOM-derived attributes second, tokens inferred from the product name last.
// The first non-empty source wins; if all are silent the field stays absent.
package normalizer

import (
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/dkovalenko/brain-scraper/internal/models"
)

// ErrNormalization means no fallback could determine a mandatory field
// (product code or name). Partial records are never returned.
var ErrNormalization = errors.New("normalization failed")

var (
	colorPattern = regexp.MustCompile(
		`(?i)\b(Natural Titanium|Blue Titanium|Black Titanium|White Titanium|Desert Titanium|Black|Blue|White|Silver|Gold|Green|Red|Pink|Purple|Yellow|Graphite|Midnight|Starlight)\b`)
	storagePattern    = regexp.MustCompile(`(?i)(\d+\s?(?:GB|TB))`)
	intPattern        = regexp.MustCompile(`\d+`)
	diagonalPattern   = regexp.MustCompile(`(\d+[.,]?\d*)`)
	resolutionPattern = regexp.MustCompile(`(?i)(\d+\s*[xх×]\s*\d+)`)
)

var (
	colorLabels      = []string{"Колір", "Цвет"}
	storageLabels    = []string{"Вбудована пам'ять", "Вбудована пам’ять", "Объем встроенной памяти", "Пам'ять"}
	diagonalLabels   = []string{"Діагональ екрана", "Діагональ екрану", "Діагональ", "Диагональ экрана"}
	resolutionLabels = []string{"Роздільна здатність екрана", "Роздільна здатність екрану", "Роздільна здатність", "Разрешение экрана", "Разрешение"}
)

type Normalizer struct {
	sanitizer *bluemonday.Policy
	logger    *slog.Logger
}

func New(logger *slog.Logger) *Normalizer {
	return &Normalizer{
		// Structured-data strings occasionally carry markup fragments;
		// strip everything down to plain text.
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With("component", "normalizer"),
	}
}

// Normalize builds the canonical record. It fails only when the mandatory
// fields (product code, name) cannot be determined by any fallback.
func (n *Normalizer) Normalize(attrs models.RawAttributeMap, sourceURL string) (*models.CanonicalProduct, error) {
	name := n.cleanString(attrs, models.AttrName)

	code, _ := attrs.GetString(models.AttrMPN)
	if code == "" {
		code, _ = attrs.GetString(models.AttrSKU)
	}
	if code == "" {
		code, _ = attrs.GetString(models.AttrDOMProductCode)
	}

	if code == "" {
		return nil, fmt.Errorf("%w: no product code determinable for %s", ErrNormalization, sourceURL)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: no product name determinable for %s", ErrNormalization, sourceURL)
	}

	characteristics := characteristicRows(attrs)

	product := &models.CanonicalProduct{
		Name:            name,
		ProductCode:     strings.TrimSpace(code),
		SourceURL:       sourceURL,
		Currency:        n.cleanString(attrs, models.AttrCurrency),
		Characteristics: characteristics,
		Images:          n.normalizeImages(attrs, sourceURL),
	}

	n.normalizePrices(product, attrs)
	n.normalizeAvailability(product, attrs)

	product.Manufacturer = firstNonEmpty(
		n.cleanString(attrs, models.AttrBrand),
		n.cleanString(attrs, models.AttrDOMManufacturer),
	)

	product.Color = firstNonEmpty(
		labelValue(characteristics, colorLabels),
		inferToken(name, colorPattern, func(s string) string { return s }),
	)

	product.Storage = firstNonEmpty(
		labelValue(characteristics, storageLabels),
		inferToken(name, storagePattern, func(s string) string {
			return strings.ToUpper(strings.ReplaceAll(s, " ", ""))
		}),
	)

	product.ScreenDiagonal = extractMeasure(characteristics, diagonalLabels, diagonalPattern, func(s string) string {
		return strings.ReplaceAll(s, ",", ".")
	})
	product.DisplayResolution = extractMeasure(characteristics, resolutionLabels, resolutionPattern, func(s string) string {
		compact := strings.Join(strings.Fields(s), "")
		compact = strings.ToLower(compact)
		compact = strings.ReplaceAll(compact, "х", "x")
		return strings.ReplaceAll(compact, "×", "x")
	})

	product.ReviewCount = n.normalizeReviewCount(attrs)

	if metadata, ok := attrs[models.AttrMetadata].(map[string]any); ok {
		product.Metadata = metadata
	}

	return product, nil
}

// normalizePrices applies the price fallback chain and enforces the
// sale_price <= price ordering. When raw data has them inverted the two are
// swapped: the assumption is a data-entry inversion on the source page.
func (n *Normalizer) normalizePrices(product *models.CanonicalProduct, attrs models.RawAttributeMap) {
	price := parseMoney(n.cleanString(attrs, models.AttrPrice))
	sale := parseMoney(n.cleanString(attrs, models.AttrSalePrice))

	if price == nil && sale == nil {
		current := parseMoney(n.cleanString(attrs, models.AttrDOMPrice))
		old := parseMoney(n.cleanString(attrs, models.AttrDOMOldPrice))
		if old != nil && current != nil {
			price, sale = old, current
		} else {
			price = current
		}
	}

	if price != nil && sale != nil && *sale > *price {
		n.logger.Debug("sale price above regular price, swapping",
			"product_code", product.ProductCode, "price", *price, "sale_price", *sale)
		price, sale = sale, price
	}

	product.Price = price
	product.SalePrice = sale
}

func (n *Normalizer) normalizeAvailability(product *models.CanonicalProduct, attrs models.RawAttributeMap) {
	raw, ok := attrs.GetString(models.AttrAvailability)
	if !ok {
		return
	}
	if availability, recognized := models.ParseAvailability(raw); recognized {
		product.Availability = availability
		return
	}
	// Unrecognized availability values are preserved verbatim, not dropped.
	product.Characteristics.Set("availability_raw", raw)
}

func (n *Normalizer) normalizeReviewCount(attrs models.RawAttributeMap) int {
	if count, ok := attrs[models.AttrReviewCount].(int); ok && count >= 0 {
		return count
	}
	if text, ok := attrs.GetString(models.AttrDOMReviewCount); ok {
		if match := intPattern.FindString(text); match != "" {
			if count, err := strconv.Atoi(match); err == nil {
				return count
			}
		}
	}
	return 0
}

// normalizeImages resolves relative URLs against the source page and removes
// duplicates while preserving presentation order.
func (n *Normalizer) normalizeImages(attrs models.RawAttributeMap, sourceURL string) []string {
	raw, ok := attrs[models.AttrImages].([]string)
	if !ok {
		return []string{}
	}

	base, baseErr := url.Parse(sourceURL)

	seen := make(map[string]bool)
	images := make([]string, 0, len(raw))
	for _, img := range raw {
		img = strings.TrimSpace(img)
		if img == "" || strings.HasPrefix(img, "data:") {
			continue
		}
		if strings.HasPrefix(img, "//") {
			img = "https:" + img
		} else if baseErr == nil {
			if ref, err := url.Parse(img); err == nil {
				img = base.ResolveReference(ref).String()
			}
		}
		if !seen[img] {
			seen[img] = true
			images = append(images, img)
		}
	}
	return images
}

func (n *Normalizer) cleanString(attrs models.RawAttributeMap, key string) string {
	value, ok := attrs.GetString(key)
	if !ok {
		return ""
	}
	// Sanitize escapes the surviving text; unescape to get plain text back.
	return strings.TrimSpace(html.UnescapeString(n.sanitizer.Sanitize(value)))
}

// parseMoney strips locale noise (currency symbols, thousands separators,
// non-breaking spaces) and parses a decimal amount. Unparseable or negative
// values are treated as absent.
func parseMoney(raw string) *float64 {
	if raw == "" {
		return nil
	}

	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return nil
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		// A comma followed by exactly two digits is a decimal separator,
		// anything else is a thousands separator.
		if len(cleaned)-lastComma-1 == 2 && strings.Count(cleaned, ",") == 1 {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || value < 0 {
		return nil
	}
	return &value
}

func characteristicRows(attrs models.RawAttributeMap) models.Characteristics {
	if rows, ok := attrs[models.AttrCharacteristics].(models.Characteristics); ok {
		out := make(models.Characteristics, len(rows))
		copy(out, rows)
		return out
	}
	return models.Characteristics{}
}

func labelValue(rows models.Characteristics, labels []string) string {
	for _, label := range labels {
		if value, ok := rows.Get(label); ok {
			return value
		}
	}
	return ""
}

func inferToken(name string, pattern *regexp.Regexp, transform func(string) string) string {
	match := pattern.FindStringSubmatch(name)
	if len(match) < 2 {
		return ""
	}
	return transform(match[1])
}

func extractMeasure(rows models.Characteristics, labels []string, pattern *regexp.Regexp, transform func(string) string) string {
	value := labelValue(rows, labels)
	if value == "" {
		return ""
	}
	match := pattern.FindStringSubmatch(value)
	if len(match) < 2 {
		return ""
	}
	return transform(match[1])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
