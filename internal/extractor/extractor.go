// Package extractor locates structured-data blocks and visible attribute
// markup in a product page and produces an untyped attribute map. Target pages
// are not schema-guaranteed, so this package degrades gracefully: malformed
// markup yields an empty map, never an error or a fabricated value.
package extractor

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dkovalenko/brain-scraper/internal/models"
)

type Extractor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger.With("component", "extractor")}
}

// Extract pulls raw attributes from page content. The returned map may be
// empty or partial; deciding whether the data is sufficient is the
// normalizer's job.
func (e *Extractor) Extract(content *models.RawPageContent) (attrs models.RawAttributeMap) {
	attrs = models.RawAttributeMap{}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("extraction panicked, degrading to empty attribute map",
				"url", content.SourceURL, "cause", r)
			attrs = models.RawAttributeMap{}
		}
	}()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content.Body))
	if err != nil {
		e.logger.Warn("failed to parse page markup", "url", content.SourceURL, "error", err)
		return attrs
	}

	merged := mergeProductBlocks(productBlocks(doc))
	if merged != nil {
		e.fillFromStructuredData(attrs, merged)
	}

	e.fillFromDOM(attrs, doc)

	return attrs
}

func (e *Extractor) fillFromStructuredData(attrs models.RawAttributeMap, block map[string]any) {
	setIfNotEmpty(attrs, models.AttrName, stringField(block, "name"))
	setIfNotEmpty(attrs, models.AttrSKU, stringField(block, "sku"))
	setIfNotEmpty(attrs, models.AttrMPN, stringField(block, "mpn"))
	setIfNotEmpty(attrs, models.AttrBrand, brandName(block))
	setIfNotEmpty(attrs, models.AttrDescription, stringField(block, "description"))

	offer := firstOffer(block)
	offerPrice := ""
	if offer != nil {
		offerPrice = anyToString(offer["price"])
		setIfNotEmpty(attrs, models.AttrCurrency, anyToString(offer["priceCurrency"]))
		setIfNotEmpty(attrs, models.AttrAvailability, anyToString(offer["availability"]))
	}

	// Some pages duplicate the regular price in the block root; the offer
	// price is then the discounted one.
	declaredPrice := anyToString(block["price"])
	switch {
	case declaredPrice != "" && declaredPrice != offerPrice:
		attrs[models.AttrPrice] = declaredPrice
		setIfNotEmpty(attrs, models.AttrSalePrice, offerPrice)
	case offerPrice != "":
		attrs[models.AttrPrice] = offerPrice
	}

	if count, ok := aggregateReviewCount(block); ok {
		attrs[models.AttrReviewCount] = count
	}

	if images := imageURLs(block); len(images) > 0 {
		attrs[models.AttrImages] = images
	}

	attrs[models.AttrMetadata] = block
}

func (e *Extractor) fillFromDOM(attrs models.RawAttributeMap, doc *goquery.Document) {
	if rows := extractCharacteristics(doc); len(rows) > 0 {
		attrs[models.AttrCharacteristics] = rows
	}

	setIfNotEmpty(attrs, models.AttrDOMProductCode, extractDOMProductCode(doc))
	setIfNotEmpty(attrs, models.AttrDOMManufacturer, extractDOMManufacturer(doc))
	setIfNotEmpty(attrs, models.AttrDOMReviewCount, extractDOMReviewCount(doc))

	// DOM prices matter when the structured block is absent or silent on
	// pricing.
	current, old := extractDOMPrices(doc)
	setIfNotEmpty(attrs, models.AttrDOMPrice, current)
	setIfNotEmpty(attrs, models.AttrDOMOldPrice, old)
}

func setIfNotEmpty(attrs models.RawAttributeMap, key, value string) {
	if value != "" {
		attrs[key] = value
	}
}

func anyToString(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}
