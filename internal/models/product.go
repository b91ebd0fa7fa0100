package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Availability is the canonical stock status of a product offer.
type Availability string

const (
	AvailabilityInStock      Availability = "in_stock"
	AvailabilityOutOfStock   Availability = "out_of_stock"
	AvailabilityPreorder     Availability = "preorder"
	AvailabilityDiscontinued Availability = "discontinued"
)

// ContentKind tells the extractor whether page scripts were executed
// before the markup was captured.
type ContentKind string

const (
	ContentStatic   ContentKind = "static"
	ContentRendered ContentKind = "rendered"
)

// RawPageContent is the page markup a retrieval strategy hands to the
// extractor. It lives for a single pipeline invocation and is never persisted.
type RawPageContent struct {
	Body      string
	Kind      ContentKind
	SourceURL string
	FetchedAt time.Time
}

// RawAttributeMap carries untyped attribute values between the extractor and
// the normalizer. Missing keys are normal; the extractor never fabricates.
type RawAttributeMap map[string]any

// Attribute keys shared by the extractor and the normalizer. Keys prefixed
// "dom_" hold values scraped from visible markup, everything else comes from
// the structured-data block.
const (
	AttrName            = "name"
	AttrSKU             = "sku"
	AttrMPN             = "mpn"
	AttrBrand           = "brand"
	AttrPrice           = "price"
	AttrSalePrice       = "sale_price"
	AttrCurrency        = "currency"
	AttrAvailability    = "availability"
	AttrDescription     = "description"
	AttrReviewCount     = "review_count"
	AttrImages          = "images"
	AttrCharacteristics = "characteristics"
	AttrMetadata        = "metadata"
	AttrDOMProductCode  = "dom_product_code"
	AttrDOMPrice        = "dom_price"
	AttrDOMOldPrice     = "dom_old_price"
	AttrDOMReviewCount  = "dom_review_count"
	AttrDOMManufacturer = "dom_manufacturer"
)

// GetString returns the value under key if it is a non-empty string.
func (m RawAttributeMap) GetString(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	if s, ok := m[key].(string); ok && s != "" {
		return s, true
	}
	return "", false
}

// SearchCandidate is a ranked pointer to a search result. It collapses to a
// single chosen URL before extraction begins.
type SearchCandidate struct {
	URL      string
	Title    string
	Position int
}

// Characteristic is one label/value attribute row from a product page.
type Characteristic struct {
	Label string
	Value string
}

// Characteristics preserves page presentation order, which plain maps lose.
// It marshals to a JSON object with keys in insertion order.
type Characteristics []Characteristic

func (c Characteristics) Get(label string) (string, bool) {
	for _, item := range c {
		if item.Label == label {
			return item.Value, true
		}
	}
	return "", false
}

// Set overwrites an existing label in place or appends a new one.
func (c *Characteristics) Set(label, value string) {
	for i, item := range *c {
		if item.Label == label {
			(*c)[i].Value = value
			return
		}
	}
	*c = append(*c, Characteristic{Label: label, Value: value})
}

func (c Characteristics) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, item := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(item.Label)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(item.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *Characteristics) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("characteristics: expected JSON object, got %v", tok)
	}

	out := Characteristics{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var value string
		if err := dec.Decode(&value); err != nil {
			// Non-string values are kept as their raw JSON encoding.
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return err
			}
			value = string(raw)
		}
		out = append(out, Characteristic{Label: key, Value: value})
	}
	*c = out
	return nil
}

// CanonicalProduct is the normalized record produced by the pipeline.
// ProductCode and Name are mandatory; everything else is best effort.
type CanonicalProduct struct {
	Name              string          `json:"name"`
	ProductCode       string          `json:"product_code"`
	SourceURL         string          `json:"source_url"`
	Price             *float64        `json:"price,omitempty"`
	SalePrice         *float64        `json:"sale_price,omitempty"`
	Currency          string          `json:"currency,omitempty"`
	Availability      Availability    `json:"availability,omitempty"`
	Manufacturer      string          `json:"manufacturer,omitempty"`
	Color             string          `json:"color,omitempty"`
	Storage           string          `json:"storage,omitempty"`
	ScreenDiagonal    string          `json:"screen_diagonal,omitempty"`
	DisplayResolution string          `json:"display_resolution,omitempty"`
	ReviewCount       int             `json:"review_count"`
	Images            []string        `json:"images"`
	Characteristics   Characteristics `json:"characteristics"`
	Metadata          map[string]any  `json:"metadata,omitempty"`
}

// PersistedProduct is a CanonicalProduct plus the identity and timestamps the
// upsert gateway assigned.
type PersistedProduct struct {
	ID string `json:"id"`
	CanonicalProduct
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *CanonicalProduct) Validate() []string {
	var problems []string
	if p.ProductCode == "" {
		problems = append(problems, "product_code is required")
	}
	if p.Name == "" {
		problems = append(problems, "name is required")
	}
	if p.Price != nil && *p.Price < 0 {
		problems = append(problems, "price must be non-negative")
	}
	if p.SalePrice != nil && *p.SalePrice < 0 {
		problems = append(problems, "sale_price must be non-negative")
	}
	if p.Price != nil && p.SalePrice != nil && *p.SalePrice > *p.Price {
		problems = append(problems, "sale_price must not exceed price")
	}
	if p.ReviewCount < 0 {
		problems = append(problems, "review_count must be non-negative")
	}
	return problems
}

// ParseAvailability maps schema.org availability values (bare or URL-prefixed)
// onto the canonical set. The second return is false for unrecognized input.
func ParseAvailability(raw string) (Availability, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, prefix := range []string{"https://schema.org/", "http://schema.org/", "schema.org/"} {
		if strings.HasPrefix(trimmed, prefix) {
			trimmed = trimmed[len(prefix):]
			break
		}
	}
	switch trimmed {
	case "InStock", "InStoreOnly", "OnlineOnly", "LimitedAvailability":
		return AvailabilityInStock, true
	case "OutOfStock", "SoldOut":
		return AvailabilityOutOfStock, true
	case "PreOrder", "PreSale", "BackOrder":
		return AvailabilityPreorder, true
	case "Discontinued":
		return AvailabilityDiscontinued, true
	}
	return "", false
}
