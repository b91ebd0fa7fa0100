package extractor

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// productBlocks collects every schema.org Product node embedded in the page,
// in document order. Pages wrap nodes in "@graph" arrays, top-level lists, or
// bare objects; all three shapes are handled.
func productBlocks(doc *goquery.Document) []map[string]any {
	var blocks []map[string]any

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		var payload any
		if err := json.Unmarshal([]byte(sel.Text()), &payload); err != nil {
			return
		}

		var candidates []any
		switch node := payload.(type) {
		case map[string]any:
			if graph, ok := node["@graph"].([]any); ok {
				candidates = graph
			} else {
				candidates = []any{node}
			}
		case []any:
			candidates = node
		}

		for _, candidate := range candidates {
			obj, ok := candidate.(map[string]any)
			if !ok {
				continue
			}
			if isProductNode(obj) {
				blocks = append(blocks, obj)
			}
		}
	})

	return blocks
}

func isProductNode(node map[string]any) bool {
	switch t := node["@type"].(type) {
	case string:
		return t == "Product"
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s == "Product" {
				return true
			}
		}
	}
	return false
}

// mergeProductBlocks deep-merges Product nodes key-wise, last write wins.
// The offers key is special: offer entries are merged by index so a later
// block that only restates availability does not clobber an earlier price.
func mergeProductBlocks(blocks []map[string]any) map[string]any {
	if len(blocks) == 0 {
		return nil
	}

	merged := make(map[string]any)
	for _, block := range blocks {
		for key, value := range block {
			if key == "offers" {
				merged[key] = mergeOffers(merged[key], value)
				continue
			}
			merged[key] = value
		}
	}
	return merged
}

func mergeOffers(existing, incoming any) any {
	existingList := offerList(existing)
	incomingList := offerList(incoming)
	if len(existingList) == 0 {
		return incoming
	}

	merged := make([]map[string]any, 0, max(len(existingList), len(incomingList)))
	for i := 0; i < max(len(existingList), len(incomingList)); i++ {
		offer := make(map[string]any)
		if i < len(existingList) {
			for k, v := range existingList[i] {
				offer[k] = v
			}
		}
		if i < len(incomingList) {
			for k, v := range incomingList[i] {
				offer[k] = v
			}
		}
		merged = append(merged, offer)
	}
	return merged
}

func offerList(value any) []map[string]any {
	switch v := value.(type) {
	case map[string]any:
		return []map[string]any{v}
	case []any:
		var out []map[string]any
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				out = append(out, obj)
			}
		}
		return out
	}
	return nil
}

// firstOffer returns offers[0] of the merged block, or nil.
func firstOffer(block map[string]any) map[string]any {
	offers := offerList(block["offers"])
	if len(offers) == 0 {
		return nil
	}
	return offers[0]
}

// brandName handles both {"brand": {"name": "..."}} and {"brand": "..."}.
func brandName(block map[string]any) string {
	switch brand := block["brand"].(type) {
	case map[string]any:
		if name, ok := brand["name"].(string); ok {
			return strings.TrimSpace(name)
		}
	case string:
		return strings.TrimSpace(brand)
	}
	return ""
}

// imageURLs normalizes the image field, which is either a string or a list.
func imageURLs(block map[string]any) []string {
	switch imgs := block["image"].(type) {
	case string:
		if imgs != "" {
			return []string{imgs}
		}
	case []any:
		var out []string
		for _, item := range imgs {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func aggregateReviewCount(block map[string]any) (int, bool) {
	aggregate, ok := block["aggregateRating"].(map[string]any)
	if !ok {
		return 0, false
	}
	switch count := aggregate["reviewCount"].(type) {
	case float64:
		return int(count), true
	case string:
		var n int
		for _, r := range count {
			if r < '0' || r > '9' {
				return 0, false
			}
			n = n*10 + int(r-'0')
		}
		return n, count != ""
	}
	return 0, false
}

func stringField(block map[string]any, key string) string {
	if s, ok := block[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
