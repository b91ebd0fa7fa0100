package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dkovalenko/brain-scraper/internal/models"
)

// characteristicSelectors lists the container/label/value triples used across
// page revisions. The first selector family that yields rows wins.
var characteristicSelectors = []struct {
	container string
	label     string
	value     string
}{
	{
		"div.product-characteristic__item",
		"div.product-characteristic__title",
		"div.product-characteristic__value",
	},
	{
		"div.product-properties__item",
		"div.product-properties__title",
		"div.product-properties__value",
	},
	{
		"li.characteristics__list-item",
		"span.characteristics__name",
		"span.characteristics__value",
	},
}

// extractCharacteristics scans the DOM for label/value attribute rows in page
// order. Falls back to table-based layouts when the div layouts are absent.
func extractCharacteristics(doc *goquery.Document) models.Characteristics {
	for _, sel := range characteristicSelectors {
		var rows models.Characteristics
		doc.Find(sel.container).Each(func(_ int, container *goquery.Selection) {
			label := cleanText(container.Find(sel.label).First().Text())
			value := cleanText(container.Find(sel.value).First().Text())
			if label != "" && value != "" {
				rows.Set(label, value)
			}
		})
		if len(rows) > 0 {
			return rows
		}
	}

	var rows models.Characteristics
	doc.Find("table.characteristics tr, table.product-characteristics tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td, th")
		if cells.Length() < 2 {
			return
		}
		label := cleanText(cells.Eq(0).Text())
		value := cleanText(cells.Eq(1).Text())
		if label != "" && value != "" {
			rows.Set(label, value)
		}
	})
	return rows
}

// extractDOMPrices reads visible price markup: the old-price block carries the
// pre-discount price when a discount is active.
func extractDOMPrices(doc *goquery.Document) (current, old string) {
	current = cleanText(doc.Find("div.br-pp-price span").First().Text())
	old = cleanText(doc.Find("div.old-price span").First().Text())
	return current, old
}

func extractDOMProductCode(doc *goquery.Document) string {
	return cleanText(doc.Find("#product_code .br-pr-code-val").First().Text())
}

func extractDOMManufacturer(doc *goquery.Document) string {
	vendor, _ := doc.Find("[data-vendor]").First().Attr("data-vendor")
	return cleanText(vendor)
}

// extractDOMReviewCount reads the review anchor text ("Відгуки (12)").
func extractDOMReviewCount(doc *goquery.Document) string {
	var text string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if strings.Contains(href, "#reviews") {
			text = cleanText(sel.Text())
			return false
		}
		return true
	})
	return text
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
