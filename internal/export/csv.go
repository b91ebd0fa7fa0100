// Package export renders persisted products as CSV for downstream analysis.
// Structured fields (images, characteristics, metadata) are embedded as JSON
// strings so a row stays self-contained.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dkovalenko/brain-scraper/internal/models"
)

var csvHeader = []string{
	"id", "product_code", "name", "source_url", "price", "sale_price",
	"currency", "availability", "manufacturer", "color", "storage",
	"screen_diagonal", "display_resolution", "review_count",
	"images", "characteristics", "metadata", "created_at", "updated_at",
}

// WriteCSV streams products to w, header first. The writer is flushed before
// returning.
func WriteCSV(w io.Writer, products []*models.PersistedProduct) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, p := range products {
		record, err := csvRecord(p)
		if err != nil {
			return err
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row for %s: %w", p.ProductCode, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func csvRecord(p *models.PersistedProduct) ([]string, error) {
	imagesJSON, err := json.Marshal(p.Images)
	if err != nil {
		return nil, fmt.Errorf("failed to encode images for %s: %w", p.ProductCode, err)
	}
	characteristicsJSON, err := json.Marshal(p.Characteristics)
	if err != nil {
		return nil, fmt.Errorf("failed to encode characteristics for %s: %w", p.ProductCode, err)
	}

	metadata := ""
	if p.Metadata != nil {
		metadataJSON, err := json.Marshal(p.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode metadata for %s: %w", p.ProductCode, err)
		}
		metadata = string(metadataJSON)
	}

	return []string{
		p.ID,
		p.ProductCode,
		p.Name,
		p.SourceURL,
		formatPrice(p.Price),
		formatPrice(p.SalePrice),
		p.Currency,
		string(p.Availability),
		p.Manufacturer,
		p.Color,
		p.Storage,
		p.ScreenDiagonal,
		p.DisplayResolution,
		strconv.Itoa(p.ReviewCount),
		string(imagesJSON),
		string(characteristicsJSON),
		metadata,
		p.CreatedAt.Format(time.RFC3339),
		p.UpdatedAt.Format(time.RFC3339),
	}, nil
}

func formatPrice(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
