package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkovalenko/brain-scraper/internal/models"
)

func TestWriteCSV(t *testing.T) {
	price := 999.0
	var chars models.Characteristics
	chars.Set("Колір", "Black")

	products := []*models.PersistedProduct{
		{
			ID: "id-1",
			CanonicalProduct: models.CanonicalProduct{
				Name:            "Phone X",
				ProductCode:     "ABC123",
				SourceURL:       "https://brain.com.ua/phone-x-p1.html",
				Price:           &price,
				Currency:        "UAH",
				Availability:    models.AvailabilityInStock,
				ReviewCount:     12,
				Images:          []string{"https://cdn.example.com/1.jpg"},
				Characteristics: chars,
				Metadata:        map[string]any{"@type": "Product"},
			},
			CreatedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
			UpdatedAt: time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, products))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, csvHeader, records[0])

	row := records[1]
	assert.Equal(t, "id-1", row[0])
	assert.Equal(t, "ABC123", row[1])
	assert.Equal(t, "999.00", row[4])
	assert.Equal(t, "", row[5])
	assert.Equal(t, "in_stock", row[7])
	assert.Equal(t, "12", row[13])
	assert.Equal(t, `["https://cdn.example.com/1.jpg"]`, row[14])
	assert.Equal(t, `{"Колір":"Black"}`, row[15])
	assert.Equal(t, `{"@type":"Product"}`, row[16])
	assert.Equal(t, "2024-06-01T12:00:00Z", row[17])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, csvHeader, records[0])
}
