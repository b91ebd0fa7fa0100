package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharacteristics_PreservesOrder(t *testing.T) {
	var c Characteristics
	c.Set("Колір", "Black")
	c.Set("Вбудована пам'ять", "128 GB")
	c.Set("Діагональ екрана", "6.1")

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t,
		`{"Колір":"Black","Вбудована пам'ять":"128 GB","Діагональ екрана":"6.1"}`,
		string(data))

	var decoded Characteristics
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, c, decoded)
}

func TestCharacteristics_SetOverwritesInPlace(t *testing.T) {
	var c Characteristics
	c.Set("Колір", "Black")
	c.Set("Стан", "Новий")
	c.Set("Колір", "Blue")

	require.Len(t, c, 2)
	value, ok := c.Get("Колір")
	require.True(t, ok)
	assert.Equal(t, "Blue", value)
	assert.Equal(t, "Колір", c[0].Label)
}

func TestParseAvailability(t *testing.T) {
	testCases := []struct {
		raw        string
		want       Availability
		recognized bool
	}{
		{"https://schema.org/InStock", AvailabilityInStock, true},
		{"http://schema.org/OutOfStock", AvailabilityOutOfStock, true},
		{"schema.org/PreOrder", AvailabilityPreorder, true},
		{"InStock", AvailabilityInStock, true},
		{"LimitedAvailability", AvailabilityInStock, true},
		{"SoldOut", AvailabilityOutOfStock, true},
		{"BackOrder", AvailabilityPreorder, true},
		{"Discontinued", AvailabilityDiscontinued, true},
		{"  InStock  ", AvailabilityInStock, true},
		{"Very Soon", "", false},
		{"", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			got, recognized := ParseAvailability(tc.raw)
			assert.Equal(t, tc.recognized, recognized)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCanonicalProduct_Validate(t *testing.T) {
	price := 999.0
	sale := 1099.0

	t.Run("valid product", func(t *testing.T) {
		p := &CanonicalProduct{Name: "Phone X", ProductCode: "ABC123"}
		assert.Empty(t, p.Validate())
	})

	t.Run("missing mandatory fields", func(t *testing.T) {
		p := &CanonicalProduct{}
		problems := p.Validate()
		assert.Contains(t, problems, "product_code is required")
		assert.Contains(t, problems, "name is required")
	})

	t.Run("sale price above price", func(t *testing.T) {
		p := &CanonicalProduct{
			Name: "Phone X", ProductCode: "ABC123",
			Price: &price, SalePrice: &sale,
		}
		assert.Contains(t, p.Validate(), "sale_price must not exceed price")
	})
}
