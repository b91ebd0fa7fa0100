package database

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkovalenko/brain-scraper/internal/config"
	"github.com/dkovalenko/brain-scraper/internal/models"
)

// setupTestDB connects to the database named by TEST_DB_* variables and skips
// the test when none is configured.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping database tests")
	}
	port, _ := strconv.Atoi(os.Getenv("TEST_DB_PORT"))
	if port == 0 {
		port = 5432
	}

	db, err := New(context.Background(), config.DatabaseConfig{
		Host:     host,
		Port:     port,
		User:     getenvDefault("TEST_DB_USER", "postgres"),
		Password: os.Getenv("TEST_DB_PASSWORD"),
		DBName:   getenvDefault("TEST_DB_NAME", "brain_products_test"),
		SSLMode:  "disable",
		MaxConns: 2,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))

	t.Cleanup(func() {
		_, _ = db.Exec(context.Background(), "DELETE FROM products WHERE product_code LIKE 'TEST-%'")
		db.Close()
	})
	return db
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	price := 999.0
	var chars models.Characteristics
	chars.Set("Колір", "Black")

	product := &models.CanonicalProduct{
		Name:            "Phone X",
		ProductCode:     "TEST-ABC123",
		SourceURL:       "https://brain.com.ua/phone-x-p1.html",
		Price:           &price,
		Currency:        "UAH",
		Availability:    models.AvailabilityInStock,
		Images:          []string{"https://cdn.example.com/1.jpg"},
		Characteristics: chars,
	}

	t.Run("insert assigns identity", func(t *testing.T) {
		persisted, err := db.Upsert(ctx, product)
		require.NoError(t, err)
		assert.NotEmpty(t, persisted.ID)
		assert.False(t, persisted.CreatedAt.IsZero())
		assert.Equal(t, persisted.CreatedAt, persisted.UpdatedAt)
	})

	t.Run("same code replaces instead of duplicating", func(t *testing.T) {
		first, err := db.Upsert(ctx, product)
		require.NoError(t, err)

		updated := *product
		updated.Name = "Phone X (updated)"
		newPrice := 899.0
		updated.Price = &newPrice

		second, err := db.Upsert(ctx, &updated)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.True(t, second.UpdatedAt.After(second.CreatedAt) || second.UpdatedAt.Equal(second.CreatedAt))

		stored, err := db.GetByCode(ctx, product.ProductCode)
		require.NoError(t, err)
		assert.Equal(t, "Phone X (updated)", stored.Name)
		require.NotNil(t, stored.Price)
		assert.Equal(t, 899.0, *stored.Price)
	})

	t.Run("round trip preserves json fields", func(t *testing.T) {
		stored, err := db.GetByCode(ctx, product.ProductCode)
		require.NoError(t, err)
		assert.Equal(t, product.Images, stored.Images)
		color, ok := stored.Characteristics.Get("Колір")
		require.True(t, ok)
		assert.Equal(t, "Black", color)
	})
}

func TestGetByCode_NotFound(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.GetByCode(context.Background(), "TEST-MISSING")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	for _, code := range []string{"TEST-L1", "TEST-L2"} {
		_, err := db.Upsert(ctx, &models.CanonicalProduct{
			Name:        "Product " + code,
			ProductCode: code,
			SourceURL:   "https://brain.com.ua/" + code + "-p1.html",
			Images:      []string{},
		})
		require.NoError(t, err)
	}

	products, err := db.List(ctx, 100, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(products), 2)
}
