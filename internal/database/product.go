package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dkovalenko/brain-scraper/internal/models"
)

var (
	// ErrPersistence wraps storage failures surfaced to the pipeline.
	ErrPersistence = errors.New("persistence failed")
	// ErrNotFound means no product matches the requested key.
	ErrNotFound = errors.New("product not found")
)

const upsertQuery = `
	INSERT INTO products (
		id, product_code, name, source_url, price, sale_price, currency,
		availability, manufacturer, color, storage, screen_diagonal,
		display_resolution, review_count, images, characteristics, metadata
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT (product_code) DO UPDATE SET
		name = EXCLUDED.name,
		source_url = EXCLUDED.source_url,
		price = EXCLUDED.price,
		sale_price = EXCLUDED.sale_price,
		currency = EXCLUDED.currency,
		availability = EXCLUDED.availability,
		manufacturer = EXCLUDED.manufacturer,
		color = EXCLUDED.color,
		storage = EXCLUDED.storage,
		screen_diagonal = EXCLUDED.screen_diagonal,
		display_resolution = EXCLUDED.display_resolution,
		review_count = EXCLUDED.review_count,
		images = EXCLUDED.images,
		characteristics = EXCLUDED.characteristics,
		metadata = EXCLUDED.metadata,
		updated_at = CURRENT_TIMESTAMP
	RETURNING id, created_at, updated_at`

// Upsert inserts the product or fully replaces the stored record with the
// same product code. Absent optional fields overwrite stored ones; the latest
// scrape is authoritative.
func (db *DB) Upsert(ctx context.Context, p *models.CanonicalProduct) (*models.PersistedProduct, error) {
	imagesJSON, err := json.Marshal(p.Images)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal images: %v", ErrPersistence, err)
	}
	characteristicsJSON, err := json.Marshal(p.Characteristics)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal characteristics: %v", ErrPersistence, err)
	}
	var metadataJSON []byte
	if p.Metadata != nil {
		metadataJSON, err = json.Marshal(p.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to marshal metadata: %v", ErrPersistence, err)
		}
	}

	persisted := &models.PersistedProduct{CanonicalProduct: *p}
	err = db.pool.QueryRow(ctx, upsertQuery,
		uuid.New().String(), p.ProductCode, p.Name, p.SourceURL,
		p.Price, p.SalePrice, p.Currency, string(p.Availability),
		p.Manufacturer, p.Color, p.Storage, p.ScreenDiagonal,
		p.DisplayResolution, p.ReviewCount, imagesJSON, characteristicsJSON, metadataJSON,
	).Scan(&persisted.ID, &persisted.CreatedAt, &persisted.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to upsert product %s: %v", ErrPersistence, p.ProductCode, err)
	}

	return persisted, nil
}

const selectColumns = `
	id, product_code, name, source_url, price, sale_price, currency,
	availability, manufacturer, color, storage, screen_diagonal,
	display_resolution, review_count, images, characteristics, metadata,
	created_at, updated_at`

// GetByCode fetches one product by its source product code.
func (db *DB) GetByCode(ctx context.Context, productCode string) (*models.PersistedProduct, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM products WHERE product_code = $1`, productCode)

	product, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: product_code %s", ErrNotFound, productCode)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get product %s: %v", ErrPersistence, productCode, err)
	}
	return product, nil
}

// List returns products ordered by most recently updated.
func (db *DB) List(ctx context.Context, limit, offset int) ([]*models.PersistedProduct, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM products ORDER BY updated_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list products: %v", ErrPersistence, err)
	}
	defer rows.Close()

	var products []*models.PersistedProduct
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan product row: %v", ErrPersistence, err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: row iteration failed: %v", ErrPersistence, err)
	}
	return products, nil
}

func scanProduct(row pgx.Row) (*models.PersistedProduct, error) {
	var (
		p                   models.PersistedProduct
		availability        string
		imagesJSON          []byte
		characteristicsJSON []byte
		metadataJSON        []byte
	)

	err := row.Scan(
		&p.ID, &p.ProductCode, &p.Name, &p.SourceURL, &p.Price, &p.SalePrice,
		&p.Currency, &availability, &p.Manufacturer, &p.Color, &p.Storage,
		&p.ScreenDiagonal, &p.DisplayResolution, &p.ReviewCount,
		&imagesJSON, &characteristicsJSON, &metadataJSON,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Availability = models.Availability(availability)
	if err := json.Unmarshal(imagesJSON, &p.Images); err != nil {
		return nil, fmt.Errorf("failed to unmarshal images: %w", err)
	}
	if err := json.Unmarshal(characteristicsJSON, &p.Characteristics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal characteristics: %w", err)
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &p.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &p, nil
}
