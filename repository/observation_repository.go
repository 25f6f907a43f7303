package repository

import (
	"database/sql"
	"time"

	"pricewatch/database"
	"pricewatch/models"
)

type ObservationRepository struct{}

func NewObservationRepository() *ObservationRepository {
	return &ObservationRepository{}
}

// Append inserts one immutable observation row and fills in its assigned
// ID and timestamp. Every observation is stored, even when identical to
// the previous reading.
func (r *ObservationRepository) Append(obs *models.PriceObservation) error {
	query := `
		INSERT INTO observations (product_id, retailer_id, url, ts, price, currency, list_price, in_stock, source, signature)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, ts
	`

	if obs.Timestamp.IsZero() {
		obs.Timestamp = time.Now()
	}

	err := database.DB.QueryRow(query,
		obs.ProductID, obs.RetailerID, obs.URL, obs.Timestamp,
		obs.Price, obs.Currency, obs.ListPrice, obs.InStock,
		obs.Source, obs.Signature,
	).Scan(&obs.ID, &obs.Timestamp)

	if err != nil {
		return &models.StorageError{Op: "append observation", Err: err}
	}

	return nil
}

// LastPrice returns the price of the second-most-recent observation for the
// product, ordered by timestamp descending. The newest row is skipped on
// purpose: the detector compares the just-inserted price against what was
// known before this scan. Returns ok=false when fewer than two rows exist.
func (r *ObservationRepository) LastPrice(productID string) (float64, bool, error) {
	query := `
		SELECT price FROM observations
		WHERE product_id = $1
		ORDER BY ts DESC
		LIMIT 1 OFFSET 1
	`

	var price float64
	err := database.DB.QueryRow(query, productID).Scan(&price)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, &models.StorageError{Op: "last price", Err: err}
	}

	return price, true, nil
}

// LowestPrice returns the lowest price ever observed for a product.
func (r *ObservationRepository) LowestPrice(productID string) (float64, bool, error) {
	query := `SELECT MIN(price) FROM observations WHERE product_id = $1`

	var price sql.NullFloat64
	err := database.DB.QueryRow(query, productID).Scan(&price)
	if err != nil {
		return 0, false, &models.StorageError{Op: "lowest price", Err: err}
	}
	if !price.Valid {
		return 0, false, nil
	}

	return price.Float64, true, nil
}

// CurrentPrice returns the most recent observed price for a product.
func (r *ObservationRepository) CurrentPrice(productID string) (float64, bool, error) {
	query := `
		SELECT price FROM observations
		WHERE product_id = $1
		ORDER BY ts DESC
		LIMIT 1
	`

	var price float64
	err := database.DB.QueryRow(query, productID).Scan(&price)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, &models.StorageError{Op: "current price", Err: err}
	}

	return price, true, nil
}

// History returns the most recent observations for a product, newest first.
func (r *ObservationRepository) History(productID string, limit int) ([]models.PriceObservation, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, product_id, retailer_id, url, ts, price, currency, list_price, in_stock, source, signature
		FROM observations
		WHERE product_id = $1
		ORDER BY ts DESC
		LIMIT $2
	`

	rows, err := database.DB.Query(query, productID, limit)
	if err != nil {
		return nil, &models.StorageError{Op: "history", Err: err}
	}
	defer rows.Close()

	var history []models.PriceObservation
	for rows.Next() {
		var obs models.PriceObservation
		err := rows.Scan(
			&obs.ID, &obs.ProductID, &obs.RetailerID, &obs.URL, &obs.Timestamp,
			&obs.Price, &obs.Currency, &obs.ListPrice, &obs.InStock,
			&obs.Source, &obs.Signature,
		)
		if err != nil {
			return nil, &models.StorageError{Op: "scan history row", Err: err}
		}
		history = append(history, obs)
	}

	return history, rows.Err()
}

// Summary returns lowest and current price per tracked product.
func (r *ObservationRepository) Summary() ([]models.ProductSummary, error) {
	query := `
		SELECT DISTINCT ON (product_id)
			product_id,
			MIN(price) OVER (PARTITION BY product_id) AS lowest_price,
			price AS current_price
		FROM observations
		ORDER BY product_id, ts DESC
	`

	rows, err := database.DB.Query(query)
	if err != nil {
		return nil, &models.StorageError{Op: "summary", Err: err}
	}
	defer rows.Close()

	var summaries []models.ProductSummary
	for rows.Next() {
		var s models.ProductSummary
		if err := rows.Scan(&s.ProductID, &s.LowestPrice, &s.CurrentPrice); err != nil {
			return nil, &models.StorageError{Op: "scan summary row", Err: err}
		}
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}
