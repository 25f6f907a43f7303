package repository

import (
	"time"

	"pricewatch/database"
	"pricewatch/models"
)

type AlertRepository struct{}

func NewAlertRepository() *AlertRepository {
	return &AlertRepository{}
}

// AppendAlert inserts one immutable alert row and fills in its assigned
// ID and timestamp.
func (r *AlertRepository) AppendAlert(event *models.DropEvent) error {
	query := `
		INSERT INTO alerts (product_id, retailer_id, ts, old_price, new_price, pct_change, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, ts
	`

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	err := database.DB.QueryRow(query,
		event.ProductID, event.RetailerID, event.Timestamp,
		event.OldPrice, event.NewPrice, event.PercentChange, event.Reason,
	).Scan(&event.ID, &event.Timestamp)

	if err != nil {
		return &models.StorageError{Op: "append alert", Err: err}
	}

	return nil
}

// AlreadyAlerted reports whether an alert with the same resulting price was
// recorded for this product within the trailing window.
func (r *AlertRepository) AlreadyAlerted(productID string, newPrice float64, window time.Duration) (bool, error) {
	query := `
		SELECT COUNT(*) FROM alerts
		WHERE product_id = $1
		AND new_price = $2
		AND ts > $3
	`

	var count int
	cutoff := time.Now().Add(-window)
	err := database.DB.QueryRow(query, productID, newPrice, cutoff).Scan(&count)
	if err != nil {
		return false, &models.StorageError{Op: "check recent alert", Err: err}
	}

	return count > 0, nil
}

// RecordIfNotAlerted runs the dedup check and the insert in one transaction,
// serialized per product with an advisory lock so two concurrent evaluations
// cannot both pass the check and insert duplicate alerts. Returns true when
// the alert was recorded, false when a recent alert at the same price
// suppressed it.
func (r *AlertRepository) RecordIfNotAlerted(event *models.DropEvent, window time.Duration) (bool, error) {
	tx, err := database.DB.Begin()
	if err != nil {
		return false, &models.StorageError{Op: "begin dedup transaction", Err: err}
	}
	defer tx.Rollback()

	// Serialize check-and-insert for this product.
	if _, err := tx.Exec(`SELECT pg_advisory_xact_lock(hashtext($1))`, event.ProductID); err != nil {
		return false, &models.StorageError{Op: "acquire product lock", Err: err}
	}

	var count int
	cutoff := time.Now().Add(-window)
	err = tx.QueryRow(`
		SELECT COUNT(*) FROM alerts
		WHERE product_id = $1 AND new_price = $2 AND ts > $3
	`, event.ProductID, event.NewPrice, cutoff).Scan(&count)
	if err != nil {
		return false, &models.StorageError{Op: "check recent alert", Err: err}
	}
	if count > 0 {
		return false, nil
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	err = tx.QueryRow(`
		INSERT INTO alerts (product_id, retailer_id, ts, old_price, new_price, pct_change, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, ts
	`,
		event.ProductID, event.RetailerID, event.Timestamp,
		event.OldPrice, event.NewPrice, event.PercentChange, event.Reason,
	).Scan(&event.ID, &event.Timestamp)
	if err != nil {
		return false, &models.StorageError{Op: "append alert", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return false, &models.StorageError{Op: "commit alert", Err: err}
	}

	return true, nil
}

// ListAlerts returns the most recent alerts for a product, newest first.
func (r *AlertRepository) ListAlerts(productID string, limit int) ([]models.DropEvent, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, product_id, retailer_id, ts, old_price, new_price, pct_change, reason
		FROM alerts
		WHERE product_id = $1
		ORDER BY ts DESC
		LIMIT $2
	`

	rows, err := database.DB.Query(query, productID, limit)
	if err != nil {
		return nil, &models.StorageError{Op: "list alerts", Err: err}
	}
	defer rows.Close()

	var events []models.DropEvent
	for rows.Next() {
		var event models.DropEvent
		err := rows.Scan(
			&event.ID, &event.ProductID, &event.RetailerID, &event.Timestamp,
			&event.OldPrice, &event.NewPrice, &event.PercentChange, &event.Reason,
		)
		if err != nil {
			return nil, &models.StorageError{Op: "scan alert row", Err: err}
		}
		events = append(events, event)
	}

	return events, rows.Err()
}
