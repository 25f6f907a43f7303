package services

import (
	"log"
	"time"

	"pricewatch/models"
)

// DefaultDedupWindow is the trailing span during which a repeat alert at the
// same resulting price is suppressed.
const DefaultDedupWindow = 12 * time.Hour

// PriceLog is the slice of observation storage the detector reads.
type PriceLog interface {
	// LastPrice returns the price known before the current scan: the
	// second-most-recent observation for the product.
	LastPrice(productID string) (float64, bool, error)
}

// AlertLog persists drop events with duplicate suppression.
type AlertLog interface {
	// RecordIfNotAlerted appends the event unless an alert at the same
	// resulting price exists within the window. Check and insert are atomic.
	RecordIfNotAlerted(event *models.DropEvent, window time.Duration) (bool, error)
}

// DropDetector decides whether a new observation constitutes a reportable
// price drop. Stateless across calls except via the store.
type DropDetector struct {
	prices      PriceLog
	alerts      AlertLog
	dedupWindow time.Duration
}

// NewDropDetector creates a detector. A non-positive window falls back to
// the 12 hour default.
func NewDropDetector(prices PriceLog, alerts AlertLog, dedupWindow time.Duration) *DropDetector {
	if dedupWindow <= 0 {
		dedupWindow = DefaultDedupWindow
	}
	return &DropDetector{
		prices:      prices,
		alerts:      alerts,
		dedupWindow: dedupWindow,
	}
}

// Evaluate compares the observation's price against the last stored price
// for the product. A drop is reportable only when BOTH thresholds clear: a
// large percentage drop on a cheap item or a large absolute drop on an
// expensive one does not qualify alone. Qualifying drops pass the dedup
// guard before being persisted and returned; everything else yields nil.
func (d *DropDetector) Evaluate(spec *models.ProductSpec, obs *models.PriceObservation) (*models.DropEvent, error) {
	lastPrice, ok, err := d.prices.LastPrice(spec.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// First time tracking this product.
		return nil, nil
	}

	absoluteDrop := lastPrice - obs.Price
	percentDrop := 0.0
	if lastPrice > 0 {
		percentDrop = absoluteDrop / lastPrice
	}

	if absoluteDrop < spec.Thresholds.MinAbsoluteDrop || percentDrop < spec.Thresholds.MinPercentDrop {
		return nil, nil
	}

	event := models.NewDropEvent(spec.ID, obs.RetailerID, lastPrice, obs.Price, percentDrop)

	recorded, err := d.alerts.RecordIfNotAlerted(event, d.dedupWindow)
	if err != nil {
		return nil, err
	}
	if !recorded {
		log.Printf("Drop for %s to %.2f already alerted recently, suppressing", spec.ID, obs.Price)
		return nil, nil
	}

	return event, nil
}
