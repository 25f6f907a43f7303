package services

import (
	"errors"
	"testing"
	"time"

	"pricewatch/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePriceLog struct {
	price float64
	known bool
	err   error
}

func (f *fakePriceLog) LastPrice(string) (float64, bool, error) {
	return f.price, f.known, f.err
}

// fakeAlertLog mimics the dedup guard: repeat alerts at a price already seen
// inside the window are refused.
type fakeAlertLog struct {
	recorded []*models.DropEvent
	err      error
}

func (f *fakeAlertLog) RecordIfNotAlerted(event *models.DropEvent, window time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	cutoff := time.Now().Add(-window)
	for _, prev := range f.recorded {
		if prev.NewPrice == event.NewPrice && prev.Timestamp.After(cutoff) {
			return false, nil
		}
	}
	f.recorded = append(f.recorded, event)
	return true, nil
}

func specWith(minAbs, minPct float64) *models.ProductSpec {
	return &models.ProductSpec{
		ID:         "cam-1",
		Thresholds: models.Thresholds{MinAbsoluteDrop: minAbs, MinPercentDrop: minPct},
	}
}

func observationAt(price float64) *models.PriceObservation {
	return &models.PriceObservation{
		ProductID:  "cam-1",
		RetailerID: "shop.example.com",
		Price:      price,
		Currency:   "CAD",
		Timestamp:  time.Now(),
	}
}

func TestEvaluateReportsQualifyingDrop(t *testing.T) {
	alerts := &fakeAlertLog{}
	detector := NewDropDetector(&fakePriceLog{price: 100, known: true}, alerts, time.Hour)

	event, err := detector.Evaluate(specWith(10, 0.05), observationAt(80))
	require.NoError(t, err)
	require.NotNil(t, event)

	assert.Equal(t, "cam-1", event.ProductID)
	assert.Equal(t, "shop.example.com", event.RetailerID)
	assert.Equal(t, 100.0, event.OldPrice)
	assert.Equal(t, 80.0, event.NewPrice)
	assert.InDelta(t, 0.2, event.PercentChange, 0.0001)
	assert.Contains(t, event.Reason, "100.00")
	assert.Contains(t, event.Reason, "80.00")
	assert.Len(t, alerts.recorded, 1)
}

func TestEvaluateRequiresBothThresholds(t *testing.T) {
	tests := []struct {
		name           string
		minAbs, minPct float64
		lastPrice      float64
		newPrice       float64
	}{
		// 5 absolute clears 3 but 5% misses 10%.
		{"percent short", 3, 0.10, 100, 95},
		// 30% clears 10% but 3 absolute misses 20.
		{"absolute short", 20, 0.10, 10, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detector := NewDropDetector(&fakePriceLog{price: tt.lastPrice, known: true}, &fakeAlertLog{}, time.Hour)

			event, err := detector.Evaluate(specWith(tt.minAbs, tt.minPct), observationAt(tt.newPrice))
			require.NoError(t, err)
			assert.Nil(t, event)
		})
	}
}

func TestEvaluateFirstObservationNeverAlerts(t *testing.T) {
	detector := NewDropDetector(&fakePriceLog{known: false}, &fakeAlertLog{}, time.Hour)

	event, err := detector.Evaluate(specWith(0, 0), observationAt(80))
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestEvaluatePriceIncreaseIsSilent(t *testing.T) {
	detector := NewDropDetector(&fakePriceLog{price: 80, known: true}, &fakeAlertLog{}, time.Hour)

	event, err := detector.Evaluate(specWith(10, 0.05), observationAt(100))
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestEvaluateSuppressesRepeatWithinWindow(t *testing.T) {
	alerts := &fakeAlertLog{}
	detector := NewDropDetector(&fakePriceLog{price: 100, known: true}, alerts, time.Hour)
	spec := specWith(10, 0.05)

	first, err := detector.Evaluate(spec, observationAt(80))
	require.NoError(t, err)
	require.NotNil(t, first)

	// Same resulting price again inside the window: suppressed.
	second, err := detector.Evaluate(spec, observationAt(80))
	require.NoError(t, err)
	assert.Nil(t, second)
	assert.Len(t, alerts.recorded, 1)

	// A different resulting price is a new event.
	third, err := detector.Evaluate(spec, observationAt(75))
	require.NoError(t, err)
	assert.NotNil(t, third)
	assert.Len(t, alerts.recorded, 2)
}

func TestEvaluateAlertsAgainAfterWindow(t *testing.T) {
	alerts := &fakeAlertLog{
		recorded: []*models.DropEvent{
			{ProductID: "cam-1", NewPrice: 80, Timestamp: time.Now().Add(-2 * time.Hour)},
		},
	}
	detector := NewDropDetector(&fakePriceLog{price: 100, known: true}, alerts, time.Hour)

	event, err := detector.Evaluate(specWith(10, 0.05), observationAt(80))
	require.NoError(t, err)
	assert.NotNil(t, event)
}

func TestEvaluatePropagatesStorageErrors(t *testing.T) {
	wantErr := errors.New("connection reset")

	t.Run("price log", func(t *testing.T) {
		detector := NewDropDetector(&fakePriceLog{err: wantErr}, &fakeAlertLog{}, time.Hour)
		_, err := detector.Evaluate(specWith(10, 0.05), observationAt(80))
		assert.ErrorIs(t, err, wantErr)
	})

	t.Run("alert log", func(t *testing.T) {
		detector := NewDropDetector(&fakePriceLog{price: 100, known: true}, &fakeAlertLog{err: wantErr}, time.Hour)
		_, err := detector.Evaluate(specWith(10, 0.05), observationAt(80))
		assert.ErrorIs(t, err, wantErr)
	})
}
