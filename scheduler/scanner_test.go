package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pricewatch/models"
	"pricewatch/scraper"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedAdapter returns a canned result per URL.
type scriptedAdapter struct {
	results map[string]models.ScrapeResult
}

func (s *scriptedAdapter) Scrape(_ context.Context, url string, _ *models.ProductSpec) models.ScrapeResult {
	result, ok := s.results[url]
	if !ok {
		return models.Failed(errors.New("unscripted url: " + url))
	}
	return result
}

func observed(productID string, price float64) models.ScrapeResult {
	return models.Observed(&models.PriceObservation{
		ProductID:  productID,
		RetailerID: "shop.example.com",
		Price:      price,
		Currency:   "CAD",
	})
}

type recordingStore struct {
	mu       sync.Mutex
	appended []*models.PriceObservation
	err      error
}

func (r *recordingStore) Append(obs *models.PriceObservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.appended = append(r.appended, obs)
	return nil
}

type recordingDetector struct {
	mu        sync.Mutex
	evaluated []*models.PriceObservation
	event     *models.DropEvent
	err       error
}

func (r *recordingDetector) Evaluate(_ *models.ProductSpec, obs *models.PriceObservation) (*models.DropEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluated = append(r.evaluated, obs)
	return r.event, r.err
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []*models.DropEvent
	err    error
}

func (r *recordingNotifier) NotifyDrop(_ context.Context, event *models.DropEvent, _ *models.PriceObservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func registryWith(results map[string]models.ScrapeResult) *scraper.Registry {
	return scraper.NewRegistry(&scriptedAdapter{results: results})
}

func TestRunStoresEveryObservationAndEvaluatesLowest(t *testing.T) {
	specs := []models.ProductSpec{
		{ID: "cam-1", URLs: []string{"https://a.example.com/p", "https://b.example.com/p"}},
	}
	registry := registryWith(map[string]models.ScrapeResult{
		"https://a.example.com/p": observed("cam-1", 899),
		"https://b.example.com/p": observed("cam-1", 649),
	})
	store := &recordingStore{}
	detector := &recordingDetector{}

	summary, err := NewScanner(registry, store, detector, nil, 2).Run(context.Background(), specs)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Products)
	assert.Equal(t, 2, summary.Observations)
	assert.Len(t, store.appended, 2)

	require.Len(t, detector.evaluated, 1)
	assert.Equal(t, 649.0, detector.evaluated[0].Price)
}

func TestRunIsolatesPerURLFailures(t *testing.T) {
	specs := []models.ProductSpec{
		{ID: "cam-1", URLs: []string{"https://a.example.com/p", "https://b.example.com/p", "https://c.example.com/p"}},
	}
	registry := registryWith(map[string]models.ScrapeResult{
		"https://a.example.com/p": observed("cam-1", 899),
		"https://b.example.com/p": models.Failed(errors.New("boom")),
		"https://c.example.com/p": observed("cam-1", 749),
	})
	store := &recordingStore{}
	detector := &recordingDetector{}

	summary, err := NewScanner(registry, store, detector, nil, 1).Run(context.Background(), specs)
	require.NoError(t, err, "one bad URL must not abort the run")

	assert.Equal(t, 2, summary.Observations)
	assert.Equal(t, 1, summary.Failures)
	assert.Len(t, store.appended, 2)
	assert.Len(t, detector.evaluated, 1, "detection still runs on the surviving prices")
}

func TestRunCountsSkipsSeparatelyFromFailures(t *testing.T) {
	specs := []models.ProductSpec{
		{ID: "cam-1", URLs: []string{"https://www.amazon.ca/dp/B0TEST", "https://a.example.com/p"}},
	}
	registry := registryWith(map[string]models.ScrapeResult{
		"https://a.example.com/p": observed("cam-1", 899),
	})
	registry.Register("amazon.ca", scraper.NewAmazonAdapter())
	store := &recordingStore{}

	summary, err := NewScanner(registry, store, &recordingDetector{}, nil, 1).Run(context.Background(), specs)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Failures)
	assert.Equal(t, 1, summary.Observations)
}

func TestRunSkipsDetectionWithoutObservations(t *testing.T) {
	specs := []models.ProductSpec{
		{ID: "cam-1", URLs: []string{"https://a.example.com/p"}},
	}
	registry := registryWith(map[string]models.ScrapeResult{
		"https://a.example.com/p": models.Failed(errors.New("boom")),
	})
	detector := &recordingDetector{}

	summary, err := NewScanner(registry, &recordingStore{}, detector, nil, 1).Run(context.Background(), specs)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failures)
	assert.Empty(t, detector.evaluated)
}

func TestRunNotifiesOnDrop(t *testing.T) {
	specs := []models.ProductSpec{
		{ID: "cam-1", URLs: []string{"https://a.example.com/p"}},
	}
	registry := registryWith(map[string]models.ScrapeResult{
		"https://a.example.com/p": observed("cam-1", 649),
	})
	event := models.NewDropEvent("cam-1", "shop.example.com", 899, 649, 0.278)
	notifier := &recordingNotifier{}

	summary, err := NewScanner(registry, &recordingStore{}, &recordingDetector{event: event}, notifier, 1).Run(context.Background(), specs)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Drops)
	require.Len(t, notifier.events, 1)
	assert.Same(t, event, notifier.events[0])
}

func TestRunNotificationFailureIsNotFatal(t *testing.T) {
	specs := []models.ProductSpec{
		{ID: "cam-1", URLs: []string{"https://a.example.com/p"}},
	}
	registry := registryWith(map[string]models.ScrapeResult{
		"https://a.example.com/p": observed("cam-1", 649),
	})
	event := models.NewDropEvent("cam-1", "shop.example.com", 899, 649, 0.278)
	notifier := &recordingNotifier{err: errors.New("telegram down")}

	summary, err := NewScanner(registry, &recordingStore{}, &recordingDetector{event: event}, notifier, 1).Run(context.Background(), specs)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Drops)
}

func TestRunAbortsOnStorageError(t *testing.T) {
	specs := []models.ProductSpec{
		{ID: "cam-1", URLs: []string{"https://a.example.com/p"}},
		{ID: "cam-2", URLs: []string{"https://b.example.com/p"}},
	}
	registry := registryWith(map[string]models.ScrapeResult{
		"https://a.example.com/p": observed("cam-1", 649),
		"https://b.example.com/p": observed("cam-2", 199),
	})
	store := &recordingStore{err: errors.New("disk full")}

	_, err := NewScanner(registry, store, &recordingDetector{}, nil, 1).Run(context.Background(), specs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestRunScansProductsConcurrently(t *testing.T) {
	var specs []models.ProductSpec
	results := make(map[string]models.ScrapeResult)
	for _, id := range []string{"cam-1", "cam-2", "cam-3", "cam-4", "cam-5"} {
		url := "https://shop.example.com/" + id
		specs = append(specs, models.ProductSpec{ID: id, URLs: []string{url}})
		results[url] = observed(id, 100)
	}
	store := &recordingStore{}
	detector := &recordingDetector{}

	summary, err := NewScanner(registryWith(results), store, detector, nil, 3).Run(context.Background(), specs)
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Products)
	assert.Equal(t, 5, summary.Observations)
	assert.Len(t, detector.evaluated, 5)
}
