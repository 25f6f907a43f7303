package scheduler

import (
	"context"
	"log"
	"sync"

	"pricewatch/models"
	"pricewatch/scraper"
	"pricewatch/services"
)

const defaultScanWorkers = 4

// ObservationLog is what the scanner needs from observation storage.
type ObservationLog interface {
	Append(obs *models.PriceObservation) error
}

// Detector evaluates a product's newest reading for a reportable drop.
type Detector interface {
	Evaluate(spec *models.ProductSpec, obs *models.PriceObservation) (*models.DropEvent, error)
}

// Scanner runs one scan pass over the configured products: every URL is
// scraped through the adapter registry, all valid observations are appended,
// and each product is evaluated once on its lowest observed price.
//
// Products are scanned by a bounded worker pool; fetch and extract touch no
// shared state, so they are safe to run in parallel. Per-URL failures are
// isolated: one bad URL never aborts the run. Storage failures do abort it,
// since dedup and history depend on durable writes.
type Scanner struct {
	registry *scraper.Registry
	store    ObservationLog
	detector Detector
	notifier services.Notifier
	workers  int
}

// NewScanner wires a scanner. Non-positive workers falls back to 4.
func NewScanner(registry *scraper.Registry, store ObservationLog, detector Detector, notifier services.Notifier, workers int) *Scanner {
	if workers <= 0 {
		workers = defaultScanWorkers
	}
	return &Scanner{
		registry: registry,
		store:    store,
		detector: detector,
		notifier: notifier,
		workers:  workers,
	}
}

// RunSummary reports what a scan pass did.
type RunSummary struct {
	Products     int `json:"products"`
	Observations int `json:"observations"`
	Skipped      int `json:"skipped"`
	Failures     int `json:"failures"`
	Drops        int `json:"drops"`
}

// Run scans all products. Returns early on context cancellation or on the
// first storage error.
func (s *Scanner) Run(ctx context.Context, specs []models.ProductSpec) (*RunSummary, error) {
	log.Printf("🚀 Starting price scan for %d products", len(specs))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	summary := &RunSummary{Products: len(specs)}
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		fatalErr error
	)
	sem := make(chan struct{}, s.workers)

	for i := range specs {
		spec := &specs[i]

		select {
		case sem <- struct{}{}:
		case <-runCtx.Done():
			wg.Wait()
			mu.Lock()
			defer mu.Unlock()
			if fatalErr != nil {
				return summary, fatalErr
			}
			return summary, runCtx.Err()
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := s.scanProduct(runCtx, spec)

			mu.Lock()
			defer mu.Unlock()
			summary.Observations += result.observations
			summary.Skipped += result.skipped
			summary.Failures += result.failures
			if result.drop != nil {
				summary.Drops++
			}
			if err != nil && fatalErr == nil {
				fatalErr = err
				cancel() // storage is unreliable, stop the run
			}
		}()
	}

	wg.Wait()

	if fatalErr != nil {
		return summary, fatalErr
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	log.Printf("🏁 Scan complete: %d observations, %d skipped, %d failures, %d drops",
		summary.Observations, summary.Skipped, summary.Failures, summary.Drops)
	return summary, nil
}

type productResult struct {
	observations int
	skipped      int
	failures     int
	drop         *models.DropEvent
}

// scanProduct collects prices from every URL of one product, stores them all,
// and evaluates the lowest one for a drop. The returned error is fatal for
// the whole run (storage failures only); per-URL problems are counted, not
// propagated.
func (s *Scanner) scanProduct(ctx context.Context, spec *models.ProductSpec) (productResult, error) {
	log.Printf("📦 Scanning product %s (%d URLs)", spec.ID, len(spec.URLs))

	var res productResult
	var observations []*models.PriceObservation

	for _, url := range spec.URLs {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		result := s.registry.Lookup(url).Scrape(ctx, url, spec)
		switch result.Status {
		case models.StatusObserved:
			obs := result.Observation
			log.Printf("   %s: %.2f %s from %s via %s", spec.ID, obs.Price, obs.Currency, obs.RetailerID, obs.Source)
			observations = append(observations, obs)
		case models.StatusSkipped:
			log.Printf("   %s: skipped %s (%s)", spec.ID, url, result.SkipReason)
			res.skipped++
		case models.StatusFailed:
			log.Printf("   %s: failed %s: %v", spec.ID, url, result.Err)
			res.failures++
		}
	}

	if len(observations) == 0 {
		log.Printf("   %s: no valid prices found", spec.ID)
		return res, nil
	}

	lowest := observations[0]
	for _, obs := range observations[1:] {
		if obs.Price < lowest.Price {
			lowest = obs
		}
	}
	log.Printf("   %s: best price %.2f %s from %s", spec.ID, lowest.Price, lowest.Currency, lowest.RetailerID)

	// Every observation is stored, even when identical to the last reading.
	for _, obs := range observations {
		if err := s.store.Append(obs); err != nil {
			return res, err
		}
		res.observations++
	}

	event, err := s.detector.Evaluate(spec, lowest)
	if err != nil {
		return res, err
	}
	if event == nil {
		return res, nil
	}

	res.drop = event
	log.Printf("🔥 PRICE DROP for %s: %s", spec.ID, event.Reason)

	if s.notifier != nil {
		if err := s.notifier.NotifyDrop(ctx, event, lowest); err != nil {
			log.Printf("   %s: notification failed: %v", spec.ID, err)
		}
	}

	return res, nil
}
