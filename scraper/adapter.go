package scraper

import (
	"context"
	"log"
	"math"
	"time"

	"pricewatch/models"
)

// Adapter turns one product URL into a scrape result. Implementations must
// report "intentionally unsupported" (Skipped) distinctly from real failures
// so callers can log skips without counting them as errors.
type Adapter interface {
	Scrape(ctx context.Context, url string, spec *models.ProductSpec) models.ScrapeResult
}

// Registry maps normalized hostnames to adapter implementations, with a
// generic fallback for everything unregistered.
type Registry struct {
	byHost   map[string]Adapter
	fallback Adapter
}

// NewRegistry creates a registry with the given fallback adapter.
func NewRegistry(fallback Adapter) *Registry {
	return &Registry{
		byHost:   make(map[string]Adapter),
		fallback: fallback,
	}
}

// Register binds an adapter to a hostname. Hosts are matched after
// normalization (lowercased, leading "www." stripped).
func (r *Registry) Register(host string, adapter Adapter) {
	r.byHost[host] = adapter
}

// Lookup returns the adapter for a URL's host, or the fallback.
func (r *Registry) Lookup(url string) Adapter {
	if adapter, ok := r.byHost[models.RetailerID(url)]; ok {
		return adapter
	}
	return r.fallback
}

// GenericAdapter fetches a page, runs the extraction chain, and builds a
// PriceObservation. Works against any retailer with structured or
// price-annotated markup.
type GenericAdapter struct {
	fetcher         *Fetcher
	extractor       *Extractor
	rates           RateProvider
	defaultCurrency string
	forceConvert    bool
}

// NewGenericAdapter wires the generic adapter. When forceConvert is set,
// prices detected in a non-default currency are converted into the default
// one through the rate provider.
func NewGenericAdapter(fetcher *Fetcher, extractor *Extractor, rates RateProvider, defaultCurrency string, forceConvert bool) *GenericAdapter {
	return &GenericAdapter{
		fetcher:         fetcher,
		extractor:       extractor,
		rates:           rates,
		defaultCurrency: defaultCurrency,
		forceConvert:    forceConvert,
	}
}

// Scrape fetches and extracts one URL into an observation.
func (a *GenericAdapter) Scrape(ctx context.Context, url string, spec *models.ProductSpec) models.ScrapeResult {
	content, err := a.fetcher.Fetch(ctx, url)
	if err != nil {
		return models.Failed(err)
	}

	quote, err := a.extractor.Extract(content, url)
	if err != nil {
		return models.Failed(err)
	}

	// Detected currency wins; fall back to the product's preferred currency,
	// then the system default.
	currency := quote.Currency
	if currency == "" {
		currency = spec.Currency
	}
	if currency == "" {
		currency = a.defaultCurrency
	}

	price := quote.Price
	if a.forceConvert && currency != a.defaultCurrency {
		if rate, ok := a.rates.Rate(currency, a.defaultCurrency); ok {
			log.Printf("Converting %s %.2f to %s at rate %.4f for %s",
				currency, price, a.defaultCurrency, rate, url)
			price *= rate
			currency = a.defaultCurrency
		} else {
			log.Printf("No conversion rate for %s/%s, keeping detected currency for %s",
				currency, a.defaultCurrency, url)
		}
	}

	// Prices are stored with two decimal places. Round here so the in-memory
	// value matches the stored one; otherwise conversion artifacts like
	// 100*1.4 = 139.99999999999997 break the dedup equality check.
	price = math.Round(price*100) / 100

	obs := &models.PriceObservation{
		ProductID:  spec.ID,
		RetailerID: models.RetailerID(url),
		URL:        url,
		Timestamp:  time.Now(),
		Price:      price,
		Currency:   currency,
		ListPrice:  quote.ListPrice,
		InStock:    quote.InStock,
		Source:     quote.Source,
		Signature:  models.Signature(url, price, currency, quote.ListPrice),
	}

	return models.Observed(obs)
}

// AmazonAdapter refuses Amazon links: scraping them needs PA-API or Keepa,
// so they are reported as intentionally skipped rather than failed.
type AmazonAdapter struct{}

func NewAmazonAdapter() *AmazonAdapter {
	return &AmazonAdapter{}
}

// Scrape always skips.
func (a *AmazonAdapter) Scrape(_ context.Context, url string, _ *models.ProductSpec) models.ScrapeResult {
	log.Printf("⚠️  amazon link skipped (use PA-API/Keepa): %s", url)
	return models.Skipped("amazon requires PA-API or Keepa")
}
