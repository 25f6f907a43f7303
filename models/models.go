package models

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Default drop thresholds applied when a product does not configure its own.
const (
	DefaultMinAbsoluteDrop = 20.0
	DefaultMinPercentDrop  = 0.08
)

// Extraction source tags recorded on every observation.
const (
	SourceJSONLD = "jsonld"
	SourceDOM    = "dom"
	SourceAPI    = "api"
)

// Thresholds is the pair of minimum drop requirements for a product.
// Both must be met for a drop to be reportable.
type Thresholds struct {
	MinAbsoluteDrop float64 `json:"min_abs" yaml:"min_abs"`
	MinPercentDrop  float64 `json:"min_pct" yaml:"min_pct"`
}

// DefaultThresholds returns the system-wide default threshold pair.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinAbsoluteDrop: DefaultMinAbsoluteDrop,
		MinPercentDrop:  DefaultMinPercentDrop,
	}
}

// ProductSpec is a tracked product loaded from configuration.
// Specs are immutable for the duration of a scan run.
type ProductSpec struct {
	ID         string     `json:"id" yaml:"id"`
	URLs       []string   `json:"links" yaml:"links"`
	Currency   string     `json:"currency,omitempty" yaml:"currency"`
	Thresholds Thresholds `json:"thresholds" yaml:"thresholds"`
	Owner      string     `json:"owner,omitempty" yaml:"owner"`
}

// PriceObservation is one recorded price reading for a product at a retailer.
// Observations are append-only: created once, never updated or deleted.
type PriceObservation struct {
	ID         int64     `json:"id" db:"id"`
	ProductID  string    `json:"product_id" db:"product_id"`
	RetailerID string    `json:"retailer_id" db:"retailer_id"`
	URL        string    `json:"url" db:"url"`
	Timestamp  time.Time `json:"ts" db:"ts"`
	Price      float64   `json:"price" db:"price"`
	Currency   string    `json:"currency" db:"currency"`
	ListPrice  *float64  `json:"list_price,omitempty" db:"list_price"`
	InStock    *bool     `json:"in_stock,omitempty" db:"in_stock"`
	Source     string    `json:"source" db:"source"`
	Signature  string    `json:"signature" db:"signature"`
}

// DropEvent is a detected, reportable price drop. Invariant: NewPrice < OldPrice.
type DropEvent struct {
	ID            int64     `json:"id" db:"id"`
	ProductID     string    `json:"product_id" db:"product_id"`
	RetailerID    string    `json:"retailer_id" db:"retailer_id"`
	Timestamp     time.Time `json:"ts" db:"ts"`
	OldPrice      float64   `json:"old_price" db:"old_price"`
	NewPrice      float64   `json:"new_price" db:"new_price"`
	PercentChange float64   `json:"pct_change" db:"pct_change"`
	Reason        string    `json:"reason" db:"reason"`
}

// NewDropEvent builds a drop event with the standard reason string.
func NewDropEvent(productID, retailerID string, oldPrice, newPrice, pctDrop float64) *DropEvent {
	return &DropEvent{
		ProductID:     productID,
		RetailerID:    retailerID,
		Timestamp:     time.Now(),
		OldPrice:      oldPrice,
		NewPrice:      newPrice,
		PercentChange: pctDrop,
		Reason:        fmt.Sprintf("last %.2f → %.2f (-%.1f%%)", oldPrice, newPrice, pctDrop*100),
	}
}

// Signature computes the deterministic content signature over the four fields
// that define a reading. Two observations built from identical inputs always
// share a signature; changing any field changes it. Used for change detection
// and auditing, not for deduplicating storage rows.
func Signature(rawURL string, price float64, currency string, listPrice *float64) string {
	list := ""
	if listPrice != nil {
		list = strconv.FormatFloat(*listPrice, 'f', -1, 64)
	}
	data := fmt.Sprintf("%s|%s|%s|%s",
		rawURL, strconv.FormatFloat(price, 'f', -1, 64), currency, list)
	sum := sha1.Sum([]byte(data))
	return hex.EncodeToString(sum[:])
}

// RetailerID derives the retailer identifier from a product URL: the lowercased
// host with any leading "www." stripped.
func RetailerID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Host)
	return strings.TrimPrefix(host, "www.")
}

// ResultStatus tags the outcome of scraping one URL.
type ResultStatus int

const (
	// StatusObserved means a price observation was produced.
	StatusObserved ResultStatus = iota
	// StatusSkipped means the retailer is intentionally unsupported. Not an error.
	StatusSkipped
	// StatusFailed means the fetch or extraction genuinely failed.
	StatusFailed
)

// ScrapeResult is the tagged outcome of running an adapter against one URL.
// Callers branch on Status instead of sniffing error types.
type ScrapeResult struct {
	Status      ResultStatus
	Observation *PriceObservation
	SkipReason  string
	Err         error
}

// Observed wraps a successful observation.
func Observed(obs *PriceObservation) ScrapeResult {
	return ScrapeResult{Status: StatusObserved, Observation: obs}
}

// Skipped marks a URL as intentionally unsupported.
func Skipped(reason string) ScrapeResult {
	return ScrapeResult{Status: StatusSkipped, SkipReason: reason}
}

// Failed wraps a fetch or extraction error.
func Failed(err error) ScrapeResult {
	return ScrapeResult{Status: StatusFailed, Err: err}
}

// ProductSummary is the reporting view of one product: lowest ever and most
// recent price seen across all retailers.
type ProductSummary struct {
	ProductID    string   `json:"product_id"`
	LowestPrice  *float64 `json:"lowest_price"`
	CurrentPrice *float64 `json:"current_price"`
}
