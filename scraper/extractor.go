package scraper

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"pricewatch/models"

	"github.com/PuerkitoBio/goquery"
)

var numberRegex = regexp.MustCompile(`\d+\.?\d*`)

// Quote is the normalized output of a single extraction: a price plus
// whatever optional context the page exposed.
type Quote struct {
	Price     float64
	Currency  string
	ListPrice *float64
	InStock   *bool
	Source    string
}

// Extractor converts page content into a price quote by running parsing
// strategies in strict priority order: JSON-LD structured data first (least
// ambiguous when present), then the microdata price attribute, then Open
// Graph meta tags, then a class-name heuristic. A failure inside one
// strategy counts as "no match" and the chain moves on.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the first quote any strategy produces, or an
// ExtractionError when every strategy comes up empty.
func (e *Extractor) Extract(content, pageURL string) (*Quote, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, &models.ExtractionError{URL: pageURL}
	}

	strategies := []func(*goquery.Document) *Quote{
		extractJSONLD,
		extractMicrodata,
		extractOpenGraph,
		extractHeuristic,
	}

	for _, strategy := range strategies {
		if quote := strategy(doc); quote != nil {
			return quote, nil
		}
	}

	return nil, &models.ExtractionError{URL: pageURL}
}

// extractJSONLD looks for a Schema.org Product object in embedded JSON-LD,
// including objects nested inside @graph containers or top-level arrays.
func extractJSONLD(doc *goquery.Document) *Quote {
	var quote *Quote

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var raw any
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return true // malformed script, keep scanning
		}
		if product := findProduct(raw); product != nil {
			quote = productQuote(product)
		}
		return quote == nil
	})

	return quote
}

// findProduct walks a decoded JSON-LD value looking for a Product object.
func findProduct(raw any) map[string]any {
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			if product := findProduct(item); product != nil {
				return product
			}
		}
	case map[string]any:
		if isProductType(v["@type"]) {
			return v
		}
		if graph, ok := v["@graph"].([]any); ok {
			for _, item := range graph {
				if m, ok := item.(map[string]any); ok && isProductType(m["@type"]) {
					return m
				}
			}
		}
	}
	return nil
}

func isProductType(t any) bool {
	switch v := t.(type) {
	case string:
		return v == "Product"
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == "Product" {
				return true
			}
		}
	}
	return false
}

// productQuote reads price and priceCurrency from a Product's offers.
// A list of offers collapses to its first element. A non-numeric or missing
// price is "no match", not an error.
func productQuote(product map[string]any) *Quote {
	offers := product["offers"]
	if list, ok := offers.([]any); ok {
		if len(list) == 0 {
			return nil
		}
		offers = list[0]
	}

	offer, ok := offers.(map[string]any)
	if !ok {
		return nil
	}

	price, ok := numericValue(offer["price"])
	if !ok || price <= 0 {
		return nil
	}

	currency, _ := offer["priceCurrency"].(string)
	return &Quote{Price: price, Currency: currency, Source: models.SourceJSONLD}
}

// extractMicrodata reads the content value of an element carrying the
// itemprop="price" micro-annotation. Only elements that have a content
// attribute count; an annotated element without one must not shadow a later
// one that carries the value.
func extractMicrodata(doc *goquery.Document) *Quote {
	content, exists := doc.Find(`[itemprop="price"][content]`).First().Attr("content")
	if !exists {
		return nil
	}

	price, ok := parseNumber(content)
	if !ok || price <= 0 {
		return nil
	}

	return &Quote{Price: price, Source: models.SourceDOM}
}

// extractOpenGraph reads the product:price:amount / product:price:currency
// meta tags.
func extractOpenGraph(doc *goquery.Document) *Quote {
	amount, exists := doc.Find(`meta[property="product:price:amount"]`).First().Attr("content")
	if !exists {
		return nil
	}

	price, ok := parseNumber(amount)
	if !ok || price <= 0 {
		return nil
	}

	currency, _ := doc.Find(`meta[property="product:price:currency"]`).First().Attr("content")
	return &Quote{Price: price, Currency: currency, Source: models.SourceDOM}
}

// extractHeuristic scans elements whose class attribute contains "price" but
// not "compare" and takes the first strictly positive numeric substring of
// their text.
func extractHeuristic(doc *goquery.Document) *Quote {
	var quote *Quote

	doc.Find(`[class*="price"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		if strings.Contains(class, "compare") {
			return true
		}

		text := strings.ReplaceAll(strings.TrimSpace(s.Text()), ",", "")
		match := numberRegex.FindString(text)
		if match == "" {
			return true
		}

		price, err := strconv.ParseFloat(match, 64)
		if err != nil || price <= 0 {
			return true
		}

		quote = &Quote{Price: price, Source: models.SourceDOM}
		return false
	})

	return quote
}

// parseNumber parses a price string, stripping thousands separators.
func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	price, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

// numericValue coerces a JSON-LD price value, which may arrive as a JSON
// number or a string with thousands separators.
func numericValue(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case string:
		return parseNumber(val)
	default:
		return 0, false
	}
}
