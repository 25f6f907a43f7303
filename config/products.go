package config

import (
	"fmt"
	"os"
	"sort"

	"pricewatch/models"

	"gopkg.in/yaml.v3"
)

// productsFile matches both supported YAML layouts.
//
// Minimal:
//
//	product:
//	  HF8:
//	    link:
//	      - https://link_a
//	      - https://link_b
//
// Normalized:
//
//	products:
//	  - id: HF8
//	    currency: CAD
//	    links: [https://link_a, https://link_b]
//	    thresholds: {min_abs: 20, min_pct: 0.08}
type productsFile struct {
	Product  map[string]minimalProduct `yaml:"product"`
	Products []productEntry            `yaml:"products"`
}

type minimalProduct struct {
	Link       stringList       `yaml:"link"`
	Currency   string           `yaml:"currency"`
	Thresholds *thresholdsEntry `yaml:"thresholds"`
	Owner      string           `yaml:"owner"`
}

type productEntry struct {
	ID         string           `yaml:"id"`
	Links      []string         `yaml:"links"`
	Currency   string           `yaml:"currency"`
	Thresholds *thresholdsEntry `yaml:"thresholds"`
	Owner      string           `yaml:"owner"`
}

// thresholdsEntry keeps each key optional so a partially specified block
// still picks up the default for the key it leaves out.
type thresholdsEntry struct {
	MinAbs *float64 `yaml:"min_abs"`
	MinPct *float64 `yaml:"min_pct"`
}

// stringList accepts a single scalar or a sequence.
type stringList []string

func (l *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var single string
		if err := value.Decode(&single); err != nil {
			return err
		}
		*l = []string{single}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*l = list
		return nil
	default:
		return fmt.Errorf("link must be a string or a list of strings")
	}
}

// LoadProducts reads and normalizes the product configuration file.
func LoadProducts(path string) ([]models.ProductSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read products config: %v", err)
	}

	var file productsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse products config: %v", err)
	}

	switch {
	case len(file.Product) > 0:
		return normalizeMinimal(file.Product), nil
	case len(file.Products) > 0:
		return parseNormalized(file.Products)
	default:
		return nil, fmt.Errorf("config must contain either 'product' or 'products' key")
	}
}

func normalizeMinimal(entries map[string]minimalProduct) []models.ProductSpec {
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	specs := make([]models.ProductSpec, 0, len(entries))
	for _, id := range ids {
		entry := entries[id]
		specs = append(specs, models.ProductSpec{
			ID:         id,
			URLs:       entry.Link,
			Currency:   entry.Currency,
			Thresholds: thresholdsOrDefault(entry.Thresholds),
			Owner:      entry.Owner,
		})
	}
	return specs
}

func parseNormalized(entries []productEntry) ([]models.ProductSpec, error) {
	specs := make([]models.ProductSpec, 0, len(entries))
	for _, entry := range entries {
		if entry.ID == "" {
			return nil, fmt.Errorf("product entry missing id")
		}
		specs = append(specs, models.ProductSpec{
			ID:         entry.ID,
			URLs:       entry.Links,
			Currency:   entry.Currency,
			Thresholds: thresholdsOrDefault(entry.Thresholds),
			Owner:      entry.Owner,
		})
	}
	return specs, nil
}

func thresholdsOrDefault(t *thresholdsEntry) models.Thresholds {
	out := models.DefaultThresholds()
	if t == nil {
		return out
	}
	if t.MinAbs != nil {
		out.MinAbsoluteDrop = *t.MinAbs
	}
	if t.MinPct != nil {
		out.MinPercentDrop = *t.MinPct
	}
	return out
}
