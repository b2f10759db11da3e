package catalog

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Products []Item `yaml:"products"`
}

// FileSource reads items from a YAML file:
//
//	products:
//	  - price_id: price_123
//	    title: Hamster
//	    emoji: "🐹"
//	    unit_amount: 500
type FileSource struct {
	Path string
}

// Load implements Source
func (s FileSource) Load(_ context.Context) ([]Item, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML decodes a catalog document.
func ParseYAML(data []byte) ([]Item, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}
	if len(f.Products) == 0 {
		return nil, fmt.Errorf("catalog file lists no products")
	}
	return f.Products, nil
}
