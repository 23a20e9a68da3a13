// Package catalog provides the default product categories shared by every user.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/ogulcanaydogan/stocksync/pkg/model"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type file struct {
	Categories []entry `yaml:"categories"`
}

type entry struct {
	Name string `yaml:"name"`
	Icon string `yaml:"icon"`
}

// Defaults returns the built-in default categories.
func Defaults() ([]model.Category, error) {
	return Parse(defaultsYAML)
}

// LoadFile reads default categories from a YAML file.
func LoadFile(path string) ([]model.Category, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories file %s: %w", path, err)
	}
	cats, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("categories file %s: %w", path, err)
	}
	return cats, nil
}

// Parse decodes a category list. Names must be present and unique.
func Parse(data []byte) ([]model.Category, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse categories: %w", err)
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("no categories defined")
	}

	seen := make(map[string]bool, len(f.Categories))
	out := make([]model.Category, 0, len(f.Categories))
	for i, e := range f.Categories {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("category %d: missing name", i+1)
		}
		if seen[strings.ToLower(name)] {
			return nil, fmt.Errorf("duplicate category %q", name)
		}
		seen[strings.ToLower(name)] = true

		icon := e.Icon
		if icon == "" {
			icon = model.DefaultIcon
		}
		out = append(out, model.Category{Name: name, Icon: icon, IsDefault: true})
	}
	return out, nil
}
