// Package menu loads the dish catalog. The catalog is read once at startup
// and never mutated by the running core; editing the file is an offline job.
package menu

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"tableside/internal/domain"
)

// Dish holds the attributes of one menu entry.
type Dish struct {
	Price      float64 `yaml:"price" json:"price"`
	GlutenFree bool    `yaml:"gluten_free" json:"gluten_free"`
	Vegan      bool    `yaml:"vegan" json:"vegan"`
	Vegetarian bool    `yaml:"vegetarian" json:"vegetarian"`
	SpiceLevel int     `yaml:"spice_level" json:"spice_level"`
}

// Catalog is an immutable name -> dish mapping.
type Catalog struct {
	dishes map[string]Dish
}

// FromYAML parses and validates a catalog document.
func FromYAML(data []byte) (*Catalog, error) {
	dishes := map[string]Dish{}
	if err := yaml.Unmarshal(data, &dishes); err != nil {
		return nil, fmt.Errorf("parse menu: %w", err)
	}
	for name, d := range dishes {
		if name == "" {
			return nil, fmt.Errorf("menu contains a dish with an empty name")
		}
		if d.Price < 0 {
			return nil, fmt.Errorf("dish %q: negative price", name)
		}
		if d.SpiceLevel < 0 || d.SpiceLevel > 3 {
			return nil, fmt.Errorf("dish %q: spice level %d out of range 0..3", name, d.SpiceLevel)
		}
	}
	if len(dishes) == 0 {
		return nil, fmt.Errorf("menu is empty")
	}
	return &Catalog{dishes: dishes}, nil
}

// FromFile loads a catalog from disk.
func FromFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read menu file: %w", err)
	}
	return FromYAML(data)
}

// Lookup resolves a dish by exact name.
func (c *Catalog) Lookup(name string) (Dish, error) {
	d, ok := c.dishes[name]
	if !ok {
		return Dish{}, fmt.Errorf("%w: %q", domain.ErrUnknownDish, name)
	}
	return d, nil
}

// Names returns dish names in stable alphabetical order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.dishes))
	for name := range c.dishes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of dishes.
func (c *Catalog) Len() int { return len(c.dishes) }

const defaultTemplate = `Tomato Soup:
  price: 6.50
  gluten_free: true
  vegan: true
  vegetarian: true
  spice_level: 0
Spaghetti Bolognese:
  price: 14.90
  gluten_free: false
  vegan: false
  vegetarian: false
  spice_level: 0
Margherita Pizza:
  price: 11.00
  gluten_free: false
  vegan: false
  vegetarian: true
  spice_level: 0
Chicken Curry:
  price: 15.50
  gluten_free: true
  vegan: false
  vegetarian: false
  spice_level: 2
Chili con Carne:
  price: 13.80
  gluten_free: true
  vegan: false
  vegetarian: false
  spice_level: 3
Garden Salad:
  price: 8.20
  gluten_free: true
  vegan: true
  vegetarian: true
  spice_level: 0
Tiramisu:
  price: 7.40
  gluten_free: false
  vegan: false
  vegetarian: true
  spice_level: 0
`

// DefaultYAML returns the bootstrap menu document written by `ts menu init`.
func DefaultYAML() []byte { return []byte(defaultTemplate) }

// Default returns the built-in catalog, used when no menu file exists yet.
func Default() *Catalog {
	c, err := FromYAML(DefaultYAML())
	if err != nil {
		panic(fmt.Sprintf("default menu template invalid: %v", err))
	}
	return c
}
