package menu

import (
	"errors"
	"testing"

	"tableside/internal/domain"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	if c.Len() == 0 {
		t.Fatal("default catalog is empty")
	}
	d, err := c.Lookup("Tomato Soup")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !d.Vegan || d.Price != 6.50 {
		t.Fatalf("unexpected dish: %+v", d)
	}
}

func TestLookupUnknown(t *testing.T) {
	c := Default()
	if _, err := c.Lookup("Unicorn Steak"); !errors.Is(err, domain.ErrUnknownDish) {
		t.Fatalf("expected ErrUnknownDish, got %v", err)
	}
	// Matching is exact, no normalization.
	if _, err := c.Lookup("tomato soup"); !errors.Is(err, domain.ErrUnknownDish) {
		t.Fatalf("expected ErrUnknownDish for wrong case, got %v", err)
	}
}

func TestSpiceLevelBounds(t *testing.T) {
	_, err := FromYAML([]byte("Dragon Wings:\n  price: 9.00\n  spice_level: 4\n"))
	if err == nil {
		t.Fatal("expected rejection of spice level 4")
	}
}

func TestNegativePrice(t *testing.T) {
	_, err := FromYAML([]byte("Free Lunch:\n  price: -1.00\n"))
	if err == nil {
		t.Fatal("expected rejection of negative price")
	}
}

func TestEmptyMenu(t *testing.T) {
	if _, err := FromYAML([]byte("")); err == nil {
		t.Fatal("expected rejection of empty menu")
	}
}

func TestNamesSorted(t *testing.T) {
	c := Default()
	names := c.Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("names not sorted: %q before %q", names[i-1], names[i])
		}
	}
}
