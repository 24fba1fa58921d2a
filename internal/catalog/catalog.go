package catalog

import (
	"fmt"
	"sort"
)

// Entry is one discrete size choice within a series
type Entry struct {
	Diameter  float64 `json:"diameter" yaml:"diameter"`
	Roughness float64 `json:"roughness" yaml:"roughness"`
	Price     float64 `json:"price" yaml:"price"` // per unit length
}

// Series is a table of entries sorted ascending by diameter
type Series []Entry

// Catalog maps series names to their sorted tables
type Catalog map[string]Series

// New builds a catalog from unsorted rows, sorting every series by diameter.
// The input slices are not modified.
func New(rows map[string][]Entry) (Catalog, error) {
	c := make(Catalog, len(rows))
	for name, entries := range rows {
		if len(entries) == 0 {
			return nil, fmt.Errorf("series %q has no entries", name)
		}
		s := make(Series, len(entries))
		copy(s, entries)
		sort.SliceStable(s, func(i, j int) bool {
			return s[i].Diameter < s[j].Diameter
		})
		c[name] = s
	}
	return c, nil
}

// Series returns the sorted table for name
func (c Catalog) Series(name string) (Series, bool) {
	s, ok := c[name]
	return s, ok
}

// Names returns the series names in lexical order
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MaxIndex is the largest valid size index in the series
func (s Series) MaxIndex() int {
	return len(s) - 1
}

// UnitStep returns the price drop per unit length when stepping down from
// index i to i-1.
func (s Series) UnitStep(i int) float64 {
	if i <= 0 || i >= len(s) {
		return 0
	}
	return s[i].Price - s[i-1].Price
}

// CheckMonotonicPrice verifies that price does not decrease as diameter grows.
// Search heuristics that only ever enlarge sizes assume this holds.
func (s Series) CheckMonotonicPrice() error {
	for i := 1; i < len(s); i++ {
		if s[i].Price < s[i-1].Price {
			return &PriceOrderError{
				Index:    i,
				Diameter: s[i].Diameter,
				Price:    s[i].Price,
				Previous: s[i-1].Price,
			}
		}
	}
	return nil
}

// CheckMonotonicPrice runs the price check on every series
func (c Catalog) CheckMonotonicPrice() error {
	for _, name := range c.Names() {
		if err := c[name].CheckMonotonicPrice(); err != nil {
			return fmt.Errorf("series %q: %w", name, err)
		}
	}
	return nil
}

// PriceOrderError reports a larger size that is cheaper than the one before it
type PriceOrderError struct {
	Index    int
	Diameter float64
	Price    float64
	Previous float64
}

func (e *PriceOrderError) Error() string {
	return fmt.Sprintf("price %.4g at diameter %.4g (index %d) is below previous price %.4g",
		e.Price, e.Diameter, e.Index, e.Previous)
}
