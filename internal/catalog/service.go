package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrServiceNotSupported is returned when a category/sub-option pair has no price.
var ErrServiceNotSupported = errors.New("catalog: service not supported")

// Entry is a purchasable service and its fixed price in major currency units.
type Entry struct {
	Category      string
	CategoryLabel string
	SubOption     string
	Label         string
	Price         decimal.Decimal
}

// Key returns the lookup key of the entry.
func (e Entry) Key() string { return Key(e.Category, e.SubOption) }

// Key builds the composite lookup key. It is a literal concatenation so that
// prices stay keyed exactly as they are published to the checkout form.
func Key(category, subOption string) string {
	return category + "-" + subOption
}

// Catalog is an immutable service price table. It is safe for concurrent use.
type Catalog struct {
	entries map[string]Entry
	order   []string
}

// New validates entries and builds a Catalog.
func New(entries []Entry) (*Catalog, error) {
	c := &Catalog{entries: make(map[string]Entry, len(entries)), order: make([]string, 0, len(entries))}
	for _, e := range entries {
		if strings.TrimSpace(e.Category) == "" || strings.TrimSpace(e.SubOption) == "" {
			return nil, fmt.Errorf("catalog: entry %q has an empty category or sub-option", e.Key())
		}
		if !e.Price.IsPositive() {
			return nil, fmt.Errorf("catalog: entry %q must have a positive price", e.Key())
		}
		key := e.Key()
		if _, dup := c.entries[key]; dup {
			return nil, fmt.Errorf("catalog: duplicate entry %q", key)
		}
		c.entries[key] = e
		c.order = append(c.order, key)
	}
	return c, nil
}

// MustNew is New but panics on invalid input.
func MustNew(entries []Entry) *Catalog {
	c, err := New(entries)
	if err != nil {
		panic(err)
	}
	return c
}

// PriceFor resolves the price of a service. The catalog is the only source
// of truth for prices.
func (c *Catalog) PriceFor(category, subOption string) (decimal.Decimal, error) {
	e, ok := c.Lookup(category, subOption)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrServiceNotSupported, Key(category, subOption))
	}
	return e.Price, nil
}

// Lookup returns the entry for the pair, if any.
func (c *Catalog) Lookup(category, subOption string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	e, ok := c.entries[Key(category, subOption)]
	return e, ok
}

// Entries returns all entries in declaration order.
func (c *Catalog) Entries() []Entry {
	if c == nil {
		return nil
	}
	out := make([]Entry, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.entries[key])
	}
	return out
}

// Len reports the number of entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}
