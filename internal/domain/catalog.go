package domain

// CatalogEntry is one evaluable unit loaded from the benchmark catalog.
// Immutable once loaded.
type CatalogEntry struct {
	ID       string
	Category string
	Question string
	ImageRef string
	Meta     map[string]string
}

// Catalog is the full unsampled task set partitioned by category.
type Catalog struct {
	entries    map[string][]*CatalogEntry
	categories []string
}

// NewCatalog builds a catalog from entries, preserving the order entries
// appear within each category. Category listing order is insertion order.
func NewCatalog(entries []*CatalogEntry) *Catalog {
	c := &Catalog{entries: make(map[string][]*CatalogEntry)}
	for _, e := range entries {
		if _, ok := c.entries[e.Category]; !ok {
			c.categories = append(c.categories, e.Category)
		}
		c.entries[e.Category] = append(c.entries[e.Category], e)
	}
	return c
}

// Categories returns category names in insertion order.
func (c *Catalog) Categories() []string {
	out := make([]string, len(c.categories))
	copy(out, c.categories)
	return out
}

// Entries returns the ordered entries of one category.
func (c *Catalog) Entries(category string) []*CatalogEntry {
	return c.entries[category]
}

// Len returns the total entry count across all categories.
func (c *Catalog) Len() int {
	n := 0
	for _, es := range c.entries {
		n += len(es)
	}
	return n
}
