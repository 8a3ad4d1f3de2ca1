// Package sampler draws a deterministic stratified sample from the catalog.
// Each category is sampled independently with its own derived seed, so the
// selection for one category never depends on which other categories exist.
package sampler

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"

	"github.com/safebench/mmbench/internal/domain"
)

var (
	ErrInvalidRate  = errors.New("sampling rate must be in (0, 1]")
	ErrEmptyCatalog = errors.New("catalog category has no entries")
)

// CategoryStat records original and sampled counts for one category.
type CategoryStat struct {
	Original int
	Sampled  int
}

// Selection is the reproducible output of Select: per-category ordered
// entry subsets plus the rate and seed that produced them.
type Selection struct {
	Rate       float64
	Seed       int64
	Stats      map[string]CategoryStat
	categories []string
	entries    map[string][]*domain.CatalogEntry
}

// Categories returns selected category names in sorted order.
func (s *Selection) Categories() []string {
	out := make([]string, len(s.categories))
	copy(out, s.categories)
	return out
}

// Entries returns the selected entries of one category in original order.
func (s *Selection) Entries(category string) []*domain.CatalogEntry {
	return s.entries[category]
}

// Total returns the selected entry count across all categories.
func (s *Selection) Total() int {
	n := 0
	for _, es := range s.entries {
		n += len(es)
	}
	return n
}

// Select draws round(rate*n) entries without replacement from every
// category, preserving intra-category order. rate 1.0 returns the full
// catalog untouched. Identical (catalog, rate, seed) inputs always yield
// an identical selection regardless of catalog iteration order.
func Select(cat *domain.Catalog, rate float64, seed int64) (*Selection, error) {
	if rate <= 0 || rate > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidRate, rate)
	}

	sel := &Selection{
		Rate:    rate,
		Seed:    seed,
		Stats:   make(map[string]CategoryStat),
		entries: make(map[string][]*domain.CatalogEntry),
	}
	sel.categories = cat.Categories()
	sort.Strings(sel.categories)
	if len(sel.categories) == 0 {
		return nil, fmt.Errorf("%w: catalog is empty", ErrEmptyCatalog)
	}

	for _, category := range sel.categories {
		all := cat.Entries(category)
		if len(all) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrEmptyCatalog, category)
		}

		var picked []*domain.CatalogEntry
		if rate == 1.0 {
			picked = append(picked, all...)
		} else {
			picked = sampleCategory(all, rate, categorySeed(seed, category))
		}
		sel.entries[category] = picked
		sel.Stats[category] = CategoryStat{Original: len(all), Sampled: len(picked)}
	}
	return sel, nil
}

// sampleCategory builds a selection mask from a shuffled index prefix, then
// walks the entries in original order keeping the masked ones.
func sampleCategory(all []*domain.CatalogEntry, rate float64, seed int64) []*domain.CatalogEntry {
	n := len(all)
	count := int(math.Round(rate * float64(n)))
	if count < 0 {
		count = 0
	}
	if count > n {
		count = n
	}

	rng := rand.New(rand.NewSource(seed))
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	rng.Shuffle(n, func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	selected := make(map[int]bool, count)
	for _, idx := range indices[:count] {
		selected[idx] = true
	}

	picked := make([]*domain.CatalogEntry, 0, count)
	for i, e := range all {
		if selected[i] {
			picked = append(picked, e)
		}
	}
	return picked
}

// categorySeed mixes the global seed with a stable hash of the category
// name. Using FNV keeps the derivation identical across processes.
func categorySeed(seed int64, category string) int64 {
	h := fnv.New64a()
	h.Write([]byte(category))
	return int64(h.Sum64() ^ uint64(seed))
}
