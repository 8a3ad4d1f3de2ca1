// Package queue turns a sample selection or full catalog into the ordered,
// immutable task sequence for one run.
package queue

import (
	"sort"

	"github.com/safebench/mmbench/internal/domain"
	"github.com/safebench/mmbench/internal/sampler"
)

// Build assigns sequence numbers over the selection: categories in sorted
// order, entries in selection order within each category.
func Build(sel *sampler.Selection) []*domain.Task {
	var tasks []*domain.Task
	for _, category := range sel.Categories() {
		for _, entry := range sel.Entries(category) {
			tasks = append(tasks, domain.NewTask(len(tasks), entry))
		}
	}
	return tasks
}

// BuildFromCatalog builds the queue from an unsampled catalog, using the
// same sorted-category ordering Build uses.
func BuildFromCatalog(cat *domain.Catalog) []*domain.Task {
	categories := cat.Categories()
	sort.Strings(categories)

	var tasks []*domain.Task
	for _, category := range categories {
		for _, entry := range cat.Entries(category) {
			tasks = append(tasks, domain.NewTask(len(tasks), entry))
		}
	}
	return tasks
}

// Truncate applies the max-task cap. max <= 0 means no cap. Sequence
// numbers are untouched so the truncated queue stays reproducible.
func Truncate(tasks []*domain.Task, max int) []*domain.Task {
	if max <= 0 || max >= len(tasks) {
		return tasks
	}
	return tasks[:max]
}
