// Package catalog loads the category-partitioned benchmark catalog from
// JSON question files. One file per category; the file name is the
// category name.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/safebench/mmbench/internal/domain"
)

// questionField maps an image variant to the question field it pairs with.
var questionField = map[string]string{
	"SD":      "Changed Question",
	"SD_TYPO": "Rephrased Question",
	"TYPO":    "Rephrased Question(SD)",
}

// Options controls which files, variants and categories are loaded.
type Options struct {
	// Pattern is a glob over question JSON files, e.g.
	// "~/data/processed_questions/*.json".
	Pattern string
	// ImageBase is the root directory holding per-category image folders.
	ImageBase string
	// ImageTypes lists the variants to load. Empty means ["SD"].
	ImageTypes []string
	// Categories restricts loading to the named categories. Empty means all.
	Categories []string
}

// Load reads all matching question files and returns the catalog. When
// several image variants are requested their entries are interleaved so a
// truncated queue still covers every variant.
func Load(opts Options) (*domain.Catalog, error) {
	types := opts.ImageTypes
	if len(types) == 0 {
		types = []string{"SD"}
	}
	for _, it := range types {
		if _, ok := questionField[it]; !ok {
			return nil, fmt.Errorf("unknown image type %q", it)
		}
	}

	perType := make([][]*domain.CatalogEntry, len(types))
	for i, it := range types {
		entries, err := loadVariant(opts, it)
		if err != nil {
			return nil, err
		}
		perType[i] = entries
	}

	return domain.NewCatalog(interleave(perType)), nil
}

func loadVariant(opts Options, imageType string) ([]*domain.CatalogEntry, error) {
	pattern, err := expandPath(opts.Pattern)
	if err != nil {
		return nil, err
	}
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad question glob %q: %w", opts.Pattern, err)
	}
	sort.Strings(files)

	wanted := make(map[string]bool, len(opts.Categories))
	for _, c := range opts.Categories {
		wanted[c] = true
	}

	field := questionField[imageType]
	var entries []*domain.CatalogEntry
	for _, fp := range files {
		category := strings.TrimSuffix(filepath.Base(fp), filepath.Ext(fp))
		if len(wanted) > 0 && !wanted[category] {
			continue
		}
		items, err := readQuestionFile(fp)
		if err != nil {
			return nil, err
		}
		for _, idx := range sortedIndexes(items) {
			question, _ := items[idx][field].(string)
			imageRef := ""
			if opts.ImageBase != "" {
				imageRef = filepath.Join(opts.ImageBase, category, imageType, idx+".jpg")
			}
			entries = append(entries, &domain.CatalogEntry{
				ID:       fmt.Sprintf("%s/%s/%s", category, idx, imageType),
				Category: category,
				Question: question,
				ImageRef: imageRef,
				Meta:     map[string]string{"index": idx, "image_type": imageType},
			})
		}
	}
	return entries, nil
}

func readQuestionFile(path string) (map[string]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var items map[string]map[string]any
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return items, nil
}

// sortedIndexes orders item keys numerically where possible so "10" sorts
// after "9", falling back to string order for non-numeric keys.
func sortedIndexes(items map[string]map[string]any) []string {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, aerr := strconv.Atoi(keys[i])
		b, berr := strconv.Atoi(keys[j])
		if aerr == nil && berr == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
	return keys
}

// interleave takes one entry from each variant slice in turn.
func interleave(slices [][]*domain.CatalogEntry) []*domain.CatalogEntry {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	out := make([]*domain.CatalogEntry, 0, total)
	for i := 0; len(out) < total; i++ {
		for _, s := range slices {
			if i < len(s) {
				out = append(out, s[i])
			}
		}
	}
	return out
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding %q: %w", path, err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
