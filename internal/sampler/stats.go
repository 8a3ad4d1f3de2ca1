package sampler

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
)

// WriteStats prints the per-category sampling table.
func (s *Selection) WriteStats(out io.Writer) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tORIGINAL\tSAMPLED\tRATE")

	names := make([]string, 0, len(s.Stats))
	for name := range s.Stats {
		names = append(names, name)
	}
	sort.Strings(names)

	var totalOriginal, totalSampled int
	for _, name := range names {
		st := s.Stats[name]
		fmt.Fprintf(w, "%s\t%d\t%d\t%.1f%%\n",
			name, st.Original, st.Sampled, percent(st.Sampled, st.Original))
		totalOriginal += st.Original
		totalSampled += st.Sampled
	}
	fmt.Fprintf(w, "total\t%d\t%d\t%.1f%%\n",
		totalOriginal, totalSampled, percent(totalSampled, totalOriginal))
	w.Flush()
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
