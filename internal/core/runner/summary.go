package runner

import (
	"fmt"
	"strings"
)

// FormatSummary renders the aggregate run report printed after the last
// test case.
func FormatSummary(s Summary) string {
	var b strings.Builder

	b.WriteString("=== Batch Summary ===\n")
	b.WriteString(fmt.Sprintf("cases:      %d\n", s.Total))
	b.WriteString(fmt.Sprintf("evaluated:  %d\n", s.Evaluated))
	b.WriteString(fmt.Sprintf("perfect:    %d\n", s.Perfect))
	if s.Evaluated > 0 {
		b.WriteString(fmt.Sprintf("mean score: %.3f\n", s.MeanScore))
	}

	if failed := s.Total - s.Evaluated; failed > 0 {
		b.WriteString(fmt.Sprintf("failed:     %d\n", failed))
		for _, class := range []ErrorClass{ErrorTimeout, ErrorAPI, ErrorParse, ErrorOther} {
			if n := s.Failures[class]; n > 0 {
				b.WriteString(fmt.Sprintf("  %-8s %d\n", string(class)+":", n))
			}
		}
	}

	b.WriteString(fmt.Sprintf("cache:      %d entries, %d hits, %d misses, %d expirations\n",
		s.Cache.Entries, s.Cache.Hits, s.Cache.Misses, s.Cache.Expirations))

	return b.String()
}
