package application

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/ahrav/go-bracket/internal/domain"
)

// Duplicate is a pair of candidates whose texts are near-identical.
type Duplicate struct {
	A          domain.CandidateID `json:"a"`
	B          domain.CandidateID `json:"b"`
	Similarity float64            `json:"similarity"`
}

// FindDuplicates reports every pair of candidates whose case-folded,
// whitespace-normalized texts have a Levenshtein similarity of at least
// threshold. Candidates are never merged; the report is informational.
// A non-positive threshold disables the check.
func FindDuplicates(cs []domain.Candidate, threshold float64) []Duplicate {
	if threshold <= 0 || len(cs) < 2 {
		return nil
	}

	fold := cases.Fold()
	norm := make([]string, len(cs))
	lens := make([]int, len(cs))
	for i, c := range cs {
		norm[i] = fold.String(strings.Join(strings.Fields(c.Text), " "))
		lens[i] = utf8.RuneCountInString(norm[i])
	}

	var dups []Duplicate
	for i := 0; i < len(cs); i++ {
		for j := i + 1; j < len(cs); j++ {
			longest := max(lens[i], lens[j])
			if longest == 0 {
				dups = append(dups, Duplicate{A: cs[i].ID, B: cs[j].ID, Similarity: 1})
				continue
			}
			// The distance is at least the length difference.
			if 1-float64(longest-min(lens[i], lens[j]))/float64(longest) < threshold {
				continue
			}
			sim := 1.0
			if norm[i] != norm[j] {
				sim = 1 - float64(levenshtein.ComputeDistance(norm[i], norm[j]))/float64(longest)
			}
			if sim >= threshold {
				dups = append(dups, Duplicate{A: cs[i].ID, B: cs[j].ID, Similarity: sim})
			}
		}
	}
	return dups
}
