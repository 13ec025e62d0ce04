package domain

// Verdict is the outcome of a pairwise comparison.
type Verdict int

const (
	// FirstWins means the first presented candidate won. It is the zero
	// value and the default for failed or unparseable comparisons.
	FirstWins Verdict = iota

	// SecondWins means the second presented candidate won.
	SecondWins
)

// String returns "A" or "B", matching the judge's answer format.
func (v Verdict) String() string {
	if v == SecondWins {
		return "B"
	}
	return "A"
}

// Flip swaps the winner.
func (v Verdict) Flip() Verdict {
	if v == FirstWins {
		return SecondWins
	}
	return FirstWins
}

// ScoreVerdict is the judge's rating of a single candidate, one value per
// criterion. A single scalar verdict has one value.
type ScoreVerdict struct {
	Values []float64 `json:"values"`
}

// Scalar returns the arithmetic mean of the values, or 0.0 when empty.
func (s ScoreVerdict) Scalar() float64 {
	if len(s.Values) == 0 {
		return 0.0
	}
	var sum float64
	for _, v := range s.Values {
		sum += v
	}
	return sum / float64(len(s.Values))
}
