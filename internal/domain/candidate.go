package domain

// CandidateID is the stable identity of a generated candidate. It equals the
// candidate's generation index, so identical texts remain distinct.
type CandidateID int

// Candidate is one generated text being ranked.
type Candidate struct {
	ID   CandidateID `json:"id"`
	Text string      `json:"text"`
}

// NewCandidates assigns sequential IDs to texts in generation order.
func NewCandidates(texts []string) []Candidate {
	out := make([]Candidate, len(texts))
	for i, t := range texts {
		out[i] = Candidate{ID: CandidateID(i), Text: t}
	}
	return out
}

// IDs returns the IDs of cs in order.
func IDs(cs []Candidate) []CandidateID {
	ids := make([]CandidateID, len(cs))
	for i, c := range cs {
		ids[i] = c.ID
	}
	return ids
}

// MatchKey identifies an unordered pair of candidates. Low is always the
// smaller ID, so (A,B) and (B,A) share a key.
type MatchKey struct {
	Low  CandidateID
	High CandidateID
}

// NewMatchKey returns the canonical key for the pair a, b.
func NewMatchKey(a, b CandidateID) MatchKey {
	if b < a {
		a, b = b, a
	}
	return MatchKey{Low: a, High: b}
}

// Orient converts a verdict between the call orientation, where first is the
// candidate presented first, and the key orientation (Low first). The
// conversion is its own inverse.
func (k MatchKey) Orient(first CandidateID, v Verdict) Verdict {
	if first == k.Low {
		return v
	}
	return v.Flip()
}

// Winner returns the winner and loser of a key-oriented verdict.
func (k MatchKey) Winner(v Verdict) (winner, loser CandidateID) {
	if v == FirstWins {
		return k.Low, k.High
	}
	return k.High, k.Low
}

// LossGraph maps each eliminated candidate to the candidate that beat it.
type LossGraph map[CandidateID]CandidateID
