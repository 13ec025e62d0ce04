package llm

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the tiktoken encoding used by DefaultTokenEstimator.
const DefaultEncoding = "o200k_base"

// CharacterEstimator approximates tokens as one per CharsPerToken bytes.
// Non-empty text always counts as at least one token.
type CharacterEstimator struct{ CharsPerToken float64 }

// EstimateTokens implements TokenEstimator.
func (e CharacterEstimator) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	per := e.CharsPerToken
	if per <= 0 {
		per = 4
	}
	return max(int(float64(len(text))/per), 1)
}

// WordEstimator approximates tokens from whitespace separated words.
type WordEstimator struct{ TokensPerWord float64 }

// EstimateTokens implements TokenEstimator.
func (e WordEstimator) EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	per := e.TokensPerWord
	if per <= 0 {
		per = 1.33
	}
	return max(int(float64(words)*per), 1)
}

// TiktokenEstimator counts tokens with a BPE encoding.
type TiktokenEstimator struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenEstimator loads the named encoding. Loading may need network
// access on first use, so callers should be ready for an error.
func NewTiktokenEstimator(encoding string) (*TiktokenEstimator, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &TiktokenEstimator{enc: enc}, nil
}

// EstimateTokens implements TokenEstimator.
func (e *TiktokenEstimator) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(e.enc.Encode(text, nil, nil))
}

var (
	defaultEstimatorOnce sync.Once
	defaultEstimator     TokenEstimator
)

// DefaultTokenEstimator returns a shared estimator using DefaultEncoding,
// or CharacterEstimator at four bytes per token when the encoding cannot
// be loaded.
func DefaultTokenEstimator() TokenEstimator {
	defaultEstimatorOnce.Do(func() {
		if est, err := NewTiktokenEstimator(DefaultEncoding); err == nil {
			defaultEstimator = est
			return
		}
		defaultEstimator = CharacterEstimator{CharsPerToken: 4}
	})
	return defaultEstimator
}
