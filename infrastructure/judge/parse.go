package judge

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-bracket/internal/domain"
)

var validate = validator.New()

const verdictMarker = "final verdict:"

var (
	scoreNumber   = regexp.MustCompile(`^[+-]?\d+(?:\.\d+)?`)
	verdictLetter = regexp.MustCompile(`(?i)^[^a-z0-9]*(?:player\s+)?([ab])\b`)
)

// ParseScore reads a score verdict. A JSON object matching scoreResponse
// wins; otherwise the last "Final verdict:" line is read with scoreValues.
// Anything else is a *domain.MalformedVerdictError.
func ParseScore(raw string) (domain.ScoreVerdict, error) {
	if obj := extractJSON(raw); obj != "" {
		var resp scoreResponse
		if err := json.Unmarshal([]byte(obj), &resp); err == nil && validate.Struct(resp) == nil {
			if len(resp.Scores) == 0 && resp.Score != nil {
				return domain.ScoreVerdict{Values: []float64{*resp.Score}}, nil
			}
			return domain.ScoreVerdict{Values: resp.Scores}, nil
		}
	}

	line, ok := lastVerdictLine(raw)
	if !ok {
		return domain.ScoreVerdict{}, domain.NewMalformedVerdictError(raw, "no score JSON or verdict line")
	}
	values, reason := scoreValues(line)
	if reason != "" {
		return domain.ScoreVerdict{}, domain.NewMalformedVerdictError(raw, reason)
	}
	return domain.ScoreVerdict{Values: values}, nil
}

// scoreValues reads the score list on a verdict line: the body of the first
// [...] when there is one, otherwise the whole line, split on commas. Each
// element contributes its leading signed number, so "8/10" reads as 8. An
// empty bracketed list is valid. On failure the reason is non-empty.
func scoreValues(line string) ([]float64, string) {
	body := line
	bracketed := false
	if open := strings.IndexByte(line, '['); open >= 0 {
		bracketed = true
		body = line[open+1:]
		if end := strings.IndexByte(body, ']'); end >= 0 {
			body = body[:end]
		}
	}
	body = strings.TrimSpace(body)
	if body == "" {
		if bracketed {
			return []float64{}, ""
		}
		return nil, "verdict line has no scores"
	}

	elems := strings.Split(body, ",")
	values := make([]float64, 0, len(elems))
	for _, e := range elems {
		e = strings.TrimSpace(e)
		m := scoreNumber.FindString(e)
		if m == "" {
			return nil, "unreadable score " + strconv.Quote(e)
		}
		v, err := strconv.ParseFloat(m, 64)
		if err != nil || math.IsInf(v, 0) {
			return nil, "unreadable score " + strconv.Quote(e)
		}
		values = append(values, v)
	}
	return values, ""
}

// ParseVerdict reads a pairwise verdict: {"winner": "A"|"B"} or the first
// A or B token on the last "Final verdict:" line.
func ParseVerdict(raw string) (domain.Verdict, error) {
	if obj := extractJSON(raw); obj != "" {
		var resp pairwiseResponse
		if err := json.Unmarshal([]byte(obj), &resp); err == nil {
			resp.Winner = strings.ToUpper(strings.TrimSpace(resp.Winner))
			if validate.Struct(resp) == nil {
				return verdictFor(resp.Winner), nil
			}
		}
	}

	line, ok := lastVerdictLine(raw)
	if !ok {
		return domain.FirstWins, domain.NewMalformedVerdictError(raw, "no winner JSON or verdict line")
	}
	m := verdictLetter.FindStringSubmatch(line)
	if m == nil {
		return domain.FirstWins, domain.NewMalformedVerdictError(raw, "verdict line names neither A nor B")
	}
	return verdictFor(strings.ToUpper(m[1])), nil
}

func verdictFor(letter string) domain.Verdict {
	if letter == "B" {
		return domain.SecondWins
	}
	return domain.FirstWins
}

// lastVerdictLine returns the text after the last "Final verdict:" marker,
// up to the end of its line. Matching ignores case.
func lastVerdictLine(raw string) (string, bool) {
	lower := strings.ToLower(raw)
	idx := strings.LastIndex(lower, verdictMarker)
	if idx < 0 {
		return "", false
	}
	rest := raw[idx+len(verdictMarker):]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	return strings.TrimSpace(rest), true
}

// extractJSON returns the first JSON object in s: the body of a fenced code
// block when one holds an object, otherwise the first balanced {...} span.
// It returns "" when there is none.
func extractJSON(s string) string {
	if start := strings.Index(s, "```"); start >= 0 {
		body := s[start+3:]
		if nl := strings.IndexByte(body, '\n'); nl >= 0 {
			// Skip the language tag.
			body = body[nl+1:]
		}
		if end := strings.Index(body, "```"); end >= 0 {
			if candidate := strings.TrimSpace(body[:end]); strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
