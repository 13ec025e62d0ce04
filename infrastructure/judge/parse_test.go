package judge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-bracket/internal/domain"
)

func TestParseScore(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []float64
	}{
		{name: "verdict line list", raw: "Final verdict: [8, 6, 7]", want: []float64{8, 6, 7}},
		{name: "verdict line without brackets", raw: "final verdict: 9, 7.5", want: []float64{9, 7.5}},
		{
			name: "reasons then verdict",
			raw:  "Reasons:\n1) Factual: score 3 would be harsh\n\n\nFinal verdict: [7, 8]\n",
			want: []float64{7, 8},
		},
		{
			name: "last verdict line wins",
			raw:  "Final verdict: [1, 1]\nOn reflection:\nFinal verdict: [9, 9]",
			want: []float64{9, 9},
		},
		{name: "json scores", raw: `{"scores": [4, 5, 6]}`, want: []float64{4, 5, 6}},
		{name: "json single score", raw: `{"score": 7.25}`, want: []float64{7.25}},
		{
			name: "fenced json",
			raw:  "Here you go:\n```json\n{\"scores\": [10, 2]}\n```",
			want: []float64{10, 2},
		},
		{
			name: "invalid json falls back to verdict line",
			raw:  "{\"scores\": \"high\"}\nFinal verdict: [5]",
			want: []float64{5},
		},
		{name: "out of ten", raw: "Final verdict: [8/10, 9/10, 7/10]", want: []float64{8, 9, 7}},
		{name: "negative", raw: "Final verdict: [-3, 5]", want: []float64{-3, 5}},
		{name: "text after the list", raw: "Final verdict: [6, 4] (strict grading)", want: []float64{6, 4}},
		{name: "unclosed list", raw: "Final verdict: [6, 4", want: []float64{6, 4}},
		{name: "empty list", raw: "Final verdict: []", want: []float64{}},
		{name: "json empty list", raw: `{"scores": []}`, want: []float64{}},
		{name: "json list wins over single score", raw: `{"scores": [2, 4], "score": 9}`, want: []float64{2, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseScore(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Values)
		})
	}
}

func TestParseScore_EmptyListScoresZero(t *testing.T) {
	// Given a judge that found nothing to score
	raw := `{"scores": []}`

	// When the verdict is parsed
	v, err := ParseScore(raw)

	// Then it is a valid verdict worth zero, not a malformed one
	require.NoError(t, err)
	assert.Empty(t, v.Values)
	assert.Zero(t, v.Scalar())
}

func TestParseScore_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		reason string
	}{
		{name: "empty", raw: "", reason: "no score JSON or verdict line"},
		{name: "prose", raw: "I think it is pretty good.", reason: "no score JSON or verdict line"},
		{name: "nothing after marker", raw: "Final verdict:\n", reason: "verdict line has no scores"},
		{name: "no numbers", raw: "Final verdict: excellent", reason: `unreadable score "excellent"`},
		{name: "code is not evaluated", raw: "Final verdict: __import__('os')", reason: `unreadable score "__import__('os')"`},
		{name: "one bad element", raw: "Final verdict: [8, good, 7]", reason: `unreadable score "good"`},
		{name: "number not leading", raw: "Final verdict: score 7", reason: `unreadable score "score 7"`},
		{name: "null list", raw: `{"scores": null}`, reason: "no score JSON or verdict line"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScore(tt.raw)

			var mv *domain.MalformedVerdictError
			require.ErrorAs(t, err, &mv)
			assert.ErrorIs(t, err, domain.ErrMalformedVerdict)
			assert.Equal(t, tt.raw, mv.Raw)
			assert.Equal(t, tt.reason, mv.Reason)
		})
	}
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want domain.Verdict
	}{
		{name: "plain A", raw: "Final verdict: A", want: domain.FirstWins},
		{name: "plain B", raw: "Final verdict: B", want: domain.SecondWins},
		{name: "lower case", raw: "final verdict: b", want: domain.SecondWins},
		{name: "decorated", raw: "Final verdict: **B**", want: domain.SecondWins},
		{name: "player prefix", raw: "Final verdict: Player B.", want: domain.SecondWins},
		{name: "tagged", raw: "Final verdict: <A>", want: domain.FirstWins},
		{
			name: "reasons mention both",
			raw:  "Reasons:\nA is concise, B is more precise.\n\n\nFinal verdict: B",
			want: domain.SecondWins,
		},
		{name: "json", raw: `{"winner": "B"}`, want: domain.SecondWins},
		{name: "json lower case", raw: `{"winner": " a "}`, want: domain.FirstWins},
		{name: "fenced json", raw: "```\n{\"winner\": \"B\"}\n```", want: domain.SecondWins},
		{name: "bad json then line", raw: "{\"winner\": \"C\"}\nFinal verdict: B", want: domain.SecondWins},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVerdict(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseVerdict_Malformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"Both are fine.",
		"Final verdict: Both",
		"Final verdict: tie",
		`{"winner": "neither"}`,
	} {
		t.Run(raw, func(t *testing.T) {
			v, err := ParseVerdict(raw)
			assert.ErrorIs(t, err, domain.ErrMalformedVerdict)
			assert.Equal(t, domain.FirstWins, v, "malformed verdicts default to the first player")
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "none", in: "no braces", want: ""},
		{name: "bare", in: `x {"a": 1} y`, want: `{"a": 1}`},
		{name: "nested", in: `{"a": {"b": 2}} tail`, want: `{"a": {"b": 2}}`},
		{name: "braces in strings", in: `{"a": "}{"}`, want: `{"a": "}{"}`},
		{name: "escaped quote", in: `{"a": "say \"}\""}`, want: `{"a": "say \"}\""}`},
		{name: "unbalanced", in: `{"a": 1`, want: ""},
		{name: "fence with language", in: "```json\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "fence without object", in: "```\nplain\n``` then {\"b\": 2}", want: `{"b": 2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.in))
		})
	}
}
