package judge

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// scoreResponse is the structured form of a score verdict. Either a list
// with one score per criterion or a single overall score is accepted. An
// empty list is a valid verdict worth 0.
type scoreResponse struct {
	Scores []float64 `json:"scores,omitempty" jsonschema:"description=One score from 1 to 10 per criterion in order" validate:"required_without=Score"`
	Score  *float64  `json:"score,omitempty" jsonschema:"description=Single overall score from 1 to 10" validate:"required_without=Scores"`
}

// pairwiseResponse is the structured form of a pairwise verdict.
type pairwiseResponse struct {
	Winner string `json:"winner" jsonschema:"enum=A,enum=B,description=The better player" validate:"required,oneof=A B"`
}

var (
	scoreSchema    = responseSchema(&scoreResponse{})
	pairwiseSchema = responseSchema(&pairwiseResponse{})
)

// responseSchema renders the compact JSON schema shown to the judge.
func responseSchema(v any) string {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		Anonymous:                 true,
	}
	schema := reflector.Reflect(v)
	// The draft URL only costs tokens.
	schema.Version = ""
	b, err := json.Marshal(schema)
	if err != nil {
		panic(err)
	}
	return string(b)
}
