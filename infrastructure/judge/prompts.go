// Package judge implements the generator, scorer and comparator ports on top
// of a ports.LLMClient: prompt rendering, verdict parsing and retries.
package judge

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Options controls how a judge prompts the model.
type Options struct {
	// IncludeInstruction shows the original instruction to the judge.
	IncludeInstruction bool
	// Explain asks for reasons before the verdict.
	Explain bool
	// Temperature is sent with every request.
	Temperature float64
	// MaxTokens caps the response. Zero uses the provider default.
	MaxTokens int
	// Retry governs transient failures of the model call.
	Retry RetryPolicy
}

// DefaultOptions returns deterministic judge options that show the
// instruction and skip explanations.
func DefaultOptions() Options {
	return Options{IncludeInstruction: true, Retry: DefaultRetryPolicy()}
}

const scorePromptText = `Evaluate the output below on the following criteria:
{{criteria .Criteria}}

{{if .Explain -}}
Provide detailed reasons in English.
Respond in plain text with two sections in the following format:
Reasons:
<explain your reasoning for each criterion before writing the final score>


Final verdict: <list of each criterion score> (e.g. [{{.Example}}])
{{- else -}}
Respond in plain text exactly like:
Final verdict: <list of each criterion score> (e.g. [{{.Example}}])
{{- end}}

Instead of the verdict line you may answer with one JSON object matching this schema:
{{.Schema}}
{{- if .IncludeInstruction}}

Instruction:
{{.Instruction}}
{{- end}}

Output:
{{.Output}}`

const pairwisePromptText = `Compare the two players below using:
{{criteria .Criteria}}

{{if .Explain -}}
Provide detailed reasons in English.
Respond in plain text with two sections in the following format:
Reasons:
<explain your reasoning for each criterion before writing the final verdict>


Final verdict: A or Final verdict: B
{{- else -}}
Respond in plain text exactly like:
Final verdict: A or Final verdict: B
{{- end}}

Instead of the verdict line you may answer with one JSON object matching this schema:
{{.Schema}}
{{- if .IncludeInstruction}}

Instruction:
{{.Instruction}}
{{- end}}

Players:
<A>{{.A}}</A>
<B>{{.B}}</B>`

var promptFuncs = template.FuncMap{"criteria": criteriaBlock}

var (
	scoreTemplate    = template.Must(template.New("score").Funcs(promptFuncs).Parse(scorePromptText))
	pairwiseTemplate = template.Must(template.New("pairwise").Funcs(promptFuncs).Parse(pairwisePromptText))
)

// criteriaBlock numbers criteria one per line: "1) Factuality".
func criteriaBlock(criteria []string) string {
	lines := make([]string, len(criteria))
	for i, c := range criteria {
		lines[i] = fmt.Sprintf("%d) %s", i+1, c)
	}
	return strings.Join(lines, "\n")
}

type scorePromptData struct {
	Criteria           []string
	Example            string
	Explain            bool
	Schema             string
	IncludeInstruction bool
	Instruction        string
	Output             string
}

type pairwisePromptData struct {
	Criteria           []string
	Explain            bool
	Schema             string
	IncludeInstruction bool
	Instruction        string
	A, B               string
}

// renderScorePrompt builds the single-candidate scoring prompt.
func renderScorePrompt(opts Options, instruction string, criteria []string, output string) (string, error) {
	example := make([]string, max(len(criteria), 1))
	for i := range example {
		example[i] = "1-10"
	}
	var buf bytes.Buffer
	err := scoreTemplate.Execute(&buf, scorePromptData{
		Criteria:           criteria,
		Example:            strings.Join(example, ", "),
		Explain:            opts.Explain,
		Schema:             scoreSchema,
		IncludeInstruction: opts.IncludeInstruction,
		Instruction:        instruction,
		Output:             output,
	})
	if err != nil {
		return "", fmt.Errorf("render score prompt: %w", err)
	}
	return buf.String(), nil
}

// renderPairwisePrompt builds the two-candidate comparison prompt. a is
// presented as player A.
func renderPairwisePrompt(opts Options, instruction string, criteria []string, a, b string) (string, error) {
	var buf bytes.Buffer
	err := pairwiseTemplate.Execute(&buf, pairwisePromptData{
		Criteria:           criteria,
		Explain:            opts.Explain,
		Schema:             pairwiseSchema,
		IncludeInstruction: opts.IncludeInstruction,
		Instruction:        instruction,
		A:                  a,
		B:                  b,
	})
	if err != nil {
		return "", fmt.Errorf("render pairwise prompt: %w", err)
	}
	return buf.String(), nil
}
