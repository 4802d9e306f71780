package parsing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/williammiras/dash/internal/models"
	"github.com/xeipuuv/gojsonschema"
)

// ErrSchemaMismatch is wrapped by every error returned from OutputParser.Parse.
var ErrSchemaMismatch = errors.New("output does not match schema")

// SchemaMismatchError carries the reason a model answer was rejected and the answer itself.
type SchemaMismatchError struct {
	Reason string
	Raw    string
}

func (e *SchemaMismatchError) Error() string {
	return "Failed to parse DataQuery from completion: " + e.Reason
}

func (e *SchemaMismatchError) Unwrap() error { return ErrSchemaMismatch }

// Result is the outcome of parsing an answer. Exactly one of Value and Err is set;
// Raw always holds the text that was parsed.
type Result struct {
	Value *models.DataQuery
	Raw   string
	Err   error
}

func (r Result) OK() bool { return r.Err == nil }

// OutputParser validates agent answers against the DataQuery JSON schema.
type OutputParser struct {
	schemaJSON string
	schema     *gojsonschema.Schema
}

func NewOutputParser() (*OutputParser, error) {
	reflector := jsonschema.Reflector{
		Anonymous:                 true,
		AllowAdditionalProperties: true,
		ExpandedStruct:            true,
		DoNotReference:            true,
	}
	s := reflector.Reflect(&models.DataQuery{})
	// The $schema/$id keys only add noise to the prompt.
	s.Version = ""
	s.ID = ""

	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to JSON-marshal output schema: %w", err)
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(b))
	if err != nil {
		return nil, fmt.Errorf("failed to compile output schema: %w", err)
	}

	return &OutputParser{schemaJSON: string(b), schema: compiled}, nil
}

// MustOutputParser is NewOutputParser for package-level initialisation.
func MustOutputParser() *OutputParser {
	p, err := NewOutputParser()
	if err != nil {
		panic(err)
	}
	return p
}

// Schema returns the JSON schema the answer must satisfy.
func (p *OutputParser) Schema() string {
	return p.schemaJSON
}

// FormatInstructions tells the model how to shape its final answer.
func (p *OutputParser) FormatInstructions() string {
	return "The output should be formatted as a JSON instance that conforms to the JSON schema below.\n\n" +
		"As an example, for the schema {\"properties\": {\"foo\": {\"title\": \"Foo\", \"description\": \"a list of strings\", " +
		"\"type\": \"array\", \"items\": {\"type\": \"string\"}}}, \"required\": [\"foo\"]}\n" +
		"the object {\"foo\": [\"bar\", \"baz\"]} is a well-formatted instance of the schema. " +
		"The object {\"properties\": {\"foo\": [\"bar\", \"baz\"]}} is not well-formatted.\n\n" +
		"Here is the output schema:\n```\n" + p.schemaJSON + "\n```"
}

// Parse strictly decodes raw into a DataQuery. Any failure is a *SchemaMismatchError.
func (p *OutputParser) Parse(raw string) (*models.DataQuery, error) {
	text := stripCodeFence(raw)
	if text == "" {
		return nil, &SchemaMismatchError{Reason: "empty completion", Raw: raw}
	}

	result, err := p.schema.Validate(gojsonschema.NewStringLoader(text))
	if err != nil {
		return nil, &SchemaMismatchError{Reason: "invalid json: " + err.Error(), Raw: raw}
	}
	if !result.Valid() {
		reasons := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			reasons = append(reasons, e.String())
		}
		return nil, &SchemaMismatchError{Reason: strings.Join(reasons, "; "), Raw: raw}
	}

	out, err := decodeDataQuery(text)
	if err != nil {
		return nil, &SchemaMismatchError{Reason: err.Error(), Raw: raw}
	}
	return out, nil
}

// decodeDataQuery reads the answer fields by their exact names. json.Unmarshal matches
// keys case-insensitively, which would let a "Summary" key override "summary".
func decodeDataQuery(text string) (*models.DataQuery, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, err
	}
	var out models.DataQuery
	for key, dst := range map[string]any{
		"summary":            &out.Summary,
		"relevancyExplained": &out.RelevancyExplained,
		"sources":            &out.Sources,
		"tools_used":         &out.ToolsUsed,
	} {
		value, ok := fields[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(value, dst); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
	}
	return &out, nil
}

// ParseOrPassthrough never fails: on mismatch the result keeps the raw answer for the caller.
func (p *OutputParser) ParseOrPassthrough(raw string) Result {
	v, err := p.Parse(raw)
	return Result{Value: v, Raw: raw, Err: err}
}

// stripCodeFence removes one Markdown code fence wrapping the whole text.
func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") || !strings.HasSuffix(t, "```") || len(t) < 6 {
		return t
	}
	t = strings.TrimSuffix(strings.TrimPrefix(t, "```"), "```")
	// Drop the info string, e.g. ```json.
	if i := strings.IndexByte(t, '\n'); i >= 0 && !strings.ContainsAny(t[:i], "{[") {
		t = t[i+1:]
	}
	return strings.TrimSpace(t)
}
