package result

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// SchemaError reports why a result document does not satisfy the schema.
type SchemaError struct {
	Issues []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("result does not match schema: %s", strings.Join(e.Issues, "; "))
}

// Schema validates result documents against the embedded CUE definition.
type Schema struct {
	ctx *cue.Context
	def cue.Value
}

// NewSchema compiles the embedded schema.
func NewSchema() (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile result schema: %w", err)
	}
	def := v.LookupPath(cue.ParsePath("#Result"))
	if !def.Exists() {
		return nil, fmt.Errorf("compile result schema: #Result not defined")
	}
	return &Schema{ctx: ctx, def: def}, nil
}

// Validate checks a JSON document against #Result.
func (s *Schema) Validate(data []byte) error {
	doc := s.ctx.CompileBytes(data, cue.Filename("result.json"))
	if err := doc.Err(); err != nil {
		return &SchemaError{Issues: []string{fmt.Sprintf("invalid JSON: %v", err)}}
	}
	if doc.IncompleteKind() != cue.StructKind {
		return &SchemaError{Issues: []string{"result must be a JSON object"}}
	}
	unified := s.def.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &SchemaError{Issues: issues(err)}
	}
	return nil
}

// Parse validates data and decodes it into a Result.
func (s *Schema) Parse(data []byte) (*Result, error) {
	if err := s.Validate(data); err != nil {
		return nil, err
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &r, nil
}

func issues(err error) []string {
	var out []string
	for _, e := range cueerrors.Errors(err) {
		msg := strings.TrimSpace(e.Error())
		if path := strings.Join(e.Path(), "."); path != "" && !strings.HasPrefix(msg, path) {
			msg = path + ": " + msg
		}
		out = append(out, msg)
	}
	if len(out) == 0 {
		out = append(out, err.Error())
	}
	return out
}

var defaultSchema = sync.OnceValues(NewSchema)

// Parse validates and decodes a result document with the default schema.
func Parse(data []byte) (*Result, error) {
	s, err := defaultSchema()
	if err != nil {
		return nil, err
	}
	return s.Parse(data)
}

// Validate checks a result document with the default schema.
func Validate(data []byte) error {
	s, err := defaultSchema()
	if err != nil {
		return err
	}
	return s.Validate(data)
}

// FromMap validates and decodes an already-decoded result object.
func FromMap(m map[string]any) (*Result, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return Parse(data)
}
