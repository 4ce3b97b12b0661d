// Package schema validates and completes cache parameters against CUE
// definitions, one definition per result kind.
package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/clqa/internal/params"
)

//go:embed params.cue
var paramsCUE string

// Schema holds the compiled parameter definitions.
// A cue.Context is not safe for concurrent use, so every evaluation is
// serialized through mu.
type Schema struct {
	mu   sync.Mutex
	ctx  *cue.Context
	root cue.Value
}

// Load compiles the embedded parameter schemas.
func Load() (*Schema, error) {
	return Compile(paramsCUE)
}

// Compile compiles CUE source containing parameter definitions.
// Exposed so tests and alternative deployments can supply their own schema.
func Compile(src string) (*Schema, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(src, cue.Filename("params.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", formatCUEError("", err))
	}
	return &Schema{ctx: ctx, root: root}, nil
}

// MustLoad is Load for package-level initialization; it panics on error.
func MustLoad() *Schema {
	s, err := Load()
	if err != nil {
		panic(err)
	}
	return s
}

// Definition returns the named definition (e.g. "#CCL").
func (s *Schema) Definition(name string) (*Definition, error) {
	if !strings.HasPrefix(name, "#") {
		return nil, fmt.Errorf("definition name must start with '#': %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.root.LookupPath(cue.ParsePath(name))
	if !v.Exists() {
		return nil, fmt.Errorf("schema has no definition %s", name)
	}
	return &Definition{schema: s, name: name, value: v}, nil
}

// Definition is one closed parameter schema.
type Definition struct {
	schema *Schema
	name   string
	value  cue.Value
}

// Name returns the definition name, including the leading '#'.
func (d *Definition) Name() string {
	return d.name
}

// Validate checks a (possibly partial) query: every key must be declared by
// the definition and every value must be compatible with its field.
// Missing keys are fine.
func (d *Definition) Validate(query params.Params) error {
	d.schema.mu.Lock()
	defer d.schema.mu.Unlock()

	_, err := d.unify(query)
	return err
}

// Complete validates query and fills every absent field with its default,
// producing the full parameter record a computation runs with.
func (d *Definition) Complete(query params.Params) (params.Params, error) {
	d.schema.mu.Lock()
	defer d.schema.mu.Unlock()

	u, err := d.unify(query)
	if err != nil {
		return nil, err
	}

	data, err := u.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(d.name, err)
	}

	full, err := params.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("decode completed %s parameters: %w", d.name, err)
	}
	return full, nil
}

// Defaults returns the parameter record of an empty query.
func (d *Definition) Defaults() (params.Params, error) {
	return d.Complete(params.Params{})
}

// unify must be called with the schema lock held.
func (d *Definition) unify(query params.Params) (cue.Value, error) {
	if query == nil {
		query = params.Params{}
	}
	data, err := params.MarshalCanonical(query)
	if err != nil {
		return cue.Value{}, &Error{Definition: d.name, Message: err.Error()}
	}

	// JSON is valid CUE, so the canonical encoding compiles directly.
	v := d.schema.ctx.CompileBytes(data, cue.Filename("query.json"))
	if err := v.Err(); err != nil {
		return cue.Value{}, formatCUEError(d.name, err)
	}

	u := d.value.Unify(v)
	if err := u.Validate(); err != nil {
		return cue.Value{}, formatCUEError(d.name, err)
	}
	return u, nil
}

// Error reports parameters that do not satisfy a definition.
type Error struct {
	Definition string
	Path       string
	Message    string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("invalid parameters")
	if e.Definition != "" {
		fmt.Fprintf(&b, " for %s", e.Definition)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " at %s", e.Path)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

// IsError reports whether err is (or wraps) a schema violation.
func IsError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}

// formatCUEError keeps the first CUE error with its path.
func formatCUEError(def string, err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Definition: def, Message: err.Error()}
	}

	first := errs[0]
	return &Error{
		Definition: def,
		Path:       strings.Join(first.Path(), "."),
		Message:    first.Error(),
	}
}
