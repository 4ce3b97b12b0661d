package queryir

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/roach88/clqa/internal/params"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ErrInvalidQuery is wrapped by every Validate failure.
var ErrInvalidQuery = errors.New("invalid query")

// Validate checks that q is well formed: identifiers are plain names,
// columns are explicit, an order is given, and every And has operands.
func Validate(q Query) error {
	switch q := q.(type) {
	case Select:
		return validateSelect(q)
	case *Select:
		if q == nil {
			return fmt.Errorf("%w: nil select", ErrInvalidQuery)
		}
		return validateSelect(*q)
	default:
		return fmt.Errorf("%w: unsupported query type %T", ErrInvalidQuery, q)
	}
}

func validateSelect(s Select) error {
	if err := ident("table", s.From); err != nil {
		return err
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("%w: select from %s has no columns", ErrInvalidQuery, s.From)
	}
	for _, c := range s.Columns {
		if err := ident("column", c); err != nil {
			return err
		}
	}
	if len(s.OrderBy) == 0 {
		return fmt.Errorf("%w: select from %s has no order", ErrInvalidQuery, s.From)
	}
	for _, o := range s.OrderBy {
		if err := ident("order column", o.Column); err != nil {
			return err
		}
	}
	if s.Filter != nil {
		return validatePredicate(s.Filter)
	}
	return nil
}

func validatePredicate(p Predicate) error {
	switch p := p.(type) {
	case Equals:
		return ident("column", p.Field)
	case ParamEquals:
		if err := ident("column", p.Column); err != nil {
			return err
		}
		if err := ident("parameter key", p.Key); err != nil {
			return err
		}
		if p.Value == nil {
			return fmt.Errorf("%w: parameter %q has no value", ErrInvalidQuery, p.Key)
		}
		return validateValue(p.Value)
	case And:
		if len(p.Predicates) == 0 {
			return fmt.Errorf("%w: empty conjunction", ErrInvalidQuery)
		}
		for _, sub := range p.Predicates {
			if sub == nil {
				return fmt.Errorf("%w: nil predicate in conjunction", ErrInvalidQuery)
			}
			if err := validatePredicate(sub); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported predicate type %T", ErrInvalidQuery, p)
	}
}

// validateValue checks the keys of nested objects, which become JSON path
// segments.
func validateValue(v params.Value) error {
	switch val := v.(type) {
	case params.List:
		for _, elem := range val {
			if err := validateValue(elem); err != nil {
				return err
			}
		}
	case params.Params:
		for key, elem := range val {
			if err := ident("parameter key", key); err != nil {
				return err
			}
			if err := validateValue(elem); err != nil {
				return err
			}
		}
	}
	return nil
}

func ident(what, name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("%w: %s %q", ErrInvalidQuery, what, name)
	}
	return nil
}
