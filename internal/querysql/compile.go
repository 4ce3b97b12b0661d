// Package querysql compiles queryir queries to parameterized SQLite SQL.
//
// Identifiers come from the validated query; values are always bound with
// ? placeholders and never interpolated. Every statement carries an
// ORDER BY with COLLATE BINARY so text ordering is the same on every
// SQLite build.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/clqa/internal/params"
	"github.com/roach88/clqa/internal/queryir"
)

// SQLCompiler compiles queryir queries to SQLite.
type SQLCompiler struct{}

// NewSQLCompiler creates a compiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile validates q and returns its SQL with the bound arguments.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if err := queryir.Validate(q); err != nil {
		return "", nil, err
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	var (
		where string
		args  []any
	)
	if q.Filter != nil {
		filterSQL, filterArgs, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		where = " WHERE " + filterSQL
		args = filterArgs
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		strings.Join(q.Columns, ", "),
		q.From,
		where,
		orderClause(q.OrderBy))
	return sql, args, nil
}

func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return pred.Field + " = ?", []any{pred.Value}, nil
	case queryir.ParamEquals:
		return compileParamEquals(pred)
	case queryir.And:
		return c.compileAnd(pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileParamEquals matches a JSON value by structure with the same
// rules as params.Equal: numbers compare by value whatever their spelling,
// lists element by element and objects key by key. json_type is NULL only
// when the path is absent, so an absent key never matches.
func compileParamEquals(p queryir.ParamEquals) (string, []any, error) {
	sql, args, err := valueMatch(p.Column, "$."+p.Key, p.Value)
	if err != nil {
		return "", nil, fmt.Errorf("parameter %q: %w", p.Key, err)
	}
	return "(" + sql + ")", args, nil
}

func valueMatch(column, path string, v params.Value) (string, []any, error) {
	typeIs := fmt.Sprintf("json_type(%s, ?) = ?", column)

	switch val := v.(type) {
	case nil, params.Null:
		return typeIs, []any{path, "null"}, nil
	case params.Bool:
		if val {
			return typeIs, []any{path, "true"}, nil
		}
		return typeIs, []any{path, "false"}, nil
	case params.Int, params.Float, params.String:
		literal, err := params.MarshalCanonical(val)
		if err != nil {
			return "", nil, err
		}
		types := "'text'"
		if _, ok := val.(params.String); !ok {
			types = "'integer', 'real'"
		}
		sql := fmt.Sprintf("json_type(%[1]s, ?) IN (%[2]s) AND json_extract(%[1]s, ?) = json_extract(?, '$')", column, types)
		return sql, []any{path, path, string(literal)}, nil
	case params.List:
		parts := []string{typeIs, fmt.Sprintf("json_array_length(%s, ?) = ?", column)}
		args := []any{path, "array", path, len(val)}
		for i, elem := range val {
			sql, elemArgs, err := valueMatch(column, fmt.Sprintf("%s[%d]", path, i), elem)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, sql)
			args = append(args, elemArgs...)
		}
		return strings.Join(parts, " AND "), args, nil
	case params.Params:
		parts := []string{typeIs, fmt.Sprintf("(SELECT count(*) FROM json_each(%s, ?)) = ?", column)}
		args := []any{path, "object", path, len(val)}
		for _, key := range val.SortedKeys() {
			sql, keyArgs, err := valueMatch(column, path+"."+key, val[key])
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, sql)
			args = append(args, keyArgs...)
		}
		return strings.Join(parts, " AND "), args, nil
	default:
		return "", nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	parts := make([]string, 0, len(and.Predicates))
	var args []any
	for _, pred := range and.Predicates {
		sql, predArgs, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		args = append(args, predArgs...)
	}
	return strings.Join(parts, " AND "), args, nil
}

func orderClause(order []queryir.Order) string {
	terms := make([]string, 0, len(order))
	for _, o := range order {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		terms = append(terms, fmt.Sprintf("%s COLLATE BINARY %s", o.Column, dir))
	}
	return strings.Join(terms, ", ")
}
