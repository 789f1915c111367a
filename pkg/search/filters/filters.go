// Package filters builds the metadata filter documents accepted by every
// search type.
package filters

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Operator compares a metadata key against its values.
type Operator string

const (
	Equal        Operator = "="
	NotEqual     Operator = "!="
	Greater      Operator = ">"
	Less         Operator = "<"
	GreaterEqual Operator = ">="
	LessEqual    Operator = "<="
	Between      Operator = "between"
	In           Operator = "in"
	NotIn        Operator = "not in"
)

var operators = []Operator{Equal, NotEqual, Greater, Less, GreaterEqual, LessEqual, Between, In, NotIn}

// Expression is one key/operator/values test.
type Expression struct {
	Key      string   `json:"key"`
	Operator Operator `json:"operator"`
	Values   []string `json:"values"`
}

// Expr builds an expression. An empty operator defaults to In.
func Expr(key string, op Operator, values ...string) Expression {
	if op == "" {
		op = In
	}
	return Expression{Key: key, Operator: op, Values: values}
}

// Validate reports unknown operators and missing keys.
func (e Expression) Validate() error {
	if e.Key == "" {
		return fmt.Errorf("metadata filter expression without key")
	}
	if !slices.Contains(operators, e.Operator) {
		return fmt.Errorf("metadata filter %q: operator %q not allowed", e.Key, e.Operator)
	}
	if e.Operator == Between && len(e.Values) != 2 {
		return fmt.Errorf("metadata filter %q: between needs exactly two values", e.Key)
	}
	return nil
}

// Filter combines expressions with a logical operator.
type Filter struct {
	// LogicalOperator is "AND" or "OR"; empty means AND.
	LogicalOperator string
	Expressions     []Expression
}

// And builds a filter matching all expressions.
func And(exprs ...Expression) *Filter {
	return &Filter{LogicalOperator: "AND", Expressions: exprs}
}

// Or builds a filter matching any expression.
func Or(exprs ...Expression) *Filter {
	return &Filter{LogicalOperator: "OR", Expressions: exprs}
}

// Empty reports whether f filters nothing.
func (f *Filter) Empty() bool {
	return f == nil || len(f.Expressions) == 0
}

func (f *Filter) Validate() error {
	if f.Empty() {
		return nil
	}
	switch strings.ToUpper(f.LogicalOperator) {
	case "", "AND", "OR":
	default:
		return fmt.Errorf("logical operator %q not allowed, use AND or OR", f.LogicalOperator)
	}
	for _, e := range f.Expressions {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON renders an empty filter as {} which the server treats as
// "no filter".
func (f *Filter) MarshalJSON() ([]byte, error) {
	if f.Empty() {
		return []byte("{}"), nil
	}
	op := strings.ToUpper(f.LogicalOperator)
	if op == "" {
		op = "AND"
	}
	return json.Marshal(struct {
		LogicalOperator string       `json:"logical_operator"`
		Expressions     []Expression `json:"expressions"`
	}{op, f.Expressions})
}
