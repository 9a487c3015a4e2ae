// Package condition parses and evaluates the expressions found inside
// [[IF ...]] markers.
//
// The grammar has three shapes:
//
//	name              truthy test
//	NOT name          negated truthy test
//	name OP literal   comparison, OP one of >= <= > < == !=
//
// There is no boolean composition and no grouping.
package condition

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/louisbranch/storyengine/internal/services/story/domain/gamestate"
)

// ErrEmpty is returned by Parse for blank expressions.
var ErrEmpty = errors.New("condition is empty")

// Operator is a comparison operator.
type Operator string

const (
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
)

// scanOrder lists operators in the order they are searched for. Two-byte
// operators precede their one-byte prefixes.
var scanOrder = []Operator{OpGreaterEqual, OpLessEqual, OpGreater, OpLess, OpEqual, OpNotEqual}

// Operators returns the operators in scan order.
func Operators() []Operator {
	return append([]Operator(nil), scanOrder...)
}

// Kind is the shape of a parsed expression.
type Kind uint8

const (
	KindBare Kind = iota + 1
	KindNot
	KindCompare
)

// Expr is a parsed condition.
type Expr struct {
	Kind    Kind
	Name    string
	Op      Operator
	Literal string
}

// String returns a normalized form of e.
func (e Expr) String() string {
	switch e.Kind {
	case KindNot:
		return "NOT " + e.Name
	case KindCompare:
		return e.Name + " " + string(e.Op) + " " + e.Literal
	default:
		return e.Name
	}
}

// Parse splits text into one of the three shapes. It only fails for blank
// input; identifier syntax is left to Check.
func Parse(text string) (Expr, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Expr{}, ErrEmpty
	}
	if op, idx, ok := findOperator(trimmed); ok {
		return Expr{
			Kind:    KindCompare,
			Name:    strings.TrimSpace(trimmed[:idx]),
			Op:      op,
			Literal: strings.TrimSpace(trimmed[idx+len(op):]),
		}, nil
	}
	if rest, ok := strings.CutPrefix(trimmed, "NOT "); ok {
		return Expr{Kind: KindNot, Name: strings.TrimSpace(rest)}, nil
	}
	return Expr{Kind: KindBare, Name: trimmed}, nil
}

// Eval evaluates e against state.
func (e Expr) Eval(state gamestate.State) bool {
	switch e.Kind {
	case KindBare:
		v, ok := state.Lookup(e.Name)
		return ok && v.Truthy()
	case KindNot:
		v, ok := state.Lookup(e.Name)
		return !ok || !v.Truthy()
	case KindCompare:
		return e.compare(state)
	default:
		return false
	}
}

func (e Expr) compare(state gamestate.State) bool {
	v, present := state.Lookup(e.Name)
	if !present {
		v = gamestate.NumberValue(0)
	}

	if left, ok := v.Float(); ok {
		if right, err := strconv.ParseFloat(e.Literal, 64); err == nil {
			return applyNumeric(e.Op, left, right)
		}
	}

	left := ""
	if present {
		left = v.String()
	}
	return applyString(e.Op, left, Unquote(e.Literal))
}

// Evaluate reports whether text holds for state. It never fails: blank or
// unevaluable expressions are false.
func Evaluate(text string, state gamestate.State) bool {
	ok, _ := EvaluateErr(text, state)
	return ok
}

// EvaluateErr is Evaluate but also returns the reason an expression was
// forced to false, for callers that log it.
func EvaluateErr(text string, state gamestate.State) (result bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = false
			err = fmt.Errorf("evaluate condition %q: %v", text, r)
		}
	}()
	expr, err := Parse(text)
	if err != nil {
		return false, err
	}
	return expr.Eval(state), nil
}

// Unquote strips one pair of matching single or double quotes.
func Unquote(literal string) string {
	if isQuoted(literal) {
		return literal[1 : len(literal)-1]
	}
	return literal
}

func isQuoted(literal string) bool {
	if len(literal) < 2 {
		return false
	}
	first, last := literal[0], literal[len(literal)-1]
	return first == last && (first == '"' || first == '\'')
}

func findOperator(text string) (Operator, int, bool) {
	for _, op := range scanOrder {
		if idx := strings.Index(text, string(op)); idx >= 0 {
			return op, idx, true
		}
	}
	return "", -1, false
}

func applyNumeric(op Operator, left, right float64) bool {
	switch op {
	case OpGreaterEqual:
		return left >= right
	case OpLessEqual:
		return left <= right
	case OpGreater:
		return left > right
	case OpLess:
		return left < right
	case OpEqual:
		return left == right
	case OpNotEqual:
		return left != right
	default:
		return false
	}
}

func applyString(op Operator, left, right string) bool {
	switch op {
	case OpGreaterEqual:
		return left >= right
	case OpLessEqual:
		return left <= right
	case OpGreater:
		return left > right
	case OpLess:
		return left < right
	case OpEqual:
		return left == right
	case OpNotEqual:
		return left != right
	default:
		return false
	}
}
