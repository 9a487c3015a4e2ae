package condition

import (
	"regexp"
	"strconv"
	"strings"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Severity grades a Problem.
type Severity uint8

const (
	SeverityError Severity = iota + 1
	SeverityWarning
)

// Problem codes reported by Check.
const (
	CodeEmpty           = "condition_empty"
	CodeInvalidName     = "condition_invalid_name"
	CodeMissingLiteral  = "condition_missing_literal"
	CodeExtraOperator   = "condition_extra_operator"
	CodeUnquotedLiteral = "condition_unquoted_literal"
)

// Problem is one finding from Check.
type Problem struct {
	Severity Severity
	Code     string
	Expr     string
	Name     string
	Literal  string
}

// IsIdentifier reports whether name is a valid variable name.
func IsIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// Check reports how text deviates from the accepted grammar. A nil result
// means the expression is well formed.
func Check(text string) []Problem {
	expr, err := Parse(text)
	if err != nil {
		return []Problem{{Severity: SeverityError, Code: CodeEmpty, Expr: strings.TrimSpace(text)}}
	}
	display := strings.TrimSpace(text)

	var problems []Problem
	if !IsIdentifier(expr.Name) {
		problems = append(problems, Problem{Severity: SeverityError, Code: CodeInvalidName, Expr: display, Name: expr.Name})
	}
	if expr.Kind != KindCompare {
		return problems
	}

	switch {
	case expr.Literal == "":
		problems = append(problems, Problem{Severity: SeverityError, Code: CodeMissingLiteral, Expr: display})
	case isQuoted(expr.Literal):
	case hasOperator(expr.Literal):
		problems = append(problems, Problem{Severity: SeverityError, Code: CodeExtraOperator, Expr: display})
	default:
		if _, err := strconv.ParseFloat(expr.Literal, 64); err != nil {
			problems = append(problems, Problem{Severity: SeverityWarning, Code: CodeUnquotedLiteral, Expr: display, Literal: expr.Literal})
		}
	}
	return problems
}

// HasErrors reports whether any problem is an error.
func HasErrors(problems []Problem) bool {
	for _, p := range problems {
		if p.Severity == SeverityError {
			return true
		}
	}
	return false
}

func hasOperator(text string) bool {
	_, _, ok := findOperator(text)
	return ok || strings.Contains(text, "=")
}
