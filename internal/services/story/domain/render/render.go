// Package render expands [[IF cond]]...[[ENDIF]] blocks in chapter text.
//
// Blocks do not nest: the first [[ENDIF]] after a marker closes it, and a
// body is never rescanned. Text outside blocks is copied byte for byte.
package render

import (
	"io"
	"log"
	"strings"

	"github.com/louisbranch/storyengine/internal/services/story/domain/condition"
	"github.com/louisbranch/storyengine/internal/services/story/domain/gamestate"
)

const (
	openToken  = "[[IF"
	closeToken = "[[ENDIF]]"
	elseToken  = "[[ELSE]]"
	markerEnd  = "]]"
)

// Block is one conditional span. Offsets are byte positions in the scanned
// content; End is exclusive and includes the [[ENDIF]] token. Expr is
// trimmed.
type Block struct {
	Start int
	End   int
	Expr  string
	Body  string
}

// Scan returns the conditional blocks in content, left to right.
//
// A marker is "[[IF", at least one whitespace character, an expression
// without ']' and "]]". A marker with no later [[ENDIF]] is not a block.
func Scan(content string) []Block {
	var blocks []Block
	pos := 0
	for pos < len(content) {
		rel := strings.Index(content[pos:], openToken)
		if rel < 0 {
			break
		}
		start := pos + rel
		block, ok := blockAt(content, start)
		if !ok {
			pos = start + 1
			continue
		}
		blocks = append(blocks, block)
		pos = block.End
	}
	return blocks
}

func blockAt(content string, start int) (Block, bool) {
	cursor := start + len(openToken)
	if cursor >= len(content) || !isSpace(content[cursor]) {
		return Block{}, false
	}

	closeRel := strings.IndexByte(content[cursor:], ']')
	if closeRel < 0 {
		return Block{}, false
	}
	exprEnd := cursor + closeRel
	if !strings.HasPrefix(content[exprEnd:], markerEnd) {
		return Block{}, false
	}
	// At least one whitespace byte and one expression byte.
	if exprEnd-cursor < 2 {
		return Block{}, false
	}

	bodyStart := exprEnd + len(markerEnd)
	endRel := strings.Index(content[bodyStart:], closeToken)
	if endRel < 0 {
		return Block{}, false
	}
	bodyEnd := bodyStart + endRel
	return Block{
		Start: start,
		End:   bodyEnd + len(closeToken),
		Expr:  strings.TrimSpace(content[cursor:exprEnd]),
		Body:  content[bodyStart:bodyEnd],
	}, true
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	default:
		return false
	}
}

// CountMarkers counts raw [[IF and [[ENDIF]] tokens, matched or not.
func CountMarkers(content string) (opens, closes int) {
	return strings.Count(content, openToken), strings.Count(content, closeToken)
}

// HasElse reports whether content uses the unsupported [[ELSE]] keyword.
func HasElse(content string) bool {
	return strings.Contains(content, elseToken)
}

// Processor renders chapter content and logs conditions that could not be
// evaluated. The zero value is ready to use and logs nothing.
type Processor struct {
	Logger *log.Logger
}

// Render replaces each block with its body when the condition holds and
// with nothing otherwise.
func (p Processor) Render(content string, state gamestate.State) string {
	blocks := Scan(content)
	if len(blocks) == 0 {
		return content
	}

	var out strings.Builder
	out.Grow(len(content))
	last := 0
	for _, block := range blocks {
		out.WriteString(content[last:block.Start])
		ok, err := condition.EvaluateErr(block.Expr, state)
		if err != nil {
			p.logf("render: condition %q at byte %d: %v", block.Expr, block.Start, err)
		}
		if ok {
			out.WriteString(block.Body)
		}
		last = block.End
	}
	out.WriteString(content[last:])
	return out.String()
}

func (p Processor) logf(format string, args ...any) {
	if p.Logger == nil {
		return
	}
	p.Logger.Printf(format, args...)
}

var defaultProcessor = Processor{Logger: log.New(io.Discard, "", 0)}

// Render expands content against state without logging.
func Render(content string, state gamestate.State) string {
	return defaultProcessor.Render(content, state)
}
