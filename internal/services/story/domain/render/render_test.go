package render

import (
	"bytes"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/louisbranch/storyengine/internal/services/story/domain/gamestate"
)

func TestRender(t *testing.T) {
	armed := gamestate.State{"has_weapon": gamestate.BoolValue(true), "health": gamestate.NumberValue(60)}

	tests := []struct {
		name    string
		content string
		state   gamestate.State
		want    string
	}{
		{
			name:    "true block keeps body",
			content: "You enter.[[IF has_weapon]] You grip the sword.[[ENDIF]] Done.",
			state:   armed,
			want:    "You enter. You grip the sword. Done.",
		},
		{
			name:    "false block is removed",
			content: "You enter.[[IF has_weapon]] You grip the sword.[[ENDIF]] Done.",
			state:   gamestate.State{},
			want:    "You enter. Done.",
		},
		{
			name:    "not missing renders with empty state",
			content: "[[IF NOT has_weapon]]Unarmed.[[ENDIF]]",
			state:   nil,
			want:    "Unarmed.",
		},
		{
			name:    "multiple blocks are independent",
			content: "A[[IF health >= 50]]B[[ENDIF]]C[[IF health < 50]]D[[ENDIF]]E",
			state:   armed,
			want:    "ABCE",
		},
		{
			name:    "multiline body keeps whitespace",
			content: "Start\n[[IF has_weapon]]\n  line one\n  line two\n[[ENDIF]]\nEnd",
			state:   armed,
			want:    "Start\n\n  line one\n  line two\n\nEnd",
		},
		{
			name:    "first endif closes block",
			content: "[[IF has_weapon]]outer [[IF health > 90]]inner[[ENDIF]] tail[[ENDIF]]",
			state:   armed,
			want:    "outer [[IF health > 90]]inner tail[[ENDIF]]",
		},
		{
			name:    "first endif closes block when false",
			content: "[[IF missing]]outer [[IF x]]inner[[ENDIF]] tail[[ENDIF]]",
			state:   armed,
			want:    " tail[[ENDIF]]",
		},
		{
			name:    "unclosed marker passes through",
			content: "Before [[IF has_weapon]] after",
			state:   armed,
			want:    "Before [[IF has_weapon]] after",
		},
		{
			name:    "marker without whitespace is text",
			content: "[[IFhas_weapon]]x[[ENDIF]]",
			state:   armed,
			want:    "[[IFhas_weapon]]x[[ENDIF]]",
		},
		{
			name:    "malformed condition fails closed",
			content: "a[[IF has_weapon AND health]]b[[ENDIF]]c",
			state:   armed,
			want:    "ac",
		},
		{
			name:    "blank condition fails closed",
			content: "a[[IF   ]]b[[ENDIF]]c",
			state:   armed,
			want:    "ac",
		},
		{
			name:    "else is ordinary text",
			content: "[[IF has_weapon]]fight[[ELSE]]flee[[ENDIF]]",
			state:   armed,
			want:    "fight[[ELSE]]flee",
		},
		{
			name:    "quoted string comparison",
			content: `[[IF name == "bob"]]Hi Bob.[[ENDIF]]`,
			state:   gamestate.State{"name": gamestate.TextValue("bob")},
			want:    "Hi Bob.",
		},
		{
			name:    "body is not rescanned",
			content: "[[IF has_weapon]][[IF[[ENDIF]]ENDIF]]",
			state:   armed,
			want:    "[[IFENDIF]]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.content, tt.state); got != tt.want {
				t.Fatalf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderWithoutMarkersIsIdentity(t *testing.T) {
	inputs := []string{
		"",
		"Plain text.",
		"  leading and trailing  \n\n",
		"Brackets [[ but no markers ]] and [IF x].",
		"多語言內容！！",
	}
	for _, in := range inputs {
		if got := Render(in, gamestate.State{"x": gamestate.BoolValue(true)}); got != in {
			t.Fatalf("Render(%q) = %q", in, got)
		}
	}
}

func TestRenderBalancedMarkersLeaveNoTokens(t *testing.T) {
	content := "A[[IF a]]1[[ENDIF]]B[[IF NOT a]]2[[ENDIF]]C[[IF n > 3]]3[[ENDIF]]D"
	states := []gamestate.State{
		nil,
		{"a": gamestate.BoolValue(true)},
		{"n": gamestate.NumberValue(5)},
		{"a": gamestate.TextValue(""), "n": gamestate.TextValue("x")},
	}
	for _, state := range states {
		got := Render(content, state)
		if strings.Contains(got, "[[IF") || strings.Contains(got, "[[ENDIF]]") {
			t.Fatalf("Render() left markers: %q", got)
		}
	}
}

func TestProcessorLogsFaults(t *testing.T) {
	var buf bytes.Buffer
	p := Processor{Logger: log.New(&buf, "", 0)}

	got := p.Render("a[[IF  ]]b[[ENDIF]]c[[IF ok]]d[[ENDIF]]", gamestate.State{"ok": gamestate.BoolValue(true)})
	if got != "acd" {
		t.Fatalf("Render() = %q", got)
	}
	if !strings.Contains(buf.String(), "condition is empty") {
		t.Fatalf("expected empty condition to be logged, got %q", buf.String())
	}
	if strings.Count(buf.String(), "\n") != 1 {
		t.Fatalf("expected one log line, got %q", buf.String())
	}
}

func TestRenderConcurrentCallsShareInput(t *testing.T) {
	var buf bytes.Buffer
	p := Processor{Logger: log.New(&buf, "", 0)}
	state := gamestate.State{"has_weapon": gamestate.BoolValue(true), "health": gamestate.NumberValue(60)}
	content := "Gate.[[IF has_weapon]] Armed.[[ENDIF]][[IF health > 50]] Strong.[[ENDIF]][[IF  ]]x[[ENDIF]][[IF NOT has_weapon]] Bare.[[ENDIF]]"
	const want = "Gate. Armed. Strong."

	const workers = 8
	const rounds = 25
	var wg sync.WaitGroup
	errs := make(chan string, workers*rounds*2)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < rounds; n++ {
				if got := p.Render(content, state); got != want {
					errs <- got
				}
				if got := Render(content, state); got != want {
					errs <- got
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for got := range errs {
		t.Fatalf("Render() = %q, want %q", got, want)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != workers*rounds {
		t.Fatalf("log lines = %d, want %d", lines, workers*rounds)
	}
	if len(state) != 2 {
		t.Fatalf("state mutated: %v", state)
	}
}

func TestZeroProcessorDoesNotLog(t *testing.T) {
	var p Processor
	if got := p.Render("[[IF  ]]x[[ENDIF]]", nil); got != "" {
		t.Fatalf("Render() = %q", got)
	}
}

func TestScan(t *testing.T) {
	content := "x[[IF  a ]]one[[ENDIF]]y[[IF b]]two"
	blocks := Scan(content)
	if len(blocks) != 1 {
		t.Fatalf("expected one block, got %+v", blocks)
	}
	b := blocks[0]
	if b.Expr != "a" || b.Body != "one" {
		t.Fatalf("block = %+v", b)
	}
	if content[b.Start:b.End] != "[[IF  a ]]one[[ENDIF]]" {
		t.Fatalf("span = %q", content[b.Start:b.End])
	}
}

func TestScanRejectsBracketInExpression(t *testing.T) {
	if blocks := Scan("[[IF a]b]]x[[ENDIF]]"); len(blocks) != 0 {
		t.Fatalf("expected no blocks, got %+v", blocks)
	}
}

func TestCountMarkers(t *testing.T) {
	opens, closes := CountMarkers("[[IF a]]x[[ENDIF]][[IF b]]y")
	if opens != 2 || closes != 1 {
		t.Fatalf("CountMarkers = %d, %d", opens, closes)
	}
}

func TestHasElse(t *testing.T) {
	if !HasElse("[[IF a]]x[[ELSE]]y[[ENDIF]]") {
		t.Fatal("expected else")
	}
	if HasElse("[[IF a]]x[[ENDIF]]") {
		t.Fatal("expected no else")
	}
}
