package play

import (
	"context"
	"errors"
	"reflect"
	"testing"

	apperrors "github.com/louisbranch/storyengine/internal/platform/errors"
	"github.com/louisbranch/storyengine/internal/services/story/domain/gamestate"
	"github.com/louisbranch/storyengine/internal/services/story/domain/graph"
	"github.com/louisbranch/storyengine/internal/services/story/domain/render"
)

func forest() graph.Story {
	locked := "has_key"
	return graph.Story{
		ID:    "forest",
		Title: "The Dark Forest",
		Chapters: []graph.Chapter{
			{
				ID:      1,
				Title:   "Edge",
				Content: "Trees loom.[[IF has_key]] A key glints in your hand.[[ENDIF]]",
				Options: []graph.Option{
					{Text: "Pick up the key", NextID: 2, GameState: gamestate.Delta{"has_key": gamestate.BoolValue(true)}},
					{Text: "Open the gate", NextID: 3, Condition: &locked},
					{Text: "Wander off", NextID: 42},
				},
			},
			{
				ID:      2,
				Title:   "Key",
				Content: "You hold the key.",
				Options: []graph.Option{{Text: "Back", NextID: 1}},
			},
			{ID: 3, Title: "Gate", Content: "The gate creaks open."},
		},
	}
}

func newSession(t *testing.T, initial gamestate.State) *Session {
	t.Helper()
	s, err := NewSession(NewStorySource(forest()), "forest", initial, render.Processor{})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.Start(context.Background(), graph.StartChapterID); err != nil {
		t.Fatalf("start: %v", err)
	}
	return s
}

func TestNewSessionRequiresSource(t *testing.T) {
	if _, err := NewSession(nil, "forest", nil, render.Processor{}); err == nil {
		t.Fatal("expected missing source error")
	}
}

func TestPageBeforeStart(t *testing.T) {
	s, err := NewSession(NewStorySource(forest()), "forest", nil, render.Processor{})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	_, err = s.Page()
	if !errors.Is(err, apperrors.New(apperrors.CodeSessionNotActive, "")) {
		t.Fatalf("err = %v, want SESSION_NOT_ACTIVE", err)
	}
	if _, err := s.Choose(context.Background(), 1); !errors.Is(err, apperrors.New(apperrors.CodeSessionNotActive, "")) {
		t.Fatalf("choose err = %v", err)
	}
}

func TestPageRendersAndReturnsAllOptions(t *testing.T) {
	s := newSession(t, nil)
	page, err := s.Page()
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if page.Content != "Trees loom." {
		t.Fatalf("content = %q", page.Content)
	}
	if len(page.Options) != 3 {
		t.Fatalf("expected all 3 options, got %d", len(page.Options))
	}
	gate := page.Options[1]
	if gate.Index != 2 || gate.Condition != "has_key" || gate.Advisory {
		t.Fatalf("gate option = %+v", gate)
	}
	if !page.Options[0].Advisory {
		t.Fatal("expected unconditioned option to be advisory-true")
	}
	if page.Ending {
		t.Fatal("chapter 1 is not an ending")
	}
}

func TestChooseAppliesDeltaAndMoves(t *testing.T) {
	s := newSession(t, gamestate.State{"gold": gamestate.NumberValue(3)})

	page, err := s.Choose(context.Background(), 1)
	if err != nil {
		t.Fatalf("choose: %v", err)
	}
	if page.ChapterID != 2 {
		t.Fatalf("chapter = %d, want 2", page.ChapterID)
	}
	state := s.State()
	if v, ok := state.Lookup("has_key"); !ok || !v.Truthy() {
		t.Fatalf("has_key = %v, %v", v, ok)
	}
	if v, _ := state.Lookup("gold"); !v.Equal(gamestate.NumberValue(3)) {
		t.Fatalf("gold = %v", v)
	}

	page, err = s.Choose(context.Background(), 1)
	if err != nil {
		t.Fatalf("choose back: %v", err)
	}
	if page.Content != "Trees loom. A key glints in your hand." {
		t.Fatalf("content = %q", page.Content)
	}
	if !page.Options[1].Advisory {
		t.Fatal("expected gate option condition to hold now")
	}
	if got := s.History(); !reflect.DeepEqual(got, []int{1, 2, 1}) {
		t.Fatalf("history = %v", got)
	}
}

func TestChooseIgnoresOptionCondition(t *testing.T) {
	s := newSession(t, nil)
	page, err := s.Choose(context.Background(), 2)
	if err != nil {
		t.Fatalf("choose gated option: %v", err)
	}
	if page.ChapterID != 3 || !page.Ending {
		t.Fatalf("page = %+v", page)
	}
	if _, err := s.Choose(context.Background(), 1); !errors.Is(err, apperrors.New(apperrors.CodeStoryEnded, "")) {
		t.Fatalf("err = %v, want STORY_ENDED", err)
	}
}

func TestChooseOutOfRange(t *testing.T) {
	s := newSession(t, nil)
	for _, index := range []int{0, 4, -1} {
		_, err := s.Choose(context.Background(), index)
		if apperrors.GetCode(err) != apperrors.CodeOptionOutOfRange {
			t.Fatalf("Choose(%d) err = %v", index, err)
		}
	}
}

func TestChooseDanglingLeavesSessionUnchanged(t *testing.T) {
	s := newSession(t, nil)
	_, err := s.Choose(context.Background(), 3)
	if apperrors.GetCode(err) != apperrors.CodeChapterNotFound {
		t.Fatalf("err = %v, want CHAPTER_NOT_FOUND", err)
	}
	page, err := s.Page()
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if page.ChapterID != 1 {
		t.Fatalf("chapter = %d, want 1", page.ChapterID)
	}
	if got := s.History(); !reflect.DeepEqual(got, []int{1}) {
		t.Fatalf("history = %v", got)
	}
}

func TestRestartResetsState(t *testing.T) {
	initial := gamestate.State{"gold": gamestate.NumberValue(1)}
	s := newSession(t, initial)
	if _, err := s.Choose(context.Background(), 1); err != nil {
		t.Fatalf("choose: %v", err)
	}
	if err := s.Restart(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if _, ok := s.State().Lookup("has_key"); ok {
		t.Fatal("expected has_key to be cleared by restart")
	}
	if v, _ := initial.Lookup("has_key"); v.IsValid() {
		t.Fatal("initial state was modified")
	}
}

func TestStorySourceRejectsOtherStory(t *testing.T) {
	source := NewStorySource(forest())
	if _, err := source.GetChapter(context.Background(), "desert", 1); apperrors.GetCode(err) != apperrors.CodeChapterNotFound {
		t.Fatalf("err = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := source.GetChapter(ctx, "forest", 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
