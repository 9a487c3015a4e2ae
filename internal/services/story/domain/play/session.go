// Package play walks a story one chapter at a time: it renders the
// current chapter against the player's state, lists its options and
// applies option state changes when the player chooses.
//
// Option conditions are advisory. They are evaluated for display but never
// prevent a choice.
package play

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	apperrors "github.com/louisbranch/storyengine/internal/platform/errors"
	"github.com/louisbranch/storyengine/internal/services/story/domain/condition"
	"github.com/louisbranch/storyengine/internal/services/story/domain/gamestate"
	"github.com/louisbranch/storyengine/internal/services/story/domain/graph"
	"github.com/louisbranch/storyengine/internal/services/story/domain/render"
)

// Page is the rendered view of the current chapter.
type Page struct {
	StoryID   string
	ChapterID int
	Title     string
	Content   string
	Options   []PageOption
	Ending    bool
}

// PageOption is one option as shown to the player.
type PageOption struct {
	// Index is 1-based, matching Choose.
	Index     int
	Text      string
	NextID    int
	Condition string
	// Advisory is false when the option has a condition that does not
	// currently hold.
	Advisory bool
}

// Session is one player's walk through a story. It is not safe for
// concurrent use.
type Session struct {
	source    ChapterSource
	storyID   string
	processor render.Processor
	initial   gamestate.State
	state     gamestate.State
	current   *graph.Chapter
	history   []int
}

// NewSession prepares a session; call Start before Page or Choose.
func NewSession(source ChapterSource, storyID string, initial gamestate.State, processor render.Processor) (*Session, error) {
	if source == nil {
		return nil, errors.New("chapter source is required")
	}
	return &Session{
		source:    source,
		storyID:   storyID,
		processor: processor,
		initial:   initial.Clone(),
		state:     initial.Clone(),
	}, nil
}

// StoryID returns the story being played.
func (s *Session) StoryID() string {
	return s.storyID
}

// Start resets the state to its initial value and moves to chapterID.
func (s *Session) Start(ctx context.Context, chapterID int) error {
	ch, err := s.source.GetChapter(ctx, s.storyID, chapterID)
	if err != nil {
		return fmt.Errorf("start chapter %d: %w", chapterID, err)
	}
	s.state = s.initial.Clone()
	s.current = &ch
	s.history = []int{ch.ID}
	return nil
}

// Restart starts over from the start chapter.
func (s *Session) Restart(ctx context.Context) error {
	return s.Start(ctx, graph.StartChapterID)
}

// Page renders the current chapter.
func (s *Session) Page() (Page, error) {
	if s.current == nil {
		return Page{}, apperrors.New(apperrors.CodeSessionNotActive, "session has no current chapter")
	}
	ch := s.current
	page := Page{
		StoryID:   s.storyID,
		ChapterID: ch.ID,
		Title:     ch.Title,
		Content:   s.processor.Render(ch.Content, s.state),
		Options:   make([]PageOption, 0, len(ch.Options)),
		Ending:    ch.IsEnding(),
	}
	for i, opt := range ch.Options {
		po := PageOption{Index: i + 1, Text: opt.Text, NextID: opt.NextID, Advisory: true}
		if opt.Condition != nil {
			po.Condition = *opt.Condition
			po.Advisory = condition.Evaluate(*opt.Condition, s.state)
		}
		page.Options = append(page.Options, po)
	}
	return page, nil
}

// Choose follows option index (1-based): it applies the option's state
// changes and moves to its target chapter. On error the session is
// unchanged.
func (s *Session) Choose(ctx context.Context, index int) (Page, error) {
	if s.current == nil {
		return Page{}, apperrors.New(apperrors.CodeSessionNotActive, "session has no current chapter")
	}
	options := s.current.Options
	if len(options) == 0 {
		return Page{}, apperrors.New(apperrors.CodeStoryEnded, "chapter has no options")
	}
	if index < 1 || index > len(options) {
		return Page{}, apperrors.WithMetadata(apperrors.CodeOptionOutOfRange,
			fmt.Sprintf("option %d out of range", index),
			map[string]string{"Count": strconv.Itoa(len(options))})
	}

	opt := options[index-1]
	next, err := s.source.GetChapter(ctx, s.storyID, opt.NextID)
	if err != nil {
		return Page{}, fmt.Errorf("choose option %d: %w", index, err)
	}
	s.state = s.state.Apply(opt.GameState)
	s.current = &next
	s.history = append(s.history, next.ID)
	return s.Page()
}

// State returns a copy of the current state.
func (s *Session) State() gamestate.State {
	return s.state.Clone()
}

// History returns the chapter ids visited since the last Start.
func (s *Session) History() []int {
	return append([]int(nil), s.history...)
}
