package scenario

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/storyengine/internal/platform/errors"
	"github.com/louisbranch/storyengine/internal/services/story/domain/gamestate"
	"github.com/louisbranch/storyengine/internal/services/story/domain/graph"
	"github.com/louisbranch/storyengine/internal/services/story/domain/play"
)

func (r *Runner) runStep(ctx context.Context, state *scenarioState, step Step) error {
	switch step.Kind {
	case "state":
		return r.runStateStep(state, step)
	case "start":
		return r.runStartStep(ctx, state, step)
	case "restart":
		return r.runRestartStep(ctx, state)
	case "choose":
		return r.runChooseStep(ctx, state, step)
	case "expect_chapter":
		return r.runExpectChapterStep(state, step)
	case "expect_text":
		return r.runExpectTextStep(state, step, true)
	case "reject_text":
		return r.runExpectTextStep(state, step, false)
	case "expect_state":
		return r.runExpectStateStep(state, step)
	case "expect_ending":
		return r.runExpectEndingStep(state, step)
	case "expect_options":
		return r.runExpectOptionsStep(state, step)
	default:
		return r.failf("unknown step kind %q", step.Kind)
	}
}

// runStateStep sets the state the next start begins with.
func (r *Runner) runStateStep(state *scenarioState, step Step) error {
	values, ok := step.Args["values"].(map[string]any)
	if !ok {
		return r.failf("state: values must be a table, got %T", step.Args["values"])
	}
	parsed, err := gamestate.FromMap(values)
	if err != nil {
		return r.failf("state: %v", err)
	}
	state.initial = gamestate.State(parsed)
	return nil
}

func (r *Runner) runStartStep(ctx context.Context, state *scenarioState, step Step) error {
	chapter := optionalInt(step.Args, "chapter", graph.StartChapterID)
	session, err := play.NewSession(r.source, state.storyID, state.initial, r.processor())
	if err != nil {
		return err
	}
	if err := session.Start(ctx, chapter); err != nil {
		return err
	}
	state.session = session
	return r.refreshPage(state)
}

func (r *Runner) runRestartStep(ctx context.Context, state *scenarioState) error {
	if err := r.ensureSession(state); err != nil {
		return err
	}
	if err := state.session.Restart(ctx); err != nil {
		return err
	}
	return r.refreshPage(state)
}

func (r *Runner) runChooseStep(ctx context.Context, state *scenarioState, step Step) error {
	if err := r.ensureSession(state); err != nil {
		return err
	}
	option := optionalInt(step.Args, "option", 0)
	expectError := strings.TrimSpace(optionalString(step.Args, "expect_error", ""))

	page, err := state.session.Choose(ctx, option)
	if expectError != "" {
		if err == nil {
			return r.assertf("choose %d: expected %s, got chapter %d", option, expectError, page.ChapterID)
		}
		if got := apperrors.GetCode(err); string(got) != expectError {
			return r.assertf("choose %d: expected %s, got %s (%v)", option, expectError, got, err)
		}
		return nil
	}
	if err != nil {
		return err
	}
	state.page = &page
	return nil
}

func (r *Runner) runExpectChapterStep(state *scenarioState, step Step) error {
	if err := r.ensurePage(state); err != nil {
		return err
	}
	want := optionalInt(step.Args, "chapter", 0)
	if state.page.ChapterID != want {
		return r.assertf("expected chapter %d, got %d", want, state.page.ChapterID)
	}
	return nil
}

func (r *Runner) runExpectTextStep(state *scenarioState, step Step, present bool) error {
	if err := r.ensurePage(state); err != nil {
		return err
	}
	text := requiredString(step.Args, "text")
	if text == "" {
		return r.failf("%s: text is required", step.Kind)
	}
	found := strings.Contains(state.page.Content, text)
	switch {
	case present && !found:
		return r.assertf("expected chapter %d to contain %q, got %q", state.page.ChapterID, text, state.page.Content)
	case !present && found:
		return r.assertf("expected chapter %d not to contain %q, got %q", state.page.ChapterID, text, state.page.Content)
	}
	return nil
}

func (r *Runner) runExpectStateStep(state *scenarioState, step Step) error {
	if err := r.ensureSession(state); err != nil {
		return err
	}
	name := requiredString(step.Args, "name")
	if name == "" {
		return r.failf("expect_state: name is required")
	}
	got, ok := state.session.State().Lookup(name)
	if absent, _ := readBool(step.Args, "absent"); absent {
		if ok {
			return r.assertf("expected %s to be unset, got %s", name, got)
		}
		return nil
	}

	want, err := gamestate.FromAny(step.Args["value"])
	if err != nil {
		return r.failf("expect_state %s: %v", name, err)
	}
	if !ok {
		return r.assertf("expected %s = %s, but it is unset", name, want)
	}
	if !got.Equal(want) {
		return r.assertf("expected %s = %s, got %s", name, want, got)
	}
	return nil
}

func (r *Runner) runExpectEndingStep(state *scenarioState, step Step) error {
	if err := r.ensurePage(state); err != nil {
		return err
	}
	want, _ := readBool(step.Args, "ending")
	if state.page.Ending != want {
		return r.assertf("expected ending=%t at chapter %d, got %t", want, state.page.ChapterID, state.page.Ending)
	}
	return nil
}

func (r *Runner) runExpectOptionsStep(state *scenarioState, step Step) error {
	if err := r.ensurePage(state); err != nil {
		return err
	}
	want := optionalInt(step.Args, "count", 0)
	if got := len(state.page.Options); got != want {
		return r.assertf("expected %d option(s) at chapter %d, got %d", want, state.page.ChapterID, got)
	}
	if advisory, ok := readInt(step.Args, "advisory"); ok {
		got := 0
		for _, opt := range state.page.Options {
			if opt.Advisory {
				got++
			}
		}
		if got != advisory {
			return r.assertf("expected %d advisory option(s) at chapter %d, got %d", advisory, state.page.ChapterID, got)
		}
	}
	return nil
}

func (r *Runner) refreshPage(state *scenarioState) error {
	page, err := state.session.Page()
	if err != nil {
		return err
	}
	state.page = &page
	return nil
}

func (r *Runner) ensureSession(state *scenarioState) error {
	if state.session == nil {
		return r.failf("story is not started; call start first")
	}
	return nil
}

func (r *Runner) ensurePage(state *scenarioState) error {
	if err := r.ensureSession(state); err != nil {
		return err
	}
	if state.page == nil {
		return fmt.Errorf("no page rendered")
	}
	return nil
}
