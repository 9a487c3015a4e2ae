// Package scenario runs Lua walkthrough scripts against a story: it starts
// a playthrough, makes choices and checks what the player would see.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/louisbranch/storyengine/internal/platform/otel"
	"github.com/louisbranch/storyengine/internal/platform/timeouts"
	"github.com/louisbranch/storyengine/internal/services/story/domain/graph"
	"github.com/louisbranch/storyengine/internal/services/story/domain/play"
	"github.com/louisbranch/storyengine/internal/services/story/domain/render"
	storagesqlite "github.com/louisbranch/storyengine/internal/services/story/storage/sqlite"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Config controls scenario execution. StoryFile takes precedence over
// DBPath.
type Config struct {
	StoryFile  string
	DBPath     string
	Timeout    time.Duration
	Assertions AssertionMode
	Verbose    bool
	Logger     *log.Logger
}

// DefaultConfig returns default runner configuration.
func DefaultConfig() Config {
	return Config{
		DBPath:     "data/stories.db",
		Timeout:    timeouts.ScenarioStep,
		Assertions: AssertionStrict,
	}
}

// Runner executes Lua scenarios against a chapter source.
type Runner struct {
	source     play.ChapterSource
	storyID    string
	closer     io.Closer
	assertions Assertions
	logger     *log.Logger
	verbose    bool
	timeout    time.Duration
}

// NewRunner opens the configured story source and prepares a runner.
func NewRunner(ctx context.Context, cfg Config) (*Runner, error) {
	var deps runnerDeps
	switch {
	case strings.TrimSpace(cfg.StoryFile) != "":
		story, err := graph.ReadFile(cfg.StoryFile)
		if err != nil {
			return nil, fmt.Errorf("read story: %w", err)
		}
		deps = runnerDeps{source: play.NewStorySource(story), storyID: story.ID}
	case strings.TrimSpace(cfg.DBPath) != "":
		store, err := storagesqlite.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open story store: %w", err)
		}
		deps = runnerDeps{source: store, closer: store}
	default:
		return nil, errors.New("story file or database path is required")
	}
	return newRunnerWithDeps(cfg, deps)
}

// newRunnerWithDeps builds a Runner from pre-built dependencies.
// Config defaults (logger, timeout) are applied here so they are testable.
func newRunnerWithDeps(cfg Config, deps runnerDeps) (*Runner, error) {
	if deps.source == nil {
		return nil, errors.New("chapter source is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = timeouts.ScenarioStep
	}

	return &Runner{
		source:     deps.source,
		storyID:    deps.storyID,
		closer:     deps.closer,
		assertions: Assertions{Mode: cfg.Assertions, Logger: logger},
		logger:     logger,
		verbose:    cfg.Verbose,
		timeout:    timeout,
	}, nil
}

// Close releases resources held by the runner.
func (r *Runner) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// RunFile loads and executes a scenario file.
func RunFile(ctx context.Context, cfg Config, path string) error {
	runner, err := NewRunner(ctx, cfg)
	if err != nil {
		return err
	}
	defer runner.Close()

	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		return err
	}
	return runner.RunScenario(ctx, scenario)
}

// RunScenario executes the scenario steps in order.
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario) error {
	if scenario == nil {
		return errors.New("scenario is required")
	}
	storyID := r.resolveStoryID(scenario)
	ctx, span := otel.StartSpan(ctx, "scenario.run", trace.WithAttributes(
		attribute.String("scenario.name", scenario.Name),
		attribute.String("story.id", storyID),
		attribute.Int("scenario.steps", len(scenario.Steps)),
	))
	defer span.End()

	r.logf("scenario start: %s on %s (%d steps)", scenario.Name, storyID, len(scenario.Steps))
	state := &scenarioState{storyID: storyID}

	for index, step := range scenario.Steps {
		stepNumber := index + 1
		r.logf("step %d/%d start: %s", stepNumber, len(scenario.Steps), step.Kind)
		stepStart := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.runStep(stepCtx, state, step)
		cancel()
		if err != nil {
			otel.RecordError(span, err)
			return fmt.Errorf("step %d (%s): %w", stepNumber, step.Kind, err)
		}
		r.logf("step %d/%d done: %s (%s)", stepNumber, len(scenario.Steps), step.Kind, time.Since(stepStart))
	}
	r.logf("scenario done: %s", scenario.Name)
	return nil
}

func (r *Runner) resolveStoryID(scenario *Scenario) string {
	if id := strings.TrimSpace(scenario.Story); id != "" {
		return id
	}
	if r.storyID != "" {
		return r.storyID
	}
	return scenario.Name
}

func (r *Runner) processor() render.Processor {
	return render.Processor{Logger: r.logger}
}

func (r *Runner) logf(format string, args ...any) {
	if !r.verbose || r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}
