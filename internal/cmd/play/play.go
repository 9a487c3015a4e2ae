// Package play implements the interactive terminal player command.
package play

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	platformcmd "github.com/louisbranch/storyengine/internal/platform/cmd"
	apperrors "github.com/louisbranch/storyengine/internal/platform/errors"
	"github.com/louisbranch/storyengine/internal/services/story/domain/gamestate"
	"github.com/louisbranch/storyengine/internal/services/story/domain/play"
	"github.com/louisbranch/storyengine/internal/services/story/domain/render"
	"github.com/louisbranch/storyengine/internal/services/story/storage"
	storagesqlite "github.com/louisbranch/storyengine/internal/services/story/storage/sqlite"
	"github.com/louisbranch/storyengine/internal/services/story/tui"
	storyimporter "github.com/louisbranch/storyengine/internal/tools/importer/story"
)

// Config holds play command configuration.
type Config struct {
	DBPath    string `env:"STORYENGINE_DB_PATH"    envDefault:"data/stories.db"`
	StoryFile string `env:"STORYENGINE_STORY_FILE"`
	StoryID   string `env:"STORYENGINE_STORY_ID"`
	Locale    string `env:"STORYENGINE_LOCALE"     envDefault:"en-US"`
	State     string `env:"STORYENGINE_PLAY_STATE"`
	Verbose   bool   `env:"STORYENGINE_VERBOSE"`
}

// ParseConfig parses env and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "story database path")
	fs.StringVar(&cfg.StoryFile, "story", cfg.StoryFile, "story file to play instead of the database")
	fs.StringVar(&cfg.StoryID, "story-id", cfg.StoryID, "story id to play")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "interface locale")
	fs.StringVar(&cfg.State, "state", cfg.State, `initial state as a JSON object, e.g. {"has_key": true}`)
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "log condition errors to stderr")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.StoryFile) == "" && strings.TrimSpace(cfg.StoryID) == "" {
		return Config{}, errors.New("story or story-id is required")
	}
	return cfg, nil
}

// Run opens a session for the configured story and plays it in the terminal.
func Run(ctx context.Context, cfg Config, in io.Reader, out io.Writer, errOut io.Writer) error {
	session, closeFn, err := OpenSession(ctx, cfg, errOut)
	if err != nil {
		return err
	}
	defer closeFn()

	var opts []tea.ProgramOption
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	}
	if out != nil {
		opts = append(opts, tea.WithOutput(out))
	}
	return tui.Run(ctx, session, cfg.Locale, opts...)
}

// OpenSession builds a session from a story file or the SQLite store. Story
// files are validated first and refused when they have errors. The returned
// func releases the store.
func OpenSession(ctx context.Context, cfg Config, errOut io.Writer) (*play.Session, func() error, error) {
	if errOut == nil {
		errOut = io.Discard
	}
	initial, err := gamestate.ParseState([]byte(cfg.State))
	if err != nil {
		return nil, nil, err
	}
	processor := render.Processor{}
	if cfg.Verbose {
		processor.Logger = log.New(errOut, "", 0)
	}
	noop := func() error { return nil }

	if strings.TrimSpace(cfg.StoryFile) != "" {
		story, err := storyimporter.LoadStory(ctx, cfg.StoryFile, cfg.StoryID, "")
		if err != nil {
			return nil, nil, err
		}
		if report := storyimporter.ValidateStory(ctx, story); !report.Valid() {
			return nil, nil, storyimporter.InvalidError(report)
		}
		session, err := play.NewSession(play.NewStorySource(story), story.ID, initial, processor)
		if err != nil {
			return nil, nil, err
		}
		return session, noop, nil
	}

	store, err := storagesqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open story store: %w", err)
	}
	if _, err := store.GetStory(ctx, cfg.StoryID); err != nil {
		store.Close()
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, apperrors.WrapWithMetadata(apperrors.CodeNotFound, "story not found",
				map[string]string{"StoryID": cfg.StoryID}, err)
		}
		return nil, nil, fmt.Errorf("get story %s: %w", cfg.StoryID, err)
	}
	session, err := play.NewSession(store, cfg.StoryID, initial, processor)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return session, store.Close, nil
}
