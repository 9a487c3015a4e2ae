// Package storyimporter decodes a story file, validates it and writes it to
// the SQLite story store.
package storyimporter

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	platformcmd "github.com/louisbranch/storyengine/internal/platform/cmd"
	apperrors "github.com/louisbranch/storyengine/internal/platform/errors"
	"github.com/louisbranch/storyengine/internal/platform/i18n/catalog"
	"github.com/louisbranch/storyengine/internal/platform/otel"
	"github.com/louisbranch/storyengine/internal/services/story/domain/graph"
	"github.com/louisbranch/storyengine/internal/services/story/domain/validate"
	"github.com/louisbranch/storyengine/internal/services/story/storage"
	storagesqlite "github.com/louisbranch/storyengine/internal/services/story/storage/sqlite"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Config holds configuration for the story importer.
type Config struct {
	File    string
	DBPath  string `env:"STORYENGINE_DB_PATH" envDefault:"data/stories.db"`
	Locale  string `env:"STORYENGINE_LOCALE"  envDefault:"en-US"`
	StoryID string
	Title   string
	DryRun  bool
	Replace bool
}

// ParseConfig loads env defaults and then parses CLI flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.File, "file", "", "story file (.json, .yaml or .yml)")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "story database path")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "locale for the validation report")
	fs.StringVar(&cfg.StoryID, "story-id", "", "story id, overrides the file")
	fs.StringVar(&cfg.Title, "title", "", "story title, overrides the file")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "validate without writing to the database")
	fs.BoolVar(&cfg.Replace, "replace", false, "replace an existing story with the same id")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.File) == "" {
		return Config{}, errors.New("file is required")
	}
	return cfg, nil
}

// LoadStory reads path and applies the id and title overrides. Bare chapter
// arrays carry no metadata, so the overrides are how they get an id.
func LoadStory(ctx context.Context, path, storyID, title string) (graph.Story, error) {
	_, span := otel.StartSpan(ctx, "story.decode", trace.WithAttributes(attribute.String("story.file", filepath.Base(path))))
	defer span.End()

	story, err := graph.ReadFile(path)
	if err != nil {
		otel.RecordError(span, err)
		return graph.Story{}, apperrors.Wrap(apperrors.CodeDecodeFailed, "decode story", err)
	}
	if id := strings.TrimSpace(storyID); id != "" {
		story.ID = id
	}
	if t := strings.TrimSpace(title); t != "" {
		story.Title = t
	}
	return story, nil
}

// ValidateStory runs every check over story inside a span.
func ValidateStory(ctx context.Context, story graph.Story) validate.Report {
	_, span := otel.StartSpan(ctx, "story.validate", trace.WithAttributes(
		attribute.String("story.id", story.ID),
		attribute.Int("story.chapters", len(story.Chapters)),
	))
	defer span.End()

	report := validate.Validate(story)
	span.SetAttributes(
		attribute.Int("validate.errors", len(report.Errors)),
		attribute.Int("validate.warnings", len(report.Warnings)),
	)
	return report
}

// InvalidError is the STORY_INVALID error for a failed report.
func InvalidError(report validate.Report) error {
	return apperrors.WithMetadata(apperrors.CodeStoryInvalid,
		fmt.Sprintf("story %s has %d validation error(s)", report.StoryID, len(report.Errors)),
		map[string]string{"StoryID": report.StoryID, "Errors": strconv.Itoa(len(report.Errors))})
}

// Run executes the importer using the provided Config. The validation
// report is written to out; import is refused when it has errors.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if out == nil {
		out = io.Discard
	}
	if strings.TrimSpace(cfg.File) == "" {
		return errors.New("file is required")
	}

	story, err := LoadStory(ctx, cfg.File, cfg.StoryID, cfg.Title)
	if err != nil {
		return err
	}
	report := ValidateStory(ctx, story).Localize(cfg.Locale)
	if err := validate.WriteText(out, report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if !report.Valid() {
		return InvalidError(report)
	}

	p := catalog.Default().Printer(cfg.Locale)
	if cfg.DryRun {
		_, err := fmt.Fprintln(out, p.Sprintf("report.import_dry_run", story.ID, len(story.Chapters)))
		return err
	}

	store, err := storagesqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open story store: %w", err)
	}
	defer store.Close()

	record, err := importStory(ctx, store, story, cfg.Replace)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, p.Sprintf("report.import_done", record.ID, record.ChapterCount))
	return err
}

type storyImporter interface {
	ImportStory(ctx context.Context, story graph.Story, replace bool) (storage.StoryRecord, error)
}

func importStory(ctx context.Context, store storyImporter, story graph.Story, replace bool) (storage.StoryRecord, error) {
	ctx, span := otel.StartSpan(ctx, "story.import", trace.WithAttributes(
		attribute.String("story.id", story.ID),
		attribute.Bool("import.replace", replace),
	))
	defer span.End()

	record, err := store.ImportStory(ctx, story, replace)
	if err != nil {
		otel.RecordError(span, err)
		if errors.Is(err, storage.ErrAlreadyExists) {
			return storage.StoryRecord{}, apperrors.WrapWithMetadata(apperrors.CodeStoryExists,
				"story already exists", map[string]string{"StoryID": story.ID}, err)
		}
		return storage.StoryRecord{}, fmt.Errorf("import story: %w", err)
	}
	return record, nil
}
