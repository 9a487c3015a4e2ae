// Package validate implements the story validation command.
package validate

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	platformcmd "github.com/louisbranch/storyengine/internal/platform/cmd"
	apperrors "github.com/louisbranch/storyengine/internal/platform/errors"
	storyvalidate "github.com/louisbranch/storyengine/internal/services/story/domain/validate"
	storyimporter "github.com/louisbranch/storyengine/internal/tools/importer/story"
)

// ErrInvalidStory is wrapped by the error Run returns for a failing report.
var ErrInvalidStory = errors.New("story has validation errors")

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds validate command configuration.
type Config struct {
	File    string
	Locale  string `env:"STORYENGINE_LOCALE"          envDefault:"en-US"`
	Format  string `env:"STORYENGINE_VALIDATE_FORMAT" envDefault:"text"`
	Strict  bool   `env:"STORYENGINE_VALIDATE_STRICT"`
	Verbose bool   `env:"STORYENGINE_VERBOSE"`
	StoryID string
	Title   string
}

// ParseConfig parses env and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.File, "file", "", "story file (.json, .yaml or .yml)")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "report locale")
	fs.StringVar(&cfg.Format, "format", cfg.Format, "report format: text or json")
	fs.BoolVar(&cfg.Strict, "strict", cfg.Strict, "fail on warnings as well as errors")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "log progress to stderr")
	fs.StringVar(&cfg.StoryID, "story-id", "", "story id, overrides the file")
	fs.StringVar(&cfg.Title, "title", "", "story title, overrides the file")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.File) == "" {
		return Config{}, errors.New("file is required")
	}
	switch cfg.Format {
	case FormatText, FormatJSON:
	default:
		return Config{}, fmt.Errorf("unsupported format %q", cfg.Format)
	}
	return cfg, nil
}

// Run validates the configured story file and writes the report to out.
// It fails when the report has errors, or warnings under Strict.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	logger := log.New(errOut, "", 0)
	logf := func(format string, args ...any) {
		if cfg.Verbose {
			logger.Printf(format, args...)
		}
	}

	logf("decoding %s", cfg.File)
	story, err := storyimporter.LoadStory(ctx, cfg.File, cfg.StoryID, cfg.Title)
	if err != nil {
		return err
	}
	logf("validating %d chapter(s)", len(story.Chapters))
	report := storyimporter.ValidateStory(ctx, story).Localize(cfg.Locale)

	if err := writeReport(out, cfg.Format, report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	logf("%d error(s), %d warning(s)", len(report.Errors), len(report.Warnings))

	failed := !report.Valid() || (cfg.Strict && len(report.Warnings) > 0)
	if !failed {
		return nil
	}
	return apperrors.WrapWithMetadata(apperrors.CodeStoryInvalid, "validation failed",
		map[string]string{
			"StoryID": report.StoryID,
			"Errors":  strconv.Itoa(len(report.Errors)),
		}, ErrInvalidStory)
}

func writeReport(out io.Writer, format string, report storyvalidate.Report) error {
	if format == FormatJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}
	return storyvalidate.WriteText(out, report)
}
