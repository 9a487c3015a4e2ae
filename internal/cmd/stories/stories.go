// Package stories implements the command that lists and exports imported stories.
package stories

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"

	platformcmd "github.com/louisbranch/storyengine/internal/platform/cmd"
	apperrors "github.com/louisbranch/storyengine/internal/platform/errors"
	"github.com/louisbranch/storyengine/internal/platform/i18n/catalog"
	"github.com/louisbranch/storyengine/internal/services/story/core/pagination"
	"github.com/louisbranch/storyengine/internal/services/story/domain/graph"
	"github.com/louisbranch/storyengine/internal/services/story/domain/validate"
	"github.com/louisbranch/storyengine/internal/services/story/storage"
	storagesqlite "github.com/louisbranch/storyengine/internal/services/story/storage/sqlite"
	storyimporter "github.com/louisbranch/storyengine/internal/tools/importer/story"
	"golang.org/x/text/message"
)

// Config holds stories command configuration.
type Config struct {
	DBPath     string `env:"STORYENGINE_DB_PATH"   envDefault:"data/stories.db"`
	Locale     string `env:"STORYENGINE_LOCALE"    envDefault:"en-US"`
	PageSize   int    `env:"STORYENGINE_PAGE_SIZE" envDefault:"20"`
	Filter     string
	PageToken  string
	Revalidate bool
	Export     string
}

// ParseConfig parses env and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "story database path")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "output locale")
	fs.IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "stories per page (at most 100)")
	fs.StringVar(&cfg.Filter, "filter", "", `AIP-160 filter, e.g. author = "Ada" AND chapter_count > 3`)
	fs.StringVar(&cfg.PageToken, "page-token", "", "token from a previous page")
	fs.BoolVar(&cfg.Revalidate, "revalidate", false, "reload and validate every listed story")
	fs.StringVar(&cfg.Export, "export", "", "write the story with this id as interchange JSON instead of listing")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Store is the storage the command reads from.
type Store interface {
	ListStories(ctx context.Context, filter string, pageSize int, pageToken string) (storage.StoryPage, error)
	LoadStory(ctx context.Context, storyID string) (graph.Story, error)
}

// Run opens the configured database and lists one page of stories, or
// exports one story when Export is set.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	store, err := storagesqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open story store: %w", err)
	}
	defer store.Close()
	if cfg.Export != "" {
		return Export(ctx, store, cfg.Export, out)
	}
	return List(ctx, store, cfg, out, errOut)
}

// Export writes the stored story as interchange JSON, readable by the
// importer and the validate command.
func Export(ctx context.Context, store Store, storyID string, out io.Writer) error {
	if store == nil {
		return errors.New("story store is required")
	}
	if out == nil {
		out = io.Discard
	}
	story, err := store.LoadStory(ctx, storyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.WrapWithMetadata(apperrors.CodeNotFound, "story not found",
				map[string]string{"StoryID": storyID}, err)
		}
		return fmt.Errorf("load story %s: %w", storyID, err)
	}
	return graph.Encode(out, story)
}

// List prints one page of stories from store. With Revalidate, every story
// is reloaded from its rows and validated again.
func List(ctx context.Context, store Store, cfg Config, out io.Writer, errOut io.Writer) error {
	if store == nil {
		return errors.New("story store is required")
	}
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	logger := log.New(errOut, "", 0)
	p := catalog.Default().Printer(cfg.Locale)

	pageSize := pagination.ClampPageSize(cfg.PageSize, pagination.Stories)
	page, err := store.ListStories(ctx, cfg.Filter, pageSize, cfg.PageToken)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, p.Sprintf("report.list_header", len(page.Stories)))
	invalid := 0
	for _, record := range page.Stories {
		fmt.Fprintln(out, p.Sprintf("report.list_row", record.ID, record.Title, record.Author, record.Version, record.ChapterCount))
		if !cfg.Revalidate {
			continue
		}
		ok, err := revalidate(ctx, store, record.ID, cfg.Locale, p, out)
		if err != nil {
			logger.Printf("revalidate %s: %v", record.ID, err)
			invalid++
			continue
		}
		if !ok {
			invalid++
		}
	}
	if page.NextPageToken != "" {
		fmt.Fprintln(out, p.Sprintf("report.list_next_page", page.NextPageToken))
	}
	if invalid > 0 {
		return fmt.Errorf("%d stored story(ies) failed validation", invalid)
	}
	return nil
}

func revalidate(ctx context.Context, store Store, storyID, locale string, p *message.Printer, out io.Writer) (bool, error) {
	story, err := store.LoadStory(ctx, storyID)
	if err != nil {
		return false, err
	}
	report := storyimporter.ValidateStory(ctx, story).Localize(locale)
	switch {
	case !report.Valid():
		fmt.Fprintln(out, "    "+p.Sprintf("report.verdict_invalid", len(report.Errors)))
		writeIssues(out, report.Errors)
	case len(report.Warnings) > 0:
		fmt.Fprintln(out, "    "+p.Sprintf("report.verdict_warnings", len(report.Warnings)))
	default:
		fmt.Fprintln(out, "    "+p.Sprintf("report.verdict_valid"))
	}
	return report.Valid(), nil
}

func writeIssues(out io.Writer, issues []validate.Issue) {
	for i, issue := range issues {
		fmt.Fprintf(out, "      %d. %s\n", i+1, issue.Message)
	}
}
