package play

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/louisbranch/storyengine/internal/platform/errors"
	"github.com/louisbranch/storyengine/internal/services/story/domain/graph"
	"github.com/louisbranch/storyengine/internal/services/story/storage"
	storagesqlite "github.com/louisbranch/storyengine/internal/services/story/storage/sqlite"
)

const forestFile = "../../tools/importer/story/testdata/forest.json"

func TestParseConfigRequiresStory(t *testing.T) {
	t.Setenv("STORYENGINE_STORY_FILE", "")
	t.Setenv("STORYENGINE_STORY_ID", "")

	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	if _, err := ParseConfig(fs, nil); err == nil {
		t.Fatal("expected missing story error")
	}
}

func TestParseConfigEnvAndFlags(t *testing.T) {
	t.Setenv("STORYENGINE_STORY_ID", "forest")
	t.Setenv("STORYENGINE_PLAY_STATE", `{"gold": 3}`)

	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-locale", "zh-TW", "-db-path", "stories.db"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.StoryID != "forest" || cfg.State != `{"gold": 3}` {
		t.Fatalf("env config = %+v", cfg)
	}
	if cfg.Locale != "zh-TW" || cfg.DBPath != "stories.db" {
		t.Fatalf("flag config = %+v", cfg)
	}
}

func TestOpenSessionFromFile(t *testing.T) {
	session, closeFn, err := OpenSession(context.Background(), Config{
		StoryFile: forestFile,
		State:     `{"has_lantern": true}`,
	}, nil)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	defer closeFn()

	if err := session.Start(context.Background(), graph.StartChapterID); err != nil {
		t.Fatalf("start: %v", err)
	}
	page, err := session.Page()
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if !strings.Contains(page.Content, "Your lantern flickers.") {
		t.Fatalf("content = %q", page.Content)
	}
}

func TestOpenSessionRejectsInvalidStory(t *testing.T) {
	_, _, err := OpenSession(context.Background(), Config{
		StoryFile: "../../tools/importer/story/testdata/broken.json",
	}, nil)
	if apperrors.GetCode(err) != apperrors.CodeStoryInvalid {
		t.Fatalf("err = %v, want STORY_INVALID", err)
	}
}

func TestOpenSessionRejectsBadState(t *testing.T) {
	if _, _, err := OpenSession(context.Background(), Config{StoryFile: forestFile, State: "[1, 2]"}, nil); err == nil {
		t.Fatal("expected state parse error")
	}
}

func TestOpenSessionFromStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "stories.db")
	store, err := storagesqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	story, err := graph.ReadFile(forestFile)
	if err != nil {
		t.Fatalf("read story: %v", err)
	}
	if _, err := store.ImportStory(context.Background(), story, false); err != nil {
		t.Fatalf("import: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var logs bytes.Buffer
	session, closeFn, err := OpenSession(context.Background(), Config{DBPath: dbPath, StoryID: "forest", Verbose: true}, &logs)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	defer closeFn()
	if err := session.Start(context.Background(), graph.StartChapterID); err != nil {
		t.Fatalf("start: %v", err)
	}
	page, err := session.Choose(context.Background(), 1)
	if err != nil {
		t.Fatalf("choose: %v", err)
	}
	if page.ChapterID != 2 || !page.Ending {
		t.Fatalf("page = %+v", page)
	}

	_, _, err = OpenSession(context.Background(), Config{DBPath: dbPath, StoryID: "missing"}, nil)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing story err = %v, want %v", err, storage.ErrNotFound)
	}
	if code := apperrors.GetCode(err); code != apperrors.CodeNotFound || code.ExitCode() != 3 {
		t.Fatalf("missing story code = %s, want NOT_FOUND with exit code 3", code)
	}
}
