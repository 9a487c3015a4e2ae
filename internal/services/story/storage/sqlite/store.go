// Package sqlite provides a SQLite-backed story and chapter store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/louisbranch/storyengine/internal/platform/errors"
	sqlitemigrate "github.com/louisbranch/storyengine/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/storyengine/internal/services/story/core/filter"
	"github.com/louisbranch/storyengine/internal/services/story/domain/graph"
	"github.com/louisbranch/storyengine/internal/services/story/storage"
	"github.com/louisbranch/storyengine/internal/services/story/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists stories and their chapters in SQLite. Every story shares
// the same chapters table, keyed by (story_id, id).
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite story store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func (s *Store) clock() time.Time {
	if s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}

// PutStory inserts or updates story metadata. CreatedAt is kept from the
// first insert.
func (s *Store) PutStory(ctx context.Context, story storage.StoryRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.putStory(ctx, s.sqlDB, story)
}

func (s *Store) putStory(ctx context.Context, db execer, story storage.StoryRecord) error {
	storyID := strings.TrimSpace(story.ID)
	if storyID == "" {
		return fmt.Errorf("story id is required")
	}
	createdAt := story.CreatedAt.UTC()
	updatedAt := story.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = s.clock()
	}
	if createdAt.IsZero() {
		createdAt = updatedAt
	}

	_, err := db.ExecContext(
		ctx,
		`INSERT INTO stories (
		   id, title, description, author, version,
		   chapter_count, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   title = excluded.title,
		   description = excluded.description,
		   author = excluded.author,
		   version = excluded.version,
		   chapter_count = excluded.chapter_count,
		   updated_at = excluded.updated_at`,
		storyID,
		strings.TrimSpace(story.Title),
		strings.TrimSpace(story.Description),
		strings.TrimSpace(story.Author),
		strings.TrimSpace(story.Version),
		story.ChapterCount,
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("put story: %w", err)
	}
	return nil
}

// GetStory returns one story's metadata.
func (s *Store) GetStory(ctx context.Context, storyID string) (storage.StoryRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.StoryRecord{}, err
	}
	storyID = strings.TrimSpace(storyID)
	if storyID == "" {
		return storage.StoryRecord{}, fmt.Errorf("story id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, title, description, author, version,
		        chapter_count, created_at, updated_at
		   FROM stories
		  WHERE id = ?`,
		storyID,
	)
	record, err := scanStory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.StoryRecord{}, storage.ErrNotFound
		}
		return storage.StoryRecord{}, fmt.Errorf("get story: %w", err)
	}
	return record, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStory(row rowScanner) (storage.StoryRecord, error) {
	var record storage.StoryRecord
	var createdAt int64
	var updatedAt int64
	if err := row.Scan(
		&record.ID,
		&record.Title,
		&record.Description,
		&record.Author,
		&record.Version,
		&record.ChapterCount,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.StoryRecord{}, err
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

// ListStories returns one page of stories ordered by id, narrowed by an
// AIP-160 filter.
func (s *Store) ListStories(ctx context.Context, filterStr string, pageSize int, pageToken string) (storage.StoryPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.StoryPage{}, err
	}
	if pageSize <= 0 {
		return storage.StoryPage{}, fmt.Errorf("page size must be greater than zero")
	}
	cond, err := filter.ParseStoryFilter(filterStr)
	if err != nil {
		return storage.StoryPage{}, fmt.Errorf("list stories: %w", err)
	}

	var clauses []string
	var params []any
	if !cond.Empty() {
		clauses = append(clauses, cond.Clause)
		params = append(params, cond.Params...)
	}
	if pageToken = strings.TrimSpace(pageToken); pageToken != "" {
		clauses = append(clauses, "id > ?")
		params = append(params, pageToken)
	}
	query := `SELECT id, title, description, author, version,
	                 chapter_count, created_at, updated_at
	            FROM stories`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id ASC LIMIT ?"
	params = append(params, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, params...)
	if err != nil {
		return storage.StoryPage{}, fmt.Errorf("list stories: %w", err)
	}
	defer rows.Close()

	page := storage.StoryPage{Stories: make([]storage.StoryRecord, 0, pageSize)}
	for rows.Next() {
		record, err := scanStory(rows)
		if err != nil {
			return storage.StoryPage{}, fmt.Errorf("list stories: %w", err)
		}
		page.Stories = append(page.Stories, record)
	}
	if err := rows.Err(); err != nil {
		return storage.StoryPage{}, fmt.Errorf("list stories: %w", err)
	}
	if len(page.Stories) > pageSize {
		page.NextPageToken = page.Stories[pageSize-1].ID
		page.Stories = page.Stories[:pageSize]
	}
	return page, nil
}

// DeleteStory removes a story and its chapters.
func (s *Store) DeleteStory(ctx context.Context, storyID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	storyID = strings.TrimSpace(storyID)
	if storyID == "" {
		return fmt.Errorf("story id is required")
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chapters WHERE story_id = ?`, storyID); err != nil {
			return fmt.Errorf("delete chapters: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM stories WHERE id = ?`, storyID)
		if err != nil {
			return fmt.Errorf("delete story: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete story: %w", err)
		}
		if affected == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
}

// PutChapter inserts or replaces one chapter of an existing story.
func (s *Store) PutChapter(ctx context.Context, storyID string, chapter graph.Chapter) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.putChapter(ctx, s.sqlDB, storyID, chapter, true)
}

func (s *Store) putChapter(ctx context.Context, db execer, storyID string, chapter graph.Chapter, upsert bool) error {
	storyID = strings.TrimSpace(storyID)
	if storyID == "" {
		return fmt.Errorf("story id is required")
	}
	if chapter.ID <= 0 {
		return fmt.Errorf("chapter id must be greater than zero")
	}
	options, err := graph.EncodeOptions(chapter.Options)
	if err != nil {
		return fmt.Errorf("put chapter %d: %w", chapter.ID, err)
	}
	createdAt := chapter.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = s.clock()
	}

	query := `INSERT INTO chapters (story_id, id, title, content, options_json, created_at)
	          VALUES (?, ?, ?, ?, ?, ?)`
	if upsert {
		query += ` ON CONFLICT (story_id, id) DO UPDATE SET
		             title = excluded.title,
		             content = excluded.content,
		             options_json = excluded.options_json`
	}
	_, err = db.ExecContext(ctx, query,
		storyID,
		chapter.ID,
		chapter.Title,
		chapter.Content,
		string(options),
		toMillis(createdAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put chapter %d: %w", chapter.ID, err)
	}
	return nil
}

// GetChapter returns one chapter. A missing chapter is reported as a
// CHAPTER_NOT_FOUND domain error wrapping storage.ErrNotFound.
func (s *Store) GetChapter(ctx context.Context, storyID string, chapterID int) (graph.Chapter, error) {
	if err := s.ready(ctx); err != nil {
		return graph.Chapter{}, err
	}
	storyID = strings.TrimSpace(storyID)

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, title, content, options_json, created_at
		   FROM chapters
		  WHERE story_id = ? AND id = ?`,
		storyID,
		chapterID,
	)
	chapter, err := scanChapter(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return graph.Chapter{}, apperrors.WrapWithMetadata(
				apperrors.CodeChapterNotFound,
				"chapter not found",
				map[string]string{"StoryID": storyID, "ChapterID": strconv.Itoa(chapterID)},
				storage.ErrNotFound,
			)
		}
		return graph.Chapter{}, fmt.Errorf("get chapter: %w", err)
	}
	return chapter, nil
}

// ListChapters returns a story's chapters ordered by id.
func (s *Store) ListChapters(ctx context.Context, storyID string) ([]graph.Chapter, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, title, content, options_json, created_at
		   FROM chapters
		  WHERE story_id = ?
		  ORDER BY id ASC`,
		strings.TrimSpace(storyID),
	)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()

	var chapters []graph.Chapter
	for rows.Next() {
		chapter, err := scanChapter(rows)
		if err != nil {
			return nil, fmt.Errorf("list chapters: %w", err)
		}
		chapters = append(chapters, chapter)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	return chapters, nil
}

func scanChapter(row rowScanner) (graph.Chapter, error) {
	var chapter graph.Chapter
	var options string
	var createdAt int64
	if err := row.Scan(&chapter.ID, &chapter.Title, &chapter.Content, &options, &createdAt); err != nil {
		return graph.Chapter{}, err
	}
	decoded, err := graph.DecodeOptions([]byte(options))
	if err != nil {
		return graph.Chapter{}, fmt.Errorf("chapter %d: %w", chapter.ID, err)
	}
	chapter.Options = decoded
	chapter.CreatedAt = fromMillis(createdAt)
	return chapter, nil
}

// ImportStory writes a story and all its chapters in one transaction. An
// existing story is rejected with storage.ErrAlreadyExists unless replace
// is set, in which case its chapters are replaced.
func (s *Store) ImportStory(ctx context.Context, story graph.Story, replace bool) (storage.StoryRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.StoryRecord{}, err
	}
	storyID := strings.TrimSpace(story.ID)
	if storyID == "" {
		return storage.StoryRecord{}, fmt.Errorf("story id is required")
	}

	now := s.clock()
	record := storage.StoryRecord{
		ID:           storyID,
		Title:        story.Title,
		Description:  story.Description,
		Author:       story.Author,
		Version:      story.Version,
		ChapterCount: len(story.Chapters),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var createdAt int64
		err := tx.QueryRowContext(ctx, `SELECT created_at FROM stories WHERE id = ?`, storyID).Scan(&createdAt)
		switch {
		case err == nil:
			if !replace {
				return storage.ErrAlreadyExists
			}
			record.CreatedAt = fromMillis(createdAt)
			if _, err := tx.ExecContext(ctx, `DELETE FROM chapters WHERE story_id = ?`, storyID); err != nil {
				return fmt.Errorf("clear chapters: %w", err)
			}
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check story: %w", err)
		}

		if err := s.putStory(ctx, tx, record); err != nil {
			return err
		}
		for _, chapter := range story.Chapters {
			if err := s.putChapter(ctx, tx, storyID, chapter, false); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storage.StoryRecord{}, fmt.Errorf("import story %s: %w", storyID, err)
	}
	return record, nil
}

// LoadStory rebuilds the in-memory story from its stored rows.
func (s *Store) LoadStory(ctx context.Context, storyID string) (graph.Story, error) {
	record, err := s.GetStory(ctx, storyID)
	if err != nil {
		return graph.Story{}, err
	}
	chapters, err := s.ListChapters(ctx, record.ID)
	if err != nil {
		return graph.Story{}, err
	}
	return graph.Story{
		ID:          record.ID,
		Title:       record.Title,
		Description: record.Description,
		Author:      record.Author,
		Version:     record.Version,
		Chapters:    chapters,
	}, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var (
	_ storage.StoryStore   = (*Store)(nil)
	_ storage.ChapterStore = (*Store)(nil)
)
