// Package storage defines persistence contracts for imported stories.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/storyengine/internal/services/story/domain/graph"
)

var (
	// ErrNotFound indicates a requested story or chapter is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a story with the same id is already stored.
	ErrAlreadyExists = errors.New("record already exists")
)

// StoryRecord is the stored metadata of one story.
type StoryRecord struct {
	ID           string
	Title        string
	Description  string
	Author       string
	Version      string
	ChapterCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StoryPage is one page of story records ordered by id.
type StoryPage struct {
	Stories       []StoryRecord
	NextPageToken string
}

// StoryStore persists story metadata.
type StoryStore interface {
	PutStory(ctx context.Context, story StoryRecord) error
	GetStory(ctx context.Context, storyID string) (StoryRecord, error)
	// ListStories accepts an AIP-160 filter; an empty filter lists all.
	ListStories(ctx context.Context, filter string, pageSize int, pageToken string) (StoryPage, error)
	DeleteStory(ctx context.Context, storyID string) error
}

// ChapterStore persists chapters keyed by story id and chapter id.
type ChapterStore interface {
	PutChapter(ctx context.Context, storyID string, chapter graph.Chapter) error
	GetChapter(ctx context.Context, storyID string, chapterID int) (graph.Chapter, error)
	ListChapters(ctx context.Context, storyID string) ([]graph.Chapter, error)
}
