package play

import (
	"context"
	"strconv"

	apperrors "github.com/louisbranch/storyengine/internal/platform/errors"
	"github.com/louisbranch/storyengine/internal/services/story/domain/graph"
)

// ChapterSource looks chapters up by story and chapter id. Implementations
// return a CHAPTER_NOT_FOUND domain error for unknown chapters.
type ChapterSource interface {
	GetChapter(ctx context.Context, storyID string, chapterID int) (graph.Chapter, error)
}

// StorySource serves chapters from an in-memory story.
type StorySource struct {
	story graph.Story
	index map[int]graph.Chapter
}

// NewStorySource indexes story for lookups. Duplicate ids resolve to the
// first chapter.
func NewStorySource(story graph.Story) StorySource {
	return StorySource{story: story, index: story.Index()}
}

// GetChapter implements ChapterSource.
func (s StorySource) GetChapter(ctx context.Context, storyID string, chapterID int) (graph.Chapter, error) {
	if err := ctx.Err(); err != nil {
		return graph.Chapter{}, err
	}
	if storyID != s.story.ID {
		return graph.Chapter{}, notFound(storyID, chapterID)
	}
	ch, ok := s.index[chapterID]
	if !ok {
		return graph.Chapter{}, notFound(storyID, chapterID)
	}
	return ch, nil
}

func notFound(storyID string, chapterID int) error {
	return apperrors.WithMetadata(apperrors.CodeChapterNotFound, "chapter not found", map[string]string{
		"StoryID":   storyID,
		"ChapterID": strconv.Itoa(chapterID),
	})
}
