package scenario

import (
	"io"

	"github.com/louisbranch/storyengine/internal/services/story/domain/play"
)

// runnerDeps bundles injectable dependencies for runner construction.
type runnerDeps struct {
	source play.ChapterSource
	// storyID is used when a scenario does not name its story.
	storyID string
	closer  io.Closer
}
