package scenario

import (
	"github.com/louisbranch/storyengine/internal/services/story/domain/gamestate"
	"github.com/louisbranch/storyengine/internal/services/story/domain/play"
)

type scenarioState struct {
	storyID string
	initial gamestate.State
	session *play.Session
	page    *play.Page
}
