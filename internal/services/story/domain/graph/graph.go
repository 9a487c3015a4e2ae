// Package graph holds the in-memory story model: chapters keyed by id and
// the options that link them.
//
// The model accepts whatever its input says. Uniqueness, reference and
// shape problems are left for the validate package to report.
package graph

import (
	"sort"
	"time"

	"github.com/louisbranch/storyengine/internal/services/story/domain/gamestate"
)

// StartChapterID is the chapter every playthrough begins with.
const StartChapterID = 1

// Story is a titled set of chapters.
type Story struct {
	ID          string
	Title       string
	Description string
	Author      string
	Version     string
	Chapters    []Chapter
	// Faults records metadata fields that had the wrong type on decode.
	Faults []FieldFault
}

// Chapter is one node of the story graph.
type Chapter struct {
	ID        int
	Title     string
	Content   string
	Options   []Option
	CreatedAt time.Time
	Faults    []FieldFault
}

// Option is a choice leading to another chapter.
type Option struct {
	Text   string
	NextID int
	// Condition is advisory; rendering never evaluates it.
	Condition *string
	GameState gamestate.Delta
	Faults    []FieldFault
}

// IsEnding reports whether the chapter has no way forward.
func (c Chapter) IsEnding() bool {
	return len(c.Options) == 0
}

// Index maps chapter ids to chapters. When ids repeat, the first chapter
// wins.
func (s Story) Index() map[int]Chapter {
	index := make(map[int]Chapter, len(s.Chapters))
	for _, ch := range s.Chapters {
		if _, seen := index[ch.ID]; seen {
			continue
		}
		index[ch.ID] = ch
	}
	return index
}

// Chapter returns the first chapter with id.
func (s Story) Chapter(id int) (Chapter, bool) {
	for _, ch := range s.Chapters {
		if ch.ID == id {
			return ch, true
		}
	}
	return Chapter{}, false
}

// ChapterIDs returns the distinct chapter ids in ascending order.
func (s Story) ChapterIDs() []int {
	index := s.Index()
	ids := make([]int, 0, len(index))
	for id := range index {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// OptionCount returns the number of options across all chapters.
func (s Story) OptionCount() int {
	total := 0
	for _, ch := range s.Chapters {
		total += len(ch.Options)
	}
	return total
}
