package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/storyengine/internal/services/story/domain/gamestate"
	"gopkg.in/yaml.v3"
)

// Format is an interchange file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension. Anything that is
// not .yaml or .yml is treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// timeLayouts are accepted for created_at, most specific first.
var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"}

// Decode reads a story document. The document is either an object with
// story metadata and a chapters array, or a bare array of chapters.
//
// Only syntax errors and non-story documents fail. Missing fields and wrong
// types are recorded as FieldFaults on the story, chapter or option.
func Decode(r io.Reader, format Format) (Story, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Story{}, fmt.Errorf("read story: %w", err)
	}

	var raw any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Story{}, fmt.Errorf("decode yaml story: %w", err)
		}
		raw = normalizeYAML(raw)
	case FormatJSON, "":
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.UseNumber()
		if err := decoder.Decode(&raw); err != nil {
			return Story{}, fmt.Errorf("decode json story: %w", err)
		}
	default:
		return Story{}, fmt.Errorf("unsupported story format %q", format)
	}

	switch doc := raw.(type) {
	case map[string]any:
		return decodeStory(doc), nil
	case []any:
		return Story{Chapters: decodeChapters(doc)}, nil
	default:
		return Story{}, fmt.Errorf("story document must be an object or an array, got %s", typeName(raw))
	}
}

// ReadFile decodes the story file at path, picking the format from its
// extension.
func ReadFile(path string) (Story, error) {
	f, err := os.Open(path)
	if err != nil {
		return Story{}, fmt.Errorf("open story file: %w", err)
	}
	defer f.Close()
	story, err := Decode(f, FormatFromPath(path))
	if err != nil {
		return Story{}, fmt.Errorf("%s: %w", path, err)
	}
	return story, nil
}

// DecodeOptions reads a JSON array of options, as stored alongside a
// chapter.
func DecodeOptions(data []byte) ([]Option, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var raw []any
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	return decodeOptions(raw), nil
}

func decodeStory(doc map[string]any) Story {
	var story Story
	story.ID = optionalString(doc, "story_id", &story.Faults)
	story.Title = optionalString(doc, "title", &story.Faults)
	story.Description = optionalString(doc, "description", &story.Faults)
	story.Author = optionalString(doc, "author", &story.Faults)
	story.Version = optionalString(doc, "version", &story.Faults)

	rawChapters, ok := doc["chapters"]
	switch chapters := rawChapters.(type) {
	case []any:
		story.Chapters = decodeChapters(chapters)
	default:
		if !ok {
			story.Faults = append(story.Faults, missing("chapters"))
		} else {
			story.Faults = append(story.Faults, wrongType("chapters", "array"))
		}
	}
	return story
}

func decodeChapters(items []any) []Chapter {
	chapters := make([]Chapter, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			chapters = append(chapters, Chapter{Faults: []FieldFault{wrongType("chapter", "object")}})
			continue
		}
		chapters = append(chapters, decodeChapter(obj))
	}
	return chapters
}

func decodeChapter(obj map[string]any) Chapter {
	var ch Chapter
	ch.ID = requiredInt(obj, "id", &ch.Faults)
	ch.Title = requiredString(obj, "title", &ch.Faults)
	ch.Content = requiredString(obj, "content", &ch.Faults)

	rawOptions, ok := obj["options"]
	switch options := rawOptions.(type) {
	case []any:
		ch.Options = decodeOptions(options)
	default:
		if !ok {
			ch.Faults = append(ch.Faults, missing("options"))
		} else {
			ch.Faults = append(ch.Faults, wrongType("options", "array"))
		}
	}

	if rawCreated, ok := obj["created_at"].(string); ok {
		ch.CreatedAt = parseTime(rawCreated)
	}
	return ch
}

func decodeOptions(items []any) []Option {
	options := make([]Option, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			options = append(options, Option{Faults: []FieldFault{wrongType("option", "object")}})
			continue
		}
		options = append(options, decodeOption(obj))
	}
	return options
}

func decodeOption(obj map[string]any) Option {
	var opt Option
	opt.Text = requiredString(obj, "text", &opt.Faults)
	opt.NextID = requiredInt(obj, "next_id", &opt.Faults)

	switch cond := obj["condition"].(type) {
	case nil:
	case string:
		opt.Condition = &cond
	default:
		opt.Faults = append(opt.Faults, wrongType("condition", "string"))
	}

	switch delta := obj["game_state"].(type) {
	case nil:
	case map[string]any:
		values, err := gamestate.FromMap(delta)
		if err != nil {
			opt.Faults = append(opt.Faults, wrongType("game_state", "flat object"))
			break
		}
		opt.GameState = gamestate.Delta(values)
	default:
		opt.Faults = append(opt.Faults, wrongType("game_state", "object"))
	}
	return opt
}

func requiredString(obj map[string]any, field string, faults *[]FieldFault) string {
	raw, ok := obj[field]
	if !ok {
		*faults = append(*faults, missing(field))
		return ""
	}
	s, ok := raw.(string)
	if !ok {
		*faults = append(*faults, wrongType(field, "string"))
		return ""
	}
	return s
}

func optionalString(obj map[string]any, field string, faults *[]FieldFault) string {
	raw, ok := obj[field]
	if !ok || raw == nil {
		return ""
	}
	s, ok := raw.(string)
	if !ok {
		*faults = append(*faults, wrongType(field, "string"))
		return ""
	}
	return s
}

func requiredInt(obj map[string]any, field string, faults *[]FieldFault) int {
	raw, ok := obj[field]
	if !ok {
		*faults = append(*faults, missing(field))
		return 0
	}
	n, ok := asInt(raw)
	if !ok {
		*faults = append(*faults, wrongType(field, "integer"))
		return 0
	}
	return n
}

func asInt(raw any) (int, bool) {
	switch n := raw.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil || i > math.MaxInt32 || i < math.MinInt32 {
			return 0, false
		}
		return int(i), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		if n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

func parseTime(raw string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// normalizeYAML rewrites yaml.v3 output so it matches the JSON decoder:
// string-keyed maps and RFC 3339 strings for timestamps.
func normalizeYAML(raw any) any {
	switch v := raw.(type) {
	case map[string]any:
		for key, item := range v {
			v[key] = normalizeYAML(item)
		}
		return v
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[fmt.Sprint(key)] = normalizeYAML(item)
		}
		return out
	case []any:
		for i, item := range v {
			v[i] = normalizeYAML(item)
		}
		return v
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		return v
	}
}

func typeName(raw any) string {
	switch raw.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case json.Number, int, int64, uint64, float64:
		return "number"
	default:
		return fmt.Sprintf("%T", raw)
	}
}

type storyDoc struct {
	StoryID     string       `json:"story_id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Author      string       `json:"author,omitempty"`
	Version     string       `json:"version,omitempty"`
	Chapters    []chapterDoc `json:"chapters"`
}

type chapterDoc struct {
	ID        int         `json:"id"`
	Title     string      `json:"title"`
	Content   string      `json:"content"`
	Options   []optionDoc `json:"options"`
	CreatedAt string      `json:"created_at,omitempty"`
}

type optionDoc struct {
	Text      string          `json:"text"`
	NextID    int             `json:"next_id"`
	Condition *string         `json:"condition,omitempty"`
	GameState gamestate.Delta `json:"game_state,omitempty"`
}

// Encode writes story as an indented interchange JSON object. Decode
// faults are not written.
func Encode(w io.Writer, story Story) error {
	doc := storyDoc{
		StoryID:     story.ID,
		Title:       story.Title,
		Description: story.Description,
		Author:      story.Author,
		Version:     story.Version,
		Chapters:    make([]chapterDoc, 0, len(story.Chapters)),
	}
	for _, ch := range story.Chapters {
		cd := chapterDoc{
			ID:      ch.ID,
			Title:   ch.Title,
			Content: ch.Content,
			Options: toOptionDocs(ch.Options),
		}
		if !ch.CreatedAt.IsZero() {
			cd.CreatedAt = ch.CreatedAt.UTC().Format(time.RFC3339)
		}
		doc.Chapters = append(doc.Chapters, cd)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("encode story: %w", err)
	}
	return nil
}

// EncodeOptions writes options as a compact JSON array.
func EncodeOptions(options []Option) ([]byte, error) {
	data, err := json.Marshal(toOptionDocs(options))
	if err != nil {
		return nil, fmt.Errorf("encode options: %w", err)
	}
	return data, nil
}

func toOptionDocs(options []Option) []optionDoc {
	docs := make([]optionDoc, 0, len(options))
	for _, opt := range options {
		docs = append(docs, optionDoc{
			Text:      opt.Text,
			NextID:    opt.NextID,
			Condition: opt.Condition,
			GameState: opt.GameState,
		})
	}
	return docs
}
