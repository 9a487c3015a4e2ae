package validate

import (
	"strconv"

	"github.com/louisbranch/storyengine/internal/platform/i18n/catalog"
)

// Severity grades an Issue. Only errors make a story invalid.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Check names the validation pass that produced an Issue.
type Check string

const (
	CheckMetadata   Check = "metadata"
	CheckStructure  Check = "structure"
	CheckReferences Check = "references"
	CheckLogic      Check = "logic"
	CheckConditions Check = "conditions"
	CheckQuality    Check = "quality"
)

// Code identifies an Issue kind. Each code has a "validate.<code>" message
// in the i18n catalog.
type Code string

const (
	CodeStoryIDMissing    Code = "story_id_missing"
	CodeStoryIDFormat     Code = "story_id_format"
	CodeStoryIDTooLong    Code = "story_id_too_long"
	CodeStoryTitleMissing Code = "story_title_missing"
	CodeStoryTitleLength  Code = "story_title_length"

	CodeFieldMissing       Code = "field_missing"
	CodeFieldType          Code = "field_type"
	CodeChapterIDInvalid   Code = "chapter_id_invalid"
	CodeDuplicateChapterID Code = "duplicate_chapter_id"
	CodeChapterTitleEmpty  Code = "chapter_title_empty"
	CodeChapterTitleLength Code = "chapter_title_length"
	CodeContentLength      Code = "content_length"
	CodeTooManyOptions     Code = "too_many_options"
	CodeOptionTextMissing  Code = "option_text_missing"

	CodeDanglingReference Code = "dangling_reference"

	CodeMissingStart    Code = "missing_start"
	CodeOrphanedChapter Code = "orphaned_chapter"
	CodeSelfReference   Code = "self_reference"
	CodeNoEnding        Code = "no_ending"

	CodeUnclosedBlock   Code = "unclosed_block"
	CodeBlockEmptyBody  Code = "block_empty_body"
	CodeElseUnsupported Code = "else_unsupported"

	CodeTitleUppercase      Code = "title_uppercase"
	CodeTitlePunctuation    Code = "title_punctuation"
	CodeSingleOption        Code = "single_option"
	CodeOptionTextLong      Code = "option_text_long"
	CodeRepeatedPunctuation Code = "repeated_punctuation"
)

// Issue is one finding. ChapterID is set when the chapter has a usable id;
// Position (1-based) locates chapters whose id is missing or invalid.
// Option is the 1-based option index for option-level findings.
type Issue struct {
	Severity  Severity          `json:"severity"`
	Check     Check             `json:"check"`
	Code      Code              `json:"code"`
	ChapterID int               `json:"chapter_id,omitempty"`
	Position  int               `json:"position,omitempty"`
	Option    int               `json:"option,omitempty"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Localized renders the issue message in locale, falling back to the base
// locale for missing translations.
func (i Issue) Localized(locale string) string {
	bundle := catalog.Default()
	data := make(map[string]string, len(i.Metadata)+1)
	for key, value := range i.Metadata {
		data[key] = value
	}
	data["Where"] = i.where(bundle, locale)
	return bundle.Format(locale, "validate."+string(i.Code), data)
}

func (i Issue) where(bundle *catalog.Bundle, locale string) string {
	ref := map[string]string{
		"ChapterID": strconv.Itoa(i.ChapterID),
		"Index":     strconv.Itoa(i.Position),
		"Option":    strconv.Itoa(i.Option),
	}
	switch {
	case i.ChapterID > 0 && i.Option > 0:
		return bundle.Format(locale, "validate.where_option", ref)
	case i.ChapterID > 0:
		return bundle.Format(locale, "validate.where_chapter", ref)
	case i.Position > 0 && i.Option > 0:
		return bundle.Format(locale, "validate.where_position_option", ref)
	case i.Position > 0:
		return bundle.Format(locale, "validate.where_position", ref)
	default:
		return bundle.Format(locale, "validate.where_story", ref)
	}
}
