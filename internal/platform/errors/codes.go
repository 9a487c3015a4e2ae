// Package errors provides coded domain errors with localized messages.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Storage errors
	CodeNotFound    Code = "NOT_FOUND"
	CodeStoryExists Code = "STORY_EXISTS"

	// Story errors
	CodeStoryInvalid     Code = "STORY_INVALID"
	CodeDecodeFailed     Code = "DECODE_FAILED"
	CodeChapterNotFound  Code = "CHAPTER_NOT_FOUND"
	CodeOptionOutOfRange Code = "OPTION_OUT_OF_RANGE"
	CodeStoryEnded       Code = "STORY_ENDED"
	CodeSessionNotActive Code = "SESSION_NOT_ACTIVE"
)

// ExitCode maps domain codes to process exit statuses for CLI tools.
func (c Code) ExitCode() int {
	switch c {
	case CodeStoryInvalid:
		return 1
	case CodeDecodeFailed:
		return 2
	case CodeNotFound, CodeChapterNotFound:
		return 3
	case CodeStoryExists:
		return 4
	default:
		return 1
	}
}
