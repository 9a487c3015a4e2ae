package validate

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/louisbranch/storyengine/internal/platform/i18n/catalog"
)

// Stats summarizes the graph the way the validation report prints it.
type Stats struct {
	Chapters  int   `json:"chapters"`
	Endings   int   `json:"endings"`
	EndingIDs []int `json:"ending_ids"`
	Options   int   `json:"options"`
}

// Report is the outcome of Validate.
type Report struct {
	StoryID  string  `json:"story_id,omitempty"`
	Title    string  `json:"title,omitempty"`
	Locale   string  `json:"locale"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
	Stats    Stats   `json:"stats"`
}

// Valid reports whether the story has no errors. Warnings never block.
func (r Report) Valid() bool {
	return len(r.Errors) == 0
}

// Issues returns errors followed by warnings.
func (r Report) Issues() []Issue {
	out := make([]Issue, 0, len(r.Errors)+len(r.Warnings))
	out = append(out, r.Errors...)
	return append(out, r.Warnings...)
}

// Localize returns a copy of r with every message rendered in locale.
func (r Report) Localize(locale string) Report {
	out := r
	out.Locale = locale
	out.Errors = localizeAll(r.Errors, locale)
	out.Warnings = localizeAll(r.Warnings, locale)
	return out
}

func localizeAll(issues []Issue, locale string) []Issue {
	out := make([]Issue, len(issues))
	for i, issue := range issues {
		issue.Message = issue.Localized(locale)
		out[i] = issue
	}
	return out
}

// WriteText prints r as a numbered, human-readable report in r.Locale.
func WriteText(w io.Writer, r Report) error {
	p := catalog.Default().Printer(r.Locale)

	var b strings.Builder
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, p.Sprintf("report.title"))
	fmt.Fprintln(&b, rule)
	if r.StoryID != "" || r.Title != "" {
		fmt.Fprintln(&b, p.Sprintf("report.story", r.Title, r.StoryID))
	}
	fmt.Fprintln(&b, p.Sprintf("report.total_chapters", r.Stats.Chapters))
	fmt.Fprintln(&b, p.Sprintf("report.endings", r.Stats.Endings))
	fmt.Fprintln(&b, p.Sprintf("report.ending_ids", joinInts(r.Stats.EndingIDs, p.Sprintf("report.none"))))
	fmt.Fprintln(&b, p.Sprintf("report.total_options", r.Stats.Options))

	writeIssues(&b, p.Sprintf("report.errors_header", len(r.Errors)), r.Errors, p.Sprintf("report.none"))
	writeIssues(&b, p.Sprintf("report.warnings_header", len(r.Warnings)), r.Warnings, p.Sprintf("report.none"))

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, rule)
	switch {
	case !r.Valid():
		fmt.Fprintln(&b, p.Sprintf("report.verdict_invalid", len(r.Errors)))
	case len(r.Warnings) > 0:
		fmt.Fprintln(&b, p.Sprintf("report.verdict_warnings", len(r.Warnings)))
	default:
		fmt.Fprintln(&b, p.Sprintf("report.verdict_valid"))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeIssues(b *strings.Builder, header string, issues []Issue, none string) {
	fmt.Fprintln(b)
	fmt.Fprintln(b, header)
	if len(issues) == 0 {
		fmt.Fprintf(b, "  %s\n", none)
		return
	}
	for i, issue := range issues {
		fmt.Fprintf(b, "  %d. %s\n", i+1, issue.Message)
	}
}

func joinInts(values []int, none string) string {
	if len(values) == 0 {
		return none
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}
