package validate

import (
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/louisbranch/storyengine/internal/services/story/domain/graph"
)

func chapter(id int, title string, nextIDs ...int) graph.Chapter {
	ch := graph.Chapter{
		ID:      id,
		Title:   title,
		Content: "The path continues through the trees.",
		Options: []graph.Option{},
	}
	for i, next := range nextIDs {
		ch.Options = append(ch.Options, graph.Option{Text: "Go on " + string(rune('a'+i)), NextID: next})
	}
	return ch
}

func story(chapters ...graph.Chapter) graph.Story {
	return graph.Story{ID: "forest", Title: "The Dark Forest", Chapters: chapters}
}

func codes(issues []Issue) []Code {
	out := make([]Code, 0, len(issues))
	for _, issue := range issues {
		out = append(out, issue.Code)
	}
	return out
}

func countCode(issues []Issue, code Code) int {
	n := 0
	for _, issue := range issues {
		if issue.Code == code {
			n++
		}
	}
	return n
}

func TestValidateLinearStoryHasNoBlockingOrGraphIssues(t *testing.T) {
	report := Validate(story(chapter(1, "Edge", 2), chapter(2, "Clearing")))

	if !report.Valid() {
		t.Fatalf("expected valid report, got errors %v", codes(report.Errors))
	}
	for _, w := range report.Warnings {
		if w.Check != CheckQuality {
			t.Fatalf("unexpected %s warning %s: %s", w.Check, w.Code, w.Message)
		}
	}
	if report.Stats.Chapters != 2 || report.Stats.Endings != 1 || report.Stats.Options != 1 {
		t.Fatalf("stats = %+v", report.Stats)
	}
	if !reflect.DeepEqual(report.Stats.EndingIDs, []int{2}) {
		t.Fatalf("ending ids = %v", report.Stats.EndingIDs)
	}
}

func TestValidateCleanStoryHasNoWarnings(t *testing.T) {
	report := Validate(story(
		chapter(1, "Edge", 2, 3),
		chapter(2, "Clearing"),
		chapter(3, "River"),
	))
	if len(report.Errors) != 0 || len(report.Warnings) != 0 {
		t.Fatalf("errors %v warnings %v", codes(report.Errors), codes(report.Warnings))
	}
}

func TestValidateDanglingReferencePerOption(t *testing.T) {
	report := Validate(story(chapter(1, "Edge", 2, 99, 98), chapter(2, "Clearing", 77)))

	if got := countCode(report.Errors, CodeDanglingReference); got != 3 {
		t.Fatalf("dangling errors = %d, want 3 (%v)", got, codes(report.Errors))
	}
	first := report.Errors[0]
	if first.ChapterID != 1 || first.Option != 2 || first.Metadata["Target"] != "99" {
		t.Fatalf("first dangling issue = %+v", first)
	}
	if first.Message != "Chapter 1, option 2: next_id 99 does not match any chapter (dangling reference)." {
		t.Fatalf("message = %q", first.Message)
	}
}

func TestValidateMissingStartChapter(t *testing.T) {
	report := Validate(story(chapter(2, "Clearing", 3), chapter(3, "River")))

	if got := countCode(report.Errors, CodeMissingStart); got != 1 {
		t.Fatalf("missing start errors = %d, want 1", got)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("errors = %v", codes(report.Errors))
	}
	// Chapter 2 is never referenced and is not the start chapter.
	if got := countCode(report.Warnings, CodeOrphanedChapter); got != 1 {
		t.Fatalf("orphan warnings = %d, want 1", got)
	}
}

func TestValidateUnclosedBlock(t *testing.T) {
	ch := chapter(1, "Edge", 2)
	ch.Content = "[[IF a]]one[[ENDIF]] and [[IF b]]two never closes."
	report := Validate(story(ch, chapter(2, "Clearing")))

	if got := countCode(report.Errors, CodeUnclosedBlock); got != 1 {
		t.Fatalf("unclosed errors = %d, want 1 (%v)", got, codes(report.Errors))
	}
	issue := report.Errors[0]
	if issue.ChapterID != 1 || issue.Metadata["Opens"] != "2" || issue.Metadata["Closes"] != "1" {
		t.Fatalf("issue = %+v", issue)
	}
}

func TestValidateMutualReferences(t *testing.T) {
	report := Validate(story(chapter(1, "Edge", 2), chapter(2, "Clearing", 1)))

	if !report.Valid() {
		t.Fatalf("expected no errors, got %v", codes(report.Errors))
	}
	if countCode(report.Warnings, CodeSelfReference) != 0 {
		t.Fatal("expected no self-reference warnings")
	}
	if countCode(report.Warnings, CodeOrphanedChapter) != 0 {
		t.Fatal("expected no orphaned chapters")
	}
	if countCode(report.Warnings, CodeNoEnding) != 1 {
		t.Fatalf("expected one no-ending warning, got %v", codes(report.Warnings))
	}
}

func TestValidateDuplicateIDs(t *testing.T) {
	report := Validate(story(
		chapter(1, "Edge", 2),
		chapter(2, "Clearing"),
		chapter(2, "Clearing again"),
		chapter(2, "Clearing thrice"),
	))
	if got := countCode(report.Errors, CodeDuplicateChapterID); got != 1 {
		t.Fatalf("duplicate errors = %d, want 1", got)
	}
	issue := report.Errors[0]
	if issue.Metadata["ID"] != "2" || issue.Metadata["Count"] != "3" {
		t.Fatalf("issue = %+v", issue)
	}
	if issue.Message != "Chapter id 2 is used by 3 chapters." {
		t.Fatalf("message = %q", issue.Message)
	}
}

func TestValidateSelfReferenceAndOrphan(t *testing.T) {
	report := Validate(story(
		chapter(1, "Edge", 1, 2),
		chapter(2, "Clearing"),
		chapter(5, "Hidden cave"),
	))
	if !report.Valid() {
		t.Fatalf("errors = %v", codes(report.Errors))
	}
	if got := countCode(report.Warnings, CodeSelfReference); got != 1 {
		t.Fatalf("self-reference warnings = %d", got)
	}
	if got := countCode(report.Warnings, CodeOrphanedChapter); got != 1 {
		t.Fatalf("orphan warnings = %d", got)
	}
	for _, w := range report.Warnings {
		if w.Code == CodeOrphanedChapter && w.ChapterID != 5 {
			t.Fatalf("orphaned chapter = %d, want 5", w.ChapterID)
		}
	}
}

func TestValidateEndingStatsCountDistinctIDs(t *testing.T) {
	report := Validate(story(
		chapter(1, "Edge", 2, 3),
		chapter(2, "Clearing"),
		chapter(2, "Clearing again"),
		chapter(3, "River"),
	))
	if report.Stats.Endings != len(report.Stats.EndingIDs) {
		t.Fatalf("endings = %d, ending ids = %v", report.Stats.Endings, report.Stats.EndingIDs)
	}
	if !reflect.DeepEqual(report.Stats.EndingIDs, []int{2, 3}) {
		t.Fatalf("ending ids = %v", report.Stats.EndingIDs)
	}
	if report.Stats.Chapters != 4 {
		t.Fatalf("chapters = %d, want 4", report.Stats.Chapters)
	}
}

func TestValidateInvalidChapterIDIsNotOrphaned(t *testing.T) {
	report := Validate(story(
		chapter(1, "Edge", 2),
		chapter(2, "Clearing"),
		chapter(0, "Zero"),
		chapter(-4, "Below zero"),
	))
	if got := countCode(report.Errors, CodeChapterIDInvalid); got != 2 {
		t.Fatalf("invalid id errors = %d, want 2 (all: %v)", got, codes(report.Errors))
	}
	if got := countCode(report.Warnings, CodeOrphanedChapter); got != 0 {
		t.Fatalf("orphan warnings = %d, want 0", got)
	}
}

func TestValidateConcurrentCallsShareInput(t *testing.T) {
	shared := story(
		chapter(1, "Edge", 1, 2, 9),
		chapter(2, "Clearing", 3),
		chapter(3, "River"),
		chapter(5, "Hidden cave"),
	)
	shared.Chapters[1].Content = "[[IF lantern]]A glow.[[ENDIF]] [[IF]]"
	want := Validate(shared)

	const workers = 8
	reports := make([]Report, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for n := 0; n < 20; n++ {
				reports[i] = Validate(shared)
			}
		}(i)
	}
	wg.Wait()

	for i, got := range reports {
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("worker %d report differs:\ngot  %+v\nwant %+v", i, got, want)
		}
	}
}

func TestValidateStructureFaults(t *testing.T) {
	doc := `{
  "story_id": "broken",
  "title": "Broken story",
  "chapters": [
    {"id": 1, "title": "Edge", "content": "The path continues.", "options": [
      {"text": "", "next_id": 2},
      {"next_id": "two"},
      {"text": "Carry on", "next_id": 2, "game_state": "full"}
    ]},
    {"id": 0, "title": "Zero", "content": "Nothing to see here.", "options": []},
    {"title": "No id", "content": "Where am I going?", "options": []},
    {"id": 2, "title": "Clearing", "content": "A quiet clearing.", "options": []}
  ]
}`
	parsed, err := graph.Decode(strings.NewReader(doc), graph.FormatJSON)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	report := Validate(parsed)

	want := map[Code]int{
		CodeOptionTextMissing: 1,
		CodeFieldMissing:      2, // option text, chapter id
		CodeFieldType:         2, // next_id, game_state
		CodeChapterIDInvalid:  1,
	}
	for code, n := range want {
		if got := countCode(report.Errors, code); got != n {
			t.Fatalf("%s errors = %d, want %d (all: %v)", code, got, n, codes(report.Errors))
		}
	}

	var missingID Issue
	for _, issue := range report.Errors {
		if issue.Code == CodeFieldMissing && issue.Metadata["Field"] == "id" {
			missingID = issue
		}
	}
	if missingID.Position != 3 || missingID.ChapterID != 0 {
		t.Fatalf("missing id issue = %+v", missingID)
	}
	if missingID.Message != "Chapter at position 3: missing required field id." {
		t.Fatalf("message = %q", missingID.Message)
	}
}

func TestValidateMetadata(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		title string
		want  []Code
	}{
		{name: "valid", id: "forest_1", title: "The Forest"},
		{name: "missing both", want: []Code{CodeStoryIDMissing, CodeStoryTitleMissing}},
		{name: "bad id", id: "1forest", title: "The Forest", want: []Code{CodeStoryIDFormat}},
		{name: "hyphen id", id: "dark-forest", title: "The Forest", want: []Code{CodeStoryIDFormat}},
		{name: "long id", id: "a" + strings.Repeat("b", 50), title: "The Forest", want: []Code{CodeStoryIDTooLong}},
		{name: "short title", id: "forest", title: "Go", want: []Code{CodeStoryTitleLength}},
		{name: "cjk title counts runes", id: "forest", title: "黑森林", want: nil},
		{name: "long title", id: "forest", title: strings.Repeat("x", 256), want: []Code{CodeStoryTitleLength}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := story(chapter(1, "Edge", 2), chapter(2, "Clearing"))
			s.ID, s.Title = tt.id, tt.title
			report := Validate(s)

			var got []Code
			for _, issue := range report.Errors {
				if issue.Check == CheckMetadata {
					got = append(got, issue.Code)
				}
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("metadata errors = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateMetadataFaults(t *testing.T) {
	parsed, err := graph.Decode(strings.NewReader(`{"story_id": 5, "title": "Numbers", "chapters": "none"}`), graph.FormatJSON)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	report := Validate(parsed)
	if countCode(report.Errors, CodeStoryIDMissing) != 0 {
		t.Fatal("expected type fault instead of missing story_id")
	}
	if got := countCode(report.Errors, CodeFieldType); got != 2 {
		t.Fatalf("field type errors = %d, want 2 (%v)", got, codes(report.Errors))
	}
	if countCode(report.Errors, CodeMissingStart) != 1 {
		t.Fatal("expected missing start chapter")
	}
}

func TestValidateConditions(t *testing.T) {
	ch := chapter(1, "Edge", 2)
	ch.Content = "Intro. [[IF a AND b]]both[[ENDIF]] [[IF mood == angry]]grr[[ENDIF]] [[IF has_key]]  [[ENDIF]] [[IF x]]yes[[ELSE]]no[[ENDIF]]"
	bad := "gold >"
	ch.Options[0].Condition = &bad
	report := Validate(story(ch, chapter(2, "Clearing")))

	if got := countCode(report.Errors, Code("condition_invalid_name")); got != 1 {
		t.Fatalf("invalid name errors = %d (%v)", got, codes(report.Errors))
	}
	if len(report.Errors) != 1 {
		t.Fatalf("errors = %v", codes(report.Errors))
	}
	wantWarnings := map[Code]int{
		Code("condition_unquoted_literal"): 1,
		Code("condition_missing_literal"):  1, // option condition, advisory
		CodeBlockEmptyBody:                 1,
		CodeElseUnsupported:                1,
	}
	for code, n := range wantWarnings {
		if got := countCode(report.Warnings, code); got != n {
			t.Fatalf("%s warnings = %d, want %d (%v)", code, got, n, codes(report.Warnings))
		}
	}
	for _, w := range report.Warnings {
		if w.Code == Code("condition_missing_literal") && w.Option != 1 {
			t.Fatalf("option condition warning = %+v", w)
		}
	}
}

func TestValidateQuality(t *testing.T) {
	loud := chapter(1, "THE EDGE!", 2, 3)
	loud.Content = "Run!! Why?? Wait... 快跑！！"
	loud.Options[1].Text = strings.Repeat("long ", 21)
	report := Validate(story(loud, chapter(2, "Clearing"), chapter(3, "River")))

	if !report.Valid() {
		t.Fatalf("quality issues must not be errors: %v", codes(report.Errors))
	}
	want := map[Code]int{
		CodeTitleUppercase:      1,
		CodeTitlePunctuation:    1,
		CodeOptionTextLong:      1,
		CodeRepeatedPunctuation: 4,
	}
	for code, n := range want {
		if got := countCode(report.Warnings, code); got != n {
			t.Fatalf("%s warnings = %d, want %d (%v)", code, got, n, codes(report.Warnings))
		}
	}
}

func TestValidateStructureWarnings(t *testing.T) {
	ch := chapter(1, "E", 2)
	ch.Content = "Short."
	for i := 0; i < 11; i++ {
		ch.Options = append(ch.Options, graph.Option{Text: "More", NextID: 2})
	}
	empty := chapter(2, "   ")
	report := Validate(story(ch, empty))

	want := map[Code]int{
		CodeChapterTitleLength: 1,
		CodeContentLength:      1,
		CodeTooManyOptions:     1,
		CodeChapterTitleEmpty:  1,
	}
	for code, n := range want {
		if got := countCode(report.Warnings, code); got != n {
			t.Fatalf("%s warnings = %d, want %d (%v)", code, got, n, codes(report.Warnings))
		}
	}
}

func TestValidateDoesNotMutate(t *testing.T) {
	cond := "NOT has_key"
	s := story(chapter(1, "Edge", 2, 9), chapter(2, "Clearing"))
	s.Chapters[0].Options[0].Condition = &cond
	before := story(chapter(1, "Edge", 2, 9), chapter(2, "Clearing"))
	before.Chapters[0].Options[0].Condition = &cond

	Validate(s)
	if !reflect.DeepEqual(s, before) {
		t.Fatal("Validate modified its input")
	}
}

func TestValidateIsRepeatable(t *testing.T) {
	s := story(chapter(1, "Edge", 2, 9), chapter(3, "Lost"))
	first := Validate(s)
	second := Validate(s)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("expected identical reports on repeated validation")
	}
}
