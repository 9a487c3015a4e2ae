// Package validate checks a story graph for structural, referential and
// content problems and produces a severity-classified report.
//
// Every pass runs on every call, regardless of earlier failures, so one
// report lists everything. Validate never modifies the story.
package validate

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/louisbranch/storyengine/internal/platform/i18n/catalog"
	"github.com/louisbranch/storyengine/internal/services/story/domain/condition"
	"github.com/louisbranch/storyengine/internal/services/story/domain/graph"
	"github.com/louisbranch/storyengine/internal/services/story/domain/render"
)

// Limits used by the metadata, structure and quality passes. Lengths are
// counted in runes.
const (
	MaxStoryIDLength   = 50
	MinStoryTitle      = 3
	MaxStoryTitle      = 255
	MinChapterTitle    = 2
	MaxChapterTitle    = 50
	MinContentLength   = 10
	MaxContentLength   = 10000
	MaxOptions         = 10
	MaxOptionTextRunes = 100
)

var storyIDPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// repeatedPunctuation lists the runs reported by the quality pass, in
// reporting order.
var repeatedPunctuation = []string{"!!", "??", "..", "！！", "？？"}

const terminalPunctuation = ".!?。！？…"

// Validate runs every pass over story and returns the report in the base
// locale.
func Validate(story graph.Story) Report {
	v := newValidator(story)
	v.checkMetadata()
	v.checkStructure()
	v.checkReferences()
	v.checkLogic()
	v.checkConditions()
	v.checkQuality()
	return v.report()
}

type validator struct {
	story  graph.Story
	issues []Issue
	// ids holds ids of chapters whose id field decoded cleanly.
	ids map[int]bool
}

func newValidator(story graph.Story) *validator {
	v := &validator{story: story, ids: make(map[int]bool, len(story.Chapters))}
	for _, ch := range story.Chapters {
		if hasFault(ch.Faults, "id") || hasFault(ch.Faults, "chapter") {
			continue
		}
		v.ids[ch.ID] = true
	}
	return v
}

func (v *validator) add(severity Severity, check Check, code Code, at location, metadata map[string]string) {
	v.issues = append(v.issues, Issue{
		Severity:  severity,
		Check:     check,
		Code:      code,
		ChapterID: at.chapterID,
		Position:  at.position,
		Option:    at.option,
		Metadata:  metadata,
	})
}

// location identifies where an issue applies.
type location struct {
	chapterID int
	position  int
	option    int
}

var storyLevel = location{}

// chapterAt locates the chapter at index i by id when it has a usable id
// and by position otherwise.
func (v *validator) chapterAt(i int) location {
	ch := v.story.Chapters[i]
	if ch.ID > 0 && !hasFault(ch.Faults, "id") && !hasFault(ch.Faults, "chapter") {
		return location{chapterID: ch.ID}
	}
	return location{position: i + 1}
}

func (l location) withOption(j int) location {
	l.option = j + 1
	return l
}

func (v *validator) checkMetadata() {
	story := v.story
	faulted := func(field string) bool {
		for _, fault := range story.Faults {
			if fault.Field == field {
				v.add(SeverityError, CheckMetadata, faultCode(fault), storyLevel, faultMetadata(fault))
				return true
			}
		}
		return false
	}

	if !faulted("story_id") {
		id := strings.TrimSpace(story.ID)
		switch {
		case id == "":
			v.add(SeverityError, CheckMetadata, CodeStoryIDMissing, storyLevel, nil)
		default:
			if !storyIDPattern.MatchString(id) {
				v.add(SeverityError, CheckMetadata, CodeStoryIDFormat, storyLevel, map[string]string{"StoryID": id})
			}
			if n := utf8.RuneCountInString(id); n > MaxStoryIDLength {
				v.add(SeverityError, CheckMetadata, CodeStoryIDTooLong, storyLevel, map[string]string{
					"Length": strconv.Itoa(n),
					"Max":    strconv.Itoa(MaxStoryIDLength),
				})
			}
		}
	}

	if !faulted("title") {
		title := strings.TrimSpace(story.Title)
		if title == "" {
			v.add(SeverityError, CheckMetadata, CodeStoryTitleMissing, storyLevel, nil)
		} else if n := utf8.RuneCountInString(title); n < MinStoryTitle || n > MaxStoryTitle {
			v.add(SeverityError, CheckMetadata, CodeStoryTitleLength, storyLevel, map[string]string{
				"Length": strconv.Itoa(n),
				"Min":    strconv.Itoa(MinStoryTitle),
				"Max":    strconv.Itoa(MaxStoryTitle),
			})
		}
	}

	for _, field := range []string{"description", "author", "version"} {
		faulted(field)
	}
}

func (v *validator) checkStructure() {
	for _, fault := range v.story.Faults {
		if fault.Field == "chapters" {
			v.add(SeverityError, CheckStructure, faultCode(fault), storyLevel, faultMetadata(fault))
		}
	}

	for i, ch := range v.story.Chapters {
		at := v.chapterAt(i)
		for _, fault := range ch.Faults {
			v.add(SeverityError, CheckStructure, faultCode(fault), at, faultMetadata(fault))
		}
		if hasFault(ch.Faults, "chapter") {
			continue
		}

		if !hasFault(ch.Faults, "id") && ch.ID <= 0 {
			v.add(SeverityError, CheckStructure, CodeChapterIDInvalid, at, map[string]string{"ID": strconv.Itoa(ch.ID)})
		}

		if !hasFault(ch.Faults, "title") {
			title := strings.TrimSpace(ch.Title)
			if title == "" {
				v.add(SeverityWarning, CheckStructure, CodeChapterTitleEmpty, at, nil)
			} else if n := utf8.RuneCountInString(title); n < MinChapterTitle || n > MaxChapterTitle {
				v.add(SeverityWarning, CheckStructure, CodeChapterTitleLength, at, map[string]string{
					"Length": strconv.Itoa(n),
					"Min":    strconv.Itoa(MinChapterTitle),
					"Max":    strconv.Itoa(MaxChapterTitle),
				})
			}
		}

		if !hasFault(ch.Faults, "content") {
			if n := utf8.RuneCountInString(ch.Content); n < MinContentLength || n > MaxContentLength {
				v.add(SeverityWarning, CheckStructure, CodeContentLength, at, map[string]string{
					"Length": strconv.Itoa(n),
					"Min":    strconv.Itoa(MinContentLength),
					"Max":    strconv.Itoa(MaxContentLength),
				})
			}
		}

		if len(ch.Options) > MaxOptions {
			v.add(SeverityWarning, CheckStructure, CodeTooManyOptions, at, map[string]string{
				"Count": strconv.Itoa(len(ch.Options)),
				"Max":   strconv.Itoa(MaxOptions),
			})
		}

		for j, opt := range ch.Options {
			optAt := at.withOption(j)
			for _, fault := range opt.Faults {
				v.add(SeverityError, CheckStructure, faultCode(fault), optAt, faultMetadata(fault))
			}
			if hasFault(opt.Faults, "option") || hasFault(opt.Faults, "text") {
				continue
			}
			if strings.TrimSpace(opt.Text) == "" {
				v.add(SeverityError, CheckStructure, CodeOptionTextMissing, optAt, nil)
			}
		}
	}

	v.checkDuplicateIDs()
}

func (v *validator) checkDuplicateIDs() {
	counts := make(map[int]int, len(v.story.Chapters))
	var order []int
	for _, ch := range v.story.Chapters {
		if hasFault(ch.Faults, "id") || hasFault(ch.Faults, "chapter") {
			continue
		}
		if counts[ch.ID] == 0 {
			order = append(order, ch.ID)
		}
		counts[ch.ID]++
	}
	for _, id := range order {
		if counts[id] > 1 {
			v.add(SeverityError, CheckStructure, CodeDuplicateChapterID, location{chapterID: id}, map[string]string{
				"ID":    strconv.Itoa(id),
				"Count": strconv.Itoa(counts[id]),
			})
		}
	}
}

func (v *validator) checkReferences() {
	v.eachLinkedOption(func(i, j int, opt graph.Option) {
		if !v.ids[opt.NextID] {
			v.add(SeverityError, CheckReferences, CodeDanglingReference, v.chapterAt(i).withOption(j), map[string]string{
				"Target": strconv.Itoa(opt.NextID),
			})
		}
	})
}

func (v *validator) checkLogic() {
	if !v.ids[graph.StartChapterID] {
		v.add(SeverityError, CheckLogic, CodeMissingStart, storyLevel, map[string]string{"ID": strconv.Itoa(graph.StartChapterID)})
	}

	referenced := make(map[int]bool)
	v.eachLinkedOption(func(i, j int, opt graph.Option) {
		referenced[opt.NextID] = true
	})

	reported := make(map[int]bool)
	for i, ch := range v.story.Chapters {
		if hasFault(ch.Faults, "id") || hasFault(ch.Faults, "chapter") || ch.ID <= 0 {
			continue
		}
		if ch.ID == graph.StartChapterID || referenced[ch.ID] || reported[ch.ID] {
			continue
		}
		reported[ch.ID] = true
		v.add(SeverityWarning, CheckLogic, CodeOrphanedChapter, v.chapterAt(i), nil)
	}

	v.eachLinkedOption(func(i, j int, opt graph.Option) {
		ch := v.story.Chapters[i]
		if hasFault(ch.Faults, "id") {
			return
		}
		if opt.NextID == ch.ID {
			v.add(SeverityWarning, CheckLogic, CodeSelfReference, v.chapterAt(i).withOption(j), nil)
		}
	})

	if v.endingCount() == 0 {
		v.add(SeverityWarning, CheckLogic, CodeNoEnding, storyLevel, nil)
	}
}

func (v *validator) checkConditions() {
	for i, ch := range v.story.Chapters {
		at := v.chapterAt(i)
		if !hasFault(ch.Faults, "content") && !hasFault(ch.Faults, "chapter") {
			opens, closes := render.CountMarkers(ch.Content)
			if opens != closes {
				v.add(SeverityError, CheckConditions, CodeUnclosedBlock, at, map[string]string{
					"Opens":  strconv.Itoa(opens),
					"Closes": strconv.Itoa(closes),
				})
			}
			for _, block := range render.Scan(ch.Content) {
				for _, problem := range condition.Check(block.Expr) {
					v.addProblem(problem, at, false)
				}
				if strings.TrimSpace(block.Body) == "" {
					v.add(SeverityWarning, CheckConditions, CodeBlockEmptyBody, at, map[string]string{"Expr": block.Expr})
				}
			}
			if render.HasElse(ch.Content) {
				v.add(SeverityWarning, CheckConditions, CodeElseUnsupported, at, nil)
			}
		}

		for j, opt := range ch.Options {
			if opt.Condition == nil {
				continue
			}
			for _, problem := range condition.Check(*opt.Condition) {
				v.addProblem(problem, at.withOption(j), true)
			}
		}
	}
}

// addProblem records a grammar problem. Option conditions are advisory, so
// their problems never block.
func (v *validator) addProblem(problem condition.Problem, at location, advisory bool) {
	severity := SeverityError
	if advisory || problem.Severity == condition.SeverityWarning {
		severity = SeverityWarning
	}
	metadata := map[string]string{"Expr": problem.Expr}
	if problem.Name != "" {
		metadata["Name"] = problem.Name
	}
	if problem.Literal != "" {
		metadata["Literal"] = problem.Literal
	}
	v.add(severity, CheckConditions, Code(problem.Code), at, metadata)
}

func (v *validator) checkQuality() {
	for i, ch := range v.story.Chapters {
		if hasFault(ch.Faults, "chapter") {
			continue
		}
		at := v.chapterAt(i)

		title := strings.TrimSpace(ch.Title)
		if title != "" && !hasFault(ch.Faults, "title") {
			if isUpperCase(title) {
				v.add(SeverityWarning, CheckQuality, CodeTitleUppercase, at, nil)
			}
			last, _ := utf8.DecodeLastRuneInString(title)
			if strings.ContainsRune(terminalPunctuation, last) {
				v.add(SeverityWarning, CheckQuality, CodeTitlePunctuation, at, nil)
			}
		}

		if len(ch.Options) == 1 {
			v.add(SeverityWarning, CheckQuality, CodeSingleOption, at, nil)
		}
		for j, opt := range ch.Options {
			if n := utf8.RuneCountInString(opt.Text); n > MaxOptionTextRunes {
				v.add(SeverityWarning, CheckQuality, CodeOptionTextLong, at.withOption(j), map[string]string{
					"Length": strconv.Itoa(n),
					"Max":    strconv.Itoa(MaxOptionTextRunes),
				})
			}
		}

		for _, run := range repeatedPunctuation {
			if strings.Contains(ch.Content, run) {
				v.add(SeverityWarning, CheckQuality, CodeRepeatedPunctuation, at, map[string]string{"Run": run})
			}
		}
	}
}

// eachLinkedOption visits options whose next_id decoded cleanly.
func (v *validator) eachLinkedOption(fn func(i, j int, opt graph.Option)) {
	for i, ch := range v.story.Chapters {
		for j, opt := range ch.Options {
			if hasFault(opt.Faults, "option") || hasFault(opt.Faults, "next_id") {
				continue
			}
			fn(i, j, opt)
		}
	}
}

func (v *validator) endingIDs() []int {
	var ids []int
	seen := make(map[int]bool)
	for _, ch := range v.story.Chapters {
		if !isEnding(ch) || hasFault(ch.Faults, "id") || seen[ch.ID] {
			continue
		}
		seen[ch.ID] = true
		ids = append(ids, ch.ID)
	}
	return ids
}

// endingCount counts distinct ending ids so Stats.Endings always matches
// Stats.EndingIDs.
func (v *validator) endingCount() int {
	return len(v.endingIDs())
}

func (v *validator) report() Report {
	r := Report{
		StoryID:  v.story.ID,
		Title:    v.story.Title,
		Locale:   catalog.BaseLocale,
		Errors:   []Issue{},
		Warnings: []Issue{},
		Stats: Stats{
			Chapters:  len(v.story.Chapters),
			Endings:   v.endingCount(),
			EndingIDs: v.endingIDs(),
			Options:   v.story.OptionCount(),
		},
	}
	if r.Stats.EndingIDs == nil {
		r.Stats.EndingIDs = []int{}
	}
	for _, issue := range v.issues {
		issue.Message = issue.Localized(catalog.BaseLocale)
		if issue.Severity == SeverityError {
			r.Errors = append(r.Errors, issue)
		} else {
			r.Warnings = append(r.Warnings, issue)
		}
	}
	return r
}

// isEnding reports a chapter with a well-formed, empty options list.
func isEnding(ch graph.Chapter) bool {
	return ch.IsEnding() && !hasFault(ch.Faults, "options") && !hasFault(ch.Faults, "chapter")
}

func isUpperCase(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

func hasFault(faults []graph.FieldFault, field string) bool {
	for _, fault := range faults {
		if fault.Field == field {
			return true
		}
	}
	return false
}

func faultCode(fault graph.FieldFault) Code {
	if fault.Kind == graph.FaultMissing {
		return CodeFieldMissing
	}
	return CodeFieldType
}

func faultMetadata(fault graph.FieldFault) map[string]string {
	metadata := map[string]string{"Field": fault.Field}
	if fault.Want != "" {
		metadata["Want"] = fault.Want
	}
	return metadata
}
