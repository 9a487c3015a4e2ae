package validate

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestReportLocalize(t *testing.T) {
	report := Validate(story(chapter(1, "Edge", 2, 99), chapter(2, "Clearing")))
	if len(report.Errors) != 1 {
		t.Fatalf("errors = %v", codes(report.Errors))
	}

	zh := report.Localize("zh-TW")
	if zh.Locale != "zh-TW" {
		t.Fatalf("locale = %q", zh.Locale)
	}
	if got := zh.Errors[0].Message; got != "第 1 章第 2 個選項：next_id 99 指向不存在的章節。" {
		t.Fatalf("zh-TW message = %q", got)
	}
	if report.Errors[0].Message == zh.Errors[0].Message {
		t.Fatal("Localize must not modify the original report")
	}

	fallback := report.Localize("fr-FR")
	if fallback.Errors[0].Message != report.Errors[0].Message {
		t.Fatalf("fallback message = %q", fallback.Errors[0].Message)
	}
}

func TestWriteText(t *testing.T) {
	report := Validate(story(chapter(1, "Edge", 2, 99), chapter(2, "Clearing"), chapter(3, "Cave")))

	var buf bytes.Buffer
	if err := WriteText(&buf, report); err != nil {
		t.Fatalf("write text: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Story validation report",
		"Story: The Dark Forest (forest)",
		"Total chapters: 3",
		"Ending chapters: 2",
		"Ending chapter ids: 2, 3",
		"Total options: 2",
		"Errors (1):",
		"  1. Chapter 1, option 2: next_id 99 does not match any chapter (dangling reference).",
		"Warnings (1):",
		"  1. Chapter 3: no option leads here (orphaned chapter).",
		"Result: the story is invalid (1 error(s)).",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteTextLocalized(t *testing.T) {
	report := Validate(story(chapter(1, "Edge", 2, 3), chapter(2, "Clearing"), chapter(3, "River"))).Localize("zh-TW")

	var buf bytes.Buffer
	if err := WriteText(&buf, report); err != nil {
		t.Fatalf("write text: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"故事驗證報告", "章節總數：3", "錯誤（0）：", "  無", "結果：故事驗證通過。"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestReportJSON(t *testing.T) {
	report := Validate(story(chapter(1, "Edge", 2), chapter(2, "Clearing")))
	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		Errors   []Issue `json:"errors"`
		Warnings []Issue `json:"warnings"`
		Stats    Stats   `json:"stats"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Errors == nil || len(decoded.Errors) != 0 {
		t.Fatalf("expected empty errors array, got %s", data)
	}
	if decoded.Stats.Chapters != 2 {
		t.Fatalf("stats = %+v", decoded.Stats)
	}
}

func TestIssuesOrder(t *testing.T) {
	report := Validate(story(chapter(1, "Edge", 99)))
	issues := report.Issues()
	if len(issues) != len(report.Errors)+len(report.Warnings) {
		t.Fatalf("issues = %d", len(issues))
	}
	if issues[0].Severity != SeverityError {
		t.Fatalf("expected errors first, got %+v", issues[0])
	}
}
