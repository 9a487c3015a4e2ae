package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmbeddedHasExpectedLocales(t *testing.T) {
	bundle, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded catalogs: %v", err)
	}
	if !bundle.HasLocale(BaseLocale) {
		t.Fatalf("expected base locale %s", BaseLocale)
	}
	if !bundle.HasLocale("zh-TW") {
		t.Fatalf("expected locale zh-TW")
	}

	if got := len(bundle.LocaleMessages("en-US")); got == 0 {
		t.Fatalf("expected en-US messages")
	}
	for _, namespace := range []string{"errors", "play", "report", "validate"} {
		if got := len(bundle.NamespaceMessages("en-US", namespace)); got == 0 {
			t.Fatalf("expected en-US %s namespace messages", namespace)
		}
	}
}

func TestLoadFromFSRejectsKeyOutsideItsNamespace(t *testing.T) {
	tempDir := t.TempDir()
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/report.yaml"), `locale: "en-US"
namespace: "report"
messages:
  "validate.bad": "nope"
`)
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/validate.yaml"), `locale: "en-US"
namespace: "validate"
messages:
  "validate.good": "ok"
`)

	_, err := LoadFromFS(os.DirFS(tempDir))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadFromFSRejectsDuplicateKeysAcrossNamespaces(t *testing.T) {
	tempDir := t.TempDir()
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/report.yaml"), `locale: "en-US"
namespace: "report"
messages:
  "SHARED_KEY": "a"
`)
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/errors.yaml"), `locale: "en-US"
namespace: "errors"
messages:
  "SHARED_KEY": "b"
`)

	_, err := LoadFromFS(os.DirFS(tempDir))
	if err == nil {
		t.Fatal("expected duplicate key error")
	}
}

func TestLoadFromFSRequiresBaseLocale(t *testing.T) {
	tempDir := t.TempDir()
	mustWriteFile(t, filepath.Join(tempDir, "locales/zh-TW/report.yaml"), `locale: "zh-TW"
namespace: "report"
messages:
  "report.title": "驗證報告"
`)

	_, err := LoadFromFS(os.DirFS(tempDir))
	if err == nil {
		t.Fatal("expected missing base locale error")
	}
}

func TestLoadFromFSRejectsLocaleMismatch(t *testing.T) {
	tempDir := t.TempDir()
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/report.yaml"), `locale: "zh-TW"
namespace: "report"
messages:
  "report.title": "x"
`)

	_, err := LoadFromFS(os.DirFS(tempDir))
	if err == nil {
		t.Fatal("expected locale mismatch error")
	}
}

func TestMessageFallsBackToBaseLocale(t *testing.T) {
	tempDir := t.TempDir()
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/report.yaml"), `locale: "en-US"
namespace: "report"
messages:
  "report.title": "Validation report"
  "report.only_base": "base only"
`)
	mustWriteFile(t, filepath.Join(tempDir, "locales/zh-TW/report.yaml"), `locale: "zh-TW"
namespace: "report"
messages:
  "report.title": "驗證報告"
`)

	bundle, err := LoadFromFS(os.DirFS(tempDir))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got, _ := bundle.Message("zh-TW", "report.title"); got != "驗證報告" {
		t.Fatalf("zh-TW title = %q", got)
	}
	if got, ok := bundle.Message("zh-TW", "report.only_base"); !ok || got != "base only" {
		t.Fatalf("fallback = %q, %v", got, ok)
	}
	if _, ok := bundle.Message("zh-TW", "report.missing"); ok {
		t.Fatal("expected missing key")
	}
}

func TestPrinterMatchesSupportedLocale(t *testing.T) {
	bundle := Default()

	if got := bundle.Printer("zh-TW").Sprintf("report.total_chapters", 3); got != "章節總數：3" {
		t.Fatalf("zh-TW = %q", got)
	}
	if got := bundle.Printer("en-US").Sprintf("report.total_chapters", 3); got != "Total chapters: 3" {
		t.Fatalf("en-US = %q", got)
	}
	if got := bundle.Printer("not a locale").Sprintf("report.total_chapters", 3); got != "Total chapters: 3" {
		t.Fatalf("invalid locale = %q", got)
	}
}

func mustWriteFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
