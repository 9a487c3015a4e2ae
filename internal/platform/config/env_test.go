package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type envTestConfig struct {
	Locale string `env:"STORYENGINE_TEST_LOCALE" envDefault:"en-US"`
	Limit  int    `env:"STORYENGINE_TEST_LIMIT" envDefault:"123"`
}

func TestParseEnvDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Limit != 123 {
		t.Fatalf("expected default limit 123, got %d", cfg.Limit)
	}
	if cfg.Locale != "en-US" {
		t.Fatalf("expected default locale en-US, got %q", cfg.Locale)
	}
}

func TestParseEnvError(t *testing.T) {
	t.Chdir(t.TempDir())
	var cfg envTestConfig
	t.Setenv("STORYENGINE_TEST_LIMIT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestParseEnvReadsDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "story.env")
	if err := os.WriteFile(path, []byte("STORYENGINE_TEST_DOTENV_LOCALE=zh-TW\n"), 0o644); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}
	t.Setenv(DotEnvPathVar, path)
	t.Setenv("STORYENGINE_TEST_DOTENV_LOCALE", "")
	os.Unsetenv("STORYENGINE_TEST_DOTENV_LOCALE")

	var cfg struct {
		Locale string `env:"STORYENGINE_TEST_DOTENV_LOCALE" envDefault:"en-US"`
	}
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Locale != "zh-TW" {
		t.Fatalf("expected dotenv locale zh-TW, got %q", cfg.Locale)
	}
}

func TestLoadDotEnvMissingExplicitFile(t *testing.T) {
	err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"))
	if err == nil {
		t.Fatal("expected error for missing explicit dotenv file")
	}
}

func TestLoadDotEnvMissingDefaultFileIsIgnored(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := LoadDotEnv(""); err != nil {
		t.Fatalf("expected missing default .env to be ignored: %v", err)
	}
}
