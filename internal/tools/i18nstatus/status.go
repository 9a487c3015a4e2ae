// Package i18nstatus reports how complete each locale's message catalog is
// against the base locale.
package i18nstatus

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	platformcmd "github.com/louisbranch/storyengine/internal/platform/cmd"
	"github.com/louisbranch/storyengine/internal/platform/i18n/catalog"
)

// ErrIncomplete is returned by Run in check mode when a locale is missing
// base keys.
var ErrIncomplete = errors.New("catalog is incomplete")

// Config holds i18n status configuration.
type Config struct {
	BaseLocale  string `env:"STORYENGINE_I18N_BASE_LOCALE" envDefault:"en-US"`
	MarkdownOut string
	JSONOut     string
	Check       bool
}

// ParseConfig parses env and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.BaseLocale, "base-locale", cfg.BaseLocale, "locale used as the translation source of truth")
	fs.StringVar(&cfg.MarkdownOut, "out", "", "markdown output path")
	fs.StringVar(&cfg.JSONOut, "json-out", "", "json output path")
	fs.BoolVar(&cfg.Check, "check", false, "fail when any locale is missing base keys")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Report is the completeness of every locale.
type Report struct {
	BaseLocale string         `json:"base_locale"`
	Locales    []LocaleStatus `json:"locales"`
}

// LocaleStatus summarizes one locale.
type LocaleStatus struct {
	Locale      string            `json:"locale"`
	BaseKeys    int               `json:"base_keys"`
	Translated  int               `json:"translated"`
	Missing     int               `json:"missing"`
	Extra       int               `json:"extra"`
	Completion  float64           `json:"completion"`
	Namespaces  []NamespaceStatus `json:"namespaces"`
	MissingKeys []string          `json:"missing_keys"`
	ExtraKeys   []string          `json:"extra_keys"`
}

// NamespaceStatus summarizes one namespace of a locale.
type NamespaceStatus struct {
	Namespace  string  `json:"namespace"`
	BaseKeys   int     `json:"base_keys"`
	Translated int     `json:"translated"`
	Missing    int     `json:"missing"`
	Extra      int     `json:"extra"`
	Completion float64 `json:"completion"`
}

// Complete reports whether no locale is missing base keys.
func (r Report) Complete() bool {
	for _, locale := range r.Locales {
		if locale.Missing > 0 {
			return false
		}
	}
	return true
}

// Run builds the report for the embedded catalogs, prints a summary to out
// and writes the optional markdown and JSON artifacts.
func Run(cfg Config, out io.Writer) error {
	bundle, err := catalog.LoadEmbedded()
	if err != nil {
		return fmt.Errorf("load i18n catalogs: %w", err)
	}
	return run(bundle, cfg, out)
}

func run(bundle *catalog.Bundle, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if !bundle.HasLocale(cfg.BaseLocale) {
		return fmt.Errorf("base locale %q is missing from catalogs", cfg.BaseLocale)
	}

	rep := BuildReport(bundle, cfg.BaseLocale)
	if err := writeSummary(out, rep); err != nil {
		return err
	}
	if cfg.JSONOut != "" {
		if err := writeJSON(cfg.JSONOut, rep); err != nil {
			return fmt.Errorf("write json report: %w", err)
		}
	}
	if cfg.MarkdownOut != "" {
		if err := writeMarkdown(cfg.MarkdownOut, rep); err != nil {
			return fmt.Errorf("write markdown report: %w", err)
		}
	}
	if cfg.Check && !rep.Complete() {
		return ErrIncomplete
	}
	return nil
}

// BuildReport compares every locale in bundle with baseLocale.
func BuildReport(bundle *catalog.Bundle, baseLocale string) Report {
	baseMessages := bundle.LocaleMessages(baseLocale)
	baseNamespaces := bundle.Namespaces(baseLocale)

	locales := bundle.Locales()
	statuses := make([]LocaleStatus, 0, len(locales))
	for _, locale := range locales {
		localeMessages := bundle.LocaleMessages(locale)
		missing := diffKeys(baseMessages, localeMessages)
		extra := diffKeys(localeMessages, baseMessages)
		translated := len(baseMessages) - len(missing)

		namespaceSet := map[string]struct{}{}
		for _, namespace := range baseNamespaces {
			namespaceSet[namespace] = struct{}{}
		}
		for _, namespace := range bundle.Namespaces(locale) {
			namespaceSet[namespace] = struct{}{}
		}

		namespaces := make([]NamespaceStatus, 0, len(namespaceSet))
		for _, namespace := range sortedSetKeys(namespaceSet) {
			baseNS := bundle.NamespaceMessages(baseLocale, namespace)
			localeNS := bundle.NamespaceMessages(locale, namespace)
			nsMissing := diffKeys(baseNS, localeNS)
			nsTranslated := len(baseNS) - len(nsMissing)
			namespaces = append(namespaces, NamespaceStatus{
				Namespace:  namespace,
				BaseKeys:   len(baseNS),
				Translated: nsTranslated,
				Missing:    len(nsMissing),
				Extra:      len(diffKeys(localeNS, baseNS)),
				Completion: percent(nsTranslated, len(baseNS)),
			})
		}

		statuses = append(statuses, LocaleStatus{
			Locale:      locale,
			BaseKeys:    len(baseMessages),
			Translated:  translated,
			Missing:     len(missing),
			Extra:       len(extra),
			Completion:  percent(translated, len(baseMessages)),
			Namespaces:  namespaces,
			MissingKeys: missing,
			ExtraKeys:   extra,
		})
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Locale < statuses[j].Locale
	})
	return Report{BaseLocale: baseLocale, Locales: statuses}
}

func writeSummary(out io.Writer, rep Report) error {
	for _, locale := range rep.Locales {
		if _, err := fmt.Fprintf(out, "%s: %.1f%% (%d/%d, %d missing, %d extra)\n",
			locale.Locale, locale.Completion, locale.Translated, locale.BaseKeys, locale.Missing, locale.Extra); err != nil {
			return err
		}
		for _, key := range locale.MissingKeys {
			if _, err := fmt.Fprintf(out, "  missing %s\n", key); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeJSON(path string, rep Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeMarkdown(path string, rep Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}

	var b strings.Builder
	b.WriteString("# Catalog status\n\n")
	fmt.Fprintf(&b, "Base locale: `%s`.\n\n", rep.BaseLocale)
	b.WriteString("| Locale | Base Keys | Translated | Missing | Extra | Completion |\n")
	b.WriteString("| --- | ---: | ---: | ---: | ---: | ---: |\n")
	for _, locale := range rep.Locales {
		fmt.Fprintf(&b, "| `%s` | %d | %d | %d | %d | %.1f%% |\n",
			locale.Locale, locale.BaseKeys, locale.Translated, locale.Missing, locale.Extra, locale.Completion)
	}

	for _, locale := range rep.Locales {
		fmt.Fprintf(&b, "\n## `%s`\n\n", locale.Locale)
		b.WriteString("| Namespace | Base Keys | Translated | Missing | Extra | Completion |\n")
		b.WriteString("| --- | ---: | ---: | ---: | ---: | ---: |\n")
		for _, ns := range locale.Namespaces {
			fmt.Fprintf(&b, "| `%s` | %d | %d | %d | %d | %.1f%% |\n",
				ns.Namespace, ns.BaseKeys, ns.Translated, ns.Missing, ns.Extra, ns.Completion)
		}
		writeKeyList(&b, "Missing keys", locale.MissingKeys)
		writeKeyList(&b, "Extra keys", locale.ExtraKeys)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeKeyList(b *strings.Builder, title string, keys []string) {
	if len(keys) == 0 {
		return
	}
	fmt.Fprintf(b, "\n### %s\n\n", title)
	for _, key := range keys {
		fmt.Fprintf(b, "- `%s`\n", key)
	}
}

// diffKeys returns the keys of a that are absent from b, sorted.
func diffKeys(a, b map[string]string) []string {
	out := make([]string, 0)
	for key := range a {
		if _, ok := b[key]; !ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

func sortedSetKeys(entries map[string]struct{}) []string {
	out := make([]string, 0, len(entries))
	for key := range entries {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func percent(numerator, denominator int) float64 {
	if denominator <= 0 {
		return 100
	}
	value := float64(numerator) * 100 / float64(denominator)
	return math.Round(value*10) / 10
}
