package catalog

import (
	"bytes"
	"strings"
	"sync"
	"text/template"
)

var templateCache sync.Map // string -> *template.Template

// Format renders the message for key in locale with base-locale fallback.
// Messages are text/template sources executed against metadata; keys with
// no message render as the key itself, and broken templates render as
// their raw source.
func (b *Bundle) Format(locale, key string, metadata map[string]string) string {
	tmpl, ok := b.Message(locale, key)
	if !ok {
		return key
	}
	return formatTemplate(tmpl, metadata)
}

func formatTemplate(tmpl string, metadata map[string]string) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	if metadata == nil {
		metadata = map[string]string{}
	}

	var t *template.Template
	if cached, ok := templateCache.Load(tmpl); ok {
		t = cached.(*template.Template)
	} else {
		parsed, err := template.New("msg").Parse(tmpl)
		if err != nil {
			return tmpl
		}
		templateCache.Store(tmpl, parsed)
		t = parsed
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, metadata); err != nil {
		return tmpl
	}
	return buf.String()
}
