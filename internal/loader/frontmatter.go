package loader

import (
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// fmRe matches a YAML front matter block, tolerating an optional BOM,
// leading whitespace and CRLF line endings.
var fmRe = regexp.MustCompile(`(?s)^\x{FEFF}?\s*---\r?\n(.*?)\r?\n---\s*\r?\n?`)

// parseFrontMatter splits text into its front matter mapping and the
// remaining body. Malformed YAML degrades to an empty mapping rather than
// failing the document.
func parseFrontMatter(text string) (map[string]any, string) {
	m := fmRe.FindStringSubmatchIndex(text)
	if m == nil {
		return map[string]any{}, text
	}
	raw := text[m[2]:m[3]]
	rest := text[m[1]:]

	var data map[string]any
	if err := yaml.Unmarshal([]byte(raw), &data); err != nil || data == nil {
		return map[string]any{}, rest
	}
	return data, rest
}

// listify normalises a front-matter value to a list of strings.
// Accepts YAML lists, comma-separated strings and bracketed strings
// like "[a, b]".
func listify(val any) []string {
	switch v := val.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := strings.TrimSpace(stringify(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		s := strings.TrimSpace(stringify(v))
		if s == "" {
			return nil
		}
		s = strings.TrimPrefix(s, "[")
		s = strings.TrimSuffix(s, "]")
		var out []string
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		// Unquoted dates like "date: 2025-01-07" arrive as timestamps;
		// keep the literal date form when no time of day was written.
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format(time.RFC3339)
	}
	b, err := yaml.Marshal(v)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// fmString returns the first non-empty string value among the given
// front-matter keys.
func fmString(fm map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := fm[k]; ok {
			if s := strings.TrimSpace(stringify(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

// fmList returns the first non-empty list among the given front-matter keys.
func fmList(fm map[string]any, keys ...string) []string {
	for _, k := range keys {
		if v, ok := fm[k]; ok {
			if l := listify(v); len(l) > 0 {
				return l
			}
		}
	}
	return nil
}
