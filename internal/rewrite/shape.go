package rewrite

import (
	"regexp"
	"strings"
)

var (
	shapeStringRe = regexp.MustCompile(`"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'|` + "`(?:[^`\\\\]|\\\\.)*`")
	shapeNumberRe = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	shapeSpaceRe  = regexp.MustCompile(`\s+`)
)

// NormalizeShape abstracts a source fragment into its structural signature:
// string and numeric literals are collapsed and whitespace is canonicalized,
// so the same construct hashes identically across files. Fragments too short
// or too long to be a meaningful pattern normalize to "".
func NormalizeShape(fragment string) string {
	s := strings.TrimSpace(fragment)
	if strings.HasPrefix(s, "import ") || strings.HasPrefix(s, "export ") {
		return ""
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}

	s = shapeStringRe.ReplaceAllString(s, `"~"`)
	s = shapeNumberRe.ReplaceAllString(s, "0")
	s = shapeSpaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	if len(s) < 8 || len(s) > 200 {
		return ""
	}
	return s
}

// ShapeToPattern converts a normalized shape into a regular expression that
// matches concrete occurrences of the shape: collapsed literals match any
// literal and whitespace is flexible.
func ShapeToPattern(shape string) string {
	quoted := regexp.QuoteMeta(shape)
	quoted = strings.ReplaceAll(quoted, `"~"`, `(?:"[^"]*"|'[^']*')`)
	quoted = strings.ReplaceAll(quoted, `0`, `\d+(?:\.\d+)?`)
	quoted = strings.ReplaceAll(quoted, ` `, `\s+`)
	return quoted
}
