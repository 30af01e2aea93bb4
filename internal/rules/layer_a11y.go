package rules

import (
	"regexp"
	"strings"

	"github.com/Alcatecablee/fixwise-sub008/internal/engine"
	"github.com/Alcatecablee/fixwise-sub008/internal/parser"
)

var (
	imgNoAltRe    = regexp.MustCompile(`<img\b[^>]*/?>`)
	autoFocusRe   = regexp.MustCompile(`\bautoFocus\b`)
	clickNoRoleRe = regexp.MustCompile(`<(div|span)\b[^>]*\bonClick\s*=`)
)

// nonInteractiveTags are elements that need an explicit role before click
// handlers are attached.
var nonInteractiveTags = map[string]bool{"div": true, "span": true, "li": true}

// layerAccessibility is layer 3: key-prop and accessibility omissions.
func layerAccessibility() Layer {
	return Layer{
		ID:                      3,
		Name:                    "accessibility-keys",
		RequiresStructuralParse: false,
		Rules: []Rule{
			{
				ID:          "a11y/missing-list-key",
				Description: "list-rendered element is missing a key prop",
				Severity:    engine.SeverityHigh,
				NodeKinds:   []string{"jsx_element", "jsx_self_closing_element"},
				MatchNode: func(v parser.NodeView) bool {
					if !insideMapCallback(v) {
						return false
					}
					// Only the outermost element of the callback result
					// needs the key.
					if p, ok := v.Parent(); ok {
						switch p.Kind() {
						case "jsx_element", "jsx_fragment", "jsx_self_closing_element":
							return false
						}
					}
					return !jsxHasAttribute(openingElementText(v), "key")
				},
			},
			{
				ID:           "a11y/img-missing-alt",
				Description:  "img element has no alt text",
				Severity:     engine.SeverityMedium,
				FixAvailable: true,
				NodeKinds:    []string{"jsx_self_closing_element", "jsx_element"},
				MatchNode: func(v parser.NodeView) bool {
					return jsxTagName(v) == "img" && !jsxHasAttribute(openingElementText(v), "alt")
				},
				RewriteNode: func(v parser.NodeView) (string, bool) {
					return insertAltAttribute(v.Text())
				},
				Pattern: imgNoAltRe,
				RewriteText: func(match string) (string, bool) {
					if jsxHasAttribute(match, "alt") {
						return "", false
					}
					return insertAltAttribute(match)
				},
			},
			{
				ID:          "a11y/click-without-role",
				Description: "click handler on a non-interactive element without a role",
				Severity:    engine.SeverityMedium,
				NodeKinds:   []string{"jsx_element", "jsx_self_closing_element"},
				MatchNode: func(v parser.NodeView) bool {
					if !nonInteractiveTags[jsxTagName(v)] {
						return false
					}
					opening := openingElementText(v)
					return jsxHasAttribute(opening, "onClick") && !jsxHasAttribute(opening, "role")
				},
				Pattern: clickNoRoleRe,
			},
			{
				ID:          "a11y/autofocus",
				Description: "autoFocus steals focus from assistive technology users",
				Severity:    engine.SeverityLow,
				NodeKinds:   []string{"jsx_attribute"},
				MatchNode: func(v parser.NodeView) bool {
					return strings.HasPrefix(v.Text(), "autoFocus")
				},
				Pattern: autoFocusRe,
			},
		},
	}
}

// insertAltAttribute adds an empty alt before the tag close. Empty alt is
// the correct marker for decorative images; authors refine it later.
func insertAltAttribute(tag string) (string, bool) {
	if i := strings.Index(tag, "/>"); i >= 0 {
		return strings.TrimRight(tag[:i], " ") + ` alt="" />` + tag[i+2:], true
	}
	if i := strings.Index(tag, ">"); i >= 0 {
		return strings.TrimRight(tag[:i], " ") + ` alt="">` + tag[i+1:], true
	}
	return "", false
}
