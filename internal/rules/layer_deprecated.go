package rules

import (
	"regexp"
	"strings"

	"github.com/Alcatecablee/fixwise-sub008/internal/engine"
	"github.com/Alcatecablee/fixwise-sub008/internal/parser"
)

// legacyLifecycles are the class-component methods renamed with an UNSAFE_
// prefix in React 16.3+.
var legacyLifecycles = map[string]bool{
	"componentWillMount":        true,
	"componentWillReceiveProps": true,
	"componentWillUpdate":       true,
}

var (
	legacyLifecycleRe = regexp.MustCompile(`\b(componentWillMount|componentWillReceiveProps|componentWillUpdate)\s*\(`)
	varDeclRe         = regexp.MustCompile(`(?m)^(\s*)var(\s+)`)
	stringRefRe       = regexp.MustCompile(`\bref\s*=\s*["']\w`)
	createClassRe     = regexp.MustCompile(`\bReact\.createClass\s*\(`)
)

// layerDeprecatedPatterns is layer 2: constructs the ecosystem has retired.
func layerDeprecatedPatterns() Layer {
	return Layer{
		ID:                      2,
		Name:                    "deprecated-patterns",
		RequiresStructuralParse: false,
		Rules: []Rule{
			{
				ID:           "deprecated/legacy-lifecycle",
				Description:  "legacy lifecycle method needs the UNSAFE_ prefix",
				Severity:     engine.SeverityHigh,
				FixAvailable: true,
				NodeKinds:    []string{"method_definition"},
				MatchNode: func(v parser.NodeView) bool {
					name, ok := v.NamedChild(0)
					return ok && legacyLifecycles[name.Text()]
				},
				RewriteNode: func(v parser.NodeView) (string, bool) {
					name, ok := v.NamedChild(0)
					if !ok {
						return "", false
					}
					return strings.Replace(v.Text(), name.Text(), "UNSAFE_"+name.Text(), 1), true
				},
				Pattern: legacyLifecycleRe,
				RewriteText: func(match string) (string, bool) {
					return "UNSAFE_" + match, true
				},
			},
			{
				ID:           "deprecated/var-declaration",
				Description:  "var declaration predates block scoping",
				Severity:     engine.SeverityLow,
				FixAvailable: true,
				NodeKinds:    []string{"variable_declaration"},
				MatchNode: func(v parser.NodeView) bool {
					return strings.HasPrefix(v.Text(), "var ")
				},
				RewriteNode: func(v parser.NodeView) (string, bool) {
					return "let " + strings.TrimPrefix(v.Text(), "var "), true
				},
				Pattern: varDeclRe,
				RewriteText: func(match string) (string, bool) {
					return strings.Replace(match, "var", "let", 1), true
				},
			},
			{
				ID:          "deprecated/string-ref",
				Description: "string refs were removed; use callback refs or useRef",
				Severity:    engine.SeverityHigh,
				NodeKinds:   []string{"jsx_attribute"},
				MatchNode: func(v parser.NodeView) bool {
					return stringRefRe.MatchString(v.Text())
				},
				Pattern: stringRefRe,
			},
			{
				ID:          "deprecated/create-class",
				Description: "React.createClass was removed; convert to a class or function component",
				Severity:    engine.SeverityCritical,
				NodeKinds:   []string{"call_expression"},
				MatchNode: func(v parser.NodeView) bool {
					fn, ok := v.NamedChild(0)
					return ok && fn.Text() == "React.createClass"
				},
				Pattern: createClassRe,
			},
		},
	}
}
