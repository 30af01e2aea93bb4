package rules

import (
	"regexp"
	"strings"

	"github.com/Alcatecablee/fixwise-sub008/internal/engine"
	"github.com/Alcatecablee/fixwise-sub008/internal/parser"
)

var (
	propTypesSourceRe = regexp.MustCompile(`from\s+['"]react/prop-types['"]`)
	jsxPragmaRe       = regexp.MustCompile(`@jsx\s+\w`)
	looseEnvCheckRe   = regexp.MustCompile(`process\.env\.NODE_ENV\s*(==|!=)\s*['"]`)
)

// layerConfigDrift is layer 1: configuration and import-source drift.
func layerConfigDrift() Layer {
	return Layer{
		ID:                      1,
		Name:                    "config-drift",
		RequiresStructuralParse: false,
		Rules: []Rule{
			{
				ID:           "config/prop-types-source",
				Description:  "PropTypes moved to the standalone prop-types package",
				Severity:     engine.SeverityMedium,
				FixAvailable: true,
				NodeKinds:    []string{"import_statement"},
				MatchNode: func(v parser.NodeView) bool {
					return propTypesSourceRe.MatchString(v.Text())
				},
				RewriteNode: func(v parser.NodeView) (string, bool) {
					return strings.Replace(v.Text(), "react/prop-types", "prop-types", 1), true
				},
				Pattern: propTypesSourceRe,
				RewriteText: func(match string) (string, bool) {
					return strings.Replace(match, "react/prop-types", "prop-types", 1), true
				},
			},
			{
				ID:          "config/legacy-jsx-pragma",
				Description: "legacy @jsx pragma comment conflicts with the automatic runtime",
				Severity:    engine.SeverityLow,
				NodeKinds:   []string{"comment"},
				MatchNode: func(v parser.NodeView) bool {
					return jsxPragmaRe.MatchString(v.Text())
				},
				Pattern: jsxPragmaRe,
			},
			{
				ID:          "config/mixed-module-systems",
				Description: "require() call in an ES module mixes module systems",
				Severity:    engine.SeverityMedium,
				NodeKinds:   []string{"call_expression"},
				MatchNode: func(v parser.NodeView) bool {
					fn, ok := v.NamedChild(0)
					if !ok || fn.Kind() != "identifier" || fn.Text() != "require" {
						return false
					}
					return unitHasImports(v)
				},
			},
			{
				ID:           "config/loose-env-comparison",
				Description:  "NODE_ENV compared with loose equality",
				Severity:     engine.SeverityMedium,
				FixAvailable: true,
				NodeKinds:    []string{"binary_expression"},
				MatchNode: func(v parser.NodeView) bool {
					return looseEnvCheckRe.MatchString(v.Text())
				},
				RewriteNode: func(v parser.NodeView) (string, bool) {
					return tightenEquality(v.Text())
				},
				Pattern: looseEnvCheckRe,
				RewriteText: func(match string) (string, bool) {
					return tightenEquality(match)
				},
			},
		},
	}
}

func tightenEquality(expr string) (string, bool) {
	if strings.Contains(expr, "===") || strings.Contains(expr, "!==") {
		return "", false
	}
	if strings.Contains(expr, "==") {
		return strings.Replace(expr, "==", "===", 1), true
	}
	if strings.Contains(expr, "!=") {
		return strings.Replace(expr, "!=", "!==", 1), true
	}
	return "", false
}
