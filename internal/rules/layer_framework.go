package rules

import (
	"regexp"
	"strings"

	"github.com/Alcatecablee/fixwise-sub008/internal/engine"
	"github.com/Alcatecablee/fixwise-sub008/internal/parser"
)

var (
	hookCallRe     = regexp.MustCompile(`\buse(State|Effect|LayoutEffect|Reducer|Ref|Context)\s*\(`)
	legacyRouterRe = regexp.MustCompile(`from\s+['"]next/router['"]`)
)

// layerFrameworkConventions is layer 5: meta-framework routing and
// client/server boundary conventions. It runs after hydration safety and
// must not re-wrap spans layer 4 already guarded; the orchestrator enforces
// that by excluding layer-4 edit spans from this layer's candidate edits.
func layerFrameworkConventions() Layer {
	return Layer{
		ID:                      5,
		Name:                    "framework-conventions",
		RequiresStructuralParse: true,
		Rules: []Rule{
			{
				ID:           "framework/missing-use-client",
				Description:  "client-only constructs in a route module without a \"use client\" directive",
				Severity:     engine.SeverityHigh,
				FixAvailable: true,
				NodeKinds:    []string{"program"},
				MatchNode: func(v parser.NodeView) bool {
					if v.UnitKind() != engine.KindRouteModule {
						return false
					}
					if hasDirectivePrologue(v, "use client") || hasDirectivePrologue(v, "use server") {
						return false
					}
					text := v.Text()
					return hookCallRe.MatchString(text) || usesBrowserGlobal(text)
				},
				RewriteNode: func(v parser.NodeView) (string, bool) {
					return "\"use client\";\n\n" + v.Text(), true
				},
			},
			{
				ID:           "framework/legacy-router-import",
				Description:  "next/router import in an app-directory module; use next/navigation",
				Severity:     engine.SeverityMedium,
				FixAvailable: true,
				NodeKinds:    []string{"import_statement"},
				MatchNode: func(v parser.NodeView) bool {
					return v.UnitKind() == engine.KindRouteModule && legacyRouterRe.MatchString(v.Text())
				},
				RewriteNode: func(v parser.NodeView) (string, bool) {
					return strings.Replace(v.Text(), "next/router", "next/navigation", 1), true
				},
			},
			{
				ID:          "framework/missing-default-export",
				Description: "route module does not export a default component",
				Severity:    engine.SeverityHigh,
				NodeKinds:   []string{"program"},
				MatchNode: func(v parser.NodeView) bool {
					if v.UnitKind() != engine.KindRouteModule {
						return false
					}
					name := routeBaseName(v.FilePath())
					if name != "page" && name != "layout" && name != "template" {
						return false
					}
					return !strings.Contains(v.Text(), "export default")
				},
			},
		},
	}
}

func usesBrowserGlobal(text string) bool {
	for g := range browserGlobals {
		if strings.Contains(text, g+".") {
			return true
		}
	}
	return false
}

func routeBaseName(filePath string) string {
	base := filePath
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	return base
}
