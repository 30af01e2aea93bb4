package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Alcatecablee/fixwise-sub008/internal/engine"
	"github.com/Alcatecablee/fixwise-sub008/internal/parser"
)

var documentWriteRe = regexp.MustCompile(`\bdocument\.write\s*\(`)

// chainKinds are expression kinds that extend a member/call chain upward; a
// node with such a parent is not the outermost access of its chain.
var chainKinds = map[string]bool{
	"member_expression":    true,
	"subscript_expression": true,
	"call_expression":      true,
	"non_null_expression":  true,
}

// layerHydrationSafety is layer 4: browser-API access that breaks server
// rendering. This layer rewrites spans, so it only runs structurally.
func layerHydrationSafety() Layer {
	return Layer{
		ID:                      4,
		Name:                    "hydration-safety",
		RequiresStructuralParse: true,
		Rules: []Rule{
			{
				ID:           "hydration/unguarded-browser-global",
				Description:  "browser global accessed without an environment guard",
				Severity:     engine.SeverityHigh,
				FixAvailable: true,
				NodeKinds:    []string{"member_expression", "subscript_expression", "call_expression"},
				MatchNode:    matchUnguardedGlobal,
				RewriteNode: func(v parser.NodeView) (string, bool) {
					base, ok := leftmostIdentifier(v)
					if !ok {
						return "", false
					}
					return fmt.Sprintf(`(typeof %s !== "undefined" ? %s : undefined)`, base, v.Text()), true
				},
			},
			{
				ID:          "hydration/browser-global-write",
				Description: "browser global written without an environment guard",
				Severity:    engine.SeverityHigh,
				NodeKinds:   []string{"member_expression", "subscript_expression"},
				MatchNode: func(v parser.NodeView) bool {
					return unguardedGlobalChainHead(v) && isWriteTarget(v)
				},
			},
			{
				ID:          "hydration/document-write",
				Description: "document.write blocks streaming and fails after hydration",
				Severity:    engine.SeverityCritical,
				NodeKinds:   []string{"call_expression"},
				MatchNode: func(v parser.NodeView) bool {
					fn, ok := v.NamedChild(0)
					return ok && fn.Text() == "document.write"
				},
				Pattern: documentWriteRe,
			},
		},
	}
}

// matchUnguardedGlobal fires on the outermost read of a chain rooted at a
// browser global, unless the access is already guarded or runs inside a
// deferred callback. Write positions are excluded: wrapping an assignment
// target in a ternary is not a valid JavaScript assignment target, so those
// are reported separately without a fix.
func matchUnguardedGlobal(v parser.NodeView) bool {
	return unguardedGlobalChainHead(v) && !isWriteTarget(v)
}

// unguardedGlobalChainHead reports whether the node is the outermost
// expression of an unguarded browser-global chain.
func unguardedGlobalChainHead(v parser.NodeView) bool {
	base, ok := leftmostIdentifier(v)
	if !ok || !browserGlobals[base] {
		return false
	}

	if p, ok := v.Parent(); ok {
		if chainKinds[p.Kind()] {
			return false
		}
		// typeof window.x is itself a probe, not an access.
		if p.Kind() == "unary_expression" && strings.HasPrefix(p.Text(), "typeof ") {
			return false
		}
	}

	return !insideEnvironmentGuard(v) && !insideDeferredCallback(v)
}

// isWriteTarget reports whether the expression is assigned to, mutated by an
// update operator, or deleted, rather than read.
func isWriteTarget(v parser.NodeView) bool {
	p, ok := v.Parent()
	if !ok {
		return false
	}
	switch p.Kind() {
	case "assignment_expression", "augmented_assignment_expression":
		lhs, ok := p.NamedChild(0)
		return ok && lhs.Index() == v.Index()
	case "update_expression":
		return true
	case "unary_expression":
		return strings.HasPrefix(p.Text(), "delete ")
	}
	return false
}
