// Package rules holds the static repair catalog: one ordered rule set per
// pipeline layer, plus the read-only registry snapshot handed to each run.
package rules

import (
	"regexp"

	"github.com/Alcatecablee/fixwise-sub008/internal/engine"
	"github.com/Alcatecablee/fixwise-sub008/internal/parser"
)

// Rule is one detectable pattern and its repair. A rule declares a structural
// matcher, a textual matcher, or both; which one runs is decided by the
// rewriter path, never by runtime type probing. Rules hold no mutable state.
type Rule struct {
	ID           string
	Description  string
	Severity     engine.Severity
	FixAvailable bool

	// Structural path. NodeKinds names the tree-sitter node types the
	// matcher is invoked on; MatchNode refines the candidate and
	// RewriteNode produces the replacement for the node's span. A nil
	// RewriteNode (or ok=false) reports without fixing.
	NodeKinds   []string
	MatchNode   func(parser.NodeView) bool
	RewriteNode func(parser.NodeView) (string, bool)

	// Textual path. Pattern anchors the rule to a text window when no
	// structural parse is available; RewriteText maps a match to its
	// replacement.
	Pattern     *regexp.Regexp
	RewriteText func(match string) (string, bool)

	// Learned marks rules promoted from the adaptive learner. They are
	// opt-in and always severity low.
	Learned    bool
	Confidence float64
}

// Structural reports whether the rule can run on the structural path.
func (r Rule) Structural() bool { return len(r.NodeKinds) > 0 && r.MatchNode != nil }

// Textual reports whether the rule can run on the textual path.
func (r Rule) Textual() bool { return r.Pattern != nil }

// Layer is one static pipeline stage definition. Loaded at process start,
// immutable thereafter.
type Layer struct {
	ID                      int
	Name                    string
	RequiresStructuralParse bool
	Rules                   []Rule
}

// HasStructuralRules reports whether any rule in the layer can run on the
// structural path.
func (l Layer) HasStructuralRules() bool {
	for _, r := range l.Rules {
		if r.Structural() {
			return true
		}
	}
	return false
}

// HasTextualRules reports whether any rule in the layer carries a textual
// pattern.
func (l Layer) HasTextualRules() bool {
	for _, r := range l.Rules {
		if r.Textual() {
			return true
		}
	}
	return false
}

// matchesKind reports whether the rule wants to inspect the given node kind.
func (r Rule) matchesKind(kind string) bool {
	for _, k := range r.NodeKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// RulesForKind filters a layer's rules down to those interested in a node
// kind, preserving declaration order.
func (l Layer) RulesForKind(kind string) []Rule {
	var out []Rule
	for _, r := range l.Rules {
		if r.Structural() && r.matchesKind(kind) {
			out = append(out, r)
		}
	}
	return out
}
