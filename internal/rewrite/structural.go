package rewrite

import (
	"strings"

	"go.uber.org/zap"

	"github.com/Alcatecablee/fixwise-sub008/internal/engine"
	"github.com/Alcatecablee/fixwise-sub008/internal/parser"
	"github.com/Alcatecablee/fixwise-sub008/internal/rules"
)

// observedKinds are statement-level nodes whose normalized shapes feed the
// adaptive learner. Import/export statements are excluded: they recur in
// every file and carry no repair signal.
var observedKinds = map[string]bool{
	"expression_statement": true,
	"lexical_declaration":  true,
	"variable_declaration": true,
}

const maxObservationsPerUnit = 64

// structural traverses the arena in document order, collects matches and
// candidate edits, resolves span conflicts, and applies the winners.
func (rw *Rewriter) structural(unit engine.SourceUnit, arena *parser.Arena, layer rules.Layer, opts Options) Result {
	res := Result{Path: engine.PathStructural}

	// kind -> declaration-ordered rule indices
	byKind := make(map[string][]int)
	for i, r := range layer.Rules {
		if !r.Structural() {
			continue
		}
		for _, k := range r.NodeKinds {
			byKind[k] = append(byKind[k], i)
		}
	}

	broken := make(map[int]bool) // rules disabled after a panic
	seenObs := make(map[string]bool)
	var candidates []edit

	arena.Walk(func(v parser.NodeView) bool {
		if observedKinds[v.Kind()] && len(res.Observations) < maxObservationsPerUnit {
			if sig := NormalizeShape(v.Text()); sig != "" && !seenObs[sig] {
				seenObs[sig] = true
				res.Observations = append(res.Observations, sig)
			}
		}

		for _, ri := range byKind[v.Kind()] {
			if broken[ri] {
				continue
			}
			r := layer.Rules[ri]

			matched, replacement, hasFix, panicked := evalRule(r, v)
			if panicked != nil {
				broken[ri] = true
				res.Issues = append(res.Issues, ruleErrorIssue(layer, r, v.StartLine(), panicked))
				rw.log.Warn("rule panicked, skipping for unit",
					zap.String("rule", r.ID), zap.String("file", unit.FilePath))
				continue
			}
			if !matched {
				continue
			}

			span := Span{Start: v.StartByte(), End: v.EndByte()}
			if hasFix && excluded(span, opts) {
				// Already repaired by an earlier layer in this run.
				continue
			}

			res.Issues = append(res.Issues, engine.Issue{
				Type:         layer.Name,
				RuleID:       r.ID,
				Severity:     r.Severity,
				Line:         v.StartLine(),
				Column:       v.StartCol(),
				Description:  r.Description,
				FixAvailable: r.FixAvailable,
				Snippet:      snippet(v.Text()),
			})

			if hasFix && applicable(r, opts) {
				candidates = append(candidates, edit{
					span:        span,
					replacement: replacement,
					ruleID:      r.ID,
					severity:    r.Severity,
					order:       ri,
					line:        v.StartLine(),
				})
			}
		}
		return true
	})

	accepted := resolve(candidates)
	res.Text, res.AppliedSpans, res.Edits = apply(unit.Text, accepted)
	return res
}

// evalRule runs a rule's matcher and rewrite with panic isolation. A panic
// in either is reported once and the rule is disabled for the unit.
func evalRule(r rules.Rule, v parser.NodeView) (matched bool, replacement string, hasFix bool, panicked any) {
	defer func() {
		if rec := recover(); rec != nil {
			panicked = rec
			matched = false
		}
	}()

	if !r.MatchNode(v) {
		return false, "", false, nil
	}
	if r.RewriteNode == nil {
		return true, "", false, nil
	}
	rep, ok := r.RewriteNode(v)
	if !ok || rep == v.Text() {
		return true, "", false, nil
	}
	return true, rep, true, nil
}

func snippet(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	if len(text) > 120 {
		text = text[:120]
	}
	return text
}
