package rewrite

import (
	"strings"

	"go.uber.org/zap"

	"github.com/Alcatecablee/fixwise-sub008/internal/engine"
	"github.com/Alcatecablee/fixwise-sub008/internal/rules"
)

// maxMatchesPerRule bounds textual scanning on degenerate inputs.
const maxMatchesPerRule = 200

// textual applies pattern-anchored rules as scoped substitutions. It only
// runs when the unit has no structural parse, so every replacement is
// anchored to the matched window and applied in reverse document order.
func (rw *Rewriter) textual(unit engine.SourceUnit, layer rules.Layer, opts Options) Result {
	res := Result{Path: engine.PathTextual}

	var candidates []edit
	for ri, r := range layer.Rules {
		if !r.Textual() {
			continue
		}

		matches := r.Pattern.FindAllStringIndex(unit.Text, maxMatchesPerRule)
		for _, m := range matches {
			span := Span{Start: m[0], End: m[1]}
			window := unit.Text[m[0]:m[1]]
			line, col := position(unit.Text, m[0])

			replacement, hasFix, panicked := evalTextRule(r, window)
			if panicked != nil {
				res.Issues = append(res.Issues, ruleErrorIssue(layer, r, line, panicked))
				rw.log.Warn("rule panicked on textual path, skipping for unit",
					zap.String("rule", r.ID), zap.String("file", unit.FilePath))
				break
			}
			if hasFix && excluded(span, opts) {
				continue
			}

			res.Issues = append(res.Issues, engine.Issue{
				Type:         layer.Name,
				RuleID:       r.ID,
				Severity:     r.Severity,
				Line:         line,
				Column:       col,
				Description:  r.Description,
				FixAvailable: r.FixAvailable,
				Snippet:      snippet(window),
			})

			if hasFix && applicable(r, opts) {
				candidates = append(candidates, edit{
					span:        span,
					replacement: replacement,
					ruleID:      r.ID,
					severity:    r.Severity,
					order:       ri,
					line:        line,
				})
			}
		}
	}

	accepted := resolve(candidates)
	res.Text, res.AppliedSpans, res.Edits = apply(unit.Text, accepted)
	return res
}

func evalTextRule(r rules.Rule, window string) (replacement string, hasFix bool, panicked any) {
	defer func() {
		if rec := recover(); rec != nil {
			panicked = rec
		}
	}()

	if r.RewriteText == nil {
		return "", false, nil
	}
	rep, ok := r.RewriteText(window)
	if !ok || rep == window {
		return "", false, nil
	}
	return rep, true, nil
}

// position converts a byte offset into 1-based line and column.
func position(text string, offset int) (line, col int) {
	prefix := text[:offset]
	line = strings.Count(prefix, "\n") + 1
	if i := strings.LastIndexByte(prefix, '\n'); i >= 0 {
		col = offset - i
	} else {
		col = offset + 1
	}
	return line, col
}
