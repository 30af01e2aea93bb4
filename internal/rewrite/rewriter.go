// Package rewrite executes one layer's rules over one source unit. The
// structural path traverses the parsed arena; the textual path falls back to
// scoped pattern substitution when no structural parse is available. Both
// paths normalize to the same Result shape, and a failure inside a single
// rule never escapes: it becomes a rule-error issue and the rule is skipped
// for the unit.
package rewrite

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/Alcatecablee/fixwise-sub008/internal/engine"
	"github.com/Alcatecablee/fixwise-sub008/internal/logging"
	"github.com/Alcatecablee/fixwise-sub008/internal/parser"
	"github.com/Alcatecablee/fixwise-sub008/internal/rules"
)

// Span is a half-open byte range in a text.
type Span struct {
	Start int
	End   int
}

// Contains reports whether other lies fully inside s.
func (s Span) Contains(other Span) bool {
	return other.Start >= s.Start && other.End <= s.End
}

func (s Span) overlaps(other Span) bool {
	return s.Start < other.End && other.Start < s.End
}

// Options tunes one rewriter invocation.
type Options struct {
	// ApplyLearned opts in to applying learned rules below the confidence
	// threshold.
	ApplyLearned bool

	// BestEffort routes layers that do not require a structural parse to
	// the cheaper textual path even when the input parsed.
	BestEffort bool

	// LearnedThreshold is the confidence above which learned rules apply
	// without opt-in.
	LearnedThreshold float64

	// ExcludedSpans are input-text ranges a prior layer already repaired;
	// candidate edits contained in one are dropped so the same expression
	// is never re-wrapped.
	ExcludedSpans []Span
}

// Result is the normalized output of either path.
type Result struct {
	Text         string
	Path         engine.PathKind
	Issues       []engine.Issue
	Edits        []engine.EditRecord
	AppliedSpans []Span // spans of applied replacements, in output coordinates
	Observations []string
}

// edit is one candidate span replacement prior to conflict resolution.
type edit struct {
	span        Span
	replacement string
	ruleID      string
	severity    engine.Severity
	order       int // declaration order of the owning rule
	line        int
}

// Rewriter applies one layer to one unit.
type Rewriter struct {
	log *zap.Logger
}

func New(log *zap.Logger) *Rewriter {
	return &Rewriter{log: logging.OrNop(log)}
}

// Run picks the path for the unit and executes the layer. An invalid arena
// skips layers that require structural parsing; their rules are skipped, not
// failed.
func (rw *Rewriter) Run(unit engine.SourceUnit, arena *parser.Arena, layer rules.Layer, opts Options) Result {
	if arena.Valid() {
		// Layers whose rules are purely pattern-anchored (the promoted
		// learned rules) run textually even on valid input; the safety
		// validator re-parses their output either way.
		if !layer.HasStructuralRules() && layer.HasTextualRules() {
			return rw.textual(unit, layer, opts)
		}
		// Best-effort mode trades structural precision for speed on
		// layers that can work from patterns alone.
		if opts.BestEffort && !layer.RequiresStructuralParse && layer.HasTextualRules() {
			return rw.textual(unit, layer, opts)
		}
		return rw.structural(unit, arena, layer, opts)
	}
	if layer.RequiresStructuralParse {
		rw.log.Debug("layer skipped: structural parse unavailable",
			zap.Int("layer", layer.ID), zap.String("file", unit.FilePath))
		return Result{Text: unit.Text, Path: engine.PathSkipped}
	}
	return rw.textual(unit, layer, opts)
}

// applicable reports whether a learned rule's fix may be applied under the
// current options. Static rules always qualify.
func applicable(r rules.Rule, opts Options) bool {
	if !r.Learned {
		return true
	}
	threshold := opts.LearnedThreshold
	if threshold <= 0 {
		threshold = engine.DefaultApplyConfidence
	}
	return r.Confidence >= threshold || opts.ApplyLearned
}

func excluded(span Span, opts Options) bool {
	for _, ex := range opts.ExcludedSpans {
		if ex.Contains(span) {
			return true
		}
	}
	return false
}

// resolve picks the winning edits. Edits nested inside an accepted edit are
// dropped (the outer rewrite subsumes them); for overlapping spans the
// higher severity wins and ties go to the first-declared rule.
func resolve(candidates []edit) []edit {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].span.Start != candidates[j].span.Start {
			return candidates[i].span.Start < candidates[j].span.Start
		}
		if candidates[i].severity != candidates[j].severity {
			return candidates[i].severity > candidates[j].severity
		}
		return candidates[i].order < candidates[j].order
	})

	var accepted []edit
	for _, c := range candidates {
		conflict := false
		for i := range accepted {
			if !accepted[i].span.overlaps(c.span) {
				continue
			}
			conflict = true
			// A strictly higher-severity later candidate evicts the
			// earlier winner; equal severity keeps the first-declared.
			if c.severity > accepted[i].severity {
				accepted[i] = c
			}
			break
		}
		if !conflict {
			accepted = append(accepted, c)
		}
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].span.Start < accepted[j].span.Start })
	return accepted
}

// apply performs the accepted replacements in reverse document order so
// earlier offsets stay valid, then reports the applied spans in output
// coordinates.
func apply(text string, accepted []edit) (string, []Span, []engine.EditRecord) {
	if len(accepted) == 0 {
		return text, nil, nil
	}

	out := text
	for i := len(accepted) - 1; i >= 0; i-- {
		e := accepted[i]
		out = out[:e.span.Start] + e.replacement + out[e.span.End:]
	}

	spans := make([]Span, 0, len(accepted))
	records := make([]engine.EditRecord, 0, len(accepted))
	delta := 0
	for _, e := range accepted {
		start := e.span.Start + delta
		spans = append(spans, Span{Start: start, End: start + len(e.replacement)})
		records = append(records, engine.EditRecord{
			Line:   e.line,
			Before: text[e.span.Start:e.span.End],
			After:  e.replacement,
		})
		delta += len(e.replacement) - (e.span.End - e.span.Start)
	}
	return out, spans, records
}

func ruleErrorIssue(layer rules.Layer, r rules.Rule, line int, cause any) engine.Issue {
	return engine.Issue{
		Type:        engine.IssueRuleError,
		RuleID:      r.ID,
		Severity:    engine.SeverityLow,
		Line:        line,
		Description: fmt.Sprintf("rule panicked and was skipped for this unit: %v", cause),
	}
}
