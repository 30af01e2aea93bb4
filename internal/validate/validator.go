// Package validate decides whether a layer's candidate output is safe to
// adopt. The guarantee it maintains: the orchestrator never receives output
// that is syntactically worse than its input when the input was valid.
package validate

import (
	"github.com/sergi/go-diff/diffmatchpatch"
	"go.uber.org/zap"

	"github.com/Alcatecablee/fixwise-sub008/internal/engine"
	"github.com/Alcatecablee/fixwise-sub008/internal/logging"
	"github.com/Alcatecablee/fixwise-sub008/internal/parser"
	"github.com/Alcatecablee/fixwise-sub008/internal/rewrite"
)

// Verdict classifies one layer's candidate output.
type Verdict int

const (
	// VerdictNoOp: output byte-identical to input, trivially safe.
	VerdictNoOp Verdict = iota
	// VerdictAccepted: output adopted as the next layer's input.
	VerdictAccepted
	// VerdictReverted: output discarded, input passes through unchanged.
	VerdictReverted
)

// Outcome is the validator's decision plus the diff evidence behind it.
type Outcome struct {
	Verdict      Verdict
	Text         string // the text the pipeline continues with
	Reason       string // set when reverted
	LinesAdded   int
	LinesRemoved int
}

// Applied reports whether the layer changed the adopted text.
func (o Outcome) Applied() bool { return o.Verdict == VerdictAccepted }

// Validator checks candidate outputs with the same structural parser used
// for detection.
type Validator struct {
	maxGrowthRatio float64
	dmp            *diffmatchpatch.DiffMatchPatch
	log            *zap.Logger
}

func New(maxGrowthRatio float64, log *zap.Logger) *Validator {
	if maxGrowthRatio <= 0 {
		maxGrowthRatio = engine.DefaultMaxGrowthRatio
	}
	return &Validator{
		maxGrowthRatio: maxGrowthRatio,
		dmp:            diffmatchpatch.New(),
		log:            logging.OrNop(log),
	}
}

// Check validates a candidate rewrite of input. inputParsed records whether
// the input had a valid structural parse before the layer ran.
func (va *Validator) Check(input engine.SourceUnit, candidate rewrite.Result, inputParsed bool) Outcome {
	if candidate.Text == input.Text {
		return Outcome{Verdict: VerdictNoOp, Text: input.Text}
	}

	outputParses := parser.Reparse(candidate.Text, input.FilePath)
	if inputParsed && !outputParses {
		va.log.Warn("layer output reverted: introduced syntax error",
			zap.String("file", input.FilePath))
		return Outcome{
			Verdict: VerdictReverted,
			Text:    input.Text,
			Reason:  engine.RevertSyntaxError,
		}
	}

	if !inputParsed {
		// Pre-malformed source: structural safety cannot be proven, so
		// the only revert trigger is a runaway byte-length delta.
		if runaway(len(input.Text), len(candidate.Text), va.maxGrowthRatio) {
			va.log.Warn("layer output reverted: runaway rewrite on malformed input",
				zap.String("file", input.FilePath),
				zap.Int("input_bytes", len(input.Text)),
				zap.Int("output_bytes", len(candidate.Text)))
			return Outcome{
				Verdict: VerdictReverted,
				Text:    input.Text,
				Reason:  engine.RevertRunawayRewrite,
			}
		}
	}

	added, removed := va.lineDelta(input.Text, candidate.Text)
	if added == 0 && removed == 0 {
		// Matchers fired but every rewrite was a whitespace-level no-op.
		return Outcome{Verdict: VerdictNoOp, Text: input.Text}
	}

	return Outcome{
		Verdict:      VerdictAccepted,
		Text:         candidate.Text,
		LinesAdded:   added,
		LinesRemoved: removed,
	}
}

// lineDelta computes a line-level diff and returns added/removed counts.
func (va *Validator) lineDelta(before, after string) (added, removed int) {
	a, b, lines := va.dmp.DiffLinesToChars(before, after)
	diffs := va.dmp.DiffCharsToLines(va.dmp.DiffMain(a, b, false), lines)
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			removed += countLines(d.Text)
		}
	}
	return added, removed
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := 0
	for _, c := range s {
		if c == '\n' {
			n++
		}
	}
	if s[len(s)-1] != '\n' {
		n++
	}
	return n
}

func runaway(inLen, outLen int, ratio float64) bool {
	if inLen == 0 {
		return outLen > 0
	}
	delta := outLen - inLen
	if delta < 0 {
		delta = -delta
	}
	return float64(delta)/float64(inLen) > ratio
}
