// Package learner mines the run log for recurring source shapes the static
// catalog does not cover and proposes generalized micro-rules. It never
// mutates the live registry: proposals are handed back to the caller, who
// promotes them between batches.
package learner

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/Alcatecablee/fixwise-sub008/internal/engine"
	"github.com/Alcatecablee/fixwise-sub008/internal/logging"
	"github.com/Alcatecablee/fixwise-sub008/internal/rewrite"
)

const (
	// DefaultSupportThreshold is the minimum number of distinct files a
	// shape must recur in before a rule is proposed.
	DefaultSupportThreshold = 3

	// DefaultHistoryCap bounds how many distinct files contribute evidence
	// per mine, keeping cost flat on large batches.
	DefaultHistoryCap = 500

	// confidenceDivisor maps support counts onto [0,1].
	confidenceDivisor = 10.0
)

// Covered reports whether the static catalog already handles a shape.
type Covered func(shape string) bool

// Learner groups attempt evidence by normalized shape signature.
type Learner struct {
	supportThreshold int
	historyCap       int
	log              *zap.Logger
}

func New(supportThreshold, historyCap int, log *zap.Logger) *Learner {
	if supportThreshold <= 0 {
		supportThreshold = DefaultSupportThreshold
	}
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	return &Learner{
		supportThreshold: supportThreshold,
		historyCap:       historyCap,
		log:              logging.OrNop(log),
	}
}

// evidence accumulates per-shape support across files.
type evidence struct {
	shape    string
	files    map[string]bool
	rewrites map[string]int // normalized replacement -> occurrences
	top      string         // most common raw replacement
	topCount int
}

// Mine inspects the bounded history and synthesizes learned rules. A shape
// recurring across files yields exactly one proposal regardless of how many
// attempts carried it; shapes the registry covers, or whose hash is already
// promoted, are skipped.
func (l *Learner) Mine(history []engine.TransformAttempt, covered Covered, knownHashes map[string]bool) []engine.LearnedRule {
	history = boundHistory(history, l.historyCap)

	byShape := make(map[string]*evidence)
	record := func(shape, file string) *evidence {
		ev, ok := byShape[shape]
		if !ok {
			ev = &evidence{shape: shape, files: make(map[string]bool), rewrites: make(map[string]int)}
			byShape[shape] = ev
		}
		if file != "" {
			ev.files[file] = true
		}
		return ev
	}

	for _, att := range history {
		for _, ed := range att.Edits {
			shape := rewrite.NormalizeShape(ed.Before)
			if shape == "" {
				continue
			}
			ev := record(shape, att.FilePath)
			after := rewrite.NormalizeShape(ed.After)
			ev.rewrites[after]++
			if ev.rewrites[after] > ev.topCount {
				ev.topCount = ev.rewrites[after]
				ev.top = ed.After
			}
		}
		for _, obs := range att.Observations {
			record(obs, att.FilePath)
		}
	}

	var proposals []engine.LearnedRule
	for shape, ev := range byShape {
		support := len(ev.files)
		if support < l.supportThreshold {
			continue
		}
		if covered != nil && covered(shape) {
			continue
		}
		hash := shapeHash(shape)
		if knownHashes[hash] {
			continue
		}

		lr := engine.LearnedRule{
			PatternHash: hash,
			Matcher:     rewrite.ShapeToPattern(shape),
			Support:     support,
			Confidence:  confidenceFor(support),
		}
		// Only propose a rewrite when the observed fixes agree: a shape
		// repaired different ways is a detector, not a repair.
		if ev.topCount > 0 && ev.topCount*2 > totalRewrites(ev) {
			lr.Rewrite = ev.top
		}
		proposals = append(proposals, lr)
		l.log.Debug("learned rule proposed",
			zap.String("hash", hash), zap.Int("support", support),
			zap.Float64("confidence", lr.Confidence))
	}

	sort.Slice(proposals, func(i, j int) bool {
		if proposals[i].Support != proposals[j].Support {
			return proposals[i].Support > proposals[j].Support
		}
		return proposals[i].PatternHash < proposals[j].PatternHash
	})
	return proposals
}

// boundHistory drops attempts that carry no edits or observations, then
// keeps the attempts of the most recent fileCap distinct files. Capping raw
// attempt entries would let evidence-free layer attempts crowd out the
// evidence a large batch actually produced.
func boundHistory(history []engine.TransformAttempt, fileCap int) []engine.TransformAttempt {
	relevant := make([]engine.TransformAttempt, 0, len(history))
	for _, att := range history {
		if len(att.Edits) > 0 || len(att.Observations) > 0 {
			relevant = append(relevant, att)
		}
	}

	seen := make(map[string]bool, fileCap)
	cut := 0
	for i := len(relevant) - 1; i >= 0; i-- {
		if seen[relevant[i].FilePath] {
			continue
		}
		if len(seen) == fileCap {
			cut = i + 1
			break
		}
		seen[relevant[i].FilePath] = true
	}
	return relevant[cut:]
}

func totalRewrites(ev *evidence) int {
	n := 0
	for _, c := range ev.rewrites {
		n += c
	}
	return n
}

func confidenceFor(support int) float64 {
	c := float64(support) / confidenceDivisor
	if c > 1 {
		return 1
	}
	return c
}

func shapeHash(shape string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(shape))
}
