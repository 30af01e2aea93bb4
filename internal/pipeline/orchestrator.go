// Package pipeline runs the seven repair layers over one source unit in
// fixed dependency order, threading each layer's accepted output into the
// next and absorbing every failure kind short of bad configuration.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Alcatecablee/fixwise-sub008/internal/engine"
	"github.com/Alcatecablee/fixwise-sub008/internal/learner"
	"github.com/Alcatecablee/fixwise-sub008/internal/logging"
	"github.com/Alcatecablee/fixwise-sub008/internal/parser"
	"github.com/Alcatecablee/fixwise-sub008/internal/report"
	"github.com/Alcatecablee/fixwise-sub008/internal/rewrite"
	"github.com/Alcatecablee/fixwise-sub008/internal/rules"
	"github.com/Alcatecablee/fixwise-sub008/internal/validate"
)

// Orchestrator is one engine instance. It is safe for concurrent use: the
// registry snapshot is read-only and every Run is invocation-local.
type Orchestrator struct {
	registry *rules.Registry
	rewriter *rewrite.Rewriter
	miner    *learner.Learner
	log      *zap.Logger
}

func New(registry *rules.Registry, miner *learner.Learner, log *zap.Logger) *Orchestrator {
	log = logging.OrNop(log)
	if registry == nil {
		registry = rules.NewRegistry()
	}
	if miner == nil {
		miner = learner.New(0, 0, log)
	}
	return &Orchestrator{
		registry: registry,
		rewriter: rewrite.New(log),
		miner:    miner,
		log:      log,
	}
}

// layerOutcome carries one layer's rewriter result and validator decision
// across the timeout boundary.
type layerOutcome struct {
	res      rewrite.Result
	out      validate.Outcome
	panicked any
}

// Run executes the enabled layers over sourceText. Only configuration
// errors surface as returned errors; everything else is absorbed into the
// RunResult so a single file never aborts a batch.
func (o *Orchestrator) Run(ctx context.Context, sourceText, filePath string, opts engine.Options) (engine.RunResult, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return engine.RunResult{}, err
	}

	runID := uuid.NewString()
	validator := validate.New(opts.MaxGrowthRatio, o.log)

	arena := parser.Parse(sourceText, filePath)
	unit := engine.SourceUnit{Text: sourceText, FilePath: filePath, Kind: arena.Kind()}
	o.log.Debug("run started",
		zap.String("run_id", runID), zap.String("file", filePath),
		zap.String("kind", unit.Kind.String()), zap.Ints("layers", opts.EnabledLayers))

	var (
		attempts   []engine.TransformAttempt
		guardSpans []rewrite.Span // layer-4 applied spans, consumed by layer 5
		cancelled  bool
	)

	for _, layerID := range opts.EnabledLayers {
		if err := ctx.Err(); err != nil {
			cancelled = true
			break
		}

		layer, ok := o.registry.Layer(layerID)
		if !ok {
			continue
		}

		rwOpts := rewrite.Options{
			ApplyLearned:     opts.ApplyLearned,
			BestEffort:       opts.BestEffort,
			LearnedThreshold: opts.ApplyConfidence,
		}
		if layerID == 5 {
			// Hydration/convention sub-protocol: never re-wrap a span
			// layer 4 guarded earlier in this run.
			rwOpts.ExcludedSpans = guardSpans
		}

		att, adopted, spans := o.runLayer(unit, arena, layer, rwOpts, validator, opts.TimeoutPerLayer)
		attempts = append(attempts, att)

		if att.Applied {
			if layerID == 4 {
				guardSpans = spans
			} else {
				// Any later accepted rewrite invalidates recorded guard
				// offsets; drop them rather than exclude wrong ranges.
				guardSpans = nil
			}
			unit = engine.SourceUnit{Text: adopted, FilePath: filePath, Kind: unit.Kind}
			arena = parser.Parse(unit.Text, filePath)
		}
	}

	var proposals []engine.LearnedRule
	if enabled(opts.EnabledLayers, 7) && !cancelled {
		history := make([]engine.TransformAttempt, 0, len(opts.History)+len(attempts))
		history = append(history, opts.History...)
		history = append(history, attempts...)
		proposals = o.miner.Mine(history, o.registry.Covers, o.registry.LearnedHashes())
	}

	res := report.Aggregate(runID, filePath, unit.Text, opts.EnabledLayers, attempts, proposals, cancelled)
	o.log.Info("run finished",
		zap.String("run_id", runID), zap.String("file", filePath),
		zap.String("state", string(res.State)), zap.Int("issues", len(res.Issues)),
		zap.Ints("layers_applied", res.LayersApplied))
	return res, nil
}

// runLayer executes one layer under its time budget. The rewriter is pure,
// so on timeout the abandoned goroutine's result is simply discarded and the
// layer is treated as failed, not the run.
func (o *Orchestrator) runLayer(unit engine.SourceUnit, arena *parser.Arena, layer rules.Layer, rwOpts rewrite.Options, validator *validate.Validator, budget time.Duration) (engine.TransformAttempt, string, []rewrite.Span) {
	start := time.Now()
	att := engine.TransformAttempt{
		LayerID:   layer.ID,
		LayerName: layer.Name,
		FilePath:  unit.FilePath,
	}

	done := make(chan layerOutcome, 1)
	go func() {
		var lo layerOutcome
		defer func() {
			if rec := recover(); rec != nil {
				lo.panicked = rec
			}
			done <- lo
		}()
		lo.res = o.rewriter.Run(unit, arena, layer, rwOpts)
		lo.out = validator.Check(unit, lo.res, arena.Valid())
	}()

	var lo layerOutcome
	select {
	case lo = <-done:
	case <-time.After(budget):
		att.Failed = true
		att.RevertedReason = engine.RevertTimeoutExceeded
		att.Duration = time.Since(start)
		o.log.Warn("layer timed out",
			zap.Int("layer", layer.ID), zap.String("file", unit.FilePath),
			zap.Duration("budget", budget))
		return att, "", nil
	}
	att.Duration = time.Since(start)

	if lo.panicked != nil {
		att.Failed = true
		att.RevertedReason = engine.RevertLayerPanic
		o.log.Error("layer crashed",
			zap.Int("layer", layer.ID), zap.String("file", unit.FilePath),
			zap.Any("panic", lo.panicked))
		return att, "", nil
	}

	att.Path = lo.res.Path
	att.Issues = lo.res.Issues
	att.Observations = lo.res.Observations

	if lo.res.Path == engine.PathSkipped {
		att.RevertedReason = engine.RevertParseUnavailable
		return att, "", nil
	}

	switch lo.out.Verdict {
	case validate.VerdictReverted:
		att.RevertedReason = lo.out.Reason
	case validate.VerdictAccepted:
		att.Applied = true
		att.Edits = lo.res.Edits
		return att, lo.out.Text, lo.res.AppliedSpans
	}
	return att, "", nil
}

func enabled(layers []int, id int) bool {
	for _, l := range layers {
		if l == id {
			return true
		}
	}
	return false
}
