// Package batch runs independent engine invocations over many files in
// parallel. Files carry no cross-ordering guarantee; ordering only exists
// inside one file's layer sequence. Learned-rule mining happens once at the
// batch boundary, over the pooled attempt history, so fifty files sharing a
// shape yield one proposal rather than fifty.
package batch

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Alcatecablee/fixwise-sub008/internal/engine"
	"github.com/Alcatecablee/fixwise-sub008/internal/learner"
	"github.com/Alcatecablee/fixwise-sub008/internal/logging"
	"github.com/Alcatecablee/fixwise-sub008/internal/pipeline"
	"github.com/Alcatecablee/fixwise-sub008/internal/rules"
)

// Result is the outcome of one batch.
type Result struct {
	Runs      []engine.RunResult
	Proposals []engine.LearnedRule
}

// Runner fans one orchestrator out over a file list.
type Runner struct {
	orch     *pipeline.Orchestrator
	registry *rules.Registry
	miner    *learner.Learner
	workers  int
	log      *zap.Logger
}

func NewRunner(registry *rules.Registry, miner *learner.Learner, workers int, log *zap.Logger) *Runner {
	log = logging.OrNop(log)
	if registry == nil {
		registry = rules.NewRegistry()
	}
	if miner == nil {
		miner = learner.New(0, 0, log)
	}
	if workers <= 0 {
		workers = 4
	}
	return &Runner{
		orch:     pipeline.New(registry, miner, log),
		registry: registry,
		miner:    miner,
		workers:  workers,
		log:      log,
	}
}

// Run processes every file with bounded parallelism. Per-file layer 7 is
// disabled during the fan-out; the pooled history is mined once afterwards.
// Read failures and configuration errors abort the batch; engine-internal
// failures never do.
func (r *Runner) Run(ctx context.Context, files []string, opts engine.Options) (*Result, error) {
	perFile := opts
	perFile.EnabledLayers = withoutLayer(opts.EnabledLayers, 7)

	res := &Result{Runs: make([]engine.RunResult, len(files))}
	var (
		mu      sync.Mutex
		history []engine.TransformAttempt
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(r.workers)
	for i, file := range files {
		i, file := i, file
		eg.Go(func() error {
			text, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			run, err := r.orch.Run(egCtx, string(text), file, perFile)
			if err != nil {
				return err
			}

			mu.Lock()
			res.Runs[i] = run
			history = append(history, run.Attempts...)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if layerEnabled(opts.EnabledLayers, 7) {
		history = append(opts.History, history...)
		res.Proposals = r.miner.Mine(history, r.registry.Covers, r.registry.LearnedHashes())
		r.log.Info("batch mining finished",
			zap.Int("files", len(files)), zap.Int("proposals", len(res.Proposals)))
	}

	return res, nil
}

func withoutLayer(layers []int, id int) []int {
	if len(layers) == 0 {
		// Empty means all layers; spell them out so the exclusion holds.
		for l := engine.MinLayer; l <= engine.MaxLayer; l++ {
			layers = append(layers, l)
		}
	}
	out := make([]int, 0, len(layers))
	for _, l := range layers {
		if l != id {
			out = append(out, l)
		}
	}
	return out
}

func layerEnabled(layers []int, id int) bool {
	if len(layers) == 0 {
		return true
	}
	for _, l := range layers {
		if l == id {
			return true
		}
	}
	return false
}
