package engine

import (
	"fmt"
	"sort"
	"time"
)

const (
	// MinLayer and MaxLayer bound the valid layer ID range.
	MinLayer = 1
	MaxLayer = 7

	// DefaultLayerTimeout is the per-layer execution budget.
	DefaultLayerTimeout = 5 * time.Second

	// DefaultMaxGrowthRatio is the runaway-rewrite threshold used when
	// structural safety cannot be proven on pre-malformed input.
	DefaultMaxGrowthRatio = 0.5

	// DefaultApplyConfidence is the minimum confidence at which a learned
	// rule may be applied to the current text without an explicit opt-in.
	DefaultApplyConfidence = 0.8
)

// Options configures one engine invocation.
type Options struct {
	EnabledLayers   []int
	DryRun          bool
	Verbose         bool
	BestEffort      bool
	UserTier        string
	TimeoutPerLayer time.Duration
	MaxGrowthRatio  float64

	// ApplyLearned opts in to applying learned rules below the confidence
	// threshold during layer 7. High-confidence rules apply regardless.
	ApplyLearned bool

	// ApplyConfidence is the confidence at or above which a learned rule
	// applies without the ApplyLearned opt-in. Zero means the default.
	ApplyConfidence float64

	// History carries accepted attempts from prior runs for the adaptive
	// learner. The engine never mutates it.
	History []TransformAttempt
}

// ConfigurationError reports invalid options. It is the only error kind that
// surfaces to the caller before any text is processed.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Normalize validates the options and resolves defaults. Duplicate layer IDs
// are collapsed; IDs outside [1,7] are rejected. An empty layer list enables
// every layer.
func (o Options) Normalize() (Options, error) {
	if len(o.EnabledLayers) == 0 {
		for id := MinLayer; id <= MaxLayer; id++ {
			o.EnabledLayers = append(o.EnabledLayers, id)
		}
	}

	seen := make(map[int]bool, len(o.EnabledLayers))
	layers := make([]int, 0, len(o.EnabledLayers))
	for _, id := range o.EnabledLayers {
		if id < MinLayer || id > MaxLayer {
			return o, &ConfigurationError{
				Field:  "enabledLayers",
				Reason: fmt.Sprintf("layer id %d outside valid range %d..%d", id, MinLayer, MaxLayer),
			}
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		layers = append(layers, id)
	}
	sort.Ints(layers)
	o.EnabledLayers = layers

	if o.TimeoutPerLayer <= 0 {
		o.TimeoutPerLayer = DefaultLayerTimeout
	}
	if o.MaxGrowthRatio <= 0 {
		o.MaxGrowthRatio = DefaultMaxGrowthRatio
	}
	if o.ApplyConfidence <= 0 {
		o.ApplyConfidence = DefaultApplyConfidence
	}

	return o, nil
}
