package storage

import (
	"context"

	"github.com/Alcatecablee/fixwise-sub008/internal/engine"
)

// RuleStore persists learned rules between batches. The engine never touches
// it: the caller saves proposals after a batch and reloads them into the
// registry at process start.
type RuleStore interface {
	// SaveRules upserts proposals keyed by their stable pattern hash,
	// accumulating support across batches.
	SaveRules(ctx context.Context, rules []engine.LearnedRule) error

	// LoadRules returns every persisted rule, highest support first.
	LoadRules(ctx context.Context) ([]engine.LearnedRule, error)

	// RecordRevert decays a learned rule's confidence after it was
	// involved in a reverted layer.
	RecordRevert(ctx context.Context, patternHash string) error

	Close() error
}
