package rules

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/Alcatecablee/fixwise-sub008/internal/engine"
)

// Registry is the per-process rule catalog. A registry value is read-only
// once built; learned-rule promotion produces a fresh value via WithLearned
// (snapshot-plus-swap), so a registry can be shared across concurrent runs
// without locking.
type Registry struct {
	layers map[int]Layer
}

// NewRegistry builds the static catalog for layers 1..7. Layer 7 starts
// empty; it only ever holds promoted learned rules.
func NewRegistry() *Registry {
	r := &Registry{layers: make(map[int]Layer, engine.MaxLayer)}
	for _, l := range []Layer{
		layerConfigDrift(),
		layerDeprecatedPatterns(),
		layerAccessibility(),
		layerHydrationSafety(),
		layerFrameworkConventions(),
		layerTestScaffolding(),
		{ID: 7, Name: "adaptive", RequiresStructuralParse: false},
	} {
		r.layers[l.ID] = l
	}
	return r
}

// NewCustom builds a registry from explicit layer definitions. Pipeline
// tests use it to inject synthetic rules.
func NewCustom(layers ...Layer) *Registry {
	r := &Registry{layers: make(map[int]Layer, len(layers))}
	for _, l := range layers {
		r.layers[l.ID] = l
	}
	return r
}

// Layer returns the definition for a layer ID.
func (r *Registry) Layer(id int) (Layer, bool) {
	l, ok := r.layers[id]
	return l, ok
}

// RulesFor returns the layer's rules in declaration order. The slice is
// shared; callers must not mutate it.
func (r *Registry) RulesFor(id int) []Rule {
	return r.layers[id].Rules
}

// LayerIDs returns the catalog's layer IDs in pipeline order.
func (r *Registry) LayerIDs() []int {
	ids := make([]int, 0, len(r.layers))
	for id := range r.layers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// WithLearned returns a new registry with the given learned rules appended
// to layer 7. The receiver is left untouched; callers swap the new snapshot
// in at a batch boundary, never mid-run.
func (r *Registry) WithLearned(learned []engine.LearnedRule) (*Registry, error) {
	next := &Registry{layers: make(map[int]Layer, len(r.layers))}
	for id, l := range r.layers {
		cp := l
		cp.Rules = append([]Rule(nil), l.Rules...)
		next.layers[id] = cp
	}

	adaptive := next.layers[7]
	for _, lr := range learned {
		rule, err := FromLearned(lr)
		if err != nil {
			return nil, err
		}
		adaptive.Rules = append(adaptive.Rules, rule)
	}
	next.layers[7] = adaptive
	return next, nil
}

// FromLearned converts a learner proposal into a low-severity textual rule.
func FromLearned(lr engine.LearnedRule) (Rule, error) {
	pat, err := regexp.Compile(lr.Matcher)
	if err != nil {
		return Rule{}, fmt.Errorf("learned rule %s: invalid matcher: %w", lr.PatternHash, err)
	}

	rule := Rule{
		ID:           "learned/" + lr.PatternHash,
		Description:  fmt.Sprintf("recurring pattern observed in %d files", lr.Support),
		Severity:     engine.SeverityLow,
		FixAvailable: lr.Rewrite != "",
		Pattern:      pat,
		Learned:      true,
		Confidence:   lr.Confidence,
	}
	if lr.Rewrite != "" {
		rewrite := lr.Rewrite
		rule.RewriteText = func(string) (string, bool) { return rewrite, true }
	}
	return rule, nil
}

// Covers reports whether any static rule already matches the given
// normalized line. The learner uses this to avoid proposing rules the
// catalog handles.
func (r *Registry) Covers(line string) bool {
	for id, l := range r.layers {
		if id == 7 {
			continue
		}
		for _, rule := range l.Rules {
			if rule.Pattern != nil && rule.Pattern.MatchString(line) {
				return true
			}
		}
	}
	return false
}

// LearnedHashes returns the pattern hashes already promoted into layer 7.
func (r *Registry) LearnedHashes() map[string]bool {
	out := make(map[string]bool)
	for _, rule := range r.layers[7].Rules {
		if rule.Learned {
			out[rule.ID[len("learned/"):]] = true
		}
	}
	return out
}
