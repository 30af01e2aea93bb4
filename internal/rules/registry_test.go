package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alcatecablee/fixwise-sub008/internal/engine"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, r.LayerIDs())

	t.Run("declaration order is stable", func(t *testing.T) {
		ids := func() []string {
			var out []string
			for _, rule := range r.RulesFor(2) {
				out = append(out, rule.ID)
			}
			return out
		}
		first := ids()
		second := ids()
		assert.Equal(t, first, second)
		assert.Equal(t, "deprecated/legacy-lifecycle", first[0])
	})

	t.Run("hydration requires structural parse", func(t *testing.T) {
		l, ok := r.Layer(4)
		require.True(t, ok)
		assert.True(t, l.RequiresStructuralParse)

		l, ok = r.Layer(1)
		require.True(t, ok)
		assert.False(t, l.RequiresStructuralParse)
	})

	t.Run("adaptive layer starts empty", func(t *testing.T) {
		assert.Empty(t, r.RulesFor(7))
	})
}

func TestRegistry_WithLearned(t *testing.T) {
	base := NewRegistry()

	next, err := base.WithLearned([]engine.LearnedRule{
		{
			PatternHash: "abc123",
			Matcher:     `legacyTheme\.apply\(`,
			Rewrite:     "theme.apply(",
			Support:     12,
			Confidence:  1.0,
		},
	})
	require.NoError(t, err)

	// Snapshot semantics: the original registry is untouched.
	assert.Empty(t, base.RulesFor(7))
	require.Len(t, next.RulesFor(7), 1)

	promoted := next.RulesFor(7)[0]
	assert.Equal(t, "learned/abc123", promoted.ID)
	assert.Equal(t, engine.SeverityLow, promoted.Severity)
	assert.True(t, promoted.Learned)
	assert.True(t, promoted.FixAvailable)
	assert.True(t, next.LearnedHashes()["abc123"])

	t.Run("invalid matcher is rejected", func(t *testing.T) {
		_, err := base.WithLearned([]engine.LearnedRule{{PatternHash: "x", Matcher: "("}})
		assert.Error(t, err)
	})

	t.Run("report-only rule has no fix", func(t *testing.T) {
		reg, err := base.WithLearned([]engine.LearnedRule{{PatternHash: "y", Matcher: "foo", Support: 3}})
		require.NoError(t, err)
		assert.False(t, reg.RulesFor(7)[0].FixAvailable)
	})
}

func TestRegistry_Covers(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.Covers(`document.write("x")`))
	assert.True(t, r.Covers(`componentWillMount() {`))
	assert.False(t, r.Covers(`legacyTheme.apply(config)`))
}
