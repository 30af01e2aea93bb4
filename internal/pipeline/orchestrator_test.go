package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alcatecablee/fixwise-sub008/internal/engine"
	"github.com/Alcatecablee/fixwise-sub008/internal/parser"
	"github.com/Alcatecablee/fixwise-sub008/internal/rules"
)

const brokenSrc = "function f( {\nvar count = 1;\ncomponentWillMount(\n"

func attemptFor(t *testing.T, res engine.RunResult, layerID int) engine.TransformAttempt {
	t.Helper()
	for _, att := range res.Attempts {
		if att.LayerID == layerID {
			return att
		}
	}
	t.Fatalf("no attempt recorded for layer %d", layerID)
	return engine.TransformAttempt{}
}

func TestRun_GuardsUnguardedBrowserGlobal(t *testing.T) {
	orch := New(nil, nil, nil)
	src := "const w = window.innerWidth;\n"

	res, err := orch.Run(context.Background(), src, "size.js", engine.Options{EnabledLayers: []int{4}})
	require.NoError(t, err)

	assert.Equal(t, `const w = (typeof window !== "undefined" ? window.innerWidth : undefined);`+"\n", res.FinalText)
	assert.Equal(t, engine.StateCompleted, res.State)
	assert.True(t, res.Success)
	assert.Equal(t, []int{4}, res.LayersApplied)

	require.Len(t, res.Issues, 1)
	assert.Equal(t, "hydration/unguarded-browser-global", res.Issues[0].RuleID)
	assert.True(t, res.Issues[0].FixAvailable)

	assert.Equal(t, 100, res.DebtScore, "fixed issue carries no debt")
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
}

func TestRun_IdempotentOnOwnOutput(t *testing.T) {
	orch := New(nil, nil, nil)
	src := "const w = window.innerWidth;\n"
	opts := engine.Options{EnabledLayers: []int{4}}

	first, err := orch.Run(context.Background(), src, "size.js", opts)
	require.NoError(t, err)
	require.NotEqual(t, src, first.FinalText)

	second, err := orch.Run(context.Background(), first.FinalText, "size.js", opts)
	require.NoError(t, err)

	assert.Equal(t, first.FinalText, second.FinalText)
	assert.Empty(t, second.LayersApplied)
	assert.Empty(t, second.Issues)
	assert.Equal(t, engine.StateCompleted, second.State)
}

func TestRun_MalformedSource(t *testing.T) {
	orch := New(nil, nil, nil)

	t.Run("structural layers revert and leave text untouched", func(t *testing.T) {
		res, err := orch.Run(context.Background(), brokenSrc, "broken.js",
			engine.Options{EnabledLayers: []int{4, 5}})
		require.NoError(t, err)

		assert.Equal(t, brokenSrc, res.FinalText)
		assert.Equal(t, engine.StatePartial, res.State)
		assert.True(t, res.Success)
		for _, id := range []int{4, 5} {
			att := attemptFor(t, res, id)
			assert.Equal(t, engine.PathSkipped, att.Path)
			assert.Equal(t, engine.RevertParseUnavailable, att.RevertedReason)
			assert.False(t, att.Applied)
		}
	})

	t.Run("textual layers still repair what they can", func(t *testing.T) {
		res, err := orch.Run(context.Background(), brokenSrc, "broken.js", engine.Options{})
		require.NoError(t, err)

		assert.Equal(t, engine.StatePartial, res.State)
		assert.True(t, res.Success)
		assert.Contains(t, res.FinalText, "let count = 1;")
		assert.Contains(t, res.FinalText, "UNSAFE_componentWillMount(")
		assert.Equal(t, engine.RevertParseUnavailable, attemptFor(t, res, 4).RevertedReason)
		assert.Equal(t, engine.RevertParseUnavailable, attemptFor(t, res, 5).RevertedReason)
	})
}

func TestRun_RuleErrorIsolatesCrashingRule(t *testing.T) {
	static := rules.NewRegistry()
	hydration, ok := static.Layer(4)
	require.True(t, ok)

	reg := rules.NewCustom(
		rules.Layer{
			ID:   1,
			Name: "config-drift",
			Rules: []rules.Rule{{
				ID:        "config/boom",
				Severity:  engine.SeverityMedium,
				NodeKinds: []string{"lexical_declaration"},
				MatchNode: func(parser.NodeView) bool { panic("matcher bug") },
			}},
		},
		hydration,
	)
	orch := New(reg, nil, nil)

	res, err := orch.Run(context.Background(), "const w = window.innerWidth;\n", "size.js",
		engine.Options{EnabledLayers: []int{1, 4}})
	require.NoError(t, err)

	assert.True(t, res.Success)

	ruleErrors := 0
	for _, is := range res.Issues {
		if is.Type == engine.IssueRuleError {
			ruleErrors++
			assert.Equal(t, "config/boom", is.RuleID)
		}
	}
	assert.Equal(t, 1, ruleErrors)

	assert.True(t, attemptFor(t, res, 4).Applied, "healthy layers run normally")
	assert.Contains(t, res.FinalText, "typeof window")
}

func TestRun_LayerTimeoutFailsLayerNotRun(t *testing.T) {
	slow := rules.NewCustom(rules.Layer{
		ID:   1,
		Name: "config-drift",
		Rules: []rules.Rule{{
			ID:        "config/slow",
			Severity:  engine.SeverityLow,
			NodeKinds: []string{"program"},
			MatchNode: func(parser.NodeView) bool {
				time.Sleep(200 * time.Millisecond)
				return false
			},
		}},
	})
	orch := New(slow, nil, nil)
	src := "const a = 1;\n"

	res, err := orch.Run(context.Background(), src, "a.js", engine.Options{
		EnabledLayers:   []int{1},
		TimeoutPerLayer: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	att := attemptFor(t, res, 1)
	assert.True(t, att.Failed)
	assert.Equal(t, engine.RevertTimeoutExceeded, att.RevertedReason)
	assert.Equal(t, src, res.FinalText)
	assert.Equal(t, engine.StateFailed, res.State, "every requested layer failed")
	assert.False(t, res.Success)
}

func TestRun_CancelledContext(t *testing.T) {
	orch := New(nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := "const w = window.innerWidth;\n"
	res, err := orch.Run(ctx, src, "size.js", engine.Options{})
	require.NoError(t, err)

	assert.Equal(t, engine.StatePartial, res.State)
	assert.True(t, res.Success)
	assert.Empty(t, res.Attempts)
	assert.Equal(t, src, res.FinalText)
}

func TestRun_RejectsInvalidLayerID(t *testing.T) {
	orch := New(nil, nil, nil)

	_, err := orch.Run(context.Background(), "const a = 1;\n", "a.js",
		engine.Options{EnabledLayers: []int{0}})
	var cfgErr *engine.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "enabledLayers", cfgErr.Field)
}

func TestRun_FrameworkLayerSkipsGuardedSpans(t *testing.T) {
	orch := New(nil, nil, nil)
	src := "export default function Page() {\n" +
		"  const w = window.innerWidth;\n" +
		"  return null;\n" +
		"}\n"

	res, err := orch.Run(context.Background(), src, "app/page.tsx",
		engine.Options{EnabledLayers: []int{4, 5}})
	require.NoError(t, err)

	assert.Equal(t, []int{4, 5}, res.LayersApplied)
	assert.True(t, strings.HasPrefix(res.FinalText, "\"use client\";\n\n"))
	assert.Equal(t, 1, strings.Count(res.FinalText, "typeof window"),
		"guard inserted by layer 4 is never wrapped again")

	again, err := orch.Run(context.Background(), res.FinalText, "app/page.tsx",
		engine.Options{EnabledLayers: []int{4, 5}})
	require.NoError(t, err)
	assert.Equal(t, res.FinalText, again.FinalText)
	assert.Empty(t, again.LayersApplied)
}

func TestRun_ConfiguredApplyConfidenceThreshold(t *testing.T) {
	reg, err := rules.NewRegistry().WithLearned([]engine.LearnedRule{{
		PatternHash: "feedfacefeedface",
		Matcher:     `legacyTheme\.apply\(`,
		Rewrite:     "theme.apply(",
		Support:     5,
		Confidence:  0.5,
	}})
	require.NoError(t, err)
	orch := New(reg, nil, nil)
	src := "const t = legacyTheme.apply(base);\n"

	res, err := orch.Run(context.Background(), src, "theme.js",
		engine.Options{EnabledLayers: []int{7}})
	require.NoError(t, err)
	assert.Equal(t, src, res.FinalText, "below the default threshold the rule only reports")

	res, err = orch.Run(context.Background(), src, "theme.js",
		engine.Options{EnabledLayers: []int{7}, ApplyConfidence: 0.4})
	require.NoError(t, err)
	assert.Equal(t, "const t = theme.apply(base);\n", res.FinalText)
	assert.Equal(t, []int{7}, res.LayersApplied)
}

func TestRun_AppliesHighConfidenceLearnedRule(t *testing.T) {
	reg, err := rules.NewRegistry().WithLearned([]engine.LearnedRule{{
		PatternHash: "deadbeefdeadbeef",
		Matcher:     `legacyTheme\.apply\(`,
		Rewrite:     "theme.apply(",
		Support:     12,
		Confidence:  1.0,
	}})
	require.NoError(t, err)
	orch := New(reg, nil, nil)

	res, err := orch.Run(context.Background(), "const t = legacyTheme.apply(base);\n", "theme.js",
		engine.Options{EnabledLayers: []int{7}})
	require.NoError(t, err)

	assert.Equal(t, "const t = theme.apply(base);\n", res.FinalText)
	assert.Equal(t, []int{7}, res.LayersApplied)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, "learned/deadbeefdeadbeef", res.Issues[0].RuleID)
}
