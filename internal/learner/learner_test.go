package learner

import (
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alcatecablee/fixwise-sub008/internal/engine"
)

const recurringShape = `legacyTheme.apply("~", 0);`

func attemptsWithObservation(files int, shape string) []engine.TransformAttempt {
	out := make([]engine.TransformAttempt, 0, files)
	for i := 0; i < files; i++ {
		out = append(out, engine.TransformAttempt{
			LayerID:      4,
			FilePath:     fmt.Sprintf("src/widget%d.ts", i),
			Observations: []string{shape},
		})
	}
	return out
}

func TestMine_OneProposalPerRecurringShape(t *testing.T) {
	l := New(0, 0, nil)
	history := attemptsWithObservation(50, recurringShape)

	proposals := l.Mine(history, nil, nil)
	require.Len(t, proposals, 1, "fifty occurrences collapse into one rule")

	p := proposals[0]
	assert.Equal(t, 50, p.Support)
	assert.InDelta(t, 1.0, p.Confidence, 1e-9, "confidence caps at 1.0")
	assert.Empty(t, p.Rewrite, "observation-only evidence proposes a detector")
	assert.Len(t, p.PatternHash, 16)

	matcher := regexp.MustCompile(p.Matcher)
	assert.True(t, matcher.MatchString(`legacyTheme.apply('dark', 42);`))
	assert.True(t, matcher.MatchString(`legacyTheme.apply("light",  3);`))
	assert.False(t, matcher.MatchString(`theme.apply("light");`))
}

func TestMine_SupportBelowThreshold(t *testing.T) {
	l := New(3, 0, nil)
	proposals := l.Mine(attemptsWithObservation(2, recurringShape), nil, nil)
	assert.Empty(t, proposals)
}

func TestMine_SupportCountsDistinctFiles(t *testing.T) {
	l := New(3, 0, nil)

	var history []engine.TransformAttempt
	for i := 0; i < 5; i++ {
		history = append(history, engine.TransformAttempt{
			FilePath:     "src/same.ts",
			Observations: []string{recurringShape},
		})
	}

	assert.Empty(t, l.Mine(history, nil, nil), "repeats within one file are not support")
}

func TestMine_SkipsShapesTheCatalogCovers(t *testing.T) {
	l := New(0, 0, nil)
	history := attemptsWithObservation(10, recurringShape)

	covered := func(shape string) bool { return shape == recurringShape }
	assert.Empty(t, l.Mine(history, covered, nil))
}

func TestMine_SkipsAlreadyPromotedHashes(t *testing.T) {
	l := New(0, 0, nil)
	history := attemptsWithObservation(10, recurringShape)

	known := map[string]bool{shapeHash(recurringShape): true}
	assert.Empty(t, l.Mine(history, nil, known))
}

func TestMine_RewriteRequiresConsensus(t *testing.T) {
	edit := func(file, after string) engine.TransformAttempt {
		return engine.TransformAttempt{
			FilePath: file,
			Applied:  true,
			Edits: []engine.EditRecord{{
				Line:   3,
				Before: `legacyColor.get("red", 1);`,
				After:  after,
			}},
		}
	}

	t.Run("agreeing fixes carry the rewrite", func(t *testing.T) {
		l := New(3, 0, nil)
		history := []engine.TransformAttempt{
			edit("a.ts", `palette.get("red")`),
			edit("b.ts", `palette.get("red")`),
			edit("c.ts", `palette.get("red")`),
			edit("d.ts", `palette.get("red")`),
		}

		proposals := l.Mine(history, nil, nil)
		require.Len(t, proposals, 1)
		assert.Equal(t, `palette.get("red")`, proposals[0].Rewrite)
		assert.Equal(t, 4, proposals[0].Support)
		assert.InDelta(t, 0.4, proposals[0].Confidence, 1e-9)
	})

	t.Run("split fixes degrade to a detector", func(t *testing.T) {
		l := New(3, 0, nil)
		history := []engine.TransformAttempt{
			edit("a.ts", `palette.get("red")`),
			edit("b.ts", `palette.get("red")`),
			edit("c.ts", `colors.red`),
			edit("d.ts", `colors.red`),
		}

		proposals := l.Mine(history, nil, nil)
		require.Len(t, proposals, 1)
		assert.Empty(t, proposals[0].Rewrite)
	})
}

func TestMine_HistoryCapKeepsRecentAttempts(t *testing.T) {
	l := New(1, 10, nil)

	var history []engine.TransformAttempt
	for i := 0; i < 10; i++ {
		history = append(history, engine.TransformAttempt{
			FilePath:     fmt.Sprintf("old%d.ts", i),
			Observations: []string{`staleHelper.invoke("~");`},
		})
	}
	for i := 0; i < 10; i++ {
		history = append(history, engine.TransformAttempt{
			FilePath:     fmt.Sprintf("new%d.ts", i),
			Observations: []string{recurringShape},
		})
	}

	proposals := l.Mine(history, nil, nil)
	require.Len(t, proposals, 1)
	assert.Equal(t, shapeHash(recurringShape), proposals[0].PatternHash)
}

func TestMine_EvidenceSurvivesLargeBatchHistory(t *testing.T) {
	l := New(0, 0, nil)

	// A full batch: 500 files logging six evidence-free layer attempts
	// each, with the first 50 files also sharing one recurring shape.
	var history []engine.TransformAttempt
	for i := 0; i < 500; i++ {
		file := fmt.Sprintf("src/pages/p%03d.tsx", i)
		for layer := 1; layer <= 6; layer++ {
			history = append(history, engine.TransformAttempt{LayerID: layer, FilePath: file})
		}
		if i < 50 {
			history = append(history, engine.TransformAttempt{
				LayerID:      4,
				FilePath:     file,
				Observations: []string{recurringShape},
			})
		}
	}

	proposals := l.Mine(history, nil, nil)
	require.Len(t, proposals, 1)
	assert.Equal(t, 50, proposals[0].Support)
	assert.InDelta(t, 1.0, proposals[0].Confidence, 1e-9)
}

func TestBoundHistory(t *testing.T) {
	obs := func(file string) engine.TransformAttempt {
		return engine.TransformAttempt{FilePath: file, Observations: []string{recurringShape}}
	}

	t.Run("evidence-free attempts are dropped", func(t *testing.T) {
		history := []engine.TransformAttempt{
			obs("a.ts"),
			{FilePath: "a.ts"},
			{FilePath: "b.ts"},
		}
		assert.Len(t, boundHistory(history, 10), 1)
	})

	t.Run("cap counts distinct files not attempts", func(t *testing.T) {
		history := []engine.TransformAttempt{
			obs("a.ts"), obs("a.ts"),
			obs("b.ts"),
			obs("c.ts"),
		}
		kept := boundHistory(history, 2)
		require.Len(t, kept, 2)
		assert.Equal(t, "b.ts", kept[0].FilePath)
		assert.Equal(t, "c.ts", kept[1].FilePath)
	})
}

func TestMine_OrdersBySupport(t *testing.T) {
	l := New(2, 0, nil)
	history := append(
		attemptsWithObservation(3, `staleHelper.invoke("~");`),
		attemptsWithObservation(7, recurringShape)...,
	)

	proposals := l.Mine(history, nil, nil)
	require.Len(t, proposals, 2)
	assert.Equal(t, 7, proposals[0].Support)
	assert.Equal(t, 3, proposals[1].Support)
}

func TestConfidenceFor(t *testing.T) {
	assert.InDelta(t, 0.3, confidenceFor(3), 1e-9)
	assert.InDelta(t, 1.0, confidenceFor(10), 1e-9)
	assert.InDelta(t, 1.0, confidenceFor(50), 1e-9)
}
