package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alcatecablee/fixwise-sub008/internal/engine"
	"github.com/Alcatecablee/fixwise-sub008/internal/learner"
)

func writeFiles(t *testing.T, contents map[string]string) []string {
	t.Helper()
	dir := t.TempDir()
	var files []string
	for name, text := range contents {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
		files = append(files, path)
	}
	return files
}

func TestRunner_RepairsEachFileIndependently(t *testing.T) {
	files := writeFiles(t, map[string]string{
		"a.js": "const w = window.innerWidth;\n",
		"b.js": "const h = window.innerHeight;\n",
		"c.js": "const ok = 1;\n",
	})

	r := NewRunner(nil, nil, 2, nil)
	res, err := r.Run(context.Background(), files, engine.Options{EnabledLayers: []int{4}})
	require.NoError(t, err)
	require.Len(t, res.Runs, 3)

	guarded := 0
	for _, run := range res.Runs {
		assert.True(t, run.Success)
		if len(run.LayersApplied) > 0 {
			guarded++
			assert.Contains(t, run.FinalText, "typeof window")
		}
	}
	assert.Equal(t, 2, guarded)
}

func TestRunner_MinesOnceAtBatchBoundary(t *testing.T) {
	contents := make(map[string]string, 5)
	for i := 0; i < 5; i++ {
		// The same unhandled shape in every file, differing only in
		// literals.
		contents[fmt.Sprintf("f%d.js", i)] = fmt.Sprintf("legacyTheme.apply(\"dark\", %d);\n", i)
	}
	files := writeFiles(t, contents)

	r := NewRunner(nil, learner.New(3, 0, nil), 2, nil)
	res, err := r.Run(context.Background(), files, engine.Options{EnabledLayers: []int{1, 7}})
	require.NoError(t, err)

	require.Len(t, res.Proposals, 1, "five files with one shared shape yield one proposal")
	assert.Equal(t, 5, res.Proposals[0].Support)
	assert.InDelta(t, 0.5, res.Proposals[0].Confidence, 1e-9)

	for _, run := range res.Runs {
		assert.Empty(t, run.Proposals, "per-file mining is disabled during fan-out")
	}
}

func TestRunner_SkipsMiningWhenLayerSevenDisabled(t *testing.T) {
	files := writeFiles(t, map[string]string{"a.js": "var x = 1;\n"})

	r := NewRunner(nil, nil, 1, nil)
	res, err := r.Run(context.Background(), files, engine.Options{EnabledLayers: []int{2}})
	require.NoError(t, err)
	assert.Empty(t, res.Proposals)
}

func TestRunner_UnreadableFileAbortsBatch(t *testing.T) {
	files := writeFiles(t, map[string]string{"a.js": "const x = 1;\n"})
	files = append(files, filepath.Join(t.TempDir(), "missing.js"))

	r := NewRunner(nil, nil, 2, nil)
	_, err := r.Run(context.Background(), files, engine.Options{})
	assert.Error(t, err)
}

func TestWithoutLayer(t *testing.T) {
	assert.Equal(t, []int{1, 2}, withoutLayer([]int{1, 2, 7}, 7))
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, withoutLayer(nil, 7), "empty means all layers minus the excluded one")
	assert.Equal(t, []int{4}, withoutLayer([]int{4}, 7))
}
