package evaluate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yutarop/imgcluster/internal/imageio"
)

func writeTree(t *testing.T, tree map[string][]string) string {
	t.Helper()
	dir := t.TempDir()
	for cluster, files := range tree {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, cluster), 0o755))
		for _, f := range files {
			require.NoError(t, os.WriteFile(filepath.Join(dir, cluster, f), []byte("x"), 0o644))
		}
	}
	return dir
}

func TestPrefixCategorizer(t *testing.T) {
	c := PrefixCategorizer(1)
	assert.Equal(t, "a", c("Apple_01.png"))
	assert.Equal(t, "c", c("cat.jpg"))

	c3 := PrefixCategorizer(3)
	assert.Equal(t, "fox", c3("FOX12.png"))
	assert.Equal(t, "ab", c3("ab"))
}

func TestEvaluate_Counts(t *testing.T) {
	dir := writeTree(t, map[string][]string{
		"cluster_0": {"a1.png", "a2.png", "c1.png"},
		"cluster_1": {"c2.png", "c3.jpg", "f1.png"},
		"cluster_2": {"f2.png", "f3.png"},
	})

	eval, err := Evaluate(dir, PrefixCategorizer(1), imageio.DefaultExtensions)
	require.NoError(t, err)
	require.Len(t, eval.Clusters, 3)

	assert.Equal(t, "a", eval.Clusters[0].Predominant)
	assert.Equal(t, 1, eval.Clusters[0].Misplaced)
	assert.Equal(t, "c", eval.Clusters[1].Predominant)
	assert.Equal(t, "f", eval.Clusters[2].Predominant)
	assert.Equal(t, 0, eval.Clusters[2].Misplaced)

	assert.Equal(t, 8, eval.Total)
	assert.Equal(t, 2, eval.Misplaced)
	assert.InDelta(t, 0.75, eval.Purity(), 1e-12)
}

func TestEvaluate_TiePrefersUnusedCategory(t *testing.T) {
	dir := writeTree(t, map[string][]string{
		"cluster_0": {"a1.png", "a2.png"},
		"cluster_1": {"a3.png", "c1.png"},
	})

	eval, err := Evaluate(dir, PrefixCategorizer(1), imageio.DefaultExtensions)
	require.NoError(t, err)
	assert.Equal(t, "a", eval.Clusters[0].Predominant)
	assert.Equal(t, "c", eval.Clusters[1].Predominant, "a is already predominant in cluster_0")
	assert.Equal(t, 1, eval.Clusters[1].Misplaced)
}

func TestEvaluate_TieAllUsedFallsBackAlphabetical(t *testing.T) {
	dir := writeTree(t, map[string][]string{
		"cluster_0": {"a1.png"},
		"cluster_1": {"c1.png"},
		"cluster_2": {"c2.png", "a2.png"},
	})

	eval, err := Evaluate(dir, PrefixCategorizer(1), imageio.DefaultExtensions)
	require.NoError(t, err)
	assert.Equal(t, "a", eval.Clusters[2].Predominant)
}

func TestEvaluate_NumericOrder(t *testing.T) {
	dir := writeTree(t, map[string][]string{
		"cluster_10": {"b1.png"},
		"cluster_2":  {"a1.png"},
	})

	eval, err := Evaluate(dir, PrefixCategorizer(1), imageio.DefaultExtensions)
	require.NoError(t, err)
	assert.Equal(t, "cluster_2", eval.Clusters[0].Name)
	assert.Equal(t, "cluster_10", eval.Clusters[1].Name)
}

func TestEvaluate_IgnoresNonImagesAndEmptyClusters(t *testing.T) {
	dir := writeTree(t, map[string][]string{
		"cluster_0": {"a1.png", "notes.txt"},
		"cluster_1": {},
		"other":     {"c1.png"},
	})

	eval, err := Evaluate(dir, PrefixCategorizer(1), imageio.DefaultExtensions)
	require.NoError(t, err)
	require.Len(t, eval.Clusters, 2)
	assert.Equal(t, 1, eval.Total)
	assert.Equal(t, "", eval.Clusters[1].Predominant)
	assert.InDelta(t, 1.0, eval.Purity(), 1e-12)
}

func TestEvaluate_NoClusters(t *testing.T) {
	_, err := Evaluate(t.TempDir(), PrefixCategorizer(1), imageio.DefaultExtensions)
	assert.ErrorIs(t, err, ErrNoClusters)
}

func TestEvaluation_PurityEmpty(t *testing.T) {
	assert.Equal(t, 0.0, (&Evaluation{}).Purity())
}

func TestEvaluation_Categories(t *testing.T) {
	dir := writeTree(t, map[string][]string{
		"cluster_0": {"f1.png", "a1.png"},
		"cluster_1": {"c1.png", "a2.png"},
	})

	eval, err := Evaluate(dir, PrefixCategorizer(1), imageio.DefaultExtensions)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "f"}, eval.Categories())
	assert.Empty(t, (&Evaluation{}).Categories())
}
