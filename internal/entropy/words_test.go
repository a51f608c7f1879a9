package entropy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWords(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "random_words.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadPool_MixedFormat(t *testing.T) {
	path := writeWords(t, "# header\nalpha, beta,gamma\n\n  delta  \n# beta again\nbeta\n,,\nepsilon\n")

	p, err := LoadPool(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "gamma", "delta", "epsilon"}, p.Words())
}

func TestLoadPool_Missing(t *testing.T) {
	p, err := LoadPool(filepath.Join(t.TempDir(), "nope.txt"))
	require.NoError(t, err)
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, FallbackWords, p.Sample(3))
}

func TestLoadPool_OnlyComments(t *testing.T) {
	p, err := LoadPool(writeWords(t, "# nothing here\n\n"))
	require.NoError(t, err)
	assert.Equal(t, FallbackWords, p.Sample(3))
}

func TestSample(t *testing.T) {
	p := NewPool([]string{"a", "b", "c", "d", "e"})

	got := p.Sample(3)
	require.Len(t, got, 3)
	assert.Len(t, uniq(got), 3, "samples are distinct")
	for _, w := range got {
		assert.Contains(t, p.Words(), w)
	}

	all := p.Sample(10)
	assert.ElementsMatch(t, p.Words(), all)

	assert.Empty(t, p.Sample(0))
}

func TestSample_DoesNotMutatePool(t *testing.T) {
	p := NewPool([]string{"a", "b", "c"})
	for i := 0; i < 20; i++ {
		_ = p.Sample(3)
	}
	assert.Equal(t, []string{"a", "b", "c"}, p.Words())
}

func TestWritePool_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, WritePool(path, StarterWords))

	p, err := LoadPool(path)
	require.NoError(t, err)
	assert.Equal(t, StarterWords, p.Words())
}

func TestNilPool(t *testing.T) {
	var p *Pool
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, FallbackWords, p.Sample(2))
}

func uniq(ss []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		m[s] = struct{}{}
	}
	return m
}
