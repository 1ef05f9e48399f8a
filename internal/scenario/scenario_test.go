package scenario_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modebench/modebench/internal/scenario"
)

func TestWriteSeedFileDeterministic(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "nested", "b.txt")
	require.NoError(t, scenario.WriteSeedFile(a, 42, 10))
	require.NoError(t, scenario.WriteSeedFile(b, 42, 10))

	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, da, db, "same seed must produce identical content")

	require.NoError(t, scenario.WriteSeedFile(a, 43, 10))
	dc, err := os.ReadFile(a)
	require.NoError(t, err)
	assert.NotEqual(t, db, dc, "different seed must produce different content")
}

func TestWriteSeedFileShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.txt")
	require.NoError(t, scenario.WriteSeedFile(path, 7, 3))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := string(data)
	assert.Contains(t, lines, "seed=00000007 line=0001 payload=")
	assert.Contains(t, lines, "seed=00000007 line=0003 payload=")
	assert.Equal(t, 3, len(splitLines(lines)))
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := range s {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return lines
}

func TestAppendLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "log.txt")
	require.NoError(t, scenario.AppendLine(path, "first"))
	require.NoError(t, scenario.AppendLine(path, "second"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))
}

func TestBuiltInMatrix(t *testing.T) {
	scenarios := scenario.BuiltIn()
	require.Len(t, scenarios, 8)

	var basic, complexCount int
	seen := map[string]bool{}
	for _, s := range scenarios {
		assert.False(t, seen[s.Key], "duplicate scenario key %q", s.Key)
		seen[s.Key] = true
		require.NotNil(t, s.Setup, "%s missing setup", s.Key)
		require.NotNil(t, s.Measure, "%s missing measure", s.Key)
		require.NotEmpty(t, s.Description)
		switch s.Complexity {
		case scenario.Basic:
			basic++
		case scenario.Complex:
			complexCount++
		default:
			t.Fatalf("scenario %s has unknown complexity %q", s.Key, s.Complexity)
		}
	}
	assert.Equal(t, 5, basic)
	assert.Equal(t, 3, complexCount)
}

func TestFilter(t *testing.T) {
	scenarios := scenario.BuiltIn()
	assert.Len(t, scenario.Filter(scenarios, ""), 8)
	got := scenario.Filter(scenarios, "rebase_linear")
	require.Len(t, got, 1)
	assert.Equal(t, scenario.Complex, got[0].Complexity)
	assert.Empty(t, scenario.Filter(scenarios, "nope"))
}
