package leveling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCurve(t *testing.T) *ThresholdCurve {
	t.Helper()
	c, err := NewThresholdCurve([]int64{100, 250, 500, 1000})
	require.NoError(t, err)
	return c
}

func TestThresholdCurve_Level(t *testing.T) {
	c := testCurve(t)

	tests := []struct {
		xp       int64
		expected int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{249, 2},
		{250, 3},
		{999, 4},
		{1000, 5},
		{1_000_000, 5},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, c.Level(tt.xp), "xp=%d", tt.xp)
	}
	assert.Equal(t, 5, c.MaxLevel())
}

func TestThresholdCurve_Monotonic(t *testing.T) {
	c := testCurve(t)

	prev := c.Level(0)
	for xp := int64(1); xp <= 1500; xp++ {
		level := c.Level(xp)
		assert.GreaterOrEqual(t, level, prev, "level dropped at xp=%d", xp)
		prev = level
	}
}

func TestThresholdCurve_Threshold(t *testing.T) {
	c := testCurve(t)

	xp, ok := c.Threshold(1)
	assert.True(t, ok)
	assert.Equal(t, int64(0), xp)

	xp, ok = c.Threshold(3)
	assert.True(t, ok)
	assert.Equal(t, int64(250), xp)

	_, ok = c.Threshold(6)
	assert.False(t, ok)

	_, ok = c.Threshold(0)
	assert.False(t, ok)

	// Every threshold maps back to its own level.
	for level := 2; level <= c.MaxLevel(); level++ {
		th, ok := c.Threshold(level)
		require.True(t, ok)
		assert.Equal(t, level, c.Level(th))
		assert.Equal(t, level-1, c.Level(th-1))
	}
}

func TestNewThresholdCurve_Invalid(t *testing.T) {
	_, err := NewThresholdCurve([]int64{100, 100})
	assert.Error(t, err)

	_, err = NewThresholdCurve([]int64{0, 100})
	assert.Error(t, err)

	c, err := NewThresholdCurve(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Level(1_000_000))
}

func TestParseCurve(t *testing.T) {
	c, err := ParseCurve([]byte("thresholds: [10, 20, 40]\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, c.Level(40))

	c, err = ParseCurve([]byte(`
levels:
  - level: 3
    xp: 300
  - level: 2
    xp: 100
`))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Level(299))
	assert.Equal(t, 3, c.Level(300))

	_, err = ParseCurve([]byte("levels:\n  - {level: 3, xp: 300}\n"))
	assert.Error(t, err, "levels must start at 2")

	_, err = ParseCurve([]byte("thresholds: [1]\nlevels:\n  - {level: 2, xp: 5}\n"))
	assert.Error(t, err)

	_, err = ParseCurve([]byte("thresholds: [oops"))
	assert.Error(t, err)
}

func TestLoadCurveFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "levels.yaml")
	require.NoError(t, os.WriteFile(path, []byte("thresholds: [50, 150]\n"), 0o600))

	c, err := LoadCurveFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, c.MaxLevel())

	_, err = LoadCurveFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
