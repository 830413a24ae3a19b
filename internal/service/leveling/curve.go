package leveling

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Curve maps cumulative XP to a level. Implementations must be deterministic and
// monotonically non-decreasing in xp.
type Curve interface {
	Level(xp int64) int
	// Threshold returns the cumulative XP needed to reach level, and false when
	// level is beyond the curve.
	Threshold(level int) (int64, bool)
}

// ThresholdCurve is a data-driven curve: thresholds[i] is the cumulative XP
// needed to reach level i+2. Level 1 needs no XP.
type ThresholdCurve struct {
	thresholds []int64
}

// NewThresholdCurve validates and builds a curve from cumulative XP thresholds.
func NewThresholdCurve(thresholds []int64) (*ThresholdCurve, error) {
	for i, th := range thresholds {
		if th <= 0 {
			return nil, fmt.Errorf("threshold %d must be positive, got %d", i, th)
		}
		if i > 0 && th <= thresholds[i-1] {
			return nil, fmt.Errorf("thresholds must be strictly increasing (index %d)", i)
		}
	}
	cp := make([]int64, len(thresholds))
	copy(cp, thresholds)
	return &ThresholdCurve{thresholds: cp}, nil
}

// Level returns 1 plus the number of thresholds reached by xp.
func (c *ThresholdCurve) Level(xp int64) int {
	reached := sort.Search(len(c.thresholds), func(i int) bool {
		return c.thresholds[i] > xp
	})
	return 1 + reached
}

// Threshold returns the cumulative XP needed for level.
func (c *ThresholdCurve) Threshold(level int) (int64, bool) {
	if level <= 1 {
		return 0, level == 1
	}
	idx := level - 2
	if idx >= len(c.thresholds) {
		return 0, false
	}
	return c.thresholds[idx], true
}

// MaxLevel returns the highest level reachable on this curve.
func (c *ThresholdCurve) MaxLevel() int {
	return len(c.thresholds) + 1
}

type curveFile struct {
	Thresholds []int64 `yaml:"thresholds"`
	Levels     []struct {
		Level int   `yaml:"level"`
		XP    int64 `yaml:"xp"`
	} `yaml:"levels"`
}

// LoadCurveFile reads a curve from YAML. Either form is accepted:
//
//	thresholds: [100, 250, 500]
//
// or
//
//	levels:
//	  - {level: 2, xp: 100}
//	  - {level: 3, xp: 250}
func LoadCurveFile(path string) (*ThresholdCurve, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read level curve: %w", err)
	}
	return ParseCurve(data)
}

// ParseCurve parses the YAML curve format accepted by LoadCurveFile.
func ParseCurve(data []byte) (*ThresholdCurve, error) {
	var f curveFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse level curve: %w", err)
	}
	if len(f.Thresholds) > 0 && len(f.Levels) > 0 {
		return nil, fmt.Errorf("level curve must use either thresholds or levels, not both")
	}
	if len(f.Levels) == 0 {
		return NewThresholdCurve(f.Thresholds)
	}

	sort.Slice(f.Levels, func(i, j int) bool { return f.Levels[i].Level < f.Levels[j].Level })
	thresholds := make([]int64, 0, len(f.Levels))
	for i, l := range f.Levels {
		if l.Level != i+2 {
			return nil, fmt.Errorf("level curve must list consecutive levels from 2, got level %d", l.Level)
		}
		thresholds = append(thresholds, l.XP)
	}
	return NewThresholdCurve(thresholds)
}
