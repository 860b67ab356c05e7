package stats_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pulselens/pulselens/internal/sample"
	"github.com/pulselens/pulselens/internal/stats"
)

func series(t *testing.T, bpm ...int) []sample.Sample {
	t.Helper()
	base := time.Now().Add(-time.Duration(len(bpm)) * time.Second)
	out := make([]sample.Sample, len(bpm))
	for i, v := range bpm {
		out[i] = sample.New(v, base.Add(time.Duration(i)*time.Second))
	}
	return out
}

func TestCompute_Empty(t *testing.T) {
	snap := stats.Compute(nil)
	require.Zero(t, snap)
}

func TestCompute_SingleSample(t *testing.T) {
	snap := stats.Compute(series(t, 72))

	require.Equal(t, 1, snap.Count)
	require.Equal(t, 72, snap.Min)
	require.Equal(t, 72, snap.Max)
	require.Equal(t, 72.0, snap.Mean)
	require.Equal(t, 72, snap.Median)
	require.Zero(t, snap.StdDev)
	require.Empty(t, snap.Trend)
	require.Zero(t, snap.TrendSlope)
}

func TestCompute_BasicStats(t *testing.T) {
	snap := stats.Compute(series(t, 60, 62, 64, 66, 68))

	require.Equal(t, 5, snap.Count)
	require.Equal(t, 60, snap.Min)
	require.Equal(t, 68, snap.Max)
	require.Equal(t, 64.0, snap.Mean)
	require.Equal(t, 64, snap.Median)
	// Sample variance: (16+4+0+4+16)/4 = 10.
	require.InDelta(t, 3.16, snap.StdDev, 1e-9)
	require.InDelta(t, 4.0, snap.DurationSeconds, 0.5)
}

func TestCompute_MedianUsesSortedIndexSelection(t *testing.T) {
	// Even count: the middle element at index n/2 of the sorted values,
	// not the average of the two middle elements.
	snap := stats.Compute(series(t, 80, 60, 70, 90))
	require.Equal(t, 80, snap.Median)
}

func TestCompute_TrendRising(t *testing.T) {
	snap := stats.Compute(series(t, 60, 62, 64, 66, 68, 70, 72, 74, 76, 78))

	require.Equal(t, 2.0, snap.TrendSlope)
	require.Equal(t, stats.TrendRising, snap.Trend)
}

func TestCompute_TrendFalling(t *testing.T) {
	snap := stats.Compute(series(t, 78, 76, 74, 72, 70, 68, 66, 64, 62, 60))

	require.Equal(t, -2.0, snap.TrendSlope)
	require.Equal(t, stats.TrendFalling, snap.Trend)
}

func TestCompute_TrendSlowlyRising(t *testing.T) {
	snap := stats.Compute(series(t, 60, 60, 61, 61, 62, 62, 63, 63, 64, 64))

	require.Greater(t, snap.TrendSlope, 0.1)
	require.LessOrEqual(t, snap.TrendSlope, 0.5)
	require.Equal(t, stats.TrendSlowlyRising, snap.Trend)
}

func TestCompute_TrendStable(t *testing.T) {
	snap := stats.Compute(series(t, 70, 70, 70, 70, 70, 70, 70, 70, 70, 70))

	require.Zero(t, snap.TrendSlope)
	require.Equal(t, stats.TrendStable, snap.Trend)
}

func TestCompute_TrendUsesLastTenOnly(t *testing.T) {
	// A long flat prefix must not dilute the slope of the final ten points.
	vals := make([]int, 0, 30)
	for i := 0; i < 20; i++ {
		vals = append(vals, 65)
	}
	for i := 0; i < 10; i++ {
		vals = append(vals, 60+2*i)
	}
	snap := stats.Compute(series(t, vals...))

	require.Equal(t, 2.0, snap.TrendSlope)
	require.Equal(t, stats.TrendRising, snap.Trend)
}

func TestCompute_RangeBuckets(t *testing.T) {
	snap := stats.Compute(series(t, 45, 55, 65, 105, 145))

	require.Equal(t, stats.Ranges{VeryLow: 1, Low: 1, Normal: 1, Elevated: 1, High: 1}, snap.Ranges)
}

func TestCompute_RangeBucketBoundaries(t *testing.T) {
	snap := stats.Compute(series(t, 49, 50, 59, 60, 99, 100, 139, 140))

	require.Equal(t, stats.Ranges{VeryLow: 1, Low: 2, Normal: 2, Elevated: 2, High: 1}, snap.Ranges)
}

func TestCompute_MeanRoundedToOneDecimal(t *testing.T) {
	snap := stats.Compute(series(t, 60, 61, 63))
	require.Equal(t, 61.3, snap.Mean)
}
