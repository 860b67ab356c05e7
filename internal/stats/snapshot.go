package stats

import (
	"math"
	"sort"

	"github.com/pulselens/pulselens/internal/sample"
)

// trendPoints is the fixed tail length used for the trend regression.
const trendPoints = 10

// Trend labels for the short-term slope classification.
const (
	TrendRising        = "rising"
	TrendFalling       = "falling"
	TrendSlowlyRising  = "slowly rising"
	TrendSlowlyFalling = "slowly falling"
	TrendStable        = "stable"
)

// Ranges holds raw counts for the five fixed BPM buckets.
type Ranges struct {
	VeryLow  int `json:"very_low"` // < 50
	Low      int `json:"low"`      // 50-59
	Normal   int `json:"normal"`   // 60-99
	Elevated int `json:"elevated"` // 100-139
	High     int `json:"high"`     // >= 140
}

// Snapshot is a derived statistical summary of a sample set. It is a pure
// function of its input; a zero Snapshot (Count == 0) means no data.
type Snapshot struct {
	Count           int     `json:"count"`
	Min             int     `json:"min"`
	Max             int     `json:"max"`
	Mean            float64 `json:"avg"`
	Median          int     `json:"median"`
	StdDev          float64 `json:"std_dev"`
	DurationSeconds float64 `json:"duration_seconds"`
	DurationMinutes float64 `json:"duration_minutes"`
	Ranges          Ranges  `json:"ranges"`
	TrendSlope      float64 `json:"trend_slope,omitempty"`
	Trend           string  `json:"trend,omitempty"`
}

// Compute derives a Snapshot from the given samples. An empty input yields
// the zero Snapshot. The trend fields are populated only when at least
// trendPoints samples are present.
func Compute(samples []sample.Sample) Snapshot {
	if len(samples) == 0 {
		return Snapshot{}
	}

	values := make([]int, len(samples))
	minTS, maxTS := samples[0].Timestamp, samples[0].Timestamp
	sum := 0
	snap := Snapshot{
		Count: len(samples),
		Min:   samples[0].Value,
		Max:   samples[0].Value,
	}
	for i, s := range samples {
		values[i] = s.Value
		sum += s.Value
		if s.Value < snap.Min {
			snap.Min = s.Value
		}
		if s.Value > snap.Max {
			snap.Max = s.Value
		}
		if s.Timestamp < minTS {
			minTS = s.Timestamp
		}
		if s.Timestamp > maxTS {
			maxTS = s.Timestamp
		}
		countRange(&snap.Ranges, s.Value)
	}

	mean := float64(sum) / float64(len(values))
	snap.Mean = round(mean, 1)

	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	snap.Median = sorted[len(sorted)/2]

	if len(values) > 1 {
		var sq float64
		for _, v := range values {
			d := float64(v) - snap.Mean
			sq += d * d
		}
		snap.StdDev = round(math.Sqrt(sq/float64(len(values)-1)), 2)
	}

	snap.DurationSeconds = maxTS - minTS
	snap.DurationMinutes = round(snap.DurationSeconds/60, 1)

	if len(values) >= trendPoints {
		slope := regressionSlope(values[len(values)-trendPoints:])
		snap.TrendSlope = round(slope, 3)
		snap.Trend = trendLabel(slope)
	}

	return snap
}

func countRange(r *Ranges, bpm int) {
	switch {
	case bpm < 50:
		r.VeryLow++
	case bpm < 60:
		r.Low++
	case bpm < 100:
		r.Normal++
	case bpm < 140:
		r.Elevated++
	default:
		r.High++
	}
}

// regressionSlope returns the least-squares slope of values against their
// index 0..n-1.
func regressionSlope(values []int) float64 {
	n := float64(len(values))
	var sumX, sumY, sumXY, sumX2 float64
	for i, v := range values {
		x, y := float64(i), float64(v)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func trendLabel(slope float64) string {
	switch {
	case slope > 0.5:
		return TrendRising
	case slope < -0.5:
		return TrendFalling
	case slope > 0.1:
		return TrendSlowlyRising
	case slope < -0.1:
		return TrendSlowlyFalling
	default:
		return TrendStable
	}
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
