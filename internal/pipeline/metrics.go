package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/pulselens/pulselens/internal/sample"
	"github.com/pulselens/pulselens/internal/stats"
)

// Prometheus Metrics Definition
var (
	currentBPM = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulselens_heart_rate_bpm",
			Help: "Most recently accepted heart-rate sample.",
		},
	)
	samplesAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulselens_samples_accepted_total",
			Help: "Total number of heart-rate samples accepted from the stream.",
		},
	)
	highBPMEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulselens_high_bpm_events_total",
			Help: "Total number of samples at or above the configured high-BPM threshold.",
		},
	)
	subscriberDrops = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulselens_subscriber_dropped_samples_total",
			Help: "Samples skipped for subscribers whose buffers were full.",
		},
	)
	windowCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulselens_window_sample_count",
			Help: "Number of samples in the recent statistics window.",
		},
	)
	windowMin = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulselens_window_min_bpm",
			Help: "Minimum heart rate in the recent statistics window.",
		},
	)
	windowMax = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulselens_window_max_bpm",
			Help: "Maximum heart rate in the recent statistics window.",
		},
	)
	windowMean = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulselens_window_mean_bpm",
			Help: "Mean heart rate in the recent statistics window.",
		},
	)
	windowMedian = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulselens_window_median_bpm",
			Help: "Median heart rate in the recent statistics window.",
		},
	)
	windowStdDev = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulselens_window_stddev_bpm",
			Help: "Heart-rate standard deviation in the recent statistics window.",
		},
	)
	windowTrendSlope = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulselens_window_trend_slope",
			Help: "Least-squares slope of the last ten samples.",
		},
	)
	windowRangeCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pulselens_window_range_count",
			Help: "Samples per BPM range bucket in the recent statistics window.",
		},
		[]string{"range"},
	)
)

// metricsPublisher translates accepted samples and window snapshots into
// Prometheus series and logs threshold crossings.
type metricsPublisher struct {
	highThreshold int
	logger        *zap.Logger
}

func newMetricsPublisher(highThreshold int, logger *zap.Logger) *metricsPublisher {
	logger.Debug("Metrics publisher initialized", zap.Int("high_bpm_threshold", highThreshold))
	return &metricsPublisher{highThreshold: highThreshold, logger: logger}
}

// observe records one accepted sample.
func (m *metricsPublisher) observe(s sample.Sample) {
	currentBPM.Set(float64(s.Value))
	samplesAccepted.Inc()

	if m.highThreshold > 0 && s.Value >= m.highThreshold {
		highBPMEvents.Inc()
		m.logger.Warn("High heart rate",
			zap.Int("bpm", s.Value),
			zap.Int("threshold", m.highThreshold),
		)
	}
}

// publishSnapshot pushes the derived window statistics. An empty snapshot
// zeroes the count and leaves the value gauges at their last reading.
func (m *metricsPublisher) publishSnapshot(snap stats.Snapshot) {
	windowCount.Set(float64(snap.Count))
	if snap.Count == 0 {
		return
	}

	windowMin.Set(float64(snap.Min))
	windowMax.Set(float64(snap.Max))
	windowMean.Set(snap.Mean)
	windowMedian.Set(float64(snap.Median))
	windowStdDev.Set(snap.StdDev)
	windowTrendSlope.Set(snap.TrendSlope)

	windowRangeCount.WithLabelValues("very_low").Set(float64(snap.Ranges.VeryLow))
	windowRangeCount.WithLabelValues("low").Set(float64(snap.Ranges.Low))
	windowRangeCount.WithLabelValues("normal").Set(float64(snap.Ranges.Normal))
	windowRangeCount.WithLabelValues("elevated").Set(float64(snap.Ranges.Elevated))
	windowRangeCount.WithLabelValues("high").Set(float64(snap.Ranges.High))
}

func (m *metricsPublisher) publishDropped(total int64) {
	subscriberDrops.Set(float64(total))
}
