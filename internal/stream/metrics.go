package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulselens_reconnects_total",
			Help: "Total number of reconnection attempts after a session ended.",
		},
	)
	droppedFramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulselens_dropped_frames_total",
			Help: "Total number of inbound frames dropped as undecodable.",
		},
	)
)
