package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DirectionSend    = "send"
	DirectionReceive = "receive"
)

var (
	registerOnce sync.Once

	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framewire",
			Subsystem: "channel",
			Name:      "frames_total",
			Help:      "Typed frames moved across the endpoint.",
		},
		[]string{"direction", "kind"},
	)
	frameErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framewire",
			Subsystem: "channel",
			Name:      "frame_errors_total",
			Help:      "Typed frame operations that failed.",
		},
		[]string{"direction", "kind"},
	)
	protocolViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framewire",
			Subsystem: "channel",
			Name:      "protocol_violations_total",
			Help:      "Frames rejected because a token boundary did not match.",
		},
		[]string{"boundary"},
	)
	transferBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framewire",
			Subsystem: "chunk",
			Name:      "bytes_total",
			Help:      "Payload bytes moved by the chunked transport.",
		},
		[]string{"direction"},
	)
	transferSegments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framewire",
			Subsystem: "chunk",
			Name:      "segments_total",
			Help:      "Segments written or read by the chunked transport.",
		},
		[]string{"direction"},
	)
	connectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framewire",
			Subsystem: "endpoint",
			Name:      "connect_attempts_total",
			Help:      "Bind/connect attempts by role and outcome.",
		},
		[]string{"role", "success"},
	)
	loopIterations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framewire",
			Subsystem: "loop",
			Name:      "iterations_total",
			Help:      "Streaming loop iterations executed.",
		},
		[]string{"role"},
	)
	loopIPS = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "framewire",
			Subsystem: "loop",
			Name:      "iterations_per_second",
			Help:      "Iterations per second since the current loop started.",
		},
		[]string{"role"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framewire",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP probe requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "framewire",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP probe request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			framesTotal, frameErrors, protocolViolations,
			transferBytes, transferSegments,
			connectAttempts,
			loopIterations, loopIPS,
			httpRequests, httpDuration,
		)
	})
}

func RecordFrame(direction, kind string, err error) {
	RegisterMetrics()
	if err != nil {
		frameErrors.WithLabelValues(direction, kind).Inc()
		return
	}
	framesTotal.WithLabelValues(direction, kind).Inc()
}

func RecordProtocolViolation(boundary string) {
	RegisterMetrics()
	protocolViolations.WithLabelValues(boundary).Inc()
}

func RecordTransfer(direction string, bytes, segments int) {
	RegisterMetrics()
	transferBytes.WithLabelValues(direction).Add(float64(bytes))
	transferSegments.WithLabelValues(direction).Add(float64(segments))
}

func RecordConnectAttempt(role string, success bool) {
	RegisterMetrics()
	connectAttempts.WithLabelValues(role, strconv.FormatBool(success)).Inc()
}

func RecordLoopIteration(role string, ips float64) {
	RegisterMetrics()
	loopIterations.WithLabelValues(role).Inc()
	loopIPS.WithLabelValues(role).Set(ips)
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
