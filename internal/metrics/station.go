// Package metrics provides Prometheus metrics for the capture pipeline and
// the slot station.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "photostation"

var (
	framesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "frames_published_total",
		Help:      "Frames published to the live buffer",
	})

	framesInvalid = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "frames_invalid_total",
		Help:      "Frames dropped because they failed validation",
	})

	captureRunning = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "running",
		Help:      "1 while the capture device is streaming",
	}, []string{"device_id"})

	captures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "station",
		Name:      "captures_total",
		Help:      "Capture attempts by outcome",
	}, []string{"outcome"})

	slotsOccupied = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "station",
		Name:      "slots_occupied",
		Help:      "Number of occupied slots (0-2)",
	})

	saves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "persist",
		Name:      "saves_total",
		Help:      "Save attempts by outcome",
	}, []string{"outcome"})

	saveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "persist",
		Name:      "save_duration_seconds",
		Help:      "Time spent encoding and writing both images",
		Buckets:   prometheus.DefBuckets,
	})

	commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "command",
		Name:      "dispatched_total",
		Help:      "Operator commands by name",
	}, []string{"command"})

	// Local cache for the status endpoint.
	cache   Snapshot
	cacheMu sync.RWMutex
)

// Snapshot holds the current values shown on the status endpoint.
type Snapshot struct {
	FramesPublished uint64            `json:"frames_published"`
	FramesInvalid   uint64            `json:"frames_invalid"`
	Captures        map[string]uint64 `json:"captures"`
	Saves           map[string]uint64 `json:"saves"`
}

// IncFramesPublished counts a frame handed to the live buffer.
func IncFramesPublished() {
	framesPublished.Inc()
	updateCache(func(s *Snapshot) { s.FramesPublished++ })
}

// IncFramesInvalid counts a frame dropped by validation.
func IncFramesInvalid() {
	framesInvalid.Inc()
	updateCache(func(s *Snapshot) { s.FramesInvalid++ })
}

// SetCaptureRunning flags the capture device as streaming or stopped.
func SetCaptureRunning(deviceID string, running bool) {
	if running {
		captureRunning.WithLabelValues(deviceID).Set(1)
		return
	}
	captureRunning.DeleteLabelValues(deviceID)
}

// IncCapture counts a capture attempt.
func IncCapture(outcome string) {
	captures.WithLabelValues(outcome).Inc()
	updateCache(func(s *Snapshot) { incMap(&s.Captures, outcome) })
}

// SetSlotsOccupied records how many slots currently hold a frame.
func SetSlotsOccupied(n int) {
	slotsOccupied.Set(float64(n))
}

// ObserveSave counts a save attempt and, for completed saves, its duration.
func ObserveSave(outcome string, seconds float64) {
	saves.WithLabelValues(outcome).Inc()
	if seconds > 0 {
		saveDuration.Observe(seconds)
	}
	updateCache(func(s *Snapshot) { incMap(&s.Saves, outcome) })
}

// IncCommand counts a dispatched operator command.
func IncCommand(name string) {
	commands.WithLabelValues(name).Inc()
}

// Current returns a copy of the cached values.
func Current() Snapshot {
	cacheMu.RLock()
	defer cacheMu.RUnlock()
	dup := cache
	dup.Captures = copyMap(cache.Captures)
	dup.Saves = copyMap(cache.Saves)
	return dup
}

func updateCache(update func(*Snapshot)) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	update(&cache)
}

func incMap(m *map[string]uint64, key string) {
	if *m == nil {
		*m = make(map[string]uint64)
	}
	(*m)[key]++
}

func copyMap(m map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
