package media

import (
	"sort"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
)

// QualityLimitation classifies why outbound video quality is being held back.
type QualityLimitation string

const (
	LimitationNone      QualityLimitation = "none"
	LimitationCPU       QualityLimitation = "cpu"
	LimitationBandwidth QualityLimitation = "bandwidth"
	LimitationBoth      QualityLimitation = "both"
)

// LayerStats is the byte-delta-derived bitrate of one outbound stream.
type LayerStats struct {
	ID      string
	Kind    string
	Bitrate uint64
}

// BandwidthReport is one telemetry sample for the active connection.
type BandwidthReport struct {
	Layers []LayerStats
	// AvailableOutgoing is the transport's available outgoing bitrate
	// estimate in bits per second, 0 when the transport does not report one.
	AvailableOutgoing float64
	Limitation        QualityLimitation
}

type statsSource interface {
	GetStats() webrtc.StatsReport
}

// BandwidthMonitor samples connection statistics on a fixed interval and
// reports per-layer bitrates plus the quality-limitation classification.
// Telemetry is informational only and never interferes with the connection.
type BandwidthMonitor struct {
	src      statsSource
	interval time.Duration
	onReport func(BandwidthReport)
	log      *logrus.Entry

	mu     sync.Mutex
	prev   map[string]uint64
	prevAt time.Time
	stop   chan struct{}
}

// NewBandwidthMonitor creates a monitor over src. onReport is invoked with
// every sample; it may be nil when only logging is wanted.
func NewBandwidthMonitor(src statsSource, interval time.Duration, onReport func(BandwidthReport)) *BandwidthMonitor {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &BandwidthMonitor{
		src:      src,
		interval: interval,
		onReport: onReport,
		log:      logrus.WithField("component", "bandwidth"),
		prev:     make(map[string]uint64),
	}
}

// Start begins the sampling loop. No-op while already running.
func (m *BandwidthMonitor) Start() {
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	m.stop = stop
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.sample()
			}
		}
	}()
}

// Stop ends the sampling loop. Safe when never started.
func (m *BandwidthMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
}

func (m *BandwidthMonitor) sample() {
	report := m.Collect(m.src.GetStats(), time.Now())
	m.log.WithFields(logrus.Fields{
		"layers":     len(report.Layers),
		"available":  report.AvailableOutgoing,
		"limitation": report.Limitation,
	}).Debug("bandwidth sample")
	if m.onReport != nil {
		m.onReport(report)
	}
}

// Collect computes one report from a raw stats snapshot taken at now.
// Bitrates come from byte deltas against the previous snapshot, so the first
// call after Start (or after a stream appears) reports 0 for that layer.
func (m *BandwidthMonitor) Collect(stats webrtc.StatsReport, now time.Time) BandwidthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	elapsed := now.Sub(m.prevAt).Seconds()
	first := m.prevAt.IsZero()

	var report BandwidthReport
	var reasons []string
	next := make(map[string]uint64, len(m.prev))

	for _, stat := range stats {
		switch s := stat.(type) {
		case webrtc.OutboundRTPStreamStats:
			next[s.ID] = s.BytesSent
			var bitrate uint64
			if prev, ok := m.prev[s.ID]; ok && !first && elapsed > 0 && s.BytesSent >= prev {
				bitrate = uint64(float64((s.BytesSent-prev)*8) / elapsed)
			}
			report.Layers = append(report.Layers, LayerStats{ID: s.ID, Kind: s.Kind, Bitrate: bitrate})
			if s.Kind == "video" {
				reasons = append(reasons, string(s.QualityLimitationReason))
			}
		case webrtc.ICECandidatePairStats:
			if s.AvailableOutgoingBitrate > report.AvailableOutgoing {
				report.AvailableOutgoing = s.AvailableOutgoingBitrate
			}
		}
	}

	sort.Slice(report.Layers, func(i, j int) bool { return report.Layers[i].ID < report.Layers[j].ID })
	report.Limitation = ClassifyLimitation(reasons)

	m.prev = next
	m.prevAt = now
	return report
}

// ClassifyLimitation folds per-layer quality-limitation reasons into the
// single connection-level classification.
func ClassifyLimitation(reasons []string) QualityLimitation {
	var cpu, bw bool
	for _, r := range reasons {
		switch r {
		case "cpu":
			cpu = true
		case "bandwidth":
			bw = true
		}
	}
	switch {
	case cpu && bw:
		return LimitationBoth
	case cpu:
		return LimitationCPU
	case bw:
		return LimitationBandwidth
	}
	return LimitationNone
}
