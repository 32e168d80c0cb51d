package media

import (
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

func TestClassifyLimitation(t *testing.T) {
	tests := []struct {
		name    string
		reasons []string
		want    QualityLimitation
	}{
		{"no layers", nil, LimitationNone},
		{"all clear", []string{"none", "none"}, LimitationNone},
		{"cpu only", []string{"none", "cpu"}, LimitationCPU},
		{"bandwidth only", []string{"bandwidth"}, LimitationBandwidth},
		{"both across layers", []string{"cpu", "bandwidth", "none"}, LimitationBoth},
		{"other reason ignored", []string{"other"}, LimitationNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ClassifyLimitation(tt.reasons))
		})
	}
}

func TestCollectByteDeltaBitrates(t *testing.T) {
	m := NewBandwidthMonitor(nil, time.Second, nil)
	base := time.Now()

	first := webrtc.StatsReport{
		"out-f": webrtc.OutboundRTPStreamStats{ID: "out-f", Kind: "video", BytesSent: 1000},
		"out-a": webrtc.OutboundRTPStreamStats{ID: "out-a", Kind: "audio", BytesSent: 500},
	}
	report := m.Collect(first, base)
	require.Len(t, report.Layers, 2)
	for _, l := range report.Layers {
		require.Zero(t, l.Bitrate, "first sample has no delta")
	}

	second := webrtc.StatsReport{
		"out-f": webrtc.OutboundRTPStreamStats{ID: "out-f", Kind: "video", BytesSent: 1000 + 25_000},
		"out-a": webrtc.OutboundRTPStreamStats{ID: "out-a", Kind: "audio", BytesSent: 500 + 2_000},
		"pair": webrtc.ICECandidatePairStats{
			AvailableOutgoingBitrate: 800_000,
		},
	}
	report = m.Collect(second, base.Add(2*time.Second))
	require.Len(t, report.Layers, 2)
	// Sorted by ID: out-a first.
	require.Equal(t, uint64(2_000*8/2), report.Layers[0].Bitrate)
	require.Equal(t, uint64(25_000*8/2), report.Layers[1].Bitrate)
	require.Equal(t, float64(800_000), report.AvailableOutgoing)
}

func TestCollectLimitationFromVideoLayers(t *testing.T) {
	m := NewBandwidthMonitor(nil, time.Second, nil)

	report := m.Collect(webrtc.StatsReport{
		"v1": webrtc.OutboundRTPStreamStats{ID: "v1", Kind: "video", QualityLimitationReason: "bandwidth"},
		"v2": webrtc.OutboundRTPStreamStats{ID: "v2", Kind: "video", QualityLimitationReason: "cpu"},
		"a1": webrtc.OutboundRTPStreamStats{ID: "a1", Kind: "audio", QualityLimitationReason: "bandwidth"},
	}, time.Now())

	require.Equal(t, LimitationBoth, report.Limitation)
}
