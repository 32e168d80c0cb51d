package media

import "github.com/pion/webrtc/v4"

// SimulcastLayer describes one published encoding of a simulcast track.
type SimulcastLayer struct {
	RID          string
	ScaleDown    float64
	MaxBitrate   uint64
	MaxFramerate float64
}

// SimulcastLayers returns the fixed three-layer layout: full resolution at
// maxBitrate, half resolution at half bitrate, quarter resolution at quarter
// bitrate, all capped at maxFramerate.
func SimulcastLayers(maxBitrate uint64, maxFramerate float64) []SimulcastLayer {
	return []SimulcastLayer{
		{RID: "f", ScaleDown: 1, MaxBitrate: maxBitrate, MaxFramerate: maxFramerate},
		{RID: "h", ScaleDown: 2, MaxBitrate: maxBitrate / 2, MaxFramerate: maxFramerate},
		{RID: "q", ScaleDown: 4, MaxBitrate: maxBitrate / 4, MaxFramerate: maxFramerate},
	}
}

// EncodingParameters converts the layer layout into transceiver send
// encodings, ordered lowest layer first as the SDP convention expects.
func EncodingParameters(layers []SimulcastLayer) []webrtc.RTPEncodingParameters {
	params := make([]webrtc.RTPEncodingParameters, 0, len(layers))
	for i := len(layers) - 1; i >= 0; i-- {
		params = append(params, webrtc.RTPEncodingParameters{
			RTPCodingParameters: webrtc.RTPCodingParameters{
				RID: layers[i].RID,
			},
		})
	}
	return params
}
