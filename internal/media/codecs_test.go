package media

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

func codec(mime string) webrtc.RTPCodecParameters {
	return webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: mime},
	}
}

func mimes(codecs []webrtc.RTPCodecParameters) []string {
	out := make([]string, len(codecs))
	for i, c := range codecs {
		out[i] = c.MimeType
	}
	return out
}

func TestOrderVideoCodecsPrefersChoice(t *testing.T) {
	in := []webrtc.RTPCodecParameters{
		codec(webrtc.MimeTypeH264),
		codec(webrtc.MimeTypeVP8),
		codec(webrtc.MimeTypeVP9),
		codec(webrtc.MimeTypeOpus),
		codec("audio/red"),
	}

	out := OrderVideoCodecs(in, "vp9")
	require.Equal(t, []string{
		webrtc.MimeTypeVP9,
		webrtc.MimeTypeH264,
		webrtc.MimeTypeVP8,
		webrtc.MimeTypeOpus,
		"audio/red",
	}, mimes(out))

	out = OrderVideoCodecs(in, "h264")
	require.Equal(t, webrtc.MimeTypeH264, out[0].MimeType)
	require.Len(t, out, len(in), "reorder must never drop codecs")

	// Input order is untouched.
	require.Equal(t, webrtc.MimeTypeH264, in[0].MimeType)
}

func TestOrderAudioCodecsRedundancy(t *testing.T) {
	in := []webrtc.RTPCodecParameters{
		codec(webrtc.MimeTypeOpus),
		codec("audio/red"),
		codec(webrtc.MimeTypeG722),
	}

	out := OrderAudioCodecs(in, true)
	require.Equal(t, []string{"audio/red", webrtc.MimeTypeOpus, webrtc.MimeTypeG722}, mimes(out))

	out = OrderAudioCodecs(in, false)
	require.Equal(t, []string{webrtc.MimeTypeOpus, "audio/red", webrtc.MimeTypeG722}, mimes(out))
}
