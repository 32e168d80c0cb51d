package media

import (
	"strings"

	"github.com/pion/webrtc/v4"
)

// OrderVideoCodecs moves every codec matching the preferred mime type to the
// front, keeping the original relative order of everything else. Codecs are
// only reordered, never removed. preferred is one of "vp8", "vp9", "h264".
func OrderVideoCodecs(codecs []webrtc.RTPCodecParameters, preferred string) []webrtc.RTPCodecParameters {
	var mime string
	switch strings.ToLower(preferred) {
	case "vp9":
		mime = webrtc.MimeTypeVP9
	case "h264":
		mime = webrtc.MimeTypeH264
	default:
		mime = webrtc.MimeTypeVP8
	}
	return partitionByMime(codecs, mime)
}

// OrderAudioCodecs places the redundancy codec before Opus when red is
// enabled. Opus stays present either way.
func OrderAudioCodecs(codecs []webrtc.RTPCodecParameters, red bool) []webrtc.RTPCodecParameters {
	if !red {
		return append([]webrtc.RTPCodecParameters(nil), codecs...)
	}
	ordered := partitionByMime(codecs, "audio/red")
	return ordered
}

// partitionByMime is a stable partition: codecs whose mime type matches come
// first, the rest follow in their original order.
func partitionByMime(codecs []webrtc.RTPCodecParameters, mime string) []webrtc.RTPCodecParameters {
	matched := make([]webrtc.RTPCodecParameters, 0, len(codecs))
	rest := make([]webrtc.RTPCodecParameters, 0, len(codecs))
	for _, c := range codecs {
		if strings.EqualFold(c.MimeType, mime) {
			matched = append(matched, c)
		} else {
			rest = append(rest, c)
		}
	}
	return append(matched, rest...)
}
