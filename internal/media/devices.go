package media

import (
	"fmt"
	"sync"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	_ "github.com/pion/mediadevices/pkg/driver/screen"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
)

// LocalMedia owns the local capture devices. Each device kind maps to at most
// one live track: enabling twice reuses the track, disabling without a track
// is a no-op. Device failures are independent per kind.
type LocalMedia struct {
	log      *logrus.Entry
	selector *mediadevices.CodecSelector

	mu     sync.Mutex
	mic    mediadevices.Track
	camera mediadevices.Track
	screen mediadevices.Track
}

// NewLocalMedia builds the capture layer with a VP8 or VP9 encoder at
// maxBitrate plus Opus audio.
func NewLocalMedia(videoCodec string, maxBitrate uint64) (*LocalMedia, error) {
	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus params: %w", err)
	}

	var videoEncoder mediadevices.CodecSelectorOption
	switch videoCodec {
	case "vp9":
		params, err := vpx.NewVP9Params()
		if err != nil {
			return nil, fmt.Errorf("vp9 params: %w", err)
		}
		params.BitRate = int(maxBitrate)
		videoEncoder = mediadevices.WithVideoEncoders(&params)
	default:
		params, err := vpx.NewVP8Params()
		if err != nil {
			return nil, fmt.Errorf("vp8 params: %w", err)
		}
		params.BitRate = int(maxBitrate)
		videoEncoder = mediadevices.WithVideoEncoders(&params)
	}

	selector := mediadevices.NewCodecSelector(
		videoEncoder,
		mediadevices.WithAudioEncoders(&opusParams),
	)

	return &LocalMedia{
		log:      logrus.WithField("component", "devices"),
		selector: selector,
	}, nil
}

// Populate registers the capture codecs on a media engine so a raw peer
// connection can negotiate them.
func (l *LocalMedia) Populate(me *webrtc.MediaEngine) {
	l.selector.Populate(me)
}

// EnableMic acquires the microphone, reusing the existing track when one is
// already live.
func (l *LocalMedia) EnableMic() (mediadevices.Track, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mic != nil {
		return l.mic, nil
	}

	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Audio: func(_ *mediadevices.MediaTrackConstraints) {},
		Codec: l.selector,
	})
	if err != nil {
		return nil, fmt.Errorf("open microphone: %w", err)
	}
	tracks := stream.GetAudioTracks()
	if len(tracks) == 0 {
		return nil, fmt.Errorf("open microphone: no audio track")
	}
	l.mic = tracks[0]
	l.log.Info("microphone captured")
	return l.mic, nil
}

// DisableMic releases the microphone track. No-op when not captured.
func (l *LocalMedia) DisableMic() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mic != nil {
		_ = l.mic.Close()
		l.mic = nil
	}
}

// EnableCamera acquires the camera, reusing the existing track when live.
// MJPEG nodes are excluded; some cameras expose MJPEG V4L2 nodes that emit
// malformed frames and poison the encoder.
func (l *LocalMedia) EnableCamera() (mediadevices.Track, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.camera != nil {
		return l.camera, nil
	}

	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			c.FrameFormat = prop.FrameFormatOneOf{
				frame.FormatYUYV,
				frame.FormatI420,
				frame.FormatI444,
				frame.FormatRGBA,
			}
			c.Width = prop.IntRanged{Max: 1280}
			c.Height = prop.IntRanged{Max: 720}
		},
		Codec: l.selector,
	})
	if err != nil {
		return nil, fmt.Errorf("open camera: %w", err)
	}
	tracks := stream.GetVideoTracks()
	if len(tracks) == 0 {
		return nil, fmt.Errorf("open camera: no video track")
	}
	l.camera = tracks[0]
	l.log.Info("camera captured")
	return l.camera, nil
}

// DisableCamera releases the camera track. No-op when not captured.
func (l *LocalMedia) DisableCamera() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.camera != nil {
		_ = l.camera.Close()
		l.camera = nil
	}
}

// EnableScreen acquires a screen capture track, reusing the existing one.
func (l *LocalMedia) EnableScreen() (mediadevices.Track, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.screen != nil {
		return l.screen, nil
	}

	stream, err := mediadevices.GetDisplayMedia(mediadevices.MediaStreamConstraints{
		Video: func(_ *mediadevices.MediaTrackConstraints) {},
		Codec: l.selector,
	})
	if err != nil {
		return nil, fmt.Errorf("open screen capture: %w", err)
	}
	tracks := stream.GetVideoTracks()
	if len(tracks) == 0 {
		return nil, fmt.Errorf("open screen capture: no video track")
	}
	l.screen = tracks[0]
	l.log.Info("screen captured")
	return l.screen, nil
}

// DisableScreen releases the screen track. No-op when not captured.
func (l *LocalMedia) DisableScreen() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.screen != nil {
		_ = l.screen.Close()
		l.screen = nil
	}
}

// Close releases every live track.
func (l *LocalMedia) Close() {
	l.DisableMic()
	l.DisableCamera()
	l.DisableScreen()
}
