package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	Token    string
	Username string
	WSURL    string
	APIURL   string

	// Media selects the transport adapter: "livekit" (managed) or "sfu" (raw).
	Media string

	// VideoCodec is the preferred video codec for raw sessions: vp8, vp9 or h264.
	VideoCodec string
	// AudioRED enables audio redundancy preference when the backend offers it.
	AudioRED bool
	// Simulcast enables layered video publishing on raw sessions.
	Simulcast bool

	// MaxBitrate is the top simulcast layer bitrate in bits per second.
	MaxBitrate uint64
	// MaxFramerate is the top simulcast layer framerate.
	MaxFramerate float64

	// DumpVideo is a file path to write received H264 video to, empty to disable.
	DumpVideo string
}

const (
	defaultWSURL        = "ws://localhost:8080/ws"
	defaultAPIURL       = "http://localhost:8080/api"
	defaultMedia        = "livekit"
	defaultVideoCodec   = "vp8"
	defaultMaxBitrate   = 1_200_000
	defaultMaxFramerate = 30
)

// Load reads configuration from a .env file (if present) and environment variables.
// Environment variables take precedence over .env values.
func Load() (*Config, error) {
	// godotenv.Load does not overwrite existing env vars
	_ = godotenv.Load()

	token := os.Getenv("WIRECHAT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("WIRECHAT_TOKEN environment variable is required")
	}

	cfg := &Config{
		Token:        token,
		Username:     os.Getenv("WIRECHAT_USER"),
		WSURL:        getEnv("WIRECHAT_WS_URL", defaultWSURL),
		APIURL:       getEnv("WIRECHAT_API_URL", defaultAPIURL),
		Media:        strings.ToLower(getEnv("WIRECHAT_MEDIA", defaultMedia)),
		VideoCodec:   strings.ToLower(getEnv("WIRECHAT_VIDEO_CODEC", defaultVideoCodec)),
		AudioRED:     getBool("WIRECHAT_AUDIO_RED"),
		Simulcast:    getBool("WIRECHAT_SIMULCAST"),
		MaxBitrate:   defaultMaxBitrate,
		MaxFramerate: defaultMaxFramerate,
		DumpVideo:    os.Getenv("WIRECHAT_DUMP_VIDEO"),
	}

	if cfg.Media != "livekit" && cfg.Media != "sfu" {
		return nil, fmt.Errorf("WIRECHAT_MEDIA must be livekit or sfu, got %q", cfg.Media)
	}

	switch cfg.VideoCodec {
	case "vp8", "vp9", "h264":
	default:
		return nil, fmt.Errorf("WIRECHAT_VIDEO_CODEC must be vp8, vp9 or h264, got %q", cfg.VideoCodec)
	}

	if v := os.Getenv("WIRECHAT_MAX_BITRATE"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("WIRECHAT_MAX_BITRATE must be a positive integer, got %q", v)
		}
		cfg.MaxBitrate = n
	}

	if v := os.Getenv("WIRECHAT_MAX_FPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("WIRECHAT_MAX_FPS must be a positive number, got %q", v)
		}
		cfg.MaxFramerate = f
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
