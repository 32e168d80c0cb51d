package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WIRECHAT_TOKEN", "tok")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "tok", cfg.Token)
	require.Equal(t, "livekit", cfg.Media)
	require.Equal(t, "vp8", cfg.VideoCodec)
	require.Equal(t, uint64(defaultMaxBitrate), cfg.MaxBitrate)
	require.False(t, cfg.Simulcast)
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("WIRECHAT_TOKEN", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadValidation(t *testing.T) {
	t.Setenv("WIRECHAT_TOKEN", "tok")

	t.Setenv("WIRECHAT_MEDIA", "webex")
	_, err := Load()
	require.Error(t, err)
	t.Setenv("WIRECHAT_MEDIA", "sfu")

	t.Setenv("WIRECHAT_VIDEO_CODEC", "av1")
	_, err = Load()
	require.Error(t, err)
	t.Setenv("WIRECHAT_VIDEO_CODEC", "vp9")

	t.Setenv("WIRECHAT_MAX_BITRATE", "-5")
	_, err = Load()
	require.Error(t, err)
	t.Setenv("WIRECHAT_MAX_BITRATE", "900000")

	t.Setenv("WIRECHAT_SIMULCAST", "true")
	t.Setenv("WIRECHAT_AUDIO_RED", "1")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sfu", cfg.Media)
	require.Equal(t, "vp9", cfg.VideoCodec)
	require.Equal(t, uint64(900000), cfg.MaxBitrate)
	require.True(t, cfg.Simulcast)
	require.True(t, cfg.AudioRED)
}
