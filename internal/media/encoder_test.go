// SPDX-License-Identifier: MIT

package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaforge/framecore/internal/codec"
	"github.com/mediaforge/framecore/internal/frame"
)

const nvencCodecsFixture = ` -------
 DEV.L. h264                 H.264 / AVC (decoders: h264 h264_cuvid ) (encoders: libx264 h264_nvenc )
 DEV.L. hevc                 H.265 / HEVC (decoders: hevc ) (encoders: libx265 hevc_nvenc )
`

type fixtureRunner struct{ codecs string }

func (r fixtureRunner) Run(_ context.Context, _ string, args ...string) ([]byte, error) {
	switch args[len(args)-1] {
	case "-codecs":
		return []byte(r.codecs), nil
	case "-version":
		return []byte("ffmpeg version 6.1.1\n"), nil
	default:
		return []byte("Hardware acceleration methods:\ncuda\n"), nil
	}
}

func nvencManager(t *testing.T) *codec.Manager {
	t.Helper()
	mgr := codec.NewManager(codec.Config{Runner: fixtureRunner{codecs: nvencCodecsFixture}})
	require.NoError(t, mgr.Detect(context.Background()))
	require.True(t, mgr.NVENCAvailable())
	return mgr
}

func TestNewNVENCEncoder(t *testing.T) {
	mgr := nvencManager(t)

	enc, err := NewNVENCEncoder(mgr, "ffmpeg", codec.IDH264)
	require.NoError(t, err)
	assert.Equal(t, "nvenc", enc.Engine())
	assert.Equal(t, "h264_nvenc", enc.vcodec)

	enc, err = NewNVENCEncoder(mgr, "ffmpeg", codec.IDHEVC)
	require.NoError(t, err)
	assert.Equal(t, "hevc_nvenc", enc.vcodec)

	_, err = NewNVENCEncoder(mgr, "ffmpeg", codec.IDVP9)
	assert.ErrorIs(t, err, ErrEncoderUnavailable)
}

func TestNewNVENCEncoderWithoutBackend(t *testing.T) {
	mgr := codec.NewManager(codec.Config{})
	_, err := NewNVENCEncoder(mgr, "ffmpeg", codec.IDH264)
	assert.ErrorIs(t, err, ErrEncoderUnavailable)
}

func TestNewSoftwareEncoder(t *testing.T) {
	enc, err := NewSoftwareEncoder("", codec.IDH264)
	require.NoError(t, err)
	assert.Equal(t, "software", enc.Engine())
	assert.Equal(t, "libx264", enc.vcodec)
	assert.Equal(t, "ffmpeg", enc.bin)

	enc, err = NewSoftwareEncoder("ffmpeg", codec.IDHEVC)
	require.NoError(t, err)
	assert.Equal(t, "libx265", enc.vcodec)

	_, err = NewSoftwareEncoder("ffmpeg", codec.IDAV1)
	assert.ErrorIs(t, err, ErrEncoderUnavailable)
}

func TestNewEncoderPrefersNVENC(t *testing.T) {
	enc, err := NewEncoder(nvencManager(t), "ffmpeg", codec.IDH264)
	require.NoError(t, err)
	assert.Equal(t, "nvenc", enc.Engine())
}

func TestNewEncoderFallsBackToSoftware(t *testing.T) {
	mgr := codec.NewManager(codec.Config{})
	enc, err := NewEncoder(mgr, "ffmpeg", codec.IDH264)
	require.NoError(t, err)
	assert.Equal(t, "software", enc.Engine())
	assert.Equal(t, "libx264", enc.vcodec)
}

func TestBuildEncodeArgs(t *testing.T) {
	cfg := EncoderConfig{
		Output:  "out.mp4",
		Desc:    frame.MustDescriptor(1920, 1080, frame.FormatYUV420P),
		FPS:     60,
		Bitrate: "8M",
	}
	args := BuildEncodeArgs("h264_nvenc", cfg)
	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "yuv420p",
		"-s", "1920x1080",
		"-r", "60",
		"-i", "pipe:0",
		"-c:v", "h264_nvenc",
		"-b:v", "8M",
		"-progress", "pipe:2", "-nostats", "-y",
		"out.mp4",
	}, args)
}

func TestEncodeSessionStallKillsProcess(t *testing.T) {
	dir := t.TempDir()
	// Stand-in encoder binary: drains stdin, then hangs without ever
	// writing progress output.
	bin := filepath.Join(dir, "ffmpeg-hang")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\ncat >/dev/null\nsleep 60\n"), 0o755))

	enc, err := NewSoftwareEncoder(bin, codec.IDH264)
	require.NoError(t, err)
	enc.startTimeout = 50 * time.Millisecond
	enc.stallTimeout = 50 * time.Millisecond

	session, err := enc.Start(context.Background(), EncoderConfig{
		Output: filepath.Join(dir, "out.mp4"),
		Desc:   frame.MustDescriptor(4, 4, frame.FormatGray8),
		FPS:    30,
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- session.Close() }()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrStalled)
	case <-time.After(15 * time.Second):
		t.Fatal("Close did not return after the watchdog fired")
	}
	assert.Equal(t, StateTimedOut, session.watchdog.State())
}

func TestBuildEncodeArgsOmitsEmptyBitrate(t *testing.T) {
	cfg := EncoderConfig{
		Output: "out.mkv",
		Desc:   frame.MustDescriptor(640, 480, frame.FormatRGBA),
		FPS:    24,
	}
	args := BuildEncodeArgs("libx264", cfg)
	assert.NotContains(t, args, "-b:v")
	assert.Contains(t, args, "rgba")
}
