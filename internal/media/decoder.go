// SPDX-License-Identifier: MIT

// Package media wraps ffmpeg processes as decode and encode engines. Each
// engine consults the codec registry for hardware availability and decodes
// to (or encodes from) raw frame payloads that higher layers move in and
// out of pooled GPU frames.
package media

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediaforge/framecore/internal/codec"
	"github.com/mediaforge/framecore/internal/frame"
	"github.com/mediaforge/framecore/internal/log"
	"github.com/mediaforge/framecore/internal/metrics"
)

// Decoder extracts raw frames from a media file.
type Decoder interface {
	// DecodeFrame returns the raw payload of the frame at the given
	// timestamp, converted to the descriptor's pixel format and size.
	DecodeFrame(ctx context.Context, file string, ts time.Duration, desc frame.Descriptor) ([]byte, error)

	// Engine names the underlying implementation ("ffmpeg", "nvdec").
	Engine() string
}

// FFmpegDecoder is the software decode engine.
type FFmpegDecoder struct {
	bin    string
	runner codec.Runner
	codecs *codec.Manager
	logger zerolog.Logger

	// hwArgs are inserted before -i by hardware engines.
	hwArgs []string
	engine string
}

// NewFFmpegDecoder builds the software decoder. The codec manager is used
// for input format validation only; software decode needs no backend.
func NewFFmpegDecoder(mgr *codec.Manager, ffmpegPath string, runner codec.Runner) *FFmpegDecoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if runner == nil {
		runner = codec.ExecRunner{}
	}
	return &FFmpegDecoder{
		bin:    ffmpegPath,
		runner: runner,
		codecs: mgr,
		logger: log.WithComponent("decoder"),
		engine: "ffmpeg",
	}
}

// NewNVDECDecoder builds a CUDA/NVDEC-accelerated decoder. Fails with
// ErrDecoderUnavailable when the backend was not detected; callers fall
// back to NewFFmpegDecoder.
func NewNVDECDecoder(mgr *codec.Manager, ffmpegPath string, runner codec.Runner) (*FFmpegDecoder, error) {
	if !mgr.NVDECAvailable() {
		return nil, fmt.Errorf("%w: nvdec backend not detected", ErrDecoderUnavailable)
	}
	d := NewFFmpegDecoder(mgr, ffmpegPath, runner)
	d.hwArgs = []string{"-hwaccel", "cuda"}
	d.engine = "nvdec"
	return d, nil
}

// Engine names the decode implementation.
func (d *FFmpegDecoder) Engine() string { return d.engine }

// DecodeFrame extracts one frame at ts as rawvideo in the descriptor's
// format. Synchronous; the returned payload is exactly desc's plane size.
func (d *FFmpegDecoder) DecodeFrame(ctx context.Context, file string, ts time.Duration, desc frame.Descriptor) ([]byte, error) {
	session := uuid.NewString()
	args := BuildDecodeArgs(d.hwArgs, file, ts, desc)

	start := time.Now()
	out, err := d.runner.Run(ctx, d.bin, args...)
	metrics.DecodeDuration.WithLabelValues(d.engine).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MediaErrors.WithLabelValues(d.engine, "exec").Inc()
		return nil, fmt.Errorf("decode %s at %s: %w", file, ts, err)
	}

	want, perr := desc.PixelFormat.PlaneSize(desc.Width, desc.Height)
	if perr != nil {
		return nil, perr
	}
	if int64(len(out)) < want {
		metrics.MediaErrors.WithLabelValues(d.engine, "short_frame").Inc()
		d.logger.Debug().
			Str(log.FieldSessionID, session).
			Str("file", file).
			Dur("ts", ts).
			Int("bytes", len(out)).
			Msg("decode produced no full frame")
		return nil, ErrNoFrame
	}
	return out[:want], nil
}

// DecodeInto decodes the frame at ts directly into a pooled frame's device
// memory.
func (d *FFmpegDecoder) DecodeInto(ctx context.Context, file string, ts time.Duration, f *frame.Frame) error {
	payload, err := d.DecodeFrame(ctx, file, ts, f.Descriptor())
	if err != nil {
		return err
	}
	f.Timestamp = ts.Microseconds()
	return f.Upload(payload)
}

// BuildDecodeArgs assembles the ffmpeg argument list for a single-frame
// rawvideo extraction. Exported for argument-building tests.
func BuildDecodeArgs(hwArgs []string, file string, ts time.Duration, desc frame.Descriptor) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, hwArgs...)
	args = append(args,
		"-ss", formatSeekPoint(ts),
		"-i", file,
		"-frames:v", "1",
		"-f", "rawvideo",
		"-pix_fmt", desc.PixelFormat.String(),
		"-s", fmt.Sprintf("%dx%d", desc.Width, desc.Height),
		"pipe:1",
	)
	return args
}

func formatSeekPoint(ts time.Duration) string {
	return strconv.FormatFloat(ts.Seconds(), 'f', 6, 64)
}
