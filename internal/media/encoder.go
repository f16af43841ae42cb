// SPDX-License-Identifier: MIT

package media

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mediaforge/framecore/internal/codec"
	"github.com/mediaforge/framecore/internal/frame"
	"github.com/mediaforge/framecore/internal/log"
	"github.com/mediaforge/framecore/internal/metrics"
)

// EncoderConfig describes one encode session.
type EncoderConfig struct {
	Output  string
	Desc    frame.Descriptor
	FPS     int
	Bitrate string // ffmpeg bitrate spec, e.g. "8M"
	Codec   codec.ID
}

// Encoder turns raw frame payloads into an encoded output file.
type Encoder struct {
	bin    string
	engine string
	vcodec string
	logger zerolog.Logger

	startTimeout time.Duration
	stallTimeout time.Duration
}

// NewNVENCEncoder builds an NVENC-backed encoder, failing with
// ErrEncoderUnavailable when the backend is absent.
func NewNVENCEncoder(mgr *codec.Manager, ffmpegPath string, id codec.ID) (*Encoder, error) {
	if !mgr.NVENCAvailable() {
		return nil, fmt.Errorf("%w: nvenc backend not detected", ErrEncoderUnavailable)
	}
	vcodec, err := nvencCodec(id)
	if err != nil {
		return nil, err
	}
	return newEncoder(ffmpegPath, "nvenc", vcodec), nil
}

// NewSoftwareEncoder builds the libx264/libx265 fallback encoder.
func NewSoftwareEncoder(ffmpegPath string, id codec.ID) (*Encoder, error) {
	var vcodec string
	switch id {
	case codec.IDH264:
		vcodec = "libx264"
	case codec.IDHEVC:
		vcodec = "libx265"
	default:
		return nil, fmt.Errorf("%w: no software encoder for codec id %d", ErrEncoderUnavailable, id)
	}
	return newEncoder(ffmpegPath, "software", vcodec), nil
}

// NewEncoder prefers NVENC and falls back to software when the backend is
// unavailable.
func NewEncoder(mgr *codec.Manager, ffmpegPath string, id codec.ID) (*Encoder, error) {
	if enc, err := NewNVENCEncoder(mgr, ffmpegPath, id); err == nil {
		return enc, nil
	}
	return NewSoftwareEncoder(ffmpegPath, id)
}

func newEncoder(bin, engine, vcodec string) *Encoder {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &Encoder{
		bin:          bin,
		engine:       engine,
		vcodec:       vcodec,
		logger:       log.WithComponent("encoder"),
		startTimeout: 15 * time.Second,
		stallTimeout: 30 * time.Second,
	}
}

// Engine names the encode implementation.
func (e *Encoder) Engine() string { return e.engine }

func nvencCodec(id codec.ID) (string, error) {
	switch id {
	case codec.IDH264:
		return "h264_nvenc", nil
	case codec.IDHEVC:
		return "hevc_nvenc", nil
	default:
		return "", fmt.Errorf("%w: nvenc does not implement codec id %d", ErrEncoderUnavailable, id)
	}
}

// EncodeSession is one running ffmpeg encode process fed frame by frame.
type EncodeSession struct {
	ID string

	cmd      *exec.Cmd
	stdin    io.WriteCloser
	watchdog *Watchdog
	group    *errgroup.Group
	cancel   context.CancelFunc

	engine string
	logger zerolog.Logger
	start  time.Time
}

// Start launches the encode process. The caller streams payloads with
// WriteFrame and finishes with Close.
func (e *Encoder) Start(ctx context.Context, cfg EncoderConfig) (*EncodeSession, error) {
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	args := BuildEncodeArgs(e.vcodec, cfg)

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)

	// The command runs on the group's context so a watchdog error kills
	// the process instead of only reporting the stall.
	cmd := exec.CommandContext(gctx, e.bin, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		metrics.MediaErrors.WithLabelValues(e.engine, "spawn").Inc()
		return nil, fmt.Errorf("start %s: %w", e.bin, err)
	}

	s := &EncodeSession{
		ID:       uuid.NewString(),
		cmd:      cmd,
		stdin:    stdin,
		watchdog: NewWatchdog(e.startTimeout, e.stallTimeout),
		cancel:   cancel,
		engine:   e.engine,
		start:    time.Now(),
	}
	s.logger = e.logger.With().Str(log.FieldSessionID, s.ID).Str(log.FieldEncoder, e.vcodec).Logger()

	s.group = g
	g.Go(func() error { return s.watchdog.Run(gctx) })
	g.Go(func() error {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			s.watchdog.ParseLine(scanner.Text())
		}
		return nil
	})

	s.logger.Info().Str("output", cfg.Output).Msg("encode session started")
	return s, nil
}

// WriteFrame feeds one raw frame payload to the encoder.
func (s *EncodeSession) WriteFrame(payload []byte) error {
	_, err := s.stdin.Write(payload)
	return err
}

// Close finishes the stream and waits for the process and watchers. A
// stalled process has already been killed through the shared context by
// the time Wait returns; the stall error takes precedence over the kill's
// exit status.
func (s *EncodeSession) Close() error {
	_ = s.stdin.Close()
	waitErr := s.cmd.Wait()
	s.cancel()
	groupErr := s.group.Wait()

	metrics.EncodeDuration.WithLabelValues(s.engine).Observe(time.Since(s.start).Seconds())
	if errors.Is(groupErr, ErrStalled) {
		metrics.MediaErrors.WithLabelValues(s.engine, "stall").Inc()
		s.logger.Warn().Msg("encoder stalled, process killed")
		return fmt.Errorf("encode session: %w", groupErr)
	}
	if waitErr != nil {
		metrics.MediaErrors.WithLabelValues(s.engine, "exit").Inc()
		return fmt.Errorf("encoder exited: %w", waitErr)
	}
	if groupErr != nil && !errors.Is(groupErr, context.Canceled) {
		return groupErr
	}
	s.logger.Info().Msg("encode session complete")
	return nil
}

// BuildEncodeArgs assembles the rawvideo-in, encoded-file-out argument
// list. Exported for argument-building tests.
func BuildEncodeArgs(vcodec string, cfg EncoderConfig) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", cfg.Desc.PixelFormat.String(),
		"-s", fmt.Sprintf("%dx%d", cfg.Desc.Width, cfg.Desc.Height),
		"-r", strconv.Itoa(cfg.FPS),
		"-i", "pipe:0",
		"-c:v", vcodec,
	}
	if cfg.Bitrate != "" {
		args = append(args, "-b:v", cfg.Bitrate)
	}
	args = append(args, "-progress", "pipe:2", "-nostats", "-y", cfg.Output)
	return args
}
