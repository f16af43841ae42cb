// SPDX-License-Identifier: MIT

package media

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediaforge/framecore/internal/log"
)

// WatchdogState tracks where an ffmpeg process is in its lifecycle.
type WatchdogState int

const (
	StateStarting WatchdogState = iota
	StateRunning
	StateStalled
	StateTimedOut
	StateCompleted
)

type wclock interface {
	Now() time.Time
	NewTicker(d time.Duration) wticker
}

type wticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) Now() time.Time                    { return time.Now() }
func (realClock) NewTicker(d time.Duration) wticker { return &realTicker{time.NewTicker(d)} }

type realTicker struct {
	*time.Ticker
}

func (rt *realTicker) C() <-chan time.Time { return rt.Ticker.C }

// Watchdog monitors ffmpeg progress output and enforces start and stall
// timeouts. Feed it lines from the -progress pipe via ParseLine while Run
// watches for silence.
type Watchdog struct {
	mu sync.RWMutex

	startTimeout time.Duration
	stallTimeout time.Duration

	lastOutTimeMs int64
	lastTotalSize int64
	lastHeartbeat time.Time

	state       WatchdogState
	hasProgress bool

	cancel context.CancelFunc

	clock  wclock
	logger zerolog.Logger
}

// NewWatchdog creates a watchdog with the given timeouts.
func NewWatchdog(startTimeout, stallTimeout time.Duration) *Watchdog {
	return &Watchdog{
		startTimeout: startTimeout,
		stallTimeout: stallTimeout,
		clock:        realClock{},
		logger:       log.WithComponent("watchdog"),
	}
}

// Run watches for progress until ctx is cancelled or a timeout fires. It
// returns ErrStalled when the process stops producing output.
func (w *Watchdog) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.lastHeartbeat = w.clock.Now()
	w.state = StateStarting
	w.mu.Unlock()

	ticker := w.clock.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			if err := w.check(); err != nil {
				return err
			}
		}
	}
}

// ParseLine processes one key=value line from the ffmpeg -progress pipe.
func (w *Watchdog) ParseLine(line string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	key, val, ok := strings.Cut(line, "=")
	if !ok {
		return
	}
	key = strings.TrimSpace(key)
	val = strings.TrimSpace(val)

	switch key {
	case "out_time_ms":
		ms, _ := strconv.ParseInt(val, 10, 64)
		if ms > w.lastOutTimeMs {
			w.lastOutTimeMs = ms
			w.heartbeatLocked()
		}
	case "total_size":
		size, _ := strconv.ParseInt(val, 10, 64)
		if size > w.lastTotalSize {
			w.lastTotalSize = size
			w.heartbeatLocked()
		}
	case "progress":
		if val == "end" {
			w.state = StateCompleted
			if w.cancel != nil {
				w.cancel()
			}
		}
	}
}

func (w *Watchdog) heartbeatLocked() {
	w.lastHeartbeat = w.clock.Now()
	if !w.hasProgress && (w.lastOutTimeMs > 0 || w.lastTotalSize > 0) {
		w.hasProgress = true
		w.state = StateRunning
		w.logger.Debug().Msg("ffmpeg progress detected")
	}
}

func (w *Watchdog) check() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	elapsed := w.clock.Now().Sub(w.lastHeartbeat)
	switch w.state {
	case StateStarting:
		if elapsed > w.startTimeout {
			w.state = StateTimedOut
			return ErrStalled
		}
	case StateRunning:
		if elapsed > w.stallTimeout {
			w.state = StateStalled
			return ErrStalled
		}
	}
	return nil
}

// State returns the current watchdog state.
func (w *Watchdog) State() WatchdogState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}
