// SPDX-License-Identifier: MIT

package media

import "errors"

var (
	// ErrDecoderUnavailable is returned when the requested decode engine's
	// hardware backend was not detected.
	ErrDecoderUnavailable = errors.New("decoder unavailable")

	// ErrEncoderUnavailable is returned when the requested encode engine's
	// hardware backend was not detected.
	ErrEncoderUnavailable = errors.New("encoder unavailable")

	// ErrStalled is returned when an ffmpeg process stops making progress
	// past the watchdog's stall timeout.
	ErrStalled = errors.New("media process stalled")

	// ErrNoFrame is returned when a decode produced no payload (seek past
	// end of stream, corrupt input).
	ErrNoFrame = errors.New("no frame decoded")
)
