// SPDX-License-Identifier: MIT

package pool

import "errors"

var (
	// ErrBudgetExceeded is returned when an allocation would push the pool
	// past its GPU memory budget. Recoverable: release frames and retry.
	ErrBudgetExceeded = errors.New("gpu memory budget exceeded")

	// ErrPoolClosed is returned for operations on a closed pool.
	ErrPoolClosed = errors.New("frame pool closed")
)
