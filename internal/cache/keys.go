// SPDX-License-Identifier: MIT

package cache

import (
	"fmt"
	"strings"
)

// FrameKey builds the cache key for a decoded frame of a source file at a
// given timestamp. Plain concatenation: identical inputs must produce
// identical keys, or cache hits never happen.
func FrameKey(filePath string, timestamp int64) string {
	return fmt.Sprintf("%s:%d", filePath, timestamp)
}

// EffectKey builds the cache key for an effect output given its parameter
// values in a stable order.
func EffectKey(effectID string, params ...string) string {
	if len(params) == 0 {
		return effectID
	}
	return effectID + ":" + strings.Join(params, ":")
}
