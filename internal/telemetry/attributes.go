// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// Frame attributes
	FrameWidthKey       = "frame.width"
	FrameHeightKey      = "frame.height"
	FramePixelFormatKey = "frame.pixel_format"
	FrameSizeBytesKey   = "frame.size_bytes"

	// Pool attributes
	PoolDescriptorKey = "pool.descriptor"
	PoolHitKey        = "pool.hit"
	PoolMemoryUsedKey = "pool.memory_used"

	// Codec attributes
	CodecNameKey    = "codec.name"
	CodecBackendKey = "codec.backend"

	// Media attributes
	MediaEngineKey    = "media.engine"
	MediaSourceKey    = "media.source"
	MediaTimestampKey = "media.timestamp_us"
	MediaSessionKey   = "media.session_id"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// FrameAttributes creates frame span attributes from descriptor fields.
func FrameAttributes(width, height uint32, pixelFormat string, sizeBytes int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(FrameWidthKey, int(width)),
		attribute.Int(FrameHeightKey, int(height)),
		attribute.String(FramePixelFormatKey, pixelFormat),
		attribute.Int64(FrameSizeBytesKey, sizeBytes),
	}
}

// PoolAttributes creates pool span attributes.
func PoolAttributes(descriptor string, hit bool, memoryUsed int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(PoolDescriptorKey, descriptor),
		attribute.Bool(PoolHitKey, hit),
		attribute.Int64(PoolMemoryUsedKey, memoryUsed),
	}
}

// CodecAttributes creates codec span attributes.
func CodecAttributes(codec, backend string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if codec != "" {
		attrs = append(attrs, attribute.String(CodecNameKey, codec))
	}
	if backend != "" {
		attrs = append(attrs, attribute.String(CodecBackendKey, backend))
	}
	return attrs
}

// MediaAttributes creates decode/encode span attributes.
func MediaAttributes(engine, source, sessionID string, timestampMicros int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(MediaEngineKey, engine),
		attribute.String(MediaSourceKey, source),
		attribute.String(MediaSessionKey, sessionID),
		attribute.Int64(MediaTimestampKey, timestampMicros),
	}
}

// ErrorAttributes creates error span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
