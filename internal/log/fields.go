// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Process fields
	FieldComponent = "component"
	FieldEvent     = "event"
	FieldSessionID = "session_id"

	// Frame / pool fields
	FieldDescriptor  = "descriptor"
	FieldPixelFormat = "pixel_format"
	FieldResolution  = "resolution"
	FieldFrameBytes  = "frame_bytes"
	FieldPoolUsed    = "pool_used_bytes"
	FieldPoolBudget  = "pool_budget_bytes"

	// Codec / hardware fields
	FieldCodec   = "codec"
	FieldBackend = "backend"
	FieldDevice  = "device"
	FieldEncoder = "encoder"
	FieldDecoder = "decoder"
)
