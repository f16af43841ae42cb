// SPDX-License-Identifier: MIT

package frame

import "fmt"

// Descriptor identifies the shape and format of a frame buffer. Two frames
// with equal descriptors are interchangeable: identity covers width, height
// and pixel format only. SizeBytes and Alignment are derived allocation
// hints, not identity.
type Descriptor struct {
	Width       uint32
	Height      uint32
	PixelFormat PixelFormat
	SizeBytes   int64
	Alignment   uint32
}

// Identity is the comparable identity of a Descriptor, usable as a map key.
type Identity struct {
	Width       uint32
	Height      uint32
	PixelFormat PixelFormat
}

const defaultAlignment = 256

// NewDescriptor builds a descriptor for the given shape, computing the
// aligned allocation size.
func NewDescriptor(width, height uint32, format PixelFormat) (Descriptor, error) {
	if width == 0 || height == 0 {
		return Descriptor{}, fmt.Errorf("invalid dimensions %dx%d", width, height)
	}
	size, err := format.PlaneSize(width, height)
	if err != nil {
		return Descriptor{}, err
	}
	return Descriptor{
		Width:       width,
		Height:      height,
		PixelFormat: format,
		SizeBytes:   alignUp(size, defaultAlignment),
		Alignment:   defaultAlignment,
	}, nil
}

// MustDescriptor is NewDescriptor for statically known shapes.
func MustDescriptor(width, height uint32, format PixelFormat) Descriptor {
	d, err := NewDescriptor(width, height, format)
	if err != nil {
		panic(err)
	}
	return d
}

// Identity returns the identity-bearing fields of the descriptor.
func (d Descriptor) Identity() Identity {
	return Identity{Width: d.Width, Height: d.Height, PixelFormat: d.PixelFormat}
}

// Equal reports whether two descriptors identify the same bucket.
func (d Descriptor) Equal(other Descriptor) bool {
	return d.Identity() == other.Identity()
}

// String returns a compact "WxH/format" label for logs and stats.
func (d Descriptor) String() string {
	return fmt.Sprintf("%dx%d/%s", d.Width, d.Height, d.PixelFormat)
}

func alignUp(n, align int64) int64 {
	return (n + align - 1) / align * align
}
