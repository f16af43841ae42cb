// SPDX-License-Identifier: MIT

// Package frame defines the GPU frame descriptor and the reference-counted
// frame buffer that the pool and cache layers manage.
package frame

import "errors"

// ErrUnsupportedFormat is returned when a descriptor names a pixel format
// the backing allocator cannot express.
var ErrUnsupportedFormat = errors.New("unsupported pixel format")

// PixelFormat identifies the byte layout class of a frame buffer.
type PixelFormat int

const (
	FormatUnknown PixelFormat = iota
	FormatRGBA
	FormatBGRA
	FormatRGB24
	FormatYUV420P
	FormatNV12
	FormatYUV422P
	FormatGray8
)

// String returns the ffmpeg-style name of the pixel format.
func (f PixelFormat) String() string {
	switch f {
	case FormatRGBA:
		return "rgba"
	case FormatBGRA:
		return "bgra"
	case FormatRGB24:
		return "rgb24"
	case FormatYUV420P:
		return "yuv420p"
	case FormatNV12:
		return "nv12"
	case FormatYUV422P:
		return "yuv422p"
	case FormatGray8:
		return "gray8"
	default:
		return "unknown"
	}
}

// ParsePixelFormat maps an ffmpeg pixel format name to a PixelFormat.
func ParsePixelFormat(name string) (PixelFormat, error) {
	switch name {
	case "rgba":
		return FormatRGBA, nil
	case "bgra":
		return FormatBGRA, nil
	case "rgb24":
		return FormatRGB24, nil
	case "yuv420p", "yuvj420p":
		return FormatYUV420P, nil
	case "nv12":
		return FormatNV12, nil
	case "yuv422p", "yuvj422p":
		return FormatYUV422P, nil
	case "gray", "gray8":
		return FormatGray8, nil
	default:
		return FormatUnknown, ErrUnsupportedFormat
	}
}

// PlaneSize returns the total payload size in bytes of a w×h image in this
// format. Subsampled formats account for their chroma planes.
func (f PixelFormat) PlaneSize(width, height uint32) (int64, error) {
	w, h := int64(width), int64(height)
	switch f {
	case FormatRGBA, FormatBGRA:
		return w * h * 4, nil
	case FormatRGB24:
		return w * h * 3, nil
	case FormatYUV420P, FormatNV12:
		return w*h + 2*(w/2)*(h/2), nil
	case FormatYUV422P:
		return w*h + 2*(w/2)*h, nil
	case FormatGray8:
		return w * h, nil
	default:
		return 0, ErrUnsupportedFormat
	}
}

// BytesPerPixel returns the packed per-pixel byte count used for CPU
// readback buffers. Planar formats report their luma plane stride.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case FormatRGBA, FormatBGRA:
		return 4
	case FormatRGB24:
		return 3
	default:
		return 1
	}
}

// FrameType classifies a decoded picture.
type FrameType int

const (
	TypeUnknown FrameType = iota
	TypeI
	TypeP
	TypeB
)

// String returns the single-letter picture type.
func (t FrameType) String() string {
	switch t {
	case TypeI:
		return "I"
	case TypeP:
		return "P"
	case TypeB:
		return "B"
	default:
		return "?"
	}
}
