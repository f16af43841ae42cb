// SPDX-License-Identifier: MIT

package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaneSize(t *testing.T) {
	tests := []struct {
		name   string
		format PixelFormat
		w, h   uint32
		want   int64
	}{
		{"rgba 1080p", FormatRGBA, 1920, 1080, 1920 * 1080 * 4},
		{"bgra 720p", FormatBGRA, 1280, 720, 1280 * 720 * 4},
		{"rgb24", FormatRGB24, 640, 480, 640 * 480 * 3},
		{"yuv420p 1080p", FormatYUV420P, 1920, 1080, 1920*1080 + 2*960*540},
		{"nv12 1080p", FormatNV12, 1920, 1080, 1920*1080 + 2*960*540},
		{"yuv422p", FormatYUV422P, 1920, 1080, 1920*1080 + 2*960*1080},
		{"gray8", FormatGray8, 100, 50, 100 * 50},
		{"odd dimensions round chroma down", FormatYUV420P, 3, 3, 9 + 2*1*1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.format.PlaneSize(tt.w, tt.h)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlaneSizeUnknownFormat(t *testing.T) {
	_, err := FormatUnknown.PlaneSize(16, 16)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParsePixelFormat(t *testing.T) {
	tests := []struct {
		in   string
		want PixelFormat
	}{
		{"rgba", FormatRGBA},
		{"bgra", FormatBGRA},
		{"rgb24", FormatRGB24},
		{"yuv420p", FormatYUV420P},
		{"yuvj420p", FormatYUV420P},
		{"nv12", FormatNV12},
		{"yuv422p", FormatYUV422P},
		{"gray", FormatGray8},
		{"gray8", FormatGray8},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePixelFormat(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParsePixelFormat("p010le")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestPixelFormatRoundTrip(t *testing.T) {
	formats := []PixelFormat{
		FormatRGBA, FormatBGRA, FormatRGB24,
		FormatYUV420P, FormatNV12, FormatYUV422P, FormatGray8,
	}
	for _, f := range formats {
		got, err := ParsePixelFormat(f.String())
		require.NoError(t, err, "format %s", f)
		assert.Equal(t, f, got)
	}
}
