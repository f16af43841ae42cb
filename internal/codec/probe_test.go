// SPDX-License-Identifier: MIT

package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const codecsFixture = `Codecs:
 D..... = Decoding supported
 .E.... = Encoding supported
 ..V... = Video codec
 ..A... = Audio codec
 ..S... = Subtitle codec
 ...I.. = Intra frame-only codec
 ....L. = Lossy compression
 .....S = Lossless compression
 -------
 DEV.L. h264                 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 (decoders: h264 h264_cuvid ) (encoders: libx264 h264_nvenc h264_vaapi )
 DEV.L. hevc                 H.265 / HEVC (High Efficiency Video Coding) (decoders: hevc hevc_cuvid ) (encoders: libx265 hevc_nvenc )
 DEV.L. vp9                  Google VP9 (decoders: vp9 libvpx-vp9 ) (encoders: libvpx-vp9 )
 DEVIL. mjpeg                Motion JPEG
 DEA.L. aac                  AAC (Advanced Audio Coding) (decoders: aac aac_fixed ) (encoders: aac )
 DEA..S flac                 FLAC (Free Lossless Audio Codec)
 D.S... hdmv_pgs_subtitle    HDMV Presentation Graphic Stream subtitles
`

const hwaccelsFixture = `Hardware acceleration methods:
cuda
vaapi
`

func TestParseCodecs(t *testing.T) {
	codecs := parseCodecs([]byte(codecsFixture))
	require.Len(t, codecs, 7)

	byName := make(map[string]Info, len(codecs))
	for _, c := range codecs {
		byName[c.Name] = c
	}

	h264 := byName["h264"]
	assert.Equal(t, IDH264, h264.ID)
	assert.Equal(t, MediaVideo, h264.Type)
	assert.True(t, h264.CanDecode)
	assert.True(t, h264.CanEncode)
	assert.True(t, h264.Lossy)
	assert.False(t, h264.Lossless)
	assert.Equal(t, "H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10", h264.LongName)
	assert.Equal(t, []string{"h264", "h264_cuvid"}, h264.Decoders)
	assert.Equal(t, []string{"libx264", "h264_nvenc", "h264_vaapi"}, h264.Encoders)
	assert.ElementsMatch(t, []Backend{BackendNVDEC, BackendNVENC, BackendVAAPI}, h264.HWBackends)
	assert.Equal(t, 4096, h264.MaxWidth)
	assert.Equal(t, 2304, h264.MaxHeight)
	assert.True(t, h264.SupportsPixelFormat("yuv420p"))
	assert.True(t, h264.SupportsPixelFormat("nv12"))
	assert.False(t, h264.SupportsPixelFormat("rgba"))

	hevc := byName["hevc"]
	assert.Equal(t, IDHEVC, hevc.ID)
	assert.Equal(t, 8192, hevc.MaxWidth)
	assert.True(t, hevc.HasBackend(BackendNVENC))
	assert.False(t, hevc.HasBackend(BackendVAAPI))

	mjpeg := byName["mjpeg"]
	assert.Equal(t, IDMJPEG, mjpeg.ID)
	assert.Empty(t, mjpeg.Decoders, "no annotations on the line")
	assert.Equal(t, "Motion JPEG", mjpeg.LongName)
	assert.Equal(t, []string{"yuvj420p", "yuvj422p"}, mjpeg.PixelFormats)

	aac := byName["aac"]
	assert.Equal(t, MediaAudio, aac.Type)
	assert.Empty(t, aac.PixelFormats, "audio codecs carry no pixel formats")

	flac := byName["flac"]
	assert.True(t, flac.Lossless)
	assert.False(t, flac.Lossy)

	subtitle := byName["hdmv_pgs_subtitle"]
	assert.Equal(t, MediaSubtitle, subtitle.Type)
	assert.False(t, subtitle.CanEncode)
}

func TestParseCodecsIgnoresHeader(t *testing.T) {
	codecs := parseCodecs([]byte("Codecs:\n D..... = Decoding supported\n"))
	assert.Empty(t, codecs)
}

func TestSplitCodecDescription(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		longName string
		decoders []string
		encoders []string
	}{
		{
			name:     "both annotations",
			in:       "H.264 / AVC (decoders: h264 h264_cuvid ) (encoders: libx264 )",
			longName: "H.264 / AVC",
			decoders: []string{"h264", "h264_cuvid"},
			encoders: []string{"libx264"},
		},
		{
			name:     "no annotations",
			in:       "Motion JPEG",
			longName: "Motion JPEG",
		},
		{
			name:     "parenthesis in long name",
			in:       "AAC (Advanced Audio Coding) (decoders: aac )",
			longName: "AAC (Advanced Audio Coding)",
			decoders: []string{"aac"},
		},
		{
			name:     "decoders only",
			in:       "Something (decoders: foo bar )",
			longName: "Something",
			decoders: []string{"foo", "bar"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			longName, decoders, encoders := splitCodecDescription(tt.in)
			assert.Equal(t, tt.longName, longName)
			assert.Equal(t, tt.decoders, decoders)
			assert.Equal(t, tt.encoders, encoders)
		})
	}
}

func TestParseHWAccels(t *testing.T) {
	assert.Equal(t, []string{"cuda", "vaapi"}, parseHWAccels([]byte(hwaccelsFixture)))
	assert.Empty(t, parseHWAccels([]byte("Hardware acceleration methods:\n")))
}

func TestParseVersion(t *testing.T) {
	out := []byte("ffmpeg version 6.1.1-3ubuntu5 Copyright (c) 2000-2023 the FFmpeg developers\n")
	assert.Equal(t, "6.1.1-3ubuntu5", parseVersion(out))
	assert.Equal(t, "unknown", parseVersion([]byte("garbage")))
}

func TestBackendsFromImpls(t *testing.T) {
	backends := backendsFromImpls(
		[]string{"h264", "h264_cuvid"},
		[]string{"h264_nvenc", "h264_vaapi", "h264_videotoolbox", "h264_nvenc"},
	)
	assert.Equal(t, []Backend{BackendNVDEC, BackendNVENC, BackendVAAPI, BackendVideoToolbox}, backends)

	assert.Empty(t, backendsFromImpls([]string{"h264"}, []string{"libx264"}))
}
