// SPDX-License-Identifier: MIT

// Package codec maintains the registry of available codecs and detected
// hardware acceleration backends. Detection shells out to the ffmpeg CLI
// once and the result is read-only afterwards.
package codec

import "errors"

var (
	// ErrCodecNotFound is returned when no codec matches a lookup.
	ErrCodecNotFound = errors.New("codec not found")

	// ErrBackendUnavailable signals that a hardware backend was not
	// detected. Non-fatal: callers fall back to software paths.
	ErrBackendUnavailable = errors.New("hardware backend unavailable")
)

// ID identifies a codec independent of its ffmpeg implementation name.
type ID int

const (
	IDNone ID = iota
	IDH264
	IDHEVC
	IDAV1
	IDVP8
	IDVP9
	IDMJPEG
	IDProRes
	IDAAC
	IDMP3
	IDOpus
	IDFLAC
)

var idByName = map[string]ID{
	"h264":   IDH264,
	"hevc":   IDHEVC,
	"av1":    IDAV1,
	"vp8":    IDVP8,
	"vp9":    IDVP9,
	"mjpeg":  IDMJPEG,
	"prores": IDProRes,
	"aac":    IDAAC,
	"mp3":    IDMP3,
	"opus":   IDOpus,
	"flac":   IDFLAC,
}

// MediaType separates video from audio codecs.
type MediaType string

const (
	MediaVideo    MediaType = "video"
	MediaAudio    MediaType = "audio"
	MediaSubtitle MediaType = "subtitle"
	MediaOther    MediaType = "other"
)

// Backend enumerates hardware acceleration backends.
type Backend string

const (
	BackendNVDEC        Backend = "nvdec"
	BackendNVENC        Backend = "nvenc"
	BackendVAAPI        Backend = "vaapi"
	BackendVideoToolbox Backend = "videotoolbox"
	BackendD3D11VA      Backend = "d3d11va"
)

// Backends lists every backend the detector probes.
var Backends = []Backend{
	BackendNVDEC,
	BackendNVENC,
	BackendVAAPI,
	BackendVideoToolbox,
	BackendD3D11VA,
}

// Info is the static description of one codec's capabilities, built once
// during detection.
type Info struct {
	Name      string    `json:"name"`
	LongName  string    `json:"long_name"`
	ID        ID        `json:"id"`
	Type      MediaType `json:"type"`
	CanDecode bool      `json:"can_decode"`
	CanEncode bool      `json:"can_encode"`
	Lossy     bool      `json:"lossy"`
	Lossless  bool      `json:"lossless"`

	// Decoders and Encoders list the concrete ffmpeg implementations,
	// including hardware variants like h264_cuvid or hevc_nvenc.
	Decoders []string `json:"decoders,omitempty"`
	Encoders []string `json:"encoders,omitempty"`

	// HWBackends lists the acceleration backends usable with this codec.
	HWBackends []Backend `json:"hw_backends,omitempty"`

	// PixelFormats lists the pixel formats the codec family supports.
	PixelFormats []string `json:"pixel_formats,omitempty"`

	// Ceilings. Zero means unknown or unlimited.
	MaxWidth   int   `json:"max_width,omitempty"`
	MaxHeight  int   `json:"max_height,omitempty"`
	MaxBitrate int64 `json:"max_bitrate,omitempty"`
}

// SupportsPixelFormat reports whether the codec lists the given format.
func (i *Info) SupportsPixelFormat(format string) bool {
	for _, f := range i.PixelFormats {
		if f == format {
			return true
		}
	}
	return false
}

// HasBackend reports whether the codec can use the given backend.
func (i *Info) HasBackend(b Backend) bool {
	for _, cand := range i.HWBackends {
		if cand == b {
			return true
		}
	}
	return false
}
