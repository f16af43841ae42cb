// SPDX-License-Identifier: MIT

package codec

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes the ffmpeg binary. Injected so tests can replay captured
// output instead of requiring ffmpeg on the host.
type Runner interface {
	Run(ctx context.Context, bin string, args ...string) ([]byte, error)
}

// ExecRunner runs the real binary.
type ExecRunner struct{}

// Run executes bin with args and returns its combined stdout.
func (ExecRunner) Run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, bin, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", bin, strings.Join(args, " "), err)
	}
	return out, nil
}

// probeResult is everything detection learns from the ffmpeg CLI.
type probeResult struct {
	Version  string          `json:"version"`
	Codecs   []Info          `json:"codecs"`
	HWAccels []string        `json:"hwaccels"`
	Backends map[Backend]bool `json:"backends"`
}

// parseCodecs parses `ffmpeg -hide_banner -codecs` output. Lines look like
//
//	DEV.LS h264   H.264 / AVC / MPEG-4 AVC (decoders: h264 h264_cuvid ) (encoders: libx264 h264_nvenc )
//
// where the flag columns are decode, encode, type, intra-only, lossy,
// lossless.
func parseCodecs(out []byte) []Info {
	var codecs []Info
	inTable := false
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "-------") {
			inTable = true
			continue
		}
		if !inTable {
			continue
		}
		info, ok := parseCodecLine(line)
		if !ok {
			continue
		}
		codecs = append(codecs, info)
	}
	return codecs
}

func parseCodecLine(line string) (Info, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 || len(fields[0]) != 6 {
		return Info{}, false
	}
	flags := fields[0]

	info := Info{
		Name:      fields[1],
		CanDecode: flags[0] == 'D',
		CanEncode: flags[1] == 'E',
		Lossy:     flags[4] == 'L',
		Lossless:  flags[5] == 'S',
	}
	switch flags[2] {
	case 'V':
		info.Type = MediaVideo
	case 'A':
		info.Type = MediaAudio
	case 'S':
		info.Type = MediaSubtitle
	default:
		info.Type = MediaOther
	}
	info.ID = idByName[info.Name]

	rest := strings.Join(fields[2:], " ")
	info.LongName, info.Decoders, info.Encoders = splitCodecDescription(rest)
	info.HWBackends = backendsFromImpls(info.Decoders, info.Encoders)
	info.PixelFormats = defaultPixelFormats(info)
	info.MaxWidth, info.MaxHeight, info.MaxBitrate = defaultCeilings(info.ID)
	return info, true
}

// splitCodecDescription separates the long name from the trailing
// "(decoders: ...)" and "(encoders: ...)" annotations.
func splitCodecDescription(desc string) (longName string, decoders, encoders []string) {
	longName = desc
	for {
		open := strings.LastIndex(longName, "(")
		if open < 0 {
			break
		}
		section := strings.TrimSuffix(strings.TrimSpace(longName[open+1:]), ")")
		switch {
		case strings.HasPrefix(section, "decoders:"):
			decoders = strings.Fields(strings.TrimPrefix(section, "decoders:"))
		case strings.HasPrefix(section, "encoders:"):
			encoders = strings.Fields(strings.TrimPrefix(section, "encoders:"))
		default:
			return strings.TrimSpace(longName), decoders, encoders
		}
		longName = longName[:open]
	}
	return strings.TrimSpace(longName), decoders, encoders
}

// parseHWAccels parses `ffmpeg -hide_banner -hwaccels` output: a header
// line followed by one accel name per line.
func parseHWAccels(out []byte) []string {
	var accels []string
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasSuffix(line, ":") {
			continue
		}
		accels = append(accels, line)
	}
	return accels
}

// parseVersion extracts the version token from `ffmpeg -version` output.
func parseVersion(out []byte) string {
	fields := strings.Fields(string(out))
	for i, f := range fields {
		if f == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return "unknown"
}

func backendsFromImpls(decoders, encoders []string) []Backend {
	seen := map[Backend]bool{}
	var backends []Backend
	add := func(b Backend) {
		if !seen[b] {
			seen[b] = true
			backends = append(backends, b)
		}
	}
	for _, d := range decoders {
		switch {
		case strings.HasSuffix(d, "_cuvid"):
			add(BackendNVDEC)
		case strings.HasSuffix(d, "_vaapi"):
			add(BackendVAAPI)
		}
	}
	for _, e := range encoders {
		switch {
		case strings.HasSuffix(e, "_nvenc"):
			add(BackendNVENC)
		case strings.HasSuffix(e, "_vaapi"):
			add(BackendVAAPI)
		case strings.HasSuffix(e, "_videotoolbox"):
			add(BackendVideoToolbox)
		}
	}
	return backends
}

func defaultPixelFormats(info Info) []string {
	if info.Type != MediaVideo {
		return nil
	}
	switch info.ID {
	case IDH264, IDHEVC, IDAV1, IDVP9:
		return []string{"yuv420p", "nv12", "yuv422p"}
	case IDVP8:
		return []string{"yuv420p"}
	case IDMJPEG:
		return []string{"yuvj420p", "yuvj422p"}
	case IDProRes:
		return []string{"yuv422p", "yuv444p"}
	default:
		return []string{"yuv420p"}
	}
}

// Conservative per-codec ceilings. H.264 level 5.2 tops out at 4K; HEVC,
// VP9 and AV1 profiles reach 8K.
func defaultCeilings(id ID) (maxW, maxH int, maxBitrate int64) {
	switch id {
	case IDH264:
		return 4096, 2304, 240_000_000
	case IDHEVC, IDVP9, IDAV1:
		return 8192, 4352, 800_000_000
	default:
		return 0, 0, 0
	}
}
