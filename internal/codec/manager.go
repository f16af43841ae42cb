// SPDX-License-Identifier: MIT

package codec

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediaforge/framecore/internal/log"
	"github.com/mediaforge/framecore/internal/metrics"
)

// Config holds codec manager configuration.
type Config struct {
	FFmpegPath  string // ffmpeg binary; defaults to "ffmpeg" on PATH
	VAAPIDevice string // render node checked for the VAAPI probe
	Runner      Runner // command runner; defaults to ExecRunner
	Store       *Store // optional persisted probe cache

	// Stat is injectable for the VAAPI device probe.
	Stat func(string) (os.FileInfo, error)
}

// Manager is the capability registry. Construct one per process and pass it
// to the components that need it; there is deliberately no package-level
// instance. All fields are read-only after Detect returns.
type Manager struct {
	cfg    Config
	logger zerolog.Logger

	version  string
	infos    []Info
	byName   map[string]*Info
	byID     map[ID]*Info
	hwaccels []string
	backends map[Backend]bool
	detected bool
}

// NewManager creates an undetected manager. Call Detect before lookups.
func NewManager(cfg Config) *Manager {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.VAAPIDevice == "" {
		cfg.VAAPIDevice = "/dev/dri/renderD128"
	}
	if cfg.Runner == nil {
		cfg.Runner = ExecRunner{}
	}
	if cfg.Stat == nil {
		cfg.Stat = os.Stat
	}
	return &Manager{
		cfg:      cfg,
		logger:   log.WithComponent("codec"),
		byName:   make(map[string]*Info),
		byID:     make(map[ID]*Info),
		backends: make(map[Backend]bool),
	}
}

// Detect probes the ffmpeg installation and the hardware backends. The
// codec scan failing is fatal to the manager; each backend probe is
// isolated and its failure only disables that backend. Calling Detect again
// re-probes.
func (m *Manager) Detect(ctx context.Context) error {
	start := time.Now()

	if m.cfg.Store != nil {
		if res, ok := m.cfg.Store.Load(m.binIdentity(ctx)); ok {
			m.install(res)
			m.logger.Info().
				Str("version", res.Version).
				Int("codecs", len(res.Codecs)).
				Msg("codec capabilities loaded from cache")
			return nil
		}
	}

	res, err := m.probe(ctx)
	if err != nil {
		return err
	}
	m.install(res)

	if m.cfg.Store != nil {
		if err := m.cfg.Store.Save(m.binIdentity(ctx), res); err != nil {
			m.logger.Warn().Err(err).Msg("failed to persist codec probe result")
		}
	}

	metrics.CodecProbeDuration.Observe(time.Since(start).Seconds())
	m.logger.Info().
		Str("version", res.Version).
		Int("codecs", len(res.Codecs)).
		Strs("hwaccels", res.HWAccels).
		Msg("codec detection complete")
	return nil
}

func (m *Manager) probe(ctx context.Context) (probeResult, error) {
	res := probeResult{Version: "unknown", Backends: make(map[Backend]bool)}

	if out, err := m.cfg.Runner.Run(ctx, m.cfg.FFmpegPath, "-version"); err == nil {
		res.Version = parseVersion(out)
	}

	out, err := m.cfg.Runner.Run(ctx, m.cfg.FFmpegPath, "-hide_banner", "-codecs")
	if err != nil {
		return res, fmt.Errorf("codec scan: %w", err)
	}
	res.Codecs = parseCodecs(out)

	// Hardware probes are independent; losing one backend must not abort
	// detection.
	if out, err := m.cfg.Runner.Run(ctx, m.cfg.FFmpegPath, "-hide_banner", "-hwaccels"); err == nil {
		res.HWAccels = parseHWAccels(out)
	} else {
		m.logger.Warn().Err(err).Msg("hwaccel scan failed, assuming software only")
	}

	res.Backends[BackendNVENC] = m.probeNVENC(res.Codecs)
	res.Backends[BackendNVDEC] = m.probeNVDEC(res.Codecs, res.HWAccels)
	res.Backends[BackendVAAPI] = m.probeVAAPI(res.HWAccels)
	res.Backends[BackendVideoToolbox] = hasAccel(res.HWAccels, "videotoolbox")
	res.Backends[BackendD3D11VA] = hasAccel(res.HWAccels, "d3d11va")
	return res, nil
}

func (m *Manager) install(res probeResult) {
	m.version = res.Version
	m.infos = res.Codecs
	m.hwaccels = res.HWAccels
	m.byName = make(map[string]*Info, len(res.Codecs))
	m.byID = make(map[ID]*Info)
	for i := range m.infos {
		info := &m.infos[i]
		m.byName[info.Name] = info
		if info.ID != IDNone {
			m.byID[info.ID] = info
		}
	}
	m.backends = res.Backends
	for _, b := range Backends {
		v := 0.0
		if m.backends[b] {
			v = 1.0
		}
		metrics.HWBackendAvailable.WithLabelValues(string(b)).Set(v)
	}
	m.detected = true
}

func (m *Manager) probeNVENC(codecs []Info) bool {
	for _, c := range codecs {
		for _, e := range c.Encoders {
			if strings.HasSuffix(e, "_nvenc") {
				return true
			}
		}
	}
	return false
}

func (m *Manager) probeNVDEC(codecs []Info, hwaccels []string) bool {
	if hasAccel(hwaccels, "cuda") {
		return true
	}
	for _, c := range codecs {
		for _, d := range c.Decoders {
			if strings.HasSuffix(d, "_cuvid") {
				return true
			}
		}
	}
	return false
}

func (m *Manager) probeVAAPI(hwaccels []string) bool {
	if !hasAccel(hwaccels, "vaapi") {
		return false
	}
	fi, err := m.cfg.Stat(m.cfg.VAAPIDevice)
	return err == nil && fi != nil && !fi.IsDir()
}

func hasAccel(accels []string, name string) bool {
	for _, a := range accels {
		if a == name {
			return true
		}
	}
	return false
}

// binIdentity keys the probe cache by binary path and version so a changed
// ffmpeg install invalidates stale entries.
func (m *Manager) binIdentity(ctx context.Context) string {
	version := "unknown"
	if out, err := m.cfg.Runner.Run(ctx, m.cfg.FFmpegPath, "-version"); err == nil {
		version = parseVersion(out)
	}
	return m.cfg.FFmpegPath + "@" + version
}

// Version returns the detected ffmpeg version string.
func (m *Manager) Version() string { return m.version }

// Detected reports whether Detect has completed successfully.
func (m *Manager) Detected() bool { return m.detected }

// Codecs returns the full codec table.
func (m *Manager) Codecs() []Info { return m.infos }

// HWAccels returns the raw hwaccel names ffmpeg reported.
func (m *Manager) HWAccels() []string { return m.hwaccels }

// CodecByName looks up a codec by its ffmpeg family name.
func (m *Manager) CodecByName(name string) (*Info, error) {
	if info, ok := m.byName[name]; ok {
		return info, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrCodecNotFound, name)
}

// CodecByID looks up a codec by stable ID.
func (m *Manager) CodecByID(id ID) (*Info, error) {
	if info, ok := m.byID[id]; ok {
		return info, nil
	}
	return nil, fmt.Errorf("%w: id %d", ErrCodecNotFound, id)
}

// DecodersFor returns the video codecs that can decode into the given
// pixel format.
func (m *Manager) DecodersFor(pixelFormat string) []Info {
	return m.filter(pixelFormat, func(i *Info) bool { return i.CanDecode })
}

// EncodersFor returns the video codecs that can encode from the given
// pixel format.
func (m *Manager) EncodersFor(pixelFormat string) []Info {
	return m.filter(pixelFormat, func(i *Info) bool { return i.CanEncode })
}

func (m *Manager) filter(pixelFormat string, pred func(*Info) bool) []Info {
	var out []Info
	for i := range m.infos {
		info := &m.infos[i]
		if info.Type == MediaVideo && pred(info) && info.SupportsPixelFormat(pixelFormat) {
			out = append(out, *info)
		}
	}
	return out
}

// BackendAvailable reports whether a backend was detected.
func (m *Manager) BackendAvailable(b Backend) bool { return m.backends[b] }

// NVDECAvailable reports NVIDIA decode support.
func (m *Manager) NVDECAvailable() bool { return m.backends[BackendNVDEC] }

// NVENCAvailable reports NVIDIA encode support.
func (m *Manager) NVENCAvailable() bool { return m.backends[BackendNVENC] }

// VAAPIAvailable reports VAAPI support with a usable render node.
func (m *Manager) VAAPIAvailable() bool { return m.backends[BackendVAAPI] }

// VideoToolboxAvailable reports Apple VideoToolbox support.
func (m *Manager) VideoToolboxAvailable() bool { return m.backends[BackendVideoToolbox] }

// D3D11VAAvailable reports Direct3D 11 acceleration support.
func (m *Manager) D3D11VAAvailable() bool { return m.backends[BackendD3D11VA] }
