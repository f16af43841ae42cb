// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"

	"github.com/mediaforge/framecore/internal/cache"
	"github.com/mediaforge/framecore/internal/device"
	"github.com/mediaforge/framecore/internal/pool"
)

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

type readyResponse struct {
	Status string `json:"status"`
	Codecs int    `json:"codecs"`
	GPUs   int    `json:"gpus"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	resp := readyResponse{Status: "ok", GPUs: len(s.deps.GPUs)}

	code := http.StatusOK
	switch {
	case s.deps.Codecs == nil:
		resp.Status = "degraded"
		resp.Reason = "codec_manager_not_configured"
	case !s.deps.Codecs.Detected():
		resp.Status = "initializing"
		resp.Reason = "waiting_for_codec_probe"
		code = http.StatusServiceUnavailable
	default:
		resp.Codecs = len(s.deps.Codecs.Codecs())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	s.writeJSON(w, r, resp)
}

type versionResponse struct {
	Version string `json:"version"`
	FFmpeg  string `json:"ffmpeg_version,omitempty"`
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	resp := versionResponse{Version: s.deps.Version}
	if s.deps.Codecs != nil {
		resp.FFmpeg = s.deps.Codecs.Version()
	}
	w.Header().Set("Content-Type", "application/json")
	s.writeJSON(w, r, resp)
}

func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	if s.deps.Pool == nil {
		http.Error(w, "frame pool unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	s.writeJSON(w, r, s.deps.Pool.AllStats())
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cache == nil {
		http.Error(w, "frame cache unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	s.writeJSON(w, r, s.deps.Cache.Stats())
}

func (s *Server) handleCodecs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Codecs == nil {
		http.Error(w, "codec manager unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	s.writeJSON(w, r, s.deps.Codecs.Snapshot())
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	gpus := s.deps.GPUs
	if gpus == nil {
		gpus = []device.GPU{}
	}
	w.Header().Set("Content-Type", "application/json")
	s.writeJSON(w, r, gpus)
}

// statsSnapshot is the payload pushed over the stats websocket.
type statsSnapshot struct {
	Pool  *pool.Stats  `json:"pool,omitempty"`
	Cache *cache.Stats `json:"cache,omitempty"`
}

func (s *Server) snapshot() statsSnapshot {
	var snap statsSnapshot
	if s.deps.Pool != nil {
		ps := s.deps.Pool.AllStats()
		snap.Pool = &ps
	}
	if s.deps.Cache != nil {
		cs := s.deps.Cache.Stats()
		snap.Cache = &cs
	}
	return snap
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().
			Err(err).
			Str("path", r.URL.Path).
			Msg("failed to encode response")
	}
}
