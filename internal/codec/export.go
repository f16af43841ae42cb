// SPDX-License-Identifier: MIT

package codec

import (
	"encoding/json"
	"fmt"

	"github.com/google/renameio/v2"
)

// Snapshot is the exportable view of a detected capability set.
type Snapshot struct {
	Version  string           `json:"ffmpeg_version"`
	Codecs   []Info           `json:"codecs"`
	HWAccels []string         `json:"hwaccels"`
	Backends map[Backend]bool `json:"backends"`
}

// Snapshot returns the manager's current capability view.
func (m *Manager) Snapshot() Snapshot {
	backends := make(map[Backend]bool, len(m.backends))
	for b, ok := range m.backends {
		backends[b] = ok
	}
	return Snapshot{
		Version:  m.version,
		Codecs:   m.infos,
		HWAccels: m.hwaccels,
		Backends: backends,
	}
}

// ExportJSON atomically writes the capability snapshot to path.
func (m *Manager) ExportJSON(path string) error {
	buf, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return err
	}

	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending capability file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.Write(append(buf, '\n')); err != nil {
		return fmt.Errorf("write capability snapshot: %w", err)
	}
	return pending.CloseAtomicallyReplace()
}
