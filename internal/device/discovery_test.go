// SPDX-License-Identifier: MIT

package device

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCard(t *testing.T, root, card, uevent string, renderNode string) {
	t.Helper()
	devDir := filepath.Join(root, "class/drm", card, "device")
	require.NoError(t, os.MkdirAll(devDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(devDir, "uevent"), []byte(uevent), 0o644))
	if renderNode != "" {
		require.NoError(t, os.MkdirAll(filepath.Join(devDir, "drm", renderNode), 0o755))
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeCard(t, root, "card0",
		"DRIVER=nvidia\nPCI_SLOT_NAME=0000:01:00.0\nPCI_ID=10DE:2684\n",
		"renderD128")
	// Connector entries like card0-DP-1 must be skipped.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "class/drm/card0-DP-1"), 0o755))

	gpus, err := Discover(root, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, gpus, 1)

	gpu := gpus[0]
	assert.Equal(t, "card0", gpu.ID)
	assert.Equal(t, "0000:01:00.0", gpu.PCI)
	assert.Equal(t, "10de", gpu.Vendor)
	assert.Equal(t, "/dev/dri/renderD128", gpu.RenderNode)
	// Name comes from the pci.ids database when present, the driver
	// otherwise; either way it must not be empty for a known vendor.
	assert.NotEmpty(t, gpu.Name)
}

func TestDiscoverMultipleCards(t *testing.T) {
	root := t.TempDir()
	writeCard(t, root, "card0", "DRIVER=amdgpu\nPCI_SLOT_NAME=0000:03:00.0\nPCI_ID=1002:744C\n", "renderD128")
	writeCard(t, root, "card1", "DRIVER=i915\nPCI_SLOT_NAME=0000:00:02.0\nPCI_ID=8086:4680\n", "renderD129")

	gpus, err := Discover(root, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, gpus, 2)
	assert.Equal(t, "card0", gpus[0].ID)
	assert.Equal(t, "card1", gpus[1].ID)
}

func TestDiscoverNoDRM(t *testing.T) {
	gpus, err := Discover(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, gpus)
}

func TestDiscoverCardWithoutRenderNode(t *testing.T) {
	root := t.TempDir()
	writeCard(t, root, "card0", "DRIVER=simpledrm\n", "")

	gpus, err := Discover(root, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, gpus, 1)
	assert.Empty(t, gpus[0].RenderNode)
	assert.Equal(t, "simpledrm", gpus[0].Name)
}

func TestUeventValue(t *testing.T) {
	data := "DRIVER=nvidia\nPCI_CLASS=30000\nPCI_ID=10DE:2684\n"
	assert.Equal(t, "nvidia", ueventValue(data, "DRIVER"))
	assert.Equal(t, "10DE:2684", ueventValue(data, "PCI_ID"))
	assert.Empty(t, ueventValue(data, "MODALIAS"))
}
