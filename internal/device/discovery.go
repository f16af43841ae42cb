// SPDX-License-Identifier: MIT

package device

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jaypipes/pcidb"
	"github.com/rs/zerolog"
)

// GPU describes one DRM card discovered via sysfs.
type GPU struct {
	ID         string `json:"id"`
	PCI        string `json:"pci"`
	Vendor     string `json:"vendor"`
	Name       string `json:"name"`
	RenderNode string `json:"render_node"`
}

const drmClassPath = "class/drm"

// Discover enumerates GPUs exposed under root (normally /sys). A missing DRM
// class directory is not an error: the host simply has no GPU.
func Discover(root string, logger zerolog.Logger) ([]GPU, error) {
	entries, err := os.ReadDir(filepath.Join(root, drmClassPath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn().Str("path", filepath.Join(root, drmClassPath)).Msg("drm class path missing")
			return nil, nil
		}
		return nil, err
	}

	var gpus []GPU
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "card") || strings.ContainsRune(name, '-') {
			continue
		}
		devDir := filepath.Join(root, drmClassPath, name, "device")
		gpu, err := loadCard(name, devDir)
		if err != nil {
			logger.Warn().Str("card", name).Err(err).Msg("failed to load card info")
			continue
		}
		gpus = append(gpus, gpu)
	}
	return gpus, nil
}

func loadCard(cardID, devDir string) (GPU, error) {
	gpu := GPU{ID: cardID}

	if data, err := os.ReadFile(filepath.Join(devDir, "uevent")); err == nil {
		text := string(data)
		gpu.PCI = ueventValue(text, "PCI_SLOT_NAME")
		if id := ueventValue(text, "PCI_ID"); id != "" {
			parts := strings.SplitN(id, ":", 2)
			if len(parts) == 2 {
				gpu.Vendor = strings.ToLower(parts[0])
				gpu.Name = lookupPCIName(parts[0], parts[1])
			}
		}
		if gpu.Name == "" {
			gpu.Name = ueventValue(text, "DRIVER")
		}
	}

	if gpu.Vendor == "" {
		if v, err := os.ReadFile(filepath.Join(devDir, "vendor")); err == nil {
			gpu.Vendor = strings.TrimPrefix(strings.TrimSpace(string(v)), "0x")
		}
	}

	gpu.RenderNode = findRenderNode(devDir)
	return gpu, nil
}

func findRenderNode(devDir string) string {
	entries, err := os.ReadDir(filepath.Join(devDir, "drm"))
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "renderD") {
			return filepath.Join("/dev/dri", entry.Name())
		}
	}
	return ""
}

func ueventValue(data, key string) string {
	prefix := key + "="
	scanner := bufio.NewScanner(strings.NewReader(data))
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix))
		}
	}
	return ""
}

var (
	pciOnce sync.Once
	pciDB   *pcidb.PCIDB
)

func lookupPCIName(vendorID, deviceID string) string {
	pciOnce.Do(func() {
		pciDB, _ = pcidb.New()
	})
	if pciDB == nil {
		return ""
	}
	product, ok := pciDB.Products[strings.ToLower(vendorID)+strings.ToLower(deviceID)]
	if !ok || product == nil {
		return ""
	}
	return product.Name
}
