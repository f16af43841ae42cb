// SPDX-License-Identifier: MIT

// Package device abstracts the native GPU backend behind the frame layer.
// The default SystemAllocator backs frames with host memory; real Vulkan or
// CUDA allocators satisfy the same interface.
package device

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mediaforge/framecore/internal/frame"
)

// ErrAllocFailed is returned when the device refuses an allocation even
// though the caller's budget tracking allowed it. Callers log this
// distinctly: it means the tracker and the device disagree.
var ErrAllocFailed = errors.New("device allocation failed")

// SystemAllocator implements frame.Allocator with host memory. A non-zero
// capacity makes it refuse allocations past that many bytes, which stands in
// for device-level memory exhaustion.
type SystemAllocator struct {
	mu        sync.Mutex
	capacity  int64
	allocated int64
	handles   uintptr
}

// NewSystemAllocator returns an allocator with the given capacity in bytes.
// capacity <= 0 means unlimited.
func NewSystemAllocator(capacity int64) *SystemAllocator {
	return &SystemAllocator{capacity: capacity}
}

// AllocImage allocates a host-backed image for desc.
func (a *SystemAllocator) AllocImage(desc frame.Descriptor) (frame.NativeImage, error) {
	if desc.SizeBytes <= 0 {
		return nil, fmt.Errorf("%w: descriptor %s has no size", ErrAllocFailed, desc)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.capacity > 0 && a.allocated+desc.SizeBytes > a.capacity {
		return nil, fmt.Errorf("%w: %d bytes requested, %d of %d in use",
			ErrAllocFailed, desc.SizeBytes, a.allocated, a.capacity)
	}

	a.allocated += desc.SizeBytes
	a.handles += 2
	img := &systemImage{
		owner:     a,
		data:      make([]byte, desc.SizeBytes),
		imgHandle: a.handles - 1,
		memHandle: a.handles,
	}
	return img, nil
}

// Allocated returns the bytes currently held by live images.
func (a *SystemAllocator) Allocated() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocated
}

func (a *SystemAllocator) free(n int64) {
	a.mu.Lock()
	a.allocated -= n
	a.mu.Unlock()
}

type systemImage struct {
	owner     *SystemAllocator
	data      []byte
	imgHandle uintptr
	memHandle uintptr

	mu    sync.Mutex
	freed bool
}

func (img *systemImage) ImageHandle() uintptr  { return img.imgHandle }
func (img *systemImage) MemoryHandle() uintptr { return img.memHandle }

func (img *systemImage) Readback(dst []byte) error {
	img.mu.Lock()
	defer img.mu.Unlock()
	if img.freed {
		return errors.New("readback on freed image")
	}
	copy(dst, img.data)
	return nil
}

func (img *systemImage) Upload(src []byte) error {
	img.mu.Lock()
	defer img.mu.Unlock()
	if img.freed {
		return errors.New("upload to freed image")
	}
	if len(src) > len(img.data) {
		return fmt.Errorf("upload of %d bytes exceeds image size %d", len(src), len(img.data))
	}
	copy(img.data, src)
	return nil
}

func (img *systemImage) Free() {
	img.mu.Lock()
	defer img.mu.Unlock()
	if img.freed {
		panic("device: double free of native image")
	}
	img.freed = true
	img.owner.free(int64(len(img.data)))
	img.data = nil
}
