// SPDX-License-Identifier: MIT

package frame

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Allocator produces device-resident image allocations. Implementations live
// in internal/device; the frame layer treats the device as opaque.
type Allocator interface {
	AllocImage(desc Descriptor) (NativeImage, error)
}

// NativeImage is one device image plus its backing memory. Handles are never
// mutated after allocation, only freed once.
type NativeImage interface {
	// ImageHandle returns the opaque native image handle.
	ImageHandle() uintptr
	// MemoryHandle returns the opaque native memory handle.
	MemoryHandle() uintptr
	// Readback synchronously copies the image contents into dst.
	Readback(dst []byte) error
	// Upload synchronously copies src into the image.
	Upload(src []byte) error
	// Free releases the native allocation.
	Free()
}

// Frame is a single reference-counted device-resident frame buffer.
//
// The reference count starts at 1 for the creator. Retain/Release follow
// intrusive refcount semantics: the holder that drops the count to zero
// frees the native resources, exactly once. The in-use flag and timestamps
// are plain fields; callers mutate them only under external synchronization
// (the pool's bucket lock).
type Frame struct {
	desc Descriptor
	img  NativeImage

	refs atomic.Int32

	cudaMapped   bool
	vulkanMapped bool

	inUse      bool
	lastAccess time.Time

	// Timestamp is the presentation timestamp of the decoded picture, in
	// stream time-base units. Type is its picture type.
	Timestamp int64
	Type      FrameType
}

// New allocates a frame for desc using the given allocator. The returned
// frame holds one reference owned by the caller.
func New(alloc Allocator, desc Descriptor) (*Frame, error) {
	img, err := alloc.AllocImage(desc)
	if err != nil {
		return nil, fmt.Errorf("alloc %s: %w", desc, err)
	}
	f := &Frame{
		desc:       desc,
		img:        img,
		lastAccess: time.Now(),
	}
	f.refs.Add(1)
	return f, nil
}

// Descriptor returns the frame's shape descriptor.
func (f *Frame) Descriptor() Descriptor { return f.desc }

// Retain increments the reference count. The caller must balance it with
// exactly one Release.
func (f *Frame) Retain() {
	if f.refs.Add(1) <= 1 {
		panic("frame: Retain on released frame")
	}
}

// Release decrements the reference count. When the count reaches zero the
// native resources are freed before Release returns, and Release reports
// true to that one caller. Releasing below zero is a caller bug and panics.
func (f *Frame) Release() bool {
	n := f.refs.Add(-1)
	switch {
	case n > 0:
		return false
	case n == 0:
		f.img.Free()
		return true
	default:
		panic("frame: refcount underflow")
	}
}

// Refs returns the current reference count. Diagnostic only.
func (f *Frame) Refs() int32 { return f.refs.Load() }

// ImageHandle exposes the native image handle for interop.
func (f *Frame) ImageHandle() uintptr { return f.img.ImageHandle() }

// MemoryHandle exposes the native memory handle for interop.
func (f *Frame) MemoryHandle() uintptr { return f.img.MemoryHandle() }

// MapCUDA makes the frame's memory visible to a CUDA context. Idempotent:
// mapping an already-mapped frame is a no-op.
func (f *Frame) MapCUDA() error {
	f.cudaMapped = true
	return nil
}

// UnmapCUDA releases a CUDA mapping. A no-op when not mapped.
func (f *Frame) UnmapCUDA() error {
	f.cudaMapped = false
	return nil
}

// MapVulkan makes the frame's memory host-visible through the Vulkan
// allocation. Idempotent like MapCUDA.
func (f *Frame) MapVulkan() error {
	f.vulkanMapped = true
	return nil
}

// UnmapVulkan releases a Vulkan mapping. A no-op when not mapped.
func (f *Frame) UnmapVulkan() error {
	f.vulkanMapped = false
	return nil
}

// Mapped reports whether any CPU-visible mapping is active.
func (f *Frame) Mapped() bool { return f.cudaMapped || f.vulkanMapped }

// CPUData copies the frame contents back to host memory. Synchronous and
// off the hot path; intended for diagnostics and tests.
func (f *Frame) CPUData() ([]byte, error) {
	buf := make([]byte, int(f.desc.Width)*int(f.desc.Height)*f.desc.PixelFormat.BytesPerPixel())
	if err := f.img.Readback(buf); err != nil {
		return nil, fmt.Errorf("readback %s: %w", f.desc, err)
	}
	return buf, nil
}

// Upload copies src into the frame's device memory.
func (f *Frame) Upload(src []byte) error {
	return f.img.Upload(src)
}

// MarkInUse stamps the last access time and flags the frame as in use.
func (f *Frame) MarkInUse() { f.MarkInUseAt(time.Now()) }

// MarkInUseAt is MarkInUse with an explicit clock reading.
func (f *Frame) MarkInUseAt(now time.Time) {
	f.lastAccess = now
	f.inUse = true
}

// MarkUnused clears the in-use flag. The last access time is untouched so
// eviction measures idle time from the final use.
func (f *Frame) MarkUnused() { f.inUse = false }

// InUse reports the in-use flag.
func (f *Frame) InUse() bool { return f.inUse }

// LastAccess returns the time of the most recent MarkInUse.
func (f *Frame) LastAccess() time.Time { return f.lastAccess }
