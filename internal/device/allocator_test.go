// SPDX-License-Identifier: MIT

package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaforge/framecore/internal/frame"
)

func TestSystemAllocatorAccounting(t *testing.T) {
	alloc := NewSystemAllocator(0)
	desc := frame.MustDescriptor(64, 64, frame.FormatRGBA)

	img, err := alloc.AllocImage(desc)
	require.NoError(t, err)
	assert.Equal(t, desc.SizeBytes, alloc.Allocated())

	img.Free()
	assert.Zero(t, alloc.Allocated())
}

func TestSystemAllocatorCapacity(t *testing.T) {
	desc := frame.MustDescriptor(64, 64, frame.FormatRGBA)
	alloc := NewSystemAllocator(desc.SizeBytes)

	img, err := alloc.AllocImage(desc)
	require.NoError(t, err)

	_, err = alloc.AllocImage(desc)
	require.ErrorIs(t, err, ErrAllocFailed)

	img.Free()
	img2, err := alloc.AllocImage(desc)
	require.NoError(t, err, "freed capacity is reusable")
	img2.Free()
}

func TestSystemAllocatorDistinctHandles(t *testing.T) {
	alloc := NewSystemAllocator(0)
	desc := frame.MustDescriptor(8, 8, frame.FormatGray8)

	a, err := alloc.AllocImage(desc)
	require.NoError(t, err)
	b, err := alloc.AllocImage(desc)
	require.NoError(t, err)

	assert.NotEqual(t, a.ImageHandle(), b.ImageHandle())
	assert.NotEqual(t, a.MemoryHandle(), b.MemoryHandle())
	a.Free()
	b.Free()
}

func TestSystemImageDoubleFreePanics(t *testing.T) {
	alloc := NewSystemAllocator(0)
	img, err := alloc.AllocImage(frame.MustDescriptor(8, 8, frame.FormatGray8))
	require.NoError(t, err)

	img.Free()
	assert.Panics(t, func() { img.Free() })
}

func TestSystemImageUseAfterFree(t *testing.T) {
	alloc := NewSystemAllocator(0)
	img, err := alloc.AllocImage(frame.MustDescriptor(8, 8, frame.FormatGray8))
	require.NoError(t, err)
	img.Free()

	assert.Error(t, img.Readback(make([]byte, 64)))
	assert.Error(t, img.Upload(make([]byte, 64)))
}

func TestSystemImageUploadBounds(t *testing.T) {
	alloc := NewSystemAllocator(0)
	desc := frame.MustDescriptor(8, 8, frame.FormatGray8)
	img, err := alloc.AllocImage(desc)
	require.NoError(t, err)
	defer img.Free()

	assert.Error(t, img.Upload(make([]byte, desc.SizeBytes+1)))
	assert.NoError(t, img.Upload(make([]byte, 10)))
}
