package vdbview

import (
	vk "github.com/vulkan-go/vulkan"
)

// Buffer owns one native buffer handle together with its backing memory
// allocation. A Buffer is either fully valid, bound to a live allocation,
// or fully null; there are no partial states. The zero value is the
// unallocated state and every operation below is safe on it.
type Buffer struct {
	Allocator  *Allocator
	VKBuffer   vk.Buffer
	Size       uint64
	Usage      vk.BufferUsageFlags
	Allocation *Allocation
}

// CreateBuffer creates a device-local buffer of the given size and usage.
func (a *Allocator) CreateBuffer(sizeInBytes uint64, usage vk.BufferUsageFlags) (*Buffer, error) {
	return a.CreateBufferWithProperties(sizeInBytes, usage, vk.MemoryPropertyDeviceLocalBit)
}

// CreateBufferWithProperties creates a buffer backed by memory with the
// requested property flags.
func (a *Allocator) CreateBufferWithProperties(sizeInBytes uint64, usage vk.BufferUsageFlags, props vk.MemoryPropertyFlagBits) (*Buffer, error) {
	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(sizeInBytes),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}

	var buffer vk.Buffer
	err := vk.Error(vk.CreateBuffer(a.Device.VKDevice, &bufferCreateInfo, nil, &buffer))
	if err != nil {
		return nil, err
	}

	alloc, err := a.AllocateForBuffer(buffer, props)
	if err != nil {
		vk.DestroyBuffer(a.Device.VKDevice, buffer, nil)
		return nil, err
	}

	return &Buffer{
		Allocator:  a,
		VKBuffer:   buffer,
		Size:       sizeInBytes,
		Usage:      usage,
		Allocation: alloc,
	}, nil
}

// VK returns the native buffer handle.
func (b *Buffer) VK() vk.Buffer {
	return b.VKBuffer
}

// IsValid reports whether the buffer is bound to a live allocation.
func (b *Buffer) IsValid() bool {
	return b.Allocation != nil && b.Allocation.Memory != nil
}

// Reset destroys the buffer and frees its allocation, returning the
// receiver to the unallocated state. Resetting an unallocated buffer is a
// no-op; a buffer is never double-freed.
func (b *Buffer) Reset() {
	if !b.IsValid() {
		b.clear()
		return
	}
	vk.DestroyBuffer(b.Allocator.Device.VKDevice, b.VKBuffer, nil)
	b.Allocation.Free()
	b.clear()
}

// Release hands ownership of the handle pair to the caller and returns the
// receiver to the unallocated state without destroying anything.
func (b *Buffer) Release() (vk.Buffer, *Allocation) {
	buffer, alloc := b.VKBuffer, b.Allocation
	b.clear()
	return buffer, alloc
}

func (b *Buffer) clear() {
	b.Allocator = nil
	b.VKBuffer = vk.NullBuffer
	b.Size = 0
	b.Usage = 0
	b.Allocation = nil
}
