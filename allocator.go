package vdbview

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// Span is one sub-allocation inside a LinearAllocator arena.
type Span struct {
	Offset uint64
	Size   uint64
}

func (s *Span) String() string {
	return fmt.Sprintf("[%d %d]", s.Offset, s.Size)
}

// LinearAllocator hands out non-overlapping spans from a fixed-size range.
// It holds spans sorted by offset and fills the first gap large enough for
// a request.
type LinearAllocator struct {
	Size  uint64
	spans []*Span
}

func alignUp(a uint64, align uint64) uint64 {
	if align == 0 {
		return a
	}
	m := a % align
	if m == 0 {
		return a
	}
	return (a - m) + align
}

// Allocate returns a span of the requested size whose offset is a multiple
// of align, or nil if no gap fits.
func (l *LinearAllocator) Allocate(size uint64, align uint64) *Span {
	if size == 0 || size > l.Size {
		return nil
	}

	cursor := uint64(0)
	for i, s := range l.spans {
		start := alignUp(cursor, align)
		if start+size <= s.Offset {
			na := &Span{Offset: start, Size: size}
			l.spans = append(l.spans[:i], append([]*Span{na}, l.spans[i:]...)...)
			return na
		}
		cursor = s.Offset + s.Size
	}

	start := alignUp(cursor, align)
	if start+size <= l.Size {
		na := &Span{Offset: start, Size: size}
		l.spans = append(l.spans, na)
		return na
	}
	return nil
}

// Free releases a span previously returned by Allocate.
func (l *LinearAllocator) Free(fs *Span) {
	for i, s := range l.spans {
		if s == fs {
			l.spans = append(l.spans[:i], l.spans[i+1:]...)
			return
		}
	}
}

// InUse returns the number of live spans.
func (l *LinearAllocator) InUse() int {
	return len(l.spans)
}

func (l *LinearAllocator) String() string {
	return fmt.Sprintf("%v", l.spans)
}

// DefaultBlockSize is the size of device-local memory blocks the allocator
// sub-allocates from. Requests larger than this get a dedicated allocation.
const DefaultBlockSize = 64 * 1024 * 1024

// Allocation is a region of device memory handed out by the Allocator. It
// either occupies a span of a shared block or owns a dedicated memory
// object.
type Allocation struct {
	Memory       *DeviceMemory
	Offset       uint64
	Size         uint64
	HostCoherent bool

	allocator *Allocator
	block     *memoryBlock
	span      *Span
}

// Free returns the region to the allocator. Safe to call on nil.
func (a *Allocation) Free() {
	if a == nil || a.Memory == nil {
		return
	}
	a.allocator.free(a)
	a.Memory = nil
	a.block = nil
	a.span = nil
}

type memoryBlock struct {
	memory *DeviceMemory
	arena  *LinearAllocator
}

type memoryPool struct {
	typeIndex uint32
	coherent  bool
	blocks    []*memoryBlock
}

// Allocator wraps the device pair and exposes buffer-backed memory
// allocation with automatic memory-type selection. Device-local requests
// are sub-allocated from shared blocks; host-visible requests always get a
// dedicated memory object so each mapping owns its memory exclusively.
type Allocator struct {
	Device    *Device
	BlockSize uint64

	pools     map[uint32]*memoryPool
	dedicated []*Allocation
}

func NewAllocator(d *Device) *Allocator {
	return &Allocator{
		Device:    d,
		BlockSize: DefaultBlockSize,
		pools:     make(map[uint32]*memoryPool),
	}
}

// AllocateForBuffer allocates memory satisfying the buffer's requirements
// with the requested properties and binds the buffer to it.
func (a *Allocator) AllocateForBuffer(buffer vk.Buffer, props vk.MemoryPropertyFlagBits) (*Allocation, error) {
	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(a.Device.VKDevice, buffer, &req)
	req.Deref()

	hostVisible := props&vk.MemoryPropertyHostVisibleBit != 0

	alloc, err := a.allocate(uint64(req.Size), uint64(req.Alignment), req.MemoryTypeBits, props, hostVisible)
	if err != nil {
		return nil, err
	}

	err = vk.Error(vk.BindBufferMemory(a.Device.VKDevice, buffer, alloc.Memory.VKDeviceMemory, vk.DeviceSize(alloc.Offset)))
	if err != nil {
		alloc.Free()
		return nil, err
	}
	return alloc, nil
}

// AllocateForImage allocates memory satisfying the image's requirements
// with the requested properties and binds the image to it. Image memory is
// always dedicated; attachments are few and large.
func (a *Allocator) AllocateForImage(image vk.Image, props vk.MemoryPropertyFlagBits) (*Allocation, error) {
	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(a.Device.VKDevice, image, &req)
	req.Deref()

	alloc, err := a.allocate(uint64(req.Size), uint64(req.Alignment), req.MemoryTypeBits, props, true)
	if err != nil {
		return nil, err
	}

	err = vk.Error(vk.BindImageMemory(a.Device.VKDevice, image, alloc.Memory.VKDeviceMemory, vk.DeviceSize(alloc.Offset)))
	if err != nil {
		alloc.Free()
		return nil, err
	}
	return alloc, nil
}

func (a *Allocator) allocate(size, align uint64, typeBits uint32, props vk.MemoryPropertyFlagBits, dedicated bool) (*Allocation, error) {
	typeIndex, err := a.Device.PhysicalDevice.FindMemoryType(typeBits, props)
	if err != nil {
		return nil, err
	}
	coherent := a.Device.PhysicalDevice.MemoryTypeIsCoherent(typeIndex)

	if dedicated || size > a.BlockSize {
		memory, err := a.allocateMemory(size, typeIndex)
		if err != nil {
			return nil, err
		}
		alloc := &Allocation{
			Memory:       memory,
			Offset:       0,
			Size:         size,
			HostCoherent: coherent,
			allocator:    a,
		}
		a.dedicated = append(a.dedicated, alloc)
		return alloc, nil
	}

	pool := a.pools[typeIndex]
	if pool == nil {
		pool = &memoryPool{typeIndex: typeIndex, coherent: coherent}
		a.pools[typeIndex] = pool
	}

	for _, block := range pool.blocks {
		if span := block.arena.Allocate(size, align); span != nil {
			return &Allocation{
				Memory:       block.memory,
				Offset:       span.Offset,
				Size:         span.Size,
				HostCoherent: coherent,
				allocator:    a,
				block:        block,
				span:         span,
			}, nil
		}
	}

	memory, err := a.allocateMemory(a.BlockSize, typeIndex)
	if err != nil {
		return nil, err
	}
	block := &memoryBlock{memory: memory, arena: &LinearAllocator{Size: a.BlockSize}}
	pool.blocks = append(pool.blocks, block)

	span := block.arena.Allocate(size, align)
	if span == nil {
		return nil, fmt.Errorf("allocation of %d bytes does not fit a fresh %d byte block", size, a.BlockSize)
	}
	return &Allocation{
		Memory:       block.memory,
		Offset:       span.Offset,
		Size:         span.Size,
		HostCoherent: coherent,
		allocator:    a,
		block:        block,
		span:         span,
	}, nil
}

func (a *Allocator) allocateMemory(size uint64, typeIndex uint32) (*DeviceMemory, error) {
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: typeIndex,
	}

	var deviceMemory vk.DeviceMemory
	err := vk.Error(vk.AllocateMemory(a.Device.VKDevice, &allocateInfo, nil, &deviceMemory))
	if err != nil {
		return nil, err
	}

	return &DeviceMemory{
		Device:         a.Device,
		VKDeviceMemory: deviceMemory,
		Size:           size,
		TypeIndex:      typeIndex,
	}, nil
}

func (a *Allocator) free(alloc *Allocation) {
	if alloc.block != nil {
		alloc.block.arena.Free(alloc.span)
		return
	}
	for i, d := range a.dedicated {
		if d == alloc {
			a.dedicated = append(a.dedicated[:i], a.dedicated[i+1:]...)
			break
		}
	}
	alloc.Memory.Destroy()
}

// Destroy frees all pooled blocks and any dedicated allocations that
// outlived their owners.
func (a *Allocator) Destroy() {
	for _, pool := range a.pools {
		for _, block := range pool.blocks {
			block.memory.Destroy()
		}
	}
	a.pools = make(map[uint32]*memoryPool)
	for _, d := range a.dedicated {
		d.Memory.Destroy()
		d.Memory = nil
	}
	a.dedicated = nil
}
