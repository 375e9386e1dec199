package vdbview

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// MapFlags control how a MappableBuffer's memory is mapped and accessed.
type MapFlags uint32

const (
	// MapCreateMapped maps the buffer at construction and keeps it mapped
	// for the object's entire lifetime.
	MapCreateMapped MapFlags = 1 << iota
	// MapRandomAccess requests cached memory suitable for host reads.
	MapRandomAccess
	// MapSequentialWrite marks the buffer as write-mostly from the host.
	MapSequentialWrite
	// MapRequireCoherence fails construction unless a host-coherent memory
	// type is selected.
	MapRequireCoherence
)

// MappableBuffer is a Buffer whose memory is visible to the host. If
// constructed with MapCreateMapped the mapped pointer stays non-nil for the
// object's lifetime; otherwise it is non-nil only between Map and Unmap.
type MappableBuffer struct {
	Buffer
	MapMode  MapFlags
	Coherent bool

	ptr unsafe.Pointer
}

func mappableMemoryProperties(flags MapFlags) vk.MemoryPropertyFlagBits {
	props := vk.MemoryPropertyHostVisibleBit
	if flags&MapRandomAccess != 0 {
		props |= vk.MemoryPropertyHostCachedBit
	}
	if flags&MapRequireCoherence != 0 {
		props |= vk.MemoryPropertyHostCoherentBit
	}
	return props
}

// CreateMappableBuffer creates a host-visible buffer with memory properties
// derived from flags.
func (a *Allocator) CreateMappableBuffer(sizeInBytes uint64, usage vk.BufferUsageFlags, flags MapFlags) (*MappableBuffer, error) {
	return a.CreateMappableBufferWithProperties(sizeInBytes, usage, flags, mappableMemoryProperties(flags))
}

// CreateMappableBufferWithProperties creates a host-visible buffer using
// the caller's explicit memory properties. Construction fails if the given
// properties do not guarantee host visibility; a mappable buffer that
// cannot be mapped is always a caller mistake.
func (a *Allocator) CreateMappableBufferWithProperties(sizeInBytes uint64, usage vk.BufferUsageFlags, flags MapFlags, props vk.MemoryPropertyFlagBits) (*MappableBuffer, error) {
	if props&vk.MemoryPropertyHostVisibleBit == 0 {
		return nil, fmt.Errorf("mappable buffer requires host-visible memory properties")
	}

	buf, err := a.CreateBufferWithProperties(sizeInBytes, usage, props)
	if err != nil {
		return nil, err
	}

	m := &MappableBuffer{
		Buffer:   *buf,
		MapMode:  flags,
		Coherent: buf.Allocation.HostCoherent,
	}

	if flags&MapRequireCoherence != 0 && !m.Coherent {
		m.Buffer.Reset()
		return nil, fmt.Errorf("coherent mapping required but selected memory type is not host-coherent")
	}

	if flags&MapCreateMapped != 0 {
		m.ptr, err = m.Allocation.Memory.MapRange(m.Allocation.Offset, m.Allocation.Size)
		if err != nil {
			m.Buffer.Reset()
			return nil, fmt.Errorf("persistent map failed: %w", err)
		}
	}

	return m, nil
}

// IsPersistentlyMapped reports whether the buffer was created mapped.
func (m *MappableBuffer) IsPersistentlyMapped() bool {
	return m.MapMode&MapCreateMapped != 0
}

// Map returns a pointer to the buffer's memory, mapping it first if
// needed. For persistently mapped buffers this returns the existing
// pointer.
func (m *MappableBuffer) Map() (unsafe.Pointer, error) {
	if !m.IsValid() {
		return nil, ErrNotAllocated
	}
	if m.ptr != nil {
		return m.ptr, nil
	}
	ptr, err := m.Allocation.Memory.MapRange(m.Allocation.Offset, m.Allocation.Size)
	if err != nil {
		return nil, err
	}
	m.ptr = ptr
	return ptr, nil
}

// Unmap releases the mapping established by Map. It is a no-op for
// persistently mapped buffers, non-coherent pages are flushed and
// invalidated first, and calling it on an unallocated or unmapped buffer
// is safe.
func (m *MappableBuffer) Unmap() {
	if !m.IsValid() || m.ptr == nil {
		return
	}
	if m.IsPersistentlyMapped() {
		return
	}
	if !m.Coherent {
		m.Flush()
		m.InvalidatePages()
	}
	m.Allocation.Memory.Unmap()
	m.ptr = nil
}

// Bytes returns the mapped memory as a byte slice. The buffer must be
// mapped.
func (m *MappableBuffer) Bytes() ([]byte, error) {
	if !m.IsValid() {
		return nil, ErrNotAllocated
	}
	if m.ptr == nil {
		return nil, fmt.Errorf("buffer is not mapped")
	}
	return toBytes(m.ptr, int(m.Size)), nil
}

// Flush makes host writes visible to the device. It is a no-op when the
// memory type is coherent or the buffer is unallocated.
func (m *MappableBuffer) Flush() error {
	if !m.IsValid() || m.Coherent {
		return nil
	}
	return m.Allocation.Memory.Flush(m.Allocation.Offset, m.Allocation.Size)
}

// InvalidatePages makes device writes visible to the host. It is a no-op
// when the memory type is coherent or the buffer is unallocated.
func (m *MappableBuffer) InvalidatePages() error {
	if !m.IsValid() || m.Coherent {
		return nil
	}
	return m.Allocation.Memory.Invalidate(m.Allocation.Offset, m.Allocation.Size)
}

// Reset unmaps, destroys the buffer, and frees its allocation. Safe on the
// zero value.
func (m *MappableBuffer) Reset() {
	if m.IsValid() && m.ptr != nil {
		m.Allocation.Memory.Unmap()
	}
	m.ptr = nil
	m.Buffer.Reset()
}
