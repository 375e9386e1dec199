package vdbview

import (
	"sync/atomic"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// DeviceMemory wraps one native memory object, which may live on the host
// or on the device depending on the type it was allocated from.
type DeviceMemory struct {
	Device         *Device
	VKDeviceMemory vk.DeviceMemory
	Size           uint64
	TypeIndex      uint32
	MapCount       int32
	Ptr            unsafe.Pointer
}

// IsMapped returns true if the device memory is currently mapped.
func (d *DeviceMemory) IsMapped() bool {
	return atomic.LoadInt32(&d.MapCount) > 0
}

func (d *DeviceMemory) Destroy() {
	vk.FreeMemory(d.Device.VKDevice, d.VKDeviceMemory, nil)
}

// MapRange maps size bytes of this memory starting at offset.
func (d *DeviceMemory) MapRange(offset, size uint64) (unsafe.Pointer, error) {
	var res unsafe.Pointer
	err := vk.Error(vk.MapMemory(d.Device.VKDevice, d.VKDeviceMemory, vk.DeviceSize(offset), vk.DeviceSize(size), 0, &res))
	if err != nil {
		return nil, err
	}
	atomic.AddInt32(&d.MapCount, 1)
	return res, nil
}

// Map maps the entirety of this memory.
func (d *DeviceMemory) Map() (unsafe.Pointer, error) {
	res, err := d.MapRange(0, d.Size)
	if err != nil {
		return nil, err
	}
	d.Ptr = res
	return res, nil
}

// Unmap unmaps this memory.
func (d *DeviceMemory) Unmap() {
	d.Ptr = nil
	vk.UnmapMemory(d.Device.VKDevice, d.VKDeviceMemory)
	atomic.AddInt32(&d.MapCount, -1)
}

// MapCopyUnmap maps this memory, copies the given data into it, and unmaps.
func (d *DeviceMemory) MapCopyUnmap(data []byte) error {
	pm, err := d.MapRange(0, uint64(len(data)))
	if err != nil {
		return err
	}
	copy(toBytes(pm, len(data)), data)
	d.Unmap()
	return nil
}

// Flush makes host writes in the given range visible to the device. Needed
// only for non-coherent memory types.
func (d *DeviceMemory) Flush(offset, size uint64) error {
	r := vk.MappedMemoryRange{
		SType:  vk.StructureTypeMappedMemoryRange,
		Memory: d.VKDeviceMemory,
		Offset: vk.DeviceSize(offset),
		Size:   vk.DeviceSize(size),
	}
	return vk.Error(vk.FlushMappedMemoryRanges(d.Device.VKDevice, 1, []vk.MappedMemoryRange{r}))
}

// Invalidate makes device writes in the given range visible to the host.
// Needed only for non-coherent memory types.
func (d *DeviceMemory) Invalidate(offset, size uint64) error {
	r := vk.MappedMemoryRange{
		SType:  vk.StructureTypeMappedMemoryRange,
		Memory: d.VKDeviceMemory,
		Offset: vk.DeviceSize(offset),
		Size:   vk.DeviceSize(size),
	}
	return vk.Error(vk.InvalidateMappedMemoryRanges(d.Device.VKDevice, 1, []vk.MappedMemoryRange{r}))
}

// toBytes converts an unsafe.Pointer and a length in bytes to a byte slice.
func toBytes(ptr unsafe.Pointer, lenInBytes int) []byte {
	const m = 0x7fffffff
	return (*[m]byte)(ptr)[:lenInBytes]
}
