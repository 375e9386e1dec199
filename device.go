package vdbview

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// Device pairs the physical capability handle with the logical execution
// context. It is immutable once created and owned by the runtime scope; all
// other entities hold non-owning references to it.
type Device struct {
	PhysicalDevice *PhysicalDevice
	VKDevice       vk.Device
}

func (d *Device) Destroy() {
	vk.DestroyDevice(d.VKDevice, nil)
}

func (d *Device) String() string {
	return fmt.Sprintf("{ PhysicalDevice: %s }", d.PhysicalDevice)
}

func (d *Device) WaitIdle() {
	vk.DeviceWaitIdle(d.VKDevice)
}

func (d *Device) GetQueue(qf *QueueFamily) *Queue {
	return d.GetQueueAt(qf, 0)
}

// GetQueueAt retrieves the queue at the given logical index within a family.
func (d *Device) GetQueueAt(qf *QueueFamily, logicalIndex int) *Queue {
	var vkq vk.Queue
	vk.GetDeviceQueue(d.VKDevice, uint32(qf.Index), uint32(logicalIndex), &vkq)

	return &Queue{
		Device:       d,
		QueueFamily:  qf,
		LogicalIndex: logicalIndex,
		VKQueue:      vkq,
	}
}
