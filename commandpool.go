package vdbview

import (
	vk "github.com/vulkan-go/vulkan"
)

type CommandPool struct {
	Device        *Device
	QueueFamily   *QueueFamily
	VKCommandPool vk.CommandPool
}

// CreateCommandPool creates a pool whose buffers can be individually reset,
// the mode the per-frame command cache depends on.
func (d *Device) CreateCommandPool(q *QueueFamily) (*CommandPool, error) {
	return d.createCommandPool(q, vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit))
}

// CreateTransientCommandPool creates a pool for short-lived one-shot
// buffers, the mode single-submission recordings use.
func (d *Device) CreateTransientCommandPool(q *QueueFamily) (*CommandPool, error) {
	return d.createCommandPool(q, vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit))
}

func (d *Device) createCommandPool(q *QueueFamily, flags vk.CommandPoolCreateFlags) (*CommandPool, error) {
	commandPoolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            flags,
		QueueFamilyIndex: uint32(q.Index),
	}

	var commandPool vk.CommandPool
	err := vk.Error(vk.CreateCommandPool(d.VKDevice, &commandPoolCreateInfo, nil, &commandPool))
	if err != nil {
		return nil, err
	}

	return &CommandPool{Device: d, QueueFamily: q, VKCommandPool: commandPool}, nil
}

func (c *CommandPool) Destroy() {
	vk.DestroyCommandPool(c.Device.VKDevice, c.VKCommandPool, nil)
}

// Reset returns every buffer allocated from the pool to the initial state.
func (c *CommandPool) Reset() error {
	return vk.Error(vk.ResetCommandPool(c.Device.VKDevice, c.VKCommandPool, 0))
}

func (c *CommandPool) AllocateBuffers(count int) ([]*CommandBuffer, error) {
	commandBufferAllocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        c.VKCommandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}

	cmdBuffers := make([]vk.CommandBuffer, count)
	err := vk.Error(vk.AllocateCommandBuffers(c.Device.VKDevice, &commandBufferAllocateInfo, cmdBuffers))
	if err != nil {
		return nil, err
	}

	ret := make([]*CommandBuffer, count)
	for i := range ret {
		ret[i] = &CommandBuffer{VKCommandBuffer: cmdBuffers[i]}
	}
	return ret, nil
}

func (c *CommandPool) AllocateBuffer() (*CommandBuffer, error) {
	ret, err := c.AllocateBuffers(1)
	if err != nil {
		return nil, err
	}
	return ret[0], nil
}

func (c *CommandPool) FreeBuffers(bs []*CommandBuffer) {
	b := make([]vk.CommandBuffer, len(bs))
	for i := range bs {
		b[i] = bs[i].VKCommandBuffer
	}
	vk.FreeCommandBuffers(c.Device.VKDevice, c.VKCommandPool, uint32(len(bs)), b)
}

func (c *CommandPool) FreeBuffer(b *CommandBuffer) {
	vk.FreeCommandBuffers(c.Device.VKDevice, c.VKCommandPool, 1, []vk.CommandBuffer{b.VKCommandBuffer})
}
