package vdbview

import (
	vk "github.com/vulkan-go/vulkan"
)

// CommandBuffer describes a sequence of commands that will be executed upon
// being sent to a device queue. Only the commands the viewer needs are
// wrapped; callers may record against the native handle directly.
type CommandBuffer struct {
	VKCommandBuffer vk.CommandBuffer
}

// VK is a utility function for accessing the native vulkan command buffer.
func (c *CommandBuffer) VK() vk.CommandBuffer {
	return c.VKCommandBuffer
}

// Reset this command buffer.
func (c *CommandBuffer) Reset() error {
	return vk.Error(vk.ResetCommandBuffer(c.VKCommandBuffer, 0))
}

// Begin capturing work for this command buffer.
func (c *CommandBuffer) Begin() error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	return vk.Error(vk.BeginCommandBuffer(c.VKCommandBuffer, &beginInfo))
}

// BeginOneTime begins capturing work for this command buffer with the
// stipulation that it will be submitted exactly once.
func (c *CommandBuffer) BeginOneTime() error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	return vk.Error(vk.BeginCommandBuffer(c.VKCommandBuffer, &beginInfo))
}

// End describing work for this command buffer.
func (c *CommandBuffer) End() error {
	return vk.Error(vk.EndCommandBuffer(c.VKCommandBuffer))
}

// CmdImageBarrier records a layout transition for a color or depth image.
func (c *CommandBuffer) CmdImageBarrier(image vk.Image, aspect vk.ImageAspectFlags,
	oldLayout, newLayout vk.ImageLayout,
	srcStage vk.PipelineStageFlags, srcAccess vk.AccessFlags,
	dstStage vk.PipelineStageFlags, dstAccess vk.AccessFlags) {

	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	vk.CmdPipelineBarrier(c.VKCommandBuffer, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

// CmdSetViewportScissor records a full-extent viewport and scissor.
func (c *CommandBuffer) CmdSetViewportScissor(extent vk.Extent2D) {
	viewport := vk.Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	vk.CmdSetViewport(c.VKCommandBuffer, 0, 1, []vk.Viewport{viewport})

	scissor := vk.Rect2D{Extent: extent}
	vk.CmdSetScissor(c.VKCommandBuffer, 0, 1, []vk.Rect2D{scissor})
}
