/*
Package vdbview implements the Vulkan resource management and frame
lifecycle core of an interactive OpenVDB grid viewer.

The package is organized as a stack of ownership layers. At the bottom,
Buffer and its specializations (MappableBuffer, UploadStagedBuffer) wrap
device memory behind a valid-or-null discipline: the zero value is the
unallocated state, Reset is always safe to call, and handing a buffer's
handles to another owner leaves the source unallocated rather than
aliased. QueueClosure scopes one-shot command recording and submission to
a single queue, and RuntimeScope distributes the device, allocator, and
queue closures to every subsystem explicitly, with an ordered teardown of
registered children.

Above those, VulkanWindow negotiates and owns the swapchain, resolving
every capability shortfall (format, present mode, image count, sample
count) by deterministic fallback with a logged warning. FrameCache splits
one logical render pass across per-image command buffers so individual
render layers can be toggled without re-recording the others; its record
and submission decisions are driven by visibility and recorded bitsets.
Viewer assembles the stack into the interactive application loop with an
orbit camera and a damage-cooldown gate on swapchain recreation.
*/
package vdbview
