package vdbview

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// UploadStagedBuffer pairs a device-local buffer with an internally owned
// host-visible staging buffer of identical size. Data is placed in the
// stage with StageData and moved to the device side by recording a copy,
// either into a caller's command buffer or synchronously through a queue
// closure.
type UploadStagedBuffer struct {
	Buffer
	Stage *MappableBuffer
}

// CreateUploadStagedBuffer creates the device-local destination and its
// staging pair. The destination usage must include transfer-dst or the
// upload copy could never execute.
func (a *Allocator) CreateUploadStagedBuffer(sizeInBytes uint64, usage vk.BufferUsageFlags) (*UploadStagedBuffer, error) {
	if usage&vk.BufferUsageFlags(vk.BufferUsageTransferDstBit) == 0 {
		return nil, fmt.Errorf("staged buffer usage must include transfer-dst")
	}

	dst, err := a.CreateBuffer(sizeInBytes, usage)
	if err != nil {
		return nil, err
	}

	stage, err := a.CreateMappableBuffer(sizeInBytes,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		MapCreateMapped|MapSequentialWrite)
	if err != nil {
		dst.Reset()
		return nil, err
	}

	return &UploadStagedBuffer{Buffer: *dst, Stage: stage}, nil
}

// StageData copies data into the staging buffer and flushes it.
func (u *UploadStagedBuffer) StageData(data []byte) error {
	return u.StageDataN(data, uint64(len(data)))
}

// StageDataN copies the first n bytes of data into the staging buffer and
// flushes it. Staging more bytes than the destination holds is refused.
func (u *UploadStagedBuffer) StageDataN(data []byte, n uint64) error {
	if !u.IsValid() {
		return ErrNotAllocated
	}
	if u.Stage == nil {
		return ErrStageDropped
	}
	if n > u.Size {
		return fmt.Errorf("staging %d bytes into a %d byte buffer: %w", n, u.Size, ErrOutOfRange)
	}
	if n > uint64(len(data)) {
		return fmt.Errorf("staging %d bytes from a %d byte slice: %w", n, len(data), ErrOutOfRange)
	}

	dst, err := u.Stage.Bytes()
	if err != nil {
		return err
	}
	copy(dst[:n], data[:n])
	return u.Stage.Flush()
}

// RecUpload records the stage-to-device copy into the given command buffer.
func (u *UploadStagedBuffer) RecUpload(cb *CommandBuffer) error {
	if !u.IsValid() {
		return ErrNotAllocated
	}
	if u.Stage == nil {
		return ErrStageDropped
	}
	vk.CmdCopyBuffer(cb.VK(), u.Stage.VKBuffer, u.VKBuffer, 1, []vk.BufferCopy{{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      vk.DeviceSize(u.Size),
	}})
	return nil
}

// RecUploadBarrier records a barrier making the copy visible to the given
// destination stage and access mask.
func (u *UploadStagedBuffer) RecUploadBarrier(cb *CommandBuffer, dstStage vk.PipelineStageFlags, dstAccess vk.AccessFlags) error {
	if !u.IsValid() {
		return ErrNotAllocated
	}
	barrier := vk.BufferMemoryBarrier{
		SType:               vk.StructureTypeBufferMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
		DstAccessMask:       dstAccess,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Buffer:              u.VKBuffer,
		Offset:              0,
		Size:                vk.DeviceSize(u.Size),
	}
	vk.CmdPipelineBarrier(cb.VK(),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit), dstStage, 0,
		0, nil, 1, []vk.BufferMemoryBarrier{barrier}, 0, nil)
	return nil
}

// RecStagedUpload records the copy followed by its visibility barrier.
func (u *UploadStagedBuffer) RecStagedUpload(cb *CommandBuffer, dstStage vk.PipelineStageFlags, dstAccess vk.AccessFlags) error {
	if err := u.RecUpload(cb); err != nil {
		return err
	}
	return u.RecUploadBarrier(cb, dstStage, dstAccess)
}

// UploadNow performs the upload through the queue closure's blocking
// single-submission path, returning once the copy has drained.
func (u *UploadStagedBuffer) UploadNow(qc *QueueClosure, dstStage vk.PipelineStageFlags, dstAccess vk.AccessFlags) error {
	cb, err := qc.BeginSingleSubmit(nil)
	if err != nil {
		return err
	}
	if err := u.RecStagedUpload(cb, dstStage, dstAccess); err != nil {
		qc.AbandonSingleSubmit()
		return err
	}
	return qc.EndSingleSubmitAndFlush(cb)
}

// DropStage frees the staging side and returns the device-local buffer,
// leaving the receiver unallocated. The transition is one-way; a dropped
// stage cannot be reattached.
func (u *UploadStagedBuffer) DropStage() Buffer {
	if u.Stage != nil {
		u.Stage.Reset()
		u.Stage = nil
	}
	dst := u.Buffer
	u.Buffer.clear()
	return dst
}

// Reset frees both halves of the pair.
func (u *UploadStagedBuffer) Reset() {
	if u.Stage != nil {
		u.Stage.Reset()
		u.Stage = nil
	}
	u.Buffer.Reset()
}
