package vdbview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

// fakeBoundBuffer builds a buffer that reports valid without touching a
// device, for exercising ownership transitions host-side.
func fakeBoundBuffer(size uint64) Buffer {
	return Buffer{
		Size:       size,
		Allocation: &Allocation{Memory: &DeviceMemory{}, Size: size},
	}
}

func TestZeroValueBufferIsUnallocated(t *testing.T) {
	var b Buffer
	assert.False(t, b.IsValid())
	assert.Equal(t, vk.NullBuffer, b.VK())
}

func TestResetOnUnallocatedBufferIsNoOp(t *testing.T) {
	var b Buffer
	b.Reset()
	b.Reset()
	assert.False(t, b.IsValid())
}

func TestReleaseLeavesSourceUnallocated(t *testing.T) {
	b := fakeBoundBuffer(128)
	require.True(t, b.IsValid())

	_, alloc := b.Release()
	require.NotNil(t, alloc)

	assert.False(t, b.IsValid())
	assert.Nil(t, b.Allocation)
	assert.EqualValues(t, 0, b.Size)

	// The source must now be inert; resetting it cannot free anything.
	b.Reset()
	assert.False(t, b.IsValid())
}

func TestFreedAllocationIsSafeToFreeAgain(t *testing.T) {
	var a *Allocation
	a.Free()

	a = &Allocation{}
	a.Free()
	a.Free()
	assert.Nil(t, a.Memory)
}

func TestMappableBufferRequiresHostVisibleProperties(t *testing.T) {
	a := &Allocator{}
	_, err := a.CreateMappableBufferWithProperties(64,
		vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
		0, vk.MemoryPropertyDeviceLocalBit)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host-visible")
}

func TestMappableBufferZeroValueGuards(t *testing.T) {
	var m MappableBuffer

	_, err := m.Map()
	assert.ErrorIs(t, err, ErrNotAllocated)

	_, err = m.Bytes()
	assert.ErrorIs(t, err, ErrNotAllocated)

	assert.NoError(t, m.Flush())
	assert.NoError(t, m.InvalidatePages())
	m.Unmap()
	m.Reset()
	assert.False(t, m.IsValid())
}

func TestFlushIsNoOpWhenCoherent(t *testing.T) {
	m := MappableBuffer{Buffer: fakeBoundBuffer(64), Coherent: true}
	assert.NoError(t, m.Flush())
	assert.NoError(t, m.InvalidatePages())
}

func TestStagedBufferRequiresTransferDst(t *testing.T) {
	a := &Allocator{}
	_, err := a.CreateUploadStagedBuffer(64,
		vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transfer-dst")
}

func TestStageDataGuards(t *testing.T) {
	var u UploadStagedBuffer
	assert.ErrorIs(t, u.StageData([]byte{1, 2, 3}), ErrNotAllocated)

	u.Buffer = fakeBoundBuffer(8)
	assert.ErrorIs(t, u.StageData([]byte{1}), ErrStageDropped)

	u.Stage = &MappableBuffer{}
	err := u.StageData(make([]byte, 16))
	assert.ErrorIs(t, err, ErrOutOfRange)

	err = u.StageDataN(make([]byte, 2), 4)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestDropStageIsOneWay(t *testing.T) {
	u := UploadStagedBuffer{Buffer: fakeBoundBuffer(32)}

	dst := u.DropStage()
	assert.True(t, dst.IsValid())
	assert.False(t, u.IsValid())
	assert.Nil(t, u.Stage)

	// A second drop returns nothing; the transition already happened.
	again := u.DropStage()
	assert.False(t, again.IsValid())

	assert.ErrorIs(t, u.StageData([]byte{1}), ErrNotAllocated)
}

func TestRecUploadOnDroppedStage(t *testing.T) {
	u := UploadStagedBuffer{Buffer: fakeBoundBuffer(32)}
	assert.ErrorIs(t, u.RecUpload(&CommandBuffer{}), ErrStageDropped)
}
