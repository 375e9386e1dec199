package vdbview

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordMask(t *testing.T) {
	m1 := moduleBit(ModuleTreeTopology)
	m2 := moduleBit(ModuleSurfaceMesh)

	// Visible and unrecorded records; recorded and visible does not.
	assert.Equal(t, m1, recordMask(m1, 0, false))
	assert.Equal(t, uint8(0), recordMask(m1, m1, false))

	// Recorded but invisible stays stale, never re-records.
	assert.Equal(t, uint8(0), recordMask(0, m1, false))

	// A global reset re-records exactly the visible set.
	assert.Equal(t, m1|m2, recordMask(m1|m2, m1, true))
	assert.Equal(t, uint8(0), recordMask(0, m1|m2, true))
}

func TestSubmissionCount(t *testing.T) {
	m1 := moduleBit(ModuleTreeTopology)
	m2 := moduleBit(ModuleSurfaceMesh)

	// Setup and closing always submit.
	assert.Equal(t, 2, submissionCount(0, false))
	assert.Equal(t, 3, submissionCount(m1, false))
	assert.Equal(t, 4, submissionCount(m1|m2, false))
	assert.Equal(t, 5, submissionCount(m1|m2, true))
}

func TestToggleMinimality(t *testing.T) {
	f := &FrameCache{visible: moduleBit(ModuleTreeTopology)}
	recorded := recordMask(f.visible, 0, false)

	// Hide and re-show a recorded module: no second recording happens.
	f.ToggleModule(ModuleTreeTopology)
	assert.False(t, f.IsModuleVisible(ModuleTreeTopology))
	assert.Equal(t, uint8(0), recordMask(f.visible, recorded, false))

	f.ToggleModule(ModuleTreeTopology)
	assert.True(t, f.IsModuleVisible(ModuleTreeTopology))
	assert.Equal(t, uint8(0), recordMask(f.visible, recorded, false))
}

// recordedFrames builds n frames whose buffers all count as recorded.
func recordedFrames(n int) []frameCommands {
	frames := make([]frameCommands, n)
	for i := range frames {
		frames[i].setupRecorded = true
		frames[i].overlayRecorded = true
		frames[i].closingRecorded = true
	}
	return frames
}

func TestToggleUnrecordedModuleSchedulesRecording(t *testing.T) {
	f := &FrameCache{visible: moduleBit(ModuleTreeTopology), frames: recordedFrames(1)}
	f.needsRecord = false

	f.SetModuleVisible(ModuleSurfaceMesh, true)
	assert.True(t, f.needsRecord)
	assert.False(t, f.frames[0].overlayRecorded)

	// Hiding never schedules recording.
	f2 := &FrameCache{visible: moduleBit(ModuleTreeTopology), frames: recordedFrames(1)}
	f2.SetModuleVisible(ModuleTreeTopology, false)
	assert.False(t, f2.needsRecord)
	assert.False(t, f2.frames[0].overlayRecorded)
}

func TestSetModuleVisibleIsIdempotent(t *testing.T) {
	f := &FrameCache{visible: moduleBit(ModuleTreeTopology), frames: recordedFrames(1)}

	f.SetModuleVisible(ModuleTreeTopology, true)
	assert.True(t, f.frames[0].overlayRecorded)

	f.SetModuleVisible(ModuleGnomon, false)
	assert.True(t, f.IsModuleVisible(ModuleTreeTopology))
	assert.True(t, f.frames[0].overlayRecorded)
}

// Mirrors one frame of the full scenario: with only the first module
// visible a frame submits three buffers; making a second module visible
// submits four, and the first module's buffer is untouched.
func TestFrameScenarioBufferCounts(t *testing.T) {
	f := &FrameCache{visible: moduleBit(ModuleTreeTopology)}
	var recorded uint8

	mask := recordMask(f.visible, recorded, false)
	assert.Equal(t, moduleBit(ModuleTreeTopology), mask)
	recorded |= mask
	assert.Equal(t, 3, submissionCount(f.visible, f.overlayEnabled))

	f.SetModuleVisible(ModuleSurfaceMesh, true)
	mask = recordMask(f.visible, recorded, false)
	assert.Equal(t, moduleBit(ModuleSurfaceMesh), mask,
		"only the newly visible module records")
	recorded |= mask
	assert.Equal(t, 4, submissionCount(f.visible, f.overlayEnabled))
}

func TestOverlayToggleMarksEveryImageStale(t *testing.T) {
	f := &FrameCache{frames: recordedFrames(2)}
	f.SetOverlayEnabled(true)
	assert.True(t, f.OverlayEnabled())
	for i := range f.frames {
		assert.False(t, f.frames[i].overlayRecorded, "image %d", i)
	}

	f.frames = recordedFrames(2)
	f.SetOverlayEnabled(true)
	for i := range f.frames {
		assert.True(t, f.frames[i].overlayRecorded, "image %d", i)
	}
}

// A visibility change must re-record the overlay on every swapchain image,
// not just the first one recorded afterwards.
func TestVisibilityChangeStalenessSurvivesFirstRecord(t *testing.T) {
	f := &FrameCache{visible: moduleBit(ModuleTreeTopology), frames: recordedFrames(2)}
	for i := range f.frames {
		f.frames[i].recorded = f.visible
	}
	assert.False(t, f.NeedsRecord())

	f.SetModuleVisible(ModuleTreeTopology, false)
	assert.True(t, f.NeedsRecord())

	// Image 0 records; image 1 still owes an overlay re-record.
	f.frames[0].overlayRecorded = true
	assert.False(t, f.frames[1].overlayRecorded)
	assert.True(t, f.NeedsRecord())

	f.frames[1].overlayRecorded = true
	assert.False(t, f.NeedsRecord())
}

func TestNeedsRecordScansPerImageState(t *testing.T) {
	f := &FrameCache{visible: moduleBit(ModuleTreeTopology), frames: recordedFrames(2)}
	for i := range f.frames {
		f.frames[i].recorded = f.visible
	}
	assert.False(t, f.NeedsRecord())

	// A visible module unrecorded on one image keeps the cache dirty.
	f.frames[1].recorded = 0
	assert.True(t, f.NeedsRecord())
	f.frames[1].recorded = f.visible

	f.frames[0].closingRecorded = false
	assert.True(t, f.NeedsRecord())
}

func TestFrameCommandBufferCollection(t *testing.T) {
	var fr frameCommands
	assert.Empty(t, fr.buffers())

	fr.setup = &CommandBuffer{}
	fr.modules[0] = &CommandBuffer{}
	fr.closing = &CommandBuffer{}
	assert.Len(t, fr.buffers(), 3)

	fr.overlay = &CommandBuffer{}
	for i := range fr.modules {
		fr.modules[i] = &CommandBuffer{}
	}
	assert.Len(t, fr.buffers(), ToggleableModuleCount+3)
}

func TestResetStateClearsRecordedFlags(t *testing.T) {
	frames := recordedFrames(1)
	frames[0].recorded = moduleBit(ModuleTreeTopology)

	frames[0].resetState()
	assert.Equal(t, uint8(0), frames[0].recorded)
	assert.False(t, frames[0].setupRecorded)
	assert.False(t, frames[0].overlayRecorded)
	assert.False(t, frames[0].closingRecorded)
}
