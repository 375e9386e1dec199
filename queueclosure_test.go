package vdbview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDestroyWithOpenRecordingPanics(t *testing.T) {
	c := &QueueClosure{cmd: &CommandBuffer{}, recording: true}

	defer func() {
		r := recover()
		require.NotNil(t, r, "expected panic")
		le, ok := r.(*LogicError)
		require.True(t, ok, "expected LogicError, got %T", r)
		assert.Contains(t, le.Error(), "open or unflushed")
	}()
	c.Destroy()
}

func TestDestroyIdleClosureDoesNotPanic(t *testing.T) {
	c := &QueueClosure{}
	assert.NotPanics(t, func() { c.Destroy() })
	assert.Nil(t, c.Queue)
}

func TestEndWithoutBeginPanics(t *testing.T) {
	c := &QueueClosure{}
	assert.Panics(t, func() { c.checkOpenRecording(&CommandBuffer{}) })
}

func TestEndWithForeignCommandBufferPanics(t *testing.T) {
	mine := &CommandBuffer{}
	c := &QueueClosure{cmd: mine, recording: true}

	assert.Panics(t, func() { c.checkOpenRecording(&CommandBuffer{}) })
	assert.NotPanics(t, func() { c.checkOpenRecording(mine) })
}

func TestAbandonReturnsClosureToIdle(t *testing.T) {
	c := &QueueClosure{cmd: &CommandBuffer{}, recording: true}

	c.AbandonSingleSubmit()
	assert.False(t, c.IsRecording())
	assert.False(t, c.InFlight())
	assert.NotPanics(t, func() { c.Destroy() })
}

func TestAbandonIdleClosureIsNoOp(t *testing.T) {
	c := &QueueClosure{}
	assert.NotPanics(t, func() { c.AbandonSingleSubmit() })
	assert.False(t, c.IsRecording())
	assert.False(t, c.InFlight())
}

func TestSignalCompleteClearsInFlightState(t *testing.T) {
	c := &QueueClosure{cmd: &CommandBuffer{}}

	require.True(t, c.InFlight())
	c.SignalSingleSubmitComplete()
	assert.False(t, c.InFlight())
	assert.NotPanics(t, func() { c.Destroy() })
}

func TestCloneDropsInFlightState(t *testing.T) {
	c := &QueueClosure{cmd: &CommandBuffer{}, recording: true}

	clone := c.Clone()
	assert.False(t, clone.IsRecording())
	assert.False(t, clone.InFlight())
	assert.NotPanics(t, func() { clone.Destroy() })

	// The original still holds its open recording.
	assert.True(t, c.IsRecording())
}
