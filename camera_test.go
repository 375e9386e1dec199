package vdbview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vulkan-go/glfw/v3.3/glfw"
)

func TestMat4Identity(t *testing.T) {
	m := identityMat4()
	v := m.Mul(identityMat4())
	assert.Equal(t, m, v)
}

func TestNeedsDisplayGrantsTwoFrames(t *testing.T) {
	c := NewCamera()
	assert.True(t, c.NeedsDisplay())
	assert.True(t, c.NeedsDisplay())
	assert.False(t, c.NeedsDisplay())

	c.MouseWheelCallback(1)
	assert.True(t, c.NeedsDisplay())
	assert.True(t, c.NeedsDisplay())
	assert.False(t, c.NeedsDisplay())
}

func TestFrameGridCentersLookAt(t *testing.T) {
	c := NewCamera()
	g := &GridData{
		IndexMin:  [3]float32{-10, 0, -10},
		IndexMax:  [3]float32{10, 20, 10},
		VoxelSize: [3]float64{1, 1, 1},
	}
	c.FrameGrid(g)
	assert.InDelta(t, 0, c.LookAt[0], 1e-5)
	assert.InDelta(t, 10, c.LookAt[1], 1e-5)
	assert.Greater(t, c.Distance, float32(0))
}

func TestTumbleClampsPitch(t *testing.T) {
	c := NewCamera()
	c.MouseButtonCallback(glfw.MouseButtonLeft, glfw.Press)
	c.MousePosCallback(0, 10000)
	assert.LessOrEqual(t, c.RotX, float32(89))

	c.MousePosCallback(0, -20000)
	assert.GreaterOrEqual(t, c.RotX, float32(-89))
}

func TestZoomNeverCrossesNearPlane(t *testing.T) {
	c := NewCamera()
	for i := 0; i < 100; i++ {
		c.MouseWheelCallback(50)
	}
	assert.GreaterOrEqual(t, c.Distance, c.Near)
}

func TestViewProjectionIsFinite(t *testing.T) {
	c := NewCamera()
	m := c.ViewProjection(16.0 / 9.0)
	for i, v := range m {
		assert.False(t, v != v, "NaN at element %d", i)
	}
	// Perspective w-divide row must be live.
	assert.Equal(t, float32(-1), m[11])
}
