package vdbview

import (
	"github.com/chewxy/math32"
	"github.com/vulkan-go/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
)

// Mat4 is a column-major 4x4 matrix, laid out to match shader uniform
// expectations byte for byte.
type Mat4 [16]float32

func identityMat4() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

func (m Mat4) Mul(n Mat4) Mat4 {
	var out Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[k*4+row] * n[col*4+k]
			}
			out[col*4+row] = sum
		}
	}
	return out
}

// perspectiveMat4 builds a projection with depth mapped to [0, 1] and Y
// flipped for the surface's top-left origin.
func perspectiveMat4(fovDegrees, aspect, near, far float32) Mat4 {
	f := 1 / math32.Tan(fovDegrees*math32.Pi/360)
	var m Mat4
	m[0] = f / aspect
	m[5] = -f
	m[10] = far / (near - far)
	m[11] = -1
	m[14] = near * far / (near - far)
	return m
}

func lookAtMat4(eye, center, up [3]float32) Mat4 {
	sub := func(a, b [3]float32) [3]float32 {
		return [3]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
	}
	cross := func(a, b [3]float32) [3]float32 {
		return [3]float32{
			a[1]*b[2] - a[2]*b[1],
			a[2]*b[0] - a[0]*b[2],
			a[0]*b[1] - a[1]*b[0],
		}
	}
	dot := func(a, b [3]float32) float32 {
		return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
	}
	normalize := func(a [3]float32) [3]float32 {
		l := math32.Sqrt(dot(a, a))
		if l == 0 {
			return a
		}
		return [3]float32{a[0] / l, a[1] / l, a[2] / l}
	}

	f := normalize(sub(center, eye))
	s := normalize(cross(f, up))
	u := cross(s, f)

	m := identityMat4()
	m[0], m[4], m[8] = s[0], s[1], s[2]
	m[1], m[5], m[9] = u[0], u[1], u[2]
	m[2], m[6], m[10] = -f[0], -f[1], -f[2]
	m[12] = -dot(s, eye)
	m[13] = -dot(u, eye)
	m[14] = dot(f, eye)
	return m
}

// Camera is a minimal orbit camera: left drag tumbles, middle or
// shift-drag pans, the wheel zooms. Every movement grants a couple of
// display frames through the needsDisplay counter so the viewer can stop
// re-rendering once the camera settles.
type Camera struct {
	LookAt   [3]float32
	Distance float32
	RotX     float32
	RotY     float32

	FOV  float32
	Near float32
	Far  float32

	TumbleSpeed float32
	ZoomSpeed   float32
	StrafeSpeed float32

	mouseDown  bool
	startPan   bool
	shiftHeld  bool
	mouseX     float32
	mouseY     float32
	needUpdate int
}

// NewCamera returns an orbit camera at the default distance and angles.
func NewCamera() *Camera {
	return &Camera{
		Distance:    25,
		FOV:         65,
		Near:        0.1,
		Far:         10000,
		TumbleSpeed: 0.5,
		ZoomSpeed:   0.2,
		StrafeSpeed: 0.05,
		needUpdate:  2,
	}
}

// FrameGrid aims the camera at the grid's world-space bounding box and
// scales the motion speeds to its size.
func (c *Camera) FrameGrid(g *GridData) {
	min, max := g.WorldMin(), g.WorldMax()
	var size float32
	for i := 0; i < 3; i++ {
		c.LookAt[i] = (min[i] + max[i]) * 0.5
		if d := max[i] - min[i]; d > size {
			size = d
		}
	}
	if size == 0 {
		size = 1
	}
	c.Distance = size * 1.5
	c.ZoomSpeed = size * 0.02
	c.StrafeSpeed = size * 0.002
	c.markDirty()
}

func (c *Camera) markDirty() {
	c.needUpdate = 2
}

// NeedsDisplay consumes one granted display frame and reports whether the
// camera still requires rendering. Two frames are granted per event so
// every swapchain image picks up the final state.
func (c *Camera) NeedsDisplay() bool {
	if c.needUpdate <= 0 {
		return false
	}
	c.needUpdate--
	return true
}

func (c *Camera) eye() [3]float32 {
	rx := c.RotX * math32.Pi / 180
	ry := c.RotY * math32.Pi / 180
	return [3]float32{
		c.LookAt[0] + c.Distance*math32.Cos(rx)*math32.Sin(ry),
		c.LookAt[1] + c.Distance*math32.Sin(rx),
		c.LookAt[2] + c.Distance*math32.Cos(rx)*math32.Cos(ry),
	}
}

// ViewProjection returns the combined matrix for the given aspect ratio.
func (c *Camera) ViewProjection(aspect float32) Mat4 {
	view := lookAtMat4(c.eye(), c.LookAt, [3]float32{0, 1, 0})
	proj := perspectiveMat4(c.FOV, aspect, c.Near, c.Far)
	return proj.Mul(view)
}

// KeyCallback tracks the shift modifier used for pan-dragging.
func (c *Camera) KeyCallback(key glfw.Key, action glfw.Action) {
	if key == glfw.KeyLeftShift || key == glfw.KeyRightShift {
		c.shiftHeld = action != glfw.Release
	}
}

// MouseButtonCallback starts and stops a drag.
func (c *Camera) MouseButtonCallback(button glfw.MouseButton, action glfw.Action) {
	switch button {
	case glfw.MouseButtonLeft:
		c.mouseDown = action == glfw.Press
		c.startPan = c.mouseDown && c.shiftHeld
	case glfw.MouseButtonMiddle:
		c.mouseDown = action == glfw.Press
		c.startPan = c.mouseDown
	}
	c.markDirty()
}

// MousePosCallback tumbles or pans during a drag.
func (c *Camera) MousePosCallback(x, y float64) {
	dx := float32(x) - c.mouseX
	dy := float32(y) - c.mouseY
	c.mouseX = float32(x)
	c.mouseY = float32(y)
	if !c.mouseDown {
		return
	}
	if c.startPan {
		rx := c.RotX * math32.Pi / 180
		ry := c.RotY * math32.Pi / 180
		rightX := math32.Cos(ry)
		rightZ := -math32.Sin(ry)
		c.LookAt[0] -= dx * c.StrafeSpeed * rightX
		c.LookAt[2] -= dx * c.StrafeSpeed * rightZ
		c.LookAt[1] += dy * c.StrafeSpeed * math32.Cos(rx)
	} else {
		c.RotX += dy * c.TumbleSpeed
		c.RotY -= dx * c.TumbleSpeed
		if c.RotX > 89 {
			c.RotX = 89
		}
		if c.RotX < -89 {
			c.RotX = -89
		}
	}
	c.markDirty()
}

// MouseWheelCallback zooms along the view axis.
func (c *Camera) MouseWheelCallback(yoffset float64) {
	c.Distance -= float32(yoffset) * c.ZoomSpeed * 10
	if c.Distance < c.Near {
		c.Distance = c.Near
	}
	c.markDirty()
}

// CameraUniforms feeds the camera matrix to shaders through a coherent,
// persistently mapped buffer. Writes land without explicit flushes.
type CameraUniforms struct {
	Buffer *MappableBuffer
}

// NewCameraUniforms allocates the uniform buffer, mapped for the lifetime
// of the viewer.
func NewCameraUniforms(a *Allocator) (*CameraUniforms, error) {
	buf, err := a.CreateMappableBuffer(uint64(len(Mat4{})*4),
		vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
		MapCreateMapped|MapSequentialWrite)
	if err != nil {
		return nil, err
	}
	return &CameraUniforms{Buffer: buf}, nil
}

// Update writes the current view-projection matrix into the mapped range.
func (u *CameraUniforms) Update(c *Camera, aspect float32) error {
	m := c.ViewProjection(aspect)
	dst, err := u.Buffer.Bytes()
	if err != nil {
		return err
	}
	copy(dst, floatBytes(m[:]))
	return u.Buffer.Flush()
}

// Cleanup implements ScopeChild.
func (u *CameraUniforms) Cleanup() {
	u.Destroy()
}

// Destroy releases the uniform buffer.
func (u *CameraUniforms) Destroy() {
	if u == nil {
		return
	}
	u.Buffer.Reset()
}
