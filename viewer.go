package vdbview

import (
	"fmt"
	"log"
	"time"

	"github.com/vulkan-go/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
)

// ViewerVersion identifies this release.
var ViewerVersion = Version{1, 0, 0}

// damageCooldown is how long the frame pump holds off after window damage
// before recreating the swapchain. Damage events arrive in bursts during
// interactive resizing; the cooldown collapses each burst into a single
// recreation.
const damageCooldown = 100 * time.Millisecond

// Viewer assembles the window, runtime scope, frame cache, and camera
// into the interactive grid viewer. One Viewer owns one native window.
type Viewer struct {
	App      *AppInfo
	Instance *Instance
	Window   *glfw.Window
	Surface  vk.Surface

	Scope    *RuntimeScope
	VKWindow *VulkanWindow
	Cache    *FrameCache
	Camera   *Camera
	Uniforms *CameraUniforms

	Grids     []*GridData
	gridIndex int

	cooldownDeadline time.Time

	fullscreen bool
	windowedX  int
	windowedY  int
	windowedW  int
	windowedH  int
}

// VersionString lists the viewer and the API versions it was built
// against.
func VersionString() string {
	return fmt.Sprintf("vdbview: %d.%d.%d, vulkan: 1.1, glfw: %d.%d.%d",
		ViewerVersion.Major, ViewerVersion.Minor, ViewerVersion.Patch,
		glfw.VersionMajor, glfw.VersionMinor, glfw.VersionRevision)
}

// Open initializes the windowing and GPU layers and builds the full
// rendering stack at the requested size. The sample count is clamped down
// to the device's nearest supported power of two.
func Open(width, height int, samples vk.SampleCountFlagBits) (*Viewer, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("initializing glfw: %w", err)
	}
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("initializing vulkan: %w", err)
	}

	v := &Viewer{}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	var err error
	v.Window, err = glfw.CreateWindow(width, height, "vdbview", nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("creating window: %w", err)
	}

	v.App = &AppInfo{
		Name:       "vdbview",
		Version:    ViewerVersion,
		APIVersion: Version{1, 1, 0},
	}
	for _, ext := range v.Window.GetRequiredInstanceExtensions() {
		v.App.EnableExtension(ext)
	}

	v.Instance, err = v.App.CreateInstance()
	if err != nil {
		v.destroyPartial()
		return nil, err
	}

	surfacePtr, err := v.Window.CreateWindowSurface(v.Instance.VKInstance, nil)
	if err != nil {
		v.destroyPartial()
		return nil, fmt.Errorf("creating window surface: %w", err)
	}
	v.Surface = vk.SurfaceFromPointer(surfacePtr)

	v.Scope, err = NewRuntimeScope(v.Instance, v.Surface)
	if err != nil {
		v.destroyPartial()
		return nil, err
	}

	samples = ClampSampleCount(samples, v.Scope.Device.PhysicalDevice.SupportedSampleCounts())

	cfg := DefaultWindowConfig()
	cfg.Width = width
	cfg.Height = height
	cfg.SwapchainLength = 3
	cfg.EnableDepth = true
	cfg.Samples = samples
	v.VKWindow, err = cfg.Build(v.Scope, v.Surface, v.Window)
	if err != nil {
		v.destroyPartial()
		return nil, err
	}

	v.Uniforms, err = NewCameraUniforms(v.Scope.Allocator)
	if err != nil {
		v.destroyPartial()
		return nil, err
	}

	v.Cache, err = NewFrameCache(v.Scope, v.VKWindow)
	if err != nil {
		v.destroyPartial()
		return nil, err
	}

	v.Camera = NewCamera()

	v.Scope.RegisterChild(v.Uniforms)
	v.Scope.RegisterChild(v.Cache)
	v.Scope.RegisterChild(v.VKWindow)

	v.installCallbacks()
	return v, nil
}

func (v *Viewer) destroyPartial() {
	if v.Cache != nil {
		v.Cache.Destroy()
	}
	if v.Uniforms != nil {
		v.Uniforms.Destroy()
	}
	if v.VKWindow != nil {
		v.VKWindow.Destroy()
	}
	if v.Scope != nil {
		v.Scope.CloseScope()
	}
	if v.Surface != vk.NullSurface && v.Instance != nil {
		vk.DestroySurface(v.Instance.VKInstance, v.Surface, nil)
	}
	if v.Instance != nil {
		v.Instance.Destroy()
	}
	if v.Window != nil {
		v.Window.Destroy()
	}
	glfw.Terminate()
}

// SetGrids installs the loaded grids and shows the first one.
func (v *Viewer) SetGrids(grids []*GridData) error {
	v.Grids = grids
	return v.ShowNthGrid(0)
}

// CurrentGrid returns the grid on display, or nil before SetGrids.
func (v *Viewer) CurrentGrid() *GridData {
	if len(v.Grids) == 0 {
		return nil
	}
	return v.Grids[v.gridIndex]
}

// ShowNthGrid switches the display to grid n, rebuilding the render
// modules and invalidating every cached command buffer. n wraps around.
func (v *Viewer) ShowNthGrid(n int) error {
	if len(v.Grids) == 0 {
		return fmt.Errorf("no grids to show")
	}
	n %= len(v.Grids)
	if n < 0 {
		n += len(v.Grids)
	}
	v.gridIndex = n
	grid := v.Grids[n]

	v.Scope.Device.WaitIdle()
	if err := v.Cache.ResetAll(); err != nil {
		return err
	}

	var modules [ToggleableModuleCount]*RenderModule
	for k := ModuleKind(0); int(k) < ToggleableModuleCount; k++ {
		m, err := BuildRenderModule(v.Scope, k, grid)
		if err != nil {
			for _, built := range modules {
				built.Destroy()
			}
			return fmt.Errorf("building %s module: %w", k, err)
		}
		modules[k] = m
	}
	gnomon, err := BuildRenderModule(v.Scope, ModuleGnomon, grid)
	if err != nil {
		for _, built := range modules {
			built.Destroy()
		}
		return fmt.Errorf("building gnomon module: %w", err)
	}
	v.Cache.SetModules(modules, gnomon)

	v.Camera.FrameGrid(grid)
	v.Window.SetTitle(fmt.Sprintf("%s (%d of %d) - vdbview", grid.Name, n+1, len(v.Grids)))
	return nil
}

// ShowNextGrid advances to the next grid, wrapping at the end.
func (v *Viewer) ShowNextGrid() error {
	return v.ShowNthGrid(v.gridIndex + 1)
}

// ShowPrevGrid steps back to the previous grid, wrapping at the start.
func (v *Viewer) ShowPrevGrid() error {
	return v.ShowNthGrid(v.gridIndex - 1)
}

// ToggleInfoOverlay flips the info overlay and logs the grid description
// when it turns on.
func (v *Viewer) ToggleInfoOverlay() {
	v.Cache.SetOverlayEnabled(!v.Cache.OverlayEnabled())
	if v.Cache.OverlayEnabled() {
		if g := v.CurrentGrid(); g != nil {
			for _, line := range g.InfoStrings() {
				log.Printf("INFO: %s", line)
			}
		}
	}
}

// ToggleFullscreen flips between windowed and fullscreen on the primary
// monitor, stashing the windowed geometry for the return trip. The
// swapchain is recreated immediately; no cooldown applies.
func (v *Viewer) ToggleFullscreen() error {
	if v.fullscreen {
		v.Window.SetMonitor(nil, v.windowedX, v.windowedY, v.windowedW, v.windowedH, 0)
		v.fullscreen = false
	} else {
		v.windowedX, v.windowedY = v.Window.GetPos()
		v.windowedW, v.windowedH = v.Window.GetSize()
		monitor := glfw.GetPrimaryMonitor()
		mode := monitor.GetVideoMode()
		v.Window.SetMonitor(monitor, 0, 0, mode.Width, mode.Height, mode.RefreshRate)
		v.fullscreen = true
	}
	v.cooldownDeadline = time.Time{}
	return v.recreate()
}

// deferFrame drops the current frame and schedules a recreation attempt.
func (v *Viewer) deferFrame() {
	v.cooldownDeadline = time.Now().Add(damageCooldown)
}

// NotifyDamage records window damage, extending the cooldown window.
func (v *Viewer) NotifyDamage() {
	v.deferFrame()
}

// cooldownAction is the frame pump's decision for one tick.
type cooldownAction int

const (
	cooldownInactive cooldownAction = iota // no cooldown armed, render normally
	cooldownHold                           // still cooling down, skip the frame
	cooldownExpired                        // cooldown elapsed, recreate then render
)

// cooldownState classifies the damage cooldown at a given instant. A zero
// deadline means no cooldown is armed.
func cooldownState(now, deadline time.Time) cooldownAction {
	switch {
	case deadline.IsZero():
		return cooldownInactive
	case now.Before(deadline):
		return cooldownHold
	default:
		return cooldownExpired
	}
}

func (v *Viewer) recreate() error {
	if err := v.VKWindow.RecreateRenderResources(); err != nil {
		return err
	}
	return v.Cache.RebuildForWindow()
}

// SwapBuffers runs one tick of the frame pump. During a damage cooldown
// the frame is skipped outright; on expiry the swapchain is recreated and
// all command buffers re-record. Transient acquire and present failures
// drop the frame and re-arm the cooldown rather than surfacing an error.
func (v *Viewer) SwapBuffers() error {
	switch cooldownState(time.Now(), v.cooldownDeadline) {
	case cooldownHold:
		return nil
	case cooldownExpired:
		v.cooldownDeadline = time.Time{}
		if err := v.recreate(); err != nil {
			if IsSurfaceLost(err) {
				v.deferFrame()
				return nil
			}
			return err
		}
	}

	bundle, err := v.VKWindow.AcquireNextFrameBundle()
	if err != nil {
		if IsSurfaceLost(err) {
			v.deferFrame()
			return nil
		}
		return err
	}

	if err := v.Cache.RecordFrame(bundle.ImageIndex); err != nil {
		return err
	}

	width, height := v.Window.GetFramebufferSize()
	if height > 0 {
		if err := v.Uniforms.Update(v.Camera, float32(width)/float32(height)); err != nil {
			return err
		}
	}

	if err := v.Cache.SubmitFrame(v.Scope.Omni.Queue, bundle); err != nil {
		return err
	}

	if err := v.VKWindow.PresentFrameBundle(v.Scope.Omni.Queue, bundle); err != nil {
		if IsSurfaceLost(err) {
			v.deferFrame()
			return nil
		}
		return err
	}

	if v.VKWindow.IsSuboptimal() {
		v.deferFrame()
	}
	return nil
}

// needsFrame reports whether anything requires rendering this tick.
func (v *Viewer) needsFrame() bool {
	return v.Camera.NeedsDisplay() || v.Cache.NeedsRecord() || !v.cooldownDeadline.IsZero()
}

// Run drives the event loop until the window closes.
func (v *Viewer) Run() error {
	for !v.Window.ShouldClose() {
		if v.needsFrame() {
			if err := v.SwapBuffers(); err != nil {
				return err
			}
		} else {
			time.Sleep(10 * time.Millisecond)
		}
		glfw.PollEvents()
	}
	return nil
}

func (v *Viewer) installCallbacks() {
	v.Window.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		v.Camera.KeyCallback(key, action)
		if action != glfw.Press {
			return
		}
		switch key {
		case glfw.KeyEscape, glfw.KeyQ:
			v.Window.SetShouldClose(true)
		case glfw.Key1:
			v.Cache.ToggleModule(ModuleTreeTopology)
		case glfw.Key2:
			v.Cache.ToggleModule(ModuleSurfaceMesh)
		case glfw.Key3:
			v.Cache.ToggleModule(ModuleVoxelPoints)
		case glfw.KeyI:
			v.ToggleInfoOverlay()
		case glfw.KeyF:
			if err := v.ToggleFullscreen(); err != nil {
				log.Printf("ERROR: toggling fullscreen: %v", err)
			}
		case glfw.KeyRight:
			if err := v.ShowNextGrid(); err != nil {
				log.Printf("ERROR: switching grid: %v", err)
			}
		case glfw.KeyLeft:
			if err := v.ShowPrevGrid(); err != nil {
				log.Printf("ERROR: switching grid: %v", err)
			}
		case glfw.KeyH:
			if g := v.CurrentGrid(); g != nil {
				v.Camera.FrameGrid(g)
			}
		}
	})
	v.Window.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		v.Camera.MouseButtonCallback(button, action)
	})
	v.Window.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		v.Camera.MousePosCallback(x, y)
	})
	v.Window.SetScrollCallback(func(_ *glfw.Window, _, yoffset float64) {
		v.Camera.MouseWheelCallback(yoffset)
	})
	v.Window.SetFramebufferSizeCallback(func(_ *glfw.Window, _, _ int) {
		v.NotifyDamage()
	})
	v.Window.SetRefreshCallback(func(_ *glfw.Window) {
		v.NotifyDamage()
	})
}

// Close tears down the full stack in dependency order.
func (v *Viewer) Close() {
	if v.Scope != nil {
		v.Scope.CloseScope()
	}
	if v.Surface != vk.NullSurface {
		vk.DestroySurface(v.Instance.VKInstance, v.Surface, nil)
		v.Surface = vk.NullSurface
	}
	if v.Instance != nil {
		v.Instance.Destroy()
		v.Instance = nil
	}
	if v.Window != nil {
		v.Window.Destroy()
		v.Window = nil
	}
	glfw.Terminate()
}
