package vdbview

import (
	"fmt"
	"log"
	"time"

	"github.com/vulkan-go/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
)

// DefaultInFlightTimeout bounds the wait on an image slot's in-flight
// fence. A frame taking longer than this means the device has effectively
// hung.
const DefaultInFlightTimeout = 3 * time.Second

// WindowConfig collects the preferences used to build a VulkanWindow.
// Unsupported preferences are resolved by deterministic fallback at build
// time, never by failure.
type WindowConfig struct {
	Title           string
	Width           int
	Height          int
	SwapchainLength int
	PresentMode     vk.PresentMode
	SurfaceFormat   vk.SurfaceFormat
	EnableDepth     bool
	Samples         vk.SampleCountFlagBits
}

// DefaultWindowConfig returns the baseline configuration: a small FIFO
// double-buffered sRGB window with no depth buffer and no multisampling.
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		Title:           "vdbview",
		Width:           256,
		Height:          256,
		SwapchainLength: 2,
		PresentMode:     vk.PresentModeFifo,
		SurfaceFormat: vk.SurfaceFormat{
			Format:     vk.FormatB8g8r8a8Srgb,
			ColorSpace: vk.ColorSpaceSrgbNonlinear,
		},
		EnableDepth: false,
		Samples:     vk.SampleCount1Bit,
	}
}

// FrameBundle hands the caller everything needed to render and present one
// acquired swapchain image.
type FrameBundle struct {
	ImageIndex       uint32
	AcquireSemaphore vk.Semaphore
	RenderSemaphore  vk.Semaphore
	InFlightFence    vk.Fence
}

// VulkanWindow owns a native window's presentation surface, its swapchain,
// the per-image synchronization primitives, and the optional depth and
// multisample attachments.
type VulkanWindow struct {
	Scope  *RuntimeScope
	Window *glfw.Window

	Surface     vk.Surface
	VKSwapchain vk.Swapchain

	Config WindowConfig

	Format     vk.SurfaceFormat
	Extent     vk.Extent2D
	ImageCount uint32

	Images []*Image
	Views  []*ImageView

	acquireSemaphores []vk.Semaphore
	renderSemaphores  []vk.Semaphore
	inFlightFences    []vk.Fence
	nextSlot          int

	InFlightTimeout time.Duration

	Depth       *AttachmentImage
	DepthFormat vk.Format
	ColorMS     *AttachmentImage

	suboptimal bool
}

// negotiateSurfaceFormat returns the preferred format when the surface
// reports it, otherwise the first reported format with a warning.
func negotiateSurfaceFormat(available []vk.SurfaceFormat, preferred vk.SurfaceFormat) vk.SurfaceFormat {
	for _, f := range available {
		if f.Format == preferred.Format && f.ColorSpace == preferred.ColorSpace {
			return f
		}
	}
	log.Printf("WARNING: surface format %d/%d unsupported, falling back to first reported format %d/%d",
		preferred.Format, preferred.ColorSpace, available[0].Format, available[0].ColorSpace)
	return available[0]
}

// negotiatePresentMode returns the preferred mode when supported, otherwise
// FIFO, which every conformant surface provides.
func negotiatePresentMode(available VKPresentModes, preferred vk.PresentMode) vk.PresentMode {
	if len(available.Filter(preferred)) > 0 {
		return preferred
	}
	if preferred != vk.PresentModeFifo {
		log.Printf("WARNING: present mode %d unsupported, falling back to FIFO", preferred)
	}
	return vk.PresentModeFifo
}

// clampImageCount clamps the preferred swapchain length into the surface's
// reported [min, max] range. max of zero means unbounded.
func clampImageCount(preferred, min, max uint32) uint32 {
	if preferred <= min {
		return min
	}
	if max != 0 && preferred > max {
		return max
	}
	return preferred
}

// negotiateExtent resolves the swapchain extent from the surface
// capabilities, clamping the framebuffer size into the supported range
// when the surface leaves the size to the application.
func negotiateExtent(current, minExtent, maxExtent, framebuffer vk.Extent2D) vk.Extent2D {
	if current.Width != vk.MaxUint32 {
		return current
	}
	clamp := func(v, lo, hi uint32) uint32 {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}
	return vk.Extent2D{
		Width:  clamp(framebuffer.Width, minExtent.Width, maxExtent.Width),
		Height: clamp(framebuffer.Height, minExtent.Height, maxExtent.Height),
	}
}

// ClampSampleCount resolves a requested multisample count against the
// device's supported set, sliding down to the next supported power of two.
// The result is never a failure; an unsatisfiable request degrades to one
// sample.
func ClampSampleCount(requested vk.SampleCountFlagBits, supported vk.SampleCountFlags) vk.SampleCountFlagBits {
	s := requested
	for s > vk.SampleCount1Bit && supported&vk.SampleCountFlags(s) == 0 {
		s >>= 1
	}
	if s != requested {
		log.Printf("WARNING: %dx multisampling unsupported, using %dx", requested, s)
	}
	return s
}

var depthFormatFallbacks = []vk.Format{vk.FormatD24UnormS8Uint, vk.FormatD32Sfloat}

// pickDepthFormat walks the depth format fallback chain.
func pickDepthFormat(p *PhysicalDevice) (vk.Format, error) {
	for i, f := range depthFormatFallbacks {
		format, err := p.FindSupportedFormat([]vk.Format{f}, vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit))
		if err == nil {
			if i > 0 {
				log.Printf("WARNING: preferred depth format unavailable, using fallback format %d", format)
			}
			return format, nil
		}
	}
	return vk.FormatUndefined, fmt.Errorf("no depth attachment format supported by device")
}

// Build creates the native window, surface-backed swapchain, per-image
// synchronization primitives, and any requested depth and multisample
// attachments against the given scope.
func (cfg WindowConfig) Build(scope *RuntimeScope, surface vk.Surface, window *glfw.Window) (*VulkanWindow, error) {
	w := &VulkanWindow{
		Scope:           scope,
		Window:          window,
		Surface:         surface,
		Config:          cfg,
		InFlightTimeout: DefaultInFlightTimeout,
	}

	if cfg.EnableDepth {
		format, err := pickDepthFormat(scope.Device.PhysicalDevice)
		if err != nil {
			return nil, err
		}
		w.DepthFormat = format
	}

	if err := w.createSwapchain(vk.NullSwapchain); err != nil {
		return nil, err
	}
	if err := w.createPerImageResources(); err != nil {
		w.Destroy()
		return nil, err
	}
	if err := w.createAttachments(); err != nil {
		w.Destroy()
		return nil, err
	}
	return w, nil
}

// IsWindowOpen reports whether the native window still exists.
func (w *VulkanWindow) IsWindowOpen() bool {
	return w.Window != nil
}

// IsSuboptimal reports whether the presentation engine has flagged the
// swapchain as suboptimal since the last recreation. The flag is sticky.
func (w *VulkanWindow) IsSuboptimal() bool {
	return w.suboptimal
}

func (w *VulkanWindow) framebufferExtent() vk.Extent2D {
	width, height := w.Window.GetFramebufferSize()
	return vk.Extent2D{Width: uint32(width), Height: uint32(height)}
}

// createSwapchain negotiates against the surface's current capabilities and
// creates the swapchain, chaining oldSwapchain into the new create call.
func (w *VulkanWindow) createSwapchain(oldSwapchain vk.Swapchain) error {
	pdevice := w.Scope.Device.PhysicalDevice

	formats, err := pdevice.GetSurfaceFormats(w.Surface)
	if err != nil {
		return fmt.Errorf("querying surface formats: %w", err)
	}
	if len(formats) == 0 {
		return fmt.Errorf("surface reports no formats")
	}
	modes, err := pdevice.GetSurfacePresentModes(w.Surface)
	if err != nil {
		return fmt.Errorf("querying present modes: %w", err)
	}
	caps, err := pdevice.GetSurfaceCapabilities(w.Surface)
	if err != nil {
		return fmt.Errorf("querying surface capabilities: %w", err)
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	w.Format = negotiateSurfaceFormat(formats, w.Config.SurfaceFormat)
	presentMode := negotiatePresentMode(modes, w.Config.PresentMode)
	w.ImageCount = clampImageCount(uint32(w.Config.SwapchainLength), caps.MinImageCount, caps.MaxImageCount)
	w.Extent = negotiateExtent(caps.CurrentExtent, caps.MinImageExtent, caps.MaxImageExtent, w.framebufferExtent())

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          w.Surface,
		MinImageCount:    w.ImageCount,
		ImageFormat:      w.Format.Format,
		ImageColorSpace:  w.Format.ColorSpace,
		ImageExtent:      w.Extent,
		ImageArrayLayers: 1,
		ImageUsage: vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit |
			vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     oldSwapchain,
	}

	var swapchain vk.Swapchain
	err = vk.Error(vk.CreateSwapchain(w.Scope.Device.VKDevice, &createInfo, nil, &swapchain))
	if err != nil {
		return fmt.Errorf("creating swapchain: %w", err)
	}
	w.VKSwapchain = swapchain
	w.suboptimal = false
	w.nextSlot = 0
	return nil
}

// createPerImageResources builds the five per-image arrays: images, views,
// acquire semaphores, render semaphores, and in-flight fences. All share
// the same length, fixed until the next recreation.
func (w *VulkanWindow) createPerImageResources() error {
	device := w.Scope.Device

	var imageCount uint32
	err := vk.Error(vk.GetSwapchainImages(device.VKDevice, w.VKSwapchain, &imageCount, nil))
	if err != nil {
		return err
	}
	vkImages := make([]vk.Image, imageCount)
	err = vk.Error(vk.GetSwapchainImages(device.VKDevice, w.VKSwapchain, &imageCount, vkImages))
	if err != nil {
		return err
	}
	w.ImageCount = imageCount

	w.Images = make([]*Image, imageCount)
	w.Views = make([]*ImageView, imageCount)
	w.acquireSemaphores = make([]vk.Semaphore, imageCount)
	w.renderSemaphores = make([]vk.Semaphore, imageCount)
	w.inFlightFences = make([]vk.Fence, imageCount)

	for i := range vkImages {
		w.Images[i] = &Image{Device: device, VKImage: vkImages[i], VKFormat: w.Format.Format}
		w.Views[i], err = w.Images[i].CreateImageView()
		if err != nil {
			return err
		}
		w.acquireSemaphores[i], err = device.VKCreateSemaphore()
		if err != nil {
			return err
		}
		w.renderSemaphores[i], err = device.VKCreateSemaphore()
		if err != nil {
			return err
		}
		// Created signaled so the first wait on each slot passes.
		w.inFlightFences[i], err = device.VKCreateFence(true)
		if err != nil {
			return err
		}
	}
	return nil
}

// createAttachments builds the optional depth and multisample color images
// at the current extent.
func (w *VulkanWindow) createAttachments() error {
	var err error
	if w.Config.EnableDepth {
		w.Depth, err = w.Scope.Allocator.CreateAttachmentImage(w.Extent, w.DepthFormat,
			vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
			vk.ImageAspectFlags(vk.ImageAspectDepthBit),
			w.Config.Samples)
		if err != nil {
			return fmt.Errorf("creating depth attachment: %w", err)
		}
	}
	if w.Config.Samples > vk.SampleCount1Bit {
		w.ColorMS, err = w.Scope.Allocator.CreateAttachmentImage(w.Extent, w.Format.Format,
			vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit|vk.ImageUsageTransientAttachmentBit),
			vk.ImageAspectFlags(vk.ImageAspectColorBit),
			w.Config.Samples)
		if err != nil {
			return fmt.Errorf("creating multisample attachment: %w", err)
		}
	}
	return nil
}

// AcquireNextFrameBundle waits on the next slot's in-flight fence, then
// asks the presentation engine for an image. A suboptimal result is still
// an acquisition success; the sticky flag records it for the caller to act
// on later. Any other non-success result is returned as an error and the
// caller should enter the recreation path rather than render.
func (w *VulkanWindow) AcquireNextFrameBundle() (FrameBundle, error) {
	device := w.Scope.Device
	slot := w.nextSlot

	if err := device.VKWaitForFence(w.inFlightFences[slot], w.InFlightTimeout); err != nil {
		return FrameBundle{}, fmt.Errorf("in-flight fence for slot %d: %w", slot, err)
	}

	var imageIndex uint32
	res := vk.AcquireNextImage(device.VKDevice, w.VKSwapchain, vk.MaxUint64,
		w.acquireSemaphores[slot], vk.NullFence, &imageIndex)

	switch res {
	case vk.Success:
	case vk.Suboptimal:
		w.suboptimal = true
	default:
		return FrameBundle{}, newResultError("acquire next image", res)
	}

	bundle := FrameBundle{
		ImageIndex:       imageIndex,
		AcquireSemaphore: w.acquireSemaphores[slot],
		RenderSemaphore:  w.renderSemaphores[slot],
		InFlightFence:    w.inFlightFences[slot],
	}

	w.nextSlot = (slot + 1) % int(w.ImageCount)
	if err := device.VKResetFence(bundle.InFlightFence); err != nil {
		return FrameBundle{}, err
	}
	return bundle, nil
}

// PresentFrameBundle queues the bundle's image for presentation once its
// render semaphore signals. A suboptimal present sets the sticky flag; an
// out-of-date surface is returned as an error for the recreation path.
func (w *VulkanWindow) PresentFrameBundle(queue *Queue, bundle FrameBundle) error {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{bundle.RenderSemaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{w.VKSwapchain},
		PImageIndices:      []uint32{bundle.ImageIndex},
	}

	res := vk.QueuePresent(queue.VKQueue, &presentInfo)
	switch res {
	case vk.Success:
		return nil
	case vk.Suboptimal:
		w.suboptimal = true
		return nil
	default:
		return newResultError("queue present", res)
	}
}

// destroyPerImageResources tears down views, semaphores, and fences while
// leaving the swapchain handle and its images alone.
func (w *VulkanWindow) destroyPerImageResources() {
	device := w.Scope.Device
	for _, v := range w.Views {
		if v != nil {
			v.Destroy()
		}
	}
	for _, s := range w.acquireSemaphores {
		device.VKDestroySemaphore(s)
	}
	for _, s := range w.renderSemaphores {
		device.VKDestroySemaphore(s)
	}
	for _, f := range w.inFlightFences {
		device.VKDestroyFence(f)
	}
	w.Images = nil
	w.Views = nil
	w.acquireSemaphores = nil
	w.renderSemaphores = nil
	w.inFlightFences = nil
}

// RecreateRenderResources rebuilds the swapchain and everything sized to
// it. The old swapchain handle is kept alive through the new create call,
// as the presentation engine's handle-chaining contract requires, then
// destroyed. Depth and multisample attachments are rebuilt at the new
// extent afterwards.
func (w *VulkanWindow) RecreateRenderResources() error {
	device := w.Scope.Device
	device.WaitIdle()

	w.destroyPerImageResources()

	old := w.VKSwapchain
	err := w.createSwapchain(old)
	if old != vk.NullSwapchain {
		vk.DestroySwapchain(device.VKDevice, old, nil)
	}
	if err != nil {
		w.VKSwapchain = vk.NullSwapchain
		return err
	}

	if err := w.createPerImageResources(); err != nil {
		return err
	}

	w.Depth.Destroy()
	w.Depth = nil
	w.ColorMS.Destroy()
	w.ColorMS = nil
	return w.createAttachments()
}

// Cleanup implements ScopeChild.
func (w *VulkanWindow) Cleanup() {
	w.Destroy()
}

// Destroy tears down all window-owned device resources. The surface and
// the native window are owned by the viewer and survive this call.
func (w *VulkanWindow) Destroy() {
	device := w.Scope.Device
	device.WaitIdle()

	w.Depth.Destroy()
	w.Depth = nil
	w.ColorMS.Destroy()
	w.ColorMS = nil

	w.destroyPerImageResources()

	if w.VKSwapchain != vk.NullSwapchain {
		vk.DestroySwapchain(device.VKDevice, w.VKSwapchain, nil)
		w.VKSwapchain = vk.NullSwapchain
	}
}
