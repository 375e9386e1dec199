package vdbview

import (
	"fmt"
	"math/bits"

	vk "github.com/vulkan-go/vulkan"
)

// moduleBit returns the bitset bit for a toggleable module kind.
func moduleBit(k ModuleKind) uint8 {
	return 1 << uint(k)
}

// recordMask computes which toggleable modules need recording for one
// image. A module records when it is visible but not yet recorded, or when
// a global reset invalidated everything. A recorded but invisible module
// is deliberately left stale; it is simply excluded from submission.
func recordMask(visible, recorded uint8, globalReset bool) uint8 {
	if globalReset {
		return visible
	}
	return visible &^ recorded
}

// submissionCount returns how many command buffers one frame submits:
// the setup and closing buffers always, one per visible module, and the
// overlay buffer when enabled.
func submissionCount(visible uint8, overlayEnabled bool) int {
	n := 2 + bits.OnesCount8(visible)
	if overlayEnabled {
		n++
	}
	return n
}

// frameCommands holds one swapchain image's cached command buffers and its
// recorded-state bits.
type frameCommands struct {
	setup   *CommandBuffer
	modules [ToggleableModuleCount]*CommandBuffer
	overlay *CommandBuffer
	closing *CommandBuffer

	recorded        uint8
	setupRecorded   bool
	overlayRecorded bool
	closingRecorded bool
}

// buffers collects the frame's allocated command buffers for a bulk free.
func (fr *frameCommands) buffers() []*CommandBuffer {
	out := make([]*CommandBuffer, 0, ToggleableModuleCount+3)
	if fr.setup != nil {
		out = append(out, fr.setup)
	}
	for _, cb := range fr.modules {
		if cb != nil {
			out = append(out, cb)
		}
	}
	if fr.overlay != nil {
		out = append(out, fr.overlay)
	}
	if fr.closing != nil {
		out = append(out, fr.closing)
	}
	return out
}

// resetState marks every cached buffer of the frame unrecorded.
func (fr *frameCommands) resetState() {
	fr.recorded = 0
	fr.setupRecorded = false
	fr.overlayRecorded = false
	fr.closingRecorded = false
}

// FrameCache owns the per-image command buffers and decides, each frame,
// which of them must be re-recorded and which are submitted. One logical
// render pass is split across the buffers so layers can be included or
// excluded from a frame without touching the others: the setup buffer
// clears the attachments and draws the gnomon, each module buffer resumes
// the pass over the existing contents, and the closing buffer finishes the
// chain and leaves the image presentable.
type FrameCache struct {
	Scope  *RuntimeScope
	Window *VulkanWindow
	Pool   *CommandPool

	setupPass   vk.RenderPass
	modulePass  vk.RenderPass
	closingPass vk.RenderPass

	framebuffers []vk.Framebuffer
	frames       []frameCommands

	Modules [ToggleableModuleCount]*RenderModule
	Gnomon  *RenderModule

	visible        uint8
	overlayEnabled bool

	needsRecord   bool
	commandsReset bool
}

// NewFrameCache builds the cache against the window's current swapchain:
// the three render pass variants, one framebuffer per image, and the full
// set of per-image command buffers. Initially only the tree topology
// module is visible and nothing is recorded.
func NewFrameCache(scope *RuntimeScope, window *VulkanWindow) (*FrameCache, error) {
	pool, err := scope.Device.CreateCommandPool(scope.Omni.Queue.QueueFamily)
	if err != nil {
		return nil, fmt.Errorf("creating frame command pool: %w", err)
	}
	f := &FrameCache{
		Scope:         scope,
		Window:        window,
		Pool:          pool,
		visible:       moduleBit(ModuleTreeTopology),
		needsRecord:   true,
		commandsReset: true,
	}
	if err := f.createPasses(); err != nil {
		f.Destroy()
		return nil, err
	}
	if err := f.allocateFrameCommands(); err != nil {
		f.Destroy()
		return nil, err
	}
	if err := f.createFramebuffers(); err != nil {
		f.Destroy()
		return nil, err
	}
	return f, nil
}

// attachmentSet lists the window's attachment formats in framebuffer
// order: color (multisampled when enabled), optional depth, and the
// swapchain resolve target when multisampling.
func (f *FrameCache) multisampled() bool {
	return f.Window.Config.Samples > vk.SampleCount1Bit
}

// passOps selects per-pass load behavior.
type passOps struct {
	colorLoad     vk.AttachmentLoadOp
	colorInitial  vk.ImageLayout
	colorFinal    vk.ImageLayout
	depthLoad     vk.AttachmentLoadOp
	depthInitial  vk.ImageLayout
	resolveToSwap bool
}

// buildPass creates one of the pass variants. All variants declare the
// identical attachment list so the per-image framebuffers are compatible
// with every pass.
func (f *FrameCache) buildPass(ops passOps) (vk.RenderPass, error) {
	w := f.Window
	samples := w.Config.Samples

	colorFormat := w.Format.Format
	var attachments []vk.AttachmentDescription
	attachments = append(attachments, vk.AttachmentDescription{
		Format:         colorFormat,
		Samples:        samples,
		LoadOp:         ops.colorLoad,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  ops.colorInitial,
		FinalLayout:    ops.colorFinal,
	})

	colorRef := vk.AttachmentReference{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments:    []vk.AttachmentReference{colorRef},
	}

	var depthRef vk.AttachmentReference
	if w.Config.EnableDepth {
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         w.DepthFormat,
			Samples:        samples,
			LoadOp:         ops.depthLoad,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  ops.depthInitial,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		})
		depthRef = vk.AttachmentReference{
			Attachment: uint32(len(attachments) - 1),
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		subpass.PDepthStencilAttachment = &depthRef
	}

	if f.multisampled() {
		// The single-sample swapchain image rides along in every pass so
		// the framebuffers stay compatible; only the closing pass
		// resolves into it.
		finalLayout := vk.ImageLayoutColorAttachmentOptimal
		loadOp := vk.AttachmentLoadOpDontCare
		if ops.resolveToSwap {
			finalLayout = vk.ImageLayoutPresentSrc
		}
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         colorFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         loadOp,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    finalLayout,
		})
		if ops.resolveToSwap {
			subpass.PResolveAttachments = []vk.AttachmentReference{{
				Attachment: uint32(len(attachments) - 1),
				Layout:     vk.ImageLayoutColorAttachmentOptimal,
			}}
		}
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
	}

	createInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var pass vk.RenderPass
	err := vk.Error(vk.CreateRenderPass(f.Scope.Device.VKDevice, &createInfo, nil, &pass))
	if err != nil {
		return vk.NullRenderPass, fmt.Errorf("creating render pass: %w", err)
	}
	return pass, nil
}

func (f *FrameCache) createPasses() error {
	var err error
	finalColor := vk.ImageLayoutColorAttachmentOptimal

	f.setupPass, err = f.buildPass(passOps{
		colorLoad:    vk.AttachmentLoadOpClear,
		colorInitial: vk.ImageLayoutUndefined,
		colorFinal:   finalColor,
		depthLoad:    vk.AttachmentLoadOpClear,
		depthInitial: vk.ImageLayoutUndefined,
	})
	if err != nil {
		return err
	}

	f.modulePass, err = f.buildPass(passOps{
		colorLoad:    vk.AttachmentLoadOpLoad,
		colorInitial: finalColor,
		colorFinal:   finalColor,
		depthLoad:    vk.AttachmentLoadOpLoad,
		depthInitial: vk.ImageLayoutDepthStencilAttachmentOptimal,
	})
	if err != nil {
		return err
	}

	closingFinal := vk.ImageLayoutPresentSrc
	if f.multisampled() {
		// The resolve attachment carries the present layout instead.
		closingFinal = finalColor
	}
	f.closingPass, err = f.buildPass(passOps{
		colorLoad:     vk.AttachmentLoadOpLoad,
		colorInitial:  finalColor,
		colorFinal:    closingFinal,
		depthLoad:     vk.AttachmentLoadOpLoad,
		depthInitial:  vk.ImageLayoutDepthStencilAttachmentOptimal,
		resolveToSwap: true,
	})
	return err
}

// allocateFrameCommands builds one full command buffer set per swapchain
// image.
func (f *FrameCache) allocateFrameCommands() error {
	n := int(f.Window.ImageCount)
	f.frames = make([]frameCommands, n)
	for i := 0; i < n; i++ {
		bufs, err := f.Pool.AllocateBuffers(ToggleableModuleCount + 3)
		if err != nil {
			return fmt.Errorf("allocating frame command buffers: %w", err)
		}
		fr := &f.frames[i]
		fr.setup = bufs[0]
		copy(fr.modules[:], bufs[1:1+ToggleableModuleCount])
		fr.overlay = bufs[1+ToggleableModuleCount]
		fr.closing = bufs[2+ToggleableModuleCount]
	}
	return nil
}

// freeFrameCommands returns every frame's buffers to the pool.
func (f *FrameCache) freeFrameCommands() {
	for i := range f.frames {
		if bufs := f.frames[i].buffers(); len(bufs) > 0 {
			f.Pool.FreeBuffers(bufs)
		}
	}
	f.frames = nil
}

// createFramebuffers builds one framebuffer per swapchain image against
// the setup pass; the pass variants declare identical attachment lists so
// the framebuffers are compatible with all three.
func (f *FrameCache) createFramebuffers() error {
	w := f.Window
	n := int(w.ImageCount)
	f.framebuffers = make([]vk.Framebuffer, n)
	for i := 0; i < n; i++ {
		var views []vk.ImageView
		if f.multisampled() {
			views = append(views, w.ColorMS.View.VKImageView)
		} else {
			views = append(views, w.Views[i].VKImageView)
		}
		if w.Config.EnableDepth {
			views = append(views, w.Depth.View.VKImageView)
		}
		if f.multisampled() {
			views = append(views, w.Views[i].VKImageView)
		}
		fbCreateInfo := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      f.setupPass,
			Layers:          1,
			AttachmentCount: uint32(len(views)),
			PAttachments:    views,
			Width:           w.Extent.Width,
			Height:          w.Extent.Height,
		}
		err := vk.Error(vk.CreateFramebuffer(f.Scope.Device.VKDevice, &fbCreateInfo, nil, &f.framebuffers[i]))
		if err != nil {
			return fmt.Errorf("creating framebuffer %d: %w", i, err)
		}
	}
	return nil
}

// IsModuleVisible reports whether a toggleable module is in the
// submission set.
func (f *FrameCache) IsModuleVisible(k ModuleKind) bool {
	return f.visible&moduleBit(k) != 0
}

// SetModuleVisible includes or excludes a module from submission. Making
// an unrecorded module visible schedules its lazy recording; already
// recorded modules toggle without any re-recording.
func (f *FrameCache) SetModuleVisible(k ModuleKind, visible bool) {
	if int(k) >= ToggleableModuleCount {
		return
	}
	bit := moduleBit(k)
	was := f.visible&bit != 0
	if was == visible {
		return
	}
	if visible {
		f.visible |= bit
		f.needsRecord = true
	} else {
		f.visible &^= bit
	}
	f.markOverlayStale()
}

// ToggleModule flips a module's visibility.
func (f *FrameCache) ToggleModule(k ModuleKind) {
	f.SetModuleVisible(k, !f.IsModuleVisible(k))
}

// OverlayEnabled reports whether the info overlay buffer is submitted.
func (f *FrameCache) OverlayEnabled() bool {
	return f.overlayEnabled
}

// SetOverlayEnabled includes or excludes the overlay buffer.
func (f *FrameCache) SetOverlayEnabled(enabled bool) {
	if f.overlayEnabled == enabled {
		return
	}
	f.overlayEnabled = enabled
	f.markOverlayStale()
}

// markOverlayStale schedules an overlay re-record on every image. The
// overlay annotates the layers being shown, so a visibility change
// anywhere invalidates it everywhere.
func (f *FrameCache) markOverlayStale() {
	for i := range f.frames {
		f.frames[i].overlayRecorded = false
	}
}

// ResetAll invalidates every cached command buffer across all images. The
// pool is reset wholesale and each image re-records lazily on its next
// frame. The caller must ensure no invalidated buffer is still in flight.
func (f *FrameCache) ResetAll() error {
	if err := f.Pool.Reset(); err != nil {
		return err
	}
	for i := range f.frames {
		f.frames[i].resetState()
	}
	f.commandsReset = true
	f.needsRecord = true
	return nil
}

func (f *FrameCache) clearValues() []vk.ClearValue {
	var clear vk.ClearValue
	clear.SetColor([]float32{0.085, 0.085, 0.085, 1})
	var depthClear vk.ClearValue
	depthClear.SetDepthStencil(1, 0)

	values := []vk.ClearValue{clear}
	if f.Window.Config.EnableDepth {
		values = append(values, depthClear)
	}
	if f.multisampled() {
		values = append(values, clear)
	}
	return values
}

func (f *FrameCache) beginPass(cb *CommandBuffer, pass vk.RenderPass, imageIndex uint32, clear []vk.ClearValue) {
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass,
		Framebuffer: f.framebuffers[imageIndex],
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{},
			Extent: f.Window.Extent,
		},
		ClearValueCount: uint32(len(clear)),
		PClearValues:    clear,
	}
	vk.CmdBeginRenderPass(cb.VKCommandBuffer, &beginInfo, vk.SubpassContentsInline)
	cb.CmdSetViewportScissor(f.Window.Extent)
}

func (f *FrameCache) recordSetup(i uint32) error {
	cb := f.frames[i].setup
	if err := cb.Begin(); err != nil {
		return err
	}
	f.beginPass(cb, f.setupPass, i, f.clearValues())
	if f.Gnomon != nil {
		f.Gnomon.RecordDraw(cb)
	}
	vk.CmdEndRenderPass(cb.VKCommandBuffer)
	return cb.End()
}

func (f *FrameCache) recordModule(i uint32, k ModuleKind) error {
	cb := f.frames[i].modules[k]
	if err := cb.Begin(); err != nil {
		return err
	}
	f.beginPass(cb, f.modulePass, i, nil)
	if m := f.Modules[k]; m != nil {
		m.RecordDraw(cb)
	}
	vk.CmdEndRenderPass(cb.VKCommandBuffer)
	return cb.End()
}

func (f *FrameCache) recordOverlay(i uint32) error {
	cb := f.frames[i].overlay
	if err := cb.Begin(); err != nil {
		return err
	}
	f.beginPass(cb, f.modulePass, i, nil)
	vk.CmdEndRenderPass(cb.VKCommandBuffer)
	return cb.End()
}

func (f *FrameCache) recordClosing(i uint32) error {
	cb := f.frames[i].closing
	if err := cb.Begin(); err != nil {
		return err
	}
	f.beginPass(cb, f.closingPass, i, nil)
	vk.CmdEndRenderPass(cb.VKCommandBuffer)
	return cb.End()
}

// RecordFrame brings one image's cached buffers up to date. Only buffers
// whose recorded/visible state actually changed are touched; the cost of
// a toggle is proportional to what changed, not to the module count.
// The caller must hold the image's in-flight fence.
func (f *FrameCache) RecordFrame(imageIndex uint32) error {
	fr := &f.frames[imageIndex]

	if !fr.setupRecorded {
		if err := f.recordSetup(imageIndex); err != nil {
			return fmt.Errorf("recording setup buffer: %w", err)
		}
		fr.setupRecorded = true
	}

	mask := recordMask(f.visible, fr.recorded, false)
	for k := ModuleKind(0); int(k) < ToggleableModuleCount; k++ {
		if mask&moduleBit(k) == 0 {
			continue
		}
		if err := f.recordModule(imageIndex, k); err != nil {
			return fmt.Errorf("recording %s buffer: %w", k, err)
		}
		fr.recorded |= moduleBit(k)
	}

	if !fr.overlayRecorded {
		if err := f.recordOverlay(imageIndex); err != nil {
			return fmt.Errorf("recording overlay buffer: %w", err)
		}
		fr.overlayRecorded = true
	}

	if !fr.closingRecorded {
		if err := f.recordClosing(imageIndex); err != nil {
			return fmt.Errorf("recording closing buffer: %w", err)
		}
		fr.closingRecorded = true
	}

	f.needsRecord = false
	f.commandsReset = false
	return nil
}

// submission assembles one image's ordered submission set.
func (f *FrameCache) submission(imageIndex uint32) []*CommandBuffer {
	fr := &f.frames[imageIndex]
	out := make([]*CommandBuffer, 0, submissionCount(f.visible, f.overlayEnabled))
	out = append(out, fr.setup)
	for k := ModuleKind(0); int(k) < ToggleableModuleCount; k++ {
		if f.visible&moduleBit(k) != 0 {
			out = append(out, fr.modules[k])
		}
	}
	if f.overlayEnabled {
		out = append(out, fr.overlay)
	}
	out = append(out, fr.closing)
	return out
}

// SubmitFrame submits the image's current submission set, waiting on the
// bundle's acquire semaphore and signaling its render semaphore and
// in-flight fence.
func (f *FrameCache) SubmitFrame(queue *Queue, bundle FrameBundle) error {
	return queue.Submit(bundle.InFlightFence,
		[]vk.Semaphore{bundle.AcquireSemaphore},
		[]vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		[]vk.Semaphore{bundle.RenderSemaphore},
		f.submission(bundle.ImageIndex)...)
}

// NeedsRecord reports whether any image has pending recording work.
func (f *FrameCache) NeedsRecord() bool {
	if f.needsRecord || f.commandsReset {
		return true
	}
	for i := range f.frames {
		fr := &f.frames[i]
		if !fr.setupRecorded || !fr.overlayRecorded || !fr.closingRecorded {
			return true
		}
		if recordMask(f.visible, fr.recorded, false) != 0 {
			return true
		}
	}
	return false
}

// destroyFramebuffers drops the framebuffers, keeping the render passes
// and command buffers, which survive a resize.
func (f *FrameCache) destroyFramebuffers() {
	device := f.Scope.Device
	for _, fb := range f.framebuffers {
		vk.DestroyFramebuffer(device.VKDevice, fb, nil)
	}
	f.framebuffers = nil
}

// RebuildForWindow recreates the extent-sized resources after a swapchain
// recreation and schedules a full re-record. The command buffer sets are
// kept and re-recorded in place when the image count is unchanged;
// otherwise the old sets are freed back to the pool and a matching number
// is allocated.
func (f *FrameCache) RebuildForWindow() error {
	f.destroyFramebuffers()
	if err := f.Pool.Reset(); err != nil {
		return err
	}
	if int(f.Window.ImageCount) != len(f.frames) {
		f.freeFrameCommands()
		if err := f.allocateFrameCommands(); err != nil {
			return err
		}
	} else {
		for i := range f.frames {
			f.frames[i].resetState()
		}
	}
	if err := f.createFramebuffers(); err != nil {
		return err
	}
	f.commandsReset = true
	f.needsRecord = true
	return nil
}

// SetModules installs the render modules for the current grid, destroying
// any previous set.
func (f *FrameCache) SetModules(modules [ToggleableModuleCount]*RenderModule, gnomon *RenderModule) {
	for _, m := range f.Modules {
		m.Destroy()
	}
	f.Gnomon.Destroy()
	f.Modules = modules
	f.Gnomon = gnomon
}

// Cleanup implements ScopeChild.
func (f *FrameCache) Cleanup() {
	f.Destroy()
}

// Destroy releases the cache's device resources, including the installed
// render modules.
func (f *FrameCache) Destroy() {
	if f == nil {
		return
	}
	device := f.Scope.Device

	f.destroyFramebuffers()
	f.frames = nil

	for _, p := range []vk.RenderPass{f.setupPass, f.modulePass, f.closingPass} {
		if p != vk.NullRenderPass {
			vk.DestroyRenderPass(device.VKDevice, p, nil)
		}
	}
	f.setupPass = vk.NullRenderPass
	f.modulePass = vk.NullRenderPass
	f.closingPass = vk.NullRenderPass

	for k, m := range f.Modules {
		m.Destroy()
		f.Modules[k] = nil
	}
	f.Gnomon.Destroy()
	f.Gnomon = nil

	if f.Pool != nil {
		f.Pool.Destroy()
		f.Pool = nil
	}
}
