package vdbview

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// ScopeChild is a subsystem whose lifetime is bound to a runtime scope.
// Cleanup is called exactly once, in registration order, when the scope
// closes.
type ScopeChild interface {
	Cleanup()
}

// RuntimeScope is the sole authority for the device, allocator, and queue
// handles of one viewer session. Subsystems receive it explicitly at
// construction; there is no process-global scope.
type RuntimeScope struct {
	Instance  *Instance
	Device    *Device
	Allocator *Allocator

	// Omni serves graphics, compute, transfer, and presentation from a
	// single queue family.
	Omni *QueueClosure

	children []ScopeChild
	closed   bool
}

// NewRuntimeScope selects the best-ranked physical device exposing an
// omni-capable queue family for the surface, creates the logical device
// and allocator, and wraps the queue in a closure.
func NewRuntimeScope(instance *Instance, surface vk.Surface) (*RuntimeScope, error) {
	physicalDevices, err := instance.PhysicalDevices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	if len(physicalDevices) == 0 {
		return nil, fmt.Errorf("no devices found")
	}

	var chosen *PhysicalDevice
	var omniFamily QueueFamilySlice
	for _, pdevice := range RankDevices(physicalDevices) {
		families, err := pdevice.QueueFamilies()
		if err != nil {
			return nil, fmt.Errorf("loading queue families for %s: %w", pdevice, err)
		}
		omni := families.FilterOmni(surface)
		if len(omni) > 0 {
			chosen = pdevice
			omniFamily = omni[:1]
			break
		}
	}
	if chosen == nil {
		return nil, fmt.Errorf("no device exposes a graphics+compute+transfer queue family with presentation support")
	}

	device, err := chosen.CreateLogicalDeviceWithOptions(omniFamily, &CreateDeviceOptions{
		EnabledExtensions: []string{"VK_KHR_swapchain"},
	})
	if err != nil {
		return nil, fmt.Errorf("creating device on %s: %w", chosen, err)
	}

	scope := &RuntimeScope{
		Instance:  instance,
		Device:    device,
		Allocator: NewAllocator(device),
		Omni:      NewQueueClosure(device.GetQueue(omniFamily[0])),
	}
	return scope, nil
}

// RegisterChild appends a subsystem to the ordered teardown list.
func (s *RuntimeScope) RegisterChild(c ScopeChild) {
	if s.closed {
		logicPanic("registering a child on a closed runtime scope")
	}
	s.children = append(s.children, c)
}

// Closed reports whether CloseScope has run.
func (s *RuntimeScope) Closed() bool {
	return s.closed
}

// CloseScope drains the device, tears down registered children in
// registration order, then destroys the allocator and device. Closing an
// already-closed scope is a no-op.
func (s *RuntimeScope) CloseScope() {
	if s.closed {
		return
	}
	s.closed = true

	if s.Device != nil {
		s.Device.WaitIdle()
	}

	for _, c := range s.children {
		c.Cleanup()
	}
	s.children = nil

	if s.Omni != nil {
		s.Omni.Destroy()
		s.Omni = nil
	}
	if s.Allocator != nil {
		s.Allocator.Destroy()
		s.Allocator = nil
	}
	if s.Device != nil {
		s.Device.Destroy()
		s.Device = nil
	}
}
