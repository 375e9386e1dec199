package vdbview

import (
	"time"

	vk "github.com/vulkan-go/vulkan"
)

type Fence struct {
	Device  *Device
	VKFence vk.Fence
}

func (d *Device) VKCreateFence(signaled bool) (vk.Fence, error) {
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var fence vk.Fence
	err := vk.Error(vk.CreateFence(d.VKDevice, &fenceCreateInfo, nil, &fence))
	if err != nil {
		return vk.NullFence, err
	}
	return fence, nil
}

func (d *Device) VKDestroyFence(f vk.Fence) {
	vk.DestroyFence(d.VKDevice, f, nil)
}

func (d *Device) CreateFence() (*Fence, error) {
	fence, err := d.VKCreateFence(false)
	if err != nil {
		return nil, err
	}
	return &Fence{Device: d, VKFence: fence}, nil
}

// VKWaitForFence blocks until the fence signals or the timeout elapses.
func (d *Device) VKWaitForFence(f vk.Fence, timeout time.Duration) error {
	ret := vk.WaitForFences(d.VKDevice, 1, []vk.Fence{f}, vk.True, uint64(timeout.Nanoseconds()))
	return newResultError("wait for fence", ret)
}

func (d *Device) VKResetFence(f vk.Fence) error {
	return vk.Error(vk.ResetFences(d.VKDevice, 1, []vk.Fence{f}))
}

func (f *Fence) Wait(timeout time.Duration) error {
	return f.Device.VKWaitForFence(f.VKFence, timeout)
}

func (f *Fence) Destroy() {
	vk.DestroyFence(f.Device.VKDevice, f.VKFence, nil)
}
