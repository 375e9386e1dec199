package vdbview

import (
	vk "github.com/vulkan-go/vulkan"
)

type Image struct {
	Device   *Device
	VKImage  vk.Image
	VKFormat vk.Format
}

func (i *Image) Destroy() {
	vk.DestroyImage(i.Device.VKDevice, i.VKImage, nil)
}

type ImageView struct {
	Device      *Device
	VKImageView vk.ImageView
}

func (i *ImageView) Destroy() {
	vk.DestroyImageView(i.Device.VKDevice, i.VKImageView, nil)
}

func (i *Image) CreateImageViewWithAspectMask(mask vk.ImageAspectFlags) (*ImageView, error) {
	createInfo := &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    i.VKImage,
		ViewType: vk.ImageViewType2d,
		Format:   i.VKFormat,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleR,
			G: vk.ComponentSwizzleG,
			B: vk.ComponentSwizzleB,
			A: vk.ComponentSwizzleA,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: mask,
			LevelCount: 1,
			LayerCount: 1,
		},
	}

	var view vk.ImageView
	err := vk.Error(vk.CreateImageView(i.Device.VKDevice, createInfo, nil, &view))
	if err != nil {
		return nil, err
	}
	return &ImageView{Device: i.Device, VKImageView: view}, nil
}

func (i *Image) CreateImageView() (*ImageView, error) {
	return i.CreateImageViewWithAspectMask(vk.ImageAspectFlags(vk.ImageAspectColorBit))
}

// AttachmentImage is a render attachment (depth or multisample color)
// together with its allocation and view. It is rebuilt whenever the
// swapchain extent changes.
type AttachmentImage struct {
	Image
	Allocation *Allocation
	View       *ImageView
	Extent     vk.Extent2D
	Samples    vk.SampleCountFlagBits
}

// CreateAttachmentImage creates a device-local 2D image usable as a render
// attachment at the given sample count, along with a view over it.
func (a *Allocator) CreateAttachmentImage(extent vk.Extent2D, format vk.Format, usage vk.ImageUsageFlags, aspect vk.ImageAspectFlags, samples vk.SampleCountFlagBits) (*AttachmentImage, error) {
	imageInfo := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        format,
		Extent:        vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       samples,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}

	var image vk.Image
	err := vk.Error(vk.CreateImage(a.Device.VKDevice, &imageInfo, nil, &image))
	if err != nil {
		return nil, err
	}

	alloc, err := a.AllocateForImage(image, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		vk.DestroyImage(a.Device.VKDevice, image, nil)
		return nil, err
	}

	att := &AttachmentImage{
		Image:      Image{Device: a.Device, VKImage: image, VKFormat: format},
		Allocation: alloc,
		Extent:     extent,
		Samples:    samples,
	}

	att.View, err = att.CreateImageViewWithAspectMask(aspect)
	if err != nil {
		att.Destroy()
		return nil, err
	}
	return att, nil
}

func (a *AttachmentImage) Destroy() {
	if a == nil {
		return
	}
	if a.View != nil {
		a.View.Destroy()
		a.View = nil
	}
	if a.VKImage != vk.NullImage {
		a.Image.Destroy()
		a.VKImage = vk.NullImage
	}
	a.Allocation.Free()
	a.Allocation = nil
}
