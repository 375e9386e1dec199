package vdbview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	vk "github.com/vulkan-go/vulkan"
)

func TestNegotiateSurfaceFormatPrefersExactMatch(t *testing.T) {
	available := []vk.SurfaceFormat{
		{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
	}
	preferred := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}

	got := negotiateSurfaceFormat(available, preferred)
	assert.Equal(t, preferred.Format, got.Format)
}

func TestNegotiateSurfaceFormatFallsBackToFirst(t *testing.T) {
	available := []vk.SurfaceFormat{
		{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		{Format: vk.FormatR16g16b16a16Sfloat, ColorSpace: vk.ColorSpaceSrgbNonlinear},
	}
	preferred := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}

	got := negotiateSurfaceFormat(available, preferred)
	assert.Equal(t, available[0].Format, got.Format)
}

func TestNegotiatePresentModeFallsBackToFifo(t *testing.T) {
	available := VKPresentModes{vk.PresentModeFifo, vk.PresentModeImmediate}

	assert.Equal(t, vk.PresentModeImmediate,
		negotiatePresentMode(available, vk.PresentModeImmediate))
	assert.Equal(t, vk.PresentModeFifo,
		negotiatePresentMode(available, vk.PresentModeMailbox))
}

func TestClampImageCount(t *testing.T) {
	assert.EqualValues(t, 2, clampImageCount(2, 2, 8))
	assert.EqualValues(t, 2, clampImageCount(1, 2, 8))
	assert.EqualValues(t, 8, clampImageCount(16, 2, 8))
	// Zero max means the surface imposes no upper bound.
	assert.EqualValues(t, 16, clampImageCount(16, 2, 0))
}

func TestNegotiateExtentUsesSurfaceValueWhenFixed(t *testing.T) {
	got := negotiateExtent(
		vk.Extent2D{Width: 640, Height: 480},
		vk.Extent2D{Width: 1, Height: 1},
		vk.Extent2D{Width: 4096, Height: 4096},
		vk.Extent2D{Width: 800, Height: 600})
	assert.EqualValues(t, 640, got.Width)
	assert.EqualValues(t, 480, got.Height)
}

func TestNegotiateExtentClampsFramebufferSize(t *testing.T) {
	got := negotiateExtent(
		vk.Extent2D{Width: vk.MaxUint32, Height: vk.MaxUint32},
		vk.Extent2D{Width: 64, Height: 64},
		vk.Extent2D{Width: 1024, Height: 1024},
		vk.Extent2D{Width: 2000, Height: 10})
	assert.EqualValues(t, 1024, got.Width)
	assert.EqualValues(t, 64, got.Height)
}

func TestClampSampleCountSlidesDown(t *testing.T) {
	supported := vk.SampleCountFlags(vk.SampleCount1Bit | vk.SampleCount2Bit |
		vk.SampleCount4Bit | vk.SampleCount8Bit)

	assert.Equal(t, vk.SampleCount8Bit, ClampSampleCount(vk.SampleCount32Bit, supported))
	assert.Equal(t, vk.SampleCount4Bit, ClampSampleCount(vk.SampleCount4Bit, supported))
	assert.Equal(t, vk.SampleCount1Bit,
		ClampSampleCount(vk.SampleCount16Bit, vk.SampleCountFlags(vk.SampleCount1Bit)))
}

func TestDefaultWindowConfig(t *testing.T) {
	cfg := DefaultWindowConfig()
	assert.Equal(t, 256, cfg.Width)
	assert.Equal(t, 256, cfg.Height)
	assert.Equal(t, 2, cfg.SwapchainLength)
	assert.Equal(t, vk.PresentModeFifo, cfg.PresentMode)
	assert.False(t, cfg.EnableDepth)
	assert.Equal(t, vk.SampleCount1Bit, cfg.Samples)
}
