package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func TestParseSampleCount(t *testing.T) {
	for arg, want := range map[string]vk.SampleCountFlagBits{
		"1x":  vk.SampleCount1Bit,
		"2x":  vk.SampleCount2Bit,
		"4x":  vk.SampleCount4Bit,
		"8x":  vk.SampleCount8Bit,
		"16x": vk.SampleCount16Bit,
		"4X":  vk.SampleCount4Bit,
	} {
		got, err := parseSampleCount(arg)
		require.NoError(t, err, arg)
		assert.Equal(t, want, got, arg)
	}
}

func TestParseSampleCountRejectsInvalid(t *testing.T) {
	for _, arg := range []string{"3x", "32x", "4", "", "fast"} {
		_, err := parseSampleCount(arg)
		assert.Error(t, err, arg)
	}
}
