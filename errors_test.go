package vdbview

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	vk "github.com/vulkan-go/vulkan"
)

func TestIsSurfaceLost(t *testing.T) {
	assert.True(t, IsSurfaceLost(newResultError("acquire next image", vk.ErrorOutOfDate)))
	assert.True(t, IsSurfaceLost(newResultError("queue present", vk.ErrorSurfaceLost)))
	assert.False(t, IsSurfaceLost(newResultError("wait for fence", vk.Timeout)))
	assert.False(t, IsSurfaceLost(fmt.Errorf("unrelated")))
	assert.False(t, IsSurfaceLost(nil))
}

func TestIsSurfaceLostSeesWrappedErrors(t *testing.T) {
	err := fmt.Errorf("presenting frame: %w", newResultError("queue present", vk.ErrorOutOfDate))
	assert.True(t, IsSurfaceLost(err))
}

func TestNewResultErrorSuccessIsNil(t *testing.T) {
	assert.NoError(t, newResultError("anything", vk.Success))
}
