package vdbview

import (
	"errors"
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// Resource-state errors. Callers can guard against these with errors.Is.
var (
	// ErrNotAllocated is returned when a data, map, or record operation is
	// invoked on a buffer in the unallocated state.
	ErrNotAllocated = errors.New("buffer is not allocated")

	// ErrOutOfRange is returned when staged data exceeds the capacity of the
	// destination buffer.
	ErrOutOfRange = errors.New("data exceeds buffer capacity")

	// ErrStageDropped is returned when an upload is requested after the
	// staging buffer has been dropped.
	ErrStageDropped = errors.New("staging buffer has been dropped")
)

// LogicError marks programming misuse that correct code never triggers,
// such as destroying a queue closure with an open recording. It is raised
// via panic rather than returned.
type LogicError struct {
	Msg string
}

func (e *LogicError) Error() string {
	return e.Msg
}

func logicPanic(format string, args ...interface{}) {
	panic(&LogicError{Msg: fmt.Sprintf(format, args...)})
}

// ResultError carries the raw result of a Vulkan call so callers can
// classify transient presentation conditions without string matching.
type ResultError struct {
	Op     string
	Result vk.Result
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Op, vk.Error(e.Result).Error(), e.Result)
}

func newResultError(op string, ret vk.Result) error {
	if ret == vk.Success {
		return nil
	}
	return &ResultError{Op: op, Result: ret}
}

// IsSurfaceLost reports whether err represents a transient presentation
// failure (out-of-date or otherwise unusable surface) that should be
// resolved by recreating the swapchain rather than surfaced to the caller.
func IsSurfaceLost(err error) bool {
	var re *ResultError
	if !errors.As(err, &re) {
		return false
	}
	return re.Result == vk.ErrorOutOfDate || re.Result == vk.ErrorSurfaceLost
}
