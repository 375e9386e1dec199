package vdbview

import (
	"fmt"
	"log"

	vk "github.com/vulkan-go/vulkan"
)

// QueueClosure wraps a device queue with a scoped single-submission
// recording protocol: begin, record, then either submit-and-block or
// submit with explicit synchronization. At most one single-submission
// recording may be open per closure.
type QueueClosure struct {
	Queue *Queue

	pool         *CommandPool
	internalPool bool
	cmd          *CommandBuffer
	recording    bool
}

func NewQueueClosure(q *Queue) *QueueClosure {
	return &QueueClosure{Queue: q}
}

// Family returns the queue family index the closure submits to.
func (c *QueueClosure) Family() int {
	return c.Queue.QueueFamily.Index
}

// LogicalIndex returns the queue's index within its family.
func (c *QueueClosure) LogicalIndex() int {
	return c.Queue.LogicalIndex
}

// IsRecording reports whether a single-submission recording is open.
func (c *QueueClosure) IsRecording() bool {
	return c.recording
}

// InFlight reports whether an async submission has not yet been signaled
// complete.
func (c *QueueClosure) InFlight() bool {
	return c.cmd != nil && !c.recording
}

// BeginSingleSubmit opens a one-shot recording and returns the command
// buffer to record into. When customPool is nil a transient pool owned by
// the closure is created and retired with the submission. Beginning again
// while a prior recording or submission is still pending forces a blocking
// flush of it first; that masks caller misuse, so it is logged.
func (c *QueueClosure) BeginSingleSubmit(customPool *CommandPool) (*CommandBuffer, error) {
	if c.cmd != nil {
		log.Printf("WARNING: single-submission recording already pending on family %d; forcing a blocking flush", c.Family())
		if c.recording {
			if err := c.EndSingleSubmitAndFlush(c.cmd); err != nil {
				return nil, err
			}
		} else {
			if err := c.Queue.WaitIdle(); err != nil {
				return nil, err
			}
			c.SignalSingleSubmitComplete()
		}
	}

	if customPool != nil {
		c.pool = customPool
		c.internalPool = false
	} else {
		pool, err := c.Queue.Device.CreateTransientCommandPool(c.Queue.QueueFamily)
		if err != nil {
			return nil, fmt.Errorf("creating transient pool: %w", err)
		}
		c.pool = pool
		c.internalPool = true
	}

	cmd, err := c.pool.AllocateBuffer()
	if err != nil {
		c.releasePool()
		return nil, fmt.Errorf("allocating single-submission buffer: %w", err)
	}
	if err := cmd.BeginOneTime(); err != nil {
		c.pool.FreeBuffer(cmd)
		c.releasePool()
		return nil, err
	}

	c.cmd = cmd
	c.recording = true
	return cmd, nil
}

// EndSingleSubmitAndFlush closes the recording, submits it, and blocks
// until the queue drains. All prior and current work on the queue is
// complete when it returns.
func (c *QueueClosure) EndSingleSubmitAndFlush(cb *CommandBuffer) error {
	c.checkOpenRecording(cb)

	if err := cb.End(); err != nil {
		c.AbandonSingleSubmit()
		return err
	}
	c.recording = false

	if err := c.Queue.Submit(vk.NullFence, nil, nil, nil, cb); err != nil {
		c.SignalSingleSubmitComplete()
		return err
	}
	if err := c.Queue.WaitIdle(); err != nil {
		c.SignalSingleSubmitComplete()
		return err
	}

	c.SignalSingleSubmitComplete()
	return nil
}

// EndSingleSubmit closes the recording and submits it without blocking.
// The caller owns proving completion through the given fence or semaphores
// and must then call SignalSingleSubmitComplete to retire the recording.
func (c *QueueClosure) EndSingleSubmit(cb *CommandBuffer, fence *Fence, waitSemaphores []vk.Semaphore, waitStages []vk.PipelineStageFlags, signalSemaphores []vk.Semaphore) error {
	c.checkOpenRecording(cb)

	if err := cb.End(); err != nil {
		c.AbandonSingleSubmit()
		return err
	}
	c.recording = false

	vkFence := vk.NullFence
	if fence != nil {
		vkFence = fence.VKFence
	}
	if err := c.Queue.Submit(vkFence, waitSemaphores, waitStages, signalSemaphores, cb); err != nil {
		c.SignalSingleSubmitComplete()
		return err
	}
	return nil
}

// AbandonSingleSubmit discards an open recording without submitting it and
// returns the closure to idle. Error paths that leave a half-recorded
// buffer use this so the buffer never reaches the queue and the closure
// stays destroyable.
func (c *QueueClosure) AbandonSingleSubmit() {
	if c.cmd == nil {
		return
	}
	if c.pool != nil {
		c.pool.FreeBuffer(c.cmd)
	}
	c.cmd = nil
	c.recording = false
	c.releasePool()
}

// SignalSingleSubmitComplete retires an async submission once external
// synchronization has proven it complete, freeing the internal pool.
func (c *QueueClosure) SignalSingleSubmitComplete() {
	if c.cmd == nil {
		return
	}
	if c.pool != nil {
		c.pool.FreeBuffer(c.cmd)
	}
	c.cmd = nil
	c.releasePool()
}

func (c *QueueClosure) releasePool() {
	if c.pool != nil && c.internalPool {
		c.pool.Destroy()
	}
	c.pool = nil
	c.internalPool = false
}

func (c *QueueClosure) checkOpenRecording(cb *CommandBuffer) {
	if !c.recording {
		logicPanic("ending a single-submission that was never begun")
	}
	if cb != c.cmd {
		logicPanic("command buffer does not belong to this closure's open recording")
	}
}

// Clone copies the closure without any in-flight recording state; only the
// original remains bound to an open recording.
func (c *QueueClosure) Clone() *QueueClosure {
	return &QueueClosure{Queue: c.Queue}
}

// Destroy waits for the queue to drain and releases the closure.
// Destroying a closure while a recording is open or an async submission is
// unflushed is a programming error and panics.
func (c *QueueClosure) Destroy() {
	if c.cmd != nil {
		logicPanic("queue closure destroyed with an open or unflushed single-submission recording")
	}
	if c.Queue != nil {
		c.Queue.WaitIdle()
	}
	c.Queue = nil
}
