package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

type CommandBufferState int

const (
	CommandBufferStateReady CommandBufferState = iota
	CommandBufferStateRecording
	CommandBufferStateInRenderPass
	CommandBufferStateRecordingEnded
	CommandBufferStateSubmitted
	CommandBufferStateNotAllocated
)

// CommandBuffer wraps a handle with a recording state so misordered
// begin/end calls surface early.
type CommandBuffer struct {
	Handle vk.CommandBuffer
	State  CommandBufferState
}

func NewCommandBuffer(context *Context, pool vk.CommandPool, isPrimary bool) (*CommandBuffer, error) {
	cb := &CommandBuffer{
		State: CommandBufferStateNotAllocated,
	}

	level := vk.CommandBufferLevelPrimary
	if !isPrimary {
		level = vk.CommandBufferLevelSecondary
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              level,
	}

	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, handles); res != vk.Success {
		return nil, fmt.Errorf("failed to allocate command buffer: %s", ResultString(res))
	}
	cb.Handle = handles[0]
	cb.State = CommandBufferStateReady

	return cb, nil
}

func (cb *CommandBuffer) Free(context *Context, pool vk.CommandPool) {
	vk.FreeCommandBuffers(context.Device.LogicalDevice, pool, 1, []vk.CommandBuffer{cb.Handle})
	cb.Handle = nil
	cb.State = CommandBufferStateNotAllocated
}

func (cb *CommandBuffer) Begin(singleUse, renderpassContinue, simultaneousUse bool) error {
	beginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if singleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if renderpassContinue {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if simultaneousUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	if res := vk.BeginCommandBuffer(cb.Handle, beginInfo); res != vk.Success {
		return fmt.Errorf("failed to begin command buffer: %s", ResultString(res))
	}
	cb.State = CommandBufferStateRecording
	return nil
}

func (cb *CommandBuffer) End() error {
	if res := vk.EndCommandBuffer(cb.Handle); res != vk.Success {
		return fmt.Errorf("failed to end command buffer: %s", ResultString(res))
	}
	cb.State = CommandBufferStateRecordingEnded
	return nil
}

func (cb *CommandBuffer) UpdateSubmitted() {
	cb.State = CommandBufferStateSubmitted
}

func (cb *CommandBuffer) Reset() error {
	if res := vk.ResetCommandBuffer(cb.Handle, 0); res != vk.Success {
		return fmt.Errorf("failed to reset command buffer: %s", ResultString(res))
	}
	cb.State = CommandBufferStateReady
	return nil
}
