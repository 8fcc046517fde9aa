package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vortex/engine/renderer"
)

// RenderPass is a single-subpass color pass that clears to a solid color
// and transitions the image for presentation.
type RenderPass struct {
	Handle     vk.RenderPass
	R, G, B, A float32
}

func RenderPassCreate(context *Context, format vk.Format, r, g, b, a float32) (*RenderPass, error) {
	rp := &RenderPass{R: r, G: g, B: b, A: a}

	colorAttachment := vk.AttachmentDescription{
		Format:         format,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments: []vk.AttachmentReference{
			{
				Attachment: 0,
				Layout:     vk.ImageLayoutColorAttachmentOptimal,
			},
		},
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit) | vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}

	createInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.AttachmentDescription{colorAttachment},
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var handle vk.RenderPass
	if res := vk.CreateRenderPass(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle); res != vk.Success {
		return nil, fmt.Errorf("failed to create render pass: %s", ResultString(res))
	}
	rp.Handle = handle
	return rp, nil
}

func (rp *RenderPass) Destroy(context *Context) {
	if rp.Handle != vk.NullRenderPass {
		vk.DestroyRenderPass(context.Device.LogicalDevice, rp.Handle, context.Allocator)
		rp.Handle = vk.NullRenderPass
	}
}

func (rp *RenderPass) Begin(cb *CommandBuffer, framebuffer vk.Framebuffer, extent renderer.Extent2D) {
	clearValues := make([]vk.ClearValue, 1)
	clearValues[0].SetColor([]float32{rp.R, rp.G, rp.B, rp.A})

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  rp.Handle,
		Framebuffer: framebuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: extent.Width, Height: extent.Height},
		},
		ClearValueCount: 1,
		PClearValues:    clearValues,
	}

	vk.CmdBeginRenderPass(cb.Handle, &beginInfo, vk.SubpassContentsInline)
	cb.State = CommandBufferStateInRenderPass
}

func (rp *RenderPass) End(cb *CommandBuffer) {
	vk.CmdEndRenderPass(cb.Handle)
	cb.State = CommandBufferStateRecording
}

// Framebuffer binds swapchain image views to a render pass.
type Framebuffer struct {
	Handle vk.Framebuffer
}

func FramebufferCreate(context *Context, renderPass *RenderPass, extent renderer.Extent2D, attachments []vk.ImageView) (*Framebuffer, error) {
	createInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderPass.Handle,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}

	var handle vk.Framebuffer
	if res := vk.CreateFramebuffer(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle); res != vk.Success {
		return nil, fmt.Errorf("failed to create framebuffer: %s", ResultString(res))
	}
	return &Framebuffer{Handle: handle}, nil
}

func (fb *Framebuffer) Destroy(context *Context) {
	if fb.Handle != vk.NullFramebuffer {
		vk.DestroyFramebuffer(context.Device.LogicalDevice, fb.Handle, context.Allocator)
		fb.Handle = vk.NullFramebuffer
	}
}
