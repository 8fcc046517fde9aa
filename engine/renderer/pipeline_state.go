package renderer

import (
	"bytes"

	"golang.org/x/exp/slices"
)

// Pipeline (re)creation is the most expensive operation the framework
// amortizes, so every setter below compares against the stored value and
// only dirties the state on an actual change. Many draw calls differing
// only slightly then share one pipeline object.

type PrimitiveTopology uint32

const (
	TopologyPointList PrimitiveTopology = iota
	TopologyLineList
	TopologyTriangleList
	TopologyTriangleStrip
	TopologyTriangleFan
)

type PolygonMode uint32

const (
	PolygonModeFill PolygonMode = iota
	PolygonModeLine
	PolygonModePoint
)

type CullMode uint32

const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
	CullModeFrontAndBack
)

type FrontFace uint32

const (
	FrontFaceCounterClockwise FrontFace = iota
	FrontFaceClockwise
)

type CompareOp uint32

const (
	CompareOpNever CompareOp = iota
	CompareOpLess
	CompareOpEqual
	CompareOpLessOrEqual
	CompareOpGreater
	CompareOpNotEqual
	CompareOpGreaterOrEqual
	CompareOpAlways
)

type BlendFactor uint32

const (
	BlendFactorZero BlendFactor = iota
	BlendFactorOne
	BlendFactorSrcAlpha
	BlendFactorOneMinusSrcAlpha
)

type BlendOp uint32

const (
	BlendOpAdd BlendOp = iota
	BlendOpSubtract
)

type VertexInputRate uint32

const (
	VertexInputRateVertex VertexInputRate = iota
	VertexInputRateInstance
)

type VertexBindingDescription struct {
	Binding   uint32
	Stride    uint32
	InputRate VertexInputRate
}

type VertexAttributeDescription struct {
	Location uint32
	Binding  uint32
	Format   uint32
	Offset   uint32
}

type VertexInputState struct {
	Bindings   []VertexBindingDescription
	Attributes []VertexAttributeDescription
}

func (s VertexInputState) equal(o VertexInputState) bool {
	return slices.Equal(s.Bindings, o.Bindings) && slices.Equal(s.Attributes, o.Attributes)
}

type InputAssemblyState struct {
	Topology               PrimitiveTopology
	PrimitiveRestartEnable bool
}

type RasterizationState struct {
	DepthClampEnable        bool
	RasterizerDiscardEnable bool
	PolygonMode             PolygonMode
	CullMode                CullMode
	FrontFace               FrontFace
	DepthBiasEnable         bool
	LineWidth               float32
}

type ViewportState struct {
	ViewportCount uint32
	ScissorCount  uint32
}

type MultisampleState struct {
	RasterizationSamples  uint32
	SampleShadingEnable   bool
	MinSampleShading      float32
	AlphaToCoverageEnable bool
	AlphaToOneEnable      bool
}

type StencilOpState struct {
	FailOp      uint32
	PassOp      uint32
	DepthFailOp uint32
	CompareOp   CompareOp
}

type DepthStencilState struct {
	DepthTestEnable       bool
	DepthWriteEnable      bool
	DepthCompareOp        CompareOp
	DepthBoundsTestEnable bool
	StencilTestEnable     bool
	Front                 StencilOpState
	Back                  StencilOpState
}

type ColorBlendAttachmentState struct {
	BlendEnable         bool
	SrcColorBlendFactor BlendFactor
	DstColorBlendFactor BlendFactor
	ColorBlendOp        BlendOp
	SrcAlphaBlendFactor BlendFactor
	DstAlphaBlendFactor BlendFactor
	AlphaBlendOp        BlendOp
	ColorWriteMask      uint32
}

type ColorBlendState struct {
	LogicOpEnable bool
	LogicOp       uint32
	Attachments   []ColorBlendAttachmentState
}

func (s ColorBlendState) equal(o ColorBlendState) bool {
	return s.LogicOpEnable == o.LogicOpEnable &&
		s.LogicOp == o.LogicOp &&
		slices.Equal(s.Attachments, o.Attachments)
}

// SpecializationState keys raw constant payloads by constant id. Setting a
// byte-identical payload is a no-op so unchanged constants never force a
// pipeline variant.
type SpecializationState struct {
	constants map[uint32][]byte
	dirty     bool
}

func NewSpecializationState() *SpecializationState {
	return &SpecializationState{
		constants: make(map[uint32][]byte),
	}
}

func (s *SpecializationState) SetConstant(id uint32, data []byte) {
	if existing, ok := s.constants[id]; ok && bytes.Equal(existing, data) {
		return
	}
	s.constants[id] = slices.Clone(data)
	s.dirty = true
}

func (s *SpecializationState) Constant(id uint32) ([]byte, bool) {
	data, ok := s.constants[id]
	return data, ok
}

func (s *SpecializationState) Dirty() bool { return s.dirty }

func (s *SpecializationState) ClearDirty() { s.dirty = false }

func (s *SpecializationState) Reset() {
	s.constants = make(map[uint32][]byte)
	s.dirty = false
}

// PipelineState aggregates every field a pipeline build depends on and
// tracks whether any of them changed since the last flush.
type PipelineState struct {
	specialization *SpecializationState

	renderPass RenderPass
	layout     PipelineLayout

	vertexInput   VertexInputState
	inputAssembly InputAssemblyState
	rasterization RasterizationState
	viewport      ViewportState
	multisample   MultisampleState
	depthStencil  DepthStencilState
	colorBlend    ColorBlendState
	subpassIndex  uint32

	dirty bool
}

func NewPipelineState() *PipelineState {
	return &PipelineState{
		specialization: NewSpecializationState(),
	}
}

// SetPipelineLayout compares by handle identity: layouts are externally
// owned, so two structurally equal layouts are still distinct pipelines.
func (ps *PipelineState) SetPipelineLayout(layout PipelineLayout) {
	if ps.layout == layout {
		return
	}
	ps.layout = layout
	ps.dirty = true
}

// SetRenderPass compares by handle identity, like SetPipelineLayout.
func (ps *PipelineState) SetRenderPass(renderPass RenderPass) {
	if ps.renderPass == renderPass {
		return
	}
	ps.renderPass = renderPass
	ps.dirty = true
}

func (ps *PipelineState) SetVertexInputState(state VertexInputState) {
	if ps.vertexInput.equal(state) {
		return
	}
	ps.vertexInput = state
	ps.dirty = true
}

func (ps *PipelineState) SetInputAssemblyState(state InputAssemblyState) {
	if ps.inputAssembly == state {
		return
	}
	ps.inputAssembly = state
	ps.dirty = true
}

func (ps *PipelineState) SetRasterizationState(state RasterizationState) {
	if ps.rasterization == state {
		return
	}
	ps.rasterization = state
	ps.dirty = true
}

func (ps *PipelineState) SetViewportState(state ViewportState) {
	if ps.viewport == state {
		return
	}
	ps.viewport = state
	ps.dirty = true
}

func (ps *PipelineState) SetMultisampleState(state MultisampleState) {
	if ps.multisample == state {
		return
	}
	ps.multisample = state
	ps.dirty = true
}

func (ps *PipelineState) SetDepthStencilState(state DepthStencilState) {
	if ps.depthStencil == state {
		return
	}
	ps.depthStencil = state
	ps.dirty = true
}

func (ps *PipelineState) SetColorBlendState(state ColorBlendState) {
	if ps.colorBlend.equal(state) {
		return
	}
	ps.colorBlend = state
	ps.dirty = true
}

func (ps *PipelineState) SetSubpassIndex(index uint32) {
	if ps.subpassIndex == index {
		return
	}
	ps.subpassIndex = index
	ps.dirty = true
}

func (ps *PipelineState) SetConstant(id uint32, data []byte) {
	ps.specialization.SetConstant(id, data)
}

func (ps *PipelineState) PipelineLayout() PipelineLayout         { return ps.layout }
func (ps *PipelineState) RenderPass() RenderPass                 { return ps.renderPass }
func (ps *PipelineState) VertexInputState() VertexInputState     { return ps.vertexInput }
func (ps *PipelineState) InputAssemblyState() InputAssemblyState { return ps.inputAssembly }
func (ps *PipelineState) RasterizationState() RasterizationState { return ps.rasterization }
func (ps *PipelineState) ViewportState() ViewportState           { return ps.viewport }
func (ps *PipelineState) MultisampleState() MultisampleState     { return ps.multisample }
func (ps *PipelineState) DepthStencilState() DepthStencilState   { return ps.depthStencil }
func (ps *PipelineState) ColorBlendState() ColorBlendState       { return ps.colorBlend }
func (ps *PipelineState) SubpassIndex() uint32                   { return ps.subpassIndex }
func (ps *PipelineState) Specialization() *SpecializationState   { return ps.specialization }

// IsDirty reports whether any explicit field or specialization constant
// changed since the last ClearDirty.
func (ps *PipelineState) IsDirty() bool {
	return ps.dirty || ps.specialization.Dirty()
}

func (ps *PipelineState) ClearDirty() {
	ps.dirty = false
	ps.specialization.ClearDirty()
}

// Reset drops everything back to the zero state, including the externally
// owned handles.
func (ps *PipelineState) Reset() {
	ps.specialization.Reset()
	ps.renderPass = nil
	ps.layout = nil
	ps.vertexInput = VertexInputState{}
	ps.inputAssembly = InputAssemblyState{}
	ps.rasterization = RasterizationState{}
	ps.viewport = ViewportState{}
	ps.multisample = MultisampleState{}
	ps.depthStencil = DepthStencilState{}
	ps.colorBlend = ColorBlendState{}
	ps.subpassIndex = 0
	ps.dirty = false
}
