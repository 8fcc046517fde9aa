package renderer

import (
	"golang.org/x/exp/maps"
)

// bindingKind tags the variant stored in a ResourceBinding.
type bindingKind uint8

const (
	bindingNone bindingKind = iota
	bindingBuffer
	bindingImage
	bindingInput
)

// ResourceBinding is one descriptor slot: either a buffer range, a sampled
// image, or an input attachment.
type ResourceBinding struct {
	kind    bindingKind
	buffer  GPUBuffer
	offset  uint64
	rng     uint64
	image   Image
	sampler Sampler
	dirty   bool
}

func (rb *ResourceBinding) Dirty() bool       { return rb.dirty }
func (rb *ResourceBinding) Buffer() GPUBuffer { return rb.buffer }
func (rb *ResourceBinding) Offset() uint64    { return rb.offset }
func (rb *ResourceBinding) Range() uint64     { return rb.rng }
func (rb *ResourceBinding) Image() Image      { return rb.image }
func (rb *ResourceBinding) Sampler() Sampler  { return rb.sampler }

// BindingPoint addresses one array element of one binding within a set.
type BindingPoint struct {
	Binding      uint32
	ArrayElement uint32
}

// SetBindings groups the bindings of one descriptor set.
type SetBindings struct {
	bindings map[BindingPoint]*ResourceBinding
	dirty    bool
}

func newSetBindings() *SetBindings {
	return &SetBindings{
		bindings: make(map[BindingPoint]*ResourceBinding),
	}
}

func (sb *SetBindings) Dirty() bool { return sb.dirty }

// Binding returns the record at the point, or nil.
func (sb *SetBindings) Binding(point BindingPoint) *ResourceBinding {
	return sb.bindings[point]
}

// Each visits every binding in the set.
func (sb *SetBindings) Each(fn func(point BindingPoint, binding *ResourceBinding)) {
	for point, binding := range sb.bindings {
		fn(point, binding)
	}
}

func (sb *SetBindings) upsert(point BindingPoint) *ResourceBinding {
	rb, ok := sb.bindings[point]
	if !ok {
		rb = &ResourceBinding{}
		sb.bindings[point] = rb
	}
	rb.dirty = true
	sb.dirty = true
	return rb
}

// ResourceBindings tracks which descriptor bindings changed since the last
// flush. Descriptor-set writes are among the most expensive operations on
// the device, so callers materialize only dirty sets and then clear the
// flags.
type ResourceBindings struct {
	sets  map[uint32]*SetBindings
	dirty bool
}

func NewResourceBindings() *ResourceBindings {
	return &ResourceBindings{
		sets: make(map[uint32]*SetBindings),
	}
}

func (r *ResourceBindings) set(setIndex uint32) *SetBindings {
	sb, ok := r.sets[setIndex]
	if !ok {
		sb = newSetBindings()
		r.sets[setIndex] = sb
	}
	return sb
}

// BindBuffer records a buffer range at (set, binding, arrayElement) and
// marks the binding, its set and the tracker dirty.
func (r *ResourceBindings) BindBuffer(buffer GPUBuffer, offset, rng uint64, setIndex, binding, arrayElement uint32) {
	rb := r.set(setIndex).upsert(BindingPoint{Binding: binding, ArrayElement: arrayElement})
	rb.kind = bindingBuffer
	rb.buffer = buffer
	rb.offset = offset
	rb.rng = rng
	rb.image = nil
	rb.sampler = nil
	r.dirty = true
}

// BindImage records a sampled image at (set, binding, arrayElement).
func (r *ResourceBindings) BindImage(image Image, sampler Sampler, setIndex, binding, arrayElement uint32) {
	rb := r.set(setIndex).upsert(BindingPoint{Binding: binding, ArrayElement: arrayElement})
	rb.kind = bindingImage
	rb.image = image
	rb.sampler = sampler
	rb.buffer = nil
	rb.offset = 0
	rb.rng = 0
	r.dirty = true
}

// BindInput records an input attachment at (set, binding, arrayElement).
func (r *ResourceBindings) BindInput(image Image, setIndex, binding, arrayElement uint32) {
	rb := r.set(setIndex).upsert(BindingPoint{Binding: binding, ArrayElement: arrayElement})
	rb.kind = bindingInput
	rb.image = image
	rb.sampler = nil
	rb.buffer = nil
	rb.offset = 0
	rb.rng = 0
	r.dirty = true
}

func (r *ResourceBindings) Dirty() bool { return r.dirty }

// Set returns the bindings of one set, or nil.
func (r *ResourceBindings) Set(setIndex uint32) *SetBindings {
	return r.sets[setIndex]
}

// SetIndices returns the indices of all sets with recorded bindings.
func (r *ResourceBindings) SetIndices() []uint32 {
	return maps.Keys(r.sets)
}

// ClearDirty unmarks the tracker and every set and binding without
// altering bound values. Call after the descriptor writes have been
// materialized.
func (r *ResourceBindings) ClearDirty() {
	r.dirty = false
	for _, sb := range r.sets {
		sb.dirty = false
		for _, rb := range sb.bindings {
			rb.dirty = false
		}
	}
}

// ClearSetDirty unmarks one set and its bindings.
func (r *ResourceBindings) ClearSetDirty(setIndex uint32) {
	sb, ok := r.sets[setIndex]
	if !ok {
		return
	}
	sb.dirty = false
	for _, rb := range sb.bindings {
		rb.dirty = false
	}
}

// ClearBindingDirty unmarks a single binding.
func (r *ResourceBindings) ClearBindingDirty(setIndex, binding, arrayElement uint32) {
	sb, ok := r.sets[setIndex]
	if !ok {
		return
	}
	rb, ok := sb.bindings[BindingPoint{Binding: binding, ArrayElement: arrayElement}]
	if !ok {
		return
	}
	rb.dirty = false
}

// Reset discards every bound entry. Use when the descriptor sets
// themselves are recycled at a frame boundary, not merely re-validated.
func (r *ResourceBindings) Reset() {
	maps.Clear(r.sets)
	r.dirty = false
}
