package renderer

import (
	"fmt"

	"github.com/spaghettifunk/vortex/engine/core"
)

// BufferAllocation is a non-owning view into a BufferBlock. It stays valid
// only until the block's next Reset.
type BufferAllocation struct {
	Buffer GPUBuffer
	Offset uint64
	Size   uint64
}

// Empty reports whether the allocation failed because the block was full.
func (a BufferAllocation) Empty() bool {
	return a.Size == 0 || a.Buffer == nil
}

// BufferBlock wraps one backing buffer with a bump-pointer offset. There is
// no free list: allocations only ever move the offset forward and the whole
// block rewinds at Reset.
type BufferBlock struct {
	buffer    GPUBuffer
	capacity  uint64
	alignment uint64
	offset    uint64
}

func alignUp(value, alignment uint64) uint64 {
	m := value % alignment
	if m == 0 {
		return value
	}
	return value + alignment - m
}

func (b *BufferBlock) alignedOffset() uint64 {
	return alignUp(b.offset, b.alignment)
}

// CanAllocate reports whether size bytes fit behind the aligned offset.
func (b *BufferBlock) CanAllocate(size uint64) bool {
	if size == 0 {
		panic("buffer block: zero-size allocation")
	}
	return b.alignedOffset()+size <= b.capacity
}

// Allocate bumps the offset and returns a view of the claimed range. A full
// block yields an empty allocation; callers must check Empty and either
// request another block or treat it as pool exhaustion.
func (b *BufferBlock) Allocate(size uint64) BufferAllocation {
	if !b.CanAllocate(size) {
		return BufferAllocation{}
	}
	start := b.alignedOffset()
	b.offset = start + size
	return BufferAllocation{
		Buffer: b.buffer,
		Offset: start,
		Size:   size,
	}
}

// Reset rewinds the block. Allocations handed out before this call must no
// longer be used.
func (b *BufferBlock) Reset() {
	b.offset = 0
}

// Capacity returns the total byte size of the backing buffer.
func (b *BufferBlock) Capacity() uint64 {
	return b.capacity
}

// Remaining returns the bytes still allocatable behind the aligned offset.
func (b *BufferBlock) Remaining() uint64 {
	aligned := b.alignedOffset()
	if aligned >= b.capacity {
		return 0
	}
	return b.capacity - aligned
}

// BufferPool hands out BufferBlocks for one usage class. Blocks persist
// across frames and only their offsets rewind, so steady-state frames do
// not touch the device allocator at all.
type BufferPool struct {
	device    Device
	blockSize uint64
	usage     BufferUsage
	alignment uint64
	blocks    []*BufferBlock
}

// NewBufferPool derives the offset alignment from the usage class. An
// unrecognized usage combination is a configuration error.
func NewBufferPool(device Device, blockSize uint64, usage BufferUsage) (*BufferPool, error) {
	alignment, err := alignmentFor(usage, device.Limits())
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return &BufferPool{
		device:    device,
		blockSize: blockSize,
		usage:     usage,
		alignment: alignment,
	}, nil
}

func alignmentFor(usage BufferUsage, limits Limits) (uint64, error) {
	switch {
	case usage == BufferUsageUniform:
		return limits.MinUniformBufferOffsetAlignment, nil
	case usage == BufferUsageStorage:
		return limits.MinStorageBufferOffsetAlignment, nil
	case usage == BufferUsageUniformTexel:
		return limits.MinTexelBufferOffsetAlignment, nil
	case usage&(BufferUsageVertex|BufferUsageIndex|BufferUsageIndirect) != 0 &&
		usage&^(BufferUsageVertex|BufferUsageIndex|BufferUsageIndirect) == 0:
		return 16, nil
	default:
		return 0, fmt.Errorf("buffer pool: no alignment rule for usage 0x%x", uint32(usage))
	}
}

// RequestBlock finds or creates a block able to serve minimumSize bytes.
// With exact set, only blocks whose capacity equals minimumSize are
// considered, and a miss allocates exactly that size; otherwise any block
// with room qualifies and new blocks are at least the configured block size.
func (p *BufferPool) RequestBlock(minimumSize uint64, exact bool) (*BufferBlock, error) {
	for _, b := range p.blocks {
		if exact && b.capacity != minimumSize {
			continue
		}
		if b.CanAllocate(minimumSize) {
			return b, nil
		}
	}

	size := minimumSize
	if !exact && p.blockSize > size {
		size = p.blockSize
	}

	buffer, err := p.device.CreateBuffer(size, p.usage)
	if err != nil {
		core.LogError("failed to create %d byte buffer block: %s", size, err)
		return nil, fmt.Errorf("buffer pool: %w", err)
	}
	block := &BufferBlock{
		buffer:    buffer,
		capacity:  size,
		alignment: p.alignment,
	}
	p.blocks = append(p.blocks, block)
	return block, nil
}

// Reset rewinds every block. The blocks themselves are kept; growing once
// and reusing forever is the point of the pool.
func (p *BufferPool) Reset() {
	for _, b := range p.blocks {
		b.Reset()
	}
}

// BlockCount reports how many blocks the pool has grown to.
func (p *BufferPool) BlockCount() int {
	return len(p.blocks)
}

// Destroy releases every backing buffer.
func (p *BufferPool) Destroy() {
	for _, b := range p.blocks {
		p.device.DestroyBuffer(b.buffer)
	}
	p.blocks = nil
}
