package gpu

import (
	"fmt"
	"math"
	"sync"

	"github.com/gekko3d/vizcore/render/core"
)

const (
	poolGranularity = 16
	// maxPoolRequest is the largest size that rounds up without wrapping.
	maxPoolRequest = math.MaxUint64 - poolGranularity + 1
)

// Handle identifies a pooled buffer. A released handle goes stale: the slot's
// generation moves on and lookups through the old handle fail.
type Handle struct {
	index      uint32
	generation uint32
}

func (h Handle) IsZero() bool { return h.generation == 0 }

func (h Handle) String() string {
	return fmt.Sprintf("buf#%d.%d", h.index, h.generation)
}

type poolSlot struct {
	buf        Buffer
	label      string
	usage      BufferUsage
	capacity   uint64
	generation uint32
	live       bool
}

type PoolStats struct {
	Live      int
	Idle      int
	Allocated uint64
	Budget    uint64
	Created   int
	Reused    int
}

// BufferPool recycles device buffers across frames. Acquire reuses the first
// idle buffer with matching usage and enough capacity; Release only returns
// the buffer to the free list. Device buffers are destroyed by Trim and Close.
type BufferPool struct {
	mu        sync.Mutex
	alloc     Allocator
	budget    uint64
	slots     []poolSlot
	free      []uint32
	vacant    []uint32
	allocated uint64
	created   int
	reused    int
	closed    bool
	logger    core.Logger
}

// NewBufferPool returns a pool drawing from alloc. A zero budget means
// unlimited.
func NewBufferPool(alloc Allocator, budget uint64, logger core.Logger) *BufferPool {
	if logger == nil {
		logger = core.NopLogger()
	}
	return &BufferPool{alloc: alloc, budget: budget, logger: logger}
}

func alignUp(n, a uint64) uint64 {
	return (n + a - 1) / a * a
}

func (p *BufferPool) Acquire(size uint64, usage BufferUsage, label string) (Handle, error) {
	if size == 0 {
		return Handle{}, fmt.Errorf("%w: %s", core.ErrZeroSize, label)
	}
	if size > maxPoolRequest || (p.budget > 0 && size > p.budget) {
		return Handle{}, fmt.Errorf("%w: %s wants %d bytes, budget %d", core.ErrPoolExhausted, label, size, p.budget)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return Handle{}, core.ErrPoolClosed
	}

	for i, idx := range p.free {
		s := &p.slots[idx]
		if s.usage != usage || s.capacity < size {
			continue
		}
		p.free = append(p.free[:i], p.free[i+1:]...)
		s.live = true
		s.generation++
		s.label = label
		p.reused++
		return Handle{index: idx, generation: s.generation}, nil
	}

	capacity := alignUp(size, poolGranularity)
	if p.budget > 0 && capacity > p.budget-p.allocated {
		return Handle{}, fmt.Errorf("%w: %d bytes requested, %d of %d in use", core.ErrPoolExhausted, capacity, p.allocated, p.budget)
	}
	buf, err := p.alloc.CreateBuffer(label, capacity, usage)
	if err != nil {
		return Handle{}, fmt.Errorf("pool: create %s (%d bytes): %w", label, capacity, err)
	}
	p.allocated += capacity
	p.created++

	var idx uint32
	if n := len(p.vacant); n > 0 {
		idx = p.vacant[n-1]
		p.vacant = p.vacant[:n-1]
	} else {
		idx = uint32(len(p.slots))
		p.slots = append(p.slots, poolSlot{})
	}
	s := &p.slots[idx]
	s.buf, s.label, s.usage, s.capacity, s.live = buf, label, usage, capacity, true
	s.generation++
	return Handle{index: idx, generation: s.generation}, nil
}

func (p *BufferPool) lookup(h Handle) (*poolSlot, error) {
	if h.IsZero() || int(h.index) >= len(p.slots) {
		return nil, fmt.Errorf("%w: %s", core.ErrStaleHandle, h)
	}
	s := &p.slots[h.index]
	if !s.live || s.generation != h.generation {
		return nil, fmt.Errorf("%w: %s", core.ErrStaleHandle, h)
	}
	return s, nil
}

// Buffer resolves a live handle.
func (p *BufferPool) Buffer(h Handle) (Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, core.ErrPoolClosed
	}
	s, err := p.lookup(h)
	if err != nil {
		return nil, err
	}
	return s.buf, nil
}

func (p *BufferPool) Release(h Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return core.ErrPoolClosed
	}
	s, err := p.lookup(h)
	if err != nil {
		return err
	}
	s.live = false
	s.generation++
	p.free = append(p.free, h.index)
	return nil
}

// Trim destroys idle buffers and returns the bytes reclaimed.
func (p *BufferPool) Trim() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var reclaimed uint64
	for _, idx := range p.free {
		s := &p.slots[idx]
		s.buf.Release()
		reclaimed += s.capacity
		s.buf, s.capacity, s.usage, s.label = nil, 0, 0, ""
		p.vacant = append(p.vacant, idx)
	}
	p.free = p.free[:0]
	p.allocated -= reclaimed
	if reclaimed > 0 {
		p.logger.Debugf("pool: trimmed %d bytes", reclaimed)
	}
	return reclaimed
}

// Close destroys every buffer, live or idle. The pool is unusable afterwards.
func (p *BufferPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	for i := range p.slots {
		if p.slots[i].buf != nil {
			p.slots[i].buf.Release()
			p.slots[i].buf = nil
		}
		p.slots[i].live = false
	}
	p.slots, p.free, p.vacant = nil, nil, nil
	p.allocated = 0
	p.closed = true
}

func (p *BufferPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := PoolStats{
		Idle:      len(p.free),
		Allocated: p.allocated,
		Budget:    p.budget,
		Created:   p.created,
		Reused:    p.reused,
	}
	for _, s := range p.slots {
		if s.live {
			st.Live++
		}
	}
	return st
}
