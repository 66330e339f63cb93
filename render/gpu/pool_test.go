package gpu

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/gekko3d/vizcore/render/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(budget uint64) (*BufferPool, *RecordingBackend) {
	b := NewRecordingBackend(64, 64)
	return NewBufferPool(b, budget, nil), b
}

func TestPoolReusesReleasedBuffer(t *testing.T) {
	p, _ := newTestPool(0)

	h1, err := p.Acquire(1024, UsageVertex, "a")
	require.NoError(t, err)
	b1, err := p.Buffer(h1)
	require.NoError(t, err)
	require.NoError(t, p.Release(h1))

	h2, err := p.Acquire(512, UsageVertex, "b")
	require.NoError(t, err)
	b2, err := p.Buffer(h2)
	require.NoError(t, err)

	assert.Same(t, b1, b2)
	assert.NotEqual(t, h1, h2)
	st := p.Stats()
	assert.Equal(t, 1, st.Created)
	assert.Equal(t, 1, st.Reused)
}

func TestPoolFirstFitRespectsUsageAndSize(t *testing.T) {
	p, _ := newTestPool(0)

	small, _ := p.Acquire(64, UsageVertex, "small")
	idx, _ := p.Acquire(4096, UsageIndex, "idx")
	big, _ := p.Acquire(4096, UsageVertex, "big")
	bigBuf, _ := p.Buffer(big)
	for _, h := range []Handle{small, idx, big} {
		require.NoError(t, p.Release(h))
	}

	h, err := p.Acquire(2048, UsageVertex, "want-big")
	require.NoError(t, err)
	got, _ := p.Buffer(h)
	assert.Same(t, bigBuf, got)
	assert.Equal(t, 3, p.Stats().Created)
}

func TestPoolNoAliasing(t *testing.T) {
	p, _ := newTestPool(0)
	seen := map[Buffer]Handle{}
	var handles []Handle
	for i := 0; i < 32; i++ {
		h, err := p.Acquire(256, UsageUniform, "u")
		require.NoError(t, err)
		buf, err := p.Buffer(h)
		require.NoError(t, err)
		_, dup := seen[buf]
		require.False(t, dup, "buffer handed out twice")
		seen[buf] = h
		handles = append(handles, h)
	}
	assert.Equal(t, 32, p.Stats().Live)
	for _, h := range handles {
		require.NoError(t, p.Release(h))
	}
	assert.Equal(t, 0, p.Stats().Live)
	assert.Equal(t, 32, p.Stats().Idle)
}

func TestPoolConcurrentAcquireRelease(t *testing.T) {
	p, _ := newTestPool(0)
	var mu sync.Mutex
	owners := map[Buffer]int{}
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				h, err := p.Acquire(128, UsageVertex, "v")
				if !assert.NoError(t, err) {
					return
				}
				buf, _ := p.Buffer(h)
				mu.Lock()
				owners[buf]++
				assert.Equal(t, 1, owners[buf])
				mu.Unlock()

				mu.Lock()
				owners[buf]--
				mu.Unlock()
				assert.NoError(t, p.Release(h))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, p.Stats().Live)
}

func TestPoolRejectsZeroSize(t *testing.T) {
	p, _ := newTestPool(0)
	_, err := p.Acquire(0, UsageVertex, "zero")
	assert.ErrorIs(t, err, core.ErrZeroSize)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestPoolBudget(t *testing.T) {
	p, _ := newTestPool(1024)
	h, err := p.Acquire(1000, UsageVertex, "a")
	require.NoError(t, err)

	_, err = p.Acquire(100, UsageVertex, "b")
	assert.ErrorIs(t, err, core.ErrPoolExhausted)
	assert.ErrorIs(t, err, core.ErrResource)
	assert.True(t, core.IsRecoverable(err))

	// idle buffers still count until trimmed
	require.NoError(t, p.Release(h))
	_, err = p.Acquire(2000, UsageVertex, "c")
	assert.ErrorIs(t, err, core.ErrPoolExhausted)

	assert.Equal(t, uint64(1008), p.Trim())
	_, err = p.Acquire(512, UsageIndex, "d")
	assert.NoError(t, err)
}

func TestPoolRejectsOversizedRequests(t *testing.T) {
	tests := []struct {
		name   string
		budget uint64
		size   uint64
	}{
		{"wraps when rounded, budgeted", 1 << 20, math.MaxUint64 - 3},
		{"wraps when rounded, unlimited", 0, math.MaxUint64 - 3},
		{"larger than budget", 1 << 20, 1<<20 + 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, b := newTestPool(tc.budget)
			h, err := p.Acquire(tc.size, UsageVertex, "huge")
			assert.ErrorIs(t, err, core.ErrPoolExhausted)
			assert.ErrorIs(t, err, core.ErrResource)
			assert.True(t, h.IsZero())
			assert.Zero(t, p.Stats().Created)
			assert.Zero(t, p.Stats().Allocated)
			assert.Zero(t, b.LiveBuffers())
		})
	}
}

func TestPoolStaleHandles(t *testing.T) {
	p, _ := newTestPool(0)
	h, _ := p.Acquire(64, UsageVertex, "a")
	require.NoError(t, p.Release(h))

	assert.ErrorIs(t, p.Release(h), core.ErrStaleHandle)
	_, err := p.Buffer(h)
	assert.ErrorIs(t, err, core.ErrStaleHandle)
	assert.ErrorIs(t, p.Release(Handle{}), core.ErrStaleHandle)

	// the slot is reused under a new generation; the old handle stays dead
	h2, _ := p.Acquire(64, UsageVertex, "b")
	assert.Equal(t, h.index, h2.index)
	assert.ErrorIs(t, p.Release(h), core.ErrStaleHandle)
	assert.NoError(t, p.Release(h2))
}

func TestPoolReleaseKeepsDeviceBuffer(t *testing.T) {
	p, b := newTestPool(0)
	h, _ := p.Acquire(64, UsageVertex, "a")
	require.NoError(t, p.Release(h))
	assert.Equal(t, 1, b.LiveBuffers())

	p.Close()
	assert.Equal(t, 0, b.LiveBuffers())
	_, err := p.Acquire(64, UsageVertex, "late")
	assert.ErrorIs(t, err, core.ErrPoolClosed)
}

func TestPoolAllocationFailure(t *testing.T) {
	p, b := newTestPool(0)
	b.CreateErr = errors.Join(core.ErrAllocation, errors.New("out of memory"))
	_, err := p.Acquire(64, UsageVertex, "a")
	assert.ErrorIs(t, err, core.ErrAllocation)
	assert.Equal(t, uint64(0), p.Stats().Allocated)
}
