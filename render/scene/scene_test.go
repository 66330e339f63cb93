package scene

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/gekko3d/vizcore/render/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubObject struct {
	id        uuid.UUID
	box       core.AABB
	boundsErr error
	renderErr error
	updates   atomic.Int32
	destroyed bool
}

func newStub() *stubObject {
	return &stubObject{id: uuid.New(), box: core.AABB{{-1, -1, -1}, {1, 1, 1}}}
}

func (o *stubObject) ID() uuid.UUID { return o.id }

func (o *stubObject) Update(dt float32) error {
	o.updates.Add(1)
	return nil
}

func (o *stubObject) Bounds() (core.AABB, error) { return o.box, o.boundsErr }

func (o *stubObject) Render() ([]core.DrawItem, error) {
	if o.renderErr != nil {
		return nil, o.renderErr
	}
	return []core.DrawItem{{Geometry: core.Cube(1), Material: core.DefaultMaterial(), Transform: mgl32.Ident4()}}, nil
}

func (o *stubObject) Destroy() { o.destroyed = true }

func TestDrawSetFollowsZOrder(t *testing.T) {
	s := New()
	for _, z := range []int{2, 0, 1} {
		require.NoError(t, s.AddLayer(string(rune('a'+z)), z).AddObject(newStub()))
	}

	items := s.GenerateDrawSet()
	require.Len(t, items, 3)
	for i, it := range items {
		assert.Equal(t, i, it.ZOrder)
	}
}

func TestDrawSetKeepsInsertionOrderWithinLayer(t *testing.T) {
	s := New()
	l := s.AddLayer("data", 0)
	objs := []*stubObject{newStub(), newStub(), newStub()}
	for _, o := range objs {
		require.NoError(t, l.AddObject(o))
	}
	// same z-order: ties keep insertion order
	require.NoError(t, s.AddLayer("overlay", 0).AddObject(newStub()))

	items := s.GenerateDrawSet()
	require.Len(t, items, 4)
	for i, o := range objs {
		assert.Equal(t, o.id, items[i].Object)
		assert.Equal(t, "data", items[i].Layer)
	}
	assert.Equal(t, "overlay", items[3].Layer)
}

func TestInvisibleLayerIsSkipped(t *testing.T) {
	s := New()
	hidden := s.AddLayer("hidden", 0)
	require.NoError(t, hidden.AddObject(newStub()))
	hidden.SetVisible(false)
	require.NoError(t, s.AddLayer("shown", 1).AddObject(newStub()))

	items := s.GenerateDrawSet()
	require.Len(t, items, 1)
	assert.Equal(t, "shown", items[0].Layer)
}

func TestFailingObjectIsSkipped(t *testing.T) {
	s := New()
	l := s.AddLayer("data", 0)
	bad := newStub()
	bad.boundsErr = errors.New("boom")
	broken := newStub()
	broken.renderErr = errors.New("no mesh")
	good := newStub()
	for _, o := range []*stubObject{bad, broken, good} {
		require.NoError(t, l.AddObject(o))
	}

	items := s.GenerateDrawSet()
	require.Len(t, items, 1)
	assert.Equal(t, good.id, items[0].Object)
	assert.Equal(t, 2, s.Stats().Skipped)
}

func TestObjectsOutsideFrustumAreCulled(t *testing.T) {
	s := New()
	l := s.AddLayer("data", 0)
	far := newStub()
	far.box = core.AABB{{500, 500, 500}, {501, 501, 501}}
	require.NoError(t, l.AddObject(far))
	require.NoError(t, l.AddObject(newStub()))

	assert.Len(t, s.GenerateDrawSet(), 1)
	assert.Equal(t, 1, s.Stats().Culled)

	noCull := New(WithCulling(false))
	l = noCull.AddLayer("data", 0)
	require.NoError(t, l.AddObject(far))
	assert.Len(t, noCull.GenerateDrawSet(), 1)
}

func TestAddObjectRejectsDuplicates(t *testing.T) {
	s := New()
	l := s.AddLayer("data", 0)
	o := newStub()
	require.NoError(t, l.AddObject(o))
	assert.ErrorIs(t, l.AddObject(o), ErrDuplicateObject)
	assert.Equal(t, 1, l.Len())

	assert.True(t, l.RemoveObject(o))
	assert.False(t, l.RemoveObject(o))
}

func TestPrepareUpdatesVisibleObjects(t *testing.T) {
	s := New(WithWorkers(2))
	l := s.AddLayer("data", 0)
	objs := make([]*stubObject, 16)
	for i := range objs {
		objs[i] = newStub()
		require.NoError(t, l.AddObject(objs[i]))
	}
	hidden := s.AddLayer("hidden", 1)
	idle := newStub()
	require.NoError(t, hidden.AddObject(idle))
	hidden.SetVisible(false)

	require.NoError(t, s.Prepare(context.Background(), 0.016))
	for _, o := range objs {
		assert.Equal(t, int32(1), o.updates.Load())
	}
	assert.Equal(t, int32(0), idle.updates.Load())
}

func TestPrepareHonorsCancellation(t *testing.T) {
	s := New()
	require.NoError(t, s.AddLayer("data", 0).AddObject(newStub()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Prepare(ctx, 0.016), context.Canceled)
}

func TestLightsRebuildLightingSet(t *testing.T) {
	s := New()
	before := s.Lighting()
	assert.Equal(t, 0, before.Count())

	require.NoError(t, s.AddLight(core.NewPointLight(mgl32.Vec3{0, 2, 0}, mgl32.Vec3{1, 1, 1}, 1, 10)))
	after := s.Lighting()
	assert.NotSame(t, before, after)
	assert.Equal(t, 0, before.Count(), "old snapshot is untouched")
	assert.Equal(t, 1, after.Count())

	require.NoError(t, s.SetLightEnabled(0, false))
	assert.Equal(t, 0, s.Lighting().Count())
	assert.ErrorIs(t, s.SetLightEnabled(3, true), core.ErrLightIndex)

	bad := core.NewDirectionalLight(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}, 1)
	assert.ErrorIs(t, s.SetLights([]core.Light{bad}), core.ErrValidation)
	assert.Len(t, s.Lights(), 1)

	s.SetAmbient(mgl32.Vec3{1, 1, 1}, 0.5)
	assert.Equal(t, float32(0.5), s.Lighting().AmbientIntensity())
}

func TestDestroyCascades(t *testing.T) {
	s := New()
	a, b := newStub(), newStub()
	require.NoError(t, s.AddLayer("one", 0).AddObject(a))
	require.NoError(t, s.AddLayer("two", 1).AddObject(b))

	require.NoError(t, s.RemoveLayer("one"))
	assert.True(t, a.destroyed)
	assert.ErrorIs(t, s.RemoveLayer("one"), ErrUnknownLayer)

	s.Destroy()
	assert.True(t, b.destroyed)
	assert.Empty(t, s.Layers())
	assert.Empty(t, s.GenerateDrawSet())
}

func TestMeshObject(t *testing.T) {
	m := NewMesh(core.Cube(2), core.DefaultMaterial())
	m.Transform.Position = mgl32.Vec3{10, 0, 0}
	box, err := m.Bounds()
	require.NoError(t, err)
	assert.InDelta(t, 9.0, box[0].X(), 1e-5)
	assert.InDelta(t, 11.0, box[1].X(), 1e-5)

	m.OnUpdate = Spin(mgl32.Vec3{0, 1, 0}, 1)
	require.NoError(t, m.Update(0.5))
	assert.NotEqual(t, mgl32.QuatIdent(), m.Transform.Rotation)

	items, err := m.Render()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, m.ID(), items[0].Object)

	empty := NewMesh(nil, core.DefaultMaterial())
	_, err = empty.Bounds()
	assert.ErrorIs(t, err, ErrNoGeometry)
}
