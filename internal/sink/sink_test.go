package sink_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annelo/envstream/internal/chunkindex"
	"github.com/annelo/envstream/internal/geom"
	"github.com/annelo/envstream/internal/pieces"
	"github.com/annelo/envstream/internal/sink"
)

func placements(t pieces.PieceType, n int) []pieces.Placement {
	out := make([]pieces.Placement, n)
	for i := range out {
		tr := geom.Identity()
		tr.Translation = geom.Vec3{float64(i), 0, 0}
		out[i] = pieces.Placement{Type: t, Transform: tr}
	}
	return out
}

func TestObjectPool_Accounting(t *testing.T) {
	p := sink.NewObjectPool(pieces.Building, 2)
	assert.Equal(t, 0, p.Active())
	assert.Equal(t, 2, p.Inactive())

	a := p.Acquire(geom.Identity())
	b := p.Acquire(geom.Identity())
	c := p.Acquire(geom.Identity())
	assert.True(t, a.Active)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 3, p.Active())
	assert.Equal(t, 0, p.Inactive())
	assert.Equal(t, 3, p.Created())

	assert.True(t, p.Release(c.ID))
	assert.False(t, p.Release(c.ID))
	assert.False(t, c.Active)
	assert.Equal(t, -10000.0, c.Transform.Translation.Z())
	assert.Equal(t, 2, p.Active())
	assert.Equal(t, 1, p.Inactive())

	// Reuses the parked object
	d := p.Acquire(geom.Identity())
	assert.Equal(t, c.ID, d.ID)
	assert.Equal(t, 3, p.Created())

	p.Expand(5)
	assert.Equal(t, 5, p.Inactive())
	p.Expand(-1)
	assert.Equal(t, 5, p.Inactive())

	p.Clear()
	assert.Equal(t, 0, p.Active())
	assert.Equal(t, 0, p.Inactive())
}

func TestInstancedSink_EnforcesCaps(t *testing.T) {
	reg := pieces.DefaultRegistry() // Ground cap 200
	s := sink.NewInstancedSink(reg, 0, nil)

	require.NoError(t, s.Materialize(chunkindex.Key{X: 0}, placements(pieces.Ground, 150), true))
	assert.Equal(t, 150, s.InUse(pieces.Ground))

	err := s.Materialize(chunkindex.Key{X: 1}, placements(pieces.Ground, 60), true)
	require.ErrorIs(t, err, sink.ErrCapacity)
	assert.Equal(t, 150, s.InUse(pieces.Ground))
	assert.Equal(t, 1, s.Chunks())

	require.NoError(t, s.Remove(chunkindex.Key{X: 0}))
	assert.Equal(t, 0, s.InUse(pieces.Ground))
	require.NoError(t, s.Materialize(chunkindex.Key{X: 1}, placements(pieces.Ground, 60), true))

	// Idempotent removal
	require.NoError(t, s.Remove(chunkindex.Key{X: 99}))
}

func TestInstancedSink_RejectsDoubleMaterialize(t *testing.T) {
	s := sink.NewInstancedSink(pieces.DefaultRegistry(), 0, nil)
	require.NoError(t, s.Materialize(chunkindex.Key{}, placements(pieces.Tree, 3), true))
	err := s.Materialize(chunkindex.Key{}, placements(pieces.Tree, 3), true)
	assert.ErrorIs(t, err, sink.ErrAlreadyMaterialized)
	assert.Equal(t, 3, s.InUse(pieces.Tree))
}

func TestInstancedSink_PoolsNonInstanceable(t *testing.T) {
	s := sink.NewInstancedSink(pieces.DefaultRegistry(), 4, nil)
	mixed := append(placements(pieces.Building, 6), placements(pieces.Rock, 2)...)

	require.NoError(t, s.Materialize(chunkindex.Key{Y: 3}, mixed, true))
	assert.Equal(t, 6, s.Pool(pieces.Building).Active())
	assert.Equal(t, 0, s.Pool(pieces.Building).Inactive())
	assert.Equal(t, 2, s.InUse(pieces.Rock))

	counts := s.ClassCounts()
	assert.Equal(t, 6, counts[pieces.ClassStructure])
	assert.Equal(t, 2, counts[pieces.ClassTerrain]+counts[pieces.ClassProp]+counts[pieces.ClassVegetation])

	require.NoError(t, s.Remove(chunkindex.Key{Y: 3}))
	assert.Equal(t, 0, s.Pool(pieces.Building).Active())
	assert.Equal(t, 6, s.Pool(pieces.Building).Inactive())
}

func TestInstancedSink_InstancingOffUsesPools(t *testing.T) {
	s := sink.NewInstancedSink(pieces.DefaultRegistry(), 0, nil)
	require.NoError(t, s.Materialize(chunkindex.Key{}, placements(pieces.Ground, 300), false))
	assert.Equal(t, 0, s.InUse(pieces.Ground))
	assert.Equal(t, 300, s.Pool(pieces.Ground).Active())

	s.Reset()
	assert.Equal(t, 0, s.Chunks())
	assert.Equal(t, 0, s.Pool(pieces.Ground).Active())
}

func TestRecordingSink(t *testing.T) {
	s := sink.NewRecordingSink()
	k := chunkindex.Key{X: 2, Y: -1}
	s.FailOn(k, true)
	assert.ErrorIs(t, s.Materialize(k, nil, true), sink.ErrInjected)

	s.FailOn(k, false)
	require.NoError(t, s.Materialize(k, placements(pieces.Rock, 1), true))
	require.NoError(t, s.Materialize(chunkindex.Key{}, nil, true))
	assert.Equal(t, []chunkindex.Key{{}, k}, s.Keys())

	pl, ok := s.Placements(k)
	require.True(t, ok)
	assert.Len(t, pl, 1)

	require.NoError(t, s.Remove(k))
	require.NoError(t, s.Remove(k))
	loads, removals := s.Counts()
	assert.Equal(t, 2, loads)
	assert.Equal(t, 1, removals)
}
