package geom_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/annelo/envstream/internal/geom"
)

func TestDist2D_IgnoresHeight(t *testing.T) {
	a := geom.Vec3{0, 0, 0}
	b := geom.Vec3{3, 4, 1000}
	assert.InDelta(t, 5.0, geom.Dist2D(a, b), 1e-12)
}

func TestRotationFromEuler_YawTurnsAroundZ(t *testing.T) {
	q := geom.RotationFromEuler(0, 90, 0)
	v := q.Rotate(geom.Vec3{1, 0, 0})
	assert.InDelta(t, 0.0, v.X(), 1e-9)
	assert.InDelta(t, 1.0, v.Y(), 1e-9)
	assert.InDelta(t, 0.0, v.Z(), 1e-9)
}

func TestTransform_Apply(t *testing.T) {
	tr := geom.Identity()
	tr.Translation = geom.Vec3{100, 200, 0}
	tr.Scale = geom.UniformScale(2)

	got := tr.Apply(geom.Vec3{1, 1, 1})
	assert.InDelta(t, 102.0, got.X(), 1e-9)
	assert.InDelta(t, 202.0, got.Y(), 1e-9)
	assert.InDelta(t, 2.0, got.Z(), 1e-9)
	assert.True(t, tr.Equal(tr))
	assert.False(t, tr.Equal(geom.Identity()))
}
