// Package geom содержит минимальную геометрию для размещения кусков окружения.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3 мировая координата (X, Y: плоскость земли, Z: высота)
type Vec3 = mgl64.Vec3

// Transform описывает жёсткое преобразование с неравномерным масштабом
type Transform struct {
	Translation Vec3
	Rotation    mgl64.Quat
	Scale       Vec3
}

// Identity возвращает нулевой сдвиг, единичный поворот и масштаб 1
func Identity() Transform {
	return Transform{
		Rotation: mgl64.QuatIdent(),
		Scale:    Vec3{1, 1, 1},
	}
}

// RotationFromEuler строит кватернион из углов в градусах.
// Yaw вращает вокруг Z, pitch вокруг Y, roll вокруг X.
func RotationFromEuler(pitch, yaw, roll float64) mgl64.Quat {
	return mgl64.AnglesToQuat(
		mgl64.DegToRad(yaw),
		mgl64.DegToRad(pitch),
		mgl64.DegToRad(roll),
		mgl64.ZYX,
	)
}

// UniformScale возвращает вектор масштаба с одинаковыми компонентами
func UniformScale(s float64) Vec3 {
	return Vec3{s, s, s}
}

// Dist2D возвращает расстояние между точками в плоскости XY
func Dist2D(a, b Vec3) float64 {
	return math.Hypot(a.X()-b.X(), a.Y()-b.Y())
}

// Apply переводит локальную точку в мировую систему координат
func (t Transform) Apply(local Vec3) Vec3 {
	scaled := Vec3{local.X() * t.Scale.X(), local.Y() * t.Scale.Y(), local.Z() * t.Scale.Z()}
	return t.Rotation.Rotate(scaled).Add(t.Translation)
}

// Equal сравнивает преобразования побитово
func (t Transform) Equal(o Transform) bool {
	return t.Translation == o.Translation &&
		t.Rotation.W == o.Rotation.W &&
		t.Rotation.V == o.Rotation.V &&
		t.Scale == o.Scale
}
