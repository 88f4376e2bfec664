package streaming

import (
	"math"

	"github.com/annelo/envstream/internal/geom"
	"github.com/annelo/envstream/internal/noisegeneration"
	"github.com/annelo/envstream/internal/pieces"
)

// ThemePolicy chooses the theme of a new chunk from its origin.
type ThemePolicy interface {
	ThemeFor(origin geom.Vec3) pieces.Theme
}

// DifficultyPolicy chooses the difficulty of a new chunk from its origin.
type DifficultyPolicy interface {
	DifficultyFor(origin geom.Vec3) float64
}

// ThresholdThemes picks Far when |origin.X| exceeds Threshold, Near otherwise.
type ThresholdThemes struct {
	Threshold float64
	Near      pieces.Theme
	Far       pieces.Theme
}

// DefaultThemes switches from forest to mountain 4000 units from the origin.
func DefaultThemes() ThresholdThemes {
	return ThresholdThemes{Threshold: 4000, Near: pieces.Forest, Far: pieces.Mountain}
}

func (p ThresholdThemes) ThemeFor(origin geom.Vec3) pieces.Theme {
	if math.Abs(origin.X()) > p.Threshold {
		return p.Far
	}
	return p.Near
}

// NoiseThemes picks themes from perlin climate maps.
type NoiseThemes struct {
	Noise *noisegeneration.ThemeNoise
}

func (p NoiseThemes) ThemeFor(origin geom.Vec3) pieces.Theme {
	return p.Noise.ThemeAt(origin.X(), origin.Y())
}

// DistanceDifficulty scales with planar distance from the world origin:
// clamp(dist/Divisor, Min, Max).
type DistanceDifficulty struct {
	Divisor float64
	Min     float64
	Max     float64
}

// DefaultDifficulty is clamp(dist/2000, 1, 3).
func DefaultDifficulty() DistanceDifficulty {
	return DistanceDifficulty{Divisor: 2000, Min: 1, Max: 3}
}

func (p DistanceDifficulty) DifficultyFor(origin geom.Vec3) float64 {
	d := geom.Dist2D(origin, geom.Vec3{})
	if p.Divisor > 0 {
		d /= p.Divisor
	}
	return math.Min(math.Max(d, p.Min), p.Max)
}
