package layout

import (
	"math"
	"math/rand"

	"github.com/annelo/envstream/internal/pieces"
)

// decorationRule describes how one theme scatters its decorations: a count
// formula plus bounds for offset, height, tilt and scale. Spreads are
// fractions of the chunk footprint on each side of the origin.
type decorationRule struct {
	count              func(rng *rand.Rand, p Params, difficulty float64) int
	spread             float64
	minHeight          float64
	maxHeight          float64
	tilt               float64 // max pitch/roll in degrees
	minScale, maxScale float64
}

func fixedRange(lo, hi int) func(*rand.Rand, Params, float64) int {
	return func(rng *rand.Rand, _ Params, _ float64) int { return randInt(rng, lo, hi) }
}

func foliageScaled(factor float64) func(*rand.Rand, Params, float64) int {
	return func(_ *rand.Rand, p Params, _ float64) int {
		return int(math.Round(p.FoliageDensity * factor))
	}
}

var decorationRules = map[pieces.Theme]decorationRule{
	pieces.Forest: {
		count:    foliageScaled(20),
		spread:   0.5,
		minScale: 0.8, maxScale: 1.5,
	},
	pieces.Mountain: {
		count:     fixedRange(5, 12),
		spread:    0.3,
		maxHeight: 200,
		tilt:      15,
		minScale:  0.5, maxScale: 2.0,
	},
	pieces.Beach: {
		count:    fixedRange(3, 8),
		spread:   0.45,
		minScale: 0.7, maxScale: 1.3,
	},
	pieces.Village: {
		count:    fixedRange(4, 8),
		spread:   0.35,
		minScale: 0.9, maxScale: 1.1,
	},
	pieces.Ruins: {
		count:     fixedRange(6, 10),
		spread:    0.4,
		maxHeight: 50,
		tilt:      10,
		minScale:  0.6, maxScale: 1.4,
	},
	pieces.Sky: {
		// Floating islands get taller as difficulty rises.
		count: func(rng *rand.Rand, _ Params, difficulty float64) int {
			return randInt(rng, 4, 4+int(math.Round(3*difficulty)))
		},
		spread:    0.4,
		minHeight: 200,
		maxHeight: 1200,
		minScale:  1.0, maxScale: 2.5,
	},
	pieces.Cave: {
		count:    fixedRange(8, 14),
		spread:   0.45,
		tilt:     20,
		minScale: 0.5, maxScale: 1.8,
	},
	pieces.Desert: {
		count:    foliageScaled(6),
		spread:   0.5,
		minScale: 0.6, maxScale: 1.6,
	},
}
