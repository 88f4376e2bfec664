// Package layout deterministically turns a chunk key, theme and difficulty
// into an ordered list of piece placements.
package layout

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/rand"

	"github.com/annelo/envstream/internal/chunkindex"
	"github.com/annelo/envstream/internal/errs"
	"github.com/annelo/envstream/internal/geom"
	"github.com/annelo/envstream/internal/pieces"
)

// Params are the density and variation constants of the generator.
type Params struct {
	GroundMin         int     `yaml:"ground_min" validate:"gte=0"`
	GroundMax         int     `yaml:"ground_max" validate:"gtefield=GroundMin"`
	GroundSpread      float64 `yaml:"ground_spread" validate:"gte=0,lte=0.5"`
	GroundScaleJitter float64 `yaml:"ground_scale_jitter" validate:"gte=0,lt=1"`

	PlatformDensity   float64 `yaml:"platform_density" validate:"gte=0"`
	PlatformSpread    float64 `yaml:"platform_spread" validate:"gte=0,lte=0.5"`
	PlatformMinHeight float64 `yaml:"platform_min_height" validate:"gte=0"`
	VerticalVariation float64 `yaml:"vertical_variation" validate:"gte=0"`

	FoliageDensity float64 `yaml:"foliage_density" validate:"gte=0"`

	// WeightedSelection picks piece kinds by SpawnWeight instead of uniformly.
	WeightedSelection bool `yaml:"weighted_selection"`
	// FallbackTheme supplies the piece set when a theme has none.
	FallbackTheme pieces.Theme `yaml:"fallback_theme"`
}

// DefaultParams returns the tuning the game shipped with.
func DefaultParams() Params {
	return Params{
		GroundMin:         8,
		GroundMax:         15,
		GroundSpread:      0.4,
		GroundScaleJitter: 0.2,
		PlatformDensity:   0.3,
		PlatformSpread:    0.3,
		PlatformMinHeight: 100,
		VerticalVariation: 800,
		FoliageDensity:    0.5,
		FallbackTheme:     pieces.Forest,
	}
}

// Result is the output of one Generate call.
type Result struct {
	Placements []pieces.Placement
	// Warning is set when the theme could not be served and a fallback
	// piece set was used. The placements are still valid.
	Warning *errs.GenerationError
}

// Generator produces chunk layouts. It holds no mutable state and is safe
// for concurrent use.
type Generator struct {
	reg    *pieces.Registry
	size   chunkindex.Size
	seed   int64
	params Params
}

// New validates the inputs and returns a generator.
func New(reg *pieces.Registry, size chunkindex.Size, globalSeed int64, p Params) (*Generator, error) {
	if err := size.Validate(); err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, errs.Config("pieces", "registry is required")
	}
	if p.GroundMax < p.GroundMin || p.GroundMin < 0 {
		return nil, errs.Config("layout.ground", "ground range is empty")
	}
	if !p.FallbackTheme.Valid() {
		return nil, errs.Config("layout.fallback_theme", "unknown theme")
	}
	return &Generator{reg: reg, size: size, seed: globalSeed, params: p}, nil
}

// Seed derives the per-chunk random seed from the global seed and chunk key.
func Seed(globalSeed int64, x, y int64) int64 {
	h := fnv.New64a()
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(globalSeed))
	binary.LittleEndian.PutUint64(buf[8:], uint64(x))
	binary.LittleEndian.PutUint64(buf[16:], uint64(y))
	_, _ = h.Write(buf[:])
	return int64(h.Sum64())
}

// Generate builds the layout for one chunk. Calls with the same arguments on
// generators with the same seed and params return identical placements.
func (g *Generator) Generate(key chunkindex.Key, theme pieces.Theme, difficulty float64) Result {
	rng := rand.New(rand.NewSource(Seed(g.seed, key.X, key.Y)))
	origin := key.Origin(g.size)
	p := g.params

	transforms := make([]geom.Transform, 0, p.GroundMax+16)

	// Ground
	groundCount := randInt(rng, p.GroundMin, p.GroundMax)
	for i := 0; i < groundCount; i++ {
		offset := geom.Vec3{
			randRange(rng, -g.size.X*p.GroundSpread, g.size.X*p.GroundSpread),
			randRange(rng, -g.size.Y*p.GroundSpread, g.size.Y*p.GroundSpread),
			0,
		}
		tr := geom.Identity()
		tr.Translation = origin.Add(offset)
		tr.Rotation = geom.RotationFromEuler(0, randRange(rng, 0, 360), 0)
		tr.Scale = geom.UniformScale(1 + randRange(rng, -p.GroundScaleJitter, p.GroundScaleJitter))
		transforms = append(transforms, tr)
	}

	// Platforms, count grows with difficulty
	platformCount := PlatformCount(p.PlatformDensity, difficulty)
	for i := 0; i < platformCount; i++ {
		offset := geom.Vec3{
			randRange(rng, -g.size.X*p.PlatformSpread, g.size.X*p.PlatformSpread),
			randRange(rng, -g.size.Y*p.PlatformSpread, g.size.Y*p.PlatformSpread),
			randRange(rng, p.PlatformMinHeight, p.VerticalVariation*difficulty),
		}
		tr := geom.Identity()
		tr.Translation = origin.Add(offset)
		transforms = append(transforms, tr)
	}

	// Theme decorations
	rule, ok := decorationRules[theme]
	if !ok {
		rule = decorationRules[p.FallbackTheme]
	}
	decoCount := rule.count(rng, p, difficulty)
	for i := 0; i < decoCount; i++ {
		offset := geom.Vec3{
			randRange(rng, -g.size.X*rule.spread, g.size.X*rule.spread),
			randRange(rng, -g.size.Y*rule.spread, g.size.Y*rule.spread),
			randRange(rng, rule.minHeight, rule.maxHeight),
		}
		var pitch, roll float64
		if rule.tilt > 0 {
			pitch = randRange(rng, -rule.tilt, rule.tilt)
			roll = randRange(rng, -rule.tilt, rule.tilt)
		}
		yaw := randRange(rng, 0, 360)
		tr := geom.Identity()
		tr.Translation = origin.Add(offset)
		tr.Rotation = geom.RotationFromEuler(pitch, yaw, roll)
		tr.Scale = geom.UniformScale(randRange(rng, rule.minScale, rule.maxScale))
		transforms = append(transforms, tr)
	}

	// Piece type is picked independently of the transform's role.
	set, warning := g.pieceSet(theme)
	out := make([]pieces.Placement, len(transforms))
	for i, tr := range transforms {
		out[i] = pieces.Placement{Type: g.pick(rng, set), Transform: tr}
	}
	return Result{Placements: out, Warning: warning}
}

// PlatformCount is round(density * difficulty * 10).
func PlatformCount(density, difficulty float64) int {
	n := int(math.Round(density * difficulty * 10))
	if n < 0 {
		return 0
	}
	return n
}

func (g *Generator) pieceSet(theme pieces.Theme) ([]pieces.PieceType, *errs.GenerationError) {
	if set := g.reg.ThemeSet(theme); len(set) > 0 {
		return set, nil
	}
	warning := &errs.GenerationError{Theme: theme.String(), Reason: "no piece set, using " + g.params.FallbackTheme.String()}
	if set := g.reg.ThemeSet(g.params.FallbackTheme); len(set) > 0 {
		return set, warning
	}
	warning.Reason = "no piece set, using ground"
	return []pieces.PieceType{pieces.Ground}, warning
}

func (g *Generator) pick(rng *rand.Rand, set []pieces.PieceType) pieces.PieceType {
	if len(set) == 1 {
		return set[0]
	}
	if !g.params.WeightedSelection {
		return set[rng.Intn(len(set))]
	}
	total := 0.0
	for _, t := range set {
		d, _ := g.reg.Descriptor(t)
		total += d.SpawnWeight
	}
	x := rng.Float64() * total
	for _, t := range set {
		d, _ := g.reg.Descriptor(t)
		if x < d.SpawnWeight {
			return t
		}
		x -= d.SpawnWeight
	}
	return set[len(set)-1]
}

func randRange(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// randInt returns an integer in [lo, hi].
func randInt(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.Intn(hi-lo+1)
}
