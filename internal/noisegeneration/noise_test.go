package noisegeneration_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/annelo/envstream/internal/noisegeneration"
	"github.com/annelo/envstream/internal/pieces"
)

func TestThemeNoise_DeterministicAndCached(t *testing.T) {
	a := noisegeneration.NewThemeNoise(42)
	b := noisegeneration.NewThemeNoise(42)

	for x := -10; x <= 10; x++ {
		wx, wy := float64(x)*2000, float64(-x)*4000
		assert.Equal(t, a.ThemeAt(wx, wy), b.ThemeAt(wx, wy))
	}

	a.ThemeAt(0, 0)
	a.ThemeAt(0, 0)
	hits, misses := a.CacheStats()
	assert.GreaterOrEqual(t, hits, 2)
	assert.Equal(t, 21, misses)
}

func TestThemeNoise_ValuesInRange(t *testing.T) {
	tn := noisegeneration.NewThemeNoise(7)
	for x := 0; x < 50; x++ {
		c := tn.ClimateAt(float64(x)*1234.5, float64(x)*-987.0)
		for _, v := range []float64{c.Height, c.Moisture, c.Temperature} {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestThemeFor(t *testing.T) {
	cases := []struct {
		c    noisegeneration.Climate
		want pieces.Theme
	}{
		{noisegeneration.Climate{Height: 0.1}, pieces.Beach},
		{noisegeneration.Climate{Height: 0.9, Temperature: 0.5}, pieces.Mountain},
		{noisegeneration.Climate{Height: 0.9, Temperature: 0.1}, pieces.Sky},
		{noisegeneration.Climate{Height: 0.75}, pieces.Cave},
		{noisegeneration.Climate{Height: 0.5, Temperature: 0.8, Moisture: 0.1}, pieces.Desert},
		{noisegeneration.Climate{Height: 0.5, Moisture: 0.7}, pieces.Forest},
		{noisegeneration.Climate{Height: 0.5, Moisture: 0.35}, pieces.Ruins},
		{noisegeneration.Climate{Height: 0.5, Moisture: 0.5}, pieces.Village},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, noisegeneration.ThemeFor(tc.c), "%+v", tc.c)
	}
}
