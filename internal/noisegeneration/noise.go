package noisegeneration

import (
	"sync"

	"github.com/aquilax/go-perlin"

	"github.com/annelo/envstream/internal/pieces"
)

// NoiseMap представляет карту шума Перлина с несколькими октавами
type NoiseMap struct {
	perlin      *perlin.Perlin
	scale       float64 // Масштаб (чем меньше, тем более плавный ландшафт)
	persistence float64 // Множитель амплитуды между октавами
	lacunarity  float64 // Множитель частоты между октавами
}

// NewNoiseMap создает новую карту шума с заданными параметрами
func NewNoiseMap(seed int64, scale float64) *NoiseMap {
	return &NoiseMap{
		perlin:      perlin.NewPerlin(2.0, 2.0, 3, seed),
		scale:       scale,
		persistence: 0.5,
		lacunarity:  2.0,
	}
}

// GetOctave2D возвращает значение шума в диапазоне [-1, 1]
func (nm *NoiseMap) GetOctave2D(x, y float64, octaves int) float64 {
	scaledX := x * nm.scale
	scaledY := y * nm.scale

	amplitude := 1.0
	frequency := 1.0
	total := 0.0
	maxValue := 0.0

	for i := 0; i < octaves; i++ {
		total += nm.perlin.Noise2D(scaledX*frequency, scaledY*frequency) * amplitude
		maxValue += amplitude
		amplitude *= nm.persistence
		frequency *= nm.lacunarity
	}
	if maxValue == 0 {
		return 0
	}
	return total / maxValue
}

// GetOctaveNormalized2D возвращает значение шума в диапазоне [0, 1]
func (nm *NoiseMap) GetOctaveNormalized2D(x, y float64, octaves int) float64 {
	v := (nm.GetOctave2D(x, y, octaves) + 1) / 2
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Climate значения шума в точке
type Climate struct {
	Height      float64
	Moisture    float64
	Temperature float64
}

// ThemeNoise выбирает тему чанка по трём картам шума
type ThemeNoise struct {
	heightMap      *NoiseMap
	moistureMap    *NoiseMap
	temperatureMap *NoiseMap

	mu       sync.Mutex
	cache    map[[2]int64]Climate
	order    [][2]int64 // порядок вставки, для вытеснения
	capacity int
	hits     int
	misses   int
}

// NewThemeNoise создает генератор тем. Масштабы подобраны под мировые
// единицы чанков (2000 по умолчанию).
func NewThemeNoise(seed int64) *ThemeNoise {
	return &ThemeNoise{
		heightMap:      NewNoiseMap(seed, 0.00005),
		moistureMap:    NewNoiseMap(seed+1, 0.000025),
		temperatureMap: NewNoiseMap(seed+2, 0.00004),
		cache:          make(map[[2]int64]Climate),
		capacity:       4096,
	}
}

// ClimateAt возвращает значения шума в мировой точке. Результат кешируется
// по целой точке, так как опрашиваются только начала чанков.
func (tn *ThemeNoise) ClimateAt(x, y float64) Climate {
	key := [2]int64{int64(x), int64(y)}

	tn.mu.Lock()
	if c, ok := tn.cache[key]; ok {
		tn.hits++
		tn.mu.Unlock()
		return c
	}
	tn.misses++
	tn.mu.Unlock()

	c := Climate{
		Height:      tn.heightMap.GetOctaveNormalized2D(x, y, 4),
		Moisture:    tn.moistureMap.GetOctaveNormalized2D(x, y, 2),
		Temperature: tn.temperatureMap.GetOctaveNormalized2D(x, y, 3),
	}

	tn.mu.Lock()
	defer tn.mu.Unlock()
	if _, ok := tn.cache[key]; !ok {
		if len(tn.order) >= tn.capacity {
			delete(tn.cache, tn.order[0])
			tn.order = tn.order[1:]
		}
		tn.order = append(tn.order, key)
	}
	tn.cache[key] = c
	return c
}

// ThemeAt возвращает тему для мировой точки
func (tn *ThemeNoise) ThemeAt(x, y float64) pieces.Theme {
	return ThemeFor(tn.ClimateAt(x, y))
}

// CacheStats возвращает попадания и промахи кеша
func (tn *ThemeNoise) CacheStats() (hits, misses int) {
	tn.mu.Lock()
	defer tn.mu.Unlock()
	return tn.hits, tn.misses
}

// ThemeFor определяет тему по высоте, влажности и температуре
func ThemeFor(c Climate) pieces.Theme {
	if c.Height < 0.3 {
		return pieces.Beach
	}
	if c.Height > 0.8 {
		if c.Temperature < 0.3 {
			return pieces.Sky
		}
		return pieces.Mountain
	}
	if c.Height > 0.7 {
		return pieces.Cave
	}
	if c.Temperature > 0.7 && c.Moisture < 0.3 {
		return pieces.Desert
	}
	if c.Moisture > 0.6 {
		return pieces.Forest
	}
	if c.Moisture < 0.4 {
		return pieces.Ruins
	}
	return pieces.Village
}
