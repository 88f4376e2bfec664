package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/annelo/envstream/internal/chunkindex"
	"github.com/annelo/envstream/internal/geom"
	"github.com/annelo/envstream/internal/layout"
	"github.com/annelo/envstream/internal/noisegeneration"
	"github.com/annelo/envstream/internal/pieces"
	"github.com/annelo/envstream/internal/streaming"
)

var (
	seed   = flag.Int64("seed", 0, "Сид (0 = текущее время)")
	width  = flag.Int("w", 40, "Ширина карты в чанках")
	height = flag.Int("h", 20, "Высота карты в чанках")
	chunkX = flag.Int64("cx", 0, "Чанк для детального вывода, X")
	chunkY = flag.Int64("cy", 0, "Чанк для детального вывода, Y")
)

var themeChars = [pieces.NumThemes]rune{
	pieces.Forest:   'f',
	pieces.Mountain: '^',
	pieces.Beach:    ',',
	pieces.Village:  'v',
	pieces.Ruins:    'r',
	pieces.Sky:      '*',
	pieces.Cave:     'o',
	pieces.Desert:   '.',
}

func main() {
	flag.Parse()
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	fmt.Printf("Seed: %d\n", *seed)

	size := chunkindex.DefaultSize
	noise := noisegeneration.NewThemeNoise(*seed)

	// Карта тем по шуму
	fmt.Println("\nКарта тем (noise):")
	visualize(func(k chunkindex.Key) pieces.Theme {
		o := k.Origin(size)
		return noise.ThemeAt(o.X(), o.Y())
	})

	// Карта тем по порогу
	fmt.Println("\nКарта тем (threshold):")
	th := streaming.DefaultThemes()
	visualize(func(k chunkindex.Key) pieces.Theme { return th.ThemeFor(k.Origin(size)) })

	// Детальный вывод одного чанка
	gen, err := layout.New(pieces.DefaultRegistry(), size, *seed, layout.DefaultParams())
	if err != nil {
		log.Fatalf("generator: %v", err)
	}
	key := chunkindex.Key{X: *chunkX, Y: *chunkY}
	origin := key.Origin(size)
	theme := noise.ThemeAt(origin.X(), origin.Y())
	diff := streaming.DefaultDifficulty().DifficultyFor(origin)
	res := gen.Generate(key, theme, diff)
	fmt.Printf("\nЧанк %s: тема=%s сложность=%.2f деталей=%d\n", key, theme, diff, len(res.Placements))
	if res.Warning != nil {
		fmt.Printf("  warning: %v\n", res.Warning)
	}
	plot(res.Placements, origin, size)
}

func visualize(themeAt func(chunkindex.Key) pieces.Theme) {
	for y := 0; y < *height; y++ {
		for x := 0; x < *width; x++ {
			k := chunkindex.Key{X: int64(x - *width/2), Y: int64(y - *height/2)}
			fmt.Print(string(themeChars[themeAt(k)]))
		}
		fmt.Println()
	}
}

var pieceChars = [pieces.NumPieceTypes]rune{
	pieces.Ground:     '_',
	pieces.Platform:   '=',
	pieces.Wall:       '|',
	pieces.Pillar:     'I',
	pieces.Stairs:     '/',
	pieces.Bridge:     'H',
	pieces.Tree:       'T',
	pieces.Rock:       'o',
	pieces.Foliage:    '"',
	pieces.Water:      '~',
	pieces.Building:   'B',
	pieces.Decoration: '+',
}

// plot рисует вид сверху на чанк. Поверх земли рисуется последняя деталь в клетке.
func plot(placements []pieces.Placement, origin geom.Vec3, size chunkindex.Size) {
	counts := make(map[pieces.PieceType]int)
	grid := make([][]rune, *height)
	for y := range grid {
		grid[y] = make([]rune, *width)
		for x := range grid[y] {
			grid[y][x] = ' '
		}
	}
	for _, pl := range placements {
		counts[pl.Type]++
		lx := (pl.Transform.Translation.X() - origin.X()) / size.X
		ly := (pl.Transform.Translation.Y() - origin.Y()) / size.Y
		cx := int(math.Floor(lx * float64(*width)))
		cy := int(math.Floor(ly * float64(*height)))
		if cx < 0 || cy < 0 || cx >= *width || cy >= *height {
			continue
		}
		if pl.Type == pieces.Ground && grid[cy][cx] != ' ' {
			continue
		}
		grid[cy][cx] = pieceChars[pl.Type]
	}
	fmt.Println("+" + strings.Repeat("-", *width) + "+")
	for _, row := range grid {
		fmt.Println("|" + string(row) + "|")
	}
	fmt.Println("+" + strings.Repeat("-", *width) + "+")
	for t := 0; t < pieces.NumPieceTypes; t++ {
		if n := counts[pieces.PieceType(t)]; n > 0 {
			fmt.Printf("  %c %-10s %d\n", pieceChars[t], pieces.PieceType(t), n)
		}
	}
}
