package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"

	termbox "github.com/nsf/termbox-go"

	"github.com/annelo/envstream/internal/chunkindex"
	"github.com/annelo/envstream/internal/geom"
	"github.com/annelo/envstream/internal/layout"
	"github.com/annelo/envstream/internal/noisegeneration"
	"github.com/annelo/envstream/internal/pieces"
	"github.com/annelo/envstream/internal/sink"
	"github.com/annelo/envstream/internal/streaming"
)

var (
	seed       = flag.Int64("seed", 12345, "Сид мира")
	radius     = flag.Float64("radius", 4000, "Радиус загрузки")
	step       = flag.Float64("step", 500, "Шаг перемещения по стрелкам")
	themeMode  = flag.String("themes", "threshold", "Политика тем: threshold или noise")
	cellWidth  = flag.Int("cw", 4, "Ширина чанка в символах")
	cellHeight = flag.Int("ch", 2, "Высота чанка в символах")
)

// Позиция наблюдателя, которую двигают стрелки
type cursor struct {
	pos geom.Vec3
}

func (c *cursor) Position() (geom.Vec3, error) { return c.pos, nil }

var themeColors = [pieces.NumThemes]termbox.Attribute{
	pieces.Forest:   termbox.ColorGreen,
	pieces.Mountain: termbox.ColorWhite,
	pieces.Beach:    termbox.ColorYellow,
	pieces.Village:  termbox.ColorMagenta,
	pieces.Ruins:    termbox.ColorRed,
	pieces.Sky:      termbox.ColorCyan,
	pieces.Cave:     termbox.ColorBlue,
	pieces.Desert:   termbox.ColorYellow | termbox.AttrBold,
}

func main() {
	flag.Parse()

	cfg := streaming.DefaultConfig()
	cfg.LoadRadius = *radius
	gen, err := layout.New(pieces.DefaultRegistry(), cfg.ChunkSize, *seed, layout.DefaultParams())
	if err != nil {
		log.Fatalf("generator: %v", err)
	}

	var themes streaming.ThemePolicy = streaming.DefaultThemes()
	if *themeMode == "noise" {
		themes = streaming.NoiseThemes{Noise: noisegeneration.NewThemeNoise(*seed)}
	}

	cur := &cursor{}
	rec := sink.NewRecordingSink()
	ctrl, err := streaming.New(cfg, gen, cur, rec, streaming.WithThemePolicy(themes))
	if err != nil {
		log.Fatalf("controller: %v", err)
	}

	// Инициализируем termbox
	if err := termbox.Init(); err != nil {
		log.Fatalf("termbox init error: %v", err)
	}
	defer termbox.Close()

	ctx := context.Background()
	var last streaming.Report
	tick := func() {
		rep, err := ctrl.Tick(ctx)
		if err == nil {
			last = rep
		}
	}

	draw := func() {
		termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)
		width, height := termbox.Size()
		center := chunkindex.KeyOf(cur.pos, cfg.ChunkSize)
		cols := width / *cellWidth
		rows := (height - 2) / *cellHeight

		// Клетка = один чанк, камера центрирована на чанке наблюдателя
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				key := chunkindex.Key{X: center.X + int64(c-cols/2), Y: center.Y + int64(r-rows/2)}
				ch, fg, bg := '.', termbox.ColorDefault, termbox.ColorDefault
				if rec, ok := ctrl.Index().Get(key); ok {
					ch = []rune(rec.Theme.String())[0]
					fg = termbox.ColorBlack
					bg = themeColors[rec.Theme]
				}
				for dy := 0; dy < *cellHeight; dy++ {
					for dx := 0; dx < *cellWidth; dx++ {
						termbox.SetCell(c**cellWidth+dx, 2+r**cellHeight+dy, ch, fg, bg)
					}
				}
			}
		}

		// Наблюдатель внутри своего чанка
		local := cur.pos.Sub(center.Origin(cfg.ChunkSize))
		px := (cols/2)**cellWidth + int(math.Floor(local.X()/cfg.ChunkSize.X*float64(*cellWidth)))
		py := 2 + (rows/2)**cellHeight + int(math.Floor(local.Y()/cfg.ChunkSize.Y*float64(*cellHeight)))
		termbox.SetCell(px, py, '@', termbox.ColorRed|termbox.AttrBold, termbox.ColorBlack)

		// Заголовок
		st := ctrl.Stats()
		header := fmt.Sprintf("Pos=(%.0f,%.0f) Chunk=%s Resident=%d Tick=%d Loaded=%d Evicted=%d",
			cur.pos.X(), cur.pos.Y(), center, ctrl.Index().Len(), st.Ticks, st.Loaded, st.Evicted)
		info := fmt.Sprintf("Last tick: +%d -%d failures=%d took=%s  [arrows] move  [t] tick  [q] quit",
			len(last.Loaded), len(last.Evicted), last.SinkFailures, last.Duration)
		for i, r := range header {
			termbox.SetCell(i, 0, r, termbox.ColorYellow|termbox.AttrBold, termbox.ColorBlack)
		}
		for i, r := range info {
			if i >= width {
				break
			}
			termbox.SetCell(i, 1, r, termbox.ColorWhite, termbox.ColorBlack)
		}
		termbox.Flush()
	}

	tick()
	draw()

	// Основной цикл
	for {
		switch ev := termbox.PollEvent(); ev.Type {
		case termbox.EventKey:
			moved := true
			switch ev.Key {
			case termbox.KeyEsc, termbox.KeyCtrlC:
				return
			case termbox.KeyArrowLeft:
				cur.pos[0] -= *step
			case termbox.KeyArrowRight:
				cur.pos[0] += *step
			case termbox.KeyArrowUp:
				cur.pos[1] -= *step
			case termbox.KeyArrowDown:
				cur.pos[1] += *step
			default:
				moved = false
				if ev.Ch == 'q' {
					return
				}
				if ev.Ch == 't' {
					tick()
				}
			}
			if moved {
				tick()
			}
		case termbox.EventError:
			log.Fatalf("termbox event error: %v", ev.Err)
		}
		draw()
	}
}
