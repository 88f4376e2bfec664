package main

import (
	"fmt"
	"log"
	"sync/atomic"

	"github.com/annelo/envstream/internal/chunkindex"
	"github.com/annelo/envstream/internal/geom"
	"github.com/annelo/envstream/internal/pieces"
	"github.com/annelo/envstream/internal/plugin"
)

// ringThemes alternates themes in rings around the world origin.
type ringThemes struct {
	width float64
	ring  []pieces.Theme
}

func (r ringThemes) ThemeFor(origin geom.Vec3) pieces.Theme {
	d := geom.Dist2D(origin, geom.Vec3{})
	return r.ring[int(d/r.width)%len(r.ring)]
}

// Register is invoked by PluginManager to register policies, hooks and commands
func Register(reg plugin.PluginRegistry) {
	reg.RegisterThemePolicy("rings", ringThemes{
		width: 8000,
		ring:  []pieces.Theme{pieces.Forest, pieces.Village, pieces.Mountain},
	})

	// Hooks run on controller worker goroutines.
	var loaded atomic.Int64
	reg.RegisterHook(plugin.HookAfterChunkLoad, func(args ...interface{}) {
		if len(args) == 1 {
			if rec, ok := args[0].(*chunkindex.Record); ok {
				loaded.Add(1)
				log.Printf("[SamplePlugin] chunk %s loaded: theme=%s pieces=%d", rec.Key, rec.Theme, len(rec.Placements))
			}
		}
	})

	// Sample plugin configuration structure
	type SamplePluginConfig struct {
		Greeting string `yaml:"greeting"`
		Value    int    `yaml:"value"`
	}
	reg.RegisterPluginConfig("sampleplugin", &SamplePluginConfig{})

	reg.RegisterCommand("sampleinfo", "Show sample plugin info", func(args []string) (string, error) {
		cfg := reg.PluginConfig("sampleplugin").(*SamplePluginConfig)
		return fmt.Sprintf("Greeting: %s, Value: %d, Loaded: %d\n", cfg.Greeting, cfg.Value, loaded.Load()), nil
	})
}

func main() {}
