package service

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/annelo/envstream/internal/chunkindex"
	"github.com/annelo/envstream/internal/gameloop"
	"github.com/annelo/envstream/internal/geom"
	"github.com/annelo/envstream/internal/pieces"
	"github.com/annelo/envstream/internal/plugin"
)

// RegisterCommands добавляет админ-команды стриминга в реестр.
func (s *StreamService) RegisterCommands(reg plugin.PluginRegistry) {
	reg.RegisterCommand("status", "Show streaming status", s.cmdStatus)
	reg.RegisterCommand("chunks", "List resident chunks", s.cmdChunks)
	reg.RegisterCommand("chunk", "Show one chunk: chunk <x:y>", s.cmdChunk)
	reg.RegisterCommand("teleport", "Move the runner: teleport <x> <y>", s.cmdTeleport)
	reg.RegisterCommand("dash", "Trigger a runner dash", s.cmdDash)
	reg.RegisterCommand("budget", "Show instance usage per piece type", s.cmdBudget)
}

func (s *StreamService) cmdStatus(args []string) (string, error) {
	st := s.controller.Stats()
	pos, _ := s.controller.LastPosition()
	rep := s.LastReport()
	s.mu.RLock()
	up := since(s.startedAt)
	s.mu.RUnlock()
	return fmt.Sprintf(
		"uptime=%s ticks=%d resident=%d loaded=%d evicted=%d sink_failures=%d fallbacks=%d\nposition=(%.0f, %.0f) center=%s last_tick=%s\n",
		up, st.Ticks, s.controller.Index().Len(), st.Loaded, st.Evicted, st.SinkFailures, st.Fallbacks,
		pos.X(), pos.Y(), rep.Center, rep.Duration,
	), nil
}

func (s *StreamService) cmdChunks(args []string) (string, error) {
	var b strings.Builder
	for _, rec := range s.controller.Snapshot() {
		fmt.Fprintf(&b, "%-8s %-9s d=%.2f pieces=%d\n", rec.Key, rec.Theme, rec.Difficulty, len(rec.Placements))
	}
	return b.String(), nil
}

func (s *StreamService) cmdChunk(args []string) (string, error) {
	if len(args) != 1 {
		return "Usage: chunk <x:y>\n", nil
	}
	key, err := chunkindex.ParseKey(args[0])
	if err != nil {
		return "", err
	}
	rec, ok := s.controller.Index().Get(key)
	if !ok {
		return fmt.Sprintf("chunk %s not loaded\n", key), nil
	}
	counts := map[pieces.PieceType]int{}
	for _, pl := range rec.Placements {
		counts[pl.Type]++
	}
	types := make([]pieces.PieceType, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	var b strings.Builder
	fmt.Fprintf(&b, "chunk %s theme=%s difficulty=%.2f loaded_at=%s\n", key, rec.Theme, rec.Difficulty, rec.LoadedAt.Format("15:04:05"))
	for _, t := range types {
		fmt.Fprintf(&b, "  %-10s %d\n", t, counts[t])
	}
	return b.String(), nil
}

func (s *StreamService) cmdTeleport(args []string) (string, error) {
	if len(args) != 2 {
		return "Usage: teleport <x> <y>\n", nil
	}
	x, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return "", err
	}
	y, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return "", err
	}
	if err := s.players.UpdatePlayerPosition(s.cfg.Runner.ID, geom.Vec3{x, y, 0}); err != nil {
		return "", err
	}
	return fmt.Sprintf("runner at (%.0f, %.0f)\n", x, y), nil
}

func (s *StreamService) cmdDash(args []string) (string, error) {
	ok, err := gameloop.Dash(s.players, s.cfg.Runner.ID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "dash not ready\n", nil
	}
	return "dash!\n", nil
}

func (s *StreamService) cmdBudget(args []string) (string, error) {
	var b strings.Builder
	for i := 0; i < pieces.NumPieceTypes; i++ {
		t := pieces.PieceType(i)
		desc, ok := s.pieces.Descriptor(t)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%-10s %4d / %d\n", t, s.sink.InUse(t), desc.MaxInstances)
	}
	for c, n := range s.sink.ClassCounts() {
		fmt.Fprintf(&b, "class %-10s %d\n", c, n)
	}
	return b.String(), nil
}
