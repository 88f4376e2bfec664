package plugin

import (
	"fmt"
	"sort"
	"strings"

	"github.com/annelo/envstream/internal/chunkindex"
	"github.com/annelo/envstream/internal/pieces"
	"github.com/annelo/envstream/internal/streaming"
)

// StreamingHooks adapts registered hook handlers to the controller's
// callbacks and counts streamed chunks in expvar. Handlers are looked up on
// every call, so plugins reloaded later are picked up.
func StreamingHooks(reg PluginRegistry) streaming.Hooks {
	return streaming.Hooks{
		BeforeGenerate: func(key chunkindex.Key, theme pieces.Theme, difficulty float64) {
			chunksGenerated.Add(1)
			for _, h := range reg.Hooks(HookBeforeChunkGenerate) {
				h(key, theme, difficulty)
			}
		},
		AfterLoad: func(rec *chunkindex.Record) {
			chunksLoaded.Add(1)
			for _, h := range reg.Hooks(HookAfterChunkLoad) {
				h(rec)
			}
		},
		AfterEvict: func(key chunkindex.Key) {
			chunksEvicted.Add(1)
			for _, h := range reg.Hooks(HookAfterChunkEvict) {
				h(key)
			}
		},
	}
}

// Help renders registered commands sorted by name.
func Help(reg PluginRegistry) string {
	cmds := append([]CommandRegistration(nil), reg.Commands()...)
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	var b strings.Builder
	for _, c := range cmds {
		fmt.Fprintf(&b, "  %-12s %s\n", c.Name, c.Description)
	}
	return b.String()
}

// Dispatch runs the command named by the first word of line.
func Dispatch(reg PluginRegistry, line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	for _, c := range reg.Commands() {
		if c.Name == fields[0] {
			return c.Handler(fields[1:])
		}
	}
	return "", fmt.Errorf("unknown command %q", fields[0])
}
