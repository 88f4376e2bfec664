package plugin

import (
	"errors"
	"expvar"
	"fmt"
	"os"
	"path/filepath"
	pluginpkg "plugin"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// PluginAPIVersion must match PluginMeta.Version for a plugin to load.
const PluginAPIVersion = "1"

var (
	pluginLoadCount  = expvar.NewInt("plugins_loaded")
	pluginSkipCount  = expvar.NewInt("plugins_skipped")
	pluginErrorCount = expvar.NewInt("plugins_errors")

	chunksGenerated = expvar.NewInt("chunks_generated")
	chunksLoaded    = expvar.NewInt("chunks_loaded")
	chunksEvicted   = expvar.NewInt("chunks_evicted")
)

// errVersion marks a plugin built against another API version.
var errVersion = errors.New("plugin API version mismatch")

// LoadResult lists what one LoadPlugins pass did, by plugin base name.
type LoadResult struct {
	Loaded  []string
	Skipped []string
	Failed  []string
}

// PluginManager loads .so plugins from Dir into a registry.
type PluginManager struct {
	Dir    string
	logger *zap.SugaredLogger

	mu   sync.Mutex
	last LoadResult
}

func NewPluginManager(dir string, logger *zap.SugaredLogger) *PluginManager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &PluginManager{Dir: dir, logger: logger}
}

// LastResult returns the outcome of the most recent LoadPlugins.
func (pm *PluginManager) LastResult() LoadResult {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.last
}

// LoadPlugins registers every .so in Dir, in name order. A broken plugin is
// logged and skipped; only an unreadable directory is an error.
func (pm *PluginManager) LoadPlugins(reg PluginRegistry) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	entries, err := os.ReadDir(pm.Dir)
	if err != nil {
		pluginErrorCount.Add(1)
		return fmt.Errorf("read plugin dir %s: %w", pm.Dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".so" {
			names = append(names, strings.TrimSuffix(e.Name(), ".so"))
		}
	}
	sort.Strings(names)

	var res LoadResult
	for _, name := range names {
		switch err := pm.loadOne(reg, name); {
		case err == nil:
			pluginLoadCount.Add(1)
			res.Loaded = append(res.Loaded, name)
			pm.logger.Infow("plugin loaded", "plugin", name)
		case errors.Is(err, errVersion):
			pluginSkipCount.Add(1)
			res.Skipped = append(res.Skipped, name)
			pm.logger.Warnw("plugin skipped", "plugin", name, "reason", err)
		default:
			pluginErrorCount.Add(1)
			res.Failed = append(res.Failed, name)
			pm.logger.Errorw("plugin failed", "plugin", name, "error", err)
		}
	}
	pm.last = res
	pm.logger.Infow("plugins scanned", "dir", pm.Dir,
		"loaded", len(res.Loaded), "skipped", len(res.Skipped), "failed", len(res.Failed))
	return nil
}

func (pm *PluginManager) loadOne(reg PluginRegistry, name string) (err error) {
	meta, ok, err := ReadMeta(pm.Dir, name)
	if err != nil {
		return err
	}
	if ok {
		if meta.Version != PluginAPIVersion {
			return fmt.Errorf("%w: got %q, want %q", errVersion, meta.Version, PluginAPIVersion)
		}
		reg.RegisterPluginMeta(meta)
	}

	path := filepath.Join(pm.Dir, name+".so")
	for _, h := range reg.Hooks(HookBeforePluginLoad) {
		h(path)
	}
	p, err := pluginpkg.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	sym, err := p.Lookup("Register")
	if err != nil {
		return fmt.Errorf("lookup Register: %w", err)
	}
	register, ok := sym.(func(PluginRegistry))
	if !ok {
		return fmt.Errorf("symbol Register has type %T, want func(plugin.PluginRegistry)", sym)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in Register: %v", r)
		}
	}()
	register(reg)
	if err := reg.LoadPluginConfig(name, pm.Dir); err != nil {
		return err
	}
	for _, h := range reg.Hooks(HookAfterPluginLoad) {
		h(path)
	}
	return nil
}

// ReadMeta reads <name>.yaml (or .yml, .json) from dir. ok is false when
// the plugin ships no metadata file.
func ReadMeta(dir, name string) (meta PluginMeta, ok bool, err error) {
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		path := filepath.Join(dir, name+ext)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return meta, false, err
		}
		// JSON is a subset of YAML, one decoder covers all three.
		if err := yaml.Unmarshal(data, &meta); err != nil {
			return meta, false, fmt.Errorf("parse %s: %w", path, err)
		}
		return meta, true, nil
	}
	return meta, false, nil
}

// UnloadPlugins fires the unload hooks for every registered plugin.
// Go cannot close a loaded .so; registrations are dropped by ClearPlugins.
func (pm *PluginManager) UnloadPlugins(reg PluginRegistry) {
	metas := reg.PluginMetas()
	for _, hook := range []HookType{HookBeforePluginUnload, HookAfterPluginUnload} {
		handlers := reg.Hooks(hook)
		for _, meta := range metas {
			for _, h := range handlers {
				h(meta)
			}
		}
	}
}

// ReloadPlugins fires unload hooks, clears plugin registrations and loads Dir again.
func (pm *PluginManager) ReloadPlugins(reg PluginRegistry) error {
	pm.UnloadPlugins(reg)
	reg.ClearPlugins()
	pm.logger.Infow("plugins cleared for reload", "dir", pm.Dir)
	return pm.LoadPlugins(reg)
}
