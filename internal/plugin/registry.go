// Package plugin lets shared-object plugins add theme policies, game systems,
// chunk hooks and admin commands to the stream server.
package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/annelo/envstream/internal/gameloop"
	"github.com/annelo/envstream/internal/streaming"
)

// PluginMeta is read from <plugin>.yaml next to the .so file.
type PluginMeta struct {
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Author      string `json:"author" yaml:"author"`
	Description string `json:"description" yaml:"description"`
}

// HookType names an event plugins can subscribe to.
type HookType string

const (
	// HookBeforeChunkGenerate receives (chunkindex.Key, pieces.Theme, float64 difficulty).
	HookBeforeChunkGenerate HookType = "BeforeChunkGenerate"
	// HookAfterChunkLoad receives (*chunkindex.Record).
	HookAfterChunkLoad HookType = "AfterChunkLoad"
	// HookAfterChunkEvict receives (chunkindex.Key).
	HookAfterChunkEvict HookType = "AfterChunkEvict"

	// Plugin lifecycle hooks receive the .so path (load) or PluginMeta (unload).
	HookBeforePluginLoad   HookType = "BeforePluginLoad"
	HookAfterPluginLoad    HookType = "AfterPluginLoad"
	HookBeforePluginUnload HookType = "BeforePluginUnload"
	HookAfterPluginUnload  HookType = "AfterPluginUnload"
)

// HookFunc handles one hook event; args depend on the HookType.
type HookFunc func(args ...interface{})

// CommandFunc handles one admin command and returns its output.
type CommandFunc func(args []string) (string, error)

// CommandRegistration is one admin command.
type CommandRegistration struct {
	Name        string
	Description string
	Handler     CommandFunc
}

// ThemePolicyRegistration binds a name usable in streaming.theme_policy to a policy.
type ThemePolicyRegistration struct {
	Name   string
	Policy streaming.ThemePolicy
}

// PluginRegistry is what a plugin's Register function receives.
type PluginRegistry interface {
	RegisterThemePolicy(name string, policy streaming.ThemePolicy)
	// ThemePolicy returns the latest policy registered under name.
	ThemePolicy(name string) (streaming.ThemePolicy, bool)
	ThemePolicies() []ThemePolicyRegistration

	RegisterGameSystem(sys gameloop.System)
	GameSystems() []gameloop.System

	RegisterPluginMeta(meta PluginMeta)
	PluginMetas() []PluginMeta

	RegisterHook(hook HookType, fn HookFunc)
	Hooks(hook HookType) []HookFunc

	RegisterCommand(name, description string, handler CommandFunc)
	Commands() []CommandRegistration

	// MarkCore freezes the current registrations as the core set.
	MarkCore()
	// ClearPlugins drops everything registered after MarkCore.
	ClearPlugins()

	// RegisterPluginConfig registers a pointer to a config struct used as
	// the default and as the type to decode into.
	RegisterPluginConfig(name string, sample interface{})
	// LoadPluginConfig decodes dir/<name>.yaml into a fresh copy of the sample.
	LoadPluginConfig(name, dir string) error
	PluginConfig(name string) interface{}
}

// registrations is everything a registry holds except plugin configs.
type registrations struct {
	themePolicies []ThemePolicyRegistration
	systems       []gameloop.System
	metas         []PluginMeta
	commands      []CommandRegistration
	hooks         map[HookType][]HookFunc
}

func (r registrations) clone() registrations {
	out := registrations{
		themePolicies: append([]ThemePolicyRegistration(nil), r.themePolicies...),
		systems:       append([]gameloop.System(nil), r.systems...),
		metas:         append([]PluginMeta(nil), r.metas...),
		commands:      append([]CommandRegistration(nil), r.commands...),
		hooks:         make(map[HookType][]HookFunc, len(r.hooks)),
	}
	for k, v := range r.hooks {
		out.hooks[k] = append([]HookFunc(nil), v...)
	}
	return out
}

// DefaultRegistry is the in-process PluginRegistry. Getters return copies,
// so callers may iterate while plugins register concurrently.
type DefaultRegistry struct {
	mu      sync.RWMutex
	cur     registrations
	core    *registrations
	samples map[string]interface{}
	configs map[string]interface{}
}

func NewDefaultRegistry() *DefaultRegistry {
	return &DefaultRegistry{
		cur:     registrations{hooks: make(map[HookType][]HookFunc)},
		samples: make(map[string]interface{}),
		configs: make(map[string]interface{}),
	}
}

func (r *DefaultRegistry) RegisterThemePolicy(name string, policy streaming.ThemePolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cur.themePolicies = append(r.cur.themePolicies, ThemePolicyRegistration{Name: name, Policy: policy})
}

func (r *DefaultRegistry) ThemePolicy(name string) (streaming.ThemePolicy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.cur.themePolicies) - 1; i >= 0; i-- {
		if r.cur.themePolicies[i].Name == name {
			return r.cur.themePolicies[i].Policy, true
		}
	}
	return nil, false
}

func (r *DefaultRegistry) ThemePolicies() []ThemePolicyRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]ThemePolicyRegistration(nil), r.cur.themePolicies...)
}

func (r *DefaultRegistry) RegisterGameSystem(sys gameloop.System) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cur.systems = append(r.cur.systems, sys)
}

func (r *DefaultRegistry) GameSystems() []gameloop.System {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]gameloop.System(nil), r.cur.systems...)
}

func (r *DefaultRegistry) RegisterPluginMeta(meta PluginMeta) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cur.metas = append(r.cur.metas, meta)
}

func (r *DefaultRegistry) PluginMetas() []PluginMeta {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]PluginMeta(nil), r.cur.metas...)
}

func (r *DefaultRegistry) RegisterHook(hook HookType, fn HookFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cur.hooks[hook] = append(r.cur.hooks[hook], fn)
}

func (r *DefaultRegistry) Hooks(hook HookType) []HookFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]HookFunc(nil), r.cur.hooks[hook]...)
}

func (r *DefaultRegistry) RegisterCommand(name, description string, handler CommandFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cur.commands = append(r.cur.commands, CommandRegistration{Name: name, Description: description, Handler: handler})
}

func (r *DefaultRegistry) Commands() []CommandRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]CommandRegistration(nil), r.cur.commands...)
}

func (r *DefaultRegistry) MarkCore() {
	r.mu.Lock()
	defer r.mu.Unlock()
	core := r.cur.clone()
	r.core = &core
}

// ClearPlugins restores the core set. Without a core mark everything is dropped.
func (r *DefaultRegistry) ClearPlugins() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.core == nil {
		r.cur = registrations{hooks: make(map[HookType][]HookFunc)}
		return
	}
	r.cur = r.core.clone()
}

func (r *DefaultRegistry) RegisterPluginConfig(name string, sample interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples[name] = sample
	r.configs[name] = sample
}

func (r *DefaultRegistry) LoadPluginConfig(name, dir string) error {
	r.mu.RLock()
	sample, ok := r.samples[name]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	t := reflect.TypeOf(sample)
	if t == nil || t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("plugin %s: config sample must be a pointer to struct, got %T", name, sample)
	}

	path := filepath.Join(dir, name+".yaml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("plugin %s: read config: %w", name, err)
	}
	// Unknown keys are allowed: the same file carries PluginMeta.
	// Sample values act as defaults for keys the file leaves out.
	v := reflect.New(t.Elem())
	if sv := reflect.ValueOf(sample); !sv.IsNil() {
		v.Elem().Set(sv.Elem())
	}
	cfg := v.Interface()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("plugin %s: parse %s: %w", name, path, err)
	}

	r.mu.Lock()
	r.configs[name] = cfg
	r.mu.Unlock()
	return nil
}

func (r *DefaultRegistry) PluginConfig(name string) interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.configs[name]
}
