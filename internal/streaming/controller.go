// Package streaming drives the load/evict lifecycle of environment chunks
// around a tracked position.
package streaming

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/annelo/envstream/internal/chunkindex"
	"github.com/annelo/envstream/internal/errs"
	"github.com/annelo/envstream/internal/geom"
	"github.com/annelo/envstream/internal/layout"
	"github.com/annelo/envstream/internal/pieces"
)

// MinDifficulty is the floor applied to policy output before generation.
const MinDifficulty = 1.0

// PositionSource supplies the tracked entity's world position.
type PositionSource interface {
	Position() (geom.Vec3, error)
}

// PlacementSink materializes and removes chunk content.
type PlacementSink interface {
	// Materialize places all pieces of a chunk, or nothing at all.
	Materialize(key chunkindex.Key, placements []pieces.Placement, instanced bool) error
	// Remove drops everything previously materialized for key.
	Remove(key chunkindex.Key) error
}

// Generator produces chunk layouts.
type Generator interface {
	Generate(key chunkindex.Key, theme pieces.Theme, difficulty float64) layout.Result
}

// Hooks are optional callbacks fired from inside Tick.
type Hooks struct {
	BeforeGenerate func(key chunkindex.Key, theme pieces.Theme, difficulty float64)
	AfterLoad      func(rec *chunkindex.Record)
	AfterEvict     func(key chunkindex.Key)
}

// Config holds the streaming parameters. It is validated once by New.
type Config struct {
	ChunkSize          chunkindex.Size `yaml:"chunk_size"`
	LoadRadius         float64         `yaml:"load_radius"`
	EvictionMultiplier float64         `yaml:"eviction_multiplier"`
	Instancing         bool            `yaml:"instancing"`
	// MaxGenerationsPerTick caps new chunks per tick, nearest first. 0 means no cap.
	MaxGenerationsPerTick int `yaml:"max_generations_per_tick"`
	// Workers > 0 runs Generate calls on that many goroutines.
	Workers int `yaml:"workers"`
}

// DefaultConfig returns the shipped streaming settings.
func DefaultConfig() Config {
	return Config{
		ChunkSize:          chunkindex.DefaultSize,
		LoadRadius:         4000,
		EvictionMultiplier: 1.5,
		Instancing:         true,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.ChunkSize.Validate(); err != nil {
		return err
	}
	if !(c.LoadRadius > 0) || math.IsInf(c.LoadRadius, 0) {
		return errs.Config("load_radius", "must be positive and finite")
	}
	if c.EvictionMultiplier < 1 {
		return errs.Config("eviction_multiplier", "must be at least 1")
	}
	if c.MaxGenerationsPerTick < 0 {
		return errs.Config("max_generations_per_tick", "must not be negative")
	}
	if c.Workers < 0 {
		return errs.Config("workers", "must not be negative")
	}
	return nil
}

// EvictionRadius is LoadRadius * EvictionMultiplier.
func (c Config) EvictionRadius() float64 {
	return c.LoadRadius * c.EvictionMultiplier
}

// Report summarises one tick.
type Report struct {
	Tick               uint64
	Position           geom.Vec3
	Center             chunkindex.Key
	Loaded             []chunkindex.Key
	Evicted            []chunkindex.Key
	SinkFailures       int
	Fallbacks          int
	GenerationFailures int // generator panicked
	Resident           int
	Duration           time.Duration
}

// Stats are cumulative counters over the controller's lifetime.
type Stats struct {
	Ticks              uint64
	Loaded             uint64
	Evicted            uint64
	SinkFailures       uint64
	Fallbacks          uint64
	GenerationFailures uint64
}

// Controller owns the chunk index and runs the streaming lifecycle.
// Tick must be called from one goroutine at a time.
type Controller struct {
	cfg        Config
	gen        Generator
	source     PositionSource
	sink       PlacementSink
	index      *chunkindex.Index
	themes     ThemePolicy
	difficulty DifficultyPolicy
	hooks      Hooks
	logger     *zap.SugaredLogger
	now        func() time.Time

	tickMu   sync.Mutex
	statsMu  sync.Mutex
	stats    Stats
	lastPos  geom.Vec3
	lastTick time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the structured logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithThemePolicy replaces the default threshold theme policy.
func WithThemePolicy(p ThemePolicy) Option {
	return func(c *Controller) { c.themes = p }
}

// WithDifficultyPolicy replaces the default distance difficulty policy.
func WithDifficultyPolicy(p DifficultyPolicy) Option {
	return func(c *Controller) { c.difficulty = p }
}

// WithHooks installs lifecycle callbacks.
func WithHooks(h Hooks) Option {
	return func(c *Controller) { c.hooks = h }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithIndex makes the controller use an existing, empty index.
func WithIndex(ix *chunkindex.Index) Option {
	return func(c *Controller) { c.index = ix }
}

// New validates cfg and builds a controller.
func New(cfg Config, gen Generator, source PositionSource, sink PlacementSink, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if gen == nil || source == nil || sink == nil {
		return nil, errs.Config("streaming", "generator, position source and sink are required")
	}
	c := &Controller{
		cfg:        cfg,
		gen:        gen,
		source:     source,
		sink:       sink,
		index:      chunkindex.New(),
		themes:     DefaultThemes(),
		difficulty: DefaultDifficulty(),
		logger:     zap.NewNop().Sugar(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the validated configuration.
func (c *Controller) Config() Config { return c.cfg }

// Index exposes the chunk index for read-only inspection.
func (c *Controller) Index() *chunkindex.Index { return c.index }

// Stats returns a copy of the cumulative counters.
func (c *Controller) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// Snapshot returns resident records sorted by key.
func (c *Controller) Snapshot() []*chunkindex.Record {
	keys := c.index.Keys()
	out := make([]*chunkindex.Record, 0, len(keys))
	for _, k := range keys {
		if rec, ok := c.index.Get(k); ok {
			out = append(out, rec)
		}
	}
	return out
}

// Tick runs one streaming pass: evict far chunks, then load near ones.
// Per-chunk failures are reported, not returned; the error is non-nil only
// when the position could not be read or ctx was cancelled.
func (c *Controller) Tick(ctx context.Context) (Report, error) {
	c.tickMu.Lock()
	defer c.tickMu.Unlock()

	start := c.now()
	pos, err := c.source.Position()
	if err != nil {
		return Report{}, fmt.Errorf("read position: %w", err)
	}

	c.statsMu.Lock()
	c.stats.Ticks++
	rep := Report{Tick: c.stats.Ticks, Position: pos, Center: chunkindex.KeyOf(pos, c.cfg.ChunkSize)}
	c.statsMu.Unlock()

	// Evict first so instance caps are freed before loading.
	rep.Evicted = c.evict(pos)

	jobs := c.candidates(pos, rep.Center)
	if err := c.generate(ctx, jobs); err != nil {
		return rep, err
	}
	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if c.load(j, &rep) {
			rep.Loaded = append(rep.Loaded, j.key)
		}
	}

	rep.Resident = c.index.Len()
	rep.Duration = c.now().Sub(start)

	c.statsMu.Lock()
	c.stats.Loaded += uint64(len(rep.Loaded))
	c.stats.Evicted += uint64(len(rep.Evicted))
	c.stats.SinkFailures += uint64(rep.SinkFailures)
	c.stats.Fallbacks += uint64(rep.Fallbacks)
	c.stats.GenerationFailures += uint64(rep.GenerationFailures)
	c.lastPos = pos
	c.lastTick = start
	c.statsMu.Unlock()

	if len(rep.Loaded) > 0 || len(rep.Evicted) > 0 || rep.SinkFailures > 0 || rep.GenerationFailures > 0 {
		c.logger.Debugw("streaming tick",
			"tick", rep.Tick,
			"center", rep.Center.String(),
			"loaded", len(rep.Loaded),
			"evicted", len(rep.Evicted),
			"sink_failures", rep.SinkFailures,
			"resident", rep.Resident,
		)
	}
	return rep, nil
}

func (c *Controller) evict(pos geom.Vec3) []chunkindex.Key {
	limit := c.cfg.EvictionRadius()
	var far []chunkindex.Key
	c.index.ForEach(func(rec *chunkindex.Record) {
		if geom.Dist2D(rec.Key.Origin(c.cfg.ChunkSize), pos) > limit {
			far = append(far, rec.Key)
		}
	})
	sort.Slice(far, func(i, j int) bool { return far[i].Less(far[j]) })
	c.remove(far)
	return far
}

// EvictAll removes every resident chunk from the sink and the index. Used on
// shutdown so the two never disagree.
func (c *Controller) EvictAll() []chunkindex.Key {
	c.tickMu.Lock()
	defer c.tickMu.Unlock()

	keys := c.index.Keys()
	c.remove(keys)

	c.statsMu.Lock()
	c.stats.Evicted += uint64(len(keys))
	c.statsMu.Unlock()
	return keys
}

func (c *Controller) remove(keys []chunkindex.Key) {
	for _, key := range keys {
		if err := c.sink.Remove(key); err != nil {
			// Content is gone either way; a reload regenerates it.
			c.logger.Warnw("sink remove failed", "chunk", key.String(), "error", err)
		}
		c.index.Remove(key)
		if c.hooks.AfterEvict != nil {
			c.hooks.AfterEvict(key)
		}
	}
}

type job struct {
	key        chunkindex.Key
	dist       float64
	theme      pieces.Theme
	difficulty float64
	result     layout.Result
	failed     bool
}

// candidates enumerates the square grid around center and keeps unindexed
// keys within the load radius, nearest first.
func (c *Controller) candidates(pos geom.Vec3, center chunkindex.Key) []*job {
	radius := int64(math.Ceil(c.cfg.LoadRadius / c.cfg.ChunkSize.X))
	var jobs []*job
	for dx := -radius; dx <= radius; dx++ {
		for dy := -radius; dy <= radius; dy++ {
			key := center.Offset(dx, dy)
			if c.index.Contains(key) {
				continue
			}
			origin := key.Origin(c.cfg.ChunkSize)
			d := geom.Dist2D(origin, pos)
			if d > c.cfg.LoadRadius {
				continue
			}
			jobs = append(jobs, &job{
				key:        key,
				dist:       d,
				theme:      c.themes.ThemeFor(origin),
				difficulty: math.Max(c.difficulty.DifficultyFor(origin), MinDifficulty),
			})
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].dist != jobs[j].dist {
			return jobs[i].dist < jobs[j].dist
		}
		return jobs[i].key.Less(jobs[j].key)
	})
	if n := c.cfg.MaxGenerationsPerTick; n > 0 && len(jobs) > n {
		jobs = jobs[:n]
	}
	return jobs
}

// generate fills job results. Only the pure generator runs off the tick
// goroutine; everything that touches the index or the sink stays on it.
func (c *Controller) generate(ctx context.Context, jobs []*job) error {
	for _, j := range jobs {
		if c.hooks.BeforeGenerate != nil {
			c.hooks.BeforeGenerate(j.key, j.theme, j.difficulty)
		}
	}
	if c.cfg.Workers <= 1 || len(jobs) < 2 {
		for _, j := range jobs {
			if err := ctx.Err(); err != nil {
				return err
			}
			c.run(j)
		}
		return nil
	}

	sem := make(chan struct{}, c.cfg.Workers)
	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func(j *job) {
			defer wg.Done()
			defer func() { <-sem }()
			c.run(j)
		}(j)
	}
	wg.Wait()
	return ctx.Err()
}

// run generates one job. A panicking generator marks the job failed; the
// chunk stays unloaded and is retried next tick.
func (c *Controller) run(j *job) {
	defer func() {
		if r := recover(); r != nil {
			j.failed = true
			c.logger.Errorw("chunk generation panicked", "chunk", j.key.String(), "panic", r)
		}
	}()
	j.result = c.gen.Generate(j.key, j.theme, j.difficulty)
}

func (c *Controller) load(j *job, rep *Report) bool {
	if j.failed {
		rep.GenerationFailures++
		return false
	}
	if j.result.Warning != nil {
		rep.Fallbacks++
		c.logger.Warnw("chunk generated with fallback", "chunk", j.key.String(), "error", j.result.Warning)
	}

	if err := c.sink.Materialize(j.key, j.result.Placements, c.cfg.Instancing); err != nil {
		// Chunk stays unloaded and is retried next tick.
		rep.SinkFailures++
		c.logger.Warnw("sink rejected chunk", "chunk", j.key.String(), "error", err)
		return false
	}

	rec := &chunkindex.Record{
		Key:        j.key,
		Theme:      j.theme,
		Difficulty: j.difficulty,
		Placements: j.result.Placements,
		Loaded:     true,
		LoadedAt:   c.now(),
	}
	if err := c.index.Insert(rec); err != nil {
		if errors.Is(err, chunkindex.ErrDuplicateKey) {
			c.logger.DPanicw("chunk already in index", "chunk", j.key.String(), "error", err)
		}
		return false
	}
	if c.hooks.AfterLoad != nil {
		c.hooks.AfterLoad(rec)
	}
	return true
}

// LastPosition returns the position read by the most recent tick.
func (c *Controller) LastPosition() (geom.Vec3, time.Time) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.lastPos, c.lastTick
}
