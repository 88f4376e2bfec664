// Package sink materializes chunk placements into instance buckets and
// object pools.
package sink

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/annelo/envstream/internal/chunkindex"
	"github.com/annelo/envstream/internal/geom"
	"github.com/annelo/envstream/internal/pieces"
)

var (
	// ErrCapacity means a chunk would push a piece type past its instance cap.
	ErrCapacity = errors.New("instance capacity exceeded")
	// ErrAlreadyMaterialized means the key is already live in the sink.
	ErrAlreadyMaterialized = errors.New("chunk already materialized")
)

type pooledRef struct {
	pieceType pieces.PieceType
	id        uuid.UUID
}

type chunkEntry struct {
	instances [pieces.NumPieceTypes][]geom.Transform
	pooled    []pooledRef
}

// InstancedSink keeps one instance bucket per piece type and enforces the
// registry's MaxInstances across all live chunks. Pieces that are not
// instanceable, or all pieces when instancing is off, go to per-type pools.
type InstancedSink struct {
	mu       sync.Mutex
	reg      *pieces.Registry
	logger   *zap.SugaredLogger
	used     [pieces.NumPieceTypes]int
	pools    [pieces.NumPieceTypes]*ObjectPool
	chunks   map[chunkindex.Key]*chunkEntry
	poolSize int
}

// NewInstancedSink builds a sink; poolSize objects are preallocated per type.
func NewInstancedSink(reg *pieces.Registry, poolSize int, logger *zap.SugaredLogger) *InstancedSink {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &InstancedSink{
		reg:      reg,
		logger:   logger,
		chunks:   make(map[chunkindex.Key]*chunkEntry),
		poolSize: poolSize,
	}
	for i := range s.pools {
		s.pools[i] = NewObjectPool(pieces.PieceType(i), poolSize)
	}
	return s
}

// Materialize places every piece of the chunk or none of them.
func (s *InstancedSink) Materialize(key chunkindex.Key, placements []pieces.Placement, instanced bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chunks[key]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyMaterialized, key)
	}

	var need [pieces.NumPieceTypes]int
	for _, pl := range placements {
		if !pl.Type.Valid() {
			return fmt.Errorf("chunk %s: unknown piece type %d", key, pl.Type)
		}
		if s.instanceable(pl.Type, instanced) {
			need[pl.Type]++
		}
	}
	for t, n := range need {
		if n == 0 {
			continue
		}
		desc, _ := s.reg.Descriptor(pieces.PieceType(t))
		if s.used[t]+n > desc.MaxInstances {
			return fmt.Errorf("%w: chunk %s needs %d %s, %d of %d in use",
				ErrCapacity, key, n, pieces.PieceType(t), s.used[t], desc.MaxInstances)
		}
	}

	entry := &chunkEntry{}
	for _, pl := range placements {
		if s.instanceable(pl.Type, instanced) {
			entry.instances[pl.Type] = append(entry.instances[pl.Type], pl.Transform)
			continue
		}
		obj := s.pools[pl.Type].Acquire(pl.Transform)
		entry.pooled = append(entry.pooled, pooledRef{pieceType: pl.Type, id: obj.ID})
	}
	for t, n := range need {
		s.used[t] += n
	}
	s.chunks[key] = entry
	return nil
}

// Remove frees everything held for key. Removing an unknown key is a no-op.
func (s *InstancedSink) Remove(key chunkindex.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.chunks[key]
	if !ok {
		return nil
	}
	for t := range entry.instances {
		s.used[t] -= len(entry.instances[t])
	}
	for _, ref := range entry.pooled {
		if !s.pools[ref.pieceType].Release(ref.id) {
			s.logger.Warnw("pooled object missing on release", "chunk", key.String(), "id", ref.id)
		}
	}
	delete(s.chunks, key)
	return nil
}

func (s *InstancedSink) instanceable(t pieces.PieceType, instanced bool) bool {
	if !instanced {
		return false
	}
	desc, _ := s.reg.Descriptor(t)
	return desc.Instanceable
}

// InUse returns the live instance count of t across all chunks.
func (s *InstancedSink) InUse(t pieces.PieceType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !t.Valid() {
		return 0
	}
	return s.used[t]
}

// Pool returns the object pool for t.
func (s *InstancedSink) Pool(t pieces.PieceType) *ObjectPool {
	if !t.Valid() {
		return nil
	}
	return s.pools[t]
}

// Chunks returns the number of live chunks.
func (s *InstancedSink) Chunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

// ClassCounts sums live instances and pooled objects by piece class.
func (s *InstancedSink) ClassCounts() map[pieces.Class]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[pieces.Class]int)
	for t, n := range s.used {
		if n > 0 {
			out[pieces.PieceType(t).Class()] += n
		}
	}
	for _, entry := range s.chunks {
		for _, ref := range entry.pooled {
			out[ref.pieceType.Class()]++
		}
	}
	return out
}

// Reset releases all chunks and refills the pools.
func (s *InstancedSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = make(map[chunkindex.Key]*chunkEntry)
	s.used = [pieces.NumPieceTypes]int{}
	for i := range s.pools {
		s.pools[i].Clear()
		s.pools[i].Expand(s.poolSize)
	}
}
