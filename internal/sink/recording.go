package sink

import (
	"errors"
	"sort"
	"sync"

	"github.com/annelo/envstream/internal/chunkindex"
	"github.com/annelo/envstream/internal/pieces"
)

// ErrInjected is returned by RecordingSink for keys marked with FailOn.
var ErrInjected = errors.New("injected sink failure")

// RecordingSink keeps the placements it receives. Used by the visualiser
// and tests.
type RecordingSink struct {
	mu       sync.Mutex
	live     map[chunkindex.Key][]pieces.Placement
	failOn   map[chunkindex.Key]bool
	loads    int
	removals int
}

func NewRecordingSink() *RecordingSink {
	return &RecordingSink{
		live:   make(map[chunkindex.Key][]pieces.Placement),
		failOn: make(map[chunkindex.Key]bool),
	}
}

func (s *RecordingSink) Materialize(key chunkindex.Key, placements []pieces.Placement, instanced bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn[key] {
		return ErrInjected
	}
	if _, ok := s.live[key]; ok {
		return ErrAlreadyMaterialized
	}
	s.live[key] = placements
	s.loads++
	return nil
}

func (s *RecordingSink) Remove(key chunkindex.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live[key]; ok {
		delete(s.live, key)
		s.removals++
	}
	return nil
}

// FailOn makes Materialize reject key until cleared with fail=false.
func (s *RecordingSink) FailOn(key chunkindex.Key, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fail {
		s.failOn[key] = true
	} else {
		delete(s.failOn, key)
	}
}

// Keys returns live keys in sorted order.
func (s *RecordingSink) Keys() []chunkindex.Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]chunkindex.Key, 0, len(s.live))
	for k := range s.live {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Placements returns what was materialized for key.
func (s *RecordingSink) Placements(key chunkindex.Key) ([]pieces.Placement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.live[key]
	return p, ok
}

// Counts returns total successful loads and removals.
func (s *RecordingSink) Counts() (loads, removals int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads, s.removals
}
