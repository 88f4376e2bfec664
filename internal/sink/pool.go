package sink

import (
	"sync"

	"github.com/google/uuid"

	"github.com/annelo/envstream/internal/geom"
	"github.com/annelo/envstream/internal/pieces"
)

// parked is where inactive objects wait, far below the world.
var parked = geom.Transform{
	Translation: geom.Vec3{0, 0, -10000},
	Rotation:    geom.Identity().Rotation,
	Scale:       geom.UniformScale(1),
}

// Object is one pooled, individually placed piece.
type Object struct {
	ID        uuid.UUID
	Type      pieces.PieceType
	Transform geom.Transform
	Active    bool
}

// ObjectPool hands out reusable objects of a single piece type.
// Objects are created up front and on demand when the pool runs dry.
type ObjectPool struct {
	mu        sync.Mutex
	pieceType pieces.PieceType
	inactive  []*Object
	active    map[uuid.UUID]*Object
	created   int
}

// NewObjectPool preallocates size inactive objects.
func NewObjectPool(t pieces.PieceType, size int) *ObjectPool {
	p := &ObjectPool{
		pieceType: t,
		active:    make(map[uuid.UUID]*Object),
	}
	p.Expand(size)
	return p
}

func (p *ObjectPool) newObject() *Object {
	p.created++
	return &Object{ID: uuid.New(), Type: p.pieceType, Transform: parked}
}

// Acquire activates an object at tr, creating one if none is idle.
func (p *ObjectPool) Acquire(tr geom.Transform) *Object {
	p.mu.Lock()
	defer p.mu.Unlock()

	var obj *Object
	if n := len(p.inactive); n > 0 {
		obj = p.inactive[n-1]
		p.inactive = p.inactive[:n-1]
	} else {
		obj = p.newObject()
	}
	obj.Active = true
	obj.Transform = tr
	p.active[obj.ID] = obj
	return obj
}

// Release parks an active object. Unknown ids are ignored.
func (p *ObjectPool) Release(id uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	obj, ok := p.active[id]
	if !ok {
		return false
	}
	delete(p.active, id)
	obj.Active = false
	obj.Transform = parked
	p.inactive = append(p.inactive, obj)
	return true
}

// Expand adds n idle objects.
func (p *ObjectPool) Expand(n int) {
	if n <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < n; i++ {
		p.inactive = append(p.inactive, p.newObject())
	}
}

// Clear drops every object, active or not.
func (p *ObjectPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inactive = nil
	p.active = make(map[uuid.UUID]*Object)
}

func (p *ObjectPool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

func (p *ObjectPool) Inactive() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inactive)
}

// Created counts objects ever allocated by this pool.
func (p *ObjectPool) Created() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}
