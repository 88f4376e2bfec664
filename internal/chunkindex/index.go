// Package chunkindex хранит множество известных чанков и их состояние загрузки.
package chunkindex

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/annelo/envstream/internal/pieces"
)

// ErrDuplicateKey возвращается при попытке вставить второй чанк с тем же ключом.
// Это нарушение инварианта: контроллер обязан проверить Contains заранее.
var ErrDuplicateKey = errors.New("chunk already indexed")

// Record описывает один сгенерированный чанк
type Record struct {
	Key        Key
	Theme      pieces.Theme
	Difficulty float64
	Placements []pieces.Placement
	Loaded     bool
	LoadedAt   time.Time
}

// Index отображает ключ чанка на его запись
type Index struct {
	mu     sync.RWMutex
	chunks map[Key]*Record
}

// New создает пустой индекс
func New() *Index {
	return &Index{chunks: make(map[Key]*Record)}
}

// Contains проверяет наличие чанка
func (ix *Index) Contains(key Key) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.chunks[key]
	return ok
}

// Insert добавляет запись. Существующая запись никогда не перезаписывается.
func (ix *Index) Insert(rec *Record) error {
	if rec == nil {
		return errors.New("nil chunk record")
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, exists := ix.chunks[rec.Key]; exists {
		return fmt.Errorf("insert %s: %w", rec.Key, ErrDuplicateKey)
	}
	ix.chunks[rec.Key] = rec
	return nil
}

// Get возвращает запись чанка
func (ix *Index) Get(key Key) (*Record, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	rec, ok := ix.chunks[key]
	return rec, ok
}

// Remove удаляет чанк; отсутствие ключа не ошибка
func (ix *Index) Remove(key Key) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.chunks, key)
}

// MarkLoaded помечает чанк загруженным
func (ix *Index) MarkLoaded(key Key, at time.Time) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	rec, ok := ix.chunks[key]
	if !ok {
		return false
	}
	rec.Loaded = true
	rec.LoadedAt = at
	return true
}

// ForEach обходит записи в произвольном порядке.
// Посетитель не должен вызывать методы индекса, меняющие его состояние.
func (ix *Index) ForEach(visit func(*Record)) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	for _, rec := range ix.chunks {
		visit(rec)
	}
}

// Len возвращает количество чанков
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

// Keys возвращает отсортированный список ключей
func (ix *Index) Keys() []Key {
	ix.mu.RLock()
	keys := make([]Key, 0, len(ix.chunks))
	for k := range ix.chunks {
		keys = append(keys, k)
	}
	ix.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}
