package playermanager

import (
	"errors"
	"sync"

	"github.com/annelo/envstream/internal/geom"
)

var (
	// ErrPlayerNotFound возвращается, если раннер с таким ID не зарегистрирован
	ErrPlayerNotFound = errors.New("игрок не найден")
	// ErrPlayerExists возвращается при повторном добавлении
	ErrPlayerExists = errors.New("игрок с таким ID уже существует")
)

// PlayerData содержит состояние раннера, за которым следует стриминг
type PlayerData struct {
	ID       string
	Name     string
	Position geom.Vec3
	Health   int32
	// Speed - скорость бега вдоль +X, ед/с
	Speed float64
	// DashRemaining - сколько ещё длится рывок, с; 0 значит рывка нет
	DashRemaining float64
	// DashCooldown - сколько ждать до следующего рывка, с
	DashCooldown float64
}

// PlayerManager управляет данными игроков
type PlayerManager struct {
	players map[string]*PlayerData
	mu      sync.RWMutex
}

// NewPlayerManager создает новый экземпляр менеджера игроков
func NewPlayerManager() *PlayerManager {
	return &PlayerManager{
		players: make(map[string]*PlayerData),
	}
}

// AddPlayer добавляет нового игрока в менеджер
func (pm *PlayerManager) AddPlayer(id, name string, position geom.Vec3) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if _, exists := pm.players[id]; exists {
		return ErrPlayerExists
	}

	pm.players[id] = &PlayerData{
		ID:       id,
		Name:     name,
		Position: position,
		Health:   100, // Начальное здоровье
	}
	return nil
}

// GetPlayer возвращает копию данных игрока по ID
func (pm *PlayerManager) GetPlayer(id string) (PlayerData, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	player, exists := pm.players[id]
	if !exists {
		return PlayerData{}, ErrPlayerNotFound
	}
	return *player, nil
}

// UpdatePlayerPosition обновляет позицию игрока
func (pm *PlayerManager) UpdatePlayerPosition(id string, position geom.Vec3) error {
	return pm.Update(id, func(p *PlayerData) { p.Position = position })
}

// UpdatePlayerHealth обновляет здоровье игрока
func (pm *PlayerManager) UpdatePlayerHealth(id string, health int32) error {
	return pm.Update(id, func(p *PlayerData) { p.Health = health })
}

// Update применяет fn к игроку под блокировкой записи
func (pm *PlayerManager) Update(id string, fn func(*PlayerData)) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	player, exists := pm.players[id]
	if !exists {
		return ErrPlayerNotFound
	}
	fn(player)
	return nil
}

// RemovePlayer удаляет игрока из менеджера
func (pm *PlayerManager) RemovePlayer(id string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if _, exists := pm.players[id]; !exists {
		return ErrPlayerNotFound
	}
	delete(pm.players, id)
	return nil
}

// GetAllPlayers возвращает копии всех игроков
func (pm *PlayerManager) GetAllPlayers() []PlayerData {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	players := make([]PlayerData, 0, len(pm.players))
	for _, player := range pm.players {
		players = append(players, *player)
	}
	return players
}

// Source возвращает источник позиции для одного игрока
func (pm *PlayerManager) Source(id string) *PlayerSource {
	return &PlayerSource{pm: pm, id: id}
}

// PlayerSource отдаёт позицию одного игрока контроллеру стриминга
type PlayerSource struct {
	pm *PlayerManager
	id string
}

func (s *PlayerSource) Position() (geom.Vec3, error) {
	p, err := s.pm.GetPlayer(s.id)
	if err != nil {
		return geom.Vec3{}, err
	}
	return p.Position, nil
}
