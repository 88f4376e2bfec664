package chunkindex

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/annelo/envstream/internal/errs"
	"github.com/annelo/envstream/internal/geom"
)

// Size размер чанка в мировых единицах по каждой оси
type Size struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// DefaultSize размер чанка по умолчанию (2000 x 2000 x 1000)
var DefaultSize = Size{X: 2000, Y: 2000, Z: 1000}

// Validate проверяет, что все размеры положительны
func (s Size) Validate() error {
	if !(s.X > 0) || !(s.Y > 0) || !(s.Z > 0) {
		return errs.Config("chunk_size", fmt.Sprintf("all extents must be positive, got %v", s))
	}
	return nil
}

// Key целочисленные координаты ячейки чанка
type Key struct {
	X int64
	Y int64
}

// KeyOf возвращает ключ ячейки, в которую попадает точка.
// Нижняя граница ячейки включена, верхняя нет.
func KeyOf(pos geom.Vec3, size Size) Key {
	return Key{
		X: int64(math.Floor(pos.X() / size.X)),
		Y: int64(math.Floor(pos.Y() / size.Y)),
	}
}

// Origin возвращает мировую точку начала чанка (Z всегда 0)
func (k Key) Origin(size Size) geom.Vec3 {
	return geom.Vec3{float64(k.X) * size.X, float64(k.Y) * size.Y, 0}
}

// Offset возвращает соседний ключ
func (k Key) Offset(dx, dy int64) Key {
	return Key{X: k.X + dx, Y: k.Y + dy}
}

// String формирует ключ в формате "x:y"
func (k Key) String() string {
	return strconv.FormatInt(k.X, 10) + ":" + strconv.FormatInt(k.Y, 10)
}

// ParseKey разбирает строку формата "x:y"
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return Key{}, errors.New("неверный формат ключа чанка")
	}
	x, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Key{}, fmt.Errorf("неверный формат ключа чанка: %w", err)
	}
	y, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Key{}, fmt.Errorf("неверный формат ключа чанка: %w", err)
	}
	return Key{X: x, Y: y}, nil
}

// Less задаёт порядок ключей для отчётов (сначала X, потом Y)
func (k Key) Less(o Key) bool {
	if k.X != o.X {
		return k.X < o.X
	}
	return k.Y < o.Y
}
