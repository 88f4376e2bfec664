// Package pieces describes the closed set of environment piece kinds, the
// themes that select among them, and the read-only registry of per-kind data.
package pieces

import (
	"fmt"

	"github.com/annelo/envstream/internal/geom"
)

// PieceType identifies one kind of environment piece.
type PieceType uint8

const (
	Ground PieceType = iota
	Platform
	Wall
	Pillar
	Stairs
	Bridge
	Tree
	Rock
	Foliage
	Water
	Building
	Decoration

	// NumPieceTypes is the number of known piece kinds.
	NumPieceTypes int = iota
)

var pieceNames = [NumPieceTypes]string{
	"ground", "platform", "wall", "pillar", "stairs", "bridge",
	"tree", "rock", "foliage", "water", "building", "decoration",
}

func (p PieceType) String() string {
	if !p.Valid() {
		return fmt.Sprintf("piece(%d)", uint8(p))
	}
	return pieceNames[p]
}

// Valid reports whether p is one of the known kinds.
func (p PieceType) Valid() bool { return int(p) < NumPieceTypes }

// ParsePieceType resolves a lowercase piece name.
func ParsePieceType(s string) (PieceType, error) {
	for i, n := range pieceNames {
		if n == s {
			return PieceType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown piece type %q", s)
}

// MarshalText implements encoding.TextMarshaler (used by yaml and json).
func (p PieceType) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PieceType) UnmarshalText(b []byte) error {
	v, err := ParsePieceType(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Class groups piece kinds by what they are in the world.
type Class uint8

const (
	ClassTerrain Class = iota
	ClassStructure
	ClassVegetation
	ClassProp
)

func (c Class) String() string {
	switch c {
	case ClassTerrain:
		return "terrain"
	case ClassStructure:
		return "structure"
	case ClassVegetation:
		return "vegetation"
	case ClassProp:
		return "prop"
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// Class maps every piece kind to its class. Adding a kind without a case
// here panics in TestEveryPieceHasClass.
func (p PieceType) Class() Class {
	switch p {
	case Ground, Water:
		return ClassTerrain
	case Platform, Wall, Pillar, Stairs, Bridge, Building:
		return ClassStructure
	case Tree, Foliage:
		return ClassVegetation
	case Rock, Decoration:
		return ClassProp
	}
	panic(fmt.Sprintf("pieces: no class for %v", p))
}

// Theme is a named content policy for a chunk.
type Theme uint8

const (
	Forest Theme = iota
	Mountain
	Beach
	Village
	Ruins
	Sky
	Cave
	Desert

	// NumThemes is the number of known themes.
	NumThemes int = iota
)

var themeNames = [NumThemes]string{
	"forest", "mountain", "beach", "village", "ruins", "sky", "cave", "desert",
}

func (t Theme) String() string {
	if !t.Valid() {
		return fmt.Sprintf("theme(%d)", uint8(t))
	}
	return themeNames[t]
}

// Valid reports whether t is one of the known themes.
func (t Theme) Valid() bool { return int(t) < NumThemes }

// ParseTheme resolves a lowercase theme name.
func ParseTheme(s string) (Theme, error) {
	for i, n := range themeNames {
		if n == s {
			return Theme(i), nil
		}
	}
	return 0, fmt.Errorf("unknown theme %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Theme) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Theme) UnmarshalText(b []byte) error {
	v, err := ParseTheme(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Placement is one generated piece: what to place and where.
type Placement struct {
	Type      PieceType
	Transform geom.Transform
}
