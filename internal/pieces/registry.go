package pieces

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/annelo/envstream/internal/errs"
	"github.com/annelo/envstream/internal/geom"
)

// Descriptor holds static data for one piece kind.
type Descriptor struct {
	SpawnWeight  float64   `yaml:"spawn_weight" validate:"gt=0"`
	MaxInstances int       `yaml:"max_instances" validate:"gte=0"`
	Instanceable bool      `yaml:"instanceable"`
	Collision    bool      `yaml:"collision"`
	CastShadows  bool      `yaml:"cast_shadows"`
	Scale        geom.Vec3 `yaml:"scale"`
}

// DefaultDescriptor mirrors the defaults of an unconfigured piece.
func DefaultDescriptor() Descriptor {
	return Descriptor{
		SpawnWeight:  1.0,
		MaxInstances: 100,
		Collision:    true,
		CastShadows:  true,
		Scale:        geom.Vec3{1, 1, 1},
	}
}

// Registry is the read-only piece configuration used by generation and sinks.
// Lookups are O(1) array reads indexed by the enum ordinal.
type Registry struct {
	descriptors [NumPieceTypes]Descriptor
	registered  [NumPieceTypes]bool
	themeSets   [NumThemes][]PieceType
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry returns the startup data the game ships with.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	ground := DefaultDescriptor()
	ground.Instanceable = true
	ground.MaxInstances = 200
	r.Register(Ground, ground)

	platform := DefaultDescriptor()
	platform.Instanceable = true
	platform.SpawnWeight = 0.8
	platform.MaxInstances = 150
	r.Register(Platform, platform)

	tree := DefaultDescriptor()
	tree.Instanceable = true
	tree.SpawnWeight = 0.6
	tree.MaxInstances = 300
	tree.Scale = geom.Vec3{0.8, 0.8, 1.2}
	r.Register(Tree, tree)

	rock := DefaultDescriptor()
	rock.Instanceable = true
	rock.SpawnWeight = 0.7
	rock.MaxInstances = 250
	rock.Scale = geom.Vec3{0.5, 0.5, 0.8}
	r.Register(Rock, rock)

	r.SetThemeSet(Forest, []PieceType{Ground, Platform, Tree, Foliage, Rock})
	r.SetThemeSet(Mountain, []PieceType{Ground, Platform, Rock, Pillar, Stairs})
	r.SetThemeSet(Village, []PieceType{Ground, Building, Bridge, Decoration})
	return r
}

// Register stores the descriptor for a piece kind, replacing any previous one.
func (r *Registry) Register(t PieceType, d Descriptor) {
	if !t.Valid() {
		return
	}
	r.descriptors[t] = d
	r.registered[t] = true
}

// Descriptor returns the data for t. Kinds that were never registered get
// DefaultDescriptor and ok=false.
func (r *Registry) Descriptor(t PieceType) (Descriptor, bool) {
	if !t.Valid() || !r.registered[t] {
		return DefaultDescriptor(), false
	}
	return r.descriptors[t], true
}

// SetThemeSet replaces the ordered set of piece kinds eligible for a theme.
func (r *Registry) SetThemeSet(theme Theme, set []PieceType) {
	if !theme.Valid() {
		return
	}
	r.themeSets[theme] = append([]PieceType(nil), set...)
}

// ThemeSet returns the piece kinds eligible for theme. The slice must not be modified.
func (r *Registry) ThemeSet(theme Theme) []PieceType {
	if !theme.Valid() {
		return nil
	}
	return r.themeSets[theme]
}

// ScaleInstanceCaps multiplies every registered instance cap by f, rounding to
// the nearest integer. Used to trim budgets on low-end devices.
func (r *Registry) ScaleInstanceCaps(f float64) {
	for i := range r.descriptors {
		if !r.registered[i] {
			continue
		}
		r.descriptors[i].MaxInstances = int(float64(r.descriptors[i].MaxInstances)*f + 0.5)
	}
}

var validate = validator.New()

// Validate checks descriptors and theme sets.
func (r *Registry) Validate() error {
	for i := range r.descriptors {
		if !r.registered[i] {
			continue
		}
		if err := validate.Struct(r.descriptors[i]); err != nil {
			return errs.WrapConfig("pieces."+PieceType(i).String(), "invalid descriptor", err)
		}
	}
	for th, set := range r.themeSets {
		for _, p := range set {
			if !p.Valid() {
				return errs.Config("themes."+Theme(th).String(), fmt.Sprintf("unknown piece %d", uint8(p)))
			}
		}
	}
	return nil
}

// registryFile is the on-disk YAML form of a registry.
type registryFile struct {
	Pieces map[PieceType]Descriptor `yaml:"pieces"`
	Themes map[Theme][]PieceType    `yaml:"themes"`
}

// LoadRegistryYAML applies overrides from path on top of DefaultRegistry.
func LoadRegistryYAML(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.WrapConfig("pieces", "read "+path, err)
	}
	return ParseRegistryYAML(data)
}

// ParseRegistryYAML applies YAML overrides on top of DefaultRegistry.
func ParseRegistryYAML(data []byte) (*Registry, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errs.WrapConfig("pieces", "malformed registry", err)
	}
	r := DefaultRegistry()
	for t, d := range f.Pieces {
		if d.Scale == (geom.Vec3{}) {
			d.Scale = geom.Vec3{1, 1, 1}
		}
		r.Register(t, d)
	}
	for th, set := range f.Themes {
		r.SetThemeSet(th, set)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}
