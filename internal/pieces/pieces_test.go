package pieces_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annelo/envstream/internal/errs"
	"github.com/annelo/envstream/internal/pieces"
)

func TestEveryPieceHasClass(t *testing.T) {
	for i := 0; i < pieces.NumPieceTypes; i++ {
		p := pieces.PieceType(i)
		assert.NotPanics(t, func() { _ = p.Class() }, "piece %v has no class", p)
	}
	assert.Equal(t, pieces.ClassVegetation, pieces.Tree.Class())
	assert.Equal(t, pieces.ClassProp, pieces.Rock.Class())
	assert.Equal(t, pieces.ClassTerrain, pieces.Ground.Class())
}

func TestParseNames(t *testing.T) {
	for i := 0; i < pieces.NumPieceTypes; i++ {
		p := pieces.PieceType(i)
		got, err := pieces.ParsePieceType(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	for i := 0; i < pieces.NumThemes; i++ {
		th := pieces.Theme(i)
		got, err := pieces.ParseTheme(th.String())
		require.NoError(t, err)
		assert.Equal(t, th, got)
	}
	_, err := pieces.ParseTheme("swamp")
	assert.Error(t, err)
	assert.False(t, pieces.Theme(200).Valid())
}

func TestDefaultRegistry(t *testing.T) {
	reg := pieces.DefaultRegistry()
	require.NoError(t, reg.Validate())

	d, ok := reg.Descriptor(pieces.Tree)
	require.True(t, ok)
	assert.Equal(t, 300, d.MaxInstances)
	assert.True(t, d.Instanceable)

	_, ok = reg.Descriptor(pieces.Foliage)
	assert.False(t, ok, "foliage is in the forest set but never registered")

	assert.Equal(t, []pieces.PieceType{pieces.Ground, pieces.Platform, pieces.Tree, pieces.Foliage, pieces.Rock},
		reg.ThemeSet(pieces.Forest))
	assert.Empty(t, reg.ThemeSet(pieces.Desert))
}

func TestScaleInstanceCaps(t *testing.T) {
	reg := pieces.DefaultRegistry()
	reg.ScaleInstanceCaps(0.7)
	d, _ := reg.Descriptor(pieces.Ground)
	assert.Equal(t, 140, d.MaxInstances)
	d, _ = reg.Descriptor(pieces.Rock)
	assert.Equal(t, 175, d.MaxInstances)
}

func TestParseRegistryYAML(t *testing.T) {
	data := []byte(`
pieces:
  foliage:
    spawn_weight: 0.4
    max_instances: 400
    instanceable: true
themes:
  desert: [ground, rock, decoration]
`)
	reg, err := pieces.ParseRegistryYAML(data)
	require.NoError(t, err)

	d, ok := reg.Descriptor(pieces.Foliage)
	require.True(t, ok)
	assert.Equal(t, 400, d.MaxInstances)
	assert.Equal(t, 1.0, d.Scale.X())
	assert.Equal(t, []pieces.PieceType{pieces.Ground, pieces.Rock, pieces.Decoration}, reg.ThemeSet(pieces.Desert))
}

func TestParseRegistryYAML_Invalid(t *testing.T) {
	_, err := pieces.ParseRegistryYAML([]byte("pieces:\n  rock:\n    spawn_weight: 0\n"))
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))

	_, err = pieces.ParseRegistryYAML([]byte("themes:\n  swamp: [ground]\n"))
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))
}

func TestLoadRegistryYAML_MissingFile(t *testing.T) {
	_, err := pieces.LoadRegistryYAML(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, errs.IsConfiguration(err))

	path := filepath.Join(t.TempDir(), "pieces.yaml")
	require.NoError(t, os.WriteFile(path, []byte("themes:\n  cave: [rock]\n"), 0o644))
	reg, err := pieces.LoadRegistryYAML(path)
	require.NoError(t, err)
	assert.Equal(t, []pieces.PieceType{pieces.Rock}, reg.ThemeSet(pieces.Cave))
}
