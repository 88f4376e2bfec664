package playermanager_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annelo/envstream/internal/geom"
	"github.com/annelo/envstream/internal/playermanager"
)

func TestPlayerManager_AddGetRemove(t *testing.T) {
	pm := playermanager.NewPlayerManager()

	id := "player1"
	name := "Alice"
	pos := geom.Vec3{0, 0, 0}

	require.NoError(t, pm.AddPlayer(id, name, pos))
	assert.ErrorIs(t, pm.AddPlayer(id, name, pos), playermanager.ErrPlayerExists)

	p, err := pm.GetPlayer(id)
	require.NoError(t, err)
	assert.Equal(t, name, p.Name)
	assert.Equal(t, int32(100), p.Health)

	newPos := geom.Vec3{10, 5, 0}
	require.NoError(t, pm.UpdatePlayerPosition(id, newPos))
	p, _ = pm.GetPlayer(id)
	assert.Equal(t, newPos, p.Position)

	require.NoError(t, pm.UpdatePlayerHealth(id, 42))
	p, _ = pm.GetPlayer(id)
	assert.Equal(t, int32(42), p.Health)
	assert.Len(t, pm.GetAllPlayers(), 1)

	require.NoError(t, pm.RemovePlayer(id))
	_, err = pm.GetPlayer(id)
	assert.ErrorIs(t, err, playermanager.ErrPlayerNotFound)
	assert.ErrorIs(t, pm.RemovePlayer(id), playermanager.ErrPlayerNotFound)
}

func TestPlayerSource(t *testing.T) {
	pm := playermanager.NewPlayerManager()
	src := pm.Source("runner")

	_, err := src.Position()
	assert.ErrorIs(t, err, playermanager.ErrPlayerNotFound)

	require.NoError(t, pm.AddPlayer("runner", "Runner", geom.Vec3{5000, 0, 0}))
	pos, err := src.Position()
	require.NoError(t, err)
	assert.Equal(t, geom.Vec3{5000, 0, 0}, pos)
}
