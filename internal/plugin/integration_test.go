package plugin_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annelo/envstream/internal/plugin"
)

// Requires: go build -buildmode=plugin -o plugins/sampleplugin/sampleplugin.so ./plugins/sampleplugin
func TestIntegration_SamplePlugin(t *testing.T) {
	pluginDir := filepath.Join("..", "..", "plugins", "sampleplugin")
	if _, err := os.Stat(filepath.Join(pluginDir, "sampleplugin.so")); err != nil {
		t.Skip("sampleplugin.so not built")
	}
	reg := plugin.NewDefaultRegistry()
	pm := plugin.NewPluginManager(pluginDir, nil)
	reg.MarkCore()
	require.NoError(t, pm.LoadPlugins(reg))

	metas := reg.PluginMetas()
	require.Len(t, metas, 1, "expected one plugin metadata")
	assert.Equal(t, "sampleplugin", metas[0].Name)

	_, ok := reg.ThemePolicy("rings")
	assert.True(t, ok, "expected rings theme policy")
	assert.NotEmpty(t, reg.Hooks(plugin.HookAfterChunkLoad))

	out, err := plugin.Dispatch(reg, "sampleinfo")
	assert.NoError(t, err)
	assert.Contains(t, out, "Greeting: Hello from SamplePlugin")
	assert.Contains(t, out, "Value: 123")
	assert.NotNil(t, reg.PluginConfig("sampleplugin"))
}
