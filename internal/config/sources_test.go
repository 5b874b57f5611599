package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSourcesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	yaml := `
sources:
  - name: acme
    website: https://acme.example
    enabled: true
    adapter: feed
    url: https://acme.example/feed
  - name: zenith
    enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	sources, err := LoadSourcesFile(path)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "acme", sources[0].Name)
	assert.Equal(t, "feed", sources[0].Adapter)
	assert.True(t, sources[0].Enabled)
	assert.False(t, sources[1].Enabled)
}

func TestLoadSourcesFile_Missing(t *testing.T) {
	_, err := LoadSourcesFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadSourcesFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sources: []\n"), 0644))

	_, err := LoadSourcesFile(path)
	assert.Error(t, err)
}

func TestLoadSourcesFile_UnnamedSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sources:\n  - website: https://x.example\n"), 0644))

	_, err := LoadSourcesFile(path)
	assert.Error(t, err)
}
