package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileReturnsEmptyConfig(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Empty(t, cfg)
}

func TestLoadConfigMalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigParsesDatasetSourceTree(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"imagenet": {"local": {"path": "/data/imagenet"}}}`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Contains(t, cfg, "imagenet")
	assert.Equal(t, "/data/imagenet", cfg["imagenet"][KindLocal]["path"])
}

func TestConfigOverrideLaterWins(t *testing.T) {
	base := Config{"imagenet": {KindLocal: {"path": "/a"}}}
	override := Config{"imagenet": {KindLocal: {"path": "/b"}}}

	merged := base.Override(override)
	assert.Equal(t, "/b", merged["imagenet"][KindLocal]["path"])
}

func TestConfigOverrideAddsNewDataset(t *testing.T) {
	base := Config{"imagenet": {KindLocal: {"path": "/a"}}}
	override := Config{"coco": {KindLocal: {"path": "/c"}}}

	merged := base.Override(override)
	assert.Contains(t, merged, "imagenet")
	assert.Contains(t, merged, "coco")
}

func TestWithForceMirrorLocalSkipsLocalKind(t *testing.T) {
	cfg := Config{
		"imagenet": {
			KindLocal:  {"path": "/a"},
			KindCustom: {"path": "/b"},
		},
	}

	out := cfg.WithForceMirrorLocal("/forced")
	_, hasMirror := out["imagenet"][KindLocal]["mirrorlocal"]
	assert.False(t, hasMirror)
	assert.Equal(t, "/forced", out["imagenet"][KindCustom]["mirrorlocal"])
}

func TestWithForceMirrorLocalNoopWhenPathEmpty(t *testing.T) {
	cfg := Config{"imagenet": {KindLocal: {"path": "/a"}}}
	out := cfg.WithForceMirrorLocal("")
	assert.Equal(t, cfg, out)
}
