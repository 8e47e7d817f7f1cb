package discovery

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModelsJSON(t *testing.T, path string, models []ModelDescriptor) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	data, err := json.Marshal(models)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestDiscoverTopLevelAndScripts(t *testing.T) {
	dir := t.TempDir()
	writeModelsJSON(t, filepath.Join(dir, "models.json"), []ModelDescriptor{
		{Name: "dummy", Dockerfile: "dummy.Dockerfile", Tags: []string{"smoke"}},
	})
	writeModelsJSON(t, filepath.Join(dir, "scripts", "resnet", "models.json"), []ModelDescriptor{
		{Name: "resnet50", Dockerfile: "resnet50.Dockerfile", Tags: []string{"vision"}},
	})

	models, err := Discover(dir)
	require.NoError(t, err)
	require.Len(t, models, 2)

	names := map[string]ModelDescriptor{}
	for _, m := range models {
		names[m.Name] = m
	}

	_, ok := names["dummy"]
	assert.True(t, ok)

	resnet, ok := names["resnet/resnet50"]
	require.True(t, ok)
	assert.Equal(t, filepath.Join("scripts", "resnet", "resnet50.Dockerfile"), resnet.Dockerfile)
}

func TestDiscoverMissingModelsJSON(t *testing.T) {
	dir := t.TempDir()
	_, err := Discover(dir)
	assert.Error(t, err)
}

func TestSelectByTagsWildcard(t *testing.T) {
	models := []ModelDescriptor{{Name: "a"}, {Name: "b"}}
	selected, err := SelectByTags(models, []string{"all"})
	require.NoError(t, err)
	assert.Len(t, selected, 2)
}

func TestSelectByTagsNoMatchErrors(t *testing.T) {
	models := []ModelDescriptor{{Name: "a", Tags: []string{"x"}}}
	_, err := SelectByTags(models, []string{"nonexistent"})
	assert.Error(t, err)
}

func TestValidateTagsRejectsReservedWord(t *testing.T) {
	assert.False(t, ValidateTags([]string{"all"}))
	assert.True(t, ValidateTags([]string{"vision", "smoke"}))
}
