package orchestrator

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amd/madctl/internal/buildcontext"
	"github.com/amd/madctl/internal/discovery"
	"github.com/amd/madctl/internal/manifest"
	"github.com/amd/madctl/internal/runner"
)

func TestRunFailsWhenManifestMissing(t *testing.T) {
	o := New(nil)
	_, err := o.Run(context.Background(), RunArgs{ManifestPath: filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)
}

func TestRunInProcessNoOpWhenArchFilterExcludesEverything(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.json")

	m := manifest.New()
	m.BuiltImages["img:gfx908"] = manifest.BuildEntry{DockerImage: "img:gfx908", GPUArchitecture: "gfx908"}
	require.NoError(t, m.Save(manifestPath))

	o := New(nil)
	report, err := o.Run(context.Background(), RunArgs{ManifestPath: manifestPath, CurrentArch: "mi300x"})

	require.NoError(t, err)
	assert.Equal(t, 0, report.Total)
	assert.Empty(t, report.Results)
}

func TestLookupModelRoundTripsFromGenericManifestMap(t *testing.T) {
	m := manifest.New()
	m.BuiltModels["img:latest"] = discovery.ModelDescriptor{Name: "resnet", NGPUs: "1", Data: "imagenet"}

	// Simulate the generic-map shape manifest.Load produces after a JSON round trip.
	data, err := json.Marshal(m.BuiltModels["img:latest"])
	require.NoError(t, err)
	var generic any
	require.NoError(t, json.Unmarshal(data, &generic))
	m.BuiltModels["img:latest"] = generic

	model, ok := lookupModel(m, "img:latest")
	require.True(t, ok)
	assert.Equal(t, "resnet", model.Name)
	assert.Equal(t, "1", model.NGPUs)
	assert.Equal(t, "imagenet", model.Data)
}

func TestLookupModelMissingTagReturnsFalse(t *testing.T) {
	m := manifest.New()
	_, ok := lookupModel(m, "absent")
	assert.False(t, ok)
}

func TestSanitizeContainerNameStripsInvalidCharacters(t *testing.T) {
	assert.Equal(t, "registry-example-com-resnet-latest", sanitizeContainerName("registry.example.com/resnet:latest"))
}

func TestDockerOptForEmitsGPUsFlagWhenSet(t *testing.T) {
	ctx := buildcontext.New()
	ctx.Set("docker_gpus", "all")
	assert.Equal(t, "--gpus all", dockerOptFor(ctx))
}

func TestDockerOptForEmptyWhenUnset(t *testing.T) {
	assert.Equal(t, "", dockerOptFor(buildcontext.New()))
}

func TestOpenResultsCSVWritesHeaderOnlyOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perf.csv")

	f1, err := openResultsCSV(path)
	require.NoError(t, err)
	w := csv.NewWriter(f1)
	require.NoError(t, w.Write([]string{"resnet", "1", "resnet.Dockerfile", "node1", "gfx942", "100", "tokens/s", "SUCCESS", "imagenet"}))
	w.Flush()
	require.NoError(t, f1.Close())

	f2, err := openResultsCSV(path)
	require.NoError(t, err)
	require.NoError(t, f2.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	reader := csv.NewReader(strings.NewReader(string(data)))
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, resultCSVColumns, rows[0])
}

func TestWriteResultRowEmitsMandatoryColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perf.csv")
	f, err := openResultsCSV(path)
	require.NoError(t, err)

	w := csv.NewWriter(f)
	writeResultRow(w, runner.ExecutionResult{ModelTag: "resnet", NodeID: "node1", Status: runner.StatusSuccess}, manifest.BuildEntry{Dockerfile: "resnet.Dockerfile", GPUArchitecture: "gfx942"}, discovery.ModelDescriptor{NGPUs: "1", Data: "imagenet"})
	w.Flush()
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	reader := csv.NewReader(strings.NewReader(string(data)))
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"resnet", "1", "resnet.Dockerfile", "node1", "gfx942", "", "", "SUCCESS", "imagenet"}, rows[1])
}
