package imagebuilder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amd/madctl/internal/buildcontext"
	"github.com/amd/madctl/internal/credentials"
	"github.com/amd/madctl/internal/discovery"
)

func TestDetermineRegistryImageNameDockerHub(t *testing.T) {
	creds := credentials.Store{
		"dockerhub": {"repository": "myorg/myrepo"},
	}
	got := determineRegistryImageName("ci-resnet_resnet50", "docker.io", creds)
	assert.Equal(t, "myorg/myrepo:ci-resnet_resnet50", got)
}

func TestDetermineRegistryImageNameDockerHubNoCreds(t *testing.T) {
	got := determineRegistryImageName("ci-resnet_resnet50", "dockerhub", credentials.Store{})
	assert.Equal(t, "ci-resnet_resnet50", got)
}

func TestDetermineRegistryImageNamePrivateRegistry(t *testing.T) {
	creds := credentials.Store{
		"registry.example.com": {"repository": "team/models"},
	}
	got := determineRegistryImageName("ci-resnet_resnet50", "registry.example.com", creds)
	assert.Equal(t, "registry.example.com/team/models:ci-resnet_resnet50", got)
}

func TestDetermineRegistryImageNamePrivateRegistryNoCreds(t *testing.T) {
	got := determineRegistryImageName("ci-resnet_resnet50", "registry.example.com", credentials.Store{})
	assert.Equal(t, "registry.example.com/ci-resnet_resnet50", got)
}

func TestResolveBuildArgsMergesContextAndCredentials(t *testing.T) {
	ctx := buildcontext.New()
	ctx.SetDockerBuildArg("HTTP_PROXY", "http://proxy:8080")

	creds := credentials.Store{
		"myregistry": {"username": "alice", "token": "secret-token"},
	}

	b := New(ctx, nil, creds)
	args := b.resolveBuildArgs(discovery.ModelDescriptor{Name: "resnet", Cred: "myregistry"})

	assert.Equal(t, "http://proxy:8080", args["HTTP_PROXY"])
	assert.Equal(t, "alice", args["myregistry_USERNAME"])
	assert.Equal(t, "secret-token", args["myregistry_TOKEN"])
}

func TestResolveBuildArgsNoCredentialField(t *testing.T) {
	b := New(buildcontext.New(), nil, credentials.Store{})
	args := b.resolveBuildArgs(discovery.ModelDescriptor{Name: "resnet"})
	assert.Empty(t, args)
}

func TestResolveBuildTargetsPinnedArchSkipsFanOut(t *testing.T) {
	ctx := buildcontext.New()
	ctx.SetDockerBuildArg("MAD_SYSTEM_GPU_ARCHITECTURE", "gfx942")

	b := New(ctx, nil, credentials.Store{})
	targets := b.resolveBuildTargets(candidate{path: "nonexistent.Dockerfile"}, []string{"mi300x", "mi250"})
	assert.Equal(t, []string{""}, targets)
}

func TestResolveBuildTargetsFiltersIncompatibleArchs(t *testing.T) {
	dir := t.TempDir()
	dockerfile := filepath.Join(dir, "model.Dockerfile.rocm")
	require.NoError(t, os.WriteFile(dockerfile, []byte("ARG GPU_TARGETS=gfx942,gfx90a\nFROM scratch\n"), 0o644))

	b := New(buildcontext.New(), nil, credentials.Store{})
	targets := b.resolveBuildTargets(candidate{path: dockerfile}, []string{"mi300x", "mi100", "mi200"})

	assert.ElementsMatch(t, []string{"mi300x", "mi200"}, targets)
}

func TestResolveBuildTargetsNoCompatibleArchsReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	dockerfile := filepath.Join(dir, "model.Dockerfile.rocm")
	require.NoError(t, os.WriteFile(dockerfile, []byte("ARG MAD_SYSTEM_GPU_ARCHITECTURE=gfx908\nFROM scratch\n"), 0o644))

	b := New(buildcontext.New(), nil, credentials.Store{})
	targets := b.resolveBuildTargets(candidate{path: dockerfile}, []string{"mi300x"})

	assert.Empty(t, targets)
}

func TestResolveContextDirDefaultsWhenUnset(t *testing.T) {
	assert.Equal(t, "./docker", resolveContextDir(discovery.ModelDescriptor{Name: "resnet"}))
	assert.Equal(t, "scripts/resnet", resolveContextDir(discovery.ModelDescriptor{Name: "resnet", DockerContext: "scripts/resnet"}))
}
