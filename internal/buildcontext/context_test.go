package buildcontext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeOrderLaterWins(t *testing.T) {
	c := New()
	c.Merge(map[string]any{"gpu_vendor": "amd"})
	c.Merge(map[string]any{"gpu_vendor": "nvidia"})

	assert.Equal(t, "nvidia", c.GPUVendor())
}

func TestMergeNestedMaps(t *testing.T) {
	c := New()
	c.SetDockerBuildArg("A", "1")
	c.Merge(map[string]any{
		"docker_build_arg": map[string]any{"B": "2"},
	})

	args := c.DockerBuildArg()
	assert.Equal(t, "1", args["A"])
	assert.Equal(t, "2", args["B"])
}

func TestSnapshotRoundTrip(t *testing.T) {
	c := New()
	c.Set("gpu_vendor", "amd")
	c.SetDockerEnvVar("HIP_VISIBLE_DEVICES", "0")

	snap := c.Snapshot()
	restored := FromSnapshot(snap)

	assert.Equal(t, "amd", restored.GPUVendor())
	assert.Equal(t, "0", restored.DockerEnvVars()["HIP_VISIBLE_DEVICES"])
}

func TestGetDottedPath(t *testing.T) {
	c := New()
	c.SetDockerBuildArg("BASE_DOCKER", "rocm/pytorch:latest")

	v, ok := c.Get("docker_build_arg.BASE_DOCKER")
	assert.True(t, ok)
	assert.Equal(t, "rocm/pytorch:latest", v)

	_, ok = c.Get("docker_build_arg.MISSING")
	assert.False(t, ok)
}
