// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package buildcontext implements the merged build/runtime key-value tree
// consulted by the Image Builder to select dockerfile candidates and by
// the Orchestrator to pick which image to run on the current host.
package buildcontext

import (
	"strings"
)

// Context is a tree of key-value facts: detected host facts merged with
// user overrides. Merge order, later wins: detected -> file -> string ->
// model.
type Context struct {
	values map[string]any
}

// New returns an empty Context.
func New() *Context {
	return &Context{values: map[string]any{}}
}

// FromHostFacts seeds a Context with detected host facts.
func FromHostFacts(facts HostFacts) *Context {
	c := New()
	c.Set("gpu_vendor", facts.GPUVendor)
	c.Set("gpu_architecture", facts.GPUArchitecture)
	c.Set("host_os", facts.HostOS)
	c.Set("container_engine_version", facts.ContainerEngineVersion)
	c.Set("container_engine_active", facts.ContainerEngineActive)
	return c
}

// Merge overlays other on top of c, with other's values winning on
// conflict. Nested maps are merged recursively; everything else is a
// plain overwrite.
func (c *Context) Merge(other map[string]any) {
	c.values = mergeMaps(c.values, other)
}

func mergeMaps(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		if existing, ok := out[k]; ok {
			existingMap, existingIsMap := existing.(map[string]any)
			overlayMap, overlayIsMap := v.(map[string]any)
			if existingIsMap && overlayIsMap {
				out[k] = mergeMaps(existingMap, overlayMap)
				continue
			}
		}
		out[k] = v
	}
	return out
}

// Set assigns a top-level scalar or map value.
func (c *Context) Set(key string, value any) {
	c.values[key] = value
}

// Get resolves a dotted path ("docker_build_arg.BASE_DOCKER") against the
// context tree.
func (c *Context) Get(path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = c.values
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// GetString resolves path to a string, returning "" if absent or not a string.
func (c *Context) GetString(path string) string {
	v, ok := c.Get(path)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// nestedMap returns (creating if absent) the map at key.
func (c *Context) nestedMap(key string) map[string]any {
	m, ok := c.values[key].(map[string]any)
	if !ok {
		m = map[string]any{}
		c.values[key] = m
	}
	return m
}

// SetDockerEnvVar sets one entry of the docker_env_vars nested map.
func (c *Context) SetDockerEnvVar(key, value string) {
	c.nestedMap("docker_env_vars")[key] = value
}

// DockerEnvVars returns the docker_env_vars nested map.
func (c *Context) DockerEnvVars() map[string]any {
	return c.nestedMap("docker_env_vars")
}

// SetDockerMount sets one entry of the docker_mounts nested map
// (host path -> container path).
func (c *Context) SetDockerMount(hostPath, containerPath string) {
	c.nestedMap("docker_mounts")[hostPath] = containerPath
}

// DockerMounts returns the docker_mounts nested map.
func (c *Context) DockerMounts() map[string]any {
	return c.nestedMap("docker_mounts")
}

// SetDockerBuildArg sets one entry of the docker_build_arg nested map.
func (c *Context) SetDockerBuildArg(key, value string) {
	c.nestedMap("docker_build_arg")[key] = value
}

// DockerBuildArg returns the docker_build_arg nested map.
func (c *Context) DockerBuildArg() map[string]any {
	return c.nestedMap("docker_build_arg")
}

// GPUVendor is the gpu_vendor scalar selector.
func (c *Context) GPUVendor() string {
	return c.GetString("gpu_vendor")
}

// GPUArchitecture is the gpu_architecture scalar selector.
func (c *Context) GPUArchitecture() string {
	return c.GetString("gpu_architecture")
}

// DockerGPUs is the docker_gpus scalar selector (e.g. "all", "0,1").
func (c *Context) DockerGPUs() string {
	return c.GetString("docker_gpus")
}

// Snapshot returns a deep-enough copy of the underlying map tree, for
// persisting into the Build Manifest and restoring on Run.
func (c *Context) Snapshot() map[string]any {
	return mergeMaps(map[string]any{}, c.values)
}

// FromSnapshot reconstructs a Context from a previously captured snapshot.
func FromSnapshot(snapshot map[string]any) *Context {
	c := New()
	c.Merge(snapshot)
	return c
}

// HostFacts captures the facts C2 detects about the local machine.
type HostFacts struct {
	GPUVendor               string
	GPUArchitecture         string
	HostOS                  string
	ContainerEngineVersion  string
	ContainerEngineActive   bool
}
