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

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amd/madctl/internal/manifest"
)

func TestGenerateCmdStructure(t *testing.T) {
	cmd := generateCmd()
	assert.Equal(t, "generate", cmd.Name)
	require.Len(t, cmd.Commands, 2)
	assert.Equal(t, "ansible", cmd.Commands[0].Name)
	assert.Equal(t, "k8s", cmd.Commands[1].Name)
}

func TestGenerateAnsibleRequiresManifestFile(t *testing.T) {
	cmd := generateAnsibleCmd()
	err := cmd.Run(context.Background(), []string{"ansible"})
	require.Error(t, err)
}

func TestGenerateAnsibleWritesInventoryAndPlaybooks(t *testing.T) {
	dir := t.TempDir()

	m := manifest.New()
	m.BuiltImages["resnet50"] = manifest.BuildEntry{DockerImage: "local/resnet50:latest"}
	manifestPath := filepath.Join(dir, "build_manifest.json")
	require.NoError(t, m.Save(manifestPath))

	inventoryPath := filepath.Join(dir, "inventory.json")
	require.NoError(t, os.WriteFile(inventoryPath, []byte(`{"nodes":[{"hostname":"gpu-a","address":"10.0.0.1","username":"mad"}]}`), 0o644))

	outDir := filepath.Join(dir, "out")

	cmd := generateAnsibleCmd()
	err := cmd.Run(context.Background(), []string{"ansible", "--manifest-file", manifestPath, "--inventory", inventoryPath, "--output", outDir})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(outDir, "inventory.ini"))
	assert.FileExists(t, filepath.Join(outDir, "resnet50.yml"))
}

func TestGenerateK8sRequiresManifestFile(t *testing.T) {
	cmd := generateK8sCmd()
	err := cmd.Run(context.Background(), []string{"k8s"})
	require.Error(t, err)
}

func TestGenerateK8sWritesOneJobPerNode(t *testing.T) {
	dir := t.TempDir()

	m := manifest.New()
	m.BuiltImages["resnet50"] = manifest.BuildEntry{DockerImage: "local/resnet50:latest"}
	manifestPath := filepath.Join(dir, "build_manifest.json")
	require.NoError(t, m.Save(manifestPath))

	inventoryPath := filepath.Join(dir, "inventory.json")
	require.NoError(t, os.WriteFile(inventoryPath, []byte(`{"nodes":[{"hostname":"gpu-a","address":"10.0.0.1","username":"mad"},{"hostname":"gpu-b","address":"10.0.0.2","username":"mad"}]}`), 0o644))

	outDir := filepath.Join(dir, "out")

	cmd := generateK8sCmd()
	err := cmd.Run(context.Background(), []string{"k8s", "--manifest-file", manifestPath, "--inventory", inventoryPath, "--output", outDir})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(outDir, "resnet50-gpu-a.yaml"))
	assert.FileExists(t, filepath.Join(outDir, "resnet50-gpu-b.yaml"))
}
