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

// Package manifest persists the Build Manifest, the JSON artifact that
// decouples the Build phase from the Run phase: per-image metadata,
// per-model metadata, a Context snapshot, and required credential keys.
package manifest

import (
	"encoding/json"
	"os"

	"github.com/amd/madctl/internal/errs"
)

// BuildEntry is the per-image record recorded during the Build phase.
type BuildEntry struct {
	DockerImage    string  `json:"docker_image"`
	Dockerfile     string  `json:"dockerfile"`
	BaseDocker     string  `json:"base_docker,omitempty"`
	BaseDockerSHA  string  `json:"docker_sha,omitempty"`
	BuildDuration  float64 `json:"build_duration"`
	BuildCommand   string  `json:"build_command,omitempty"`
	LogFile        string  `json:"log_file,omitempty"`
	GPUArchitecture string `json:"gpu_architecture,omitempty"`
	Registry       string  `json:"registry,omitempty"`
	RegistryImage  string  `json:"registry_image,omitempty"`
	PushFailed     bool    `json:"push_failed,omitempty"`
	PushError      string  `json:"push_error,omitempty"`
}

// PushFailure is one entry of the manifest's optional push_failures list.
type PushFailure struct {
	Image                   string `json:"image"`
	IntendedRegistryImage   string `json:"intended_registry_image"`
	Error                   string `json:"error"`
}

// Manifest is the Build Manifest file format (§3/§6).
type Manifest struct {
	BuiltImages         map[string]BuildEntry  `json:"built_images"`
	BuiltModels         map[string]any         `json:"built_models"`
	Context             map[string]any         `json:"context"`
	CredentialsRequired []string               `json:"credentials_required"`
	PushFailures        []PushFailure          `json:"push_failures,omitempty"`
	Registry            string                 `json:"registry,omitempty"`
}

// New returns an empty Manifest ready to accumulate build entries.
func New() *Manifest {
	return &Manifest{
		BuiltImages:         map[string]BuildEntry{},
		BuiltModels:         map[string]any{},
		CredentialsRequired: []string{},
	}
}

// Save writes m to path as indented JSON.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errs.Orchestration("manifest.Save", "failed to marshal build manifest", errs.WithCause(err))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.Orchestration("manifest.Save", "failed to write build manifest", errs.WithCause(err), errs.WithContext(errs.Context{FilePath: path}))
	}
	return nil
}

// Load reads and parses a Manifest from path. A missing or unparseable
// manifest is a configuration-level failure that aborts the Run phase
// (per spec.md §8's "missing manifest file at Run-phase start").
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Configuration("manifest.Load", "build manifest not found", errs.WithCause(err), errs.WithContext(errs.Context{FilePath: path}))
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errs.Configuration("manifest.Load", "build manifest is not valid JSON", errs.WithCause(err), errs.WithContext(errs.Context{FilePath: path}))
	}
	return &m, nil
}
