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

// Package discovery walks a model directory for models.json descriptor
// files and selects models by tag, mirroring
// original_source/src/madengine/tools/discover_models.py's
// discover/select split without the dynamic get_models_json.py plugin
// mechanism (out of scope for this thin discovery collaborator; see
// SPEC_FULL.md §2).
package discovery

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/amd/madctl/internal/errs"
)

// ModelDescriptor is the immutable record produced by discovery.
type ModelDescriptor struct {
	Name              string   `json:"name"`
	Dockerfile        string   `json:"dockerfile"`
	DockerContext     string   `json:"dockercontext,omitempty"`
	Scripts           string   `json:"scripts,omitempty"`
	Owner             string   `json:"owner,omitempty"`
	NGPUs             string   `json:"n_gpus,omitempty"`
	Timeout           int      `json:"timeout,omitempty"`
	TrainingPrecision string   `json:"training_precision,omitempty"`
	Tags              []string `json:"tags,omitempty"`
	Cred              string   `json:"cred,omitempty"`
	Data              string   `json:"data,omitempty"`
	Args              string   `json:"args,omitempty"`
	MultipleResults   string   `json:"multiple_results,omitempty"`
	SkipGPUArch       []string `json:"skip_gpu_arch,omitempty"`
}

// reservedTag is never a legal tag value: it is the "select everything" wildcard.
const reservedTag = "all"

// Discover walks modelDir for a top-level models.json and one
// models.json per immediate subdirectory of modelDir/scripts, namespacing
// subdirectory models as "<dirname>/<name>", exactly as the Python
// original does (minus its dynamic get_models_json.py plugin path).
func Discover(modelDir string) ([]ModelDescriptor, error) {
	var all []ModelDescriptor

	rootPath := filepath.Join(modelDir, "models.json")
	rootModels, err := loadModelsFile(rootPath)
	if err != nil {
		return nil, errs.Discovery("discovery.Discover", "models.json not found", errs.WithCause(err), errs.WithContext(errs.Context{FilePath: rootPath}))
	}
	all = append(all, rootModels...)

	scriptsDir := filepath.Join(modelDir, "scripts")
	entries, err := os.ReadDir(scriptsDir)
	if err != nil {
		// No scripts/ directory is not an error: plenty of models live
		// entirely in the top-level models.json.
		return dedupeByName(all), nil
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		subPath := filepath.Join(scriptsDir, entry.Name(), "models.json")
		subModels, err := loadModelsFile(subPath)
		if err != nil {
			continue
		}
		for i := range subModels {
			subModels[i].Name = entry.Name() + "/" + subModels[i].Name
			subModels[i].Dockerfile = filepath.Join("scripts", entry.Name(), subModels[i].Dockerfile)
			if subModels[i].Scripts != "" {
				subModels[i].Scripts = filepath.Join("scripts", entry.Name(), subModels[i].Scripts)
			}
		}
		all = append(all, subModels...)
	}

	return dedupeByName(all), nil
}

func loadModelsFile(path string) ([]ModelDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var models []ModelDescriptor
	if err := json.Unmarshal(data, &models); err != nil {
		return nil, err
	}
	return models, nil
}

func dedupeByName(models []ModelDescriptor) []ModelDescriptor {
	seen := make(map[string]bool, len(models))
	out := make([]ModelDescriptor, 0, len(models))
	for _, m := range models {
		if seen[m.Name] {
			continue
		}
		seen[m.Name] = true
		out = append(out, m)
	}
	return out
}

// SelectByTags filters models matching any of tags: a tag matches a
// model whose Name equals the tag, whose Tags contains it, or when the
// tag is the reserved wildcard "all". Returns a discovery error when a
// tag matches nothing, mirroring the Python original's ValueError.
func SelectByTags(models []ModelDescriptor, tags []string) ([]ModelDescriptor, error) {
	var selected []ModelDescriptor
	for _, tag := range tags {
		matchedAny := false
		for _, m := range models {
			if m.Name == tag || tag == reservedTag || containsString(m.Tags, tag) {
				selected = append(selected, m)
				matchedAny = true
			}
		}
		if !matchedAny {
			return nil, errs.Discovery("discovery.SelectByTags", "no models found for tag", errs.WithContext(errs.Context{Extra: map[string]any{"tag": tag}}))
		}
	}
	return selected, nil
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// ValidateTags rejects the reserved wildcard token from appearing as a
// declared tag on a model, per the Model Descriptor invariant.
func ValidateTags(tags []string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, reservedTag) {
			return false
		}
	}
	return true
}
