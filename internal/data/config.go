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

package data

import (
	"encoding/json"
	"os"

	"github.com/amd/madctl/internal/errs"
)

// LoadConfig reads a dataset configuration file (data.json by
// convention): a JSON object of dataset name to source-kind to settings.
// A missing file yields an empty Config, matching the tolerant loading
// used throughout the ambient stack; a malformed file is an error since,
// unlike credentials, a broken dataset config silently starves every
// Run-phase data mount.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return nil, errs.Configuration("data.LoadConfig", "failed to read data configuration", errs.WithCause(err), errs.WithContext(errs.Context{FilePath: path}))
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errs.Configuration("data.LoadConfig", "data configuration is not valid JSON", errs.WithCause(err), errs.WithContext(errs.Context{FilePath: path}))
	}
	return cfg, nil
}

// Override merges a context-sourced "data" override tree into cfg,
// later entries winning per dataset/kind key, mirroring Data.__init__'s
// "'data' context override self.data_provider_config in file".
func (c Config) Override(override Config) Config {
	if len(override) == 0 {
		return c
	}
	merged := Config{}
	for name, kinds := range c {
		merged[name] = kinds
	}
	for name, kinds := range override {
		existing, ok := merged[name]
		if !ok {
			merged[name] = kinds
			continue
		}
		combined := map[Kind]map[string]any{}
		for k, v := range existing {
			combined[k] = v
		}
		for k, v := range kinds {
			combined[k] = v
		}
		merged[name] = combined
	}
	return merged
}

// WithForceMirrorLocal overwrites the "mirrorlocal" setting across every
// dataset and source kind except "local" (which rejects it), matching
// Data.__init__'s force_mirrorlocal constructor argument.
func (c Config) WithForceMirrorLocal(path string) Config {
	if path == "" {
		return c
	}
	out := Config{}
	for name, kinds := range c {
		newKinds := map[Kind]map[string]any{}
		for kind, settings := range kinds {
			if kind == KindLocal {
				newKinds[kind] = settings
				continue
			}
			newSettings := map[string]any{}
			for k, v := range settings {
				newSettings[k] = v
			}
			newSettings["mirrorlocal"] = path
			newKinds[kind] = newSettings
		}
		out[name] = newKinds
	}
	return out
}
