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

// Package credentials loads the registry/cloud credential store used by
// the Container Driver and Data collaborator. A missing or malformed
// file is never fatal: it is logged and treated as an empty store,
// mirroring _load_credentials in original_source's
// src/madengine/core/constants.py.
package credentials

import (
	"encoding/json"
	"log/slog"
	"os"
)

// DefaultFile is the credential file name consulted when no explicit
// path is given, matching CRED_FILE in the Python source.
const DefaultFile = "credential.json"

// Store is the raw decoded credential document: registry name or
// provider key to an arbitrary JSON object of settings.
type Store map[string]map[string]any

// Load reads path (DefaultFile if empty) and returns its decoded
// contents. A missing file or invalid JSON is logged and yields an empty
// Store: the caller proceeds with defaults exactly as the Python
// original does.
func Load(path string) Store {
	if path == "" {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("credentials file not found, using defaults", "path", path)
		} else {
			slog.Debug("error reading credentials file, using defaults", "path", path, "error", err)
		}
		return Store{}
	}

	var store Store
	if err := json.Unmarshal(data, &store); err != nil {
		slog.Debug("error parsing credentials file, using defaults", "path", path, "error", err)
		return Store{}
	}

	slog.Debug("credentials loaded", "path", path)
	return store
}

// Registry returns the credential object for a named registry or
// provider key ("dockerhub", "MAD_AWS_S3", "MAD_MINIO", ...), and
// whether it was present.
func (s Store) Registry(name string) (map[string]any, bool) {
	v, ok := s[name]
	return v, ok
}
