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

// Package config assembles the orchestrator's Configuration once, in
// main, from CLI flags and environment variables. There is no
// package-level mutable configuration state: callers build a
// Configuration value and pass it down explicitly.
package config

import "os"

// Configuration holds every setting the orchestrator needs for a single
// invocation of build, run, or full.
type Configuration struct {
	// ModelDir is the root directory discovery walks for model
	// descriptors. Read from --model-dir or MODEL_DIR.
	ModelDir string

	// SetupModelDir, when set, points at a pre-staged model directory on
	// the target node, skipping the discovery walk's own copy step.
	// Read from MAD_SETUP_MODEL_DIR.
	SetupModelDir string

	// VerboseConfig enables extra diagnostic logging of the resolved
	// Context. Read from MAD_VERBOSE_CONFIG.
	VerboseConfig bool

	// NASNodes, AWSS3Bucket and MinioEndpoint are passed through
	// verbatim to the Data collaborator; the orchestrator never
	// validates or requires them.
	NASNodes      string
	AWSS3Bucket   string
	MinioEndpoint string

	// LogLevel selects the slog level ("debug", "info", "warn", "error").
	LogLevel string

	// MetricsAddr, when non-empty, binds the ambient metrics server.
	MetricsAddr string

	// CredentialFile is the path to credential.json. A missing or
	// malformed file is tolerated; see internal/credentials.
	CredentialFile string

	// ManifestFile is the Build Manifest path used by run/generate verbs.
	ManifestFile string

	// OutputDir is where build artifacts (manifest, generated playbooks
	// or Job manifests) are written.
	OutputDir string
}

// FromEnvironment seeds a Configuration from the environment variables
// named in spec.md's ambient configuration section, leaving CLI-flag
// driven fields zero for the caller to fill in.
func FromEnvironment() Configuration {
	return Configuration{
		ModelDir:      os.Getenv("MODEL_DIR"),
		SetupModelDir: os.Getenv("MAD_SETUP_MODEL_DIR"),
		VerboseConfig: os.Getenv("MAD_VERBOSE_CONFIG") != "",
		NASNodes:      os.Getenv("NAS_NODES"),
		AWSS3Bucket:   os.Getenv("MAD_AWS_S3"),
		MinioEndpoint: os.Getenv("MAD_MINIO"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
	}
}
