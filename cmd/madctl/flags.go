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
	"encoding/json"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/amd/madctl/internal/errs"
)

// Flags shared by more than one subcommand, grounded on the teacher's
// pkg/cli package-level flag-var pattern (see kubeconfigFlag in
// pkg/cli/bundle.go).
var (
	modelDirFlag = &cli.StringFlag{
		Name:  "model-dir",
		Value: ".",
		Usage: "Root directory discovery walks for models.json descriptors",
	}
	credentialFileFlag = &cli.StringFlag{
		Name:  "credential-file",
		Value: "credential.json",
		Usage: "Path to the registry/cloud credential store",
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Value: "info",
		Usage: "Log level (debug, info, warn, error)",
	}
	metricsAddrFlag = &cli.StringFlag{
		Name:  "metrics-addr",
		Usage: "Bind address for the ambient /metrics, /health, /ready server (unset disables serving)",
	}
	tagsFlag = &cli.StringSliceFlag{
		Name:     "tags",
		Required: true,
		Usage:    "Tags to select models (can be repeated; 'all' selects every model)",
	}
	additionalContextFlag = &cli.StringFlag{
		Name:  "additional-context",
		Value: "{}",
		Usage: "Additional context, as a JSON object, overriding detected Context facts and --additional-context-file",
	}
	additionalContextFileFlag = &cli.StringFlag{
		Name:  "additional-context-file",
		Usage: "Additional context, as a JSON file, overriding detected Context facts; --additional-context keys take precedence over it",
	}
	dataConfigFileFlag = &cli.StringFlag{
		Name:  "data-config-file-name",
		Value: "data.json",
		Usage: "Dataset source configuration file consulted by the Data collaborator",
	}
	forceMirrorLocalFlag = &cli.StringFlag{
		Name:  "force-mirror-local",
		Usage: "Path forcing every non-local dataset source to mirror data locally under it",
	}
	inventoryFlag = &cli.StringFlag{
		Name:  "inventory",
		Usage: "Node inventory file (JSON or YAML); required when --runner-kind is not 'local'",
	}
	runnerKindFlag = &cli.StringFlag{
		Name:  "runner-kind",
		Value: "local",
		Usage: "Execution backend: local, ssh, slurm, ansible, or k8sjob",
	}
	kubeconfigFlag = &cli.StringFlag{
		Name:  "kubeconfig",
		Usage: "Path to a kubeconfig file (k8sjob runner only; empty uses in-cluster config)",
	}
	registryFlag = &cli.StringFlag{
		Name:  "registry",
		Usage: "Container registry to push built images to; the run phase does not read this flag and uses the registry recorded in the Build Manifest",
	}
)

// resolveAdditionalContext parses --additional-context-file (if set) and
// then --additional-context into one generic map, the inline keys
// overlaying the file's: "string overrides file, both override detected
// Context" precedence.
func resolveAdditionalContext(cmd *cli.Command) (map[string]any, error) {
	var sources []string
	if path := cmd.String("additional-context-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.Configuration("main.resolveAdditionalContext", "failed to read additional context file", errs.WithCause(err), errs.WithContext(errs.Context{FilePath: path}))
		}
		sources = append(sources, string(data))
	}
	sources = append(sources, cmd.String("additional-context"))

	ctx := map[string]any{}
	for _, raw := range sources {
		if raw == "" {
			continue
		}
		var layer map[string]any
		if err := json.Unmarshal([]byte(raw), &layer); err != nil {
			return nil, errs.Validation("main.resolveAdditionalContext", "additional context is not valid JSON", errs.WithCause(err))
		}
		for k, v := range layer {
			ctx[k] = v
		}
	}
	return ctx, nil
}

// invalidInvocation wraps a flag-level validation failure into an
// ExitCoder reporting exit code 2, distinguishing it from a phase
// failure (exit code 1) per spec's exit code contract.
func invalidInvocation(message string) error {
	return cli.Exit(message, 2)
}

// phaseFailure wraps an orchestrator-level error (or an aggregate
// failure count) into an ExitCoder reporting exit code 1.
func phaseFailure(message string) error {
	return cli.Exit(message, 1)
}
