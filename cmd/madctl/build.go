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
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/amd/madctl/internal/config"
	"github.com/amd/madctl/internal/console"
	"github.com/amd/madctl/internal/container"
	"github.com/amd/madctl/internal/logging"
	"github.com/amd/madctl/internal/orchestrator"
)

func buildCmd() *cli.Command {
	return &cli.Command{
		Name:                  "build",
		EnableShellCompletion: true,
		Usage:                 "Build Docker images for tagged models and write a Build Manifest",
		Description: `Discovers models under --model-dir, selects those matching --tags, builds
one image per (model, applicable dockerfile, GPU architecture) combination
through the Container Driver, optionally pushes to --registry, and writes
the resulting Build Manifest to --manifest-output.

Examples:

  madctl build --tags resnet bert --registry localhost:5000
  madctl build --tags all --clean-docker-cache --manifest-output build_manifest.json`,
		Flags: []cli.Flag{
			tagsFlag,
			registryFlag,
			&cli.BoolFlag{
				Name:  "clean-docker-cache",
				Usage: "Rebuild Docker images without using the build cache",
			},
			&cli.StringFlag{
				Name:  "manifest-output",
				Value: "build_manifest.json",
				Usage: "Output file for the Build Manifest",
			},
			&cli.StringSliceFlag{
				Name:  "target-archs",
				Usage: "GPU architectures to build for (can be repeated; empty builds every declared architecture)",
			},
			additionalContextFlag,
			additionalContextFileFlag,
			modelDirFlag,
			credentialFileFlag,
			logLevelFlag,
			metricsAddrFlag,
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			tags := cmd.StringSlice("tags")
			if len(tags) == 0 {
				return invalidInvocation("--tags requires at least one value")
			}

			extraContext, err := resolveAdditionalContext(cmd)
			if err != nil {
				return err
			}

			logging.SetDefaultStructuredLoggerWithLevel("madctl", version, cmd.String("log-level"))
			stopMetrics := startMetricsServer(ctx, cmd.String("metrics-addr"))
			defer stopMetrics()

			driver := container.New(console.New())
			o := orchestrator.New(driver)

			args := orchestrator.BuildArgs{
				ModelDir:       cmd.String("model-dir"),
				Tags:           tags,
				Registry:       cmd.String("registry"),
				CleanCache:     cmd.Bool("clean-docker-cache"),
				TargetArchs:    cmd.StringSlice("target-archs"),
				CredentialFile: cmd.String("credential-file"),
				ManifestPath:   cmd.String("manifest-output"),
				ExtraContext:   extraContext,
			}

			report, err := o.Build(ctx, args)
			if err != nil {
				slog.Error("build phase failed", "error", err)
				return phaseFailure(err.Error())
			}

			slog.Info("build phase finished",
				"successful_builds", len(report.Summary.SuccessfulBuilds),
				"failed_builds", len(report.Summary.FailedBuilds),
				"manifest", args.ManifestPath,
			)

			if len(report.Summary.FailedBuilds) > 0 {
				return phaseFailure(fmt.Sprintf("%d model build(s) failed", len(report.Summary.FailedBuilds)))
			}
			return nil
		},
	}
}

// configurationFromFlags seeds a Configuration from the environment and
// overlays the ambient flags common to every subcommand, per
// config.FromEnvironment's CLI-flags-fill-in-the-rest contract.
func configurationFromFlags(cmd *cli.Command) config.Configuration {
	cfg := config.FromEnvironment()
	cfg.ModelDir = cmd.String("model-dir")
	cfg.CredentialFile = cmd.String("credential-file")
	cfg.LogLevel = cmd.String("log-level")
	cfg.MetricsAddr = cmd.String("metrics-addr")
	return cfg
}
