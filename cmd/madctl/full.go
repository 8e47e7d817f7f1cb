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

	"github.com/amd/madctl/internal/console"
	"github.com/amd/madctl/internal/container"
	"github.com/amd/madctl/internal/logging"
	"github.com/amd/madctl/internal/orchestrator"
)

// fullCmd is the union of build's and run's flags, per spec's
// "full = build + run" contract: Build runs first, and Run only starts
// if Build reported no failures.
func fullCmd() *cli.Command {
	return &cli.Command{
		Name:                  "full",
		EnableShellCompletion: true,
		Usage:                 "Build then run: the complete Build -> Run workflow",
		Description: `Runs the Build phase then, if it reports no failures, the Run phase against
the manifest Build just wrote. Exit code reflects both phases combined.

Example:

  madctl full --tags resnet --registry localhost:5000 --timeout 3600`,
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
				Usage: "Build Manifest file written by Build and read back by Run",
			},
			&cli.StringSliceFlag{
				Name:  "target-archs",
				Usage: "GPU architectures to build for (can be repeated; empty builds every declared architecture)",
			},
			additionalContextFlag,
			additionalContextFileFlag,
			&cli.IntFlag{
				Name:  "timeout",
				Value: -1,
				Usage: "Timeout for a model run in seconds; 0 or any negative value uses the runner's default (2 hours in-process), so no value disables the timeout",
			},
			&cli.BoolFlag{
				Name:  "keep-alive",
				Usage: "Accepted but not read: the run container is removed after the run completes",
			},
			&cli.BoolFlag{
				Name:  "keep-model-dir",
				Usage: "Accepted but not read by the run phase",
			},
			&cli.BoolFlag{
				Name:  "skip-model-run",
				Usage: "Accepted but not read: the model's run script is still executed",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "perf.csv",
				Usage:   "Result CSV output file",
			},
			runnerKindFlag,
			inventoryFlag,
			kubeconfigFlag,
			dataConfigFileFlag,
			forceMirrorLocalFlag,
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

			kind := cmd.String("runner-kind")
			nodes, err := loadNodes(kind, cmd.String("inventory"))
			if err != nil {
				return err
			}
			if err := registerRunnerBackend(kind, nodes, cmd.String("kubeconfig")); err != nil {
				return err
			}

			cfg := configurationFromFlags(cmd)
			dataCollab, err := buildDataCollaborator(cmd, cfg)
			if err != nil {
				return err
			}

			driver := container.New(console.New())
			o := orchestrator.New(driver).WithData(dataCollab)

			timeoutSecs := cmd.Int("timeout")
			if timeoutSecs < 0 {
				timeoutSecs = 0
			}

			buildArgs := orchestrator.BuildArgs{
				ModelDir:       cmd.String("model-dir"),
				Tags:           tags,
				Registry:       cmd.String("registry"),
				CleanCache:     cmd.Bool("clean-docker-cache"),
				TargetArchs:    cmd.StringSlice("target-archs"),
				CredentialFile: cmd.String("credential-file"),
				ManifestPath:   cmd.String("manifest-output"),
				ExtraContext:   extraContext,
			}
			runArgs := orchestrator.RunArgs{
				RunnerKind:  kind,
				TimeoutSecs: int(timeoutSecs),
				Nodes:       nodes,
				ResultsCSV:  cmd.String("output"),
			}

			buildReport, runReport, err := o.Full(ctx, buildArgs, runArgs)
			if err != nil {
				slog.Error("full workflow failed", "error", err)
				return phaseFailure(err.Error())
			}

			slog.Info("full workflow finished",
				"build_failed", len(buildReport.Summary.FailedBuilds),
				"run_failed", runReport.Failed,
			)

			if len(buildReport.Summary.FailedBuilds) > 0 || runReport.Failed > 0 {
				return phaseFailure(fmt.Sprintf("%d build failure(s), %d run failure(s)", len(buildReport.Summary.FailedBuilds), runReport.Failed))
			}
			return nil
		},
	}
}
