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

func runCmd() *cli.Command {
	return &cli.Command{
		Name:                  "run",
		EnableShellCompletion: true,
		Usage:                 "Run model containers from a Build Manifest",
		Description: `Reads the Build Manifest written by "build", restores its Context, filters
built images down to the current GPU architecture, and dispatches each
(image, model) pair either to a configured execution backend
(--runner-kind) or in-process through the Container Driver.

Examples:

  madctl run --manifest-file build_manifest.json --timeout 3600 -o perf.csv
  madctl run --manifest-file build_manifest.json --runner-kind ssh --inventory nodes.yaml`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "manifest-file",
				Required: true,
				Usage:    "Build Manifest file written by the build phase",
			},
			registryFlag,
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
				Usage: "Accepted but has no effect beyond a warning: the model's run script is still executed",
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
			credentialFileFlag,
			logLevelFlag,
			metricsAddrFlag,
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logging.SetDefaultStructuredLoggerWithLevel("madctl", version, cmd.String("log-level"))
			stopMetrics := startMetricsServer(ctx, cmd.String("metrics-addr"))
			defer stopMetrics()

			if cmd.Bool("skip-model-run") {
				slog.Warn("--skip-model-run has no effect; the run script will still be executed")
			}

			report, err := executeRunPhase(ctx, cmd)
			if err != nil {
				slog.Error("run phase failed", "error", err)
				return phaseFailure(err.Error())
			}

			slog.Info("run phase finished", "total", report.Total, "successful", report.Successful, "failed", report.Failed)
			if report.Failed > 0 {
				return phaseFailure(fmt.Sprintf("%d model run(s) failed", report.Failed))
			}
			return nil
		},
	}
}

// executeRunPhase is shared by "run" and "full": resolve the runner
// backend and node set, register it, build the Data collaborator, and
// drive Orchestrator.Run.
func executeRunPhase(ctx context.Context, cmd *cli.Command) (*orchestrator.RunReport, error) {
	kind := cmd.String("runner-kind")
	nodes, err := loadNodes(kind, cmd.String("inventory"))
	if err != nil {
		return nil, err
	}
	if err := registerRunnerBackend(kind, nodes, cmd.String("kubeconfig")); err != nil {
		return nil, err
	}

	cfg := configurationFromFlags(cmd)
	dataCollab, err := buildDataCollaborator(cmd, cfg)
	if err != nil {
		return nil, err
	}

	driver := container.New(console.New())
	o := orchestrator.New(driver).WithData(dataCollab)

	timeoutSecs := cmd.Int("timeout")
	if timeoutSecs < 0 {
		timeoutSecs = 0
	}

	args := orchestrator.RunArgs{
		ManifestPath: cmd.String("manifest-file"),
		RunnerKind:   kind,
		TimeoutSecs:  int(timeoutSecs),
		Nodes:        nodes,
		ResultsCSV:   cmd.String("output"),
	}

	return o.Run(ctx, args)
}
