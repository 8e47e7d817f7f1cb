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

// Command madctl builds GPU workload container images and dispatches
// their run scripts across a configurable execution backend: in-process,
// SSH, SLURM, Ansible, or Kubernetes Jobs.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/amd/madctl/internal/metrics"
)

// version, commit, and date are overridden at build time via
// -ldflags "-X main.version=... -X main.commit=... -X main.date=...",
// mirroring the teacher's own release-metadata pattern.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cli.Command{
		Name:                  "madctl",
		EnableShellCompletion: true,
		Usage:                 "Build and run GPU workload containers across local, SSH, SLURM, Ansible, or Kubernetes backends",
		Version:               fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		Description: `madctl drives the Build -> Run pipeline: discover tagged models, build one
container image per (model, dockerfile, GPU architecture), then dispatch
each image's run script to an execution backend and collect a Result CSV.`,
		Commands: []*cli.Command{
			buildCmd(),
			runCmd(),
			fullCmd(),
			generateCmd(),
			exportConfigCmd(),
		},
	}

	err := root.Run(ctx, os.Args)
	os.Exit(exitCode(err))
}

// exitCode extracts the process exit code from the Action's returned
// error: an ExitCoder carries its own code (2 for invalid invocation, 1
// for a phase failure), nil means success, and anything else is an
// unexpected failure reported as exit code 1.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		if msg := ec.Error(); msg != "" {
			slog.Error(msg)
		}
		return ec.ExitCode()
	}

	slog.Error(err.Error())
	return 1
}

// startMetricsServer launches the ambient /metrics, /health, /ready
// server in the background for the duration of a subcommand's Action,
// returning a closure that stops it and waits for its shutdown. An
// empty addr disables serving, matching metrics.Server.Run's contract.
func startMetricsServer(ctx context.Context, addr string) func() {
	serverCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		if err := metrics.NewServer(addr).Run(serverCtx); err != nil {
			slog.Warn("metrics server stopped", "error", err)
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
