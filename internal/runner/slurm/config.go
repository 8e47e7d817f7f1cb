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

// Package slurm drives batch execution over a SLURM cluster: SSH to the
// login node, stage pre-generated job scripts, submit a setup job
// followed by a dependent job array, then poll squeue/sacct until every
// submission reaches a terminal state, grounded in
// original_source/src/madengine/runners/slurm_runner.py.
package slurm

import (
	"time"

	"github.com/amd/madctl/internal/runner"
)

// Config configures one SLURM Runner instance.
type Config struct {
	LoginNode      runner.NodeConfig
	JobScriptsDir  string
	WorkspacePath  string // shared filesystem path staged job scripts are copied to
	ConnectTimeout time.Duration
	PollInterval   time.Duration
}

// DefaultConfig mirrors the original tool's documented defaults.
func DefaultConfig() Config {
	return Config{
		WorkspacePath:  "/shared/madengine",
		ConnectTimeout: 30 * time.Second,
		PollInterval:   30 * time.Second,
	}
}

const (
	setupScriptName    = "setup_environment.sh"
	jobArrayScriptName = "madengine_job_array.sh"
	submitScriptName   = "submit_jobs.py"
)

var terminalStates = map[string]bool{
	"COMPLETED": true,
	"FAILED":    true,
	"CANCELLED": true,
	"TIMEOUT":   true,
	"NODE_FAIL": true,
}
