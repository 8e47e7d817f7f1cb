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

// Package ssh fans a workload out to a cluster of nodes reachable over
// SSH: connectivity probe, prerequisite check, per-node command
// composition and dispatch, and result harvest, grounded in
// original_source/runners/ssh's config/connectivity/command-building
// split (config_manager.py, ssh_client_manager.py, run.py).
package ssh

import "time"

// Config configures one SSH Runner instance.
type Config struct {
	MasterAddr    string // defaults to the first node's address when empty
	MasterPort    int
	RunTimeout    time.Duration
	ConnectTimeout time.Duration
	MaxRetries    int
	NCCLInterface string
	GlooInterface string
	SharedDataPath string
	CLIBinary     string
	WorkingDir    string
}

// DefaultConfig mirrors the original tool's documented defaults.
func DefaultConfig() Config {
	return Config{
		MasterPort:     4000,
		RunTimeout:     1 * time.Hour,
		ConnectTimeout: 30 * time.Second,
		MaxRetries:     3,
		NCCLInterface:  "ens14np0",
		GlooInterface:  "ens14np0",
		SharedDataPath: "/nfs/data",
		CLIBinary:      "madctl",
		WorkingDir:     "MAD",
	}
}
