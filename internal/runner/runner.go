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

// Package runner defines the backend-agnostic contract every execution
// backend (SSH fan-out, SLURM batch, Ansible playbook, Kubernetes Job)
// implements, plus the inventory loader and node-selection logic shared
// by all of them.
package runner

import (
	"context"
	"sync"

	"github.com/amd/madctl/internal/errs"
)

// GPUVendor is the validated enum for a Node Config's declared vendor.
type GPUVendor string

const (
	VendorAMD    GPUVendor = "AMD"
	VendorNVIDIA GPUVendor = "NVIDIA"
	VendorIntel  GPUVendor = "INTEL"
)

func validVendor(v GPUVendor) bool {
	switch v {
	case VendorAMD, VendorNVIDIA, VendorIntel:
		return true
	default:
		return false
	}
}

// NodeConfig is one inventory entry: a physical host for the SSH runner,
// or a SLURM partition exposed as a logical node.
type NodeConfig struct {
	Hostname string            `json:"hostname" yaml:"hostname"`
	Address  string            `json:"address" yaml:"address"`
	Port     int               `json:"port,omitempty" yaml:"port,omitempty"`
	Username string            `json:"username,omitempty" yaml:"username,omitempty"`
	Password string            `json:"password,omitempty" yaml:"password,omitempty"`
	KeyPath  string            `json:"key_path,omitempty" yaml:"key_path,omitempty"`
	GPUCount int               `json:"gpu_count,omitempty" yaml:"gpu_count,omitempty"`
	GPUVendor GPUVendor        `json:"gpu_vendor" yaml:"gpu_vendor"`
	Labels   map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// Status is an Execution Result's terminal outcome.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
	StatusTimeout Status = "TIMEOUT"
)

// ExecutionResult is one (node, model) outcome, immutable once emitted.
type ExecutionResult struct {
	NodeID       string
	ModelTag     string
	Status       Status
	DurationSecs float64
	Metrics      map[string]float64
	ErrorMessage string
}

// DistributedResult aggregates the Execution Results of one workload run.
type DistributedResult struct {
	TotalNodes int
	Successful int
	Failed     int
	MaxDuration   float64
	TotalDuration float64
	Results       []ExecutionResult

	mu sync.Mutex
}

// Append records result, updating the aggregate counts atomically.
func (d *DistributedResult) Append(result ExecutionResult) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Results = append(d.Results, result)
	switch result.Status {
	case StatusSuccess:
		d.Successful++
	default:
		d.Failed++
	}
	d.TotalDuration += result.DurationSecs
	if result.DurationSecs > d.MaxDuration {
		d.MaxDuration = result.DurationSecs
	}
}

// WorkloadSpec is the Run-phase request handed to a Runner.
type WorkloadSpec struct {
	ModelTags    []string
	ManifestPath string
	TimeoutSecs  int
	Registry     string
	NodeSelector map[string]string
	ExtraEnv     map[string]string
}

// Validate implements C7's validate(workload): non-empty model tags, the
// manifest file must exist, and at least one node must remain after
// node_filter is applied to nodes.
func (w WorkloadSpec) Validate(manifestExists bool, nodes []NodeConfig) error {
	if len(w.ModelTags) == 0 {
		return errs.Validation("runner.Validate", "workload must declare at least one model tag")
	}
	if !manifestExists {
		return errs.Configuration("runner.Validate", "build manifest not found", errs.WithContext(errs.Context{FilePath: w.ManifestPath}))
	}
	if len(FilterNodes(nodes, w.NodeSelector)) == 0 {
		return errs.Configuration("runner.Validate", "no nodes remain after applying node selector")
	}
	return nil
}

// FilterNodes keeps nodes whose gpu_vendor equals selector["gpu_vendor"]
// (if present) and whose labels are a superset of every other selector
// key/value pair.
func FilterNodes(nodes []NodeConfig, selector map[string]string) []NodeConfig {
	if len(selector) == 0 {
		return nodes
	}

	var kept []NodeConfig
	for _, n := range nodes {
		if !nodeMatches(n, selector) {
			continue
		}
		kept = append(kept, n)
	}
	return kept
}

func nodeMatches(n NodeConfig, selector map[string]string) bool {
	for key, want := range selector {
		if key == "gpu_vendor" {
			if string(n.GPUVendor) != want {
				return false
			}
			continue
		}
		if n.Labels[key] != want {
			return false
		}
	}
	return true
}

// Runner is the lifecycle contract every execution backend implements.
type Runner interface {
	SetupInfrastructure(ctx context.Context, workload WorkloadSpec) (bool, error)
	ExecuteWorkload(ctx context.Context, workload WorkloadSpec) (*DistributedResult, error)
	CleanupInfrastructure(ctx context.Context, workload WorkloadSpec) (bool, error)
}

// Run is the convenience entry point: validate, setup, execute, with
// cleanup guaranteed on every exit path regardless of outcome.
func Run(ctx context.Context, r Runner, workload WorkloadSpec, manifestExists bool, nodes []NodeConfig) (*DistributedResult, error) {
	if err := workload.Validate(manifestExists, nodes); err != nil {
		return nil, err
	}

	defer func() {
		_, _ = r.CleanupInfrastructure(ctx, workload)
	}()

	ok, err := r.SetupInfrastructure(ctx, workload)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Orchestration("runner.Run", "infrastructure setup reported failure")
	}

	return r.ExecuteWorkload(ctx, workload)
}
