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

// Package orchestrator drives the two-phase Build→Run pipeline: Build
// discovers models, fans builds out through the Image Builder, and
// writes a Build Manifest; Run reads that manifest back, restores the
// Context it was built under, and dispatches each filtered image either
// to a configured Runner or to an in-process container execution.
package orchestrator

import (
	"context"

	"github.com/amd/madctl/internal/container"
	"github.com/amd/madctl/internal/data"
	"github.com/amd/madctl/internal/imagebuilder"
	"github.com/amd/madctl/internal/manifest"
	"github.com/amd/madctl/internal/runner"
)

// BuildArgs is the Build-phase request (spec.md §4.10's numbered steps).
type BuildArgs struct {
	ModelDir       string
	Tags           []string
	Registry       string
	CleanCache     bool
	TargetArchs    []string
	CredentialFile string
	ManifestPath   string
	ExtraContext   map[string]any
}

// RunArgs is the Run-phase request.
type RunArgs struct {
	ManifestPath string
	CurrentArch  string
	RunnerKind   string
	TimeoutSecs  int
	Nodes        []runner.NodeConfig
	ResultsCSV   string
}

// BuildReport is the Build phase's outcome. A Full workflow's Run phase
// does not use its Manifest: it reads the manifest back from the path
// Build saved it to.
type BuildReport struct {
	Manifest *manifest.Manifest
	Summary  *imagebuilder.BuildSummary
}

// RunReport is the Run phase's aggregate outcome (spec.md §4.10 step 4).
type RunReport struct {
	Total         int
	Successful    int
	Failed        int
	TotalDuration float64
	Results       []runner.ExecutionResult
}

// Orchestrator wires the Build and Run phases together over a shared
// Container Driver. The zero value is not usable; construct with New.
type Orchestrator struct {
	driver *container.Driver
	data   *data.Data
}

// New returns an Orchestrator that drives builds and in-process runs
// through driver.
func New(driver *container.Driver) *Orchestrator {
	return &Orchestrator{driver: driver}
}

// WithData attaches the Data collaborator used by in-process runs to
// resolve per-model dataset mount paths, environment and staging before
// a model's run script is exec'd. A nil Data (the default) skips
// dataset resolution entirely, matching models with no "data" field.
func (o *Orchestrator) WithData(d *data.Data) *Orchestrator {
	o.data = d
	return o
}

// Full runs Build then Run with the same manifest path, per spec.md
// §4.10's "success iff both phases report no failures".
func (o *Orchestrator) Full(ctx context.Context, buildArgs BuildArgs, runArgs RunArgs) (*BuildReport, *RunReport, error) {
	buildReport, err := o.Build(ctx, buildArgs)
	if err != nil {
		return nil, nil, err
	}
	if len(buildReport.Summary.FailedBuilds) > 0 {
		return buildReport, &RunReport{}, nil
	}

	runArgs.ManifestPath = buildArgs.ManifestPath
	runReport, err := o.Run(ctx, runArgs)
	return buildReport, runReport, err
}
