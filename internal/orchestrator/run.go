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

package orchestrator

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/amd/madctl/internal/buildcontext"
	"github.com/amd/madctl/internal/container"
	"github.com/amd/madctl/internal/discovery"
	"github.com/amd/madctl/internal/errs"
	"github.com/amd/madctl/internal/manifest"
	"github.com/amd/madctl/internal/metrics"
	"github.com/amd/madctl/internal/runner"
	"github.com/amd/madctl/internal/runner/registry"
)

var resultCSVColumns = []string{"model", "n_gpus", "dockerfile", "machine_name", "gpu_architecture", "performance", "metric", "status", "dataname"}

// Run executes spec.md §4.10's Run phase: load the manifest, restore its
// Context, arch-filter the built images, and dispatch each surviving
// (image, model) pair either to a configured Runner or in-process.
func (o *Orchestrator) Run(ctx context.Context, args RunArgs) (*RunReport, error) {
	m, err := manifest.Load(args.ManifestPath)
	if err != nil {
		return nil, err
	}
	buildCtx := buildcontext.FromSnapshot(m.Context)

	filtered := manifest.FilterByArch(m.BuiltImages, args.CurrentArch)

	var csvWriter *csv.Writer
	if args.ResultsCSV != "" {
		f, err := openResultsCSV(args.ResultsCSV)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		csvWriter = csv.NewWriter(f)
		defer csvWriter.Flush()
	}

	report := &RunReport{}

	if args.RunnerKind != "" && args.RunnerKind != "local" {
		return o.runViaBackend(ctx, args, m, filtered, csvWriter, report)
	}
	return o.runInProcess(ctx, args, m, filtered, buildCtx, csvWriter, report)
}

func (o *Orchestrator) runViaBackend(ctx context.Context, args RunArgs, m *manifest.Manifest, filtered map[string]manifest.BuildEntry, csvWriter *csv.Writer, report *RunReport) (*RunReport, error) {
	r, err := registry.Create(registry.Kind(args.RunnerKind))
	if err != nil {
		return nil, err
	}

	tags := make([]string, 0, len(filtered))
	for tag := range filtered {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	workload := runner.WorkloadSpec{
		ModelTags:    tags,
		ManifestPath: args.ManifestPath,
		TimeoutSecs:  args.TimeoutSecs,
		Registry:     m.Registry,
	}

	dist, err := runner.Run(ctx, r, workload, true, args.Nodes)
	if err != nil {
		return nil, err
	}

	report.Total = dist.TotalNodes
	report.Successful = dist.Successful
	report.Failed = dist.Failed
	report.TotalDuration = dist.TotalDuration
	report.Results = dist.Results

	for _, res := range dist.Results {
		entry := filtered[res.ModelTag]
		model, _ := lookupModel(m, res.ModelTag)
		if csvWriter != nil {
			writeResultRow(csvWriter, res, entry, model)
		}
	}

	return report, nil
}

func (o *Orchestrator) runInProcess(ctx context.Context, args RunArgs, m *manifest.Manifest, filtered map[string]manifest.BuildEntry, buildCtx *buildcontext.Context, csvWriter *csv.Writer, report *RunReport) (*RunReport, error) {
	tags := make([]string, 0, len(filtered))
	for tag := range filtered {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	timeout := 2 * time.Hour
	if args.TimeoutSecs > 0 {
		timeout = time.Duration(args.TimeoutSecs) * time.Second
	}

	for _, tag := range tags {
		entry := filtered[tag]
		model, _ := lookupModel(m, tag)

		result := o.runSingleInProcess(ctx, tag, entry, model, buildCtx, timeout)
		report.Results = append(report.Results, result)
		report.Total++
		report.TotalDuration += result.DurationSecs
		if result.Status == runner.StatusSuccess {
			report.Successful++
		} else {
			report.Failed++
		}

		if csvWriter != nil {
			writeResultRow(csvWriter, result, entry, model)
		}
	}

	return report, nil
}

func (o *Orchestrator) runSingleInProcess(ctx context.Context, tag string, entry manifest.BuildEntry, model discovery.ModelDescriptor, buildCtx *buildcontext.Context, timeout time.Duration) runner.ExecutionResult {
	start := time.Now()
	containerName := fmt.Sprintf("madctl-run-%s", sanitizeContainerName(tag))

	modelTag := model.Name
	if modelTag == "" {
		modelTag = tag
	}

	env := map[string]string{}
	for k, v := range buildCtx.DockerEnvVars() {
		if s, ok := v.(string); ok {
			env[k] = s
		}
	}
	mounts := map[string]string{}
	for k, v := range buildCtx.DockerMounts() {
		if s, ok := v.(string); ok {
			mounts[k] = s
		}
	}

	if o.data != nil && model.Data != "" {
		if dataEnv, err := o.data.Env(ctx, model.Data); err == nil {
			for k, v := range dataEnv {
				env[k] = v
			}
		}
		if mps, err := o.data.MountPaths(ctx, model.Data); err == nil {
			for _, mp := range mps {
				mounts[mp.Path] = mp.Home
			}
		}
	}

	handle, err := o.driver.Run(ctx, tag, container.RunOptions{
		Name:      containerName,
		DockerOpt: dockerOptFor(buildCtx),
		Mounts:    mounts,
		Env:       env,
	})
	if err != nil {
		metrics.RunnerExecutionsTotal.WithLabelValues("inprocess", "failure").Inc()
		return runner.ExecutionResult{NodeID: "localhost", ModelTag: modelTag, Status: runner.StatusFailure, ErrorMessage: err.Error()}
	}
	defer handle.Close(ctx)

	if o.data != nil && model.Data != "" {
		if err := o.data.Prepare(ctx, model.Data, handle); err != nil {
			metrics.RunnerExecutionsTotal.WithLabelValues("inprocess", "failure").Inc()
			return runner.ExecutionResult{NodeID: "localhost", ModelTag: modelTag, Status: runner.StatusFailure, ErrorMessage: err.Error()}
		}
	}

	script := model.Scripts
	if script == "" {
		script = "./run.sh"
	}

	_, err = handle.Exec(ctx, fmt.Sprintf("bash %s", script), timeout, "")
	duration := time.Since(start).Seconds()
	metrics.ExecutionDurationSeconds.WithLabelValues("inprocess").Observe(duration)

	if err != nil {
		status := runner.StatusFailure
		if errs.IsTimeout(err) {
			status = runner.StatusTimeout
		}
		metrics.RunnerExecutionsTotal.WithLabelValues("inprocess", strings.ToLower(string(status))).Inc()
		return runner.ExecutionResult{NodeID: "localhost", ModelTag: modelTag, Status: status, DurationSecs: duration, ErrorMessage: err.Error()}
	}

	metrics.RunnerExecutionsTotal.WithLabelValues("inprocess", "success").Inc()
	return runner.ExecutionResult{NodeID: "localhost", ModelTag: modelTag, Status: runner.StatusSuccess, DurationSecs: duration}
}

func dockerOptFor(buildCtx *buildcontext.Context) string {
	if gpus := buildCtx.DockerGPUs(); gpus != "" {
		return fmt.Sprintf("--gpus %s", gpus)
	}
	return ""
}

// lookupModel recovers a typed ModelDescriptor from the manifest's
// generic built_models map, which decodes from JSON as map[string]any.
func lookupModel(m *manifest.Manifest, tag string) (discovery.ModelDescriptor, bool) {
	raw, ok := m.BuiltModels[tag]
	if !ok {
		return discovery.ModelDescriptor{}, false
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return discovery.ModelDescriptor{}, false
	}
	var model discovery.ModelDescriptor
	if err := json.Unmarshal(data, &model); err != nil {
		return discovery.ModelDescriptor{}, false
	}
	return model, true
}

func sanitizeContainerName(tag string) string {
	var b strings.Builder
	for _, r := range tag {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}

// openResultsCSV opens path for append, writing the header row first if
// the file is new, per spec.md §6's mandatory result CSV columns.
func openResultsCSV(path string) (*os.File, error) {
	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errs.Orchestration("orchestrator.openResultsCSV", "failed to open results CSV", errs.WithCause(err), errs.WithContext(errs.Context{FilePath: path}))
	}

	if isNew {
		w := csv.NewWriter(f)
		if err := w.Write(resultCSVColumns); err != nil {
			f.Close()
			return nil, errs.Orchestration("orchestrator.openResultsCSV", "failed to write results CSV header", errs.WithCause(err))
		}
		w.Flush()
	}

	return f, nil
}

// writeResultRow appends one row per spec.md §4.10 step 3's "append one
// row to perf.csv", serialized by the caller's single csv.Writer.
func writeResultRow(w *csv.Writer, result runner.ExecutionResult, entry manifest.BuildEntry, model discovery.ModelDescriptor) {
	row := []string{
		result.ModelTag,
		model.NGPUs,
		entry.Dockerfile,
		result.NodeID,
		entry.GPUArchitecture,
		"",
		"",
		string(result.Status),
		model.Data,
	}
	_ = w.Write(row)
}
