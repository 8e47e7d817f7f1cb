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

package ansible

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/amd/madctl/internal/console"
	"github.com/amd/madctl/internal/errs"
	"github.com/amd/madctl/internal/metrics"
	"github.com/amd/madctl/internal/runner"
)

// Runner drives ansible-playbook against a generated inventory and
// playbook pair, one play per ExecuteWorkload call.
type Runner struct {
	nodes   []runner.NodeConfig
	cfg     Config
	console *console.Console

	inventoryPath string
	playbookPath  string
}

// New returns a Runner over nodes, rendering its inventory under
// cfg.WorkDir.
func New(nodes []runner.NodeConfig, cfg Config) *Runner {
	return &Runner{nodes: nodes, cfg: cfg, console: console.New()}
}

var _ runner.Runner = (*Runner)(nil)

// SetupInfrastructure writes the rendered inventory to cfg.WorkDir and
// confirms the ansible-playbook binary is resolvable.
func (r *Runner) SetupInfrastructure(ctx context.Context, workload runner.WorkloadSpec) (bool, error) {
	if err := os.MkdirAll(r.cfg.WorkDir, 0o755); err != nil {
		return false, errs.Configuration("ansible.SetupInfrastructure", "failed to create work directory", errs.WithCause(err))
	}

	r.inventoryPath = filepath.Join(r.cfg.WorkDir, "inventory.ini")
	if err := os.WriteFile(r.inventoryPath, RenderInventory(r.nodes), 0o644); err != nil {
		return false, errs.Configuration("ansible.SetupInfrastructure", "failed to write inventory", errs.WithCause(err))
	}

	if _, err := r.console.Run(ctx, fmt.Sprintf("%s --version", r.cfg.AnsibleBinary), console.Options{Timeout: r.cfg.RunTimeout}); err != nil {
		return false, errs.Configuration("ansible.SetupInfrastructure", "ansible-playbook binary not available", errs.WithCause(err))
	}
	return true, nil
}

// ExecuteWorkload renders a playbook for the workload's first model tag
// and runs it across the inventory, parsing the PLAY RECAP section into
// one Execution Result per host.
func (r *Runner) ExecuteWorkload(ctx context.Context, workload runner.WorkloadSpec) (*runner.DistributedResult, error) {
	modelTag := ""
	if len(workload.ModelTags) > 0 {
		modelTag = workload.ModelTags[0]
	}

	registryImage := workload.Registry
	if registryImage == "" {
		registryImage = modelTag
	}
	containerName := "madctl-" + strings.ReplaceAll(modelTag, "/", "-")

	playbookPath := r.cfg.PlaybookPath
	if playbookPath == "" {
		content, err := RenderPlaybook(modelTag, registryImage, containerName, r.cfg.BecomeUser, workload.ExtraEnv)
		if err != nil {
			return nil, err
		}
		playbookPath = filepath.Join(r.cfg.WorkDir, "playbook.yml")
		if err := os.WriteFile(playbookPath, content, 0o644); err != nil {
			return nil, errs.Configuration("ansible.ExecuteWorkload", "failed to write playbook", errs.WithCause(err))
		}
	}
	r.playbookPath = playbookPath

	timeout := r.cfg.RunTimeout
	if workload.TimeoutSecs > 0 {
		timeout = time.Duration(workload.TimeoutSecs) * time.Second
	}

	command := fmt.Sprintf("%s -i %s %s", r.cfg.AnsibleBinary, r.inventoryPath, r.playbookPath)
	output, runErr := r.console.Run(ctx, command, console.Options{Timeout: timeout, CanFail: true})

	result := &runner.DistributedResult{TotalNodes: len(r.nodes)}
	recap := parseRecap(output)

	for _, node := range r.nodes {
		status := runner.StatusFailure
		errMsg := "host missing from PLAY RECAP"
		if entry, ok := recap[node.Hostname]; ok {
			if entry.failed == 0 && entry.unreachable == 0 {
				status = runner.StatusSuccess
				errMsg = ""
			} else if entry.unreachable > 0 {
				errMsg = fmt.Sprintf("unreachable=%d", entry.unreachable)
			} else {
				errMsg = fmt.Sprintf("failed=%d", entry.failed)
			}
		}
		if runErr != nil && status != runner.StatusSuccess && errMsg == "host missing from PLAY RECAP" {
			errMsg = runErr.Error()
		}

		res := runner.ExecutionResult{NodeID: node.Hostname, ModelTag: modelTag, Status: status, ErrorMessage: errMsg}
		result.Append(res)

		outcome := "success"
		if status != runner.StatusSuccess {
			outcome = "failure"
		}
		metrics.RunnerExecutionsTotal.WithLabelValues("ansible", outcome).Inc()
	}

	return result, nil
}

// CleanupInfrastructure is a no-op: ansible-playbook owns no
// long-lived Go-side resources. Always reports success.
func (r *Runner) CleanupInfrastructure(ctx context.Context, workload runner.WorkloadSpec) (bool, error) {
	return true, nil
}

type recapEntry struct {
	ok, changed, unreachable, failed, skipped int
}

var recapLinePattern = regexp.MustCompile(`^(\S+)\s*:\s*ok=(\d+)\s+changed=(\d+)\s+unreachable=(\d+)\s+failed=(\d+)`)

// parseRecap extracts the "PLAY RECAP" section's per-host summary line,
// e.g. "node1 : ok=3 changed=1 unreachable=0 failed=0 skipped=0".
func parseRecap(output string) map[string]recapEntry {
	entries := map[string]recapEntry{}
	inRecap := false
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "PLAY RECAP") {
			inRecap = true
			continue
		}
		if !inRecap {
			continue
		}
		m := recapLinePattern.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		ok, _ := strconv.Atoi(m[2])
		changed, _ := strconv.Atoi(m[3])
		unreachable, _ := strconv.Atoi(m[4])
		failed, _ := strconv.Atoi(m[5])
		entries[m[1]] = recapEntry{ok: ok, changed: changed, unreachable: unreachable, failed: failed}
	}
	return entries
}
