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

package ssh

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/amd/madctl/internal/errs"
	"github.com/amd/madctl/internal/metrics"
	"github.com/amd/madctl/internal/runner"
)

// Runner fans workload execution out over SSH to a fixed set of nodes,
// rank 0 acting as master for downstream collective rendezvous.
type Runner struct {
	nodes     []runner.NodeConfig
	cfg       Config
	transport Transport

	mu       sync.Mutex
	sessions map[string]Session
}

// New returns a Runner over nodes, defaulting MasterAddr to the first
// node's address when unset.
func New(nodes []runner.NodeConfig, cfg Config) *Runner {
	if cfg.MasterAddr == "" && len(nodes) > 0 {
		cfg.MasterAddr = nodes[0].Address
	}
	return &Runner{
		nodes:     nodes,
		cfg:       cfg,
		transport: cryptoTransport{},
		sessions:  map[string]Session{},
	}
}

var _ runner.Runner = (*Runner)(nil)

// SetupInfrastructure probes every node in parallel (TCP connect plus a
// trivial echo) and, only once all nodes are reachable, runs a
// per-node prerequisite check (working directory exists, CLI binary
// resolvable). Either stage failing aborts setup.
func (r *Runner) SetupInfrastructure(ctx context.Context, workload runner.WorkloadSpec) (bool, error) {
	unreachable := r.probeConnectivity(ctx)
	if len(unreachable) > 0 {
		return false, errs.Connection("ssh.SetupInfrastructure", fmt.Sprintf("unreachable nodes: %s", strings.Join(unreachable, ", ")))
	}

	for _, node := range r.nodes {
		if err := r.validatePrerequisites(node); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (r *Runner) probeConnectivity(ctx context.Context) []string {
	type probeResult struct {
		hostname string
		ok       bool
	}
	results := make(chan probeResult, len(r.nodes))

	var wg sync.WaitGroup
	for _, node := range r.nodes {
		node := node
		wg.Add(1)
		go func() {
			defer wg.Done()
			session, err := r.dial(node)
			if err != nil {
				results <- probeResult{node.Hostname, false}
				return
			}
			_, runErr := session.Run("echo connectivity_test")
			results <- probeResult{node.Hostname, runErr == nil}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var unreachable []string
	for res := range results {
		if !res.ok {
			unreachable = append(unreachable, res.hostname)
		}
	}
	return unreachable
}

// validatePrerequisites checks the remote working directory exists and
// the CLI binary resolves on PATH, per spec.md §4.7's per-node check.
func (r *Runner) validatePrerequisites(node runner.NodeConfig) error {
	session, err := r.dial(node)
	if err != nil {
		return errs.Configuration("ssh.validatePrerequisites", fmt.Sprintf("failed to connect to %s", node.Hostname), errs.WithCause(err))
	}

	out, err := session.Run(fmt.Sprintf("test -d %s && echo exists || echo missing", r.cfg.WorkingDir))
	if err != nil || !strings.Contains(out, "exists") {
		return errs.Configuration("ssh.validatePrerequisites", fmt.Sprintf("working directory does not exist on %s", node.Hostname))
	}

	out, err = session.Run(fmt.Sprintf("command -v %s", r.cfg.CLIBinary))
	if err != nil || strings.TrimSpace(out) == "" {
		return errs.Configuration("ssh.validatePrerequisites", fmt.Sprintf("cli binary %s not resolvable on %s", r.cfg.CLIBinary, node.Hostname))
	}
	return nil
}

// ExecuteWorkload composes and dispatches one command per node in
// parallel, awaiting every node before returning the aggregate result.
func (r *Runner) ExecuteWorkload(ctx context.Context, workload runner.WorkloadSpec) (*runner.DistributedResult, error) {
	result := &runner.DistributedResult{TotalNodes: len(r.nodes)}

	var wg sync.WaitGroup
	for rank, node := range r.nodes {
		wg.Add(1)
		go func(rank int, node runner.NodeConfig) {
			defer wg.Done()
			result.Append(r.executeOnNode(ctx, node, rank, workload))
		}(rank, node)
	}
	wg.Wait()

	return result, nil
}

func (r *Runner) executeOnNode(ctx context.Context, node runner.NodeConfig, rank int, workload runner.WorkloadSpec) runner.ExecutionResult {
	modelTag := ""
	if len(workload.ModelTags) > 0 {
		modelTag = workload.ModelTags[0]
	}

	command, err := r.buildCommand(node, rank, modelTag, workload)
	if err != nil {
		return runner.ExecutionResult{NodeID: node.Hostname, ModelTag: modelTag, Status: runner.StatusFailure, ErrorMessage: err.Error()}
	}

	session, err := r.dial(node)
	if err != nil {
		return runner.ExecutionResult{NodeID: node.Hostname, ModelTag: modelTag, Status: runner.StatusFailure, ErrorMessage: err.Error()}
	}

	timeout := r.cfg.RunTimeout
	if workload.TimeoutSecs > 0 {
		timeout = time.Duration(workload.TimeoutSecs) * time.Second
	}

	done := make(chan struct {
		out string
		err error
	}, 1)
	start := time.Now()
	go func() {
		out, runErr := session.Run(command)
		done <- struct {
			out string
			err error
		}{out, runErr}
	}()

	select {
	case res := <-done:
		duration := time.Since(start).Seconds()
		metrics.ExecutionDurationSeconds.WithLabelValues("ssh").Observe(duration)
		if res.err != nil {
			metrics.RunnerExecutionsTotal.WithLabelValues("ssh", "failure").Inc()
			return runner.ExecutionResult{NodeID: node.Hostname, ModelTag: modelTag, Status: runner.StatusFailure, DurationSecs: duration, ErrorMessage: res.err.Error()}
		}
		metrics.RunnerExecutionsTotal.WithLabelValues("ssh", "success").Inc()
		return runner.ExecutionResult{NodeID: node.Hostname, ModelTag: modelTag, Status: runner.StatusSuccess, DurationSecs: duration}
	case <-time.After(timeout):
		metrics.RunnerExecutionsTotal.WithLabelValues("ssh", "timeout").Inc()
		return runner.ExecutionResult{NodeID: node.Hostname, ModelTag: modelTag, Status: runner.StatusTimeout, DurationSecs: timeout.Seconds(), ErrorMessage: "node execution timed out"}
	}
}

// buildCommand composes the cd/run invocation with a JSON-quoted
// additional-context object, per spec.md §4.7.
func (r *Runner) buildCommand(node runner.NodeConfig, rank int, modelTag string, workload runner.WorkloadSpec) (string, error) {
	additionalContext := map[string]string{
		"NODE_RANK":    fmt.Sprintf("%d", rank),
		"NNODES":       fmt.Sprintf("%d", len(r.nodes)),
		"MASTER_ADDR":  r.cfg.MasterAddr,
		"MASTER_PORT":  fmt.Sprintf("%d", r.cfg.MasterPort),
		"NCCL_IB_HCA":  r.cfg.NCCLInterface,
		"GLOO_SOCKET_IFNAME": r.cfg.GlooInterface,
	}
	for k, v := range workload.ExtraEnv {
		additionalContext[k] = v
	}

	encoded, err := json.Marshal(additionalContext)
	if err != nil {
		return "", errs.Runtime("ssh.buildCommand", "failed to encode additional context", errs.WithCause(err))
	}

	timeout := workload.TimeoutSecs
	if timeout <= 0 {
		timeout = int(r.cfg.RunTimeout.Seconds())
	}

	return fmt.Sprintf(
		"cd %s && %s run --tags %s --timeout %d --additional-context '%s'",
		r.cfg.WorkingDir, r.cfg.CLIBinary, modelTag, timeout, string(encoded),
	), nil
}

// CleanupInfrastructure makes a best-effort attempt to stop leftover
// container processes this runner may have spawned, then closes every
// cached SSH session. Always reports success, per spec.md §4.7.
func (r *Runner) CleanupInfrastructure(ctx context.Context, workload runner.WorkloadSpec) (bool, error) {
	for _, node := range r.nodes {
		if session, err := r.dial(node); err == nil {
			_, _ = session.Run("docker ps -q --filter name=madctl- | xargs -r docker stop")
		}
	}

	r.mu.Lock()
	for _, session := range r.sessions {
		_ = session.Close()
	}
	r.sessions = map[string]Session{}
	r.mu.Unlock()

	return true, nil
}

func (r *Runner) dial(node runner.NodeConfig) (Session, error) {
	r.mu.Lock()
	if session, ok := r.sessions[node.Hostname]; ok {
		r.mu.Unlock()
		return session, nil
	}
	r.mu.Unlock()

	session, err := r.transport.Dial(node, r.cfg.ConnectTimeout)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[node.Hostname] = session
	r.mu.Unlock()
	return session, nil
}
