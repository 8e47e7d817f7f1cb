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

package slurm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/amd/madctl/internal/errs"
	"github.com/amd/madctl/internal/metrics"
	"github.com/amd/madctl/internal/runner"
)

// Runner submits pre-generated job scripts to a SLURM cluster via its
// login node and polls squeue/sacct until every submission terminates.
type Runner struct {
	cfg        Config
	connection Connection

	mu             sync.Mutex
	session        Session
	submittedJobs  []string
}

// New returns a Runner that stages job scripts from cfg.JobScriptsDir
// onto cfg.LoginNode.
func New(cfg Config) *Runner {
	return &Runner{cfg: cfg, connection: cryptoConnection{}}
}

var _ runner.Runner = (*Runner)(nil)

// SetupInfrastructure validates the local job scripts exist, connects to
// the login node, verifies sinfo works, and stages the scripts.
func (r *Runner) SetupInfrastructure(ctx context.Context, workload runner.WorkloadSpec) (bool, error) {
	if err := r.validateJobScripts(); err != nil {
		return false, err
	}

	session, err := r.connection.Connect(r.cfg.LoginNode, r.cfg.ConnectTimeout)
	if err != nil {
		return false, errs.Connection("slurm.SetupInfrastructure", "failed to connect to SLURM login node", errs.WithCause(err))
	}
	r.mu.Lock()
	r.session = session
	r.mu.Unlock()

	if err := r.validateSlurmAccess(session); err != nil {
		return false, err
	}
	if err := r.stageJobScripts(session); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Runner) validateJobScripts() error {
	if r.cfg.JobScriptsDir == "" {
		return errs.Configuration("slurm.validateJobScripts", "job scripts directory not configured")
	}
	for _, name := range []string{setupScriptName, jobArrayScriptName} {
		path := filepath.Join(r.cfg.JobScriptsDir, name)
		if _, err := os.Stat(path); err != nil {
			return errs.Configuration("slurm.validateJobScripts", fmt.Sprintf("required job script not found: %s", path), errs.WithCause(err))
		}
	}
	return nil
}

func (r *Runner) validateSlurmAccess(session Session) error {
	exitCode, _, stderr, err := session.Run("sinfo --version")
	if err != nil || exitCode != 0 {
		return errs.Configuration("slurm.validateSlurmAccess", fmt.Sprintf("sinfo not available: %s", stderr), errs.WithCause(err))
	}
	exitCode, _, stderr, err = session.Run("sinfo -h -o '%P'")
	if err != nil || exitCode != 0 {
		return errs.Configuration("slurm.validateSlurmAccess", fmt.Sprintf("failed to query partitions: %s", stderr), errs.WithCause(err))
	}
	return nil
}

func (r *Runner) stageJobScripts(session Session) error {
	scriptsDir := r.cfg.WorkspacePath + "/job_scripts"
	if _, _, _, err := session.Run(fmt.Sprintf("mkdir -p %s", scriptsDir)); err != nil {
		return errs.Connection("slurm.stageJobScripts", "failed to create remote scripts directory", errs.WithCause(err))
	}

	entries, err := os.ReadDir(r.cfg.JobScriptsDir)
	if err != nil {
		return errs.Configuration("slurm.stageJobScripts", "failed to read job scripts directory", errs.WithCause(err))
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sh") {
			continue
		}
		localPath := filepath.Join(r.cfg.JobScriptsDir, entry.Name())
		content, err := os.ReadFile(localPath)
		if err != nil {
			return errs.Configuration("slurm.stageJobScripts", fmt.Sprintf("failed to read %s", localPath), errs.WithCause(err))
		}
		remotePath := scriptsDir + "/" + entry.Name()
		if err := session.CopyFile(content, remotePath); err != nil {
			return errs.Connection("slurm.stageJobScripts", fmt.Sprintf("failed to copy %s to login node", entry.Name()), errs.WithCause(err))
		}
		session.Run(fmt.Sprintf("chmod +x %s", remotePath))
	}

	submitScript := filepath.Join(r.cfg.JobScriptsDir, submitScriptName)
	if content, err := os.ReadFile(submitScript); err == nil {
		remotePath := r.cfg.WorkspacePath + "/" + submitScriptName
		if err := session.CopyFile(content, remotePath); err != nil {
			return errs.Connection("slurm.stageJobScripts", "failed to copy submit_jobs.py to login node", errs.WithCause(err))
		}
		session.Run(fmt.Sprintf("chmod +x %s", remotePath))
	}

	return nil
}

// ExecuteWorkload submits the setup job, then the dependent job array,
// and polls until every submission reaches a terminal state.
func (r *Runner) ExecuteWorkload(ctx context.Context, workload runner.WorkloadSpec) (*runner.DistributedResult, error) {
	session := r.currentSession()
	if session == nil {
		return nil, errs.Orchestration("slurm.ExecuteWorkload", "no active SLURM login node session; setup must run first")
	}

	scriptsDir := r.cfg.WorkspacePath + "/job_scripts"

	setupJobID, err := r.submitJob(session, fmt.Sprintf("sbatch %s/%s", scriptsDir, setupScriptName))
	if err != nil {
		return nil, err
	}
	r.recordJob(setupJobID)

	dependencyClause := ""
	if setupJobID != "" {
		dependencyClause = fmt.Sprintf("--dependency=afterok:%s ", setupJobID)
	}
	arrayJobID, err := r.submitJob(session, fmt.Sprintf("sbatch %s%s/%s", dependencyClause, scriptsDir, jobArrayScriptName))
	if err != nil {
		return nil, err
	}
	r.recordJob(arrayJobID)

	timeout := time.Duration(workload.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 24 * time.Hour
	}

	results := r.monitorJobExecution(session, []string{arrayJobID}, timeout)

	result := &runner.DistributedResult{TotalNodes: len(results)}
	for _, res := range results {
		result.Append(res)
	}
	return result, nil
}

func (r *Runner) submitJob(session Session, command string) (string, error) {
	exitCode, stdout, stderr, err := session.Run(command)
	if err != nil || exitCode != 0 {
		return "", errs.Runtime("slurm.submitJob", fmt.Sprintf("sbatch submission failed: %s", stderr), errs.WithCause(err))
	}
	fields := strings.Fields(strings.TrimSpace(stdout))
	if len(fields) == 0 {
		return "", errs.Runtime("slurm.submitJob", "sbatch produced no job id")
	}
	return fields[len(fields)-1], nil
}

func (r *Runner) recordJob(jobID string) {
	r.mu.Lock()
	r.submittedJobs = append(r.submittedJobs, jobID)
	r.mu.Unlock()
}

// monitorJobExecution polls squeue/sacct every PollInterval until every
// job id reaches a terminal state or the timeout elapses.
func (r *Runner) monitorJobExecution(session Session, jobIDs []string, timeout time.Duration) []runner.ExecutionResult {
	var results []runner.ExecutionResult
	deadline := time.Now().Add(timeout)
	outstanding := append([]string{}, jobIDs...)

	for len(outstanding) > 0 && time.Now().Before(deadline) {
		var remaining []string
		for _, jobID := range outstanding {
			state := r.jobStatus(session, jobID)
			if terminalStates[state] {
				results = append(results, r.collectJobResults(session, jobID, state)...)
				continue
			}
			remaining = append(remaining, jobID)
		}
		outstanding = remaining
		if len(outstanding) > 0 {
			time.Sleep(r.cfg.PollInterval)
		}
	}

	for _, jobID := range outstanding {
		results = append(results, runner.ExecutionResult{
			NodeID: jobID, ModelTag: "timeout", Status: runner.StatusTimeout,
			DurationSecs: timeout.Seconds(), ErrorMessage: fmt.Sprintf("job monitoring timed out after %s", timeout),
		})
	}
	return results
}

func (r *Runner) jobStatus(session Session, jobID string) string {
	exitCode, stdout, _, err := session.Run(fmt.Sprintf("squeue -j %s -h -o '%%T'", jobID))
	if err == nil && exitCode == 0 && strings.TrimSpace(stdout) != "" {
		return strings.TrimSpace(stdout)
	}

	exitCode, stdout, _, err = session.Run(fmt.Sprintf("sacct -j %s -n -o 'State' | head -1", jobID))
	if err == nil && exitCode == 0 && strings.TrimSpace(stdout) != "" {
		return strings.TrimSpace(stdout)
	}
	return "UNKNOWN"
}

// collectJobResults gathers per-array-task results for a completed job
// id via sacct, falling back to a single synthetic result when the job
// is not itself an array.
func (r *Runner) collectJobResults(session Session, jobID, status string) []runner.ExecutionResult {
	if strings.Contains(jobID, "_") {
		return []runner.ExecutionResult{r.singleJobResult(session, jobID, status)}
	}

	exitCode, stdout, _, err := session.Run(fmt.Sprintf("sacct -j %s -n -o 'JobID,State,ExitCode' | grep '%s_'", jobID, jobID))
	if err != nil || exitCode != 0 || strings.TrimSpace(stdout) == "" {
		return []runner.ExecutionResult{r.singleJobResult(session, jobID, status)}
	}

	var results []runner.ExecutionResult
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		results = append(results, r.singleJobResult(session, fields[0], fields[1]))
	}
	if len(results) == 0 {
		return []runner.ExecutionResult{r.singleJobResult(session, jobID, status)}
	}
	return results
}

func (r *Runner) singleJobResult(session Session, jobID, status string) runner.ExecutionResult {
	exitCode, stdout, _, err := session.Run(fmt.Sprintf("sacct -j %s -n -o 'JobName,State,ExitCode,Elapsed,NodeList'", jobID))

	jobName, elapsed, nodeList, exitCodeVal := "unknown", 0.0, "unknown", "0:0"
	if err == nil && exitCode == 0 && strings.TrimSpace(stdout) != "" {
		fields := strings.Fields(strings.TrimSpace(stdout))
		if len(fields) >= 5 {
			jobName = fields[0]
			exitCodeVal = fields[2]
			elapsed = parseElapsed(fields[3])
			nodeList = fields[4]
		}
	}

	modelTag := strings.ReplaceAll(strings.ReplaceAll(jobName, "madengine-", ""), "-", "_")
	if modelTag == "" || modelTag == "unknown" {
		parts := strings.Split(jobID, "_")
		modelTag = "task_" + parts[len(parts)-1]
	}

	success := status == "COMPLETED" && strings.HasPrefix(exitCodeVal, "0:")
	result := runner.ExecutionResult{
		NodeID:       nodeList,
		ModelTag:     modelTag,
		DurationSecs: elapsed,
		Metrics:      map[string]float64{},
	}
	if success {
		result.Status = runner.StatusSuccess
		metrics.RunnerExecutionsTotal.WithLabelValues("slurm", "success").Inc()
	} else {
		result.Status = runner.StatusFailure
		result.ErrorMessage = fmt.Sprintf("SLURM status: %s, exit code: %s", status, exitCodeVal)
		metrics.RunnerExecutionsTotal.WithLabelValues("slurm", "failure").Inc()
	}
	metrics.ExecutionDurationSeconds.WithLabelValues("slurm").Observe(elapsed)
	return result
}

// parseElapsed parses SLURM's "H:M:S" or "M:S" elapsed-time format.
func parseElapsed(elapsed string) float64 {
	parts := strings.Split(elapsed, ":")
	var seconds float64
	switch len(parts) {
	case 3:
		h, _ := strconv.Atoi(parts[0])
		m, _ := strconv.Atoi(parts[1])
		s, _ := strconv.Atoi(parts[2])
		seconds = float64(h*3600 + m*60 + s)
	case 2:
		m, _ := strconv.Atoi(parts[0])
		s, _ := strconv.Atoi(parts[1])
		seconds = float64(m*60 + s)
	}
	return seconds
}

// CleanupInfrastructure cancels every submitted job (best-effort) and
// closes the login-node session. Always reports success.
func (r *Runner) CleanupInfrastructure(ctx context.Context, workload runner.WorkloadSpec) (bool, error) {
	session := r.currentSession()
	if session != nil {
		for _, jobID := range r.submittedJobs {
			session.Run(fmt.Sprintf("scancel %s", jobID))
		}
		session.Close()
	}

	r.mu.Lock()
	r.session = nil
	r.submittedJobs = nil
	r.mu.Unlock()

	return true, nil
}

func (r *Runner) currentSession() Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}
