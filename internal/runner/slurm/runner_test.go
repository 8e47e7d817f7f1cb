package slurm

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amd/madctl/internal/runner"
)

// fakeSession is a scripted, in-memory Session standing in for a real
// SSH connection to a SLURM login node.
type fakeSession struct {
	mu        sync.Mutex
	responses map[string]scriptedResponse
	calls     []string
	copied    map[string][]byte
}

type scriptedResponse struct {
	exitCode       int
	stdout, stderr string
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		responses: map[string]scriptedResponse{
			"sinfo --version": {0, "slurm 23.02", ""},
			"sinfo -h":        {0, "gpu*", ""},
		},
		copied: map[string][]byte{},
	}
}

func (f *fakeSession) Run(command string) (int, string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, command)

	for pattern, resp := range f.responses {
		if strings.Contains(command, pattern) {
			return resp.exitCode, resp.stdout, resp.stderr, nil
		}
	}
	return 0, "", "", nil
}

func (f *fakeSession) CopyFile(content []byte, remotePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copied[remotePath] = content
	return nil
}

func (f *fakeSession) Close() error { return nil }

type fakeConnection struct {
	session *fakeSession
	failErr error
}

func (c *fakeConnection) Connect(node runner.NodeConfig, timeout time.Duration) (Session, error) {
	if c.failErr != nil {
		return nil, c.failErr
	}
	return c.session, nil
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func writeJobScripts(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, setupScriptName), []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, jobArrayScriptName), []byte("#!/bin/sh\n"), 0o755))
}

func newTestRunner(t *testing.T, session *fakeSession) *Runner {
	t.Helper()
	dir := t.TempDir()
	writeJobScripts(t, dir)

	cfg := DefaultConfig()
	cfg.JobScriptsDir = dir
	cfg.LoginNode = runner.NodeConfig{Hostname: "login1", Address: "10.0.0.5", Username: "u", Password: "p"}
	cfg.PollInterval = 10 * time.Millisecond

	r := New(cfg)
	r.connection = &fakeConnection{session: session}
	return r
}

func TestSetupInfrastructureFailsWhenJobScriptsMissing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JobScriptsDir = t.TempDir()
	cfg.LoginNode = runner.NodeConfig{Hostname: "login1"}
	r := New(cfg)
	r.connection = &fakeConnection{session: newFakeSession()}

	_, err := r.SetupInfrastructure(context.Background(), runner.WorkloadSpec{})
	assert.Error(t, err)
}

func TestSetupInfrastructureStagesScripts(t *testing.T) {
	session := newFakeSession()
	r := newTestRunner(t, session)

	ok, err := r.SetupInfrastructure(context.Background(), runner.WorkloadSpec{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, session.copied, r.cfg.WorkspacePath+"/job_scripts/"+setupScriptName)
	assert.Contains(t, session.copied, r.cfg.WorkspacePath+"/job_scripts/"+jobArrayScriptName)
}

func TestSetupInfrastructureFailsWhenSinfoUnavailable(t *testing.T) {
	session := newFakeSession()
	session.responses["sinfo --version"] = scriptedResponse{1, "", "command not found"}
	r := newTestRunner(t, session)

	_, err := r.SetupInfrastructure(context.Background(), runner.WorkloadSpec{})
	assert.Error(t, err)
}

func TestExecuteWorkloadSubmitsAndPollsToCompletion(t *testing.T) {
	session := newFakeSession()
	session.responses["sbatch"] = scriptedResponse{0, "Submitted batch job 100", ""}
	session.responses["squeue -j"] = scriptedResponse{0, "", ""}
	session.responses["sacct -j 100 -n -o 'State'"] = scriptedResponse{0, "COMPLETED", ""}
	session.responses["sacct -j 100 -n -o 'JobName,State,ExitCode,Elapsed,NodeList'"] = scriptedResponse{0, "madengine-dummy COMPLETED 0:0 00:01:30 node1", ""}

	r := newTestRunner(t, session)
	_, err := r.SetupInfrastructure(context.Background(), runner.WorkloadSpec{})
	require.NoError(t, err)

	result, err := r.ExecuteWorkload(context.Background(), runner.WorkloadSpec{ModelTags: []string{"dummy"}, TimeoutSecs: 5})
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.Equal(t, runner.StatusSuccess, result.Results[0].Status)
	assert.Equal(t, "dummy", result.Results[0].ModelTag)
	assert.Equal(t, 90.0, result.Results[0].DurationSecs)
}

func TestExecuteWorkloadMarksFailedJobAsFailure(t *testing.T) {
	session := newFakeSession()
	session.responses["sbatch"] = scriptedResponse{0, "Submitted batch job 200", ""}
	session.responses["squeue -j"] = scriptedResponse{0, "", ""}
	session.responses["sacct -j 200 -n -o 'State'"] = scriptedResponse{0, "FAILED", ""}
	session.responses["sacct -j 200 -n -o 'JobName,State,ExitCode,Elapsed,NodeList'"] = scriptedResponse{0, "madengine-dummy FAILED 1:0 00:00:45 node1", ""}

	r := newTestRunner(t, session)
	_, err := r.SetupInfrastructure(context.Background(), runner.WorkloadSpec{})
	require.NoError(t, err)

	result, err := r.ExecuteWorkload(context.Background(), runner.WorkloadSpec{ModelTags: []string{"dummy"}, TimeoutSecs: 5})
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.Equal(t, runner.StatusFailure, result.Results[0].Status)
}

func TestMonitorJobExecutionEmitsTimeoutForOutstandingJobs(t *testing.T) {
	session := newFakeSession()
	session.responses["squeue -j"] = scriptedResponse{0, "RUNNING", ""}
	session.responses["sacct -j 300 -n -o 'State'"] = scriptedResponse{0, "RUNNING", ""}

	r := newTestRunner(t, session)
	r.cfg.PollInterval = 5 * time.Millisecond

	results := r.monitorJobExecution(session, []string{"300"}, 20*time.Millisecond)
	require.Len(t, results, 1)
	assert.Equal(t, runner.StatusTimeout, results[0].Status)
}

func TestCleanupInfrastructureCancelsJobsAndAlwaysSucceeds(t *testing.T) {
	session := newFakeSession()
	r := newTestRunner(t, session)
	_, err := r.SetupInfrastructure(context.Background(), runner.WorkloadSpec{})
	require.NoError(t, err)
	r.recordJob("100")
	r.recordJob("101")

	ok, err := r.CleanupInfrastructure(context.Background(), runner.WorkloadSpec{})
	require.NoError(t, err)
	assert.True(t, ok)

	var sawCancel100, sawCancel101 bool
	for _, call := range session.calls {
		if strings.Contains(call, "scancel 100") {
			sawCancel100 = true
		}
		if strings.Contains(call, "scancel 101") {
			sawCancel101 = true
		}
	}
	assert.True(t, sawCancel100)
	assert.True(t, sawCancel101)
}

func TestParseElapsedHandlesHourMinuteSecondAndMinuteSecond(t *testing.T) {
	assert.Equal(t, 90.0, parseElapsed("00:01:30"))
	assert.Equal(t, 3661.0, parseElapsed("1:01:01"))
	assert.Equal(t, 75.0, parseElapsed("01:15"))
}
