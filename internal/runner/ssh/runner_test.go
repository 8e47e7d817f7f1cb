package ssh

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amd/madctl/internal/runner"
)

// fakeSession is a scripted, in-memory Session used to exercise Runner
// orchestration without a real network, analogous to mocking
// SSHClientManager in the original test suite.
type fakeSession struct {
	mu        sync.Mutex
	responses map[string]string
	fail      map[string]bool
	delay     time.Duration
	calls     []string
}

func (f *fakeSession) Run(command string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, command)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	for pattern, shouldFail := range f.fail {
		if shouldFail && strings.Contains(command, pattern) {
			return "", assertErr("command failed")
		}
	}
	for pattern, resp := range f.responses {
		if strings.Contains(command, pattern) {
			return resp, nil
		}
	}
	return "", nil
}

func (f *fakeSession) Close() error { return nil }

type assertErr string

func (e assertErr) Error() string { return string(e) }

type fakeTransport struct {
	mu       sync.Mutex
	sessions map[string]*fakeSession
	dialFail map[string]bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sessions: map[string]*fakeSession{}, dialFail: map[string]bool{}}
}

func (t *fakeTransport) Dial(node runner.NodeConfig, timeout time.Duration) (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dialFail[node.Hostname] {
		return nil, assertErr("dial failed")
	}
	session, ok := t.sessions[node.Hostname]
	if !ok {
		session = &fakeSession{responses: map[string]string{
			"echo connectivity_test": "connectivity_test",
			"test -d":                "exists",
			"command -v":             "/usr/bin/madctl",
		}, fail: map[string]bool{}}
		t.sessions[node.Hostname] = session
	}
	return session, nil
}

func twoNodeRunner(transport *fakeTransport) *Runner {
	nodes := []runner.NodeConfig{
		{Hostname: "node1", Address: "10.0.0.1", Username: "u", Password: "p"},
		{Hostname: "node2", Address: "10.0.0.2", Username: "u", Password: "p"},
	}
	r := New(nodes, DefaultConfig())
	r.transport = transport
	return r
}

func TestSetupInfrastructureSucceedsWhenAllNodesReachable(t *testing.T) {
	transport := newFakeTransport()
	r := twoNodeRunner(transport)

	ok, err := r.SetupInfrastructure(context.Background(), runner.WorkloadSpec{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSetupInfrastructureFailsOnUnreachableNode(t *testing.T) {
	transport := newFakeTransport()
	transport.dialFail["node2"] = true
	r := twoNodeRunner(transport)

	_, err := r.SetupInfrastructure(context.Background(), runner.WorkloadSpec{})
	assert.Error(t, err)
}

func TestSetupInfrastructureFailsOnMissingWorkingDirectory(t *testing.T) {
	transport := newFakeTransport()
	r := twoNodeRunner(transport)
	// Pre-seed node1's session with a failing prerequisite response.
	transport.Dial(runner.NodeConfig{Hostname: "node1"}, 0)
	transport.sessions["node1"].responses["test -d"] = "missing"

	_, err := r.SetupInfrastructure(context.Background(), runner.WorkloadSpec{})
	assert.Error(t, err)
}

func TestExecuteWorkloadRunsOnePerNodeAndHarvestsResults(t *testing.T) {
	transport := newFakeTransport()
	r := twoNodeRunner(transport)

	result, err := r.ExecuteWorkload(context.Background(), runner.WorkloadSpec{ModelTags: []string{"dummy"}})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 0, result.Failed)
	assert.Len(t, result.Results, 2)

	for _, res := range result.Results {
		assert.Equal(t, "dummy", res.ModelTag)
	}
}

func TestExecuteWorkloadMarksNodeFailureOnCommandError(t *testing.T) {
	transport := newFakeTransport()
	transport.Dial(runner.NodeConfig{Hostname: "node1"}, 0)
	transport.sessions["node1"].fail["madctl run"] = true
	r := twoNodeRunner(transport)

	result, err := r.ExecuteWorkload(context.Background(), runner.WorkloadSpec{ModelTags: []string{"dummy"}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 1, result.Failed)
}

func TestExecuteWorkloadWithinTimeoutSucceeds(t *testing.T) {
	transport := newFakeTransport()
	transport.Dial(runner.NodeConfig{Hostname: "node1"}, 0)
	transport.sessions["node1"].delay = 50 * time.Millisecond
	r := twoNodeRunner(transport)

	result, err := r.ExecuteWorkload(context.Background(), runner.WorkloadSpec{ModelTags: []string{"dummy"}, TimeoutSecs: 0})
	require.NoError(t, err)
	// A zero workload timeout falls back to the runner's default
	// hour-long timeout, so a briefly slow node still succeeds.
	assert.Equal(t, 2, result.Successful)
}

func TestExecuteWorkloadTimesOutSlowNode(t *testing.T) {
	transport := newFakeTransport()
	transport.Dial(runner.NodeConfig{Hostname: "node1"}, 0)
	transport.sessions["node1"].delay = 200 * time.Millisecond
	r := twoNodeRunner(transport)
	r.cfg.RunTimeout = 50 * time.Millisecond

	result, err := r.ExecuteWorkload(context.Background(), runner.WorkloadSpec{ModelTags: []string{"dummy"}})
	require.NoError(t, err)
	require.Len(t, result.Results, 2)

	byNode := map[string]runner.ExecutionResult{}
	for _, res := range result.Results {
		byNode[res.NodeID] = res
	}
	assert.Equal(t, runner.StatusTimeout, byNode["node1"].Status)
	assert.Equal(t, runner.StatusSuccess, byNode["node2"].Status)
}

func TestBuildCommandEmbedsRankAndContext(t *testing.T) {
	r := New([]runner.NodeConfig{{Hostname: "node1", Address: "10.0.0.1"}, {Hostname: "node2", Address: "10.0.0.2"}}, DefaultConfig())

	cmd, err := r.buildCommand(runner.NodeConfig{Hostname: "node1"}, 0, "dummy", runner.WorkloadSpec{ModelTags: []string{"dummy"}})
	require.NoError(t, err)
	assert.Contains(t, cmd, "madctl run --tags dummy")
	assert.Contains(t, cmd, `"NODE_RANK":"0"`)
	assert.Contains(t, cmd, `"NNODES":"2"`)
}

func TestCleanupInfrastructureAlwaysSucceeds(t *testing.T) {
	transport := newFakeTransport()
	r := twoNodeRunner(transport)
	_, _ = r.ExecuteWorkload(context.Background(), runner.WorkloadSpec{ModelTags: []string{"dummy"}})

	ok, err := r.CleanupInfrastructure(context.Background(), runner.WorkloadSpec{})
	require.NoError(t, err)
	assert.True(t, ok)
}
