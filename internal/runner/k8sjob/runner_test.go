package k8sjob

import (
	"context"
	"testing"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amd/madctl/internal/runner"
)

func testNodes() []runner.NodeConfig {
	return []runner.NodeConfig{
		{Hostname: "node1", GPUVendor: runner.VendorAMD, GPUCount: 1},
		{Hostname: "node2", GPUVendor: runner.VendorAMD, GPUCount: 1},
	}
}

// reactToGetAs installs a reactor that returns a Job in the given
// condition for every "get" on the jobs resource, simulating a
// controller that has already driven the Job to completion.
func reactToGetAs(client *fake.Clientset, condType batchv1.JobConditionType) {
	client.PrependReactor("get", "jobs", func(action k8stesting.Action) (bool, runtime.Object, error) {
		getAction := action.(k8stesting.GetAction)
		job := &batchv1.Job{
			ObjectMeta: metav1.ObjectMeta{Name: getAction.GetName(), Namespace: getAction.GetNamespace()},
			Status: batchv1.JobStatus{
				Conditions: []batchv1.JobCondition{
					{Type: condType, Status: corev1.ConditionTrue, Message: "simulated"},
				},
			},
		}
		return true, job, nil
	})
}

func TestSetupInfrastructureChecksNamespace(t *testing.T) {
	client := fake.NewSimpleClientset(&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "default"}})
	r := New(testNodes(), DefaultConfig(), client)

	ok, err := r.SetupInfrastructure(context.Background(), runner.WorkloadSpec{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExecuteWorkloadMarksAllNodesSuccessOnJobComplete(t *testing.T) {
	client := fake.NewSimpleClientset()
	reactToGetAs(client, batchv1.JobComplete)

	cfg := DefaultConfig()
	cfg.Image = "registry.example/dummy:latest"
	cfg.PollInterval = 5 * time.Millisecond
	r := New(testNodes(), cfg, client)

	result, err := r.ExecuteWorkload(context.Background(), runner.WorkloadSpec{ModelTags: []string{"dummy"}, TimeoutSecs: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 0, result.Failed)
}

func TestExecuteWorkloadMarksAllNodesFailedOnJobFailed(t *testing.T) {
	client := fake.NewSimpleClientset()
	reactToGetAs(client, batchv1.JobFailed)

	cfg := DefaultConfig()
	cfg.Image = "registry.example/dummy:latest"
	cfg.PollInterval = 5 * time.Millisecond
	r := New(testNodes(), cfg, client)

	result, err := r.ExecuteWorkload(context.Background(), runner.WorkloadSpec{ModelTags: []string{"dummy"}, TimeoutSecs: 5})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Successful)
	assert.Equal(t, 2, result.Failed)
}

func TestExecuteWorkloadTimesOutWhenJobNeverTerminates(t *testing.T) {
	client := fake.NewSimpleClientset()
	cfg := DefaultConfig()
	cfg.Image = "registry.example/dummy:latest"
	cfg.PollInterval = 5 * time.Millisecond
	cfg.WaitTimeout = 20 * time.Millisecond
	r := New([]runner.NodeConfig{{Hostname: "node1"}}, cfg, client)

	result, err := r.ExecuteWorkload(context.Background(), runner.WorkloadSpec{ModelTags: []string{"dummy"}, TimeoutSecs: 0})
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.Equal(t, runner.StatusTimeout, result.Results[0].Status)
}

func TestCleanupInfrastructureDeletesCreatedJobs(t *testing.T) {
	client := fake.NewSimpleClientset()
	reactToGetAs(client, batchv1.JobComplete)

	cfg := DefaultConfig()
	cfg.Image = "registry.example/dummy:latest"
	cfg.PollInterval = 5 * time.Millisecond
	r := New(testNodes(), cfg, client)

	_, err := r.ExecuteWorkload(context.Background(), runner.WorkloadSpec{ModelTags: []string{"dummy"}, TimeoutSecs: 5})
	require.NoError(t, err)

	ok, err := r.CleanupInfrastructure(context.Background(), runner.WorkloadSpec{})
	require.NoError(t, err)
	assert.True(t, ok)

	jobs, err := client.BatchV1().Jobs(cfg.Namespace).List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, jobs.Items, 0)
}

func TestSanitizeLabelStripsInvalidCharacters(t *testing.T) {
	assert.Equal(t, "foo-bar", sanitizeLabel("foo/bar"))
	assert.Equal(t, "a.b_c-d", sanitizeLabel("a.b_c-d"))
}
