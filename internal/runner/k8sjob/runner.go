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

package k8sjob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"

	"github.com/amd/madctl/internal/errs"
	"github.com/amd/madctl/internal/metrics"
	"github.com/amd/madctl/internal/runner"
)

// Runner submits one batch/v1 Job per node and polls each to a terminal
// condition via client-go, without relying on an informer/watch.
type Runner struct {
	nodes     []runner.NodeConfig
	cfg       Config
	clientset kubernetes.Interface

	mu       sync.Mutex
	jobNames []string
}

// New returns a Runner that dispatches Jobs into clientset.
func New(nodes []runner.NodeConfig, cfg Config, clientset kubernetes.Interface) *Runner {
	return &Runner{nodes: nodes, cfg: cfg, clientset: clientset}
}

var _ runner.Runner = (*Runner)(nil)

// SetupInfrastructure confirms the target namespace is reachable.
func (r *Runner) SetupInfrastructure(ctx context.Context, workload runner.WorkloadSpec) (bool, error) {
	if _, err := r.clientset.CoreV1().Namespaces().Get(ctx, r.cfg.Namespace, metav1.GetOptions{}); err != nil {
		if !apierrors.IsForbidden(err) {
			return false, errs.Connection("k8sjob.SetupInfrastructure", fmt.Sprintf("namespace %s not reachable", r.cfg.Namespace), errs.WithCause(err))
		}
	}
	return true, nil
}

// ExecuteWorkload creates one Job per node, then polls every Job to a
// terminal condition, collecting an Execution Result per node.
func (r *Runner) ExecuteWorkload(ctx context.Context, workload runner.WorkloadSpec) (*runner.DistributedResult, error) {
	modelTag := ""
	if len(workload.ModelTags) > 0 {
		modelTag = workload.ModelTags[0]
	}
	image := r.cfg.Image
	if image == "" {
		image = workload.Registry
	}

	result := &runner.DistributedResult{TotalNodes: len(r.nodes)}
	jobs := r.clientset.BatchV1().Jobs(r.cfg.Namespace)

	type dispatched struct {
		node    runner.NodeConfig
		jobName string
	}
	var active []dispatched

	for i, node := range r.nodes {
		jobName := fmt.Sprintf("%s-%s-%d", r.cfg.JobNamePrefix, sanitizeLabel(modelTag), i)
		job := buildJob(r.cfg, jobName, image, modelTag, node, workload.ExtraEnv)

		if _, err := jobs.Create(ctx, job, metav1.CreateOptions{}); err != nil {
			result.Append(runner.ExecutionResult{NodeID: node.Hostname, ModelTag: modelTag, Status: runner.StatusFailure, ErrorMessage: err.Error()})
			metrics.RunnerExecutionsTotal.WithLabelValues("k8sjob", "failure").Inc()
			continue
		}
		r.recordJob(jobName)
		active = append(active, dispatched{node: node, jobName: jobName})
	}

	timeout := r.cfg.WaitTimeout
	if workload.TimeoutSecs > 0 {
		timeout = time.Duration(workload.TimeoutSecs) * time.Second
	}

	for _, d := range active {
		result.Append(r.waitForJob(ctx, jobs, d.node, d.jobName, modelTag, timeout))
	}

	return result, nil
}

func (r *Runner) waitForJob(ctx context.Context, jobs batchJobsClient, node runner.NodeConfig, jobName, modelTag string, timeout time.Duration) runner.ExecutionResult {
	start := time.Now()
	var finalJob *batchv1.Job

	err := wait.PollUntilContextTimeout(ctx, r.cfg.PollInterval, timeout, true, func(ctx context.Context) (bool, error) {
		job, err := jobs.Get(ctx, jobName, metav1.GetOptions{})
		if err != nil {
			return false, err
		}
		finalJob = job
		for _, cond := range job.Status.Conditions {
			if cond.Status != "True" {
				continue
			}
			if cond.Type == batchv1.JobComplete || cond.Type == batchv1.JobFailed {
				return true, nil
			}
		}
		return false, nil
	})

	duration := time.Since(start).Seconds()
	metrics.ExecutionDurationSeconds.WithLabelValues("k8sjob").Observe(duration)

	if err != nil {
		metrics.RunnerExecutionsTotal.WithLabelValues("k8sjob", "timeout").Inc()
		return runner.ExecutionResult{NodeID: node.Hostname, ModelTag: modelTag, Status: runner.StatusTimeout, DurationSecs: duration, ErrorMessage: fmt.Sprintf("job %s did not reach a terminal condition within %s", jobName, timeout)}
	}

	for _, cond := range finalJob.Status.Conditions {
		if cond.Type == batchv1.JobComplete && cond.Status == "True" {
			metrics.RunnerExecutionsTotal.WithLabelValues("k8sjob", "success").Inc()
			return runner.ExecutionResult{NodeID: node.Hostname, ModelTag: modelTag, Status: runner.StatusSuccess, DurationSecs: duration}
		}
		if cond.Type == batchv1.JobFailed && cond.Status == "True" {
			metrics.RunnerExecutionsTotal.WithLabelValues("k8sjob", "failure").Inc()
			return runner.ExecutionResult{NodeID: node.Hostname, ModelTag: modelTag, Status: runner.StatusFailure, DurationSecs: duration, ErrorMessage: strings.TrimSpace(cond.Message)}
		}
	}

	metrics.RunnerExecutionsTotal.WithLabelValues("k8sjob", "failure").Inc()
	return runner.ExecutionResult{NodeID: node.Hostname, ModelTag: modelTag, Status: runner.StatusFailure, DurationSecs: duration, ErrorMessage: "job reached no recognized terminal condition"}
}

// CleanupInfrastructure deletes every Job this runner created,
// foreground-propagating to their Pods. Always reports success.
func (r *Runner) CleanupInfrastructure(ctx context.Context, workload runner.WorkloadSpec) (bool, error) {
	jobs := r.clientset.BatchV1().Jobs(r.cfg.Namespace)
	propagation := metav1.DeletePropagationForeground

	r.mu.Lock()
	names := append([]string{}, r.jobNames...)
	r.jobNames = nil
	r.mu.Unlock()

	for _, name := range names {
		_ = jobs.Delete(ctx, name, metav1.DeleteOptions{PropagationPolicy: &propagation})
	}
	return true, nil
}

func (r *Runner) recordJob(jobName string) {
	r.mu.Lock()
	r.jobNames = append(r.jobNames, jobName)
	r.mu.Unlock()
}

// batchJobsClient is the narrow slice of the BatchV1().Jobs(ns) client
// this package depends on, satisfied by both the real clientset and
// client-go's fake in tests.
type batchJobsClient interface {
	Get(ctx context.Context, name string, opts metav1.GetOptions) (*batchv1.Job, error)
}
