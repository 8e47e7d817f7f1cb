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
	"fmt"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/yaml"

	"github.com/amd/madctl/internal/runner"
)

// RenderJob builds a batch/v1 Job for the given node and model tag and
// marshals it to YAML, for the "generate k8s" CLI verb's offline
// manifest output — the same Job buildJob submits live through the
// Kubernetes API during ExecuteWorkload.
func RenderJob(cfg Config, jobName, image, modelTag string, node runner.NodeConfig, extraEnv map[string]string) ([]byte, error) {
	job := buildJob(cfg, jobName, image, modelTag, node, extraEnv)
	job.TypeMeta = metav1.TypeMeta{APIVersion: "batch/v1", Kind: "Job"}
	return yaml.Marshal(job)
}

// buildJob constructs a single-completion batch/v1 Job running image
// with a pod NodeSelector made of the configured selector plus a label
// drawn from the Node Config gpu_vendor field.
func buildJob(cfg Config, jobName, image, modelTag string, node runner.NodeConfig, extraEnv map[string]string) *batchv1.Job {
	env := []corev1.EnvVar{
		{Name: "MADCTL_MODEL_TAG", Value: modelTag},
		{Name: "MADCTL_NODE_HOSTNAME", Value: node.Hostname},
	}
	for k, v := range extraEnv {
		env = append(env, corev1.EnvVar{Name: k, Value: v})
	}

	nodeSelector := map[string]string{}
	for k, v := range cfg.NodeSelector {
		nodeSelector[k] = v
	}
	if node.GPUVendor != "" {
		nodeSelector["gpu-vendor"] = string(node.GPUVendor)
	}

	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      jobName,
			Namespace: cfg.Namespace,
			Labels: map[string]string{
				"app.kubernetes.io/name":       "madctl",
				"app.kubernetes.io/managed-by": "madctl",
				"madctl/model-tag":             sanitizeLabel(modelTag),
			},
		},
		Spec: batchv1.JobSpec{
			Completions:             ptr.To(int32(1)),
			Parallelism:             ptr.To(int32(1)),
			BackoffLimit:            ptr.To(int32(0)),
			TTLSecondsAfterFinished: ptr.To(int32(3600)),
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{"app.kubernetes.io/name": "madctl"},
				},
				Spec: corev1.PodSpec{
					ServiceAccountName: cfg.ServiceAccountName,
					RestartPolicy:      corev1.RestartPolicyNever,
					NodeSelector:       nodeSelector,
					Containers: []corev1.Container{
						{
							Name:  "workload",
							Image: image,
							Env:   env,
							Resources: corev1.ResourceRequirements{
								Limits: corev1.ResourceList{
									"amd.com/gpu": resourceQuantity(node.GPUCount),
								},
							},
						},
					},
				},
			},
		},
	}
}

func resourceQuantity(gpuCount int) resource.Quantity {
	if gpuCount <= 0 {
		gpuCount = 1
	}
	return resource.MustParse(fmt.Sprintf("%d", gpuCount))
}

func sanitizeLabel(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			out = append(out, r)
		default:
			out = append(out, '-')
		}
	}
	if len(out) > 63 {
		out = out[:63]
	}
	return string(out)
}
