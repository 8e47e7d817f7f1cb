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

// Package metrics records Prometheus counters/gauges for the Build and
// Run pipeline. Metrics are always recorded into the default registry
// regardless of whether an HTTP server is bound, so tests can assert on
// them without standing up a listener.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BuildsTotal counts image builds by model and outcome.
	BuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "madctl",
		Name:      "builds_total",
		Help:      "Total number of image builds, partitioned by model and outcome.",
	}, []string{"model", "outcome"})

	// PushFailuresTotal counts non-fatal registry push failures by model.
	PushFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "madctl",
		Name:      "push_failures_total",
		Help:      "Total number of registry push failures, partitioned by model.",
	}, []string{"model"})

	// RunnerExecutionsTotal counts workload executions by runner kind and outcome.
	RunnerExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "madctl",
		Name:      "runner_executions_total",
		Help:      "Total number of workload executions, partitioned by runner kind and outcome.",
	}, []string{"runner", "outcome"})

	// ExecutionDurationSeconds observes workload execution wall time by runner kind.
	ExecutionDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "madctl",
		Name:      "execution_duration_seconds",
		Help:      "Workload execution duration in seconds, partitioned by runner kind.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"runner"})
)
