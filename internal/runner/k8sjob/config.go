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

// Package k8sjob runs a workload as a batch/v1 Job per node selector,
// polling Job status through client-go rather than the controller-runtime
// watch machinery. Container logs are not collected.
package k8sjob

import "time"

// Config configures one Kubernetes Job Runner instance.
type Config struct {
	Namespace          string
	JobNamePrefix      string
	ServiceAccountName string
	Image              string // overridden per workload when the registry image is known
	NodeSelector       map[string]string
	PollInterval       time.Duration
	WaitTimeout        time.Duration
}

// DefaultConfig mirrors the namespace/polling conventions of the
// cluster-native deployer this package is modeled on.
func DefaultConfig() Config {
	return Config{
		Namespace:     "default",
		JobNamePrefix: "madctl",
		PollInterval:  2 * time.Second,
		WaitTimeout:   2 * time.Hour,
	}
}
