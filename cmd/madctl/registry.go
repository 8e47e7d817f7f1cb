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

package main

import (
	"fmt"

	"github.com/amd/madctl/internal/errs"
	"github.com/amd/madctl/internal/runner"
	"github.com/amd/madctl/internal/runner/ansible"
	"github.com/amd/madctl/internal/runner/k8sjob"
	"github.com/amd/madctl/internal/runner/registry"
	"github.com/amd/madctl/internal/runner/slurm"
	"github.com/amd/madctl/internal/runner/ssh"
)

// registerRunnerBackend performs the explicit registration step the
// orchestrator's Runner Factory requires: each backend's constructor is
// called here, at process start, capturing the CLI-resolved node set and
// a DefaultConfig()-seeded Config. "local" needs no registration since
// Orchestrator.Run dispatches it in-process without the Factory.
func registerRunnerBackend(kind string, nodes []runner.NodeConfig, kubeconfig string) error {
	switch kind {
	case "local", "":
		return nil

	case string(registry.KindSSH):
		cfg := ssh.DefaultConfig()
		return registry.Register(registry.KindSSH, func() (runner.Runner, error) {
			return ssh.New(nodes, cfg), nil
		})

	case string(registry.KindSlurm):
		cfg := slurm.DefaultConfig()
		if len(nodes) > 0 {
			cfg.LoginNode = nodes[0]
		}
		return registry.Register(registry.KindSlurm, func() (runner.Runner, error) {
			return slurm.New(cfg), nil
		})

	case string(registry.KindAnsible):
		cfg := ansible.DefaultConfig()
		return registry.Register(registry.KindAnsible, func() (runner.Runner, error) {
			return ansible.New(nodes, cfg), nil
		})

	case string(registry.KindK8sJob):
		clientset, err := k8sjob.BuildClientset(kubeconfig)
		if err != nil {
			return err
		}
		cfg := k8sjob.DefaultConfig()
		return registry.Register(registry.KindK8sJob, func() (runner.Runner, error) {
			return k8sjob.New(nodes, cfg, clientset), nil
		})

	default:
		return errs.Configuration("main.registerRunnerBackend", fmt.Sprintf("unknown runner kind %q", kind),
			errs.WithSuggestions("available kinds: local, ssh, slurm, ansible, k8sjob"))
	}
}

// loadNodes resolves the node set a non-local runner kind dispatches
// over: SLURM exposes its partitions as logical nodes, every other
// backend fans out over the inventory's physical/GPU nodes directly.
func loadNodes(kind, inventoryPath string) ([]runner.NodeConfig, error) {
	if kind == "local" || kind == "" {
		return nil, nil
	}
	if inventoryPath == "" {
		return nil, invalidInvocation(fmt.Sprintf("--inventory is required when --runner-kind is %q", kind))
	}

	inv, err := runner.LoadInventory(inventoryPath)
	if err != nil {
		return nil, err
	}

	if kind == string(registry.KindSlurm) {
		return inv.SlurmNodes(), nil
	}
	return inv.AllNodes(), nil
}
