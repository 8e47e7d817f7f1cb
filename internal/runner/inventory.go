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

package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/amd/madctl/internal/errs"
)

// SlurmCluster describes the login node plus the partitions that each
// become one logical node in the SLURM Runner's inventory view.
type SlurmCluster struct {
	LoginNode  NodeConfig `json:"login_node" yaml:"login_node"`
	Partitions []string   `json:"partitions" yaml:"partitions"`
}

// Inventory is the parsed contents of a node inventory file.
type Inventory struct {
	Nodes        []NodeConfig `json:"nodes,omitempty" yaml:"nodes,omitempty"`
	GPUNodes     []NodeConfig `json:"gpu_nodes,omitempty" yaml:"gpu_nodes,omitempty"`
	SlurmCluster *SlurmCluster `json:"slurm_cluster,omitempty" yaml:"slurm_cluster,omitempty"`
}

// AllNodes flattens nodes and gpu_nodes (SLURM partitions are exposed
// via SlurmNodes, consumed separately by the SLURM runner).
func (inv Inventory) AllNodes() []NodeConfig {
	nodes := make([]NodeConfig, 0, len(inv.Nodes)+len(inv.GPUNodes))
	nodes = append(nodes, inv.Nodes...)
	nodes = append(nodes, inv.GPUNodes...)
	return nodes
}

// SlurmNodes exposes each configured partition as a logical NodeConfig
// whose hostname is the partition name, per spec.md §4.8.
func (inv Inventory) SlurmNodes() []NodeConfig {
	if inv.SlurmCluster == nil {
		return nil
	}
	nodes := make([]NodeConfig, 0, len(inv.SlurmCluster.Partitions))
	for _, partition := range inv.SlurmCluster.Partitions {
		node := inv.SlurmCluster.LoginNode
		node.Hostname = partition
		nodes = append(nodes, node)
	}
	return nodes
}

// LoadInventory reads path as JSON or YAML (selected by extension,
// defaulting to YAML for anything else) and validates every node.
func LoadInventory(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Configuration("runner.LoadInventory", "inventory file not found", errs.WithCause(err), errs.WithContext(errs.Context{FilePath: path}))
	}

	var inv Inventory
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &inv)
	} else {
		err = yaml.Unmarshal(data, &inv)
	}
	if err != nil {
		return nil, errs.Configuration("runner.LoadInventory", "inventory file is not valid JSON/YAML", errs.WithCause(err), errs.WithContext(errs.Context{FilePath: path}))
	}

	if err := validateInventory(inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func validateInventory(inv Inventory) error {
	seen := map[string]bool{}
	for _, n := range inv.AllNodes() {
		if err := validateNode(n); err != nil {
			return err
		}
		if seen[n.Hostname] {
			return errs.Configuration("runner.validateInventory", fmt.Sprintf("duplicate hostname %q in inventory", n.Hostname))
		}
		seen[n.Hostname] = true
	}
	return nil
}

func validateNode(n NodeConfig) error {
	if n.Hostname == "" || n.Address == "" {
		return errs.Configuration("runner.validateNode", "node entry requires hostname and address", errs.WithContext(errs.Context{Extra: map[string]any{"hostname": n.Hostname, "address": n.Address}}))
	}
	if n.GPUVendor != "" && !validVendor(n.GPUVendor) {
		return errs.Configuration("runner.validateNode", fmt.Sprintf("node %q declares unrecognized gpu_vendor %q", n.Hostname, n.GPUVendor))
	}
	return nil
}
