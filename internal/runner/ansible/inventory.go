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

package ansible

import (
	"bytes"
	"fmt"

	"github.com/amd/madctl/internal/runner"
)

// RenderInventory produces an INI-format Ansible inventory, one
// "gpu_nodes" group containing every node, keyed by hostname.
func RenderInventory(nodes []runner.NodeConfig) []byte {
	var buf bytes.Buffer
	buf.WriteString("[gpu_nodes]\n")
	for _, node := range nodes {
		port := node.Port
		if port == 0 {
			port = 22
		}
		fmt.Fprintf(&buf, "%s ansible_host=%s ansible_port=%d ansible_user=%s\n", node.Hostname, node.Address, port, node.Username)
	}

	buf.WriteString("\n[gpu_nodes:vars]\n")
	buf.WriteString("ansible_ssh_common_args='-o StrictHostKeyChecking=no'\n")
	for _, node := range nodes {
		if node.KeyPath != "" {
			fmt.Fprintf(&buf, "# %s key: %s\n", node.Hostname, node.KeyPath)
		}
	}

	return buf.Bytes()
}
