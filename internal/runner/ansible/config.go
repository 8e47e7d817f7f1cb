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

// Package ansible renders an inventory and playbook from a fleet of
// nodes and a Build Manifest, then drives ansible-playbook through the
// shared shell console, harvesting its per-host recap line.
package ansible

import "time"

// Config configures one Ansible Runner instance.
type Config struct {
	WorkDir        string // directory generated inventory/playbook are written to
	PlaybookPath   string // explicit playbook path; generated alongside WorkDir if empty
	AnsibleBinary  string
	RunTimeout     time.Duration
	BecomeUser     string
}

// DefaultConfig mirrors the conventions assumed by the generated
// playbook's "generate ansible" CLI verb.
func DefaultConfig() Config {
	return Config{
		WorkDir:       "./ansible",
		AnsibleBinary: "ansible-playbook",
		RunTimeout:    2 * time.Hour,
	}
}
