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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCmdStructure(t *testing.T) {
	cmd := runCmd()

	assert.Equal(t, "run", cmd.Name)
	assert.NotEmpty(t, cmd.Usage)
	assert.NotEmpty(t, cmd.Description)
	assert.NotNil(t, cmd.Action)

	for _, name := range []string{"manifest-file", "timeout", "output", "runner-kind", "inventory", "kubeconfig"} {
		found := false
		for _, f := range cmd.Flags {
			if hasName(f, name) {
				found = true
				break
			}
		}
		assert.True(t, found, "flag %q not found", name)
	}
}

func TestRunCmdRequiresManifestFile(t *testing.T) {
	cmd := runCmd()
	err := cmd.Run(context.Background(), []string{"run"})
	require.Error(t, err)
}
