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
	"github.com/urfave/cli/v3"

	"github.com/amd/madctl/internal/config"
)

func TestBuildCmdStructure(t *testing.T) {
	cmd := buildCmd()

	assert.Equal(t, "build", cmd.Name)
	assert.NotEmpty(t, cmd.Usage)
	assert.NotEmpty(t, cmd.Description)
	assert.NotNil(t, cmd.Action)

	for _, name := range []string{"tags", "registry", "clean-docker-cache", "manifest-output", "target-archs", "model-dir"} {
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

func TestBuildCmdRejectsEmptyTags(t *testing.T) {
	cmd := buildCmd()
	err := cmd.Run(context.Background(), []string{"build"})
	require.Error(t, err)
}

func TestConfigurationFromFlagsOverlaysFlagValues(t *testing.T) {
	var got config.Configuration
	cmd := newTestCommand([]cli.Flag{modelDirFlag, credentialFileFlag, logLevelFlag, metricsAddrFlag}, func(ctx context.Context, c *cli.Command) error {
		got = configurationFromFlags(c)
		return nil
	})

	err := cmd.Run(context.Background(), []string{"test", "--model-dir", "/models", "--credential-file", "cred.json", "--log-level", "debug"})
	require.NoError(t, err)
	assert.Equal(t, "/models", got.ModelDir)
	assert.Equal(t, "cred.json", got.CredentialFile)
	assert.Equal(t, "debug", got.LogLevel)
}
