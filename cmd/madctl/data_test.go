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

func TestBuildDataCollaboratorDefaultsWhenConfigFileMissing(t *testing.T) {
	var err error
	cmd := newTestCommand([]cli.Flag{dataConfigFileFlag, forceMirrorLocalFlag}, func(ctx context.Context, c *cli.Command) error {
		_, err = buildDataCollaborator(c, config.Configuration{})
		return nil
	})

	require.NoError(t, cmd.Run(context.Background(), []string{"test", "--data-config-file-name", "/no/such/data.json"}))
	require.NoError(t, err)
}

func TestBuildDataCollaboratorAppliesForceMirrorLocal(t *testing.T) {
	var ok bool
	cmd := newTestCommand([]cli.Flag{dataConfigFileFlag, forceMirrorLocalFlag}, func(ctx context.Context, c *cli.Command) error {
		d, err := buildDataCollaborator(c, config.Configuration{})
		ok = d != nil && err == nil
		return err
	})

	err := cmd.Run(context.Background(), []string{"test", "--force-mirror-local", "/tmp/mirror"})
	require.NoError(t, err)
	assert.True(t, ok)
}
