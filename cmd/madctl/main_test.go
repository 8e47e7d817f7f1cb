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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/urfave/cli/v3"
)

func TestExitCodeNilIsZero(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
}

func TestExitCodeExitCoderIsPassedThrough(t *testing.T) {
	assert.Equal(t, 2, exitCode(invalidInvocation("bad flags")))
	assert.Equal(t, 1, exitCode(phaseFailure("3 builds failed")))
}

func TestExitCodePlainErrorDefaultsToOne(t *testing.T) {
	assert.Equal(t, 1, exitCode(errors.New("unexpected")))
}

func TestRootCommandAssemblesEverySubcommand(t *testing.T) {
	root := &cli.Command{
		Name: "madctl",
		Commands: []*cli.Command{
			buildCmd(),
			runCmd(),
			fullCmd(),
			generateCmd(),
			exportConfigCmd(),
		},
	}

	names := map[string]bool{}
	for _, c := range root.Commands {
		names[c.Name] = true
	}
	for _, want := range []string{"build", "run", "full", "generate", "export-config"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}
