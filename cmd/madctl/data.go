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
	"github.com/urfave/cli/v3"

	"github.com/amd/madctl/internal/config"
	"github.com/amd/madctl/internal/credentials"
	"github.com/amd/madctl/internal/data"
)

// buildDataCollaborator assembles the Data collaborator from
// --data-config-file-name and --force-mirror-local, the same flags the
// original tool's add_model_arguments() exposes, falling back to an
// empty Config when the file does not exist.
func buildDataCollaborator(cmd *cli.Command, cfg config.Configuration) (*data.Data, error) {
	dataCfg, err := data.LoadConfig(cmd.String("data-config-file-name"))
	if err != nil {
		return nil, err
	}

	if forced := cmd.String("force-mirror-local"); forced != "" {
		dataCfg = dataCfg.WithForceMirrorLocal(forced)
	}

	creds := credentials.Load(cfg.CredentialFile)
	defaults := data.DefaultsFromEnvironment(cfg, creds)

	return data.New(dataCfg, defaults), nil
}
