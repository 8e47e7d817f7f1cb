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

package orchestrator

import (
	"context"
	"log/slog"

	"github.com/amd/madctl/internal/buildcontext"
	"github.com/amd/madctl/internal/credentials"
	"github.com/amd/madctl/internal/discovery"
	"github.com/amd/madctl/internal/imagebuilder"
	"github.com/amd/madctl/internal/manifest"
)

// Build executes spec.md §4.10's Build phase: load credentials, build a
// Context, discover and filter models, drive the Image Builder, and
// persist the resulting Build Manifest.
func (o *Orchestrator) Build(ctx context.Context, args BuildArgs) (*BuildReport, error) {
	creds := credentials.Load(args.CredentialFile)

	buildCtx := buildcontext.New()
	if len(args.ExtraContext) > 0 {
		buildCtx.Merge(args.ExtraContext)
	}

	models, err := discovery.Discover(args.ModelDir)
	if err != nil {
		return nil, err
	}

	if len(args.Tags) > 0 {
		models, err = discovery.SelectByTags(models, args.Tags)
		if err != nil {
			return nil, err
		}
	}

	builder := imagebuilder.New(buildCtx, o.driver, creds)
	summary, err := builder.BuildAll(ctx, models, imagebuilder.BuildOptions{
		Registry:    args.Registry,
		CleanCache:  args.CleanCache,
		TargetArchs: args.TargetArchs,
	})
	if err != nil {
		return nil, err
	}

	m := manifest.New()
	m.BuiltImages = builder.BuiltImages()
	m.Context = buildCtx.Snapshot()
	m.Registry = args.Registry
	m.CredentialsRequired = requiredCredentialKeys(builder.BuiltModels())
	for name, model := range builder.BuiltModels() {
		m.BuiltModels[name] = model
	}
	for _, failure := range summary.FailedPushes {
		m.PushFailures = append(m.PushFailures, manifest.PushFailure{
			Image:                 failure.LocalImage,
			IntendedRegistryImage: failure.IntendedRegistryImage,
			Error:                 failure.Error,
		})
	}

	if args.ManifestPath != "" {
		if err := m.Save(args.ManifestPath); err != nil {
			return nil, err
		}
	}

	slog.Info("build phase complete",
		"models", len(models),
		"successful_builds", len(summary.SuccessfulBuilds),
		"failed_builds", len(summary.FailedBuilds),
		"successful_pushes", len(summary.SuccessfulPushes),
		"failed_pushes", len(summary.FailedPushes),
	)

	return &BuildReport{Manifest: m, Summary: summary}, nil
}

func requiredCredentialKeys(models map[string]discovery.ModelDescriptor) []string {
	seen := map[string]bool{}
	var required []string
	for _, m := range models {
		if m.Cred == "" || seen[m.Cred] {
			continue
		}
		seen[m.Cred] = true
		required = append(required, m.Cred)
	}
	return required
}
