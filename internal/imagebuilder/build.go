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

// Package imagebuilder resolves, per model, which dockerfile candidates
// apply under the current Context, builds one image per matching
// (dockerfile, GPU arch) pair, optionally tags and pushes to a registry,
// and records everything into the Build Manifest.
package imagebuilder

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amd/madctl/internal/buildcontext"
	"github.com/amd/madctl/internal/container"
	"github.com/amd/madctl/internal/credentials"
	"github.com/amd/madctl/internal/discovery"
	"github.com/amd/madctl/internal/manifest"
	"github.com/amd/madctl/internal/metrics"
)

// BatchOverride lets a per-model registry/registry-image pair from a
// batch build configuration supersede the batch-wide registry, per
// spec.md §4.5 step 6.
type BatchOverride struct {
	Registry      string
	RegistryImage string
}

// BuildOptions configures a single build_all invocation.
type BuildOptions struct {
	Registry       string
	CleanCache     bool
	TargetArchs    []string
	BatchOverrides map[string]BatchOverride
}

// BuildSummary mirrors the original tool's build_summary shape so the
// CLI and tests can assert on the same fields spec.md §8's scenarios
// describe.
type BuildSummary struct {
	SuccessfulBuilds []BuildRecord
	FailedBuilds     []BuildFailure
	TotalBuildTime   float64
	SuccessfulPushes []PushRecord
	FailedPushes     []PushFailureRecord
}

// BuildRecord is one successful (model, dockerfile) build.
type BuildRecord struct {
	Model      string
	Dockerfile string
	Entry      manifest.BuildEntry
}

// BuildFailure is one failed (model, dockerfile) build attempt.
type BuildFailure struct {
	Model      string
	Dockerfile string
	Error      string
}

// PushRecord is one successful registry push.
type PushRecord struct {
	Model         string
	Dockerfile    string
	LocalImage    string
	RegistryImage string
	Registry      string
}

// PushFailureRecord is one failed, non-fatal registry push.
type PushFailureRecord struct {
	Model                 string
	Dockerfile            string
	LocalImage            string
	IntendedRegistryImage string
	Registry              string
	Error                 string
}

// Builder builds images for a batch of models against a shared Context.
type Builder struct {
	ctx     *buildcontext.Context
	driver  *container.Driver
	creds   credentials.Store

	mu          sync.Mutex
	builtImages map[string]manifest.BuildEntry
	builtModels map[string]discovery.ModelDescriptor
}

// New returns a Builder that resolves dockerfile candidates against ctx
// and drives builds through driver.
func New(ctx *buildcontext.Context, driver *container.Driver, creds credentials.Store) *Builder {
	return &Builder{
		ctx:         ctx,
		driver:      driver,
		creds:       creds,
		builtImages: map[string]manifest.BuildEntry{},
		builtModels: map[string]discovery.ModelDescriptor{},
	}
}

// BuildAll runs the per-model algorithm from spec.md §4.5 over models,
// never aborting the batch on a single unit's failure.
func (b *Builder) BuildAll(ctx context.Context, models []discovery.ModelDescriptor, opts BuildOptions) (*BuildSummary, error) {
	summary := &BuildSummary{}

	for _, model := range models {
		candidates, err := enumerateCandidates(model.Dockerfile)
		if err != nil {
			summary.FailedBuilds = append(summary.FailedBuilds, BuildFailure{Model: model.Name, Error: err.Error()})
			continue
		}
		candidates = filterCandidates(candidates, b.ctx)
		if len(candidates) == 0 {
			continue
		}

		modelOverride, hasOverride := opts.BatchOverrides[model.Name]
		modelRegistry := opts.Registry
		if hasOverride && modelOverride.Registry != "" {
			modelRegistry = modelOverride.Registry
		}

		var summaryMu sync.Mutex
		var tasks []func(context.Context) error

		for _, c := range candidates {
			c := c
			targets := b.resolveBuildTargets(c, opts.TargetArchs)
			for _, arch := range targets {
				arch := arch
				tasks = append(tasks, func(taskCtx context.Context) error {
					record, pushRecord, pushFailure, err := b.buildOne(taskCtx, model, c, arch, opts.CleanCache, modelRegistry, modelOverride, hasOverride)

					summaryMu.Lock()
					defer summaryMu.Unlock()

					if err != nil {
						summary.FailedBuilds = append(summary.FailedBuilds, BuildFailure{
							Model: model.Name, Dockerfile: c.path, Error: err.Error(),
						})
						metrics.BuildsTotal.WithLabelValues(model.Name, "failure").Inc()
						return nil
					}
					summary.SuccessfulBuilds = append(summary.SuccessfulBuilds, *record)
					summary.TotalBuildTime += record.Entry.BuildDuration
					metrics.BuildsTotal.WithLabelValues(model.Name, "success").Inc()

					if pushRecord != nil {
						summary.SuccessfulPushes = append(summary.SuccessfulPushes, *pushRecord)
					}
					if pushFailure != nil {
						summary.FailedPushes = append(summary.FailedPushes, *pushFailure)
						metrics.PushFailuresTotal.WithLabelValues(model.Name).Inc()
					}
					return nil
				})
			}
		}

		// Fan-out is bounded at 4 concurrent builds per model so a batch
		// with many archs doesn't saturate the local container engine;
		// build failures are captured per-task above and never abort the
		// group, so this never returns a non-nil error.
		_ = buildManyArchsConcurrently(ctx, 4, tasks)
	}

	return summary, nil
}

// resolveBuildTargets implements spec.md §4.5 step 2: fan out one build
// per target arch unless the dockerfile itself already pins a GPU
// architecture via a build-arg override in the Context.
func (b *Builder) resolveBuildTargets(c candidate, targetArchs []string) []string {
	if b.ctx.DockerBuildArg()["MAD_SYSTEM_GPU_ARCHITECTURE"] != nil {
		return []string{""}
	}
	if len(targetArchs) == 0 {
		return []string{""}
	}

	declared, err := gpuArchDeclarations(c.path)
	if err != nil {
		return []string{""}
	}

	var compatible []string
	for _, arch := range targetArchs {
		if archCompatible(declared, arch) {
			compatible = append(compatible, arch)
		}
	}
	if len(compatible) == 0 {
		return nil
	}
	return compatible
}

func (b *Builder) buildOne(
	ctx context.Context,
	model discovery.ModelDescriptor,
	c candidate,
	arch string,
	cleanCache bool,
	registry string,
	override BatchOverride,
	hasOverride bool,
) (*BuildRecord, *PushRecord, *PushFailureRecord, error) {
	declared, _ := gpuArchDeclarations(c.path)
	suffix := ""
	if hasAnyGPUArchDeclaration(declared) && arch != "" {
		suffix = "_" + arch
	}

	tag := fmt.Sprintf("ci-%s_%s%s", slugifyModelName(model.Name), dockerfileStem(c.path), suffix)

	buildArgs := b.resolveBuildArgs(model)

	start := time.Now()
	buildErr := b.driver.Build(ctx, container.BuildOptions{
		Dockerfile: c.path,
		ContextDir: resolveContextDir(model),
		Tag:        tag,
		BuildArgs:  buildArgs,
		NoCache:    cleanCache,
		Network:    "host",
		Timeout:    30 * time.Minute,
	})
	duration := time.Since(start).Seconds()
	if buildErr != nil {
		return nil, nil, nil, buildErr
	}

	baseDocker := buildArgs["BASE_DOCKER"]
	if baseDocker == "" {
		baseDocker, _ = baseDockerFromDockerfile(c.path)
	}
	digest, _ := b.driver.ManifestDigest(ctx, baseDocker)

	entry := manifest.BuildEntry{
		DockerImage:     tag,
		Dockerfile:      c.path,
		BaseDocker:      baseDocker,
		BaseDockerSHA:   digest,
		BuildDuration:   duration,
		BuildCommand:    fmt.Sprintf("docker build --pull --network=host -t %s -f %s", tag, c.path),
		GPUArchitecture: arch,
		Registry:        registry,
	}

	var pushRecord *PushRecord
	var pushFailure *PushFailureRecord

	registryImage := ""
	if hasOverride && override.RegistryImage != "" {
		registryImage = override.RegistryImage
	} else if registry != "" {
		registryImage = determineRegistryImageName(tag, registry, b.creds)
	}

	if registryImage != "" {
		entry.RegistryImage = registryImage
		if registryImage != tag {
			if err := b.driver.Tag(ctx, tag, registryImage); err != nil {
				entry.PushFailed = true
				entry.PushError = err.Error()
				pushFailure = &PushFailureRecord{Model: model.Name, Dockerfile: c.path, LocalImage: tag, IntendedRegistryImage: registryImage, Registry: registry, Error: err.Error()}
			}
		}
		if !entry.PushFailed && registry != "" {
			if err := b.driver.Push(ctx, registryImage); err != nil {
				entry.PushFailed = true
				entry.PushError = err.Error()
				pushFailure = &PushFailureRecord{Model: model.Name, Dockerfile: c.path, LocalImage: tag, IntendedRegistryImage: registryImage, Registry: registry, Error: err.Error()}
			} else {
				pushRecord = &PushRecord{Model: model.Name, Dockerfile: c.path, LocalImage: tag, RegistryImage: registryImage, Registry: registry}
			}
		}
	}

	b.mu.Lock()
	b.builtImages[tag] = entry
	b.builtModels[tag] = model
	b.mu.Unlock()

	return &BuildRecord{Model: model.Name, Dockerfile: c.path, Entry: entry}, pushRecord, pushFailure, nil
}

// resolveBuildArgs merges the Context's docker_build_arg map with a
// credential dictionary expansion, per spec.md §4.5 step 4.
func (b *Builder) resolveBuildArgs(model discovery.ModelDescriptor) map[string]string {
	args := map[string]string{}
	for k, v := range b.ctx.DockerBuildArg() {
		if s, ok := v.(string); ok {
			args[k] = s
		}
	}
	if model.Cred == "" {
		return args
	}
	creds, ok := b.creds.Registry(model.Cred)
	if !ok {
		return args
	}
	for field, value := range creds {
		if s, ok := value.(string); ok {
			args[model.Cred+"_"+strings.ToUpper(field)] = s
		}
	}
	return args
}

func resolveContextDir(model discovery.ModelDescriptor) string {
	if model.DockerContext != "" {
		return model.DockerContext
	}
	return "./docker"
}

// determineRegistryImageName implements spec.md §4.5 step 6's naming
// rule, grounded in _determine_registry_image_name.
func determineRegistryImageName(localTag, registry string, creds credentials.Store) string {
	lower := strings.ToLower(registry)
	if lower == "docker.io" || lower == "dockerhub" {
		if repo, ok := creds.Registry("dockerhub"); ok {
			if repository, ok := repo["repository"].(string); ok && repository != "" {
				return fmt.Sprintf("%s:%s", repository, localTag)
			}
		}
		return localTag
	}

	if repo, ok := creds.Registry(registry); ok {
		if repository, ok := repo["repository"].(string); ok && repository != "" {
			return fmt.Sprintf("%s/%s:%s", registry, repository, localTag)
		}
	}
	return fmt.Sprintf("%s/%s", registry, localTag)
}

// BuiltImages returns the accumulated Build Entries, keyed by image ref.
func (b *Builder) BuiltImages() map[string]manifest.BuildEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]manifest.BuildEntry, len(b.builtImages))
	for k, v := range b.builtImages {
		out[k] = v
	}
	return out
}

// BuiltModels returns the accumulated model descriptors, keyed by image ref.
func (b *Builder) BuiltModels() map[string]discovery.ModelDescriptor {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]discovery.ModelDescriptor, len(b.builtModels))
	for k, v := range b.builtModels {
		out[k] = v
	}
	return out
}

// buildManyArchsConcurrently runs tasks (one per dockerfile/arch pair)
// through an errgroup bounded at limit concurrent builds, so a wide
// arch fan-out doesn't saturate the local container engine.
func buildManyArchsConcurrently(ctx context.Context, limit int, tasks []func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, task := range tasks {
		task := task
		g.Go(func() error { return task(gctx) })
	}
	return g.Wait()
}
