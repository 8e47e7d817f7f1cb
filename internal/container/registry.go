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

package container

import (
	"context"
	"fmt"

	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"
	oras "oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/file"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"

	"github.com/amd/madctl/internal/errs"
)

// ArtifactMediaType tags generated ansible/k8s bundles pushed as OCI
// artifacts by PushArtifact. No CLI command calls PushArtifact.
const ArtifactMediaType = "application/vnd.amd.madctl.generated-artifact"

// PushArtifactOptions configures a generated-bundle OCI push.
type PushArtifactOptions struct {
	SourceDir string
	Registry  string
	Repo      string
	Tag       string
	PlainHTTP bool
}

// PushArtifactResult is the outcome of a successful artifact push.
type PushArtifactResult struct {
	Digest    string
	Reference string
}

// PushArtifact packs SourceDir's contents into a single OCI manifest and
// pushes it to Registry/Repo:Tag, reusing the teacher's ORAS-based push
// pipeline rather than a bespoke one.
func PushArtifact(ctx context.Context, opts PushArtifactOptions) (*PushArtifactResult, error) {
	fs, err := file.New(opts.SourceDir)
	if err != nil {
		return nil, errs.Runtime("container.PushArtifact", "failed to open artifact source directory", errs.WithCause(err))
	}
	defer func() { _ = fs.Close() }()
	fs.TarReproducible = true

	layerDesc, err := fs.Add(ctx, ".", ociv1.MediaTypeImageLayerGzip, opts.SourceDir)
	if err != nil {
		return nil, errs.Runtime("container.PushArtifact", "failed to add artifact contents to store", errs.WithCause(err))
	}

	manifestDesc, err := oras.PackManifest(ctx, fs, oras.PackManifestVersion1_1, ArtifactMediaType, oras.PackManifestOptions{
		Layers: []ociv1.Descriptor{layerDesc},
	})
	if err != nil {
		return nil, errs.Runtime("container.PushArtifact", "failed to pack artifact manifest", errs.WithCause(err))
	}
	if err := fs.Tag(ctx, manifestDesc, opts.Tag); err != nil {
		return nil, errs.Runtime("container.PushArtifact", "failed to tag artifact manifest", errs.WithCause(err))
	}

	repo, err := remote.NewRepository(fmt.Sprintf("%s/%s", opts.Registry, opts.Repo))
	if err != nil {
		return nil, errs.Connection("container.PushArtifact", "failed to initialize remote repository", errs.WithCause(err))
	}
	repo.PlainHTTP = opts.PlainHTTP

	credStore, _ := credentials.NewStoreFromDocker(credentials.StoreOptions{})
	repo.Client = &auth.Client{
		Cache:      auth.NewCache(),
		Credential: credentials.Credential(credStore),
	}

	desc, err := oras.Copy(ctx, fs, opts.Tag, repo, opts.Tag, oras.DefaultCopyOptions)
	if err != nil {
		return nil, errs.Connection("container.PushArtifact", "failed to push artifact to registry", errs.WithCause(err))
	}

	return &PushArtifactResult{
		Digest:    desc.Digest.String(),
		Reference: fmt.Sprintf("%s/%s:%s", opts.Registry, opts.Repo, opts.Tag),
	}, nil
}
