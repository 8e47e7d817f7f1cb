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

// Package data implements the Data collaborator: a tagged variant of
// dataset sources (custom script, local path, MinIO, NAS, AWS S3)
// dispatched through a static, priority-ordered lookup with per-dataset
// memoization. Each Source mirrors original_source's
// src/madengine/core/dataprovider.py provider hierarchy, re-architected
// from class polymorphism into a closed interface the Go type system
// can check exhaustively.
package data

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amd/madctl/internal/errs"
)

// Kind names one of the five dataset source implementations.
type Kind string

const (
	KindCustom Kind = "custom"
	KindLocal  Kind = "local"
	KindMinio  Kind = "minio"
	KindNas    Kind = "nas"
	KindAws    Kind = "aws"
)

// priority is the fixed dispatch order: first source whose CheckSource
// succeeds wins. Matches Data.reorder_data_provider_config.
var priority = []Kind{KindCustom, KindLocal, KindMinio, KindNas, KindAws}

// MountPath is one container mount produced by a Source, equivalent to
// get_mountpath's returned dict.
type MountPath struct {
	Path      string
	Home      string
	ReadWrite bool
}

// Executor runs a shell command inside the target container or host,
// standing in for model_docker.sh(cmd, timeout=...) in the source.
// *container.Handle satisfies this with its Exec method.
type Executor interface {
	Exec(ctx context.Context, command string, timeout time.Duration, secret string) (string, error)
}

// Source is the shared interface every dataset source implements:
// check_source / get_mount_paths / prepare / env from §9's Design Notes.
type Source interface {
	Kind() Kind
	// CheckSource validates reachability/existence of the backing
	// store, performing any local mirror-directory setup as a side
	// effect. A false return (with nil error) means "try the next
	// source in priority order"; a non-nil error means the source's
	// configuration is invalid and dispatch should stop.
	CheckSource(ctx context.Context) (bool, error)
	// MountPath returns the container mount this source contributes,
	// when it mirrors data to a local path.
	MountPath() (MountPath, bool)
	// Env returns the environment variables this source injects into
	// the model container, always including MAD_DATAHOME.
	Env() map[string]string
	// Prepare stages the dataset via exec, returning the elapsed
	// duration on success.
	Prepare(ctx context.Context, exec Executor) (time.Duration, error)
}

// Config is the on-disk dataset configuration: dataset name to source
// kind to that source's settings, read from data.json.
type Config map[string]map[Kind]map[string]any

// Data is the dispatch collaborator. It holds the dataset configuration,
// the pass-through provider defaults (NAS node list, AWS/MinIO
// credentials), and a memoized resolution per dataset name.
type Data struct {
	config   Config
	defaults Defaults

	mu       sync.Mutex
	resolved map[string]Source
}

// New returns a Data collaborator over the given dataset configuration
// and provider defaults.
func New(config Config, defaults Defaults) *Data {
	return &Data{
		config:   config,
		defaults: defaults,
		resolved: map[string]Source{},
	}
}

// Find resolves dataname to a Source, trying each configured source kind
// in priority order and memoizing the first whose CheckSource succeeds.
// A dataset with no matching source returns (nil, false, nil), mirroring
// find_dataprovider's "not found" path rather than erroring.
func (d *Data) Find(ctx context.Context, dataname string) (Source, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if src, ok := d.resolved[dataname]; ok {
		return src, src != nil, nil
	}

	datasetCfg, ok := d.config[dataname]
	if !ok {
		d.resolved[dataname] = nil
		return nil, false, nil
	}

	index := len(d.resolved)
	for _, kind := range priority {
		cfg, ok := datasetCfg[kind]
		if !ok {
			continue
		}

		src, err := newSource(kind, dataname, cfg, index, d.defaults)
		if err != nil {
			return nil, false, err
		}

		ok, err = src.CheckSource(ctx)
		if err != nil {
			return nil, false, err
		}
		if ok {
			d.resolved[dataname] = src
			return src, true, nil
		}
	}

	d.resolved[dataname] = nil
	return nil, false, nil
}

// MountPaths resolves a comma-separated dataset name list to the mount
// paths each resolved source contributes.
func (d *Data) MountPaths(ctx context.Context, datanames string) ([]MountPath, error) {
	names, err := splitDatanames(datanames)
	if err != nil {
		return nil, err
	}

	var paths []MountPath
	for _, name := range names {
		src, found, err := d.Find(ctx, name)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		if mp, ok := src.MountPath(); ok {
			paths = append(paths, mp)
		}
	}
	return paths, nil
}

// Env resolves a comma-separated dataset name list to the merged
// environment variables each resolved source contributes, concatenating
// MAD_DATAHOME values as the source does.
func (d *Data) Env(ctx context.Context, datanames string) (map[string]string, error) {
	names, err := splitDatanames(datanames)
	if err != nil {
		return nil, err
	}

	env := map[string]string{}
	for _, name := range names {
		src, found, err := d.Find(ctx, name)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		for k, v := range src.Env() {
			if k == "MAD_DATAHOME" {
				if existing, ok := env[k]; ok {
					env[k] = existing + "," + v
					continue
				}
			}
			env[k] = v
		}
	}
	return env, nil
}

// Prepare stages every dataset in the comma-separated list via exec,
// returning the first preparation error encountered.
func (d *Data) Prepare(ctx context.Context, datanames string, exec Executor) error {
	names, err := splitDatanames(datanames)
	if err != nil {
		return err
	}

	for _, name := range names {
		src, found, err := d.Find(ctx, name)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		if _, err := src.Prepare(ctx, exec); err != nil {
			return err
		}
	}
	return nil
}

func splitDatanames(datanames string) ([]string, error) {
	if datanames == "" {
		return nil, errs.Validation("data.splitDatanames", "dataset name list must not be empty")
	}
	var names []string
	start := 0
	for i := 0; i <= len(datanames); i++ {
		if i == len(datanames) || datanames[i] == ',' {
			names = append(names, datanames[start:i])
			start = i + 1
		}
	}
	return names, nil
}

func newSource(kind Kind, dataname string, cfg map[string]any, index int, defaults Defaults) (Source, error) {
	b := base{dataname: dataname, config: cfg, index: index}
	switch kind {
	case KindCustom:
		return &customSource{base: b}, nil
	case KindLocal:
		return &localSource{base: b}, nil
	case KindMinio:
		return &minioSource{base: b, defaults: defaults.Minio}, nil
	case KindNas:
		return &nasSource{base: b, nodes: defaults.NASNodes}, nil
	case KindAws:
		return &awsSource{base: b, defaults: defaults.AWS}, nil
	default:
		return nil, errs.Configuration("data.newSource", fmt.Sprintf("unknown data source kind %q", kind))
	}
}
