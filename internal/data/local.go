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

package data

import (
	"context"
	"os"
	"time"

	"github.com/amd/madctl/internal/errs"
)

// localSource is already present on the node's filesystem. It never
// mirrors, so mirrorlocal is rejected rather than silently ignored.
type localSource struct {
	base
}

func (s *localSource) Kind() Kind { return KindLocal }

func (s *localSource) CheckSource(ctx context.Context) (bool, error) {
	if _, ok := mirrorlocal(s.config); ok {
		return false, errs.Validation("data.localSource.CheckSource", "mirrorlocal cannot be specified for a local data source")
	}
	path, ok := stringVal(s.config, "path")
	if !ok || path == "" {
		return false, nil
	}
	_, err := os.Stat(path)
	return err == nil, nil
}

func (s *localSource) MountPath() (MountPath, bool) {
	path, ok := stringVal(s.config, "path")
	if !ok {
		return MountPath{}, false
	}
	home := s.datahome()
	if h, ok := stringVal(s.config, "home"); ok && h != "" {
		home = h
	}
	readwrite := false
	if rw, ok := s.config["readwrite"]; ok {
		if b, ok := rw.(bool); ok {
			readwrite = b
		}
	}
	return MountPath{Path: path, Home: home, ReadWrite: readwrite}, true
}

func (s *localSource) Prepare(ctx context.Context, exec Executor) (time.Duration, error) {
	return 0, nil
}
