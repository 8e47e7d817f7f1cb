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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/amd/madctl/internal/errs"
)

// customSource stages a dataset by running a script under
// scripts/common/data inside the model container, the highest-priority
// source since it lets a model fully own its own data staging.
type customSource struct {
	base
}

func (s *customSource) Kind() Kind { return KindCustom }

func (s *customSource) CheckSource(ctx context.Context) (bool, error) {
	if ml, ok := mirrorlocal(s.config); ok {
		if err := ensureMirrorDir(ml, s.dataname); err != nil {
			return false, err
		}
	}

	path, ok := stringVal(s.config, "path")
	if !ok || path == "" {
		return false, nil
	}
	_, err := os.Stat(path)
	return err == nil, nil
}

func (s *customSource) MountPath() (MountPath, bool) {
	ml, ok := mirrorlocal(s.config)
	if !ok {
		return MountPath{}, false
	}
	return MountPath{Path: filepath.Join(ml, s.dataname), Home: s.datahome(), ReadWrite: true}, true
}

func (s *customSource) Prepare(ctx context.Context, exec Executor) (time.Duration, error) {
	path, _ := stringVal(s.config, "path")
	args, _ := stringVal(s.config, "args")
	datahome := s.datahome()

	cmd := fmt.Sprintf("mkdir -p %s; cd %s; bash /myworkspace/%s %s", datahome, datahome, path, args)

	start := time.Now()
	if _, err := exec.Exec(ctx, cmd, 20*time.Minute, ""); err != nil {
		return 0, errs.Runtime("data.customSource.Prepare", "custom data script failed", errs.WithCause(err), errs.WithContext(errs.Context{ModelName: s.dataname}))
	}
	return time.Since(start), nil
}

// ensureMirrorDir validates that a mirrorlocal path exists and creates
// its per-dataset subdirectory, matching every source's shared
// mirrorlocal precheck.
func ensureMirrorDir(mirrorlocal, dataname string) error {
	if _, err := os.Stat(mirrorlocal); err != nil {
		return errs.Validation("data.ensureMirrorDir", "mirrorlocal is a non-existent path", errs.WithCause(err), errs.WithContext(errs.Context{FilePath: mirrorlocal}))
	}
	dir := filepath.Join(mirrorlocal, dataname)
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Runtime("data.ensureMirrorDir", "failed to create mirrorlocal dataset directory", errs.WithCause(err), errs.WithContext(errs.Context{FilePath: dir}))
	}
	return nil
}
