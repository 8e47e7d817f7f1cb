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
	"time"

	"github.com/amd/madctl/internal/console"
	"github.com/amd/madctl/internal/errs"
)

const awsProbeTimeout = 30 * time.Second

// awsSource syncs an S3 prefix into the container via the awscli,
// reachability-checked with a raw TCP dial to the regional S3 endpoint
// before any credentials are used.
type awsSource struct {
	base
	defaults CloudCredential
}

func (s *awsSource) Kind() Kind { return KindAws }

func (s *awsSource) credential() (string, string) {
	username, ok := stringVal(s.config, "username")
	if !ok {
		username = s.defaults.Username
	}
	password, ok := stringVal(s.config, "password")
	if !ok {
		password = s.defaults.Password
	}
	return username, password
}

func (s *awsSource) CheckSource(ctx context.Context) (bool, error) {
	if ml, ok := mirrorlocal(s.config); ok {
		if err := ensureMirrorDir(ml, s.dataname); err != nil {
			return false, err
		}
	}

	c := console.New()
	probe := fmt.Sprintf("timeout %d bash -c '</dev/tcp/s3.us-east-2.amazonaws.com/443'", int(awsProbeTimeout.Seconds()))
	if _, err := c.Run(ctx, probe, console.Options{Timeout: awsProbeTimeout + 5*time.Second}); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *awsSource) MountPath() (MountPath, bool) {
	ml, ok := mirrorlocal(s.config)
	if !ok {
		return MountPath{}, false
	}
	return MountPath{Path: ml + "/" + s.dataname, Home: s.datahome(), ReadWrite: true}, true
}

func (s *awsSource) Prepare(ctx context.Context, exec Executor) (time.Duration, error) {
	datahome := s.datahome()
	path, _ := stringVal(s.config, "path")
	username, password := s.credential()

	cmd := fmt.Sprintf(`
		pip3 --no-cache-dir install --upgrade awscli
		export AWS_ACCESS_KEY_ID=%[1]s
		export AWS_SECRET_ACCESS_KEY=%[2]s
		mkdir -p %[4]s
		if ( aws --region=us-east-2 s3 ls %[3]s | grep "PRE" ); then
			aws --region=us-east-2 s3 sync %[3]s %[4]s
		else
			aws --region=us-east-2 s3 sync "$(dirname %[3]s)" %[4]s --exclude="*" --include="$(basename %[3]s)"
		fi
	`, username, password, path, datahome)

	start := time.Now()
	if _, err := exec.Exec(ctx, cmd, time.Hour, password); err != nil {
		return 0, errs.Connection("data.awsSource.Prepare", "failed to sync data from S3", errs.WithCause(err), errs.WithContext(errs.Context{ModelName: s.dataname}))
	}
	return time.Since(start), nil
}
