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

const minioProbeTimeout = 30 * time.Second

// minioSource syncs an S3-compatible prefix from a self-hosted MinIO
// endpoint into the container, reusing the awscli's s3 subcommands
// pointed at a custom --endpoint-url, same as the source's provider.
type minioSource struct {
	base
	defaults CloudCredential
}

func (s *minioSource) Kind() Kind { return KindMinio }

func (s *minioSource) settings() (username, password, endpoint, endpointURLS3 string) {
	username, ok := stringVal(s.config, "username")
	if !ok {
		username = s.defaults.Username
	}
	password, ok = stringVal(s.config, "password")
	if !ok {
		password = s.defaults.Password
	}
	endpoint, ok = stringVal(s.config, "minio_endpoint")
	if !ok {
		endpoint = s.defaults.Endpoint
	}
	endpointURLS3, ok = stringVal(s.config, "aws_endpoint_url_s3")
	if !ok {
		endpointURLS3 = s.defaults.EndpointURLS3
	}
	return username, password, endpoint, endpointURLS3
}

func (s *minioSource) CheckSource(ctx context.Context) (bool, error) {
	if ml, ok := mirrorlocal(s.config); ok {
		if err := ensureMirrorDir(ml, s.dataname); err != nil {
			return false, err
		}
	}

	_, _, endpoint, _ := s.settings()
	if endpoint == "" {
		return false, nil
	}

	c := console.New()
	probe := fmt.Sprintf("timeout %d curl -s %s -o /dev/null", int(minioProbeTimeout.Seconds()), endpoint)
	if _, err := c.Run(ctx, probe, console.Options{Timeout: minioProbeTimeout + 5*time.Second}); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *minioSource) MountPath() (MountPath, bool) {
	ml, ok := mirrorlocal(s.config)
	if !ok {
		return MountPath{}, false
	}
	return MountPath{Path: ml + "/" + s.dataname, Home: s.datahome(), ReadWrite: true}, true
}

func (s *minioSource) Prepare(ctx context.Context, exec Executor) (time.Duration, error) {
	datahome := s.datahome()
	path, _ := stringVal(s.config, "path")
	username, password, endpoint, endpointURLS3 := s.settings()

	cmd := fmt.Sprintf(`
		pip3 --no-cache-dir install --upgrade awscli
		export AWS_ACCESS_KEY_ID=%[1]s
		export AWS_SECRET_ACCESS_KEY=%[2]s
		export MINIO_ENDPOINT=%[3]s
		export AWS_ENDPOINT_URL_S3=%[4]s
		mkdir -p %[6]s
		if ( aws --endpoint-url %[3]s s3 ls %[5]s | grep PRE ); then
			aws --endpoint-url %[3]s s3 sync %[5]s %[6]s
		else
			aws --endpoint-url %[3]s s3 sync "$(dirname %[5]s)" %[6]s --exclude="*" --include="$(basename %[5]s)"
		fi
	`, username, password, endpoint, endpointURLS3, path, datahome)

	start := time.Now()
	if _, err := exec.Exec(ctx, cmd, time.Hour, password); err != nil {
		return 0, errs.Connection("data.minioSource.Prepare", "failed to sync data from MinIO", errs.WithCause(err), errs.WithContext(errs.Context{ModelName: s.dataname}))
	}
	return time.Since(start), nil
}
