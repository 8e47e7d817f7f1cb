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
	"encoding/json"

	"github.com/amd/madctl/internal/config"
	"github.com/amd/madctl/internal/credentials"
)

// NASNode is one entry of the pass-through NAS_NODES list, identical in
// shape to the source's nas_node dict.
type NASNode struct {
	Name     string `json:"NAME"`
	Host     string `json:"HOST"`
	Port     string `json:"PORT"`
	Username string `json:"USERNAME"`
	Password string `json:"PASSWORD"`
}

// CloudCredential is the username/password pair AWSDataProvider and
// MinioDataProvider fall back to when a dataset's own config omits them.
type CloudCredential struct {
	Username      string
	Password      string
	Endpoint      string
	EndpointURLS3 string
}

// Defaults bundles every setting the Data collaborator never validates
// or requires, passed through verbatim from Configuration and the
// credential store, per config.Configuration's NASNodes/AWSS3Bucket/
// MinioEndpoint fields.
type Defaults struct {
	NASNodes []NASNode
	AWS      CloudCredential
	Minio    CloudCredential
}

// DefaultsFromEnvironment assembles Defaults from a Configuration and a
// loaded credential Store, mirroring constants.py's NAS_NODES,
// MAD_AWS_S3 and MAD_MINIO module-level dicts without any package-level
// mutable state.
func DefaultsFromEnvironment(cfg config.Configuration, creds credentials.Store) Defaults {
	d := Defaults{
		AWS:   CloudCredential{},
		Minio: CloudCredential{Endpoint: cfg.MinioEndpoint},
	}

	if cfg.NASNodes != "" {
		var nodes []NASNode
		if err := json.Unmarshal([]byte(cfg.NASNodes), &nodes); err == nil {
			d.NASNodes = nodes
		}
	}

	if aws, ok := creds.Registry("MAD_AWS_S3"); ok {
		d.AWS.Username, _ = stringVal(aws, "username")
		d.AWS.Password, _ = stringVal(aws, "password")
	}

	if minio, ok := creds.Registry("MAD_MINIO"); ok {
		d.Minio.Username, _ = stringVal(minio, "username")
		d.Minio.Password, _ = stringVal(minio, "password")
		if endpoint, ok := stringVal(minio, "minio_endpoint"); ok && endpoint != "" {
			d.Minio.Endpoint = endpoint
		}
		d.Minio.EndpointURLS3, _ = stringVal(minio, "aws_endpoint_url_s3")
	}

	if d.Minio.Endpoint == "" && cfg.MinioEndpoint != "" {
		d.Minio.Endpoint = cfg.MinioEndpoint
	}

	return d
}
