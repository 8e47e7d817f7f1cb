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
	"strings"
	"time"

	"github.com/amd/madctl/internal/console"
	"github.com/amd/madctl/internal/errs"
)

// nasSource mirrors a remote NAS export either by rsync (when
// mirrorlocal is set) or by mounting it inside the container with
// sshfs, probing each configured node in turn until one accepts both a
// raw TCP connection and an SSH handshake.
type nasSource struct {
	base
	nodes []NASNode

	node NASNode
}

const nasProbeTimeout = 30 * time.Second

func (s *nasSource) Kind() Kind { return KindNas }

func (s *nasSource) CheckSource(ctx context.Context) (bool, error) {
	if ml, ok := mirrorlocal(s.config); ok {
		if err := ensureMirrorDir(ml, s.dataname); err != nil {
			return false, err
		}
	}

	c := console.New()
	for _, node := range s.nodes {
		ok, err := checkNASConnection(ctx, c, node)
		if err != nil {
			return false, err
		}
		if ok {
			s.node = node
			return true, nil
		}
	}
	return false, nil
}

// checkNASConnection probes a raw TCP connect followed by a best-effort
// SSH handshake, treating either a successful login or a password
// prompt ("Permission denied") as evidence that the node is reachable
// and the credentials are at least being evaluated.
func checkNASConnection(ctx context.Context, c *console.Console, node NASNode) (bool, error) {
	tcpProbe := fmt.Sprintf("timeout %d bash -c '</dev/tcp/%s/%s'", int(nasProbeTimeout.Seconds()), node.Host, node.Port)
	if _, err := c.Run(ctx, tcpProbe, console.Options{Timeout: nasProbeTimeout + 5*time.Second}); err != nil {
		return false, nil
	}

	sshProbe := fmt.Sprintf("ssh -o BatchMode=yes -o ConnectTimeout=5 %s@%s -p %s echo 'SSH login ok'", node.Username, node.Host, node.Port)
	status, err := c.Run(ctx, sshProbe, console.Options{CanFail: true, Timeout: 10 * time.Second, Secret: "ssh nas probe"})
	if err != nil {
		return false, nil
	}

	return strings.Contains(status, "Permission denied") || strings.Contains(status, "SSH login ok"), nil
}

func (s *nasSource) MountPath() (MountPath, bool) {
	ml, ok := mirrorlocal(s.config)
	if !ok {
		return MountPath{}, false
	}
	return MountPath{Path: ml + "/" + s.dataname, Home: s.datahome(), ReadWrite: true}, true
}

func (s *nasSource) Prepare(ctx context.Context, exec Executor) (time.Duration, error) {
	datahome := s.datahome()
	path, _ := stringVal(s.config, "path")

	var cmd string
	var timeout time.Duration
	if _, mirrored := mirrorlocal(s.config); mirrored {
		cmd = fmt.Sprintf(`
			mkdir -p ~/.ssh
			touch ~/.ssh/known_hosts
			ssh-keyscan -p %[1]s %[2]s >> ~/.ssh/known_hosts
			echo '#!/bin/bash' > /tmp/ssh.sh
			echo 'sshpass -p %[3]s rsync --progress -avz -e "ssh -p %[1]s" "$@"' >> /tmp/ssh.sh
			chmod u+x /tmp/ssh.sh
			timeout --preserve-status 2400 /tmp/ssh.sh %[4]s@%[2]s:%[5]s/* %[6]s && rm -f /tmp/ssh.sh
		`, s.node.Port, s.node.Host, s.node.Password, s.node.Username, path, datahome)
		timeout = 40 * time.Minute
	} else {
		cmd = fmt.Sprintf(`
			mkdir -p ~/.ssh
			mkdir -p %[6]s
			touch ~/.ssh/known_hosts
			ssh-keyscan -p %[1]s %[2]s >> ~/.ssh/known_hosts
			echo '#!/bin/bash' > /tmp/ssh.sh
			echo 'sshpass -p %[3]s ssh -v $*' >> /tmp/ssh.sh
			chmod u+x /tmp/ssh.sh
			timeout --preserve-status 30 mount -t fuse sshfs#%[4]s@%[2]s:%[5]s %[6]s -o ssh_command=/tmp/ssh.sh,port=%[1]s && rm -f /tmp/ssh.sh
		`, s.node.Port, s.node.Host, s.node.Password, s.node.Username, path, datahome)
		timeout = 2 * time.Minute
	}

	start := time.Now()
	if _, err := exec.Exec(ctx, cmd, timeout, s.node.Password); err != nil {
		return 0, errs.Connection("data.nasSource.Prepare", "failed to stage NAS data", errs.WithCause(err), errs.WithContext(errs.Context{ModelName: s.dataname, NodeID: s.node.Host}))
	}
	return time.Since(start), nil
}
