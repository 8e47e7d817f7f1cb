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

package ssh

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/amd/madctl/internal/errs"
	"github.com/amd/madctl/internal/runner"
)

// Session is one open remote shell, analogous to SSHClientManager's
// paramiko.SSHClient wrapper: run a command, read back merged output.
type Session interface {
	Run(command string) (stdout string, err error)
	Close() error
}

// Transport opens Sessions against nodes. The production implementation
// (cryptoTransport) wraps golang.org/x/crypto/ssh; tests substitute a
// fake to exercise the Runner's orchestration logic without a network.
type Transport interface {
	Dial(node runner.NodeConfig, timeout time.Duration) (Session, error)
}

// cryptoTransport is the real, production Transport.
type cryptoTransport struct{}

func (cryptoTransport) Dial(node runner.NodeConfig, timeout time.Duration) (Session, error) {
	authMethods, err := authMethodsFor(node)
	if err != nil {
		return nil, err
	}

	port := node.Port
	if port == 0 {
		port = 22
	}

	clientConfig := &ssh.ClientConfig{
		User:            node.Username,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	addr := net.JoinHostPort(node.Address, fmt.Sprintf("%d", port))
	client, err := ssh.Dial("tcp", addr, clientConfig)
	if err != nil {
		return nil, errs.Connection("ssh.Dial", fmt.Sprintf("failed to connect to %s (%s)", node.Hostname, addr), errs.WithCause(err))
	}
	return &clientSession{client: client}, nil
}

func authMethodsFor(node runner.NodeConfig) ([]ssh.AuthMethod, error) {
	if node.KeyPath != "" {
		key, err := os.ReadFile(node.KeyPath)
		if err != nil {
			return nil, errs.Configuration("ssh.authMethodsFor", fmt.Sprintf("failed to read key file for %s", node.Hostname), errs.WithCause(err))
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, errs.Configuration("ssh.authMethodsFor", fmt.Sprintf("failed to parse key file for %s", node.Hostname), errs.WithCause(err))
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	if node.Password != "" {
		return []ssh.AuthMethod{ssh.Password(node.Password)}, nil
	}
	return nil, errs.Configuration("ssh.authMethodsFor", fmt.Sprintf("node %s declares neither key_path nor password", node.Hostname))
}

type clientSession struct {
	client *ssh.Client
}

func (s *clientSession) Run(command string) (string, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return "", err
	}
	defer session.Close()

	var out bytes.Buffer
	session.Stdout = &out
	session.Stderr = &out
	if err := session.Run(command); err != nil {
		return out.String(), err
	}
	return out.String(), nil
}

func (s *clientSession) Close() error {
	return s.client.Close()
}
