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

package slurm

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

// Session is one open connection to the SLURM login node: run a command
// and read back (exit code, stdout, stderr), or stage a local file.
type Session interface {
	Run(command string) (exitCode int, stdout, stderr string, err error)
	CopyFile(localContent []byte, remotePath string) error
	Close() error
}

// Connection opens a Session to the login node. The production
// implementation wraps golang.org/x/crypto/ssh; tests substitute a fake.
type Connection interface {
	Connect(node runner.NodeConfig, timeout time.Duration) (Session, error)
}

type cryptoConnection struct{}

func (cryptoConnection) Connect(node runner.NodeConfig, timeout time.Duration) (Session, error) {
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
		return nil, errs.Connection("slurm.Connect", fmt.Sprintf("failed to connect to login node %s (%s)", node.Hostname, addr), errs.WithCause(err))
	}
	return &clientSession{client: client}, nil
}

func authMethodsFor(node runner.NodeConfig) ([]ssh.AuthMethod, error) {
	if node.KeyPath != "" {
		key, err := os.ReadFile(node.KeyPath)
		if err != nil {
			return nil, errs.Configuration("slurm.authMethodsFor", fmt.Sprintf("failed to read key file for %s", node.Hostname), errs.WithCause(err))
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, errs.Configuration("slurm.authMethodsFor", fmt.Sprintf("failed to parse key file for %s", node.Hostname), errs.WithCause(err))
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	if node.Password != "" {
		return []ssh.AuthMethod{ssh.Password(node.Password)}, nil
	}
	return nil, errs.Configuration("slurm.authMethodsFor", fmt.Sprintf("login node %s declares neither key_path nor password", node.Hostname))
}

type clientSession struct {
	client *ssh.Client
}

func (s *clientSession) Run(command string) (int, string, string, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return -1, "", "", err
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	runErr := session.Run(command)
	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*ssh.ExitError); ok {
			exitCode = exitErr.ExitStatus()
		} else {
			return -1, stdout.String(), stderr.String(), runErr
		}
	}
	return exitCode, stdout.String(), stderr.String(), nil
}

func (s *clientSession) CopyFile(content []byte, remotePath string) error {
	session, err := s.client.NewSession()
	if err != nil {
		return err
	}
	defer session.Close()

	session.Stdin = bytes.NewReader(content)
	return session.Run(fmt.Sprintf("cat > %s", remotePath))
}

func (s *clientSession) Close() error {
	return s.client.Close()
}
