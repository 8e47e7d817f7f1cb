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

// Package container wraps an external container engine (docker-cli
// compatible) via the Console process primitive: build/tag/push/login,
// registry digest resolution, and run/exec/stop/rm for the long-lived
// scratch container each workload executes inside.
package container

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/distribution/reference"

	"github.com/amd/madctl/internal/console"
	"github.com/amd/madctl/internal/errs"
)

// Driver operates an external container engine via shelled-out commands.
type Driver struct {
	console *console.Console
}

// New returns a Driver using c to run engine commands.
func New(c *console.Console) *Driver {
	if c == nil {
		c = console.New()
	}
	return &Driver{console: c}
}

// BuildOptions configures an image build.
type BuildOptions struct {
	Dockerfile string
	ContextDir string
	Tag        string
	BuildArgs  map[string]string
	NoCache    bool
	Network    string
	Timeout    time.Duration
}

// Build invokes `docker build` with --pull and the given network/args.
func (d *Driver) Build(ctx context.Context, opts BuildOptions) error {
	var b strings.Builder
	b.WriteString("docker build --pull ")
	if opts.NoCache {
		b.WriteString("--no-cache ")
	}
	if opts.Network != "" {
		fmt.Fprintf(&b, "--network=%s ", opts.Network)
	}
	for k, v := range opts.BuildArgs {
		fmt.Fprintf(&b, "--build-arg %s=%s ", k, shellQuote(v))
	}
	fmt.Fprintf(&b, "-t %s -f %s %s", shellQuote(opts.Tag), shellQuote(opts.Dockerfile), shellQuote(opts.ContextDir))

	_, err := d.console.Run(ctx, b.String(), console.Options{Timeout: opts.Timeout})
	if err != nil {
		return errs.Build("container.Build", fmt.Sprintf("docker build failed for tag %s", opts.Tag), errs.WithCause(err))
	}
	return nil
}

// Tag invokes `docker tag src dst`, validating both references first.
func (d *Driver) Tag(ctx context.Context, src, dst string) error {
	if _, err := reference.ParseNormalizedNamed(src); err != nil {
		return errs.Validation("container.Tag", fmt.Sprintf("invalid source reference %q", src), errs.WithCause(err))
	}
	if _, err := reference.ParseNormalizedNamed(dst); err != nil {
		return errs.Validation("container.Tag", fmt.Sprintf("invalid destination reference %q", dst), errs.WithCause(err))
	}

	_, err := d.console.Run(ctx, fmt.Sprintf("docker tag %s %s", shellQuote(src), shellQuote(dst)), console.Options{})
	if err != nil {
		return errs.Runtime("container.Tag", fmt.Sprintf("docker tag failed: %s -> %s", src, dst), errs.WithCause(err))
	}
	return nil
}

// Push invokes `docker push ref`. Push failures are returned to the
// caller (the Image Builder decides whether they are fatal).
func (d *Driver) Push(ctx context.Context, ref string) error {
	_, err := d.console.Run(ctx, fmt.Sprintf("docker push %s", shellQuote(ref)), console.Options{Timeout: 10 * time.Minute})
	if err != nil {
		return errs.Connection("container.Push", fmt.Sprintf("docker push failed for %s", ref), errs.WithCause(err))
	}
	return nil
}

// Login invokes `docker login` with the password piped via stdin is not
// modeled by Console; instead the password is passed with
// --password-stdin semantics approximated by an inline, secret-redacted
// command, matching the docker CLI's documented non-interactive form.
func (d *Driver) Login(ctx context.Context, registry, user, pass string) error {
	cmd := fmt.Sprintf("echo %s | docker login %s -u %s --password-stdin", shellQuote(pass), shellQuote(registry), shellQuote(user))
	_, err := d.console.Run(ctx, cmd, console.Options{Secret: fmt.Sprintf("docker login %s -u %s", registry, user)})
	if err != nil {
		return errs.Authentication("container.Login", fmt.Sprintf("docker login failed for registry %s", registry), errs.WithCause(err))
	}
	return nil
}

// ManifestDigest resolves ref's digest via `docker manifest inspect`.
// Failure is non-fatal by contract: the caller records it and proceeds.
func (d *Driver) ManifestDigest(ctx context.Context, ref string) (string, bool) {
	out, err := d.console.Run(ctx, fmt.Sprintf("docker manifest inspect %s", shellQuote(ref)), console.Options{CanFail: true, Timeout: 30 * time.Second})
	if err != nil || out == "" {
		return "", false
	}
	digest := extractDigest(out)
	return digest, digest != ""
}

// RunOptions configures a long-lived scratch container.
type RunOptions struct {
	Name      string
	DockerOpt string
	Mounts    map[string]string // host path -> container path, same path on both sides per the original tool's convention
	Env       map[string]string
	KeepAlive bool
}

// Handle is a running container acquired via Run. Close releases it
// according to KeepAlive, implementing the scoped-acquisition pattern
// that replaces the original tool's destructor-based cleanup.
type Handle struct {
	driver *Driver
	SHA    string
	Name   string
	keep   bool
}

// Run starts a long-lived "cat"-sleeping container so the workload's
// commands can be exec'd into it one at a time. Refuses to proceed if a
// container with the requested name already exists.
func (d *Driver) Run(ctx context.Context, image string, opts RunOptions) (*Handle, error) {
	exists, err := d.containerExists(ctx, opts.Name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errs.Runtime("container.Run", fmt.Sprintf("container with name %s already exists", opts.Name),
			errs.WithSuggestions(
				fmt.Sprintf("docker stop --time=1 <sha> && docker rm -f <sha> to remove %s", opts.Name),
			))
	}

	uid, err := d.console.Run(ctx, "id -u", console.Options{})
	if err != nil {
		return nil, errs.Runtime("container.Run", "failed to resolve uid", errs.WithCause(err))
	}
	gid, err := d.console.Run(ctx, "id -g", console.Options{})
	if err != nil {
		return nil, errs.Runtime("container.Run", "failed to resolve gid", errs.WithCause(err))
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, errs.Runtime("container.Run", "failed to resolve working directory", errs.WithCause(err))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "docker run -t -d -u %s:%s %s ", uid, gid, opts.DockerOpt)
	for host, ctr := range opts.Mounts {
		fmt.Fprintf(&b, "-v %s:%s ", shellQuote(host), shellQuote(ctr))
	}
	fmt.Fprintf(&b, "-v %s:/myworkspace/ ", shellQuote(cwd))
	for k, v := range opts.Env {
		fmt.Fprintf(&b, "-e %s=%s ", k, shellQuote(v))
	}
	b.WriteString("--workdir /myworkspace/ ")
	fmt.Fprintf(&b, "--name %s ", shellQuote(opts.Name))
	b.WriteString(image + " ")
	b.WriteString("cat")

	if _, err := d.console.Run(ctx, b.String(), console.Options{}); err != nil {
		return nil, errs.Runtime("container.Run", fmt.Sprintf("docker run failed for image %s", image), errs.WithCause(err))
	}

	sha, err := d.console.Run(ctx, fmt.Sprintf("docker ps -aqf 'name=%s'", opts.Name), console.Options{})
	if err != nil || sha == "" {
		return nil, errs.Runtime("container.Run", fmt.Sprintf("failed to resolve sha for container %s", opts.Name), errs.WithCause(err))
	}

	return &Handle{driver: d, SHA: sha, Name: opts.Name, keep: opts.KeepAlive}, nil
}

func (d *Driver) containerExists(ctx context.Context, name string) (bool, error) {
	out, err := d.console.Run(ctx, fmt.Sprintf("docker container ps -a | grep %s | wc -l", shellQuote(name)), console.Options{CanFail: true})
	if err != nil {
		return false, errs.Runtime("container.containerExists", "failed to query existing containers", errs.WithCause(err))
	}
	return strings.TrimSpace(out) != "0" && strings.TrimSpace(out) != "", nil
}

// Exec runs command inside the handle's container via `docker exec`.
func (h *Handle) Exec(ctx context.Context, command string, timeout time.Duration, secret string) (string, error) {
	cmd := fmt.Sprintf(`docker exec %s bash -c "%s"`, h.SHA, strings.ReplaceAll(command, `"`, `\"`))
	out, err := h.driver.console.Run(ctx, cmd, console.Options{Timeout: timeout, Secret: secret})
	if err != nil {
		return "", errs.Runtime("container.Exec", fmt.Sprintf("command failed in container %s", h.Name), errs.WithCause(err))
	}
	return out, nil
}

// Close stops and removes the container unless KeepAlive was requested,
// implementing the scoped-acquisition replacement for the original
// tool's __del__-based cleanup.
func (h *Handle) Close(ctx context.Context) error {
	if h.keep {
		return nil
	}
	if _, err := h.driver.console.Run(ctx, fmt.Sprintf("docker stop --time=1 %s", h.SHA), console.Options{CanFail: true}); err != nil {
		return errs.Runtime("container.Close", fmt.Sprintf("failed to stop container %s", h.Name), errs.WithCause(err))
	}
	if _, err := h.driver.console.Run(ctx, fmt.Sprintf("docker rm -f %s", h.SHA), console.Options{CanFail: true}); err != nil {
		return errs.Runtime("container.Close", fmt.Sprintf("failed to remove container %s", h.Name), errs.WithCause(err))
	}
	return nil
}

// Stop issues a standalone stop against a container id, used by runners
// doing best-effort cleanup of leftover processes.
func (d *Driver) Stop(ctx context.Context, containerID string) error {
	_, err := d.console.Run(ctx, fmt.Sprintf("docker stop --time=1 %s", shellQuote(containerID)), console.Options{CanFail: true})
	return err
}

// Remove issues a standalone rm against a container id.
func (d *Driver) Remove(ctx context.Context, containerID string) error {
	_, err := d.console.Run(ctx, fmt.Sprintf("docker rm -f %s", shellQuote(containerID)), console.Options{CanFail: true})
	return err
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func extractDigest(manifestInspectOutput string) string {
	const marker = `"digest"`
	idx := strings.Index(manifestInspectOutput, marker)
	if idx < 0 {
		return ""
	}
	rest := manifestInspectOutput[idx+len(marker):]
	colon := strings.Index(rest, ":")
	if colon < 0 {
		return ""
	}
	rest = rest[colon+1:]
	start := strings.Index(rest, `"`)
	if start < 0 {
		return ""
	}
	rest = rest[start+1:]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return ""
	}
	return rest[:end]
}
