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

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/amd/madctl/internal/errs"
	"github.com/amd/madctl/internal/manifest"
	"github.com/amd/madctl/internal/runner"
	"github.com/amd/madctl/internal/runner/ansible"
	"github.com/amd/madctl/internal/runner/k8sjob"
)

// generateCmd groups the two execution-artifact renderers the original
// tool exposed as "generate ansible" and "generate k8s": turn a Build
// Manifest plus a node inventory into static deployment artifacts a
// human or a separate pipeline can hand to ansible-playbook or kubectl
// without invoking "run" at all.
func generateCmd() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Render execution artifacts (Ansible playbook/inventory, Kubernetes Jobs) from a Build Manifest",
		Commands: []*cli.Command{
			generateAnsibleCmd(),
			generateK8sCmd(),
		},
	}
}

func generateAnsibleCmd() *cli.Command {
	return &cli.Command{
		Name:  "ansible",
		Usage: "Render an Ansible inventory and one playbook per built image",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "manifest-file",
				Required: true,
				Usage:    "Build Manifest file to render artifacts from",
			},
			inventoryFlag,
			&cli.StringFlag{
				Name:  "become-user",
				Value: "root",
				Usage: "User the playbook's docker run task escalates to",
			},
			&cli.StringFlag{
				Name:  "output",
				Value: ".",
				Usage: "Directory written with inventory.ini and one <model_tag>.yml playbook per image",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			m, err := manifest.Load(cmd.String("manifest-file"))
			if err != nil {
				return err
			}

			inventoryPath := cmd.String("inventory")
			if inventoryPath == "" {
				return invalidInvocation("--inventory is required")
			}
			inv, err := runner.LoadInventory(inventoryPath)
			if err != nil {
				return err
			}
			nodes := inv.AllNodes()

			outDir := cmd.String("output")
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return errs.Configuration("main.generateAnsibleCmd", "failed to create output directory", errs.WithCause(err))
			}

			if err := os.WriteFile(filepath.Join(outDir, "inventory.ini"), ansible.RenderInventory(nodes), 0o644); err != nil {
				return errs.Configuration("main.generateAnsibleCmd", "failed to write inventory.ini", errs.WithCause(err))
			}

			becomeUser := cmd.String("become-user")
			written := 0
			for modelTag, entry := range m.BuiltImages {
				image := entry.RegistryImage
				if image == "" {
					image = entry.DockerImage
				}
				playbook, err := ansible.RenderPlaybook(modelTag, image, "madctl-"+modelTag, becomeUser, nil)
				if err != nil {
					return err
				}
				path := filepath.Join(outDir, modelTag+".yml")
				if err := os.WriteFile(path, playbook, 0o644); err != nil {
					return errs.Configuration("main.generateAnsibleCmd", "failed to write playbook", errs.WithCause(err), errs.WithContext(errs.Context{FilePath: path}))
				}
				written++
			}

			fmt.Fprintf(cmd.Writer, "wrote inventory.ini and %d playbook(s) to %s\n", written, outDir)
			return nil
		},
	}
}

func generateK8sCmd() *cli.Command {
	return &cli.Command{
		Name:  "k8s",
		Usage: "Render a batch/v1 Job manifest per built image, per node",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "manifest-file",
				Required: true,
				Usage:    "Build Manifest file to render artifacts from",
			},
			inventoryFlag,
			&cli.StringFlag{
				Name:  "namespace",
				Value: "default",
				Usage: "Kubernetes namespace the rendered Jobs target",
			},
			&cli.StringFlag{
				Name:  "output",
				Value: ".",
				Usage: "Directory written with one <model_tag>-<node>.yaml Job manifest per (image, node) pair",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			m, err := manifest.Load(cmd.String("manifest-file"))
			if err != nil {
				return err
			}

			inventoryPath := cmd.String("inventory")
			if inventoryPath == "" {
				return invalidInvocation("--inventory is required")
			}
			inv, err := runner.LoadInventory(inventoryPath)
			if err != nil {
				return err
			}
			nodes := inv.AllNodes()
			if len(nodes) == 0 {
				return invalidInvocation("inventory contains no nodes")
			}

			cfg := k8sjob.DefaultConfig()
			cfg.Namespace = cmd.String("namespace")

			outDir := cmd.String("output")
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return errs.Configuration("main.generateK8sCmd", "failed to create output directory", errs.WithCause(err))
			}

			written := 0
			for modelTag, entry := range m.BuiltImages {
				image := entry.RegistryImage
				if image == "" {
					image = entry.DockerImage
				}
				for _, node := range nodes {
					jobName := fmt.Sprintf("%s-%s-%s", cfg.JobNamePrefix, modelTag, node.Hostname)
					job, err := k8sjob.RenderJob(cfg, jobName, image, modelTag, node, nil)
					if err != nil {
						return err
					}
					path := filepath.Join(outDir, fmt.Sprintf("%s-%s.yaml", modelTag, node.Hostname))
					if err := os.WriteFile(path, job, 0o644); err != nil {
						return errs.Configuration("main.generateK8sCmd", "failed to write job manifest", errs.WithCause(err), errs.WithContext(errs.Context{FilePath: path}))
					}
					written++
				}
			}

			fmt.Fprintf(cmd.Writer, "wrote %d job manifest(s) to %s\n", written, outDir)
			return nil
		},
	}
}
