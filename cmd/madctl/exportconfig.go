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
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/amd/madctl/internal/buildcontext"
	"github.com/amd/madctl/internal/discovery"
	"github.com/amd/madctl/internal/errs"
)

// modelExecutionConfig is one model's entry in the rendered execution
// config document: the subset of a Model Descriptor an external
// scheduler needs to place and invoke a model's run script without
// re-reading models.json itself.
type modelExecutionConfig struct {
	Name              string   `json:"name"`
	Dockerfile        string   `json:"dockerfile"`
	Tags              []string `json:"tags,omitempty"`
	NGPUs             string   `json:"n_gpus,omitempty"`
	Timeout           int      `json:"timeout,omitempty"`
	TrainingPrecision string   `json:"training_precision,omitempty"`
	Cred              string   `json:"cred,omitempty"`
	Data              string   `json:"data,omitempty"`
	Args              string   `json:"args,omitempty"`
	SkipGPUArch       []string `json:"skip_gpu_arch,omitempty"`
}

// executionConfigDocument is the top-level shape written by
// "export-config": a tag-selected subset of discovered models, reshaped
// for consumption by a scheduler or CI pipeline that does not itself
// link against the discovery package.
type executionConfigDocument struct {
	Context map[string]any         `json:"context"`
	Tags    []string               `json:"tags"`
	Models  []modelExecutionConfig `json:"models"`
}

// exportConfigCmd discovers and tag-selects models the same way "build"
// does, then writes their scheduling-relevant fields out as a standalone
// JSON document external tooling can consume without a model directory
// checkout.
func exportConfigCmd() *cli.Command {
	return &cli.Command{
		Name:  "export-config",
		Usage: "Write the tag-selected models' execution configuration as a standalone JSON document",
		Description: `Discovers models under --model-dir, selects those matching --tags, and
writes the fields an external scheduler needs (dockerfile, n_gpus, cred,
data, args, timeout, skip_gpu_arch) to --output as JSON.

Example:

  madctl export-config --tags resnet bert --output execution_config.json`,
		Flags: []cli.Flag{
			tagsFlag,
			modelDirFlag,
			additionalContextFlag,
			additionalContextFileFlag,
			&cli.StringFlag{
				Name:  "output",
				Value: "execution_config.json",
				Usage: "Output file for the execution configuration document",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			tags := cmd.StringSlice("tags")
			if len(tags) == 0 {
				return invalidInvocation("--tags requires at least one value")
			}

			extraContext, err := resolveAdditionalContext(cmd)
			if err != nil {
				return err
			}

			models, err := discovery.Discover(cmd.String("model-dir"))
			if err != nil {
				return err
			}

			selected, err := discovery.SelectByTags(models, tags)
			if err != nil {
				return err
			}

			buildCtx := buildcontext.FromHostFacts(buildcontext.DetectHostFacts(ctx))
			buildCtx.Merge(extraContext)

			doc := executionConfigDocument{Tags: tags, Context: buildCtx.Snapshot()}
			for _, m := range selected {
				doc.Models = append(doc.Models, modelExecutionConfig{
					Name:              m.Name,
					Dockerfile:        m.Dockerfile,
					Tags:              m.Tags,
					NGPUs:             m.NGPUs,
					Timeout:           m.Timeout,
					TrainingPrecision: m.TrainingPrecision,
					Cred:              m.Cred,
					Data:              m.Data,
					Args:              m.Args,
					SkipGPUArch:       m.SkipGPUArch,
				})
			}

			out, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return errs.Configuration("main.exportConfigCmd", "failed to marshal execution configuration", errs.WithCause(err))
			}

			outputPath := cmd.String("output")
			if err := os.WriteFile(outputPath, out, 0o644); err != nil {
				return errs.Configuration("main.exportConfigCmd", "failed to write execution configuration", errs.WithCause(err), errs.WithContext(errs.Context{FilePath: outputPath}))
			}

			fmt.Fprintf(cmd.Writer, "wrote %d model(s) to %s\n", len(doc.Models), outputPath)
			return nil
		},
	}
}
