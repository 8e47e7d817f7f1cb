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

package ansible

import (
	"bytes"
	"text/template"

	"github.com/amd/madctl/internal/errs"
)

// playbookData is the template input for RenderPlaybook.
type playbookData struct {
	ModelTag      string
	RegistryImage string
	ContainerName string
	BecomeUser    string
	ExtraEnv      map[string]string
}

const playbookTemplate = `---
- hosts: gpu_nodes
  become: {{ if .BecomeUser }}yes{{ else }}no{{ end }}
{{- if .BecomeUser }}
  become_user: {{ .BecomeUser }}
{{- end }}
  tasks:
    - name: pull {{ .ModelTag }} image
      community.docker.docker_image:
        name: "{{ .RegistryImage }}"
        source: pull

    - name: run {{ .ModelTag }} workload
      community.docker.docker_container:
        name: "{{ .ContainerName }}"
        image: "{{ .RegistryImage }}"
        state: started
        detach: no
{{- if .ExtraEnv }}
        env:
{{- range $k, $v := .ExtraEnv }}
          {{ $k }}: "{{ $v }}"
{{- end }}
{{- end }}
`

// RenderPlaybook renders a single-play Ansible playbook that pulls and
// runs registryImage on every host in the gpu_nodes inventory group.
func RenderPlaybook(modelTag, registryImage, containerName, becomeUser string, extraEnv map[string]string) ([]byte, error) {
	tmpl, err := template.New("playbook").Parse(playbookTemplate)
	if err != nil {
		return nil, errs.Runtime("ansible.RenderPlaybook", "failed to parse playbook template", errs.WithCause(err))
	}

	var buf bytes.Buffer
	data := playbookData{ModelTag: modelTag, RegistryImage: registryImage, ContainerName: containerName, BecomeUser: becomeUser, ExtraEnv: extraEnv}
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, errs.Runtime("ansible.RenderPlaybook", "failed to render playbook", errs.WithCause(err))
	}
	return buf.Bytes(), nil
}
