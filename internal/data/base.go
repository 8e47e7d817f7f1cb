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
	"fmt"
)

// base carries the fields every Source implementation shares: the
// dataset name, its raw settings map, and the instance index used to
// disambiguate MAD_DATAHOME across multiple sources for one model run.
type base struct {
	dataname string
	config   map[string]any
	index    int
}

// datahome implements DataProvider.get_env's MAD_DATAHOME derivation:
// "/data_dlm" (or an overriding "home" setting), suffixed with the
// instance index.
func (b *base) datahome() string {
	home := "/data_dlm"
	if h, ok := stringVal(b.config, "home"); ok && h != "" {
		home = h
	}
	return fmt.Sprintf("%s_%d", home, b.index)
}

// Env returns the MAD_DATAHOME variable common to every source.
func (b *base) Env() map[string]string {
	return map[string]string{"MAD_DATAHOME": b.datahome()}
}

func stringVal(cfg map[string]any, key string) (string, bool) {
	v, ok := cfg[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func mirrorlocal(cfg map[string]any) (string, bool) {
	return stringVal(cfg, "mirrorlocal")
}
