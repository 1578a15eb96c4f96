// Copyright 2026 The Dualview Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"path/filepath"
	"strings"
)

// publicPrefix and privatePrefix are the portable path prefixes stored in
// place of absolute paths, resolved against the two collection roots
// configured at startup.
const (
	publicPrefix  = ":?ocl/"
	privatePrefix = ":?scl/"
)

// rootPaths implements store.PathResolver against two configured on-disk
// roots, making the database portable across installs and machines.
type rootPaths struct {
	publicRoot  string
	privateRoot string
}

func (p rootPaths) ToFinal(portable string) string {
	switch {
	case strings.HasPrefix(portable, publicPrefix):
		return filepath.Join(p.publicRoot, strings.TrimPrefix(portable, publicPrefix))
	case strings.HasPrefix(portable, privatePrefix):
		return filepath.Join(p.privateRoot, strings.TrimPrefix(portable, privatePrefix))
	default:
		return portable
	}
}

func (p rootPaths) ToDatabase(final string) string {
	if rel, err := filepath.Rel(p.publicRoot, final); err == nil && !strings.HasPrefix(rel, "..") {
		return publicPrefix + filepath.ToSlash(rel)
	}
	if rel, err := filepath.Rel(p.privateRoot, final); err == nil && !strings.HasPrefix(rel, "..") {
		return privatePrefix + filepath.ToSlash(rel)
	}
	return final
}
