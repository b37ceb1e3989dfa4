// Copyright 2025 venslabs
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

package manifest

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/venslabs/depguard/pkg/api/types"
	"github.com/venslabs/depguard/pkg/errdefs"
	"github.com/venslabs/depguard/pkg/jsonstream"
)

type lockFrameKind int

const (
	lockRoot     lockFrameKind = iota // top-level object
	lockDeps                          // "dependencies": name -> entry
	lockPackages                      // "packages": install path -> entry
	lockEntry                         // a single entry object
)

type lockFrame struct {
	kind lockFrameKind
	idx  int  // record index, lockEntry only
	flat bool // entry belongs to "packages"
}

// parsePackageLock walks the lockfile in document order with an explicit
// stack, so deeply nested trees cannot exhaust the goroutine stack. Nested
// "dependencies" (lockfile v1/v2) are emitted parent first. Lockfiles
// without them (v3) fall back to the flat "packages" map.
func parsePackageLock(r io.Reader, path string) ([]types.PackageRecord, error) {
	dec := json.NewDecoder(r)
	if err := jsonstream.ExpectDelim(dec, '{'); err != nil {
		return nil, errdefs.Malformed(path, "%v", err)
	}

	var nested, flat []types.PackageRecord
	sawDeps := false
	stack := []lockFrame{{kind: lockRoot}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if !dec.More() {
			if _, err := dec.Token(); err != nil {
				return nil, errdefs.Malformed(path, "%v", err)
			}
			stack = stack[:len(stack)-1]
			continue
		}
		key, err := jsonstream.Key(dec)
		if err != nil {
			return nil, errdefs.Malformed(path, "%v", err)
		}

		var push *lockFrame
		switch top.kind {
		case lockRoot:
			switch key {
			case "dependencies":
				sawDeps = true
				push = &lockFrame{kind: lockDeps}
			case "packages":
				push = &lockFrame{kind: lockPackages}
			}
		case lockDeps:
			nested = append(nested, types.PackageRecord{Name: key, Ecosystem: types.EcosystemNPM})
			push = &lockFrame{kind: lockEntry, idx: len(nested) - 1}
		case lockPackages:
			if name := installedName(key); name != "" {
				flat = append(flat, types.PackageRecord{Name: name, Ecosystem: types.EcosystemNPM})
				push = &lockFrame{kind: lockEntry, idx: len(flat) - 1, flat: true}
			}
		case lockEntry:
			switch {
			case key == "version":
				var v string
				if err := dec.Decode(&v); err != nil {
					return nil, errdefs.Malformed(path, "version of entry: %v", err)
				}
				if top.flat {
					flat[top.idx].Version = v
				} else {
					nested[top.idx].Version = v
				}
				continue
			case key == "dependencies" && !top.flat:
				push = &lockFrame{kind: lockDeps}
			}
		}

		if push == nil {
			if err := jsonstream.SkipValue(dec); err != nil {
				return nil, errdefs.Malformed(path, "%v", err)
			}
			continue
		}
		if err := jsonstream.ExpectDelim(dec, '{'); err != nil {
			return nil, errdefs.Malformed(path, "%q: %v", key, err)
		}
		stack = append(stack, *push)
	}

	if sawDeps {
		return nested, nil
	}
	return flat, nil
}

// installedName returns the package name of a "packages" key such as
// "node_modules/a/node_modules/@scope/b". The root project ("") and
// workspace links outside node_modules yield "".
func installedName(key string) string {
	const marker = "node_modules/"
	i := strings.LastIndex(key, marker)
	if i < 0 {
		return ""
	}
	return key[i+len(marker):]
}
