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
	"bufio"
	"io"
	"regexp"

	"github.com/venslabs/depguard/pkg/api/types"
	"github.com/venslabs/depguard/pkg/errdefs"
)

// pinnedRe matches "name==version", tolerating extras, environment markers
// and trailing comments. "===" is not a pin.
var pinnedRe = regexp.MustCompile(`^\s*([A-Za-z0-9][A-Za-z0-9._-]*)(?:\[[^\]]*\])?\s*==\s*([^\s;#=][^\s;#]*)`)

func parseRequirements(r io.Reader, path string) ([]types.PackageRecord, error) {
	var recs []types.PackageRecord
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		m := pinnedRe.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		recs = append(recs, types.PackageRecord{
			Name:      m[1],
			Version:   m[2],
			Ecosystem: types.EcosystemPyPI,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, &errdefs.ManifestError{Path: path, Cause: err}
	}
	return recs, nil
}
