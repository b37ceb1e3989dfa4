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
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/package-url/packageurl-go"

	"github.com/venslabs/depguard/pkg/api/types"
	"github.com/venslabs/depguard/pkg/errdefs"
)

type pomDependency struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
}

// parsePOM emits one purl-only record per <dependency> element, wherever it
// appears in the descriptor. A dependency without group, artifact or version
// makes the whole manifest malformed.
func parsePOM(r io.Reader, path string) ([]types.PackageRecord, error) {
	var (
		recs    []types.PackageRecord
		sawRoot bool
		n       int
	)
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errdefs.Malformed(path, "%v", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		sawRoot = true
		if se.Name.Local != "dependency" {
			continue
		}
		n++
		var d pomDependency
		if err := dec.DecodeElement(&d, &se); err != nil {
			return nil, errdefs.Malformed(path, "dependency #%d: %v", n, err)
		}
		group := strings.TrimSpace(d.GroupID)
		artifact := strings.TrimSpace(d.ArtifactID)
		version := strings.TrimSpace(d.Version)
		switch {
		case group == "":
			return nil, errdefs.Malformed(path, "dependency #%d has no groupId", n)
		case artifact == "":
			return nil, errdefs.Malformed(path, "dependency #%d (%s) has no artifactId", n, group)
		case version == "":
			return nil, errdefs.Malformed(path, "dependency #%d (%s:%s) has no version", n, group, artifact)
		}
		recs = append(recs, types.PackageRecord{
			Ecosystem: types.EcosystemMaven,
			PURL:      MavenPURL(group, artifact, version),
		})
	}
	if !sawRoot {
		return nil, errdefs.Malformed(path, "no XML root element")
	}
	return recs, nil
}

// MavenPURL builds "pkg:maven/<group>/<artifact>@<version>".
func MavenPURL(group, artifact, version string) string {
	return packageurl.NewPackageURL(packageurl.TypeMaven, group, artifact, version, nil, "").ToString()
}
