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

package outputhandler

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/CycloneDX/cyclonedx-go"
	"github.com/package-url/packageurl-go"

	"github.com/venslabs/depguard/pkg/api/types"
)

const osvVulnerabilityURL = "https://osv.dev/vulnerability/"

type cycloneDxWriter struct {
	w      io.Writer
	meta   Meta
	pkgs   []types.PackageRecord
	r      []types.PackageResult
	closed bool
}

// NewCycloneDXOutputHandler writes a CycloneDX 1.4 JSON SBOM listing pkgs as
// library components. Findings passed to HandleResults are added as
// vulnerabilities rated with their CVSS v3 vector.
func NewCycloneDXOutputHandler(w io.Writer, pkgs []types.PackageRecord, meta Meta) OutputHandler {
	return &cycloneDxWriter{w: w, pkgs: pkgs, meta: meta}
}

func (c *cycloneDxWriter) HandleResults(r []types.PackageResult) error {
	c.r = append(c.r, r...)
	return nil
}

func (c *cycloneDxWriter) Close() error {
	if c.closed {
		return nil
	}
	bom := cyclonedx.NewBOM()
	ts := c.meta.GeneratedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	bom.Metadata = &cyclonedx.Metadata{
		Timestamp: ts.UTC().Format(time.RFC3339),
	}

	byRecord := make(map[types.PackageRecord]int, len(c.pkgs))
	used := make(map[string]int, len(c.pkgs))
	components := make([]cyclonedx.Component, 0, len(c.pkgs))
	for i, p := range c.pkgs {
		comp := Component(p)
		comp.BOMRef = uniqueRef(used, comp.BOMRef)
		if _, ok := byRecord[p]; !ok {
			byRecord[p] = i
		}
		components = append(components, comp)
	}
	bom.Components = &components

	// Results normally come in manifest order, one per package.
	componentRef := func(i int, p types.PackageRecord) string {
		if i < len(c.pkgs) && c.pkgs[i] == p {
			return components[i].BOMRef
		}
		if j, ok := byRecord[p]; ok {
			return components[j].BOMRef
		}
		return ""
	}

	var vulns []cyclonedx.Vulnerability
	vulnRefs := make(map[string]int)
	for i, res := range c.r {
		ref := componentRef(i, res.Package)
		for _, f := range res.Findings {
			v := vulnerability(f, ref)
			v.BOMRef = uniqueRef(vulnRefs, v.BOMRef)
			vulns = append(vulns, v)
		}
	}
	if len(vulns) > 0 {
		bom.Vulnerabilities = &vulns
	}

	enc := cyclonedx.NewBOMEncoder(c.w, cyclonedx.BOMFileFormatJSON)
	enc.SetPretty(true)
	if err := enc.EncodeVersion(bom, cyclonedx.SpecVersion1_4); err != nil {
		return err
	}
	c.closed = true
	return nil
}

// uniqueRef suffixes repeated refs with "#n".
func uniqueRef(used map[string]int, ref string) string {
	n := used[ref]
	used[ref] = n + 1
	if n == 0 {
		return ref
	}
	return fmt.Sprintf("%s#%d", ref, n)
}

func vulnerability(f types.VulnerabilityFinding, ref string) cyclonedx.Vulnerability {
	score := f.Score
	method := cyclonedx.ScoringMethodCVSSv31
	if strings.HasPrefix(f.Vector, "CVSS:3.0/") {
		method = cyclonedx.ScoringMethodCVSSv3
	}
	ratings := []cyclonedx.VulnerabilityRating{{
		Score:    &score,
		Severity: cyclonedx.Severity(f.Severity.Lower()),
		Method:   method,
		Vector:   f.Vector,
	}}
	v := cyclonedx.Vulnerability{
		BOMRef:      f.ID + "@" + ref,
		ID:          f.ID,
		Source:      &cyclonedx.Source{Name: "OSV", URL: osvVulnerabilityURL + f.ID},
		Ratings:     &ratings,
		Description: f.Details,
	}
	if ref != "" {
		v.Affects = &[]cyclonedx.Affects{{Ref: ref}}
	}
	return v
}

// Component describes a package record as a CycloneDX library component.
func Component(p types.PackageRecord) cyclonedx.Component {
	purl := PURL(p)
	comp := cyclonedx.Component{
		BOMRef:     purl,
		Type:       cyclonedx.ComponentTypeLibrary,
		Name:       p.Name,
		Version:    p.Version,
		PackageURL: purl,
	}
	if comp.Name == "" {
		if pu, err := packageurl.FromString(purl); err == nil {
			comp.Group = pu.Namespace
			comp.Name = pu.Name
			comp.Version = pu.Version
		}
	}
	return comp
}

// PURL returns the record's purl, deriving one from its ecosystem when the
// manifest did not carry it.
func PURL(p types.PackageRecord) string {
	if p.PURL != "" {
		return p.PURL
	}
	var typ, namespace, name = "", "", p.Name
	switch p.Ecosystem {
	case types.EcosystemPyPI:
		typ = packageurl.TypePyPi
		name = strings.ToLower(strings.ReplaceAll(name, "_", "-"))
	case types.EcosystemNPM:
		typ = packageurl.TypeNPM
		if strings.HasPrefix(name, "@") {
			if ns, n, ok := strings.Cut(name, "/"); ok {
				namespace, name = ns, n
			}
		}
	case types.EcosystemMaven:
		typ = packageurl.TypeMaven
	default:
		typ = strings.ToLower(p.Ecosystem)
	}
	return packageurl.NewPackageURL(typ, namespace, name, p.Version, nil, "").ToString()
}
