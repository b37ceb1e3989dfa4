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
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CycloneDX/cyclonedx-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venslabs/depguard/pkg/api/types"
	"github.com/venslabs/depguard/pkg/history"
)

var (
	requests = types.PackageRecord{Name: "requests", Version: "2.6.0", Ecosystem: types.EcosystemPyPI}
	flask    = types.PackageRecord{Name: "flask", Version: "2.0.0", Ecosystem: types.EcosystemPyPI}
	log4j    = types.PackageRecord{PURL: "pkg:maven/org.apache.logging.log4j/log4j-core@2.14.1", Ecosystem: types.EcosystemMaven}

	critical = types.VulnerabilityFinding{
		ID:       "PYSEC-2015-17",
		Vector:   "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H",
		Score:    9.8,
		Severity: types.SeverityCritical,
		Details:  "session fixation",
	}
)

func testResults() []types.PackageResult {
	return []types.PackageResult{
		{Package: requests, Findings: []types.VulnerabilityFinding{critical}, RiskScore: 9.8},
		{Package: flask, Findings: []types.VulnerabilityFinding{}},
	}
}

func TestPURL(t *testing.T) {
	tests := []struct {
		rec  types.PackageRecord
		want string
	}{
		{requests, "pkg:pypi/requests@2.6.0"},
		{types.PackageRecord{Name: "Typing_Extensions", Version: "4.0", Ecosystem: "PyPI"}, "pkg:pypi/typing-extensions@4.0"},
		{types.PackageRecord{Name: "lodash", Version: "4.17.15", Ecosystem: "npm"}, "pkg:npm/lodash@4.17.15"},
		{log4j, log4j.PURL},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PURL(tt.rec))
	}
}

func TestCycloneDXOutputHandler(t *testing.T) {
	var buf bytes.Buffer
	h := NewCycloneDXOutputHandler(&buf, []types.PackageRecord{requests, flask, log4j, requests}, Meta{
		GeneratedAt: time.Date(2025, 7, 27, 14, 30, 0, 0, time.UTC),
	})
	require.NoError(t, h.HandleResults(testResults()))
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	var raw map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.Equal(t, "CycloneDX", raw["bomFormat"])
	assert.Equal(t, "1.4", raw["specVersion"])

	var bom cyclonedx.BOM
	require.NoError(t, cyclonedx.NewBOMDecoder(bytes.NewReader(buf.Bytes()), cyclonedx.BOMFileFormatJSON).Decode(&bom))
	require.NotNil(t, bom.Components)
	comps := *bom.Components
	require.Len(t, comps, 4)
	assert.Equal(t, "pkg:pypi/requests@2.6.0", comps[0].BOMRef)
	assert.Equal(t, cyclonedx.ComponentTypeLibrary, comps[0].Type)
	assert.Equal(t, "org.apache.logging.log4j", comps[2].Group)
	assert.Equal(t, "log4j-core", comps[2].Name)
	assert.Equal(t, "2.14.1", comps[2].Version)
	assert.Equal(t, "pkg:pypi/requests@2.6.0#1", comps[3].BOMRef)

	require.NotNil(t, bom.Vulnerabilities)
	vulns := *bom.Vulnerabilities
	require.Len(t, vulns, 1)
	assert.Equal(t, "PYSEC-2015-17", vulns[0].ID)
	require.NotNil(t, vulns[0].Affects)
	assert.Equal(t, "pkg:pypi/requests@2.6.0", (*vulns[0].Affects)[0].Ref)
	rating := (*vulns[0].Ratings)[0]
	assert.Equal(t, 9.8, *rating.Score)
	assert.Equal(t, cyclonedx.SeverityCritical, rating.Severity)
	assert.Equal(t, cyclonedx.ScoringMethodCVSSv31, rating.Method)
	assert.Equal(t, critical.Vector, rating.Vector)
}

func TestCycloneDXOutputHandler_SameNameTwoVersions(t *testing.T) {
	lodashNew := types.PackageRecord{Name: "lodash", Version: "4.17.21", Ecosystem: types.EcosystemNPM}
	lodashOld := types.PackageRecord{Name: "lodash", Version: "3.10.1", Ecosystem: types.EcosystemNPM}
	shared := types.VulnerabilityFinding{ID: "GHSA-jf85-cpcp-j695", Vector: critical.Vector, Score: 9.8, Severity: types.SeverityCritical}
	oldOnly := types.VulnerabilityFinding{ID: "GHSA-p6mc-m468-83gw", Vector: critical.Vector, Score: 9.8, Severity: types.SeverityCritical}

	var buf bytes.Buffer
	h := NewCycloneDXOutputHandler(&buf, []types.PackageRecord{lodashNew, lodashOld}, Meta{})
	require.NoError(t, h.HandleResults([]types.PackageResult{
		{Package: lodashNew, Findings: []types.VulnerabilityFinding{shared}, RiskScore: 9.8},
		{Package: lodashOld, Findings: []types.VulnerabilityFinding{shared, oldOnly, oldOnly}, RiskScore: 9.8},
	}))
	require.NoError(t, h.Close())

	var bom cyclonedx.BOM
	require.NoError(t, cyclonedx.NewBOMDecoder(bytes.NewReader(buf.Bytes()), cyclonedx.BOMFileFormatJSON).Decode(&bom))
	require.NotNil(t, bom.Vulnerabilities)
	vulns := *bom.Vulnerabilities
	require.Len(t, vulns, 4)

	affects := func(v cyclonedx.Vulnerability) string {
		require.NotNil(t, v.Affects)
		return (*v.Affects)[0].Ref
	}
	assert.Equal(t, "pkg:npm/lodash@4.17.21", affects(vulns[0]))
	assert.Equal(t, "pkg:npm/lodash@3.10.1", affects(vulns[1]))
	assert.Equal(t, "pkg:npm/lodash@3.10.1", affects(vulns[2]))
	assert.Equal(t, "GHSA-p6mc-m468-83gw", vulns[2].ID)

	refs := map[string]bool{}
	for _, v := range vulns {
		assert.False(t, refs[v.BOMRef], "duplicate bom-ref %s", v.BOMRef)
		refs[v.BOMRef] = true
	}
}

func TestTableOutputHandler(t *testing.T) {
	var buf bytes.Buffer
	h := NewTableOutputHandler(&buf)
	require.NoError(t, h.HandleResults(testResults()))
	require.NoError(t, h.Close())

	out := buf.String()
	assert.Contains(t, out, "Scan Summary:")
	assert.Contains(t, out, "requests")
	assert.Contains(t, out, "2.6.0")
	assert.Contains(t, out, "9.8")
	assert.Contains(t, out, "CRITICAL")
	assert.Contains(t, out, "PYSEC-2015-17")
	assert.NotContains(t, out, "flask")
}

func TestTableOutputHandler_Empty(t *testing.T) {
	var buf bytes.Buffer
	h := NewTableOutputHandler(&buf)
	require.NoError(t, h.Close())
	assert.Equal(t, "No vulnerabilities at or above the threshold.\n", buf.String())
}

func TestJSONOutputHandler(t *testing.T) {
	var buf bytes.Buffer
	h := NewJSONOutputHandler(&buf, Meta{Manifest: "requirements.txt", Threshold: 4})
	require.NoError(t, h.HandleResults(testResults()))
	require.NoError(t, h.Close())

	var doc JSONReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "requirements.txt", doc.Manifest)
	assert.Equal(t, 2, doc.Summary.Packages)
	assert.Equal(t, 1, doc.Summary.Affected)
	assert.Equal(t, 1, doc.Summary.Vulnerabilities)
	assert.Equal(t, 1, doc.Summary.BySeverity[types.SeverityCritical])
	require.Len(t, doc.Results, 2)
	assert.Equal(t, 9.8, doc.Results[0].RiskScore)
	assert.Equal(t, "CRITICAL", string(doc.Results[0].Findings[0].Severity))
}

func TestHTMLOutputHandler_ArchivesPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "HtmlAndSbom", "combined_report.html")
	hm, err := history.New(history.DefaultLimit)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		h := NewHTMLOutputHandler(context.Background(), path, hm, Meta{Threshold: 4, GeneratedAt: time.Now()})
		require.NoError(t, h.HandleResults(testResults()))
		require.NoError(t, h.Close())
	}

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "requests==2.6.0 (Risk Score: 9.8)")

	des, err := os.ReadDir(filepath.Join(dir, "HtmlAndSbom", history.DirName))
	require.NoError(t, err)
	assert.Len(t, des, 1)
}
