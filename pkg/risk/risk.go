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

// Package risk reduces scored findings to a per-package risk.
package risk

import (
	"github.com/venslabs/depguard/pkg/api/types"
)

// DefaultThreshold is the minimum score a finding needs to be reported.
const DefaultThreshold = 4.0

// Aggregate keeps the findings scoring at or above threshold, in their
// original order, and sets the risk score to the highest kept score.
// A package with no qualifying finding has a risk score of 0.
func Aggregate(pkg types.PackageRecord, findings []types.VulnerabilityFinding, threshold float64) types.PackageResult {
	res := types.PackageResult{
		Package:  pkg,
		Findings: []types.VulnerabilityFinding{},
	}
	for _, f := range findings {
		if f.Score < threshold {
			continue
		}
		res.Findings = append(res.Findings, f)
		if f.Score > res.RiskScore {
			res.RiskScore = f.Score
		}
	}
	return res
}

// Totals summarizes a set of package results.
type Totals struct {
	Packages        int
	Affected        int
	Vulnerabilities int
	BySeverity      map[types.Severity]int
}

// Summarize counts qualifying findings and affected packages.
func Summarize(results []types.PackageResult) Totals {
	t := Totals{
		Packages:   len(results),
		BySeverity: make(map[types.Severity]int, len(types.Severities)),
	}
	for _, r := range results {
		if r.Affected() {
			t.Affected++
		}
		for _, f := range r.Findings {
			t.Vulnerabilities++
			t.BySeverity[f.Severity]++
		}
	}
	return t
}
