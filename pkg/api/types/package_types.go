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

package types

import (
	"strings"
)

// Well-known ecosystem names, spelled the way OSV expects them.
const (
	EcosystemPyPI  = "PyPI"
	EcosystemNPM   = "npm"
	EcosystemMaven = "Maven"
)

// PackageRecord is a dependency declared by a manifest.
//
// Identity is the PURL when present, otherwise (Name, Ecosystem).
// Records are never mutated after extraction.
type PackageRecord struct {
	Name      string `json:"name,omitempty"`
	Version   string `json:"version,omitempty"`
	Ecosystem string `json:"ecosystem"`
	PURL      string `json:"purl,omitempty"`
}

// Key returns the identity of the record.
func (p PackageRecord) Key() string {
	if p.PURL != "" {
		return p.PURL
	}
	return p.Ecosystem + ":" + p.Name
}

// DisplayName returns the name, falling back to the PURL for purl-only records.
func (p PackageRecord) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.PURL
}

// Pinned renders "name==version", or only the display name when no version is known.
func (p PackageRecord) Pinned() string {
	if p.Version == "" {
		return p.DisplayName()
	}
	return p.DisplayName() + "==" + p.Version
}

// Severity is the qualitative CVSS v3 rating.
type Severity string

const (
	SeverityNone     Severity = "NONE"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Severities lists every rating from the most to the least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityNone}

// Rank orders severities; higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Lower returns the lower-case form used by CycloneDX ratings and CSS classes.
func (s Severity) Lower() string {
	return strings.ToLower(string(s))
}

// VulnerabilityFinding is a single scored vulnerability entry.
type VulnerabilityFinding struct {
	ID       string            `json:"id"`
	Vector   string            `json:"vector"`
	Score    float64           `json:"score"`
	Severity Severity          `json:"severity"`
	Metrics  map[string]string `json:"metrics"`
	Details  string            `json:"details,omitempty"`
}

// PackageResult is the outcome of scanning a single package.
// Findings only holds entries at or above the threshold, in database order.
type PackageResult struct {
	Package   PackageRecord          `json:"package"`
	Findings  []VulnerabilityFinding `json:"findings"`
	RiskScore float64                `json:"risk_score"`
}

// Affected reports whether the package has at least one qualifying finding.
func (r PackageResult) Affected() bool {
	return len(r.Findings) > 0
}

// Severity returns the rating matching the highest finding.
func (r PackageResult) Severity() Severity {
	top := SeverityNone
	for _, f := range r.Findings {
		if f.Severity.Rank() > top.Rank() {
			top = f.Severity
		}
	}
	return top
}
