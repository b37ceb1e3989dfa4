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

// Package finding turns raw vulnerability database records into scored findings.
package finding

import (
	"context"
	"log/slog"

	"github.com/venslabs/depguard/pkg/api/types"
	"github.com/venslabs/depguard/pkg/cvss"
)

// FromEntry converts one severity entry of a vulnerability into a finding.
//
// Entries that are not CVSS v3 return (nil, nil). A malformed vector returns an
// error wrapping errdefs.ErrVectorParse. The score is always derived from the
// vector itself.
func FromEntry(id, details string, entry types.OSVSeverity) (*types.VulnerabilityFinding, error) {
	if entry.Type != types.SeverityTypeCVSSV3 {
		return nil, nil
	}
	v, err := cvss.ParseVector(entry.Score)
	if err != nil {
		return nil, err
	}
	score := v.BaseScore()
	return &types.VulnerabilityFinding{
		ID:       id,
		Vector:   entry.Score,
		Score:    score,
		Severity: cvss.Classify(score),
		Metrics:  v.Metrics(),
		Details:  details,
	}, nil
}

// Stats counts what FromVulnerabilities dropped.
type Stats struct {
	Skipped     int // non CVSS v3 entries
	ParseErrors int
}

// FromVulnerabilities walks vulnerabilities and their severity entries in the
// order returned by the database. Malformed vectors are logged and skipped.
func FromVulnerabilities(ctx context.Context, vulns []types.OSVVulnerability) ([]types.VulnerabilityFinding, Stats) {
	var (
		out   []types.VulnerabilityFinding
		stats Stats
	)
	for _, vuln := range vulns {
		details := vuln.Details
		if details == "" {
			details = vuln.Summary
		}
		for _, entry := range vuln.Severity {
			f, err := FromEntry(vuln.ID, details, entry)
			if err != nil {
				stats.ParseErrors++
				slog.WarnContext(ctx, "Skipping unparsable severity entry", "id", vuln.ID, "vector", entry.Score, "error", err)
				continue
			}
			if f == nil {
				stats.Skipped++
				slog.DebugContext(ctx, "Skipping non CVSS v3 severity entry", "id", vuln.ID, "type", entry.Type)
				continue
			}
			out = append(out, *f)
		}
	}
	return out, stats
}
