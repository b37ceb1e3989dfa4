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

// SeverityTypeCVSSV3 is the OSV severity type carrying a CVSS v3.x vector.
const SeverityTypeCVSSV3 = "CVSS_V3"

// OSVSeverity is a raw severity entry as returned by the OSV API.
// Score holds the vector string, not a number.
type OSVSeverity struct {
	Type  string `json:"type"`
	Score string `json:"score"`
}

// OSVVulnerability holds the subset of an OSV record we consume.
type OSVVulnerability struct {
	ID       string        `json:"id"`
	Summary  string        `json:"summary,omitempty"`
	Details  string        `json:"details,omitempty"`
	Aliases  []string      `json:"aliases,omitempty"`
	Severity []OSVSeverity `json:"severity,omitempty"`
}
