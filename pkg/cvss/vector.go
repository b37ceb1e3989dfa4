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

package cvss

import (
	"fmt"
	"strings"

	"github.com/venslabs/depguard/pkg/errdefs"
)

// Base metric codes, in canonical vector order.
const (
	MetricAttackVector       = "AV"
	MetricAttackComplexity   = "AC"
	MetricPrivilegesRequired = "PR"
	MetricUserInteraction    = "UI"
	MetricScope              = "S"
	MetricConfidentiality    = "C"
	MetricIntegrity          = "I"
	MetricAvailability       = "A"
)

// BaseMetrics lists the base metric codes in canonical order.
var BaseMetrics = []string{
	MetricAttackVector, MetricAttackComplexity, MetricPrivilegesRequired, MetricUserInteraction,
	MetricScope, MetricConfidentiality, MetricIntegrity, MetricAvailability,
}

// allowedValues holds the legal value letters for every base metric.
var allowedValues = map[string]string{
	MetricAttackVector:       "NALP",
	MetricAttackComplexity:   "LH",
	MetricPrivilegesRequired: "NLH",
	MetricUserInteraction:    "NR",
	MetricScope:              "UC",
	MetricConfidentiality:    "HLN",
	MetricIntegrity:          "HLN",
	MetricAvailability:       "HLN",
}

// Vector represents a CVSS v3 base vector.
// Format: CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H
//
// Temporal and environmental metrics may appear in a parsed string but are
// not retained; scoring only uses the base group.
//
// Reference: https://www.first.org/cvss/v3.1/specification-document
type Vector struct {
	Version string // "3.0" or "3.1"

	AttackVector       string // AV: N, A, L, P
	AttackComplexity   string // AC: L, H
	PrivilegesRequired string // PR: N, L, H
	UserInteraction    string // UI: N, R
	Scope              string // S: U, C

	Confidentiality string // C: H, L, N
	Integrity       string // I: H, L, N
	Availability    string // A: H, L, N
}

// String returns the vector with base metrics in canonical order.
func (v *Vector) String() string {
	return fmt.Sprintf("CVSS:%s/AV:%s/AC:%s/PR:%s/UI:%s/S:%s/C:%s/I:%s/A:%s",
		v.Version,
		v.AttackVector, v.AttackComplexity, v.PrivilegesRequired, v.UserInteraction,
		v.Scope, v.Confidentiality, v.Integrity, v.Availability)
}

// Metrics returns the base metrics keyed by their code.
func (v *Vector) Metrics() map[string]string {
	return map[string]string{
		MetricAttackVector:       v.AttackVector,
		MetricAttackComplexity:   v.AttackComplexity,
		MetricPrivilegesRequired: v.PrivilegesRequired,
		MetricUserInteraction:    v.UserInteraction,
		MetricScope:              v.Scope,
		MetricConfidentiality:    v.Confidentiality,
		MetricIntegrity:          v.Integrity,
		MetricAvailability:       v.Availability,
	}
}

func (v *Vector) set(metric, value string) {
	switch metric {
	case MetricAttackVector:
		v.AttackVector = value
	case MetricAttackComplexity:
		v.AttackComplexity = value
	case MetricPrivilegesRequired:
		v.PrivilegesRequired = value
	case MetricUserInteraction:
		v.UserInteraction = value
	case MetricScope:
		v.Scope = value
	case MetricConfidentiality:
		v.Confidentiality = value
	case MetricIntegrity:
		v.Integrity = value
	case MetricAvailability:
		v.Availability = value
	}
}

// FromMetrics builds a vector from a base metric map, validating every value.
func FromMetrics(version string, metrics map[string]string) (*Vector, error) {
	if err := checkVersion(version); err != nil {
		return nil, err
	}
	v := &Vector{Version: version}
	for _, m := range BaseMetrics {
		val, ok := metrics[m]
		if !ok {
			return nil, fmt.Errorf("%w: missing base metric %s", errdefs.ErrVectorParse, m)
		}
		if !validValue(m, val) {
			return nil, fmt.Errorf("%w: invalid value %q for %s", errdefs.ErrVectorParse, val, m)
		}
		v.set(m, val)
	}
	if _, err := v.base31(); err != nil {
		return nil, err
	}
	return v, nil
}

// ParseVector parses a "CVSS:3.x/..." string. The body after the version
// prefix is split on "/" and each segment on its first ":".
func ParseVector(s string) (*Vector, error) {
	s = strings.TrimSpace(s)
	header, body, ok := strings.Cut(s, "/")
	if !ok {
		return nil, fmt.Errorf("%w: %q has no metrics", errdefs.ErrVectorParse, s)
	}
	version, ok := strings.CutPrefix(header, "CVSS:")
	if !ok {
		return nil, fmt.Errorf("%w: %q lacks the CVSS: prefix", errdefs.ErrVectorParse, s)
	}
	if err := checkVersion(version); err != nil {
		return nil, err
	}
	if body == "" {
		return nil, fmt.Errorf("%w: %q has an empty body", errdefs.ErrVectorParse, s)
	}

	metrics := make(map[string]string, len(BaseMetrics))
	for _, seg := range strings.Split(body, "/") {
		key, val, ok := strings.Cut(seg, ":")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: segment %q of %q is not key:value", errdefs.ErrVectorParse, seg, s)
		}
		if _, base := allowedValues[key]; !base {
			continue
		}
		if _, dup := metrics[key]; dup {
			return nil, fmt.Errorf("%w: metric %s repeated in %q", errdefs.ErrVectorParse, key, s)
		}
		metrics[key] = val
	}
	v, err := FromMetrics(version, metrics)
	if err != nil {
		return nil, fmt.Errorf("%w (vector %q)", err, s)
	}
	return v, nil
}

func checkVersion(version string) error {
	switch version {
	case "3.0", "3.1":
		return nil
	}
	return fmt.Errorf("%w: unsupported version %q", errdefs.ErrVectorParse, version)
}

func validValue(metric, val string) bool {
	return len(val) == 1 && strings.Contains(allowedValues[metric], val)
}
