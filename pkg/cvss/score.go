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

	gocvss31 "github.com/pandatix/go-cvss/31"

	"github.com/venslabs/depguard/pkg/api/types"
	"github.com/venslabs/depguard/pkg/errdefs"
)

// base31 returns the base metrics as a CVSS v3.1 vector for the scorer.
// 3.0 vectors share the 3.1 equations and are scored with the 3.1 rounding.
func (v *Vector) base31() (*gocvss31.CVSS31, error) {
	c, err := gocvss31.ParseVector(fmt.Sprintf("CVSS:3.1/AV:%s/AC:%s/PR:%s/UI:%s/S:%s/C:%s/I:%s/A:%s",
		v.AttackVector, v.AttackComplexity, v.PrivilegesRequired, v.UserInteraction,
		v.Scope, v.Confidentiality, v.Integrity, v.Availability))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrVectorParse, err)
	}
	return c, nil
}

// BaseScore returns the CVSS v3.1 base score of the vector.
// A hand-built Vector with invalid metrics scores 0.
func (v *Vector) BaseScore() float64 {
	c, err := v.base31()
	if err != nil {
		return 0
	}
	return c.BaseScore()
}

// Severity returns the qualitative rating of the base score.
func (v *Vector) Severity() types.Severity {
	return Classify(v.BaseScore())
}

// Classify maps a score to its rating. Lower bounds are inclusive.
func Classify(score float64) types.Severity {
	switch {
	case score >= 9.0:
		return types.SeverityCritical
	case score >= 7.0:
		return types.SeverityHigh
	case score >= 4.0:
		return types.SeverityMedium
	case score >= 0.1:
		return types.SeverityLow
	default:
		return types.SeverityNone
	}
}
