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
	"os"

	"github.com/aquasecurity/table"
	"github.com/aquasecurity/tml"

	"github.com/venslabs/depguard/pkg/api/types"
)

type tableOutputHandler struct {
	w io.Writer
	r []types.PackageResult
}

// NewTableOutputHandler prints affected packages as a table on Close.
func NewTableOutputHandler(w io.Writer) OutputHandler {
	if w == nil {
		w = os.Stdout
	}
	return &tableOutputHandler{w: w}
}

func (h *tableOutputHandler) HandleResults(r []types.PackageResult) error {
	h.r = append(h.r, r...)
	return nil
}

func (h *tableOutputHandler) Close() error {
	affected := 0
	for _, r := range h.r {
		if r.Affected() {
			affected++
		}
	}
	if affected == 0 {
		_, err := fmt.Fprintln(h.w, "No vulnerabilities at or above the threshold.")
		return err
	}

	if _, err := fmt.Fprintln(h.w, "Scan Summary:"); err != nil {
		return err
	}
	t := table.New(h.w)
	t.SetHeaders("Package", "Version", "Vulnerabilities", "Risk Score", "Severity", "IDs")
	for _, r := range h.r {
		if !r.Affected() {
			continue
		}
		ids := ""
		for i, f := range r.Findings {
			if i > 0 {
				ids += ", "
			}
			ids += f.ID
		}
		t.AddRow(
			r.Package.DisplayName(),
			r.Package.Version,
			fmt.Sprintf("%d", len(r.Findings)),
			fmt.Sprintf("%.1f", r.RiskScore),
			colorSeverity(r.Severity()),
			ids,
		)
	}
	t.Render()
	return nil
}

func colorSeverity(severity types.Severity) string {
	switch severity {
	case types.SeverityCritical:
		return tml.Sprintf("<red><bold>CRITICAL</bold></red>")
	case types.SeverityHigh:
		return tml.Sprintf("<red>HIGH</red>")
	case types.SeverityMedium:
		return tml.Sprintf("<yellow>MEDIUM</yellow>")
	case types.SeverityLow:
		return tml.Sprintf("<blue>LOW</blue>")
	default:
		return string(severity)
	}
}
