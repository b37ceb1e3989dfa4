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
	"encoding/json"
	"io"

	"github.com/venslabs/depguard/pkg/api/types"
	"github.com/venslabs/depguard/pkg/risk"
)

type jsonOutputHandler struct {
	w    io.Writer
	meta Meta
	r    []types.PackageResult
}

// JSONReport is the document written by the JSON output handler.
type JSONReport struct {
	Manifest    string                `json:"manifest,omitempty"`
	Threshold   float64               `json:"threshold"`
	GeneratedAt string                `json:"generated_at,omitempty"`
	Summary     JSONSummary           `json:"summary"`
	Results     []types.PackageResult `json:"results"`
}

// JSONSummary holds the scan totals.
type JSONSummary struct {
	Packages        int                    `json:"packages"`
	Affected        int                    `json:"affected"`
	Vulnerabilities int                    `json:"vulnerabilities"`
	BySeverity      map[types.Severity]int `json:"by_severity"`
}

// NewJSONOutputHandler writes results and totals as indented JSON on Close.
func NewJSONOutputHandler(w io.Writer, meta Meta) OutputHandler {
	return &jsonOutputHandler{w: w, meta: meta}
}

func (h *jsonOutputHandler) HandleResults(r []types.PackageResult) error {
	h.r = append(h.r, r...)
	return nil
}

func (h *jsonOutputHandler) Close() error {
	totals := risk.Summarize(h.r)
	doc := JSONReport{
		Manifest:  h.meta.Manifest,
		Threshold: h.meta.Threshold,
		Summary: JSONSummary{
			Packages:        totals.Packages,
			Affected:        totals.Affected,
			Vulnerabilities: totals.Vulnerabilities,
			BySeverity:      totals.BySeverity,
		},
		Results: h.r,
	}
	if !h.meta.GeneratedAt.IsZero() {
		doc.GeneratedAt = h.meta.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	if doc.Results == nil {
		doc.Results = []types.PackageResult{}
	}
	enc := json.NewEncoder(h.w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
