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

// Package report renders scan results as a standalone HTML page.
package report

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/venslabs/depguard/pkg/api/types"
	"github.com/venslabs/depguard/pkg/cvss"
	"github.com/venslabs/depguard/pkg/risk"
)

//go:embed report.html.tmpl
var pageTemplate string

var tmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"score": func(f float64) string { return fmt.Sprintf("%.1f", f) },
	"lower": func(s types.Severity) string { return s.Lower() },
	"metrics": func(m map[string]string) []Metric {
		out := make([]Metric, 0, len(m))
		for _, k := range cvss.BaseMetrics {
			if v, ok := m[k]; ok {
				out = append(out, Metric{Name: k, Value: v})
			}
		}
		return out
	},
}).Parse(pageTemplate))

// Metric is a single CVSS base metric, in canonical order.
type Metric struct {
	Name  string
	Value string
}

// SeverityCount is one row of the summary.
type SeverityCount struct {
	Severity types.Severity
	Count    int
}

// Data is everything the page shows.
type Data struct {
	Manifest    string
	Threshold   float64
	GeneratedAt time.Time
	Results     []types.PackageResult
}

type view struct {
	Data
	Totals     risk.Totals
	Severities []SeverityCount
}

// Render writes the HTML report for d to w. Vulnerability details are
// escaped; they come from a third-party database.
func Render(w io.Writer, d Data) error {
	totals := risk.Summarize(d.Results)
	v := view{Data: d, Totals: totals}
	for _, s := range types.Severities {
		v.Severities = append(v.Severities, SeverityCount{Severity: s, Count: totals.BySeverity[s]})
	}
	return tmpl.Execute(w, v)
}
