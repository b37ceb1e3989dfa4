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

// Package metrics exposes scan counters as Prometheus metrics.
//
// A scan is a short-lived process, so metrics live on a per-run registry and
// are exported with WriteTextfile for the node exporter textfile collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/venslabs/depguard/pkg/api/types"
)

// Metrics holds the counters of a single run. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	PackagesScanned   prometheus.Counter
	Findings          *prometheus.CounterVec
	QueryFailures     prometheus.Counter
	VectorParseErrors prometheus.Counter
	Notifications     *prometheus.CounterVec
	ArchivesPruned    prometheus.Counter
}

// New registers the run metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		PackagesScanned: factory.NewCounter(prometheus.CounterOpts{
			Name: "depguard_packages_scanned_total",
			Help: "Total number of packages queried",
		}),
		Findings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "depguard_findings_total",
			Help: "Total number of findings at or above the threshold, by severity",
		}, []string{"severity"}),
		QueryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "depguard_query_failures_total",
			Help: "Total number of vulnerability database queries that failed",
		}),
		VectorParseErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "depguard_vector_parse_errors_total",
			Help: "Total number of CVSS vectors that could not be parsed",
		}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "depguard_notifications_total",
			Help: "Total number of notification chunks, by delivery status",
		}, []string{"status"}),
		ArchivesPruned: factory.NewCounter(prometheus.CounterOpts{
			Name: "depguard_report_archives_pruned_total",
			Help: "Total number of archived reports deleted by retention",
		}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveResult records a scanned package and its kept findings.
func (m *Metrics) ObserveResult(r types.PackageResult, parseErrors int, queryFailed bool) {
	if m == nil {
		return
	}
	m.PackagesScanned.Inc()
	for _, f := range r.Findings {
		m.Findings.WithLabelValues(f.Severity.Lower()).Inc()
	}
	m.VectorParseErrors.Add(float64(parseErrors))
	if queryFailed {
		m.QueryFailures.Inc()
	}
}

// ObserveNotification records the delivery status of one chunk.
func (m *Metrics) ObserveNotification(err error) {
	if m == nil {
		return
	}
	status := "sent"
	if err != nil {
		status = "failed"
	}
	m.Notifications.WithLabelValues(status).Inc()
}

// ObservePruned records archive deletions.
func (m *Metrics) ObservePruned(n int) {
	if m == nil {
		return
	}
	m.ArchivesPruned.Add(float64(n))
}

// WriteTextfile writes all metrics to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
