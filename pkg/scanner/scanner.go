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

// Package scanner runs the query, parse and aggregate steps for every
// package of a manifest on a bounded worker pool.
package scanner

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/venslabs/depguard/pkg/api/types"
	"github.com/venslabs/depguard/pkg/finding"
	"github.com/venslabs/depguard/pkg/metrics"
	"github.com/venslabs/depguard/pkg/risk"
)

const DefaultConcurrency = 8

// Querier looks up the vulnerabilities of a package.
type Querier interface {
	Query(ctx context.Context, pkg types.PackageRecord) ([]types.OSVVulnerability, error)
}

// Opts configures the Scanner.
type Opts struct {
	Querier     Querier
	Threshold   float64
	Concurrency int // Bounds in-flight database queries
	Metrics     *metrics.Metrics
}

// Scanner scores packages against the vulnerability database.
type Scanner struct {
	o Opts
}

// New creates a new Scanner with the given options.
func New(o Opts) (*Scanner, error) {
	s := &Scanner{
		o: o,
	}
	if s.o.Querier == nil {
		return nil, errors.New("no querier")
	}
	if s.o.Threshold < 0 || s.o.Threshold > 10 {
		return nil, errors.New("threshold must be within 0..10")
	}
	if s.o.Concurrency <= 0 {
		s.o.Concurrency = DefaultConcurrency
	}
	return s, nil
}

// Scan returns one result per package, in the order of pkgs.
//
// A failed query counts as "no findings" for that package and does not
// stop the scan. Only cancellation of ctx aborts it.
func (s *Scanner) Scan(ctx context.Context, pkgs []types.PackageRecord) ([]types.PackageResult, error) {
	results := make([]types.PackageResult, len(pkgs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.o.Concurrency)
	for i, pkg := range pkgs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.scanOne(gctx, pkg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Scanner) scanOne(ctx context.Context, pkg types.PackageRecord) types.PackageResult {
	vulns, err := s.o.Querier.Query(ctx, pkg)
	queryFailed := err != nil
	if queryFailed {
		slog.WarnContext(ctx, "Vulnerability query failed, assuming no findings", "package", pkg.Key(), "error", err)
		vulns = nil
	}
	findings, stats := finding.FromVulnerabilities(ctx, vulns)
	res := risk.Aggregate(pkg, findings, s.o.Threshold)
	slog.DebugContext(ctx, "Package scanned",
		"package", pkg.Key(), "vulns", len(vulns), "findings", len(res.Findings), "risk", res.RiskScore)
	s.o.Metrics.ObserveResult(res, stats.ParseErrors, queryFailed)
	return res
}
