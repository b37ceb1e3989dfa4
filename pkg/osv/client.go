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

// Package osv queries the OSV vulnerability database (https://osv.dev).
package osv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/venslabs/depguard/pkg/api/types"
	"github.com/venslabs/depguard/pkg/errdefs"
)

const (
	// DefaultURL is the single-package query endpoint.
	DefaultURL = "https://api.osv.dev/v1/query"

	DefaultTimeout = 30 * time.Second

	// maxPages bounds next_page_token following for a single package.
	maxPages = 50
)

// Client checks packages for known vulnerabilities using the OSV API.
type Client struct {
	HTTPClient *http.Client
	APIURL     string
}

// NewClient returns a client for url, or DefaultURL when url is empty.
func NewClient(url string) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		APIURL:     url,
	}
}

type query struct {
	Package   queryPackage `json:"package"`
	Version   string       `json:"version,omitempty"`
	PageToken string       `json:"page_token,omitempty"`
}

type queryPackage struct {
	PURL      string `json:"purl,omitempty"`
	Name      string `json:"name,omitempty"`
	Ecosystem string `json:"ecosystem,omitempty"`
}

type queryResponse struct {
	Vulns         []types.OSVVulnerability `json:"vulns"`
	NextPageToken string                   `json:"next_page_token"`
}

// newQuery identifies the package by purl when the record has one, and by
// name, ecosystem and version otherwise.
func newQuery(pkg types.PackageRecord) query {
	if pkg.PURL != "" {
		return query{Package: queryPackage{PURL: pkg.PURL}}
	}
	return query{
		Package: queryPackage{Name: pkg.Name, Ecosystem: pkg.Ecosystem},
		Version: pkg.Version,
	}
}

// Query returns the vulnerabilities affecting pkg, in database order.
//
// It never fails hard: a transport error or a non-success status yields the
// results gathered so far plus an error wrapping errdefs.ErrQuery, which
// callers treat as "no findings" for the package.
func (c *Client) Query(ctx context.Context, pkg types.PackageRecord) ([]types.OSVVulnerability, error) {
	q := newQuery(pkg)
	var vulns []types.OSVVulnerability
	for page := 0; page < maxPages; page++ {
		resp, err := c.post(ctx, q)
		if err != nil {
			return vulns, fmt.Errorf("%w: %s: %v", errdefs.ErrQuery, pkg.Key(), err)
		}
		vulns = append(vulns, resp.Vulns...)
		if resp.NextPageToken == "" {
			return vulns, nil
		}
		slog.DebugContext(ctx, "Following OSV page token", "package", pkg.Key(), "page", page+1)
		q.PageToken = resp.NextPageToken
	}
	slog.WarnContext(ctx, "Too many OSV result pages, truncating", "package", pkg.Key(), "pages", maxPages)
	return vulns, nil
}

func (c *Client) post(ctx context.Context, q query) (*queryResponse, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OSV API request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("OSV API returned status: %s", resp.Status)
	}

	var out queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode OSV response: %w", err)
	}
	return &out, nil
}
