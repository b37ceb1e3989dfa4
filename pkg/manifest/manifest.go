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

// Package manifest locates and reads dependency manifests.
package manifest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/venslabs/depguard/pkg/api/types"
	"github.com/venslabs/depguard/pkg/errdefs"
)

// Format identifies a manifest format.
type Format string

const (
	FormatRequirements Format = "requirements"
	FormatPackageLock  Format = "package-lock"
	FormatPOM          Format = "pom"
)

// Candidate is a manifest file name looked up during detection.
type Candidate struct {
	FileName string
	Format   Format
}

// Candidates are checked in this order; the first one present wins and the
// others are ignored.
var Candidates = []Candidate{
	{"test-requirements.txt", FormatRequirements},
	{"requirements.txt", FormatRequirements},
	{"package-lock.json", FormatPackageLock},
	{"pom.xml", FormatPOM},
}

// Detect returns the path and format of the manifest to scan in dir.
func Detect(dir string) (string, Format, error) {
	for _, c := range Candidates {
		p := filepath.Join(dir, c.FileName)
		st, err := os.Stat(p)
		if err != nil || !st.Mode().IsRegular() {
			continue
		}
		return p, c.Format, nil
	}
	return "", "", fmt.Errorf("%w in %s", errdefs.ErrManifestNotFound, dir)
}

// Extract detects the manifest in dir and returns its records in
// declaration order.
func Extract(ctx context.Context, dir string) ([]types.PackageRecord, string, error) {
	p, format, err := Detect(dir)
	if err != nil {
		return nil, "", err
	}
	slog.DebugContext(ctx, "Manifest detected", "path", p, "format", format)
	recs, err := ExtractFile(p, format)
	if err != nil {
		return nil, p, err
	}
	return recs, p, nil
}

// ExtractFile reads a manifest of a known format.
func ExtractFile(path string, format Format) ([]types.PackageRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &errdefs.ManifestError{Path: path, Cause: err}
	}
	defer f.Close() //nolint:errcheck
	return Parse(f, path, format)
}

// Parse reads a manifest from r. path is only used in error messages.
func Parse(r io.Reader, path string, format Format) ([]types.PackageRecord, error) {
	switch format {
	case FormatRequirements:
		return parseRequirements(r, path)
	case FormatPackageLock:
		return parsePackageLock(r, path)
	case FormatPOM:
		return parsePOM(r, path)
	default:
		return nil, fmt.Errorf("unknown manifest format %q", format)
	}
}
