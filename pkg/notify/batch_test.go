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

package notify

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venslabs/depguard/pkg/api/types"
)

func TestAlertLines(t *testing.T) {
	results := []types.PackageResult{
		{
			Package: types.PackageRecord{Name: "requests", Version: "2.6.0", Ecosystem: "PyPI"},
			Findings: []types.VulnerabilityFinding{
				{ID: "PYSEC-2015-17", Score: 9.8},
				{ID: "GHSA-low", Score: 4.2},
				{ID: "GHSA-high", Score: 7.5},
			},
		},
		{Package: types.PackageRecord{Name: "flask", Version: "2.0.0"}},
		{
			Package:  types.PackageRecord{PURL: "pkg:maven/g/a@1.0", Ecosystem: "Maven"},
			Findings: []types.VulnerabilityFinding{{ID: "CVE-2021-44228", Score: 10}},
		},
	}
	assert.Equal(t, []string{
		"requests==2.6.0: PYSEC-2015-17 (CVSS 9.8); GHSA-high (CVSS 7.5)",
		"pkg:maven/g/a@1.0: CVE-2021-44228 (CVSS 10.0)",
	}, AlertLines(results, 7.0))
	assert.Empty(t, AlertLines(results, 10.1))
}

func TestHeader(t *testing.T) {
	assert.Equal(t, "🚨 High score vulnerabilities found (CVSS ≥ 4.0):", Header(4))
}

func TestBatch_NoLinesNoChunks(t *testing.T) {
	chunks, err := Batcher{Header: Header(4), MaxBytes: DefaultMaxChunkBytes}.Batch(nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestBatch_Greedy(t *testing.T) {
	b := Batcher{Header: "H", MaxBytes: 10}
	// "H\naaa\nbbb" takes 9 bytes, adding "cccc" would need 14.
	chunks, err := b.Batch([]string{"aaa", "bbb", "cccc", "d"})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "H\naaa\nbbb", chunks[0].String())
	assert.Equal(t, "H\ncccc\nd", chunks[1].String())
}

func TestBatch_SplitsOverlongLine(t *testing.T) {
	b := Batcher{Header: "H", MaxBytes: 8}
	line := "ééééé" // 10 bytes
	chunks, err := b.Batch([]string{line})
	require.NoError(t, err)
	var joined string
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.String()), 8)
		for _, l := range c.Lines {
			assert.True(t, strings.ToValidUTF8(l, "?") == l)
			joined += l
		}
	}
	assert.Equal(t, line, joined)
}

func TestBatch_HeaderTooLarge(t *testing.T) {
	_, err := Batcher{Header: strings.Repeat("x", 20), MaxBytes: 20}.Batch([]string{"a"})
	assert.Error(t, err)
}

func TestBatchProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	header := Header(4.0)

	properties.Property("chunks fit the budget and keep every line in order", prop.ForAll(
		func(lines []string, budget int) bool {
			b := Batcher{Header: header, MaxBytes: len(header) + budget}
			chunks, err := b.Batch(lines)
			if err != nil {
				return false
			}
			if len(lines) == 0 {
				return len(chunks) == 0
			}
			var got []string
			for _, c := range chunks {
				if len(c.String()) > b.MaxBytes || len(c.Lines) == 0 || c.Header != header {
					return false
				}
				got = append(got, c.Lines...)
			}
			return strings.Join(got, "") == strings.Join(lines, "")
		},
		gen.SliceOf(gen.AlphaString()),
		gen.IntRange(5, 200),
	))

	properties.Property("lines that fit are never split", prop.ForAll(
		func(lines []string) bool {
			b := Batcher{Header: header, MaxBytes: DefaultMaxChunkBytes}
			chunks, err := b.Batch(lines)
			if err != nil {
				return false
			}
			var got []string
			for _, c := range chunks {
				got = append(got, c.Lines...)
			}
			return assert.ObjectsAreEqual(lines, got) || (len(lines) == 0 && len(got) == 0)
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
