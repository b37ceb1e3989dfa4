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

// Package notify packs alert lines into size-bounded messages and delivers
// them to a chat webhook.
package notify

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/venslabs/depguard/pkg/api/types"
)

// DefaultMaxChunkBytes keeps messages below Discord's 2000 character limit.
const DefaultMaxChunkBytes = 1900

// Header returns the first line of every alert message.
func Header(threshold float64) string {
	return fmt.Sprintf("🚨 High score vulnerabilities found (CVSS ≥ %.1f):", threshold)
}

// AlertLines renders one line per package having findings at or above
// threshold, e.g. "requests==2.6.0: PYSEC-2015-17 (CVSS 9.8); GHSA-x (CVSS 7.5)".
func AlertLines(results []types.PackageResult, threshold float64) []string {
	var lines []string
	for _, r := range results {
		var parts []string
		for _, f := range r.Findings {
			if f.Score < threshold {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s (CVSS %.1f)", f.ID, f.Score))
		}
		if len(parts) == 0 {
			continue
		}
		lines = append(lines, r.Package.Pinned()+": "+strings.Join(parts, "; "))
	}
	return lines
}

// AlertChunk is one message: the header followed by alert lines, one per row.
type AlertChunk struct {
	Header string
	Lines  []string
}

// String serializes the chunk as it is sent.
func (c AlertChunk) String() string {
	return c.Header + "\n" + strings.Join(c.Lines, "\n")
}

// Batcher packs lines greedily into chunks of at most MaxBytes bytes.
type Batcher struct {
	Header   string
	MaxBytes int
}

// Batch returns the chunks for lines, preserving their order. No lines
// means no chunks. A line too long for an otherwise empty chunk is split at
// rune boundaries over consecutive chunks.
func (b Batcher) Batch(lines []string) ([]AlertChunk, error) {
	room := b.MaxBytes - len(b.Header) - 1
	if room < utf8.UTFMax {
		return nil, fmt.Errorf("chunk budget of %d bytes cannot hold the %d byte header", b.MaxBytes, len(b.Header))
	}

	var chunks []AlertChunk
	cur := AlertChunk{Header: b.Header}
	size := len(b.Header)
	flush := func() {
		if len(cur.Lines) == 0 {
			return
		}
		chunks = append(chunks, cur)
		cur = AlertChunk{Header: b.Header}
		size = len(b.Header)
	}

	for _, line := range lines {
		for _, piece := range splitLine(line, room) {
			if size+1+len(piece) > b.MaxBytes {
				flush()
			}
			cur.Lines = append(cur.Lines, piece)
			size += 1 + len(piece)
		}
	}
	flush()
	return chunks, nil
}

// splitLine cuts s into pieces of at most n bytes without breaking runes.
func splitLine(s string, n int) []string {
	if len(s) <= n {
		return []string{s}
	}
	var pieces []string
	for len(s) > n {
		i := n
		for i > 0 && !utf8.RuneStart(s[i]) {
			i--
		}
		if i == 0 {
			i = n // not valid UTF-8
		}
		pieces = append(pieces, s[:i])
		s = s[i:]
	}
	return append(pieces, s)
}
