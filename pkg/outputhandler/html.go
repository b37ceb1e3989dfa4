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
	"bytes"
	"context"

	"github.com/venslabs/depguard/pkg/api/types"
	"github.com/venslabs/depguard/pkg/history"
	"github.com/venslabs/depguard/pkg/report"
)

type htmlOutputHandler struct {
	ctx     context.Context
	path    string
	history *history.Manager
	meta    Meta
	r       []types.PackageResult
}

// NewHTMLOutputHandler renders the HTML report on Close and stores it at
// path through the history manager, archiving the previous report.
func NewHTMLOutputHandler(ctx context.Context, path string, hm *history.Manager, meta Meta) OutputHandler {
	return &htmlOutputHandler{ctx: ctx, path: path, history: hm, meta: meta}
}

func (h *htmlOutputHandler) HandleResults(r []types.PackageResult) error {
	h.r = append(h.r, r...)
	return nil
}

func (h *htmlOutputHandler) Close() error {
	var buf bytes.Buffer
	err := report.Render(&buf, report.Data{
		Manifest:    h.meta.Manifest,
		Threshold:   h.meta.Threshold,
		GeneratedAt: h.meta.GeneratedAt,
		Results:     h.r,
	})
	if err != nil {
		return err
	}
	return h.history.Write(h.ctx, h.path, buf.Bytes())
}
