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

// Package outputhandler renders scan results in the supported output formats.
package outputhandler

import (
	"time"

	"github.com/venslabs/depguard/pkg/api/types"
)

// OutputHandler accumulates results and writes its rendering on Close.
type OutputHandler interface {
	HandleResults([]types.PackageResult) error
	Close() error
}

// Meta describes the scan that produced the results.
type Meta struct {
	Manifest    string
	Threshold   float64
	GeneratedAt time.Time
	ToolVersion string
}
