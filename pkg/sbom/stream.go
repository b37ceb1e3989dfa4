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

// Package sbom reads CycloneDX JSON SBOMs without loading them in memory.
package sbom

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/venslabs/depguard/pkg/api/types"
	"github.com/venslabs/depguard/pkg/jsonstream"
)

// StreamComponents performs a single-pass streaming parse of the
// `components` array and invokes cb for each entry. Other root fields are
// skipped without decoding.
func StreamComponents(path string, cb func(types.SBOMComponent) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	dec := json.NewDecoder(f)
	if err := jsonstream.ExpectDelim(dec, '{'); err != nil {
		return fmt.Errorf("invalid CycloneDX JSON: %w", err)
	}
	for dec.More() {
		key, err := jsonstream.Key(dec)
		if err != nil {
			return err
		}
		if key != "components" {
			if err := jsonstream.SkipValue(dec); err != nil {
				return err
			}
			continue
		}
		if err := jsonstream.ExpectDelim(dec, '['); err != nil {
			return fmt.Errorf("invalid components array: %w", err)
		}
		for dec.More() {
			var c types.SBOMComponent
			if err := dec.Decode(&c); err != nil {
				return err
			}
			if err := cb(c); err != nil {
				return err
			}
		}
		// Consume closing ']'
		if _, err := dec.Token(); err != nil {
			return err
		}
	}
	// Consume '}' of the root object
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// ReadLibraries returns the `library` components of the SBOM at path.
// See: https://cyclonedx.org/docs/1.4/json/#components_items_type
func ReadLibraries(path string) ([]types.SBOMComponent, error) {
	var libs []types.SBOMComponent
	err := StreamComponents(path, func(c types.SBOMComponent) error {
		if strings.EqualFold(c.Type, "library") {
			libs = append(libs, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return libs, nil
}
