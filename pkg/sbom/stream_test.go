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

package sbom

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venslabs/depguard/pkg/api/types"
)

const doc = `{
  "bomFormat": "CycloneDX",
  "specVersion": "1.4",
  "metadata": {"timestamp": "2025-07-27T14:30:00Z", "component": {"purl": "pkg:generic/app"}},
  "components": [
    {"bom-ref": "pkg:pypi/requests@2.6.0", "type": "library", "name": "requests", "version": "2.6.0", "purl": "pkg:pypi/requests@2.6.0"},
    {"type": "application", "name": "app"},
    {"type": "library", "group": "org.apache.logging.log4j", "name": "log4j-core", "version": "2.14.1", "purl": "pkg:maven/org.apache.logging.log4j/log4j-core@2.14.1"}
  ],
  "vulnerabilities": [{"id": "PYSEC-2015-17", "ratings": [{"score": 9.8}]}]
}`

func writeSBOM(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "cyclonedx-sbom.json")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestReadLibraries(t *testing.T) {
	libs, err := ReadLibraries(writeSBOM(t, doc))
	require.NoError(t, err)
	assert.Equal(t, []types.SBOMComponent{
		{Type: "library", Name: "requests", Version: "2.6.0", PURL: "pkg:pypi/requests@2.6.0"},
		{Type: "library", Group: "org.apache.logging.log4j", Name: "log4j-core", Version: "2.14.1", PURL: "pkg:maven/org.apache.logging.log4j/log4j-core@2.14.1"},
	}, libs)
}

func TestStreamComponents_StopsOnCallbackError(t *testing.T) {
	stop := errors.New("stop")
	n := 0
	err := StreamComponents(writeSBOM(t, doc), func(types.SBOMComponent) error {
		n++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, n)
}

func TestStreamComponents_Invalid(t *testing.T) {
	_, err := ReadLibraries(writeSBOM(t, `[]`))
	assert.Error(t, err)
	_, err = ReadLibraries(writeSBOM(t, `{"components": {}}`))
	assert.Error(t, err)
	_, err = ReadLibraries(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
