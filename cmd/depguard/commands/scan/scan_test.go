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

package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venslabs/depguard/pkg/errdefs"
)

const criticalVector = "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H"

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DEPGUARD_THRESHOLD", "DEPGUARD_WEBHOOK", "DEPGUARD_HISTORY_LIMIT", "MIN_CVSS", "DISCORD_WEBHOOK"} {
		t.Setenv(k, "")
	}
}

func newOSVServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var q struct {
			Package struct {
				Name string `json:"name"`
			} `json:"package"`
		}
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if q.Package.Name != "requests" {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		_, _ = w.Write([]byte(`{"vulns":[{"id":"PYSEC-2015-17","details":"Session fixation","severity":[{"type":"CVSS_V3","score":"` + criticalVector + `"}]}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeProject(t *testing.T, requirements string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte(requirements), 0o644))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := New()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestScan_EndToEnd(t *testing.T) {
	clearEnv(t)
	var calls atomic.Int32
	osvSrv := newOSVServer(t, &calls)

	var alerts []string
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg struct {
			Content  string `json:"content"`
			Username string `json:"username"`
		}
		if err := json.NewDecoder(r.Body).Decode(&msg); err == nil {
			alerts = append(alerts, msg.Content)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	project := writeProject(t, "requests==2.6.0\nflask==2.0.0\n")
	outDir := t.TempDir()
	reportPath := filepath.Join(outDir, "report", "combined_report.html")
	sbomPath := filepath.Join(outDir, "sbom", "cyclonedx-sbom.json")
	metricsPath := filepath.Join(outDir, "depguard.prom")

	stdout, err := run(t,
		"--config-file", filepath.Join(outDir, "missing.txt"),
		"--webhook", hook.URL,
		"--osv-url", osvSrv.URL,
		"--report", reportPath,
		"--sbom-output", sbomPath,
		"--metrics-file", metricsPath,
		project,
	)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
	assert.Contains(t, stdout, "Found 1 vulnerabilities (CVSS ≥ 4.0) in 1 of 2 packages.")
	assert.Contains(t, stdout, "Scan Summary:")

	html, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "PYSEC-2015-17")

	sbom, err := os.ReadFile(sbomPath)
	require.NoError(t, err)
	assert.Contains(t, string(sbom), "pkg:pypi/requests@2.6.0")
	assert.Contains(t, string(sbom), "pkg:pypi/flask@2.0.0")

	require.Len(t, alerts, 1)
	assert.Equal(t, "🚨 High score vulnerabilities found (CVSS ≥ 4.0):\nrequests==2.6.0: PYSEC-2015-17 (CVSS 9.8)", alerts[0])

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "depguard_packages_scanned_total 2")

	// A second run archives the first report.
	_, err = run(t,
		"--config-file", filepath.Join(outDir, "missing.txt"),
		"--osv-url", osvSrv.URL,
		"--report", reportPath,
		"--sbom-output", "",
		project,
	)
	require.NoError(t, err)
	archived, err := os.ReadDir(filepath.Join(filepath.Dir(reportPath), "History"))
	require.NoError(t, err)
	assert.Len(t, archived, 1)
	assert.Len(t, alerts, 1, "webhook defaults to none")
}

func TestScan_JSONOutputAndExitCode(t *testing.T) {
	clearEnv(t)
	var calls atomic.Int32
	osvSrv := newOSVServer(t, &calls)
	project := writeProject(t, "requests==2.6.0\n")
	outDir := t.TempDir()

	stdout, err := run(t,
		"--config-file", filepath.Join(outDir, "missing.txt"),
		"--osv-url", osvSrv.URL,
		"--report", filepath.Join(outDir, "r.html"),
		"--sbom-output", "",
		"--output-format", "json",
		"--exit-code", "2",
		project,
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 vulnerabilities at or above CVSS 4.0")
	assert.Equal(t, 2, errdefs.ExitCode(err))
	assert.Contains(t, stdout, `"risk_score"`)
}

func TestScan_ThresholdFromConfigFile(t *testing.T) {
	clearEnv(t)
	var calls atomic.Int32
	osvSrv := newOSVServer(t, &calls)
	project := writeProject(t, "requests==2.6.0\n")
	outDir := t.TempDir()
	configPath := filepath.Join(outDir, "config.txt")
	require.NoError(t, os.WriteFile(configPath, []byte("9.9\nnone\n"), 0o644))

	stdout, err := run(t,
		"--config-file", configPath,
		"--osv-url", osvSrv.URL,
		"--report", filepath.Join(outDir, "r.html"),
		"--sbom-output", "",
		"--exit-code", "2",
		project,
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Found 0 vulnerabilities (CVSS ≥ 9.9) in 0 of 1 packages.")
}

func TestScan_NoManifest(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	_, err := run(t, "--config-file", filepath.Join(dir, "missing.txt"), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrManifestNotFound)
}

func TestScan_NoDependencies(t *testing.T) {
	clearEnv(t)
	var calls atomic.Int32
	osvSrv := newOSVServer(t, &calls)
	project := writeProject(t, "# nothing pinned\nflask>=2\n")

	stdout, err := run(t, "--config-file", filepath.Join(project, "missing.txt"), "--osv-url", osvSrv.URL, project)
	require.NoError(t, err)
	assert.Contains(t, stdout, "No dependencies found to scan.")
	assert.Zero(t, calls.Load())
}

func TestScan_InvalidThreshold(t *testing.T) {
	clearEnv(t)
	var calls atomic.Int32
	osvSrv := newOSVServer(t, &calls)
	project := writeProject(t, "requests==2.6.0\n")

	_, err := run(t, "--config-file", filepath.Join(project, "missing.txt"), "--osv-url", osvSrv.URL, "--threshold", "11", project)
	require.Error(t, err)
	assert.Zero(t, calls.Load())
}

func TestScan_ReportDirFailureIsFatal(t *testing.T) {
	clearEnv(t)
	var calls atomic.Int32
	osvSrv := newOSVServer(t, &calls)
	project := writeProject(t, "requests==2.6.0\n")
	outDir := t.TempDir()
	blocker := filepath.Join(outDir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	stdout, err := run(t,
		"--config-file", filepath.Join(outDir, "missing.txt"),
		"--osv-url", osvSrv.URL,
		"--report", filepath.Join(blocker, "sub", "r.html"),
		"--sbom-output", "",
		project,
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrReportDir)
	assert.Contains(t, stdout, "Found 1 vulnerabilities")
}
