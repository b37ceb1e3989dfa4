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
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/venslabs/depguard/cmd/depguard/version"
	"github.com/venslabs/depguard/pkg/api/types"
	"github.com/venslabs/depguard/pkg/envutil"
	"github.com/venslabs/depguard/pkg/errdefs"
	"github.com/venslabs/depguard/pkg/history"
	"github.com/venslabs/depguard/pkg/manifest"
	"github.com/venslabs/depguard/pkg/metrics"
	"github.com/venslabs/depguard/pkg/notify"
	"github.com/venslabs/depguard/pkg/osv"
	"github.com/venslabs/depguard/pkg/outputhandler"
	"github.com/venslabs/depguard/pkg/risk"
	"github.com/venslabs/depguard/pkg/riskconfig"
	"github.com/venslabs/depguard/pkg/scanner"
)

const (
	DefaultReportPath = "HtmlAndSbom/combined_report.html"
	DefaultSBOMPath   = "HtmlAndSbom/SBOM/cyclonedx-sbom.json"
	DefaultTimeout    = 5 * time.Minute
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [DIR]",
		Short: "Scan a project's dependencies for known vulnerabilities",
		Long: `Scan the first dependency manifest found in DIR (default ".") against the OSV database.

Manifests are looked up in this order: test-requirements.txt, requirements.txt,
package-lock.json, pom.xml. Findings are scored from their CVSS v3 vector and
those at or above the threshold are reported, archived and notified.`,
		Example:               Example(),
		Args:                  cobra.MaximumNArgs(1),
		RunE:                  action,
		DisableFlagsInUseLine: true,
	}

	flags := cmd.Flags()
	flags.String("config-file", riskconfig.DefaultPath, "Path to the config file (two-line text, or .yaml)")
	flags.Float64("threshold", risk.DefaultThreshold, "Minimum CVSS v3 score to report [$DEPGUARD_THRESHOLD]")
	flags.String("webhook", notify.Disabled, `Discord or Slack webhook URL, or "none" [$DEPGUARD_WEBHOOK]`)
	flags.String("report", DefaultReportPath, "Path of the HTML report")
	flags.Int("history-limit", history.DefaultLimit, "Number of archived reports to keep [$DEPGUARD_HISTORY_LIMIT]")
	flags.String("sbom-output", envutil.String("SBOM_OUTPUT", DefaultSBOMPath), "Path of the CycloneDX SBOM, empty to skip [$SBOM_OUTPUT]")
	flags.String("output-format", "table", "Summary format on stdout ([table json])")
	flags.Int("concurrency", scanner.DefaultConcurrency, "Maximum number of concurrent OSV queries")
	flags.Duration("timeout", DefaultTimeout, "Timeout for the whole scan")
	flags.Int("max-chunk-bytes", notify.DefaultMaxChunkBytes, "Maximum size of a notification message in bytes")
	flags.String("osv-url", osv.DefaultURL, "OSV query endpoint")
	flags.String("metrics-file", "", "Write Prometheus metrics to this file (textfile collector format)")
	flags.Int("exit-code", 0, "Exit code when vulnerabilities at or above the threshold are found")

	return cmd
}

func Example() string {
	return "depguard scan --threshold 7 --webhook https://discord.com/api/webhooks/... ./myproject"
}

// loadConfig applies, from lowest to highest precedence: defaults, config
// file, environment, CLI flags.
func loadConfig(flags *pflag.FlagSet) (*riskconfig.Config, error) {
	configPath, err := flags.GetString("config-file")
	if err != nil {
		return nil, err
	}
	cfg, err := riskconfig.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %q: %w", configPath, err)
	}
	cfg.ApplyEnv()
	if flags.Changed("threshold") {
		cfg.Threshold, _ = flags.GetFloat64("threshold")
	}
	if flags.Changed("webhook") {
		cfg.Webhook, _ = flags.GetString("webhook")
	}
	if flags.Changed("history-limit") {
		cfg.HistoryLimit, _ = flags.GetInt("history-limit")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func action(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()
	out := cmd.OutOrStdout()

	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	// Fail fast on a bad configuration, before any network traffic.
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	slog.DebugContext(ctx, "Config loaded", "threshold", cfg.Threshold, "notifications", cfg.NotificationsEnabled(), "history_limit", cfg.HistoryLimit)

	outputFormat, err := flags.GetString("output-format")
	if err != nil {
		return err
	}
	switch outputFormat {
	case "table", "json":
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}

	pkgs, manifestPath, err := manifest.Extract(ctx, dir)
	if err != nil {
		return fmt.Errorf("failed to read dependencies: %w", err)
	}
	if len(pkgs) == 0 {
		fmt.Fprintln(out, "No dependencies found to scan.")
		return nil
	}
	slog.InfoContext(ctx, "Manifest loaded", "path", manifestPath, "packages", len(pkgs))

	timeout, err := flags.GetDuration("timeout")
	if err != nil {
		return err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	m := metrics.New()
	var o scanner.Opts
	o.Threshold = cfg.Threshold
	o.Metrics = m
	osvURL, err := flags.GetString("osv-url")
	if err != nil {
		return err
	}
	o.Querier = osv.NewClient(osvURL)
	o.Concurrency, err = flags.GetInt("concurrency")
	if err != nil {
		return err
	}
	s, err := scanner.New(o)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Scanning %d packages from %s...\n", len(pkgs), manifestPath)
	results, err := s.Scan(ctx, pkgs)
	if err != nil {
		return fmt.Errorf("scan aborted: %w", err)
	}

	totals := risk.Summarize(results)
	fmt.Fprintf(out, "Found %d vulnerabilities (CVSS ≥ %.1f) in %d of %d packages.\n",
		totals.Vulnerabilities, cfg.Threshold, totals.Affected, totals.Packages)

	meta := outputhandler.Meta{
		Manifest:    manifestPath,
		Threshold:   cfg.Threshold,
		GeneratedAt: time.Now(),
		ToolVersion: version.GetVersion(),
	}

	var summary outputhandler.OutputHandler
	if outputFormat == "json" {
		summary = outputhandler.NewJSONOutputHandler(out, meta)
	} else {
		summary = outputhandler.NewTableOutputHandler(out)
	}
	if err := writeOutput(summary, results); err != nil {
		slog.ErrorContext(ctx, "Failed to print the summary", "error", err)
	}

	var fatal error
	if err := writeSBOM(ctx, flags, pkgs, results, meta); err != nil {
		slog.ErrorContext(ctx, "Failed to write the SBOM", "error", err)
	}
	if err := writeReport(ctx, flags, cfg, m, results, meta); err != nil {
		slog.ErrorContext(ctx, "Failed to write the report", "error", err)
		if errdefs.IsFatal(err) {
			fatal = err
		}
	} else {
		reportPath, _ := flags.GetString("report")
		fmt.Fprintf(out, "Saved %s\n", reportPath)
	}

	if err := sendNotifications(ctx, flags, cfg, m, results); err != nil {
		slog.ErrorContext(ctx, "Some notifications were not delivered", "error", err)
	}

	if metricsFile, _ := flags.GetString("metrics-file"); metricsFile != "" {
		if err := m.WriteTextfile(metricsFile); err != nil {
			slog.ErrorContext(ctx, "Failed to write metrics", "path", metricsFile, "error", err)
		}
	}

	if fatal != nil {
		return fatal
	}
	if exitCode, _ := flags.GetInt("exit-code"); exitCode != 0 && totals.Vulnerabilities > 0 {
		return &errdefs.ExitError{
			Code: exitCode,
			Err:  fmt.Errorf("%d vulnerabilities at or above CVSS %.1f", totals.Vulnerabilities, cfg.Threshold),
		}
	}
	return nil
}

func writeOutput(h outputhandler.OutputHandler, results []types.PackageResult) error {
	if err := h.HandleResults(results); err != nil {
		_ = h.Close()
		return err
	}
	return h.Close()
}

func writeSBOM(ctx context.Context, flags *pflag.FlagSet, pkgs []types.PackageRecord, results []types.PackageResult, meta outputhandler.Meta) error {
	path, err := flags.GetString("sbom-output")
	if err != nil || path == "" {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	outputW, err := os.Create(path)
	if err != nil {
		return err
	}
	defer outputW.Close() //nolint:errcheck
	if err := writeOutput(outputhandler.NewCycloneDXOutputHandler(outputW, pkgs, meta), results); err != nil {
		return err
	}
	slog.InfoContext(ctx, "SBOM written", "path", path, "components", len(pkgs))
	return nil
}

func writeReport(ctx context.Context, flags *pflag.FlagSet, cfg *riskconfig.Config, m *metrics.Metrics, results []types.PackageResult, meta outputhandler.Meta) error {
	path, err := flags.GetString("report")
	if err != nil {
		return err
	}
	hm, err := history.New(cfg.HistoryLimit)
	if err != nil {
		return err
	}
	hm.OnPrune = m.ObservePruned
	return writeOutput(outputhandler.NewHTMLOutputHandler(ctx, path, hm, meta), results)
}

func sendNotifications(ctx context.Context, flags *pflag.FlagSet, cfg *riskconfig.Config, m *metrics.Metrics, results []types.PackageResult) error {
	lines := notify.AlertLines(results, cfg.Threshold)
	if len(lines) == 0 {
		slog.DebugContext(ctx, "Nothing to notify")
		return nil
	}
	if !cfg.NotificationsEnabled() {
		slog.InfoContext(ctx, "No webhook configured; skipping notifications", "alerts", len(lines))
		return nil
	}
	transport, err := notify.NewTransport(cfg.Webhook)
	if err != nil {
		return err
	}
	maxBytes, err := flags.GetInt("max-chunk-bytes")
	if err != nil {
		return err
	}
	chunks, err := notify.Batcher{Header: notify.Header(cfg.Threshold), MaxBytes: maxBytes}.Batch(lines)
	if err != nil {
		return err
	}
	n := &notify.Notifier{Transport: transport, Metrics: m}
	sent, err := n.Send(ctx, chunks)
	slog.InfoContext(ctx, "Notifications sent", "sent", sent, "chunks", len(chunks))
	return err
}
