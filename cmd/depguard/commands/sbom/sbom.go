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
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/venslabs/depguard/cmd/depguard/version"
	"github.com/venslabs/depguard/pkg/envutil"
	"github.com/venslabs/depguard/pkg/manifest"
	"github.com/venslabs/depguard/pkg/outputhandler"
	sbomreader "github.com/venslabs/depguard/pkg/sbom"
)

const DefaultOutputPath = "HtmlAndSbom/SBOM/cyclonedx-sbom.json"

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "sbom [DIR]",
		Short:                 "Generate a CycloneDX SBOM from the project manifest",
		Long:                  "Generate a CycloneDX 1.4 JSON SBOM listing the pinned dependencies of the first manifest found in DIR (default \".\").",
		Example:               Example(),
		Args:                  cobra.MaximumNArgs(1),
		RunE:                  action,
		DisableFlagsInUseLine: true,
	}

	flags := cmd.Flags()
	flags.StringP("output", "o", envutil.String("SBOM_OUTPUT", DefaultOutputPath), "Output path [$SBOM_OUTPUT]")
	flags.Bool("force", false, "Overwrite an existing SBOM")

	return cmd
}

func Example() string {
	return "depguard sbom --output sbom.cdx.json ./myproject"
}

func action(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()
	out := cmd.OutOrStdout()

	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	outputPath, err := flags.GetString("output")
	if err != nil {
		return err
	}
	if outputPath == "" {
		return errors.New("an output path is required")
	}
	force, err := flags.GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		switch _, err := os.Stat(outputPath); {
		case err == nil:
			libs, err := sbomreader.ReadLibraries(outputPath)
			if err != nil {
				return fmt.Errorf("existing SBOM %q is unreadable, use --force to regenerate it: %w", outputPath, err)
			}
			slog.InfoContext(ctx, "SBOM already exists", "path", outputPath, "libraries", len(libs))
			fmt.Fprintf(out, "SBOM already exists at %s (%d libraries), use --force to regenerate it.\n", outputPath, len(libs))
			return nil
		case !errors.Is(err, fs.ErrNotExist):
			return err
		}
	}

	pkgs, manifestPath, err := manifest.Extract(ctx, dir)
	if err != nil {
		return fmt.Errorf("failed to read dependencies: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	outputW, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer outputW.Close() //nolint:errcheck

	h := outputhandler.NewCycloneDXOutputHandler(outputW, pkgs, outputhandler.Meta{
		Manifest:    manifestPath,
		GeneratedAt: time.Now(),
		ToolVersion: version.GetVersion(),
	})
	if err := h.Close(); err != nil {
		return err
	}
	slog.InfoContext(ctx, "SBOM written", "path", outputPath, "manifest", manifestPath, "components", len(pkgs))
	fmt.Fprintf(out, "Wrote %d components to %s\n", len(pkgs), outputPath)
	return outputW.Close()
}
