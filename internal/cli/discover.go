package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sufield/provenance/internal/config"
	"github.com/sufield/provenance/internal/discovery"
	"github.com/sufield/provenance/internal/emit"
)

func newDiscoverCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Capture build facts and emit them for the compiler",
		Long: `Capture build facts and emit them for the compiler.

Reads the package version (required), queries git for the commit, branch and dirty
state (optional), and asks the go command for the target platform and compiler
version. The facts are printed as linker flags by default.

A missing or malformed package version exits non-zero so the surrounding build stops.
Version control problems never fail the command; the facts simply omit them.`,
		Example: `  # Linker flags for go build (default)
  go build -ldflags "$(provenance discover)" ./cmd/app

  # Generated source, from a go:generate directive
  //go:generate provenance discover --emit go --output provenance_gen.go --package main

  # Inspect what would be embedded
  provenance discover --emit json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiscover(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.String("emit", "ldflags", "Output format (ldflags|go|json|env)")
	f.StringP("output", "o", "", "Write to a file instead of stdout")
	f.String("package", "main", "Package clause for --emit go")
	f.String("import-path", "", "Package the linker flags target (default: the provenance package)")
	f.String("package-version", "", "Package version, overriding the version file")
	f.Bool("vcs", true, "Query version control")
	f.Bool("stamp-id", false, "Stamp a random build ID")
	f.StringSlice("tags", nil, "Build tags the binary is built with, recorded in the build flags")

	opts.bind(cmd, config.KeyEmitFormat, "emit")
	opts.bind(cmd, config.KeyEmitOutput, "output")
	opts.bind(cmd, config.KeyEmitPackage, "package")
	opts.bind(cmd, config.KeyEmitImportPath, "import-path")
	opts.bind(cmd, config.KeyPackageVersion, "package-version")
	opts.bind(cmd, config.KeyVCSEnabled, "vcs")
	opts.bind(cmd, config.KeyBuildStampID, "stamp-id")
	opts.bind(cmd, config.KeyBuildTags, "tags")

	return cmd
}

func runDiscover(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Log)
	if used := config.ConfigFileUsed(opts.viper); used != "" {
		logger.Debug("Loaded configuration", "file", used)
	}

	format, err := emit.ParseFormat(cfg.Emit.Format)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}

	d := discovery.New(cfg.Discovery(opts.dir), discovery.WithLogger(logger))
	facts, err := d.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDiscovery, err)
	}

	var buf bytes.Buffer
	err = emit.Write(&buf, format, facts, emit.Options{
		ImportPath: cfg.Emit.ImportPath,
		Package:    cfg.Emit.Package,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}

	if cfg.Emit.Output == "" {
		if _, err := cmd.OutOrStdout().Write(buf.Bytes()); err != nil {
			return fmt.Errorf("%w: failed to write build facts: %v", ErrInternal, err)
		}
		return nil
	}

	if err := os.WriteFile(cfg.Emit.Output, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("%w: failed to write %s: %v", ErrInternal, cfg.Emit.Output, err)
	}
	logger.Info("Wrote build facts", "path", cfg.Emit.Output, "format", string(format))
	return nil
}
