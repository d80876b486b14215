package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/sufield/provenance/pkg/provenance"
)

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the build provenance of the provenance binary itself.",
		Args:  cobra.NoArgs,
		RunE:  runVersion,
	}
	cmd.Flags().String("format", "text", "Output format (text|line|json|prometheus)")
	return cmd
}

func runVersion(cmd *cobra.Command, _ []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("%w: failed to get format flag: %v", ErrUsage, err)
	}

	out := cmd.OutOrStdout()
	info := provenance.Current()

	switch format {
	case "text":
		_, err = fmt.Fprintln(out, provenance.String())
	case "line":
		_, err = fmt.Fprintln(out, info.Line())
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		err = encoder.Encode(info)
	case "prometheus":
		err = writeBuildInfoMetric(out, info)
	default:
		return fmt.Errorf("%w: unsupported format %q, use 'text', 'line', 'json' or 'prometheus'", ErrUsage, format)
	}
	if err != nil {
		return fmt.Errorf("%w: failed to write version info: %v", ErrInternal, err)
	}
	return nil
}

// writeBuildInfoMetric renders the build_info gauge in the Prometheus text exposition format.
func writeBuildInfoMetric(w io.Writer, info provenance.Info) error {
	registry := prometheus.NewRegistry()
	if err := registry.Register(provenance.NewCollector(info, "provenance")); err != nil {
		return err
	}

	families, err := registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
