package provenance

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// NewCollector returns a gauge named <namespace>_build_info that always reports 1 and
// carries the build facts as constant labels. Register it with any prometheus.Registerer.
func NewCollector(info Info, namespace string) prometheus.Collector {
	commit, branch, dirty := Unknown, Unknown, Unknown
	if vcs, ok := info.VCS(); ok {
		commit = vcs.Commit
		if vcs.Branch != "" {
			branch = vcs.Branch
		}
		dirty = strconv.FormatBool(vcs.Dirty)
	}

	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "A metric with a constant '1' value labeled by the build provenance of the binary.",
		ConstLabels: prometheus.Labels{
			"version":  info.PackageVersion(),
			"commit":   commit,
			"branch":   branch,
			"dirty":    dirty,
			"os":       info.OS(),
			"arch":     info.Arch(),
			"compiler": info.CompilerVersion(),
		},
	}, func() float64 { return 1 })
}
