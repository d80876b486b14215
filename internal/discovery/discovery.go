// Package discovery gathers build environment facts once per build.
//
// Only the package version is mandatory. Version control and module queries are best
// effort: any failure is logged and the fact is left absent. Toolchain facts fall back
// to the generator's own runtime when `go env` is unavailable.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sufield/provenance/internal/validation"
	"github.com/sufield/provenance/pkg/provenance"
)

var (
	// ErrPackageVersion indicates the package version is missing or not a semantic version.
	ErrPackageVersion = errors.New("package version unavailable")

	// ErrInvalidFacts indicates the discovered facts failed validation.
	ErrInvalidFacts = errors.New("invalid build facts")
)

// DefaultVCSTimeout bounds each version control query.
const DefaultVCSTimeout = 5 * time.Second

// Config controls a discovery run.
type Config struct {
	// Dir is the project directory. Empty means the current directory.
	Dir string
	// PackageVersion, when set, is used verbatim instead of reading VersionFile.
	PackageVersion string
	// VersionFile is read when PackageVersion is empty. Relative paths resolve against Dir.
	VersionFile string

	VCSEnabled bool
	GitPath    string
	VCSTimeout time.Duration
	// UntrackedDirty makes untracked files count towards the dirty flag.
	UntrackedDirty bool

	GoPath string

	// Tags, Race and Trimpath mirror the go build flags of the build being described.
	// They are recorded in the build flags fact together with go env settings.
	Tags     []string
	Race     bool
	Trimpath bool

	// ModulePath overrides the `go list -m` lookup.
	ModulePath   string
	StampBuildID bool
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		VersionFile: "VERSION",
		VCSEnabled:  true,
		GitPath:     "git",
		VCSTimeout:  DefaultVCSTimeout,
		GoPath:      "go",
	}
}

// Option customizes a Discoverer.
type Option func(*Discoverer)

// WithLogger sets the logger. A nil logger means slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Discoverer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithRunner replaces the command runner.
func WithRunner(runner Runner) Option {
	return func(d *Discoverer) {
		if runner != nil {
			d.runner = runner
		}
	}
}

// Discoverer runs the discovery step.
type Discoverer struct {
	cfg    Config
	logger *slog.Logger
	runner Runner
}

// New creates a Discoverer. Zero values in cfg are replaced with DefaultConfig values,
// except VCSEnabled and the boolean switches.
func New(cfg Config, opts ...Option) *Discoverer {
	defaults := DefaultConfig()
	if cfg.VersionFile == "" {
		cfg.VersionFile = defaults.VersionFile
	}
	if cfg.GitPath == "" {
		cfg.GitPath = defaults.GitPath
	}
	if cfg.GoPath == "" {
		cfg.GoPath = defaults.GoPath
	}
	if cfg.VCSTimeout <= 0 {
		cfg.VCSTimeout = defaults.VCSTimeout
	}

	d := &Discoverer{
		cfg:    cfg,
		logger: slog.Default(),
		runner: ExecRunner{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run gathers the facts. It fails only when the package version cannot be determined.
func (d *Discoverer) Run(ctx context.Context) (provenance.Facts, error) {
	version, err := d.packageVersion()
	if err != nil {
		return provenance.Facts{}, err
	}

	facts := provenance.Facts{PackageVersion: version}

	if d.cfg.VCSEnabled {
		vcs, err := d.queryVCS(ctx)
		if err != nil {
			d.logger.Debug("Version control information unavailable", "dir", d.cfg.Dir, "error", err)
		} else {
			facts.VCS = vcs
		}
	}

	facts.OS, facts.Arch, facts.CompilerVersion = d.toolchain(ctx)
	facts.BuildFlags = d.buildFlags(ctx, facts.Arch)
	facts.ModulePath = d.modulePath(ctx)

	if d.cfg.StampBuildID {
		facts.BuildID = uuid.NewString()
	}

	if err := facts.Validate(); err != nil {
		return provenance.Facts{}, fmt.Errorf("%w: %v", ErrInvalidFacts, err)
	}

	d.logger.Info("Discovered build facts",
		"version", facts.PackageVersion,
		"vcs", facts.VCS != nil,
		"os", facts.OS,
		"arch", facts.Arch,
		"compiler", facts.CompilerVersion)
	return facts, nil
}

func (d *Discoverer) packageVersion() (string, error) {
	version := strings.TrimSpace(d.cfg.PackageVersion)
	source := "configuration"

	if version == "" {
		path := d.cfg.VersionFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(d.cfg.Dir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("%w: no version configured and %v", ErrPackageVersion, err)
		}
		version = strings.TrimSpace(string(data))
		source = path
	}

	if version == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrPackageVersion, source)
	}
	if !validation.IsSemVer(version) {
		return "", fmt.Errorf("%w: %q from %s is not a semantic version", ErrPackageVersion, version, source)
	}
	return version, nil
}

func (d *Discoverer) queryVCS(ctx context.Context) (*provenance.VCS, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.VCSTimeout)
	defer cancel()

	commit, err := d.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return nil, err
	}
	if commit == "" {
		return nil, errors.New("git rev-parse HEAD returned no commit")
	}

	statusArgs := []string{"status", "--porcelain"}
	if !d.cfg.UntrackedDirty {
		statusArgs = append(statusArgs, "--untracked-files=no")
	}
	status, err := d.git(ctx, statusArgs...)
	if err != nil {
		return nil, err
	}

	vcs := &provenance.VCS{
		Commit: commit,
		Dirty:  status != "",
	}

	branch, err := d.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	switch {
	case err != nil:
		d.logger.Debug("Branch unavailable", "error", err)
	case branch == "HEAD":
		d.logger.Debug("Detached HEAD, leaving branch empty", "commit", commit)
	default:
		vcs.Branch = branch
	}

	if describe, err := d.git(ctx, "describe", "--tags", "--always"); err == nil {
		vcs.Describe = describe
	}

	if err := validation.Default().Validate(vcs); err != nil {
		return nil, fmt.Errorf("unexpected version control output: %w", err)
	}
	return vcs, nil
}

func (d *Discoverer) git(ctx context.Context, args ...string) (string, error) {
	return d.runner.Run(ctx, d.cfg.Dir, d.cfg.GitPath, args...)
}

// toolchain reports the target platform and compiler. `go env` honours GOOS/GOARCH
// overrides, so cross-compiles describe the target rather than the build host.
func (d *Discoverer) toolchain(ctx context.Context) (goos, goarch, goversion string) {
	out, err := d.runner.Run(ctx, d.cfg.Dir, d.cfg.GoPath, "env", "GOOS", "GOARCH", "GOVERSION")
	if err == nil {
		lines := strings.Split(out, "\n")
		if len(lines) == 3 {
			goos = strings.TrimSpace(lines[0])
			goarch = strings.TrimSpace(lines[1])
			goversion = strings.TrimSpace(lines[2])
		}
	} else {
		d.logger.Debug("go env unavailable, using generator runtime", "error", err)
	}

	if goos == "" {
		goos = runtime.GOOS
	}
	if goarch == "" {
		goarch = runtime.GOARCH
	}
	if goversion == "" {
		goversion = runtime.Version()
	}
	return goos, goarch, goversion
}

// buildFlags combines the configured go build flags with the cgo and instruction set
// settings `go env` reports for goarch. Missing settings are left out.
func (d *Discoverer) buildFlags(ctx context.Context, goarch string) string {
	var settings []debug.BuildSetting
	if d.cfg.Race {
		settings = append(settings, debug.BuildSetting{Key: "-race", Value: "true"})
	}
	if len(d.cfg.Tags) > 0 {
		settings = append(settings, debug.BuildSetting{Key: "-tags", Value: strings.Join(d.cfg.Tags, ",")})
	}
	if d.cfg.Trimpath {
		settings = append(settings, debug.BuildSetting{Key: "-trimpath", Value: "true"})
	}

	keys := []string{"CGO_ENABLED"}
	if level := provenance.ArchLevelKey(goarch); level != "" {
		keys = append(keys, level)
	}
	out, err := d.runner.Run(ctx, d.cfg.Dir, d.cfg.GoPath, append([]string{"env"}, keys...)...)
	if err != nil {
		d.logger.Debug("Build settings unavailable", "error", err)
	} else if lines := strings.Split(out, "\n"); len(lines) == len(keys) {
		for n, key := range keys {
			settings = append(settings, debug.BuildSetting{Key: key, Value: strings.TrimSpace(lines[n])})
		}
	}

	return provenance.FormatBuildFlags(settings)
}

func (d *Discoverer) modulePath(ctx context.Context) string {
	if d.cfg.ModulePath != "" {
		return d.cfg.ModulePath
	}
	out, err := d.runner.Run(ctx, d.cfg.Dir, d.cfg.GoPath, "list", "-m")
	if err != nil {
		d.logger.Debug("Module path unavailable", "error", err)
		return ""
	}
	// Workspaces list several main modules; there is no single answer.
	if strings.Contains(out, "\n") {
		return ""
	}
	return out
}
