package provenance

import (
	"fmt"

	"github.com/sufield/provenance/internal/validation"
)

// Facts is the raw set of build environment facts captured once by the discovery step.
type Facts struct {
	// PackageVersion is the semantic version of the enclosing project.
	PackageVersion string `json:"package_version" validate:"required,semver"`
	// VCS is nil when the project was not under version control at build time
	// or the version control tool was unavailable.
	VCS *VCS `json:"vcs,omitempty" validate:"omitempty"`
	// OS is the operating system the binary was built for (GOOS).
	OS string `json:"os" validate:"required"`
	// Arch is the CPU architecture the binary was built for (GOARCH).
	Arch string `json:"arch" validate:"required"`
	// CompilerVersion is the toolchain version used for the build, e.g. go1.24.1.
	CompilerVersion string `json:"compiler_version" validate:"required"`
	// BuildFlags summarises the build configuration, e.g. "-tags=netgo CGO_ENABLED=0 GOAMD64=v3".
	// See FormatBuildFlags.
	BuildFlags string `json:"build_flags,omitempty"`
	// ModulePath is the main module path, when known.
	ModulePath string `json:"module_path,omitempty"`
	// BuildID is a random identifier stamped per discovery run, when enabled.
	BuildID string `json:"build_id,omitempty" validate:"omitempty,uuid"`
}

// VCS describes the version control state of the working tree at build time.
type VCS struct {
	Commit string `json:"commit" validate:"required,hexadecimal"`
	// Branch is empty for a detached HEAD.
	Branch   string `json:"branch,omitempty"`
	Dirty    bool   `json:"dirty"`
	Describe string `json:"describe,omitempty"`
}

// Validate checks the guarantees the discovery step makes about a fact set.
func (f Facts) Validate() error {
	if err := validation.Default().Validate(f); err != nil {
		return fmt.Errorf("invalid build facts: %w", err)
	}
	return nil
}

func (f Facts) clone() Facts {
	if f.VCS != nil {
		vcs := *f.VCS
		f.VCS = &vcs
	}
	return f
}
