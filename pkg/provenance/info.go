package provenance

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Unknown is rendered in place of absent commit and branch values.
const Unknown = "unknown"

// Info is an immutable snapshot of the build environment.
// The zero value is usable but reports no facts; construct it with New.
type Info struct {
	facts Facts
}

// New creates an Info from facts. It never fails: facts are validated when they are
// discovered, not when they are read back.
func New(facts Facts) Info {
	return Info{facts: facts.clone()}
}

// PackageVersion returns the semantic version of the project.
func (i Info) PackageVersion() string { return i.facts.PackageVersion }

// VCS returns a copy of the version control facts and whether they were captured.
func (i Info) VCS() (VCS, bool) {
	if i.facts.VCS == nil {
		return VCS{}, false
	}
	return *i.facts.VCS, true
}

// OS returns the target operating system.
func (i Info) OS() string { return i.facts.OS }

// Arch returns the target CPU architecture.
func (i Info) Arch() string { return i.facts.Arch }

// CompilerVersion returns the toolchain version used for the build.
func (i Info) CompilerVersion() string { return i.facts.CompilerVersion }

// BuildFlags returns the build configuration summary, or "" when unknown.
func (i Info) BuildFlags() string { return i.facts.BuildFlags }

// ModulePath returns the main module path, or "" when unknown.
func (i Info) ModulePath() string { return i.facts.ModulePath }

// BuildID returns the per-build identifier, or "" when none was stamped.
func (i Info) BuildID() string { return i.facts.BuildID }

// Facts returns a copy of the underlying facts.
func (i Info) Facts() Facts { return i.facts.clone() }

type field struct {
	key   string
	label string
	value string
}

// fields lists every known fact in display order.
func (i Info) fields() []field {
	f := i.facts
	commit, branch := Unknown, Unknown
	if f.VCS != nil {
		commit = f.VCS.Commit
		if f.VCS.Branch != "" {
			branch = f.VCS.Branch
		}
	}

	out := []field{
		{"version", "Version", f.PackageVersion},
		{"commit", "Commit", commit},
		{"branch", "Branch", branch},
	}
	if f.VCS != nil {
		out = append(out, field{"dirty", "Dirty", strconv.FormatBool(f.VCS.Dirty)})
		if f.VCS.Describe != "" {
			out = append(out, field{"describe", "Describe", f.VCS.Describe})
		}
	}
	out = append(out,
		field{"os", "OS", f.OS},
		field{"arch", "Arch", f.Arch},
		field{"compiler", "Compiler", f.CompilerVersion},
	)
	if f.BuildFlags != "" {
		out = append(out, field{"build_flags", "Build Flags", f.BuildFlags})
	}
	if f.ModulePath != "" {
		out = append(out, field{"module", "Module", f.ModulePath})
	}
	if f.BuildID != "" {
		out = append(out, field{"build_id", "Build ID", f.BuildID})
	}
	return out
}

// String renders one "Label: value" line per fact, suitable for a --version banner.
func (i Info) String() string {
	var b strings.Builder
	for n, fld := range i.fields() {
		if n > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(fld.label)
		b.WriteString(": ")
		b.WriteString(fld.value)
	}
	return b.String()
}

// Line renders the facts as "key=value" pairs separated by "; ".
func (i Info) Line() string {
	fields := i.fields()
	parts := make([]string, 0, len(fields))
	for _, fld := range fields {
		parts = append(parts, fld.key+"="+fld.value)
	}
	return strings.Join(parts, "; ")
}

// MarshalJSON encodes the facts using their snake_case JSON keys.
func (i Info) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.facts)
}
