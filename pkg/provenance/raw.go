package provenance

import (
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"
)

// ImportPath is the import path linker flags must target, e.g.
//
//	go build -ldflags "-X github.com/sufield/provenance/pkg/provenance.version=1.2.3"
const ImportPath = "github.com/sufield/provenance/pkg/provenance"

// DevVersion is reported when no package version was injected or embedded.
const DevVersion = "0.0.0-dev"

// Injected at link time via -ldflags -X; see Facts.LinkerSymbols.
var (
	version    string
	commit     string
	branch     string
	dirty      string
	describe   string
	goos       string
	goarch     string
	compiler   string
	buildFlags string
	modulePath string
	buildID    string
)

// linked maps each linker symbol name to the variable it sets.
var linked = map[string]*string{
	"version":    &version,
	"commit":     &commit,
	"branch":     &branch,
	"dirty":      &dirty,
	"describe":   &describe,
	"goos":       &goos,
	"goarch":     &goarch,
	"compiler":   &compiler,
	"buildFlags": &buildFlags,
	"modulePath": &modulePath,
	"buildID":    &buildID,
}

// Symbol is a single package-level variable assignment for the Go linker.
type Symbol struct {
	Name  string
	Value string
}

// LinkerSymbols returns the -X assignments that make Raw report these facts.
// Empty values are skipped. Names are relative to ImportPath.
func (f Facts) LinkerSymbols() []Symbol {
	var out []Symbol
	add := func(name, value string) {
		if value == "" {
			return
		}
		if _, ok := linked[name]; !ok {
			panic("provenance: unknown linker symbol " + name)
		}
		out = append(out, Symbol{Name: name, Value: value})
	}

	add("version", f.PackageVersion)
	if f.VCS != nil {
		add("commit", f.VCS.Commit)
		add("branch", f.VCS.Branch)
		add("dirty", strconv.FormatBool(f.VCS.Dirty))
		add("describe", f.VCS.Describe)
	}
	add("goos", f.OS)
	add("goarch", f.Arch)
	add("compiler", f.CompilerVersion)
	add("buildFlags", f.BuildFlags)
	add("modulePath", f.ModulePath)
	add("buildID", f.BuildID)
	return out
}

// Raw returns the facts compiled into the running binary.
//
// Linker-injected values win. Anything left empty falls back to the build information
// the Go toolchain embeds in every module-aware binary, and finally to the runtime
// constants of the toolchain that linked the binary. Nothing here inspects the machine
// the binary is running on.
//
// Version control facts are the exception. Once discovery has linked its facts (the
// package version is always among them) its VCS verdict is final: an absent block stays
// absent rather than being filled from the go command's own vcs.* stamps, which follow a
// different dirty policy.
func Raw() Facts {
	return rawFrom(debug.ReadBuildInfo)
}

func rawFrom(read func() (*debug.BuildInfo, bool)) Facts {
	f := Facts{
		PackageVersion:  version,
		OS:              goos,
		Arch:            goarch,
		CompilerVersion: compiler,
		ModulePath:      modulePath,
		BuildFlags:      buildFlags,
		BuildID:         buildID,
	}
	discovered := version != ""
	if commit != "" {
		f.VCS = &VCS{
			Commit:   commit,
			Branch:   branch,
			Dirty:    dirty == "true",
			Describe: describe,
		}
	}

	if bi, ok := read(); ok && bi != nil {
		if f.PackageVersion == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			f.PackageVersion = bi.Main.Version
		}
		if f.ModulePath == "" {
			f.ModulePath = bi.Main.Path
		}
		if f.CompilerVersion == "" {
			f.CompilerVersion = bi.GoVersion
		}
		settings := make(map[string]string, len(bi.Settings))
		for _, s := range bi.Settings {
			settings[s.Key] = s.Value
		}
		if f.OS == "" {
			f.OS = settings["GOOS"]
		}
		if f.Arch == "" {
			f.Arch = settings["GOARCH"]
		}
		if f.BuildFlags == "" {
			f.BuildFlags = FormatBuildFlags(bi.Settings)
		}
		if !discovered && f.VCS == nil && settings["vcs.revision"] != "" {
			f.VCS = &VCS{
				Commit: settings["vcs.revision"],
				Dirty:  settings["vcs.modified"] == "true",
			}
		}
	}

	if f.PackageVersion == "" {
		f.PackageVersion = DevVersion
	}
	if f.OS == "" {
		f.OS = runtime.GOOS
	}
	if f.Arch == "" {
		f.Arch = runtime.GOARCH
	}
	if f.CompilerVersion == "" {
		f.CompilerVersion = runtime.Version()
	}
	return f
}

var current = sync.OnceValue(func() Info {
	return New(Raw())
})

// Current returns the Info of the running binary. It is computed once per process.
func Current() Info {
	return current()
}

var infoString = sync.OnceValue(func() string {
	return Current().String()
})

// Lazy returns a function producing the formatted Info for facts. The string is built on
// the first call and shared by every later caller, including concurrent ones. Generated
// source uses it to expose the same memoized banner String gives linker-stamped binaries.
func Lazy(facts Facts) func() string {
	info := New(facts)
	return sync.OnceValue(info.String)
}

// String returns the formatted Info of the running binary. The string is computed on
// first use and shared by every later caller, including concurrent ones.
func String() string {
	return infoString()
}
