// Package emit renders discovered build facts in forms a Go build can consume.
package emit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"text/template"

	"golang.org/x/tools/imports"

	"github.com/sufield/provenance/internal/validation"
	"github.com/sufield/provenance/pkg/provenance"
)

// Format names an output form.
type Format string

// Supported formats.
const (
	FormatLDFlags Format = "ldflags"
	FormatGo      Format = "go"
	FormatJSON    Format = "json"
	FormatEnv     Format = "env"
)

// Formats lists every supported format.
var Formats = []Format{FormatLDFlags, FormatGo, FormatJSON, FormatEnv}

// ErrUnknownFormat is returned for format names outside Formats.
var ErrUnknownFormat = errors.New("unknown emit format")

// ParseFormat converts a format name into a Format.
func ParseFormat(name string) (Format, error) {
	for _, f := range Formats {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w %q (supported: ldflags, go, json, env)", ErrUnknownFormat, name)
}

// Options carries format-specific settings.
type Options struct {
	// ImportPath is the package the ldflags target. Defaults to provenance.ImportPath.
	ImportPath string
	// Package is the package clause of generated Go source. Defaults to "main".
	Package string
	// Logger receives notes about facts left out of the output. Defaults to slog.Default().
	Logger *slog.Logger
}

// Write renders facts in the given format to w.
func Write(w io.Writer, format Format, facts provenance.Facts, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		out []byte
		err error
	)

	switch format {
	case FormatLDFlags:
		out = []byte(ldflags(facts, opts.ImportPath, logger) + "\n")
	case FormatGo:
		out, err = GoSource(facts, opts.Package)
	case FormatJSON:
		out, err = JSON(facts)
	case FormatEnv:
		out = []byte(strings.Join(Env(facts), "\n") + "\n")
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return err
	}

	_, err = w.Write(out)
	return err
}

// LDFlags returns -X assignments for `go build -ldflags`.
//
// The go command splits the flag value itself: a quoted field runs to the next matching
// quote and nothing is unescaped. Each assignment is therefore wrapped in single quotes,
// or double quotes when the value contains a single quote. A value holding both cannot be
// passed through and is left out, so the binary reports it as absent.
func LDFlags(facts provenance.Facts, importPath string) string {
	return ldflags(facts, importPath, slog.Default())
}

func ldflags(facts provenance.Facts, importPath string, logger *slog.Logger) string {
	if importPath == "" {
		importPath = provenance.ImportPath
	}
	symbols := facts.LinkerSymbols()
	parts := make([]string, 0, len(symbols))
	for _, s := range symbols {
		arg, ok := quoteArg(importPath + "." + s.Name + "=" + s.Value)
		if !ok {
			logger.Debug("Leaving out fact that cannot be quoted for the linker", "symbol", s.Name, "value", s.Value)
			continue
		}
		parts = append(parts, "-X "+arg)
	}
	return strings.Join(parts, " ")
}

func quoteArg(s string) (string, bool) {
	switch {
	case !strings.Contains(s, "'"):
		return "'" + s + "'", true
	case !strings.Contains(s, `"`):
		return `"` + s + `"`, true
	default:
		return "", false
	}
}

// JSON returns the facts as indented JSON.
func JSON(facts provenance.Facts) ([]byte, error) {
	out, err := json.MarshalIndent(facts, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode build facts: %w", err)
	}
	return append(out, '\n'), nil
}

// Env returns PROVENANCE_* assignments for the facts that are present. Values that are
// not plain words are double-quoted in dotenv syntax.
func Env(facts provenance.Facts) []string {
	var out []string
	add := func(key, value string) {
		if value != "" {
			out = append(out, "PROVENANCE_"+key+"="+envValue(value))
		}
	}

	add("PACKAGE_VERSION", facts.PackageVersion)
	if facts.VCS != nil {
		add("VCS_COMMIT", facts.VCS.Commit)
		add("VCS_BRANCH", facts.VCS.Branch)
		add("VCS_DIRTY", strconv.FormatBool(facts.VCS.Dirty))
		add("VCS_DESCRIBE", facts.VCS.Describe)
	}
	add("OS", facts.OS)
	add("ARCH", facts.Arch)
	add("COMPILER_VERSION", facts.CompilerVersion)
	add("BUILD_FLAGS", facts.BuildFlags)
	add("MODULE_PATH", facts.ModulePath)
	add("BUILD_ID", facts.BuildID)
	return out
}

var envEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`)

func envValue(v string) string {
	plain := strings.IndexFunc(v, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return false
		case strings.ContainsRune("._-/:+,=@", r):
			return false
		}
		return true
	}) < 0
	if plain {
		return v
	}
	return `"` + envEscaper.Replace(v) + `"`
}

const goSourceTemplate = `// Code generated by provenance discover; DO NOT EDIT.

package {{.Package}}

import "{{.ImportPath}}"

// BuildFacts holds the build environment captured when this file was generated.
var BuildFacts = provenance.Facts{
	PackageVersion: {{quote .Facts.PackageVersion}},
{{- with .Facts.VCS}}
	VCS: &provenance.VCS{
		Commit: {{quote .Commit}},
		{{- if .Branch}}
		Branch: {{quote .Branch}},
		{{- end}}
		Dirty: {{.Dirty}},
		{{- if .Describe}}
		Describe: {{quote .Describe}},
		{{- end}}
	},
{{- end}}
	OS: {{quote .Facts.OS}},
	Arch: {{quote .Facts.Arch}},
	CompilerVersion: {{quote .Facts.CompilerVersion}},
{{- if .Facts.BuildFlags}}
	BuildFlags: {{quote .Facts.BuildFlags}},
{{- end}}
{{- if .Facts.ModulePath}}
	ModulePath: {{quote .Facts.ModulePath}},
{{- end}}
{{- if .Facts.BuildID}}
	BuildID: {{quote .Facts.BuildID}},
{{- end}}
}

// BuildInfoString returns BuildFacts formatted for display. It is computed on first use.
var BuildInfoString = provenance.Lazy(BuildFacts)
`

var goSource = template.Must(template.New("go").
	Funcs(template.FuncMap{"quote": strconv.Quote}).
	Parse(goSourceTemplate))

// GoSource returns a generated Go file declaring BuildFacts in package pkg.
func GoSource(facts provenance.Facts, pkg string) ([]byte, error) {
	if pkg == "" {
		pkg = "main"
	}
	if err := validation.Default().ValidateVar(pkg, "go_ident"); err != nil {
		return nil, fmt.Errorf("invalid package name %q: %w", pkg, err)
	}

	var buf bytes.Buffer
	err := goSource.Execute(&buf, struct {
		Package    string
		ImportPath string
		Facts      provenance.Facts
	}{pkg, provenance.ImportPath, facts})
	if err != nil {
		return nil, fmt.Errorf("failed to render generated source: %w", err)
	}

	out, err := imports.Process("provenance_gen.go", buf.Bytes(), &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to format generated source: %w", err)
	}
	return out, nil
}
