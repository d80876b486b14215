package provenance

import (
	"runtime/debug"
	"strings"
)

// buildFlagKeys lists the build settings that shape the produced binary, in display order.
// The keys match those the go command records in debug.BuildInfo.Settings.
var buildFlagKeys = []string{
	"-race",
	"-msan",
	"-asan",
	"-tags",
	"-trimpath",
	"CGO_ENABLED",
	"GO386",
	"GOAMD64",
	"GOARM",
	"GOARM64",
	"GOMIPS",
	"GOMIPS64",
	"GOPPC64",
	"GORISCV64",
	"GOWASM",
}

// archLevelKeys maps GOARCH to the environment variable selecting its instruction set level.
var archLevelKeys = map[string]string{
	"386":      "GO386",
	"amd64":    "GOAMD64",
	"arm":      "GOARM",
	"arm64":    "GOARM64",
	"mips":     "GOMIPS",
	"mipsle":   "GOMIPS",
	"mips64":   "GOMIPS64",
	"mips64le": "GOMIPS64",
	"ppc64":    "GOPPC64",
	"ppc64le":  "GOPPC64",
	"riscv64":  "GORISCV64",
	"wasm":     "GOWASM",
}

// ArchLevelKey returns the go env variable holding the instruction set level for goarch,
// or "" when the architecture has none.
func ArchLevelKey(goarch string) string {
	return archLevelKeys[goarch]
}

// FormatBuildFlags renders the settings that describe how a binary was built as
// space-separated key=value pairs in a fixed order. Unrelated and empty settings are
// ignored, so the full debug.BuildInfo.Settings list can be passed as is.
func FormatBuildFlags(settings []debug.BuildSetting) string {
	values := make(map[string]string, len(settings))
	for _, s := range settings {
		values[s.Key] = s.Value
	}

	var parts []string
	for _, key := range buildFlagKeys {
		if v := values[key]; v != "" {
			parts = append(parts, key+"="+v)
		}
	}
	return strings.Join(parts, " ")
}
