// Package provenance exposes the build environment of a Go binary: package version,
// version control state, target platform, compiler version and build flags.
//
// The facts are captured once at build time by `provenance discover` and handed to the
// compiled program through one of two bridges:
//
//	# linker flags
//	go build -ldflags "$(provenance discover)" ./cmd/app
//
//	# generated source
//	//go:generate provenance discover --emit go --output provenance_gen.go --package main
//
// At run time the facts never change. Raw returns the linker-injected facts, New wraps
// facts in an immutable Info, and String returns a formatted banner that is computed
// once per process:
//
//	fmt.Println(provenance.String())
//
//	// generated source variant; the file also declares BuildInfoString = Lazy(BuildFacts)
//	fmt.Println(BuildInfoString())
//	fmt.Println(provenance.New(BuildFacts).Line())
package provenance
