// provenance captures build environment facts and hands them to the Go compiler.
//
// It is meant to run as a build step, either through command substitution:
//
//	go build -ldflags "$(provenance discover)" ./cmd/app
//
// or from a go:generate directive:
//
//	//go:generate provenance discover --emit go --output provenance_gen.go
//
// A non-zero exit status means the build facts could not be gathered and the
// build should stop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sufield/provenance/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.ExitCode(err))
	}
}
