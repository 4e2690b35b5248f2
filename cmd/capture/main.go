// File: cmd/capture/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/capture-cli/cmd"
	"github.com/xkilldash9x/capture-cli/internal/observability"
)

// Define function variables for dependency injection/mocking in tests.
var (
	// Allows mocking os.Exit in tests.
	osExit = os.Exit
	// Allows replacing the command in tests.
	execute = cmd.Execute
	stderr  io.Writer = os.Stderr
)

// main is the entry point of the application.
func main() {
	defer handlePanic()

	// SIGINT and SIGTERM cancel the context; the browser is still released.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	osExit(run(ctx))
}

// run executes the command and maps the outcome to an exit code. Every failure,
// including an interrupted run, exits with 1.
func run(ctx context.Context) int {
	if err := execute(ctx); err != nil {
		return 1
	}
	return 0
}

// handlePanic reports an unexpected panic on one line plus a stack trace and
// exits non-zero.
func handlePanic() {
	if r := recover(); r != nil {
		observability.Sync()
		fmt.Fprintf(stderr, "Error: panic: %v\n%s", r, debug.Stack())
		osExit(1)
	}
}
