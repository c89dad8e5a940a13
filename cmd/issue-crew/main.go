// Package main is the entry point for the issue-crew CLI.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/runoshun/issue-crew/internal/app"
	"github.com/runoshun/issue-crew/internal/cli"
	"github.com/runoshun/issue-crew/internal/domain"
)

// version is set at build time using -ldflags.
var version = "dev"

// Exit codes.
const (
	exitError    = 1
	exitNotFound = 2
	exitInvalid  = 3
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	container := app.New()
	defer func() { _ = container.Close() }()

	root := cli.NewRootCommand(container, version)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return exitCode(err)
	}
	return 0
}

// exitCode maps error kinds onto process exit codes.
func exitCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrIssueNotFound):
		return exitNotFound
	case errors.Is(err, domain.ErrValidation):
		return exitInvalid
	default:
		return exitError
	}
}
