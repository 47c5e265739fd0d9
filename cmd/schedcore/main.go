// Package main is the schedcore reference CLI: a thin, minimal surface over
// pkg/schedcore (§6 "CLI surface (minimal, reference only)").
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fabricflow/schedcore/pkg/schedcore"
)

func main() {
	root := &cobra.Command{
		Use:           "schedcore",
		Short:         "Constraint-programming production scheduler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newSolveCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
	os.Exit(exitCode)
}

// exitCodeFor maps a returned error to the exit codes §6 specifies. A code
// already set by runSolve (infeasible, model-invalid, cancelled/unknown)
// takes precedence; otherwise an infeasible error maps to 2 and a model
// build error (e.g. from loading the problem) to 3, and anything else —
// including cobra's own flag/usage errors — is a usage error.
func exitCodeFor(err error) int {
	if exitCode != 0 {
		return exitCode
	}
	var infeasible *schedcore.InfeasibleProblemError
	var modelInvalid *schedcore.ModelBuildError
	switch {
	case errors.As(err, &infeasible):
		return 2
	case errors.As(err, &modelInvalid):
		return 3
	default:
		return 64
	}
}
