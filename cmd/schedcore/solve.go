package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fabricflow/schedcore/pkg/schedcore"
)

// exitCode is set by runSolve for solve outcomes (errors from the driver,
// and the Unknown status, which is not itself an error) and read back by
// main after Execute returns.
var exitCode int

func newSolveCmd() *cobra.Command {
	var (
		problemPath   string
		outPath       string
		timeLimit     uint32
		workers       uint8
		seed          uint64
		deterministic bool
		hintFrom      string
	)

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve a scheduling problem and write the resulting Solution",
		Long: `Reads a Problem document (§6 wire shape), runs the two-phase CP-SAT
pipeline, and writes the resulting Solution document.

Examples:
  schedcore solve --problem problem.json --out solution.json
  schedcore solve --problem problem.json --out solution.json --deterministic --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(cmd.Context(), solveFlags{
				problemPath:   problemPath,
				outPath:       outPath,
				timeLimit:     timeLimit,
				workers:       workers,
				seed:          seed,
				deterministic: deterministic,
				hintFrom:      hintFrom,
			})
		},
	}

	cmd.Flags().StringVar(&problemPath, "problem", "", "path to the Problem input document (required)")
	cmd.Flags().StringVar(&outPath, "out", "", "path to write the Solution output document (required)")
	cmd.Flags().Uint32Var(&timeLimit, "time-limit", 0, "solve time limit in seconds (0: use the document's own value)")
	cmd.Flags().Uint8Var(&workers, "workers", 0, "search worker count (0: use the document's own value)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed override (0: use the document's own value)")
	cmd.Flags().BoolVar(&deterministic, "deterministic", false, "force workers=1 for a reproducible solve")
	cmd.Flags().StringVar(&hintFrom, "hint-from", "", "path to a previously-written Solution document to warm-start from")
	cmd.MarkFlagRequired("problem")
	cmd.MarkFlagRequired("out")

	return cmd
}

type solveFlags struct {
	problemPath   string
	outPath       string
	timeLimit     uint32
	workers       uint8
	seed          uint64
	deterministic bool
	hintFrom      string
}

func runSolve(ctx context.Context, f solveFlags) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("schedcore: init logger: %w", err)
	}
	defer logger.Sync()

	problemFile, err := os.Open(f.problemPath)
	if err != nil {
		return fmt.Errorf("schedcore: open problem file: %w", err)
	}
	defer problemFile.Close()

	problem, epochWeekday, err := schedcore.LoadProblem(problemFile)
	if err != nil {
		return err
	}

	if f.timeLimit > 0 {
		problem.Params.TimeLimitSeconds = f.timeLimit
	}
	if f.workers > 0 {
		problem.Params.Workers = f.workers
	}
	if f.seed > 0 {
		problem.Params.RandomSeed = f.seed
	}
	if f.deterministic {
		problem.Params.Deterministic = true
	}

	var hint *schedcore.Solution
	if f.hintFrom != "" {
		hintFile, err := os.Open(f.hintFrom)
		if err != nil {
			return fmt.Errorf("schedcore: open hint file: %w", err)
		}
		defer hintFile.Close()
		hint, err = schedcore.LoadHintSolution(hintFile)
		if err != nil {
			return err
		}
	}

	cache := schedcore.NewSolutionCache(100)
	driver := schedcore.NewSolverDriver(cache, logger)

	sol, err := driver.Solve(ctx, problem, epochWeekday, hint)
	if err != nil {
		var infeasible *schedcore.InfeasibleProblemError
		var modelInvalid *schedcore.ModelBuildError
		var cancelled *schedcore.CancelledError
		switch {
		case errors.As(err, &infeasible):
			exitCode = 2
		case errors.As(err, &modelInvalid):
			exitCode = 3
		case errors.As(err, &cancelled):
			exitCode = 4
		default:
			exitCode = 4
		}
		return err
	}

	if sol.Status == schedcore.StatusUnknown {
		exitCode = 4
	}

	outFile, err := os.Create(f.outPath)
	if err != nil {
		return fmt.Errorf("schedcore: create output file: %w", err)
	}
	defer outFile.Close()

	return schedcore.WriteSolution(outFile, sol)
}
