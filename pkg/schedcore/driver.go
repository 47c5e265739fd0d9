package schedcore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fabricflow/schedcore/internal/cpengine"
)

// SolverDriver wraps the underlying CP-SAT engine: parameter control,
// parallel workers, time limits, warm hints, callbacks, and status
// classification (C7). It presents a single blocking Solve call; callers
// wanting concurrent solves instantiate independent drivers (§5).
type SolverDriver struct {
	cache *SolutionCache
	log   *zap.Logger
}

// NewSolverDriver builds a driver backed by the given cache (may be nil to
// disable warm-start hints) and logger (may be nil to discard logs).
func NewSolverDriver(cache *SolutionCache, log *zap.Logger) *SolverDriver {
	if log == nil {
		log = zap.NewNop()
	}
	return &SolverDriver{cache: cache, log: log}
}

// Solve builds the CP-SAT model for p, runs the two-phase objective
// pipeline, and returns a Solution. The engine's worker threads are
// acquired for the call's duration and released on every return path —
// normal, error, or ctx cancellation (§9 "Resource acquisition").
func (d *SolverDriver) Solve(ctx context.Context, p *Problem, epochWeekday int, hint *Solution) (*Solution, error) {
	start := time.Now()
	runID := uuid.New().String()
	log := d.log.With(zap.String("run_id", runID))

	exp, err := Expand(p)
	if err != nil {
		return nil, err
	}

	bm, err := BuildConstraints(p, exp, epochWeekday)
	if err != nil {
		return nil, err
	}

	if hint != nil {
		bm.ApplyHint(HintFromSolution(hint))
	}

	var fp Fingerprint
	if d.cache != nil {
		fp = ComputeFingerprint(p)
		for _, h := range d.cache.HintsFor(fp, exp, p.Params.RandomSeed) {
			bm.ApplyHint(h)
		}
	}

	makespan, phase1 := bm.BuildPhase1Objective()

	params := cpengine.Params{
		TimeLimit:     time.Duration(p.Params.TimeLimitSeconds) * time.Second,
		Workers:       int(p.Params.Workers),
		RandomSeed:    int64(p.Params.RandomSeed),
		Deterministic: p.Params.Deterministic,
	}

	resp1, err := cpengine.Solve(ctx, bm.Model, params, func(objective float64, wall time.Duration) {
		log.Info("improving solution", zap.Float64("objective", objective), zap.Duration("wall", wall))
	})
	if err != nil {
		return nil, err
	}

	switch resp1.Status {
	case cpengine.StatusInfeasible:
		return nil, &InfeasibleProblemError{Diagnostics: diagnosticsFrom(runID, bm, resp1)}
	case cpengine.StatusModelInvalid:
		return nil, NewModelBuildError("model", "engine-accepted model", nil)
	case cpengine.StatusUnknown:
		if ctx.Err() != nil {
			return nil, &CancelledError{Err: ctx.Err()}
		}
		return &Solution{Status: StatusUnknown, Diagnostics: diagnosticsFrom(runID, bm, resp1)}, nil
	}

	// Phase 2: bound phase-1 within (1+epsilon) and minimize cost, unless
	// there is no cost data to optimize.
	epsilon := p.Weights.Epsilon
	if bm.BuildPhase2Objective(phase1, resp1.ObjectiveValue, epsilon) {
		resp2, err := cpengine.Solve(ctx, bm.Model, params, func(objective float64, wall time.Duration) {
			log.Info("improving cost solution", zap.Float64("objective", objective), zap.Duration("wall", wall))
		})
		if err == nil && (resp2.Status == cpengine.StatusOptimal || resp2.Status == cpengine.StatusFeasibleWithinLimit) {
			resp1 = resp2
		}
	}

	sol, err := Extract(bm, resp1, makespan)
	if err != nil {
		return nil, err
	}
	sol.SolveWallMillis = time.Since(start).Milliseconds()
	sol.Diagnostics = diagnosticsFrom(runID, bm, resp1)
	sol.Diagnostics.WallMillis = sol.SolveWallMillis

	if d.cache != nil {
		d.cache.Put(fp, sol)
	}

	log.Info("solve complete",
		zap.String("status", string(sol.Status)),
		zap.Int("makespan", sol.Makespan),
		zap.Int64("wall_ms", sol.SolveWallMillis),
	)

	return sol, nil
}

func diagnosticsFrom(runID string, bm *BuiltModel, resp *cpengine.Response) Diagnostics {
	vars, intervals, constraints := bm.Model.Counts()
	return Diagnostics{
		RunID:       runID,
		Variables:   vars + intervals,
		Constraints: constraints,
		Conflicts:   resp.NumConflicts,
		Branches:    resp.NumBranches,
		WallMillis:  resp.WallTime.Milliseconds(),
	}
}

func classifyFinal(s cpengine.Status) Status {
	switch s {
	case cpengine.StatusOptimal:
		return StatusOptimal
	case cpengine.StatusFeasibleWithinLimit:
		return StatusFeasibleWithinLimit
	case cpengine.StatusInfeasible:
		return StatusInfeasible
	case cpengine.StatusModelInvalid:
		return StatusModelInvalid
	default:
		return StatusUnknown
	}
}
