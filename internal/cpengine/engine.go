// Package cpengine is a thin adapter around the or-tools CP-SAT Go bindings
// (github.com/google/or-tools/ortools/sat/go/cpmodel). It is the single place
// in this repository that imports cpmodel directly: every other package talks
// to a Model/IntVar/IntervalVar defined here, never to cpmodel types.
//
// The adapter exists for two reasons. First, it keeps the rest of the solver
// free of proto plumbing — constraint builders read like the invariants they
// encode, not like CP-SAT API calls. Second, it is the seam spec.md's Solver
// Driver component names explicitly: "wrap the underlying CP-SAT-like
// engine: parameter control, parallel workers, time limits, warm hints,
// callbacks, status classification".
package cpengine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/or-tools/ortools/sat/go/cpmodel"
	cmpb "github.com/google/or-tools/ortools/sat/proto/cpmodel"
	satpb "github.com/google/or-tools/ortools/sat/proto/sat"
)

// IntVar, BoolVar and IntervalVar alias the cpmodel types directly: they are
// opaque handles and gain nothing from being wrapped.
type (
	IntVar      = cpmodel.IntVar
	BoolVar     = cpmodel.BoolVar
	IntervalVar = cpmodel.IntervalVar
	LinearExpr  = cpmodel.LinearExpr
)

// Model wraps a cpmodel.Builder and accumulates the counters the Solver
// Driver reports as solve diagnostics (variable/constraint counts).
type Model struct {
	b              *cpmodel.Builder
	numVars        int
	numIntervals   int
	numConstraints int
	hintVars       []IntVar
	hintValues     []int64
}

// NewModel creates an empty CP-SAT model builder.
func NewModel() *Model {
	return &Model{b: cpmodel.NewCpModelBuilder()}
}

// NewIntVar creates an integer variable ranging over [lo, hi].
func (m *Model) NewIntVar(lo, hi int64) IntVar {
	m.numVars++
	return m.b.NewIntVarFromDomain(cpmodel.NewDomain(lo, hi))
}

// NewBoolVar creates a fresh Boolean decision variable.
func (m *Model) NewBoolVar() BoolVar {
	m.numVars++
	return m.b.NewBoolVar()
}

// TrueVar returns the model's constant-true literal.
func (m *Model) TrueVar() BoolVar { return m.b.TrueVar() }

// NewOptionalInterval creates an interval [start, start+size) that is only
// part of the schedule when presence holds — the mechanism behind mode
// selection (C4/C5): one optional interval per (task, mode), exactly one
// presence literal true.
func (m *Model) NewOptionalInterval(start IntVar, size int64, end IntVar, presence BoolVar) IntervalVar {
	m.numIntervals++
	return m.b.NewOptionalIntervalVar(start, cpmodel.NewConstant(size), end, presence)
}

// NewInterval creates an always-present interval.
func (m *Model) NewInterval(start IntVar, size int64, end IntVar) IntervalVar {
	m.numIntervals++
	return m.b.NewIntervalVar(start, cpmodel.NewConstant(size), end)
}

// AddEquality posts lhs == rhs.
func (m *Model) AddEquality(lhs, rhs interface{}) { m.numConstraints++; m.b.AddEquality(lhs, rhs) }

// AddLessOrEqual posts lhs <= rhs and returns the constraint so callers can
// chain OnlyEnforceIf for conditional (reified) constraints.
func (m *Model) AddLessOrEqual(lhs, rhs interface{}) cpmodel.Constraint {
	m.numConstraints++
	return m.b.AddLessOrEqual(lhs, rhs)
}

// AddImplication posts a => b over Boolean literals.
func (m *Model) AddImplication(a, b BoolVar) {
	m.numConstraints++
	m.b.AddImplication(a, b)
}

// AddBoolOr posts a disjunction of Boolean literals.
func (m *Model) AddBoolOr(lits ...BoolVar) {
	m.numConstraints++
	m.b.AddBoolOr(lits...)
}

// AddExactlyOne posts that exactly one of lits holds — used for mode
// selection (C4 invariant 2: Σ presence = 1).
func (m *Model) AddExactlyOne(lits ...BoolVar) {
	m.numConstraints++
	m.b.AddExactlyOne(lits...)
}

// AddNoOverlap posts that the given intervals never overlap in time —
// the exclusive-machine case of C5's machine no-overlap/cumulative family.
func (m *Model) AddNoOverlap(intervals ...IntervalVar) {
	m.numConstraints++
	m.b.AddNoOverlap(intervals...)
}

// Cumulative accumulates (interval, demand) pairs for a single capacitated
// resource (a machine with capacity>1, a work cell, or the pooled operator
// resource) before being posted with Close.
type Cumulative struct {
	m        *Model
	capacity int64
	intervals []IntervalVar
	demands   []int64
}

// NewCumulative starts building a cumulative constraint of the given
// capacity. Call AddDemand per task, then Close once all demands are known.
func (m *Model) NewCumulative(capacity int64) *Cumulative {
	return &Cumulative{m: m, capacity: capacity}
}

// AddDemand registers that interval consumes demand units of the resource
// while active.
func (c *Cumulative) AddDemand(interval IntervalVar, demand int64) {
	c.intervals = append(c.intervals, interval)
	c.demands = append(c.demands, demand)
}

// Close posts the accumulated cumulative constraint to the model. A no-op
// (and not posted) when no interval was registered, or when a single
// interval's demand fits within capacity, since such a resource can never
// be exceeded.
func (c *Cumulative) Close() {
	if len(c.intervals) == 0 || (len(c.intervals) == 1 && c.demands[0] <= c.capacity) {
		return
	}
	c.m.numConstraints++
	cc := c.m.b.NewCumulative(cpmodel.NewConstant(c.capacity))
	for i, iv := range c.intervals {
		cc.AddDemand(iv, cpmodel.NewConstant(c.demands[i]))
	}
}

// NewLinearExpr starts an empty linear expression (objective or constraint
// left/right-hand side).
func (m *Model) NewLinearExpr() *LinearExpr { return cpmodel.NewLinearExpr() }

// Constant returns a linear expression holding just the value k, with no
// variable terms.
func (m *Model) Constant(k int64) *LinearExpr { return cpmodel.NewConstant(k) }

// Offset returns the linear expression v + k. This is how a fixed gap (a
// setup time, a run boundary) is added to a variable when posting a
// constraint, since LinearExpr composes via Add/AddTerm rather than a
// standalone constant-addition method.
func (m *Model) Offset(v IntVar, k int64) *LinearExpr {
	expr := cpmodel.NewConstant(k)
	expr.Add(v)
	return expr
}

// Minimize sets the model's objective.
func (m *Model) Minimize(expr *LinearExpr) { m.b.Minimize(expr) }

// AddLinearConstraint posts lo <= expr <= hi.
func (m *Model) AddLinearConstraint(expr *LinearExpr, lo, hi int64) {
	m.numConstraints++
	m.b.AddLinearConstraint(expr, cpmodel.NewDomain(lo, hi))
}

// Counts returns the variable/interval/constraint counters accumulated so
// far, used to populate Solution diagnostics (C8, §6).
func (m *Model) Counts() (vars, intervals, constraints int) {
	return m.numVars, m.numIntervals, m.numConstraints
}

// AddHint records a warm-start value for v, applied to the model the next
// time Solve is called. Hints never constrain the search — an infeasible
// hint is simply discarded by the engine — they only bias it toward a
// previously-known-good solution (the Solver Driver's cache-seeded restart,
// §5).
func (m *Model) AddHint(v IntVar, value int64) {
	m.hintVars = append(m.hintVars, v)
	m.hintValues = append(m.hintValues, value)
}

// Params controls the underlying engine the way spec.md's Solver Driver
// (C7) names: parallel workers, a wall-time limit, a random seed, and a
// determinism override.
type Params struct {
	TimeLimit     time.Duration
	Workers       int
	RandomSeed    int64
	Deterministic bool
}

// Status classifies a solve outcome into the five values §4.7 names.
type Status int

const (
	StatusUnknown Status = iota
	StatusOptimal
	StatusFeasibleWithinLimit
	StatusInfeasible
	StatusModelInvalid
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "Optimal"
	case StatusFeasibleWithinLimit:
		return "FeasibleWithinLimit"
	case StatusInfeasible:
		return "Infeasible"
	case StatusModelInvalid:
		return "ModelInvalid"
	default:
		return "Unknown"
	}
}

// Response is the decoded result of a solve: status, diagnostics, and a
// value reader closed over the raw engine response so callers never touch
// cmpb types directly.
type Response struct {
	Status      Status
	ObjectiveValue float64
	WallTime    time.Duration
	NumConflicts int64
	NumBranches  int64
	NumBooleans  int64

	raw *cmpb.CpSolverResponse
}

// IntValue reads back the fixed value of an integer variable from a solved
// response.
func (r *Response) IntValue(v IntVar) int64 { return cpmodel.SolutionIntegerValue(r.raw, v) }

// BoolValue reads back the fixed value of a Boolean literal from a solved
// response.
func (r *Response) BoolValue(v BoolVar) bool { return cpmodel.SolutionBooleanValue(r.raw, v) }

// OnImprovement is invoked once per improving solution the engine reports
// while searching, in non-increasing objective order (§5 ordering).
type OnImprovement func(objective float64, wallTime time.Duration)

// Solve instantiates the model and hands it to the CP-SAT engine with the
// given parameters, translating ctx cancellation into the engine's own stop
// signal and releasing engine worker threads on every return path.
func Solve(ctx context.Context, m *Model, p Params, onImprovement OnImprovement) (*Response, error) {
	if len(m.hintVars) > 0 {
		m.b.AddHint(m.hintVars, m.hintValues)
	}

	proto, err := m.b.Model()
	if err != nil {
		return &Response{Status: StatusModelInvalid}, fmt.Errorf("cpengine: build model: %w", err)
	}

	workers := p.Workers
	if p.Deterministic {
		workers = 1
	}
	if workers <= 0 {
		workers = 1
	}

	params := &satpb.SatParameters{
		NumSearchWorkers: int32(workers),
		MaxTimeInSeconds: p.TimeLimit.Seconds(),
		RandomSeed:       int32(p.RandomSeed),
	}

	model := cpmodel.NewCpSolver()
	model.SetParameters(params)
	if onImprovement != nil {
		model.SetSolutionCallback(func(r *cmpb.CpSolverResponse) {
			onImprovement(r.GetObjectiveValue(), time.Duration(r.GetWallTime()*float64(time.Second)))
		})
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			model.StopSearch()
		case <-done:
		}
	}()

	resp, err := model.Solve(proto)
	close(done)
	if err != nil {
		return &Response{Status: StatusUnknown}, fmt.Errorf("cpengine: solve: %w", err)
	}

	return &Response{
		Status:         classify(resp.GetStatus()),
		ObjectiveValue: resp.GetObjectiveValue(),
		WallTime:       time.Duration(resp.GetWallTime() * float64(time.Second)),
		NumConflicts:   resp.GetNumConflicts(),
		NumBranches:    resp.GetNumBranches(),
		NumBooleans:    resp.GetNumBooleans(),
		raw:            resp,
	}, nil
}

func classify(s cmpb.CpSolverStatus) Status {
	switch s {
	case cmpb.CpSolverStatus_OPTIMAL:
		return StatusOptimal
	case cmpb.CpSolverStatus_FEASIBLE:
		return StatusFeasibleWithinLimit
	case cmpb.CpSolverStatus_INFEASIBLE:
		return StatusInfeasible
	case cmpb.CpSolverStatus_MODEL_INVALID:
		return StatusModelInvalid
	default:
		return StatusUnknown
	}
}

