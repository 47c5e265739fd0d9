package schedcore

import (
	"reflect"
	"testing"
)

// idempotenceProblem builds a Problem with enough structure (three
// identical-template instances sharing two capacity-1 machines) that
// symmetry breaking and tie-breaking actually engage, rather than a
// trivial single-task model every path would solve identically anyway.
func idempotenceProblem(t *testing.T) *Problem {
	t.Helper()
	tmpl := Template{
		ID: "dual-machine",
		Tasks: []TemplateTask{
			{ID: "x", TemplateID: "dual-machine", Position: 0, Modes: []Mode{{ID: "x-m", TemplateTaskID: "x", MachineID: "M1", DurationSlots: 2}}},
			{ID: "y", TemplateID: "dual-machine", Position: 1, Modes: []Mode{{ID: "y-m", TemplateTaskID: "y", MachineID: "M2", DurationSlots: 2}}},
		},
		Precedences: []TemplatePrecedence{{TemplateID: "dual-machine", PredecessorTaskID: "x", SuccessorTaskID: "y"}},
	}
	in := ProblemInput{
		JobTemplates: []Template{tmpl},
		JobInstances: []Instance{
			{ID: "J1", TemplateID: "dual-machine", EarliestStart: 0},
			{ID: "J2", TemplateID: "dual-machine", EarliestStart: 0},
			{ID: "J3", TemplateID: "dual-machine", EarliestStart: 0},
		},
		Machines: []Machine{
			{ID: "M1", CellID: "C1", Capacity: 1},
			{ID: "M2", CellID: "C1", Capacity: 1},
		},
		WorkCells:         []WorkCell{{ID: "C1", MaxConcurrentMachines: 2}},
		SafetyMarginSlots: 10,
		SolverParameters:  fastParams(),
	}

	p, err := NewProblem(in)
	if err != nil {
		t.Fatalf("NewProblem: %v", err)
	}
	return p
}

// sameSolution reports whether a and b agree on every field a re-solve of
// the identical Problem must reproduce exactly. Diagnostics (RunID, counters,
// wall-clock timing) and SolveWallMillis are excluded deliberately — spec.md
// §5 Idempotence is about the
// scheduling decision, not per-call bookkeeping that's expected to vary.
func sameSolution(a, b *Solution) bool {
	if a.Status != b.Status || a.Makespan != b.Makespan ||
		a.TotalLateness != b.TotalLateness || a.TotalCost != b.TotalCost {
		return false
	}
	if !reflect.DeepEqual(a.InstanceEnd, b.InstanceEnd) {
		return false
	}
	if !reflect.DeepEqual(a.TaskPlacement, b.TaskPlacement) {
		return false
	}
	return true
}

// TestIdempotence_SameProblemSameSolution is the spec.md §8 "Idempotence"
// property: with workers=1, Deterministic=true, and a fixed RandomSeed,
// solving the same Problem twice must yield a byte-identical Solution
// (modulo RunID/wall-clock bookkeeping).
func TestIdempotence_SameProblemSameSolution(t *testing.T) {
	p := idempotenceProblem(t)
	p.Params.Workers = 1
	p.Params.Deterministic = true
	p.Params.RandomSeed = 42

	first := solveOrFail(t, p)
	second := solveOrFail(t, p)

	if !sameSolution(first, second) {
		t.Fatalf("repeated solve of an identical Problem diverged:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

// TestObjectiveMonotonicity_LongerTimeLimitNeverWorsens is the spec.md §8
// "Objective monotonicity" property: for T1 < T2, solving with TimeLimit=T2
// must never report a worse (higher) makespan than TimeLimit=T1 — more
// search time can only hold steady or improve the objective.
func TestObjectiveMonotonicity_LongerTimeLimitNeverWorsens(t *testing.T) {
	p1 := idempotenceProblem(t)
	p1.Params.Workers = 1
	p1.Params.Deterministic = true
	p1.Params.RandomSeed = 7
	p1.Params.TimeLimitSeconds = 1

	p2 := idempotenceProblem(t)
	p2.Params.Workers = 1
	p2.Params.Deterministic = true
	p2.Params.RandomSeed = 7
	p2.Params.TimeLimitSeconds = 5

	short := solveOrFail(t, p1)
	long := solveOrFail(t, p2)

	if long.Makespan > short.Makespan {
		t.Fatalf("longer time limit produced a worse makespan: short(T=1)=%d long(T=5)=%d", short.Makespan, long.Makespan)
	}
}
