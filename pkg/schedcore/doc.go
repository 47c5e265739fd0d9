// Package schedcore is the scheduling solver core: it turns an immutable
// Problem (job templates, instances, machines, cells, calendars, and
// precedence/setup/capacity constraints) into a Solution that assigns every
// expanded task to a machine and a start slot, optimizing makespan and
// lateness first and cost second.
//
// The package is organized around the data-flow pipeline of the same
// components the design spells out: Expand (template instances into
// variable tuples) feeds BuildConstraints and BuildPhase1Objective/
// BuildPhase2Objective, which populate a single CP-SAT model; a
// SolverDriver solves that model; and Extract turns a feasible assignment
// back into a Solution, re-validating its core placement invariants before
// returning it.
//
// Problem and Solution are plain values that the solver pipeline never
// mutates; their fields are exported, so nothing stops a caller from
// changing them (the CLI overrides Problem.Params before solving). Nothing
// in this package keeps process-wide state except SolutionCache, which is
// passed in explicitly and guarded by its own mutex.
package schedcore
