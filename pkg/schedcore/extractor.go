package schedcore

import (
	"fmt"

	"github.com/fabricflow/schedcore/internal/cpengine"
)

// Extract reads a solved response back into a Solution (C8), re-validating
// exactly one selected mode per task, interval length against the mode
// duration, start >= earliest start, template precedence, and pairwise
// non-overlap on capacity-1 machines. Setup gaps, cumulative and work-cell
// capacity, calendars, the operator pool and end <= horizon are not
// re-checked here. Any breach is a SolverContractViolationError: the engine
// returned a feasible status but the decoded assignment does not actually
// satisfy the model, which means a bug in the builder, not a bad input.
func Extract(bm *BuiltModel, resp *cpengine.Response, makespan cpengine.IntVar) (*Solution, error) {
	status := classifyFinal(resp.Status)

	sol := &Solution{
		Status:        status,
		InstanceEnd:   make(map[ID]Slot, len(bm.Problem.Instances)),
		TaskPlacement: make(map[ExpandedTaskKey]TaskPlacement, len(bm.Exp.Tasks)),
	}

	if status != StatusOptimal && status != StatusFeasibleWithinLimit {
		return sol, nil
	}

	for _, key := range sortedKeys(bm.Exp) {
		task := bm.Exp.Tasks[key]
		tv := bm.Vars[key]

		chosen := -1
		for i, lit := range tv.presence {
			if resp.BoolValue(lit) {
				if chosen != -1 {
					return nil, &SolverContractViolationError{
						Invariant: "exactly one mode selected",
						Detail:    fmt.Sprintf("task %s/%s: more than one mode present", key.InstanceID, key.TemplateTaskID),
					}
				}
				chosen = i
			}
		}
		if chosen == -1 {
			return nil, &SolverContractViolationError{
				Invariant: "exactly one mode selected",
				Detail:    fmt.Sprintf("task %s/%s: no mode present", key.InstanceID, key.TemplateTaskID),
			}
		}

		start := Slot(resp.IntValue(tv.start))
		end := Slot(resp.IntValue(tv.end))
		mode := task.Modes[chosen]

		if end-start != mode.Mode.DurationSlots {
			return nil, &SolverContractViolationError{
				Invariant: "interval length matches mode duration",
				Detail:    fmt.Sprintf("task %s/%s: interval length %d does not match mode duration %d",
					key.InstanceID, key.TemplateTaskID, end-start, mode.Mode.DurationSlots),
			}
		}
		if start < task.EarliestStart {
			return nil, &SolverContractViolationError{
				Invariant: "start >= earliest_start",
				Detail:    fmt.Sprintf("task %s/%s: start %d precedes earliest_start %d",
					key.InstanceID, key.TemplateTaskID, start, task.EarliestStart),
			}
		}

		sol.TaskPlacement[key] = TaskPlacement{
			MachineID: mode.Mode.MachineID,
			ModeID:    mode.Mode.ID,
			Start:     start,
			End:       end,
		}
	}

	if err := validatePrecedence(bm, sol); err != nil {
		return nil, err
	}
	if err := validateNoOverlap(bm, sol); err != nil {
		return nil, err
	}

	var totalLateness, totalCost float64
	for _, inst := range bm.Problem.Instances {
		keys := bm.Exp.ByInstance[inst.ID]
		if len(keys) == 0 {
			continue
		}
		end := Slot(0)
		for _, key := range keys {
			if placement := sol.TaskPlacement[key]; placement.End > end {
				end = placement.End
			}
		}
		sol.InstanceEnd[inst.ID] = end
		if inst.DueSlot != nil && end > *inst.DueSlot {
			totalLateness += float64(end-*inst.DueSlot) * WeightLateness(inst)
		}
	}
	for key, placement := range sol.TaskPlacement {
		task := bm.Exp.Tasks[key]
		for _, mode := range task.Modes {
			if mode.Mode.ID != placement.ModeID {
				continue
			}
			machine := bm.Problem.Machines[mode.Mode.MachineID]
			if machine.CostPerHour > 0 {
				hours := float64(placement.End-placement.Start) * 0.25
				totalCost += machine.CostPerHour * hours
			}
		}
	}

	sol.Makespan = Slot(resp.IntValue(makespan))
	sol.TotalLateness = totalLateness
	sol.TotalCost = totalCost

	return sol, nil
}

// validatePrecedence re-checks §3 invariant 4 against the decoded placement,
// independent of whatever the engine claims to have enforced.
func validatePrecedence(bm *BuiltModel, sol *Solution) error {
	for _, inst := range bm.Problem.Instances {
		tmpl := bm.Problem.Templates[inst.TemplateID]
		for _, prec := range tmpl.Precedences {
			aKey := ExpandedTaskKey{InstanceID: inst.ID, TemplateTaskID: prec.PredecessorTaskID}
			bKey := ExpandedTaskKey{InstanceID: inst.ID, TemplateTaskID: prec.SuccessorTaskID}
			a, aok := sol.TaskPlacement[aKey]
			b, bok := sol.TaskPlacement[bKey]
			if !aok || !bok {
				continue
			}
			if a.End > b.Start {
				return &SolverContractViolationError{
					Invariant: "precedence",
					Detail:    fmt.Sprintf("precedence violated: %s ends at %d after %s starts at %d",
						prec.PredecessorTaskID, a.End, prec.SuccessorTaskID, b.Start),
				}
			}
		}
	}
	return nil
}

// validateNoOverlap re-checks §3 invariant 5 for capacity-1 machines:
// no two placements on the same exclusive machine may overlap. The setup
// gap between them is not checked.
func validateNoOverlap(bm *BuiltModel, sol *Solution) error {
	byMachine := make(map[ID][]TaskPlacement)
	for _, p := range sol.TaskPlacement {
		byMachine[p.MachineID] = append(byMachine[p.MachineID], p)
	}
	for machineID, placements := range byMachine {
		machine := bm.Problem.Machines[machineID]
		if machine.Capacity > 1 {
			continue
		}
		for i := 0; i < len(placements); i++ {
			for j := i + 1; j < len(placements); j++ {
				a, b := placements[i], placements[j]
				if a.Start < b.End && b.Start < a.End {
					return &SolverContractViolationError{
						Invariant: "machine no-overlap",
						Detail:    fmt.Sprintf("machine %s: overlapping placements [%d,%d) and [%d,%d)",
							machineID, a.Start, a.End, b.Start, b.End),
					}
				}
			}
		}
	}
	return nil
}
