package schedcore

import (
	"math"
	"sort"

	"github.com/fabricflow/schedcore/internal/cpengine"
)

// sinkTaskIDs returns a template's sink tasks: every task with no outgoing
// precedence edge. Position is a symmetry-breaking hint only, not a hard
// order (types.go), so a template with branching/parallel tails can have
// more than one sink — instance completion is the max over all of them, not
// the single task with the highest Position.
func sinkTaskIDs(t Template) []ID {
	hasOutgoing := make(map[ID]bool, len(t.Tasks))
	for _, prec := range t.Precedences {
		hasOutgoing[prec.PredecessorTaskID] = true
	}
	sinks := make([]ID, 0, len(t.Tasks))
	for _, task := range t.Tasks {
		if !hasOutgoing[task.ID] {
			sinks = append(sinks, task.ID)
		}
	}
	sort.Strings(sinks)
	return sinks
}

// instanceEndVars locates, for each instance, a variable bounding its
// completion: the max over the end vars of every sink task in its template
// (GLOSSARY: "Makespan = maximum task end across the Solution", applied per
// instance). Each instEnd var is only bounded below by its sinks' ends —
// exactly the pattern BuildPhase1Objective already uses for the global
// makespan var — with no explicit max-reduction constraint, so the objective
// pulls it down to the true max only where it carries a lateness term or
// bounds the makespan. Extract reports instance ends from the placements,
// not from these vars.
func (bm *BuiltModel) instanceEndVars() map[ID]cpengine.IntVar {
	templateIDs := make([]ID, 0, len(bm.Problem.Templates))
	for id := range bm.Problem.Templates {
		templateIDs = append(templateIDs, id)
	}
	sort.Strings(templateIDs)

	sinksByTemplate := make(map[ID][]ID, len(bm.Problem.Templates))
	for _, id := range templateIDs {
		sinksByTemplate[id] = sinkTaskIDs(bm.Problem.Templates[id])
	}

	out := make(map[ID]cpengine.IntVar, len(bm.Problem.Instances))
	for _, inst := range bm.Problem.Instances {
		sinks := sinksByTemplate[inst.TemplateID]
		var sinkEnds []cpengine.IntVar
		for _, taskID := range sinks {
			key := ExpandedTaskKey{InstanceID: inst.ID, TemplateTaskID: taskID}
			if tv, ok := bm.Vars[key]; ok {
				sinkEnds = append(sinkEnds, tv.end)
			}
		}
		if len(sinkEnds) == 0 {
			continue
		}
		if len(sinkEnds) == 1 {
			out[inst.ID] = sinkEnds[0]
			continue
		}
		instEnd := bm.Model.NewIntVar(0, int64(bm.Problem.Horizon))
		for _, end := range sinkEnds {
			bm.Model.AddLessOrEqual(end, instEnd)
		}
		out[inst.ID] = instEnd
	}
	return out
}

// BuildPhase1Objective posts Phase 1 of the two-phase pipeline (§4.6):
// minimize alpha*makespan + sum w_J * lateness_J. It returns the makespan
// variable and the phase-1 linear expression so BuildPhase2Objective can
// bound it and the extractor can read makespan back directly.
func (bm *BuiltModel) BuildPhase1Objective() (makespan cpengine.IntVar, phase1 *cpengine.LinearExpr) {
	ends := bm.instanceEndVars()

	makespan = bm.Model.NewIntVar(0, int64(bm.Problem.Horizon))
	for _, end := range ends {
		bm.Model.AddLessOrEqual(end, makespan)
	}

	phase1 = bm.Model.NewLinearExpr().AddTerm(makespan, int64(bm.Weights().Makespan*1000))

	for _, inst := range bm.Problem.Instances {
		end, ok := ends[inst.ID]
		if !ok || inst.DueSlot == nil {
			continue
		}
		lateness := bm.Model.NewIntVar(0, int64(bm.Problem.Horizon))
		// lateness >= end - due, lateness >= 0 (domain lower bound already enforces this)
		bm.Model.AddLessOrEqual(bm.Model.Offset(end, -int64(*inst.DueSlot)), lateness)

		weight := int64(WeightLateness(inst) * bm.Weights().Lateness * 1000)
		if weight != 0 {
			phase1.AddTerm(lateness, weight)
		}
	}

	bm.Model.Minimize(phase1)
	return makespan, phase1
}

// BuildPhase2Objective posts Phase 2 (§4.6): bound phase1 within
// (1+epsilon) of its proven value, then minimize total cost. Returns false
// when there is no cost data to optimize (cost_weight == 0 or no machine
// carries a positive cost_per_hour), in which case the caller should stop
// after Phase 1.
func (bm *BuiltModel) BuildPhase2Objective(phase1 *cpengine.LinearExpr, phase1Value float64, epsilon float64) bool {
	if bm.Weights().CostWeight == 0 || !bm.hasCostData() {
		return false
	}

	bound := int64(math.Ceil((1 + epsilon) * phase1Value))
	bm.Model.AddLinearConstraint(phase1, math.MinInt32, bound)

	cost := bm.Model.NewLinearExpr()
	any := false
	for _, key := range sortedKeys(bm.Exp) {
		task := bm.Exp.Tasks[key]
		tv := bm.Vars[key]
		for i, mode := range task.Modes {
			machine := bm.Problem.Machines[mode.Mode.MachineID]
			if machine.CostPerHour <= 0 {
				continue
			}
			hours := float64(mode.Mode.DurationSlots) * 0.25 // 15-minute slots -> hours
			coeff := int64(machine.CostPerHour * hours * bm.Weights().CostWeight * 100)
			if coeff == 0 {
				continue
			}
			cost.AddTerm(tv.presence[i], coeff)
			any = true
		}
	}
	if !any {
		return false
	}
	bm.Model.Minimize(cost)
	return true
}

func (bm *BuiltModel) hasCostData() bool {
	for _, m := range bm.Problem.Machines {
		if m.CostPerHour > 0 {
			return true
		}
	}
	return false
}

// Weights returns the problem's objective weights, defaulting both Makespan
// and Lateness to 1 when both are left at the zero value; when either is
// nonzero, both are used as given.
func (bm *BuiltModel) Weights() ObjectiveWeights {
	w := bm.Problem.Weights
	if w.Makespan == 0 && w.Lateness == 0 {
		w.Makespan = 1
		w.Lateness = 1
	}
	return w
}
