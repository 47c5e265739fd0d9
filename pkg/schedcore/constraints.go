package schedcore

import (
	"sort"

	"github.com/fabricflow/schedcore/internal/cpengine"
)

// taskVars is the set of CP-SAT decision variables the builder creates for
// one expanded task: a start variable, one optional interval plus presence
// literal per candidate mode, and a derived end variable (§4.4).
type taskVars struct {
	start     cpengine.IntVar
	end       cpengine.IntVar
	presence  []cpengine.BoolVar   // parallel to ExpandedTask.Modes
	interval  []cpengine.IntervalVar
}

// BuiltModel is C5's output: the populated CP-SAT model plus the lookup
// tables C6 (objective) and C8 (extraction) need to reference the same
// variables.
type BuiltModel struct {
	Model     *cpengine.Model
	Exp       *Expansion
	Problem   *Problem
	Vars      map[ExpandedTaskKey]*taskVars
	epochWeekday int
}

// BuildConstraints translates a Problem and its Expansion into a CP-SAT
// model implementing every constraint family §4.5/§9 names: precedence,
// mode selection, machine no-overlap/cumulative, work-cell capacity,
// calendar/business-hours, and the pooled operator resource. Each family is
// a case of the tagged variant §9 specifies (Precedence | NoOverlap{M} |
// Cumulative{R} | CellCap{W} | Calendar{task,cal} | Operator); this
// function is the dispatcher, one method per case.
func BuildConstraints(p *Problem, exp *Expansion, epochWeekday int) (*BuiltModel, error) {
	m := cpengine.NewModel()
	bm := &BuiltModel{Model: m, Exp: exp, Problem: p, Vars: make(map[ExpandedTaskKey]*taskVars, len(exp.Tasks)), epochWeekday: epochWeekday}

	if err := bm.buildTaskVars(); err != nil {
		return nil, err
	}
	bm.buildPrecedence()
	if p.Params.EnableSymmetryBreaking {
		bm.buildSymmetryBreaking()
	}
	bm.buildMachineConstraints()
	bm.buildCellCapacity()
	bm.buildCalendarConstraints()
	bm.buildOperatorConstraint()

	return bm, nil
}

// buildTaskVars is the mode-selection case (§4.4): a start var bounded by
// [earliest_start, horizon], one optional interval per mode, and
// Σ presence = 1 (§3 invariant 2).
func (bm *BuiltModel) buildTaskVars() error {
	for _, key := range sortedKeys(bm.Exp) {
		task := bm.Exp.Tasks[key]
		tv := &taskVars{}
		tv.start = bm.Model.NewIntVar(int64(task.EarliestStart), int64(bm.Problem.Horizon))
		tv.end = bm.Model.NewIntVar(int64(task.EarliestStart), int64(bm.Problem.Horizon))

		presences := make([]cpengine.BoolVar, len(task.Modes))
		intervals := make([]cpengine.IntervalVar, len(task.Modes))
		for i, mode := range task.Modes {
			if len(task.Modes) == 1 {
				presences[i] = bm.Model.TrueVar()
			} else {
				presences[i] = bm.Model.NewBoolVar()
			}
			intervals[i] = bm.Model.NewOptionalInterval(tv.start, int64(mode.Mode.DurationSlots), tv.end, presences[i])
		}
		bm.Model.AddExactlyOne(presences...)
		tv.presence = presences
		tv.interval = intervals
		bm.Vars[key] = tv
	}
	return nil
}

// buildPrecedence replicates every template precedence edge across every
// instance: end(a_J) <= start(b_J), plus the redundant
// start(a_J) + min_duration(a) <= start(b_J) when enabled (§4.5 item 1, §4.5
// item 7).
func (bm *BuiltModel) buildPrecedence() {
	for _, inst := range bm.Problem.Instances {
		tmpl := bm.Problem.Templates[inst.TemplateID]
		for _, prec := range tmpl.Precedences {
			aKey := ExpandedTaskKey{InstanceID: inst.ID, TemplateTaskID: prec.PredecessorTaskID}
			bKey := ExpandedTaskKey{InstanceID: inst.ID, TemplateTaskID: prec.SuccessorTaskID}
			a, aok := bm.Vars[aKey]
			b, bok := bm.Vars[bKey]
			if !aok || !bok {
				continue
			}
			bm.Model.AddLessOrEqual(a.end, b.start)

			if bm.Problem.Params.EnableRedundantCriticalPath {
				minDur := minModeDuration(bm.Exp.Tasks[aKey])
				bm.Model.AddLessOrEqual(bm.Model.Offset(a.start, int64(minDur)), b.start)
			}
		}
	}
}

// buildSymmetryBreaking chains start(x1) <= start(x2) <= ... across the
// first task of every symmetry group's members (§4.4 "Symmetry breaking").
func (bm *BuiltModel) buildSymmetryBreaking() {
	for _, group := range bm.Exp.SymmetryGroups {
		for i := 1; i < len(group.FirstTaskKeys); i++ {
			prev := bm.Vars[group.FirstTaskKeys[i-1]]
			cur := bm.Vars[group.FirstTaskKeys[i]]
			if prev == nil || cur == nil {
				continue
			}
			bm.Model.AddLessOrEqual(prev.start, cur.start)
		}
	}
}

// buildMachineConstraints is the NoOverlap{machine} and Cumulative{machine}
// cases (§4.5 item 3): capacity-1 machines get a disjunctive schedule with
// sequence-dependent setup; capacity>1 machines get a cumulative resource
// with no setup term (§9 open question (a): setup never applies above
// capacity 1).
func (bm *BuiltModel) buildMachineConstraints() {
	byMachine := bm.intervalsByMachine()

	for _, machineID := range sortedMachineIDs(byMachine) {
		entries := byMachine[machineID]
		machine := bm.Problem.Machines[machineID]
		if machine.Capacity <= 1 {
			bm.buildExclusiveMachine(machine, entries)
		} else {
			bm.buildCumulativeMachine(machine, entries)
		}
	}
}

// machineEntry binds one expanded task's chosen-mode interval to the
// machine it targets, for constraint families that operate per machine.
type machineEntry struct {
	key      ExpandedTaskKey
	modeIdx  int
	interval cpengine.IntervalVar
	presence cpengine.BoolVar
	start    cpengine.IntVar
	end      cpengine.IntVar
}

func (bm *BuiltModel) intervalsByMachine() map[ID][]machineEntry {
	out := make(map[ID][]machineEntry)
	for _, key := range sortedKeys(bm.Exp) {
		task := bm.Exp.Tasks[key]
		tv := bm.Vars[key]
		for i, mode := range task.Modes {
			out[mode.Mode.MachineID] = append(out[mode.Mode.MachineID], machineEntry{
				key: key, modeIdx: i,
				interval: tv.interval[i], presence: tv.presence[i],
				start: tv.start, end: tv.end,
			})
		}
	}
	return out
}

// buildExclusiveMachine posts NoOverlap across a capacity-1 machine's
// intervals, then adds the setup gap between every ordered pair using the
// ranking/implication pattern: a Boolean precedence literal per ordered
// pair, reified against both tasks' presence, at most one direction true,
// with the setup-respecting gap enforced only on the realized direction.
func (bm *BuiltModel) buildExclusiveMachine(machine Machine, entries []machineEntry) {
	intervals := make([]cpengine.IntervalVar, len(entries))
	for i, e := range entries {
		intervals[i] = e.interval
	}
	bm.Model.AddNoOverlap(intervals...)

	for i := 0; i+1 < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			a, b := entries[i], entries[j]
			setupAB := bm.Problem.SetupSlots(taskOf(bm.Exp, a.key), taskOf(bm.Exp, b.key), machine.ID)
			setupBA := bm.Problem.SetupSlots(taskOf(bm.Exp, b.key), taskOf(bm.Exp, a.key), machine.ID)

			aBeforeB := bm.Model.NewBoolVar()
			bBeforeA := bm.Model.NewBoolVar()

			gapAB := bm.Model.AddLessOrEqual(bm.Model.Offset(a.end, int64(setupAB)), b.start)
			gapAB.OnlyEnforceIf(aBeforeB)
			gapBA := bm.Model.AddLessOrEqual(bm.Model.Offset(b.end, int64(setupBA)), a.start)
			gapBA.OnlyEnforceIf(bBeforeA)

			// At least one direction holds whenever both tasks are present.
			bm.Model.AddBoolOr(aBeforeB, bBeforeA, a.presence.Not(), b.presence.Not())
			bm.Model.AddImplication(a.presence.Not(), aBeforeB.Not())
			bm.Model.AddImplication(a.presence.Not(), bBeforeA.Not())
			bm.Model.AddImplication(b.presence.Not(), aBeforeB.Not())
			bm.Model.AddImplication(b.presence.Not(), bBeforeA.Not())
			bm.Model.AddImplication(aBeforeB, bBeforeA.Not())
			bm.Model.AddImplication(bBeforeA, aBeforeB.Not())
		}
	}
}

// buildCumulativeMachine posts a Cumulative{machine} resource: unit demand
// per task, capacity = machine.Capacity, no setup term (§4.5 item 3).
func (bm *BuiltModel) buildCumulativeMachine(machine Machine, entries []machineEntry) {
	cum := bm.Model.NewCumulative(int64(machine.Capacity))
	for _, e := range entries {
		cum.AddDemand(e.interval, 1)
	}
	cum.Close()
}

// buildCellCapacity is the CellCap{cell} case (§4.5 item 4): a second,
// independent cumulative resource per work cell over every task whose
// selected mode targets a machine in that cell.
func (bm *BuiltModel) buildCellCapacity() {
	byMachine := bm.intervalsByMachine()
	byCell := make(map[ID][]machineEntry)
	for _, machineID := range sortedMachineIDs(byMachine) {
		machine := bm.Problem.Machines[machineID]
		byCell[machine.CellID] = append(byCell[machine.CellID], byMachine[machineID]...)
	}
	for _, cellID := range sortedCellIDs(byCell) {
		entries := byCell[cellID]
		cell := bm.Problem.WorkCells[cellID]
		cum := bm.Model.NewCumulative(int64(cell.MaxConcurrentMachines))
		for _, e := range entries {
			cum.AddDemand(e.interval, 1)
		}
		cum.Close()
	}
}

// buildCalendarConstraints is the Calendar{task,cal} case (§4.5 item 5,
// §3 invariants 8-9): every task requiring business hours without overtime,
// and every is_setup task, must fit entirely within one maximal allowed run
// of its machine's calendar. Encoded as a disjunction over runs, never a
// per-slot forbidden enumeration (C2).
func (bm *BuiltModel) buildCalendarConstraints() {
	for _, key := range sortedKeys(bm.Exp) {
		task := bm.Exp.Tasks[key]
		businessHours := task.TemplateTask.RequiresBusinessHours && !task.TemplateTask.AllowsOvertime
		if !businessHours && !task.TemplateTask.IsSetup {
			continue
		}
		tv := bm.Vars[key]
		for i, mode := range task.Modes {
			machine := bm.Problem.Machines[mode.Mode.MachineID]
			cal, ok := bm.Problem.Calendars[machine.CalendarID]
			if !ok {
				continue
			}
			runs := cal.AllowedRuns(bm.Problem.Horizon, bm.epochWeekday)
			if len(runs) == 0 {
				continue
			}
			fits := make([]cpengine.BoolVar, len(runs))
			for r, run := range runs {
				lit := bm.Model.NewBoolVar()
				fits[r] = lit
				bm.Model.AddLessOrEqual(bm.Model.Constant(int64(run.Start)), tv.start).OnlyEnforceIf(lit)
				bm.Model.AddLessOrEqual(tv.end, bm.Model.Constant(int64(run.End))).OnlyEnforceIf(lit)
			}
			// fits_in_some_run is true whenever this mode is selected.
			disjunction := append(append([]cpengine.BoolVar{}, fits...), tv.presence[i].Not())
			bm.Model.AddBoolOr(disjunction...)
		}
	}
}

// buildOperatorConstraint is the Operator case (§4.5 item 6, §3 invariant
// 8): every is_setup task consumes the pooled operator resource for its
// duration, demand = min_operators(task), capacity = K. Setup tasks are
// additionally bound to their machine's calendar by
// buildCalendarConstraints (the dual-resource pairing, §4.5 item 5).
func (bm *BuiltModel) buildOperatorConstraint() {
	capacity := int64(bm.Problem.OperatorCapacity)
	if capacity <= 0 {
		return
	}
	cum := bm.Model.NewCumulative(capacity)
	any := false
	for _, key := range sortedKeys(bm.Exp) {
		task := bm.Exp.Tasks[key]
		if !task.TemplateTask.IsSetup {
			continue
		}
		tv := bm.Vars[key]
		demand := int64(task.TemplateTask.MinOperators)
		if demand <= 0 {
			demand = 1
		}
		for i := range task.Modes {
			cum.AddDemand(tv.interval[i], demand)
			any = true
		}
	}
	if any {
		cum.Close()
	}
}

// --- small helpers -------------------------------------------------------

func sortedKeys(exp *Expansion) []ExpandedTaskKey {
	keys := make([]ExpandedTaskKey, 0, len(exp.Tasks))
	for k := range exp.Tasks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].InstanceID != keys[j].InstanceID {
			return keys[i].InstanceID < keys[j].InstanceID
		}
		return keys[i].TemplateTaskID < keys[j].TemplateTaskID
	})
	return keys
}

func sortedMachineIDs(byMachine map[ID][]machineEntry) []ID {
	ids := make([]ID, 0, len(byMachine))
	for id := range byMachine {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedCellIDs(byCell map[ID][]machineEntry) []ID {
	ids := make([]ID, 0, len(byCell))
	for id := range byCell {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func taskOf(exp *Expansion, key ExpandedTaskKey) ID {
	return key.TemplateTaskID
}

func minModeDuration(t *ExpandedTask) int {
	best := 0
	for i, m := range t.Modes {
		if i == 0 || m.Mode.DurationSlots < best {
			best = m.Mode.DurationSlots
		}
	}
	return best
}

