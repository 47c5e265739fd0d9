package schedcore

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
	"go.uber.org/multierr"
)

// ProblemInput is the flat, loader-facing shape described in §6: tables
// equivalent to the §3 entities plus objective weights and solver
// parameters. NewProblem validates and indexes it into a Problem.
type ProblemInput struct {
	JobTemplates        []Template
	JobInstances         []Instance
	Machines             []Machine
	WorkCells             []WorkCell
	BusinessCalendars     []Calendar
	SetupMatrix           []SetupEdge
	ObjectiveWeights      ObjectiveWeights
	SolverParameters      SolverParameters
	SafetyMarginSlots     int // added to the horizon computed from due dates

	// OperatorCapacity is K, the pooled operator resource's capacity (§3
	// Operator pool, §4.5 item 6). Zero means the problem has no
	// labor-bound setup tasks and the Operator constraint is skipped.
	OperatorCapacity int
}

// Problem is the value the rest of the solver consumes read-only: §3's
// entities plus a derived horizon and per-template critical-path lower
// bounds, computed once here so C4/C5 never recompute them.
type Problem struct {
	Templates     map[ID]Template
	Instances     []Instance
	Machines      map[ID]Machine
	WorkCells     map[ID]WorkCell
	Calendars     map[ID]Calendar
	SetupMatrix   map[setupKey]int
	Weights       ObjectiveWeights
	Params        SolverParameters
	Horizon       Slot
	CriticalPath  map[ID]int // template id -> minimum end-to-end duration in slots
	OperatorCapacity int
}

type setupKey struct {
	from, to, machine ID
}

// SetupSlots returns the configured setup time on machine m between
// consecutive template tasks from -> to, defaulting to 0 when the pair is
// absent from the matrix (§3).
func (p *Problem) SetupSlots(from, to, machine ID) int {
	return p.SetupMatrix[setupKey{from, to, machine}]
}

// WeightLateness resolves §9 open question (b): explicit weight, else
// priority, else 1.
func WeightLateness(inst Instance) float64 {
	if inst.WeightLateness != nil {
		return *inst.WeightLateness
	}
	if inst.Priority > 0 {
		return float64(inst.Priority)
	}
	return 1
}

// NewProblem validates a ProblemInput and builds the immutable Problem used
// by every downstream component. All structural failures are aggregated
// with multierr so a caller sees every broken entity in one pass, not just
// the first (§7 propagation policy: "surfaced with context").
func NewProblem(in ProblemInput) (*Problem, error) {
	var errs error

	templates := make(map[ID]Template, len(in.JobTemplates))
	taskOwner := make(map[ID]ID) // task id -> template id
	for _, t := range in.JobTemplates {
		if t.ID == "" {
			errs = multierr.Append(errs, NewModelBuildError("template:<empty>", "non-empty id", nil))
			continue
		}
		for _, task := range t.Tasks {
			if len(task.Modes) == 0 {
				errs = multierr.Append(errs, NewModelBuildError(
					fmt.Sprintf("template_task:%s", task.ID), "non-empty mode list", nil))
			}
			for _, m := range task.Modes {
				if m.DurationSlots < 1 {
					errs = multierr.Append(errs, NewModelBuildError(
						fmt.Sprintf("mode:%s", m.ID), "duration >= 1 slot", nil))
				}
			}
			taskOwner[task.ID] = t.ID
		}
		if err := checkAcyclic(t); err != nil {
			errs = multierr.Append(errs, NewModelBuildError(fmt.Sprintf("template:%s", t.ID), "acyclic precedence", err))
		}
		templates[t.ID] = t
	}

	machines := make(map[ID]Machine, len(in.Machines))
	for _, m := range in.Machines {
		if m.Capacity < 1 {
			errs = multierr.Append(errs, NewModelBuildError(fmt.Sprintf("machine:%s", m.ID), "capacity >= 1", nil))
		}
		machines[m.ID] = m
	}

	cells := make(map[ID]WorkCell, len(in.WorkCells))
	for _, c := range in.WorkCells {
		if c.MaxConcurrentMachines < 1 {
			errs = multierr.Append(errs, NewModelBuildError(fmt.Sprintf("cell:%s", c.ID), "max_concurrent_machines >= 1", nil))
		}
		cells[c.ID] = c
	}

	calendars := make(map[ID]Calendar, len(in.BusinessCalendars))
	for _, c := range in.BusinessCalendars {
		calendars[c.ID] = c
	}

	// Referential integrity: every mode's machine id, every instance's
	// template id, every machine's cell/calendar id must resolve.
	for _, t := range in.JobTemplates {
		for _, task := range t.Tasks {
			for _, m := range task.Modes {
				if _, ok := machines[m.MachineID]; !ok {
					errs = multierr.Append(errs, NewModelBuildError(
						fmt.Sprintf("mode:%s", m.ID), fmt.Sprintf("dangling machine id %q", m.MachineID), nil))
				}
			}
		}
	}
	for _, inst := range in.JobInstances {
		if _, ok := templates[inst.TemplateID]; !ok {
			errs = multierr.Append(errs, NewModelBuildError(
				fmt.Sprintf("instance:%s", inst.ID), fmt.Sprintf("dangling template id %q", inst.TemplateID), nil))
		}
	}
	for _, m := range in.Machines {
		if _, ok := cells[m.CellID]; !ok {
			errs = multierr.Append(errs, NewModelBuildError(
				fmt.Sprintf("machine:%s", m.ID), fmt.Sprintf("dangling cell id %q", m.CellID), nil))
		}
	}

	setup := make(map[setupKey]int, len(in.SetupMatrix))
	for _, e := range in.SetupMatrix {
		setup[setupKey{e.FromTemplateTaskID, e.ToTemplateTaskID, e.MachineID}] = e.SetupSlots
	}

	criticalPath := make(map[ID]int, len(templates))
	for id, t := range templates {
		criticalPath[id] = templateCriticalPath(t)
	}

	horizon := computeHorizon(in.JobInstances, templates, criticalPath, in.SafetyMarginSlots)
	for _, inst := range in.JobInstances {
		minEnd := inst.EarliestStart + criticalPath[inst.TemplateID]
		if minEnd > horizon {
			errs = multierr.Append(errs, NewModelBuildError(
				fmt.Sprintf("instance:%s", inst.ID), "horizon >= earliest_start + critical_path", nil))
		}
	}

	if errs != nil {
		return nil, errs
	}

	return &Problem{
		Templates:    templates,
		Instances:    append([]Instance(nil), in.JobInstances...),
		Machines:     machines,
		WorkCells:    cells,
		Calendars:    calendars,
		SetupMatrix:  setup,
		Weights:      in.ObjectiveWeights,
		Params:       in.SolverParameters,
		Horizon:      horizon,
		CriticalPath: criticalPath,
		OperatorCapacity: in.OperatorCapacity,
	}, nil
}

// checkAcyclic runs Kahn's algorithm over a template's precedence edges.
func checkAcyclic(t Template) error {
	indeg := make(map[ID]int, len(t.Tasks))
	adj := make(map[ID][]ID, len(t.Tasks))
	for _, task := range t.Tasks {
		indeg[task.ID] = 0
	}
	for _, p := range t.Precedences {
		adj[p.PredecessorTaskID] = append(adj[p.PredecessorTaskID], p.SuccessorTaskID)
		indeg[p.SuccessorTaskID]++
	}

	queue := make([]ID, 0, len(indeg))
	for id, d := range indeg {
		if d == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue) // deterministic order, irrelevant to correctness
	visited := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited++
		for _, succ := range adj[n] {
			indeg[succ]--
			if indeg[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}
	if visited != len(indeg) {
		return fmt.Errorf("cycle detected among %d tasks (%d reachable via topological order)", len(indeg), visited)
	}
	return nil
}

// templateCriticalPath computes the longest path through the template's
// task DAG using each task's minimum mode duration — the redundant
// tightening bound §4.5 item 7 requires and the lower bound NewProblem uses
// to validate horizon sufficiency.
func templateCriticalPath(t Template) int {
	minDur := make(map[ID]int, len(t.Tasks))
	for _, task := range t.Tasks {
		best := 0
		for i, m := range task.Modes {
			if i == 0 || m.DurationSlots < best {
				best = m.DurationSlots
			}
		}
		minDur[task.ID] = best
	}

	adj := make(map[ID][]ID, len(t.Tasks))
	indeg := make(map[ID]int, len(t.Tasks))
	for _, task := range t.Tasks {
		indeg[task.ID] = 0
	}
	for _, p := range t.Precedences {
		adj[p.PredecessorTaskID] = append(adj[p.PredecessorTaskID], p.SuccessorTaskID)
		indeg[p.SuccessorTaskID]++
	}

	order := make([]ID, 0, len(t.Tasks))
	queue := make([]ID, 0, len(t.Tasks))
	for id, d := range indeg {
		if d == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, succ := range adj[n] {
			indeg[succ]--
			if indeg[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}

	end := make(map[ID]int, len(t.Tasks))
	for _, id := range order {
		start := 0
		for _, p := range t.Precedences {
			if p.SuccessorTaskID == id && end[p.PredecessorTaskID] > start {
				start = end[p.PredecessorTaskID]
			}
		}
		end[id] = start + minDur[id]
	}

	return lo.Max(lo.Values(end))
}

// computeHorizon derives H in slots as the maximum over instances of
// max(earliest_start + critical_path, due) + safety_margin, where due is
// skipped for instances without a due date (C1).
func computeHorizon(instances []Instance, templates map[ID]Template, criticalPath map[ID]int, safetyMargin int) int {
	horizon := 0
	for _, inst := range instances {
		candidate := inst.EarliestStart + criticalPath[inst.TemplateID] + safetyMargin
		if inst.DueSlot != nil && *inst.DueSlot+safetyMargin > candidate {
			candidate = *inst.DueSlot + safetyMargin
		}
		if candidate > horizon {
			horizon = candidate
		}
	}
	return horizon
}
