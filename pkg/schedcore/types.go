package schedcore

import "runtime"

// ID is a stable, opaque identifier. All entity identifiers in the data
// model are IDs unless otherwise noted (§3).
type ID = string

// Slot is a non-negative integer count of 15-minute units since a Problem's
// epoch (C1, GLOSSARY).
type Slot = int

// TemplateTask is a step in a job template's blueprint (§3).
type TemplateTask struct {
	ID                    ID
	TemplateID            ID
	Position              int // symmetry-breaking hint only, not a hard order
	DepartmentID          ID
	IsUnattended          bool
	IsSetup               bool
	RequiresBusinessHours bool
	AllowsOvertime        bool
	MinOperators          int
	MaxOperators          int
	Modes                 []Mode
}

// Mode is a (machine, duration) alternative for a template task. Exactly
// one mode is selected per expanded task (§3, §4.4). Decoded directly from
// the wire document's template_task_modes[] (config.go), hence json tags.
type Mode struct {
	ID             ID  `json:"id"`
	TemplateTaskID ID  `json:"template_task_id"`
	MachineID      ID  `json:"machine_id"`
	DurationSlots  int `json:"duration_slots"`
}

// TemplatePrecedence is a directed edge in a template's task DAG (§3
// invariant 4): predecessor must finish before successor starts, replicated
// per instance. Decoded directly from template_precedences[] (config.go).
type TemplatePrecedence struct {
	TemplateID        ID `json:"template_id"`
	PredecessorTaskID ID `json:"predecessor_task_id"`
	SuccessorTaskID   ID `json:"successor_task_id"`
}

// Template is a reusable job blueprint (§3).
type Template struct {
	ID           ID
	Tasks        []TemplateTask
	Precedences  []TemplatePrecedence
}

// Instance is a concrete occurrence of a template (§3). Decoded directly
// from job_instances[] (config.go).
type Instance struct {
	ID             ID       `json:"id"`
	TemplateID     ID       `json:"template_id"`
	Priority       int      `json:"priority"`
	DueSlot        *Slot    `json:"due_slot"`             // nil when there is no due date
	EarliestStart  Slot     `json:"earliest_start_slot"`
	WeightLateness *float64 `json:"weight_lateness"`      // nil: default to Priority, falling back to 1 (§9 (b))
	Quantity       int      `json:"quantity"`
}

// Machine is a physical resource belonging to a work cell (§3). Decoded
// directly from machines[] (config.go).
type Machine struct {
	ID             ID      `json:"id"`
	CellID         ID      `json:"cell_id"`
	Capacity       int     `json:"capacity"`
	CalendarID     ID      `json:"calendar_id"`
	SetupMatrixKey ID      `json:"setup_matrix_key"`
	CostPerHour    float64 `json:"cost_per_hour"`
}

// WorkCell groups machines under a concurrency limit (§3). Decoded directly
// from work_cells[] (config.go).
type WorkCell struct {
	ID                    ID  `json:"id"`
	MaxConcurrentMachines int `json:"max_concurrent_machines"`
}

// SetupEdge is one sparse entry of the setup-time matrix (§3): the slots
// needed to retool machine MachineID from FromTemplateTaskID to
// ToTemplateTaskID. Absent
// pairs default to zero setup. Decoded directly from setup_matrix[]
// (config.go).
type SetupEdge struct {
	FromTemplateTaskID ID  `json:"from_template_task_id"`
	ToTemplateTaskID   ID  `json:"to_template_task_id"`
	MachineID          ID  `json:"machine_id"`
	SetupSlots         int `json:"setup_slots"`
}

// Calendar produces an Allowed(slot) predicate over a horizon (§3, C2). All
// calendars share the Problem-level epochWeekday alignment (BuildConstraints'
// argument); there is no per-calendar timezone in the wire format (§6 has no
// "timezone" key under business_calendars[]), so there is nothing here to
// hold one.
type Calendar struct {
	ID             ID
	WorkingDays    [7]bool // index 0 = Sunday, matching time.Weekday
	StartSlotOfDay Slot
	EndSlotOfDay   Slot
}

// ObjectiveWeights parameterizes the two-phase pipeline (C6, §4.6). Wire
// tags match §6's documented objective_weights{makespan, lateness, cost,
// epsilon} shape exactly — note the wire key is "cost", not "cost_weight".
type ObjectiveWeights struct {
	Makespan   float64 `json:"makespan"`
	Lateness   float64 `json:"lateness"`
	CostWeight float64 `json:"cost"`
	Epsilon    float64 `json:"epsilon"` // lexicographic tolerance for phase 2, default 0, max 0.1
}

// SolverParameters is the explicit, enumerated configuration struct §9
// requires in place of open-ended key/value config.
type SolverParameters struct {
	TimeLimitSeconds             uint32
	Workers                      uint8
	RandomSeed                   uint64
	Deterministic                bool
	EnableSymmetryBreaking       bool
	EnableRedundantCriticalPath  bool
}

// DefaultSolverParameters returns sane defaults: 8 workers (or fewer cores),
// a 30s time limit, symmetry breaking and redundant tightening both on.
func DefaultSolverParameters() SolverParameters {
	return SolverParameters{
		TimeLimitSeconds:            30,
		Workers:                     uint8(min(8, runtime.NumCPU())),
		RandomSeed:                  1,
		Deterministic:               false,
		EnableSymmetryBreaking:      true,
		EnableRedundantCriticalPath: true,
	}
}

// ExpandedTaskKey identifies one (instance, template task) pair — the unit
// of scheduling the Template Expander produces (C4).
type ExpandedTaskKey struct {
	InstanceID     ID
	TemplateTaskID ID
}

// TaskPlacement is the solved assignment for one expanded task (C8, §6).
type TaskPlacement struct {
	MachineID ID
	ModeID    ID
	Start     Slot
	End       Slot
}

// Diagnostics accumulates per-solve metrics the external interface (§6)
// asks for: variable/constraint counts from model construction and
// conflict/branch/wall-clock figures from the engine's response.
type Diagnostics struct {
	RunID       string
	Variables   int
	Constraints int
	Conflicts   int64
	Branches    int64
	WallMillis  int64
}

// Solution is the immutable result of one solve (C8, §4.8).
type Solution struct {
	Status         Status
	InstanceEnd    map[ID]Slot
	TaskPlacement  map[ExpandedTaskKey]TaskPlacement
	Makespan       Slot
	TotalLateness  float64
	TotalCost      float64
	SolveWallMillis int64
	Diagnostics    Diagnostics
}

// Clone returns a deep copy, used by SolutionCache so cached solutions are
// never mutated by a caller holding the returned value (§5 copy-on-read).
func (s *Solution) Clone() *Solution {
	if s == nil {
		return nil
	}
	out := *s
	out.InstanceEnd = make(map[ID]Slot, len(s.InstanceEnd))
	for k, v := range s.InstanceEnd {
		out.InstanceEnd[k] = v
	}
	out.TaskPlacement = make(map[ExpandedTaskKey]TaskPlacement, len(s.TaskPlacement))
	for k, v := range s.TaskPlacement {
		out.TaskPlacement[k] = v
	}
	return &out
}
