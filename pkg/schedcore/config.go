package schedcore

import (
	"encoding/json"
	"fmt"
	"io"
)

// problemDocument is the wire shape of the Problem input boundary (§6): a
// structured document with tables equivalent to §3's entities, objective
// weights, and solver parameters. It is a thin adapter between JSON and
// ProblemInput — it owns no persisted state and does no validation itself;
// NewProblem does that.
type problemDocument struct {
	JobTemplates      []templateDoc    `json:"job_templates"`
	JobInstances      []Instance       `json:"job_instances"`
	Machines          []Machine        `json:"machines"`
	WorkCells         []WorkCell       `json:"work_cells"`
	BusinessCalendars []calendarDoc    `json:"business_calendars"`
	SetupMatrix       []SetupEdge      `json:"setup_matrix"`
	ObjectiveWeights  ObjectiveWeights `json:"objective_weights"`
	SolverParameters  solverParamsDoc  `json:"solver_parameters"`
	SafetyMarginSlots int              `json:"safety_margin_slots"`
	OperatorCapacity  int              `json:"operator_capacity"`
	EpochWeekday      int              `json:"epoch_weekday"`
}

// templateDoc is the JSON tag layer for §6's job_templates[] /
// template_tasks[] / template_task_modes[] / template_precedences[] tables.
// In this wire format the tables are nested: each job_templates[] entry
// holds its template_tasks[] and template_precedences[], and each task
// holds its template_task_modes[].
type templateDoc struct {
	ID          ID                    `json:"id"`
	Tasks       []templateTaskDoc     `json:"template_tasks"`
	Precedences []TemplatePrecedence  `json:"template_precedences"`
}

type templateTaskDoc struct {
	ID                    ID     `json:"id"`
	Position              int    `json:"position"`
	DepartmentID          ID     `json:"department_id"`
	IsUnattended          bool   `json:"is_unattended"`
	IsSetup               bool   `json:"is_setup"`
	RequiresBusinessHours bool   `json:"requires_business_hours"`
	AllowsOvertime        bool   `json:"allows_overtime"`
	MinOperators          int    `json:"min_operators"`
	MaxOperators          int    `json:"max_operators"`
	Modes                 []Mode `json:"template_task_modes"`
}

type calendarDoc struct {
	ID             ID      `json:"id"`
	WorkingDays    [7]bool `json:"working_days"`
	StartSlotOfDay Slot    `json:"start_slot_of_day"`
	EndSlotOfDay   Slot    `json:"end_slot_of_day"`
}

type solverParamsDoc struct {
	TimeLimitSeconds            uint32 `json:"time_limit_seconds"`
	Workers                     uint8  `json:"workers"`
	RandomSeed                  uint64 `json:"random_seed"`
	Deterministic               bool   `json:"deterministic"`
	EnableSymmetryBreaking      bool   `json:"enable_symmetry_breaking"`
	EnableRedundantCriticalPath bool   `json:"enable_redundant_critical_path"`
}

// LoadProblem decodes r as a problemDocument and converts it to a validated
// Problem. epochWeekday (the real calendar weekday of slot 0) is returned
// alongside since BuildConstraints needs it and it has no other home in the
// immutable Problem value.
func LoadProblem(r io.Reader) (*Problem, int, error) {
	var doc problemDocument
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, 0, fmt.Errorf("schedcore: decode problem document: %w", err)
	}

	templates := make([]Template, 0, len(doc.JobTemplates))
	for _, t := range doc.JobTemplates {
		tasks := make([]TemplateTask, 0, len(t.Tasks))
		for _, task := range t.Tasks {
			tasks = append(tasks, TemplateTask{
				ID:                    task.ID,
				TemplateID:            t.ID,
				Position:              task.Position,
				DepartmentID:          task.DepartmentID,
				IsUnattended:          task.IsUnattended,
				IsSetup:               task.IsSetup,
				RequiresBusinessHours: task.RequiresBusinessHours,
				AllowsOvertime:        task.AllowsOvertime,
				MinOperators:          task.MinOperators,
				MaxOperators:          task.MaxOperators,
				Modes:                 task.Modes,
			})
		}
		templates = append(templates, Template{ID: t.ID, Tasks: tasks, Precedences: t.Precedences})
	}

	calendars := make([]Calendar, 0, len(doc.BusinessCalendars))
	for _, c := range doc.BusinessCalendars {
		calendars = append(calendars, Calendar{
			ID:             c.ID,
			WorkingDays:    c.WorkingDays,
			StartSlotOfDay: c.StartSlotOfDay,
			EndSlotOfDay:   c.EndSlotOfDay,
		})
	}

	in := ProblemInput{
		JobTemplates:      templates,
		JobInstances:      doc.JobInstances,
		Machines:          doc.Machines,
		WorkCells:         doc.WorkCells,
		BusinessCalendars: calendars,
		SetupMatrix:       doc.SetupMatrix,
		ObjectiveWeights:  doc.ObjectiveWeights,
		SafetyMarginSlots: doc.SafetyMarginSlots,
		OperatorCapacity:  doc.OperatorCapacity,
		SolverParameters: SolverParameters{
			TimeLimitSeconds:            doc.SolverParameters.TimeLimitSeconds,
			Workers:                     doc.SolverParameters.Workers,
			RandomSeed:                  doc.SolverParameters.RandomSeed,
			Deterministic:               doc.SolverParameters.Deterministic,
			EnableSymmetryBreaking:      doc.SolverParameters.EnableSymmetryBreaking,
			EnableRedundantCriticalPath: doc.SolverParameters.EnableRedundantCriticalPath,
		},
	}
	if in.SolverParameters == (SolverParameters{}) {
		in.SolverParameters = DefaultSolverParameters()
	}

	p, err := NewProblem(in)
	return p, doc.EpochWeekday, err
}

// solutionDocument is the wire shape of the Solution output boundary (§6):
// the Solution plus per-solve diagnostics.
type solutionDocument struct {
	Status        Status                          `json:"status"`
	Makespan      Slot                            `json:"makespan"`
	TotalLateness float64                          `json:"total_lateness"`
	TotalCost     float64                          `json:"total_cost"`
	InstanceEnd   map[ID]Slot                     `json:"instance_end"`
	TaskPlacement []placementDoc                   `json:"task_placement"`
	Diagnostics   Diagnostics                      `json:"diagnostics"`
	SolveWallMillis int64                          `json:"solve_wall_millis"`
}

type placementDoc struct {
	InstanceID     ID   `json:"instance_id"`
	TemplateTaskID ID   `json:"template_task_id"`
	MachineID      ID   `json:"machine_id"`
	ModeID         ID   `json:"mode_id"`
	Start          Slot `json:"start"`
	End            Slot `json:"end"`
}

// WriteSolution encodes sol to w in the §6 output shape.
func WriteSolution(w io.Writer, sol *Solution) error {
	doc := solutionDocument{
		Status:          sol.Status,
		Makespan:        sol.Makespan,
		TotalLateness:   sol.TotalLateness,
		TotalCost:       sol.TotalCost,
		InstanceEnd:     sol.InstanceEnd,
		Diagnostics:     sol.Diagnostics,
		SolveWallMillis: sol.SolveWallMillis,
	}
	doc.TaskPlacement = make([]placementDoc, 0, len(sol.TaskPlacement))
	for key, p := range sol.TaskPlacement {
		doc.TaskPlacement = append(doc.TaskPlacement, placementDoc{
			InstanceID:     key.InstanceID,
			TemplateTaskID: key.TemplateTaskID,
			MachineID:      p.MachineID,
			ModeID:         p.ModeID,
			Start:          p.Start,
			End:            p.End,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("schedcore: encode solution document: %w", err)
	}
	return nil
}

// LoadHintSolution decodes a previously-written solution document for use as
// a warm-start seed (the CLI's --hint-from flag, §6).
func LoadHintSolution(r io.Reader) (*Solution, error) {
	var doc solutionDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("schedcore: decode hint document: %w", err)
	}
	sol := &Solution{
		Status:        doc.Status,
		Makespan:      doc.Makespan,
		TotalLateness: doc.TotalLateness,
		TotalCost:     doc.TotalCost,
		InstanceEnd:   doc.InstanceEnd,
		Diagnostics:   doc.Diagnostics,
		TaskPlacement: make(map[ExpandedTaskKey]TaskPlacement, len(doc.TaskPlacement)),
	}
	for _, p := range doc.TaskPlacement {
		key := ExpandedTaskKey{InstanceID: p.InstanceID, TemplateTaskID: p.TemplateTaskID}
		sol.TaskPlacement[key] = TaskPlacement{MachineID: p.MachineID, ModeID: p.ModeID, Start: p.Start, End: p.End}
	}
	return sol, nil
}

// HintFromSolution turns a loaded Solution into a Hint for ApplyHint,
// projecting only its task starts.
func HintFromSolution(sol *Solution) Hint {
	starts := make(map[ExpandedTaskKey]Slot, len(sol.TaskPlacement))
	for key, p := range sol.TaskPlacement {
		starts[key] = p.Start
	}
	return Hint{TaskStarts: starts}
}
