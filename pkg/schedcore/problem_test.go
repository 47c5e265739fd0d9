package schedcore

import "testing"

func simpleTemplate() Template {
	return Template{
		ID: "tmpl-1",
		Tasks: []TemplateTask{
			{ID: "t1", TemplateID: "tmpl-1", Position: 0, Modes: []Mode{{ID: "m1", TemplateTaskID: "t1", MachineID: "M1", DurationSlots: 2}}},
			{ID: "t2", TemplateID: "tmpl-1", Position: 1, Modes: []Mode{{ID: "m2", TemplateTaskID: "t2", MachineID: "M1", DurationSlots: 2}}},
		},
		Precedences: []TemplatePrecedence{{TemplateID: "tmpl-1", PredecessorTaskID: "t1", SuccessorTaskID: "t2"}},
	}
}

func baseInput() ProblemInput {
	return ProblemInput{
		JobTemplates: []Template{simpleTemplate()},
		JobInstances: []Instance{{ID: "J1", TemplateID: "tmpl-1", EarliestStart: 0}},
		Machines:     []Machine{{ID: "M1", CellID: "C1", Capacity: 1}},
		WorkCells:    []WorkCell{{ID: "C1", MaxConcurrentMachines: 1}},
	}
}

func TestNewProblem_Valid(t *testing.T) {
	p, err := NewProblem(baseInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.CriticalPath["tmpl-1"] != 4 {
		t.Fatalf("critical path = %d, want 4", p.CriticalPath["tmpl-1"])
	}
	if p.Horizon < 4 {
		t.Fatalf("horizon = %d, want >= 4", p.Horizon)
	}
}

func TestNewProblem_RejectsCycle(t *testing.T) {
	in := baseInput()
	tmpl := in.JobTemplates[0]
	tmpl.Precedences = append(tmpl.Precedences, TemplatePrecedence{TemplateID: "tmpl-1", PredecessorTaskID: "t2", SuccessorTaskID: "t1"})
	in.JobTemplates[0] = tmpl

	if _, err := NewProblem(in); err == nil {
		t.Fatal("expected cycle to be rejected")
	}
}

func TestNewProblem_RejectsEmptyModeList(t *testing.T) {
	in := baseInput()
	tmpl := in.JobTemplates[0]
	tmpl.Tasks[0].Modes = nil
	in.JobTemplates[0] = tmpl

	if _, err := NewProblem(in); err == nil {
		t.Fatal("expected empty mode list to be rejected")
	}
}

func TestNewProblem_RejectsDanglingMachine(t *testing.T) {
	in := baseInput()
	in.Machines = nil

	if _, err := NewProblem(in); err == nil {
		t.Fatal("expected dangling machine id to be rejected")
	}
}

func TestNewProblem_RejectsDanglingTemplate(t *testing.T) {
	in := baseInput()
	in.JobInstances[0].TemplateID = "does-not-exist"

	if _, err := NewProblem(in); err == nil {
		t.Fatal("expected dangling template id to be rejected")
	}
}

func TestNewProblem_AggregatesMultipleErrors(t *testing.T) {
	in := baseInput()
	in.Machines = nil
	in.JobInstances[0].TemplateID = "does-not-exist"

	_, err := NewProblem(in)
	if err == nil {
		t.Fatal("expected aggregated error")
	}
}

func TestWeightLateness_Defaults(t *testing.T) {
	explicit := 3.5
	withWeight := Instance{WeightLateness: &explicit}
	if got := WeightLateness(withWeight); got != 3.5 {
		t.Fatalf("explicit weight = %v, want 3.5", got)
	}

	withPriority := Instance{Priority: 2}
	if got := WeightLateness(withPriority); got != 2 {
		t.Fatalf("priority fallback = %v, want 2", got)
	}

	plain := Instance{}
	if got := WeightLateness(plain); got != 1 {
		t.Fatalf("default fallback = %v, want 1", got)
	}
}
