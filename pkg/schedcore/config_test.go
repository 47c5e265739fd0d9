package schedcore

import (
	"bytes"
	"strings"
	"testing"
)

// problemDocumentJSON is a minimal but complete §6 wire document: one
// machine with a cost, one linear two-task template, one instance, and an
// objective_weights block using the documented "cost" key (not
// "cost_weight") so decoding exercises the real wire shape end to end.
const problemDocumentJSON = `{
  "job_templates": [
    {
      "id": "tmpl-1",
      "template_tasks": [
        {"id": "t1", "position": 0, "template_task_modes": [{"id": "m1", "template_task_id": "t1", "machine_id": "M1", "duration_slots": 2}]},
        {"id": "t2", "position": 1, "template_task_modes": [{"id": "m2", "template_task_id": "t2", "machine_id": "M1", "duration_slots": 2}]}
      ],
      "template_precedences": [{"template_id": "tmpl-1", "predecessor_task_id": "t1", "successor_task_id": "t2"}]
    }
  ],
  "job_instances": [{"id": "J1", "template_id": "tmpl-1", "earliest_start_slot": 0}],
  "machines": [{"id": "M1", "cell_id": "C1", "capacity": 1, "cost_per_hour": 10}],
  "work_cells": [{"id": "C1", "max_concurrent_machines": 1}],
  "objective_weights": {"makespan": 1, "lateness": 1, "cost": 2, "epsilon": 0.05},
  "safety_margin_slots": 10
}`

func TestLoadProblem_DecodesCostNotCostWeight(t *testing.T) {
	p, _, err := LoadProblem(strings.NewReader(problemDocumentJSON))
	if err != nil {
		t.Fatalf("LoadProblem: %v", err)
	}
	if p.Weights.CostWeight != 2 {
		t.Fatalf("CostWeight = %v, want 2 (wire key is \"cost\", not \"cost_weight\")", p.Weights.CostWeight)
	}
	if p.Weights.Epsilon != 0.05 {
		t.Fatalf("Epsilon = %v, want 0.05", p.Weights.Epsilon)
	}
}

func TestLoadProblem_CostWeightDrivesPhase2(t *testing.T) {
	p, _, err := LoadProblem(strings.NewReader(problemDocumentJSON))
	if err != nil {
		t.Fatalf("LoadProblem: %v", err)
	}

	exp, err := Expand(p)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	bm, err := BuildConstraints(p, exp, 1)
	if err != nil {
		t.Fatalf("BuildConstraints: %v", err)
	}
	_, phase1 := bm.BuildPhase1Objective()

	if !bm.BuildPhase2Objective(phase1, 4, p.Weights.Epsilon) {
		t.Fatal("expected BuildPhase2Objective to engage: cost=2 and M1 has a positive cost_per_hour")
	}
}

func TestWriteSolution_RoundTripsStatusAndPlacements(t *testing.T) {
	sol := &Solution{
		Status:   StatusOptimal,
		Makespan: 8,
		TaskPlacement: map[ExpandedTaskKey]TaskPlacement{
			{InstanceID: "J1", TemplateTaskID: "t1"}: {MachineID: "M1", ModeID: "m1", Start: 0, End: 2},
		},
		Diagnostics: Diagnostics{RunID: "test-run"},
	}

	var buf bytes.Buffer
	if err := WriteSolution(&buf, sol); err != nil {
		t.Fatalf("WriteSolution: %v", err)
	}

	got, err := LoadHintSolution(&buf)
	if err != nil {
		t.Fatalf("LoadHintSolution: %v", err)
	}
	if got.Status != StatusOptimal || got.Makespan != 8 {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
	placement, ok := got.TaskPlacement[ExpandedTaskKey{InstanceID: "J1", TemplateTaskID: "t1"}]
	if !ok || placement.Start != 0 || placement.End != 2 {
		t.Fatalf("placement round-trip mismatch: %+v", got.TaskPlacement)
	}
}
