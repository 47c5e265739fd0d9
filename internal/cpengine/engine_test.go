package cpengine

import (
	"context"
	"testing"
	"time"

	cmpb "github.com/google/or-tools/ortools/sat/proto/cpmodel"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		in   cmpb.CpSolverStatus
		want Status
	}{
		{cmpb.CpSolverStatus_OPTIMAL, StatusOptimal},
		{cmpb.CpSolverStatus_FEASIBLE, StatusFeasibleWithinLimit},
		{cmpb.CpSolverStatus_INFEASIBLE, StatusInfeasible},
		{cmpb.CpSolverStatus_MODEL_INVALID, StatusModelInvalid},
		{cmpb.CpSolverStatus_UNKNOWN, StatusUnknown},
	}
	for _, c := range cases {
		if got := classify(c.in); got != c.want {
			t.Errorf("classify(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestStatus_String(t *testing.T) {
	cases := map[Status]string{
		StatusOptimal:             "Optimal",
		StatusFeasibleWithinLimit: "FeasibleWithinLimit",
		StatusInfeasible:          "Infeasible",
		StatusModelInvalid:        "ModelInvalid",
		StatusUnknown:             "Unknown",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", status, got, want)
		}
	}
}

// TestSolve_CancelledContextReturnsPromptly builds a trivial, unconstrained
// model and solves it with an already-expired context. Solve must translate
// ctx cancellation into model.StopSearch() rather than blocking until the
// (generous) time limit elapses.
func TestSolve_CancelledContextReturnsPromptly(t *testing.T) {
	m := NewModel()
	v := m.NewIntVar(0, 1000)
	m.Minimize(m.Offset(v, 0))

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	done := make(chan struct{})
	var resp *Response
	var err error
	go func() {
		resp, err = Solve(ctx, m, Params{TimeLimit: time.Minute, Workers: 1}, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Solve did not return promptly after ctx cancellation")
	}

	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	switch resp.Status {
	case StatusOptimal, StatusFeasibleWithinLimit, StatusUnknown, StatusInfeasible:
	default:
		t.Fatalf("unexpected status after cancellation: %v", resp.Status)
	}
}
