package main

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dd0wney/cluso-nodegraph/pkg/demo"
	"github.com/dd0wney/cluso-nodegraph/pkg/eval"
	"github.com/dd0wney/cluso-nodegraph/pkg/metrics"
	"github.com/dd0wney/cluso-nodegraph/pkg/ops"
)

func newTestModel(t *testing.T, name string) model {
	t.Helper()

	reg, err := ops.NewRegistry()
	if err != nil {
		t.Fatal(err)
	}
	d, _ := demo.Lookup(name)
	lib, err := d.Build(reg)
	if err != nil {
		t.Fatal(err)
	}
	m := metrics.NewRegistry()
	e, err := eval.New(lib, reg, eval.WithMetrics(m))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(e.Close)

	mdl := initialModel(d, lib, e, m)
	next, _ := mdl.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(model)
}

func run(m model, cmd tea.Cmd) model {
	next, _ := m.Update(cmd())
	return next.(model)
}

func TestModel_EvaluateAndEdit(t *testing.T) {
	m := newTestModel(t, "numbers")

	m = run(m, m.evaluate(""))
	if len(m.history) != 1 || m.history[0].err != nil {
		t.Fatalf("first pass = %+v", m.history)
	}
	if m.messageErr {
		t.Errorf("unexpected error message %q", m.message)
	}

	m.currentView = editView
	m.syncFocus()
	m.editInput.SetValue("range1.end=10")
	desc, ok := m.applyEdit()
	if !ok {
		t.Fatalf("applyEdit failed: %s", m.message)
	}
	m = run(m, m.evaluate(desc))

	if len(m.history) != 2 {
		t.Fatalf("got %d passes, want 2", len(m.history))
	}
	second := m.history[1]
	if second.edit != "set range1.end = 10" {
		t.Errorf("edit = %q", second.edit)
	}
	if second.result.Equal(m.history[0].result) {
		t.Error("edit did not change the result")
	}

	m.editInput.SetValue("range1.end=far")
	if _, ok := m.applyEdit(); ok || !m.messageErr {
		t.Error("expected rejected edit")
	}
}

func TestModel_Views(t *testing.T) {
	m := newTestModel(t, "compound")
	m = run(m, m.evaluate(""))

	want := map[view]string{
		networkView: "compound1/translate1",
		resultView:  "paths",
		editView:    "Edit Parameter",
		metricsView: "nodegraph_evaluations_total",
	}
	for v, s := range want {
		m.currentView = v
		if out := m.View(); !strings.Contains(out, s) {
			t.Errorf("view %s missing %q", tabNames[v], s)
		}
	}
}
