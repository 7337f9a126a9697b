package session_test

import (
	"testing"

	"github.com/labscript-suite/lyse-go/session"
)

func TestStagingEmbedded(t *testing.T) {
	c := session.NewEmbedded()
	c.StageResult("/data/a.shot", "fit", "amplitude", 3.2)
	c.StageResult("/data/a.shot", "fit", "width", 0.5)
	c.StageResult("/data/b.shot", "fit", "amplitude", 1.0)

	pending := c.Pending("/data/a.shot")
	if len(pending) != 2 {
		t.Fatalf("pending = %v, want 2 entries", pending)
	}
	if pending[session.ResultKey{Group: "fit", Name: "amplitude"}] != 3.2 {
		t.Errorf("amplitude = %v", pending[session.ResultKey{Group: "fit", Name: "amplitude"}])
	}

	taken := c.TakePending("/data/a.shot")
	if len(taken) != 2 {
		t.Fatalf("taken = %v", taken)
	}
	if len(c.Pending("/data/a.shot")) != 0 {
		t.Error("pending not cleared")
	}
	if len(c.Pending("/data/b.shot")) != 1 {
		t.Error("other file's staged results were disturbed")
	}
}

func TestStagingStandaloneIsNoop(t *testing.T) {
	c := session.New()
	c.StageResult("/data/a.shot", "fit", "amplitude", 3.2)
	if len(c.Pending("/data/a.shot")) != 0 {
		t.Error("standalone session staged a result")
	}
}

func TestPlotClasses(t *testing.T) {
	type fancyPlot struct{}

	c := session.NewEmbedded()
	c.RegisterPlotClass("fit", fancyPlot{})
	if _, ok := c.PlotClass("fit"); !ok {
		t.Error("plot class not registered")
	}

	standalone := session.New()
	standalone.RegisterPlotClass("fit", fancyPlot{})
	if _, ok := standalone.PlotClass("fit"); ok {
		t.Error("standalone session registered a plot class")
	}
}

func TestDelayFlag(t *testing.T) {
	c := session.NewEmbedded()
	if c.DelayRequested() {
		t.Fatal("delay set before request")
	}
	c.DelayResultsReturn()
	if !c.DelayRequested() {
		t.Error("delay not recorded")
	}

	standalone := session.New()
	standalone.DelayResultsReturn()
	if standalone.DelayRequested() {
		t.Error("standalone session recorded delay")
	}
}

func TestReset(t *testing.T) {
	c := session.NewEmbedded()
	c.StageResult("/a", "g", "n", 1)
	c.RegisterPlotClass("p", struct{}{})
	c.DelayResultsReturn()
	c.Storage().Set("iteration", 7)

	c.Reset()

	if len(c.Pending("/a")) != 0 || c.DelayRequested() {
		t.Error("reset left staged state")
	}
	if _, ok := c.PlotClass("p"); ok {
		t.Error("reset left plot classes")
	}
	if _, ok := c.Storage().Get("iteration"); ok {
		t.Error("reset left storage")
	}
}

func TestStorage(t *testing.T) {
	c := session.New()
	s := c.Storage()

	s.Set("counter", 3)
	if v, ok := session.Value[int](s, "counter"); !ok || v != 3 {
		t.Errorf("Value[int] = %v, %v", v, ok)
	}
	if _, ok := session.Value[string](s, "counter"); ok {
		t.Error("wrong-type lookup succeeded")
	}
	s.Delete("counter")
	if _, ok := s.Get("counter"); ok {
		t.Error("delete did not remove the value")
	}
}
