package run_test

import (
	"errors"
	"testing"

	"github.com/labscript-suite/lyse-go/frame"
	"github.com/labscript-suite/lyse-go/run"
	"github.com/labscript-suite/lyse-go/shotfile"
)

func newSequence(t *testing.T, memberPaths []string) *run.Sequence {
	t.Helper()
	seq, err := run.NewSequence(newEmptyShot(t), memberPaths, run.WithGroup("aggregate"))
	if err != nil {
		t.Fatal(err)
	}
	return seq
}

func TestSequenceTraceFanOut(t *testing.T) {
	paths := []string{newShot(t), newShot(t), newShot(t)}
	seq := newSequence(t, paths)

	traces, err := seq.Trace("photodiode")
	if err != nil {
		t.Fatal(err)
	}
	if len(traces) != 3 {
		t.Fatalf("got %d traces, want 3", len(traces))
	}
	for p, tr := range traces {
		if len(tr.T) != 3 {
			t.Errorf("member %s: trace length %d", p, len(tr.T))
		}
	}
}

func TestSequenceEmptyTraces(t *testing.T) {
	// No member has a traces group; every member yields an empty trace.
	paths := []string{newEmptyShot(t), newEmptyShot(t), newEmptyShot(t)}
	seq := newSequence(t, paths)
	traces, err := seq.Trace("photodiode")
	if err != nil {
		t.Fatal(err)
	}
	for p, tr := range traces {
		if len(tr.T) != 0 || len(tr.Values) != 0 {
			t.Errorf("member %s: trace = %+v, want empty", p, tr)
		}
	}
}

func TestSequenceResultArray(t *testing.T) {
	paths := []string{newShot(t), newShot(t)}
	seq := newSequence(t, paths)
	arrays, err := seq.ResultArray("fit", "profile")
	if err != nil {
		t.Fatal(err)
	}
	if len(arrays) != 2 {
		t.Fatalf("got %d arrays, want 2", len(arrays))
	}
}

func TestSequenceSavesToOwnFile(t *testing.T) {
	memberPath := newShot(t)
	seqPath := newEmptyShot(t)
	seq, err := run.NewSequence(seqPath, []string{memberPath}, run.WithGroup("aggregate"))
	if err != nil {
		t.Fatal(err)
	}
	if seq.IsReadOnly() {
		t.Fatal("sequence unexpectedly read-only")
	}
	if seq.Group() != "aggregate" {
		t.Fatalf("Group = %q", seq.Group())
	}

	// Sequence-wide results land in the sequence's own results group.
	if err := seq.SaveResult("mean_amplitude", 2.7); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	check, err := run.New(seqPath, run.ReadOnly())
	if err != nil {
		t.Fatal(err)
	}
	v, err := check.Result("aggregate", "mean_amplitude")
	if err != nil || v != 2.7 {
		t.Errorf("mean_amplitude = %v, %v", v, err)
	}

	// The member file gained no aggregate group.
	member, err := run.New(memberPath, run.ReadOnly())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := member.Result("aggregate", "mean_amplitude"); !errors.Is(err, shotfile.ErrGroupNotFound) {
		t.Errorf("member err = %v, want ErrGroupNotFound", err)
	}
}

func TestSequenceMembersAreReadOnly(t *testing.T) {
	seq := newSequence(t, []string{newShot(t)})
	r, ok := seq.Member(seq.Paths()[0])
	if !ok {
		t.Fatal("member run missing")
	}
	if err := r.SaveResult("x", 1.0); !errors.Is(err, shotfile.ErrReadOnly) {
		t.Errorf("err = %v, want ErrReadOnly", err)
	}
}

func TestSequenceUnsupported(t *testing.T) {
	seq := newSequence(t, nil)
	if _, err := seq.Traces("a"); !errors.Is(err, shotfile.ErrUnsupported) {
		t.Errorf("Traces: err = %v", err)
	}
	if _, err := seq.ResultArrays("g", "a"); !errors.Is(err, shotfile.ErrUnsupported) {
		t.Errorf("ResultArrays: err = %v", err)
	}
	if _, err := seq.Image("top", "abs", "f"); !errors.Is(err, shotfile.ErrUnsupported) {
		t.Errorf("Image: err = %v", err)
	}
}

func TestSequenceFromFrame(t *testing.T) {
	p1, p2 := newShot(t), newShot(t)
	f, err := frame.New(
		[][]string{{"filepath"}, {"sequence"}},
		[][]any{{p1, "s1"}, {p2, "s1"}},
	)
	if err != nil {
		t.Fatal(err)
	}
	seq, err := run.NewSequenceFromFrame(newEmptyShot(t), f, run.WithGroup("aggregate"))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{p1, p2}
	got := seq.Paths()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Paths = %v, want %v", got, want)
	}

	t.Run("non-string cell rejected", func(t *testing.T) {
		bad, err := frame.New([][]string{{"filepath"}}, [][]any{{42.0}})
		if err != nil {
			t.Fatal(err)
		}
		_, err = run.NewSequenceFromFrame(newEmptyShot(t), bad, run.WithGroup("aggregate"))
		if !errors.Is(err, shotfile.ErrBadValue) {
			t.Errorf("err = %v, want ErrBadValue", err)
		}
	})
}
