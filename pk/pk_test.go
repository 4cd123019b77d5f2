package pk

import "testing"

func TestSpecSingleAndContains(t *testing.T) {
	s := New("id")
	if !s.Single() {
		t.Fatalf("expected single-column spec")
	}
	if !s.Contains("id") || s.Contains("name") {
		t.Fatalf("Contains behaved unexpectedly: %v", s)
	}
}

func TestSpecRename(t *testing.T) {
	s := New("student_id", "course_id")
	renamed := s.Rename("student_id", "learner_id")
	want := New("learner_id", "course_id")
	if renamed.String() != want.String() {
		t.Fatalf("got %v, want %v", renamed, want)
	}
	// original untouched
	if s.String() != "student_id,course_id" {
		t.Fatalf("Rename mutated original spec: %v", s)
	}
}

func TestValueKeyStableAndDistinguishesTypes(t *testing.T) {
	a := Of(int64(1))
	b := Of(int64(1))
	if a.Key() != b.Key() {
		t.Fatalf("expected equal keys for equal values")
	}
	c := Of("1")
	if a.Key() == c.Key() {
		t.Fatalf("expected distinct keys for distinct types")
	}
}

func TestValueKeyComposite(t *testing.T) {
	a := Of(int64(101), "CS101")
	b := Of(int64(102), "CS101")
	if a.Key() == b.Key() {
		t.Fatalf("expected distinct composite keys")
	}
}

func TestValueEqual(t *testing.T) {
	a := Of(int64(1), "x")
	b := Of(int64(1), "x")
	c := Of(int64(2), "x")
	if !a.Equal(b) {
		t.Fatalf("expected a == b")
	}
	if a.Equal(c) {
		t.Fatalf("expected a != c")
	}
}
