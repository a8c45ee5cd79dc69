package input

import (
	"testing"

	"github.com/cs3238-tsuzu/movesync-online/internal/movement"
)

func TestPressReleaseIdempotent(t *testing.T) {
	var s State

	s.Press(movement.Forward)
	s.Press(movement.Forward)
	if !s.Forward || !s.AnyActive() {
		t.Fatalf("forward not active after press: %+v", s)
	}

	s.Release(movement.Forward)
	s.Release(movement.Forward)
	if s.AnyActive() {
		t.Fatalf("state still active after release: %+v", s)
	}

	s.Press(movement.None)
	if s.AnyActive() {
		t.Fatalf("pressing None changed state: %+v", s)
	}
}

func TestActiveFixedOrder(t *testing.T) {
	var s State
	s.Press(movement.Right)
	s.Press(movement.Left)
	s.Press(movement.Forward)

	got := s.Active(nil)
	want := []movement.Intent{movement.Forward, movement.Left, movement.Right}
	if len(got) != len(want) {
		t.Fatalf("Active = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Active = %v, want %v", got, want)
		}
	}
}

func TestReset(t *testing.T) {
	s := State{Forward: true, Backward: true, Left: true, Right: true}
	s.Reset()
	if s.AnyActive() || len(s.Active(nil)) != 0 {
		t.Fatalf("Reset left keys pressed: %+v", s)
	}
}
