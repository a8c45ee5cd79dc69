// Package input holds the directional key state sampled once per tick.
package input

import "github.com/cs3238-tsuzu/movesync-online/internal/movement"

// State is written by the key event handler and read by the driver on the
// same goroutine; it carries no lock.
type State struct {
	Forward, Backward, Left, Right bool
}

func (s *State) Press(i movement.Intent) { s.set(i, true) }

func (s *State) Release(i movement.Intent) { s.set(i, false) }

// Reset releases every direction.
func (s *State) Reset() { *s = State{} }

func (s *State) set(i movement.Intent, v bool) {
	switch i {
	case movement.Forward:
		s.Forward = v
	case movement.Backward:
		s.Backward = v
	case movement.Left:
		s.Left = v
	case movement.Right:
		s.Right = v
	}
}

func (s *State) Pressed(i movement.Intent) bool {
	switch i {
	case movement.Forward:
		return s.Forward
	case movement.Backward:
		return s.Backward
	case movement.Left:
		return s.Left
	case movement.Right:
		return s.Right
	}
	return false
}

func (s *State) AnyActive() bool {
	return s.Forward || s.Backward || s.Left || s.Right
}

// Active appends the pressed directions to dst in movement.Directions order.
func (s *State) Active(dst []movement.Intent) []movement.Intent {
	for _, d := range movement.Directions {
		if s.Pressed(d) {
			dst = append(dst, d)
		}
	}

	return dst
}
