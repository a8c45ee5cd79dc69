// Package movement maps movement intents to their one-byte wire codes and
// to the position delta the local participant applies for them.
package movement

// Speed is the distance moved along one axis per code.
const Speed float32 = 0.05

type Intent int

const (
	None Intent = iota
	Forward
	Backward
	Left
	Right
)

// Directions lists the directional intents in the order the driver applies them.
var Directions = [...]Intent{Forward, Backward, Left, Right}

func (i Intent) String() string {
	switch i {
	case None:
		return "none"
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return "unknown"
}

// Code is the byte sent on the wire for one intent.
type Code = byte

const (
	CodeNone     Code = 0
	CodeForward  Code = 1
	CodeBackward Code = 2
	CodeLeft     Code = 3
	CodeRight    Code = 4
)

type Delta struct {
	DX, DY float32
}

type Position struct {
	X, Y float32
}

func (p Position) Add(d Delta) Position {
	return Position{X: p.X + d.DX, Y: p.Y + d.DY}
}

// Encode returns the code and delta for i. Values outside the known set
// encode like None.
func Encode(i Intent) (Code, Delta) {
	switch i {
	case Forward:
		return CodeForward, Delta{DY: Speed}
	case Backward:
		return CodeBackward, Delta{DY: -Speed}
	case Left:
		return CodeLeft, Delta{DX: -Speed}
	case Right:
		return CodeRight, Delta{DX: Speed}
	}
	return CodeNone, Delta{}
}

// Decode is the inverse of Encode. ok is false for bytes that are not a
// movement code.
func Decode(c Code) (i Intent, ok bool) {
	switch c {
	case CodeNone:
		return None, true
	case CodeForward:
		return Forward, true
	case CodeBackward:
		return Backward, true
	case CodeLeft:
		return Left, true
	case CodeRight:
		return Right, true
	}
	return None, false
}
