package main

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/cs3238-tsuzu/movesync-online/internal/input"
	"github.com/cs3238-tsuzu/movesync-online/internal/movement"
)

var keyBindings = []struct {
	key    ebiten.Key
	intent movement.Intent
}{
	{ebiten.KeyW, movement.Forward},
	{ebiten.KeyArrowUp, movement.Forward},
	{ebiten.KeyS, movement.Backward},
	{ebiten.KeyArrowDown, movement.Backward},
	{ebiten.KeyA, movement.Left},
	{ebiten.KeyArrowLeft, movement.Left},
	{ebiten.KeyD, movement.Right},
	{ebiten.KeyArrowRight, movement.Right},
}

// applyKeyEdges forwards this frame's key presses and releases to in. An
// intent is released only when none of its keys is still held.
func applyKeyEdges(in *input.State) {
	for _, b := range keyBindings {
		if inpututil.IsKeyJustPressed(b.key) {
			in.Press(b.intent)
		}
	}

	for _, b := range keyBindings {
		if inpututil.IsKeyJustReleased(b.key) && !held(b.intent) {
			in.Release(b.intent)
		}
	}
}

func held(intent movement.Intent) bool {
	for _, b := range keyBindings {
		if b.intent == intent && ebiten.IsKeyPressed(b.key) {
			return true
		}
	}
	return false
}
