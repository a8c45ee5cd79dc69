package main

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/cs3238-tsuzu/movesync-online/internal/movement"
)

// pixelsPerUnit is how many pixels one unit of world distance spans.
const pixelsPerUnit = screenHeight / 4

// Avatar draws a participant at a world position. The world origin is the
// centre of the screen and y grows upwards.
type Avatar struct {
	image *ebiten.Image
	tint  color.Color
}

func NewAvatar(image *ebiten.Image, tint color.Color) *Avatar {
	return &Avatar{image: image, tint: tint}
}

func toScreen(p movement.Position) (float32, float32) {
	return screenWidth/2 + p.X*pixelsPerUnit, screenHeight/2 - p.Y*pixelsPerUnit
}

func (a *Avatar) Draw(screen *ebiten.Image, p movement.Position) {
	x, y := toScreen(p)

	if a.image == nil {
		vector.DrawFilledCircle(screen, x, y, 12, a.tint, true)
		return
	}

	w, h := a.image.Bounds().Dx(), a.image.Bounds().Dy()
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(-float64(w)/2.0, -float64(h)/2.0)
	op.GeoM.Translate(float64(x), float64(y))
	op.ColorScale.ScaleWithColor(a.tint)
	op.Filter = ebiten.FilterLinear
	screen.DrawImage(a.image, op)
}
