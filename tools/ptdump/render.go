package main

import (
	"image/color"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"
)

const (
	renderColumns = 64
	renderGap     = 1
)

var stateColors = map[FrameState]color.RGBA{
	FrameFree:      {R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff},
	FrameUsed:      {R: 0x3b, G: 0x82, B: 0xf6, A: 0xff},
	FrameTable:     {R: 0xf5, G: 0x9e, B: 0x0b, A: 0xff},
	FrameBootTable: {R: 0xdc, G: 0x26, B: 0x26, A: 0xff},
	FrameReserved:  {R: 0x4b, G: 0x55, B: 0x63, A: 0xff},
}

// RenderFrames draws one cellSize x cellSize square per RAM frame, laid out
// in rows of renderColumns frames, colored by frame state.
func RenderFrames(states []FrameState, cellSize int) *gg.Context {
	rows := (len(states) + renderColumns - 1) / renderColumns
	if rows == 0 {
		rows = 1
	}

	pitch := cellSize + renderGap
	dc := gg.NewContext(renderColumns*pitch+renderGap, rows*pitch+renderGap)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	for index, state := range states {
		x := renderGap + (index%renderColumns)*pitch
		y := renderGap + (index/renderColumns)*pitch

		dc.SetColor(stateColors[state])
		dc.DrawRectangle(float64(x), float64(y), float64(cellSize), float64(cellSize))
		dc.Fill()
	}

	return dc
}

// SaveFrameMap renders states and writes the result as a PNG file.
func SaveFrameMap(states []FrameState, cellSize int, path string) error {
	if cellSize <= 0 {
		return errors.Errorf("invalid cell size %d", cellSize)
	}

	if err := RenderFrames(states, cellSize).SavePNG(path); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}
