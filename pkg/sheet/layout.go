package sheet

import "image"

// Layout places tiles on a grid. All values are in pixels except Columns
// and Rows.
type Layout struct {
	Columns     int
	Rows        int
	TileWidth   int
	TileHeight  int
	LabelHeight int
	Gap         int

	Width  int
	Height int
}

// ComputeLayout lays out frames tiles of frameWidth x frameHeight pixels.
// Tiles are scaled down to opts.TileWidth when it is set, keeping the
// aspect ratio.
func ComputeLayout(frames, frameWidth, frameHeight int, opts Options) Layout {
	cols := opts.Columns
	if cols <= 0 {
		cols = DefaultColumns
	}
	cols = max(1, min(cols, frames))
	rows := (frames + cols - 1) / cols

	tw, th := frameWidth, frameHeight
	if opts.TileWidth > 0 && opts.TileWidth < frameWidth {
		tw = opts.TileWidth
		th = max(1, frameHeight*opts.TileWidth/frameWidth)
	}

	label := 0
	if opts.Labels {
		label = int(opts.fontSize()*1.5 + 0.5)
	}

	return Layout{
		Columns:     cols,
		Rows:        rows,
		TileWidth:   tw,
		TileHeight:  th,
		LabelHeight: label,
		Gap:         opts.Gap,
		Width:       opts.Gap + cols*(tw+opts.Gap),
		Height:      opts.Gap + rows*(th+label+opts.Gap),
	}
}

// Tile returns the image rectangle of tile i.
func (l Layout) Tile(i int) image.Rectangle {
	col, row := i%l.Columns, i/l.Columns
	x := l.Gap + col*(l.TileWidth+l.Gap)
	y := l.Gap + row*(l.TileHeight+l.LabelHeight+l.Gap)
	return image.Rect(x, y, x+l.TileWidth, y+l.TileHeight)
}
