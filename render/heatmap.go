// Package render draws the posterior probability field as a heatmap image.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/wricardo/grid-localization/game/engine"
)

// ErrEmptyField is returned when there is nothing to draw
var ErrEmptyField = errors.New("empty probability field")

// Options controls heatmap rendering
type Options struct {
	Title  string
	Width  vg.Length
	Height vg.Length
	// Format is any format plot.Plot.Save accepts; png by default
	Format string
	// Levels is the number of palette colors
	Levels int
	// HideVehicle omits the true vehicle marker
	HideVehicle bool
}

// DefaultOptions returns a 5x5 inch PNG with a 32 level heat palette
func DefaultOptions() Options {
	return Options{
		Width:  5 * vg.Inch,
		Height: 5 * vg.Inch,
		Format: "png",
		Levels: 32,
	}
}

// fieldGrid adapts a row-major probability field to plotter.GridXYZ. Plot
// row 0 is the bottom of the image, so board rows are flipped to keep board
// row 0 on top.
type fieldGrid struct {
	field [][]float64
}

func (g fieldGrid) Dims() (c, r int) { return len(g.field[0]), len(g.field) }

func (g fieldGrid) Z(c, r int) float64 { return g.field[len(g.field)-1-r][c] }

func (g fieldGrid) X(c int) float64 { return float64(c) }

func (g fieldGrid) Y(r int) float64 { return float64(r) }

// plotY converts a board row to a plot Y coordinate
func (g fieldGrid) plotY(row int) float64 { return float64(len(g.field) - 1 - row) }

// NewPlot builds a heatmap plot of snap's probability field with markers for
// the most likely cell and, unless hidden, the true vehicle position.
func NewPlot(snap *engine.Snapshot, opts Options) (*plot.Plot, error) {
	if snap == nil || len(snap.ProbabilityField) == 0 || len(snap.ProbabilityField[0]) == 0 {
		return nil, ErrEmptyField
	}
	if opts.Levels < 2 {
		opts.Levels = DefaultOptions().Levels
	}

	grid := fieldGrid{field: snap.ProbabilityField}
	n := len(snap.ProbabilityField)

	heat := plotter.NewHeatMap(grid, palette.Heat(opts.Levels, 1))
	// A uniform field has Min == Max; anchor the scale at zero
	heat.Min = 0
	if heat.Max <= 0 {
		heat.Max = 1
	}

	p := plot.New()
	p.Title.Text = opts.Title
	if p.Title.Text == "" {
		p.Title.Text = fmt.Sprintf("Posterior after step %d", snap.Step)
	}
	p.X.Label.Text = "column"
	p.Y.Label.Text = "row"
	p.X.Tick.Marker = cellTicks(n, func(i int) int { return i })
	p.Y.Tick.Marker = cellTicks(n, func(i int) int { return n - 1 - i })
	p.Add(heat)

	best, _ := engine.MostLikelyCell(snap.ProbabilityField)
	estimate, err := marker(grid, best, draw.CircleGlyph{}, color.RGBA{B: 255, A: 255})
	if err != nil {
		return nil, err
	}
	p.Add(estimate)
	p.Legend.Add("estimate", estimate)

	if !opts.HideVehicle {
		vehicle, err := marker(grid, snap.Vehicle, draw.CrossGlyph{}, color.RGBA{G: 200, A: 255})
		if err != nil {
			return nil, err
		}
		p.Add(vehicle)
		p.Legend.Add("vehicle", vehicle)
	}
	p.Legend.Top = true

	return p, nil
}

// Heatmap writes snap's probability field to w in opts.Format
func Heatmap(w io.Writer, snap *engine.Snapshot, opts Options) error {
	opts = withDefaults(opts)

	p, err := NewPlot(snap, opts)
	if err != nil {
		return err
	}

	wt, err := p.WriterTo(opts.Width, opts.Height, opts.Format)
	if err != nil {
		return fmt.Errorf("create %s writer: %w", opts.Format, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write heatmap: %w", err)
	}
	return nil
}

// SaveHeatmap writes snap's probability field to a file. The format follows
// the file extension.
func SaveHeatmap(path string, snap *engine.Snapshot, opts Options) error {
	opts = withDefaults(opts)

	p, err := NewPlot(snap, opts)
	if err != nil {
		return err
	}
	if err := p.Save(opts.Width, opts.Height, path); err != nil {
		return fmt.Errorf("save heatmap: %w", err)
	}
	return nil
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.Width <= 0 {
		opts.Width = def.Width
	}
	if opts.Height <= 0 {
		opts.Height = def.Height
	}
	if opts.Format == "" {
		opts.Format = def.Format
	}
	if opts.Levels < 2 {
		opts.Levels = def.Levels
	}
	return opts
}

func marker(grid fieldGrid, pos engine.Position, shape draw.GlyphDrawer, c color.Color) (*plotter.Scatter, error) {
	s, err := plotter.NewScatter(plotter.XYs{{X: float64(pos.Y), Y: grid.plotY(pos.X)}})
	if err != nil {
		return nil, err
	}
	s.GlyphStyle.Shape = shape
	s.GlyphStyle.Color = c
	s.GlyphStyle.Radius = vg.Points(5)
	return s, nil
}

// cellTicks labels every cell on boards up to 20 wide, otherwise every fifth
func cellTicks(n int, label func(i int) int) plot.ConstantTicks {
	every := 1
	if n > 20 {
		every = 5
	}
	ticks := make(plot.ConstantTicks, 0, n/every+1)
	for i := 0; i < n; i += every {
		ticks = append(ticks, plot.Tick{Value: float64(i), Label: strconv.Itoa(label(i))})
	}
	return ticks
}
