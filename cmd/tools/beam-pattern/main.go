// Command beam-pattern plots the per-column steering phase of one aperture
// row as a PNG: the exact Q1.31 fractional turn alongside the quantised
// 5.625-degree command grid, so quantisation error is visible directly.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/vk-instruments/spibeam/internal/beam"
	"github.com/vk-instruments/spibeam/internal/fixed"
	"github.com/vk-instruments/spibeam/internal/phase"
	"github.com/vk-instruments/spibeam/internal/trig"
)

// stepDeg is the phase command grid pitch: 360/64 degrees.
const stepDeg = 360.0 / 64.0

func main() {
	az := flag.Float64("az", 30, "azimuth in degrees")
	el := flag.Float64("el", 0, "elevation in degrees")
	mode := flag.String("mode", "tx", "panel: tx or rx")
	row := flag.Int("row", 0, "aperture row to plot")
	output := flag.String("o", "beam_pattern.png", "output PNG path")
	flag.Parse()

	if *mode != "tx" && *mode != "rx" {
		log.Fatalf("unknown mode %q (want tx or rx)", *mode)
	}
	if *row < 0 || *row >= beam.Rows {
		log.Fatalf("row %d out of range [0,%d]", *row, beam.Rows-1)
	}

	cmd := beam.Command{
		Azimuth:   fixed.DegreesFromFloat(*az),
		Elevation: fixed.DegreesFromFloat(*el),
		Transmit:  *mode == "tx",
	}

	table, err := trig.NewTable(0)
	if err != nil {
		log.Fatalf("failed to build trig table: %v", err)
	}

	exactPts := make(plotter.XYs, 0, beam.Columns)
	quantPts := make(plotter.XYs, 0, beam.Columns)
	for lane := 0; lane < beam.Lanes; lane++ {
		base, err := beam.LaneColumnBase(lane)
		if err != nil {
			log.Fatalf("lane %d: %v", lane, err)
		}
		for col := 0; col < beam.LaneColumns; col++ {
			g, err := beam.GeometryOf(lane, *row, col, cmd.Transmit)
			if err != nil {
				log.Fatalf("element lane=%d col=%d: %v", lane, col, err)
			}
			res, err := phase.Calculate(cmd, g, table)
			if err != nil {
				log.Fatalf("element lane=%d col=%d: %v", lane, col, err)
			}
			x := float64(base + col)
			// Fold the signed turn onto [0, 360) to match the index grid.
			deg := res.Turns.Float() * 360.0
			if deg < 0 {
				deg += 360.0
			}
			exactPts = append(exactPts, plotter.XY{X: x, Y: deg})
			quantPts = append(quantPts, plotter.XY{X: x, Y: float64(res.Index) * stepDeg})
		}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Row %d Phase - az=%.2f el=%.2f (%s)", *row, cmd.Azimuth.Float(), cmd.Elevation.Float(), *mode)
	p.X.Label.Text = "Column"
	p.Y.Label.Text = "Phase (deg)"

	exactLine, err := plotter.NewLine(exactPts)
	if err != nil {
		log.Fatalf("failed to build exact line: %v", err)
	}
	exactLine.Color = color.RGBA{R: 49, G: 104, B: 142, A: 255}
	exactLine.Width = vg.Points(1)
	p.Add(exactLine)
	p.Legend.Add("exact turns", exactLine)

	quantScatter, err := plotter.NewScatter(quantPts)
	if err != nil {
		log.Fatalf("failed to build quantised scatter: %v", err)
	}
	quantScatter.Color = color.RGBA{R: 253, G: 231, B: 37, A: 255}
	p.Add(quantScatter)
	p.Legend.Add("quantised index", quantScatter)

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(14*vg.Inch, 6*vg.Inch, *output); err != nil {
		log.Fatalf("failed to save plot: %v", err)
	}
	log.Printf("✓ Created: %s", *output)
}
