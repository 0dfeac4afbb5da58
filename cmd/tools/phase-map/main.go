// Command phase-map renders the quantised phase command across the full
// 32x32 aperture for one beam direction as an HTML chart, for eyeballing
// steering gradients and wrap seams before committing a sweep to hardware.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/vk-instruments/spibeam/internal/beam"
	"github.com/vk-instruments/spibeam/internal/fixed"
	"github.com/vk-instruments/spibeam/internal/phase"
	"github.com/vk-instruments/spibeam/internal/trig"
)

func main() {
	az := flag.Float64("az", 0, "azimuth in degrees")
	el := flag.Float64("el", 0, "elevation in degrees")
	mode := flag.String("mode", "tx", "panel: tx or rx")
	output := flag.String("o", "phase_map.html", "output HTML path")
	flag.Parse()

	if *mode != "tx" && *mode != "rx" {
		log.Fatalf("unknown mode %q (want tx or rx)", *mode)
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

	// One point per element, coloured by the 6-bit phase index. Same
	// colored-scatter trick as a dense heatmap without binning.
	data := make([]opts.ScatterData, 0, beam.Rows*beam.Columns)
	for lane := 0; lane < beam.Lanes; lane++ {
		base, err := beam.LaneColumnBase(lane)
		if err != nil {
			log.Fatalf("lane %d: %v", lane, err)
		}
		for col := 0; col < beam.LaneColumns; col++ {
			for row := 0; row < beam.Rows; row++ {
				g, err := beam.GeometryOf(lane, row, col, cmd.Transmit)
				if err != nil {
					log.Fatalf("element lane=%d row=%d col=%d: %v", lane, row, col, err)
				}
				res, err := phase.Calculate(cmd, g, table)
				if err != nil {
					log.Fatalf("element lane=%d row=%d col=%d: %v", lane, row, col, err)
				}
				data = append(data, opts.ScatterData{
					Value: []interface{}{base + col, row, res.Index},
				})
			}
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Aperture Phase Map", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Aperture Phase Map",
			Subtitle: fmt.Sprintf("az=%.2f el=%.2f mode=%s", cmd.Azimuth.Float(), cmd.Elevation.Float(), *mode),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -1, Max: beam.Columns, Name: "Column", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -1, Max: beam.Rows, Name: "Row", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        63,
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}},
		}),
	)
	scatter.AddSeries("phase index", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 14}))

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("failed to create output: %v", err)
	}
	defer f.Close()
	if err := scatter.Render(f); err != nil {
		log.Fatalf("failed to render chart: %v", err)
	}
	log.Printf("✓ Created: %s (%d elements)", *output, len(data))
}
