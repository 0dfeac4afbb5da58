// Package runner hosts the operator-facing frontends: an interactive
// console, the UDP terminal endpoint, and a bench-console script emitter.
// All of them funnel commands into the spiwrite executor.
package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/vk-instruments/spibeam/internal/beam"
	"github.com/vk-instruments/spibeam/internal/beamlog"
	"github.com/vk-instruments/spibeam/internal/spiwrite"
)

// Prompt is the terminal prompt appended to every response, preserved
// verbatim because operator tooling matches on it.
const Prompt = "sch_VAIC> "

// Console is the interactive REPL. Device commands go to the executor;
// map and sweeps are console conveniences.
type Console struct {
	exec *spiwrite.Executor
	db   *beamlog.DB // optional
	in   io.Reader
	out  io.Writer
}

// NewConsole builds a console over the given streams. db may be nil to
// disable command logging.
func NewConsole(exec *spiwrite.Executor, db *beamlog.DB, in io.Reader, out io.Writer) *Console {
	return &Console{exec: exec, db: db, in: in, out: out}
}

// Run reads commands line by line until EOF, quit, or context
// cancellation.
func (c *Console) Run(ctx context.Context) error {
	scan := bufio.NewScanner(c.in)
	fmt.Fprint(c.out, Prompt)
	for scan.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scan.Text())
		if line == "exit" || line == "quit" {
			return nil
		}
		if line != "" {
			response := c.dispatch(ctx, line)
			fmt.Fprint(c.out, response)
			if c.db != nil {
				if err := c.db.RecordCommand(line, response); err != nil {
					log.Printf("failed to record command: %v", err)
				}
			}
		}
		fmt.Fprint(c.out, Prompt)
	}
	return scan.Err()
}

func (c *Console) dispatch(ctx context.Context, line string) string {
	fields := strings.Fields(line)
	switch fields[0] {
	case "map":
		return c.elementMap(fields[1:])
	case "sweeps":
		return c.listSweeps()
	}

	res, err := c.exec.Execute(ctx, line)
	if err != nil {
		return fmt.Sprintf("Error : %v\r\n", err)
	}
	var b strings.Builder
	for _, v := range res.Responses {
		fmt.Fprintf(&b, "%08x\r\n", v)
	}
	if res.Message != "" {
		b.WriteString(res.Message + "\r\n")
	}
	return b.String()
}

// elementMap renders one lane's chip/channel addressing as a table, rows
// down and lane-local columns across.
func (c *Console) elementMap(args []string) string {
	if len(args) != 2 {
		return "usage: map <lane> <tx|rx>\r\n"
	}
	var lane int
	if _, err := fmt.Sscanf(args[0], "%d", &lane); err != nil {
		return fmt.Sprintf("Error : bad lane %q\r\n", args[0])
	}
	base, err := beam.LaneColumnBase(lane)
	if err != nil {
		return fmt.Sprintf("Error : %v\r\n", err)
	}
	var transmit bool
	switch args[1] {
	case "tx":
		transmit = true
	case "rx":
	default:
		return fmt.Sprintf("Error : mode %q is not tx or rx\r\n", args[1])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "lane %d columns %d..%d (%s)\r\n", lane, base, base+beam.LaneColumns-1, args[1])
	table := tablewriter.NewWriter(&b)
	header := []string{"ROW"}
	for col := 0; col < beam.LaneColumns; col++ {
		header = append(header, fmt.Sprintf("COL %d", base+col))
	}
	table.SetHeader(header)
	for row := 0; row < beam.Rows; row++ {
		cells := []string{fmt.Sprintf("%d", row)}
		for col := 0; col < beam.LaneColumns; col++ {
			addr := beam.AddressOf(row, col, transmit)
			cells = append(cells, fmt.Sprintf("%02x:%02x", addr.ChipID, addr.ChannelID))
		}
		table.Append(cells)
	}
	table.Render()
	return b.String()
}

func (c *Console) listSweeps() string {
	if c.db == nil {
		return "no sweep log attached\r\n"
	}
	sweeps, err := c.db.Sweeps(20)
	if err != nil {
		return fmt.Sprintf("Error : %v\r\n", err)
	}
	var b strings.Builder
	table := tablewriter.NewWriter(&b)
	table.SetHeader([]string{"ID", "AZ", "EL", "MODE", "FRAMES", "TIME"})
	for _, s := range sweeps {
		mode := "rx"
		if s.Transmit {
			mode = "tx"
		}
		table.Append([]string{
			s.ID[:8],
			fmt.Sprintf("%.2f", s.AzimuthDeg),
			fmt.Sprintf("%.2f", s.ElevationDeg),
			mode,
			fmt.Sprintf("%d", s.TotalFrames),
			s.Timestamp.Format("2006-01-02 15:04:05"),
		})
	}
	table.Render()
	return b.String()
}
