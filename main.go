package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/vk-instruments/spibeam/internal/beamlog"
	"github.com/vk-instruments/spibeam/internal/config"
	"github.com/vk-instruments/spibeam/internal/regs"
	"github.com/vk-instruments/spibeam/internal/runner"
	"github.com/vk-instruments/spibeam/internal/spiwrite"
	"github.com/vk-instruments/spibeam/internal/trig"
	"github.com/vk-instruments/spibeam/internal/version"
)

var (
	devMode     = flag.Bool("dev", false, "Use an in-memory register space instead of /dev/mem")
	scriptMode  = flag.Bool("script", false, "Emit devmem script lines to the bench serial console instead of writing registers")
	mode        = flag.String("mode", "console", "Frontend: console or udp")
	configPath  = flag.String("config", "", "Path to JSON config file")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// newRegisterWriter picks the register backend: the real /dev/mem window,
// a bench-console script emitter, or a mock space that emulates the send
// handshake for dev runs.
func newRegisterWriter(cfg *config.Config) (regs.Writer, func() error, error) {
	switch {
	case *devMode:
		m := regs.NewMock()
		m.OnWrite = func(space map[uint32]uint32, addr, value uint32) {
			if addr == spiwrite.SendMaskAddr && value != 0 {
				space[addr] = 0
			}
		}
		return m, func() error { return nil }, nil
	case *scriptMode:
		w, err := runner.OpenSerialScript(cfg.GetSerialDevice(), cfg.GetSerialBaud())
		if err != nil {
			return nil, nil, err
		}
		return w, w.Close, nil
	default:
		d, err := regs.OpenDevmem(spiwrite.GlobalBase, spiwrite.MappedWindow)
		if err != nil {
			return nil, nil, err
		}
		return d, d.Close, nil
	}
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg := &config.Config{}
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	table, err := trig.NewTable(cfg.GetTrigLatency())
	if err != nil {
		log.Fatalf("failed to build trig table: %v", err)
	}

	wr, closeWriter, err := newRegisterWriter(cfg)
	if err != nil {
		log.Fatalf("failed to open register space: %v", err)
	}
	defer closeWriter()

	db, err := beamlog.New(cfg.GetDBPath())
	if err != nil {
		log.Fatalf("failed to open sweep log: %v", err)
	}
	defer db.Close()

	exec := spiwrite.NewExecutor(wr, table, db, cfg.GetBusDivider())

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "console":
		wg.Add(1)
		console := runner.NewConsole(exec, db, os.Stdin, os.Stdout)
		go func() {
			defer wg.Done()
			defer stop()
			if err := console.Run(ctx); err != nil && err != context.Canceled {
				log.Printf("console terminated: %v", err)
			}
		}()
	case "udp":
		term := runner.NewSpiterm(runner.SpitermConfig{
			LocalPort:  cfg.GetUDPListenPort(),
			RemoteHost: cfg.GetUDPRemoteHost(),
			RemotePort: cfg.GetUDPRemotePort(),
		}, exec, db)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := term.Run(ctx); err != nil && err != context.Canceled {
				log.Printf("terminal endpoint terminated: %v", err)
			}
		}()
	default:
		log.Fatalf("unknown mode %q (want console or udp)", *mode)
	}

	wg.Wait()
	log.Printf("shutdown complete")
}
