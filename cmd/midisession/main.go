// midisession — AppleMIDI-style session responder.
//
// It listens on a control and a data UDP port, accepts session invitations,
// answers clock synchronization exchanges and forgets peers that say bye.
// Optionally it streams session events to websocket subscribers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"

	"github.com/1ureka/midisession/internal/config"
	"github.com/1ureka/midisession/internal/monitor"
	"github.com/1ureka/midisession/internal/responder"
	"github.com/1ureka/midisession/internal/util"
)

var version = "dev"

func main() {
	// Root context — cancelled on Ctrl+C or SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Default()

	// CLI flags.
	flag.StringVar(&cfg.ControlAddr, "control", cfg.ControlAddr, "Control port bind address")
	flag.StringVar(&cfg.DataAddr, "data", cfg.DataAddr, "Data port bind address")
	flag.StringVar(&cfg.Name, "name", cfg.Name, "Name announced to peers")
	ssrcFlag := flag.String("ssrc", fmt.Sprintf("0x%08X", cfg.SSRC), "Responder session id (decimal or 0x hex)")
	flag.StringVar(&cfg.MonitorAddr, "monitor", "", "Serve a websocket event stream at this address (e.g. :8080)")
	flag.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	flag.Parse()

	if cfg.Debug {
		util.EnableDebug()
	}

	ssrc, err := config.ParseSSRC(*ssrcFlag)
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
	cfg.SSRC = ssrc

	if err := cfg.Validate(); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	pterm.Info.Println(fmt.Sprintf("midisession — v%s", version))
	pterm.Println()

	if err := run(ctx, cfg); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	util.LogInfo("responder stopped")
}

// run wires the responder, the optional monitor and the stats reporter, and
// blocks until ctx is cancelled or the responder fails.
func run(ctx context.Context, cfg config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rc := cfg.Responder()
	rc.Stats = &util.Stats{}
	monitorErr := make(chan error, 1)

	if cfg.MonitorAddr != "" {
		hub := monitor.NewHub(rc.Stats)
		rc.Events = hub
		go func() {
			if err := hub.ListenAndServe(ctx, cfg.MonitorAddr); err != nil {
				monitorErr <- err
				cancel()
			}
		}()
	}

	r := responder.New(rc)
	util.StartStatsReporter(ctx, r.Stats())

	err := r.ListenAndServe(ctx)

	select {
	case mErr := <-monitorErr:
		err = errors.Join(err, mErr)
	default:
	}
	return err
}
