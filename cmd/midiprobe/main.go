// midiprobe — opens one session against a midisession responder, runs the
// clock sync exchange, optionally plays a note and says bye.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"

	"github.com/1ureka/midisession/internal/app"
	"github.com/1ureka/midisession/internal/config"
	"github.com/1ureka/midisession/internal/util"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := app.ProbeConfig{
		Channel:  6,
		Key:      0x3c,
		Velocity: 0x7f,
	}

	flag.StringVar(&cfg.ControlAddr, "control", "127.0.0.1:5004", "Responder control address")
	flag.StringVar(&cfg.DataAddr, "data", "127.0.0.1:5005", "Responder data address")
	flag.StringVar(&cfg.Name, "name", "midiprobe", "Name sent in the invitation")
	ssrcFlag := flag.String("ssrc", "0x4D505242", "Probe session id (decimal or 0x hex)")
	tokenFlag := flag.String("token", "1", "Initiator token (decimal or 0x hex)")
	flag.DurationVar(&cfg.Timeout, "timeout", 2*time.Second, "Per-reply timeout")
	flag.BoolVar(&cfg.SendNote, "note", false, "Send a Note On/Off pair as RTP-MIDI")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debug {
		util.EnableDebug()
	}

	ssrc, err := config.ParseSSRC(*ssrcFlag)
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
	cfg.SSRC = ssrc

	token, err := config.ParseToken(*tokenFlag)
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
	cfg.Token = token

	pterm.Info.Println(fmt.Sprintf("midiprobe — v%s", version))
	pterm.Println()

	report, err := app.RunProbe(ctx, cfg)
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	printReport(report)
}

func printReport(r *app.ProbeReport) {
	pterm.DefaultSection.Println("Responder")
	pterm.Printf("name     %s\n", r.ResponderName)
	pterm.Printf("ssrc     0x%08X\n", r.ResponderSSRC)
	pterm.Printf("version  %d\n", r.ResponderVersion)
	pterm.Printf("offset   %d µs since session start\n", r.OffsetUS)
	pterm.Printf("notes    %d\n", r.NotesSent)
	pterm.Println()

	rows := pterm.TableData{{"Sent", "Reply", "Timestamp2", "RTT"}}
	for _, s := range r.Steps {
		rows = append(rows, []string{
			fmt.Sprint(s.SentCount),
			fmt.Sprint(s.ReplyCount),
			fmt.Sprint(s.Timestamp2),
			s.RTT.String(),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		util.LogWarning("render table: %v", err)
	}
}
