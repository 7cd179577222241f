// Command go1090 ingests raw SDR I/Q samples (or replays pre-demodulated
// text/CSV), decodes Mode S/A/C replies, tracks aircraft, and renders a
// live interactive table, grounded on the teacher's own main.go wiring
// (gocui UI, aurora-colored table, Ctrl-C quit) driven by the new receive
// path instead of an external rtl_adsb process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jroimartin/gocui"
	. "github.com/logrusorgru/aurora"
	"github.com/spf13/pflag"

	"github.com/regentag/go1090/internal/config"
	"github.com/regentag/go1090/internal/convert"
	"github.com/regentag/go1090/internal/demod"
	"github.com/regentag/go1090/internal/fifo"
	"github.com/regentag/go1090/internal/modes"
	"github.com/regentag/go1090/internal/netout"
	"github.com/regentag/go1090/internal/receiver"
	"github.com/regentag/go1090/internal/tracker"
)

var (
	flagConfigPath = pflag.StringP("config", "c", "", "path to a YAML config file")
	flagSourceKind = pflag.String("source-kind", "", "override: file, stdin, csvreplay")
	flagSourcePath = pflag.String("source-path", "", "override: file path for file or csvreplay")
	flagFormat     = pflag.String("format", "", "override: uc8, sc16, sc16q11")
	flagSampleRate = pflag.Int("sample-rate", 0, "override: 2000000, 2400000, or 8000000")
	flagFixErrors  = pflag.Bool("fix-errors", false, "enable single-bit CRC correction")
	flagAggressive = pflag.Bool("aggressive", false, "enable two-bit CRC correction")
	flagHaveHome   = pflag.Bool("have-home", false, "enable CPR local-decode/range filtering against home position")
	flagHomeLat    = pflag.Float64("home-lat", 0, "receiver latitude, degrees")
	flagHomeLon    = pflag.Float64("home-lon", 0, "receiver longitude, degrees")
	flagMaxDistNM  = pflag.Float64("max-dist-nm", 0, "reject positions farther than this from home, 0 = no limit")
	flagSBSAddr    = pflag.String("sbs-addr", "", "listen address for the SBS/BaseStation text sink, e.g. :30003")
	flagNATSURL    = pflag.String("nats-url", "", "NATS server URL for the optional publish sink")
	flagNATSSubj   = pflag.String("nats-subject", "go1090.updates", "NATS subject to publish updates on")
	flagLogLevel   = pflag.String("log-level", "", "override: debug, info, warn, error")
	flagLoopCount  = pflag.Int("loop", 1, "file replay loop count, 0 = loop forever")
	flagHelp       = pflag.BoolP("help", "h", false, "display help text")
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "go1090 — ADS-B/Mode S receiver and tracker\n\nUsage:\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if *flagHelp {
		pflag.Usage()
		return
	}

	cfg, err := config.Load(*flagConfigPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "go1090:", err)
		os.Exit(1)
	}
	applyFlagOverrides(&cfg)

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	logger.SetLevel(parseLogLevel(cfg.Log.Level))

	if err := run(cfg, logger); err != nil {
		logger.Fatal("go1090: fatal", "err", err)
	}
}

// applyFlagOverrides layers pflag.Changed overrides on top of the loaded
// config, so an unset flag never clobbers a value the YAML file specified
// (spec §10's "CLI flags override config file" contract).
func applyFlagOverrides(cfg *config.Config) {
	if pflag.CommandLine.Changed("source-kind") {
		cfg.Source.Kind = *flagSourceKind
	}
	if pflag.CommandLine.Changed("source-path") {
		cfg.Source.Path = *flagSourcePath
	}
	if pflag.CommandLine.Changed("format") {
		cfg.Source.Format = *flagFormat
	}
	if pflag.CommandLine.Changed("sample-rate") {
		cfg.Source.SampleRate = *flagSampleRate
	}
	if pflag.CommandLine.Changed("fix-errors") {
		cfg.Demod.FixErrors = *flagFixErrors
	}
	if pflag.CommandLine.Changed("aggressive") {
		cfg.Demod.Aggressive = *flagAggressive
	}
	if pflag.CommandLine.Changed("have-home") {
		cfg.Home.Have = *flagHaveHome
	}
	if pflag.CommandLine.Changed("home-lat") {
		cfg.Home.Lat = *flagHomeLat
	}
	if pflag.CommandLine.Changed("home-lon") {
		cfg.Home.Lon = *flagHomeLon
	}
	if pflag.CommandLine.Changed("max-dist-nm") {
		cfg.Home.MaxDistNM = *flagMaxDistNM
	}
	if pflag.CommandLine.Changed("sbs-addr") {
		cfg.Net.SBSListenAddr = *flagSBSAddr
	}
	if pflag.CommandLine.Changed("nats-url") {
		cfg.Net.NATSURL = *flagNATSURL
	}
	if pflag.CommandLine.Changed("nats-subject") {
		cfg.Net.NATSSubject = *flagNATSSubj
	}
	if pflag.CommandLine.Changed("log-level") {
		cfg.Log.Level = *flagLogLevel
	}
}

func parseLogLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// selectDemodulator picks the one demodulator the configured sample rate
// actually supports (spec §4.4: the three rates are not interchangeable —
// 2.4 MS/s is Mode A/C only).
func selectDemodulator(sampleRate int, maxErrorBits int) (demod.Demodulator, error) {
	switch sampleRate {
	case 2_000_000:
		d := demod.NewModeS2M()
		if maxErrorBits > 0 {
			d.MaxErrorBits = maxErrorBits
		}
		return d, nil
	case 2_400_000:
		return demod.NewModeAC(), nil
	case 8_000_000:
		return demod.NewModeS8M(), nil
	default:
		return nil, fmt.Errorf("main: unsupported sample rate %d (want 2000000, 2400000, or 8000000)", sampleRate)
	}
}

func run(cfg config.Config, logger *log.Logger) error {
	convFormat, err := cfg.Source.ConvertFormat()
	if err != nil {
		return err
	}
	conv, err := convert.Select(convFormat, false, false, float64(cfg.Source.SampleRate))
	if err != nil {
		return fmt.Errorf("main: converter selection: %w", err)
	}

	dm, err := selectDemodulator(cfg.Source.SampleRate, cfg.Demod.MaxErrorBits)
	if err != nil {
		return err
	}

	pool, err := fifo.NewPool(cfg.FIFO.PoolSize, cfg.FIFO.BufferSize, cfg.FIFO.Overlap)
	if err != nil {
		return fmt.Errorf("main: fifo pool: %w", err)
	}

	icao := modes.NewICAOCache()
	track := tracker.New(cfg.Home.Have, cfg.Home.Lat, cfg.Home.Lon, cfg.Home.MaxDistNM)

	closers, err := wireSinks(cfg, track, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			c()
		}
	}()

	drv := receiver.New(pool, conv, dm, icao, track, logger, cfg.Source.SampleRate)
	drv.FixErrors = cfg.Demod.FixErrors
	drv.Aggressive = cfg.Demod.Aggressive

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("main: signal received, shutting down")
		cancel()
		pool.Halt()
	}()

	recvErrCh := make(chan error, 1)
	go func() {
		recvErrCh <- startSource(ctx, cfg, drv)
	}()

	go staleSweepLoop(ctx, track)

	uiErr := runUI(ctx, track)

	cancel()
	pool.Halt()

	if uiErr != nil && uiErr != errQuitFromUI {
		return uiErr
	}
	select {
	case err := <-recvErrCh:
		if err != nil && err.Error() != "context canceled" {
			logger.Debug("main: receive loop ended", "err", err)
		}
	case <-time.After(2 * time.Second):
	}
	return nil
}

// startSource runs the appropriate ingestion path for cfg.Source.Kind.
// "file"/"stdin" stream raw I/Q through Driver.Run; "csvreplay" schedules
// pre-demodulated hex lines via Driver.CSVReplay.
func startSource(ctx context.Context, cfg config.Config, drv *receiver.Driver) error {
	switch cfg.Source.Kind {
	case "stdin", "":
		return drv.Run(ctx, os.Stdin)
	case "file":
		return drv.FileReplay(ctx, cfg.Source.Path, *flagLoopCount)
	case "csvreplay":
		f, err := os.Open(cfg.Source.Path)
		if err != nil {
			return fmt.Errorf("main: opening %s: %w", cfg.Source.Path, err)
		}
		defer f.Close()
		return drv.CSVReplay(ctx, f, 1.0)
	default:
		return fmt.Errorf("main: unsupported source kind %q", cfg.Source.Kind)
	}
}

func staleSweepLoop(ctx context.Context, track *tracker.Tracker) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			track.RemoveStale(now)
		}
	}
}

// wireSinks attaches the optional network sinks configured in cfg, each as
// a tracker.Sink, returning their shutdown funcs.
func wireSinks(cfg config.Config, track *tracker.Tracker, logger *log.Logger) (closers []func(), err error) {
	if cfg.Net.SBSListenAddr != "" {
		srv, e := netout.NewSBSServer(cfg.Net.SBSListenAddr, logger)
		if e != nil {
			return nil, fmt.Errorf("main: sbs sink: %w", e)
		}
		go srv.Serve()
		track.AddSink(srv.Sink)
		closers = append(closers, func() { srv.Close() })
	}

	if cfg.Net.NATSURL != "" {
		sink, e := netout.NewNATSSink(cfg.Net.NATSURL, cfg.Net.NATSSubject, logger)
		if e != nil {
			return nil, fmt.Errorf("main: nats sink: %w", e)
		}
		track.AddSink(sink.Sink)
		closers = append(closers, sink.Close)
	}

	return closers, nil
}

// errQuitFromUI distinguishes a user-initiated quit (Ctrl-C inside the UI)
// from an actual UI failure.
var errQuitFromUI = gocui.ErrQuit

// runUI drives the gocui table view, redrawing once a second from
// track.Snapshot(), grounded directly on the teacher's own main.go layout/
// update functions.
func runUI(ctx context.Context, track *tracker.Tracker) error {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return fmt.Errorf("main: gocui init: %w", err)
	}
	defer g.Close()

	g.SetManagerFunc(layout)
	if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, func(*gocui.Gui, *gocui.View) error {
		return gocui.ErrQuit
	}); err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.Update(func(g *gocui.Gui) error { return redraw(g, track) })
			}
		}
	}()

	if err := g.MainLoop(); err != nil && err != gocui.ErrQuit {
		return err
	}
	return gocui.ErrQuit
}

func layout(g *gocui.Gui) error {
	const maxX = 100
	_, maxY := g.Size()

	v, err := g.SetView("status", 0, 0, maxX-2, 2)
	if err != nil && err != gocui.ErrUnknownView {
		return err
	}
	if err == gocui.ErrUnknownView {
		v.Title = " STATUS "
		fmt.Fprintln(v, " A/C: --  LAST UPDATE: --")
	}

	v, err = g.SetView("list", 0, 3, maxX-2, maxY-1)
	if err != nil && err != gocui.ErrUnknownView {
		return err
	}
	if err == gocui.ErrUnknownView {
		v.Title = " AIRCRAFT "
	}
	return nil
}

func redraw(g *gocui.Gui, track *tracker.Tracker) error {
	s, err := g.View("status")
	if err != nil {
		return nil
	}
	s.Clear()
	fmt.Fprintf(s, " A/C: %02d  LAST UPDATE: %s\n",
		Green(track.Len()),
		Bold(Green(time.Now().Format("2006-01-02 15:04:05"))))

	l, err := g.View("list")
	if err != nil {
		return nil
	}
	l.Clear()
	fmt.Fprintln(l, " ICAO ADDR  TYPE             FLIGHT   SQWK    ALT    SPD    HDG     LAT      LON  SEEN")
	fmt.Fprintln(l, " ========================================================================================")

	aircraft := track.Snapshot()
	sort.Slice(aircraft, func(i, j int) bool { return aircraft[i].Addr < aircraft[j].Addr })

	for _, ac := range aircraft {
		fmt.Fprintln(l, Sprintf(Yellow(" %06X  %-16s %-8s %04o  %-5d  %-5.0f  %-3.0f  %7.2f  %8.2f  %s"),
			ac.Addr,
			ac.AddrType.String(),
			ac.Callsign,
			ac.Squawk,
			ac.Altitude,
			ac.Speed,
			ac.Heading,
			ac.Lat,
			ac.Lon,
			ac.SeenLast.Format("15:04:05")))
	}
	return nil
}
