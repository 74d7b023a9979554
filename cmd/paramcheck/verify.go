package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"paramcheck/internal/admin"
	"paramcheck/internal/config"
	"paramcheck/internal/logging"
	"paramcheck/internal/manifest"
	"paramcheck/internal/scenario"
	"paramcheck/internal/sim"
	"paramcheck/internal/telemetry"
	"paramcheck/internal/verify"
)

var (
	verifyManifest  string
	verifyDevices   []uint
	verifyTimeout   time.Duration
	verifyTolerance float64
	verifyProvider  string
	verifyFormat    string
	verifyLogFile   string
	verifyOutFile   string
	verifyAdmin     string
	verifySimulate  string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify fleet parameters against the manifest",
	Long: "verify requests every manifest parameter from each configured autopilot, drops " +
		"autopilots that stop answering and reports values that differ from the manifest.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := applyVerifyFlags(cmd, cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, closeLog, err := newLogger(cfg, cfg.Output.Format == config.FormatTUI)
		if err != nil {
			return err
		}
		defer closeLog()

		m, err := manifest.Load(cfg.Manifest)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runVerify(logging.NewContext(ctx, logger), cfg, m)
	},
}

func init() {
	f := verifyCmd.Flags()
	f.StringVar(&verifyManifest, "manifest", "", "Path to the blessed parameter manifest")
	f.UintSliceVar(&verifyDevices, "devices", nil, "Autopilot system ids to verify (e.g. 2,4)")
	f.DurationVar(&verifyTimeout, "timeout", 0, "Per-device silence timeout")
	f.Float64Var(&verifyTolerance, "tolerance", 0, "Maximum accepted absolute difference")
	f.StringVar(&verifyProvider, "provider", "", "Parameter provider tag sent with every request")
	f.StringVar(&verifyFormat, "format", "", "Console output: text, json or tui")
	f.StringVar(&verifyLogFile, "log-file", "", "Write logs to this file instead of stderr")
	f.StringVar(&verifyOutFile, "out", "", "Export findings, device outcomes and values as JSONL")
	f.StringVar(&verifyAdmin, "admin", "", "Serve run status over HTTP on this address (e.g. :8080)")
	f.StringVar(&verifySimulate, "simulate", "", `Verify an in-process simulated fleet from this scenario file ("baseline" for a clean fleet)`)
}

// applyVerifyFlags overlays the flags the user set on cfg.
func applyVerifyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("manifest") {
		cfg.Manifest = verifyManifest
	}
	if f.Changed("devices") {
		devices, err := deviceIDs(verifyDevices)
		if err != nil {
			return err
		}
		cfg.Devices = devices
	}
	if f.Changed("timeout") {
		cfg.Timeout = verifyTimeout
	}
	if f.Changed("tolerance") {
		cfg.Tolerance = verifyTolerance
	}
	if f.Changed("provider") {
		cfg.Provider = verifyProvider
	}
	if f.Changed("format") {
		cfg.Output.Format = verifyFormat
	}
	if f.Changed("log-file") {
		cfg.LogFile = verifyLogFile
	}
	if f.Changed("out") {
		cfg.Output.File = verifyOutFile
	}
	if f.Changed("admin") {
		cfg.Admin.Addr = verifyAdmin
	}
	if f.Changed("simulate") {
		cfg.Simulation.Scenario = verifySimulate
	}
	return nil
}

func deviceIDs(in []uint) ([]uint8, error) {
	out := make([]uint8, 0, len(in))
	for _, d := range in {
		if d == 0 || d > 255 {
			return nil, fmt.Errorf("device id %d out of range 1-255", d)
		}
		out = append(out, uint8(d))
	}
	return out, nil
}

// verifyOptions maps the configuration onto verifier options.
func verifyOptions(cfg *config.Config) verify.Options {
	return verify.Options{
		Devices:         cfg.Devices,
		RequesterID:     cfg.RequesterID,
		TargetComponent: cfg.TargetComponent,
		Provider:        cfg.Provider,
		RequestDelay:    cfg.RequestDelay,
		RoundDelay:      cfg.RoundDelay,
		Timeout:         cfg.Timeout,
		Tolerance:       cfg.Tolerance,
	}
}

// runVerify wires the transport, sinks and optional admin server around one
// verification run. The logger is taken from ctx.
func runVerify(ctx context.Context, cfg *config.Config, m *manifest.Manifest) error {
	logger := logging.FromContext(ctx)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	tr, err := openLink(gctx, g, cfg, m, logger)
	if err != nil {
		return err
	}
	defer tr.Close()

	writers, err := newWriters(cfg, cfg.Devices, m.Len(), logger)
	if err != nil {
		return err
	}
	defer writers.Close()

	v := verify.New(tr, verifyOptions(cfg), verify.WithWriter(writers), verify.WithLogger(logger))
	if cfg.Admin.Addr != "" {
		ln, err := net.Listen("tcp", cfg.Admin.Addr)
		if err != nil {
			return fmt.Errorf("admin server: %w", err)
		}
		srv := admin.NewServer(v, logger)
		g.Go(func() error { return srv.Serve(gctx, ln) })
	}

	logger.Info("verification started",
		slog.String("run_id", v.RunID()),
		slog.Int("params", m.Len()),
		slog.Any("devices", cfg.Devices))
	_, runErr := v.Run(gctx, m)
	cancel()
	// A failing helper cancels the run; its error is the cause.
	if err := g.Wait(); err != nil && (runErr == nil || errors.Is(runErr, context.Canceled) && ctx.Err() == nil) {
		runErr = err
	}
	return runErr
}

// openLink returns the transport the verifier talks on: a UDP socket, or one
// end of an in-memory pipe whose other end is served by a simulated fleet.
func openLink(ctx context.Context, g *errgroup.Group, cfg *config.Config, m *manifest.Manifest, logger *slog.Logger) (telemetry.Transport, error) {
	if cfg.Simulation.Scenario == "" {
		tr, err := telemetry.ListenUDP(ctx, telemetry.UDPConfig{
			Listen:      cfg.Link.Listen,
			Remote:      cfg.Link.Remote,
			Broadcast:   cfg.Link.Broadcast,
			ReadTimeout: cfg.Link.ReadTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("open link: %w", err)
		}
		return tr, nil
	}

	sc, err := loadScenario(cfg.Simulation.Scenario, cfg.Devices)
	if err != nil {
		return nil, err
	}
	fleet, err := scenario.BuildFleet(sc, m.Floats())
	if err != nil {
		return nil, err
	}
	local, remote := telemetry.Pipe()
	s := sim.New(remote, fleet, sim.WithLogger(logger))
	g.Go(func() error {
		defer remote.Close()
		return s.Run(ctx)
	})
	logger.Info("verifying simulated fleet", slog.String("scenario", sc.Name), slog.Any("autopilots", sc.IDs()))
	return local, nil
}

func loadScenario(path string, devices []uint8) (*scenario.Scenario, error) {
	if path == "baseline" {
		return scenario.ForDevices(devices...), nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}
	return scenario.Load(path)
}
