package main

import (
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"paramcheck/internal/manifest"
	"paramcheck/internal/scenario"
	"paramcheck/internal/sim"
	"paramcheck/internal/telemetry"
)

var (
	simScenario  string
	simManifest  string
	simListen    string
	simRemote    string
	simSeed      int64
	simHeartbeat time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a simulated autopilot fleet on UDP",
	Long: "simulate serves the manifest parameters on behalf of the scenario's autopilots until " +
		"interrupted. Point the verifier's link.remote at the simulator's listen address.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("manifest") {
			cfg.Manifest = simManifest
		}
		if cmd.Flags().Changed("scenario") {
			cfg.Simulation.Scenario = simScenario
		}
		if cfg.Simulation.Scenario == "" {
			cfg.Simulation.Scenario = "baseline"
		}
		logger, closeLog, err := newLogger(cfg, false)
		if err != nil {
			return err
		}
		defer closeLog()

		m, err := manifest.Load(cfg.Manifest)
		if err != nil {
			return err
		}
		sc, err := loadScenario(cfg.Simulation.Scenario, cfg.Devices)
		if err != nil {
			return err
		}
		fleet, err := scenario.BuildFleet(sc, m.Floats())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		tr, err := telemetry.ListenUDP(ctx, telemetry.UDPConfig{
			Listen:      simListen,
			Remote:      simRemote,
			Broadcast:   cfg.Link.Broadcast,
			ReadTimeout: cfg.Link.ReadTimeout,
		})
		if err != nil {
			return err
		}
		defer tr.Close()

		opts := []func(*sim.Simulator){sim.WithLogger(logger), sim.WithHeartbeat(simHeartbeat)}
		if cmd.Flags().Changed("seed") {
			opts = append(opts, sim.WithSeed(simSeed))
		}
		logger.Info("simulating fleet",
			slog.String("scenario", sc.Name),
			slog.String("listen", tr.LocalAddr().String()),
			slog.Int("params", m.Len()))
		return sim.New(tr, fleet, opts...).Run(ctx)
	},
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simScenario, "scenario", "", `Scenario file describing the fleet ("baseline" for a clean fleet of the configured devices)`)
	f.StringVar(&simManifest, "manifest", "", "Manifest whose values every autopilot starts with")
	f.StringVar(&simListen, "listen", "0.0.0.0:14555", "Local UDP address to serve on")
	f.StringVar(&simRemote, "remote", "", "Send replies here instead of to the requester")
	f.Int64Var(&simSeed, "seed", 0, "Seed for dropouts and sensor errors")
	f.DurationVar(&simHeartbeat, "heartbeat", time.Second, "Heartbeat interval, 0 to disable")
}
