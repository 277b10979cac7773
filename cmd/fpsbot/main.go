// Package main provides fpsbot, a load and smoke-test driver that plays
// simulated players against a running relay server.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/fpsnet/internal/bot"
	"github.com/cory-johannsen/fpsnet/internal/config"
	"github.com/cory-johannsen/fpsnet/internal/observability"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fpsbot",
		Short: "Drive simulated players against a relay server",
		Long: `fpsbot connects simulated players to a relay server through the
client network proxy. A YAML scenario names the rooms, how many bots join
each one, and how often they move and shoot.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		runCmd(),
		validateCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var (
		scenarioPath string
		configPath   string
		url          string
		duration     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := bot.LoadScenario(scenarioPath)
			if err != nil {
				return err
			}
			if url != "" {
				s.URL = url
			}
			if duration > 0 {
				s.Duration = duration
			}
			if err := s.Validate(); err != nil {
				return err
			}

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			logger, err := observability.NewLogger(cfg.Logging, "fpsbot")
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}
			defer logger.Sync()

			logger.Info("starting scenario",
				zap.String("url", s.URL),
				zap.Int("bots", s.TotalBots()),
				zap.Int("rooms", len(s.Rooms)),
				zap.Duration("duration", s.Duration),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rep := bot.NewRunner(logger, cfg.Proxy).Run(ctx, s)
			printReport(cmd, rep)
			if rep.Joined == 0 {
				return fmt.Errorf("no bot joined a room (%d connect failures, %d join failures)", rep.ConnectFailed, rep.JoinFailed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&scenarioPath, "scenario", "s", "configs/bots.yaml", "path to scenario file")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file (defaults and FPS_ environment when empty)")
	cmd.Flags().StringVar(&url, "url", "", "override the scenario's relay URL")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "override the scenario's duration")

	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <scenario>",
		Short: "Check a scenario file without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := bot.LoadScenario(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: ok\n", args[0])
			fmt.Fprintf(out, "  url:      %s\n", s.URL)
			fmt.Fprintf(out, "  duration: %s\n", s.Duration)
			for _, r := range s.Rooms {
				fmt.Fprintf(out, "  room %-12s %d bots\n", r.ID, r.Bots)
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fpsbot %s (%s)\n", version, commit)
		},
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}

func printReport(cmd *cobra.Command, rep bot.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "bots:             %d\n", rep.Bots)
	fmt.Fprintf(out, "joined:           %d\n", rep.Joined)
	fmt.Fprintf(out, "join failures:    %d\n", rep.JoinFailed)
	fmt.Fprintf(out, "connect failures: %d\n", rep.ConnectFailed)
	fmt.Fprintf(out, "updates sent:     %d\n", rep.UpdatesSent)
	fmt.Fprintf(out, "updates received: %d\n", rep.UpdatesReceived)
	fmt.Fprintf(out, "shots sent:       %d\n", rep.ShotsSent)
	fmt.Fprintf(out, "shots received:   %d\n", rep.ShotsReceived)
	fmt.Fprintf(out, "enemy updates:    %d\n", rep.EnemyUpdates)
	fmt.Fprintf(out, "host promotions:  %d\n", rep.HostPromotions)
}
