// Package main provides the relaycheck CLI entry point.
//
// relaycheck is a black-box harness that validates a netcat-style relay tool
// by spawning it as an external process, observing its output lines, and
// classifying the observed behavior into pass/fail verdicts.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/sableyard/relaycheck/internal/config"
	"github.com/sableyard/relaycheck/internal/logging"
	"github.com/sableyard/relaycheck/internal/metrics"
	"github.com/sableyard/relaycheck/internal/preflight"
	"github.com/sableyard/relaycheck/internal/scenario"
	"github.com/sableyard/relaycheck/internal/stats"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/relaycheck
var version = "dev"

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:        "relaycheck",
		Usage:       "black-box validation harness for a netcat-style relay tool",
		Description: "Spawns the relay tool, observes its output, and classifies behavior into session/error/timeout/eof verdicts.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "bin",
				Usage: "path to the relay binary under test",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "TOML configuration file overlaying the defaults",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log output format (text or json)",
				Value: "text",
			},
			&cli.StringFlag{
				Name:  "metrics",
				Usage: "serve Prometheus metrics on this address (host:port)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			listenCommand(),
			connectCommand(),
			ptyCommand(),
			socksCommand(),
			versionCommand(),
		},
	}
}

func listenCommand() *cli.Command {
	return &cli.Command{
		Name:      "listen",
		Usage:     "Run the master-listen suites (peers dial the tool's listeners)",
		ArgsUsage: "[tcp|udp]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			if err := applyTransport(cfg, cmd); err != nil {
				return err
			}
			return runSuites(cfg, logger, scenario.ListenSuites(cfg))
		},
	}
}

func connectCommand() *cli.Command {
	return &cli.Command{
		Name:      "connect",
		Usage:     "Run the master-connect suites (the tool dials slave listeners)",
		ArgsUsage: "[tcp|udp]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			if err := applyTransport(cfg, cmd); err != nil {
				return err
			}
			return runSuites(cfg, logger, scenario.ConnectSuites(cfg))
		},
	}
}

func ptyCommand() *cli.Command {
	return &cli.Command{
		Name:  "pty",
		Usage: "Run the interactive shell suite against --exec --pty mode",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			return runSuites(cfg, logger, scenario.PTYSuite(cfg))
		},
	}
}

func socksCommand() *cli.Command {
	return &cli.Command{
		Name:  "socks",
		Usage: "Run the SOCKS5 proxy suite against -D mode",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			return runSuites(cfg, logger, scenario.SocksSuite(cfg))
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the harness version",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Printf("relaycheck %s\n", version)
			return nil
		},
	}
}

// setup builds the effective configuration (defaults, then file, then flags)
// and the logger.
func setup(cmd *cli.Command) (*config.Config, *slog.Logger, error) {
	cfg := config.DefaultConfig()

	if path := cmd.String("config"); path != "" {
		if err := config.LoadFile(path, cfg); err != nil {
			return nil, nil, err
		}
	}
	if bin := cmd.String("bin"); bin != "" {
		cfg.BinPath = bin
	}
	if format := cmd.String("log-format"); format != "" {
		cfg.LogFormat = format
	}
	if addr := cmd.String("metrics"); addr != "" {
		cfg.MetricsAddr = addr
	}
	if cmd.Bool("verbose") {
		cfg.Verbose = true
	}

	if err := config.Validate(cfg); err != nil {
		return nil, nil, err
	}

	logger := logging.NewLogger(cfg.LogFormat, "info", cfg.Verbose)
	logging.SetDefault(logger)

	return cfg, logger, nil
}

// applyTransport reads the optional transport argument for listen/connect.
func applyTransport(cfg *config.Config, cmd *cli.Command) error {
	transport := cmd.Args().First()
	if transport == "" {
		return nil
	}
	if transport != "tcp" && transport != "udp" {
		return fmt.Errorf("unknown transport %q (want tcp or udp)", transport)
	}
	cfg.Transport = transport
	return nil
}

// runSuites executes the suites after preflight, serving metrics if
// configured, and prints the exit summary. Returns an error when any
// scenario failed so the process exits non-zero.
func runSuites(cfg *config.Config, logger *slog.Logger, suites []scenario.Suite) error {
	checks := preflight.RunAll(cfg.BinPath)
	preflight.PrintResults(checks)
	if !checks.Passed {
		return fmt.Errorf("preflight checks failed")
	}

	metrics.Register()
	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr, logger)
		srv.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
	}

	runner := scenario.NewRunner(cfg, logger, os.Stdout)
	failures := scenario.RunAll(runner, suites)

	agg := runner.Stats()
	metrics.SuiteCompleted(agg.Elapsed().Seconds(), failures)
	fmt.Print(stats.FormatExitSummary(agg, stats.SummaryConfig{
		SuiteName:   suiteNames(suites),
		MetricsAddr: cfg.MetricsAddr,
	}))

	if failures > 0 {
		return fmt.Errorf("%d scenario(s) failed", failures)
	}
	return nil
}

// suiteNames joins suite names for the summary header.
func suiteNames(suites []scenario.Suite) string {
	if len(suites) == 1 {
		return suites[0].Name
	}
	names := ""
	for i, s := range suites {
		if i > 0 {
			names += " + "
		}
		names += s.Name
	}
	return names
}
