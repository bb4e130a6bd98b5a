// flightbus-routes builds the software bus routes described by a mission
// configuration and prints the resulting route table.
//
// The table layout depends only on the order of subscriptions in the
// file, so the printed digest can be compared against the digest reported
// by a running executive to confirm both reached the same slot
// assignments.
//
// Usage:
//
//	flightbus-routes --config mission.yaml [--dump routes.cbor] [--log-level debug]
package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/pion/logging"
	"github.com/spf13/pflag"

	"github.com/backkem/flightbus/pkg/bus"
	"github.com/backkem/flightbus/pkg/config"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	var configPath, dumpPath, logLevel string

	flagSet := pflag.NewFlagSet("flightbus-routes", pflag.ContinueOnError)
	flagSet.SetOutput(stdout)
	flagSet.StringVarP(&configPath, "config", "c", "", "mission configuration file (required)")
	flagSet.StringVar(&dumpPath, "dump", "", "write the CBOR route table dump to this file")
	flagSet.StringVar(&logLevel, "log-level", "warn", "bus log level (trace, debug, info, warn, error)")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if configPath == "" {
		return fmt.Errorf("--config is required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	factory := logging.NewDefaultLoggerFactory()
	factory.DefaultLogLevel = parseLogLevel(logLevel)

	b, err := bus.New(cfg.BusConfig(factory))
	if err != nil {
		return err
	}
	defer b.Close()

	if err := cfg.Apply(b); err != nil {
		return err
	}

	if err := printRoutes(stdout, cfg, b); err != nil {
		return err
	}

	if dumpPath != "" {
		dump, err := b.RouteDump()
		if err != nil {
			return err
		}
		if err := os.WriteFile(dumpPath, dump, 0o644); err != nil {
			return fmt.Errorf("write dump: %w", err)
		}
	}
	return nil
}

func printRoutes(w io.Writer, cfg *config.Config, b *bus.Bus) error {
	fmt.Fprintf(w, "mission %s  config %s  cpu %s (%d)  spacecraft 0x%X\n",
		cfg.Mission.Name, cfg.Mission.Config, cfg.Mission.CPUName, cfg.Mission.CPUID, cfg.Mission.SpacecraftID)

	stats := b.Stats()
	fmt.Fprintf(w, "routes %d/%d  pipes %d/%d  collisions %d\n\n",
		stats.Routes, cfg.Bus.MaxRoutes, stats.Pipes, cfg.Bus.MaxPipes, stats.RouteCollisions)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROUTE\tMSGID\tMAP\tPIPES")
	for _, s := range b.Subscriptions() {
		names := make([]string, len(s.Pipes))
		for i, id := range s.Pipes {
			names[i] = b.PipeName(id)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n",
			s.Route.RouteID, s.Route.MsgID, s.Route.MapIndex, strings.Join(names, ","))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	digest, err := b.RouteDigest()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\ndigest %x\n", digest)
	return nil
}

func parseLogLevel(s string) logging.LogLevel {
	switch strings.ToLower(s) {
	case "trace":
		return logging.LogLevelTrace
	case "debug":
		return logging.LogLevelDebug
	case "info":
		return logging.LogLevelInfo
	case "error":
		return logging.LogLevelError
	case "disabled", "off":
		return logging.LogLevelDisabled
	default:
		return logging.LogLevelWarn
	}
}
