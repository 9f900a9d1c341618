package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	dnsrelay "github.com/Cabonhydrate/DNS-Local-Server"
)

func main() {
	var verbosity int
	var debugLog bool

	cmd := &cobra.Command{
		Use:   "dnsrelayd <config.toml>",
		Short: "Recursive-forwarding DNS relay with local overrides and caching",
		Long: `dnsrelayd is a DNS relay that answers queries from a local override
database and an in-memory cache before forwarding anything it can't
answer itself to a single upstream recursive resolver.
`,
		Example: `  dnsrelayd config.toml
  dnsrelayd -d config.toml`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], verbosity >= 1, debugLog || verbosity >= 2)
		},
	}
	cmd.Flags().CountVarP(&verbosity, "info", "d", "enable info-level logging, overriding the config file (-dd enables debug-level)")
	cmd.Flags().BoolVarP(&debugLog, "debug", "D", false, "enable debug-level logging, overriding the config file (also settable as -dd)")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configFile string, infoLog, debugLog bool) error {
	cfg, err := loadFileConfig(configFile)
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if infoLog {
		level = "info"
	}
	if debugLog {
		level = "debug"
	}
	log := dnsrelay.NewLogrusLogger(level)

	if err := wireLogOutput(log, cfg.LogFile); err != nil {
		log.Warningf("failed to configure log output %q, falling back to stderr: %v", cfg.LogFile, err)
	}

	var rules []dnsrelay.Rule
	if cfg.DatabaseFile != "" {
		rules, err = loadRules(cfg.DatabaseFile, log)
		if err != nil {
			return err
		}
		log.Infof("loaded %d override rule(s) from %s", len(rules), cfg.DatabaseFile)
	}

	overrides, err := dnsrelay.NewOverrideTable(rules, cfg.OverrideTTL)
	if err != nil {
		return err
	}

	srv, err := dnsrelay.NewServer(cfg, overrides, log)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go handleReload(ctx, cfg, srv, log)

	log.Infof("starting DNS relay on %s:%d, upstream %s:%d", cfg.LocalIP, cfg.LocalPort, cfg.UpstreamIP, cfg.UpstreamPort)
	err = srv.Serve(ctx)
	srv.Close()
	return err
}

// handleReload reloads the override rule file on SIGHUP and atomically
// swaps it into the running server, so an operator can update overrides
// without restarting the process.
func handleReload(ctx context.Context, cfg dnsrelay.Config, srv *dnsrelay.Server, log dnsrelay.Logger) {
	if cfg.DatabaseFile == "" {
		return
	}
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	defer signal.Stop(sighup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sighup:
			rules, err := loadRules(cfg.DatabaseFile, log)
			if err != nil {
				log.Errorf("failed to reload rule file: %v", err)
				continue
			}
			overrides, err := dnsrelay.NewOverrideTable(rules, cfg.OverrideTTL)
			if err != nil {
				log.Errorf("failed to rebuild override table on reload: %v", err)
				continue
			}
			srv.SetOverrides(overrides)
			log.Infof("reloaded %d override rule(s) from %s", len(rules), cfg.DatabaseFile)
		}
	}
}

// wireLogOutput points log at the configured sink: stderr for "", "-", a
// regular file for a path, or syslog for a "syslog://network/address" URL.
func wireLogOutput(log *dnsrelay.LogrusLogger, target string) error {
	if target == "" || target == "-" {
		return nil
	}
	if strings.HasPrefix(target, "syslog://") {
		rest := strings.TrimPrefix(target, "syslog://")
		parts := strings.SplitN(rest, "/", 2)
		network := parts[0]
		address := ""
		if len(parts) == 2 {
			address = parts[1]
		}
		return log.AddSyslogHook(network, address, "dnsrelayd")
	}
	f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	log.SetOutput(f)
	return nil
}
