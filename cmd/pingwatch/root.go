package main

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pingwatch/internal/adapter"
	"pingwatch/internal/config"
	"pingwatch/internal/logging"
	"pingwatch/internal/preflight"
	"pingwatch/internal/probe"
)

// app carries what every subcommand needs once flags are parsed
type app struct {
	configPath string

	cfg       *config.Config
	cfgPath   string
	log       *logrus.Logger
	logCloser io.Closer
}

// flagKeys maps command line flags onto config keys
var flagKeys = map[string]string{
	"log-level": "log.level",
	"addr":      "http.addr",
	"db":        "database.path",
	"timeout":   "probe.timeout_seconds",
	"ping-path": "probe.ping_path",
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pingwatch",
		Short: "Host reachability monitor",
		Long: `pingwatch keeps a set of configured hosts under periodic ping watch,
records whether each one is alive and how fast it answered, and can sweep
a subnet for hosts that are not configured yet.

Examples:
  pingwatch serve --config ./pingwatch.yaml
  pingwatch ping 192.168.1.1 router.lan
  pingwatch browse --interface eth0
  pingwatch interfaces
  pingwatch check`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "",
		fmt.Sprintf("config file (default: $%s, ./%s, ~/.config/%s/config.yaml)",
			config.EnvConfigPath, config.ConfigFileName, config.ConfigDirName))
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Int("timeout", 0, "probe timeout in seconds")
	flags.String("ping-path", "", "ping binary to use")

	cmd.AddCommand(
		newServeCmd(a),
		newPingCmd(a),
		newBrowseCmd(a),
		newInterfacesCmd(),
		newCheckCmd(a),
	)
	return cmd
}

// init loads the config with flag overrides and sets up logging
func (a *app) init(cmd *cobra.Command) error {
	loader := config.NewLoader(a.configPath)
	v := loader.Viper()
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}

	cfg, path, err := loader.Load()
	if err != nil {
		return err
	}
	log, closer, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}

	a.cfg, a.cfgPath = cfg, path
	a.log, a.logCloser = log, closer
	if path == "" {
		log.Debug("no config file found, running on defaults")
	}
	return nil
}

func (a *app) close() {
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}

func (a *app) prober() *probe.Engine {
	return probe.New(
		probe.WithPingPath(a.cfg.Probe.PingPath),
		probe.WithLogger(a.log),
	)
}

func (a *app) preflight(ctx context.Context, prober *probe.Engine) preflight.Report {
	arp := a.cfg.Enrich.ARPPath
	if arp == "" {
		arp = adapter.DefaultARPPath
	}
	return preflight.New().Run(ctx, preflight.Options{
		PingBinary: prober.Binary(),
		Nmap:       a.cfg.Enrich.Nmap,
		ARPPath:    arp,
	})
}

func (a *app) probeConfig() probe.Config {
	return probe.Config{
		Timeout:   a.cfg.ProbeTimeout(),
		MinReply:  a.cfg.Probe.MinReply,
		ExtraArgs: a.cfg.Probe.ExtraArgs,
	}
}
