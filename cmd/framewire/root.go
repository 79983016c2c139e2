package main

import (
	"strings"
	"time"

	"github.com/danmuck/framewire/internal/config"
	"github.com/danmuck/framewire/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// globalOptions are the persistent flags. Each one overrides the config
// file only when set on the command line.
type globalOptions struct {
	configPath    string
	address       string
	port          int
	family        string
	debug         bool
	retry         bool
	retryInterval time.Duration
	tokenStart    string
	tokenEnd      string
	packetSize    int
	packetDelay   time.Duration
	metricsAddr   string
	showIPS       bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "framewire",
		Short:         "Exchange typed, framed values with one peer over TCP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := root.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "config file (.toml or .yaml)")
	f.StringVar(&opts.address, "address", "", "address to bind (server) or dial (client)")
	f.IntVar(&opts.port, "port", 0, "port to bind or dial")
	f.StringVar(&opts.family, "family", "", "address family: ipv4|ipv6")
	f.BoolVar(&opts.debug, "debug", false, "log connection and frame details")
	f.BoolVar(&opts.retry, "retry", false, "keep retrying bind/connect at a fixed interval")
	f.DurationVar(&opts.retryInterval, "retry-interval", 0, "wait between bind/connect attempts")
	f.StringVar(&opts.tokenStart, "token-start", "", "start marker wrapped around every frame")
	f.StringVar(&opts.tokenEnd, "token-end", "", "end marker wrapped around every frame")
	f.IntVar(&opts.packetSize, "packet-size", 0, "largest segment written or read at once")
	f.DurationVar(&opts.packetDelay, "packet-delay", 0, "pause between segments of one payload")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /health and /metrics on this address")
	f.BoolVar(&opts.showIPS, "show-ips", false, "log iterations per second")

	root.AddCommand(
		newServerCmd(opts),
		newClientCmd(opts),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

// load resolves the effective config for role: defaults, then the config
// file, then explicitly set flags. It also installs the process logger.
func (o *globalOptions) load(flags *pflag.FlagSet, role string) (config.Config, error) {
	cfg := config.Default()
	if strings.TrimSpace(o.configPath) != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	cfg.Role = role

	if flags.Changed("address") {
		cfg.Address = o.address
	}
	if flags.Changed("port") {
		cfg.Port = o.port
	}
	if flags.Changed("family") {
		cfg.Family = o.family
	}
	if flags.Changed("debug") {
		cfg.Debug = o.debug
	}
	if flags.Changed("retry") {
		cfg.Retry.Enabled = o.retry
	}
	if flags.Changed("retry-interval") {
		cfg.Retry.Interval = config.D(o.retryInterval)
	}
	if flags.Changed("token-start") {
		cfg.Tokens.Start = o.tokenStart
	}
	if flags.Changed("token-end") {
		cfg.Tokens.End = o.tokenEnd
	}
	if flags.Changed("packet-size") {
		cfg.Packets.MaxSize = o.packetSize
	}
	if flags.Changed("packet-delay") {
		cfg.Packets.Delay = config.D(o.packetDelay)
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = o.metricsAddr
	}
	if flags.Changed("show-ips") {
		cfg.ShowIPS = o.showIPS
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	logging.ConfigureWith(cfg.LogConfig())
	return cfg, nil
}
