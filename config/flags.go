package config

import (
	"flag"
	"io"
	"strings"

	"github.com/pkg/errors"
)

type flags struct {
	configPath string
	endpoint   string
	keypair    string
	listen     string
	logLevel   string
	once       bool
	noAutoScan bool
}

func parseFlags(args []string) (flags, error) {
	var f flags

	fs := flag.NewFlagSet("dexsnipe", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&f.configPath, "config", "", "path to yaml config")
	fs.StringVar(&f.endpoint, "endpoint", "", "solana RPC endpoint")
	fs.StringVar(&f.keypair, "keypair", "", "path to a solana-keygen keypair file; watch-only when empty")
	fs.StringVar(&f.listen, "listen", "", "operator API listen address, example: :8080")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug or info")
	fs.BoolVar(&f.once, "once", false, "run one scan, print the candidate table and exit")
	fs.BoolVar(&f.noAutoScan, "no-autoscan", false, "start with auto-scan disabled")

	if err := fs.Parse(args); err != nil {
		return flags{}, errors.Wrap(err, "parse flags")
	}
	return f, nil
}

func (f flags) apply(cfg *Config) {
	setString(&cfg.Endpoint, f.endpoint)
	setString(&cfg.KeypairPath, f.keypair)
	setString(&cfg.Listen, f.listen)
	setString(&cfg.LogLevel, strings.ToLower(f.logLevel))
	cfg.Once = f.once
	if f.noAutoScan {
		cfg.Settings.AutoScan = false
	}
}
