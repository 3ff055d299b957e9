package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/animalet/sargantana-config/pkg/config"
	"github.com/animalet/sargantana-config/pkg/controller"
	"github.com/animalet/sargantana-config/pkg/environment"
	"github.com/animalet/sargantana-config/pkg/server"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Version information set during build
var (
	version = "dev"
)

const (
	exitSuccess = 0
	exitError   = 1
)

type options struct {
	configPath  string
	debug       bool
	showVersion bool
	showHelp    bool
}

func main() {
	os.Exit(runWithArgs(os.Args[1:]))
}

func runWithArgs(args []string) int {
	opts, err := parseFlags(args)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		printUsage(os.Stderr)
		return exitError
	}

	if opts.showHelp {
		printUsage(os.Stdout)
		return exitSuccess
	}

	if opts.showVersion {
		_, _ = fmt.Fprintf(os.Stdout, "sargantana-config version %s\n", version)
		return exitSuccess
	}

	if opts.configPath == "" {
		_, _ = fmt.Fprintln(os.Stderr, "Error: --config flag is required")
		printUsage(os.Stderr)
		return exitError
	}

	setupLogging(opts.debug)
	if err := runServer(opts); err != nil {
		log.Error().Err(err).Msg("Server error")
		return exitError
	}
	return exitSuccess
}

func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("sargantana-config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	opts := &options{}
	fs.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	fs.BoolVar(&opts.debug, "debug", false, "Enable debug mode")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			opts.showHelp = true
			return opts, nil
		}
		return nil, err
	}
	return opts, nil
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprint(w, `Usage: sargantana-config --config <file> [--debug]

Serves application configurations resolved from Redis, Memcached, PostgreSQL
or MongoDB.

Flags:
  --config <file>  Path to the configuration file (.yaml, .json or .toml)
  --debug          Enable debug logging and gin debug mode
  --version        Show version information
  --help           Show this message

Endpoints:
  GET <path>/{application}/{profiles}[/{label}]

See https://github.com/animalet/sargantana-config for configuration examples.
`)
}

func setupLogging(debug bool) {
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		NoColor:    false,
		TimeFormat: "2006-01-02 15:04:05",
	})
	server.SetDebug(debug)
}

func runServer(opts *options) error {
	srv, closeFunc, err := initServer(opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFunc(); err != nil {
			log.Error().Err(err).Msg("Failed to release store clients")
		}
	}()
	return srv.StartAndWaitForSignal()
}

// initServer builds the server out of the configuration file. The returned
// function releases the store clients.
func initServer(opts *options) (*server.Server, func() error, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, nil, err
	}

	serverCfg, err := server.LoadConfig(cfg)
	if err != nil {
		return nil, nil, errors.Wrap(err, "server configuration is required")
	}

	defaults, err := config.Get[environment.Defaults](cfg, "defaults")
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load defaults configuration")
	}
	if defaults == nil {
		standard := environment.StandardDefaults()
		defaults = &standard
	}
	log.Info().
		Str("application", defaults.ApplicationName).
		Str("profile", defaults.Profile).
		Str("label", defaults.Label).
		Msg("Defaults configured")

	repository, release, err := buildRepository(cfg, *defaults)
	if err != nil {
		return nil, nil, err
	}

	controller.RegisterAll()
	return server.NewServer(*serverCfg, repository, *defaults), release.Close, nil
}
