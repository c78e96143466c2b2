package main

import (
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/delta10/wms-probe/internal/config"
	"github.com/delta10/wms-probe/internal/logs"
	"github.com/delta10/wms-probe/internal/wms"
)

type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "wms-probe",
		Short:         "Detect WMS endpoints and annotate catalog resources",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "config.yaml", "path to the configuration file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level, overrides logLevel from the configuration")

	root.AddCommand(
		newProbeCommand(flags),
		newAnnotateCommand(flags),
		newServeCommand(flags),
	)

	return root
}

// setup loads the configuration and builds the logger. A missing config file
// falls back to the defaults so the probe command works without one.
func setup(flags *globalFlags) (*config.Config, *zap.Logger, error) {
	cfg, err := config.NewConfig(flags.configPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		return nil, nil, err
	}

	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}

	logger, err := logs.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	return cfg, logger, nil
}

func newProbe(cfg *config.Config, logger *zap.Logger) (*wms.Probe, error) {
	parsers := make([]wms.Parser, 0, len(cfg.Probe.Versions))
	for _, version := range cfg.Probe.Versions {
		parser, err := wms.ParserFor(version)
		if err != nil {
			return nil, err
		}
		parsers = append(parsers, parser)
	}

	fetcher := wms.NewHTTPFetcher(&http.Client{}, wms.FetcherOptions{
		Timeout:      time.Duration(cfg.Probe.Timeout),
		UserAgent:    cfg.Probe.UserAgent,
		MaxBodyBytes: cfg.Probe.MaxBodyBytes,
	}, logger)

	return wms.NewProbe(fetcher, logger, parsers...), nil
}
