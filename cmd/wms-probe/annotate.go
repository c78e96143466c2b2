package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/delta10/wms-probe/internal/annotate"
	"github.com/delta10/wms-probe/internal/catalog"
	"github.com/delta10/wms-probe/internal/config"
	"github.com/delta10/wms-probe/internal/logs"
	"github.com/delta10/wms-probe/internal/utils"
)

func newAnnotateCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "annotate <resource-id>...",
		Short: "Annotate catalog resources that serve WMS",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			annotator, err := newAnnotator(cfg, logger)
			if err != nil {
				return err
			}

			failed := 0
			for _, result := range annotator.AnnotateAll(cmd.Context(), args) {
				if result.Err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%s\terror\t%s\n", result.ID, result.Error)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tchanged=%t\n", result.ID, result.Verdict, result.Changed)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d resources failed", failed, len(args))
			}

			return nil
		},
	}
}

func newAnnotator(cfg *config.Config, logger *zap.Logger) (*annotate.Annotator, error) {
	probe, err := newProbe(cfg, logger)
	if err != nil {
		return nil, err
	}

	client, err := catalog.NewClient(
		cfg.Catalog.BaseURL,
		utils.EnvSubst(cfg.Catalog.APIKey),
		&http.Client{Timeout: time.Duration(cfg.Catalog.Timeout)},
	)
	if err != nil {
		return nil, err
	}

	opts := []annotate.Option{annotate.WithConcurrency(cfg.Annotate.Concurrency)}
	if cfg.LogBackend.BaseURL != "" {
		opts = append(opts, annotate.WithRecorder(logs.NewLogBackend(cfg.LogBackend, nil)))
	}

	return annotate.New(probe, client, logger, opts...), nil
}
