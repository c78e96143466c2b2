package main

import (
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/delta10/wms-probe/internal/annotate"
	"github.com/delta10/wms-probe/internal/server"
)

func newServeCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the probe and annotate HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			probe, err := newProbe(cfg, logger)
			if err != nil {
				return err
			}

			var annotator *annotate.Annotator
			if cfg.Catalog.BaseURL != "" {
				annotator, err = newAnnotator(cfg, logger)
				if err != nil {
					return err
				}
			}

			options := server.Options{
				ResponseRewrite: cfg.ResponseRewrite,
				AllowedGroups:   cfg.AllowedGroups,
				WriteTimeout:    cfg.AnnotateRequestTimeout(),
			}

			if cfg.JwksURL != "" {
				jwks, err := keyfunc.Get(cfg.JwksURL, keyfunc.Options{
					RefreshInterval: time.Hour,
					RefreshErrorHandler: func(err error) {
						logger.Error("could not refresh jwks", zap.Error(err))
					},
				})
				if err != nil {
					return err
				}
				defer jwks.EndBackground()

				options.Keyfunc = jwks.Keyfunc
			}

			s, err := server.New(probe, annotator, options, logger)
			if err != nil {
				return err
			}

			srv := s.HTTPServer(cfg.ListenAddress)
			logger.Info("listening", zap.String("address", cfg.ListenAddress))

			if cfg.ListenTLS.Certificate != "" && cfg.ListenTLS.Key != "" {
				return srv.ListenAndServeTLS(cfg.ListenTLS.Certificate, cfg.ListenTLS.Key)
			}

			return srv.ListenAndServe()
		},
	}
}
