package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/delta10/wms-probe/internal/wms"
)

func newProbeCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <url>",
		Short: "Check whether a URL serves WMS and list its base URLs",
		Args:  cobra.ExactArgs(1),
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

			target := args[0]
			verdict := probe.IsWMS(cmd.Context(), target)
			logger.Debug("probe finished", zap.String("url", target), zap.Stringer("verdict", verdict))

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, verdict)
			if verdict != wms.Confirmed {
				return nil
			}

			for _, baseURL := range probe.ExtractBaseURLs(cmd.Context(), target).Sorted() {
				fmt.Fprintln(out, baseURL)
			}

			return nil
		},
	}
}
