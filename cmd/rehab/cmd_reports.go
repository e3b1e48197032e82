package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lingting/rehab-core/core/reports"
)

func newReportsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Serve and generate training reports",
	}
	cmd.AddCommand(newReportsServeCmd(a), newReportsGenerateCmd(a))
	return cmd
}

func newReportsServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored training records over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := reports.NewFileStore(a.cfg.ReportsDir)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.ReportAddr
			}
			return reports.Serve(cmd.Context(), addr, store)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to REPORT_ADDR)")
	return cmd
}

func newReportsGenerateCmd(a *app) *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write an evaluation into every stored record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.DashScopeAPIKey == "" {
				return errors.New("DASHSCOPE_API_KEY is required to generate reports")
			}
			store, err := reports.NewFileStore(a.cfg.ReportsDir)
			if err != nil {
				return err
			}

			generated, err := reports.GenerateAll(cmd.Context(), store, newGenerator(a.cfg), reports.WithOverwrite(overwrite))
			slog.Info("reports generated", "count", generated)
			return err
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Regenerate records that already have a report")
	return cmd
}
