package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sipwatch/sipwatch/pkg/metrics"
	"github.com/sipwatch/sipwatch/pkg/output"
)

func NewCheckCommand() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check every configured account once",
		Long: `Check the registration status of every configured account once, send the
failure or recovery emails that are due, and exit. This is also what running
sipwatch without a subcommand does.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json, yaml")

	return cmd
}

func runCheck(cmd *cobra.Command, outputFormat string) error {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	rt, err := getRuntime(cmd)
	if err != nil {
		return err
	}
	cfg, err := rt.ValidConfig()
	if err != nil {
		return err
	}
	log := rt.Logger()

	svc, err := newService(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Warn("Failed to close service", zap.Error(err))
		}
	}()

	report, runErr := svc.runOnce(cmd.Context())

	if path := cfg.Metrics.TextfilePath; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			log.Warn("Failed to write metrics textfile", zap.String("path", path), zap.Error(err))
		}
	}

	if report.RunID == "" {
		return runErr
	}
	if format == output.FormatTable {
		output.WriteReportTable(rt.Writer(), report)
	} else if err := output.WriteObject(rt.Writer(), format, report); err != nil {
		return err
	}
	return runErr
}
