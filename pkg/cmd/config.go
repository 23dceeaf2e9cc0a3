package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sipwatch/sipwatch/pkg/output"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	cmd.AddCommand(
		newConfigViewCommand(),
		newConfigValidateCommand(),
	)

	return cmd
}

func newConfigViewCommand() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Show the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if rt.cfg == nil {
				return fmt.Errorf("config not loaded")
			}
			format := output.Format(outputFormat)
			if format != output.FormatYAML && format != output.FormatJSON {
				return fmt.Errorf("unsupported output format %q", outputFormat)
			}
			return output.WriteObject(rt.Writer(), format, rt.cfg.Redacted())
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "yaml", "Output format: yaml, json")

	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			cfg, err := rt.ValidConfig()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Configuration is valid (%d accounts)\n", len(cfg.Accounts))
			return nil
		},
	}
}
