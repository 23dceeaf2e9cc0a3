package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sipwatch/sipwatch/pkg/marker"
	"github.com/sipwatch/sipwatch/pkg/output"
)

func NewMarkerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "marker",
		Aliases: []string{"markers"},
		Short:   "Inspect or reset failure notification markers",
		Long: `A marker is kept for every account whose failure email has been sent and
that has not been seen registered since. Clearing a marker makes the next
failed check send a new failure email.`,
	}
	cmd.AddCommand(newMarkerListCommand(), newMarkerClearCommand())
	return cmd
}

func withStore(cmd *cobra.Command, fn func(rt *runtimeState, store marker.Store) error) error {
	rt, err := getRuntime(cmd)
	if err != nil {
		return err
	}
	if rt.cfg == nil {
		return fmt.Errorf("config not loaded")
	}
	store, err := openStore(cmd.Context(), rt.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			rt.Logger().Warn("Failed to close marker store", zap.Error(err))
		}
	}()
	return fn(rt, store)
}

func newMarkerListCommand() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts with an active failure marker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := output.ParseFormat(outputFormat)
			if err != nil {
				return err
			}
			return withStore(cmd, func(rt *runtimeState, store marker.Store) error {
				keys, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				if format == output.FormatTable {
					output.WriteMarkerTable(rt.Writer(), keys)
					return nil
				}
				if keys == nil {
					keys = []string{}
				}
				return output.WriteObject(rt.Writer(), format, keys)
			})
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json, yaml")

	return cmd
}

func newMarkerClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear ACCOUNT...",
		Short: "Remove the failure marker of the given accounts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(rt *runtimeState, store marker.Store) error {
				for _, account := range args {
					if err := store.Clear(cmd.Context(), account); err != nil {
						return fmt.Errorf("clear marker for %s: %w", account, err)
					}
					_, _ = fmt.Fprintf(rt.Writer(), "Cleared marker for %s\n", account)
				}
				return nil
			})
		},
	}
}
