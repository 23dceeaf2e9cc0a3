package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func NewSMSCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sms",
		Short: "Send SMS through the voip.ms API",
	}
	cmd.AddCommand(newSMSSendCommand())
	return cmd
}

func newSMSSendCommand() *cobra.Command {
	var did, dst, message string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one SMS from an SMS-enabled DID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if rt.cfg == nil {
				return errors.New("config not loaded")
			}
			if did == "" {
				did = rt.cfg.SMS.DID
			}
			if did == "" {
				return errors.New("--did is required when sms.did is not configured")
			}

			client, err := newVoipmsClient(rt.cfg, rt.Logger())
			if err != nil {
				return err
			}
			receipt, err := client.SendSMS(cmd.Context(), did, dst, message)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "SMS %s sent to %s\n", receipt.ID, dst)
			return nil
		},
	}

	cmd.Flags().StringVar(&did, "did", "", "Sending DID (default from sms.did)")
	cmd.Flags().StringVar(&dst, "dst", "", "Destination number")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Message text, at most 160 characters")
	_ = cmd.MarkFlagRequired("dst")
	_ = cmd.MarkFlagRequired("message")

	return cmd
}
