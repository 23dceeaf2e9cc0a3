package voipms

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"
)

// MaxSMSLength is the longest message sendSMS accepts, in characters.
const MaxSMSLength = 160

// SMSReceipt identifies a message accepted by the API.
type SMSReceipt struct {
	ID string
}

// SendSMS sends message from the SMS-enabled did to dst.
func (c *Client) SendSMS(ctx context.Context, did, dst, message string) (SMSReceipt, error) {
	if did == "" {
		return SMSReceipt{}, errors.New("did is required")
	}
	if dst == "" {
		return SMSReceipt{}, errors.New("destination is required")
	}
	n := utf8.RuneCountInString(message)
	if n == 0 || n > MaxSMSLength {
		return SMSReceipt{}, fmt.Errorf("message must be 1 to %d characters, got %d", MaxSMSLength, n)
	}

	raw, err := c.call(ctx, MethodSendSMS, map[string]string{
		"did":     did,
		"dst":     dst,
		"message": message,
	})
	if err != nil {
		return SMSReceipt{}, fmt.Errorf("send sms to %s: %w", dst, err)
	}
	var receipt SMSReceipt
	if id, ok := raw["sms"]; ok && id != nil {
		receipt.ID = fmt.Sprint(id)
	}
	return receipt, nil
}
