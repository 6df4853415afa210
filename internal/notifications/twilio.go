package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

const whatsAppPrefix = "whatsapp:"

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender delivers SMS or WhatsApp messages through Twilio.
type TwilioSender struct {
	api      messageCreator
	from     string
	whatsApp bool
}

// NewTwilioSenders builds the SMS and WhatsApp senders sharing one Twilio
// client whose HTTP requests are bounded by timeout. A sender is nil when its
// from number is empty.
func NewTwilioSenders(accountSID, authToken, smsFrom, whatsAppFrom string, timeout time.Duration) (sms, whatsApp *TwilioSender) {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	if from := strings.TrimSpace(smsFrom); from != "" {
		sms = &TwilioSender{api: client.Api, from: from}
	}
	if from := strings.TrimSpace(whatsAppFrom); from != "" {
		whatsApp = &TwilioSender{api: client.Api, from: withWhatsAppPrefix(from), whatsApp: true}
	}
	return sms, whatsApp
}

// Send implements Sender. The Twilio client has no context support; its HTTP
// timeout ends requests the router has stopped waiting for.
func (s *TwilioSender) Send(ctx context.Context, phone string, p Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to := strings.TrimSpace(phone)
	if s.whatsApp {
		to = withWhatsAppPrefix(to)
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(messageBody(p))
	if _, err := s.api.CreateMessage(params); err != nil {
		channel := "sms"
		if s.whatsApp {
			channel = "whatsapp"
		}
		return fmt.Errorf("twilio %s send: %w", channel, err)
	}
	return nil
}

func withWhatsAppPrefix(number string) string {
	if strings.HasPrefix(number, whatsAppPrefix) {
		return number
	}
	return whatsAppPrefix + number
}

func messageBody(p Payload) string {
	if p.Title == "" {
		return p.Message
	}
	return p.Title + "\n" + p.Message
}
