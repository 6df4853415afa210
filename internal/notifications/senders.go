package notifications

import (
	"context"
	"strings"

	"crmflow/internal/config"
	"crmflow/internal/store"
)

// SendersFromConfig builds a sender for every channel that has enough
// configuration. Channels without a sender are skipped during fan-out.
func SendersFromConfig(cfg *config.Config) map[Channel]Sender {
	senders := make(map[Channel]Sender)
	if cfg == nil {
		return senders
	}
	if base := strings.TrimSpace(cfg.Push.NtfyBaseURL); base != "" {
		senders[ChannelPush] = NewNtfySender(base, cfg.SendTimeout())
	}
	if cfg.EmailConfigured() {
		senders[ChannelEmail] = NewEmailSender(cfg.Email.SMTPHost, cfg.Email.SMTPPort,
			cfg.Email.Username, cfg.Email.Password, cfg.Email.From)
	}
	if cfg.TwilioConfigured() {
		sms, whatsApp := NewTwilioSenders(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken,
			cfg.Twilio.SMSFrom, cfg.Twilio.WhatsAppFrom, cfg.SendTimeout())
		if sms != nil {
			senders[ChannelSMS] = sms
		}
		if whatsApp != nil {
			senders[ChannelWhatsApp] = whatsApp
		}
	}
	return senders
}

type storeDirectory struct {
	store *store.Store
}

// NewStoreDirectory resolves contacts from the users table.
func NewStoreDirectory(st *store.Store) Directory {
	return storeDirectory{store: st}
}

func (d storeDirectory) Contact(ctx context.Context, userID string) (*Contact, error) {
	u, err := d.store.GetUser(ctx, userID)
	if err != nil || u == nil {
		return nil, err
	}
	return &Contact{Email: u.Email, Phone: u.Phone}, nil
}
