package notify

import (
	"strings"

	"github.com/wolfman30/whatsapp-leadbot/pkg/logging"
)

// Config selects and configures the email provider.
type Config struct {
	Provider string // sendgrid, ses or stub
	SendGrid SendGridConfig
	SES      SESConfig
}

// NewEmailSender builds the configured sender, falling back to the stub when
// the chosen provider is not usable.
func NewEmailSender(cfg Config, ses SESAPI, logger *logging.Logger) EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "sendgrid":
		if s := NewSendGridSender(cfg.SendGrid, logger); s != nil {
			return s
		}
		logger.Warn("sendgrid selected without api key, using stub email sender")
	case "ses":
		if s := NewSESSender(ses, cfg.SES, logger); s != nil {
			return s
		}
		logger.Warn("ses selected without aws client, using stub email sender")
	}
	return NewStubEmailSender(logger)
}
