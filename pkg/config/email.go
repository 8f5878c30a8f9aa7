package config

import (
	"github.com/tendant/simple-ums/pkg/notification"
)

// EmailConfig holds SMTP settings. With EMAIL_ENABLED=false messages are only
// logged.
type EmailConfig struct {
	Enabled  bool   `env:"EMAIL_ENABLED" env-default:"false"`
	Host     string `env:"EMAIL_HOST" env-default:"localhost"`
	Port     uint16 `env:"EMAIL_PORT" env-default:"1025"`
	Username string `env:"EMAIL_USERNAME" env-default:""`
	Password string `env:"EMAIL_PASSWORD" env-default:""`
	From     string `env:"EMAIL_FROM" env-default:"noreply@example.com"`
	TLS      bool   `env:"EMAIL_TLS" env-default:"false"`
}

func (e EmailConfig) ToSMTPConfig() notification.SMTPConfig {
	return notification.SMTPConfig{
		Host:     e.Host,
		Port:     int(e.Port),
		Username: e.Username,
		Password: e.Password,
		From:     e.From,
		TLS:      e.TLS,
	}
}

// Sender returns the SMTP sender when email is enabled, the log sender
// otherwise.
func (e EmailConfig) Sender() (notification.Sender, error) {
	if !e.Enabled {
		return notification.LogSender{}, nil
	}
	sender, err := notification.NewSMTPSender(e.ToSMTPConfig())
	if err != nil {
		return nil, err
	}
	return sender, nil
}
