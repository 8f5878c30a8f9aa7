package login

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tendant/simple-ums/pkg/notification"
	"github.com/tendant/simple-ums/pkg/store"
	"github.com/tendant/simple-ums/pkg/tokengenerator"
)

// Mailer sends the validation and reset emails. Both carry a link back to the
// no-auth exit endpoints with a purpose-bound token.
type Mailer struct {
	notifier    *notification.Notifier
	codec       tokengenerator.Codec
	baseURL     string
	validateTTL time.Duration
	resetTTL    time.Duration
}

func NewMailer(notifier *notification.Notifier, codec tokengenerator.Codec, baseURL string, validateTTL, resetTTL time.Duration) *Mailer {
	if validateTTL <= 0 {
		validateTTL = tokengenerator.DefaultValidateTokenExpiry
	}
	if resetTTL <= 0 {
		resetTTL = tokengenerator.DefaultResetTokenExpiry
	}
	return &Mailer{
		notifier:    notifier,
		codec:       codec,
		baseURL:     strings.TrimRight(baseURL, "/"),
		validateTTL: validateTTL,
		resetTTL:    resetTTL,
	}
}

func (m *Mailer) SendValidation(ctx context.Context, app store.App, user store.User) error {
	link, err := m.link(app, user, tokengenerator.PurposeValidate, "validate_exit", "to_validate", m.validateTTL)
	if err != nil {
		return err
	}
	return m.notifier.Notify(ctx, notification.UserValidationNotice, notification.NotificationData{
		To:   user.Email,
		Data: map[string]string{"FirstName": user.FirstName, "AppName": app.Name, "Link": link},
	})
}

func (m *Mailer) SendReset(ctx context.Context, app store.App, user store.User) error {
	link, err := m.link(app, user, tokengenerator.PurposeReset, "reset_exit", "to_reset", m.resetTTL)
	if err != nil {
		return err
	}
	return m.notifier.Notify(ctx, notification.PasswordResetNotice, notification.NotificationData{
		To:   user.Email,
		Data: map[string]string{"FirstName": user.FirstName, "AppName": app.Name, "Link": link},
	})
}

func (m *Mailer) link(app store.App, user store.User, purpose tokengenerator.Purpose, path, param string, ttl time.Duration) (string, error) {
	token, _, err := m.codec.Encode(tokengenerator.Identity{
		UserID:  user.ID,
		Email:   user.Email,
		AppID:   app.ID,
		Purpose: purpose,
	}, ttl)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s token: %w", purpose, err)
	}
	return fmt.Sprintf("%s/api/v1/na_app_users/user/%d/%s?%s=%s", m.baseURL, app.ID, path, param, url.QueryEscape(token)), nil
}
