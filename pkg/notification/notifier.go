package notification

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"sync"
	"text/template"
)

type NoticeType string

const (
	UserValidationNotice NoticeType = "user_validation"
	PasswordResetNotice  NoticeType = "password_reset"
)

// NoticeTemplate holds the subject and bodies of one notice. Text and Html
// are Go templates executed against NotificationData.Data.
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

type NotificationData struct {
	To   string
	Data map[string]string
}

// Message is a rendered email
type Message struct {
	To      string
	Subject string
	Text    string
	Html    string
}

// Sender delivers rendered messages
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Notifier renders registered notice templates and hands them to a Sender.
type Notifier struct {
	sender    Sender
	templates map[NoticeType]NoticeTemplate
}

func NewNotifier(sender Sender) *Notifier {
	return &Notifier{
		sender: sender,
		templates: map[NoticeType]NoticeTemplate{
			UserValidationNotice: validationTemplate,
			PasswordResetNotice:  resetTemplate,
		},
	}
}

// Register adds or replaces the template for noticeType
func (n *Notifier) Register(noticeType NoticeType, tmpl NoticeTemplate) error {
	if noticeType == "" {
		return fmt.Errorf("notice type is required")
	}
	if tmpl.Text == "" && tmpl.Html == "" {
		return fmt.Errorf("notice %s needs a text or html body", noticeType)
	}
	n.templates[noticeType] = tmpl
	return nil
}

func (n *Notifier) Notify(ctx context.Context, noticeType NoticeType, data NotificationData) error {
	if data.To == "" {
		return fmt.Errorf("email notification requires 'To' address")
	}
	tmpl, ok := n.templates[noticeType]
	if !ok {
		return fmt.Errorf("no template registered for notice %s", noticeType)
	}

	msg := Message{To: data.To, Subject: tmpl.Subject}
	if tmpl.Text != "" {
		t, err := template.New("text").Parse(tmpl.Text)
		if err != nil {
			return fmt.Errorf("failed to parse text template: %w", err)
		}
		var buf bytes.Buffer
		if err := t.Execute(&buf, data.Data); err != nil {
			return fmt.Errorf("failed to execute text template: %w", err)
		}
		msg.Text = buf.String()
	}
	if tmpl.Html != "" {
		t, err := htmltemplate.New("html").Parse(tmpl.Html)
		if err != nil {
			return fmt.Errorf("failed to parse HTML template: %w", err)
		}
		var buf bytes.Buffer
		if err := t.Execute(&buf, data.Data); err != nil {
			return fmt.Errorf("failed to execute HTML template: %w", err)
		}
		msg.Html = buf.String()
	}

	return n.sender.Send(ctx, msg)
}

// LogSender logs messages instead of sending them
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	slog.InfoContext(ctx, "Email not sent, delivery disabled", "to", msg.To, "subject", msg.Subject, "text", msg.Text)
	return nil
}

// RecordingSender keeps every message in memory
type RecordingSender struct {
	mu   sync.Mutex
	Sent []Message
	Err  error
}

func (r *RecordingSender) Send(ctx context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sent = append(r.Sent, msg)
	return r.Err
}

func (r *RecordingSender) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.Sent...)
}
