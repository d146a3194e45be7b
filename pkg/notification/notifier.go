package notification

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"text/template"
)

type NotificationData struct {
	To       string            // Recipient identifier (e.g., email address)
	Subject  string            // Subject line
	Body     string            // Plain text content
	HTMLBody string            // Optional HTML alternative
	Data     map[string]string // Values the message was rendered from
}

type Notifier interface {
	Send(ctx context.Context, notification NotificationData) error
}

// Data key holding the two-factor code.
const TwofaPasscodeKey = "TwofaPasscode"

const (
	twoFactorSubject = "Your login code"
	twoFactorText    = "Your login code is {{.TwofaPasscode}}. If you did not try to sign in, you can ignore this message.\n"
	twoFactorHTML    = `<p>Your login code is <strong>{{.TwofaPasscode}}</strong>.</p><p>If you did not try to sign in, you can ignore this message.</p>`
)

var (
	twoFactorTextTmpl = template.Must(template.New("twofa_text").Parse(twoFactorText))
	twoFactorHTMLTmpl = htmltemplate.Must(htmltemplate.New("twofa_html").Parse(twoFactorHTML))
)

// NewTwoFactorCodeNotification renders the message that carries a login code.
func NewTwoFactorCodeNotification(to, code string) (NotificationData, error) {
	data := map[string]string{TwofaPasscodeKey: code}

	var text bytes.Buffer
	if err := twoFactorTextTmpl.Execute(&text, data); err != nil {
		return NotificationData{}, fmt.Errorf("render text template: %w", err)
	}
	var html bytes.Buffer
	if err := twoFactorHTMLTmpl.Execute(&html, data); err != nil {
		return NotificationData{}, fmt.Errorf("render html template: %w", err)
	}

	return NotificationData{
		To:       to,
		Subject:  twoFactorSubject,
		Body:     text.String(),
		HTMLBody: html.String(),
		Data:     data,
	}, nil
}
