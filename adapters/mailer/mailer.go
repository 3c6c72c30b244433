// Package mailer delivers auth notifications (activation codes, recovery
// codes, password change confirmations) through the Resend HTTP API. It
// implements auth.Notifier so it can be plugged straight into the lifecycle
// command handlers.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	goerrors "github.com/goliatone/go-errors"

	auth "github.com/hireflow/go-auth"
)

type Mailer struct {
	apiKey  string
	from    string
	client  *http.Client
	baseURL string
}

// New reads the API key from RESEND_API_KEY.
func New(from string) (*Mailer, error) {
	key := os.Getenv("RESEND_API_KEY")
	if key == "" {
		return nil, goerrors.New("RESEND_API_KEY not set", goerrors.CategoryBadInput)
	}

	return &Mailer{
		apiKey: key,
		from:   from,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		baseURL: "https://api.resend.com",
	}, nil
}

// WithBaseURL points the mailer at a different endpoint, e.g. a test server.
func (m *Mailer) WithBaseURL(baseURL string) *Mailer {
	if baseURL != "" {
		m.baseURL = baseURL
	}
	return m
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Send maps the notification kind to a message and posts it. Unknown kinds
// are an error so silent template gaps cannot ship.
func (m *Mailer) Send(ctx context.Context, n auth.Notification) error {
	subject, html, err := render(n)
	if err != nil {
		return err
	}

	body := sendRequest{
		From:    m.from,
		To:      []string{n.Email},
		Subject: subject,
		HTML:    html,
	}

	b, err := json.Marshal(body)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode email payload")
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		m.baseURL+"/emails",
		bytes.NewBuffer(b),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build email request")
	}

	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "email delivery failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		return goerrors.New(
			"email delivery rejected: "+buf.String(),
			goerrors.CategoryOperation,
		)
	}

	return nil
}

func render(n auth.Notification) (subject, html string, err error) {
	switch n.Kind {
	case auth.NotificationAccountActivation:
		return "Activate your account", `
			<p>Welcome!</p>
			<p>Use the code below to activate your account:</p>
			<p><strong>` + n.Code + `</strong></p>
		`, nil
	case auth.NotificationAccountActivated:
		return "Your account is active", `
			<p>Your account has been activated. You can now sign in.</p>
		`, nil
	case auth.NotificationAccountRecovery:
		return "Reset your password", `
			<p>A password reset was requested for your account.</p>
			<p>Use the code below to choose a new password. It expires in a few hours.</p>
			<p><strong>` + n.Code + `</strong></p>
			<p>If you did not request this, you can ignore this email.</p>
		`, nil
	case auth.NotificationPasswordChanged:
		return "Your password was changed", `
			<p>The password on your account was just changed.</p>
			<p>If this was not you, request a password reset immediately.</p>
		`, nil
	}

	return "", "", goerrors.New("unknown notification kind: "+string(n.Kind), goerrors.CategoryBadInput)
}
