package auth

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds auth options, read once at construction.
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetContextKey() string
	// GetTokenExpiration returns the token lifetime in minutes.
	GetTokenExpiration() int
	GetTokenLookup() string
	GetAuthScheme() string
	GetIssuer() string
}

// NotificationKind enumerates out-of-band messages sent by auth flows.
type NotificationKind string

const (
	NotificationAccountActivation NotificationKind = "account.activation"
	NotificationAccountActivated  NotificationKind = "account.activated"
	NotificationAccountRecovery   NotificationKind = "account.recovery"
	NotificationPasswordChanged   NotificationKind = "account.password_changed"
)

// Notification carries the data a delivery channel needs to notify a user.
type Notification struct {
	Kind     NotificationKind
	Email    string
	UserID   string
	Code     string
	Metadata map[string]any
}

// Notifier delivers notifications out of band. Flows fire notifications only
// after their transaction has committed.
type Notifier interface {
	Send(ctx context.Context, notification Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, notification Notification) error

// Send implements Notifier.
func (f NotifierFunc) Send(ctx context.Context, notification Notification) error {
	if f == nil {
		return nil
	}
	return f(ctx, notification)
}

type noopNotifier struct{}

func (noopNotifier) Send(context.Context, Notification) error {
	return nil
}

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
