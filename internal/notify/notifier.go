package notify

import "log/slog"

// Notification is a fire-and-forget push message. Transport is external;
// this package only defines the contract the core needs from it.
type Notification struct {
	Token string
	Title string
	Body  string
}

// Notifier delivers push notifications. Failures must never fail the
// mutation that triggered the notification; callers log and move on.
type Notifier interface {
	Send(n Notification) error
}

// LogNotifier is the default sink: it logs the notification instead of
// delivering it. Real transports plug in behind the same interface.
type LogNotifier struct{}

func (LogNotifier) Send(n Notification) error {
	slog.Info("push notification", "title", n.Title, "body", n.Body)
	return nil
}
