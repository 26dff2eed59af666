// Package notify shows user-visible errors as toast-style notifications.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/leandrodaf/perfdiff/sdk/contracts"
	"go.uber.org/multierr"
)

// Notification is one toast.
type Notification struct {
	Title   string
	Body    string
	Urgent  bool
	Timeout time.Duration
}

// Notifier displays notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log. It is the fallback when no desktop is available.
type LogNotifier struct {
	logger contracts.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger contracts.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	fields := []contracts.Field{
		l.logger.Field().String("title", n.Title),
		l.logger.Field().String("body", n.Body),
	}
	if n.Urgent {
		l.logger.Error("Notification", fields...)
	} else {
		l.logger.Info("Notification", fields...)
	}
	return nil
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var err error
	for _, notifier := range m {
		err = multierr.Append(err, notifier.Notify(ctx, n))
	}
	return err
}

// Reporter turns taxonomy errors into notifications. Errors outside the user-visible set are only logged.
type Reporter struct {
	notifier Notifier
	logger   contracts.Logger
	timeout  time.Duration
}

// NewReporter creates a Reporter.
func NewReporter(notifier Notifier, logger contracts.Logger) *Reporter {
	return &Reporter{notifier: notifier, logger: logger, timeout: 5 * time.Second}
}

// Report shows err to the user when it is user-visible.
func (r *Reporter) Report(err error) {
	if err == nil {
		return
	}
	if !contracts.IsUserVisible(err) {
		r.logger.Debug("Internal error not shown to the user", r.logger.Field().Error("error", err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	n := FromError(err)
	if nerr := r.notifier.Notify(ctx, n); nerr != nil {
		r.logger.Warn("Failed to show notification",
			r.logger.Field().String("title", n.Title),
			r.logger.Field().Error("error", nerr))
	}
}

// FromError builds the notification for a user-visible error.
func FromError(err error) Notification {
	n := Notification{Body: contracts.UserMessage(err), Timeout: 6 * time.Second}
	switch {
	case errors.Is(err, contracts.ErrNotReady):
		n.Title = "Score not ready"
	case errors.Is(err, contracts.ErrDeviceUnavailable):
		n.Title = "Input unavailable"
		n.Urgent = true
	case errors.Is(err, contracts.ErrNoNotesCaptured):
		n.Title = "Nothing captured"
	case errors.Is(err, contracts.ErrSubmissionFailed):
		n.Title = "Scoring failed"
		n.Urgent = true
	default:
		n.Title = "perfdiff"
	}
	return n
}
