// Package notify delivers new-device notifications.
//
// Delivery is fire-and-forget: a failing sink is logged and never blocks or
// fails the sweep that produced the notification.
package notify

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"pingwatch/internal/domain"
)

// Sink receives notifications
type Sink interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// Func adapts a function to a Sink
type Func func(ctx context.Context, n domain.Notification) error

// Notify calls f
func (f Func) Notify(ctx context.Context, n domain.Notification) error {
	return f(ctx, n)
}

// Multi fans a notification out to several sinks
type Multi []Sink

// Notify delivers to every sink and joins their errors
func (m Multi) Notify(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes notifications to the log
type Log struct {
	Logger logrus.FieldLogger
}

// Notify logs n at info level
func (l Log) Notify(_ context.Context, n domain.Notification) error {
	log := l.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithFields(logrus.Fields{
		"category": n.Category,
		"key":      n.Key,
		"hosts":    len(n.Hosts),
	}).Info(n.Message)
	return nil
}
