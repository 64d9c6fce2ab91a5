package notify

import (
	"context"
	"errors"
)

// Notifier delivers a rendered activity message to a user. The Telegram
// bot is the primary implementation; the JetStream publisher fans the
// structured event out to other consumers.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// Multi fans a notification out to every child notifier. Delivery is
// best-effort per child: one failing channel does not stop the others,
// and the joined error reports every failure.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, userID int64, text string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, userID, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
