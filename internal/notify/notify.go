// Package notify delivers best-effort notifications to registrants.
package notify

import (
	"context"
	"log"
	"time"
)

// Notifier informs a user about a registration event. Implementations
// must tolerate being called concurrently.
type Notifier interface {
	// NotifyPromotion tells a user they were moved from the waitlist to
	// a confirmed spot.
	NotifyPromotion(ctx context.Context, userID, eventID string)
}

const dispatchTimeout = 5 * time.Second

// Dispatch runs the promotion notification in the background with its
// own deadline. Delivery is best-effort; the triggering operation has
// already committed and never waits on it.
func Dispatch(n Notifier, userID, eventID string) {
	if n == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		n.NotifyPromotion(ctx, userID, eventID)
	}()
}

// LogNotifier writes promotion notices to the process log. It stands in
// for a real delivery channel (mail, push) in deployments without one.
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier constructs a LogNotifier; a nil logger means the
// process default.
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.Default()
	}
	return &LogNotifier{logger: logger}
}

// NotifyPromotion implements Notifier.
func (n *LogNotifier) NotifyPromotion(_ context.Context, userID, eventID string) {
	n.logger.Printf("waitlist promotion user_id=%s event_id=%s", userID, eventID)
}
