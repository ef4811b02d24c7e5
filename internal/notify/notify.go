// Package notify is the fire-and-forget notification contract consumed by the
// domain services. Delivery failures are logged, never propagated.
package notify

import (
	"log/slog"

	"github.com/sproutfam/sprout/internal/store"
)

type Notifier interface {
	Notify(subjectID int64, title, body, level string)
}

// StoreNotifier persists notifications for later in-app retrieval.
type StoreNotifier struct {
	store  *store.NotificationStore
	logger *slog.Logger
}

func NewStoreNotifier(st *store.NotificationStore, logger *slog.Logger) *StoreNotifier {
	return &StoreNotifier{store: st, logger: logger}
}

func (n *StoreNotifier) Notify(subjectID int64, title, body, level string) {
	if _, err := n.store.Create(subjectID, title, body, level); err != nil {
		n.logger.Error("create notification", "subject_id", subjectID, "title", title, "error", err)
	}
}

// Func adapts a function to the Notifier interface, mainly for tests.
type Func func(subjectID int64, title, body, level string)

func (f Func) Notify(subjectID int64, title, body, level string) {
	f(subjectID, title, body, level)
}

// Nop discards all notifications.
type Nop struct{}

func (Nop) Notify(int64, string, string, string) {}
