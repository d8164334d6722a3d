package notify

import (
	"context"

	"github.com/wesm/pr-watch/internal/db"
	"github.com/wesm/pr-watch/internal/log"
	"github.com/wesm/pr-watch/internal/models"
)

// Presenter shows a notification to the user. A nil error means it was shown.
type Presenter interface {
	Present(ctx context.Context, n *models.Notification) error
}

// PresenterFunc adapts a function to Presenter
type PresenterFunc func(ctx context.Context, n *models.Notification) error

func (f PresenterFunc) Present(ctx context.Context, n *models.Notification) error {
	return f(ctx, n)
}

// Deliver presents every undisplayed notification, oldest first, and marks
// each one toasted once the presenter confirms it. Notifications the
// presenter rejects stay undisplayed for the next call. It returns how many
// were shown.
func Deliver(ctx context.Context, store *db.DB, presenter Presenter) (int, error) {
	pending, err := store.ListUndisplayedNotifications(ctx)
	if err != nil {
		return 0, err
	}

	shown := 0
	for _, n := range pending {
		if err := ctx.Err(); err != nil {
			return shown, err
		}
		if err := presenter.Present(ctx, n); err != nil {
			log.Warn(ctx, "Failed to present notification", "id", n.ID, "type", n.Type, "error", err)
			continue
		}

		err := store.WithTx(ctx, func(tx *db.Tx) error {
			return tx.MarkNotificationToasted(ctx, n.ID)
		})
		if err != nil {
			return shown, err
		}
		shown++
	}
	return shown, nil
}
