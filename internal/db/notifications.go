package db

import (
	"context"
	"fmt"
	"time"

	"github.com/wesm/pr-watch/internal/models"
)

const notificationColumns = `id, type_id, user_id, repository_id, identifier, title, description, details_url,
	html_url, result, toasted, time_occurred, time_created`

func scanNotification(s scanner) (*models.Notification, error) {
	var n models.Notification
	var occurred, created int64
	err := s.Scan(&n.ID, &n.Type, &n.UserID, &n.RepositoryID, &n.Identifier, &n.Title, &n.Description,
		&n.DetailsURL, &n.HTMLURL, &n.Result, &n.Toasted, &occurred, &created)
	if err != nil {
		return nil, err
	}
	n.TimeOccurred = fromMillis(occurred)
	n.TimeCreated = fromMillis(created)
	return &n, nil
}

// GetNotification gets a notification by surrogate id
func (q *Queries) GetNotification(ctx context.Context, id int64) (*models.Notification, error) {
	return getOne(ctx, q, scanNotification, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
}

// InsertNotification inserts a notification and sets its surrogate id
func (q *Queries) InsertNotification(ctx context.Context, n *models.Notification) error {
	id, err := q.insertID(ctx, `
	INSERT INTO notifications (type_id, user_id, repository_id, identifier, title, description, details_url,
		html_url, result, toasted, time_occurred, time_created)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.Type, n.UserID, n.RepositoryID, n.Identifier, n.Title, n.Description, n.DetailsURL,
		n.HTMLURL, n.Result, n.Toasted, toMillis(n.TimeOccurred), toMillis(n.TimeCreated))
	if err != nil {
		return fmt.Errorf("failed to insert %s notification: %w", n.Type, err)
	}
	n.ID = id
	return nil
}

// SupersedeNotifications marks as toasted every undisplayed notification in
// the same (type, repository, identifier, user) group as n that occurred
// before the newest one in the group. It returns the number of rows marked.
func (q *Queries) SupersedeNotifications(ctx context.Context, n *models.Notification) (int64, error) {
	res, err := q.exec(ctx, `
	UPDATE notifications SET toasted = 1
	WHERE toasted = 0 AND type_id = ? AND repository_id = ? AND identifier = ? AND user_id = ?
		AND time_occurred < (
			SELECT MAX(time_occurred) FROM notifications
			WHERE type_id = ? AND repository_id = ? AND identifier = ? AND user_id = ?
		)`,
		n.Type, n.RepositoryID, n.Identifier, n.UserID,
		n.Type, n.RepositoryID, n.Identifier, n.UserID)
	if err != nil {
		return 0, fmt.Errorf("failed to supersede notifications: %w", err)
	}
	return res.RowsAffected()
}

// ListUndisplayedNotifications lists notifications not yet toasted, oldest
// occurrence first
func (q *Queries) ListUndisplayedNotifications(ctx context.Context) ([]*models.Notification, error) {
	return getAll(ctx, q, scanNotification, `
	SELECT `+notificationColumns+` FROM notifications WHERE toasted = 0 ORDER BY time_occurred, id`)
}

// ListNotificationsSince lists notifications created at or after since, newest first
func (q *Queries) ListNotificationsSince(ctx context.Context, since time.Time) ([]*models.Notification, error) {
	return getAll(ctx, q, scanNotification, `
	SELECT `+notificationColumns+` FROM notifications WHERE time_created >= ? ORDER BY time_created DESC, id DESC`,
		toMillis(since))
}

// MarkNotificationToasted flags a notification as displayed
func (q *Queries) MarkNotificationToasted(ctx context.Context, id int64) error {
	if _, err := q.exec(ctx, `UPDATE notifications SET toasted = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to mark notification %d toasted: %w", id, err)
	}
	return nil
}
