package db

import (
	"context"
	"fmt"

	"github.com/wesm/pr-watch/internal/models"
)

const userColumns = `id, internal_id, login, avatar_url, html_url, type, time_updated`

func scanUser(s scanner) (*models.User, error) {
	var u models.User
	var updated int64
	if err := s.Scan(&u.ID, &u.InternalID, &u.Login, &u.AvatarURL, &u.HTMLURL, &u.Type, &updated); err != nil {
		return nil, err
	}
	u.TimeUpdated = fromMillis(updated)
	return &u, nil
}

// GetUser gets a user by surrogate id
func (q *Queries) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return getOne(ctx, q, scanUser, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetUserByInternalID gets a user by remote id
func (q *Queries) GetUserByInternalID(ctx context.Context, internalID int64) (*models.User, error) {
	return getOne(ctx, q, scanUser, `SELECT `+userColumns+` FROM users WHERE internal_id = ?`, internalID)
}

// GetUserByLogin gets a user by login, case-insensitively
func (q *Queries) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	return getOne(ctx, q, scanUser, `SELECT `+userColumns+` FROM users WHERE login = ? COLLATE NOCASE`, login)
}

// InsertUser inserts a user and sets its surrogate id
func (q *Queries) InsertUser(ctx context.Context, u *models.User) error {
	id, err := q.insertID(ctx, `
	INSERT INTO users (internal_id, login, avatar_url, html_url, type, time_updated)
	VALUES (?, ?, ?, ?, ?, ?)`,
		u.InternalID, u.Login, u.AvatarURL, u.HTMLURL, u.Type, toMillis(u.TimeUpdated))
	if err != nil {
		return fmt.Errorf("failed to insert user %s: %w", u.Login, err)
	}
	u.ID = id
	return nil
}

// UpdateUser updates an existing user row
func (q *Queries) UpdateUser(ctx context.Context, u *models.User) error {
	_, err := q.exec(ctx, `
	UPDATE users SET login = ?, avatar_url = ?, html_url = ?, type = ?, time_updated = ?
	WHERE id = ?`,
		u.Login, u.AvatarURL, u.HTMLURL, u.Type, toMillis(u.TimeUpdated), u.ID)
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", u.Login, err)
	}
	return nil
}
