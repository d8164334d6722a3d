package db

import (
	"context"
	"fmt"

	"github.com/wesm/pr-watch/internal/models"
)

const (
	labelColumns         = `id, internal_id, name, color, description, is_default, time_updated`
	labelColumnsPrefixed = `l.id, l.internal_id, l.name, l.color, l.description, l.is_default, l.time_updated`
)

func scanLabel(s scanner) (*models.Label, error) {
	var l models.Label
	var updated int64
	if err := s.Scan(&l.ID, &l.InternalID, &l.Name, &l.Color, &l.Description, &l.IsDefault, &updated); err != nil {
		return nil, err
	}
	l.TimeUpdated = fromMillis(updated)
	return &l, nil
}

// GetLabelByInternalID gets a label by remote id
func (q *Queries) GetLabelByInternalID(ctx context.Context, internalID int64) (*models.Label, error) {
	return getOne(ctx, q, scanLabel, `SELECT `+labelColumns+` FROM labels WHERE internal_id = ?`, internalID)
}

// InsertLabel inserts a label and sets its surrogate id
func (q *Queries) InsertLabel(ctx context.Context, l *models.Label) error {
	id, err := q.insertID(ctx, `
	INSERT INTO labels (internal_id, name, color, description, is_default, time_updated)
	VALUES (?, ?, ?, ?, ?, ?)`,
		l.InternalID, l.Name, l.Color, l.Description, l.IsDefault, toMillis(l.TimeUpdated))
	if err != nil {
		return fmt.Errorf("failed to insert label %s: %w", l.Name, err)
	}
	l.ID = id
	return nil
}

// UpdateLabel updates an existing label row
func (q *Queries) UpdateLabel(ctx context.Context, l *models.Label) error {
	_, err := q.exec(ctx, `
	UPDATE labels SET name = ?, color = ?, description = ?, is_default = ?, time_updated = ?
	WHERE id = ?`,
		l.Name, l.Color, l.Description, l.IsDefault, toMillis(l.TimeUpdated), l.ID)
	if err != nil {
		return fmt.Errorf("failed to update label %s: %w", l.Name, err)
	}
	return nil
}
