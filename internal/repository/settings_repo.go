package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"bvp_relay/internal/models"
)

type SettingsSQLite struct {
	db *sql.DB
}

func NewSettingsSQLite(db *sql.DB) *SettingsSQLite {
	return &SettingsSQLite{db: db}
}

const (
	settingsRowID = 1

	upsertEndpointSQL = `
		INSERT INTO relay_settings (id, server_host, server_port, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			server_host=excluded.server_host,
			server_port=excluded.server_port,
			updated_at=excluded.updated_at
	`

	selectEndpointSQL = `
		SELECT server_host, server_port, updated_at
		FROM relay_settings WHERE id=?
	`
)

// SaveEndpoint upserts the single settings row (id always 1).
func (r *SettingsSQLite) SaveEndpoint(ctx context.Context, e models.Endpoint) error {
	ts := e.UpdatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}
	_, err := r.db.ExecContext(ctx, upsertEndpointSQL, settingsRowID, e.Host, e.Port, ts)
	return err
}

// LoadEndpoint returns the saved endpoint, or a zero Endpoint if none was saved.
func (r *SettingsSQLite) LoadEndpoint(ctx context.Context) (models.Endpoint, error) {
	row := r.db.QueryRowContext(ctx, selectEndpointSQL, settingsRowID)

	var e models.Endpoint
	if err := row.Scan(&e.Host, &e.Port, &e.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Endpoint{}, nil
		}
		return models.Endpoint{}, err
	}
	e.UpdatedAt = e.UpdatedAt.UTC()
	return e, nil
}
