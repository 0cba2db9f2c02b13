package repository

import (
	"context"
	"database/sql"
	"time"

	"bvp_relay/internal/models"
)

// SettingsRepo persists operator settings that survive restarts.
type SettingsRepo interface {
	SaveEndpoint(ctx context.Context, e models.Endpoint) error
	LoadEndpoint(ctx context.Context) (models.Endpoint, error)
}

// EventRepo is the append-only session event log.
type EventRepo interface {
	Append(ctx context.Context, e models.SessionEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.SessionEvent, error)
}

type Repository struct {
	Settings  SettingsRepo
	EventRepo EventRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Settings:  NewSettingsSQLite(db),
		EventRepo: NewEventSQLite(db),
	}
}
