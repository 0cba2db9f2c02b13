package repository_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"bvp_relay/internal/models"
	"bvp_relay/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
)

type sqlmockArgumentFunc func(v driver.Value) bool

func (f sqlmockArgumentFunc) Match(v driver.Value) bool {
	return f(v)
}

func newSettingsRepo(t *testing.T) (*repository.SettingsSQLite, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return repository.NewSettingsSQLite(db), mock
}

func TestSettingsSQLite_SaveEndpoint_SetsUTCWhenTimeZero(t *testing.T) {
	repo, mock := newSettingsRepo(t)

	isUTCRecent := sqlmockArgumentFunc(func(v driver.Value) bool {
		tm, ok := v.(time.Time)
		if !ok || tm.Location() != time.UTC {
			return false
		}
		now := time.Now().UTC()
		return !tm.Before(now.Add(-5*time.Second)) && !tm.After(now.Add(5*time.Second))
	})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO relay_settings")).
		WithArgs(1, "10.0.0.5", 8765, isUTCRecent).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.SaveEndpoint(context.Background(), models.Endpoint{Host: "10.0.0.5", Port: 8765}); err != nil {
		t.Fatalf("SaveEndpoint() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSettingsSQLite_SaveEndpoint_ConvertsGivenTimeToUTC(t *testing.T) {
	repo, mock := newSettingsRepo(t)

	original := time.Date(2023, 10, 5, 12, 34, 56, 0, time.FixedZone("JST", 9*3600))
	isExactUTC := sqlmockArgumentFunc(func(v driver.Value) bool {
		tm, ok := v.(time.Time)
		return ok && tm.Equal(original) && tm.Location() == time.UTC
	})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO relay_settings")).
		WithArgs(1, "analysis.local", 9000, isExactUTC).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.SaveEndpoint(context.Background(), models.Endpoint{Host: "analysis.local", Port: 9000, UpdatedAt: original})
	if err != nil {
		t.Fatalf("SaveEndpoint() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSettingsSQLite_SaveEndpoint_ExecErrorIsPropagated(t *testing.T) {
	repo, mock := newSettingsRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO relay_settings")).
		WithArgs(1, "h", 1, sqlmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	if err := repo.SaveEndpoint(context.Background(), models.Endpoint{Host: "h", Port: 1}); err == nil {
		t.Fatalf("SaveEndpoint() expected error, got nil")
	}
}

func TestSettingsSQLite_LoadEndpoint_NoRowsReturnsZero(t *testing.T) {
	repo, mock := newSettingsRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT server_host, server_port, updated_at")).
		WithArgs(1).
		WillReturnError(sql.ErrNoRows)

	got, err := repo.LoadEndpoint(context.Background())
	if err != nil {
		t.Fatalf("LoadEndpoint() unexpected error: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("LoadEndpoint() expected zero endpoint, got: %+v", got)
	}
}

func TestSettingsSQLite_LoadEndpoint_HappyPath(t *testing.T) {
	repo, mock := newSettingsRepo(t)

	nonUTC := time.Date(2024, 2, 1, 8, 30, 0, 0, time.FixedZone("EST", -5*3600))
	rows := sqlmock.NewRows([]string{"server_host", "server_port", "updated_at"}).
		AddRow("192.168.1.20", 8765, nonUTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT server_host, server_port, updated_at")).
		WithArgs(1).
		WillReturnRows(rows)

	got, err := repo.LoadEndpoint(context.Background())
	if err != nil {
		t.Fatalf("LoadEndpoint() unexpected error: %v", err)
	}
	if got.Host != "192.168.1.20" || got.Port != 8765 {
		t.Fatalf("LoadEndpoint() unexpected fields: %+v", got)
	}
	if got.UpdatedAt.Location() != time.UTC || !got.UpdatedAt.Equal(nonUTC) {
		t.Fatalf("LoadEndpoint() UpdatedAt not normalized: %v", got.UpdatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSettingsSQLite_LoadEndpoint_QueryError(t *testing.T) {
	repo, mock := newSettingsRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT server_host, server_port, updated_at")).
		WithArgs(1).
		WillReturnError(errors.New("locked"))

	if _, err := repo.LoadEndpoint(context.Background()); err == nil {
		t.Fatalf("LoadEndpoint() expected error, got nil")
	}
}
