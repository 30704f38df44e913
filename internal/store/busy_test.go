package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestArmAlarmRetriesWhenDatabaseIsLocked(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	s := newWithDB(db, "mock")

	at := time.UnixMilli(1_700_000_000_000)
	mock.ExpectExec("INSERT INTO alarms").
		WithArgs("organize", at.UnixMilli()).
		WillReturnError(errors.New("database is locked"))
	mock.ExpectExec("INSERT INTO alarms").
		WithArgs("organize", at.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := s.ArmAlarm(context.Background(), "organize", at); err != nil {
		t.Fatalf("ArmAlarm: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateBlobDoesNotRetryOtherErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	s := newWithDB(db, "mock")

	mock.ExpectExec("INSERT OR IGNORE INTO job_state").
		WillReturnError(errors.New("disk I/O error"))

	if _, err := s.CreateBlob(context.Background(), "job", []byte("{}")); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRetryOnBusyGivesUpAfterAttempts(t *testing.T) {
	calls := 0
	err := retryOnBusy(context.Background(), func() error {
		calls++
		return errors.New("SQLITE_BUSY")
	})
	if err == nil || calls != busyRetryAttempts {
		t.Fatalf("expected %d attempts and an error, got %d / %v", busyRetryAttempts, calls, err)
	}
}
