package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dbsmedya/goexport/internal/sqlutil"
)

// ============================================================================
// GenerateJobLockName Tests
// ============================================================================

func TestGenerateJobLockName(t *testing.T) {
	tests := []struct {
		jobName  string
		expected string
	}{
		{"nightly_dump", "goexport:job:nightly_dump"},
		{"job-123", "goexport:job:job-123"},
		{"MixedCase_Job-123", "goexport:job:MixedCase_Job-123"},
		{"job.with.dots", "goexport:job:job_with_dots"},
		{"job with spaces", "goexport:job:job_with_spaces"},
		{"job'quote'", "goexport:job:job_quote_"},
		{"job!@#$%", "goexport:job:job_____"},
		{"", "goexport:job:"},
	}

	for _, tt := range tests {
		t.Run(tt.jobName, func(t *testing.T) {
			if got := GenerateJobLockName(tt.jobName); got != tt.expected {
				t.Errorf("GenerateJobLockName(%q) = %q, expected %q", tt.jobName, got, tt.expected)
			}
		})
	}
}

// ============================================================================
// Constructor Tests
// ============================================================================

func TestNewJobLock(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	lock := NewJobLock(db, sqlutil.MySQL, "nightly")
	if lock.LockName() != "goexport:job:nightly" {
		t.Errorf("Unexpected lock name %q", lock.LockName())
	}
	if lock.IsHeld() {
		t.Error("New lock should not be held")
	}
	if lock.dialect != sqlutil.MySQL {
		t.Errorf("Expected mysql dialect, got %s", lock.dialect)
	}
}

// ============================================================================
// MySQL
// ============================================================================

func TestMySQL_AcquireAndRelease(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	lock := NewJobLock(db, sqlutil.MySQL, "nightly")
	ctx := context.Background()

	mock.ExpectQuery("SELECT GET_LOCK").
		WithArgs("goexport:job:nightly", TimeoutShort).
		WillReturnRows(sqlmock.NewRows([]string{"r"}).AddRow(1))
	mock.ExpectQuery("SELECT RELEASE_LOCK").
		WithArgs("goexport:job:nightly").
		WillReturnRows(sqlmock.NewRows([]string{"r"}).AddRow(1))

	if err := lock.AcquireOrFail(ctx); err != nil {
		t.Fatalf("AcquireOrFail failed: %v", err)
	}
	if !lock.IsHeld() {
		t.Error("Lock should be held after acquisition")
	}

	acquired, err := lock.AcquireLock(ctx, TimeoutShort)
	if err != nil || !acquired {
		t.Errorf("Re-acquiring a held lock should succeed without a query, got %v %v", acquired, err)
	}

	released, err := lock.ReleaseLock(ctx)
	if err != nil || !released {
		t.Fatalf("ReleaseLock = %v, %v", released, err)
	}
	if lock.IsHeld() {
		t.Error("Lock should not be held after release")
	}

	if err := lock.Release(ctx); err != nil {
		t.Errorf("Second release should be a no-op, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestMySQL_HeldByAnotherInstance(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT GET_LOCK").WillReturnRows(sqlmock.NewRows([]string{"r"}).AddRow(0))

	lock := NewJobLock(db, sqlutil.MySQL, "nightly")
	err = lock.AcquireOrFail(context.Background())
	if !errors.Is(err, ErrLockHeld) {
		t.Fatalf("Expected ErrLockHeld, got %v", err)
	}
	if lock.IsHeld() {
		t.Error("Lock should not be held")
	}
}

func TestMySQL_NullResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT GET_LOCK").WillReturnRows(sqlmock.NewRows([]string{"r"}).AddRow(nil))

	_, err = NewJobLock(db, sqlutil.MySQL, "nightly").TryAcquire(context.Background())
	if err == nil {
		t.Fatal("Expected error for NULL GET_LOCK result")
	}
}

// ============================================================================
// SQL Server
// ============================================================================

func TestSQLServer_AcquireAndRelease(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("sp_getapplock").
		WithArgs("goexport:job:nightly", 1000).
		WillReturnRows(sqlmock.NewRows([]string{"r"}).AddRow(0))
	mock.ExpectQuery("sp_releaseapplock").
		WithArgs("goexport:job:nightly").
		WillReturnRows(sqlmock.NewRows([]string{"r"}).AddRow(0))

	lock := NewJobLock(db, sqlutil.SQLServer, "nightly")
	ctx := context.Background()

	if err := lock.AcquireOrFail(ctx); err != nil {
		t.Fatalf("AcquireOrFail failed: %v", err)
	}
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestSQLServer_ResultCodes(t *testing.T) {
	tests := []struct {
		name     string
		code     int64
		acquired bool
		wantErr  bool
	}{
		{"granted", 0, true, false},
		{"granted after wait", 1, true, false},
		{"timeout", -1, false, false},
		{"deadlock victim", -3, false, true},
		{"parameter error", -999, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("Failed to create mock: %v", err)
			}
			defer db.Close()

			mock.ExpectQuery("sp_getapplock").WillReturnRows(sqlmock.NewRows([]string{"r"}).AddRow(tt.code))

			acquired, err := NewJobLock(db, sqlutil.SQLServer, "x").TryAcquire(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if acquired != tt.acquired {
				t.Errorf("acquired = %v, expected %v", acquired, tt.acquired)
			}
		})
	}
}

// ============================================================================
// PostgreSQL
// ============================================================================

func TestPostgres_AcquireAndRelease(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("pg_try_advisory_lock").
		WithArgs("goexport:job:nightly").
		WillReturnRows(sqlmock.NewRows([]string{"ok"}).AddRow(true))
	mock.ExpectQuery("pg_advisory_unlock").
		WithArgs("goexport:job:nightly").
		WillReturnRows(sqlmock.NewRows([]string{"ok"}).AddRow(true))

	lock := NewJobLock(db, sqlutil.Postgres, "nightly")
	if err := lock.AcquireOrFail(context.Background()); err != nil {
		t.Fatalf("AcquireOrFail failed: %v", err)
	}
	released, err := lock.ReleaseLock(context.Background())
	if err != nil || !released {
		t.Fatalf("ReleaseLock = %v, %v", released, err)
	}
}

func TestPostgres_PollsUntilTimeout(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	saved := pollInterval
	pollInterval = 10 * time.Millisecond
	defer func() { pollInterval = saved }()

	mock.ExpectQuery("pg_try_advisory_lock").WillReturnRows(sqlmock.NewRows([]string{"ok"}).AddRow(false))
	mock.ExpectQuery("pg_try_advisory_lock").WillReturnRows(sqlmock.NewRows([]string{"ok"}).AddRow(true))

	acquired, err := NewJobLock(db, sqlutil.Postgres, "nightly").AcquireLock(context.Background(), TimeoutShort)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	if !acquired {
		t.Error("Expected lock to be acquired on the second attempt")
	}
}

func TestPostgres_Immediate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("pg_try_advisory_lock").WillReturnRows(sqlmock.NewRows([]string{"ok"}).AddRow(false))

	acquired, err := NewJobLock(db, sqlutil.Postgres, "nightly").TryAcquire(context.Background())
	if err != nil || acquired {
		t.Errorf("TryAcquire = %v, %v; expected false, nil", acquired, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Immediate acquisition must query once: %v", err)
	}
}

// ============================================================================
// SQLite
// ============================================================================

func TestSQLite_NoOp(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	lock := NewJobLock(db, sqlutil.SQLite, "nightly")
	if err := lock.AcquireOrFail(context.Background()); err != nil {
		t.Fatalf("AcquireOrFail failed: %v", err)
	}
	if !lock.IsHeld() {
		t.Error("SQLite lock should report held")
	}
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("SQLite locks must not query: %v", err)
	}
}

// ============================================================================
// Helpers
// ============================================================================

func TestWithLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT GET_LOCK").WillReturnRows(sqlmock.NewRows([]string{"r"}).AddRow(1))
	mock.ExpectQuery("SELECT RELEASE_LOCK").WillReturnRows(sqlmock.NewRows([]string{"r"}).AddRow(1))

	fnErr := errors.New("export failed")
	called := false
	err = WithJobLock(context.Background(), db, sqlutil.MySQL, "nightly", func() error {
		called = true
		return fnErr
	})
	if !called {
		t.Error("fn should have been called")
	}
	if !errors.Is(err, fnErr) {
		t.Errorf("Expected fn error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Lock should be released after fn: %v", err)
	}
}

func TestWithLock_Held(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT GET_LOCK").WillReturnRows(sqlmock.NewRows([]string{"r"}).AddRow(0))

	err = WithJobLock(context.Background(), db, sqlutil.MySQL, "nightly", func() error {
		t.Error("fn must not run without the lock")
		return nil
	})
	if !errors.Is(err, ErrLockHeld) {
		t.Errorf("Expected ErrLockHeld, got %v", err)
	}
}

func TestWithLock_ReleasesOnPanic(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT GET_LOCK").WillReturnRows(sqlmock.NewRows([]string{"r"}).AddRow(1))
	mock.ExpectQuery("SELECT RELEASE_LOCK").WillReturnRows(sqlmock.NewRows([]string{"r"}).AddRow(1))

	lock := NewJobLock(db, sqlutil.MySQL, "nightly")
	func() {
		defer func() {
			if recover() == nil {
				t.Error("Expected panic to propagate")
			}
		}()
		_ = lock.WithLock(context.Background(), func() error {
			panic("boom")
		})
	}()

	if lock.IsHeld() {
		t.Error("Lock should be released after panic")
	}
}

func TestIsJobRunning(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT GET_LOCK").WillReturnRows(sqlmock.NewRows([]string{"r"}).AddRow(0))
	running, err := IsJobRunning(context.Background(), db, sqlutil.MySQL, "nightly")
	if err != nil || !running {
		t.Errorf("IsJobRunning = %v, %v; expected true", running, err)
	}

	mock.ExpectQuery("SELECT GET_LOCK").WillReturnRows(sqlmock.NewRows([]string{"r"}).AddRow(1))
	mock.ExpectQuery("SELECT RELEASE_LOCK").WillReturnRows(sqlmock.NewRows([]string{"r"}).AddRow(1))
	running, err = IsJobRunning(context.Background(), db, sqlutil.MySQL, "nightly")
	if err != nil || running {
		t.Errorf("IsJobRunning = %v, %v; expected false", running, err)
	}
}
