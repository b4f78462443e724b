// Package lock provides database advisory locks that keep two GoExport runs
// of the same job from writing the same output.
package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dbsmedya/goexport/internal/sqlutil"
)

// ErrLockHeld is returned when another instance is holding the lock.
var ErrLockHeld = errors.New("lock is held by another instance")

// Common timeout values for lock acquisition (in seconds).
const (
	// TimeoutImmediate returns immediately if lock cannot be acquired (no wait).
	TimeoutImmediate = 0

	// TimeoutShort is suitable for fast-failing duplicate job detection.
	TimeoutShort = 1
)

// pollInterval is how often PostgreSQL locks are retried while waiting.
var pollInterval = 200 * time.Millisecond

// AdvisoryLock is a named, session scoped lock held on a dedicated
// connection. The lock lives as long as that connection, so it is released
// even if the process dies.
//
//   - SQL Server: sp_getapplock / sp_releaseapplock with a session owner
//   - MySQL: GET_LOCK / RELEASE_LOCK
//   - PostgreSQL: pg_try_advisory_lock / pg_advisory_unlock on hashtext(name)
//   - SQLite: no server side locks, always granted
type AdvisoryLock struct {
	db       *sql.DB
	dialect  sqlutil.Dialect
	lockName string
	conn     *sql.Conn
	held     bool
}

// NewAdvisoryLock creates a lock with the given name. The lock is not
// acquired until AcquireLock is called.
func NewAdvisoryLock(db *sql.DB, dialect sqlutil.Dialect, lockName string) *AdvisoryLock {
	return &AdvisoryLock{
		db:       db,
		dialect:  dialect,
		lockName: lockName,
	}
}

// AcquireLock attempts to acquire the lock, waiting up to timeoutSeconds.
// Returns false without error when another session holds it.
func (a *AdvisoryLock) AcquireLock(ctx context.Context, timeoutSeconds int) (bool, error) {
	if a.held {
		return true, nil
	}
	if a.dialect == sqlutil.SQLite {
		a.held = true
		return true, nil
	}

	conn, err := a.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to reserve connection for lock %q: %w", a.lockName, err)
	}

	acquired, err := a.acquire(ctx, conn, timeoutSeconds)
	if err != nil || !acquired {
		conn.Close()
		return false, err
	}

	a.conn = conn
	a.held = true
	return true, nil
}

func (a *AdvisoryLock) acquire(ctx context.Context, conn *sql.Conn, timeoutSeconds int) (bool, error) {
	switch a.dialect {
	case sqlutil.MySQL:
		var result sql.NullInt64
		if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", a.lockName, timeoutSeconds).Scan(&result); err != nil {
			return false, fmt.Errorf("failed to execute GET_LOCK: %w", err)
		}
		if !result.Valid {
			return false, fmt.Errorf("GET_LOCK returned NULL for lock %q (possible database error)", a.lockName)
		}
		return result.Int64 == 1, nil

	case sqlutil.Postgres:
		deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
		for {
			var ok bool
			if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock(hashtext($1))", a.lockName).Scan(&ok); err != nil {
				return false, fmt.Errorf("failed to execute pg_try_advisory_lock: %w", err)
			}
			if ok || !time.Now().Before(deadline) {
				return ok, nil
			}
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(pollInterval):
			}
		}

	default:
		const query = `DECLARE @result int;
EXEC @result = sp_getapplock @Resource = @p1, @LockMode = 'Exclusive', @LockOwner = 'Session', @LockTimeout = @p2;
SELECT @result;`
		var result int64
		if err := conn.QueryRowContext(ctx, query, a.lockName, timeoutSeconds*1000).Scan(&result); err != nil {
			return false, fmt.Errorf("failed to execute sp_getapplock: %w", err)
		}
		switch {
		case result >= 0:
			return true, nil
		case result == -1:
			return false, nil
		default:
			return false, fmt.Errorf("sp_getapplock returned %d for lock %q", result, a.lockName)
		}
	}
}

// ReleaseLock releases the lock and returns its connection to the pool.
// Returns false without error when the lock was not held.
func (a *AdvisoryLock) ReleaseLock(ctx context.Context) (bool, error) {
	if !a.held {
		return false, nil
	}
	a.held = false
	if a.conn == nil {
		return true, nil
	}

	conn := a.conn
	a.conn = nil
	defer conn.Close()

	switch a.dialect {
	case sqlutil.MySQL:
		var result sql.NullInt64
		if err := conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", a.lockName).Scan(&result); err != nil {
			return false, fmt.Errorf("failed to execute RELEASE_LOCK: %w", err)
		}
		if !result.Valid {
			return false, fmt.Errorf("RELEASE_LOCK returned NULL for lock %q (lock did not exist)", a.lockName)
		}
		return result.Int64 == 1, nil

	case sqlutil.Postgres:
		var ok bool
		if err := conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock(hashtext($1))", a.lockName).Scan(&ok); err != nil {
			return false, fmt.Errorf("failed to execute pg_advisory_unlock: %w", err)
		}
		return ok, nil

	default:
		const query = `DECLARE @result int;
EXEC @result = sp_releaseapplock @Resource = @p1, @LockOwner = 'Session';
SELECT @result;`
		var result int64
		if err := conn.QueryRowContext(ctx, query, a.lockName).Scan(&result); err != nil {
			return false, fmt.Errorf("failed to execute sp_releaseapplock: %w", err)
		}
		return result == 0, nil
	}
}

// Release releases the lock if held. Calling it again is a no-op.
func (a *AdvisoryLock) Release(ctx context.Context) error {
	_, err := a.ReleaseLock(ctx)
	return err
}

// IsHeld returns true if this lock is currently held by this instance.
func (a *AdvisoryLock) IsHeld() bool {
	return a.held
}

// LockName returns the name of the advisory lock.
func (a *AdvisoryLock) LockName() string {
	return a.lockName
}

// TryAcquire attempts to acquire the lock without waiting.
func (a *AdvisoryLock) TryAcquire(ctx context.Context) (bool, error) {
	return a.AcquireLock(ctx, TimeoutImmediate)
}

// AcquireOrFail acquires the lock with a short timeout and returns
// ErrLockHeld if another instance is holding it.
func (a *AdvisoryLock) AcquireOrFail(ctx context.Context) error {
	acquired, err := a.AcquireLock(ctx, TimeoutShort)
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("%w: lock %q", ErrLockHeld, a.lockName)
	}
	return nil
}

// GenerateJobLockName creates a consistent lock name for a GoExport job.
// Lock names follow the format: "goexport:job:{jobName}"
//
// Example: GenerateJobLockName("nightly_dump") -> "goexport:job:nightly_dump"
func GenerateJobLockName(jobName string) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, jobName)

	return fmt.Sprintf("goexport:job:%s", sanitized)
}

// NewJobLock creates a lock for a specific GoExport job.
//
// Example:
//
//	lock := NewJobLock(db, sqlutil.SQLServer, "nightly_dump")
//	if err := lock.AcquireOrFail(ctx); err != nil {
//	    if errors.Is(err, ErrLockHeld) {
//	        log.Error("Job is already running")
//	    }
//	    return err
//	}
//	defer lock.Release(ctx)
func NewJobLock(db *sql.DB, dialect sqlutil.Dialect, jobName string) *AdvisoryLock {
	return NewAdvisoryLock(db, dialect, GenerateJobLockName(jobName))
}

// IsJobRunning reports whether another instance holds the job's lock by
// trying to take it without waiting. The answer can change right after
// it is returned.
func IsJobRunning(ctx context.Context, db *sql.DB, dialect sqlutil.Dialect, jobName string) (bool, error) {
	lock := NewJobLock(db, dialect, jobName)

	acquired, err := lock.TryAcquire(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check if job %q is running: %w", jobName, err)
	}
	if acquired {
		_ = lock.Release(ctx)
		return false, nil
	}
	return true, nil
}

// WithLock runs fn while holding the lock and releases it afterwards, also
// when fn panics. A lock held elsewhere yields ErrLockHeld.
func (a *AdvisoryLock) WithLock(ctx context.Context, fn func() error) error {
	if err := a.AcquireOrFail(ctx); err != nil {
		if errors.Is(err, ErrLockHeld) {
			return err
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	defer func() {
		// Released on a fresh context so a cancelled ctx does not leave it held.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Release(releaseCtx)
	}()

	return fn()
}

// WithJobLock runs fn while holding the job's lock.
func WithJobLock(ctx context.Context, db *sql.DB, dialect sqlutil.Dialect, jobName string, fn func() error) error {
	return NewJobLock(db, dialect, jobName).WithLock(ctx, fn)
}
