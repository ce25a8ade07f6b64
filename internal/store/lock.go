package store

import (
	"context"
	"time"

	"github.com/gofrs/flock"

	bterrors "github.com/bibdex/bibdex/internal/errors"
)

// writerLock serializes writers across OS processes using a lock file next
// to the database. SQLite's busy_timeout already guards the database itself;
// the flock keeps whole upsert/delete batches from interleaving and gives us
// a bounded-wait StoreBusy error instead of an opaque SQLITE_BUSY.
type writerLock struct {
	fl      *flock.Flock
	timeout time.Duration
}

func newWriterLock(path string, timeout time.Duration) *writerLock {
	return &writerLock{
		fl:      flock.New(path),
		timeout: timeout,
	}
}

// acquire takes the exclusive writer lock, waiting at most the configured
// timeout. Returns StoreBusy on expiry so callers can retry with backoff.
func (l *writerLock) acquire(ctx context.Context) error {
	lockCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	ok, err := l.fl.TryLockContext(lockCtx, 50*time.Millisecond)
	if err != nil {
		if lockCtx.Err() != nil && ctx.Err() == nil {
			return bterrors.StoreBusy("writer lock not acquired within timeout", err)
		}
		return err
	}
	if !ok {
		return bterrors.StoreBusy("writer lock not acquired within timeout", nil)
	}
	return nil
}

// release drops the writer lock. Safe to call when not held.
func (l *writerLock) release() {
	_ = l.fl.Unlock()
}
