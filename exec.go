package loam

import (
	"context"
	"database/sql"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Executor runs SQL statements. *sql.DB satisfies it directly for
// callers happy with the pool's own concurrency; SerialExecutor
// funnels everything through a single worker instead. Migrations
// always run on the plain connection, never through an Executor.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

var _ Executor = (*sql.DB)(nil)
var _ Executor = (*SerialExecutor)(nil)

// SerialExecutor runs every statement on one worker goroutine, so
// statements from many goroutines execute strictly one at a time.
// SQLite allows a single writer; serializing in-process avoids busy
// errors instead of retrying around them.
type SerialExecutor struct {
	db     *sql.DB
	jobs   chan func()
	group  errgroup.Group
	closed sync.Once
}

// NewSerialExecutor starts the worker. Close releases it.
func NewSerialExecutor(db *sql.DB) *SerialExecutor {
	e := &SerialExecutor{db: db, jobs: make(chan func())}
	e.group.Go(func() error {
		for job := range e.jobs {
			job()
		}
		return nil
	})
	return e
}

// ExecContext runs the statement on the worker and waits for it.
func (e *SerialExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	type outcome struct {
		res sql.Result
		err error
	}
	done := make(chan outcome, 1)
	if err := e.submit(ctx, func() {
		res, err := e.db.ExecContext(ctx, query, args...)
		done <- outcome{res, err}
	}); err != nil {
		return nil, err
	}
	select {
	case out := <-done:
		return out.res, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// QueryContext runs the query on the worker and waits for it.
func (e *SerialExecutor) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	type outcome struct {
		rows *sql.Rows
		err  error
	}
	done := make(chan outcome, 1)
	if err := e.submit(ctx, func() {
		rows, err := e.db.QueryContext(ctx, query, args...)
		done <- outcome{rows, err}
	}); err != nil {
		return nil, err
	}
	select {
	case out := <-done:
		return out.rows, out.err
	case <-ctx.Done():
		// The worker may still finish the query; close what it hands back.
		go func() {
			if out := <-done; out.rows != nil {
				out.rows.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func (e *SerialExecutor) submit(ctx context.Context, job func()) error {
	select {
	case e.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the worker after in-flight work finishes. Callers must
// not submit new statements once Close has been called.
func (e *SerialExecutor) Close() error {
	e.closed.Do(func() { close(e.jobs) })
	return e.group.Wait()
}
