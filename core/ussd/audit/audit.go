// Package audit records handled callbacks to the operations database.
// Recording is best effort: a failed insert is logged and dropped, a
// subscriber never waits on it.
package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/connectcare/ussd/core/logger"
)

// Entry is one handled callback.
type Entry struct {
	SessionID    string    `db:"session_id"`
	Msisdn       string    `db:"msisdn"`
	ServiceCode  string    `db:"service_code"`
	MenuState    string    `db:"menu_state"`
	UserInput    string    `db:"user_input"`
	ResponseType string    `db:"response_type"`
	Succeeded    bool      `db:"succeeded"`
	DurationMS   int64     `db:"duration_ms"`
	CreatedAt    time.Time `db:"created_at"`
}

const insertEntry = `
INSERT INTO ussd_logs
	(session_id, msisdn, service_code, menu_state, user_input, response_type, succeeded, duration_ms, created_at)
VALUES
	(:session_id, :msisdn, :service_code, :menu_state, :user_input, :response_type, :succeeded, :duration_ms, :created_at)`

// Options controls queue sizing for the recorder.
type Options struct {
	QueueSize    int
	Workers      int
	InsertWindow time.Duration
}

// Recorder writes entries asynchronously. A nil *Recorder is valid and
// drops everything, which is how a deployment without a database runs.
type Recorder struct {
	db   *sqlx.DB
	jobs chan Entry
	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
	errs atomic.Uint64
}

// NewRecorder starts workers draining the entry queue. Returns nil when
// db is nil so call sites need no branching.
func NewRecorder(db *sqlx.DB, opts Options) *Recorder {
	if db == nil {
		return nil
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.InsertWindow <= 0 {
		opts.InsertWindow = 5 * time.Second
	}

	r := &Recorder{
		db:   db,
		jobs: make(chan Entry, opts.QueueSize),
		stop: make(chan struct{}),
	}

	r.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go r.worker(opts.InsertWindow)
	}

	return r
}

// Record enqueues one entry. When the queue is saturated the entry is
// dropped; audit completeness is not worth stalling a callback.
func (r *Recorder) Record(e Entry) {
	if r == nil {
		return
	}
	select {
	case <-r.stop:
		return
	default:
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	select {
	case r.jobs <- e:
	default:
		r.errs.Add(1)
		logger.AUD.Warn("audit queue full, entry dropped",
			slog.String("event", "audit.drop"),
			slog.String("session_id", e.SessionID),
		)
	}
}

// ErrorCount returns the number of dropped or failed entries.
func (r *Recorder) ErrorCount() uint64 {
	if r == nil {
		return 0
	}
	return r.errs.Load()
}

// Close stops the workers after draining queued entries.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.once.Do(func() {
		close(r.stop)
		close(r.jobs)
		r.wg.Wait()
	})
}

func (r *Recorder) worker(window time.Duration) {
	defer r.wg.Done()
	for e := range r.jobs {
		r.insert(e, window)
	}
}

func (r *Recorder) insert(e Entry, window time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), window)
	defer cancel()

	if _, err := r.db.NamedExecContext(ctx, insertEntry, e); err != nil {
		r.errs.Add(1)
		logger.AUD.Warn("audit insert failed",
			slog.String("event", "audit.insert"),
			slog.String("status", "fail"),
			slog.String("session_id", e.SessionID),
			slog.String("err", err.Error()),
		)
	}
}
