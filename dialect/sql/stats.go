package sql

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vireosql/vireo/dialect"
)

// statementKindKey carries the generated statement's kind through the
// context, so instrumented drivers under an Executor account statements
// by their logical kind instead of guessing from the SQL text.
type statementKindKey struct{}

func withStatementKind(ctx context.Context, k QueryKind) context.Context {
	return context.WithValue(ctx, statementKindKey{}, k)
}

// StatementKind returns the query kind the executor attached to the
// context. Statements that bypassed generation are classified by their
// leading verb.
func StatementKind(ctx context.Context, query string) QueryKind {
	if k, ok := ctx.Value(statementKindKey{}).(QueryKind); ok {
		return k
	}
	verb, _, _ := strings.Cut(strings.TrimSpace(query), " ")
	switch strings.ToUpper(verb) {
	case "SELECT":
		return KindSelect
	case "INSERT":
		return KindInsert
	case "UPDATE":
		return KindUpdate
	case "DELETE":
		return KindDelete
	case "MERGE":
		return KindUpsert
	}
	return KindRaw
}

// QueryStats accumulates statement accounting for one instrumented
// driver. All counters are safe for concurrent use.
type QueryStats struct {
	kinds    [len(kindNames)]atomic.Int64
	queries  atomic.Int64
	execs    atomic.Int64
	duration atomic.Int64 // nanoseconds
	slow     atomic.Int64
	errs     atomic.Int64
}

func (s *QueryStats) observe(kind QueryKind, d time.Duration, err error, isQuery bool) {
	if int(kind) < len(s.kinds) {
		s.kinds[kind].Add(1)
	}
	if isQuery {
		s.queries.Add(1)
	} else {
		s.execs.Add(1)
	}
	s.duration.Add(int64(d))
	if err != nil {
		s.errs.Add(1)
	}
}

// Snapshot returns a point-in-time copy of the counters. Kinds holds
// one entry per query kind seen since the last reset.
func (s *QueryStats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Queries:  s.queries.Load(),
		Execs:    s.execs.Load(),
		Duration: time.Duration(s.duration.Load()),
		Slow:     s.slow.Load(),
		Errors:   s.errs.Load(),
		Kinds:    make(map[QueryKind]int64),
	}
	for k := range s.kinds {
		if n := s.kinds[k].Load(); n > 0 {
			snap.Kinds[QueryKind(k)] = n
		}
	}
	return snap
}

// Reset zeroes every counter.
func (s *QueryStats) Reset() {
	for k := range s.kinds {
		s.kinds[k].Store(0)
	}
	s.queries.Store(0)
	s.execs.Store(0)
	s.duration.Store(0)
	s.slow.Store(0)
	s.errs.Store(0)
}

// StatsSnapshot is a point-in-time view of query statistics.
type StatsSnapshot struct {
	Queries  int64
	Execs    int64
	Duration time.Duration
	Slow     int64
	Errors   int64
	Kinds    map[QueryKind]int64
}

// AvgDuration returns the average statement duration.
func (s StatsSnapshot) AvgDuration() time.Duration {
	total := s.Queries + s.Execs
	if total == 0 {
		return 0
	}
	return s.Duration / time.Duration(total)
}

// SlowQueryHook is called when a statement exceeds the slow threshold.
type SlowQueryHook func(ctx context.Context, query string, args []any, duration time.Duration)

// StatsDriver decorates a driver with statement accounting. Wrapping
// the driver an Executor runs on makes every executed request count
// under its logical kind.
type StatsDriver struct {
	dialect.Driver
	stats         *QueryStats
	slowThreshold atomic.Int64 // nanoseconds
	slowHook      SlowQueryHook
}

// StatsOption configures a StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the duration past which a statement counts as
// slow. Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.slowThreshold.Store(int64(d))
	}
}

// WithSlowQueryHook sets a callback invoked for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) {
		s.slowHook = hook
	}
}

// WithSlowQueryLog logs slow statements to the default logger. A
// convenience wrapper around WithSlowQueryHook.
func WithSlowQueryLog() StatsOption {
	return WithSlowQueryHook(func(ctx context.Context, query string, args []any, duration time.Duration) {
		slog.Warn("slow query detected",
			"kind", StatementKind(ctx, query).String(),
			"duration", duration,
			"query", query,
			"args", args,
		)
	})
}

// NewStatsDriver wraps a driver with statistics collection.
func NewStatsDriver(drv dialect.Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{Driver: drv, stats: &QueryStats{}}
	s.slowThreshold.Store(int64(100 * time.Millisecond))
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the underlying counters.
func (d *StatsDriver) QueryStats() *QueryStats {
	return d.stats
}

// SlowThreshold returns the current slow statement threshold.
func (d *StatsDriver) SlowThreshold() time.Duration {
	return time.Duration(d.slowThreshold.Load())
}

// SetSlowThreshold updates the slow statement threshold.
func (d *StatsDriver) SetSlowThreshold(threshold time.Duration) {
	d.slowThreshold.Store(int64(threshold))
}

// Query executes a query and records statistics.
func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Query(ctx, query, args, v)
	d.record(ctx, query, args, start, err, true)
	return err
}

// Exec executes a statement and records statistics.
func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Exec(ctx, query, args, v)
	d.record(ctx, query, args, start, err, false)
	return err
}

func (d *StatsDriver) record(ctx context.Context, query string, args any, start time.Time, err error, isQuery bool) {
	duration := time.Since(start)
	d.stats.observe(StatementKind(ctx, query), duration, err, isQuery)
	if duration > time.Duration(d.slowThreshold.Load()) {
		d.stats.slow.Add(1)
		if d.slowHook != nil {
			argsSlice, _ := args.([]any)
			d.slowHook(ctx, query, argsSlice, duration)
		}
	}
}

// Tx starts a transaction whose statements also record statistics.
func (d *StatsDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsTx{Tx: tx, driver: d}, nil
}

// StatsTx wraps a transaction with statistics collection.
type StatsTx struct {
	dialect.Tx
	driver *StatsDriver
}

// Unwrap returns the wrapped transaction.
func (tx *StatsTx) Unwrap() dialect.Tx { return tx.Tx }

// Query executes a query within the transaction and records statistics.
func (tx *StatsTx) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Query(ctx, query, args, v)
	tx.driver.record(ctx, query, args, start, err, true)
	return err
}

// Exec executes a statement within the transaction and records
// statistics.
func (tx *StatsTx) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Exec(ctx, query, args, v)
	tx.driver.record(ctx, query, args, start, err, false)
	return err
}

// DebugDriver wraps a driver with structured statement logging.
type DebugDriver struct {
	dialect.Driver
	log *slog.Logger
}

// DebugOption configures a DebugDriver.
type DebugOption func(*DebugDriver)

// DebugWithLogger sets the logger debug output goes to.
func DebugWithLogger(l *slog.Logger) DebugOption {
	return func(d *DebugDriver) {
		d.log = l
	}
}

// NewDebugDriver wraps a driver with statement logging on the default
// logger.
func NewDebugDriver(drv dialect.Driver, opts ...DebugOption) *DebugDriver {
	d := &DebugDriver{Driver: drv, log: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *DebugDriver) logStatement(ctx context.Context, msg, query string, args any) {
	d.log.LogAttrs(ctx, slog.LevelDebug, msg,
		slog.String("kind", StatementKind(ctx, query).String()),
		slog.String("query", query),
		slog.Any("args", args),
	)
}

// Query executes a query and logs it.
func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	d.logStatement(ctx, "driver query", query, args)
	return d.Driver.Query(ctx, query, args, v)
}

// Exec executes a statement and logs it.
func (d *DebugDriver) Exec(ctx context.Context, query string, args, v any) error {
	d.logStatement(ctx, "driver exec", query, args)
	return d.Driver.Exec(ctx, query, args, v)
}

// Tx starts a transaction with statement logging.
func (d *DebugDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	d.log.LogAttrs(ctx, slog.LevelDebug, "begin transaction")
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &DebugTx{Tx: tx, driver: d}, nil
}

// DebugTx wraps a transaction with statement logging.
type DebugTx struct {
	dialect.Tx
	driver *DebugDriver
}

// Unwrap returns the wrapped transaction.
func (tx *DebugTx) Unwrap() dialect.Tx { return tx.Tx }

// Query executes a query within the transaction and logs it.
func (tx *DebugTx) Query(ctx context.Context, query string, args, v any) error {
	tx.driver.logStatement(ctx, "tx query", query, args)
	return tx.Tx.Query(ctx, query, args, v)
}

// Exec executes a statement within the transaction and logs it.
func (tx *DebugTx) Exec(ctx context.Context, query string, args, v any) error {
	tx.driver.logStatement(ctx, "tx exec", query, args)
	return tx.Tx.Exec(ctx, query, args, v)
}

// Commit commits the transaction and logs it.
func (tx *DebugTx) Commit() error {
	tx.driver.log.LogAttrs(context.Background(), slog.LevelDebug, "commit transaction")
	return tx.Tx.Commit()
}

// Rollback rolls back the transaction and logs it.
func (tx *DebugTx) Rollback() error {
	tx.driver.log.LogAttrs(context.Background(), slog.LevelDebug, "rollback transaction")
	return tx.Tx.Rollback()
}

var (
	_ dialect.Driver = (*StatsDriver)(nil)
	_ dialect.Tx     = (*StatsTx)(nil)
	_ dialect.Driver = (*DebugDriver)(nil)
	_ dialect.Tx     = (*DebugTx)(nil)
)
