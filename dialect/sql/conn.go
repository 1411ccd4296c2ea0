package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"golang.org/x/sync/semaphore"

	"github.com/vireosql/vireo/dialect"
)

// ConnectConfig describes a database endpoint. Zero values fall back to
// the dialect's defaults (port, in-memory file for SQLite).
type ConnectConfig struct {
	Dialect  string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	// File is the database file of a SQLite endpoint.
	File string
	// Params are extra driver parameters appended to the DSN.
	Params map[string]string

	ConnectTimeout time.Duration
	MaxOpenConns   int
	MaxIdleConns   int
	MaxLifetime    time.Duration
}

// DSN renders the driver name and source string for the configuration.
func (c *ConnectConfig) DSN() (driverName, dsn string, err error) {
	g, err := GrammarFor(c.Dialect)
	if err != nil {
		return "", "", err
	}
	port := c.Port
	if port == 0 {
		port = g.DefaultPort
	}
	switch g.Name {
	case dialect.MySQL:
		cfg := mysql.NewConfig()
		cfg.User = c.User
		cfg.Passwd = c.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(port))
		cfg.DBName = c.Database
		cfg.ParseTime = true
		cfg.Timeout = c.ConnectTimeout
		if len(c.Params) > 0 {
			cfg.Params = make(map[string]string, len(c.Params))
			for k, v := range c.Params {
				cfg.Params[k] = v
			}
		}
		return "mysql", cfg.FormatDSN(), nil
	case dialect.Postgres:
		kv := []string{
			"host=" + pqValue(c.Host),
			"port=" + strconv.Itoa(port),
		}
		if c.User != "" {
			kv = append(kv, "user="+pqValue(c.User))
		}
		if c.Password != "" {
			kv = append(kv, "password="+pqValue(c.Password))
		}
		if c.Database != "" {
			kv = append(kv, "dbname="+pqValue(c.Database))
		}
		if c.ConnectTimeout > 0 {
			kv = append(kv, "connect_timeout="+strconv.Itoa(int(c.ConnectTimeout.Seconds())))
		}
		keys := make([]string, 0, len(c.Params))
		for k := range c.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			kv = append(kv, k+"="+pqValue(c.Params[k]))
		}
		return "postgres", strings.Join(kv, " "), nil
	case dialect.SQLite:
		file := c.File
		if file == "" {
			file = ":memory:"
		}
		return "sqlite", file, nil
	default:
		return "", "", &ConnectionError{
			Kind:  ConnInvalid,
			cause: fmt.Errorf("no registered driver for dialect %q", g.Name),
		}
	}
}

// pqValue quotes a keyword/value DSN value when it needs it.
func pqValue(s string) string {
	if s == "" || strings.ContainsAny(s, ` '\`) {
		s = strings.ReplaceAll(s, `\`, `\\`)
		s = strings.ReplaceAll(s, `'`, `\'`)
		return "'" + s + "'"
	}
	return s
}

// Connect opens and verifies a connection to the configured endpoint.
// Failures come back as *ConnectionError with the kind derived from the
// underlying network or authentication error.
func Connect(ctx context.Context, cfg *ConnectConfig) (*Driver, error) {
	driverName, dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, classifyConnectError(err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxLifetime)
	}
	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		cerr := classifyConnectError(err)
		return nil, errors.Join(cerr, db.Close())
	}
	return OpenDB(cfg.Dialect, db), nil
}

// classifyConnectError maps a raw connect failure onto a typed
// connection error. Anything it cannot place keeps the generic kind, so
// callers always get a *ConnectionError back.
func classifyConnectError(err error) *ConnectionError {
	kind := ConnGeneric
	switch {
	case errors.Is(err, driver.ErrBadConn):
		kind = ConnInvalid
	case errors.Is(err, syscall.ECONNREFUSED):
		kind = ConnRefused
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.ETIMEDOUT), errors.Is(err, context.DeadlineExceeded):
		kind = ConnHostUnreachable
	default:
		var dnsErr *net.DNSError
		var myErr *mysql.MySQLError
		var pqErr *pq.Error
		switch {
		case errors.As(err, &dnsErr):
			kind = ConnHostNotFound
		case errors.As(err, &myErr):
			switch myErr.Number {
			case 1044, 1045:
				kind = ConnAccessDenied
			case 1049:
				kind = ConnInvalid
			}
		case errors.As(err, &pqErr):
			switch pqErr.Code {
			case "28000", "28P01":
				kind = ConnAccessDenied
			case "3D000":
				kind = ConnInvalid
			}
		}
	}
	return &ConnectionError{Kind: kind, cause: err}
}

// Pool gates access to a driver's connections with a weighted
// semaphore, bounding concurrent checkouts independently of the
// database/sql pool limits.
type Pool struct {
	drv            *Driver
	sem            *semaphore.Weighted
	acquireTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

// NewPool returns a pool over drv admitting at most size concurrent
// connections. A zero acquireTimeout waits indefinitely.
func NewPool(drv *Driver, size int64, acquireTimeout time.Duration) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		drv:            drv,
		sem:            semaphore.NewWeighted(size),
		acquireTimeout: acquireTimeout,
	}
}

// Acquire checks a dedicated connection out of the pool.
func (p *Pool) Acquire(ctx context.Context) (*PooledConn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, &ConnectionError{Kind: ConnInvalid, cause: errors.New("pool is closed")}
	}
	p.mu.Unlock()
	if p.acquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.acquireTimeout)
		defer cancel()
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, &ConnectionError{Kind: ConnPoolExhausted, cause: err}
	}
	conn, err := p.drv.DB().Conn(ctx)
	if err != nil {
		p.sem.Release(1)
		return nil, classifyConnectError(err)
	}
	return &PooledConn{conn: conn, pool: p}, nil
}

// Close shuts the pool and its driver down. Safe to call repeatedly;
// only the first call closes anything.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	return p.drv.Close()
}

// PooledConn status flags.
const (
	connFatal uint32 = 1 << iota
	connProtocolError
	connClosing
	connClosed
)

// PooledConn is a checked-out connection carrying its health state. Any
// raised flag disqualifies it from reuse.
type PooledConn struct {
	conn  *sql.Conn
	pool  *Pool
	flags atomic.Uint32
}

// MarkFatal flags the connection after an unrecoverable driver error.
func (c *PooledConn) MarkFatal() { c.setFlag(connFatal) }

// MarkProtocolError flags the connection after a wire protocol fault.
func (c *PooledConn) MarkProtocolError() { c.setFlag(connProtocolError) }

func (c *PooledConn) setFlag(f uint32) {
	for {
		old := c.flags.Load()
		if c.flags.CompareAndSwap(old, old|f) {
			return
		}
	}
}

// Validate reports whether the connection is healthy enough to serve
// another statement. Every status flag must be clear.
func (c *PooledConn) Validate() bool {
	return c.flags.Load() == 0
}

// ExecContext runs a statement on the dedicated connection. Driver-level
// connection faults mark it fatal.
func (c *PooledConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := c.conn.ExecContext(ctx, query, args...)
	if errors.Is(err, driver.ErrBadConn) {
		c.MarkFatal()
	}
	return res, err
}

// QueryContext runs a query on the dedicated connection.
func (c *PooledConn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := c.conn.QueryContext(ctx, query, args...)
	if errors.Is(err, driver.ErrBadConn) {
		c.MarkFatal()
	}
	return rows, err
}

// Release returns the connection. Repeated calls are no-ops; the
// semaphore slot frees exactly once.
func (c *PooledConn) Release() error {
	for {
		old := c.flags.Load()
		if old&(connClosing|connClosed) != 0 {
			return nil
		}
		if c.flags.CompareAndSwap(old, old|connClosing) {
			break
		}
	}
	err := c.conn.Close()
	c.setFlag(connClosed)
	c.pool.sem.Release(1)
	return err
}
