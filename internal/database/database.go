package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"time"

	"cloud.google.com/go/cloudsqlconn"
	mssql "github.com/denisenkom/go-mssqldb"
	"github.com/dkritz/sql-server-extractor/internal/config"
)

// connectTimeout bounds the initial connection attempt. Catalog queries are
// not individually bounded here; callers pass their own contexts.
const connectTimeout = 30 * time.Second

// ErrNoSession is returned when a query is issued without an open session.
var ErrNoSession = errors.New("no active database session")

// ConnectionError wraps a failure to establish a session with the server.
// It marks the fatal error class: nothing else aborts a run.
type ConnectionError struct {
	Server string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to SQL Server %s: %v", e.Server, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// DB holds the connection pool for one extraction run. The pool is owned by
// whoever called New and must be closed by the same owner; it is never stored
// in package-level state.
type DB struct {
	Pool *sql.DB
}

// New opens a pool against the configured server and verifies it with a
// bounded ping. A failure here is fatal to the run.
func New(ctx context.Context, cfg *config.Config) (*DB, error) {
	var (
		pool *sql.DB
		err  error
	)
	server := cfg.Server
	if cfg.CloudSQLInstanceConnectionName != "" {
		server = cfg.CloudSQLInstanceConnectionName
		pool, err = newCloudSQLPool(cfg)
	} else {
		pool, err = newStandardPool(cfg)
	}
	if err != nil {
		return nil, &ConnectionError{Server: server, Err: err}
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.PingContext(pingCtx); err != nil {
		pool.Close()
		return nil, &ConnectionError{Server: server, Err: err}
	}

	return &DB{Pool: pool}, nil
}

// newStandardPool creates a direct host:port SQL Server connection pool.
func newStandardPool(cfg *config.Config) (*sql.DB, error) {
	pool, err := sql.Open("sqlserver", ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("sql.Open (standard sqlserver): %w", err)
	}
	return pool, nil
}

// ConnString builds the go-mssqldb connection URL for a standard connection.
func ConnString(cfg *config.Config) string {
	port := cfg.Port
	if port == 0 {
		port = 1433 // Default SQL Server port
	}
	connStr := fmt.Sprintf("sqlserver://%s:%s@%s:%d", cfg.Username, cfg.Password, cfg.Server, port)
	if cfg.TrustCert {
		connStr += "?TrustServerCertificate=true"
	}
	return connStr
}

type csqlDialer struct {
	dialer     *cloudsqlconn.Dialer
	connName   string
	usePrivate bool
}

// DialContext adheres to the mssql.Dialer interface.
func (c *csqlDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	var opts []cloudsqlconn.DialOption
	if c.usePrivate {
		opts = append(opts, cloudsqlconn.WithPrivateIP())
	}
	return c.dialer.Dial(ctx, c.connName, opts...)
}

// newCloudSQLPool creates a pool that reaches the instance through the
// Cloud SQL connector rather than a routable host:port.
func newCloudSQLPool(cfg *config.Config) (*sql.DB, error) {
	// WithLazyRefresh performs certificate refresh on demand rather than on
	// a schedule, which suits short-lived extraction runs.
	dialer, err := cloudsqlconn.NewDialer(context.Background(), cloudsqlconn.WithLazyRefresh())
	if err != nil {
		return nil, fmt.Errorf("cloudsqlconn.NewDialer: %w", err)
	}
	connector, err := mssql.NewConnector(fmt.Sprintf("sqlserver://%s:%s@localhost:1433?dial=cloudsqlconn&instance=%s",
		cfg.Username, cfg.Password, cfg.CloudSQLInstanceConnectionName))
	if err != nil {
		return nil, fmt.Errorf("mssql.NewConnector: %w", err)
	}
	connector.Dialer = &csqlDialer{
		dialer:     dialer,
		connName:   cfg.CloudSQLInstanceConnectionName,
		usePrivate: cfg.CloudSQLUsePrivateIP,
	}
	return sql.OpenDB(connector), nil
}

func (db *DB) Ping(ctx context.Context) error {
	if db == nil || db.Pool == nil {
		return ErrNoSession
	}
	return db.Pool.PingContext(ctx)
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if db == nil || db.Pool == nil {
		return nil, ErrNoSession
	}
	return db.Pool.QueryContext(ctx, query, args...)
}

func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return db.Pool.QueryRowContext(ctx, query, args...)
}

func (db *DB) Close() error {
	if db != nil && db.Pool != nil {
		return db.Pool.Close()
	}
	return nil
}
