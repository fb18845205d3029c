package pgclient

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/youssefsiam38/pgclient/driver"
)

// Notification is an asynchronous NOTIFY message received on the session.
type Notification = driver.Notification

// Dialer opens a driver session from a libpq connection string.
// pgxv5.Dial and databasesql.Dial satisfy it.
type Dialer func(ctx context.Context, connString string) (driver.Session, error)

// QueryResult is the outcome of Conn.Query. At most one of Rows and OID is
// set: Rows for statements that return tuples, OID for a single-row insert
// into a table with OIDs. Both are empty for plain commands and COPY.
type QueryResult struct {
	Rows *ResultSet
	OID  OID
}

// HasRows reports whether the statement returned tuples.
func (r QueryResult) HasRows() bool {
	return r.Rows != nil
}

// Conn is a live connection to a PostgreSQL server.
//
// A Conn serializes its own round trips, but sequences of calls (including
// LargeObject.Size, import, export, and bulk loading) are not atomic with
// respect to other goroutines using the same Conn.
type Conn struct {
	state     *session
	config    Config
	chunkSize int
}

// Connect validates cfg, dials a session with it, and wraps it in a Conn.
//
// Example:
//
//	conn, err := pgclient.Connect(ctx, pgclient.ConfigFromEnv(), pgxv5.Dial,
//	    pgclient.WithLogger(slog.Default()),
//	)
func Connect(ctx context.Context, cfg Config, dial Dialer, opts ...Option) (*Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dial == nil {
		return nil, fmt.Errorf("%w: dialer is required", ErrInvalidConfig)
	}

	sess, err := dial(ctx, cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConnection, err)
	}

	conn, err := New(sess, append(opts, withConfig(cfg))...)
	if err != nil {
		_ = sess.Close(ctx)
		return nil, err
	}
	return conn, nil
}

// New wraps an already established driver session.
func New(sess driver.Session, opts ...Option) (*Conn, error) {
	if sess == nil {
		return nil, fmt.Errorf("%w: session is required", ErrInvalidConfig)
	}

	cfg := newInternalConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	c := &Conn{
		state: &session{
			drv:    sess,
			live:   true,
			id:     uuid.New().String(),
			logger: cfg.logger,
		},
		config:    cfg.config,
		chunkSize: cfg.chunkSize,
	}

	info := sess.Info()
	c.log().Info("connection opened",
		"host", info.Host,
		"port", info.Port,
		"database", info.Database,
		"user", info.User,
	)
	return c, nil
}

// log returns the logger with the connection id attached.
func (c *Conn) log() logger {
	return logger{l: c.state.logger, id: c.state.id}
}

// ID returns the identifier used to correlate this connection in logs.
func (c *Conn) ID() string {
	return c.state.id
}

// Config returns the configuration the connection was opened with. It is the
// zero Config for connections created with New.
func (c *Conn) Config() Config {
	return c.config
}

// Query sends sql to the server and waits for the result.
func (c *Conn) Query(ctx context.Context, sql string) (QueryResult, error) {
	var res *driver.Result
	err := c.state.do(func(s driver.Session) error {
		var err error
		res, err = s.Exec(ctx, sql)
		return err
	})
	if errors.Is(err, ErrInvalidConnection) {
		return QueryResult{}, err
	}
	if err != nil {
		c.log().Debug("query failed", "error", err)
		return QueryResult{}, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	if res == nil {
		return QueryResult{}, fmt.Errorf("%w: no result", ErrQuery)
	}

	switch res.Status {
	case driver.StatusTuplesOK:
		return QueryResult{Rows: newResultSet(res)}, nil
	case driver.StatusCommandOK:
		return QueryResult{OID: OID(res.InsertOID)}, nil
	case driver.StatusCopyIn, driver.StatusCopyOut:
		return QueryResult{}, nil
	case driver.StatusEmptyQuery:
		return QueryResult{}, ErrEmptyQuery
	case driver.StatusBadResponse, driver.StatusNonfatalError, driver.StatusFatalError:
		berr := backendError(res)
		c.state.setLastError(berr.Message)
		c.log().Debug("query failed", "status", res.Status.String(), "error", berr)
		return QueryResult{}, berr
	default:
		return QueryResult{}, &BackendError{Message: "internal error: unknown result status " + res.Status.String()}
	}
}

func backendError(res *driver.Result) *BackendError {
	if res.Error == nil {
		return &BackendError{Message: "unknown server error"}
	}
	return &BackendError{
		Severity: res.Error.Severity,
		Code:     res.Error.Code,
		Message:  res.Error.Message,
		Detail:   res.Error.Detail,
	}
}

// Close terminates the connection. Large objects derived from it become
// unusable. Calling Close more than once is a no-op.
func (c *Conn) Close(ctx context.Context) error {
	s := c.state
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live {
		return nil
	}
	s.live = false

	if s.refs > 0 {
		s.logger.Warn("closing connection with large objects still referencing it",
			"conn_id", s.id,
			"large_objects", s.refs,
		)
	}

	if err := s.drv.Close(ctx); err != nil {
		s.logger.Warn("error closing session", "conn_id", s.id, "error", err)
		return newOpError("close", 0, err)
	}
	s.logger.Info("connection closed", "conn_id", s.id)
	return nil
}

// Reset closes the underlying session and reconnects with the same
// parameters. Descriptors of open large objects do not survive a reset.
func (c *Conn) Reset(ctx context.Context) error {
	err := c.state.do(func(s driver.Session) error {
		if err := s.Reset(ctx); err != nil {
			return err
		}
		c.state.generation++
		return nil
	})
	if errors.Is(err, ErrInvalidConnection) {
		return err
	}
	if err != nil {
		return newOpError("reset", 0, err)
	}
	c.log().Info("connection reset")
	return nil
}

// Fileno returns the socket descriptor of the connection, for use with
// external readiness polling. Backends without socket access return
// driver.ErrUnsupported.
func (c *Conn) Fileno() (int, error) {
	var fd int
	err := c.state.do(func(s driver.Session) error {
		var err error
		fd, err = s.Socket()
		return err
	})
	return fd, err
}

// Notification returns one pending asynchronous notification, or nil when
// there is none. It performs a single empty round trip to pick up messages
// the server has sent and never waits for new ones.
func (c *Conn) Notification(ctx context.Context) (*Notification, error) {
	var n *driver.Notification
	err := c.state.do(func(s driver.Session) error {
		if err := s.Ping(ctx); err != nil {
			return err
		}
		var err error
		n, err = s.Notification(ctx)
		return err
	})
	if errors.Is(err, ErrInvalidConnection) {
		return nil, err
	}
	if err != nil {
		return nil, newOpError("notification", 0, fmt.Errorf("%w: %w", ErrQuery, err))
	}
	return n, nil
}

func (c *Conn) info() (driver.Info, error) {
	var info driver.Info
	err := c.state.do(func(s driver.Session) error {
		info = s.Info()
		return nil
	})
	return info, err
}

// Host returns the server host name.
func (c *Conn) Host() (string, error) {
	info, err := c.info()
	return info.Host, err
}

// Port returns the server port.
func (c *Conn) Port() (int, error) {
	info, err := c.info()
	return int(info.Port), err
}

// Database returns the database name.
func (c *Conn) Database() (string, error) {
	info, err := c.info()
	return info.Database, err
}

// User returns the connected role.
func (c *Conn) User() (string, error) {
	info, err := c.info()
	return info.User, err
}

// Options returns the server options sent at startup.
func (c *Conn) Options() (string, error) {
	info, err := c.info()
	return info.Options, err
}

// Status reports whether the connection is usable: it has not been closed
// and the driver has not lost the server, for example after a transport
// failure or an interrupted round trip.
func (c *Conn) Status() bool {
	return c.state.healthy()
}

// LastError returns the message of the most recent failure reported by the
// server or the driver on this connection.
func (c *Conn) LastError() string {
	return c.state.lastError()
}

// CreateLargeObject creates an empty large object on the server. The object
// starts closed; call Open on it before reading or writing.
func (c *Conn) CreateLargeObject(ctx context.Context, mode LOMode) (*LargeObject, error) {
	var id uint32
	err := c.state.do(func(s driver.Session) error {
		var err error
		id, err = s.LOCreate(ctx, int32(mode))
		return err
	})
	if errors.Is(err, ErrInvalidConnection) {
		return nil, err
	}
	if err != nil {
		return nil, newOpError("create large object", 0, fmt.Errorf("%w: %w", ErrStorage, err))
	}
	if id == 0 {
		return nil, newOpError("create large object", 0, ErrStorage)
	}
	return newLargeObject(c, OID(id)), nil
}

// OpenLargeObject returns a handle on an existing large object. No round
// trip is made; the object starts closed.
func (c *Conn) OpenLargeObject(id OID) (*LargeObject, error) {
	if !c.state.isLive() {
		return nil, ErrInvalidConnection
	}
	if id == 0 {
		return nil, fmt.Errorf("%w: object OID must be non-zero", ErrInvalidArgument)
	}
	return newLargeObject(c, id), nil
}

// CopyIn starts COPY table FROM STDIN and returns a writer for raw
// text-format lines. The lines are sent as given; End must be called to
// finish the copy.
func (c *Conn) CopyIn(ctx context.Context, table string) (*CopyWriter, error) {
	if !c.state.isLive() {
		return nil, ErrInvalidConnection
	}
	if table == "" {
		return nil, fmt.Errorf("%w: table name is required", ErrInvalidArgument)
	}

	var stream driver.CopyStream
	err := c.state.do(func(s driver.Session) error {
		var err error
		stream, err = s.CopyIn(ctx, copyInSQL(table))
		return err
	})
	if errors.Is(err, ErrInvalidConnection) {
		return nil, err
	}
	if err != nil {
		return nil, newOpError("copy in", 0, fmt.Errorf("%w: %w", ErrQuery, err))
	}
	return &CopyWriter{conn: c, stream: stream}, nil
}

// CopyTo runs a COPY ... TO STDOUT statement and writes the data to w.
// It returns the number of rows copied.
func (c *Conn) CopyTo(ctx context.Context, sql string, w io.Writer) (int64, error) {
	var n int64
	err := c.state.do(func(s driver.Session) error {
		var err error
		n, err = s.CopyTo(ctx, sql, w)
		return err
	})
	if errors.Is(err, ErrInvalidConnection) {
		return 0, err
	}
	if err != nil {
		return n, newOpError("copy to", 0, fmt.Errorf("%w: %w", ErrQuery, err))
	}
	return n, nil
}

// CopyWriter feeds raw lines to a COPY FROM STDIN started by Conn.CopyIn.
type CopyWriter struct {
	conn   *Conn
	stream driver.CopyStream
	done   bool
}

// PutLine sends one data line. A missing trailing newline is added.
func (w *CopyWriter) PutLine(line string) error {
	if w.done {
		return fmt.Errorf("%w: copy already ended", ErrQuery)
	}
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line += "\n"
	}
	err := w.conn.state.do(func(driver.Session) error {
		return w.stream.PutLine(line)
	})
	if err != nil && !errors.Is(err, ErrInvalidConnection) {
		return newOpError("putline", 0, err)
	}
	return err
}

// End finishes the copy and returns the number of rows the server loaded.
func (w *CopyWriter) End(ctx context.Context) (int64, error) {
	if w.done {
		return 0, fmt.Errorf("%w: copy already ended", ErrQuery)
	}
	w.done = true

	var n int64
	err := w.conn.state.do(func(driver.Session) error {
		var err error
		n, err = w.stream.End(ctx)
		return err
	})
	if err != nil && !errors.Is(err, ErrInvalidConnection) {
		return 0, newOpError("endcopy", 0, err)
	}
	return n, err
}

// logger attaches the connection id to every entry.
type logger struct {
	l  Logger
	id string
}

func (l logger) Debug(msg string, args ...any) { l.l.Debug(msg, append(args, "conn_id", l.id)...) }
func (l logger) Info(msg string, args ...any)  { l.l.Info(msg, append(args, "conn_id", l.id)...) }
func (l logger) Warn(msg string, args ...any)  { l.l.Warn(msg, append(args, "conn_id", l.id)...) }
