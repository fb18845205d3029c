// Package databasesql provides a database/sql session implementation for
// pgclient, backed by lib/pq.
//
// The session pins one *sql.Conn for its whole lifetime, so session state
// (transactions, large object descriptors, LISTEN registrations) survives
// between calls. Notifications are collected through lib/pq's notification
// handler and handed out by Notification.
package databasesql

import (
	"context"
	"database/sql"
	sqldriver "database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/lib/pq"
	"github.com/lib/pq/oid"
	"github.com/youssefsiam38/pgclient/driver"
)

// typeOIDs inverts oid.TypeName so column type names reported by lib/pq map
// back to their catalog OIDs.
var typeOIDs = func() map[string]uint32 {
	m := make(map[string]uint32, len(oid.TypeName))
	for o, name := range oid.TypeName {
		m[name] = uint32(o)
	}
	return m
}()

// Session implements driver.Session using database/sql.
type Session struct {
	db     *sql.DB
	ownsDB bool
	conn   *sql.Conn
	info   driver.Info

	mu      sync.Mutex
	pending []driver.Notification
}

// Connect opens a lib/pq connection for connString and pins it.
func Connect(ctx context.Context, connString string) (*Session, error) {
	base, err := pq.NewConnector(connString)
	if err != nil {
		return nil, err
	}

	s := &Session{ownsDB: true}
	s.db = sql.OpenDB(pq.ConnectorWithNotificationHandler(base, s.handleNotification))
	if err := s.pin(ctx); err != nil {
		s.db.Close()
		return nil, err
	}
	return s, nil
}

// Dial is Connect returning the driver.Session interface, so it can be
// passed as a pgclient.Dialer.
func Dial(ctx context.Context, connString string) (driver.Session, error) {
	s, err := Connect(ctx, connString)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Open pins a connection from an existing pool. Notifications are only
// delivered when the pool's connector was built with a notification handler,
// so Notification always reports none for sessions created this way.
func Open(ctx context.Context, db *sql.DB) (*Session, error) {
	s := &Session{db: db}
	if err := s.pin(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) pin(ctx context.Context) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return err
	}
	s.conn = conn

	var port int64
	err = conn.QueryRowContext(ctx, `
		SELECT current_database(), current_user,
			coalesce(host(inet_server_addr()), ''),
			coalesce(inet_server_port(), 0)
	`).Scan(&s.info.Database, &s.info.User, &s.info.Host, &port)
	if err != nil {
		conn.Close()
		return err
	}
	s.info.Port = uint16(port)
	return nil
}

func (s *Session) handleNotification(n *pq.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, driver.Notification{
		Channel: n.Channel,
		PID:     uint32(n.BePid),
		Payload: n.Extra,
	})
}

// DB returns the underlying database handle.
func (s *Session) DB() *sql.DB {
	return s.db
}

// Exec runs sql and returns the result of the last statement.
func (s *Session) Exec(ctx context.Context, query string) (*driver.Result, error) {
	if strings.TrimSpace(query) == "" {
		return &driver.Result{Status: driver.StatusEmptyQuery}, nil
	}
	if dir, ok := driver.CopyDirection(query); ok {
		return s.execCopy(ctx, query, dir)
	}

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return serverResult(err)
	}
	defer rows.Close()

	var res *driver.Result
	for {
		res, err = readResultSet(rows)
		if err != nil {
			return serverResult(err)
		}
		if !rows.NextResultSet() {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return serverResult(err)
	}
	return res, nil
}

// execCopy runs a COPY FROM STDIN with no data. COPY TO STDOUT is not
// available through lib/pq.
func (s *Session) execCopy(ctx context.Context, query string, dir driver.Status) (*driver.Result, error) {
	if dir == driver.StatusCopyOut {
		return nil, driver.ErrUnsupported
	}
	stream, err := s.CopyIn(ctx, query)
	if err != nil {
		return serverResult(err)
	}
	if _, err := stream.End(ctx); err != nil {
		return serverResult(err)
	}
	return &driver.Result{Status: driver.StatusCopyIn}, nil
}

// readResultSet drains the current result set of rows.
func readResultSet(rows *sql.Rows) (*driver.Result, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	if len(types) == 0 {
		// lib/pq does not surface the command tag, so insert OIDs are
		// never reported by this backend.
		for rows.Next() {
		}
		return &driver.Result{Status: driver.StatusCommandOK}, rows.Err()
	}

	res := &driver.Result{
		Status: driver.StatusTuplesOK,
		Fields: make([]driver.FieldDescription, len(types)),
	}
	for i, ct := range types {
		res.Fields[i] = driver.FieldDescription{
			Name:    ct.Name(),
			TypeOID: typeOIDs[ct.DatabaseTypeName()],
		}
	}

	// Scanning into any keeps lib/pq's own values, which serverText turns
	// back into the server's text form. sql.RawBytes would reformat times
	// and booleans.
	vals := make([]any, len(types))
	dest := make([]any, len(types))
	for i := range vals {
		dest[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make([][]byte, len(vals))
		for i, v := range vals {
			row[i] = serverText(res.Fields[i].TypeOID, v)
		}
		res.Rows = append(res.Rows, row)
	}
	return res, rows.Err()
}

// serverResult turns a server-reported failure into an error result and
// passes anything else through as a transport error.
func serverResult(err error) (*driver.Result, error) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil, err
	}
	return &driver.Result{
		Status: driver.SeverityStatus(pqErr.Severity),
		Error: &driver.ServerError{
			Severity: pqErr.Severity,
			Code:     string(pqErr.Code),
			Message:  pqErr.Message,
			Detail:   pqErr.Detail,
		},
	}, nil
}

// CopyIn starts a COPY ... FROM STDIN inside its own transaction. lib/pq
// only accepts typed values, so each raw line is split back into fields.
func (s *Session) CopyIn(ctx context.Context, query string) (driver.CopyStream, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	return &copyStream{ctx: ctx, tx: tx, stmt: stmt}, nil
}

// CopyTo is not available: lib/pq does not implement COPY TO STDOUT.
func (s *Session) CopyTo(ctx context.Context, query string, w io.Writer) (int64, error) {
	return 0, driver.ErrUnsupported
}

// Socket is not available through database/sql.
func (s *Session) Socket() (int, error) {
	return -1, driver.ErrUnsupported
}

// Info describes the connected endpoint.
func (s *Session) Info() driver.Info {
	return s.info
}

// Reset discards the pinned connection and pins a fresh one.
func (s *Session) Reset(ctx context.Context) error {
	// Returning ErrBadConn from Raw makes database/sql drop the connection
	// instead of putting it back into the pool.
	_ = s.conn.Raw(func(any) error { return sqldriver.ErrBadConn })
	_ = s.conn.Close()

	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()

	return s.pin(ctx)
}

// Close releases the pinned connection, and the pool when the session
// created it.
func (s *Session) Close(ctx context.Context) error {
	connErr := s.conn.Close()
	if s.ownsDB {
		if err := s.db.Close(); err != nil {
			return err
		}
	}
	return connErr
}

// IsClosed reports whether the pinned connection has been closed or lib/pq
// has marked it broken.
func (s *Session) IsClosed() bool {
	err := s.conn.Raw(func(dc any) error {
		if v, ok := dc.(sqldriver.Validator); ok && !v.IsValid() {
			return sqldriver.ErrBadConn
		}
		return nil
	})
	return err != nil
}

// copyStream feeds raw COPY lines into a lib/pq CopyIn statement.
type copyStream struct {
	ctx  context.Context
	tx   *sql.Tx
	stmt *sql.Stmt
	rows int64
}

// PutLine sends one raw line to the server.
func (c *copyStream) PutLine(line string) error {
	fields := driver.SplitCopyLine(line)
	args := make([]any, len(fields))
	for i, f := range fields {
		if f != nil {
			args[i] = *f
		}
	}
	if _, err := c.stmt.ExecContext(c.ctx, args...); err != nil {
		return err
	}
	c.rows++
	return nil
}

// End flushes the copy and commits its transaction.
func (c *copyStream) End(ctx context.Context) (int64, error) {
	if _, err := c.stmt.ExecContext(ctx); err != nil {
		_ = c.stmt.Close()
		_ = c.tx.Rollback()
		return 0, err
	}
	if err := c.stmt.Close(); err != nil {
		_ = c.tx.Rollback()
		return 0, err
	}
	if err := c.tx.Commit(); err != nil {
		return 0, err
	}
	return c.rows, nil
}

// Compile-time check
var _ driver.Session = (*Session)(nil)
