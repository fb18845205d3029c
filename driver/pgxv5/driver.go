// Package pgxv5 provides a pgx/v5 session implementation for pgclient.
//
// This is the primary/recommended backend. It runs statements with the
// simple query protocol so every value arrives in text format, streams COPY
// through pgconn, and exposes the socket descriptor of the connection.
//
// Usage:
//
//	sess, _ := pgxv5.Connect(ctx, cfg.ConnString())
//	conn, _ := pgclient.New(sess)
package pgxv5

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/youssefsiam38/pgclient/driver"
)

// Session implements driver.Session for a single pgx/v5 connection.
type Session struct {
	conn *pgx.Conn
}

// Connect parses connString and opens a new connection.
func Connect(ctx context.Context, connString string) (*Session, error) {
	cfg, err := pgx.ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	return ConnectConfig(ctx, cfg)
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

// ConnectConfig opens a new connection from a parsed pgx config.
func ConnectConfig(ctx context.Context, cfg *pgx.ConnConfig) (*Session, error) {
	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Session{conn: conn}, nil
}

// New wraps an already established connection. The session takes ownership
// of conn and closes it on Close.
func New(conn *pgx.Conn) *Session {
	return &Session{conn: conn}
}

// Conn returns the underlying pgx.Conn for advanced usage.
func (s *Session) Conn() *pgx.Conn {
	return s.conn
}

// Exec runs sql with the simple protocol and returns the last result.
func (s *Session) Exec(ctx context.Context, sql string) (*driver.Result, error) {
	if dir, ok := driver.CopyDirection(sql); ok {
		return s.execCopy(ctx, sql, dir)
	}

	results, err := s.conn.PgConn().Exec(ctx, sql).ReadAll()
	if err != nil {
		return serverResult(err)
	}

	// An empty query string yields no result at all.
	if len(results) == 0 {
		return &driver.Result{Status: driver.StatusEmptyQuery}, nil
	}

	last := results[len(results)-1]
	res := &driver.Result{
		Status:     driver.StatusCommandOK,
		CommandTag: last.CommandTag.String(),
		Rows:       last.Rows,
	}
	if len(last.FieldDescriptions) > 0 {
		res.Status = driver.StatusTuplesOK
		res.Fields = make([]driver.FieldDescription, len(last.FieldDescriptions))
		for i, fd := range last.FieldDescriptions {
			res.Fields[i] = driver.FieldDescription{Name: fd.Name, TypeOID: fd.DataTypeOID}
		}
		return res, nil
	}
	res.InsertOID = driver.InsertOIDFromTag(res.CommandTag)
	return res, nil
}

// execCopy runs a COPY statement without data. pgconn's plain Exec would
// wait forever for the server to leave copy-in mode.
func (s *Session) execCopy(ctx context.Context, sql string, dir driver.Status) (*driver.Result, error) {
	var (
		tag pgconn.CommandTag
		err error
	)
	if dir == driver.StatusCopyIn {
		tag, err = s.conn.PgConn().CopyFrom(ctx, strings.NewReader(""), sql)
	} else {
		tag, err = s.conn.PgConn().CopyTo(ctx, io.Discard, sql)
	}
	if err != nil {
		return serverResult(err)
	}
	return &driver.Result{Status: dir, CommandTag: tag.String()}, nil
}

// serverResult turns a server-reported failure into an error result and
// passes anything else through as a transport error.
func serverResult(err error) (*driver.Result, error) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil, err
	}
	return &driver.Result{
		Status: driver.SeverityStatus(pgErr.Severity),
		Error: &driver.ServerError{
			Severity: pgErr.Severity,
			Code:     pgErr.Code,
			Message:  pgErr.Message,
			Detail:   pgErr.Detail,
		},
	}, nil
}

// CopyIn starts a COPY ... FROM STDIN. Lines written with PutLine are piped
// into pgconn's CopyFrom, which runs until End closes the pipe.
func (s *Session) CopyIn(ctx context.Context, sql string) (driver.CopyStream, error) {
	pr, pw := io.Pipe()
	stream := &copyStream{
		pw:   pw,
		done: make(chan copyResult, 1),
	}

	go func() {
		tag, err := s.conn.PgConn().CopyFrom(ctx, pr, sql)
		// Unblock a pending PutLine if the server rejected the copy early.
		pr.CloseWithError(err)
		stream.done <- copyResult{rows: tag.RowsAffected(), err: err}
	}()

	return stream, nil
}

// CopyTo runs a COPY ... TO STDOUT and writes the data to w.
func (s *Session) CopyTo(ctx context.Context, sql string, w io.Writer) (int64, error) {
	tag, err := s.conn.PgConn().CopyTo(ctx, w, sql)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Socket returns the descriptor of the connection socket.
func (s *Session) Socket() (int, error) {
	nc := s.conn.PgConn().Conn()
	// TLS connections wrap the TCP socket.
	if wrapped, ok := nc.(interface{ NetConn() net.Conn }); ok {
		nc = wrapped.NetConn()
	}

	sc, ok := nc.(syscall.Conn)
	if !ok {
		return -1, driver.ErrUnsupported
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return -1, err
	}

	fd := -1
	if err := raw.Control(func(d uintptr) { fd = int(d) }); err != nil {
		return -1, err
	}
	return fd, nil
}

// Info describes the connected endpoint.
func (s *Session) Info() driver.Info {
	cfg := s.conn.Config()
	return driver.Info{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Database: cfg.Database,
		User:     cfg.User,
		Options:  cfg.RuntimeParams["options"],
	}
}

// Reset closes the connection and reconnects with the same configuration.
func (s *Session) Reset(ctx context.Context) error {
	cfg := s.conn.Config()
	// The old connection is discarded either way.
	_ = s.conn.Close(ctx)

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

// Close terminates the connection.
func (s *Session) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}

// IsClosed reports whether pgx has closed the connection, which it does
// after a transport failure or an interrupted round trip.
func (s *Session) IsClosed() bool {
	return s.conn.IsClosed()
}

type copyResult struct {
	rows int64
	err  error
}

// copyStream feeds raw COPY lines into a running CopyFrom.
type copyStream struct {
	pw   *io.PipeWriter
	done chan copyResult
}

// PutLine sends one raw line to the server.
func (c *copyStream) PutLine(line string) error {
	_, err := io.WriteString(c.pw, line)
	return err
}

// End closes the pipe, which completes the copy, and waits for the result.
func (c *copyStream) End(ctx context.Context) (int64, error) {
	if err := c.pw.Close(); err != nil {
		return 0, err
	}
	select {
	case res := <-c.done:
		return res.rows, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Compile-time check
var _ driver.Session = (*Session)(nil)
