// Package driver defines the transport contract pgclient is built on.
//
// A Session is one live PostgreSQL backend connection. pgclient never talks
// to the wire itself: query execution, COPY streaming, and the server-side
// large object functions are all reached through a Session. Two
// implementations ship with the module:
//   - github.com/youssefsiam38/pgclient/driver/pgxv5.Connect(ctx, connString)
//   - github.com/youssefsiam38/pgclient/driver/databasesql.Connect(ctx, connString)
//
// A Session is not safe for concurrent use; pgclient serializes calls.
package driver

import (
	"context"
	"errors"
	"io"
)

// ErrUnsupported is returned by backends for primitives they cannot provide
// (for example the socket descriptor behind database/sql).
var ErrUnsupported = errors.New("operation not supported by driver")

// Session is a single live connection to the server.
type Session interface {
	// Exec runs sql with the simple query protocol and returns the result of
	// the last statement. Values are returned in text format.
	// A COPY FROM STDIN or COPY TO STDOUT statement runs with no data
	// (nothing is loaded, output is discarded) and reports StatusCopyIn or
	// StatusCopyOut; CopyIn and CopyTo carry the data.
	// A server-reported failure is returned as a Result with an error status,
	// not as an error; the error return is reserved for transport failures
	// where no result came back at all.
	Exec(ctx context.Context, sql string) (*Result, error)

	// CopyIn starts a COPY ... FROM STDIN statement and returns a stream
	// accepting raw text-format lines.
	CopyIn(ctx context.Context, sql string) (CopyStream, error)

	// CopyTo runs a COPY ... TO STDOUT statement and writes the raw data to w.
	// Returns the number of rows copied.
	CopyTo(ctx context.Context, sql string, w io.Writer) (int64, error)

	// Notification returns one notification already received on this
	// session, or nil when none is pending. It must not block waiting for
	// the server.
	Notification(ctx context.Context) (*Notification, error)

	// Ping performs an empty round trip. Pending notifications are delivered
	// as a side effect.
	Ping(ctx context.Context) error

	// Socket returns the OS-level descriptor of the connection socket.
	Socket() (int, error)

	// Info describes the connected endpoint.
	Info() Info

	// Reset closes the underlying connection and reconnects with the same
	// parameters.
	Reset(ctx context.Context) error

	// Close terminates the connection.
	Close(ctx context.Context) error

	// IsClosed reports whether the underlying connection is known to be
	// gone, for example after a transport failure.
	IsClosed() bool

	LargeObjects
}

// LargeObjects exposes the server-side large object functions
// (lo_creat, lo_open, loread, ...). Descriptors are only valid inside the
// transaction that opened them.
type LargeObjects interface {
	// LOCreate creates an empty large object and returns its OID.
	// An OID of 0 means the server could not create it.
	LOCreate(ctx context.Context, mode int32) (uint32, error)

	// LOOpen opens the object and returns a session-local descriptor.
	LOOpen(ctx context.Context, oid uint32, mode int32) (int32, error)

	// LOClose closes a descriptor.
	LOClose(ctx context.Context, fd int32) error

	// LORead reads up to n bytes from the descriptor's current position.
	LORead(ctx context.Context, fd int32, n int) ([]byte, error)

	// LOWrite writes p and returns the number of bytes the server accepted.
	LOWrite(ctx context.Context, fd int32, p []byte) (int, error)

	// LOSeek moves the descriptor's position and returns the new absolute
	// position. whence is one of io.SeekStart, io.SeekCurrent, io.SeekEnd.
	LOSeek(ctx context.Context, fd int32, offset int64, whence int) (int64, error)

	// LOTell returns the descriptor's current position.
	LOTell(ctx context.Context, fd int32) (int64, error)

	// LOUnlink removes the object from the database.
	LOUnlink(ctx context.Context, oid uint32) error

	// LOPut writes p into the object at offset without a descriptor, so it
	// works outside a transaction.
	LOPut(ctx context.Context, oid uint32, offset int64, p []byte) error

	// LOGet reads up to n bytes from the object at offset without a
	// descriptor. It returns an empty slice past the end of the object.
	LOGet(ctx context.Context, oid uint32, offset int64, n int) ([]byte, error)
}

// CopyStream is an in-progress COPY ... FROM STDIN.
type CopyStream interface {
	// PutLine sends one raw line. The line must already carry its
	// terminating newline.
	PutLine(line string) error

	// End terminates the copy and returns the number of rows the server
	// reported as copied.
	End(ctx context.Context) (int64, error)
}

// Info describes the endpoint a Session is connected to.
type Info struct {
	Host     string
	Port     uint16
	Database string
	User     string
	Options  string
}
