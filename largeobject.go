package pgclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/youssefsiam38/pgclient/driver"
)

// LargeObject is a handle on a server-resident large object.
//
// A handle is in one of three states: closed (the initial state), open
// (holding a server descriptor), or unlinked (its OID is 0 and every further
// operation fails with ErrNullOID). Server descriptors only live as long as
// the enclosing transaction, so Open, I/O, and Close normally run between
// BEGIN and COMMIT. Export and Conn.ImportLargeObject work by OID and run
// in autocommit mode as well.
//
// Example:
//
//	lo, _ := conn.CreateLargeObject(ctx, pgclient.ModeReadWrite)
//	defer lo.Release(ctx)
//	_ = lo.Open(ctx, pgclient.ModeWrite)
//	_, _ = lo.Write(ctx, []byte("hello"))
//	_ = lo.Close(ctx)
type LargeObject struct {
	conn *Conn
	oid  OID
	fd   int32
	gen  uint64
	held bool
}

func newLargeObject(c *Conn, id OID) *LargeObject {
	c.state.acquire()
	return &LargeObject{conn: c, oid: id, fd: -1, held: true}
}

type loState int

const (
	anyState loState = iota
	mustBeOpen
	mustBeClosed
)

// check applies the guards every operation shares: a non-null OID, a live
// connection, then the open/closed requirement.
func (lo *LargeObject) check(op string, want loState) error {
	if lo.oid == 0 {
		return newOpError(op, 0, ErrNullOID)
	}
	if !lo.held || !lo.conn.state.isLive() {
		return newOpError(op, lo.oid, ErrInvalidConnection)
	}
	if lo.fd >= 0 && lo.gen != lo.conn.state.gen() {
		lo.fd = -1
	}

	switch want {
	case mustBeOpen:
		if lo.fd < 0 {
			return newOpError(op, lo.oid, ErrNotOpen)
		}
	case mustBeClosed:
		if lo.fd >= 0 {
			return newOpError(op, lo.oid, ErrAlreadyOpen)
		}
	}
	return nil
}

// fail wraps a server-side failure, passing ErrInvalidConnection through.
func (lo *LargeObject) fail(op, msg string, err error) error {
	if errors.Is(err, ErrInvalidConnection) {
		return newOpError(op, lo.oid, err)
	}
	return newOpError(op, lo.oid, wrapIO(msg, err))
}

// OID returns the object identifier, or 0 once the object is unlinked.
func (lo *LargeObject) OID() OID {
	return lo.oid
}

// Conn returns the owning connection, or nil once the object is unlinked or
// released.
func (lo *LargeObject) Conn() *Conn {
	if lo.oid == 0 || !lo.held {
		return nil
	}
	return lo.conn
}

// IsOpen reports whether the object holds an open descriptor.
func (lo *LargeObject) IsOpen() bool {
	return lo.oid != 0 && lo.fd >= 0 && lo.gen == lo.conn.state.gen()
}

// LastError returns the last error message recorded on the owning
// connection.
func (lo *LargeObject) LastError() string {
	return lo.conn.state.lastError()
}

// Open opens the object with mode (ModeRead, ModeWrite or both).
func (lo *LargeObject) Open(ctx context.Context, mode LOMode) error {
	if err := lo.check("open", mustBeClosed); err != nil {
		return err
	}

	var fd int32
	var gen uint64
	err := lo.conn.state.do(func(s driver.Session) error {
		var err error
		fd, err = s.LOOpen(ctx, uint32(lo.oid), int32(mode))
		gen = lo.conn.state.generation
		return err
	})
	if err == nil && fd < 0 {
		err = fmt.Errorf("server returned descriptor %d", fd)
	}
	if err != nil {
		return lo.fail("open", "can't open large object", err)
	}

	lo.fd = fd
	lo.gen = gen
	return nil
}

// Close closes the descriptor. The handle is closed afterwards even when the
// server reports a failure.
func (lo *LargeObject) Close(ctx context.Context) error {
	if err := lo.check("close", mustBeOpen); err != nil {
		return err
	}

	fd := lo.fd
	lo.fd = -1
	err := lo.conn.state.do(func(s driver.Session) error {
		return s.LOClose(ctx, fd)
	})
	if err != nil {
		return lo.fail("close", "error while closing large object fd", err)
	}
	return nil
}

// Read reads up to n bytes from the current position. It returns an empty
// slice at the end of the object.
func (lo *LargeObject) Read(ctx context.Context, n int) ([]byte, error) {
	if err := lo.check("read", mustBeOpen); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, newOpError("read", lo.oid, fmt.Errorf("%w: size must be positive", ErrInvalidArgument))
	}
	// The server takes an int4 length.
	n = min(n, math.MaxInt32)

	var buf []byte
	err := lo.conn.state.do(func(s driver.Session) error {
		var err error
		buf, err = s.LORead(ctx, lo.fd, n)
		return err
	})
	if err != nil {
		return nil, lo.fail("read", "error while reading", err)
	}
	if len(buf) > n {
		buf = buf[:n]
	}
	return buf, nil
}

// Write writes buf at the current position. Accepting fewer bytes than
// given is an error.
func (lo *LargeObject) Write(ctx context.Context, buf []byte) (int, error) {
	if err := lo.check("write", mustBeOpen); err != nil {
		return 0, err
	}

	var n int
	err := lo.conn.state.do(func(s driver.Session) error {
		var err error
		n, err = s.LOWrite(ctx, lo.fd, buf)
		return err
	})
	if err != nil {
		return n, lo.fail("write", "buffer truncated during write", err)
	}
	if n < len(buf) {
		return n, lo.fail("write", "buffer truncated during write", nil)
	}
	return n, nil
}

// Seek moves the position and returns the new absolute position. whence is
// io.SeekStart, io.SeekCurrent or io.SeekEnd.
func (lo *LargeObject) Seek(ctx context.Context, offset int64, whence int) (int64, error) {
	if err := lo.check("seek", mustBeOpen); err != nil {
		return 0, err
	}
	switch whence {
	case io.SeekStart, io.SeekCurrent, io.SeekEnd:
	default:
		return 0, newOpError("seek", lo.oid, fmt.Errorf("%w: invalid whence %d", ErrInvalidArgument, whence))
	}

	var pos int64
	err := lo.conn.state.do(func(s driver.Session) error {
		var err error
		pos, err = s.LOSeek(ctx, lo.fd, offset, whence)
		return err
	})
	if err == nil && pos < 0 {
		err = fmt.Errorf("server returned position %d", pos)
	}
	if err != nil {
		return 0, lo.fail("seek", "error while moving cursor", err)
	}
	return pos, nil
}

// Tell returns the current position.
func (lo *LargeObject) Tell(ctx context.Context) (int64, error) {
	if err := lo.check("tell", mustBeOpen); err != nil {
		return 0, err
	}

	var pos int64
	err := lo.conn.state.do(func(s driver.Session) error {
		var err error
		pos, err = s.LOTell(ctx, lo.fd)
		return err
	})
	if err == nil && pos < 0 {
		err = fmt.Errorf("server returned position %d", pos)
	}
	if err != nil {
		return 0, lo.fail("tell", "error while getting position", err)
	}
	return pos, nil
}

// Size returns the object's length and leaves the position unchanged. It
// takes three round trips and is not atomic against concurrent writers.
func (lo *LargeObject) Size(ctx context.Context) (int64, error) {
	if err := lo.check("size", mustBeOpen); err != nil {
		return 0, err
	}

	start, err := lo.Tell(ctx)
	if err != nil {
		return 0, err
	}
	end, err := lo.Seek(ctx, 0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if start != end {
		if _, err := lo.Seek(ctx, start, io.SeekStart); err != nil {
			return 0, err
		}
	}
	return end, nil
}

// Export writes the object's content to a local file at path. The handle
// must be closed. The transfer uses lo_get and needs no transaction; a
// partially written file is removed on failure.
func (lo *LargeObject) Export(ctx context.Context, path string) error {
	if err := lo.check("export", mustBeClosed); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return newOpError("export", lo.oid, wrapIO("error while exporting large object", err))
	}

	err = lo.copyTo(ctx, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			lo.conn.log().Warn("failed to remove partial export", "oid", lo.oid, "path", path, "error", rmErr)
		}
		return lo.fail("export", "error while exporting large object", err)
	}
	return nil
}

// copyTo streams the whole object into w in chunks.
func (lo *LargeObject) copyTo(ctx context.Context, w io.Writer) error {
	size := lo.conn.chunkSize
	var offset int64
	for {
		var chunk []byte
		err := lo.conn.state.do(func(s driver.Session) error {
			var err error
			chunk, err = s.LOGet(ctx, uint32(lo.oid), offset, size)
			return err
		})
		if err != nil {
			return err
		}
		if len(chunk) == 0 {
			return nil
		}
		if _, err := w.Write(chunk); err != nil {
			return err
		}
		offset += int64(len(chunk))
		if len(chunk) < size {
			return nil
		}
	}
}

// Unlink deletes the object from the database. On success the handle's OID
// becomes 0 and it can no longer be used.
func (lo *LargeObject) Unlink(ctx context.Context) error {
	if err := lo.check("unlink", mustBeClosed); err != nil {
		return err
	}

	err := lo.conn.state.do(func(s driver.Session) error {
		return s.LOUnlink(ctx, uint32(lo.oid))
	})
	if err != nil {
		return lo.fail("unlink", "error while unlinking large object", err)
	}

	lo.conn.log().Debug("large object unlinked", "oid", lo.oid)
	lo.oid = 0
	lo.drop()
	return nil
}

// Release closes the descriptor if it is open, ignoring errors, and drops the
// handle's reference to the connection. It is safe to call more than once.
func (lo *LargeObject) Release(ctx context.Context) {
	if !lo.held {
		return
	}
	if lo.oid != 0 && lo.IsOpen() && lo.conn.state.isLive() {
		fd := lo.fd
		err := lo.conn.state.do(func(s driver.Session) error {
			return s.LOClose(ctx, fd)
		})
		if err != nil {
			lo.conn.log().Warn("failed to close large object on release", "oid", lo.oid, "error", err)
		}
	}
	lo.fd = -1
	lo.drop()
}

func (lo *LargeObject) drop() {
	if lo.held {
		lo.held = false
		lo.conn.state.release()
	}
}

// ImportLargeObject creates a large object holding the content of the local
// file at path. It needs no surrounding transaction; on failure the new
// object is removed.
func (c *Conn) ImportLargeObject(ctx context.Context, path string) (*LargeObject, error) {
	if !c.state.isLive() {
		return nil, ErrInvalidConnection
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, newOpError("import large object", 0, fmt.Errorf("%w: %w", ErrStorage, err))
	}
	defer f.Close()

	st := c.state
	var id uint32
	err = st.do(func(s driver.Session) error {
		var err error
		id, err = s.LOCreate(ctx, int32(ModeReadWrite))
		return err
	})
	if err == nil && id == 0 {
		err = errors.New("server returned a null oid")
	}
	if err != nil {
		return nil, newOpError("import large object", 0, fmt.Errorf("%w: %w", ErrStorage, err))
	}

	if err := c.copyFrom(ctx, id, f); err != nil {
		unlinkErr := st.do(func(s driver.Session) error {
			return s.LOUnlink(ctx, id)
		})
		if unlinkErr != nil {
			c.log().Warn("failed to remove partially imported large object", "oid", id, "error", unlinkErr)
		}
		return nil, newOpError("import large object", OID(id), fmt.Errorf("%w: %w", ErrStorage, err))
	}

	c.log().Debug("large object imported", "oid", id, "path", path)
	return newLargeObject(c, OID(id)), nil
}

// copyFrom streams r into the object id in chunks with lo_put, so no
// descriptor has to outlive a statement.
func (c *Conn) copyFrom(ctx context.Context, id uint32, r io.Reader) error {
	buf := make([]byte, c.chunkSize)
	var offset int64
	for {
		n, rerr := io.ReadFull(r, buf)
		if n > 0 {
			err := c.state.do(func(s driver.Session) error {
				return s.LOPut(ctx, id, offset, buf[:n])
			})
			if err != nil {
				return err
			}
			offset += int64(n)
		}
		switch {
		case rerr == io.EOF || rerr == io.ErrUnexpectedEOF:
			return nil
		case rerr != nil:
			return rerr
		}
	}
}
