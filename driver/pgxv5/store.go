package pgxv5

import (
	"context"
	"math"

	"github.com/youssefsiam38/pgclient/driver"
)

// LOCreate creates an empty large object.
func (s *Session) LOCreate(ctx context.Context, mode int32) (uint32, error) {
	var oid uint32
	if err := s.conn.QueryRow(ctx, driver.SQLLOCreate, mode).Scan(&oid); err != nil {
		return 0, err
	}
	return oid, nil
}

// LOOpen opens a large object and returns its descriptor.
func (s *Session) LOOpen(ctx context.Context, oid uint32, mode int32) (int32, error) {
	var fd int32
	if err := s.conn.QueryRow(ctx, driver.SQLLOOpen, oid, mode).Scan(&fd); err != nil {
		return -1, err
	}
	return fd, nil
}

// LOClose closes a descriptor.
func (s *Session) LOClose(ctx context.Context, fd int32) error {
	var res int32
	return s.conn.QueryRow(ctx, driver.SQLLOClose, fd).Scan(&res)
}

// LORead reads up to n bytes.
func (s *Session) LORead(ctx context.Context, fd int32, n int) ([]byte, error) {
	var buf []byte
	if err := s.conn.QueryRow(ctx, driver.SQLLORead, fd, clampLen(n)).Scan(&buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// LOWrite writes p and returns the number of bytes accepted.
func (s *Session) LOWrite(ctx context.Context, fd int32, p []byte) (int, error) {
	var n int32
	if err := s.conn.QueryRow(ctx, driver.SQLLOWrite, fd, p).Scan(&n); err != nil {
		return 0, err
	}
	return int(n), nil
}

// LOSeek moves the descriptor position.
func (s *Session) LOSeek(ctx context.Context, fd int32, offset int64, whence int) (int64, error) {
	var pos int64
	if err := s.conn.QueryRow(ctx, driver.SQLLOSeek, fd, offset, int32(whence)).Scan(&pos); err != nil {
		return -1, err
	}
	return pos, nil
}

// LOTell returns the descriptor position.
func (s *Session) LOTell(ctx context.Context, fd int32) (int64, error) {
	var pos int64
	if err := s.conn.QueryRow(ctx, driver.SQLLOTell, fd).Scan(&pos); err != nil {
		return -1, err
	}
	return pos, nil
}

// LOUnlink removes a large object.
func (s *Session) LOUnlink(ctx context.Context, oid uint32) error {
	var res int32
	return s.conn.QueryRow(ctx, driver.SQLLOUnlink, oid).Scan(&res)
}

// LOPut writes p at offset with lo_put.
func (s *Session) LOPut(ctx context.Context, oid uint32, offset int64, p []byte) error {
	_, err := s.conn.Exec(ctx, driver.SQLLOPut, oid, offset, p)
	return err
}

// LOGet reads up to n bytes at offset with lo_get.
func (s *Session) LOGet(ctx context.Context, oid uint32, offset int64, n int) ([]byte, error) {
	var buf []byte
	if err := s.conn.QueryRow(ctx, driver.SQLLOGet, oid, offset, clampLen(n)).Scan(&buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// clampLen fits a read length into the server's int4 argument.
func clampLen(n int) int32 {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(n)
}
