package pgclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/youssefsiam38/pgclient/driver"
)

// mockSession implements driver.Session in memory for testing.
type mockSession struct {
	mu sync.Mutex

	// exec returns the result for a statement. Defaults to a CommandOK.
	exec    func(sql string) (*driver.Result, error)
	queries []string

	copySQL   []string
	copyLines []string
	copyEnded bool
	copyErr   error

	notifications []driver.Notification
	pings         int

	closed  bool
	broken  bool
	resets  int
	info    driver.Info
	nextOID uint32
	nextFD  int32
	objects map[uint32][]byte
	fds     map[int32]*mockFD

	// Failure injection for the large object primitives.
	createNull bool
	openErr    error
	closeErr   error
	shortWrite bool
	unlinkErr  error
	putErr     error
	getErr     error

	// readSizes records the length requested by every LORead and LOGet.
	readSizes []int
}

type mockFD struct {
	oid uint32
	pos int64
}

func newMockSession() *mockSession {
	return &mockSession{
		info:    driver.Info{Host: "localhost", Port: 5432, Database: "test", User: "tester"},
		nextOID: 16384,
		objects: make(map[uint32][]byte),
		fds:     make(map[int32]*mockFD),
	}
}

func (m *mockSession) Exec(ctx context.Context, sql string) (*driver.Result, error) {
	m.mu.Lock()
	m.queries = append(m.queries, sql)
	exec := m.exec
	m.mu.Unlock()

	if exec != nil {
		return exec(sql)
	}
	if strings.TrimSpace(sql) == "" {
		return &driver.Result{Status: driver.StatusEmptyQuery}, nil
	}
	return &driver.Result{Status: driver.StatusCommandOK}, nil
}

func (m *mockSession) CopyIn(ctx context.Context, sql string) (driver.CopyStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.copyErr != nil {
		return nil, m.copyErr
	}
	m.copySQL = append(m.copySQL, sql)
	return &mockCopyStream{m: m}, nil
}

type mockCopyStream struct {
	m *mockSession
}

func (s *mockCopyStream) PutLine(line string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.copyLines = append(s.m.copyLines, line)
	return nil
}

func (s *mockCopyStream) End(ctx context.Context) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.copyEnded = true
	return int64(len(s.m.copyLines)), nil
}

func (m *mockSession) CopyTo(ctx context.Context, sql string, w io.Writer) (int64, error) {
	if _, err := io.WriteString(w, "1\tone\n2\ttwo\n"); err != nil {
		return 0, err
	}
	return 2, nil
}

func (m *mockSession) Notification(ctx context.Context) (*driver.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.notifications) == 0 {
		return nil, nil
	}
	n := m.notifications[0]
	m.notifications = m.notifications[1:]
	return &n, nil
}

func (m *mockSession) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pings++
	return nil
}

func (m *mockSession) Socket() (int, error) {
	return 7, nil
}

func (m *mockSession) Info() driver.Info {
	return m.info
}

func (m *mockSession) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	m.fds = make(map[int32]*mockFD)
	return nil
}

func (m *mockSession) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockSession) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed || m.broken
}

func (m *mockSession) LOCreate(ctx context.Context, mode int32) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createNull {
		return 0, nil
	}
	m.nextOID++
	m.objects[m.nextOID] = nil
	return m.nextOID, nil
}

func (m *mockSession) LOOpen(ctx context.Context, oid uint32, mode int32) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return -1, m.openErr
	}
	if _, ok := m.objects[oid]; !ok {
		return -1, errors.New("large object does not exist")
	}
	fd := m.nextFD
	m.nextFD++
	m.fds[fd] = &mockFD{oid: oid}
	return fd, nil
}

func (m *mockSession) LOClose(ctx context.Context, fd int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.fds, fd)
	return m.closeErr
}

func (m *mockSession) LORead(ctx context.Context, fd int32, n int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readSizes = append(m.readSizes, n)
	d, ok := m.fds[fd]
	if !ok {
		return nil, errors.New("invalid large-object descriptor")
	}
	data := m.objects[d.oid]
	if d.pos >= int64(len(data)) {
		return []byte{}, nil
	}
	end := d.pos + int64(n)
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	out := bytes.Clone(data[d.pos:end])
	d.pos = end
	return out, nil
}

func (m *mockSession) LOWrite(ctx context.Context, fd int32, p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.fds[fd]
	if !ok {
		return 0, errors.New("invalid large-object descriptor")
	}
	if m.shortWrite && len(p) > 0 {
		p = p[:len(p)-1]
	}
	data := m.objects[d.oid]
	if end := d.pos + int64(len(p)); end > int64(len(data)) {
		data = append(data, make([]byte, end-int64(len(data)))...)
	}
	copy(data[d.pos:], p)
	m.objects[d.oid] = data
	d.pos += int64(len(p))
	return len(p), nil
}

func (m *mockSession) LOSeek(ctx context.Context, fd int32, offset int64, whence int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.fds[fd]
	if !ok {
		return 0, errors.New("invalid large-object descriptor")
	}
	var base int64
	switch whence {
	case io.SeekCurrent:
		base = d.pos
	case io.SeekEnd:
		base = int64(len(m.objects[d.oid]))
	}
	if base+offset < 0 {
		return 0, errors.New("invalid seek offset")
	}
	d.pos = base + offset
	return d.pos, nil
}

func (m *mockSession) LOTell(ctx context.Context, fd int32) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.fds[fd]
	if !ok {
		return 0, errors.New("invalid large-object descriptor")
	}
	return d.pos, nil
}

func (m *mockSession) LOUnlink(ctx context.Context, oid uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unlinkErr != nil {
		return m.unlinkErr
	}
	if _, ok := m.objects[oid]; !ok {
		return errors.New("large object does not exist")
	}
	delete(m.objects, oid)
	return nil
}

func (m *mockSession) LOPut(ctx context.Context, oid uint32, offset int64, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	data, ok := m.objects[oid]
	if !ok {
		return errors.New("large object does not exist")
	}
	if end := offset + int64(len(p)); end > int64(len(data)) {
		data = append(data, make([]byte, end-int64(len(data)))...)
	}
	copy(data[offset:], p)
	m.objects[oid] = data
	return nil
}

func (m *mockSession) LOGet(ctx context.Context, oid uint32, offset int64, n int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readSizes = append(m.readSizes, n)
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.objects[oid]
	if !ok {
		return nil, errors.New("large object does not exist")
	}
	if offset >= int64(len(data)) {
		return []byte{}, nil
	}
	end := min(offset+int64(n), int64(len(data)))
	return bytes.Clone(data[offset:end]), nil
}

func (m *mockSession) openFDs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fds)
}

// recordingLogger captures log entries for assertions.
type recordingLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *recordingLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+": "+msg)
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.record("DEBUG", msg) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.record("INFO", msg) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.record("WARN", msg) }
func (l *recordingLogger) Error(msg string, args ...any) { l.record("ERROR", msg) }

func (l *recordingLogger) has(entry string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e == entry {
			return true
		}
	}
	return false
}

var _ driver.Session = (*mockSession)(nil)
