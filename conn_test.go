package pgclient

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/youssefsiam38/pgclient/driver"
)

func newTestConn(t *testing.T, opts ...Option) (*Conn, *mockSession) {
	t.Helper()
	sess := newMockSession()
	conn, err := New(sess, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return conn, sess
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New(nil) error = %v, want ErrInvalidConfig", err)
	}
	if _, err := New(newMockSession(), WithChunkSize(0)); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("WithChunkSize(0) error = %v, want ErrInvalidConfig", err)
	}
}

func TestConnect(t *testing.T) {
	ctx := context.Background()
	sess := newMockSession()
	var dialed string
	dial := func(ctx context.Context, connString string) (driver.Session, error) {
		dialed = connString
		return sess, nil
	}

	cfg := Config{Host: "db.internal", Port: 5433, Database: "app"}
	conn, err := Connect(ctx, cfg, dial)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if dialed != "dbname=app host=db.internal port=5433" {
		t.Errorf("dialed %q", dialed)
	}
	if conn.Config() != cfg {
		t.Errorf("Config() = %+v, want %+v", conn.Config(), cfg)
	}

	if _, err := Connect(ctx, Config{Port: -1}, dial); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("invalid config error = %v, want ErrInvalidConfig", err)
	}

	failing := func(ctx context.Context, connString string) (driver.Session, error) {
		return nil, errors.New("connection refused")
	}
	if _, err := Connect(ctx, cfg, failing); !errors.Is(err, ErrInvalidConnection) {
		t.Errorf("dial failure error = %v, want ErrInvalidConnection", err)
	}
}

func TestConn_QuerySelect(t *testing.T) {
	ctx := context.Background()
	conn, sess := newTestConn(t)
	sess.exec = func(sql string) (*driver.Result, error) {
		return &driver.Result{
			Status: driver.StatusTuplesOK,
			Fields: []driver.FieldDescription{{Name: "?column?", TypeOID: uint32(OIDInt4)}},
			Rows:   [][][]byte{{[]byte("1")}},
		}, nil
	}

	res, err := conn.Query(ctx, "SELECT 1")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if !res.HasRows() {
		t.Fatal("expected a result set")
	}
	rows := res.Rows.Tuples()
	if len(rows) != 1 || len(rows[0]) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}
	if v := rows[0][0]; v.Kind() != KindInteger || v.Int() != 1 {
		t.Errorf("value = %v (%v), want integer 1", v.Any(), v.Kind())
	}
}

func TestConn_QueryEmpty(t *testing.T) {
	conn, _ := newTestConn(t)

	for _, sql := range []string{"", "   "} {
		_, err := conn.Query(context.Background(), sql)
		if !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("Query(%q) error = %v, want ErrEmptyQuery", sql, err)
		}
		if !errors.Is(err, ErrQuery) {
			t.Errorf("ErrEmptyQuery should match ErrQuery")
		}
	}
}

func TestConn_QueryInsertOID(t *testing.T) {
	ctx := context.Background()
	conn, sess := newTestConn(t)

	sess.exec = func(sql string) (*driver.Result, error) {
		return &driver.Result{Status: driver.StatusCommandOK, CommandTag: "INSERT 16401 1", InsertOID: 16401}, nil
	}
	res, err := conn.Query(ctx, "INSERT INTO t VALUES (1)")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if res.OID != 16401 || res.HasRows() {
		t.Errorf("result = %+v, want OID 16401 and no rows", res)
	}

	sess.exec = func(sql string) (*driver.Result, error) {
		return &driver.Result{Status: driver.StatusCommandOK, CommandTag: "INSERT 0 3"}, nil
	}
	res, err = conn.Query(ctx, "INSERT INTO t SELECT generate_series(1, 3)")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if res.OID != 0 || res.HasRows() {
		t.Errorf("result = %+v, want empty", res)
	}
}

func TestConn_QueryBackendError(t *testing.T) {
	conn, sess := newTestConn(t)
	sess.exec = func(sql string) (*driver.Result, error) {
		return &driver.Result{
			Status: driver.StatusFatalError,
			Error: &driver.ServerError{
				Severity: "ERROR",
				Code:     "42P01",
				Message:  `relation "nope" does not exist`,
			},
		}, nil
	}

	_, err := conn.Query(context.Background(), "SELECT * FROM nope")
	if !errors.Is(err, ErrBackend) {
		t.Fatalf("error = %v, want ErrBackend", err)
	}
	var berr *BackendError
	if !errors.As(err, &berr) {
		t.Fatalf("error %T is not a *BackendError", err)
	}
	if berr.Code != "42P01" || berr.Message != `relation "nope" does not exist` {
		t.Errorf("BackendError = %+v", berr)
	}
	if conn.LastError() != berr.Message {
		t.Errorf("LastError() = %q", conn.LastError())
	}
}

func TestConn_QueryTransportError(t *testing.T) {
	conn, sess := newTestConn(t)
	cause := errors.New("broken pipe")
	sess.exec = func(sql string) (*driver.Result, error) {
		return nil, cause
	}

	_, err := conn.Query(context.Background(), "SELECT 1")
	if !errors.Is(err, ErrQuery) || !errors.Is(err, cause) {
		t.Errorf("error = %v, want ErrQuery wrapping the cause", err)
	}
	if errors.Is(err, ErrBackend) {
		t.Errorf("transport error should not match ErrBackend")
	}
}

func TestConn_QueryCopyStatus(t *testing.T) {
	conn, sess := newTestConn(t)
	sess.exec = func(sql string) (*driver.Result, error) {
		return &driver.Result{Status: driver.StatusCopyIn}, nil
	}

	res, err := conn.Query(context.Background(), "COPY t FROM STDIN")
	if err != nil || res.HasRows() || res.OID != 0 {
		t.Errorf("Query() = %+v, %v; want empty result", res, err)
	}
}

func TestConn_Close(t *testing.T) {
	ctx := context.Background()
	log := &recordingLogger{}
	conn, sess := newTestConn(t, WithLogger(log))

	if err := conn.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !sess.closed {
		t.Error("session was not closed")
	}
	if err := conn.Close(ctx); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
	if conn.Status() {
		t.Error("Status() = true after Close")
	}
	if !log.has("INFO: connection closed") {
		t.Error("missing close log entry")
	}
}

func TestConn_OperationsAfterClose(t *testing.T) {
	ctx := context.Background()
	conn, _ := newTestConn(t)
	_ = conn.Close(ctx)

	checks := map[string]error{}
	_, checks["Query"] = conn.Query(ctx, "SELECT 1")
	_, checks["Notification"] = conn.Notification(ctx)
	_, checks["CreateLargeObject"] = conn.CreateLargeObject(ctx, ModeReadWrite)
	_, checks["OpenLargeObject"] = conn.OpenLargeObject(1)
	_, checks["ImportLargeObject"] = conn.ImportLargeObject(ctx, "/nonexistent")
	checks["BulkInsert"] = conn.BulkInsert(ctx, "t", nil)
	_, checks["CopyIn"] = conn.CopyIn(ctx, "t")
	_, checks["CopyTo"] = conn.CopyTo(ctx, "COPY t TO STDOUT", &bytes.Buffer{})
	_, checks["Fileno"] = conn.Fileno()
	_, checks["Host"] = conn.Host()
	checks["Reset"] = conn.Reset(ctx)

	for op, err := range checks {
		if !errors.Is(err, ErrInvalidConnection) {
			t.Errorf("%s after Close: error = %v, want ErrInvalidConnection", op, err)
		}
	}
}

func TestConn_CloseWarnsAboutLiveObjects(t *testing.T) {
	ctx := context.Background()
	log := &recordingLogger{}
	conn, _ := newTestConn(t, WithLogger(log))

	if _, err := conn.CreateLargeObject(ctx, ModeReadWrite); err != nil {
		t.Fatalf("CreateLargeObject() error = %v", err)
	}
	_ = conn.Close(ctx)

	if !log.has("WARN: closing connection with large objects still referencing it") {
		t.Error("expected a warning about outstanding large objects")
	}
}

func TestConn_Notification(t *testing.T) {
	ctx := context.Background()
	conn, sess := newTestConn(t)

	n, err := conn.Notification(ctx)
	if err != nil || n != nil {
		t.Fatalf("Notification() = %v, %v; want nil, nil", n, err)
	}

	sess.notifications = []driver.Notification{
		{Channel: "jobs", PID: 4242, Payload: "42"},
		{Channel: "other", PID: 4242},
	}

	n, err = conn.Notification(ctx)
	if err != nil {
		t.Fatalf("Notification() error = %v", err)
	}
	if n == nil || n.Channel != "jobs" || n.PID != 4242 || n.Payload != "42" {
		t.Errorf("Notification() = %+v", n)
	}

	// Exactly one is drained per call.
	n, _ = conn.Notification(ctx)
	if n == nil || n.Channel != "other" {
		t.Errorf("second Notification() = %+v", n)
	}
	n, _ = conn.Notification(ctx)
	if n != nil {
		t.Errorf("third Notification() = %+v, want nil", n)
	}

	if sess.pings != 4 {
		t.Errorf("pings = %d, want one per call", sess.pings)
	}
}

func TestConn_Attributes(t *testing.T) {
	conn, _ := newTestConn(t)

	host, err := conn.Host()
	if err != nil || host != "localhost" {
		t.Errorf("Host() = %q, %v", host, err)
	}
	port, _ := conn.Port()
	db, _ := conn.Database()
	user, _ := conn.User()
	if port != 5432 || db != "test" || user != "tester" {
		t.Errorf("attributes = %d %q %q", port, db, user)
	}

	fd, err := conn.Fileno()
	if err != nil || fd != 7 {
		t.Errorf("Fileno() = %d, %v", fd, err)
	}
	if conn.ID() == "" {
		t.Error("ID() is empty")
	}
	if !conn.Status() {
		t.Error("Status() = false on a live connection")
	}
}

func TestConn_StatusReflectsLostServer(t *testing.T) {
	conn, sess := newTestConn(t)

	sess.mu.Lock()
	sess.broken = true
	sess.mu.Unlock()

	if conn.Status() {
		t.Error("Status() = true after the driver lost the server")
	}

	sess.mu.Lock()
	sess.broken = false
	sess.mu.Unlock()
	_ = conn.Close(context.Background())

	if conn.Status() {
		t.Error("Status() = true after Close")
	}
}

func TestConn_Reset(t *testing.T) {
	ctx := context.Background()
	conn, sess := newTestConn(t)

	lo, err := conn.CreateLargeObject(ctx, ModeReadWrite)
	if err != nil {
		t.Fatalf("CreateLargeObject() error = %v", err)
	}
	if err := lo.Open(ctx, ModeReadWrite); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := conn.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if sess.resets != 1 {
		t.Errorf("resets = %d, want 1", sess.resets)
	}

	// The descriptor did not survive the reset.
	if lo.IsOpen() {
		t.Error("large object still reports open after reset")
	}
	if _, err := lo.Read(ctx, 1); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Read() after reset error = %v, want ErrNotOpen", err)
	}
	if err := lo.Open(ctx, ModeRead); err != nil {
		t.Errorf("reopen after reset error = %v", err)
	}
}

func TestConn_CopyIn(t *testing.T) {
	ctx := context.Background()
	conn, sess := newTestConn(t)

	w, err := conn.CopyIn(ctx, "items")
	if err != nil {
		t.Fatalf("CopyIn() error = %v", err)
	}
	if err := w.PutLine("1\tone\n"); err != nil {
		t.Fatalf("PutLine() error = %v", err)
	}
	if err := w.PutLine("2\ttwo"); err != nil {
		t.Fatalf("PutLine() error = %v", err)
	}
	n, err := w.End(ctx)
	if err != nil || n != 2 {
		t.Fatalf("End() = %d, %v", n, err)
	}

	if sess.copySQL[0] != "COPY items FROM STDIN" {
		t.Errorf("copy statement = %q", sess.copySQL[0])
	}
	if sess.copyLines[1] != "2\ttwo\n" {
		t.Errorf("missing newline was not added: %q", sess.copyLines[1])
	}
	if err := w.PutLine("3\tthree"); !errors.Is(err, ErrQuery) {
		t.Errorf("PutLine() after End error = %v, want ErrQuery", err)
	}
	if _, err := conn.CopyIn(ctx, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("CopyIn(\"\") error = %v, want ErrInvalidArgument", err)
	}
}

func TestConn_CopyTo(t *testing.T) {
	conn, _ := newTestConn(t)

	var buf bytes.Buffer
	n, err := conn.CopyTo(context.Background(), "COPY items TO STDOUT", &buf)
	if err != nil || n != 2 {
		t.Fatalf("CopyTo() = %d, %v", n, err)
	}
	if buf.String() != "1\tone\n2\ttwo\n" {
		t.Errorf("copied data = %q", buf.String())
	}
}
