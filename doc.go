// Package pgclient is a small PostgreSQL client layer with typed results,
// large object streaming, and COPY-based bulk loading.
//
// The package does not speak the wire protocol itself. It sits on top of a
// driver.Session, of which two ship with the module:
//
//   - driver/pgxv5 wraps a *pgx.Conn (recommended)
//   - driver/databasesql wraps a dedicated connection from lib/pq
//
// # Key Features
//
//   - Query results decoded per column: int2/int4/oid become integers,
//     float4/float8 reals, money a currency value, everything else text
//   - Large objects with an explicit closed/open/unlinked state machine
//   - Client-side large object import and export
//   - Bulk insert through COPY FROM STDIN
//   - Raw COPY access and NOTIFY polling
//
// # Quick Start
//
//	conn, err := pgclient.Connect(ctx, pgclient.ConfigFromEnv(), pgxv5.Dial,
//	    pgclient.WithLogger(slog.Default()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close(ctx)
//
//	res, err := conn.Query(ctx, "SELECT 1 AS one")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for row := range res.Rows.Rows() {
//	    fmt.Println(row[0].Int())
//	}
//
// # Large Objects
//
// Large object descriptors only exist inside a transaction:
//
//	conn.Query(ctx, "BEGIN")
//	lo, _ := conn.CreateLargeObject(ctx, pgclient.ModeReadWrite)
//	defer lo.Release(ctx)
//	lo.Open(ctx, pgclient.ModeWrite)
//	lo.Write(ctx, data)
//	lo.Close(ctx)
//	conn.Query(ctx, "COMMIT")
//
// ImportLargeObject and Export address the object by OID and need no
// transaction:
//
//	lo, _ := conn.ImportLargeObject(ctx, "report.pdf")
//	lo.Export(ctx, "copy.pdf")
//
// # Bulk Loading
//
//	err := conn.BulkInsert(ctx, "measurements", [][]pgclient.Value{
//	    {pgclient.Int(1), pgclient.Float(20.5), pgclient.Text("north")},
//	    {pgclient.Int(2), pgclient.Float(19.0), pgclient.Text("south")},
//	})
//
// # Errors
//
// Failures are reported with the sentinels in errors.go and match with
// errors.Is. Server messages arrive as *BackendError, which matches
// ErrBackend.
//
// # Concurrency
//
// A Conn serializes individual round trips. Multi-step operations are not
// atomic, so callers that share a Conn across goroutines must coordinate.
package pgclient
