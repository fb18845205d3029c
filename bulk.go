package pgclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/youssefsiam38/pgclient/driver"
)

// BulkInsert loads rows into table with a single COPY FROM STDIN. Every row
// is encoded before anything is sent, so an invalid value fails the call
// without touching the server. Each line is tab-separated and
// newline-terminated; text is escaped for the COPY text format.
//
// A failure in the middle of the stream leaves the table as the server's
// COPY semantics leave it; no rollback is attempted.
func (c *Conn) BulkInsert(ctx context.Context, table string, rows [][]Value) error {
	if !c.state.isLive() {
		return ErrInvalidConnection
	}
	if table == "" {
		return fmt.Errorf("%w: table name is required", ErrInvalidArgument)
	}

	lines, err := encodeRows(rows)
	if err != nil {
		return err
	}

	var copied int64
	err = c.state.do(func(s driver.Session) error {
		stream, err := s.CopyIn(ctx, copyInSQL(table))
		if err != nil {
			return err
		}
		for _, line := range lines {
			if err := stream.PutLine(line); err != nil {
				// End reports the server's reason for a broken stream.
				if _, endErr := stream.End(ctx); endErr != nil {
					return endErr
				}
				return err
			}
		}
		copied, err = stream.End(ctx)
		return err
	})
	if errors.Is(err, ErrInvalidConnection) {
		return err
	}
	if err != nil {
		c.log().Debug("bulk insert failed", "table", table, "error", err)
		return newOpError("bulk insert", 0, fmt.Errorf("%w: %w", ErrQuery, err))
	}

	c.log().Debug("bulk insert finished", "table", table, "rows", copied)
	return nil
}

// BulkInsertAny is BulkInsert for plain Go values. Integers, float32,
// float64 and strings are accepted; any other type fails with
// ErrInvalidArgument before anything is sent.
func (c *Conn) BulkInsertAny(ctx context.Context, table string, rows [][]any) error {
	if !c.state.isLive() {
		return ErrInvalidConnection
	}

	values := make([][]Value, len(rows))
	for i, row := range rows {
		values[i] = make([]Value, len(row))
		for j, item := range row {
			v, err := ValueOf(item)
			if err != nil {
				return fmt.Errorf("row %d, column %d: %w", i, j, err)
			}
			values[i][j] = v
		}
	}
	return c.BulkInsert(ctx, table, values)
}

// encodeRows renders rows as COPY text-format lines.
func encodeRows(rows [][]Value) ([]string, error) {
	lines := make([]string, len(rows))
	var b strings.Builder
	for i, row := range rows {
		b.Reset()
		for j, v := range row {
			field, err := copyField(v)
			if err != nil {
				return nil, fmt.Errorf("row %d, column %d: %w", i, j, err)
			}
			if j > 0 {
				b.WriteByte('\t')
			}
			b.WriteString(field)
		}
		b.WriteByte('\n')
		lines[i] = b.String()
	}
	return lines, nil
}

func copyInSQL(table string) string {
	return "COPY " + table + " FROM STDIN"
}
