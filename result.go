package pgclient

import (
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/youssefsiam38/pgclient/driver"
)

// Field describes one result column.
type Field struct {
	Name string
	Type OID
}

// Row is one decoded tuple, aligned with the result's fields.
type Row []Value

// ResultSet is a fully fetched query result. It holds the raw text tuples
// and decodes them on access; it never changes after construction and does
// not depend on the connection that produced it.
type ResultSet struct {
	fields   []Field
	decoders []decodeFunc
	rows     [][][]byte
}

func newResultSet(res *driver.Result) *ResultSet {
	rs := &ResultSet{
		fields:   make([]Field, len(res.Fields)),
		decoders: make([]decodeFunc, len(res.Fields)),
		rows:     res.Rows,
	}
	for i, fd := range res.Fields {
		rs.fields[i] = Field{Name: fd.Name, Type: OID(fd.TypeOID)}
		rs.decoders[i] = decoderFor(KindOf(OID(fd.TypeOID)))
	}
	return rs
}

// NumFields returns the number of columns.
func (rs *ResultSet) NumFields() int {
	return len(rs.fields)
}

// NumRows returns the number of tuples.
func (rs *ResultSet) NumRows() int {
	return len(rs.rows)
}

// Fields returns the column names in order.
func (rs *ResultSet) Fields() []string {
	names := make([]string, len(rs.fields))
	for i, f := range rs.fields {
		names[i] = f.Name
	}
	return names
}

// FieldName returns the name of column i.
func (rs *ResultSet) FieldName(i int) (string, error) {
	if i < 0 || i >= len(rs.fields) {
		return "", fmt.Errorf("%w: %d", ErrOutOfRange, i)
	}
	return rs.fields[i].Name, nil
}

// FieldType returns the type OID of column i.
func (rs *ResultSet) FieldType(i int) (OID, error) {
	if i < 0 || i >= len(rs.fields) {
		return 0, fmt.Errorf("%w: %d", ErrOutOfRange, i)
	}
	return rs.fields[i].Type, nil
}

// FieldIndex returns the position of the column called name. Like libpq, a
// double-quoted name is matched exactly and an unquoted one is also tried
// case-insensitively.
func (rs *ResultSet) FieldIndex(name string) (int, error) {
	if len(name) >= 2 && name[0] == '"' && name[len(name)-1] == '"' {
		quoted := name[1 : len(name)-1]
		for i, f := range rs.fields {
			if f.Name == quoted {
				return i, nil
			}
		}
		return -1, fmt.Errorf("%w: %s", ErrUnknownField, name)
	}

	for i, f := range rs.fields {
		if f.Name == name {
			return i, nil
		}
	}
	for i, f := range rs.fields {
		if strings.EqualFold(f.Name, name) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrUnknownField, name)
}

// Value decodes a single field.
func (rs *ResultSet) Value(row, col int) (Value, error) {
	if row < 0 || row >= len(rs.rows) {
		return Value{}, fmt.Errorf("%w: row %d", ErrOutOfRange, row)
	}
	if col < 0 || col >= len(rs.fields) {
		return Value{}, fmt.Errorf("%w: %d", ErrOutOfRange, col)
	}
	return rs.decoders[col](string(rs.rows[row][col])), nil
}

// Rows returns an iterator over the decoded tuples. It can be ranged over
// any number of times; each pass decodes from the stored text again.
func (rs *ResultSet) Rows() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		for _, raw := range rs.rows {
			if !yield(rs.decodeRow(raw)) {
				return
			}
		}
	}
}

// Tuples decodes every row into a positional sequence of values.
func (rs *ResultSet) Tuples() []Row {
	out := make([]Row, 0, len(rs.rows))
	for row := range rs.Rows() {
		out = append(out, row)
	}
	return out
}

// Maps decodes every row into a column name to value mapping. When several
// columns share a name, the rightmost one wins.
func (rs *ResultSet) Maps() []map[string]Value {
	out := make([]map[string]Value, 0, len(rs.rows))
	for row := range rs.Rows() {
		m := make(map[string]Value, len(row))
		for i, v := range row {
			m[rs.fields[i].Name] = v
		}
		out = append(out, m)
	}
	return out
}

// decodeRow applies the per-column decoders. SQL NULL arrives as a nil field
// and decodes like empty text.
func (rs *ResultSet) decodeRow(raw [][]byte) Row {
	row := make(Row, len(rs.fields))
	for i, decode := range rs.decoders {
		row[i] = decode(string(raw[i]))
	}
	return row
}

// WriteTable renders the result as an aligned text table followed by a row
// count.
func (rs *ResultSet) WriteTable(w io.Writer) error {
	header := make(table.Row, len(rs.fields))
	for i, f := range rs.fields {
		header[i] = f.Name
	}

	t := table.NewWriter()
	t.AppendHeader(header)
	for row := range rs.Rows() {
		tr := make(table.Row, len(row))
		for i, v := range row {
			tr[i] = v.String()
		}
		t.AppendRow(tr)
	}
	t.SetStyle(table.StyleLight)
	t.Style().Format = table.FormatOptions{
		Footer: text.FormatDefault,
		Header: text.FormatDefault,
		Row:    text.FormatDefault,
	}
	t.Style().Options.DrawBorder = false
	t.SuppressTrailingSpaces()

	_, err := fmt.Fprintf(w, "%s\n(%d rows)\n", t.Render(), len(rs.rows))
	return err
}
