package pgclient

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/youssefsiam38/pgclient/driver"
)

func sampleResult() *ResultSet {
	return newResultSet(&driver.Result{
		Status: driver.StatusTuplesOK,
		Fields: []driver.FieldDescription{
			{Name: "id", TypeOID: uint32(OIDInt4)},
			{Name: "Price", TypeOID: uint32(OIDMoney)},
			{Name: "name", TypeOID: 25},
			{Name: "ratio", TypeOID: uint32(OIDFloat8)},
		},
		Rows: [][][]byte{
			{[]byte("1"), []byte("$1,000.50"), []byte("apple"), []byte("0.5")},
			{[]byte("2"), []byte("$3.00"), nil, []byte("x")},
		},
	})
}

func TestResultSet_Shape(t *testing.T) {
	rs := sampleResult()

	if rs.NumFields() != 4 {
		t.Errorf("NumFields() = %d, want 4", rs.NumFields())
	}
	if rs.NumRows() != 2 {
		t.Errorf("NumRows() = %d, want 2", rs.NumRows())
	}
	if got := strings.Join(rs.Fields(), ","); got != "id,Price,name,ratio" {
		t.Errorf("Fields() = %s", got)
	}

	typ, err := rs.FieldType(1)
	if err != nil || typ != OIDMoney {
		t.Errorf("FieldType(1) = %d, %v; want money", typ, err)
	}
}

func TestResultSet_FieldName(t *testing.T) {
	rs := sampleResult()

	name, err := rs.FieldName(2)
	if err != nil || name != "name" {
		t.Errorf("FieldName(2) = %q, %v", name, err)
	}

	for _, i := range []int{-1, 4, 100} {
		if _, err := rs.FieldName(i); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("FieldName(%d) error = %v, want ErrOutOfRange", i, err)
		}
	}
}

func TestResultSet_FieldIndex(t *testing.T) {
	rs := sampleResult()

	tests := []struct {
		name string
		want int
	}{
		{"id", 0},
		{"ratio", 3},
		{"Price", 1},
		{"price", 1},
		{"PRICE", 1},
		{`"Price"`, 1},
	}
	for _, tt := range tests {
		got, err := rs.FieldIndex(tt.name)
		if err != nil || got != tt.want {
			t.Errorf("FieldIndex(%q) = %d, %v; want %d", tt.name, got, err, tt.want)
		}
	}

	for _, name := range []string{"missing", `"price"`, ""} {
		if _, err := rs.FieldIndex(name); !errors.Is(err, ErrUnknownField) {
			t.Errorf("FieldIndex(%q) error = %v, want ErrUnknownField", name, err)
		}
	}
}

func TestResultSet_Tuples(t *testing.T) {
	rs := sampleResult()
	rows := rs.Tuples()

	if len(rows) != 2 {
		t.Fatalf("len(Tuples()) = %d, want 2", len(rows))
	}
	first := rows[0]
	if first[0].Kind() != KindInteger || first[0].Int() != 1 {
		t.Errorf("id = %v", first[0].Any())
	}
	if first[1].Kind() != KindCurrency || first[1].Float() != 1000.5 {
		t.Errorf("price = %v", first[1].Any())
	}
	if first[2].Kind() != KindText || first[2].Text() != "apple" {
		t.Errorf("name = %v", first[2].Any())
	}
	if first[3].Kind() != KindReal || first[3].Float() != 0.5 {
		t.Errorf("ratio = %v", first[3].Any())
	}

	second := rows[1]
	if second[2].Kind() != KindText || second[2].Text() != "" {
		t.Errorf("NULL text decoded to %v %q, want empty text", second[2].Kind(), second[2].Text())
	}
	if second[3].Float() != 0 {
		t.Errorf("garbage real decoded to %v, want 0", second[3].Float())
	}
}

func TestResultSet_RowsRestartable(t *testing.T) {
	rs := sampleResult()

	count := func() int {
		n := 0
		for row := range rs.Rows() {
			if len(row) != rs.NumFields() {
				t.Errorf("row has %d values, want %d", len(row), rs.NumFields())
			}
			n++
		}
		return n
	}

	if first, second := count(), count(); first != 2 || second != 2 {
		t.Errorf("passes yielded %d and %d rows, want 2 and 2", first, second)
	}

	// Breaking early must not disturb later passes.
	for range rs.Rows() {
		break
	}
	if n := count(); n != 2 {
		t.Errorf("after early break got %d rows", n)
	}
}

func TestResultSet_Maps(t *testing.T) {
	rs := newResultSet(&driver.Result{
		Status: driver.StatusTuplesOK,
		Fields: []driver.FieldDescription{
			{Name: "a", TypeOID: uint32(OIDInt4)},
			{Name: "b", TypeOID: 25},
			{Name: "a", TypeOID: 25},
		},
		Rows: [][][]byte{{[]byte("1"), []byte("x"), []byte("later")}},
	})

	maps := rs.Maps()
	if len(maps) != 1 {
		t.Fatalf("len(Maps()) = %d, want 1", len(maps))
	}
	if len(maps[0]) != 2 {
		t.Errorf("map has %d keys, want 2", len(maps[0]))
	}
	if got := maps[0]["a"]; got.Kind() != KindText || got.Text() != "later" {
		t.Errorf(`maps[0]["a"] = %v, want rightmost column`, got.Any())
	}
}

func TestResultSet_Value(t *testing.T) {
	rs := sampleResult()

	v, err := rs.Value(1, 0)
	if err != nil || v.Int() != 2 {
		t.Errorf("Value(1, 0) = %v, %v", v.Any(), err)
	}
	if _, err := rs.Value(2, 0); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Value(2, 0) error = %v, want ErrOutOfRange", err)
	}
	if _, err := rs.Value(0, -1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Value(0, -1) error = %v, want ErrOutOfRange", err)
	}
}

func TestResultSet_Empty(t *testing.T) {
	rs := newResultSet(&driver.Result{
		Status: driver.StatusTuplesOK,
		Fields: []driver.FieldDescription{{Name: "x", TypeOID: 25}},
	})

	if rs.NumRows() != 0 || len(rs.Tuples()) != 0 || len(rs.Maps()) != 0 {
		t.Errorf("expected no rows")
	}
}

func TestResultSet_WriteTable(t *testing.T) {
	rs := sampleResult()

	var buf bytes.Buffer
	if err := rs.WriteTable(&buf); err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"id", "Price", "apple", "1000.5", "(2 rows)"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}
