package pgclient

import (
	"fmt"
	"strconv"

	"github.com/youssefsiam38/pgclient/driver"
)

// OID is a server object identifier. 0 is never a valid object.
type OID uint32

// Kind identifies which member of the Value union is set.
type Kind int

const (
	// KindInvalid is the zero Value. It is never produced by decoding and is
	// rejected by the bulk loader.
	KindInvalid Kind = iota
	KindInteger
	KindReal
	KindCurrency
	KindText
)

var kindNames = map[Kind]string{
	KindInvalid:  "invalid",
	KindInteger:  "integer",
	KindReal:     "real",
	KindCurrency: "currency",
	KindText:     "text",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a tagged union over integer, real, currency, and text. It is the
// decoded form of a result field and the input form of the bulk loader.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

// Int returns an integer Value.
func Int(v int64) Value { return Value{kind: KindInteger, i: v} }

// Float returns a real Value.
func Float(v float64) Value { return Value{kind: KindReal, f: v} }

// Currency returns a currency Value.
func Currency(v float64) Value { return Value{kind: KindCurrency, f: v} }

// Text returns a text Value.
func Text(v string) Value { return Value{kind: KindText, s: v} }

// ValueOf converts a Go scalar into a Value. Integer kinds become integers,
// float32 and float64 become reals, strings become text. Anything else fails
// with ErrInvalidArgument.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case Value:
		if x.kind == KindInvalid {
			return Value{}, fmt.Errorf("%w: zero Value", ErrInvalidArgument)
		}
		return x, nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint8:
		return Int(int64(x)), nil
	case uint16:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	case string:
		return Text(x), nil
	default:
		return Value{}, fmt.Errorf("%w: items must be strings, integers or reals, got %T", ErrInvalidArgument, v)
	}
}

// Kind returns the union tag.
func (v Value) Kind() Kind { return v.kind }

// Int returns the integer member, or 0 for other kinds.
func (v Value) Int() int64 { return v.i }

// Float returns the real or currency member, or 0 for other kinds.
func (v Value) Float() float64 { return v.f }

// Text returns the text member, or "" for other kinds.
func (v Value) Text() string { return v.s }

// Any returns the set member as int64, float64, or string.
func (v Value) Any() any {
	switch v.kind {
	case KindInteger:
		return v.i
	case KindReal, KindCurrency:
		return v.f
	case KindText:
		return v.s
	default:
		return nil
	}
}

// String formats the value the way the bulk loader sends it, without COPY
// escaping.
func (v Value) String() string {
	switch v.kind {
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindReal, KindCurrency:
		return formatReal(v.f)
	case KindText:
		return v.s
	default:
		return ""
	}
}

// formatReal renders f like C's %g: six significant digits, trailing zeros
// dropped, exponent form for very large or small magnitudes.
func formatReal(f float64) string {
	return strconv.FormatFloat(f, 'g', 6, 64)
}

// copyField encodes v as one COPY text-format field.
func copyField(v Value) (string, error) {
	switch v.kind {
	case KindInteger, KindReal, KindCurrency:
		return v.String(), nil
	case KindText:
		return driver.EscapeCopyText(v.s), nil
	default:
		return "", fmt.Errorf("%w: zero Value", ErrInvalidArgument)
	}
}
