package databasesql

import (
	"encoding/hex"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq/oid"
)

// serverText renders a value lib/pq has already decoded back into the text
// the server sent for a column of type typeOID. lib/pq decodes bool, bytea,
// integer, float, date and time columns eagerly; everything else arrives as
// the raw bytes and passes through unchanged.
func serverText(typeOID uint32, v any) []byte {
	switch v := v.(type) {
	case nil:
		return nil
	case []byte:
		if oid.Oid(typeOID) == oid.T_bytea {
			out := make([]byte, 2+hex.EncodedLen(len(v)))
			copy(out, `\x`)
			hex.Encode(out[2:], v)
			return out
		}
		return append([]byte{}, v...)
	case string:
		return []byte(v)
	case bool:
		if v {
			return []byte("t")
		}
		return []byte("f")
	case int64:
		return strconv.AppendInt(nil, v, 10)
	case float64:
		return []byte(formatFloat(v, oid.Oid(typeOID)))
	case time.Time:
		return []byte(formatTime(v, oid.Oid(typeOID)))
	default:
		return nil
	}
}

// formatFloat prints f the way float4out/float8out do with the default
// extra_float_digits: shortest round-trip digits, positional notation for
// decimal exponents in [-4, 6) for float4 and [-4, 15) for float8.
func formatFloat(f float64, typ oid.Oid) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}

	bits, maxExp := 64, 15
	if typ == oid.T_float4 {
		bits, maxExp = 32, 6
	}
	e := strconv.FormatFloat(f, 'e', -1, bits)
	exp, _ := strconv.Atoi(e[strings.LastIndexByte(e, 'e')+1:])
	if exp < -4 || exp >= maxExp {
		return e
	}
	return strconv.FormatFloat(f, 'f', -1, bits)
}

// formatTime prints t in the server's ISO DateStyle for the column type.
func formatTime(t time.Time, typ oid.Oid) string {
	switch typ {
	case oid.T_date:
		return withEra(t, formatDate(t))
	case oid.T_time:
		return formatClock(t)
	case oid.T_timetz:
		return formatClock(t) + formatOffset(t)
	case oid.T_timestamp:
		return withEra(t, formatDate(t)+" "+formatClock(t))
	default:
		return withEra(t, formatDate(t)+" "+formatClock(t)+formatOffset(t))
	}
}

func formatDate(t time.Time) string {
	y := t.Year()
	if y <= 0 {
		y = 1 - y
	}
	return pad(y, 4) + "-" + pad(int(t.Month()), 2) + "-" + pad(t.Day(), 2)
}

// withEra appends the BC marker after the full value, as the server does.
func withEra(t time.Time, s string) string {
	if t.Year() > 0 {
		return s
	}
	return s + " BC"
}

func formatClock(t time.Time) string {
	s := pad(t.Hour(), 2) + ":" + pad(t.Minute(), 2) + ":" + pad(t.Second(), 2)
	if us := t.Nanosecond() / 1000; us > 0 {
		s += strings.TrimRight("."+pad(us, 6), "0")
	}
	return s
}

// formatOffset prints a UTC offset as +HH, +HH:MM or +HH:MM:SS.
func formatOffset(t time.Time) string {
	_, off := t.Zone()
	sign := "+"
	if off < 0 {
		sign, off = "-", -off
	}
	s := sign + pad(off/3600, 2)
	if rest := off % 3600; rest != 0 {
		s += ":" + pad(rest/60, 2)
		if sec := rest % 60; sec != 0 {
			s += ":" + pad(sec, 2)
		}
	}
	return s
}

func pad(n, width int) string {
	s := strconv.Itoa(n)
	if len(s) < width {
		s = strings.Repeat("0", width-len(s)) + s
	}
	return s
}
