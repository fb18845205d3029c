package pgclient

import (
	"math"
	"strconv"
	"strings"

	"github.com/lib/pq/oid"
)

// decodeFunc turns one text-format field into a Value.
type decodeFunc func(text string) Value

// KindOf returns the decoding rule for a column type OID. The rule is a
// column property: it is chosen once and applied to every row.
func KindOf(typeOID OID) Kind {
	switch oid.Oid(typeOID) {
	case oid.T_int2, oid.T_int4, oid.T_oid:
		return KindInteger
	case oid.T_float4, oid.T_float8:
		return KindReal
	case oid.T_money:
		return KindCurrency
	default:
		return KindText
	}
}

// Decode converts text according to the rule for typeOID. Numeric parsing
// never fails: text without a numeric prefix decodes to zero.
func Decode(typeOID OID, text string) Value {
	return decoderFor(KindOf(typeOID))(text)
}

func decoderFor(k Kind) decodeFunc {
	switch k {
	case KindInteger:
		return decodeInteger
	case KindReal:
		return decodeReal
	case KindCurrency:
		return decodeCurrency
	default:
		return Text
	}
}

func decodeInteger(text string) Value {
	return Int(parseIntPrefix(text))
}

func decodeReal(text string) Value {
	return Float(parseFloatPrefix(text))
}

// decodeCurrency strips the currency marker and grouping separators, e.g.
// "$1,234.50" or "-$12.00".
func decodeCurrency(text string) Value {
	s := strings.TrimLeft(text, cSpace)
	sign := ""
	if s != "" && (s[0] == '-' || s[0] == '+') {
		sign, s = s[:1], s[1:]
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	return Currency(parseFloatPrefix(sign + s))
}

// cSpace is the set of characters C's isspace accepts.
const cSpace = " \t\n\v\f\r"

// parseIntPrefix parses the longest base-10 integer prefix of s the way
// strtol does: leading space is skipped, out-of-range values saturate, and
// no digits at all yields 0.
func parseIntPrefix(s string) int64 {
	s = strings.TrimLeft(s, cSpace)
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}

	var n uint64
	overflow := false
	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		if overflow {
			continue
		}
		d := uint64(s[i] - '0')
		if n > (math.MaxUint64-d)/10 {
			overflow = true
			continue
		}
		n = n*10 + d
	}

	switch {
	case neg && (overflow || n > -math.MinInt64):
		return math.MinInt64
	case neg:
		return -int64(n)
	case overflow || n > math.MaxInt64:
		return math.MaxInt64
	default:
		return int64(n)
	}
}

// parseFloatPrefix parses the longest decimal floating point prefix of s the
// way strtod does. Overflow yields ±Inf, no number at all yields 0.
func parseFloatPrefix(s string) float64 {
	prefix := floatPrefix(strings.TrimLeft(s, cSpace))
	if prefix == "" {
		return 0
	}
	// A range error still carries the saturated value.
	f, _ := strconv.ParseFloat(prefix, 64)
	return f
}

// floatPrefix returns the longest prefix of s that is a valid decimal
// floating point literal, including inf/infinity/nan.
func floatPrefix(s string) string {
	i := 0
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		i++
	}

	rest := strings.ToLower(s[i:])
	for _, word := range []string{"infinity", "inf", "nan"} {
		if strings.HasPrefix(rest, word) {
			return s[:i+len(word)]
		}
	}

	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return ""
	}

	// The exponent only counts when at least one digit follows it.
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '-' || s[j] == '+') {
			j++
		}
		if j < len(s) && isDigit(s[j]) {
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			i = j
		}
	}
	return s[:i]
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
