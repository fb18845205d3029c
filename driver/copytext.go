package driver

import "strings"

// NullField is the COPY text-format marker for SQL NULL.
const NullField = `\N`

var copyEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\t", `\t`,
	"\n", `\n`,
	"\r", `\r`,
)

// EscapeCopyText escapes s for use as one field of a COPY text-format line.
func EscapeCopyText(s string) string {
	return copyEscaper.Replace(s)
}

// SplitCopyLine splits a COPY text-format line into its unescaped fields.
// The trailing newline, if any, is dropped. A nil entry is SQL NULL.
func SplitCopyLine(line string) []*string {
	line = strings.TrimSuffix(line, "\n")
	parts := strings.Split(line, "\t")
	fields := make([]*string, len(parts))
	for i, p := range parts {
		if p == NullField {
			continue
		}
		v := unescapeCopyText(p)
		fields[i] = &v
	}
	return fields
}

func unescapeCopyText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
