package driver

import (
	"strconv"
	"strings"
	"unicode"
)

// Status is the completion status of an executed statement.
type Status int

// Statuses mirror the server's result classification.
const (
	StatusEmptyQuery Status = iota
	StatusCommandOK
	StatusTuplesOK
	StatusCopyOut
	StatusCopyIn
	StatusBadResponse
	StatusNonfatalError
	StatusFatalError
)

var statusNames = map[Status]string{
	StatusEmptyQuery:    "empty_query",
	StatusCommandOK:     "command_ok",
	StatusTuplesOK:      "tuples_ok",
	StatusCopyOut:       "copy_out",
	StatusCopyIn:        "copy_in",
	StatusBadResponse:   "bad_response",
	StatusNonfatalError: "nonfatal_error",
	StatusFatalError:    "fatal_error",
}

// String returns the status name.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "status(" + strconv.Itoa(int(s)) + ")"
}

// IsError reports whether the status is a server-reported failure.
func (s Status) IsError() bool {
	return s == StatusBadResponse || s == StatusNonfatalError || s == StatusFatalError
}

// FieldDescription describes one result column.
type FieldDescription struct {
	// Name is the column name as reported by the server.
	Name string

	// TypeOID is the column's type OID from pg_type.
	TypeOID uint32
}

// Result is the outcome of a statement executed through Session.Exec.
type Result struct {
	// Status classifies the result.
	Status Status

	// Fields describes the result columns for StatusTuplesOK.
	Fields []FieldDescription

	// Rows holds the text-format values. A nil entry is SQL NULL.
	Rows [][][]byte

	// CommandTag is the server's completion tag, e.g. "INSERT 16401 1".
	CommandTag string

	// InsertOID is the OID of a row inserted by a single-row INSERT into a
	// table with OIDs, or 0.
	InsertOID uint32

	// Error carries the server message for error statuses.
	Error *ServerError
}

// ServerError is a failure reported by the server.
type ServerError struct {
	Severity string
	Code     string
	Message  string
	Detail   string
}

// Error implements the error interface
func (e *ServerError) Error() string {
	if e.Severity == "" {
		return e.Message
	}
	return e.Severity + ": " + e.Message
}

// SeverityStatus maps a server severity to a result status.
func SeverityStatus(severity string) Status {
	switch severity {
	case "ERROR", "FATAL", "PANIC":
		return StatusFatalError
	case "":
		return StatusBadResponse
	default:
		return StatusNonfatalError
	}
}

// InsertOIDFromTag extracts the OID from an "INSERT oid rows" command tag.
func InsertOIDFromTag(tag string) uint32 {
	const prefix = "INSERT "
	if len(tag) <= len(prefix) || tag[:len(prefix)] != prefix {
		return 0
	}
	rest := tag[len(prefix):]
	end := 0
	for end < len(rest) && rest[end] != ' ' {
		end++
	}
	oid, err := strconv.ParseUint(rest[:end], 10, 32)
	if err != nil {
		return 0
	}
	return uint32(oid)
}

// CopyDirection reports whether sql is a COPY ... FROM STDIN (StatusCopyIn)
// or COPY ... TO STDOUT (StatusCopyOut) statement. Such statements switch the
// wire protocol into copy mode and cannot go through a plain query.
func CopyDirection(sql string) (Status, bool) {
	lower := strings.ToLower(strings.TrimSpace(sql))
	if !strings.HasPrefix(lower, "copy") || len(lower) == 4 {
		return 0, false
	}
	if c := rune(lower[4]); !unicode.IsSpace(c) && c != '(' {
		return 0, false
	}

	words := strings.FieldsFunc(lower[4:], func(r rune) bool {
		return unicode.IsSpace(r) || r == '(' || r == ')' || r == ';'
	})
	for i := 0; i+1 < len(words); i++ {
		switch {
		case words[i] == "from" && words[i+1] == "stdin":
			return StatusCopyIn, true
		case words[i] == "to" && words[i+1] == "stdout":
			return StatusCopyOut, true
		}
	}
	return 0, false
}
