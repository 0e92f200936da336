package errcode

// Code is a stable, report-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK            Code = "ok"
	Transport     Code = "transport_error"  // bus write/read failed or short transfer
	Parse         Code = "parse_error"      // malformed JSON
	Validation    Code = "validation_error" // payload empty or otherwise unusable
	Oversize      Code = "oversize"         // payload exceeds a size bound
	UnknownTarget Code = "unknown_target"   // named position not in the table
	Busy          Code = "busy"
	CommandFailed Code = "command_failed" // downstream executor rejected a command
	Timeout       Code = "timeout"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}
