package pe

import "errors"

// Error kinds returned by the parser. Every decode path fails with one of
// these, usually wrapped with context via fmt.Errorf and %w so that callers
// can still test the kind with errors.Is.
var (
	// ErrUnexpectedEOF means a read fell outside the file buffer.
	ErrUnexpectedEOF = errors.New("unexpected end of file")

	// ErrParseFailed means a structural invariant of the file was violated
	// (bad magic, unterminated string table, unknown metadata table, ...).
	ErrParseFailed = errors.New("parse failed")

	// ErrUnimplemented marks surfaces this parser deliberately does not
	// provide. Callers can probe for it instead of crashing.
	ErrUnimplemented = errors.New("unimplemented")
)
