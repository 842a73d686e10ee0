// Package tlfsabi maps tlfserr's typed error kinds onto the narrow
// integer convention a C-ABI or WASM binding needs: 0 for success, a
// positive byte count for a successful read, and a negative code for a
// failure whose message the caller retrieves separately. The mapping
// table itself has no cgo and no binding-specific dependency; it exists
// so a future FFI layer has a stable, already-tested surface to call
// into rather than inventing its own error numbering.
package tlfsabi

import (
	"errors"

	"github.com/cloudpeers/tlfs/tlfserr"
)

// Code is one of the negative error codes this package hands out, or the
// two reserved non-negative values Success and the byte-count range a
// binding uses for a successful read.
type Code int32

const (
	// Success is returned for an operation that produced no byte payload.
	Success Code = 0

	codeUnknown          Code = -1
	codeMalformedPath    Code = -2
	codeBadSignature     Code = -3
	codeUnknownAuthor    Code = -4
	codeSchemaViolation  Code = -5
	codeTypeMismatch     Code = -6
	codePermissionDenied Code = -7
	codeUnknownDoc       Code = -8
	codeUnknownSchema    Code = -9
	codeConflict         Code = -10
	codeIo               Code = -11
	codeInvariant        Code = -12
)

// codeNames mirrors the Code constants above for String's benefit; kept
// as a table rather than a switch so the two can't drift silently out of
// a matching order.
var codeNames = map[Code]string{
	Success:              "success",
	codeUnknown:           "unknown",
	codeMalformedPath:     "malformed_path",
	codeBadSignature:      "bad_signature",
	codeUnknownAuthor:     "unknown_author",
	codeSchemaViolation:   "schema_violation",
	codeTypeMismatch:      "type_mismatch",
	codePermissionDenied:  "permission_denied",
	codeUnknownDoc:        "unknown_doc",
	codeUnknownSchema:     "unknown_schema",
	codeConflict:          "conflict",
	codeIo:                "io",
	codeInvariant:         "invariant",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "unknown"
}

// FromError maps err to its ABI code. A nil error maps to Success; an
// error that isn't one of tlfserr's kinds (or doesn't wrap one via
// errors.As) maps to the generic codeUnknown rather than panicking, since
// a binding boundary must always have some integer to hand back.
func FromError(err error) Code {
	if err == nil {
		return Success
	}

	var malformedPath tlfserr.MalformedPath
	var badSignature tlfserr.BadSignature
	var unknownAuthor tlfserr.UnknownAuthor
	var schemaViolation tlfserr.SchemaViolation
	var typeMismatch tlfserr.TypeMismatch
	var permissionDenied tlfserr.PermissionDenied
	var unknownDoc tlfserr.UnknownDoc
	var unknownSchema tlfserr.UnknownSchema
	var conflict tlfserr.Conflict
	var ioErr tlfserr.Io
	var invariant tlfserr.Invariant

	switch {
	case errors.As(err, &malformedPath):
		return codeMalformedPath
	case errors.As(err, &badSignature):
		return codeBadSignature
	case errors.As(err, &unknownAuthor):
		return codeUnknownAuthor
	case errors.As(err, &schemaViolation):
		return codeSchemaViolation
	case errors.As(err, &typeMismatch):
		return codeTypeMismatch
	case errors.As(err, &permissionDenied):
		return codePermissionDenied
	case errors.As(err, &unknownDoc):
		return codeUnknownDoc
	case errors.As(err, &unknownSchema):
		return codeUnknownSchema
	case errors.As(err, &conflict):
		return codeConflict
	case errors.As(err, &ioErr):
		return codeIo
	case errors.As(err, &invariant):
		return codeInvariant
	default:
		return codeUnknown
	}
}

// Result packages what a binding call returns across the ABI boundary: a
// byte count on success, a negative Code and the error's message on
// failure. Message is empty for Success.
type Result struct {
	Code    Code
	Bytes   int
	Message string
}

// FromReadResult builds a Result for an operation that, on success,
// produced n bytes of output.
func FromReadResult(n int, err error) Result {
	if err != nil {
		return Result{Code: FromError(err), Message: err.Error()}
	}
	return Result{Code: Success, Bytes: n}
}

// FromVoidResult builds a Result for an operation with no byte payload,
// such as remove_doc or a cursor mutation consumed entirely by its side
// effect.
func FromVoidResult(err error) Result {
	if err != nil {
		return Result{Code: FromError(err), Message: err.Error()}
	}
	return Result{Code: Success}
}
