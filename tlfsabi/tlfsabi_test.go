package tlfsabi

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cloudpeers/tlfs/tlfserr"
)

func TestFromErrorMapsEveryKnownKind(t *testing.T) {
	cases := []struct {
		err  error
		code Code
	}{
		{nil, Success},
		{tlfserr.MalformedPath{Reason: "x"}, codeMalformedPath},
		{tlfserr.BadSignature{Reason: "x"}, codeBadSignature},
		{tlfserr.UnknownAuthor{Reason: "x"}, codeUnknownAuthor},
		{tlfserr.SchemaViolation{Reason: "x"}, codeSchemaViolation},
		{tlfserr.TypeMismatch{Expected: "a", Got: "b"}, codeTypeMismatch},
		{tlfserr.PermissionDenied{Actor: "a", Target: "b"}, codePermissionDenied},
		{tlfserr.UnknownDoc{DocID: "x"}, codeUnknownDoc},
		{tlfserr.UnknownSchema{Name: "x"}, codeUnknownSchema},
		{tlfserr.Conflict{Reason: "x"}, codeConflict},
		{tlfserr.Io{Reason: "x"}, codeIo},
		{tlfserr.Invariant{Reason: "x"}, codeInvariant},
		{fmt.Errorf("something else"), codeUnknown},
	}
	for _, c := range cases {
		assert.Equal(t, c.code, FromError(c.err))
	}
}

func TestFromErrorUnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("ingress: %w", tlfserr.PermissionDenied{Actor: "a", Target: "b"})
	assert.Equal(t, codePermissionDenied, FromError(wrapped))
}

func TestFromReadResultCarriesByteCountOnSuccess(t *testing.T) {
	r := FromReadResult(42, nil)
	assert.Equal(t, Success, r.Code)
	assert.Equal(t, 42, r.Bytes)
	assert.Empty(t, r.Message)
}

func TestFromReadResultCarriesMessageOnFailure(t *testing.T) {
	r := FromReadResult(0, tlfserr.UnknownDoc{DocID: "abc"})
	assert.Equal(t, codeUnknownDoc, r.Code)
	assert.Equal(t, 0, r.Bytes)
	assert.NotEmpty(t, r.Message)
}

func TestFromVoidResult(t *testing.T) {
	assert.Equal(t, Result{Code: Success}, FromVoidResult(nil))
	assert.Equal(t, codeConflict, FromVoidResult(tlfserr.Conflict{Reason: "x"}).Code)
}

func TestCodeStringFallsBackToUnknown(t *testing.T) {
	assert.Equal(t, "unknown", Code(999).String())
	assert.Equal(t, "success", Success.String())
}
