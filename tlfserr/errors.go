// Package tlfserr defines the typed error kinds used across the core.
//
// Every rejection path in the engine returns one of these concrete types
// rather than a formatted string, so callers can use errors.As to branch on
// the kind instead of matching messages.
package tlfserr

import "fmt"

// MalformedPath is returned by the path codec when a byte sequence is not a
// canonical encoding of a Path.
type MalformedPath struct {
	Reason string
}

func (e MalformedPath) Error() string {
	return fmt.Sprintf("malformed path: %s", e.Reason)
}

// BadSignature is returned when a path's signature does not verify against
// its terminal peer_id label.
type BadSignature struct {
	Reason string
}

func (e BadSignature) Error() string {
	return fmt.Sprintf("bad signature: %s", e.Reason)
}

// UnknownAuthor is returned when a path's terminal label does not carry a
// well-formed Ed25519 public key.
type UnknownAuthor struct {
	Reason string
}

func (e UnknownAuthor) Error() string {
	return fmt.Sprintf("unknown author: %s", e.Reason)
}

// SchemaViolation is returned when a path's label sequence does not match
// any path shape in the schema registered for its document.
type SchemaViolation struct {
	Reason string
}

func (e SchemaViolation) Error() string {
	return fmt.Sprintf("schema violation: %s", e.Reason)
}

// TypeMismatch is returned by cursor navigation when a label kind disagrees
// with the schema node it is being matched against.
type TypeMismatch struct {
	Expected string
	Got      string
}

func (e TypeMismatch) Error() string {
	return fmt.Sprintf("type mismatch: expected %s, got %s", e.Expected, e.Got)
}

// PermissionDenied is returned when the policy engine cannot derive
// authorization for a candidate path.
type PermissionDenied struct {
	Actor  string
	Target string
}

func (e PermissionDenied) Error() string {
	return fmt.Sprintf("permission denied: %s has no authority over %s", e.Actor, e.Target)
}

// UnknownDoc is returned when an operation names a document the Sdk has not
// created, opened, or added.
type UnknownDoc struct {
	DocID string
}

func (e UnknownDoc) Error() string {
	return fmt.Sprintf("unknown document: %s", e.DocID)
}

// UnknownSchema is returned when an operation names a schema that was not
// present in the loaded schema package.
type UnknownSchema struct {
	Name string
}

func (e UnknownSchema) Error() string {
	return fmt.Sprintf("unknown schema: %s", e.Name)
}

// Conflict is reserved for lens transform failures: a path that cannot be
// carried across a schema version boundary without loss the lens pipeline
// is not prepared to perform silently.
type Conflict struct {
	Reason string
}

func (e Conflict) Error() string {
	return fmt.Sprintf("conflict: %s", e.Reason)
}

// Io wraps a failure from a storage or transport collaborator.
type Io struct {
	Reason string
	Err    error
}

func (e Io) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("io: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("io: %s", e.Reason)
}

func (e Io) Unwrap() error { return e.Err }

// Invariant is returned when an internal invariant that should be
// impossible to violate was violated. Callers should treat this as fatal;
// it indicates a bug in the engine, not bad input.
type Invariant struct {
	Reason string
}

func (e Invariant) Error() string {
	return fmt.Sprintf("invariant violated: %s", e.Reason)
}
