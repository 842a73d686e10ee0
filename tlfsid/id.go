// Package tlfsid defines the identifier types shared by every other
// package in the core: peer and document identifiers (32-byte Ed25519
// public keys) and the Dot that makes each authored atom unique.
//
// The textual form of an identifier is URL-safe, unpadded base64, the
// convention every external interface in this package follows.
package tlfsid

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

const idLen = ed25519.PublicKeySize // 32

var textEncoding = base64.RawURLEncoding

// PeerID is the 32-byte Ed25519 public key identifying a replica.
type PeerID [idLen]byte

// DocID is the 32-byte public key of a document's (discarded) ephemeral
// creation keypair.
type DocID [idLen]byte

// String renders the identifier as URL-safe, unpadded base64.
func (p PeerID) String() string { return textEncoding.EncodeToString(p[:]) }

// String renders the identifier as URL-safe, unpadded base64.
func (d DocID) String() string { return textEncoding.EncodeToString(d[:]) }

// Bytes returns the identifier's raw 32 bytes.
func (p PeerID) Bytes() []byte { return p[:] }

// Bytes returns the identifier's raw 32 bytes.
func (d DocID) Bytes() []byte { return d[:] }

// ParsePeerID decodes the URL-safe base64 textual form of a PeerID.
func ParsePeerID(s string) (PeerID, error) {
	b, err := textEncoding.DecodeString(s)
	if err != nil {
		return PeerID{}, fmt.Errorf("parse peer id: %w", err)
	}
	if len(b) != idLen {
		return PeerID{}, fmt.Errorf("parse peer id: expected %d bytes, got %d", idLen, len(b))
	}
	var p PeerID
	copy(p[:], b)
	return p, nil
}

// ParseDocID decodes the URL-safe base64 textual form of a DocID.
func ParseDocID(s string) (DocID, error) {
	b, err := textEncoding.DecodeString(s)
	if err != nil {
		return DocID{}, fmt.Errorf("parse doc id: %w", err)
	}
	if len(b) != idLen {
		return DocID{}, fmt.Errorf("parse doc id: expected %d bytes, got %d", idLen, len(b))
	}
	var d DocID
	copy(d[:], b)
	return d, nil
}

// PeerIDFromBytes wraps an existing 32-byte public key.
func PeerIDFromBytes(b []byte) (PeerID, error) {
	if len(b) != idLen {
		return PeerID{}, fmt.Errorf("peer id must be %d bytes, got %d", idLen, len(b))
	}
	var p PeerID
	copy(p[:], b)
	return p, nil
}

// DocIDFromBytes wraps an existing 32-byte public key.
func DocIDFromBytes(b []byte) (DocID, error) {
	if len(b) != idLen {
		return DocID{}, fmt.Errorf("doc id must be %d bytes, got %d", idLen, len(b))
	}
	var d DocID
	copy(d[:], b)
	return d, nil
}

// Nonce is a random value that, paired with a PeerID, makes an authored
// atom (a Dot) unique even when two peers author a path at the same
// prefix concurrently. It is a UUIDv7, so nonces minted by one peer also
// sort in authoring order.
type Nonce [16]byte

// NewNonce draws a fresh time-ordered UUIDv7 nonce.
func NewNonce() Nonce {
	id, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 only fails if the OS entropy source is broken,
		// which is unrecoverable for a security-sensitive engine.
		panic(fmt.Sprintf("tlfsid: failed to mint nonce: %v", err))
	}
	var n Nonce
	copy(n[:], id[:])
	return n
}

// Dot identifies a single authored atom: the peer that authored it and the
// nonce that distinguishes it from every other atom that peer has
// authored.
type Dot struct {
	Peer  PeerID
	Nonce Nonce
}

// String renders the dot as "<peer>/<nonce-hex>".
func (d Dot) String() string {
	return fmt.Sprintf("%s/%x", d.Peer, d.Nonce)
}
