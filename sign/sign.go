// Package sign implements the signature layer: authoring and verifying
// the signature that terminates every path accepted into an ORSet store.
package sign

import (
	"crypto/ed25519"
	"crypto/rand"

	"github.com/cloudpeers/tlfs/crdtpath"
	"github.com/cloudpeers/tlfs/tlfserr"
	"github.com/cloudpeers/tlfs/tlfsid"
)

// Keypair holds a peer's Ed25519 signing key.
type Keypair struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// Generate creates a fresh Ed25519 keypair for a new replica or a new
// document's ephemeral creation key.
func Generate() (Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Keypair{}, tlfserr.Io{Reason: "generate ed25519 keypair", Err: err}
	}
	return Keypair{pub: pub, priv: priv}, nil
}

// PeerID returns the public half of the keypair as a PeerID.
func (k Keypair) PeerID() tlfsid.PeerID {
	var id tlfsid.PeerID
	copy(id[:], k.pub)
	return id
}

// DocID returns the public half of the keypair as a DocID, for the
// ephemeral keypair generated at document creation — its secret is
// discarded after issuing the root own grant.
func (k Keypair) DocID() tlfsid.DocID {
	var id tlfsid.DocID
	copy(id[:], k.pub)
	return id
}

// Sign computes sig = Sign_sk(encode(path_without_sig)) and returns a copy
// of path with Author and Sig populated. It does not mutate the input.
func (k Keypair) Sign(p crdtpath.Path) (crdtpath.Path, error) {
	q := p.Clone()
	q.Author = k.PeerID()
	q.Sig = nil
	payload, err := crdtpath.EncodeUnsigned(q)
	if err != nil {
		return crdtpath.Path{}, err
	}
	q.Sig = ed25519.Sign(k.priv, payload)
	return q, nil
}

// Verify checks that path's signature validates against its terminal
// peer_id label. tlfsid.PeerID is a fixed 32-byte array equal to
// ed25519.PublicKeySize, so Author is always well-formed by construction;
// Verify fails with tlfserr.BadSignature if the signature itself does not
// verify.
func Verify(p crdtpath.Path) error {
	if len(p.Sig) != ed25519.SignatureSize {
		return tlfserr.BadSignature{Reason: "signature has wrong length"}
	}
	payload, err := crdtpath.EncodeUnsigned(p.WithoutSig())
	if err != nil {
		return err
	}
	pub := ed25519.PublicKey(p.Author.Bytes())
	if !ed25519.Verify(pub, payload, p.Sig) {
		return tlfserr.BadSignature{Reason: "signature does not verify against terminal peer_id"}
	}
	return nil
}
