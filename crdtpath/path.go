package crdtpath

import (
	"strings"

	"github.com/cloudpeers/tlfs/tlfsid"
)

// Path is an ordered label sequence rooted at a document and terminated by
// an authored, signed leaf:
//
//	path := doc_id · label* · (ewflag | mvreg | policy) · peer_id · signature
//
// Sig is nil for a path under construction (before Sign) or for a path
// being hashed (DotHash excludes the signature by definition).
type Path struct {
	Doc    tlfsid.DocID
	Labels []Label
	Author tlfsid.PeerID
	Sig    []byte
}

// Terminal returns the path's last label, which must be one of
// ewflag/mvreg/policy for any path accepted into a store. Returns the zero
// Label and false for an empty label sequence.
func (p Path) Terminal() (Label, bool) {
	if len(p.Labels) == 0 {
		return Label{}, false
	}
	return p.Labels[len(p.Labels)-1], true
}

// Prefix returns the non-terminal navigation labels, i.e. everything
// before the terminal ewflag/mvreg/policy label.
func (p Path) Prefix() []Label {
	if len(p.Labels) == 0 {
		return nil
	}
	return p.Labels[:len(p.Labels)-1]
}

// WithoutSig returns a copy of the path with its signature cleared, which
// is the form both DotHash and the signing payload are computed over.
func (p Path) WithoutSig() Path {
	q := p
	q.Labels = append([]Label(nil), p.Labels...)
	q.Sig = nil
	return q
}

// Clone deep-copies the path's label slice and signature so mutating the
// copy never aliases the original (the ORSet store owns all path bytes;
// callers that build on top, such as cursors, must not share backing
// arrays with stored paths).
func (p Path) Clone() Path {
	q := p
	q.Labels = append([]Label(nil), p.Labels...)
	if p.Sig != nil {
		q.Sig = append([]byte(nil), p.Sig...)
	}
	return q
}

// HasPrefix reports whether prefix is structurally a prefix of p's label
// sequence. Only labels are compared; the document is not checked (Covers
// adds that check).
func (p Path) HasPrefix(prefix []Label) bool {
	if len(prefix) > len(p.Labels) {
		return false
	}
	for i, l := range prefix {
		if !p.Labels[i].Equal(l) {
			return false
		}
	}
	return true
}

// Covers reports whether p is an ancestor of (or equal to) other: every
// label of p's sequence is a prefix match of other's sequence and both
// share the same document. This is T' ⊒ T in the ownership/control
// delegation rules.
func (p Path) Covers(other Path) bool {
	if p.Doc != other.Doc {
		return false
	}
	return other.HasPrefix(p.Labels)
}

// Append returns a new path with one additional navigation label,
// inheriting the document but clearing author/signature (the result is an
// unsigned path under construction).
func (p Path) Append(l Label) Path {
	q := Path{Doc: p.Doc, Labels: append(append([]Label(nil), p.Labels...), l)}
	return q
}

// String renders the path's document and label sequence for diagnostics
// (error messages, logging); it is not a wire format.
func (p Path) String() string {
	var b strings.Builder
	b.WriteString(p.Doc.String())
	for _, l := range p.Labels {
		b.WriteString(l.String())
	}
	return b.String()
}
