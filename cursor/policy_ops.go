package cursor

import (
	"github.com/cloudpeers/tlfs/causal"
	"github.com/cloudpeers/tlfs/crdtpath"
)

// Condition names a can(actor, perm, target) fact, used as the guard of a
// conditional grant built by SayCanIf.
type Condition struct {
	Actor  crdtpath.Actor
	Perm   crdtpath.Perm
	Target crdtpath.Path
}

// target returns the path this cursor's location names as a policy
// target: the document rooted at the cursor's current prefix.
func (c *Cursor) target() crdtpath.Path {
	return crdtpath.Path{Doc: c.store.DocID(), Labels: append([]crdtpath.Label(nil), c.prefix...)}
}

// Can reports whether actor currently holds at least perm over this
// cursor's location, without attempting any write.
func (c *Cursor) Can(actor crdtpath.Actor, perm crdtpath.Perm) bool {
	return c.engine.Can(actor, perm, c.target())
}

// Cond packages can(actor, perm, <this cursor's location>) as a
// Condition, for passing to a different cursor's SayCanIf.
func (c *Cursor) Cond(actor crdtpath.Actor, perm crdtpath.Perm) Condition {
	return Condition{Actor: actor, Perm: perm, Target: c.target()}
}

// SayCan emits an unconditional says(actor, perm, <this location>) grant,
// signed and authorized like any other cursor write — the signer must
// already hold control or own over this location for the grant itself to
// be accepted once joined.
func (c *Cursor) SayCan(actor crdtpath.Actor, perm crdtpath.Perm) (causal.Causal, error) {
	atom := crdtpath.Says(actor, perm, c.target())
	return c.signPolicy(atom)
}

// SayCanIf emits a conditional grant: says(actor, perm, <this location>)
// if cond holds at join time.
func (c *Cursor) SayCanIf(actor crdtpath.Actor, perm crdtpath.Perm, cond Condition) (causal.Causal, error) {
	atom := crdtpath.SaysIf(actor, perm, c.target(), cond.Actor, cond.Perm, cond.Target)
	return c.signPolicy(atom)
}

func (c *Cursor) signPolicy(atom crdtpath.PolicyAtom) (causal.Causal, error) {
	p := crdtpath.Path{
		Doc:    c.store.DocID(),
		Labels: append(append([]crdtpath.Label(nil), c.prefix...), crdtpath.PolicyLabel(atom)),
	}
	return c.sign(p)
}
