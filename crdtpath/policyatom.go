package crdtpath

import "github.com/cloudpeers/tlfs/tlfsid"

// ActorKind tags the variant carried by an Actor.
type ActorKind byte

const (
	ActorPeer ActorKind = iota
	ActorAnonymous
	ActorUnbound
)

// Actor is one of {peer(id32), anonymous, unbound(var_id)}. Unbound actors
// are variables unified during policy derivation, treated as unifiable
// across positions.
type Actor struct {
	Kind ActorKind
	Peer tlfsid.PeerID
	Var  uint32
}

func PeerActor(p tlfsid.PeerID) Actor { return Actor{Kind: ActorPeer, Peer: p} }

var AnonymousActor = Actor{Kind: ActorAnonymous}

func UnboundActor(varID uint32) Actor { return Actor{Kind: ActorUnbound, Var: varID} }

func (a Actor) Equal(o Actor) bool {
	if a.Kind != o.Kind {
		return false
	}
	switch a.Kind {
	case ActorPeer:
		return a.Peer == o.Peer
	case ActorUnbound:
		return a.Var == o.Var
	default:
		return true
	}
}

func (a Actor) String() string {
	switch a.Kind {
	case ActorPeer:
		return a.Peer.String()
	case ActorAnonymous:
		return "anonymous"
	case ActorUnbound:
		return "?var"
	default:
		return "<invalid actor>"
	}
}

// Perm is an access permission, ordered by strength: read < write <
// control < own.
type Perm byte

const (
	PermRead    Perm = 1
	PermWrite   Perm = 2
	PermControl Perm = 3
	PermOwn     Perm = 4
)

func (p Perm) String() string {
	switch p {
	case PermRead:
		return "read"
	case PermWrite:
		return "write"
	case PermControl:
		return "control"
	case PermOwn:
		return "own"
	default:
		return "unknown"
	}
}

// PolicyAtomKind tags the variant carried by a PolicyAtom.
type PolicyAtomKind byte

const (
	AtomSays PolicyAtomKind = iota
	AtomSaysIf
	AtomRevokes
)

// PolicyAtom is one of {says, says_if, revokes}. A PolicyAtom is always
// the terminal label of a signed Path; the signature
// on that path is what makes the grant or revocation authentic.
type PolicyAtom struct {
	Kind PolicyAtomKind

	// Says / SaysIf
	Actor  Actor
	Perm   Perm
	Target Path

	// SaysIf only: the condition can(CondActor, CondPerm, CondTarget).
	CondActor  Actor
	CondPerm   Perm
	CondTarget Path

	// Revokes only: the dot-hash of the path being revoked.
	Revoked DotHash
}

// Says builds an unconditional grant atom.
func Says(actor Actor, perm Perm, target Path) PolicyAtom {
	return PolicyAtom{Kind: AtomSays, Actor: actor, Perm: perm, Target: target}
}

// SaysIf builds a conditional grant atom.
func SaysIf(actor Actor, perm Perm, target Path, condActor Actor, condPerm Perm, condTarget Path) PolicyAtom {
	return PolicyAtom{
		Kind: AtomSaysIf, Actor: actor, Perm: perm, Target: target,
		CondActor: condActor, CondPerm: condPerm, CondTarget: condTarget,
	}
}

// Revokes builds a revocation atom naming the dot-hash of the path it
// revokes.
func Revokes(target DotHash) PolicyAtom {
	return PolicyAtom{Kind: AtomRevokes, Revoked: target}
}
