// Package policy implements the authorization engine: a saturation
// (fixpoint) derivation over says/says_if/revokes statements that decides
// can(actor, perm, target) for every candidate path a cursor proposes.
//
// The rule set is ported from a crepe (Datalog-on-Rust) engine in the
// source material's acl crate; this package evaluates the same five
// rules — conditional resolution, root authority, ownership delegation,
// control delegation, revocation — with an explicit work-list instead of
// a generated Datalog runtime.
package policy

import (
	"sync"

	logging "github.com/ipfs/go-log/v2"

	"github.com/cloudpeers/tlfs/crdtpath"
	"github.com/cloudpeers/tlfs/tlfserr"
	"github.com/cloudpeers/tlfs/tlfsid"
)

var logger = logging.Logger("tlfs/policy")

// Statement is one policy atom together with the identity that signed the
// path carrying it. The signer is load-bearing for root authority and
// ownership/control delegation, independent of the grantee named inside
// the atom itself.
type Statement struct {
	Hash   crdtpath.DotHash
	Signer tlfsid.PeerID
	Atom   crdtpath.PolicyAtom
}

// FromPath extracts a Statement from a signed path whose terminal label is
// a policy atom. Callers are expected to have already verified p's
// signature; FromPath does not re-verify it.
func FromPath(p crdtpath.Path) (Statement, error) {
	terminal, ok := p.Terminal()
	if !ok || terminal.Kind != crdtpath.LabelPolicy || terminal.Policy == nil {
		return Statement{}, tlfserr.SchemaViolation{Reason: "path terminal is not a policy atom"}
	}
	h, err := crdtpath.Hash(p)
	if err != nil {
		return Statement{}, err
	}
	return Statement{Hash: h, Signer: p.Author, Atom: *terminal.Policy}, nil
}

// authorizedFact is one proven grant, tagged with the statement that
// produced it so revocation can find and remove it.
type authorizedFact struct {
	hash  crdtpath.DotHash
	grant grant
}

// Engine derives authorization from a snapshot of policy statements for
// one document, keeping a per-document authorization cache: Can/Authorize
// re-run the saturation pass only after Invalidate or AddStatement marks
// the cache dirty, matching the source material's cached-and-invalidated
// engine rather than resaturating on every query.
type Engine struct {
	doc tlfsid.DocID

	mu         sync.Mutex
	statements []Statement
	dirty      bool

	authorized []authorizedFact
	revoked    map[crdtpath.DotHash]struct{}
}

// NewEngine derives the full authorized set for doc from statements and
// returns a ready-to-query Engine.
func NewEngine(doc tlfsid.DocID, statements []Statement) *Engine {
	e := &Engine{doc: doc, statements: statements}
	e.saturate()
	return e
}

// AddStatement appends a freshly-joined policy statement and invalidates
// the cache. Callers (sdk.Doc) call this for every joined path whose
// terminal label is a policy atom.
func (e *Engine) AddStatement(s Statement) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statements = append(e.statements, s)
	e.dirty = true
}

// Invalidate marks the cached authorized set stale without adding a
// statement, for callers that already hold the up-to-date statement list
// and just need the next query to resaturate against it.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dirty = true
}

func (e *Engine) ensureSaturated() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dirty {
		e.saturate()
		e.dirty = false
	}
}

// Can reports whether actor currently holds at least perm over target,
// per the engine's monotone, deterministic derivation.
func (e *Engine) Can(actor crdtpath.Actor, perm crdtpath.Perm, target crdtpath.Path) bool {
	e.ensureSaturated()
	q := grant{Actor: actor, Perm: perm, Target: target}
	for _, f := range e.authorized {
		if _, revoked := e.revoked[f.hash]; revoked {
			continue
		}
		if f.grant.implies(q) {
			return true
		}
	}
	return false
}

// Authorize is Can expressed as an error-returning gate, for the cursor
// and ingress pipelines.
func (e *Engine) Authorize(actor crdtpath.Actor, perm crdtpath.Perm, target crdtpath.Path) error {
	if e.Can(actor, perm, target) {
		return nil
	}
	logger.Warnw("authorization denied", "actor", actor.String(), "perm", perm.String())
	return tlfserr.PermissionDenied{Actor: actor.String(), Target: target.String()}
}

func (e *Engine) isRoot(signer tlfsid.PeerID) bool {
	return [32]byte(signer) == [32]byte(e.doc)
}

// saturate runs the five derivation rules to a fixpoint. Progress is
// monotone (authorized only grows) and bounded by the number of
// statements, so a round that adds nothing new terminates the loop,
// avoiding cycles without needing to track individual
// (statement, goal) pairs explicitly.
func (e *Engine) saturate() {
	type derivedCan struct {
		hash   crdtpath.DotHash
		signer tlfsid.PeerID
		grant  grant
	}
	type derivedCanIf struct {
		hash   crdtpath.DotHash
		signer tlfsid.PeerID
		grant  grant
		cond   grant
	}

	var derived []derivedCan
	var conditional []derivedCanIf
	type revokeClaim struct {
		hash   crdtpath.DotHash
		signer tlfsid.PeerID
		target crdtpath.DotHash
	}
	var revokes []revokeClaim

	for _, s := range e.statements {
		switch s.Atom.Kind {
		case crdtpath.AtomSays:
			derived = append(derived, derivedCan{
				hash:   s.Hash,
				signer: s.Signer,
				grant:  grant{Actor: s.Atom.Actor, Perm: s.Atom.Perm, Target: s.Atom.Target},
			})
		case crdtpath.AtomSaysIf:
			conditional = append(conditional, derivedCanIf{
				hash:   s.Hash,
				signer: s.Signer,
				grant:  grant{Actor: s.Atom.Actor, Perm: s.Atom.Perm, Target: s.Atom.Target},
				cond:   grant{Actor: s.Atom.CondActor, Perm: s.Atom.CondPerm, Target: s.Atom.CondTarget},
			})
		case crdtpath.AtomRevokes:
			revokes = append(revokes, revokeClaim{hash: s.Hash, signer: s.Signer, target: s.Atom.Revoked})
		}
	}

	var authorized []authorizedFact
	seen := make(map[string]struct{})
	add := func(hash crdtpath.DotHash, g grant) bool {
		key := factKey(hash, g)
		if _, ok := seen[key]; ok {
			return false
		}
		seen[key] = struct{}{}
		authorized = append(authorized, authorizedFact{hash: hash, grant: g})
		return true
	}

	// authorizeCandidate applies rules 2-4 to one (hash, signer, grant)
	// candidate, whether it came straight from a says or from a says_if
	// whose condition has just been proved.
	authorizeCandidate := func(hash crdtpath.DotHash, signer tlfsid.PeerID, g grant) bool {
		progressed := false

		// rule 2: root authority.
		if e.isRoot(signer) && g.Target.Doc == e.doc {
			if add(hash, g) {
				progressed = true
			}
		}
		signerActor := crdtpath.PeerActor(signer)
		for _, auth := range authorized {
			// rule 3: ownership delegation.
			if auth.grant.Perm == crdtpath.PermOwn &&
				auth.grant.Actor.Equal(signerActor) &&
				auth.grant.Target.Covers(g.Target) {
				if add(hash, g) {
					progressed = true
				}
			}
			// rule 4: control delegation.
			if auth.grant.Perm == crdtpath.PermControl &&
				controllable(g.Perm) &&
				auth.grant.Actor.Equal(signerActor) &&
				auth.grant.Target.Covers(g.Target) {
				if add(hash, g) {
					progressed = true
				}
			}
		}
		return progressed
	}

	maxRounds := len(e.statements)*2 + 4
	for round := 0; round < maxRounds; round++ {
		progressed := false

		for _, d := range derived {
			if authorizeCandidate(d.hash, d.signer, d.grant) {
				progressed = true
			}
		}

		// rule 1: conditional resolution, then rules 2-4 composed over the
		// now-bound grant — a delegated says_if composes exactly like a
		// delegated says once its condition is proved.
		for _, c := range conditional {
			for _, auth := range authorized {
				if !auth.grant.implies(c.cond) {
					continue
				}
				bound := c.grant.bind(auth.grant.Actor)
				if authorizeCandidate(c.hash, c.signer, bound) {
					progressed = true
				}
			}
		}

		if !progressed {
			break
		}
	}

	// rule 5: revocation.
	revoked := make(map[crdtpath.DotHash]struct{})
	for _, r := range revokes {
		for _, victim := range authorized {
			if victim.hash != r.target {
				continue
			}
			if e.revokeApplies(r, victim, authorized) {
				revoked[victim.hash] = struct{}{}
			}
		}
	}

	e.authorized = authorized
	e.revoked = revoked
}

// revokeApplies implements the revocation rule's four sub-cases, read off
// a single combined condition mirroring the source material's revocation
// clause:
// the revoker must already hold sufficient standing (root, or control on
// the victim's subject), and that standing must dominate the victim's
// grant either on a strict ancestor or on the exact same target.
func (e *Engine) revokeApplies(r struct {
	hash   crdtpath.DotHash
	signer tlfsid.PeerID
	target crdtpath.DotHash
}, victim authorizedFact, authorized []authorizedFact) bool {
	revoker := crdtpath.PeerActor(r.signer)
	isRoot := e.isRoot(r.signer)

	var victimAuthor tlfsid.PeerID
	for _, s := range e.statements {
		if s.Hash == victim.hash {
			victimAuthor = s.Signer
			break
		}
	}

	for _, auth := range authorized {
		standing := auth.grant.Actor.Equal(revoker) && auth.grant.Perm >= crdtpath.PermControl
		if !standing && !isRoot {
			continue
		}

		ancestorCase := auth.grant.strictAncestorOf(victim.grant) && auth.grant.Perm >= victim.grant.Perm
		sameTargetCase := auth.grant.sameTarget(victim.grant) &&
			(auth.grant.Perm > victim.grant.Perm || r.signer == victimAuthor || isRoot)

		if ancestorCase || sameTargetCase {
			return true
		}
	}
	return isRoot
}

func factKey(hash crdtpath.DotHash, g grant) string {
	enc, err := crdtpath.EncodePrefix(g.Target.Doc, g.Target.Labels)
	if err != nil {
		enc = nil
	}
	return string(hash[:]) + "|" + g.Actor.String() + "|" + g.Perm.String() + "|" + string(enc)
}
