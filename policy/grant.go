package policy

import "github.com/cloudpeers/tlfs/crdtpath"

// grant is a candidate or proven permission: actor may exercise perm over
// target (or any path target covers).
type grant struct {
	Actor  crdtpath.Actor
	Perm   crdtpath.Perm
	Target crdtpath.Path
}

// bind rebinds g's actor to whatever actor satisfied a condition, per the
// unbound-variable unification the conditional-resolution rule calls for.
// Unconditionally overwrites the actor, matching the only place it is
// called: resolving a says_if whose condition just proved.
func (g grant) bind(resolvedBy crdtpath.Actor) grant {
	return grant{Actor: resolvedBy, Perm: g.Perm, Target: g.Target}
}

// actorMatches reports whether a query naming queryActor is satisfied by a
// grant naming grantActor: exact match, a grant to anonymous (matches
// anyone), or a query carrying an unbound variable (matches anything, used
// while resolving conditions before the variable is unified).
func actorMatches(grantActor, queryActor crdtpath.Actor) bool {
	if grantActor.Equal(queryActor) {
		return true
	}
	if queryActor.Kind == crdtpath.ActorUnbound {
		return true
	}
	if grantActor.Kind == crdtpath.ActorAnonymous {
		return true
	}
	return false
}

// implies reports whether g (an established grant) is strong enough to
// satisfy query o: same actor (or wildcard match), at least as much
// permission, over a target that covers o's target.
func (g grant) implies(o grant) bool {
	if !actorMatches(g.Actor, o.Actor) {
		return false
	}
	if o.Perm > g.Perm {
		return false
	}
	return g.Target.Covers(o.Target)
}

// sameTarget reports whether g and o name exactly the same target path
// (mutual covers implies equal label sequences).
func (g grant) sameTarget(o grant) bool {
	return g.Target.Covers(o.Target) && o.Target.Covers(g.Target)
}

// strictAncestorOf reports whether g's target is a proper ancestor of o's
// target (covers it but is not equal to it).
func (g grant) strictAncestorOf(o grant) bool {
	return g.Target.Covers(o.Target) && !g.sameTarget(o)
}

func controllable(p crdtpath.Perm) bool {
	return p == crdtpath.PermRead || p == crdtpath.PermWrite
}
