package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudpeers/tlfs/crdtpath"
	"github.com/cloudpeers/tlfs/tlfsid"
)

func peer(b byte) tlfsid.PeerID {
	var p tlfsid.PeerID
	p[0] = b
	return p
}

func docOf(root tlfsid.PeerID) tlfsid.DocID {
	return tlfsid.DocID(root)
}

func target(doc tlfsid.DocID, fields ...string) crdtpath.Path {
	p := crdtpath.Path{Doc: doc}
	for _, f := range fields {
		p.Labels = append(p.Labels, crdtpath.Field(f))
	}
	return p
}

func statementFrom(signer tlfsid.PeerID, atom crdtpath.PolicyAtom, salt byte) Statement {
	var h crdtpath.DotHash
	h[0] = salt
	return Statement{Hash: h, Signer: signer, Atom: atom}
}

func TestRootGrantAuthorizesWriter(t *testing.T) {
	root := peer(9)
	doc := docOf(root)
	writer := peer('X')

	stmts := []Statement{
		statementFrom(root, crdtpath.Says(crdtpath.PeerActor(writer), crdtpath.PermWrite, target(doc)), 1),
	}
	e := NewEngine(doc, stmts)

	assert.True(t, e.Can(crdtpath.PeerActor(writer), crdtpath.PermWrite, target(doc, "title")))
	assert.False(t, e.Can(crdtpath.PeerActor(peer('Y')), crdtpath.PermWrite, target(doc, "title")))
	assert.False(t, e.Can(crdtpath.PeerActor(writer), crdtpath.PermOwn, target(doc)))
}

func TestAnonymousGrantMatchesAnyActor(t *testing.T) {
	root := peer(9)
	doc := docOf(root)

	stmts := []Statement{
		statementFrom(root, crdtpath.Says(crdtpath.AnonymousActor, crdtpath.PermRead, target(doc)), 1),
	}
	e := NewEngine(doc, stmts)
	assert.True(t, e.Can(crdtpath.PeerActor(peer('Z')), crdtpath.PermRead, target(doc, "anything")))
}

func TestOwnershipDelegation(t *testing.T) {
	root := peer(0)
	doc := docOf(root)
	owner := peer('a')
	grantee := peer('c')

	stmts := []Statement{
		statementFrom(root, crdtpath.Says(crdtpath.PeerActor(owner), crdtpath.PermOwn, target(doc, "contacts")), 1),
		statementFrom(owner, crdtpath.Says(crdtpath.PeerActor(grantee), crdtpath.PermRead, target(doc, "contacts")), 2),
	}
	e := NewEngine(doc, stmts)

	assert.False(t, e.Can(crdtpath.PeerActor(grantee), crdtpath.PermOwn, target(doc, "contacts")))
	assert.True(t, e.Can(crdtpath.PeerActor(grantee), crdtpath.PermRead, target(doc, "contacts")))
}

func TestControlDelegationCannotGrantOwn(t *testing.T) {
	root := peer(0)
	doc := docOf(root)
	controller := peer('b')
	grantee := peer('c')

	stmts := []Statement{
		statementFrom(root, crdtpath.Says(crdtpath.PeerActor(controller), crdtpath.PermControl, target(doc)), 1),
		statementFrom(controller, crdtpath.Says(crdtpath.PeerActor(grantee), crdtpath.PermRead, target(doc, "contacts")), 2),
		statementFrom(controller, crdtpath.Says(crdtpath.PeerActor(grantee), crdtpath.PermOwn, target(doc, "contacts")), 3),
	}
	e := NewEngine(doc, stmts)

	assert.True(t, e.Can(crdtpath.PeerActor(grantee), crdtpath.PermRead, target(doc, "contacts")))
	assert.False(t, e.Can(crdtpath.PeerActor(grantee), crdtpath.PermOwn, target(doc, "contacts")),
		"control only delegates read/write, never own")
}

func TestConditionalGrantResolvesOnceConditionHolds(t *testing.T) {
	root := peer(9)
	doc := docOf(root)
	actor := peer('a')
	condTarget := target(doc, "contacts")

	conditional := statementFrom(root, crdtpath.SaysIf(
		crdtpath.PeerActor(actor), crdtpath.PermWrite, target(doc),
		crdtpath.PeerActor(actor), crdtpath.PermRead, condTarget,
	), 1)

	e := NewEngine(doc, []Statement{conditional})
	assert.False(t, e.Can(crdtpath.PeerActor(actor), crdtpath.PermWrite, target(doc)),
		"condition is not yet proved by any statement in scope")

	condGrant := statementFrom(root, crdtpath.Says(crdtpath.PeerActor(actor), crdtpath.PermRead, condTarget), 2)
	e2 := NewEngine(doc, []Statement{conditional, condGrant})
	assert.True(t, e2.Can(crdtpath.PeerActor(actor), crdtpath.PermWrite, target(doc)))
}

func TestRevocationByRoot(t *testing.T) {
	root := peer(0)
	doc := docOf(root)
	grantee := peer('a')

	grantStmt := statementFrom(root, crdtpath.Says(crdtpath.PeerActor(grantee), crdtpath.PermOwn, target(doc)), 1)
	revokeStmt := statementFrom(root, crdtpath.Revokes(grantStmt.Hash), 2)

	e := NewEngine(doc, []Statement{grantStmt})
	require.True(t, e.Can(crdtpath.PeerActor(grantee), crdtpath.PermOwn, target(doc)))

	e2 := NewEngine(doc, []Statement{grantStmt, revokeStmt})
	assert.False(t, e2.Can(crdtpath.PeerActor(grantee), crdtpath.PermOwn, target(doc)))
}

func TestRevocationTransitiveThroughDelegation(t *testing.T) {
	root := peer(0)
	doc := docOf(root)
	a := peer('a')
	b := peer('b')

	rootGrant := statementFrom(root, crdtpath.Says(crdtpath.PeerActor(a), crdtpath.PermOwn, target(doc)), 1)
	delegated := statementFrom(a, crdtpath.Says(crdtpath.PeerActor(b), crdtpath.PermOwn, target(doc)), 2)
	revoke := statementFrom(root, crdtpath.Revokes(delegated.Hash), 3)

	e := NewEngine(doc, []Statement{rootGrant, delegated})
	require.True(t, e.Can(crdtpath.PeerActor(b), crdtpath.PermOwn, target(doc)))

	e2 := NewEngine(doc, []Statement{rootGrant, delegated, revoke})
	assert.False(t, e2.Can(crdtpath.PeerActor(b), crdtpath.PermOwn, target(doc)))
	assert.True(t, e2.Can(crdtpath.PeerActor(a), crdtpath.PermOwn, target(doc)),
		"revoking b's delegated grant must not touch a's original grant")
}

func TestSelfRevocation(t *testing.T) {
	root := peer(0)
	doc := docOf(root)
	owner := peer('a')
	grantee := peer('c')

	ownerGrant := statementFrom(root, crdtpath.Says(crdtpath.PeerActor(owner), crdtpath.PermOwn, target(doc)), 1)
	readGrant := statementFrom(owner, crdtpath.Says(crdtpath.PeerActor(grantee), crdtpath.PermRead, target(doc, "contacts")), 2)
	selfRevoke := statementFrom(owner, crdtpath.Revokes(readGrant.Hash), 3)

	e := NewEngine(doc, []Statement{ownerGrant, readGrant, selfRevoke})
	assert.False(t, e.Can(crdtpath.PeerActor(grantee), crdtpath.PermRead, target(doc, "contacts")))
}
