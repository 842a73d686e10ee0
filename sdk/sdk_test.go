package sdk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudpeers/tlfs/causal"
	"github.com/cloudpeers/tlfs/crdtpath"
	"github.com/cloudpeers/tlfs/schema"
	"github.com/cloudpeers/tlfs/sign"
	"github.com/cloudpeers/tlfs/tlfsid"
)

func noteRegistry() *schema.Registry {
	root := schema.Struct(map[string]*schema.Node{
		"title": schema.MVReg(schema.TypeStr),
	})
	r := schema.NewRegistry()
	r.Register("note", schema.Version{Root: root})
	return r
}

func TestCreateDocGrantsOwnershipToCreator(t *testing.T) {
	s, err := CreateMemory(noteRegistry())
	require.NoError(t, err)

	doc, err := s.CreateDoc("note")
	require.NoError(t, err)
	require.Equal(t, StateOpen, doc.State())

	cur := doc.CreateCursor()
	assert.True(t, cur.Can(crdtpath.PeerActor(s.PeerID()), crdtpath.PermOwn))
}

func TestDocsFiltersBySchemaName(t *testing.T) {
	registry := noteRegistry()
	other := schema.Struct(map[string]*schema.Node{"flag": schema.EWFlag()})
	registry.Register("toggle", schema.Version{Root: other})

	s, err := CreateMemory(registry)
	require.NoError(t, err)

	noteDoc, err := s.CreateDoc("note")
	require.NoError(t, err)
	toggleDoc, err := s.CreateDoc("toggle")
	require.NoError(t, err)

	notes := s.Docs("note")
	require.Len(t, notes, 1)
	assert.Equal(t, noteDoc.ID(), notes[0])

	toggles := s.Docs("toggle")
	require.Len(t, toggles, 1)
	assert.Equal(t, toggleDoc.ID(), toggles[0])
}

func TestAddDocAdoptsGenesisAndAuthorization(t *testing.T) {
	registry := noteRegistry()
	alice, err := CreateMemory(registry)
	require.NoError(t, err)
	bob, err := CreateMemory(registry)
	require.NoError(t, err)

	aliceDoc, err := alice.CreateDoc("note")
	require.NoError(t, err)

	root := aliceDoc.CreateCursor()
	grant, err := root.SayCan(crdtpath.PeerActor(bob.PeerID()), crdtpath.PermWrite)
	require.NoError(t, err)
	require.NoError(t, aliceDoc.ApplyCausal(grant))

	genesis := aliceDoc.Unjoin(causal.NewContext())
	bobDoc, err := bob.AddDoc(aliceDoc.ID(), "note", genesis)
	require.NoError(t, err)

	bobRoot := bobDoc.CreateCursor()
	title, err := bobRoot.StructField("title")
	require.NoError(t, err)
	write, err := title.RegAssign(crdtpath.PrimStrV("hello"))
	require.NoError(t, err)
	assert.NoError(t, bobDoc.ApplyCausal(write))
}

func TestAddDocRejectsUnauthorizedGenesisWrite(t *testing.T) {
	registry := noteRegistry()
	alice, err := CreateMemory(registry)
	require.NoError(t, err)
	bob, err := CreateMemory(registry)
	require.NoError(t, err)

	aliceDoc, err := alice.CreateDoc("note")
	require.NoError(t, err)
	genesis := aliceDoc.Unjoin(causal.NewContext())

	// mallory holds no grant over alice's document at all; a write she
	// signs herself must not be accepted merely because it rides along in
	// a genesis delta.
	mallory, err := sign.Generate()
	require.NoError(t, err)
	unsigned := crdtpath.Path{
		Doc:    aliceDoc.ID(),
		Labels: []crdtpath.Label{crdtpath.Field("title"), crdtpath.MVRegLabel(tlfsid.NewNonce(), crdtpath.PrimStrV("mine now"))},
	}
	forged, err := mallory.Sign(unsigned)
	require.NoError(t, err)

	tampered := genesis.Join(causal.Causal{Store: []crdtpath.Path{forged}})
	_, err = bob.AddDoc(aliceDoc.ID(), "note", tampered)
	assert.Error(t, err)
}

func TestRemoveDocReturnsUnknownDocError(t *testing.T) {
	s, err := CreateMemory(noteRegistry())
	require.NoError(t, err)

	var missing tlfsid.DocID
	missing[0] = 1
	err = s.RemoveDoc(missing)
	assert.Error(t, err)
}

func TestRemoveDocClosesDocument(t *testing.T) {
	s, err := CreateMemory(noteRegistry())
	require.NoError(t, err)

	doc, err := s.CreateDoc("note")
	require.NoError(t, err)
	require.NoError(t, s.RemoveDoc(doc.ID()))
	assert.Equal(t, StateClosed, doc.State())
}
