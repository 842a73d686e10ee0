package orstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudpeers/tlfs/causal"
	"github.com/cloudpeers/tlfs/crdtpath"
	"github.com/cloudpeers/tlfs/tlfsid"
)

func testDoc() tlfsid.DocID {
	var d tlfsid.DocID
	d[0] = 0xAB
	return d
}

func testAuthor() tlfsid.PeerID {
	var p tlfsid.PeerID
	p[0] = 0xCD
	return p
}

func flagPath(doc tlfsid.DocID, field string) crdtpath.Path {
	return crdtpath.Path{
		Doc:    doc,
		Labels: []crdtpath.Label{crdtpath.Field(field), crdtpath.EWFlagLabel(tlfsid.NewNonce())},
		Author: testAuthor(),
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	doc := testDoc()
	s := New(doc)
	p := flagPath(doc, "done")
	c := causal.Causal{Store: []crdtpath.Path{p}}

	require.NoError(t, s.Join(c))
	require.NoError(t, s.Join(c))

	active, _ := s.Len()
	assert.Equal(t, 1, active)
}

func TestJoinIsCommutative(t *testing.T) {
	doc := testDoc()
	p1 := flagPath(doc, "a")
	p2 := flagPath(doc, "b")
	h1, err := crdtpath.Hash(p1)
	require.NoError(t, err)

	order1 := New(doc)
	require.NoError(t, order1.Join(causal.Causal{Store: []crdtpath.Path{p1}}))
	require.NoError(t, order1.Join(causal.Causal{Store: []crdtpath.Path{p2}, Expired: []crdtpath.DotHash{h1}}))

	order2 := New(doc)
	require.NoError(t, order2.Join(causal.Causal{Store: []crdtpath.Path{p2}, Expired: []crdtpath.DotHash{h1}}))
	require.NoError(t, order2.Join(causal.Causal{Store: []crdtpath.Path{p1}}))

	assert.False(t, order1.Exists(h1))
	assert.False(t, order2.Exists(h1))
	assert.Equal(t, len(order1.All()), len(order2.All()))
}

func TestJoinIsAssociative(t *testing.T) {
	doc := testDoc()
	p1 := flagPath(doc, "a")
	p2 := flagPath(doc, "b")
	p3 := flagPath(doc, "c")

	left := New(doc)
	require.NoError(t, left.Join(causal.Causal{Store: []crdtpath.Path{p1}}.Join(causal.Causal{Store: []crdtpath.Path{p2}})))
	require.NoError(t, left.Join(causal.Causal{Store: []crdtpath.Path{p3}}))

	right := New(doc)
	require.NoError(t, right.Join(causal.Causal{Store: []crdtpath.Path{p1}}))
	require.NoError(t, right.Join(causal.Causal{Store: []crdtpath.Path{p2}}.Join(causal.Causal{Store: []crdtpath.Path{p3}})))

	assert.Equal(t, len(left.All()), len(right.All()))
}

func TestTombstoneAbsorbsConcurrentAdd(t *testing.T) {
	doc := testDoc()
	p := flagPath(doc, "x")
	h, err := crdtpath.Hash(p)
	require.NoError(t, err)

	s := New(doc)
	require.NoError(t, s.Join(causal.Causal{Store: []crdtpath.Path{p}, Expired: []crdtpath.DotHash{h}}))

	assert.False(t, s.Exists(h))
	assert.True(t, s.IsExpired(h))

	require.NoError(t, s.Join(causal.Causal{Store: []crdtpath.Path{p}}))
	assert.False(t, s.Exists(h), "a late arriving add must not resurrect a tombstoned path")
}

func TestPrefixScan(t *testing.T) {
	doc := testDoc()
	s := New(doc)

	under := crdtpath.Path{
		Doc:    doc,
		Labels: []crdtpath.Label{crdtpath.Field("tasks"), crdtpath.KeyU64(1), crdtpath.Field("done"), crdtpath.EWFlagLabel(tlfsid.NewNonce())},
		Author: testAuthor(),
	}
	elsewhere := flagPath(doc, "title")

	require.NoError(t, s.Join(causal.Causal{Store: []crdtpath.Path{under, elsewhere}}))

	got, err := s.PrefixScan([]crdtpath.Label{crdtpath.Field("tasks"), crdtpath.KeyU64(1)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Labels[0].Equal(under.Labels[0]))
}

func TestUnjoinProducesMinimalDelta(t *testing.T) {
	doc := testDoc()
	s := New(doc)
	p1 := flagPath(doc, "a")
	p2 := flagPath(doc, "b")
	require.NoError(t, s.Join(causal.Causal{Store: []crdtpath.Path{p1, p2}}))

	peerCtx := causal.NewContext()
	h1, err := crdtpath.Hash(p1)
	require.NoError(t, err)
	peerCtx.MarkActive(h1)

	delta := s.Unjoin(peerCtx)
	require.Len(t, delta.Store, 1)
	h2, err := crdtpath.Hash(delta.Store[0])
	require.NoError(t, err)
	h2want, err := crdtpath.Hash(p2)
	require.NoError(t, err)
	assert.Equal(t, h2want, h2)
}

func TestCausalContextSnapshotRoundTripsThroughUnjoin(t *testing.T) {
	doc := testDoc()
	a := New(doc)
	b := New(doc)

	p := flagPath(doc, "shared")
	require.NoError(t, a.Join(causal.Causal{Store: []crdtpath.Path{p}}))

	bCtx := b.CausalContextSnapshot()
	delta := a.Unjoin(bCtx)
	require.NoError(t, b.Join(delta))

	active, _ := b.Len()
	assert.Equal(t, 1, active)
}
