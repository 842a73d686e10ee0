package causal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudpeers/tlfs/crdtpath"
	"github.com/cloudpeers/tlfs/tlfsid"
)

func TestCausalJoinConcatenates(t *testing.T) {
	var doc tlfsid.DocID
	p1 := crdtpath.Path{Doc: doc, Labels: []crdtpath.Label{crdtpath.EWFlagLabel(tlfsid.NewNonce())}}
	p2 := crdtpath.Path{Doc: doc, Labels: []crdtpath.Label{crdtpath.EWFlagLabel(tlfsid.NewNonce())}}
	h1, _ := crdtpath.Hash(p1)

	a := Causal{Store: []crdtpath.Path{p1}}
	b := Causal{Store: []crdtpath.Path{p2}, Expired: []crdtpath.DotHash{h1}}

	joined := a.Join(b)
	assert.Len(t, joined.Store, 2)
	assert.Len(t, joined.Expired, 1)
	assert.False(t, joined.IsEmpty())
	assert.True(t, Causal{}.IsEmpty())
}

func TestContextEncodeDecodeRoundTrip(t *testing.T) {
	ctx := NewContext()
	var h1, h2 crdtpath.DotHash
	h1[0] = 1
	h2[0] = 2
	ctx.MarkActive(h1)
	ctx.MarkExpired(h2)

	enc := ctx.Encode()
	dec, err := Decode(enc)
	require.NoError(t, err)
	assert.True(t, dec.HasActive(h1))
	assert.True(t, dec.HasExpired(h2))
	assert.False(t, dec.HasActive(h2))
}

func TestCausalWireRoundTrip(t *testing.T) {
	var doc tlfsid.DocID
	p := crdtpath.Path{Doc: doc, Labels: []crdtpath.Label{crdtpath.Field("f"), crdtpath.EWFlagLabel(tlfsid.NewNonce())}}
	var h crdtpath.DotHash
	h[3] = 9
	c := Causal{Store: []crdtpath.Path{p}, Expired: []crdtpath.DotHash{h}}

	enc, err := EncodeCausal(c)
	require.NoError(t, err)
	dec, err := DecodeCausal(enc)
	require.NoError(t, err)
	require.Len(t, dec.Store, 1)
	assert.True(t, dec.Store[0].Labels[0].Equal(p.Labels[0]))
	assert.Equal(t, c.Expired, dec.Expired)
}
