package cursor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuccIsGreater(t *testing.T) {
	z := Zero()
	s := z.Succ()
	assert.Equal(t, -1, z.Compare(s))
}

func TestMidIsStrictlyBetween(t *testing.T) {
	a := Zero()
	b := a.Succ()
	m := a.Mid(b)
	assert.Equal(t, -1, a.Compare(m))
	assert.Equal(t, -1, m.Compare(b))
}

func TestMidOfEqualIsEqual(t *testing.T) {
	a := Half()
	m := a.Mid(a)
	assert.Equal(t, 0, a.Compare(m))
}

func TestByteOrderMatchesFractionOrder(t *testing.T) {
	a := Zero()
	b := a.Succ().Succ()
	m := a.Mid(b)
	assert.Equal(t, -1, a.Compare(m))
	assert.Equal(t, -1, m.Compare(b))
}

func TestKeyRoundTrips(t *testing.T) {
	f := Half().Mid(Half().Succ())
	key := f.Key()
	parsed, err := ParseKey(key)
	assert.NoError(t, err)
	assert.Equal(t, 0, f.Compare(parsed))
}

func TestRepeatedMidNeverCollides(t *testing.T) {
	a := Zero()
	b := a.Succ()
	seen := map[string]bool{a.Key(): true, b.Key(): true}
	for i := 0; i < 50; i++ {
		m := a.Mid(b)
		assert.False(t, seen[m.Key()], "midpoint must never collide with a previously allocated position")
		seen[m.Key()] = true
		b = m
	}
}
