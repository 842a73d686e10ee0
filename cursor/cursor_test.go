package cursor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudpeers/tlfs/causal"
	"github.com/cloudpeers/tlfs/crdtpath"
	"github.com/cloudpeers/tlfs/orstore"
	"github.com/cloudpeers/tlfs/policy"
	"github.com/cloudpeers/tlfs/schema"
	"github.com/cloudpeers/tlfs/sign"
)

// rootedFixture creates a store and policy engine seeded with a single
// root-authority grant covering the whole document, so the returned
// cursor's author can write anywhere without further delegation.
func rootedFixture(t *testing.T, root *schema.Node) (*Cursor, *orstore.Store) {
	t.Helper()
	root2, err := sign.Generate()
	require.NoError(t, err)
	doc := root2.DocID()
	store := orstore.New(doc)

	ownAtom := crdtpath.Says(crdtpath.PeerActor(root2.PeerID()), crdtpath.PermOwn, crdtpath.Path{Doc: doc})
	unsigned := crdtpath.Path{Doc: doc, Labels: []crdtpath.Label{crdtpath.PolicyLabel(ownAtom)}}
	signed, err := root2.Sign(unsigned)
	require.NoError(t, err)
	stmt, err := policy.FromPath(signed)
	require.NoError(t, err)
	engine := policy.NewEngine(doc, []policy.Statement{stmt})

	return New(store, root, engine, root2), store
}

func join(t *testing.T, store *orstore.Store, c causal.Causal) {
	t.Helper()
	require.NoError(t, store.Join(c))
}

func todoRoot() *schema.Node {
	return schema.Struct(map[string]*schema.Node{
		"title": schema.MVReg(schema.TypeStr),
		"done":  schema.EWFlag(),
		"tasks": schema.Array(schema.Struct(map[string]*schema.Node{
			"title": schema.MVReg(schema.TypeStr),
		})),
	})
}

func TestFlagEnableWins(t *testing.T) {
	c, store := rootedFixture(t, todoRoot())
	done, err := c.StructField("done")
	require.NoError(t, err)

	enabled, err := done.FlagEnabled()
	require.NoError(t, err)
	require.False(t, enabled)

	enableDelta, err := done.FlagEnable()
	require.NoError(t, err)
	join(t, store, enableDelta)

	enabled, err = done.FlagEnabled()
	require.NoError(t, err)
	require.True(t, enabled)

	disableDelta, err := done.FlagDisable()
	require.NoError(t, err)

	// A concurrent enable races the disable: join the disable first, then
	// the winning enable, and confirm the flag ends up enabled regardless
	// of join order.
	raceEnable, err := done.FlagEnable()
	require.NoError(t, err)

	join(t, store, disableDelta)
	enabled, err = done.FlagEnabled()
	require.NoError(t, err)
	require.False(t, enabled)

	join(t, store, raceEnable)
	enabled, err = done.FlagEnabled()
	require.NoError(t, err)
	require.True(t, enabled)
}

func TestRegAssignConcurrentWritesBothSurviveUntilResolved(t *testing.T) {
	c, store := rootedFixture(t, todoRoot())
	title, err := c.StructField("title")
	require.NoError(t, err)

	d1, err := title.RegAssign(crdtpath.PrimStrV("groceries"))
	require.NoError(t, err)
	join(t, store, d1)

	values, err := title.RegValues()
	require.NoError(t, err)
	require.Equal(t, []crdtpath.Primitive{crdtpath.PrimStrV("groceries")}, values)

	// Two concurrent assigns computed against the same prior state: each
	// clears what it saw, but since they're computed independently before
	// either is joined, both new values survive the merge.
	da, err := title.RegAssign(crdtpath.PrimStrV("milk"))
	require.NoError(t, err)
	db, err := title.RegAssign(crdtpath.PrimStrV("eggs"))
	require.NoError(t, err)

	join(t, store, da)
	join(t, store, db)

	values, err = title.RegValues()
	require.NoError(t, err)
	require.Len(t, values, 2)

	resolved, err := title.RegAssign(crdtpath.PrimStrV("bread"))
	require.NoError(t, err)
	join(t, store, resolved)

	values, err = title.RegValues()
	require.NoError(t, err)
	require.Equal(t, []crdtpath.Primitive{crdtpath.PrimStrV("bread")}, values)
}

func TestArrayInsertAndMovePreserveOrderWithoutRenumbering(t *testing.T) {
	c, store := rootedFixture(t, todoRoot())
	tasks, err := c.StructField("tasks")
	require.NoError(t, err)

	for _, title := range []string{"a", "b", "c"} {
		el, err := tasks.ArrayInsert(tasks.mustLength(t))
		require.NoError(t, err)
		field, err := el.StructField("title")
		require.NoError(t, err)
		d, err := field.RegAssign(crdtpath.PrimStrV(title))
		require.NoError(t, err)
		join(t, store, d)
	}

	n, err := tasks.ArrayLength()
	require.NoError(t, err)
	require.Equal(t, 3, n)

	titleAt := func(i int) string {
		el, err := tasks.ArrayIndex(i)
		require.NoError(t, err)
		field, err := el.StructField("title")
		require.NoError(t, err)
		vs, err := field.RegValues()
		require.NoError(t, err)
		require.Len(t, vs, 1)
		return vs[0].S
	}
	require.Equal(t, "a", titleAt(0))
	require.Equal(t, "b", titleAt(1))
	require.Equal(t, "c", titleAt(2))

	moveDelta, err := tasks.ArrayMove(2, 0)
	require.NoError(t, err)
	join(t, store, moveDelta)

	require.Equal(t, "c", titleAt(0))
	require.Equal(t, "a", titleAt(1))
	require.Equal(t, "b", titleAt(2))
}

func TestArrayElementCursorMoveRelocatesByItsOwnPosition(t *testing.T) {
	c, store := rootedFixture(t, todoRoot())
	tasks, err := c.StructField("tasks")
	require.NoError(t, err)

	for _, title := range []string{"a", "b", "c"} {
		el, err := tasks.ArrayInsert(tasks.mustLength(t))
		require.NoError(t, err)
		field, err := el.StructField("title")
		require.NoError(t, err)
		d, err := field.RegAssign(crdtpath.PrimStrV(title))
		require.NoError(t, err)
		join(t, store, d)
	}

	titleAt := func(i int) string {
		el, err := tasks.ArrayIndex(i)
		require.NoError(t, err)
		field, err := el.StructField("title")
		require.NoError(t, err)
		vs, err := field.RegStrs()
		require.NoError(t, err)
		require.Len(t, vs, 1)
		return vs[0]
	}

	// "c" sits at index 2; ask its own element cursor to move itself to
	// the front rather than going through the parent array's (from, to)
	// form.
	last, err := tasks.ArrayIndex(2)
	require.NoError(t, err)
	moveDelta, err := last.Move(0)
	require.NoError(t, err)
	join(t, store, moveDelta)

	require.Equal(t, "c", titleAt(0))
	require.Equal(t, "a", titleAt(1))
	require.Equal(t, "b", titleAt(2))

	_, err = c.Move(0)
	require.Error(t, err, "Move on a cursor that never came from ArrayIndex/ArrayInsert must fail")
}

func TestRegTypedAccessorsMatchRegValues(t *testing.T) {
	c, store := rootedFixture(t, todoRoot())
	title, err := c.StructField("title")
	require.NoError(t, err)

	d, err := title.RegAssign(crdtpath.PrimStrV("groceries"))
	require.NoError(t, err)
	join(t, store, d)

	strs, err := title.RegStrs()
	require.NoError(t, err)
	require.Equal(t, []string{"groceries"}, strs)

	_, err = title.RegU64s()
	require.Error(t, err, "title is mvreg<str>, not mvreg<u64>")
}

func TestMapKeysEnumeratesDistinctLiveKeys(t *testing.T) {
	c, store := rootedFixture(t, tableRoot())

	for _, name := range []string{"alice", "bob"} {
		entry, err := c.MapKeyStr(name)
		require.NoError(t, err)
		d, err := entry.RegAssign(crdtpath.PrimStrV("member"))
		require.NoError(t, err)
		join(t, store, d)
	}

	keys, err := c.MapKeysStr()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"alice", "bob"}, keys)

	removeDelta, err := c.MapRemove(crdtpath.KeyStr("alice"))
	require.NoError(t, err)
	join(t, store, removeDelta)

	keys, err = c.MapKeysStr()
	require.NoError(t, err)
	require.Equal(t, []string{"bob"}, keys)

	_, err = c.MapKeysU64()
	require.Error(t, err, "this table is keyed by str, not u64")
}

// mustLength is a small test-only convenience so ArrayInsert can append at
// the current end without the caller tracking a running count.
func (c *Cursor) mustLength(t *testing.T) int {
	t.Helper()
	n, err := c.ArrayLength()
	require.NoError(t, err)
	return n
}

func tableRoot() *schema.Node {
	return schema.Table(schema.TypeStr, schema.MVReg(schema.TypeStr))
}

func TestMapRemoveTombstonesWholeSubtree(t *testing.T) {
	c, store := rootedFixture(t, tableRoot())

	alice, err := c.MapKeyStr("alice")
	require.NoError(t, err)
	d, err := alice.RegAssign(crdtpath.PrimStrV("admin"))
	require.NoError(t, err)
	join(t, store, d)

	values, err := alice.RegValues()
	require.NoError(t, err)
	require.Len(t, values, 1)

	removeDelta, err := c.MapRemove(crdtpath.KeyStr("alice"))
	require.NoError(t, err)
	join(t, store, removeDelta)

	values, err = alice.RegValues()
	require.NoError(t, err)
	require.Empty(t, values)
}
