package sdk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudpeers/tlfs/crdtpath"
	"github.com/cloudpeers/tlfs/lens"
	"github.com/cloudpeers/tlfs/orstore"
	"github.com/cloudpeers/tlfs/policy"
	"github.com/cloudpeers/tlfs/schema"
)

// todoRegistry registers two versions of "todo": v1 has only a title
// field, v2 adds priority via a single AddProperty lens.
func todoRegistry() *schema.Registry {
	v1 := schema.Struct(map[string]*schema.Node{
		"title": schema.MVReg(schema.TypeStr),
	})
	v2 := schema.Struct(map[string]*schema.Node{
		"title":    schema.MVReg(schema.TypeStr),
		"priority": schema.MVReg(schema.TypeU64),
	})
	r := schema.NewRegistry()
	r.Register("todo", schema.Version{Root: v1})
	r.Register("todo", schema.Version{Root: v2, Lenses: lens.Lenses{lens.AddProperty("priority")}})
	return r
}

// docAtOtherVersion rebuilds a second, independent Doc handle for the same
// document id and root authority as src, but pinned to a different
// registered version — simulating a peer replica that has adopted a
// newer (or older) schema package for the same document.
func docAtOtherVersion(t *testing.T, src *Doc, index int) *Doc {
	t.Helper()
	version, err := src.sdk.registry.Lookup(src.schemaName, index)
	require.NoError(t, err)

	var statements []policy.Statement
	for _, p := range src.store.All() {
		term, ok := p.Terminal()
		if !ok || term.Kind != crdtpath.LabelPolicy {
			continue
		}
		stmt, err := policy.FromPath(p)
		require.NoError(t, err)
		statements = append(statements, stmt)
	}

	other := &Doc{
		sdk:         src.sdk,
		id:          src.id,
		schemaName:  src.schemaName,
		schemaIndex: index,
		root:        version.Root,
		lenses:      version.Lenses,
		store:       orstore.New(src.id),
		engine:      policy.NewEngine(src.id, statements),
		bus:         newBroadcaster(),
	}
	other.transition(StateOpen)
	return other
}

// TestApplyCausalDropsFieldUnknownToOlderSchemaVersion exercises scenario
// 5: a replica pinned to v1 (no priority field) receives a v2 peer's
// priority write. The lens pipeline must drop the path rather than reject
// the whole delta, and the field must never reach the older replica's
// store.
func TestApplyCausalDropsFieldUnknownToOlderSchemaVersion(t *testing.T) {
	registry := todoRegistry()
	s, err := CreateMemory(registry)
	require.NoError(t, err)

	docV1, err := s.CreateDocAtVersion("todo", 0)
	require.NoError(t, err)
	docV2 := docAtOtherVersion(t, docV1, 1)

	priority, err := docV2.CreateCursor().StructField("priority")
	require.NoError(t, err)
	delta, err := priority.RegAssign(crdtpath.PrimU64V(3))
	require.NoError(t, err)
	delta.SchemaVersion = docV2.schemaIndex

	require.NoError(t, docV1.ApplyCausal(delta))

	assert.Len(t, docV1.store.All(), 1, "only the document's root grant; a priority write must never reach a replica whose schema has no priority field")
	_, err = docV1.CreateCursor().StructField("priority")
	assert.Error(t, err, "v1's schema has no priority field to navigate to")
}

// TestApplyCausalTransformsCompatibleFieldAcrossVersions checks the other
// half of scenario 5: a field both versions agree on (title) still
// crosses the version boundary untouched.
func TestApplyCausalTransformsCompatibleFieldAcrossVersions(t *testing.T) {
	registry := todoRegistry()
	s, err := CreateMemory(registry)
	require.NoError(t, err)

	docV1, err := s.CreateDocAtVersion("todo", 0)
	require.NoError(t, err)
	docV2 := docAtOtherVersion(t, docV1, 1)

	title, err := docV2.CreateCursor().StructField("title")
	require.NoError(t, err)
	delta, err := title.RegAssign(crdtpath.PrimStrV("buy milk"))
	require.NoError(t, err)
	delta.SchemaVersion = docV2.schemaIndex

	require.NoError(t, docV1.ApplyCausal(delta))

	values, err := docV1.CreateCursor().StructField("title")
	require.NoError(t, err)
	regValues, err := values.RegValues()
	require.NoError(t, err)
	require.Len(t, regValues, 1)
	assert.Equal(t, "buy milk", regValues[0].S)
}
