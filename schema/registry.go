package schema

import (
	"sync"

	"github.com/cloudpeers/tlfs/crdtpath"
	"github.com/cloudpeers/tlfs/tlfserr"
)

// Registry holds every named schema and, per name, its ordered list of
// versions (oldest first). A document's schema name and version index are
// stored alongside it so the lens pipeline knows which Version.Lenses
// chain carries a path between two replicas' versions.
type Registry struct {
	mu       sync.RWMutex
	versions map[string][]Version
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{versions: make(map[string][]Version)}
}

// Register appends a new version to name's version list. The first
// version registered for a name must carry an empty Lenses chain; every
// later version's chain must strictly extend the previous version's
// (guaranteed by construction, not re-checked here — callers build
// Version.Lenses by appending to the prior version's chain).
func (r *Registry) Register(name string, v Version) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.versions[name] = append(r.versions[name], v)
}

// Lookup returns the version at index for name.
func (r *Registry) Lookup(name string, index int) (Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vs, ok := r.versions[name]
	if !ok {
		return Version{}, tlfserr.UnknownSchema{Name: name}
	}
	if index < 0 || index >= len(vs) {
		return Version{}, tlfserr.UnknownSchema{Name: name}
	}
	return vs[index], nil
}

// Latest returns the most recently registered version for name.
func (r *Registry) Latest(name string) (Version, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vs, ok := r.versions[name]
	if !ok || len(vs) == 0 {
		return Version{}, 0, tlfserr.UnknownSchema{Name: name}
	}
	return vs[len(vs)-1], len(vs) - 1, nil
}

// Validate walks labels against root, the way a schema's root Node shapes
// the label sequences that may legally exist underneath it. It returns
// tlfserr.SchemaViolation for a structural mismatch (wrong child kind,
// missing field, array/table navigation over a non-container) and
// tlfserr.TypeMismatch when a key or register label's primitive kind
// disagrees with the node's declared type.
func Validate(root *Node, labels []crdtpath.Label) error {
	node := root
	for i, l := range labels {
		switch l.Kind {
		case crdtpath.LabelField:
			if node.Kind != NodeStruct {
				return tlfserr.SchemaViolation{Reason: "field label under non-struct node"}
			}
			child, ok := node.Fields[l.Field]
			if !ok {
				return tlfserr.SchemaViolation{Reason: "unknown field: " + l.Field}
			}
			node = child

		case crdtpath.LabelKeyBool, crdtpath.LabelKeyU64, crdtpath.LabelKeyI64, crdtpath.LabelKeyStr:
			switch node.Kind {
			case NodeTable:
				if node.KeyType.labelKind() != l.Kind {
					return tlfserr.TypeMismatch{Expected: node.KeyType.String(), Got: l.Kind.String()}
				}
				node = node.Value
			case NodeArray:
				if l.Kind != crdtpath.LabelKeyStr {
					return tlfserr.TypeMismatch{Expected: "str", Got: l.Kind.String()}
				}
				node = node.Elem
			default:
				return tlfserr.SchemaViolation{Reason: "key label under non-table/array node"}
			}

		case crdtpath.LabelEWFlag:
			if node.Kind != NodeEWFlag {
				return tlfserr.SchemaViolation{Reason: "ewflag label under non-ewflag node"}
			}
			if i != len(labels)-1 {
				return tlfserr.SchemaViolation{Reason: "ewflag must be the terminal label"}
			}

		case crdtpath.LabelMVReg:
			if node.Kind != NodeMVReg {
				return tlfserr.SchemaViolation{Reason: "mvreg label under non-mvreg node"}
			}
			if i != len(labels)-1 {
				return tlfserr.SchemaViolation{Reason: "mvreg must be the terminal label"}
			}
			if !node.RegType.Matches(l.Value) {
				return tlfserr.TypeMismatch{Expected: node.RegType.String(), Got: l.Value.Kind.String()}
			}

		case crdtpath.LabelPolicy:
			if node.Kind != NodePolicy {
				return tlfserr.SchemaViolation{Reason: "policy label under non-policy node"}
			}
			if i != len(labels)-1 {
				return tlfserr.SchemaViolation{Reason: "policy must be the terminal label"}
			}

		default:
			return tlfserr.SchemaViolation{Reason: "unknown label kind"}
		}
	}
	return nil
}

// ValidatePath validates p.Labels against root.
func ValidatePath(root *Node, p crdtpath.Path) error {
	return Validate(root, p.Labels)
}
