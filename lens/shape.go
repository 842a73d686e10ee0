package lens

import (
	"github.com/cloudpeers/tlfs/crdtpath"
	"github.com/cloudpeers/tlfs/tlfserr"
)

// Shape is a schema-lens-local node tree: the minimal structural
// information a Lens needs to check that it applies where it is asked to
// and to produce the resulting tree. schema.Node carries the same shape
// plus the richer typing cursor/codec need; schema converts to and from
// Shape at its version-registration boundary rather than lens depending on
// schema's types directly.
type Shape struct {
	Kind Kind

	Fields  map[string]*Shape // KindStruct
	KeyType crdtpath.PrimitiveKind
	Value   *Shape // KindTable
	Elem    *Shape // KindArray
	RegType crdtpath.PrimitiveKind
}

// Apply runs the schema half of a lens: it mutates *s in place the way
// transform_schema does in the source material, rejecting edits that
// don't fit the shape they're asked to apply to.
func (l Lens) Apply(s *Shape) error {
	switch l.Op {
	case OpMake:
		if s.Kind != KindNull {
			return tlfserr.Conflict{Reason: "make: shape is not null"}
		}
		switch l.Kind {
		case KindNull:
			return tlfserr.Conflict{Reason: "make: cannot make a null shape"}
		case KindStruct:
			*s = Shape{Kind: KindStruct, Fields: map[string]*Shape{}}
		case KindTable:
			*s = Shape{Kind: KindTable, Value: &Shape{Kind: KindNull}}
		case KindArray:
			*s = Shape{Kind: KindArray, Elem: &Shape{Kind: KindNull}}
		default:
			*s = Shape{Kind: l.Kind}
		}
		return nil

	case OpDestroy:
		switch l.Kind {
		case KindEWFlag, KindMVReg:
			if s.Kind != l.Kind {
				return tlfserr.Conflict{Reason: "destroy: kind mismatch"}
			}
		case KindTable:
			if s.Kind != KindTable || s.Value.Kind != KindNull {
				return tlfserr.Conflict{Reason: "destroy: table value not null"}
			}
		case KindArray:
			if s.Kind != KindArray || s.Elem.Kind != KindNull {
				return tlfserr.Conflict{Reason: "destroy: array element not null"}
			}
		case KindStruct:
			if s.Kind != KindStruct || len(s.Fields) != 0 {
				return tlfserr.Conflict{Reason: "destroy: struct not empty"}
			}
		default:
			return tlfserr.Conflict{Reason: "destroy: cannot destroy null"}
		}
		*s = Shape{Kind: KindNull}
		return nil

	case OpAddProperty:
		if s.Kind != KindStruct {
			return tlfserr.Conflict{Reason: "add_property: not a struct"}
		}
		if _, ok := s.Fields[l.Prop]; ok {
			return tlfserr.Conflict{Reason: "add_property: already exists"}
		}
		s.Fields[l.Prop] = &Shape{Kind: KindNull}
		return nil

	case OpRemoveProperty:
		if s.Kind != KindStruct {
			return tlfserr.Conflict{Reason: "remove_property: not a struct"}
		}
		f, ok := s.Fields[l.Prop]
		if !ok {
			return tlfserr.Conflict{Reason: "remove_property: doesn't exist"}
		}
		if f.Kind != KindNull {
			return tlfserr.Conflict{Reason: "remove_property: not null"}
		}
		delete(s.Fields, l.Prop)
		return nil

	case OpRenameProperty:
		if s.Kind != KindStruct {
			return tlfserr.Conflict{Reason: "rename_property: not a struct"}
		}
		if _, ok := s.Fields[l.Rename]; ok {
			return tlfserr.Conflict{Reason: "rename_property: target already exists"}
		}
		f, ok := s.Fields[l.Prop]
		if !ok {
			return tlfserr.Conflict{Reason: "rename_property: source doesn't exist"}
		}
		delete(s.Fields, l.Prop)
		s.Fields[l.Rename] = f
		return nil

	case OpHoistProperty:
		if s.Kind != KindStruct {
			return tlfserr.Conflict{Reason: "hoist_property: not a struct"}
		}
		if _, ok := s.Fields[l.Rename]; ok {
			return tlfserr.Conflict{Reason: "hoist_property: target already exists"}
		}
		host, ok := s.Fields[l.Host]
		if !ok || host.Kind != KindStruct {
			return tlfserr.Conflict{Reason: "hoist_property: host doesn't exist"}
		}
		f, ok := host.Fields[l.Rename]
		if !ok {
			return tlfserr.Conflict{Reason: "hoist_property: target doesn't exist in host"}
		}
		delete(host.Fields, l.Rename)
		s.Fields[l.Rename] = f
		return nil

	case OpPlungeProperty:
		if s.Kind != KindStruct {
			return tlfserr.Conflict{Reason: "plunge_property: not a struct"}
		}
		if l.Host == l.Rename {
			return tlfserr.Conflict{Reason: "plunge_property: host and target are the same"}
		}
		f, ok := s.Fields[l.Rename]
		if !ok {
			return tlfserr.Conflict{Reason: "plunge_property: target doesn't exist"}
		}
		host, ok := s.Fields[l.Host]
		if !ok || host.Kind != KindStruct {
			return tlfserr.Conflict{Reason: "plunge_property: host doesn't exist"}
		}
		if _, ok := host.Fields[l.Rename]; ok {
			return tlfserr.Conflict{Reason: "plunge_property: host already has target"}
		}
		delete(s.Fields, l.Rename)
		host.Fields[l.Rename] = f
		return nil

	case OpWrap:
		inner := *s
		*s = Shape{Kind: KindArray, Elem: &inner}
		return nil

	case OpHead:
		if s.Kind != KindArray {
			return tlfserr.Conflict{Reason: "head: not an array"}
		}
		*s = *s.Elem
		return nil

	case OpLensIn:
		if s.Kind != KindStruct {
			return tlfserr.Conflict{Reason: "lens_in: not a struct"}
		}
		f, ok := s.Fields[l.Prop]
		if !ok {
			return tlfserr.Conflict{Reason: "lens_in: field doesn't exist"}
		}
		return l.Inner.Apply(f)

	case OpLensMap:
		switch s.Kind {
		case KindTable:
			return l.Inner.Apply(s.Value)
		case KindArray:
			return l.Inner.Apply(s.Elem)
		default:
			return tlfserr.Conflict{Reason: "lens_map: not a table or array"}
		}

	case OpConvert:
		if s.Kind != KindMVReg || s.RegType != l.RegType {
			return tlfserr.Conflict{Reason: "convert: register kind mismatch"}
		}
		s.RegType = l.RegTo
		return nil

	default:
		return tlfserr.Conflict{Reason: "apply: unknown lens op"}
	}
}
