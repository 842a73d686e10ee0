package lens

import "github.com/cloudpeers/tlfs/crdtpath"

// TransformLabels carries one path's label sequence across a single lens,
// the way transform_value walks a decoded document in the source
// material — except our documents are never materialized as a tree, so
// this operates directly on the label sequence a path already carries.
//
// ok is false when the lens makes ls unrepresentable on the far side (for
// example a field removed by the lens being applied forward): callers drop
// the path from the outgoing delta rather than emit something malformed.
func (l Lens) TransformLabels(ls []crdtpath.Label) (out []crdtpath.Label, ok bool) {
	switch l.Op {
	case OpAddProperty:
		if len(ls) > 0 && ls[0].Kind == crdtpath.LabelField && ls[0].Field == l.Prop {
			return nil, false
		}
		return ls, true

	case OpRemoveProperty:
		if len(ls) > 0 && ls[0].Kind == crdtpath.LabelField && ls[0].Field == l.Prop {
			return nil, false
		}
		return ls, true

	case OpRenameProperty:
		if len(ls) > 0 && ls[0].Kind == crdtpath.LabelField && ls[0].Field == l.Prop {
			renamed := append([]crdtpath.Label{crdtpath.Field(l.Rename)}, ls[1:]...)
			return renamed, true
		}
		return ls, true

	case OpHoistProperty:
		if len(ls) >= 2 && ls[0].Kind == crdtpath.LabelField && ls[0].Field == l.Host &&
			ls[1].Kind == crdtpath.LabelField && ls[1].Field == l.Rename {
			hoisted := append([]crdtpath.Label{crdtpath.Field(l.Rename)}, ls[2:]...)
			return hoisted, true
		}
		return ls, true

	case OpPlungeProperty:
		if len(ls) >= 1 && ls[0].Kind == crdtpath.LabelField && ls[0].Field == l.Rename {
			plunged := append([]crdtpath.Label{crdtpath.Field(l.Host), crdtpath.Field(l.Rename)}, ls[1:]...)
			return plunged, true
		}
		return ls, true

	case OpWrap:
		return append([]crdtpath.Label{crdtpath.KeyStr(wrapElementKey)}, ls...), true

	case OpHead:
		if len(ls) >= 1 && ls[0].Kind == crdtpath.LabelKeyStr && ls[0].KeyStr == wrapElementKey {
			return ls[1:], true
		}
		return ls, true

	case OpLensIn:
		if len(ls) == 0 || ls[0].Kind != crdtpath.LabelField || ls[0].Field != l.Prop {
			return ls, true
		}
		rest, ok := l.Inner.TransformLabels(ls[1:])
		if !ok {
			return nil, false
		}
		return append([]crdtpath.Label{ls[0]}, rest...), true

	case OpLensMap:
		if len(ls) == 0 {
			return ls, true
		}
		switch ls[0].Kind {
		case crdtpath.LabelKeyBool, crdtpath.LabelKeyU64, crdtpath.LabelKeyI64, crdtpath.LabelKeyStr:
			rest, ok := l.Inner.TransformLabels(ls[1:])
			if !ok {
				return nil, false
			}
			return append([]crdtpath.Label{ls[0]}, rest...), true
		default:
			return ls, true
		}

	case OpMake, OpDestroy:
		return ls, true

	case OpConvert:
		return ls, true

	default:
		return ls, true
	}
}

// wrapElementKey is the canonical position label Wrap/Head use to address
// the single element of the one-element array they introduce or remove.
const wrapElementKey = "\x00wrap"

// TransformValue applies a Convert lens to the terminal primitive value
// carried by an MVReg label, looking it up in the lens's table and falling
// back to the zero value of the target kind when no entry matches, per
// transform_value in the source material.
func (l Lens) TransformValue(v crdtpath.Primitive) crdtpath.Primitive {
	if l.Op != OpConvert {
		return v
	}
	for _, e := range l.Convert {
		if e.From.Equal(v) {
			return e.To
		}
	}
	switch l.RegTo {
	case crdtpath.PrimBool:
		return crdtpath.PrimBoolV(false)
	case crdtpath.PrimU64:
		return crdtpath.PrimU64V(0)
	case crdtpath.PrimI64:
		return crdtpath.PrimI64V(0)
	default:
		return crdtpath.PrimStrV("")
	}
}

// TransformLabels carries ls across an ordered chain of lenses, stopping
// early and reporting !ok the moment any lens drops the path.
func (ls Lenses) TransformLabels(labels []crdtpath.Label) (out []crdtpath.Label, ok bool) {
	cur := labels
	for _, l := range ls {
		cur, ok = l.TransformLabels(cur)
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// TransformValue threads v through every Convert lens in the chain; lenses
// that are not Convert leave v untouched.
func (ls Lenses) TransformValue(v crdtpath.Primitive) crdtpath.Primitive {
	cur := v
	for _, l := range ls {
		cur = l.TransformValue(cur)
	}
	return cur
}
