package generator

import "github.com/roach88/polyglot/internal/ir"

// SymbolPrefix is the fixed prefix for every boundary symbol the shim
// exposes. The ctypes and python backends derive their foreign symbol
// names from the same constant, so the three layers can never drift.
const SymbolPrefix = "ml_"

// The boxed value convention, shared bit-for-bit by the cstubs and
// python backends. Values that cross the boundary outside the natural
// top-level forms are "boxed" as heap pointers:
//
//	int, bool   -> int*     (malloc'd)
//	float       -> double*  (malloc'd)
//	string      -> char*    (strdup'd)
//	unit        -> NULL
//	option<T>   -> NULL (absent) or boxed T
//	list<T>     -> void*[2]: {array, (void*)(intptr_t)len} where array
//	               is a natural T array for primitive T, else a void*
//	               array of boxed elements
//	tuple       -> void* array of boxed elements, one per arity
//	record      -> void* array of boxed fields, declaration order
//	variant     -> void*[2]: {(void*)(intptr_t)case_index, boxed
//	               payload or NULL}
//
// Variant case indexes count declaration order over all constructors.

// isPrim reports a primitive other than unit.
func isPrim(t ir.Type) bool {
	p, ok := t.(ir.Primitive)
	return ok && p.Name != "unit"
}

func isUnit(t ir.Type) bool {
	p, ok := t.(ir.Primitive)
	return ok && p.Name == "unit"
}

func isString(t ir.Type) bool {
	p, ok := t.(ir.Primitive)
	return ok && p.Name == "string"
}

// primName returns the primitive name, or "" when t is not one of the
// builtin primitives.
func primName(t ir.Type) string {
	p, ok := t.(ir.Primitive)
	if !ok {
		return ""
	}
	switch p.Name {
	case "string", "int", "float", "bool", "unit":
		return p.Name
	}
	return ""
}

// naturalOption reports an option whose payload crosses the boundary
// in its natural top-level form (a primitive).
func naturalOption(t ir.Type) (ir.Type, bool) {
	opt, ok := t.(ir.Option)
	if !ok {
		return nil, false
	}
	if primName(opt.Inner) != "" && !isUnit(opt.Inner) {
		return opt.Inner, true
	}
	return nil, false
}

// naturalList reports a list whose elements are primitives and
// therefore cross as a natural contiguous array.
func naturalList(t ir.Type) (ir.Type, bool) {
	lst, ok := t.(ir.List)
	if !ok {
		return nil, false
	}
	if primName(lst.Inner) != "" && !isUnit(lst.Inner) {
		return lst.Inner, true
	}
	return nil, false
}

// allFloatFields reports whether every record field is a float, in
// which case the OCaml runtime unboxes the record into a flat double
// array and field access switches to Double_field/Store_double_field.
func allFloatFields(rec ir.Record) bool {
	for _, f := range rec.Fields {
		if p, ok := f.Type.(ir.Primitive); !ok || p.Name != "float" {
			return false
		}
	}
	return len(rec.Fields) > 0
}

// variantLayout splits variant cases into the OCaml runtime's two
// index spaces: constant constructors are immediates numbered among
// themselves, payload constructors are blocks tagged among themselves.
type variantLayout struct {
	constIndex map[int]int // case index -> immediate value
	blockTag   map[int]int // case index -> block tag
}

func layoutVariant(v ir.Variant) variantLayout {
	l := variantLayout{
		constIndex: make(map[int]int),
		blockTag:   make(map[int]int),
	}
	nextConst, nextBlock := 0, 0
	for i, c := range v.Cases {
		if c.Payload == nil {
			l.constIndex[i] = nextConst
			nextConst++
		} else {
			l.blockTag[i] = nextBlock
			nextBlock++
		}
	}
	return l
}

// payloadArity returns the number of runtime block fields a variant
// payload occupies: a product payload is a multi-field block, anything
// else is one field.
func payloadArity(payload ir.Type) int {
	if tup, ok := payload.(ir.Tuple); ok {
		return len(tup.Elems)
	}
	return 1
}

// payloadFields returns the payload's runtime field types.
func payloadFields(payload ir.Type) []ir.Type {
	if tup, ok := payload.(ir.Tuple); ok {
		return tup.Elems
	}
	return []ir.Type{payload}
}
