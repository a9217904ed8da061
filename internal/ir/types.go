package ir

// Type is the sealed interface over the closed set of IR type shapes.
// Only Primitive, Option, List, Tuple, Record, Variant, TypeVar, and
// Named implement it. Generators switch exhaustively over these cases;
// adding a case is a cross-cutting change and is deliberately loud.
type Type interface {
	irType() // Sealed - only the types in this package implement it.

	// String renders the type in canonical interface surface syntax,
	// e.g. "(int * string) list option". The parser and this renderer
	// agree: parsing a rendering yields an equal type.
	String() string
}

// Primitive is a leaf type identified by name: one of the built-ins
// (string, int, float, bool, unit) or a user-registered primitive.
type Primitive struct {
	Name string
}

func (Primitive) irType() {}

// Option is a zero-or-one container around Inner.
type Option struct {
	Inner Type
}

func (Option) irType() {}

// List is a homogeneous ordered sequence of Inner.
type List struct {
	Inner Type
}

func (List) irType() {}

// Tuple is a fixed-arity heterogeneous product, arity >= 2.
type Tuple struct {
	Elems []Type
}

func (Tuple) irType() {}

// Field is a single named record field.
type Field struct {
	Name string
	Type Type
}

// Record is a named field set. Field order is declaration order and is
// significant for generated constructors.
type Record struct {
	Name   string
	Fields []Field
}

func (Record) irType() {}

// Case is a single variant constructor. Payload is nil for
// payload-less constructors.
type Case struct {
	Name    string
	Payload Type
}

// Variant is a tagged union. Case order is declaration order.
type Variant struct {
	Name  string
	Cases []Case
}

func (Variant) irType() {}

// TypeVar is an unresolved polymorphic placeholder ('a, 'b, ...).
// Every target renders it as its opaque/any mapping.
type TypeVar struct {
	Symbol string
}

func (TypeVar) irType() {}

// Named is a by-name reference to a type the module does not define
// locally. Locally defined names are resolved to their Record/Variant
// before the module leaves the parser; a Named that survives resolution
// is opaque and maps to the target's opaque spelling.
type Named struct {
	Name string
}

func (Named) irType() {}

// Common primitive types.
var (
	String = Primitive{Name: "string"}
	Int    = Primitive{Name: "int"}
	Float  = Primitive{Name: "float"}
	Bool   = Primitive{Name: "bool"}
	Unit   = Primitive{Name: "unit"}
)

// IsContainer reports whether t is a container shape (option, list, tuple).
func IsContainer(t Type) bool {
	switch t.(type) {
	case Option, List, Tuple:
		return true
	}
	return false
}

// IsComposite reports whether t is a composite shape (record, variant).
func IsComposite(t Type) bool {
	switch t.(type) {
	case Record, Variant:
		return true
	}
	return false
}

// Equal reports structural equality: two types are equal when their
// variant shapes match recursively. Names participate only where they
// are part of the shape (primitives, composites, type vars, refs).
func Equal(a, b Type) bool {
	switch at := a.(type) {
	case Primitive:
		bt, ok := b.(Primitive)
		return ok && at.Name == bt.Name
	case Option:
		bt, ok := b.(Option)
		return ok && Equal(at.Inner, bt.Inner)
	case List:
		bt, ok := b.(List)
		return ok && Equal(at.Inner, bt.Inner)
	case Tuple:
		bt, ok := b.(Tuple)
		if !ok || len(at.Elems) != len(bt.Elems) {
			return false
		}
		for i := range at.Elems {
			if !Equal(at.Elems[i], bt.Elems[i]) {
				return false
			}
		}
		return true
	case Record:
		bt, ok := b.(Record)
		if !ok || at.Name != bt.Name || len(at.Fields) != len(bt.Fields) {
			return false
		}
		for i := range at.Fields {
			if at.Fields[i].Name != bt.Fields[i].Name || !Equal(at.Fields[i].Type, bt.Fields[i].Type) {
				return false
			}
		}
		return true
	case Variant:
		bt, ok := b.(Variant)
		if !ok || at.Name != bt.Name || len(at.Cases) != len(bt.Cases) {
			return false
		}
		for i := range at.Cases {
			if at.Cases[i].Name != bt.Cases[i].Name {
				return false
			}
			ap, bp := at.Cases[i].Payload, bt.Cases[i].Payload
			if (ap == nil) != (bp == nil) {
				return false
			}
			if ap != nil && !Equal(ap, bp) {
				return false
			}
		}
		return true
	case TypeVar:
		bt, ok := b.(TypeVar)
		return ok && at.Symbol == bt.Symbol
	case Named:
		bt, ok := b.(Named)
		return ok && at.Name == bt.Name
	}
	return false
}
