package ir

import "strings"

// The canonical surface rendering. Postfix containers (option, list)
// never need parentheses around themselves; tuples always carry them so
// nesting like "(int * string) list option" is unambiguous.

func (t Primitive) String() string { return t.Name }

func (t Option) String() string { return t.Inner.String() + " option" }

func (t List) String() string { return t.Inner.String() + " list" }

func (t Tuple) String() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, " * ") + ")"
}

// Composite types appear in type expressions by name; their structure is
// spelled out only at the definition site (see TypeDef.Render).
func (t Record) String() string { return t.Name }

func (t Variant) String() string { return t.Name }

func (t TypeVar) String() string { return "'" + t.Symbol }

func (t Named) String() string { return t.Name }

// Key returns a structural cache key for t. Unlike String, composites
// expand their full shape, so registry memoization can never conflate
// two same-named definitions from different modules.
func Key(t Type) string {
	var b strings.Builder
	writeKey(&b, t)
	return b.String()
}

func writeKey(b *strings.Builder, t Type) {
	switch tt := t.(type) {
	case Primitive:
		b.WriteString("prim:")
		b.WriteString(tt.Name)
	case Option:
		b.WriteString("option(")
		writeKey(b, tt.Inner)
		b.WriteString(")")
	case List:
		b.WriteString("list(")
		writeKey(b, tt.Inner)
		b.WriteString(")")
	case Tuple:
		b.WriteString("tuple(")
		for i, e := range tt.Elems {
			if i > 0 {
				b.WriteString(",")
			}
			writeKey(b, e)
		}
		b.WriteString(")")
	case Record:
		b.WriteString("record:")
		b.WriteString(tt.Name)
		b.WriteString("{")
		for i, f := range tt.Fields {
			if i > 0 {
				b.WriteString(";")
			}
			b.WriteString(f.Name)
			b.WriteString(":")
			writeKey(b, f.Type)
		}
		b.WriteString("}")
	case Variant:
		b.WriteString("variant:")
		b.WriteString(tt.Name)
		b.WriteString("[")
		for i, c := range tt.Cases {
			if i > 0 {
				b.WriteString("|")
			}
			b.WriteString(c.Name)
			if c.Payload != nil {
				b.WriteString(" of ")
				writeKey(b, c.Payload)
			}
		}
		b.WriteString("]")
	case TypeVar:
		b.WriteString("var:")
		b.WriteString(tt.Symbol)
	case Named:
		b.WriteString("named:")
		b.WriteString(tt.Name)
	}
}
