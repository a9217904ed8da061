package ir

import (
	"fmt"
	"strings"
)

// Parameter is a named function parameter. The name has already passed
// through the central sanitizer by the time it is stored here.
type Parameter struct {
	Name string `json:"name"`
	Type Type   `json:"-"`
}

func (p Parameter) String() string {
	return fmt.Sprintf("%s: %s", p.Name, p.Type)
}

// Function is a language-agnostic function signature.
type Function struct {
	Name   string      `json:"name"`
	Params []Parameter `json:"params"`
	Return Type        `json:"-"`
	Doc    string      `json:"doc,omitempty"`
}

// Arity is the parameter count.
func (f Function) Arity() int { return len(f.Params) }

func (f Function) String() string {
	parts := make([]string, len(f.Params))
	for i, p := range f.Params {
		parts[i] = p.String()
	}
	return fmt.Sprintf("%s(%s) -> %s", f.Name, strings.Join(parts, ", "), f.Return)
}

// TypeDef is a module-scope type definition. Body is always a Record or
// a Variant; function signatures reach it through a Named reference
// which the parser resolves before generation.
type TypeDef struct {
	Name string `json:"name"`
	Body Type   `json:"-"`
	Doc  string `json:"doc,omitempty"`
}

// Render spells out the definition in interface surface syntax, used in
// diagnostics and regenerated headers.
func (d TypeDef) Render() string {
	switch body := d.Body.(type) {
	case Record:
		parts := make([]string, len(body.Fields))
		for i, f := range body.Fields {
			parts[i] = fmt.Sprintf("%s: %s", f.Name, f.Type)
		}
		return fmt.Sprintf("type %s = { %s }", d.Name, strings.Join(parts, "; "))
	case Variant:
		parts := make([]string, len(body.Cases))
		for i, c := range body.Cases {
			if c.Payload != nil {
				parts[i] = fmt.Sprintf("%s of %s", c.Name, c.Payload)
			} else {
				parts[i] = c.Name
			}
		}
		return fmt.Sprintf("type %s = %s", d.Name, strings.Join(parts, " | "))
	}
	return fmt.Sprintf("type %s", d.Name)
}

// Module is the top-level parse result: every function signature and
// type definition from one interface file, in declaration order.
// Created once per parse, immutable afterwards, discarded after
// generation. No cross-invocation state lives here.
type Module struct {
	Name      string     `json:"name"`
	Functions []Function `json:"functions"`
	TypeDefs  []TypeDef  `json:"type_defs"`
	Doc       string     `json:"doc,omitempty"`
}

func (m *Module) String() string {
	return fmt.Sprintf("module %s (%d functions, %d types)", m.Name, len(m.Functions), len(m.TypeDefs))
}

// Function returns the named function, or nil.
func (m *Module) Function(name string) *Function {
	for i := range m.Functions {
		if m.Functions[i].Name == name {
			return &m.Functions[i]
		}
	}
	return nil
}

// TypeDef returns the named definition, or nil.
func (m *Module) TypeDef(name string) *TypeDef {
	for i := range m.TypeDefs {
		if m.TypeDefs[i].Name == name {
			return &m.TypeDefs[i]
		}
	}
	return nil
}
