package generator

import (
	"fmt"
	"strings"

	"github.com/roach88/polyglot/internal/ir"
	"github.com/roach88/polyglot/internal/registry"
)

// CStubGenerator emits the C-ABI shim: one externally callable entry
// point per source function, named by prefixing the sanitized function
// name with SymbolPrefix. Every entry point brackets its OCaml calls
// with CAMLparam/CAMLlocal/CAMLreturn GC-root markers and copies
// string and byte payloads in both directions; nothing aliases the
// OCaml heap after the call returns.
type CStubGenerator struct{}

func (g *CStubGenerator) Name() string { return "cstubs" }

func (g *CStubGenerator) Generate(mod *ir.Module, reg *registry.Registry, moduleName string) ([]File, error) {
	// Resolve every spelling up front so an unmapped type aborts this
	// backend before any output is assembled.
	for _, fn := range mod.Functions {
		for _, p := range fn.Params {
			if _, err := reg.Mapping(p.Type, registry.TargetC); err != nil {
				return nil, err
			}
		}
		if _, err := reg.Mapping(fn.Return, registry.TargetC); err != nil {
			return nil, err
		}
	}

	header, err := g.generateHeader(mod, reg, moduleName)
	if err != nil {
		return nil, err
	}
	stubs, err := g.generateStubs(mod, reg, moduleName)
	if err != nil {
		return nil, err
	}
	return []File{
		{Path: moduleName + "_stubs.h", Content: header},
		{Path: moduleName + "_stubs.c", Content: stubs},
	}, nil
}

// generateHeader emits <mod>_stubs.h.
func (g *CStubGenerator) generateHeader(mod *ir.Module, reg *registry.Registry, moduleName string) (string, error) {
	guard := strings.ToUpper(moduleName) + "_STUBS_H"

	var b strings.Builder
	fmt.Fprintf(&b, "/* C shim for %s. Generated by polyglot; do not edit. */\n", moduleName)
	fmt.Fprintf(&b, "#ifndef %s\n", guard)
	fmt.Fprintf(&b, "#define %s\n\n", guard)
	b.WriteString("#ifdef __cplusplus\n")
	b.WriteString("extern \"C\" {\n")
	b.WriteString("#endif\n\n")

	if defs := g.structDefinitions(mod, reg); defs != "" {
		b.WriteString(defs)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "/* Runtime bootstrap: call once before any other entry point. */\n")
	fmt.Fprintf(&b, "void %s%s_runtime_init(void);\n\n", SymbolPrefix, moduleName)

	for _, fn := range mod.Functions {
		sig, err := g.entrySignature(fn, reg)
		if err != nil {
			return "", err
		}
		b.WriteString(sig + ";\n")
	}

	b.WriteString("\n/* Memory cleanup functions */\n")
	b.WriteString("/* NOTE: Caller must free returned pointers with the matching function. */\n")
	b.WriteString("void ml_free_option(void* ptr);\n")
	b.WriteString("void ml_free_list_result(void* result);\n")
	b.WriteString("void ml_free_string_list_result(void* result);\n")
	b.WriteString("void ml_free_tuple_list_result(void* result);\n")
	for _, fn := range mod.Functions {
		if g.needsTypedFree(fn.Return) {
			fmt.Fprintf(&b, "void %sfree_%s_result(void* ptr);\n", SymbolPrefix, fn.Name)
		}
	}

	b.WriteString("\n#ifdef __cplusplus\n")
	b.WriteString("}\n")
	b.WriteString("#endif\n\n")
	fmt.Fprintf(&b, "#endif /* %s */\n", guard)
	return b.String(), nil
}

// generateStubs emits <mod>_stubs.c.
func (g *CStubGenerator) generateStubs(mod *ir.Module, reg *registry.Registry, moduleName string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "/* C shim for %s. Generated by polyglot; do not edit. */\n\n", moduleName)
	b.WriteString("#include <stdint.h>\n")
	b.WriteString("#include <stdlib.h>\n")
	b.WriteString("#include <string.h>\n\n")
	b.WriteString("#include <caml/alloc.h>\n")
	b.WriteString("#include <caml/callback.h>\n")
	b.WriteString("#include <caml/memory.h>\n")
	b.WriteString("#include <caml/mlvalues.h>\n\n")
	fmt.Fprintf(&b, "#include \"%s_stubs.h\"\n\n", moduleName)

	b.WriteString("#ifndef Val_none\n")
	b.WriteString("#define Val_none Val_int(0)\n")
	b.WriteString("#endif\n\n")

	// Boxing Some by hand keeps the shim portable to runtimes that
	// predate caml_alloc_some.
	b.WriteString("static value polyglot_some(value v)\n")
	b.WriteString("{\n")
	b.WriteString("    CAMLparam1(v);\n")
	b.WriteString("    CAMLlocal1(some);\n")
	b.WriteString("    some = caml_alloc(1, 0);\n")
	b.WriteString("    Store_field(some, 0, v);\n")
	b.WriteString("    CAMLreturnT(value, some);\n")
	b.WriteString("}\n\n")

	b.WriteString("static int polyglot_initialized = 0;\n\n")
	fmt.Fprintf(&b, "void %s%s_runtime_init(void)\n", SymbolPrefix, moduleName)
	b.WriteString("{\n")
	b.WriteString("    if (!polyglot_initialized) {\n")
	fmt.Fprintf(&b, "        char* argv[] = { \"%s\", NULL };\n", moduleName)
	b.WriteString("        caml_startup(argv);\n")
	b.WriteString("        polyglot_initialized = 1;\n")
	b.WriteString("    }\n")
	b.WriteString("}\n")

	for _, fn := range mod.Functions {
		text, err := g.entryPoint(fn, reg)
		if err != nil {
			return "", err
		}
		b.WriteString("\n")
		b.WriteString(text)
	}

	b.WriteString("\n")
	b.WriteString(g.cleanupFunctions(mod))
	return b.String(), nil
}

// structDefinitions emits one C typedef per record/variant definition,
// in declaration order. Field spellings come from the registry.
func (g *CStubGenerator) structDefinitions(mod *ir.Module, reg *registry.Registry) string {
	var b strings.Builder
	for _, def := range mod.TypeDefs {
		switch body := def.Body.(type) {
		case ir.Record:
			fmt.Fprintf(&b, "typedef struct %s {\n", def.Name)
			for _, f := range body.Fields {
				fmt.Fprintf(&b, "    %s %s;\n", g.fieldCType(f.Type), f.Name)
			}
			fmt.Fprintf(&b, "} %s_t;\n\n", def.Name)
		case ir.Variant:
			fmt.Fprintf(&b, "typedef enum %s_tag {\n", def.Name)
			for i, c := range body.Cases {
				fmt.Fprintf(&b, "    %s_%s = %d,\n", strings.ToUpper(def.Name), strings.ToUpper(c.Name), i)
			}
			fmt.Fprintf(&b, "} %s_tag_t;\n\n", def.Name)
			fmt.Fprintf(&b, "typedef struct %s {\n", def.Name)
			b.WriteString("    int tag;\n")
			b.WriteString("    void* payload;\n")
			fmt.Fprintf(&b, "} %s_t;\n\n", def.Name)
		}
	}
	return b.String()
}

// fieldCType maps a record field to its struct member type: natural
// for primitives and primitive options, boxed for everything else.
func (g *CStubGenerator) fieldCType(t ir.Type) string {
	switch primName(t) {
	case "int", "bool":
		return "int"
	case "float":
		return "double"
	case "string":
		return "char*"
	case "unit":
		return "void*"
	}
	if inner, ok := naturalOption(t); ok {
		if isString(inner) {
			return "char*"
		}
		switch primName(inner) {
		case "int", "bool":
			return "int*"
		case "float":
			return "double*"
		}
	}
	return "void*"
}

// entrySignature renders the C prototype for one entry point.
func (g *CStubGenerator) entrySignature(fn ir.Function, reg *registry.Registry) (string, error) {
	var params []string
	for _, p := range fn.Params {
		params = append(params, g.paramDecls(p)...)
	}
	if len(params) == 0 {
		params = append(params, "void")
	}
	ret := g.returnCType(fn.Return)
	return fmt.Sprintf("%s %s%s(%s)", ret, SymbolPrefix, fn.Name, strings.Join(params, ", ")), nil
}

// paramDecls maps one IR parameter to its C parameter declarations. A
// natural list expands to (array, length); unit contributes nothing.
func (g *CStubGenerator) paramDecls(p ir.Parameter) []string {
	if isUnit(p.Type) {
		return nil
	}
	if elem, ok := naturalList(p.Type); ok {
		return []string{
			fmt.Sprintf("%s* %s", naturalCType(elem), p.Name),
			fmt.Sprintf("int %s_len", p.Name),
		}
	}
	return []string{fmt.Sprintf("%s %s", g.valueCType(p.Type), p.Name)}
}

// valueCType is the boundary C type for a single value.
func (g *CStubGenerator) valueCType(t ir.Type) string {
	switch primName(t) {
	case "int", "bool":
		return "int"
	case "float":
		return "double"
	case "string":
		return "char*"
	case "unit":
		return "void"
	}
	if inner, ok := naturalOption(t); ok {
		if isString(inner) {
			return "char*"
		}
		return naturalCType(inner) + "*"
	}
	switch tt := t.(type) {
	case ir.Record:
		return tt.Name + "_t*"
	case ir.Variant:
		return tt.Name + "_t*"
	case ir.Tuple:
		return "void**"
	}
	return "void*"
}

func (g *CStubGenerator) returnCType(t ir.Type) string {
	if isUnit(t) {
		return "void"
	}
	if _, ok := naturalList(t); ok {
		return "void**"
	}
	return g.valueCType(t)
}

func naturalCType(t ir.Type) string {
	switch primName(t) {
	case "int", "bool":
		return "int"
	case "float":
		return "double"
	case "string":
		return "char*"
	}
	return "void*"
}

// needsTypedFree reports returns whose shape requires a per-function
// free (the four standard cleanup functions cover the natural forms).
func (g *CStubGenerator) needsTypedFree(t ir.Type) bool {
	if primName(t) != "" {
		return false
	}
	if _, ok := naturalOption(t); ok {
		return false
	}
	if _, ok := naturalList(t); ok {
		return false
	}
	switch t.(type) {
	case ir.TypeVar, ir.Named:
		return false
	}
	return true
}

// cbody accumulates the statements of one entry point. OCaml value
// locals are collected so the CAMLlocal declarations can be emitted in
// one block right after CAMLparam0, as the macros require.
type cbody struct {
	lines  []string
	indent int
	locals []string
	tmp    int
}

func (b *cbody) line(format string, args ...any) {
	b.lines = append(b.lines, strings.Repeat("    ", b.indent+1)+fmt.Sprintf(format, args...))
}

func (b *cbody) local(prefix string) string {
	name := fmt.Sprintf("%s_%d", prefix, len(b.locals))
	b.locals = append(b.locals, name)
	return name
}

// namedLocal registers a specific OCaml value local.
func (b *cbody) namedLocal(name string) string {
	b.locals = append(b.locals, name)
	return name
}

func (b *cbody) fresh(prefix string) string {
	b.tmp++
	return fmt.Sprintf("%s%d", prefix, b.tmp)
}

// entryPoint renders one complete shim function.
func (g *CStubGenerator) entryPoint(fn ir.Function, reg *registry.Registry) (string, error) {
	body := &cbody{}

	// Marshal parameters into registered OCaml locals.
	var args []string
	for _, p := range fn.Params {
		v := body.namedLocal("ml_" + p.Name)
		g.paramToCaml(body, p, v)
		args = append(args, v)
	}
	if len(args) == 0 {
		// Zero C parameters still make a unit application.
		args = append(args, "Val_unit")
	}

	result := body.namedLocal("ml_result")
	body.line("static const value* %s_closure = NULL;", fn.Name)
	body.line("if (%s_closure == NULL) {", fn.Name)
	body.line("    %s_closure = caml_named_value(\"%s\");", fn.Name, fn.Name)
	body.line("}")
	switch len(args) {
	case 1:
		body.line("%s = caml_callback(*%s_closure, %s);", result, fn.Name, args[0])
	case 2:
		body.line("%s = caml_callback2(*%s_closure, %s, %s);", result, fn.Name, args[0], args[1])
	case 3:
		body.line("%s = caml_callback3(*%s_closure, %s, %s, %s);", result, fn.Name, args[0], args[1], args[2])
	default:
		arr := body.fresh("args")
		body.line("value %s[%d] = { %s };", arr, len(args), strings.Join(args, ", "))
		body.line("%s = caml_callbackN(*%s_closure, %d, %s);", result, fn.Name, len(args), arr)
	}

	g.returnFromCaml(body, fn.Return, result)

	sig, err := g.entrySignature(fn, reg)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(sig + "\n")
	b.WriteString("{\n")
	b.WriteString("    CAMLparam0();\n")
	for _, l := range body.locals {
		fmt.Fprintf(&b, "    CAMLlocal1(%s);\n", l)
	}
	for _, l := range body.lines {
		b.WriteString(l + "\n")
	}
	b.WriteString("}\n")
	return b.String(), nil
}

// paramToCaml marshals one C parameter into the OCaml local v.
func (g *CStubGenerator) paramToCaml(b *cbody, p ir.Parameter, v string) {
	t := p.Type
	switch primName(t) {
	case "int":
		b.line("%s = Val_int(%s);", v, p.Name)
		return
	case "bool":
		b.line("%s = Val_bool(%s);", v, p.Name)
		return
	case "float":
		b.line("%s = caml_copy_double(%s);", v, p.Name)
		return
	case "string":
		b.line("%s = caml_copy_string(%s);", v, p.Name)
		return
	case "unit":
		b.line("%s = Val_unit;", v)
		return
	}
	if inner, ok := naturalOption(t); ok {
		b.line("if (%s == NULL) {", p.Name)
		b.line("    %s = Val_none;", v)
		b.line("} else {")
		switch primName(inner) {
		case "string":
			b.line("    %s = polyglot_some(caml_copy_string(%s));", v, p.Name)
		case "int":
			b.line("    %s = polyglot_some(Val_int(*%s));", v, p.Name)
		case "bool":
			b.line("    %s = polyglot_some(Val_bool(*%s));", v, p.Name)
		case "float":
			b.line("    %s = polyglot_some(caml_copy_double(*%s));", v, p.Name)
		}
		b.line("}")
		return
	}
	if elem, ok := naturalList(t); ok {
		cell := b.local("ml_cell")
		i := b.fresh("i")
		b.line("%s = Val_emptylist;", v)
		b.line("for (int %s = %s_len - 1; %s >= 0; %s--) {", i, p.Name, i, i)
		b.line("    %s = caml_alloc(2, 0);", cell)
		b.line("    Store_field(%s, 0, %s);", cell, naturalElemToCaml(elem, fmt.Sprintf("%s[%s]", p.Name, i)))
		b.line("    Store_field(%s, 1, %s);", cell, v)
		b.line("    %s = %s;", v, cell)
		b.line("}")
		return
	}
	switch tt := t.(type) {
	case ir.Record:
		g.recordToCaml(b, tt, p.Name, v, true)
		return
	case ir.Variant:
		g.variantToCaml(b, tt, fmt.Sprintf("%s->tag", p.Name), fmt.Sprintf("%s->payload", p.Name), v)
		return
	case ir.TypeVar, ir.Named:
		// Opaque handle: the value passes through untouched.
		b.line("%s = (value)(intptr_t)%s;", v, p.Name)
		return
	}
	g.boxedToCaml(b, t, p.Name, v)
}

// naturalElemToCaml converts one element of a natural array.
func naturalElemToCaml(elem ir.Type, expr string) string {
	switch primName(elem) {
	case "int":
		return fmt.Sprintf("Val_int(%s)", expr)
	case "bool":
		return fmt.Sprintf("Val_bool(%s)", expr)
	case "float":
		return fmt.Sprintf("caml_copy_double(%s)", expr)
	case "string":
		return fmt.Sprintf("caml_copy_string(%s)", expr)
	}
	return expr
}

// boxedToCaml marshals a boxed C value (see boxed.go) into the OCaml
// local v.
func (g *CStubGenerator) boxedToCaml(b *cbody, t ir.Type, expr, v string) {
	switch primName(t) {
	case "int":
		b.line("%s = Val_int(*(int*)(%s));", v, expr)
		return
	case "bool":
		b.line("%s = Val_bool(*(int*)(%s));", v, expr)
		return
	case "float":
		b.line("%s = caml_copy_double(*(double*)(%s));", v, expr)
		return
	case "string":
		b.line("%s = caml_copy_string((char*)(%s));", v, expr)
		return
	case "unit":
		b.line("%s = Val_unit;", v)
		return
	}
	switch tt := t.(type) {
	case ir.Option:
		b.line("if ((%s) == NULL) {", expr)
		b.line("    %s = Val_none;", v)
		b.line("} else {")
		b.indent++
		inner := b.local("ml_some")
		g.boxedToCaml(b, tt.Inner, expr, inner)
		b.line("%s = polyglot_some(%s);", v, inner)
		b.indent--
		b.line("}")
	case ir.List:
		pair := b.fresh("pair")
		length := b.fresh("len")
		cell := b.local("ml_cell")
		i := b.fresh("i")
		b.line("void** %s = (void**)(%s);", pair, expr)
		b.line("int %s = (int)(intptr_t)%s[1];", length, pair)
		b.line("%s = Val_emptylist;", v)
		b.line("for (int %s = %s - 1; %s >= 0; %s--) {", i, length, i, i)
		b.indent++
		b.line("%s = caml_alloc(2, 0);", cell)
		if primName(tt.Inner) != "" && !isUnit(tt.Inner) {
			arr := fmt.Sprintf("((%s*)%s[0])", naturalCType(tt.Inner), pair)
			b.line("Store_field(%s, 0, %s);", cell, naturalElemToCaml(tt.Inner, fmt.Sprintf("%s[%s]", arr, i)))
		} else {
			elem := b.local("ml_elem")
			g.boxedToCaml(b, tt.Inner, fmt.Sprintf("((void**)%s[0])[%s]", pair, i), elem)
			b.line("Store_field(%s, 0, %s);", cell, elem)
		}
		b.line("Store_field(%s, 1, %s);", cell, v)
		b.line("%s = %s;", v, cell)
		b.indent--
		b.line("}")
	case ir.Tuple:
		b.line("%s = caml_alloc(%d, 0);", v, len(tt.Elems))
		for i, e := range tt.Elems {
			elem := b.local("ml_elem")
			g.boxedToCaml(b, e, fmt.Sprintf("((void**)(%s))[%d]", expr, i), elem)
			b.line("Store_field(%s, %d, %s);", v, i, elem)
		}
	case ir.Record:
		g.recordToCamlBoxed(b, tt, expr, v)
	case ir.Variant:
		tag := b.fresh("tag")
		b.line("int %s = (int)(intptr_t)((void**)(%s))[0];", tag, expr)
		g.variantToCaml(b, tt, tag, fmt.Sprintf("((void**)(%s))[1]", expr), v)
	case ir.TypeVar, ir.Named:
		b.line("%s = (value)(intptr_t)(%s);", v, expr)
	}
}

// recordToCaml builds an OCaml record block from a <name>_t* struct.
func (g *CStubGenerator) recordToCaml(b *cbody, rec ir.Record, ptr, v string, _ bool) {
	if allFloatFields(rec) {
		b.line("%s = caml_alloc(%d, Double_array_tag);", v, len(rec.Fields))
		for i, f := range rec.Fields {
			b.line("Store_double_field(%s, %d, %s->%s);", v, i, ptr, f.Name)
		}
		return
	}
	b.line("%s = caml_alloc(%d, 0);", v, len(rec.Fields))
	for i, f := range rec.Fields {
		switch primName(f.Type) {
		case "int":
			b.line("Store_field(%s, %d, Val_int(%s->%s));", v, i, ptr, f.Name)
		case "bool":
			b.line("Store_field(%s, %d, Val_bool(%s->%s));", v, i, ptr, f.Name)
		case "float":
			b.line("Store_field(%s, %d, caml_copy_double(%s->%s));", v, i, ptr, f.Name)
		case "string":
			b.line("Store_field(%s, %d, caml_copy_string(%s->%s));", v, i, ptr, f.Name)
		case "unit":
			b.line("Store_field(%s, %d, Val_unit);", v, i)
		default:
			fv := b.local("ml_field")
			if inner, ok := naturalOption(f.Type); ok {
				g.naturalOptionFieldToCaml(b, inner, fmt.Sprintf("%s->%s", ptr, f.Name), fv)
			} else {
				g.boxedToCaml(b, f.Type, fmt.Sprintf("%s->%s", ptr, f.Name), fv)
			}
			b.line("Store_field(%s, %d, %s);", v, i, fv)
		}
	}
}

// recordToCamlBoxed builds an OCaml record from the boxed (void**
// field array) representation.
func (g *CStubGenerator) recordToCamlBoxed(b *cbody, rec ir.Record, expr, v string) {
	if allFloatFields(rec) {
		b.line("%s = caml_alloc(%d, Double_array_tag);", v, len(rec.Fields))
		for i := range rec.Fields {
			b.line("Store_double_field(%s, %d, *(double*)((void**)(%s))[%d]);", v, i, expr, i)
		}
		return
	}
	b.line("%s = caml_alloc(%d, 0);", v, len(rec.Fields))
	for i, f := range rec.Fields {
		fv := b.local("ml_field")
		g.boxedToCaml(b, f.Type, fmt.Sprintf("((void**)(%s))[%d]", expr, i), fv)
		b.line("Store_field(%s, %d, %s);", v, i, fv)
	}
}

// naturalOptionFieldToCaml converts a struct field holding a natural
// primitive option.
func (g *CStubGenerator) naturalOptionFieldToCaml(b *cbody, inner ir.Type, expr, v string) {
	b.line("if (%s == NULL) {", expr)
	b.line("    %s = Val_none;", v)
	b.line("} else {")
	switch primName(inner) {
	case "string":
		b.line("    %s = polyglot_some(caml_copy_string(%s));", v, expr)
	case "int":
		b.line("    %s = polyglot_some(Val_int(*%s));", v, expr)
	case "bool":
		b.line("    %s = polyglot_some(Val_bool(*%s));", v, expr)
	case "float":
		b.line("    %s = polyglot_some(caml_copy_double(*%s));", v, expr)
	}
	b.line("}")
}

// variantToCaml builds an OCaml variant value from a (tag, payload)
// pair. tagExpr yields the declaration-order case index.
func (g *CStubGenerator) variantToCaml(b *cbody, v ir.Variant, tagExpr, payloadExpr, out string) {
	layout := layoutVariant(v)
	b.line("switch (%s) {", tagExpr)
	for i, c := range v.Cases {
		b.line("case %d: {", i)
		b.indent++
		if c.Payload == nil {
			b.line("%s = Val_int(%d);", out, layout.constIndex[i])
		} else {
			fields := payloadFields(c.Payload)
			b.line("%s = caml_alloc(%d, %d);", out, len(fields), layout.blockTag[i])
			if len(fields) == 1 {
				fv := b.local("ml_payload")
				g.boxedToCaml(b, fields[0], payloadExpr, fv)
				b.line("Store_field(%s, 0, %s);", out, fv)
			} else {
				for fi, ft := range fields {
					fv := b.local("ml_payload")
					g.boxedToCaml(b, ft, fmt.Sprintf("((void**)(%s))[%d]", payloadExpr, fi), fv)
					b.line("Store_field(%s, %d, %s);", out, fi, fv)
				}
			}
		}
		b.line("break;")
		b.indent--
		b.line("}")
	}
	b.line("default:")
	b.line("    %s = Val_unit;", out)
	b.line("    break;")
	b.line("}")
}

// returnFromCaml unmarshals the call result and emits the CAMLreturn.
func (g *CStubGenerator) returnFromCaml(b *cbody, t ir.Type, result string) {
	switch primName(t) {
	case "int":
		b.line("CAMLreturnT(int, Int_val(%s));", result)
		return
	case "bool":
		b.line("CAMLreturnT(int, Bool_val(%s));", result)
		return
	case "float":
		b.line("CAMLreturnT(double, Double_val(%s));", result)
		return
	case "string":
		b.line("char* result = strdup(String_val(%s));", result)
		b.line("CAMLreturnT(char*, result);")
		return
	case "unit":
		b.line("CAMLreturn0;")
		return
	}
	if inner, ok := naturalOption(t); ok {
		some := b.namedLocal("ml_some_value")
		ctype := g.valueCType(t)
		b.line("if (%s == Val_none) {", result)
		b.line("    CAMLreturnT(%s, NULL);", ctype)
		b.line("}")
		b.line("%s = Field(%s, 0);", some, result)
		switch primName(inner) {
		case "string":
			b.line("char* result = strdup(String_val(%s));", some)
		case "int":
			b.line("int* result = (int*)malloc(sizeof(int));")
			b.line("*result = Int_val(%s);", some)
		case "bool":
			b.line("int* result = (int*)malloc(sizeof(int));")
			b.line("*result = Bool_val(%s);", some)
		case "float":
			b.line("double* result = (double*)malloc(sizeof(double));")
			b.line("*result = Double_val(%s);", some)
		}
		b.line("CAMLreturnT(%s, result);", ctype)
		return
	}
	if elem, ok := naturalList(t); ok {
		cursor := b.namedLocal("ml_cursor")
		head := b.namedLocal("head")
		i := b.fresh("i")
		b.line("int list_len = 0;")
		b.line("%s = %s;", cursor, result)
		b.line("while (%s != Val_emptylist) {", cursor)
		b.line("    list_len++;")
		b.line("    %s = Field(%s, 1);", cursor, cursor)
		b.line("}")
		b.line("void** result = (void**)malloc(2 * sizeof(void*));")
		ctype := naturalCType(elem)
		b.line("%s* array = (%s*)malloc(list_len * sizeof(%s));", ctype, ctype, ctype)
		b.line("%s = %s;", cursor, result)
		b.line("for (int %s = 0; %s < list_len; %s++) {", i, i, i)
		b.line("    %s = Field(%s, 0);", head, cursor)
		switch primName(elem) {
		case "string":
			b.line("    array[%s] = strdup(String_val(%s));", i, head)
		case "int":
			b.line("    array[%s] = Int_val(%s);", i, head)
		case "bool":
			b.line("    array[%s] = Bool_val(%s);", i, head)
		case "float":
			b.line("    array[%s] = Double_val(%s);", i, head)
		}
		b.line("    %s = Field(%s, 1);", cursor, cursor)
		b.line("}")
		b.line("result[0] = array;")
		b.line("result[1] = (void*)(intptr_t)list_len;")
		b.line("CAMLreturnT(void**, result);")
		return
	}
	switch tt := t.(type) {
	case ir.Record:
		ptr := b.fresh("rec")
		g.recordFromCaml(b, tt, result, ptr)
		b.line("CAMLreturnT(%s_t*, %s);", tt.Name, ptr)
	case ir.Variant:
		ptr := b.fresh("var")
		g.variantFromCaml(b, tt, result, ptr)
		b.line("CAMLreturnT(%s_t*, %s);", tt.Name, ptr)
	case ir.TypeVar, ir.Named:
		b.line("CAMLreturnT(void*, (void*)%s);", result)
	default:
		out := g.boxedFromCaml(b, t, result)
		b.line("CAMLreturnT(%s, %s);", g.returnCType(t), out)
	}
}

// boxedFromCaml unmarshals an OCaml value into the boxed C
// representation and returns the holding variable.
func (g *CStubGenerator) boxedFromCaml(b *cbody, t ir.Type, valExpr string) string {
	switch primName(t) {
	case "int", "bool":
		out := b.fresh("boxed")
		b.line("int* %s = (int*)malloc(sizeof(int));", out)
		if primName(t) == "bool" {
			b.line("*%s = Bool_val(%s);", out, valExpr)
		} else {
			b.line("*%s = Int_val(%s);", out, valExpr)
		}
		return out
	case "float":
		out := b.fresh("boxed")
		b.line("double* %s = (double*)malloc(sizeof(double));", out)
		b.line("*%s = Double_val(%s);", out, valExpr)
		return out
	case "string":
		out := b.fresh("boxed")
		b.line("char* %s = strdup(String_val(%s));", out, valExpr)
		return out
	case "unit":
		out := b.fresh("boxed")
		b.line("void* %s = NULL;", out)
		return out
	}
	switch tt := t.(type) {
	case ir.Option:
		out := b.fresh("opt")
		b.line("void* %s = NULL;", out)
		b.line("if (%s != Val_none) {", valExpr)
		b.indent++
		inner := b.local("ml_some")
		b.line("%s = Field(%s, 0);", inner, valExpr)
		innerOut := g.boxedFromCaml(b, tt.Inner, inner)
		b.line("%s = (void*)%s;", out, innerOut)
		b.indent--
		b.line("}")
		return out
	case ir.List:
		cursor := b.local("ml_cursor")
		head := b.local("ml_head")
		length := b.fresh("len")
		i := b.fresh("i")
		out := b.fresh("list")
		b.line("int %s = 0;", length)
		b.line("%s = %s;", cursor, valExpr)
		b.line("while (%s != Val_emptylist) {", cursor)
		b.line("    %s++;", length)
		b.line("    %s = Field(%s, 1);", cursor, cursor)
		b.line("}")
		b.line("void** %s = (void**)malloc(2 * sizeof(void*));", out)
		natural := primName(tt.Inner) != "" && !isUnit(tt.Inner)
		arr := b.fresh("array")
		if natural {
			ctype := naturalCType(tt.Inner)
			b.line("%s* %s = (%s*)malloc(%s * sizeof(%s));", ctype, arr, ctype, length, ctype)
		} else {
			b.line("void** %s = (void**)malloc(%s * sizeof(void*));", arr, length)
		}
		b.line("%s = %s;", cursor, valExpr)
		b.line("for (int %s = 0; %s < %s; %s++) {", i, i, length, i)
		b.indent++
		b.line("%s = Field(%s, 0);", head, cursor)
		if natural {
			switch primName(tt.Inner) {
			case "string":
				b.line("%s[%s] = strdup(String_val(%s));", arr, i, head)
			case "int":
				b.line("%s[%s] = Int_val(%s);", arr, i, head)
			case "bool":
				b.line("%s[%s] = Bool_val(%s);", arr, i, head)
			case "float":
				b.line("%s[%s] = Double_val(%s);", arr, i, head)
			}
		} else {
			elemOut := g.boxedFromCaml(b, tt.Inner, head)
			b.line("%s[%s] = (void*)%s;", arr, i, elemOut)
		}
		b.line("%s = Field(%s, 1);", cursor, cursor)
		b.indent--
		b.line("}")
		b.line("%s[0] = %s;", out, arr)
		b.line("%s[1] = (void*)(intptr_t)%s;", out, length)
		return out
	case ir.Tuple:
		out := b.fresh("tup")
		b.line("void** %s = (void**)malloc(%d * sizeof(void*));", out, len(tt.Elems))
		for i, e := range tt.Elems {
			ev := b.local("ml_elem")
			b.line("%s = Field(%s, %d);", ev, valExpr, i)
			elemOut := g.boxedFromCaml(b, e, ev)
			b.line("%s[%d] = (void*)%s;", out, i, elemOut)
		}
		return out
	case ir.Record:
		out := b.fresh("fields")
		b.line("void** %s = (void**)malloc(%d * sizeof(void*));", out, len(tt.Fields))
		if allFloatFields(tt) {
			for i := range tt.Fields {
				fv := b.fresh("boxed")
				b.line("double* %s = (double*)malloc(sizeof(double));", fv)
				b.line("*%s = Double_field(%s, %d);", fv, valExpr, i)
				b.line("%s[%d] = (void*)%s;", out, i, fv)
			}
			return out
		}
		for i, f := range tt.Fields {
			fv := b.local("ml_field")
			b.line("%s = Field(%s, %d);", fv, valExpr, i)
			fieldOut := g.boxedFromCaml(b, f.Type, fv)
			b.line("%s[%d] = (void*)%s;", out, i, fieldOut)
		}
		return out
	case ir.Variant:
		out := b.fresh("varbox")
		b.line("void** %s = (void**)malloc(2 * sizeof(void*));", out)
		b.line("%s[1] = NULL;", out)
		g.variantTagPayloadFromCaml(b, tt, valExpr,
			fmt.Sprintf("%s[0]", out), fmt.Sprintf("%s[1]", out), true)
		return out
	case ir.TypeVar, ir.Named:
		out := b.fresh("opaque")
		b.line("void* %s = (void*)%s;", out, valExpr)
		return out
	}
	out := b.fresh("unreachable")
	b.line("void* %s = NULL;", out)
	return out
}

// recordFromCaml unmarshals an OCaml record into a freshly allocated
// <name>_t struct.
func (g *CStubGenerator) recordFromCaml(b *cbody, rec ir.Record, valExpr, ptr string) {
	b.line("%s_t* %s = (%s_t*)malloc(sizeof(%s_t));", rec.Name, ptr, rec.Name, rec.Name)
	if allFloatFields(rec) {
		for i, f := range rec.Fields {
			b.line("%s->%s = Double_field(%s, %d);", ptr, f.Name, valExpr, i)
		}
		return
	}
	for i, f := range rec.Fields {
		switch primName(f.Type) {
		case "int":
			b.line("%s->%s = Int_val(Field(%s, %d));", ptr, f.Name, valExpr, i)
		case "bool":
			b.line("%s->%s = Bool_val(Field(%s, %d));", ptr, f.Name, valExpr, i)
		case "float":
			b.line("%s->%s = Double_val(Field(%s, %d));", ptr, f.Name, valExpr, i)
		case "string":
			fv := b.local("ml_field")
			b.line("%s = Field(%s, %d);", fv, valExpr, i)
			b.line("%s->%s = strdup(String_val(%s));", ptr, f.Name, fv)
		default:
			fv := b.local("ml_field")
			b.line("%s = Field(%s, %d);", fv, valExpr, i)
			if inner, ok := naturalOption(f.Type); ok {
				g.naturalOptionFieldFromCaml(b, inner, fv, fmt.Sprintf("%s->%s", ptr, f.Name))
			} else {
				fieldOut := g.boxedFromCaml(b, f.Type, fv)
				b.line("%s->%s = (void*)%s;", ptr, f.Name, fieldOut)
			}
		}
	}
}

func (g *CStubGenerator) naturalOptionFieldFromCaml(b *cbody, inner ir.Type, valExpr, dest string) {
	b.line("if (%s == Val_none) {", valExpr)
	b.line("    %s = NULL;", dest)
	b.line("} else {")
	b.indent++
	some := b.local("ml_some")
	b.line("%s = Field(%s, 0);", some, valExpr)
	switch primName(inner) {
	case "string":
		b.line("%s = strdup(String_val(%s));", dest, some)
	case "int":
		b.line("%s = (int*)malloc(sizeof(int));", dest)
		b.line("*%s = Int_val(%s);", dest, some)
	case "bool":
		b.line("%s = (int*)malloc(sizeof(int));", dest)
		b.line("*%s = Bool_val(%s);", dest, some)
	case "float":
		b.line("%s = (double*)malloc(sizeof(double));", dest)
		b.line("*%s = Double_val(%s);", dest, some)
	}
	b.indent--
	b.line("}")
}

// variantFromCaml unmarshals an OCaml variant into a freshly allocated
// <name>_t struct.
func (g *CStubGenerator) variantFromCaml(b *cbody, v ir.Variant, valExpr, ptr string) {
	b.line("%s_t* %s = (%s_t*)malloc(sizeof(%s_t));", v.Name, ptr, v.Name, v.Name)
	b.line("%s->payload = NULL;", ptr)
	g.variantTagPayloadFromCaml(b, v, valExpr,
		fmt.Sprintf("%s->tag", ptr), fmt.Sprintf("%s->payload", ptr), false)
}

// variantTagPayloadFromCaml writes the declaration-order case index
// and the boxed payload into tagDest/payloadDest. When boxedTag is
// set, the tag destination holds a (void*)(intptr_t) immediate.
func (g *CStubGenerator) variantTagPayloadFromCaml(b *cbody, v ir.Variant, valExpr, tagDest, payloadDest string, boxedTag bool) {
	layout := layoutVariant(v)
	assignTag := func(caseIdx int) string {
		if boxedTag {
			return fmt.Sprintf("%s = (void*)(intptr_t)%d;", tagDest, caseIdx)
		}
		return fmt.Sprintf("%s = %d;", tagDest, caseIdx)
	}

	b.line("if (Is_long(%s)) {", valExpr)
	b.indent++
	b.line("switch (Int_val(%s)) {", valExpr)
	for i, c := range v.Cases {
		if c.Payload != nil {
			continue
		}
		b.line("case %d:", layout.constIndex[i])
		b.line("    %s", assignTag(i))
		b.line("    break;")
	}
	b.line("default:")
	b.line("    %s", assignTag(0))
	b.line("    break;")
	b.line("}")
	b.indent--
	b.line("} else {")
	b.indent++
	b.line("switch (Tag_val(%s)) {", valExpr)
	for i, c := range v.Cases {
		if c.Payload == nil {
			continue
		}
		b.line("case %d: {", layout.blockTag[i])
		b.indent++
		b.line("%s", assignTag(i))
		fields := payloadFields(c.Payload)
		if len(fields) == 1 {
			fv := b.local("ml_payload")
			b.line("%s = Field(%s, 0);", fv, valExpr)
			payloadOut := g.boxedFromCaml(b, fields[0], fv)
			b.line("%s = (void*)%s;", payloadDest, payloadOut)
		} else {
			arr := b.fresh("payload")
			b.line("void** %s = (void**)malloc(%d * sizeof(void*));", arr, len(fields))
			for fi, ft := range fields {
				fv := b.local("ml_payload")
				b.line("%s = Field(%s, %d);", fv, valExpr, fi)
				fieldOut := g.boxedFromCaml(b, ft, fv)
				b.line("%s[%d] = (void*)%s;", arr, fi, fieldOut)
			}
			b.line("%s = (void*)%s;", payloadDest, arr)
		}
		b.line("break;")
		b.indent--
		b.line("}")
	}
	b.line("default:")
	b.line("    %s", assignTag(0))
	b.line("    break;")
	b.line("}")
	b.indent--
	b.line("}")
}

// cleanupFunctions emits the four standard cleanup entry points plus a
// typed free per complex-returning function.
func (g *CStubGenerator) cleanupFunctions(mod *ir.Module) string {
	var b strings.Builder
	b.WriteString("/* Memory cleanup functions */\n\n")

	b.WriteString("void ml_free_option(void* ptr)\n")
	b.WriteString("{\n")
	b.WriteString("    if (ptr) {\n")
	b.WriteString("        free(ptr);\n")
	b.WriteString("    }\n")
	b.WriteString("}\n\n")

	b.WriteString("void ml_free_list_result(void* result)\n")
	b.WriteString("{\n")
	b.WriteString("    if (result) {\n")
	b.WriteString("        void** pair = (void**)result;\n")
	b.WriteString("        free(pair[0]);\n")
	b.WriteString("        free(pair);\n")
	b.WriteString("    }\n")
	b.WriteString("}\n\n")

	b.WriteString("void ml_free_string_list_result(void* result)\n")
	b.WriteString("{\n")
	b.WriteString("    if (result) {\n")
	b.WriteString("        void** pair = (void**)result;\n")
	b.WriteString("        char** array = (char**)pair[0];\n")
	b.WriteString("        int len = (int)(intptr_t)pair[1];\n")
	b.WriteString("        for (int i = 0; i < len; i++) {\n")
	b.WriteString("            free(array[i]);\n")
	b.WriteString("        }\n")
	b.WriteString("        free(array);\n")
	b.WriteString("        free(pair);\n")
	b.WriteString("    }\n")
	b.WriteString("}\n\n")

	b.WriteString("void ml_free_tuple_list_result(void* result)\n")
	b.WriteString("{\n")
	b.WriteString("    /* Frees the list spine and the per-tuple arrays; element\n")
	b.WriteString("       payloads require the typed per-function free. */\n")
	b.WriteString("    if (result) {\n")
	b.WriteString("        void** pair = (void**)result;\n")
	b.WriteString("        void** array = (void**)pair[0];\n")
	b.WriteString("        int len = (int)(intptr_t)pair[1];\n")
	b.WriteString("        for (int i = 0; i < len; i++) {\n")
	b.WriteString("            free(array[i]);\n")
	b.WriteString("        }\n")
	b.WriteString("        free(array);\n")
	b.WriteString("        free(pair);\n")
	b.WriteString("    }\n")
	b.WriteString("}\n")

	for _, fn := range mod.Functions {
		if !g.needsTypedFree(fn.Return) {
			continue
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "void %sfree_%s_result(void* ptr)\n", SymbolPrefix, fn.Name)
		b.WriteString("{\n")
		b.WriteString("    if (ptr == NULL) {\n")
		b.WriteString("        return;\n")
		b.WriteString("    }\n")
		fb := &cbody{}
		fb.indent = 0
		g.freeStmts(fb, fn.Return, "ptr", true)
		for _, l := range fb.lines {
			b.WriteString(l + "\n")
		}
		b.WriteString("}\n")
	}
	return b.String()
}

// freeStmts emits statements releasing one value in its return
// representation (struct for top-level records/variants, boxed
// otherwise).
func (g *CStubGenerator) freeStmts(b *cbody, t ir.Type, expr string, topLevel bool) {
	switch primName(t) {
	case "int", "bool", "float", "string":
		b.line("free(%s);", expr)
		return
	case "unit":
		return
	}
	switch tt := t.(type) {
	case ir.Option:
		b.line("if (%s != NULL) {", expr)
		b.indent++
		g.freeStmts(b, tt.Inner, expr, false)
		b.indent--
		b.line("}")
	case ir.List:
		pair := b.fresh("pair")
		b.line("void** %s = (void**)(%s);", pair, expr)
		if primName(tt.Inner) != "" && !isUnit(tt.Inner) {
			if isString(tt.Inner) {
				i := b.fresh("i")
				b.line("char** strs%s = (char**)%s[0];", i, pair)
				b.line("for (int %s = 0; %s < (int)(intptr_t)%s[1]; %s++) {", i, i, pair, i)
				b.line("    free(strs%s[%s]);", i, i)
				b.line("}")
			}
		} else {
			i := b.fresh("i")
			b.line("void** elems%s = (void**)%s[0];", i, pair)
			b.line("for (int %s = 0; %s < (int)(intptr_t)%s[1]; %s++) {", i, i, pair, i)
			b.indent++
			g.freeStmts(b, tt.Inner, fmt.Sprintf("elems%s[%s]", i, i), false)
			b.indent--
			b.line("}")
		}
		b.line("free(%s[0]);", pair)
		b.line("free(%s);", pair)
	case ir.Tuple:
		arr := b.fresh("tup")
		b.line("void** %s = (void**)(%s);", arr, expr)
		for i, e := range tt.Elems {
			g.freeStmts(b, e, fmt.Sprintf("%s[%d]", arr, i), false)
		}
		b.line("free(%s);", arr)
	case ir.Record:
		if topLevel {
			ptr := b.fresh("rec")
			b.line("%s_t* %s = (%s_t*)(%s);", tt.Name, ptr, tt.Name, expr)
			for _, f := range tt.Fields {
				g.freeStructField(b, f.Type, fmt.Sprintf("%s->%s", ptr, f.Name))
			}
			b.line("free(%s);", ptr)
			return
		}
		arr := b.fresh("fields")
		b.line("void** %s = (void**)(%s);", arr, expr)
		for i, f := range tt.Fields {
			g.freeStmts(b, f.Type, fmt.Sprintf("%s[%d]", arr, i), false)
		}
		b.line("free(%s);", arr)
	case ir.Variant:
		if topLevel {
			ptr := b.fresh("var")
			b.line("%s_t* %s = (%s_t*)(%s);", tt.Name, ptr, tt.Name, expr)
			g.freeVariantPayload(b, tt, fmt.Sprintf("%s->tag", ptr), fmt.Sprintf("%s->payload", ptr))
			b.line("free(%s);", ptr)
			return
		}
		arr := b.fresh("varbox")
		b.line("void** %s = (void**)(%s);", arr, expr)
		g.freeVariantPayload(b, tt, fmt.Sprintf("(int)(intptr_t)%s[0]", arr), fmt.Sprintf("%s[1]", arr))
		b.line("free(%s);", arr)
	case ir.TypeVar, ir.Named:
		// Opaque handles are not owned by the caller.
	}
}

func (g *CStubGenerator) freeStructField(b *cbody, t ir.Type, expr string) {
	switch primName(t) {
	case "string":
		b.line("free(%s);", expr)
		return
	case "int", "bool", "float", "unit":
		return
	}
	if _, ok := naturalOption(t); ok {
		b.line("if (%s != NULL) {", expr)
		b.line("    free(%s);", expr)
		b.line("}")
		return
	}
	b.line("if (%s != NULL) {", expr)
	b.indent++
	g.freeStmts(b, t, expr, false)
	b.indent--
	b.line("}")
}

func (g *CStubGenerator) freeVariantPayload(b *cbody, v ir.Variant, tagExpr, payloadExpr string) {
	b.line("switch (%s) {", tagExpr)
	for i, c := range v.Cases {
		if c.Payload == nil {
			continue
		}
		b.line("case %d: {", i)
		b.indent++
		fields := payloadFields(c.Payload)
		if len(fields) == 1 {
			g.freeStmts(b, fields[0], payloadExpr, false)
		} else {
			arr := b.fresh("payload")
			b.line("void** %s = (void**)(%s);", arr, payloadExpr)
			for fi, ft := range fields {
				g.freeStmts(b, ft, fmt.Sprintf("%s[%d]", arr, fi), false)
			}
			b.line("free(%s);", arr)
		}
		b.line("break;")
		b.indent--
		b.line("}")
	}
	b.line("default:")
	b.line("    break;")
	b.line("}")
}
