package generator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/polyglot/internal/ir"
	"github.com/roach88/polyglot/internal/naming"
	"github.com/roach88/polyglot/internal/registry"
)

// PythonGenerator emits <mod>_py.py: a ctypes wrapper exposing the
// module's functions under their sanitized names with Python type
// hints, dataclasses for records and variants, and explicit cleanup
// calls for every shim-allocated result.
type PythonGenerator struct{}

func (g *PythonGenerator) Name() string { return "python" }

func (g *PythonGenerator) Generate(mod *ir.Module, reg *registry.Registry, moduleName string) ([]File, error) {
	content, err := g.generate(mod, reg, moduleName)
	if err != nil {
		return nil, err
	}
	return []File{{Path: moduleName + "_py.py", Content: content}}, nil
}

func (g *PythonGenerator) generate(mod *ir.Module, reg *registry.Registry, moduleName string) (string, error) {
	// Resolve every hint up front; an unmapped type aborts the backend.
	hints := map[string]string{}
	for _, fn := range mod.Functions {
		for _, p := range fn.Params {
			h, err := reg.Mapping(p.Type, registry.TargetPython)
			if err != nil {
				return "", err
			}
			hints[fn.Name+"."+p.Name] = h
		}
		h, err := reg.Mapping(fn.Return, registry.TargetPython)
		if err != nil {
			return "", err
		}
		hints[fn.Name+".return"] = h
	}

	errName := naming.Pascal(moduleName) + "Error"

	var b strings.Builder
	fmt.Fprintf(&b, "\"\"\"Python bindings for %s. Generated by polyglot; do not edit.\"\"\"\n\n", moduleName)
	b.WriteString(g.imports(mod, hints))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "class %s(Exception):\n", errName)
	b.WriteString("    \"\"\"Raised when a value cannot cross the FFI boundary.\"\"\"\n\n\n")

	b.WriteString(g.loader(moduleName, errName))
	b.WriteString(g.cleanupSetup(mod))

	if classes := g.classes(mod); classes != "" {
		b.WriteString("\n\n")
		b.WriteString(classes)
	}

	if g.needsBoxing(mod) {
		b.WriteString("\n\n")
		b.WriteString(g.boxingHelpers(errName))
	}

	for _, fn := range mod.Functions {
		b.WriteString("\n\n")
		text, err := g.wrapper(fn, hints, errName)
		if err != nil {
			return "", err
		}
		b.WriteString(text)
	}
	b.WriteString("\n")
	return b.String(), nil
}

// imports renders the import block, pulling in only the typing names
// the hints actually use.
func (g *PythonGenerator) imports(mod *ir.Module, hints map[string]string) string {
	var b strings.Builder
	b.WriteString("import ctypes\n")
	b.WriteString("import os\n")

	hasDataclass := false
	for _, def := range mod.TypeDefs {
		switch def.Body.(type) {
		case ir.Record, ir.Variant:
			hasDataclass = true
		}
	}
	if hasDataclass {
		b.WriteString("from dataclasses import dataclass\n")
	}

	want := map[string]bool{}
	for _, h := range hints {
		for _, name := range []string{"Any", "List", "Optional", "Tuple"} {
			if strings.Contains(h, name) {
				want[name] = true
			}
		}
	}
	if len(want) > 0 {
		var names []string
		for n := range want {
			names = append(names, n)
		}
		sort.Strings(names)
		fmt.Fprintf(&b, "from typing import %s\n", strings.Join(names, ", "))
	}
	return b.String()
}

// loader emits library discovery, loading, and runtime bootstrap.
func (g *PythonGenerator) loader(moduleName, errName string) string {
	var b strings.Builder
	b.WriteString("def _load_library():\n")
	b.WriteString("    here = os.path.dirname(os.path.abspath(__file__))\n")
	b.WriteString("    candidates = [\n")
	fmt.Fprintf(&b, "        os.path.join(here, \"lib%s_bindings.so\"),\n", moduleName)
	fmt.Fprintf(&b, "        os.path.join(here, \"%s_bindings.so\"),\n", moduleName)
	fmt.Fprintf(&b, "        os.path.join(here, \"lib%s_bindings.dylib\"),\n", moduleName)
	b.WriteString("    ]\n")
	b.WriteString("    for path in candidates:\n")
	b.WriteString("        if os.path.exists(path):\n")
	b.WriteString("            return ctypes.CDLL(path)\n")
	fmt.Fprintf(&b, "    raise %s(\"cannot locate the %s shared library next to \" + __file__)\n", errName, moduleName)
	b.WriteString("\n\n")
	b.WriteString("_lib = _load_library()\n\n")
	fmt.Fprintf(&b, "_lib.%s%s_runtime_init.argtypes = []\n", SymbolPrefix, moduleName)
	fmt.Fprintf(&b, "_lib.%s%s_runtime_init.restype = None\n", SymbolPrefix, moduleName)
	fmt.Fprintf(&b, "_lib.%s%s_runtime_init()\n", SymbolPrefix, moduleName)
	return b.String()
}

// cleanupSetup declares the cleanup entry points' signatures.
func (g *PythonGenerator) cleanupSetup(mod *ir.Module) string {
	var b strings.Builder
	b.WriteString("\n")
	names := []string{
		"ml_free_option",
		"ml_free_list_result",
		"ml_free_string_list_result",
		"ml_free_tuple_list_result",
	}
	stubs := &CStubGenerator{}
	for _, fn := range mod.Functions {
		if stubs.needsTypedFree(fn.Return) {
			names = append(names, fmt.Sprintf("%sfree_%s_result", SymbolPrefix, fn.Name))
		}
	}
	for _, n := range names {
		fmt.Fprintf(&b, "_lib.%s.argtypes = [ctypes.c_void_p]\n", n)
		fmt.Fprintf(&b, "_lib.%s.restype = None\n", n)
	}
	return b.String()
}

// classes emits the public dataclasses and their ctypes.Structure
// mirrors for every record and variant definition.
func (g *PythonGenerator) classes(mod *ir.Module) string {
	var parts []string
	for _, def := range mod.TypeDefs {
		switch body := def.Body.(type) {
		case ir.Record:
			parts = append(parts, g.recordClasses(def.Name, body))
		case ir.Variant:
			parts = append(parts, g.variantClasses(def.Name, body))
		}
	}
	return strings.Join(parts, "\n\n")
}

func (g *PythonGenerator) recordClasses(name string, rec ir.Record) string {
	cls := naming.Pascal(name)
	var b strings.Builder
	b.WriteString("@dataclass\n")
	fmt.Fprintf(&b, "class %s:\n", cls)
	fmt.Fprintf(&b, "    \"\"\"Record '%s'.\"\"\"\n\n", name)
	for _, f := range rec.Fields {
		fmt.Fprintf(&b, "    %s: %s\n", f.Name, g.fieldHint(f.Type))
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "class _C%s(ctypes.Structure):\n", cls)
	b.WriteString("    _fields_ = [\n")
	for _, f := range rec.Fields {
		fmt.Fprintf(&b, "        (\"%s\", %s),\n", f.Name, structFieldCtype(f.Type))
	}
	b.WriteString("    ]\n")
	return b.String()
}

func (g *PythonGenerator) variantClasses(name string, v ir.Variant) string {
	base := naming.Pascal(name)
	var b strings.Builder
	fmt.Fprintf(&b, "class %s:\n", base)
	fmt.Fprintf(&b, "    \"\"\"Base class for '%s' variant values.\"\"\"\n\n", name)
	b.WriteString("    __slots__ = ()\n")
	for _, c := range v.Cases {
		b.WriteString("\n\n")
		b.WriteString("@dataclass\n")
		fmt.Fprintf(&b, "class %s(%s):\n", naming.Pascal(c.Name), base)
		if c.Payload == nil {
			b.WriteString("    pass\n")
		} else {
			fmt.Fprintf(&b, "    value: %s\n", g.fieldHint(c.Payload))
		}
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "class _C%s(ctypes.Structure):\n", base)
	b.WriteString("    _fields_ = [\n")
	b.WriteString("        (\"tag\", ctypes.c_int),\n")
	b.WriteString("        (\"payload\", ctypes.c_void_p),\n")
	b.WriteString("    ]\n")
	return b.String()
}

// fieldHint is the hint used inside dataclass bodies. Composites refer
// to their Pascal class names; everything else mirrors the registry's
// python table.
func (g *PythonGenerator) fieldHint(t ir.Type) string {
	switch tt := t.(type) {
	case ir.Primitive:
		switch tt.Name {
		case "string":
			return "str"
		case "int":
			return "int"
		case "float":
			return "float"
		case "bool":
			return "bool"
		case "unit":
			return "None"
		}
	case ir.Option:
		return "Optional[" + g.fieldHint(tt.Inner) + "]"
	case ir.List:
		return "List[" + g.fieldHint(tt.Inner) + "]"
	case ir.Tuple:
		var elems []string
		for _, e := range tt.Elems {
			elems = append(elems, g.fieldHint(e))
		}
		return "Tuple[" + strings.Join(elems, ", ") + "]"
	case ir.Record:
		return "\"" + naming.Pascal(tt.Name) + "\""
	case ir.Variant:
		return "\"" + naming.Pascal(tt.Name) + "\""
	}
	return "Any"
}

// structFieldCtype mirrors CStubGenerator.fieldCType.
func structFieldCtype(t ir.Type) string {
	switch primName(t) {
	case "int", "bool":
		return "ctypes.c_int"
	case "float":
		return "ctypes.c_double"
	case "string":
		return "ctypes.c_char_p"
	case "unit":
		return "ctypes.c_void_p"
	}
	if inner, ok := naturalOption(t); ok {
		if isString(inner) {
			return "ctypes.c_char_p"
		}
		switch primName(inner) {
		case "int", "bool":
			return "ctypes.POINTER(ctypes.c_int)"
		case "float":
			return "ctypes.POINTER(ctypes.c_double)"
		}
	}
	return "ctypes.c_void_p"
}

// needsBoxing reports whether any signature leaves the natural forms.
func (g *PythonGenerator) needsBoxing(mod *ir.Module) bool {
	natural := func(t ir.Type) bool {
		if primName(t) != "" {
			return true
		}
		if _, ok := naturalOption(t); ok {
			return true
		}
		if _, ok := naturalList(t); ok {
			return true
		}
		switch t.(type) {
		case ir.TypeVar, ir.Named:
			return true
		}
		return false
	}
	for _, fn := range mod.Functions {
		for _, p := range fn.Params {
			if !natural(p.Type) {
				return true
			}
		}
		if !natural(fn.Return) {
			return true
		}
	}
	return false
}

// boxingHelpers emits the descriptor-driven _box/_unbox pair that
// mirrors the shim's boxed value convention.
func (g *PythonGenerator) boxingHelpers(errName string) string {
	text := `def _box(desc, value, keep):
    """Box one value per the shim convention; keep anchors allocations."""
    kind = desc[0]
    if kind in ("int", "bool"):
        obj = ctypes.c_int(int(value))
        keep.append(obj)
        return ctypes.cast(ctypes.byref(obj), ctypes.c_void_p)
    if kind == "float":
        obj = ctypes.c_double(value)
        keep.append(obj)
        return ctypes.cast(ctypes.byref(obj), ctypes.c_void_p)
    if kind == "string":
        obj = ctypes.create_string_buffer(value.encode("utf-8"))
        keep.append(obj)
        return ctypes.cast(obj, ctypes.c_void_p)
    if kind == "unit":
        return None
    if kind == "option":
        if value is None:
            return None
        return _box(desc[1], value, keep)
    if kind == "list":
        elem = desc[1]
        if elem[0] in ("int", "bool"):
            array = (ctypes.c_int * len(value))(*[int(v) for v in value])
        elif elem[0] == "float":
            array = (ctypes.c_double * len(value))(*value)
        elif elem[0] == "string":
            array = (ctypes.c_char_p * len(value))(
                *[v.encode("utf-8") for v in value])
        else:
            array = (ctypes.c_void_p * len(value))(
                *[_box(elem, v, keep) for v in value])
        keep.append(array)
        pair = (ctypes.c_void_p * 2)(
            ctypes.cast(array, ctypes.c_void_p), ctypes.c_void_p(len(value)))
        keep.append(pair)
        return ctypes.cast(pair, ctypes.c_void_p)
    if kind == "tuple":
        boxed = [_box(d, v, keep) for d, v in zip(desc[1], value)]
        array = (ctypes.c_void_p * len(boxed))(*boxed)
        keep.append(array)
        return ctypes.cast(array, ctypes.c_void_p)
    if kind == "record":
        fields = desc[2]
        boxed = [_box(d, getattr(value, name), keep) for name, d in fields]
        array = (ctypes.c_void_p * len(boxed))(*boxed)
        keep.append(array)
        return ctypes.cast(array, ctypes.c_void_p)
    if kind == "variant":
        for index, (cls, payload) in enumerate(desc[1]):
            if isinstance(value, cls):
                boxed_payload = None
                if payload is not None:
                    boxed_payload = _box(payload, value.value, keep)
                pair = (ctypes.c_void_p * 2)(
                    ctypes.c_void_p(index), boxed_payload)
                keep.append(pair)
                return ctypes.cast(pair, ctypes.c_void_p)
        raise %ERR%("unknown variant value: %r" % (value,))
    if kind == "opaque":
        return value
    raise %ERR%("cannot box values of kind %r" % (kind,))


def _unbox(desc, addr):
    """Decode one boxed value; raises %ERR% on malformed input."""
    kind = desc[0]
    if kind in ("int", "bool"):
        if not addr:
            raise %ERR%("missing %s payload" % kind)
        v = ctypes.cast(addr, ctypes.POINTER(ctypes.c_int)).contents.value
        return bool(v) if kind == "bool" else v
    if kind == "float":
        if not addr:
            raise %ERR%("missing float payload")
        return ctypes.cast(addr, ctypes.POINTER(ctypes.c_double)).contents.value
    if kind == "string":
        if not addr:
            raise %ERR%("missing string payload")
        return ctypes.cast(addr, ctypes.c_char_p).value.decode("utf-8")
    if kind == "unit":
        return None
    if kind == "option":
        if not addr:
            return None
        return _unbox(desc[1], addr)
    if kind == "list":
        if not addr:
            raise %ERR%("missing list payload")
        pair = ctypes.cast(addr, ctypes.POINTER(ctypes.c_void_p))
        base, length = pair[0], pair[1] or 0
        elem = desc[1]
        if elem[0] in ("int", "bool"):
            array = ctypes.cast(base, ctypes.POINTER(ctypes.c_int))
            values = [array[i] for i in range(length)]
            return [bool(v) for v in values] if elem[0] == "bool" else values
        if elem[0] == "float":
            array = ctypes.cast(base, ctypes.POINTER(ctypes.c_double))
            return [array[i] for i in range(length)]
        if elem[0] == "string":
            array = ctypes.cast(base, ctypes.POINTER(ctypes.c_char_p))
            return [array[i].decode("utf-8") for i in range(length)]
        array = ctypes.cast(base, ctypes.POINTER(ctypes.c_void_p))
        return [_unbox(elem, array[i]) for i in range(length)]
    if kind == "tuple":
        if not addr:
            raise %ERR%("missing tuple payload")
        array = ctypes.cast(addr, ctypes.POINTER(ctypes.c_void_p))
        return tuple(_unbox(d, array[i]) for i, d in enumerate(desc[1]))
    if kind == "record":
        if not addr:
            raise %ERR%("missing record payload")
        cls, fields = desc[1], desc[2]
        array = ctypes.cast(addr, ctypes.POINTER(ctypes.c_void_p))
        return cls(**{
            name: _unbox(d, array[i]) for i, (name, d) in enumerate(fields)})
    if kind == "variant":
        if not addr:
            raise %ERR%("missing variant payload")
        pair = ctypes.cast(addr, ctypes.POINTER(ctypes.c_void_p))
        index = pair[0] or 0
        cases = desc[1]
        if index >= len(cases):
            raise %ERR%("variant tag %d out of range" % index)
        cls, payload = cases[index]
        if payload is None:
            return cls()
        return cls(_unbox(payload, pair[1]))
    if kind == "opaque":
        return addr
    raise %ERR%("cannot unbox values of kind %r" % (kind,))
`
	return strings.ReplaceAll(text, "%ERR%", errName)
}

// pyDesc renders the boxing descriptor literal for one type.
func pyDesc(t ir.Type) string {
	switch tt := t.(type) {
	case ir.Primitive:
		return fmt.Sprintf("(%q,)", tt.Name)
	case ir.Option:
		return fmt.Sprintf("(\"option\", %s)", pyDesc(tt.Inner))
	case ir.List:
		return fmt.Sprintf("(\"list\", %s)", pyDesc(tt.Inner))
	case ir.Tuple:
		var elems []string
		for _, e := range tt.Elems {
			elems = append(elems, pyDesc(e))
		}
		return fmt.Sprintf("(\"tuple\", (%s,))", strings.Join(elems, ", "))
	case ir.Record:
		var fields []string
		for _, f := range tt.Fields {
			fields = append(fields, fmt.Sprintf("(%q, %s)", f.Name, pyDesc(f.Type)))
		}
		return fmt.Sprintf("(\"record\", %s, (%s,))",
			naming.Pascal(tt.Name), strings.Join(fields, ", "))
	case ir.Variant:
		var cases []string
		for _, c := range tt.Cases {
			payload := "None"
			if c.Payload != nil {
				fields := payloadFields(c.Payload)
				if len(fields) == 1 {
					payload = pyDesc(fields[0])
				} else {
					var elems []string
					for _, f := range fields {
						elems = append(elems, pyDesc(f))
					}
					payload = fmt.Sprintf("(\"tuple\", (%s,))", strings.Join(elems, ", "))
				}
			}
			cases = append(cases, fmt.Sprintf("(%s, %s)", naming.Pascal(c.Name), payload))
		}
		return fmt.Sprintf("(\"variant\", (%s,))", strings.Join(cases, ", "))
	case ir.TypeVar, ir.Named:
		return "(\"opaque\",)"
	}
	return "(\"opaque\",)"
}

// wrapper renders the argtypes/restype setup and the wrapper def for
// one function.
func (g *PythonGenerator) wrapper(fn ir.Function, hints map[string]string, errName string) (string, error) {
	symbol := SymbolPrefix + fn.Name

	var argtypes []string
	for _, p := range fn.Params {
		argtypes = append(argtypes, paramCtypes(p.Type)...)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "_lib.%s.argtypes = [%s]\n", symbol, strings.Join(argtypes, ", "))
	fmt.Fprintf(&b, "_lib.%s.restype = %s\n", symbol, returnCtype(fn.Return))
	b.WriteString("\n\n")

	var params []string
	for _, p := range fn.Params {
		if isUnit(p.Type) {
			continue
		}
		params = append(params, fmt.Sprintf("%s: %s", p.Name, hints[fn.Name+"."+p.Name]))
	}
	fmt.Fprintf(&b, "def %s(%s) -> %s:\n", fn.Name, strings.Join(params, ", "), hints[fn.Name+".return"])
	doc := fn.Doc
	if doc == "" {
		doc = fmt.Sprintf("Call the '%s' function.", fn.Name)
	}
	fmt.Fprintf(&b, "    \"\"\"%s\"\"\"\n", doc)

	needsKeep := false
	for _, p := range fn.Params {
		if paramNeedsKeep(p.Type) {
			needsKeep = true
		}
	}
	if needsKeep {
		b.WriteString("    _keep = []\n")
	}

	var args []string
	for _, p := range fn.Params {
		a, setup := g.paramConversion(p)
		for _, l := range setup {
			b.WriteString("    " + l + "\n")
		}
		args = append(args, a...)
	}

	call := fmt.Sprintf("_lib.%s(%s)", symbol, strings.Join(args, ", "))
	for _, l := range g.returnConversion(fn, call, errName) {
		b.WriteString("    " + l + "\n")
	}
	return b.String(), nil
}

// paramCtypes maps one parameter to its argtypes entries.
func paramCtypes(t ir.Type) []string {
	if isUnit(t) {
		return nil
	}
	switch primName(t) {
	case "int", "bool":
		return []string{"ctypes.c_int"}
	case "float":
		return []string{"ctypes.c_double"}
	case "string":
		return []string{"ctypes.c_char_p"}
	}
	if inner, ok := naturalOption(t); ok {
		if isString(inner) {
			return []string{"ctypes.c_char_p"}
		}
		return []string{"ctypes.c_void_p"}
	}
	if elem, ok := naturalList(t); ok {
		return []string{"ctypes.POINTER(" + naturalElemCtype(elem) + ")", "ctypes.c_int"}
	}
	switch tt := t.(type) {
	case ir.Record:
		return []string{"ctypes.POINTER(_C" + naming.Pascal(tt.Name) + ")"}
	case ir.Variant:
		return []string{"ctypes.POINTER(_C" + naming.Pascal(tt.Name) + ")"}
	}
	return []string{"ctypes.c_void_p"}
}

func naturalElemCtype(t ir.Type) string {
	switch primName(t) {
	case "int", "bool":
		return "ctypes.c_int"
	case "float":
		return "ctypes.c_double"
	case "string":
		return "ctypes.c_char_p"
	}
	return "ctypes.c_void_p"
}

func returnCtype(t ir.Type) string {
	switch primName(t) {
	case "int", "bool":
		return "ctypes.c_int"
	case "float":
		return "ctypes.c_double"
	case "unit":
		return "None"
	}
	// Strings and every pointer-shaped result come back as raw
	// addresses so the cleanup call still has the original pointer.
	return "ctypes.c_void_p"
}

func paramNeedsKeep(t ir.Type) bool {
	if primName(t) != "" {
		return false
	}
	if _, ok := naturalOption(t); ok {
		return false
	}
	switch t.(type) {
	case ir.TypeVar, ir.Named:
		return false
	}
	return true
}

// paramConversion renders the setup lines and call arguments for one
// parameter.
func (g *PythonGenerator) paramConversion(p ir.Parameter) (args []string, setup []string) {
	t := p.Type
	if isUnit(t) {
		return nil, nil
	}
	switch primName(t) {
	case "int", "float":
		return []string{p.Name}, nil
	case "bool":
		return []string{fmt.Sprintf("int(%s)", p.Name)}, nil
	case "string":
		return []string{fmt.Sprintf("%s.encode(\"utf-8\")", p.Name)}, nil
	}
	if inner, ok := naturalOption(t); ok {
		if isString(inner) {
			return []string{fmt.Sprintf("None if %s is None else %s.encode(\"utf-8\")", p.Name, p.Name)}, nil
		}
		ctype := "ctypes.c_int"
		val := p.Name
		switch primName(inner) {
		case "float":
			ctype = "ctypes.c_double"
		case "bool":
			val = "int(" + p.Name + ")"
		}
		arg := "_" + p.Name
		setup = []string{
			fmt.Sprintf("%s = None", arg),
			fmt.Sprintf("if %s is not None:", p.Name),
			fmt.Sprintf("    %s_obj = %s(%s)", arg, ctype, val),
			fmt.Sprintf("    %s = ctypes.cast(ctypes.byref(%s_obj), ctypes.c_void_p)", arg, arg),
		}
		return []string{arg}, setup
	}
	if elem, ok := naturalList(t); ok {
		arr := "_" + p.Name + "_array"
		var build string
		switch primName(elem) {
		case "int":
			build = fmt.Sprintf("%s = (ctypes.c_int * len(%s))(*%s)", arr, p.Name, p.Name)
		case "bool":
			build = fmt.Sprintf("%s = (ctypes.c_int * len(%s))(*[int(v) for v in %s])", arr, p.Name, p.Name)
		case "float":
			build = fmt.Sprintf("%s = (ctypes.c_double * len(%s))(*%s)", arr, p.Name, p.Name)
		case "string":
			build = fmt.Sprintf("%s = (ctypes.c_char_p * len(%s))(*[v.encode(\"utf-8\") for v in %s])", arr, p.Name, p.Name)
		}
		return []string{arr, fmt.Sprintf("len(%s)", p.Name)}, []string{build}
	}
	switch tt := t.(type) {
	case ir.Record:
		arg := "_" + p.Name
		setup = append(setup, g.recordToStruct(tt, p.Name, arg)...)
		return []string{fmt.Sprintf("ctypes.byref(%s)", arg)}, setup
	case ir.Variant:
		arg := "_" + p.Name
		setup = append(setup, g.variantToStruct(tt, p.Name, arg)...)
		return []string{fmt.Sprintf("ctypes.byref(%s)", arg)}, setup
	case ir.TypeVar, ir.Named:
		return []string{p.Name}, nil
	}
	arg := "_" + p.Name
	setup = []string{fmt.Sprintf("%s = _box(%s, %s, _keep)", arg, pyDesc(t), p.Name)}
	return []string{arg}, setup
}

// recordToStruct builds the _C<Name> struct for a top-level record
// parameter.
func (g *PythonGenerator) recordToStruct(rec ir.Record, src, dst string) []string {
	cls := "_C" + naming.Pascal(rec.Name)
	lines := []string{fmt.Sprintf("%s = %s()", dst, cls)}
	for _, f := range rec.Fields {
		target := fmt.Sprintf("%s.%s", dst, f.Name)
		value := fmt.Sprintf("%s.%s", src, f.Name)
		switch primName(f.Type) {
		case "int":
			lines = append(lines, fmt.Sprintf("%s = %s", target, value))
		case "bool":
			lines = append(lines, fmt.Sprintf("%s = int(%s)", target, value))
		case "float":
			lines = append(lines, fmt.Sprintf("%s = %s", target, value))
		case "string":
			lines = append(lines, fmt.Sprintf("%s = %s.encode(\"utf-8\")", target, value))
		case "unit":
			lines = append(lines, fmt.Sprintf("%s = None", target))
		default:
			if inner, ok := naturalOption(f.Type); ok && isString(inner) {
				lines = append(lines, fmt.Sprintf(
					"%s = None if %s is None else %s.encode(\"utf-8\")", target, value, value))
			} else if inner, ok := naturalOption(f.Type); ok {
				ctype := "ctypes.c_int"
				if primName(inner) == "float" {
					ctype = "ctypes.c_double"
				}
				obj := fmt.Sprintf("%s_%s_obj", dst, f.Name)
				lines = append(lines,
					fmt.Sprintf("if %s is None:", value),
					fmt.Sprintf("    %s = None", target),
					"else:",
					fmt.Sprintf("    %s = %s(%s)", obj, ctype, value),
					fmt.Sprintf("    _keep.append(%s)", obj),
					fmt.Sprintf("    %s = ctypes.pointer(%s)", target, obj))
			} else {
				lines = append(lines, fmt.Sprintf(
					"%s = _box(%s, %s, _keep)", target, pyDesc(f.Type), value))
			}
		}
	}
	return lines
}

// variantToStruct builds the _C<Name> struct for a top-level variant
// parameter.
func (g *PythonGenerator) variantToStruct(v ir.Variant, src, dst string) []string {
	cls := "_C" + naming.Pascal(v.Name)
	lines := []string{fmt.Sprintf("%s = %s()", dst, cls)}
	for i, c := range v.Cases {
		cond := "elif"
		if i == 0 {
			cond = "if"
		}
		lines = append(lines, fmt.Sprintf("%s isinstance(%s, %s):", cond, src, naming.Pascal(c.Name)))
		lines = append(lines, fmt.Sprintf("    %s.tag = %d", dst, i))
		if c.Payload == nil {
			lines = append(lines, fmt.Sprintf("    %s.payload = None", dst))
		} else {
			fields := payloadFields(c.Payload)
			desc := pyDesc(fields[0])
			if len(fields) > 1 {
				var elems []string
				for _, f := range fields {
					elems = append(elems, pyDesc(f))
				}
				desc = fmt.Sprintf("(\"tuple\", (%s,))", strings.Join(elems, ", "))
			}
			lines = append(lines, fmt.Sprintf(
				"    %s.payload = _box(%s, %s.value, _keep)", dst, desc, src))
		}
	}
	return lines
}

// returnConversion renders the call, result decoding, and cleanup.
func (g *PythonGenerator) returnConversion(fn ir.Function, call, errName string) []string {
	t := fn.Return
	switch primName(t) {
	case "int", "float":
		return []string{fmt.Sprintf("return %s", call)}
	case "bool":
		return []string{fmt.Sprintf("return bool(%s)", call)}
	case "unit":
		return []string{call, "return None"}
	case "string":
		return []string{
			fmt.Sprintf("_raw = %s", call),
			"if not _raw:",
			fmt.Sprintf("    raise %s(\"%s returned an invalid string\")", errName, fn.Name),
			"value = ctypes.cast(_raw, ctypes.c_char_p).value.decode(\"utf-8\")",
			"_lib.ml_free_option(_raw)",
			"return value",
		}
	}
	if inner, ok := naturalOption(t); ok {
		lines := []string{
			fmt.Sprintf("_raw = %s", call),
			"if not _raw:",
			"    return None",
		}
		switch primName(inner) {
		case "string":
			lines = append(lines, "value = ctypes.cast(_raw, ctypes.c_char_p).value.decode(\"utf-8\")")
		case "int":
			lines = append(lines, "value = ctypes.cast(_raw, ctypes.POINTER(ctypes.c_int)).contents.value")
		case "bool":
			lines = append(lines, "value = bool(ctypes.cast(_raw, ctypes.POINTER(ctypes.c_int)).contents.value)")
		case "float":
			lines = append(lines, "value = ctypes.cast(_raw, ctypes.POINTER(ctypes.c_double)).contents.value")
		}
		lines = append(lines, "_lib.ml_free_option(_raw)", "return value")
		return lines
	}
	if elem, ok := naturalList(t); ok {
		lines := []string{
			fmt.Sprintf("_raw = %s", call),
			"if not _raw:",
			fmt.Sprintf("    raise %s(\"%s returned an invalid list\")", errName, fn.Name),
			"_pair = ctypes.cast(_raw, ctypes.POINTER(ctypes.c_void_p))",
			"_length = _pair[1] or 0",
		}
		free := "ml_free_list_result"
		switch primName(elem) {
		case "string":
			lines = append(lines,
				"_array = ctypes.cast(_pair[0], ctypes.POINTER(ctypes.c_char_p))",
				"values = [_array[i].decode(\"utf-8\") for i in range(_length)]")
			free = "ml_free_string_list_result"
		case "int":
			lines = append(lines,
				"_array = ctypes.cast(_pair[0], ctypes.POINTER(ctypes.c_int))",
				"values = [_array[i] for i in range(_length)]")
		case "bool":
			lines = append(lines,
				"_array = ctypes.cast(_pair[0], ctypes.POINTER(ctypes.c_int))",
				"values = [bool(_array[i]) for i in range(_length)]")
		case "float":
			lines = append(lines,
				"_array = ctypes.cast(_pair[0], ctypes.POINTER(ctypes.c_double))",
				"values = [_array[i] for i in range(_length)]")
		}
		lines = append(lines, fmt.Sprintf("_lib.%s(_raw)", free), "return values")
		return lines
	}
	switch tt := t.(type) {
	case ir.Record:
		return g.structReturn(fn, call, errName,
			"_C"+naming.Pascal(tt.Name), g.recordFromStruct(tt))
	case ir.Variant:
		return g.structReturn(fn, call, errName,
			"_C"+naming.Pascal(tt.Name), g.variantFromStruct(tt))
	case ir.TypeVar, ir.Named:
		return []string{fmt.Sprintf("return %s", call)}
	}
	lines := []string{
		fmt.Sprintf("_raw = %s", call),
		"if not _raw:",
	}
	if _, ok := t.(ir.Option); ok {
		// NULL is the canonical absent sentinel shared with the shim.
		lines = append(lines, "    return None")
	} else {
		lines = append(lines, fmt.Sprintf("    raise %s(\"%s returned an invalid value\")", errName, fn.Name))
	}
	return append(lines,
		fmt.Sprintf("value = _unbox(%s, _raw)", pyDesc(t)),
		fmt.Sprintf("_lib.%sfree_%s_result(_raw)", SymbolPrefix, fn.Name),
		"return value",
	)
}

// structReturn wraps struct decoding with the shared raw-pointer
// handling and per-function cleanup.
func (g *PythonGenerator) structReturn(fn ir.Function, call, errName, cls string, decode []string) []string {
	lines := []string{
		fmt.Sprintf("_raw = %s", call),
		"if not _raw:",
		fmt.Sprintf("    raise %s(\"%s returned an invalid value\")", errName, fn.Name),
		fmt.Sprintf("_struct = ctypes.cast(_raw, ctypes.POINTER(%s)).contents", cls),
	}
	lines = append(lines, decode...)
	lines = append(lines,
		fmt.Sprintf("_lib.%sfree_%s_result(_raw)", SymbolPrefix, fn.Name),
		"return value")
	return lines
}

// recordFromStruct decodes _struct into the public dataclass.
func (g *PythonGenerator) recordFromStruct(rec ir.Record) []string {
	var fields []string
	var pre []string
	for _, f := range rec.Fields {
		member := fmt.Sprintf("_struct.%s", f.Name)
		switch primName(f.Type) {
		case "int", "float":
			fields = append(fields, fmt.Sprintf("%s=%s", f.Name, member))
		case "bool":
			fields = append(fields, fmt.Sprintf("%s=bool(%s)", f.Name, member))
		case "string":
			fields = append(fields, fmt.Sprintf("%s=%s.decode(\"utf-8\")", f.Name, member))
		case "unit":
			fields = append(fields, fmt.Sprintf("%s=None", f.Name))
		default:
			if inner, ok := naturalOption(f.Type); ok {
				local := "_" + f.Name
				if isString(inner) {
					pre = append(pre, fmt.Sprintf(
						"%s = None if %s is None else %s.decode(\"utf-8\")", local, member, member))
				} else {
					decoded := fmt.Sprintf("%s.contents.value", member)
					if primName(inner) == "bool" {
						decoded = "bool(" + decoded + ")"
					}
					pre = append(pre, fmt.Sprintf(
						"%s = %s if %s else None", local, decoded, member))
				}
				fields = append(fields, fmt.Sprintf("%s=%s", f.Name, local))
			} else {
				fields = append(fields, fmt.Sprintf(
					"%s=_unbox(%s, %s)", f.Name, pyDesc(f.Type), member))
			}
		}
	}
	lines := pre
	lines = append(lines, fmt.Sprintf(
		"value = %s(%s)", naming.Pascal(rec.Name), strings.Join(fields, ", ")))
	return lines
}

// variantFromStruct decodes _struct into the matching case dataclass.
func (g *PythonGenerator) variantFromStruct(v ir.Variant) []string {
	var cases []string
	for _, c := range v.Cases {
		payload := "None"
		if c.Payload != nil {
			fields := payloadFields(c.Payload)
			if len(fields) == 1 {
				payload = pyDesc(fields[0])
			} else {
				var elems []string
				for _, f := range fields {
					elems = append(elems, pyDesc(f))
				}
				payload = fmt.Sprintf("(\"tuple\", (%s,))", strings.Join(elems, ", "))
			}
		}
		cases = append(cases, fmt.Sprintf("(%s, %s)", naming.Pascal(c.Name), payload))
	}
	return []string{
		fmt.Sprintf("_cases = (%s,)", strings.Join(cases, ", ")),
		"_cls, _payload = _cases[_struct.tag]",
		"if _payload is None:",
		"    value = _cls()",
		"else:",
		"    value = _cls(_unbox(_payload, _struct.payload))",
	}
}
