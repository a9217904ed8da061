package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/polyglot/internal/ir"
)

func mustParse(t *testing.T, source string) *ir.Module {
	t.Helper()
	mod, err := Parse(source, "example.mli")
	require.NoError(t, err)
	return mod
}

func parseErr(t *testing.T, source string) *ParseError {
	t.Helper()
	_, err := Parse(source, "example.mli")
	require.Error(t, err)
	var pe *ParseError
	require.True(t, errors.As(err, &pe), "expected *ParseError, got %T", err)
	return pe
}

func TestParseSimpleSignature(t *testing.T) {
	mod := mustParse(t, "val greet : string -> string\n")

	require.Len(t, mod.Functions, 1)
	fn := mod.Functions[0]
	assert.Equal(t, "greet", fn.Name)
	require.Len(t, fn.Params, 1)
	assert.Equal(t, "input", fn.Params[0].Name)
	assert.True(t, ir.Equal(ir.String, fn.Params[0].Type))
	assert.True(t, ir.Equal(ir.String, fn.Return))
}

func TestParseCurriedParameters(t *testing.T) {
	mod := mustParse(t, "val add : int -> int -> int\n")

	fn := mod.Function("add")
	require.NotNil(t, fn)
	require.Equal(t, 2, fn.Arity())
	assert.Equal(t, "input", fn.Params[0].Name)
	assert.Equal(t, "arg1", fn.Params[1].Name)
	assert.True(t, ir.Equal(ir.Int, fn.Return))
}

func TestParseUnitParameter(t *testing.T) {
	mod := mustParse(t, "val get_all : unit -> string list\n")

	fn := mod.Function("get_all")
	require.NotNil(t, fn)
	require.Equal(t, 1, fn.Arity())
	assert.True(t, ir.Equal(ir.Unit, fn.Params[0].Type))
	assert.True(t, ir.Equal(ir.List{Inner: ir.String}, fn.Return))
}

func TestParseNestedContainers(t *testing.T) {
	mod := mustParse(t, "val f : (int * string) list option -> unit\n")

	fn := mod.Function("f")
	require.NotNil(t, fn)
	want := ir.Option{Inner: ir.List{Inner: ir.Tuple{Elems: []ir.Type{ir.Int, ir.String}}}}
	assert.True(t, ir.Equal(want, fn.Params[0].Type),
		"got %s", fn.Params[0].Type)
	assert.Equal(t, "(int * string) list option", fn.Params[0].Type.String())
}

func TestParseTupleArity(t *testing.T) {
	mod := mustParse(t, "val f : int * string * bool -> unit\n")

	fn := mod.Function("f")
	require.NotNil(t, fn)
	tup, ok := fn.Params[0].Type.(ir.Tuple)
	require.True(t, ok)
	assert.Len(t, tup.Elems, 3)
}

func TestParseOptionReturn(t *testing.T) {
	mod := mustParse(t, "val find_key : string -> int option\n")

	fn := mod.Function("find_key")
	require.NotNil(t, fn)
	assert.True(t, ir.Equal(ir.Option{Inner: ir.Int}, fn.Return))
}

func TestParseTypeVariable(t *testing.T) {
	mod := mustParse(t, "val ident : 'a -> 'a\n")

	fn := mod.Function("ident")
	require.NotNil(t, fn)
	assert.True(t, ir.Equal(ir.TypeVar{Symbol: "a"}, fn.Params[0].Type))
	assert.Equal(t, "'a", fn.Return.String())
}

func TestParseUnknownNameStaysOpaque(t *testing.T) {
	mod := mustParse(t, "val open_handle : string -> handle\n")

	fn := mod.Function("open_handle")
	require.NotNil(t, fn)
	assert.True(t, ir.Equal(ir.Named{Name: "handle"}, fn.Return))
}

func TestParseRecord(t *testing.T) {
	source := `
type user = { name: string; age: int }
val get_user : int -> user
`
	mod := mustParse(t, source)

	def := mod.TypeDef("user")
	require.NotNil(t, def)
	rec, ok := def.Body.(ir.Record)
	require.True(t, ok)
	require.Len(t, rec.Fields, 2)
	assert.Equal(t, "name", rec.Fields[0].Name)
	assert.Equal(t, "age", rec.Fields[1].Name)

	// The reference in the signature resolves to the definition body.
	fn := mod.Function("get_user")
	require.NotNil(t, fn)
	assert.True(t, ir.Equal(rec, fn.Return))
}

func TestParseMultilineRecord(t *testing.T) {
	source := `
type config = {
  host: string;
  port: int;
  tags: string list
}
`
	mod := mustParse(t, source)

	def := mod.TypeDef("config")
	require.NotNil(t, def)
	rec, ok := def.Body.(ir.Record)
	require.True(t, ok)
	require.Len(t, rec.Fields, 3)
	assert.True(t, ir.Equal(ir.List{Inner: ir.String}, rec.Fields[2].Type))
}

func TestParseVariant(t *testing.T) {
	source := `
type shape = Circle of float | Rect of float * float | Point
val area : shape -> float
`
	mod := mustParse(t, source)

	def := mod.TypeDef("shape")
	require.NotNil(t, def)
	v, ok := def.Body.(ir.Variant)
	require.True(t, ok)
	require.Len(t, v.Cases, 3)

	assert.Equal(t, "Circle", v.Cases[0].Name)
	assert.True(t, ir.Equal(ir.Float, v.Cases[0].Payload))

	// An unparenthesized product payload is a multi-field constructor.
	rect, ok := v.Cases[1].Payload.(ir.Tuple)
	require.True(t, ok)
	assert.Len(t, rect.Elems, 2)

	assert.Equal(t, "Point", v.Cases[2].Name)
	assert.Nil(t, v.Cases[2].Payload)
}

func TestParseVariantLeadingPipe(t *testing.T) {
	source := `
type status =
  | Active
  | Suspended
  | Banned of string
`
	mod := mustParse(t, source)

	def := mod.TypeDef("status")
	require.NotNil(t, def)
	v, ok := def.Body.(ir.Variant)
	require.True(t, ok)
	require.Len(t, v.Cases, 3)
	assert.Equal(t, []string{"Active", "Suspended", "Banned"},
		[]string{v.Cases[0].Name, v.Cases[1].Name, v.Cases[2].Name})
}

func TestParseDocComments(t *testing.T) {
	source := `(** Utility bindings. *)

(** Greets someone by name. *)
val greet : string -> string

val add : int -> int -> int
`
	mod := mustParse(t, source)

	assert.Equal(t, "Utility bindings.", mod.Doc)
	fn := mod.Function("greet")
	require.NotNil(t, fn)
	assert.Equal(t, "Greets someone by name.", fn.Doc)
	assert.Empty(t, mod.Function("add").Doc)
}

func TestParseIgnoresPlainComments(t *testing.T) {
	source := `(* internal note, not documentation *)
val f : int -> int
`
	mod := mustParse(t, source)
	fn := mod.Function("f")
	require.NotNil(t, fn)
	assert.Empty(t, fn.Doc)
	assert.Empty(t, mod.Doc)
}

func TestParseMultilineSignature(t *testing.T) {
	source := `val transform :
  string ->
  int ->
  string
`
	mod := mustParse(t, source)
	fn := mod.Function("transform")
	require.NotNil(t, fn)
	assert.Equal(t, 2, fn.Arity())
}

func TestDeclarationOrderPreserved(t *testing.T) {
	source := `
val zulu : int -> int
val alpha : int -> int
val mike : int -> int
`
	mod := mustParse(t, source)
	require.Len(t, mod.Functions, 3)
	assert.Equal(t, "zulu", mod.Functions[0].Name)
	assert.Equal(t, "alpha", mod.Functions[1].Name)
	assert.Equal(t, "mike", mod.Functions[2].Name)
}

func TestModuleNameFromFilename(t *testing.T) {
	mod, err := Parse("val f : int -> int\n", "src/my-crypto-lib.mli")
	require.NoError(t, err)
	assert.Equal(t, "my_crypto_lib", mod.Name)
}

func TestParsePrimedIdentifier(t *testing.T) {
	mod := mustParse(t, "val find' : string -> int option\n")
	require.NotNil(t, mod.Function("find"))
}

// Rendering a parsed type and reparsing it yields an equal type.
func TestRenderingRoundTrip(t *testing.T) {
	signatures := []string{
		"val a : int -> string",
		"val b : (int * string) list option -> unit",
		"val c : string option -> int list list",
		"val d : (float * float) -> bool",
		"val e : 'a list -> 'a option",
	}
	for _, sig := range signatures {
		t.Run(sig, func(t *testing.T) {
			mod := mustParse(t, sig+"\n")
			require.Len(t, mod.Functions, 1)
			fn := mod.Functions[0]

			rendered := "val f : " + fn.Params[0].Type.String() + " -> " + fn.Return.String()
			reparsed := mustParse(t, rendered+"\n")
			fn2 := reparsed.Functions[0]
			assert.True(t, ir.Equal(fn.Params[0].Type, fn2.Params[0].Type),
				"param: %s vs %s", fn.Params[0].Type, fn2.Params[0].Type)
			assert.True(t, ir.Equal(fn.Return, fn2.Return),
				"return: %s vs %s", fn.Return, fn2.Return)
		})
	}
}

func TestErrorFunctionValueRejected(t *testing.T) {
	pe := parseErr(t, "val apply : (int -> int) -> int\n")
	assert.Contains(t, pe.Message, "function values cannot cross the FFI boundary")
	require.NotEmpty(t, pe.Suggestions)
}

func TestErrorMissingColon(t *testing.T) {
	pe := parseErr(t, "val greet string -> string\n")
	assert.Contains(t, pe.Message, "expected ':'")
	assert.NotEmpty(t, pe.Suggestions)
}

func TestErrorMissingReturnType(t *testing.T) {
	pe := parseErr(t, "val x : int\n")
	assert.Contains(t, pe.Message, "at least one parameter and a return type")
}

func TestErrorUnsupportedDeclaration(t *testing.T) {
	pe := parseErr(t, "let x = 3\n")
	assert.Contains(t, pe.Message, "unsupported declaration")
	assert.Equal(t, 1, pe.Line)
}

func TestErrorArraySuggestsList(t *testing.T) {
	pe := parseErr(t, "val f : int array -> int\n")
	found := false
	for _, s := range pe.Suggestions {
		if strings.Contains(s, "list") {
			found = true
		}
	}
	assert.True(t, found, "suggestions should mention 'list': %v", pe.Suggestions)
}

func TestErrorTypeAliasRejected(t *testing.T) {
	pe := parseErr(t, "type t = int\n")
	assert.Contains(t, pe.Message, "uppercase")
	assert.Contains(t, pe.Message, "aliases are not supported")
}

func TestErrorBareOption(t *testing.T) {
	pe := parseErr(t, "val f : option -> int\n")
	assert.Contains(t, pe.Message, "missing element type")
}

func TestErrorPositionReported(t *testing.T) {
	source := `val ok : int -> int

val bad : (int -> int) -> int
`
	pe := parseErr(t, source)
	assert.Equal(t, "example.mli", pe.File)
	assert.Equal(t, 3, pe.Line)
	assert.Contains(t, pe.Error(), "example.mli:3:")
}

func TestResolveRecursiveTypeStops(t *testing.T) {
	// A self-referential definition keeps the Named reference instead
	// of expanding forever.
	source := `
type tree = Leaf of int | Node of tree * tree
val depth : tree -> int
`
	mod := mustParse(t, source)

	def := mod.TypeDef("tree")
	require.NotNil(t, def)
	v, ok := def.Body.(ir.Variant)
	require.True(t, ok)
	node := v.Cases[1]
	payload, ok := node.Payload.(ir.Tuple)
	require.True(t, ok)
	assert.True(t, ir.Equal(ir.Named{Name: "tree"}, payload.Elems[0]))
}
