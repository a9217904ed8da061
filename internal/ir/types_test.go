package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqualStructural(t *testing.T) {
	tests := []struct {
		name string
		a, b Type
		want bool
	}{
		{"same primitive", Int, Primitive{Name: "int"}, true},
		{"different primitive", Int, Float, false},
		{"primitive vs option", Int, Option{Inner: Int}, false},
		{"nested option", Option{Inner: List{Inner: String}}, Option{Inner: List{Inner: String}}, true},
		{"option inner differs", Option{Inner: Int}, Option{Inner: String}, false},
		{
			"tuple equal",
			Tuple{Elems: []Type{Int, String}},
			Tuple{Elems: []Type{Int, String}},
			true,
		},
		{
			"tuple order matters",
			Tuple{Elems: []Type{Int, String}},
			Tuple{Elems: []Type{String, Int}},
			false,
		},
		{
			"tuple arity matters",
			Tuple{Elems: []Type{Int, String}},
			Tuple{Elems: []Type{Int, String, Bool}},
			false,
		},
		{
			"record equal",
			Record{Name: "user", Fields: []Field{{Name: "name", Type: String}, {Name: "age", Type: Int}}},
			Record{Name: "user", Fields: []Field{{Name: "name", Type: String}, {Name: "age", Type: Int}}},
			true,
		},
		{
			"record field name differs",
			Record{Name: "user", Fields: []Field{{Name: "name", Type: String}}},
			Record{Name: "user", Fields: []Field{{Name: "label", Type: String}}},
			false,
		},
		{
			"record name differs",
			Record{Name: "user", Fields: []Field{{Name: "name", Type: String}}},
			Record{Name: "account", Fields: []Field{{Name: "name", Type: String}}},
			false,
		},
		{
			"variant equal",
			Variant{Name: "result", Cases: []Case{{Name: "Ok", Payload: String}, {Name: "Error"}}},
			Variant{Name: "result", Cases: []Case{{Name: "Ok", Payload: String}, {Name: "Error"}}},
			true,
		},
		{
			"variant payload presence differs",
			Variant{Name: "result", Cases: []Case{{Name: "Ok", Payload: String}}},
			Variant{Name: "result", Cases: []Case{{Name: "Ok"}}},
			false,
		},
		{"typevar equal", TypeVar{Symbol: "a"}, TypeVar{Symbol: "a"}, true},
		{"typevar differs", TypeVar{Symbol: "a"}, TypeVar{Symbol: "b"}, false},
		{"named equal", Named{Name: "handle"}, Named{Name: "handle"}, true},
		{"named vs primitive", Named{Name: "int"}, Int, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
			assert.Equal(t, tt.want, Equal(tt.b, tt.a), "Equal must be symmetric")
		})
	}
}

func TestStringRendering(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{Int, "int"},
		{Option{Inner: String}, "string option"},
		{List{Inner: Int}, "int list"},
		{Option{Inner: List{Inner: Tuple{Elems: []Type{Int, String}}}}, "(int * string) list option"},
		{Tuple{Elems: []Type{Int, String, Bool}}, "(int * string * bool)"},
		{Tuple{Elems: []Type{Option{Inner: Int}, List{Inner: String}}}, "(int option * string list)"},
		{TypeVar{Symbol: "a"}, "'a"},
		{Named{Name: "handle"}, "handle"},
		{Record{Name: "user"}, "user"},
		{Variant{Name: "result"}, "result"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.String())
		})
	}
}

func TestClassification(t *testing.T) {
	assert.True(t, IsContainer(Option{Inner: Int}))
	assert.True(t, IsContainer(List{Inner: Int}))
	assert.True(t, IsContainer(Tuple{Elems: []Type{Int, Int}}))
	assert.False(t, IsContainer(Int))
	assert.False(t, IsContainer(Record{Name: "user"}))

	assert.True(t, IsComposite(Record{Name: "user"}))
	assert.True(t, IsComposite(Variant{Name: "result"}))
	assert.False(t, IsComposite(Option{Inner: Int}))
	assert.False(t, IsComposite(Int))
}

func TestKeyDistinguishesSameNamedShapes(t *testing.T) {
	// Two same-named records with different shapes must not share a
	// cache key.
	a := Record{Name: "user", Fields: []Field{{Name: "name", Type: String}}}
	b := Record{Name: "user", Fields: []Field{{Name: "name", Type: Int}}}
	assert.NotEqual(t, Key(a), Key(b))

	// But String() renders both by name.
	assert.Equal(t, a.String(), b.String())
}

func TestKeyStable(t *testing.T) {
	typ := Option{Inner: List{Inner: Tuple{Elems: []Type{Int, String}}}}
	assert.Equal(t, Key(typ), Key(typ))
	assert.NotEqual(t, Key(typ), Key(List{Inner: Tuple{Elems: []Type{Int, String}}}))
}

func TestModuleLookups(t *testing.T) {
	mod := &Module{
		Name: "example",
		Functions: []Function{
			{Name: "greet", Params: []Parameter{{Name: "input", Type: String}}, Return: String},
		},
		TypeDefs: []TypeDef{
			{Name: "user", Body: Record{Name: "user", Fields: []Field{{Name: "name", Type: String}}}},
		},
	}

	fn := mod.Function("greet")
	require.NotNil(t, fn)
	assert.Equal(t, 1, fn.Arity())
	assert.Nil(t, mod.Function("missing"))

	def := mod.TypeDef("user")
	require.NotNil(t, def)
	assert.Equal(t, "type user = { name: string }", def.Render())
	assert.Nil(t, mod.TypeDef("missing"))
}

func TestFunctionString(t *testing.T) {
	fn := Function{
		Name: "add",
		Params: []Parameter{
			{Name: "input", Type: Int},
			{Name: "arg1", Type: Int},
		},
		Return: Int,
	}
	assert.Equal(t, "add(input: int, arg1: int) -> int", fn.String())
}

func TestTypeDefRenderVariant(t *testing.T) {
	def := TypeDef{
		Name: "shape",
		Body: Variant{Name: "shape", Cases: []Case{
			{Name: "Circle", Payload: Float},
			{Name: "Point"},
			{Name: "Rect", Payload: Tuple{Elems: []Type{Float, Float}}},
		}},
	}
	assert.Equal(t, "type shape = Circle of float | Point | Rect of (float * float)", def.Render())
}
