package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/polyglot/internal/ir"
)

func TestBuiltinPrimitives(t *testing.T) {
	reg := NewWithBuiltins()

	tests := []struct {
		name   string
		typ    ir.Type
		target Target
		want   string
	}{
		{"string to c", ir.String, TargetC, "char*"},
		{"string to python", ir.String, TargetPython, "str"},
		{"string to rust", ir.String, TargetRust, "String"},
		{"int to rust", ir.Int, TargetRust, "i64"},
		{"float to c", ir.Float, TargetC, "double"},
		{"bool to c", ir.Bool, TargetC, "int"},
		{"unit to c", ir.Unit, TargetC, "void"},
		{"unit to python", ir.Unit, TargetPython, "None"},
		{"unit to rust", ir.Unit, TargetRust, "()"},
		{"typevar to c", ir.TypeVar{Symbol: "a"}, TargetC, "void*"},
		{"typevar to python", ir.TypeVar{Symbol: "b"}, TargetPython, "Any"},
		{"typevar to ocaml", ir.TypeVar{Symbol: "a"}, TargetOCaml, "'a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := reg.Mapping(tt.typ, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContainerComposition(t *testing.T) {
	reg := NewWithBuiltins()

	tests := []struct {
		name   string
		typ    ir.Type
		target Target
		want   string
	}{
		{"option to python", ir.Option{Inner: ir.String}, TargetPython, "Optional[str]"},
		{"option to c", ir.Option{Inner: ir.Int}, TargetC, "int*"},
		{"option to rust", ir.Option{Inner: ir.String}, TargetRust, "Option<String>"},
		{"list to python", ir.List{Inner: ir.Int}, TargetPython, "List[int]"},
		{"list to c", ir.List{Inner: ir.String}, TargetC, "char**"},
		{"list to ocaml", ir.List{Inner: ir.String}, TargetOCaml, "string list"},
		{
			"nested option list to python",
			ir.Option{Inner: ir.List{Inner: ir.Int}},
			TargetPython,
			"Optional[List[int]]",
		},
		{
			"tuple to python",
			ir.Tuple{Elems: []ir.Type{ir.Int, ir.String}},
			TargetPython,
			"Tuple[int, str]",
		},
		{
			"tuple to ocaml",
			ir.Tuple{Elems: []ir.Type{ir.Int, ir.String}},
			TargetOCaml,
			"(int * string)",
		},
		{"tuple to c is boxed", ir.Tuple{Elems: []ir.Type{ir.Int, ir.String}}, TargetC, "void**"},
		{
			"deep nesting",
			ir.Option{Inner: ir.List{Inner: ir.Tuple{Elems: []ir.Type{ir.Int, ir.String}}}},
			TargetPython,
			"Optional[List[Tuple[int, str]]]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := reg.Mapping(tt.typ, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompositeSpellings(t *testing.T) {
	reg := NewWithBuiltins()
	rec := ir.Record{Name: "user_profile", Fields: []ir.Field{{Name: "name", Type: ir.String}}}
	v := ir.Variant{Name: "result", Cases: []ir.Case{{Name: "Ok", Payload: ir.Int}, {Name: "Error"}}}

	got, err := reg.Mapping(rec, TargetOCaml)
	require.NoError(t, err)
	assert.Equal(t, "user_profile", got)

	got, err = reg.Mapping(rec, TargetC)
	require.NoError(t, err)
	assert.Equal(t, "user_profile_t", got)

	got, err = reg.Mapping(rec, TargetPython)
	require.NoError(t, err)
	assert.Equal(t, "UserProfile", got)

	got, err = reg.Mapping(v, TargetRust)
	require.NoError(t, err)
	assert.Equal(t, "Result", got)
}

func TestConverterOverridesDefault(t *testing.T) {
	reg := NewWithBuiltins()
	rec := ir.Record{Name: "user", Fields: []ir.Field{{Name: "name", Type: ir.String}}}

	got, err := reg.Mapping(rec, TargetPython)
	require.NoError(t, err)
	assert.Equal(t, "User", got)

	reg.RegisterConverter("user", TargetPython, func(ir.Type) (string, error) {
		return "UserDTO", nil
	})

	got, err = reg.Mapping(rec, TargetPython)
	require.NoError(t, err)
	assert.Equal(t, "UserDTO", got)

	// Other targets keep the default spelling.
	got, err = reg.Mapping(rec, TargetC)
	require.NoError(t, err)
	assert.Equal(t, "user_t", got)
}

func TestRegisterPrimitiveInvalidatesCache(t *testing.T) {
	reg := NewWithBuiltins()

	got, err := reg.Mapping(ir.Option{Inner: ir.Int}, TargetC)
	require.NoError(t, err)
	assert.Equal(t, "int*", got)

	reg.RegisterPrimitive("int", map[Target]string{
		TargetOCaml:  "int",
		TargetC:      "int64_t",
		TargetPython: "int",
		TargetRust:   "i64",
	})

	got, err = reg.Mapping(ir.Option{Inner: ir.Int}, TargetC)
	require.NoError(t, err)
	assert.Equal(t, "int64_t*", got)
}

func TestNamedTypeResolution(t *testing.T) {
	reg := NewWithBuiltins()
	handle := ir.Named{Name: "handle"}

	_, err := reg.Mapping(handle, TargetC)
	require.Error(t, err)
	var mapErr *TypeMappingError
	require.True(t, errors.As(err, &mapErr))
	assert.Equal(t, TargetC, mapErr.Target)
	assert.Contains(t, err.Error(), "no c mapping for type 'handle'")

	reg.RegisterPrimitive("handle", map[Target]string{
		TargetOCaml:  "handle",
		TargetC:      "void*",
		TargetPython: "int",
		TargetRust:   "usize",
	})

	got, err := reg.Mapping(handle, TargetC)
	require.NoError(t, err)
	assert.Equal(t, "void*", got)
}

func TestNamedConverterPrecedence(t *testing.T) {
	reg := NewWithBuiltins()
	reg.RegisterPrimitive("handle", map[Target]string{TargetC: "void*"})
	reg.RegisterConverter("handle", TargetC, func(ir.Type) (string, error) {
		return "db_handle_t*", nil
	})

	got, err := reg.Mapping(ir.Named{Name: "handle"}, TargetC)
	require.NoError(t, err)
	assert.Equal(t, "db_handle_t*", got)
}

func TestMappingDeterministic(t *testing.T) {
	reg := NewWithBuiltins()
	typ := ir.Option{Inner: ir.List{Inner: ir.Tuple{Elems: []ir.Type{ir.Int, ir.String}}}}

	first, err := reg.Mapping(typ, TargetPython)
	require.NoError(t, err)
	second, err := reg.Mapping(typ, TargetPython)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestValidate(t *testing.T) {
	reg := NewWithBuiltins()

	assert.True(t, reg.Validate(ir.Int, TargetC))
	assert.True(t, reg.Validate(ir.Option{Inner: ir.String}, TargetPython))
	assert.False(t, reg.Validate(ir.Named{Name: "mystery"}, TargetC))
	assert.False(t, reg.Validate(ir.List{Inner: ir.Named{Name: "mystery"}}, TargetPython))
}

func TestTargetValid(t *testing.T) {
	assert.True(t, Target("python").Valid())
	assert.True(t, Target("ocaml").Valid())
	assert.False(t, Target("haskell").Valid())
	assert.False(t, Target("").Valid())
}
