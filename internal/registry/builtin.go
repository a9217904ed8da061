package registry

// RegisterBuiltins seeds r with the standard primitive tables for
// every supported target. User registrations may replace any row.
func RegisterBuiltins(r *Registry) {
	r.RegisterPrimitive("string", map[Target]string{
		TargetOCaml:  "string",
		TargetC:      "char*",
		TargetPython: "str",
		TargetRust:   "String",
	})

	r.RegisterPrimitive("int", map[Target]string{
		TargetOCaml:  "int",
		TargetC:      "int",
		TargetPython: "int",
		TargetRust:   "i64",
	})

	r.RegisterPrimitive("float", map[Target]string{
		TargetOCaml:  "float",
		TargetC:      "double",
		TargetPython: "float",
		TargetRust:   "f64",
	})

	// C has no bool in the ABI we emit; 0/1 ints cross the boundary.
	r.RegisterPrimitive("bool", map[Target]string{
		TargetOCaml:  "bool",
		TargetC:      "int",
		TargetPython: "bool",
		TargetRust:   "bool",
	})

	r.RegisterPrimitive("unit", map[Target]string{
		TargetOCaml:  "unit",
		TargetC:      "void",
		TargetPython: "None",
		TargetRust:   "()",
	})

	// Polymorphic placeholders surface as each target's opaque/any type.
	for _, v := range []string{"'a", "'b", "'c", "'d"} {
		r.RegisterPrimitive(v, map[Target]string{
			TargetOCaml:  v,
			TargetC:      "void*",
			TargetPython: "Any",
			TargetRust:   "T",
		})
	}
}
