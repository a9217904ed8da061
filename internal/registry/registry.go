package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/roach88/polyglot/internal/ir"
	"github.com/roach88/polyglot/internal/naming"
)

// Target identifies a supported output language.
type Target string

const (
	TargetOCaml  Target = "ocaml"
	TargetC      Target = "c"
	TargetPython Target = "python"
	TargetRust   Target = "rust"
)

// AllTargets lists every supported target, in stable order.
var AllTargets = []Target{TargetOCaml, TargetC, TargetPython, TargetRust}

// Valid reports whether t names a supported target.
func (t Target) Valid() bool {
	for _, known := range AllTargets {
		if t == known {
			return true
		}
	}
	return false
}

// Converter produces a target spelling for a composite or named type,
// overriding the default name-derived spelling.
type Converter func(ir.Type) (string, error)

type cacheKey struct {
	typeKey string
	target  Target
}

// Registry is the cross-language type-mapping engine. Construct with
// New, seed with RegisterBuiltins and any user registrations, then
// treat as read-only while generators run. There is deliberately no
// package-level default instance; the run owns its registry.
type Registry struct {
	mu         sync.RWMutex
	primitives map[string]map[Target]string
	converters map[string]map[Target]Converter
	cache      map[cacheKey]string
}

// New creates an empty registry. Most callers want NewWithBuiltins.
func New() *Registry {
	return &Registry{
		primitives: make(map[string]map[Target]string),
		converters: make(map[string]map[Target]Converter),
		cache:      make(map[cacheKey]string),
	}
}

// NewWithBuiltins creates a registry seeded with the built-in
// primitive tables for every supported target.
func NewWithBuiltins() *Registry {
	r := New()
	RegisterBuiltins(r)
	return r
}

// RegisterPrimitive registers (or replaces) a leaf type mapping. Any
// mutation invalidates the whole memoization cache: a converter may
// depend on sibling mappings, so per-entry invalidation is unsound.
func (r *Registry) RegisterPrimitive(name string, mappings map[Target]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := make(map[Target]string, len(mappings))
	for target, spelling := range mappings {
		stored[target] = spelling
	}
	r.primitives[name] = stored
	r.cache = make(map[cacheKey]string)
}

// RegisterConverter registers a custom converter for a named type in
// one target. Converters take precedence over the default name-derived
// composite spellings.
func (r *Registry) RegisterConverter(name string, target Target, conv Converter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.converters[name] == nil {
		r.converters[name] = make(map[Target]Converter)
	}
	r.converters[name][target] = conv
	r.cache = make(map[cacheKey]string)
}

// Mapping returns the target-language spelling of t. Results are
// memoized under the structural key of t; a cache hit and a cache miss
// return identical strings.
func (r *Registry) Mapping(t ir.Type, target Target) (string, error) {
	key := cacheKey{typeKey: ir.Key(t), target: target}

	r.mu.RLock()
	if cached, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	spelling, err := r.compute(t, target)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.cache[key] = spelling
	r.mu.Unlock()
	return spelling, nil
}

// Validate reports whether t can be mapped to target.
func (r *Registry) Validate(t ir.Type, target Target) bool {
	_, err := r.Mapping(t, target)
	return err == nil
}

// compute is the single recursive visitor over the closed IR variant.
func (r *Registry) compute(t ir.Type, target Target) (string, error) {
	switch tt := t.(type) {
	case ir.Primitive:
		return r.leaf(tt.Name, t, target)

	case ir.TypeVar:
		// Type variables are leaf lookups under their quoted spelling,
		// mapping to the target's opaque/any type.
		return r.leaf("'"+tt.Symbol, t, target)

	case ir.Option:
		inner, err := r.Mapping(tt.Inner, target)
		if err != nil {
			return "", err
		}
		switch target {
		case TargetOCaml:
			return inner + " option", nil
		case TargetC:
			// Nullable pointer; NULL is the canonical absent sentinel.
			return inner + "*", nil
		case TargetPython:
			return fmt.Sprintf("Optional[%s]", inner), nil
		case TargetRust:
			return fmt.Sprintf("Option<%s>", inner), nil
		}
		return "", &TypeMappingError{Type: t, Target: target}

	case ir.List:
		inner, err := r.Mapping(tt.Inner, target)
		if err != nil {
			return "", err
		}
		switch target {
		case TargetOCaml:
			return inner + " list", nil
		case TargetC:
			return inner + "*", nil
		case TargetPython:
			return fmt.Sprintf("List[%s]", inner), nil
		case TargetRust:
			return fmt.Sprintf("Vec<%s>", inner), nil
		}
		return "", &TypeMappingError{Type: t, Target: target}

	case ir.Tuple:
		elems := make([]string, len(tt.Elems))
		for i, e := range tt.Elems {
			spelling, err := r.Mapping(e, target)
			if err != nil {
				return "", err
			}
			elems[i] = spelling
		}
		switch target {
		case TargetOCaml:
			return "(" + strings.Join(elems, " * ") + ")", nil
		case TargetC:
			// Fixed-arity products have no C syntax; they cross the
			// boundary as a boxed pointer pair owned by the shim.
			return "void**", nil
		case TargetPython:
			return "Tuple[" + strings.Join(elems, ", ") + "]", nil
		case TargetRust:
			return "(" + strings.Join(elems, ", ") + ")", nil
		}
		return "", &TypeMappingError{Type: t, Target: target}

	case ir.Record:
		return r.composite(tt.Name, t, target)

	case ir.Variant:
		return r.composite(tt.Name, t, target)

	case ir.Named:
		// An unresolved reference must have been registered by the
		// user; otherwise no target can spell it.
		if conv := r.converter(tt.Name, target); conv != nil {
			return conv(t)
		}
		if spelling, err := r.leaf(tt.Name, t, target); err == nil {
			return spelling, nil
		}
		return "", &TypeMappingError{Type: t, Target: target}
	}
	return "", &TypeMappingError{Type: t, Target: target}
}

// leaf looks up a leaf name in the primitive tables.
func (r *Registry) leaf(name string, t ir.Type, target Target) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mappings, ok := r.primitives[name]
	if !ok {
		return "", &TypeMappingError{Type: t, Target: target}
	}
	spelling, ok := mappings[target]
	if !ok {
		return "", &TypeMappingError{Type: t, Target: target}
	}
	return spelling, nil
}

// composite spells a defined record or variant by name. The registry
// never inlines field mappings into call sites; only the defining
// generator expands the structure, once, at definition time.
func (r *Registry) composite(name string, t ir.Type, target Target) (string, error) {
	if conv := r.converter(name, target); conv != nil {
		return conv(t)
	}
	switch target {
	case TargetOCaml:
		return name, nil
	case TargetC:
		return name + "_t", nil
	case TargetPython, TargetRust:
		return naming.Pascal(name), nil
	}
	return "", &TypeMappingError{Type: t, Target: target}
}

func (r *Registry) converter(name string, target Target) Converter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if byTarget, ok := r.converters[name]; ok {
		return byTarget[target]
	}
	return nil
}
