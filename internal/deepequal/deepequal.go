package deepequal

import (
	"reflect"
	"regexp"
	"time"
)

var (
	errType         = reflect.TypeOf((*error)(nil)).Elem()
	timeType        = reflect.TypeOf(time.Time{})
	patternType     = reflect.TypeOf((*regexp.Regexp)(nil))
	emptyStructType = reflect.TypeOf(struct{}{})
)

// category is the closed classification every comparable value falls into.
// Values from different categories are never equal.
type category int

const (
	catBool category = iota
	catNumber
	catComplex
	catString
	catSequence // slices and arrays, order-sensitive
	catMapping  // maps with meaningful element values
	catSet      // map[K]struct{}, compared by key set only
	catStruct
	catDate     // time.Time
	catIdentity // functions, channels, unsafe pointers
	catUnknown
)

// visit records a pair of references already being compared, keyed the same
// way reflect.DeepEqual does. Revisiting a pair means we are inside a cycle
// and the pair is treated as equal.
type visit struct {
	a, b uintptr
	typ  reflect.Type
}

// Equal reports whether a and b are loosely deep-equal.
//
// Loose rules: NaN equals NaN, numeric values compare by value across
// integer and float kinds, pointers compare by pointee, and untyped nil
// equals a nil pointer, map, slice, function, or channel.
func Equal(a, b any) bool {
	return eq(reflect.ValueOf(a), reflect.ValueOf(b), false, make(map[visit]bool))
}

// StrictEqual reports whether a and b are deep-equal under strict rules:
// both values must belong to the same category, and primitives must have
// the same dynamic type in addition to the same value. A sequence is never
// strictly equal to a mapping, and a boxed value (*T) is never strictly
// equal to a bare T.
func StrictEqual(a, b any) bool {
	return eq(reflect.ValueOf(a), reflect.ValueOf(b), true, make(map[visit]bool))
}

func eq(a, b reflect.Value, strict bool, visited map[visit]bool) bool {
	for a.IsValid() && a.Kind() == reflect.Interface {
		a = a.Elem()
	}
	for b.IsValid() && b.Kind() == reflect.Interface {
		b = b.Elem()
	}

	if !a.IsValid() || !b.IsValid() {
		if !a.IsValid() && !b.IsValid() {
			return true
		}
		if strict {
			return false
		}
		// Loose: untyped nil matches any nil reference.
		set := a
		if !set.IsValid() {
			set = b
		}
		return isNilable(set.Kind()) && set.IsNil()
	}

	// Patterns compare by source text. This must run before generic pointer
	// dereferencing: a *regexp.Regexp dereferences into a struct with no
	// exported fields.
	if a.Type() == patternType || b.Type() == patternType {
		if a.Type() != b.Type() {
			return false
		}
		if a.IsNil() || b.IsNil() {
			return a.IsNil() && b.IsNil()
		}
		return a.Interface().(*regexp.Regexp).String() == b.Interface().(*regexp.Regexp).String()
	}

	// Errors compare by message (and dynamic type, when strict). Like
	// patterns, most error implementations hide their state in unexported
	// fields, so they get their own rule. Nil error pointers fall through
	// to the pointer rules below.
	if isErrorValue(a) || isErrorValue(b) {
		if !isErrorValue(a) || !isErrorValue(b) {
			return false
		}
		if strict && a.Type() != b.Type() {
			return false
		}
		return a.Interface().(error).Error() == b.Interface().(error).Error()
	}

	// Cycle guard: remember reference pairs before descending into them.
	if a.Kind() == b.Kind() {
		switch a.Kind() {
		case reflect.Pointer, reflect.Map, reflect.Slice:
			if !a.IsNil() && !b.IsNil() {
				v := visit{a.Pointer(), b.Pointer(), a.Type()}
				if visited[v] {
					return true
				}
				visited[v] = true
			}
		}
	}

	if a.Kind() == reflect.Pointer && b.Kind() == reflect.Pointer {
		if a.Pointer() == b.Pointer() {
			return true
		}
		if a.IsNil() || b.IsNil() {
			return false
		}
		if strict && a.Type() != b.Type() {
			return false
		}
		return eq(a.Elem(), b.Elem(), strict, visited)
	}

	// Loose mode unboxes a lone pointer; strict mode never equates a
	// boxed value with a bare one.
	if a.Kind() == reflect.Pointer || b.Kind() == reflect.Pointer {
		if strict {
			return false
		}
		if a.Kind() == reflect.Pointer {
			if a.IsNil() {
				return false
			}
			return eq(a.Elem(), b, strict, visited)
		}
		if b.IsNil() {
			return false
		}
		return eq(a, b.Elem(), strict, visited)
	}

	ca, cb := classify(a), classify(b)
	if ca != cb {
		return false
	}

	switch ca {
	case catBool:
		if strict && a.Type() != b.Type() {
			return false
		}
		return a.Bool() == b.Bool()

	case catNumber:
		if strict && a.Type() != b.Type() {
			return false
		}
		return numberEqual(a, b)

	case catComplex:
		if strict && a.Type() != b.Type() {
			return false
		}
		x, y := a.Complex(), b.Complex()
		return floatEqual(real(x), real(y)) && floatEqual(imag(x), imag(y))

	case catString:
		if strict && a.Type() != b.Type() {
			return false
		}
		return a.String() == b.String()

	case catDate:
		return a.Interface().(time.Time).Equal(b.Interface().(time.Time))

	case catSequence:
		if a.Len() != b.Len() {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			if !eq(a.Index(i), b.Index(i), strict, visited) {
				return false
			}
		}
		return true

	case catMapping:
		return mapEqual(a, b, strict, visited)

	case catSet:
		return setEqual(a, b, strict, visited)

	case catStruct:
		return structEqual(a, b, strict, visited)

	case catIdentity:
		if a.IsNil() && b.IsNil() {
			return true
		}
		if a.IsNil() || b.IsNil() {
			return false
		}
		return a.Type() == b.Type() && a.Pointer() == b.Pointer()

	default:
		return false
	}
}

func classify(v reflect.Value) category {
	switch v.Kind() {
	case reflect.Bool:
		return catBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return catNumber
	case reflect.Complex64, reflect.Complex128:
		return catComplex
	case reflect.String:
		return catString
	case reflect.Slice, reflect.Array:
		return catSequence
	case reflect.Map:
		if v.Type().Elem() == emptyStructType {
			return catSet
		}
		return catMapping
	case reflect.Struct:
		if v.Type() == timeType {
			return catDate
		}
		return catStruct
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return catIdentity
	default:
		return catUnknown
	}
}

func isNilable(k reflect.Kind) bool {
	switch k {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface, reflect.UnsafePointer:
		return true
	}
	return false
}

func isErrorValue(v reflect.Value) bool {
	if !v.Type().Implements(errType) || !v.CanInterface() {
		return false
	}
	// A nil *T still implements error but calling Error() would panic.
	return !(isNilable(v.Kind()) && v.IsNil())
}

// numberEqual compares two numeric values by value, across integer and
// float kinds. NaN equals NaN; -0 and +0 are equal.
func numberEqual(a, b reflect.Value) bool {
	ai, au, af := numKind(a)
	bi, bu, bf := numKind(b)
	switch {
	case ai && bi:
		return a.Int() == b.Int()
	case au && bu:
		return a.Uint() == b.Uint()
	case ai && bu:
		return a.Int() >= 0 && uint64(a.Int()) == b.Uint()
	case au && bi:
		return b.Int() >= 0 && uint64(b.Int()) == a.Uint()
	case af && bf:
		return floatEqual(a.Float(), b.Float())
	case af && bi:
		return floatEqual(a.Float(), float64(b.Int()))
	case ai && bf:
		return floatEqual(float64(a.Int()), b.Float())
	case af && bu:
		return floatEqual(a.Float(), float64(b.Uint()))
	case au && bf:
		return floatEqual(float64(a.Uint()), b.Float())
	}
	return false
}

func numKind(v reflect.Value) (isInt, isUint, isFloat bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true, false, false
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return false, true, false
	default:
		return false, false, true
	}
}

func floatEqual(x, y float64) bool {
	if x != x && y != y { // both NaN
		return true
	}
	return x == y // IEEE: -0 == +0
}

func mapEqual(a, b reflect.Value, strict bool, visited map[visit]bool) bool {
	if a.Len() != b.Len() {
		return false
	}
	directLookup := a.Type().Key() == b.Type().Key()
	iter := a.MapRange()
	for iter.Next() {
		k, av := iter.Key(), iter.Value()
		if directLookup {
			bv := b.MapIndex(k)
			if !bv.IsValid() || !eq(av, bv, strict, visited) {
				return false
			}
			continue
		}
		// Heterogeneous key types: scan for a loosely matching key.
		if !findEntry(b, k, av, strict, visited) {
			return false
		}
	}
	return true
}

// findEntry scans m for an entry whose key and value both match.
func findEntry(m, key, val reflect.Value, strict bool, visited map[visit]bool) bool {
	iter := m.MapRange()
	for iter.Next() {
		if eq(key, iter.Key(), strict, visited) && eq(val, iter.Value(), strict, visited) {
			return true
		}
	}
	return false
}

func setEqual(a, b reflect.Value, strict bool, visited map[visit]bool) bool {
	if a.Len() != b.Len() {
		return false
	}
	directLookup := a.Type().Key() == b.Type().Key()
	iter := a.MapRange()
	for iter.Next() {
		k := iter.Key()
		if directLookup {
			if !b.MapIndex(k).IsValid() {
				return false
			}
			continue
		}
		if !findKey(b, k, strict, visited) {
			return false
		}
	}
	return true
}

func findKey(m, key reflect.Value, strict bool, visited map[visit]bool) bool {
	iter := m.MapRange()
	for iter.Next() {
		if eq(key, iter.Key(), strict, visited) {
			return true
		}
	}
	return false
}

// structEqual compares structs by their exported fields. Identical types
// compare field by field; under loose rules two different struct types are
// equal when their exported field name sets coincide and the corresponding
// values are equal.
func structEqual(a, b reflect.Value, strict bool, visited map[visit]bool) bool {
	if a.Type() == b.Type() {
		t := a.Type()
		for i := 0; i < t.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			if !eq(a.Field(i), b.Field(i), strict, visited) {
				return false
			}
		}
		return true
	}
	if strict {
		return false
	}
	af := exportedFields(a)
	bf := exportedFields(b)
	if len(af) != len(bf) {
		return false
	}
	for name, av := range af {
		bv, ok := bf[name]
		if !ok || !eq(av, bv, strict, visited) {
			return false
		}
	}
	return true
}

func exportedFields(v reflect.Value) map[string]reflect.Value {
	t := v.Type()
	fields := make(map[string]reflect.Value, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.IsExported() {
			fields[f.Name] = v.Field(i)
		}
	}
	return fields
}
