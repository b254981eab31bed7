// Package deepequal implements the structural equality engine used by the
// assertion vocabulary.
//
// Two comparison modes are provided:
//
//   - Equal: loose deep equality. Numeric values compare across kinds
//     (int(1) equals float64(1)), NaN equals NaN, pointers to values
//     ("boxed" values) compare by pointee, and untyped nil equals a nil
//     pointer, map, or slice.
//   - StrictEqual: everything Equal requires, plus identical value
//     categories and, for primitives, identical dynamic types.
//
// Values are classified into a closed set of categories (primitive,
// sequence, mapping, set, struct, date, pattern, error, function/channel)
// with one comparison rule per category. Values from different categories
// are never equal, regardless of contents.
//
// Cyclic structures are handled with a visited-pair set: once a pair of
// references has been seen, revisiting it is treated as equal rather than
// recursing forever. The cycle is assumed to be consistent on both sides.
package deepequal
