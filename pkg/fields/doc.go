// Package fields holds the FieldsIdsMap: the insertion-ordered bijection
// between a document field's name and its 16-bit id, plus the per-field
// flags (searchable, displayed, filterable, sortable, primary key) that
// every other package consults by id rather than by name.
//
// Field id 0 is reserved to mean "no field" so every other component can
// use it as a sentinel without a separate Option type. Ids are never
// reused within an index's lifetime: removing a field only clears its
// flags, it never frees its id for reallocation, so stale postings that
// still reference the old id decode as "field no longer mapped" instead
// of silently aliasing onto a new field.
package fields
