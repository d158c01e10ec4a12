package parser

import "transformat/internal/convert"

// Field is one converted column within a Record, keeping both the name
// (for columnar schema construction) and the typed value.
type Field struct {
	Name  string
	Value convert.Value
}

// Record is a single parsed row: a mapping from field name to typed
// value, with insertion order matching the field definitions' Sequence.
type Record struct {
	Fields []Field
}
