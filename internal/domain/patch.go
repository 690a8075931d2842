package domain

import "encoding/json"

// Patch is a tri-state update field for PATCH request bodies. A key that is
// absent from the JSON leaves the field untouched, an explicit null clears
// it, and a value sets it. This replaces sentinel encodings such as
// "sprintId: 0 means move to backlog".
type Patch[T any] struct {
	present bool
	null    bool
	value   T
}

// PatchValue returns a Patch that sets v. Intended for tests and internal
// callers; JSON decoding is the normal construction path.
func PatchValue[T any](v T) Patch[T] {
	return Patch[T]{present: true, value: v}
}

// PatchNull returns a Patch that clears the field.
func PatchNull[T any]() Patch[T] {
	return Patch[T]{present: true, null: true}
}

// Present reports whether the key appeared in the request at all.
func (p Patch[T]) Present() bool { return p.present }

// Null reports whether the key was an explicit JSON null.
func (p Patch[T]) Null() bool { return p.present && p.null }

// Get returns the value and whether one was set (present and non-null).
func (p Patch[T]) Get() (T, bool) {
	if !p.present || p.null {
		var zero T
		return zero, false
	}
	return p.value, true
}

// UnmarshalJSON is only invoked for keys present in the document, so a zero
// Patch means "not in the request".
func (p *Patch[T]) UnmarshalJSON(b []byte) error {
	p.present = true
	if string(b) == "null" {
		p.null = true
		return nil
	}
	return json.Unmarshal(b, &p.value)
}
