package types

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"
)

// Nullable tracks whether a JSON field was present at all. Valid with a nil
// Value means the client sent an explicit null to clear the field.
type Nullable[T any] struct {
	Valid bool
	Value *T
}

// NullableUUID is the common case for optional foreign keys.
type NullableUUID = Nullable[uuid.UUID]

// NullableInt is used for optional numeric limits.
type NullableInt = Nullable[int]

// UnmarshalJSON implements json.Unmarshaler.
func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	if bytes.Equal(trimmed, []byte("null")) {
		n.Valid = true
		n.Value = nil
		return nil
	}

	var parsed T
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return err
	}
	n.Valid = true
	n.Value = &parsed
	return nil
}

// Apply writes the field onto dst when it was present in the payload.
func (n Nullable[T]) Apply(dst **T) {
	if !n.Valid {
		return
	}
	if n.Value == nil {
		*dst = nil
		return
	}
	v := *n.Value
	*dst = &v
}
