package types

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNullableUUIDUnmarshal(t *testing.T) {
	type payload struct {
		ID NullableUUID `json:"id"`
	}

	var got payload
	require.NoError(t, json.Unmarshal([]byte(`{"id": "00000000-0000-0000-0000-000000000001"}`), &got))
	require.True(t, got.ID.Valid)
	require.NotNil(t, got.ID.Value)
	require.Equal(t, "00000000-0000-0000-0000-000000000001", got.ID.Value.String())

	got = payload{}
	require.NoError(t, json.Unmarshal([]byte(`{"id": null}`), &got))
	require.True(t, got.ID.Valid)
	require.Nil(t, got.ID.Value)

	got = payload{}
	require.NoError(t, json.Unmarshal([]byte(`{}`), &got))
	require.False(t, got.ID.Valid)

	require.Error(t, json.Unmarshal([]byte(`{"id": "not-a-uuid"}`), &got))
}

func TestNullableApply(t *testing.T) {
	limit := 7
	current := &limit

	var absent NullableInt
	absent.Apply(&current)
	require.Equal(t, 7, *current)

	var replaced NullableInt
	require.NoError(t, json.Unmarshal([]byte(`12`), &replaced))
	replaced.Apply(&current)
	require.Equal(t, 12, *current)
	require.Equal(t, 7, limit, "Apply copies the value")

	cleared := NullableInt{Valid: true}
	cleared.Apply(&current)
	require.Nil(t, current)

	target := uuid.New()
	var owner *uuid.UUID
	NullableUUID{Valid: true, Value: &target}.Apply(&owner)
	require.Equal(t, target, *owner)
}
