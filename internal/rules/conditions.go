package rules

import (
	"bytes"
	"encoding/json"

	"github.com/angelmondragon/leadassign-backend/internal/assignment"
	pkgerrors "github.com/angelmondragon/leadassign-backend/pkg/errors"
)

var emptyConditions = json.RawMessage(`{}`)

// normalizeConditions validates raw with the engine's own decoder so that a
// rule accepted here is never skipped at decision time. Empty input becomes {}.
func normalizeConditions(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return emptyConditions, nil
	}
	if _, err := assignment.DecodeConditions(trimmed); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid rule conditions").
			WithDetails(map[string]any{"conditions": err.Error()})
	}
	out := make(json.RawMessage, len(trimmed))
	copy(out, trimmed)
	return out, nil
}
