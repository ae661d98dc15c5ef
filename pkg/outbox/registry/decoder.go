package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/leadassign-backend/pkg/enums"
)

// ErrDecoderNotRegistered means nothing understands the event type and
// version. Consumers ack such messages instead of retrying them.
var ErrDecoderNotRegistered = errors.New("decoder not registered")

// DecoderFunc turns an envelope's data field into a typed payload.
type DecoderFunc func(data json.RawMessage) (any, error)

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry maps (event type, envelope version) to a decoder. It is
// filled once at startup and only read afterwards.
type DecoderRegistry struct {
	decoders map[decoderKey]DecoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: map[decoderKey]DecoderFunc{}}
}

// Register replaces any decoder already set for the key.
func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, fn DecoderFunc) {
	r.decoders[decoderKey{eventType, version}] = fn
}

func (r *DecoderRegistry) Supports(eventType enums.OutboxEventType, version int) bool {
	_, ok := r.decoders[decoderKey{eventType, version}]
	return ok
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, data json.RawMessage) (any, error) {
	fn, ok := r.decoders[decoderKey{eventType, version}]
	if !ok {
		return nil, fmt.Errorf("%w for %s@v%d", ErrDecoderNotRegistered, eventType, version)
	}
	return fn(data)
}

// JSON decodes data into a T value and runs its Validate method when it
// has one.
func JSON[T any](eventType enums.OutboxEventType) DecoderFunc {
	return func(data json.RawMessage) (any, error) {
		var payload T
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("decode %s: %w", eventType, err)
		}
		if v, ok := any(payload).(validatable); ok {
			if err := v.Validate(); err != nil {
				return nil, fmt.Errorf("invalid %s: %w", eventType, err)
			}
		}
		return payload, nil
	}
}
