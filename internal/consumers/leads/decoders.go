package leads

import (
	"github.com/angelmondragon/leadassign-backend/pkg/enums"
	"github.com/angelmondragon/leadassign-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/leadassign-backend/pkg/outbox/registry"
)

// NewDecoders registers the lead_created versions this consumer understands.
func NewDecoders() *registry.DecoderRegistry {
	reg := registry.NewDecoderRegistry()
	reg.Register(enums.EventLeadCreated, 1, registry.JSON[payloads.LeadCreatedEvent](enums.EventLeadCreated))
	return reg
}
