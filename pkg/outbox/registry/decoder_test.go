package registry

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/leadassign-backend/pkg/enums"
	"github.com/angelmondragon/leadassign-backend/pkg/outbox/payloads"
)

func TestDecoderRegistryJSON(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventLeadCreated, 1, JSON[payloads.LeadCreatedEvent](enums.EventLeadCreated))

	leadID, branchID := uuid.New(), uuid.New()
	raw := json.RawMessage(`{"leadId":"` + leadID.String() + `","branchId":"` + branchID.String() + `"}`)
	out, err := reg.Decode(enums.EventLeadCreated, 1, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	event, ok := out.(payloads.LeadCreatedEvent)
	if !ok || event.LeadID != leadID || event.BranchID != branchID {
		t.Fatalf("unexpected output %#v", out)
	}

	if _, err := reg.Decode(enums.EventLeadCreated, 1, json.RawMessage(`{"leadId":"`+leadID.String()+`"}`)); err == nil {
		t.Fatalf("missing branchId should fail validation")
	}
	if _, err := reg.Decode(enums.EventLeadCreated, 1, json.RawMessage(`[]`)); err == nil {
		t.Fatalf("non-object payload should fail")
	}
	if !reg.Supports(enums.EventLeadCreated, 1) || reg.Supports(enums.EventLeadCreated, 2) {
		t.Fatal("Supports should only report registered versions")
	}
}

func TestDecoderRegistryUnknownVersion(t *testing.T) {
	reg := NewDecoderRegistry()
	_, err := reg.Decode(enums.EventLeadCreated, 2, json.RawMessage(`{}`))
	if !errors.Is(err, ErrDecoderNotRegistered) {
		t.Fatalf("expected ErrDecoderNotRegistered, got %v", err)
	}
}
