package domain

import (
	"encoding/json"
	"testing"
)

func TestEvent_UnmarshalJSON_OriginAliasesPublisherAddress(t *testing.T) {
	var e Event
	body := `{"id":1,"eventType":"update","origin":"0xabc"}`
	if err := json.Unmarshal([]byte(body), &e); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if e.PublisherAddress != "0xabc" {
		t.Fatalf("expected origin to populate PublisherAddress, got %q", e.PublisherAddress)
	}
}

func TestEvent_UnmarshalJSON_PublisherAddressWinsOverOrigin(t *testing.T) {
	var e Event
	body := `{"id":1,"eventType":"update","origin":"0xabc","publisherAddress":"0xdef"}`
	if err := json.Unmarshal([]byte(body), &e); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if e.PublisherAddress != "0xdef" {
		t.Fatalf("expected publisherAddress to take priority over origin, got %q", e.PublisherAddress)
	}
}
