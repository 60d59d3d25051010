// Package domain holds the types shared across the distributor's
// engine: events, adapters, subscriptions, and the error taxonomy they
// produce.
package domain

import (
	"encoding/json"
	"net/url"
)

// Event is the unit distributed across ledgers. Fields mirror the wire
// shape adapters and the consumer exchange; Network is transport-only
// and must never survive a re-publish or a consumer notification.
type Event struct {
	ID                 uint64   `json:"id"`
	Timestamp          uint64   `json:"timestamp"`
	EventType          string   `json:"eventType"`
	DataLocation       string   `json:"dataLocation"`
	EntityIDHash       string   `json:"entityIdHash"`
	PreviousEntityHash string   `json:"previousEntityHash"`
	RelevantMetadata   []string `json:"relevantMetadata"`
	PublisherAddress   string   `json:"publisherAddress,omitempty"`
	AuthorAddress      string   `json:"authorAddress,omitempty"`

	// Network identifies the adapter an event was received from. Set
	// only on inbound notifications; never written to the cache,
	// never forwarded.
	Network string `json:"network,omitempty"`
}

// UnmarshalJSON decodes Event, accepting "origin" as an alias for
// "publisherAddress". Older adapters emit the former, newer ones the
// latter, for the same logical field; "publisherAddress" wins if both
// are present.
func (e *Event) UnmarshalJSON(data []byte) error {
	type alias Event
	var a struct {
		alias
		Origin string `json:"origin,omitempty"`
	}
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = Event(a.alias)
	if e.PublisherAddress == "" {
		e.PublisherAddress = a.Origin
	}
	return nil
}

// StripNetwork returns a copy of e with Network cleared. Idempotent:
// calling it on an already-stripped event is a no-op.
func StripNetwork(e Event) Event {
	e.Network = ""
	return e
}

// PublishRequest is the body a consumer sends to /api/v1/publishEvent,
// and the body the replicator builds when fanning out to missing
// chains.
type PublishRequest struct {
	EventType          string   `json:"eventType"`
	DataLocation       string   `json:"dataLocation"`
	RelevantMetadata   []string `json:"relevantMetadata"`
	EntityID           string   `json:"entityId"`
	PreviousEntityHash string   `json:"previousEntityHash"`
	Iss                string   `json:"iss,omitempty"`
	RPCAddress         string   `json:"rpcAddress,omitempty"`
}

// PublishRequestFromEvent builds the outbound publish body for a
// received event, stripping Network and renaming EntityIDHash to
// EntityID per the adapter wire contract.
func PublishRequestFromEvent(e Event) PublishRequest {
	e = StripNetwork(e)
	return PublishRequest{
		EventType:          e.EventType,
		DataLocation:       e.DataLocation,
		RelevantMetadata:   e.RelevantMetadata,
		EntityID:           e.EntityIDHash,
		PreviousEntityHash: e.PreviousEntityHash,
	}
}

// ExtractGlobalID reads the "hl" query parameter out of dataLocation.
// It is a pure, read-only operation: the returned value is never
// normalized or re-encoded.
func ExtractGlobalID(dataLocation string) (string, error) {
	u, err := url.Parse(dataLocation)
	if err != nil {
		return "", &ValidationError{Field: "dataLocation", Message: "not a valid URL"}
	}
	globalID := u.Query().Get("hl")
	if globalID == "" {
		return "", ErrMissingGlobalID
	}
	return globalID, nil
}
