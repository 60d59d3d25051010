package domain

import "time"

// Subscription is a consumer's callback registration. Stored
// in-process only; lost on restart by design. Internal wildcard
// subscriptions are re-installed on every bootstrap, and consumer
// subscriptions are re-issued by the consumer, so nothing durable is
// lost by the choice.
type Subscription struct {
	ID          string
	EventTypes  []string
	CallbackURL string
	CreatedAt   time.Time
}

// MatchesEventType reports whether the subscription should receive an
// event of the given type: an empty EventTypes list, a literal "*",
// or an exact match all qualify.
func (s Subscription) MatchesEventType(eventType string) bool {
	if len(s.EventTypes) == 0 {
		return true
	}
	for _, t := range s.EventTypes {
		if t == "*" || t == eventType {
			return true
		}
	}
	return false
}

// SubscribeRequest is the body a consumer sends to /api/v1/subscribe.
type SubscribeRequest struct {
	EventTypes           []string `json:"eventTypes"`
	NotificationEndpoint string   `json:"notificationEndpoint"`
	Iss                  string   `json:"iss,omitempty"`
}
