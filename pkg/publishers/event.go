package publishers

import "time"

// Event types emitted after successful auth operations.
const (
	EventSignUp     = "signup"
	EventSignIn     = "signin"
	EventRefresh    = "refresh"
	EventRecover    = "recover"
	EventInvite     = "invite"
	EventMagicLink  = "magiclink"
	EventLogout     = "logout"
	EventUserUpdate = "user_update"
	EventVerify     = "verify"
)

var eventTypes = map[string]struct{}{
	EventSignUp: {}, EventSignIn: {}, EventRefresh: {}, EventRecover: {}, EventInvite: {},
	EventMagicLink: {}, EventLogout: {}, EventUserUpdate: {}, EventVerify: {},
}

func knownEventType(typ string) bool {
	_, ok := eventTypes[typ]
	return ok
}

// Event represents the payload published downstream. It never carries tokens or passwords.
type Event struct {
	Type       string    `json:"type"`
	Email      string    `json:"email,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	BaseURL    string    `json:"base_url"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent constructs an Event stamped with the current time.
func NewEvent(typ, baseURL, email, userID string) Event {
	return Event{
		Type:       typ,
		Email:      email,
		UserID:     userID,
		BaseURL:    baseURL,
		OccurredAt: time.Now().UTC(),
	}
}
