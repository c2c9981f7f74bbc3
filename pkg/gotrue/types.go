package gotrue

import (
	"encoding/json"
	"time"
)

// Credentials identify a user for signup and password signin.
// Nil optional fields are not sent.
type Credentials struct {
	Email    string
	Password string
	Data     map[string]any
	Provider *string
	Audience *string
}

// signUpPayload is the wire form of Credentials for /signup. Audience travels as "aud".
type signUpPayload struct {
	Email    string         `json:"email,omitempty"`
	Password string         `json:"password,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Provider *string        `json:"provider,omitempty"`
	Aud      *string        `json:"aud,omitempty"`
}

func newSignUpPayload(c Credentials) signUpPayload {
	return signUpPayload{
		Email:    c.Email,
		Password: c.Password,
		Data:     c.Data,
		Provider: c.Provider,
		Aud:      c.Audience,
	}
}

type passwordGrant struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

type refreshGrant struct {
	RefreshToken string `json:"refresh_token"`
}

type emailPayload struct {
	Email string `json:"email"`
}

type invitePayload struct {
	Email string         `json:"email"`
	Data  map[string]any `json:"data,omitempty"`
}

// UserAttributes are the mutable parts of a user. Empty fields are left unchanged.
type UserAttributes struct {
	Email    string         `json:"email,omitempty"`
	Password string         `json:"password,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// VerifyType selects which emailed token /verify consumes.
type VerifyType string

const (
	VerifySignup    VerifyType = "signup"
	VerifyRecovery  VerifyType = "recovery"
	VerifyInvite    VerifyType = "invite"
	VerifyMagicLink VerifyType = "magiclink"
)

// VerifyParams is the body of a /verify call.
type VerifyParams struct {
	Type       VerifyType `json:"type"`
	Token      string     `json:"token"`
	Password   string     `json:"password,omitempty"`
	RedirectTo string     `json:"redirect_to,omitempty"`
}

// Session is the token grant response.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user,omitempty"`
}

// User mirrors the service's user object.
type User struct {
	ID                 string         `json:"id"`
	Aud                string         `json:"aud"`
	Role               string         `json:"role"`
	Email              string         `json:"email"`
	Phone              string         `json:"phone,omitempty"`
	ConfirmedAt        *time.Time     `json:"confirmed_at,omitempty"`
	EmailConfirmedAt   *time.Time     `json:"email_confirmed_at,omitempty"`
	InvitedAt          *time.Time     `json:"invited_at,omitempty"`
	ConfirmationSentAt *time.Time     `json:"confirmation_sent_at,omitempty"`
	RecoverySentAt     *time.Time     `json:"recovery_sent_at,omitempty"`
	LastSignInAt       *time.Time     `json:"last_sign_in_at,omitempty"`
	AppMetadata        map[string]any `json:"app_metadata,omitempty"`
	UserMetadata       map[string]any `json:"user_metadata,omitempty"`
	CreatedAt          *time.Time     `json:"created_at,omitempty"`
	UpdatedAt          *time.Time     `json:"updated_at,omitempty"`
}

// Payload is a response body passed through verbatim. A nil Payload means the body was empty.
type Payload json.RawMessage

// Decode unmarshals the payload into v. An empty payload leaves v untouched.
func (p Payload) Decode(v any) error {
	if len(p) == 0 {
		return nil
	}
	return json.Unmarshal(p, v)
}

// MarshalJSON keeps the payload verbatim when re-encoded; empty payloads encode as null.
func (p Payload) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return p, nil
}
