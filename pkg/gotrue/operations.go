package gotrue

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// call composes dispatch and normalize for one endpoint.
func call[T any](ctx context.Context, c *Client, method, path string, query url.Values, body any, token *string, expected int, fn func(RawResponse) (T, error)) (T, error) {
	var zero T
	raw, err := c.dispatch(ctx, method, path, query, body, token)
	if err != nil {
		return zero, err
	}
	out, err := normalize(raw, expected, fn)
	if err != nil && errors.Is(err, errMalformedBody) {
		return zero, &TransportError{Method: method, Path: path, Err: err}
	}
	return out, err
}

// done is the success marker of operations with no meaningful response body.
type done struct{}

func discard(ctx context.Context, c *Client, method, path string, body any, token *string, expected int) error {
	_, err := call[done](ctx, c, method, path, nil, body, token, expected, nil)
	return err
}

func grant(kind string) url.Values {
	return url.Values{"grant_type": []string{kind}}
}

// Settings returns the service's public settings document.
func (c *Client) Settings(ctx context.Context) (Payload, error) {
	return call(ctx, c, http.MethodGet, "/settings", nil, nil, nil, http.StatusOK, payloadFromBody)
}

// SignUp registers a user. The body is either a user awaiting confirmation or a session,
// depending on the service's autoconfirm setting, so it is returned verbatim.
func (c *Client) SignUp(ctx context.Context, creds Credentials) (Payload, error) {
	return call(ctx, c, http.MethodPost, "/signup", nil, newSignUpPayload(creds), nil, http.StatusOK, payloadFromBody)
}

// SignIn exchanges email and password for a session.
func (c *Client) SignIn(ctx context.Context, creds Credentials) (*Session, error) {
	body := passwordGrant{Email: creds.Email, Password: creds.Password}
	return call(ctx, c, http.MethodPost, "/token", grant("password"), body, nil, http.StatusOK, decodeInto[Session]())
}

// RefreshAccessToken exchanges a refresh token for a new session.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*Session, error) {
	body := refreshGrant{RefreshToken: refreshToken}
	return call(ctx, c, http.MethodPost, "/token", grant("refresh_token"), body, nil, http.StatusOK, decodeInto[Session]())
}

// Recover asks the service to email a password recovery link.
func (c *Client) Recover(ctx context.Context, email string) error {
	return discard(ctx, c, http.MethodPost, "/recover", emailPayload{Email: email}, nil, http.StatusOK)
}

// Invite invites a user by email. The configured access token must be allowed to invite.
func (c *Client) Invite(ctx context.Context, email string, data map[string]any) (*User, error) {
	body := invitePayload{Email: email, Data: data}
	return call(ctx, c, http.MethodPost, "/invite", nil, body, nil, http.StatusOK, userFromBody)
}

// SendMagicLink emails a one-time login link.
func (c *Client) SendMagicLink(ctx context.Context, email string) error {
	return discard(ctx, c, http.MethodPost, "/magiclink", emailPayload{Email: email}, nil, http.StatusOK)
}

// SignOut revokes the refresh tokens of the user owning jwt. The service answers 204.
func (c *Client) SignOut(ctx context.Context, jwt string) error {
	return discard(ctx, c, http.MethodPost, "/logout", nil, &jwt, http.StatusNoContent)
}

// GetUser returns the user owning jwt.
func (c *Client) GetUser(ctx context.Context, jwt string) (*User, error) {
	return call(ctx, c, http.MethodGet, "/user", nil, nil, &jwt, http.StatusOK, userFromBody)
}

// UpdateUser changes the attributes of the user owning jwt.
func (c *Client) UpdateUser(ctx context.Context, jwt string, attrs UserAttributes) (*User, error) {
	return call(ctx, c, http.MethodPut, "/user", nil, attrs, &jwt, http.StatusOK, userFromBody)
}

// Verify consumes an emailed token and returns the resulting session.
func (c *Client) Verify(ctx context.Context, params VerifyParams) (*Session, error) {
	return call(ctx, c, http.MethodPost, "/verify", nil, params, nil, http.StatusOK, decodeInto[Session]())
}
