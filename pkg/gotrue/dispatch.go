package gotrue

import (
	"context"
	"net/url"

	"github.com/samvad-hq/gotrue-go/pkg/httpclient"
)

// RawResponse is what the service sent back, before classification.
type RawResponse struct {
	Status int
	Body   []byte
}

// dispatch sends one request. token overrides the configured default when non-nil.
// The Authorization header is always present, even when the token is empty.
func (c *Client) dispatch(ctx context.Context, method, path string, query url.Values, body any, token *string) (RawResponse, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	bearer := c.defaultToken
	if token != nil {
		bearer = *token
	}

	req := httpclient.Request{
		Method: method,
		URL:    c.endpoint(path, query),
		Headers: map[string]string{
			"Authorization": "Bearer " + bearer,
			"Accept":        "application/json",
			"Content-Type":  "application/json",
		},
	}
	if body != nil {
		req.Body = body
	}

	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		c.log.WarnObj("gotrue request failed", "gotrue_request_error", map[string]any{
			"method": method,
			"path":   path,
			"error":  err.Error(),
		})
		return RawResponse{}, &TransportError{Method: method, Path: path, Err: err}
	}

	c.log.DebugObj("gotrue request completed", "gotrue_request", map[string]any{
		"method": method,
		"path":   path,
		"status": resp.StatusCode(),
	})
	return RawResponse{Status: resp.StatusCode(), Body: resp.Body()}, nil
}

// endpoint joins path onto the base URL, keeping any base path prefix such as /auth/v1.
func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}
