package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/samvad-hq/gotrue-go/pkg/httpclient"
)

// stubResponse implements httpclient.Response.
type stubResponse struct {
	status int
	body   []byte
}

func (s stubResponse) Body() []byte    { return s.body }
func (s stubResponse) StatusCode() int { return s.status }

// recordingTransport captures the last request and replies with a fixed response or error.
type recordingTransport struct {
	mu   sync.Mutex
	last httpclient.Request
	resp stubResponse
	err  error
}

func (r *recordingTransport) Do(_ context.Context, req httpclient.Request) (httpclient.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = req
	if r.err != nil {
		return nil, r.err
	}
	return r.resp, nil
}

func newTestClient(t *testing.T, cfg Config, transport httpclient.Client) *Client {
	t.Helper()
	c, err := New(cfg, WithTransport(transport))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewRejectsInvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"ftp://host", "localhost:9999", "http://"} {
		if _, err := New(Config{BaseURL: raw}); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New with defaults: %v", err)
	}
	if c.BaseURL() != DefaultBaseURL {
		t.Fatalf("BaseURL = %q", c.BaseURL())
	}
}

func TestDispatchSendsEmptyBearerWithoutToken(t *testing.T) {
	tr := &recordingTransport{resp: stubResponse{status: 200, body: []byte(`{}`)}}
	c := newTestClient(t, Config{BaseURL: "http://localhost:9999"}, tr)

	if _, err := c.Settings(context.Background()); err != nil {
		t.Fatalf("Settings: %v", err)
	}
	got, ok := tr.last.Headers["Authorization"]
	if !ok || got != "Bearer " {
		t.Fatalf("Authorization = %q (present=%v), want literal %q", got, ok, "Bearer ")
	}
	if tr.last.Method != http.MethodGet || tr.last.URL != "http://localhost:9999/settings" {
		t.Fatalf("unexpected request %s %s", tr.last.Method, tr.last.URL)
	}
	if tr.last.Body != nil {
		t.Fatalf("expected no body for GET, got %#v", tr.last.Body)
	}
}

func TestDispatchUsesDefaultTokenUnlessOverridden(t *testing.T) {
	tr := &recordingTransport{resp: stubResponse{status: 200, body: []byte(`{}`)}}
	c := newTestClient(t, Config{BaseURL: "http://localhost:9999", AccessToken: "service-key"}, tr)

	if _, err := c.Invite(context.Background(), "a@b.com", nil); err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if got := tr.last.Headers["Authorization"]; got != "Bearer service-key" {
		t.Fatalf("Invite Authorization = %q", got)
	}

	if _, err := c.GetUser(context.Background(), "user-jwt"); err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got := tr.last.Headers["Authorization"]; got != "Bearer user-jwt" {
		t.Fatalf("GetUser Authorization = %q", got)
	}
}

func TestDispatchKeepsBasePathPrefix(t *testing.T) {
	tr := &recordingTransport{resp: stubResponse{status: 200, body: []byte(`{}`)}}
	c := newTestClient(t, Config{BaseURL: "https://project.example.com/auth/v1/"}, tr)

	if _, err := c.SignIn(context.Background(), Credentials{Email: "a@b.com", Password: "pw"}); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if want := "https://project.example.com/auth/v1/token?grant_type=password"; tr.last.URL != want {
		t.Fatalf("URL = %q, want %q", tr.last.URL, want)
	}
}

func TestTransportFailureIsNotServiceError(t *testing.T) {
	tr := &recordingTransport{err: errors.New("connection refused")}
	c := newTestClient(t, Config{}, tr)

	err := c.Recover(context.Background(), "a@b.com")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsTransportError(err) {
		t.Fatalf("expected TransportError, got %T %v", err, err)
	}
	if _, ok := AsServiceError(err); ok {
		t.Fatalf("transport failure must not be a ServiceError")
	}
}

func TestMalformedSuccessBodyIsTransportError(t *testing.T) {
	tr := &recordingTransport{resp: stubResponse{status: 200, body: []byte("<html>oops")}}
	c := newTestClient(t, Config{}, tr)

	_, err := c.GetUser(context.Background(), "jwt")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if te.Method != http.MethodGet || te.Path != "/user" {
		t.Fatalf("unexpected error context %+v", te)
	}
}

func TestSignUpProjectsCredentials(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/signup" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"u1","email":"a@b.com"}`)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	payload, err := c.SignUp(context.Background(), Credentials{
		Email:    "a@b.com",
		Password: "pw",
		Audience: strPtr("aud1"),
	})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if got := string(bytes.TrimSpace(body)); got != `{"email":"a@b.com","password":"pw","aud":"aud1"}` {
		t.Fatalf("request body = %s", got)
	}

	var user User
	if err := payload.Decode(&user); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if user.ID != "u1" {
		t.Fatalf("unexpected payload %s", payload)
	}
}

func TestSignUpForwardsOptionalFields(t *testing.T) {
	tr := &recordingTransport{resp: stubResponse{status: 200, body: []byte(`{}`)}}
	c := newTestClient(t, Config{}, tr)

	_, err := c.SignUp(context.Background(), Credentials{
		Email:    "a@b.com",
		Password: "pw",
		Data:     map[string]any{"plan": "pro"},
		Provider: strPtr("email"),
	})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	raw, err := json.Marshal(tr.last.Body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if want := `{"email":"a@b.com","password":"pw","data":{"plan":"pro"},"provider":"email"}`; string(raw) != want {
		t.Fatalf("body = %s, want %s", raw, want)
	}
}

func TestSignOutRequiresNoContent(t *testing.T) {
	status := http.StatusNoContent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/logout" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer jwt-1" {
			t.Errorf("Authorization = %q", got)
		}
		w.WriteHeader(status)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, AccessToken: "service-key"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := c.SignOut(context.Background(), "jwt-1"); err != nil {
		t.Fatalf("SignOut with 204: %v", err)
	}

	status = http.StatusOK
	err = c.SignOut(context.Background(), "jwt-1")
	se, ok := AsServiceError(err)
	if !ok || se.Code != http.StatusOK {
		t.Fatalf("expected ServiceError{200}, got %v", err)
	}
	if se.Message != nil {
		t.Fatalf("expected nil message for empty body, got %q", *se.Message)
	}
}

func TestGetUserOverridesDefaultToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer user-jwt" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"msg":"wrong token"}`)
			return
		}
		fmt.Fprint(w, `{"id":"u1","email":"a@b.com","user_metadata":{"name":"A"}}`)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, AccessToken: "service-key"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	user, err := c.GetUser(context.Background(), "user-jwt")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user.ID != "u1" || user.UserMetadata["name"] != "A" {
		t.Fatalf("unexpected user %#v", user)
	}
}

func TestServiceErrorCarriesMsg(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":400,"msg":"Invalid login credentials"}`)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.SignIn(context.Background(), Credentials{Email: "a@b.com", Password: "nope"})
	se, ok := AsServiceError(err)
	if !ok {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if se.Code != http.StatusBadRequest || se.Message == nil || *se.Message != "Invalid login credentials" {
		t.Fatalf("unexpected error %+v", se)
	}
}

func TestRefreshAndUpdatePayloads(t *testing.T) {
	tr := &recordingTransport{resp: stubResponse{status: 200, body: []byte(`{"access_token":"a2","refresh_token":"r2","expires_in":3600}`)}}
	c := newTestClient(t, Config{}, tr)

	sess, err := c.RefreshAccessToken(context.Background(), "r1")
	if err != nil {
		t.Fatalf("RefreshAccessToken: %v", err)
	}
	if sess.AccessToken != "a2" || sess.RefreshToken != "r2" || sess.ExpiresIn != 3600 {
		t.Fatalf("unexpected session %#v", sess)
	}
	if tr.last.URL != DefaultBaseURL+"/token?grant_type=refresh_token" {
		t.Fatalf("URL = %q", tr.last.URL)
	}
	if got, _ := json.Marshal(tr.last.Body); string(got) != `{"refresh_token":"r1"}` {
		t.Fatalf("refresh body = %s", got)
	}

	if _, err := c.UpdateUser(context.Background(), "jwt", UserAttributes{Data: map[string]any{"a": 1}}); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if tr.last.Method != http.MethodPut {
		t.Fatalf("UpdateUser method = %s", tr.last.Method)
	}
	if got, _ := json.Marshal(tr.last.Body); string(got) != `{"data":{"a":1}}` {
		t.Fatalf("update body = %s", got)
	}
}

func TestSettingsReturnsRawBody(t *testing.T) {
	raw := `{"external":{"github":true},"disable_signup":false}`
	tr := &recordingTransport{resp: stubResponse{status: 200, body: []byte(raw)}}
	c := newTestClient(t, Config{}, tr)

	payload, err := c.Settings(context.Background())
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if string(payload) != raw {
		t.Fatalf("payload = %s", payload)
	}
}

func TestURLForProvider(t *testing.T) {
	c, err := New(Config{BaseURL: "http://localhost:9999"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.URLForProvider("github"); got != "http://localhost:9999/authorize?provider=github" {
		t.Fatalf("URLForProvider = %q", got)
	}

	got := c.URLForProviderWith("google", ProviderOptions{RedirectTo: "https://app/cb", Scopes: []string{"email", "profile"}})
	want := "http://localhost:9999/authorize?provider=google&redirect_to=https%3A%2F%2Fapp%2Fcb&scopes=email+profile"
	if got != want {
		t.Fatalf("URLForProviderWith = %q, want %q", got, want)
	}
}

func TestConcurrentCallsDoNotInterfere(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user":
			fmt.Fprintf(w, `{"id":%q}`, r.Header.Get("Authorization"))
		case "/logout":
			w.WriteHeader(http.StatusNoContent)
		case "/recover":
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"msg":"User not found"}`)
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 60)
	for i := 0; i < 20; i++ {
		wg.Add(3)
		jwt := fmt.Sprintf("jwt-%d", i)
		go func() {
			defer wg.Done()
			u, err := c.GetUser(context.Background(), jwt)
			if err != nil || u.ID != "Bearer "+jwt {
				errs <- fmt.Errorf("GetUser(%s) = %+v, %v", jwt, u, err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := c.SignOut(context.Background(), jwt); err != nil {
				errs <- fmt.Errorf("SignOut(%s): %v", jwt, err)
			}
		}()
		go func() {
			defer wg.Done()
			err := c.Recover(context.Background(), "x@y.z")
			if se, ok := AsServiceError(err); !ok || se.Code != http.StatusNotFound {
				errs <- fmt.Errorf("Recover: %v", err)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
