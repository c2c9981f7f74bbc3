package gotrue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// normalize classifies raw against the expected status. fn transforms a successful
// response into the operation's result; a nil fn yields the zero value, which operations
// without a meaningful body use as their success marker. fn never runs for a mismatch.
func normalize[T any](raw RawResponse, expected int, fn func(RawResponse) (T, error)) (T, error) {
	var zero T
	if raw.Status != expected {
		return zero, newServiceError(raw)
	}
	if fn == nil {
		return zero, nil
	}
	return fn(raw)
}

// newServiceError builds the error value for a mismatched status.
func newServiceError(raw RawResponse) *ServiceError {
	se := &ServiceError{Code: raw.Status}

	var body struct {
		Msg *string `json:"msg"`
	}
	// A body that is not an object, or a non-string msg, leaves Message unset.
	if err := json.Unmarshal(raw.Body, &body); err == nil {
		se.Message = body.Msg
	}
	return se
}

// decodeInto returns a transform that decodes the body into a fresh T.
func decodeInto[T any]() func(RawResponse) (*T, error) {
	return func(raw RawResponse) (*T, error) {
		out := new(T)
		if err := decodeLenient(raw.Body, out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// userFromBody extracts the user object returned by user-centric endpoints.
func userFromBody(raw RawResponse) (*User, error) {
	return decodeInto[User]()(raw)
}

// payloadFromBody hands the body back untouched.
func payloadFromBody(raw RawResponse) (Payload, error) {
	if len(bytes.TrimSpace(raw.Body)) == 0 {
		return nil, nil
	}
	if !json.Valid(raw.Body) {
		return nil, errMalformedBody
	}
	return Payload(bytes.Clone(raw.Body)), nil
}

var errMalformedBody = errors.New("response body is not valid JSON")

// decodeLenient decodes body into v. Empty bodies and JSON null leave v untouched and
// fields with an unexpected JSON type are skipped; only syntactically broken JSON fails.
func decodeLenient(body []byte, v any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	err := json.Unmarshal(body, v)
	var typeErr *json.UnmarshalTypeError
	if err == nil || errors.As(err, &typeErr) {
		return nil
	}
	return fmt.Errorf("%w: %v", errMalformedBody, err)
}
