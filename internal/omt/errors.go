package omt

import "fmt"

// AuthError marks a credential failure against the OMT portal, including a
// 401 that survived the single refresh-and-retry. Not recoverable without
// operator intervention.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("omt auth failed: %v", e.Err)
	}
	return "omt auth failed"
}

func (e *AuthError) Unwrap() error { return e.Err }

// RequestError surfaces any other upstream failure with the raw status and
// body kept for diagnostics. Never retried automatically.
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("omt api error: status=%d body=%s", e.Status, e.Body)
}
