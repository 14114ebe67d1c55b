package verifysdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// APIError is an application level refusal: the service answered with its
// JSON envelope and success=false. Message is meant for the user.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("verifysdk: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// ErrUnexpectedResponse wraps answers that are not the service's envelope.
var ErrUnexpectedResponse = errors.New("verifysdk: unexpected response")

// IsAPIError reports whether err is an *APIError with one of the given
// status codes, or any status code when none are given.
func IsAPIError(err error, codes ...int) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if len(codes) == 0 {
		return true
	}
	for _, c := range codes {
		if apiErr.StatusCode == c {
			return true
		}
	}
	return false
}

// parseErrorResponse turns a non-success answer into an *APIError when the
// body is the service's envelope, and into ErrUnexpectedResponse otherwise.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var res Result
	if err := json.Unmarshal(body, &res); err == nil && !res.Success && res.Message != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: res.Message}
	}
	return fmt.Errorf("%w: HTTP %d", ErrUnexpectedResponse, resp.StatusCode)
}
