package alphavantage

import "errors"

var (
	// ErrMissingAPIKey is returned when ALPHA_VANTAGE_API_KEY is not configured.
	ErrMissingAPIKey = errors.New("alpha vantage api key not found")

	// ErrHTTPStatus is returned for non-2xx responses.
	ErrHTTPStatus = errors.New("alpha vantage http status")

	// ErrDecode is returned when the response body is not a JSON object.
	ErrDecode = errors.New("alpha vantage decode response")

	// ErrAPI is returned when the API answers with an explicit "Error Message".
	ErrAPI = errors.New("alpha vantage api error")
)
