package gateway

import (
	"encoding/json"
	"strings"

	"member-portal/internal/common/errors"
)

// Classifier turns a received response or a transport failure into the
// error the caller sees. It must not have side effects.
type Classifier func(resp *Response, transportErr error) error

// Classify is the default Classifier.
func Classify(resp *Response, transportErr error) error {
	if transportErr != nil {
		return errors.NewNoResponseError(transportErr)
	}
	if resp == nil {
		return nil
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return errors.NewHTTPError(resp.StatusCode, ServerMessage(resp.Body), string(resp.Body))
}

// ServerMessage extracts the human-readable message a backend put in an
// error body: "message", then "error", then the raw text.
func ServerMessage(body []byte) string {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, key := range []string{"message", "error"} {
			switch v := payload[key].(type) {
			case string:
				if v != "" {
					return v
				}
			case map[string]interface{}:
				if m, ok := v["message"].(string); ok && m != "" {
					return m
				}
			}
		}
		return ""
	}
	return strings.TrimSpace(string(body))
}

func outcome(status int, err error) string {
	switch {
	case err != nil && errors.IsNoResponse(err):
		return "no_response"
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	default:
		return "other"
	}
}
