package gateway

import (
	"context"
	"strings"

	"member-portal/internal/common/logger"
	"member-portal/internal/common/metrics"
	"member-portal/internal/session"
)

// ResponseTransform runs on every received response, in order, before the
// response is classified.
type ResponseTransform func(ctx context.Context, resp *Response) *Response

// TokenHeaders are scanned in this order for a rotated credential.
var TokenHeaders = []string{"authorization", "Authorization", "x-auth-token", "token"}

// RotatedToken returns the first non-empty token header with any "Bearer "
// prefix removed.
func RotatedToken(resp *Response) (string, bool) {
	for _, name := range TokenHeaders {
		for _, v := range headerValues(resp, name) {
			tok := strings.TrimSpace(v)
			if tok == "Bearer" || strings.HasPrefix(tok, "Bearer ") {
				tok = strings.TrimSpace(strings.TrimPrefix(tok, "Bearer"))
			}
			if tok != "" {
				return tok, true
			}
		}
	}
	return "", false
}

// headerValues also matches keys stored without canonicalization.
func headerValues(resp *Response, name string) []string {
	if resp.Header == nil {
		return nil
	}
	if vs, ok := resp.Header[name]; ok {
		return vs
	}
	return resp.Header.Values(name)
}

// HarvestToken writes a rotated token into both credential slots.
func HarvestToken(creds *session.Credentials, log logger.Logger) ResponseTransform {
	return func(ctx context.Context, resp *Response) *Response {
		tok, ok := RotatedToken(resp)
		if !ok {
			return resp
		}
		if err := creds.SetToken(ctx, tok); err != nil {
			log.Warn("Failed to store rotated token", map[string]interface{}{
				"error": err.Error(),
			})
			return resp
		}
		metrics.GatewayTokenRotations.Inc()
		log.Debug("Stored rotated token", map[string]interface{}{
			"status": resp.StatusCode,
		})
		return resp
	}
}
