package membership

import (
	"strings"

	"github.com/google/uuid"
)

const captchaLength = 6

// newCaptchaCode returns a short code drawn from a random uuid.
func newCaptchaCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:captchaLength])
}
