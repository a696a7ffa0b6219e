package models

import "time"

// PendingEnrollment is persisted before redirecting to the payment provider
// and read back when the browser returns.
type PendingEnrollment struct {
	UserID    string    `json:"userId"`
	Plan      string    `json:"plan"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// Since reports how long ago the record was written, or zero if unknown.
func (p *PendingEnrollment) Since(now time.Time) time.Duration {
	if p.CreatedAt.IsZero() {
		return 0
	}
	return now.Sub(p.CreatedAt)
}
