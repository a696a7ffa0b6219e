package models

import "encoding/json"

// Profile is the member record returned by the backend. Only the fields the
// portal reads are typed; the full blob is cached as returned.
type Profile struct {
	ID             string `json:"_id,omitempty"`
	UserID         string `json:"userId,omitempty"`
	FirstName      string `json:"firstName,omitempty"`
	LastName       string `json:"lastName,omitempty"`
	Email          string `json:"email,omitempty"`
	Title          string `json:"title,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Affiliation    string `json:"affiliation,omitempty"`
	Department     string `json:"department,omitempty"`
	City           string `json:"city,omitempty"`
	Country        string `json:"country,omitempty"`
	MembershipType string `json:"membershipType,omitempty"`
	PaymentType    string `json:"paymentType,omitempty"`
	PlanID         string `json:"planId,omitempty"`
	SubscriptionID string `json:"subscriptionId,omitempty"`
	Avatar         string `json:"avatar,omitempty"`
}

// Identifier returns the backend user id, whichever key it was sent under.
func (p *Profile) Identifier() string {
	if p.UserID != "" {
		return p.UserID
	}
	return p.ID
}

// DisplayName joins first and last name.
func (p *Profile) DisplayName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}

// ProfileUpdate is sent flat: every field sits next to userId at the top level.
type ProfileUpdate struct {
	UserID string
	Fields map[string]interface{}
}

func (u ProfileUpdate) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(u.Fields)+1)
	for k, v := range u.Fields {
		flat[k] = v
	}
	flat["userId"] = u.UserID
	return json.Marshal(flat)
}

// Registration is the POST /user/ payload.
type Registration struct {
	FirstName      string  `json:"firstName"`
	LastName       string  `json:"lastName"`
	Email          string  `json:"email"`
	Password       string  `json:"password"`
	Title          string  `json:"title,omitempty"`
	Phone          string  `json:"phone,omitempty"`
	Affiliation    string  `json:"affiliation"`
	Department     string  `json:"department"`
	City           string  `json:"city"`
	Country        string  `json:"country"`
	MembershipType string  `json:"membershipType"`
	PaymentType    string  `json:"paymentType"`
	PlanID         *string `json:"planId,omitempty"`
}

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is what /user/login may return alongside the token header.
type LoginResult struct {
	Token string   `json:"token,omitempty"`
	User  *Profile `json:"user,omitempty"`
}
