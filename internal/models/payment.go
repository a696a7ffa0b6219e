package models

// PaymentVerification is the POST /user/verify-payment payload. Every field is
// always sent; absent values go out as null.
type PaymentVerification struct {
	PaymentID      *string `json:"paymentId"`
	PayerID        *string `json:"payerId"`
	Token          *string `json:"token"`
	SubscriptionID *string `json:"subscriptionId"`
}

// SubscriptionRequest asks the backend to create a provider subscription.
type SubscriptionRequest struct {
	PlanID    string `json:"planId"`
	UserID    string `json:"userId"`
	ReturnURL string `json:"returnUrl"`
	CancelURL string `json:"cancelUrl"`
}

type SubscriptionResponse struct {
	ApprovalURL    string `json:"approvalUrl"`
	SubscriptionID string `json:"subscriptionId,omitempty"`
}

// RegistrationResponse carries the id the backend assigned, under any of the
// keys it has been observed to use.
type RegistrationResponse struct {
	UserID  string `json:"userId,omitempty"`
	MongoID string `json:"_id,omitempty"`
	ID      string `json:"id,omitempty"`
}

func (r *RegistrationResponse) Identifier() string {
	switch {
	case r.UserID != "":
		return r.UserID
	case r.MongoID != "":
		return r.MongoID
	default:
		return r.ID
	}
}
