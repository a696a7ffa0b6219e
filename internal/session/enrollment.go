package session

import (
	"context"
	"encoding/json"

	"member-portal/internal/common/errors"
	"member-portal/internal/models"
)

// Enrollment stores the records that cross the payment-provider redirect.
type Enrollment struct {
	store Store
}

func NewEnrollment(store Store) *Enrollment {
	return &Enrollment{store: store}
}

// SavePending persists {userId, plan}. It must succeed before redirecting.
func (e *Enrollment) SavePending(ctx context.Context, p models.PendingEnrollment) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return errors.NewStorageError("encode "+KeyPendingUser, err)
	}
	if err := e.store.Set(ctx, KeyPendingUser, string(raw)); err != nil {
		return errors.NewStorageError("set "+KeyPendingUser, err)
	}
	return nil
}

// Pending returns the stored record, or nil if there is none.
func (e *Enrollment) Pending(ctx context.Context) (*models.PendingEnrollment, error) {
	raw, ok, err := e.store.Get(ctx, KeyPendingUser)
	if err != nil {
		return nil, errors.NewStorageError("get "+KeyPendingUser, err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var p models.PendingEnrollment
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, errors.NewStorageError("decode "+KeyPendingUser, err)
	}
	return &p, nil
}

func (e *Enrollment) ClearPending(ctx context.Context) error {
	if err := e.store.Delete(ctx, KeyPendingUser); err != nil {
		return errors.NewStorageError("delete "+KeyPendingUser, err)
	}
	return nil
}

// MarkSuccess records the one-shot confirmation flags.
func (e *Enrollment) MarkSuccess(ctx context.Context, subscriptionID string) error {
	if err := e.store.Set(ctx, KeyPaymentSuccess, "true"); err != nil {
		return errors.NewStorageError("set "+KeyPaymentSuccess, err)
	}
	if subscriptionID == "" {
		if err := e.store.Delete(ctx, KeySubscriptionID); err != nil {
			return errors.NewStorageError("delete "+KeySubscriptionID, err)
		}
		return nil
	}
	if err := e.store.Set(ctx, KeySubscriptionID, subscriptionID); err != nil {
		return errors.NewStorageError("set "+KeySubscriptionID, err)
	}
	return nil
}

// Confirmation is the one-shot result handed to the confirmation view.
type Confirmation struct {
	Success        bool   `json:"success"`
	SubscriptionID string `json:"subscriptionId,omitempty"`
}

// ConsumeConfirmation reads the flags and deletes them.
func (e *Enrollment) ConsumeConfirmation(ctx context.Context) (Confirmation, error) {
	var c Confirmation
	flag, ok, err := e.store.Get(ctx, KeyPaymentSuccess)
	if err != nil {
		return c, errors.NewStorageError("get "+KeyPaymentSuccess, err)
	}
	c.Success = ok && flag == "true"
	sub, _, err := e.store.Get(ctx, KeySubscriptionID)
	if err != nil {
		return c, errors.NewStorageError("get "+KeySubscriptionID, err)
	}
	c.SubscriptionID = sub
	if err := e.store.Delete(ctx, KeyPaymentSuccess, KeySubscriptionID); err != nil {
		return c, errors.NewStorageError("delete confirmation", err)
	}
	return c, nil
}
