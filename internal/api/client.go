// Package api is the typed client for the membership backend REST contract.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"member-portal/internal/common/errors"
	"member-portal/internal/common/logger"
	"member-portal/internal/gateway"
	"member-portal/internal/models"
	"member-portal/internal/session"
)

const (
	PathProfile            = "/user/profile"
	PathUpdate             = "/user/update"
	PathRegister           = "/user/"
	PathLogin              = "/user/login"
	PathVerifyPayment      = "/user/verify-payment"
	PathCreateSubscription = "/user/create-subscription"
	PathUpload             = "/user/upload"
)

type Client struct {
	gw     *gateway.Gateway
	creds  *session.Credentials
	logger logger.Logger
}

func New(gw *gateway.Gateway, log logger.Logger) *Client {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Client{gw: gw, creds: gw.Credentials(), logger: log.Named("api")}
}

func decodeResponse[T any](resp *gateway.Response) (T, error) {
	var env models.Envelope[T]
	if err := resp.Decode(&env); err != nil {
		var zero T
		return zero, err
	}
	return env.Data.Response, nil
}

// GetProfile fetches the member profile and caches the raw blob.
func (c *Client) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	resp, err := c.gw.Get(ctx, PathProfile, &gateway.RequestOptions{
		Query: url.Values{"userId": {userID}},
	})
	if err != nil {
		return nil, err
	}
	raw, err := decodeResponse[json.RawMessage](resp)
	if err != nil {
		return nil, err
	}
	var p models.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, errors.NewDecodeError(err)
	}
	if err := c.creds.SaveUser(ctx, raw); err != nil {
		c.logger.Warn("Failed to cache profile", map[string]interface{}{"error": err.Error()})
	}
	return &p, nil
}

// UpdateProfile sends the flattened update. The returned profile is nil when
// the backend does not echo the record.
func (c *Client) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.Profile, error) {
	if update.UserID == "" {
		return nil, errors.NewRequestInvalidError(fmt.Errorf("userId is required"))
	}
	resp, err := c.gw.Put(ctx, PathUpdate, update, nil)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil, nil
	}
	p, err := decodeResponse[*models.Profile](resp)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Register creates the member and returns the id the backend assigned, or
// "" when the response names none.
func (c *Client) Register(ctx context.Context, reg models.Registration) (string, error) {
	resp, err := c.gw.Post(ctx, PathRegister, reg, nil)
	if err != nil {
		return "", err
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return "", nil
	}
	out, err := decodeResponse[models.RegistrationResponse](resp)
	if err != nil {
		return "", err
	}
	c.logger.Info("Member registered", map[string]interface{}{
		"membershipType": reg.MembershipType,
		"paymentType":    reg.PaymentType,
	})
	return out.Identifier(), nil
}

// VerifyPayment asks the backend to capture the payment the provider echoed back.
func (c *Client) VerifyPayment(ctx context.Context, v models.PaymentVerification) error {
	_, err := c.gw.Post(ctx, PathVerifyPayment, v, nil)
	return err
}

// CreateSubscription returns the provider approval URL for req.
func (c *Client) CreateSubscription(ctx context.Context, req models.SubscriptionRequest) (*models.SubscriptionResponse, error) {
	resp, err := c.gw.Post(ctx, PathCreateSubscription, req, nil)
	if err != nil {
		return nil, err
	}
	out, err := decodeResponse[models.SubscriptionResponse](resp)
	if err != nil {
		return nil, err
	}
	if out.ApprovalURL == "" {
		return nil, errors.NewDecodeError(fmt.Errorf("response has no approvalUrl"))
	}
	return &out, nil
}

// Login authenticates. The gateway harvests a header token; a token in the
// body is stored only if none arrived that way.
func (c *Client) Login(ctx context.Context, email, password string) (*models.Profile, error) {
	if err := c.creds.Clear(ctx); err != nil {
		return nil, err
	}
	resp, err := c.gw.Post(ctx, PathLogin, models.Credentials{Email: email, Password: password}, nil)
	if err != nil {
		return nil, err
	}
	out, err := decodeResponse[models.LoginResult](resp)
	if err != nil && !c.creds.Authenticated(ctx) {
		return nil, err
	}
	if !c.creds.Authenticated(ctx) {
		if out.Token == "" {
			return nil, errors.NewNotAuthenticatedError()
		}
		if err := c.creds.SetToken(ctx, strings.TrimSpace(strings.TrimPrefix(out.Token, "Bearer "))); err != nil {
			return nil, err
		}
	}
	if out.User != nil {
		if raw, err := json.Marshal(out.User); err == nil {
			_ = c.creds.SaveUser(ctx, raw)
		}
	}
	return out.User, nil
}

// Logout forgets the session locally.
func (c *Client) Logout(ctx context.Context) error {
	return c.creds.Clear(ctx)
}

// UploadAvatar uploads a profile picture for userID.
func (c *Client) UploadAvatar(ctx context.Context, userID, filename string, r io.Reader) error {
	path := PathUpload
	if userID != "" {
		path += "?" + url.Values{"userId": {userID}}.Encode()
	}
	_, err := c.gw.UploadFile(ctx, path, filename, r)
	return err
}
