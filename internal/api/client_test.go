package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"member-portal/internal/common/errors"
	"member-portal/internal/common/logger"
	"member-portal/internal/gateway"
	"member-portal/internal/models"
	"member-portal/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	Method string
	Path   string
	Query  string
	Body   string
}

type backend struct {
	mu       sync.Mutex
	requests []recorded
	mux      *http.ServeMux
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	b.requests = append(b.requests, recorded{r.Method, r.URL.Path, r.URL.RawQuery, string(body)})
	b.mu.Unlock()
	b.mux.ServeHTTP(w, r)
}

func (b *backend) last() recorded {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[len(b.requests)-1]
}

func newTestClient(t *testing.T, routes map[string]http.HandlerFunc) (*Client, *backend, *session.MemoryStore) {
	t.Helper()
	b := &backend{mux: http.NewServeMux()}
	for pattern, h := range routes {
		b.mux.HandleFunc(pattern, h)
	}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	store := session.NewMemoryStore()
	gw, err := gateway.New(gateway.Options{
		BaseURL:     srv.URL,
		Credentials: session.NewCredentials(store),
		Navigator:   &gateway.RecordingNavigator{},
		Logger:      logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return New(gw, logger.NewTestLogger(t)), b, store
}

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func TestGetProfile_CachesBlob(t *testing.T) {
	c, b, store := newTestClient(t, map[string]http.HandlerFunc{
		"GET /user/profile": respond(`{"data":{"response":{"_id":"u1","firstName":"Ada","city":"London","orcid":"0000-0001"}}}`),
	})

	p, err := c.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", p.Identifier())
	assert.Equal(t, "Ada", p.FirstName)
	assert.Equal(t, "userId=u1", b.last().Query)

	blob, ok, _ := store.Get(context.Background(), session.KeyUser)
	require.True(t, ok)
	assert.Contains(t, blob, `"orcid":"0000-0001"`)
}

func TestUpdateProfile_FlatPayload(t *testing.T) {
	c, b, _ := newTestClient(t, map[string]http.HandlerFunc{
		"PUT /user/update": respond(`{"data":{"response":{"_id":"u1","city":"Paris"}}}`),
	})

	p, err := c.UpdateProfile(context.Background(), models.ProfileUpdate{
		UserID: "u1",
		Fields: map[string]interface{}{"city": "Paris", "department": "Physics"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Paris", p.City)
	assert.JSONEq(t, `{"userId":"u1","city":"Paris","department":"Physics"}`, b.last().Body)

	_, err = c.UpdateProfile(context.Background(), models.ProfileUpdate{})
	assert.Equal(t, errors.ErrCodeRequestInvalid, errors.CodeOf(err))
}

func TestRegister(t *testing.T) {
	c, b, _ := newTestClient(t, map[string]http.HandlerFunc{
		"POST /user/": respond(`{"data":{"response":{"_id":"664f"}}}`),
	})
	plan := "P-LTB"

	id, err := c.Register(context.Background(), models.Registration{
		FirstName: "Ada", Email: "ada@example.org", MembershipType: "BASIC", PaymentType: "paypal", PlanID: &plan,
	})
	require.NoError(t, err)
	assert.Equal(t, "664f", id)

	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(b.last().Body), &sent))
	assert.Equal(t, "BASIC", sent["membershipType"])
	assert.Equal(t, "paypal", sent["paymentType"])
	assert.Equal(t, "P-LTB", sent["planId"])
}

func TestVerifyPayment_SendsNulls(t *testing.T) {
	c, b, _ := newTestClient(t, map[string]http.HandlerFunc{
		"POST /user/verify-payment": respond(`{"data":{"response":{"status":"ACTIVE"}}}`),
	})
	pay, payer, sub := "PAY1", "PAYER1", "SUB1"

	err := c.VerifyPayment(context.Background(), models.PaymentVerification{PaymentID: &pay, PayerID: &payer, SubscriptionID: &sub})
	require.NoError(t, err)
	assert.JSONEq(t, `{"paymentId":"PAY1","payerId":"PAYER1","token":null,"subscriptionId":"SUB1"}`, b.last().Body)
}

func TestCreateSubscription(t *testing.T) {
	c, b, _ := newTestClient(t, map[string]http.HandlerFunc{
		"POST /user/create-subscription": respond(`{"data":{"response":{"approvalUrl":"https://paypal.example/approve?ba=1"}}}`),
	})

	out, err := c.CreateSubscription(context.Background(), models.SubscriptionRequest{
		PlanID: "P-1", UserID: "u1", ReturnURL: "http://localhost/payment/success", CancelURL: "http://localhost/payment/cancel",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://paypal.example/approve?ba=1", out.ApprovalURL)
	assert.JSONEq(t, `{"planId":"P-1","userId":"u1","returnUrl":"http://localhost/payment/success","cancelUrl":"http://localhost/payment/cancel"}`, b.last().Body)
}

func TestCreateSubscription_MissingApprovalURL(t *testing.T) {
	c, _, _ := newTestClient(t, map[string]http.HandlerFunc{
		"POST /user/create-subscription": respond(`{"data":{"response":{}}}`),
	})

	_, err := c.CreateSubscription(context.Background(), models.SubscriptionRequest{PlanID: "P-1"})
	assert.Equal(t, errors.ErrCodeDecodeFailed, errors.CodeOf(err))
}

func TestLogin(t *testing.T) {
	t.Run("token in header", func(t *testing.T) {
		c, _, store := newTestClient(t, map[string]http.HandlerFunc{
			"POST /user/login": func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Authorization", "Bearer header-token")
				_, _ = w.Write([]byte(`{"data":{"response":{"user":{"_id":"u1","firstName":"Ada"}}}}`))
			},
		})

		u, err := c.Login(context.Background(), "ada@example.org", "Abcdefg1")
		require.NoError(t, err)
		assert.Equal(t, "Ada", u.FirstName)
		tok, _, _ := store.Get(context.Background(), session.KeyAccessToken)
		assert.Equal(t, "header-token", tok)
		_, ok, _ := store.Get(context.Background(), session.KeyUser)
		assert.True(t, ok)
	})

	t.Run("token in body", func(t *testing.T) {
		c, _, store := newTestClient(t, map[string]http.HandlerFunc{
			"POST /user/login": respond(`{"data":{"response":{"token":"body-token"}}}`),
		})

		_, err := c.Login(context.Background(), "ada@example.org", "Abcdefg1")
		require.NoError(t, err)
		tok, _, _ := store.Get(context.Background(), session.KeyLegacyToken)
		assert.Equal(t, "body-token", tok)
	})

	t.Run("no token anywhere", func(t *testing.T) {
		c, _, _ := newTestClient(t, map[string]http.HandlerFunc{
			"POST /user/login": respond(`{"data":{"response":{}}}`),
		})

		_, err := c.Login(context.Background(), "ada@example.org", "Abcdefg1")
		assert.Equal(t, errors.ErrCodeNotAuthenticated, errors.CodeOf(err))
	})

	t.Run("rejected", func(t *testing.T) {
		c, _, _ := newTestClient(t, map[string]http.HandlerFunc{
			"POST /user/login": func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"message":"Invalid credentials"}`))
			},
		})

		_, err := c.Login(context.Background(), "ada@example.org", "wrong")
		require.Error(t, err)
		assert.True(t, errors.IsUnauthorized(err))
	})
}

func TestLogout(t *testing.T) {
	c, _, store := newTestClient(t, nil)
	require.NoError(t, store.Set(context.Background(), session.KeyAccessToken, "t"))
	require.NoError(t, store.Set(context.Background(), session.KeyUser, "{}"))

	require.NoError(t, c.Logout(context.Background()))
	assert.Equal(t, 0, store.Len())
}

func TestUploadAvatar(t *testing.T) {
	c, b, _ := newTestClient(t, map[string]http.HandlerFunc{
		"POST /user/upload": respond(`{"data":{"response":{"avatar":"https://cdn.example/a.png"}}}`),
	})

	require.NoError(t, c.UploadAvatar(context.Background(), "u1", "a.png", strings.NewReader("img")))
	last := b.last()
	assert.Equal(t, "userId=u1", last.Query)
	assert.Contains(t, last.Body, `name="file"; filename="a.png"`)
}
