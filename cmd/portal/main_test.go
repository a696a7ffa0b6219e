package main

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"member-portal/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, baseURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
gateway:
  base_url: ` + baseURL + `
session:
  backend: file
  file_path: ` + filepath.Join(t.TempDir(), "session.json") + `
membership:
  plans:
    one-year-basic:
      remote_id: P-1YB
      price: "50.00"
logging:
  level: error
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestPlansCommand(t *testing.T) {
	out, _, err := run(t, "--config", writeTestConfig(t, "https://api.example.org"), "plans")
	require.NoError(t, err)
	assert.Contains(t, out, "one-year-basic")
	assert.Contains(t, out, "50.00")
	assert.Contains(t, out, "lifetime-sponsoring")
	assert.Contains(t, out, "SPONSORING")
}

func TestWhoamiSignedOut(t *testing.T) {
	out, _, err := run(t, "--config", writeTestConfig(t, "https://api.example.org"), "whoami")
	require.NoError(t, err)
	assert.Equal(t, "Not signed in\n", out)
}

func TestEnrollValidationErrorsStayLocal(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	defer srv.Close()

	_, errOut, err := run(t, "--config", writeTestConfig(t, srv.URL), "enroll", "--email", "ada@example.org")
	require.Error(t, err)
	assert.Contains(t, errOut, "plan: Please select a membership plan")
	assert.Contains(t, errOut, "affiliation")
	assert.Zero(t, hits)
}

func TestEnrollFree(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"response":{"_id":"u-free"}}}`))
	}))
	defer srv.Close()

	out, _, err := run(t, "--config", writeTestConfig(t, srv.URL), "enroll", "--free",
		"--first-name", "Ada", "--last-name", "Lovelace", "--affiliation", "Analytical Society",
		"--department", "Mathematics", "--city", "London", "--country", "UK",
		"--email", "ada@example.org", "--password", "Abcdefg1")
	require.NoError(t, err)
	assert.Contains(t, out, "FREE membership is active (user u-free)")
}

func TestResumeWithoutParameters(t *testing.T) {
	_, _, err := run(t, "--config", writeTestConfig(t, "https://api.example.org"), "resume", "--url", "http://localhost:8080/payment/success")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid success URL")
}

func TestParseReturn(t *testing.T) {
	q, err := parseReturn("http://localhost:8080/payment/success?paymentId=PAY1&PayerID=PAYER1")
	require.NoError(t, err)
	assert.Equal(t, "PAY1", q.Get("paymentId"))
	assert.Equal(t, "PAYER1", q.Get("PayerID"))

	q, err = parseReturn("?subscriptionId=SUB1")
	require.NoError(t, err)
	assert.Equal(t, "SUB1", q.Get("subscriptionId"))

	q, err = parseReturn("token=EC-1")
	require.NoError(t, err)
	assert.Equal(t, "EC-1", q.Get("token"))

	_, err = parseReturn("%zz")
	assert.Error(t, err)
}

func TestRetryWithBackoff(t *testing.T) {
	calls := 0
	err := retryWithBackoff(func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}, 5, time.Millisecond, logger.NewTestLogger(t), "op")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = retryWithBackoff(func() error { calls++; return errors.New("down") }, 2, time.Millisecond, logger.NewTestLogger(t), "op")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op failed after 2 attempts")
	assert.Equal(t, 2, calls)
}
