package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/tax-portal/constants"
	"github.com/joseph-ayodele/tax-portal/internal/common"
	"github.com/joseph-ayodele/tax-portal/internal/devserver"
	"github.com/joseph-ayodele/tax-portal/internal/repository"
	"github.com/joseph-ayodele/tax-portal/internal/transfer"
)

const secret = "cli-test-secret-0123"

// backend starts a devserver and returns its URL and a token for a fresh account.
func backend(t *testing.T) (string, string) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("TAXPORTAL_LOG_LEVEL", "error")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := repository.Open(context.Background(), repository.Config{DSN: ":memory:", DialTimeout: time.Second}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { repository.Close(db, logger) })

	srv := httptest.NewServer(devserver.New(db, devserver.Config{JWTSecret: secret, UploadDir: t.TempDir()}, logger).Router())
	t.Cleanup(srv.Close)

	acct, err := repository.NewAccountRepository(db, logger).Create(context.Background(),
		repository.NewAccount{Email: "ada@example.com", UserType: constants.UserIndividual})
	require.NoError(t, err)
	tok, err := devserver.IssueToken(secret, *acct, time.Hour, time.Now())
	require.NoError(t, err)
	return srv.URL, tok
}

func run(t *testing.T, url, token string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--api-url", url, "--token", token}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestReturnsAndDashboard(t *testing.T) {
	url, tok := backend(t)

	out, err := run(t, url, tok, "returns", "create", "2024")
	require.NoError(t, err)
	assert.Contains(t, out, "Created 2024 return #1 (draft)")

	_, err = run(t, url, tok, "returns", "create", "2024")
	require.Error(t, err)
	assert.Equal(t, "Tax return for this year already exists", displayError(err))

	out, err = run(t, url, tok, "returns", "status", "1", "filed")
	require.NoError(t, err)
	assert.Contains(t, out, "Return #1 is now filed")

	out, err = run(t, url, tok, "dashboard")
	require.NoError(t, err)
	assert.Contains(t, out, "(individual)")
	assert.Contains(t, out, "2024")
	assert.NotContains(t, out, "CLIENT")
}

func TestUploadDocumentAndExtraction(t *testing.T) {
	url, tok := backend(t)
	path := filepath.Join(t.TempDir(), "w2.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\nBT\n(Employer: Acme Corp) Tj\nET\n"), 0o644))

	out, err := run(t, url, tok, "upload", "document", path, "--type", "w2", "--wait")
	require.NoError(t, err)
	assert.Contains(t, out, "as document #1 (W-2 Form)")
	assert.Contains(t, out, "Documents on file: 1")
	assert.Contains(t, out, "Employer Name:")
	assert.Contains(t, out, "Acme Corp")

	out, err = run(t, url, tok, "extraction", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Raw text:")
}

func TestUploadReceiptValidation(t *testing.T) {
	url, tok := backend(t)
	path := filepath.Join(t.TempDir(), "lunch.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n"), 0o644))

	_, err := run(t, url, tok, "upload", "receipt", path, "--amount", "abc")
	require.Error(t, err)

	out, err := run(t, url, tok, "upload", "receipt", path, "--amount", "12.50", "--date", "2024-03-01", "--category", "meals")
	require.NoError(t, err)
	assert.Contains(t, out, "meals $12.50 on 2024-03-01")
	assert.Contains(t, out, "Receipts on file: 1")
}

func TestSubscribeAndCancel(t *testing.T) {
	url, tok := backend(t)
	year := time.Now().Year() + 2

	out, err := run(t, url, tok, "plans")
	require.NoError(t, err)
	assert.Contains(t, out, "Premium Plan")
	assert.Contains(t, out, "$19.99/mo")

	_, err = run(t, url, tok, "subscribe", "premium", "--card", "4000000000000002",
		"--exp-month", "12", "--exp-year", strconv.Itoa(year), "--cvc", "123")
	require.Error(t, err)
	assert.Equal(t, "Your card was declined.", err.Error())

	out, err = run(t, url, tok, "subscribe", "premium", "--card", "4242 4242 4242 4242",
		"--exp-month", "12", "--exp-year", strconv.Itoa(year), "--cvc", "123")
	require.NoError(t, err)
	assert.Contains(t, out, "Subscription created successfully!")

	out, err = run(t, url, tok, "payments")
	require.NoError(t, err)
	assert.Contains(t, out, "$19.99 USD")

	out, err = run(t, url, tok, "cancel")
	require.NoError(t, err)
	assert.Contains(t, out, "Subscription canceled successfully")

	_, err = run(t, url, tok, "cancel")
	assert.EqualError(t, err, "You have no active subscription")
}

func TestServicesPurchaseIsAcknowledged(t *testing.T) {
	url, tok := backend(t)
	out, err := run(t, url, tok, "services", "--buy", "document_review")
	require.NoError(t, err)
	assert.Contains(t, out, "Purchase Document Review for $75.00 - Feature coming soon!")
}

func TestDisplayError(t *testing.T) {
	assert.Equal(t, "Access denied", displayError(&transfer.Error{Status: 403, Message: "Access denied"}))
	assert.Equal(t, "TAXPORTAL_TOKEN is required",
		displayError(common.NewAppError("CONFIG_ERROR", "TAXPORTAL_TOKEN is required", nil)))
	assert.Equal(t, "boom", displayError(errors.New("boom")))
}
