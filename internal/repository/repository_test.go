package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/tax-portal/constants"
	"github.com/joseph-ayodele/tax-portal/internal/common"
	"github.com/joseph-ayodele/tax-portal/internal/entity"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), Config{DSN: ":memory:", DialTimeout: time.Second}, quiet())
	require.NoError(t, err)
	t.Cleanup(func() { Close(db, quiet()) })
	require.NoError(t, HealthCheck(context.Background(), db, time.Second, quiet()))
	return db
}

func seedAccount(t *testing.T, db *sql.DB, email string, ut constants.UserType) *entity.AccountSummary {
	t.Helper()
	a, err := NewAccountRepository(db, quiet()).Create(context.Background(), NewAccount{
		Email: email, UserType: ut, Profile: json.RawMessage(`{"first_name":"Ada"}`),
	})
	require.NoError(t, err)
	return a
}

func TestAccounts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewAccountRepository(db, quiet())

	ind := seedAccount(t, db, "ind@example.com", constants.UserIndividual)
	seedAccount(t, db, "cpa@example.com", constants.UserCPA)
	seedAccount(t, db, "biz@example.com", constants.UserBusiness)

	assert.Equal(t, "Ada", ind.DisplayName())
	assert.False(t, ind.CreatedAt.IsZero())

	_, err := repo.Create(ctx, NewAccount{Email: "ind@example.com", UserType: constants.UserIndividual})
	assert.ErrorIs(t, err, ErrConflict)

	clients, err := repo.ListClients(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 2)
	assert.Equal(t, "ind@example.com", clients[0].Email)
	assert.Equal(t, "biz@example.com", clients[1].Email)

	_, err = repo.GetByID(ctx, 999)
	assert.ErrorIs(t, err, common.ErrNotFound)
	got, err := repo.GetByEmail(ctx, "cpa@example.com")
	require.NoError(t, err)
	assert.Equal(t, constants.UserCPA, got.UserType)
}

func TestDocuments_RevealAfterPolls(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := seedAccount(t, db, "u@example.com", constants.UserIndividual)
	repo := NewDocumentRepository(db, quiet())

	raw := "Wages 100"
	fields := entity.NewFieldSet(
		entity.Field{Key: "employer_name", Value: json.RawMessage(`"ACME"`)},
		entity.Field{Key: "box_1", Value: json.RawMessage(`100`)},
	)
	doc, err := repo.Create(ctx, NewDocument{
		UserID: user.ID, DocumentType: constants.DocumentW2, FilePath: "w2.pdf",
		Extraction: &entity.ExtractionOutcome{RawText: &raw, Fields: fields}, RevealAfter: 2,
	})
	require.NoError(t, err)
	assert.Nil(t, doc.Visible().Extraction)

	first, err := repo.Poll(ctx, user.ID, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, first.Visible().Extraction)

	second, err := repo.Poll(ctx, user.ID, doc.ID)
	require.NoError(t, err)
	ex := second.Visible().Extraction
	require.NotNil(t, ex)
	assert.Equal(t, "Wages 100", *ex.RawText)
	keys := []string{}
	for _, f := range ex.Fields.Fields() {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{"employer_name", "box_1"}, keys)

	_, err = repo.Poll(ctx, user.ID+1, doc.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	list, err := repo.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = repo.Delete(ctx, user.ID, doc.ID)
	require.NoError(t, err)
	_, err = repo.Delete(ctx, user.ID, doc.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestReceipts_DateWindow(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := seedAccount(t, db, "u@example.com", constants.UserIndividual)
	repo := NewReceiptRepository(db, quiet())

	for _, d := range []string{"2024-01-10", "2024-02-10", "2024-03-10"} {
		day, err := entity.ParseYMD(d)
		require.NoError(t, err)
		_, err = repo.Create(ctx, NewReceipt{UserID: user.ID, FilePath: d + ".jpg", Category: "meals", Amount: entity.MustMoney("12.50"), Date: day})
		require.NoError(t, err)
	}

	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	got, err := repo.ListReceipts(ctx, user.ID, &from, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-02-10", got[0].Date.String())
	assert.Equal(t, "$12.50", got[0].Amount.Display())

	all, err := repo.ListReceipts(ctx, user.ID, nil, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestReturns(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := seedAccount(t, db, "u@example.com", constants.UserIndividual)
	repo := NewReturnRepository(db, quiet())

	tr, err := repo.Create(ctx, user.ID, 2024, nil)
	require.NoError(t, err)
	assert.Equal(t, constants.ReturnDraft, tr.Status)
	assert.JSONEq(t, `{}`, string(tr.ReturnData))
	assert.Nil(t, tr.CPAID)

	_, err = repo.Create(ctx, user.ID, 2024, nil)
	assert.ErrorIs(t, err, ErrConflict)

	updated, err := repo.UpdateStatus(ctx, user.ID, tr.ID, constants.ReturnInReview)
	require.NoError(t, err)
	assert.Equal(t, constants.ReturnInReview, updated.Status)

	_, err = repo.UpdateStatus(ctx, user.ID, 999, constants.ReturnFiled)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSubscriptionsAndPayments(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := seedAccount(t, db, "u@example.com", constants.UserIndividual)
	subs := NewSubscriptionRepository(db, quiet())

	_, err := subs.Active(ctx, user.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	_, err = subs.Create(ctx, user.ID, "basic", start, start.AddDate(0, 0, 30))
	require.NoError(t, err)
	second, err := subs.Create(ctx, user.ID, "premium", start, start.AddDate(0, 0, 30))
	require.NoError(t, err)

	active, err := subs.Active(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
	assert.Equal(t, "premium", active.PlanType)
	assert.True(t, active.StartDate.Equal(start))

	ok, err := subs.CancelActive(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = subs.CancelActive(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	pays := NewPaymentRepository(db, quiet())
	_, err = pays.Create(ctx, NewPayment{UserID: user.ID, Amount: entity.MustMoney("19.99"), Currency: "usd",
		PaymentMethod: "card", TransactionID: "pm_1", Status: "succeeded"})
	require.NoError(t, err)
	list, err := pays.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "19.99", list[0].Amount.String())
}
