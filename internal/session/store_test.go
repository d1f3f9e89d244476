package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/tax-portal/constants"
	"github.com/joseph-ayodele/tax-portal/internal/common"
	"github.com/joseph-ayodele/tax-portal/internal/entity"
)

var testNow = time.Date(2024, 4, 15, 12, 0, 0, 0, time.UTC)

type stubAPI struct {
	mu          sync.Mutex
	documents   []entity.Document
	receipts    []entity.Receipt
	returns     []entity.TaxReturn
	clients     []entity.AccountSummary
	receiptsErr error
	clientCalls int
	created     []int
}

func (s *stubAPI) ListDocuments(context.Context) ([]entity.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documents, nil
}

func (s *stubAPI) ListReceipts(context.Context) ([]entity.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receipts, s.receiptsErr
}

func (s *stubAPI) ListReturns(context.Context) ([]entity.TaxReturn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.returns, nil
}

func (s *stubAPI) ListClients(context.Context) ([]entity.AccountSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientCalls++
	return s.clients, nil
}

func (s *stubAPI) CreateReturn(_ context.Context, year int) (*entity.TaxReturn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, year)
	tr := entity.TaxReturn{ID: int64(len(s.returns) + 1), Year: year, Status: constants.ReturnDraft}
	s.returns = append(s.returns, tr)
	return &tr, nil
}

func (s *stubAPI) UpdateReturnStatus(_ context.Context, id int64, status constants.ReturnStatus) (*entity.TaxReturn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.returns {
		if s.returns[i].ID == id {
			s.returns[i].Status = status
			tr := s.returns[i]
			return &tr, nil
		}
	}
	return nil, errors.New("not found")
}

func (s *stubAPI) DeleteDocument(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []entity.Document
	for _, d := range s.documents {
		if d.ID != id {
			kept = append(kept, d)
		}
	}
	s.documents = kept
	return nil
}

func token(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-0123456789"))
	require.NoError(t, err)
	return tok
}

func newStore(api API) *Store {
	return NewStore(api, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), WithClock(func() time.Time { return testNow }))
}

func TestParseIdentity(t *testing.T) {
	tok := token(t, jwt.MapClaims{"sub": "42", "user_type": "cpa", "exp": testNow.Add(time.Hour).Unix()})
	id, err := ParseIdentity(tok, constants.UserIndividual, testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id.UserID)
	assert.Equal(t, constants.UserCPA, id.UserType)

	noType := token(t, jwt.MapClaims{"sub": "7"})
	id, err = ParseIdentity(noType, constants.UserBusiness, testNow)
	require.NoError(t, err)
	assert.Equal(t, constants.UserBusiness, id.UserType)

	expired := token(t, jwt.MapClaims{"sub": "1", "exp": testNow.Add(-time.Minute).Unix()})
	_, err = ParseIdentity(expired, "", testNow)
	assert.ErrorIs(t, err, common.ErrSessionExpired)

	_, err = ParseIdentity("", "", testNow)
	assert.ErrorIs(t, err, common.ErrUnauthorized)
	_, err = ParseIdentity("not-a-jwt", "", testNow)
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestInitialize_LoadsCollections(t *testing.T) {
	api := &stubAPI{
		documents: []entity.Document{{ID: 1}},
		receipts:  []entity.Receipt{{ID: 2}},
		returns:   []entity.TaxReturn{{ID: 3, Year: 2023}},
		clients:   []entity.AccountSummary{{ID: 9, Email: "c@example.com"}},
	}
	s := newStore(api)

	require.NoError(t, s.Initialize(context.Background(), token(t, jwt.MapClaims{"sub": "1"}), constants.UserIndividual))
	assert.Len(t, s.Documents(), 1)
	assert.Len(t, s.Receipts(), 1)
	assert.Len(t, s.Returns(), 1)
	assert.Empty(t, s.Clients(), "non-CPA accounts do not load clients")
	assert.Equal(t, 0, api.clientCalls)
	assert.Equal(t, testNow, s.RefreshedAt())

	cpa := newStore(api)
	require.NoError(t, cpa.Initialize(context.Background(), token(t, jwt.MapClaims{"sub": "2", "user_type": "cpa"}), ""))
	assert.True(t, cpa.IsCPA())
	assert.Len(t, cpa.Clients(), 1)
}

func TestRefresh_FailureKeepsPreviousCollections(t *testing.T) {
	api := &stubAPI{documents: []entity.Document{{ID: 1}}, receipts: []entity.Receipt{{ID: 2}}}
	s := newStore(api)
	require.NoError(t, s.Initialize(context.Background(), token(t, jwt.MapClaims{"sub": "1"}), ""))

	api.mu.Lock()
	api.documents = []entity.Document{{ID: 1}, {ID: 5}}
	api.receiptsErr = errors.New("backend down")
	api.mu.Unlock()

	require.Error(t, s.Refresh(context.Background()))
	assert.Len(t, s.Documents(), 1, "documents must not be patched when another fetch failed")
}

func TestRefresh_RequiresActiveSession(t *testing.T) {
	s := newStore(&stubAPI{})
	assert.ErrorIs(t, s.Refresh(context.Background()), common.ErrInvalidState)
}

func TestTeardown(t *testing.T) {
	api := &stubAPI{documents: []entity.Document{{ID: 1}}}
	s := newStore(api)
	require.NoError(t, s.Initialize(context.Background(), token(t, jwt.MapClaims{"sub": "1"}), ""))

	s.Teardown()
	assert.False(t, s.Active())
	assert.Empty(t, s.Documents())
	assert.Equal(t, Identity{}, s.Identity())
	assert.ErrorIs(t, s.Refresh(context.Background()), common.ErrInvalidState)
}

func TestCreateReturn(t *testing.T) {
	api := &stubAPI{}
	s := newStore(api)
	require.NoError(t, s.Initialize(context.Background(), token(t, jwt.MapClaims{"sub": "1"}), ""))

	_, err := s.CreateReturn(context.Background(), 1999)
	assert.ErrorIs(t, err, common.ErrValidation)
	_, err = s.CreateReturn(context.Background(), 2026)
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Empty(t, api.created)

	tr, err := s.CreateReturn(context.Background(), 2024)
	require.NoError(t, err)
	assert.Equal(t, 2024, tr.Year)
	require.Len(t, s.Returns(), 1)

	_, err = s.UpdateReturnStatus(context.Background(), tr.ID, "done")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = s.UpdateReturnStatus(context.Background(), tr.ID, constants.ReturnInReview)
	require.NoError(t, err)
	assert.Equal(t, constants.ReturnInReview, s.Returns()[0].Status)
}

func TestDeleteDocument(t *testing.T) {
	api := &stubAPI{documents: []entity.Document{{ID: 1}, {ID: 2}}}
	s := newStore(api)
	require.NoError(t, s.Initialize(context.Background(), token(t, jwt.MapClaims{"sub": "1"}), ""))

	require.NoError(t, s.DeleteDocument(context.Background(), 1))
	docs := s.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, int64(2), docs[0].ID)
}
