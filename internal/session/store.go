// Package session holds the authenticated account's collections for the
// lifetime of one login.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/tax-portal/constants"
	"github.com/joseph-ayodele/tax-portal/internal/common"
	"github.com/joseph-ayodele/tax-portal/internal/entity"
)

// API is the slice of the transfer client the store uses.
type API interface {
	ListDocuments(ctx context.Context) ([]entity.Document, error)
	ListReceipts(ctx context.Context) ([]entity.Receipt, error)
	ListReturns(ctx context.Context) ([]entity.TaxReturn, error)
	ListClients(ctx context.Context) ([]entity.AccountSummary, error)
	CreateReturn(ctx context.Context, year int) (*entity.TaxReturn, error)
	UpdateReturnStatus(ctx context.Context, id int64, status constants.ReturnStatus) (*entity.TaxReturn, error)
	DeleteDocument(ctx context.Context, id int64) error
}

// Identity is what the client knows about the logged-in account.
type Identity struct {
	UserID    int64
	UserType  constants.UserType
	ExpiresAt time.Time
}

// portalClaims are the token claims the client reads. The signature is
// verified by the backend, not here.
type portalClaims struct {
	UserType string `json:"user_type,omitempty"`
	jwt.RegisteredClaims
}

// Store is the per-login view state. Collections are always replaced as a
// whole on refresh.
type Store struct {
	api    API
	logger *slog.Logger
	now    func() time.Time

	mu          sync.RWMutex
	active      bool
	identity    Identity
	documents   []entity.Document
	receipts    []entity.Receipt
	returns     []entity.TaxReturn
	clients     []entity.AccountSummary
	refreshedAt time.Time
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(api API, opts ...Option) *Store {
	s := &Store{api: api, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = common.LoggerOrDefault(s.logger)
	return s
}

// ParseIdentity reads user id, user type and expiry from a bearer token
// without verifying its signature. fallback is used when the token carries
// no user_type claim.
func ParseIdentity(token string, fallback constants.UserType, now time.Time) (Identity, error) {
	if token == "" {
		return Identity{}, fmt.Errorf("no token: %w", common.ErrUnauthorized)
	}
	var claims portalClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Identity{}, fmt.Errorf("parse token: %w: %v", common.ErrUnauthorized, err)
	}

	id := Identity{UserType: fallback}
	if claims.UserType != "" {
		id.UserType = constants.UserType(claims.UserType)
	}
	if claims.Subject != "" {
		uid, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			return Identity{}, fmt.Errorf("token subject %q: %w", claims.Subject, common.ErrUnauthorized)
		}
		id.UserID = uid
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
		if !now.Before(id.ExpiresAt) {
			return Identity{}, common.ErrSessionExpired
		}
	}
	return id, nil
}

// Initialize starts the session for token and loads every collection.
func (s *Store) Initialize(ctx context.Context, token string, fallback constants.UserType) error {
	id, err := ParseIdentity(token, fallback, s.now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.active = true
	s.identity = id
	s.mu.Unlock()

	s.logger.Info("session.init", "user_id", id.UserID, "user_type", id.UserType)
	return s.Refresh(ctx)
}

// Teardown drops everything held for the login.
func (s *Store) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.identity = Identity{}
	s.documents = nil
	s.receipts = nil
	s.returns = nil
	s.clients = nil
	s.refreshedAt = time.Time{}
	s.logger.Info("session.teardown")
}

// Refresh re-queries documents, receipts, returns and, for CPA accounts,
// clients concurrently. Nothing is replaced unless every fetch succeeds.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.RLock()
	active, isCPA := s.active, s.identity.UserType == constants.UserCPA
	s.mu.RUnlock()
	if !active {
		return fmt.Errorf("refresh: %w", common.ErrInvalidState)
	}

	var (
		documents []entity.Document
		receipts  []entity.Receipt
		returns   []entity.TaxReturn
		clients   []entity.AccountSummary
	)
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		documents, err = s.api.ListDocuments(gctx)
		return err
	})
	g.Go(func() (err error) {
		receipts, err = s.api.ListReceipts(gctx)
		return err
	})
	g.Go(func() (err error) {
		returns, err = s.api.ListReturns(gctx)
		return err
	})
	if isCPA {
		g.Go(func() (err error) {
			clients, err = s.api.ListClients(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("session.refresh.fail", "error", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		// Torn down while the fetches were outstanding.
		return fmt.Errorf("refresh: %w", common.ErrInvalidState)
	}
	s.documents = documents
	s.receipts = receipts
	s.returns = returns
	s.clients = clients
	s.refreshedAt = s.now()
	s.logger.Info("session.refresh.ok",
		"documents", len(documents),
		"receipts", len(receipts),
		"returns", len(returns),
		"clients", len(clients),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

type newReturn struct {
	Year int `json:"year" validate:"gte=2000"`
}

// CreateReturn opens a return for year and refreshes the collections.
func (s *Store) CreateReturn(ctx context.Context, year int) (*entity.TaxReturn, error) {
	if err := common.ValidateStruct(newReturn{Year: year}); err != nil {
		return nil, err
	}
	if latest := s.now().Year() + 1; year > latest {
		return nil, &common.ValidationError{Field: "year", Value: year, Message: fmt.Sprintf("must be at most %d", latest)}
	}
	tr, err := s.api.CreateReturn(ctx, year)
	if err != nil {
		return nil, err
	}
	s.logger.Info("session.return.created", "return_id", tr.ID, "year", tr.Year)
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("session.return.refresh_fail", "error", err)
	}
	return tr, nil
}

// UpdateReturnStatus moves a return to status and refreshes the collections.
func (s *Store) UpdateReturnStatus(ctx context.Context, id int64, status constants.ReturnStatus) (*entity.TaxReturn, error) {
	if !status.Valid() {
		return nil, &common.ValidationError{Field: "status", Value: string(status), Message: "must be one of: draft in_review filed"}
	}
	tr, err := s.api.UpdateReturnStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("session.return.refresh_fail", "error", err)
	}
	return tr, nil
}

// DeleteDocument removes a document and refreshes the collections.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	if err := s.api.DeleteDocument(ctx, id); err != nil {
		return err
	}
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("session.document.refresh_fail", "error", err)
	}
	return nil
}

func (s *Store) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *Store) Identity() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

func (s *Store) IsCPA() bool {
	return s.Identity().UserType == constants.UserCPA
}

func (s *Store) Documents() []entity.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entity.Document(nil), s.documents...)
}

func (s *Store) Receipts() []entity.Receipt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entity.Receipt(nil), s.receipts...)
}

func (s *Store) Returns() []entity.TaxReturn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entity.TaxReturn(nil), s.returns...)
}

func (s *Store) Clients() []entity.AccountSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entity.AccountSummary(nil), s.clients...)
}

func (s *Store) RefreshedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshedAt
}
