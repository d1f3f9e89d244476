package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/tax-portal/constants"
	"github.com/joseph-ayodele/tax-portal/internal/common"
	"github.com/joseph-ayodele/tax-portal/internal/entity"
)

type NewAccount struct {
	Email       string
	PhoneNumber *string
	UserType    constants.UserType
	Profile     json.RawMessage
}

type AccountRepository interface {
	Create(ctx context.Context, a NewAccount) (*entity.AccountSummary, error)
	GetByID(ctx context.Context, id int64) (*entity.AccountSummary, error)
	GetByEmail(ctx context.Context, email string) (*entity.AccountSummary, error)
	// ListClients returns every non-CPA account.
	ListClients(ctx context.Context) ([]entity.AccountSummary, error)
}

type accountRepository struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewAccountRepository(db *sql.DB, logger *slog.Logger) AccountRepository {
	return &accountRepository{db: db, logger: logger, now: time.Now}
}

const accountColumns = `id, email, phone_number, user_type, profile, created_at, updated_at`

func (r *accountRepository) Create(ctx context.Context, a NewAccount) (*entity.AccountSummary, error) {
	now := stamp(r.now())
	var profile any
	if len(a.Profile) > 0 {
		profile = string(a.Profile)
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (email, phone_number, user_type, profile, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.Email, a.PhoneNumber, string(a.UserType), profile, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("account %s: %w", a.Email, ErrConflict)
		}
		r.logger.Error("failed to create account", "email", a.Email, "error", err)
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *accountRepository) GetByID(ctx context.Context, id int64) (*entity.AccountSummary, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM users WHERE id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("account", id)
	}
	return a, err
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*entity.AccountSummary, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM users WHERE email = ?`, email)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", email, common.ErrNotFound)
	}
	return a, err
}

func (r *accountRepository) ListClients(ctx context.Context) ([]entity.AccountSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM users WHERE user_type IN (?, ?) ORDER BY id`,
		string(constants.UserIndividual), string(constants.UserBusiness))
	if err != nil {
		r.logger.Error("failed to list clients", "error", err)
		return nil, err
	}
	defer rows.Close()

	out := []entity.AccountSummary{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (*entity.AccountSummary, error) {
	var (
		a                entity.AccountSummary
		phone, profile   sql.NullString
		userType         string
		created, updated string
	)
	if err := s.Scan(&a.ID, &a.Email, &phone, &userType, &profile, &created, &updated); err != nil {
		return nil, err
	}
	if phone.Valid {
		p := phone.String
		a.PhoneNumber = &p
	}
	a.UserType = constants.UserType(userType)
	if profile.Valid {
		a.Profile = json.RawMessage(profile.String)
	}
	var err error
	if a.CreatedAt, err = parseStamp(created); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseStamp(updated); err != nil {
		return nil, err
	}
	return &a, nil
}

func parseStamp(s string) (entity.Timestamp, error) {
	t, err := entity.ParseTimestamp(s)
	if err != nil {
		return entity.Timestamp{}, err
	}
	return entity.Timestamp{Time: t}, nil
}
