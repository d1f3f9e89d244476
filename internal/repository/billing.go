package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/tax-portal/constants"
	"github.com/joseph-ayodele/tax-portal/internal/entity"
)

type SubscriptionRepository interface {
	// Active returns the user's active subscription or an ErrNotFound error.
	Active(ctx context.Context, userID int64) (*entity.Subscription, error)
	Create(ctx context.Context, userID int64, planType string, start, end time.Time) (*entity.Subscription, error)
	// CancelActive marks the active subscription canceled; false when there was none.
	CancelActive(ctx context.Context, userID int64) (bool, error)
}

type subscriptionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSubscriptionRepository(db *sql.DB, logger *slog.Logger) SubscriptionRepository {
	return &subscriptionRepository{db: db, logger: logger}
}

const subscriptionColumns = `id, user_id, plan_type, start_date, end_date, status`

func (r *subscriptionRepository) Active(ctx context.Context, userID int64) (*entity.Subscription, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = ? AND status = ? ORDER BY id DESC LIMIT 1`,
		userID, string(constants.SubscriptionActive))
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("active subscription for user", userID)
	}
	return sub, err
}

// Create replaces any active subscription with the new one.
func (r *subscriptionRepository) Create(ctx context.Context, userID int64, planType string, start, end time.Time) (*entity.Subscription, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE subscriptions SET status = ? WHERE user_id = ? AND status = ?`,
		string(constants.SubscriptionCanceled), userID, string(constants.SubscriptionActive)); err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO subscriptions (user_id, plan_type, start_date, end_date, status) VALUES (?, ?, ?, ?, ?)`,
		userID, planType, stamp(start), stamp(end), string(constants.SubscriptionActive))
	if err != nil {
		r.logger.Error("failed to create subscription", "user_id", userID, "plan_type", planType, "error", err)
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	sub, err := scanSubscription(tx.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	return sub, tx.Commit()
}

func (r *subscriptionRepository) CancelActive(ctx context.Context, userID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE subscriptions SET status = ? WHERE user_id = ? AND status = ?`,
		string(constants.SubscriptionCanceled), userID, string(constants.SubscriptionActive))
	if err != nil {
		r.logger.Error("failed to cancel subscription", "user_id", userID, "error", err)
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func scanSubscription(s scanner) (*entity.Subscription, error) {
	var (
		sub                entity.Subscription
		start, end, status string
	)
	if err := s.Scan(&sub.ID, &sub.UserID, &sub.PlanType, &start, &end, &status); err != nil {
		return nil, err
	}
	sub.Status = constants.SubscriptionStatus(status)
	var err error
	if sub.StartDate, err = parseStamp(start); err != nil {
		return nil, err
	}
	if sub.EndDate, err = parseStamp(end); err != nil {
		return nil, err
	}
	return &sub, nil
}

type NewPayment struct {
	UserID        int64
	Amount        entity.Money
	Currency      string
	PaymentMethod string
	TransactionID string
	Status        string
}

type PaymentRepository interface {
	// List returns payments newest first.
	List(ctx context.Context, userID int64) ([]entity.Payment, error)
	Create(ctx context.Context, p NewPayment) (*entity.Payment, error)
}

type paymentRepository struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewPaymentRepository(db *sql.DB, logger *slog.Logger) PaymentRepository {
	return &paymentRepository{db: db, logger: logger, now: time.Now}
}

const paymentColumns = `id, user_id, amount, currency, payment_method, transaction_id, status, created_at`

func (r *paymentRepository) List(ctx context.Context, userID int64) ([]entity.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		r.logger.Error("failed to list payments", "user_id", userID, "error", err)
		return nil, err
	}
	defer rows.Close()

	out := []entity.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *paymentRepository) Create(ctx context.Context, p NewPayment) (*entity.Payment, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (user_id, amount, currency, payment_method, transaction_id, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.Amount.String(), p.Currency, p.PaymentMethod, p.TransactionID, p.Status, stamp(r.now()))
	if err != nil {
		r.logger.Error("failed to record payment", "user_id", p.UserID, "error", err)
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	out, err := scanPayment(r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("payment", id)
	}
	return out, err
}

func scanPayment(s scanner) (*entity.Payment, error) {
	var (
		p               entity.Payment
		amount, created string
	)
	if err := s.Scan(&p.ID, &p.UserID, &amount, &p.Currency, &p.PaymentMethod, &p.TransactionID, &p.Status, &created); err != nil {
		return nil, err
	}
	var err error
	if p.Amount, err = entity.NewMoney(amount); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseStamp(created); err != nil {
		return nil, err
	}
	return &p, nil
}
