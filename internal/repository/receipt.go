package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/tax-portal/internal/entity"
)

type NewReceipt struct {
	UserID   int64
	FilePath string
	Category string
	Amount   entity.Money
	Date     entity.Date
}

type ReceiptRepository interface {
	// ListReceipts filters by date when fromDate or toDate is set (inclusive).
	ListReceipts(ctx context.Context, userID int64, fromDate, toDate *time.Time) ([]entity.Receipt, error)
	Create(ctx context.Context, r NewReceipt) (*entity.Receipt, error)
}

type receiptRepository struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewReceiptRepository(db *sql.DB, logger *slog.Logger) ReceiptRepository {
	return &receiptRepository{db: db, logger: logger, now: time.Now}
}

const receiptColumns = `id, user_id, file_path, category, amount, date, uploaded_at`

func (r *receiptRepository) ListReceipts(ctx context.Context, userID int64, fromDate, toDate *time.Time) ([]entity.Receipt, error) {
	q := `SELECT ` + receiptColumns + ` FROM receipts WHERE user_id = ?`
	args := []any{userID}
	if fromDate != nil {
		q += ` AND date >= ?`
		args = append(args, entity.DateOf(*fromDate).String())
	}
	if toDate != nil {
		q += ` AND date <= ?`
		args = append(args, entity.DateOf(*toDate).String())
	}
	rows, err := r.db.QueryContext(ctx, q+` ORDER BY id`, args...)
	if err != nil {
		r.logger.Error("failed to list receipts", "user_id", userID, "error", err)
		return nil, err
	}
	defer rows.Close()

	out := []entity.Receipt{}
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (r *receiptRepository) Create(ctx context.Context, n NewReceipt) (*entity.Receipt, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO receipts (user_id, file_path, category, amount, date, uploaded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		n.UserID, n.FilePath, n.Category, n.Amount.String(), n.Date.String(), stamp(r.now()))
	if err != nil {
		r.logger.Error("failed to create receipt", "user_id", n.UserID, "error", err)
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE id = ?`, id)
	rec, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("receipt", id)
	}
	return rec, err
}

func scanReceipt(s scanner) (*entity.Receipt, error) {
	var (
		rec                    entity.Receipt
		category               sql.NullString
		amount, date, uploaded string
	)
	if err := s.Scan(&rec.ID, &rec.UserID, &rec.FilePath, &category, &amount, &date, &uploaded); err != nil {
		return nil, err
	}
	rec.Category = category.String
	var err error
	if rec.Amount, err = entity.NewMoney(amount); err != nil {
		return nil, err
	}
	if rec.Date, err = entity.ParseYMD(date); err != nil {
		return nil, err
	}
	if rec.UploadedAt, err = parseStamp(uploaded); err != nil {
		return nil, err
	}
	return &rec, nil
}
