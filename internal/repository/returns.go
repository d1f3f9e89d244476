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
	"github.com/joseph-ayodele/tax-portal/internal/entity"
)

type ReturnRepository interface {
	List(ctx context.Context, userID int64) ([]entity.TaxReturn, error)
	// Create fails with ErrConflict when the user already has a return for year.
	Create(ctx context.Context, userID int64, year int, data json.RawMessage) (*entity.TaxReturn, error)
	UpdateStatus(ctx context.Context, userID, id int64, status constants.ReturnStatus) (*entity.TaxReturn, error)
}

type returnRepository struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewReturnRepository(db *sql.DB, logger *slog.Logger) ReturnRepository {
	return &returnRepository{db: db, logger: logger, now: time.Now}
}

const returnColumns = `id, user_id, cpa_id, year, status, return_data, created_at, updated_at`

func (r *returnRepository) List(ctx context.Context, userID int64) ([]entity.TaxReturn, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+returnColumns+` FROM tax_returns WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		r.logger.Error("failed to list returns", "user_id", userID, "error", err)
		return nil, err
	}
	defer rows.Close()

	out := []entity.TaxReturn{}
	for rows.Next() {
		tr, err := scanReturn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tr)
	}
	return out, rows.Err()
}

func (r *returnRepository) Create(ctx context.Context, userID int64, year int, data json.RawMessage) (*entity.TaxReturn, error) {
	now := stamp(r.now())
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO tax_returns (user_id, year, status, return_data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		userID, year, string(constants.ReturnDraft), string(data), now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("tax return %d: %w", year, ErrConflict)
		}
		r.logger.Error("failed to create return", "user_id", userID, "year", year, "error", err)
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.get(ctx, userID, id)
}

func (r *returnRepository) UpdateStatus(ctx context.Context, userID, id int64, status constants.ReturnStatus) (*entity.TaxReturn, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tax_returns SET status = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		string(status), stamp(r.now()), id, userID)
	if err != nil {
		r.logger.Error("failed to update return", "return_id", id, "error", err)
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, notFound("tax return", id)
	}
	return r.get(ctx, userID, id)
}

func (r *returnRepository) get(ctx context.Context, userID, id int64) (*entity.TaxReturn, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+returnColumns+` FROM tax_returns WHERE id = ? AND user_id = ?`, id, userID)
	tr, err := scanReturn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("tax return", id)
	}
	return tr, err
}

func scanReturn(s scanner) (*entity.TaxReturn, error) {
	var (
		tr               entity.TaxReturn
		cpa              sql.NullInt64
		status           string
		data             sql.NullString
		created, updated string
	)
	if err := s.Scan(&tr.ID, &tr.UserID, &cpa, &tr.Year, &status, &data, &created, &updated); err != nil {
		return nil, err
	}
	if cpa.Valid {
		id := cpa.Int64
		tr.CPAID = &id
	}
	tr.Status = constants.ReturnStatus(status)
	if data.Valid {
		tr.ReturnData = json.RawMessage(data.String)
	}
	var err error
	if tr.CreatedAt, err = parseStamp(created); err != nil {
		return nil, err
	}
	if tr.UpdatedAt, err = parseStamp(updated); err != nil {
		return nil, err
	}
	return &tr, nil
}
