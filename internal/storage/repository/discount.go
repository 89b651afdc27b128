package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/entitlement-reconciler/internal/models"
)

// CreateDiscountCode вставляет новый промокод.
func (s *Storage) CreateDiscountCode(ctx context.Context, code models.DiscountCode) error {
	const op = "storage.CreateDiscountCode"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO discount_codes (code, percent, expires_at, usage_count, usage_limit, active)
			  VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.DB.ExecContext(ctx, query,
		strings.ToUpper(code.Code), code.Percent, code.ExpiresAt,
		code.UsageCount, code.UsageLimit, code.Active)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 — unique_violation
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%s: %w", op, ErrDiscountCodeExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetDiscountCode возвращает промокод по коду.
func (s *Storage) GetDiscountCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	const op = "storage.GetDiscountCode"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT code, percent, expires_at, usage_count, usage_limit, active, created_at
			  FROM discount_codes WHERE code = $1`
	row := s.DB.QueryRowContext(ctx, query, strings.ToUpper(code))

	var result models.DiscountCode
	var expiresAt sql.NullTime
	err := row.Scan(&result.Code, &result.Percent, &expiresAt,
		&result.UsageCount, &result.UsageLimit, &result.Active, &result.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrDiscountCodeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		result.ExpiresAt = &t
	}
	return &result, nil
}
