package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/entitlement-reconciler/internal/models"
)

const entitlementColumns = `owner_email, premium, tier, subscription_status,
	subscription_expiration_date, payment_subscription_id, payment_customer_id,
	warned_for_expiration, created_at, updated_at`

func scanEntitlement(row interface{ Scan(dest ...any) error }) (*models.EntitlementRecord, error) {
	var rec models.EntitlementRecord
	var subID, custID sql.NullString
	var expiration, warned sql.NullTime
	if err := row.Scan(&rec.OwnerEmail, &rec.Premium, &rec.Tier, &rec.Status,
		&expiration, &subID, &custID, &warned, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if expiration.Valid {
		t := expiration.Time
		rec.ExpirationDate = &t
	}
	if warned.Valid {
		t := warned.Time
		rec.WarnedForExpiration = &t
	}
	rec.PaymentSubscriptionID = subID.String
	rec.PaymentCustomerID = custID.String
	return &rec, nil
}

// GetEntitlement возвращает запись о праве доступа по email владельца.
func (s *Storage) GetEntitlement(ctx context.Context, ownerEmail string) (*models.EntitlementRecord, error) {
	const op = "storage.GetEntitlement"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + entitlementColumns + `
			  FROM entitlements WHERE owner_email = $1`
	row := s.DB.QueryRowContext(ctx, query, models.NormalizeEmail(ownerEmail))

	rec, err := scanEntitlement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrEntitlementNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}

// UpsertEntitlement записывает полное целевое состояние записи о праве
// доступа. Запись создаётся при первом обращении; при конфликте по ключу
// owner_email все поля перезаписываются — обработчики всегда вычисляют
// полное состояние, а не дельту.
func (s *Storage) UpsertEntitlement(ctx context.Context, rec *models.EntitlementRecord) error {
	const op = "storage.UpsertEntitlement"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO entitlements (owner_email, premium, tier, subscription_status,
				  subscription_expiration_date, payment_subscription_id, payment_customer_id,
				  warned_for_expiration, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, now(), now())
			  ON CONFLICT (owner_email) DO UPDATE SET
				  premium = EXCLUDED.premium,
				  tier = EXCLUDED.tier,
				  subscription_status = EXCLUDED.subscription_status,
				  subscription_expiration_date = EXCLUDED.subscription_expiration_date,
				  payment_subscription_id = EXCLUDED.payment_subscription_id,
				  payment_customer_id = EXCLUDED.payment_customer_id,
				  warned_for_expiration = EXCLUDED.warned_for_expiration,
				  updated_at = now()`
	_, err := s.DB.ExecContext(ctx, query,
		models.NormalizeEmail(rec.OwnerEmail), rec.Premium, rec.Tier, rec.Status,
		rec.ExpirationDate, rec.PaymentSubscriptionID, rec.PaymentCustomerID,
		rec.WarnedForExpiration)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListActivePremium возвращает все записи со статусом active и флагом premium —
// кандидатов для периодической проверки срока действия.
func (s *Storage) ListActivePremium(ctx context.Context) ([]*models.EntitlementRecord, error) {
	const op = "storage.ListActivePremium"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + entitlementColumns + `
			  FROM entitlements
			  WHERE subscription_status = $1 AND premium = true
			  ORDER BY owner_email`
	rows, err := s.DB.QueryContext(ctx, query, models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var result []*models.EntitlementRecord
	for rows.Next() {
		rec, err := scanEntitlement(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = rows.Close(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// MarkWarned сохраняет дату окончания, о которой отправлено предупреждение,
// чтобы повторный запуск проверки не дублировал письмо.
func (s *Storage) MarkWarned(ctx context.Context, ownerEmail string, expiration time.Time) error {
	const op = "storage.MarkWarned"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE entitlements SET warned_for_expiration = $1, updated_at = now()
			  WHERE owner_email = $2`
	_, err := s.DB.ExecContext(ctx, query, expiration, models.NormalizeEmail(ownerEmail))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
