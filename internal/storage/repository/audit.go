package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/entitlement-reconciler/internal/models"
)

// CreateAuditEntry добавляет запись в журнал аудита и возвращает её ID.
// Журнал только пополняется, методов изменения и удаления нет.
func (s *Storage) CreateAuditEntry(ctx context.Context, entry models.AuditEntry) (int, error) {
	const op = "storage.CreateAuditEntry"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO audit_log (admin_actor, action_type, details, target_email)
			  VALUES ($1, $2, $3, $4)
			  RETURNING id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		entry.AdminActor, entry.ActionType, entry.Details, models.NormalizeEmail(entry.TargetEmail)).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// ListAuditEntries возвращает записи журнала аудита с пагинацией,
// новые записи первыми.
func (s *Storage) ListAuditEntries(ctx context.Context, limit, offset int) ([]*models.AuditEntry, error) {
	const op = "storage.ListAuditEntries"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, admin_actor, action_type, details, target_email, created_at
			  FROM audit_log
			  ORDER BY id DESC
			  LIMIT $1 OFFSET $2`
	rows, err := s.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var result []*models.AuditEntry
	for rows.Next() {
		var item models.AuditEntry
		if err := rows.Scan(&item.ID, &item.AdminActor, &item.ActionType,
			&item.Details, &item.TargetEmail, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = rows.Close(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
