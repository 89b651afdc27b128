// Package access вычисляет эффективный доступ пользователя и управляет
// серверными переопределениями доступа. Переопределения хранятся на сервере
// и недоступны для подделки клиентом.
package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/entitlement-reconciler/internal/entitlement"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/models"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/storage/repository"
)

// overrideKeyPrefix — префикс ключа переопределения в Redis.
const overrideKeyPrefix = "override:"

// Переопределения живут ограниченное время, чтобы забытое отладочное
// состояние не оставалось навсегда.
const overrideTTL = 24 * time.Hour

// ErrInvalidOverride возвращается для переопределения без содержимого
// или с несуществующим уровнем.
var ErrInvalidOverride = errors.New("invalid access override")

// EntitlementRepository описывает чтение записей о праве доступа.
type EntitlementRepository interface {
	GetEntitlement(ctx context.Context, ownerEmail string) (*models.EntitlementRecord, error)
}

// OverrideStore хранит серверные переопределения доступа.
type OverrideStore interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Service вычисляет эффективный доступ.
type Service struct {
	repo  EntitlementRepository
	store OverrideStore
	log   *slog.Logger
	now   func() time.Time
}

// New создает новый экземпляр Service.
func New(repo EntitlementRepository, store OverrideStore, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		store: store,
		log:   log,
		now:   time.Now,
	}
}

// Status — проекция эффективного доступа для ответа API. Premium — удобный
// флаг "уровень выше free", Role дублирует роль из токена, чтобы клиенту
// не приходилось разбирать его самому.
type Status struct {
	Email          string     `json:"email"`
	Premium        bool       `json:"premium"`
	Tier           string     `json:"tier"`
	Role           string     `json:"role"`
	Reason         string     `json:"reason"`
	Status         string     `json:"status,omitempty"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
}

// Resolve возвращает эффективный доступ пользователя. Запись о праве доступа
// читается из хранилища без кэширования: дата истечения проверяется на
// каждый запрос, запись с прошедшей датой не дает доступа независимо от
// статуса в базе.
func (s *Service) Resolve(ctx context.Context, user models.AuthUser) (Status, error) {
	const op = "access.Resolve"

	email := models.NormalizeEmail(user.Email)

	override, err := s.getOverride(email)
	if err != nil {
		// Сбой стора переопределений не должен ронять проверку доступа
		s.log.Warn("failed to read access override", slog.String("email", email), sl.Err(err))
		override = nil
	}

	rec, err := s.repo.GetEntitlement(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrEntitlementNotFound) {
		return Status{}, fmt.Errorf("%s: %w", op, err)
	}

	acc := entitlement.Effective(user.Role, override, rec, s.now())

	status := Status{
		Email:   email,
		Premium: acc.Tier != models.TierFree,
		Tier:    string(acc.Tier),
		Role:    user.Role,
		Reason:  acc.Reason,
		Status:  string(acc.Status),
	}
	if rec != nil {
		status.ExpirationDate = rec.ExpirationDate
	}
	return status, nil
}

// HasTier сообщает, покрывает ли эффективный доступ пользователя требуемый уровень.
func (s *Service) HasTier(ctx context.Context, user models.AuthUser, required models.Tier) (bool, error) {
	status, err := s.Resolve(ctx, user)
	if err != nil {
		return false, err
	}
	tier, ok := models.ParseTier(status.Tier)
	if !ok {
		return false, nil
	}
	return tier.Covers(required), nil
}

// SetOverride сохраняет серверное переопределение доступа для пользователя.
func (s *Service) SetOverride(email string, override models.AccessOverride) error {
	const op = "access.SetOverride"

	if !override.FullUnlock && override.SimulateTier == "" {
		return fmt.Errorf("%s: %w", op, ErrInvalidOverride)
	}
	if override.SimulateTier != "" {
		if _, ok := models.ParseTier(override.SimulateTier); !ok {
			return fmt.Errorf("%s: %w", op, ErrInvalidOverride)
		}
	}

	email = models.NormalizeEmail(email)
	if err := s.store.Set(overrideKeyPrefix+email, override, overrideTTL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ClearOverride удаляет серверное переопределение доступа.
func (s *Service) ClearOverride(email string) error {
	const op = "access.ClearOverride"

	email = models.NormalizeEmail(email)
	if err := s.store.Invalidate(overrideKeyPrefix + email); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Service) getOverride(email string) (*models.AccessOverride, error) {
	var override models.AccessOverride
	found, err := s.store.Get(overrideKeyPrefix+email, &override)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &override, nil
}
