// Package sweeper реализует периодический обход записей о праве доступа:
// истечение просроченных и предупреждение за день до окончания срока.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/magabrotheeeer/entitlement-reconciler/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/metrics"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/models"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/rabbitmq"
)

// warnThresholdDays — за сколько дней до истечения отправляется предупреждение.
const warnThresholdDays = 1

// EntitlementRepository описывает операции хранилища, нужные обходчику.
type EntitlementRepository interface {
	ListActivePremium(ctx context.Context) ([]*models.EntitlementRecord, error)
	UpsertEntitlement(ctx context.Context, rec *models.EntitlementRecord) error
	MarkWarned(ctx context.Context, ownerEmail string, expiration time.Time) error
}

// Notifier публикует уведомления в брокер сообщений.
type Notifier interface {
	Publish(routingKey string, message any) error
}

// Result — итог одного прохода обходчика.
type Result struct {
	Expired int `json:"expired"`
	Warned  int `json:"warned"`
}

// Service реализует проход по активным подпискам.
type Service struct {
	repo     EntitlementRepository
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
}

// New создает новый экземпляр Service.
func New(repo EntitlementRepository, notifier Notifier, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// Sweep обходит все активные премиум-записи. Записи без даты истечения
// пропускаются: их жизненным циклом управляет платежный провайдер.
// Просроченные записи переводятся в free/expired, записи ровно за день
// до истечения получают предупреждение. Повторное предупреждение для
// той же даты истечения не отправляется. Ошибка по одной записи не
// прерывает проход.
func (s *Service) Sweep(ctx context.Context) (Result, error) {
	const op = "sweeper.Sweep"

	var result Result

	records, err := s.repo.ListActivePremium(ctx)
	if err != nil {
		return result, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	for _, rec := range records {
		select {
		case <-ctx.Done():
			return result, fmt.Errorf("%s: %w", op, ctx.Err())
		default:
		}

		if rec.ExpirationDate == nil {
			continue
		}

		switch {
		case !rec.ExpirationDate.After(now):
			if s.expire(ctx, rec) {
				result.Expired++
			}
		case daysUntil(now, *rec.ExpirationDate) == warnThresholdDays:
			if s.warn(ctx, rec) {
				result.Warned++
			}
		}
	}

	s.log.Info("sweep finished",
		slog.Int("expired", result.Expired),
		slog.Int("warned", result.Warned),
		slog.Int("scanned", len(records)))
	return result, nil
}

// daysUntil возвращает количество дней до даты истечения, округленное вверх.
func daysUntil(now, expiration time.Time) int {
	return int(math.Ceil(expiration.Sub(now).Hours() / 24))
}

func (s *Service) expire(ctx context.Context, rec *models.EntitlementRecord) bool {
	expiredAt := *rec.ExpirationDate
	expiredTier := rec.Tier

	rec.Premium = false
	rec.Tier = models.TierFree
	rec.Status = models.StatusExpired
	rec.WarnedForExpiration = nil

	if err := s.repo.UpsertEntitlement(ctx, rec); err != nil {
		s.log.Error("failed to expire entitlement",
			slog.String("owner_email", rec.OwnerEmail), sl.Err(err))
		return false
	}
	metrics.SweepExpiredTotal.Inc()

	// Письмо об истечении — best-effort
	if err := s.notifier.Publish(rabbitmq.QueueExpired.RoutingKey, models.ExpiryNotice{
		Email:     rec.OwnerEmail,
		Tier:      expiredTier,
		ExpiredAt: expiredAt,
	}); err != nil {
		s.log.Warn("failed to publish expiry notice",
			slog.String("owner_email", rec.OwnerEmail), sl.Err(err))
	}
	return true
}

func (s *Service) warn(ctx context.Context, rec *models.EntitlementRecord) bool {
	// Предупреждение для этой даты истечения уже отправлялось
	if rec.WarnedForExpiration != nil && rec.WarnedForExpiration.Equal(*rec.ExpirationDate) {
		return false
	}

	if err := s.notifier.Publish(rabbitmq.QueueExpiring.RoutingKey, models.ExpiryWarning{
		Email:     rec.OwnerEmail,
		Tier:      rec.Tier,
		ExpiresAt: *rec.ExpirationDate,
	}); err != nil {
		s.log.Warn("failed to publish expiry warning",
			slog.String("owner_email", rec.OwnerEmail), sl.Err(err))
		return false
	}

	// Отметка ставится после успешной публикации, чтобы не потерять предупреждение
	if err := s.repo.MarkWarned(ctx, rec.OwnerEmail, *rec.ExpirationDate); err != nil {
		s.log.Error("failed to mark entitlement as warned",
			slog.String("owner_email", rec.OwnerEmail), sl.Err(err))
	}
	metrics.SweepWarnedTotal.Inc()
	return true
}
