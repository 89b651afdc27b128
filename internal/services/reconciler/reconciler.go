// Package reconciler содержит бизнес-логику применения webhook-событий
// платёжного провайдера к записям о праве доступа.
//
// Обработка идемпотентна: одно и то же событие может прийти повторно, и
// повторное применение даёт то же конечное состояние. Каждое событие
// переводит запись в полное целевое состояние, а не в дельту, поэтому
// гонка двух конкурентных писателей сходится к одному из двух валидных
// состояний. Провайдер не повторяет доставку при не-2xx ответе, поэтому
// события с невосстановимыми данными подтверждаются без действий, а отказ
// записи после повторов подтверждается с алертом оператору — дрейф
// устраняется следующей сверкой или вручную.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/magabrotheeeer/entitlement-reconciler/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/metrics"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/models"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/paymentprovider"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/rabbitmq"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/storage/repository"
)

// writeAttempts число попыток записи целевого состояния.
const writeAttempts = 2

// EntitlementRepository определяет методы хранилища, нужные reconciler-у.
type EntitlementRepository interface {
	// GetEntitlement возвращает запись по email владельца.
	GetEntitlement(ctx context.Context, ownerEmail string) (*models.EntitlementRecord, error)
	// UpsertEntitlement записывает полное целевое состояние записи.
	UpsertEntitlement(ctx context.Context, rec *models.EntitlementRecord) error
}

// AuditRepository определяет журнал аудита для фиксации сбоев обработки.
type AuditRepository interface {
	CreateAuditEntry(ctx context.Context, entry models.AuditEntry) (int, error)
}

// Notifier публикует уведомления и алерты в брокер сообщений.
type Notifier interface {
	Publish(routingKey string, message any) error
}

// Service реализует применение webhook-событий к записям о праве доступа.
type Service struct {
	repo     EntitlementRepository
	audit    AuditRepository
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
}

// New создает новый экземпляр Service.
func New(repo EntitlementRepository, audit AuditRepository, notifier Notifier, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		audit:    audit,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// ProcessEvent применяет событие провайдера. Возвращает ошибку только при
// невозможности прочитать событие; все прикладные сбои подтверждаются,
// чтобы не зациклить повторную доставку.
func (s *Service) ProcessEvent(ctx context.Context, event *paymentprovider.Event) error {
	const op = "reconciler.ProcessEvent"
	log := s.log.With(
		slog.String("op", op),
		slog.String("event_id", event.ID),
		slog.String("event_type", event.Type),
	)

	switch event.Type {
	case paymentprovider.EventCheckoutCompleted:
		s.handleCheckoutCompleted(ctx, log, event)
	case paymentprovider.EventSubscriptionUpdated:
		s.handleSubscriptionUpdated(ctx, log, event)
	case paymentprovider.EventSubscriptionDeleted:
		s.handleSubscriptionDeleted(ctx, log, event)
	default:
		log.Info("ignored webhook event")
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, "ignored").Inc()
	}
	return nil
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, log *slog.Logger, event *paymentprovider.Event) {
	email := models.NormalizeEmail(event.Object.Metadata[paymentprovider.MetaUserEmail])
	tierRaw := event.Object.Metadata[paymentprovider.MetaTier]
	tier, tierOK := models.ParseTier(tierRaw)

	// Без email или уровня восстановить контекст покупки невозможно,
	// а провайдер не повторит доставку — подтверждаем без действий.
	if email == "" || !tierOK {
		log.Error("checkout event missing metadata, acknowledged without action",
			slog.String("user_email", email), slog.String("tier", tierRaw))
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, "missing_metadata").Inc()
		return
	}

	rec, err := s.loadOrNewRecord(ctx, email)
	if err != nil {
		log.Error("failed to load entitlement record", sl.Err(err))
		s.alertOperator(ctx, email, fmt.Sprintf("checkout completed: failed to load record: %v", err))
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, "load_failed").Inc()
		return
	}

	rec.Premium = true
	rec.Tier = tier
	rec.Status = models.StatusActive
	rec.PaymentCustomerID = event.Object.CustomerID
	rec.WarnedForExpiration = nil

	var passExpiry *time.Time
	if daysRaw, isPass := event.Object.Metadata[paymentprovider.MetaExpirationDays]; isPass {
		days, err := strconv.Atoi(daysRaw)
		if err != nil || days <= 0 {
			log.Error("checkout event has invalid expiration_days, acknowledged without action",
				slog.String("expiration_days", daysRaw))
			metrics.WebhookEventsTotal.WithLabelValues(event.Type, "missing_metadata").Inc()
			return
		}
		exp := s.now().AddDate(0, 0, days)
		rec.ExpirationDate = &exp
		rec.PaymentSubscriptionID = ""
		passExpiry = &exp
	} else {
		rec.ExpirationDate = nil
		rec.PaymentSubscriptionID = event.Object.SubscriptionID
	}

	if !s.writeWithRetry(ctx, log, rec, "checkout completed") {
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, "write_failed").Inc()
		return
	}

	// Письмо о покупке — строго best-effort
	if err := s.notifier.Publish(rabbitmq.QueuePurchase.RoutingKey, models.PurchaseNotice{
		Email:     email,
		Tier:      tier,
		IsPass:    passExpiry != nil,
		ExpiresAt: passExpiry,
	}); err != nil {
		log.Warn("failed to publish purchase notice", sl.Err(err))
	}

	log.Info("entitlement granted", slog.String("owner_email", email), slog.String("tier", string(tier)))
	metrics.WebhookEventsTotal.WithLabelValues(event.Type, "applied").Inc()
}

func (s *Service) handleSubscriptionUpdated(ctx context.Context, log *slog.Logger, event *paymentprovider.Event) {
	email := models.NormalizeEmail(event.Object.Metadata[paymentprovider.MetaUserEmail])
	if email == "" {
		log.Error("subscription event missing user_email, acknowledged without action")
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, "missing_metadata").Inc()
		return
	}

	rec, err := s.repo.GetEntitlement(ctx, email)
	if err != nil {
		log.Error("failed to load entitlement record", sl.Err(err))
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, "load_failed").Inc()
		return
	}

	switch {
	case event.Object.Status == paymentprovider.SubscriptionStatusPastDue,
		event.Object.Status == paymentprovider.SubscriptionStatusUnpaid:
		// Первый же сигнал о пропущенном платеже снимает доступ, льготного
		// периода нет
		rec.Premium = false
		rec.Tier = models.TierFree
		rec.Status = models.StatusExpired
		rec.ExpirationDate = nil
		rec.WarnedForExpiration = nil
	case event.Object.CancelAtPeriodEnd:
		// Отмена не мгновенна: доступ сохраняется до конца оплаченного периода
		rec.Status = models.StatusCanceled
		rec.ExpirationDate = event.Object.CurrentPeriodEnd
	default:
		log.Info("subscription update requires no transition")
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, "ignored").Inc()
		return
	}

	if !s.writeWithRetry(ctx, log, rec, "subscription updated") {
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, "write_failed").Inc()
		return
	}
	log.Info("entitlement updated", slog.String("owner_email", email), slog.String("status", string(rec.Status)))
	metrics.WebhookEventsTotal.WithLabelValues(event.Type, "applied").Inc()
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, log *slog.Logger, event *paymentprovider.Event) {
	email := models.NormalizeEmail(event.Object.Metadata[paymentprovider.MetaUserEmail])
	if email == "" {
		log.Error("subscription event missing user_email, acknowledged without action")
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, "missing_metadata").Inc()
		return
	}

	rec, err := s.repo.GetEntitlement(ctx, email)
	if err != nil {
		log.Error("failed to load entitlement record", sl.Err(err))
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, "load_failed").Inc()
		return
	}

	rec.Premium = false
	rec.Tier = models.TierFree
	rec.Status = models.StatusExpired
	rec.ExpirationDate = nil
	rec.PaymentSubscriptionID = ""
	rec.WarnedForExpiration = nil

	if !s.writeWithRetry(ctx, log, rec, "subscription deleted") {
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, "write_failed").Inc()
		return
	}
	log.Info("entitlement revoked", slog.String("owner_email", email))
	metrics.WebhookEventsTotal.WithLabelValues(event.Type, "applied").Inc()
}

// loadOrNewRecord возвращает существующую запись или пустую заготовку:
// запись создаётся лениво при первом завершённом checkout.
func (s *Service) loadOrNewRecord(ctx context.Context, email string) (*models.EntitlementRecord, error) {
	rec, err := s.repo.GetEntitlement(ctx, email)
	if err == nil {
		return rec, nil
	}
	if errors.Is(err, repository.ErrEntitlementNotFound) {
		return &models.EntitlementRecord{OwnerEmail: email, Tier: models.TierFree}, nil
	}
	return nil, err
}

// writeWithRetry пишет целевое состояние с ограниченным числом повторов.
// При окончательном отказе запись остаётся в прежнем состоянии, оператору
// уходит алерт, событие всё равно подтверждается.
func (s *Service) writeWithRetry(ctx context.Context, log *slog.Logger, rec *models.EntitlementRecord, action string) bool {
	var err error
	for range writeAttempts {
		if err = s.repo.UpsertEntitlement(ctx, rec); err == nil {
			return true
		}
	}
	log.Error("failed to persist entitlement after retries", sl.Err(err))
	s.alertOperator(ctx, rec.OwnerEmail, fmt.Sprintf("%s: failed to persist entitlement after %d attempts: %v", action, writeAttempts, err))
	return false
}

func (s *Service) alertOperator(ctx context.Context, targetEmail, details string) {
	metrics.OperatorAlertsTotal.Inc()

	if _, err := s.audit.CreateAuditEntry(ctx, models.AuditEntry{
		AdminActor:  "system",
		ActionType:  models.AuditActionWebhookFailure,
		Details:     details,
		TargetEmail: targetEmail,
	}); err != nil {
		s.log.Warn("failed to write audit entry for webhook failure", sl.Err(err))
	}

	if err := s.notifier.Publish(rabbitmq.QueueAlerts.RoutingKey, models.OperatorAlert{
		Subject:     "entitlement reconciliation failure",
		Details:     details,
		TargetEmail: targetEmail,
		OccurredAt:  s.now(),
	}); err != nil {
		s.log.Warn("failed to publish operator alert", sl.Err(err))
	}
}
