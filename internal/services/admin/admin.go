// Package admin реализует административные операции над правами доступа:
// смену роли, ручную выдачу и отзыв подписки. Каждая операция пишет запись
// в журнал аудита независимо от результата.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/entitlement-reconciler/internal/authprovider"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/metrics"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/models"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/rabbitmq"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/storage/repository"
)

// writeAttempts — количество попыток записи в хранилище для операций,
// которые должны завершиться честным результатом.
const writeAttempts = 2

var (
	// ErrForbidden возвращается, когда вызывающий не является администратором.
	ErrForbidden = errors.New("caller is not an admin")
	// ErrInvalidRole возвращается для роли вне допустимого набора.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidTier возвращается для несуществующего или бесплатного уровня.
	ErrInvalidTier = errors.New("invalid tier")
	// ErrUserNotFound возвращается, когда провайдер аутентификации не знает пользователя.
	ErrUserNotFound = errors.New("user not found")
)

// допустимые роли для смены через административный шлюз
var allowedRoles = map[string]struct{}{
	models.RoleUser:   {},
	models.RoleTester: {},
	models.RoleAdmin:  {},
}

// UserDirectory предоставляет доступ к внешнему провайдеру аутентификации.
type UserDirectory interface {
	GetUserByEmail(ctx context.Context, email string) (*models.AuthUser, error)
	SetRole(ctx context.Context, uid, role string) error
}

// EntitlementRepository описывает операции хранилища, нужные административному шлюзу.
type EntitlementRepository interface {
	GetEntitlement(ctx context.Context, ownerEmail string) (*models.EntitlementRecord, error)
	UpsertEntitlement(ctx context.Context, rec *models.EntitlementRecord) error
}

// AuditRepository пишет записи в журнал аудита.
type AuditRepository interface {
	CreateAuditEntry(ctx context.Context, entry models.AuditEntry) (int, error)
}

// Notifier публикует алерты оператору.
type Notifier interface {
	Publish(routingKey string, message any) error
}

// Service реализует административные операции.
type Service struct {
	directory UserDirectory
	repo      EntitlementRepository
	audit     AuditRepository
	notifier  Notifier
	log       *slog.Logger
	now       func() time.Time
}

// New создает новый экземпляр Service.
func New(directory UserDirectory, repo EntitlementRepository, audit AuditRepository,
	notifier Notifier, log *slog.Logger) *Service {
	return &Service{
		directory: directory,
		repo:      repo,
		audit:     audit,
		notifier:  notifier,
		log:       log,
		now:       time.Now,
	}
}

// SetRoleRequest — запрос на смену роли пользователя.
type SetRoleRequest struct {
	TargetEmail string `json:"target_email" validate:"required,email"`
	Role        string `json:"role" validate:"required"`
	Reason      string `json:"reason,omitempty"`
}

// SetRole меняет роль пользователя во внешнем провайдере аутентификации.
// Роль tester дополнительно синхронизирует ручную подписку: выдача
// происходит только для пользователя без платной привязки и без активной
// записи (иначе запись остаётся нетронутой, а смена роли всё равно
// считается успешной), снятие роли tester отзывает ручную подписку,
// не трогая платную.
func (s *Service) SetRole(ctx context.Context, caller models.AuthUser, req SetRoleRequest) error {
	const op = "admin.SetRole"

	// Серверная проверка прав, даже если middleware уже отсек не-админов
	if !caller.IsAdmin() {
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	if _, ok := allowedRoles[req.Role]; !ok {
		return fmt.Errorf("%s: %w", op, ErrInvalidRole)
	}

	email := models.NormalizeEmail(req.TargetEmail)

	user, err := s.directory.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, authprovider.ErrUserNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	previousRole := user.Role

	if err := s.directory.SetRole(ctx, user.UID, req.Role); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var entitlementErr error
	switch {
	case req.Role == models.RoleTester:
		entitlementErr = s.syncTesterGrant(ctx, email)
	case previousRole == models.RoleTester && req.Role != models.RoleTester:
		entitlementErr = s.revokeTesterEntitlement(ctx, email)
	}

	details := fmt.Sprintf("role changed from %q to %q", previousRole, req.Role)
	if req.Reason != "" {
		details += ", reason: " + req.Reason
	}
	s.writeAudit(ctx, models.AuditEntry{
		AdminActor:  caller.Email,
		ActionType:  models.AuditActionRoleChange,
		Details:     details,
		TargetEmail: email,
	})

	if entitlementErr != nil {
		// Роль уже сменилась, но запись о праве доступа не синхронизировалась
		s.alertOperator(email, fmt.Sprintf("role change to %q succeeded but entitlement sync failed: %v",
			req.Role, entitlementErr))
		return fmt.Errorf("%s: %w", op, entitlementErr)
	}
	return nil
}

// ManualSubscriptionRequest — запрос на ручную выдачу или отзыв подписки.
// ExpirationDays задаёт срок выдачи в днях; ноль — бессрочно.
type ManualSubscriptionRequest struct {
	TargetEmail    string `json:"target_email" validate:"required,email"`
	Grant          bool   `json:"grant"`
	Tier           string `json:"tier,omitempty"`
	ExpirationDays int    `json:"expiration_days,omitempty" validate:"gte=0"`
	Reason         string `json:"reason,omitempty"`
}

// ManualSubscription выдает или отзывает подписку вручную, минуя платежный
// провайдер. Ручная выдача перезаписывает уровень и срок безусловно:
// решение администратора имеет приоритет над биллинговым состоянием.
func (s *Service) ManualSubscription(ctx context.Context, caller models.AuthUser, req ManualSubscriptionRequest) error {
	const op = "admin.ManualSubscription"

	if !caller.IsAdmin() {
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	email := models.NormalizeEmail(req.TargetEmail)

	var err error
	var details string
	if req.Grant {
		tier := models.TierPremium
		if req.Tier != "" {
			parsed, ok := models.ParseTier(req.Tier)
			if !ok || parsed == models.TierFree {
				return fmt.Errorf("%s: %w", op, ErrInvalidTier)
			}
			tier = parsed
		}
		var expiration *time.Time
		if req.ExpirationDays > 0 {
			exp := s.now().AddDate(0, 0, req.ExpirationDays)
			expiration = &exp
		}
		err = s.grantManualEntitlement(ctx, email, tier, expiration)
		details = fmt.Sprintf("manual subscription granted, tier %q", tier)
		if req.ExpirationDays > 0 {
			details += fmt.Sprintf(", for %d days", req.ExpirationDays)
		}
	} else {
		err = s.revokeManualEntitlement(ctx, email)
		details = "manual subscription revoked"
	}
	if req.Reason != "" {
		details += ", reason: " + req.Reason
	}

	s.writeAudit(ctx, models.AuditEntry{
		AdminActor:  caller.Email,
		ActionType:  models.AuditActionManualSubscription,
		Details:     details,
		TargetEmail: email,
	})

	if err != nil {
		s.alertOperator(email, fmt.Sprintf("manual subscription write failed: %v", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// syncTesterGrant выдает ручную подписку при назначении роли tester.
// Выдача происходит только при пустой привязке к платежному провайдеру и
// неактивной записи; иначе запись остаётся нетронутой — доступ tester'у
// и так даёт роль.
func (s *Service) syncTesterGrant(ctx context.Context, email string) error {
	rec, err := s.repo.GetEntitlement(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrEntitlementNotFound) {
		return err
	}
	if rec != nil && (rec.PaymentSubscriptionID != "" || rec.Status == models.StatusActive) {
		s.log.Info("tester grant skipped, entitlement left untouched",
			slog.String("owner_email", email))
		return nil
	}
	if rec == nil {
		rec = &models.EntitlementRecord{OwnerEmail: email}
	}

	rec.Premium = true
	rec.Tier = models.TierPremium
	rec.Status = models.StatusActive
	rec.ExpirationDate = nil
	rec.WarnedForExpiration = nil

	return s.writeWithRetry(ctx, rec)
}

// revokeTesterEntitlement снимает ручную подписку при снятии роли tester.
// Запись с привязкой к платежному провайдеру не трогается: ею владеет
// платежный цикл.
func (s *Service) revokeTesterEntitlement(ctx context.Context, email string) error {
	rec, err := s.repo.GetEntitlement(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrEntitlementNotFound) {
			return nil
		}
		return err
	}
	if rec.PaymentSubscriptionID != "" {
		return nil
	}
	return s.writeRevoked(ctx, rec)
}

// grantManualEntitlement перезаписывает уровень, статус и срок записи
// безусловно. Привязка к платежному провайдеру сохраняется, чтобы
// последующие события провайдера продолжали сверяться с записью.
func (s *Service) grantManualEntitlement(ctx context.Context, email string, tier models.Tier, expiration *time.Time) error {
	rec, err := s.repo.GetEntitlement(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrEntitlementNotFound) {
		return err
	}
	if rec == nil {
		rec = &models.EntitlementRecord{OwnerEmail: email}
	}

	rec.Premium = true
	rec.Tier = tier
	rec.Status = models.StatusActive
	rec.ExpirationDate = expiration
	rec.WarnedForExpiration = nil

	return s.writeWithRetry(ctx, rec)
}

// revokeManualEntitlement отзывает подписку безусловно, переводя запись
// в canceled.
func (s *Service) revokeManualEntitlement(ctx context.Context, email string) error {
	rec, err := s.repo.GetEntitlement(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrEntitlementNotFound) {
			return nil
		}
		return err
	}
	return s.writeRevoked(ctx, rec)
}

func (s *Service) writeRevoked(ctx context.Context, rec *models.EntitlementRecord) error {
	rec.Premium = false
	rec.Tier = models.TierFree
	rec.Status = models.StatusCanceled
	rec.ExpirationDate = nil
	rec.WarnedForExpiration = nil

	return s.writeWithRetry(ctx, rec)
}

func (s *Service) writeWithRetry(ctx context.Context, rec *models.EntitlementRecord) error {
	var lastErr error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		lastErr = s.repo.UpsertEntitlement(ctx, rec)
		if lastErr == nil {
			return nil
		}
		s.log.Warn("entitlement write attempt failed",
			slog.Int("attempt", attempt),
			slog.String("owner_email", rec.OwnerEmail),
			sl.Err(lastErr))
	}
	return lastErr
}

func (s *Service) writeAudit(ctx context.Context, entry models.AuditEntry) {
	if _, err := s.audit.CreateAuditEntry(ctx, entry); err != nil {
		s.log.Error("failed to write audit entry",
			slog.String("action_type", entry.ActionType),
			slog.String("target_email", entry.TargetEmail),
			sl.Err(err))
	}
}

func (s *Service) alertOperator(targetEmail, details string) {
	metrics.OperatorAlertsTotal.Inc()
	s.log.Error("operator alert", slog.String("target_email", targetEmail), slog.String("details", details))
	if err := s.notifier.Publish(rabbitmq.QueueAlerts.RoutingKey, models.OperatorAlert{
		Subject:     "admin entitlement write failure",
		Details:     details,
		TargetEmail: targetEmail,
		OccurredAt:  s.now(),
	}); err != nil {
		s.log.Warn("failed to publish operator alert", sl.Err(err))
	}
}
