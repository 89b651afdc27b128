// Package discount реализует создание и проверку промокодов. Валидация
// промокода влияет только на отображаемую цену: серверная цена сессии
// оплаты берётся из таблицы цен без учёта скидки. Счётчик применений
// здесь не увеличивается, факт оплаты со скидкой сервис не отслеживает.
package discount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/entitlement-reconciler/internal/models"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/storage/repository"
)

var (
	// ErrCodeNotFound возвращается для несуществующего промокода.
	ErrCodeNotFound = errors.New("discount code not found")
	// ErrCodeInactive возвращается для деактивированного промокода.
	ErrCodeInactive = errors.New("discount code is not active")
	// ErrCodeExpired возвращается для промокода с прошедшим сроком действия.
	ErrCodeExpired = errors.New("discount code has expired")
	// ErrCodeExhausted возвращается для промокода с исчерпанным лимитом применений.
	ErrCodeExhausted = errors.New("discount code usage limit reached")
	// ErrCodeAlreadyExists возвращается при создании дубликата.
	ErrCodeAlreadyExists = errors.New("discount code already exists")
	// ErrInvalidExpiration возвращается для нераспознанной даты окончания.
	ErrInvalidExpiration = errors.New("invalid expiration date")
)

// expiresAtLayout — формат даты окончания в запросе на создание промокода.
const expiresAtLayout = "02-01-2006"

// DiscountRepository описывает операции хранилища над промокодами.
type DiscountRepository interface {
	CreateDiscountCode(ctx context.Context, code models.DiscountCode) error
	GetDiscountCode(ctx context.Context, code string) (*models.DiscountCode, error)
}

// Service реализует операции над промокодами.
type Service struct {
	repo DiscountRepository
	log  *slog.Logger
	now  func() time.Time
}

// New создает новый экземпляр Service.
func New(repo DiscountRepository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

// Create сохраняет новый промокод. Код приводится к верхнему регистру.
func (s *Service) Create(ctx context.Context, req models.DummyDiscountCode) (*models.DiscountCode, error) {
	const op = "discount.Create"

	code := models.DiscountCode{
		Code:       strings.ToUpper(strings.TrimSpace(req.Code)),
		Percent:    req.Percent,
		UsageLimit: req.UsageLimit,
		Active:     true,
	}
	if req.ExpiresAt != "" {
		expiresAt, err := time.Parse(expiresAtLayout, req.ExpiresAt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidExpiration)
		}
		code.ExpiresAt = &expiresAt
	}

	if err := s.repo.CreateDiscountCode(ctx, code); err != nil {
		if errors.Is(err, repository.ErrDiscountCodeExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrCodeAlreadyExists)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &code, nil
}

// Validation — результат проверки промокода для отображения клиенту.
type Validation struct {
	Code    string `json:"code"`
	Percent int    `json:"percent"`
}

// Validate проверяет промокод: существование, активность, срок действия
// и лимит применений. Счётчик применений не увеличивается.
func (s *Service) Validate(ctx context.Context, rawCode string) (*Validation, error) {
	const op = "discount.Validate"

	code, err := s.repo.GetDiscountCode(ctx, strings.ToUpper(strings.TrimSpace(rawCode)))
	if err != nil {
		if errors.Is(err, repository.ErrDiscountCodeNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrCodeNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !code.Active {
		return nil, fmt.Errorf("%s: %w", op, ErrCodeInactive)
	}
	if code.ExpiresAt != nil && !code.ExpiresAt.After(s.now()) {
		return nil, fmt.Errorf("%s: %w", op, ErrCodeExpired)
	}
	if code.UsageLimit > 0 && code.UsageCount >= code.UsageLimit {
		return nil, fmt.Errorf("%s: %w", op, ErrCodeExhausted)
	}

	return &Validation{Code: code.Code, Percent: code.Percent}, nil
}
