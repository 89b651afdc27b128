// Package checkout содержит бизнес-логику создания сессии оплаты.
// Сервис валидирует запрошенный уровень, находит идентификатор цены в
// статической таблице и собирает metadata сессии — единственный канал,
// по которому контекст покупки вернётся в webhook-события.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/magabrotheeeer/entitlement-reconciler/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/metrics"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/models"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/paymentprovider"
)

// ErrInvalidTier возвращается при запросе уровня вне списка платных уровней.
var ErrInvalidTier = errors.New("invalid tier")

// ErrInvalidPriceConfiguration возвращается, когда в таблице цен нет
// идентификатора для запрошенной комбинации. Это ошибка конфигурации,
// а не пользователя, и логируется отдельно.
var ErrInvalidPriceConfiguration = errors.New("invalid price configuration")

// Циклы оплаты рекуррентной подписки.
const (
	BillingMonthly = "monthly"
	BillingAnnual  = "annual"
)

// Request параметры создания сессии оплаты.
type Request struct {
	Tier       string // standard или premium
	Billing    string // monthly или annual, игнорируется для пропуска
	AccessPass bool   // Разовый пропуск вместо рекуррентной подписки
}

// SessionCreator описывает клиент платёжного провайдера.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, req paymentprovider.CreateSessionRequest) (*paymentprovider.CreateSessionResponse, error)
}

// Service реализует создание сессий оплаты.
type Service struct {
	provider         SessionCreator
	priceTable       map[string]string
	appID            string
	successURL       string
	cancelURL        string
	passDurationDays int
	log              *slog.Logger
}

// New создает новый экземпляр Service.
func New(provider SessionCreator, priceTable map[string]string, appID, successURL, cancelURL string, passDurationDays int, log *slog.Logger) *Service {
	return &Service{
		provider:         provider,
		priceTable:       priceTable,
		appID:            appID,
		successURL:       successURL,
		cancelURL:        cancelURL,
		passDurationDays: passDurationDays,
		log:              log,
	}
}

// CreateSession создаёт сессию оплаты для пользователя и возвращает redirect URL.
// Ничего не пишет в хранилище: сессией владеет внешний провайдер, а запись
// о праве доступа появится после события checkout.completed.
func (s *Service) CreateSession(ctx context.Context, user models.AuthUser, req Request) (string, error) {
	tier, ok := models.ParseTier(req.Tier)
	if !ok || tier == models.TierFree {
		metrics.CheckoutSessionsTotal.WithLabelValues("invalid_tier").Inc()
		return "", fmt.Errorf("%w: %s", ErrInvalidTier, req.Tier)
	}

	priceKey := s.priceKey(tier, req)
	priceID, ok := s.priceTable[priceKey]
	if !ok {
		// Конфигурационная ошибка: комбинация уровня и цикла не настроена
		s.log.Error("no price mapping for key", slog.String("price_key", priceKey))
		metrics.CheckoutSessionsTotal.WithLabelValues("price_config_error").Inc()
		return "", fmt.Errorf("%w: %s", ErrInvalidPriceConfiguration, priceKey)
	}

	email := models.NormalizeEmail(user.Email)
	metadata := map[string]string{
		paymentprovider.MetaAppID:     s.appID,
		paymentprovider.MetaUserUID:   user.UID,
		paymentprovider.MetaUserEmail: email,
		paymentprovider.MetaTier:      string(tier),
	}
	mode := paymentprovider.ModeSubscription
	if req.AccessPass {
		mode = paymentprovider.ModePayment
		metadata[paymentprovider.MetaExpirationDays] = strconv.Itoa(s.passDurationDays)
		metadata[paymentprovider.MetaIsAccessPass] = "true"
	}

	session, err := s.provider.CreateCheckoutSession(ctx, paymentprovider.CreateSessionRequest{
		PriceID:       priceID,
		Mode:          mode,
		CustomerEmail: email,
		SuccessURL:    s.successURL,
		CancelURL:     s.cancelURL,
		Metadata:      metadata,
	})
	if err != nil {
		s.log.Error("failed to create checkout session", sl.Err(err))
		metrics.CheckoutSessionsTotal.WithLabelValues("provider_error").Inc()
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	s.log.Info("checkout session created",
		slog.String("session_id", session.ID),
		slog.String("price_key", priceKey))
	metrics.CheckoutSessionsTotal.WithLabelValues("success").Inc()
	return session.URL, nil
}

func (s *Service) priceKey(tier models.Tier, req Request) string {
	if req.AccessPass {
		return string(tier) + "-pass"
	}
	billing := strings.ToLower(req.Billing)
	if billing == "" {
		billing = BillingMonthly
	}
	return string(tier) + "-" + billing
}
