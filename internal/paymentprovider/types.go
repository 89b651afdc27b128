// Package paymentprovider реализует клиент платёжного провайдера и типы
// его API: создание сессии оплаты и события жизненного цикла подписки,
// приходящие через webhook.
package paymentprovider

import "time"

// Режимы сессии оплаты.
const (
	ModeSubscription = "subscription" // Рекуррентная подписка
	ModePayment      = "payment"      // Разовый платёж (access pass)
)

// Ключи metadata сессии оплаты. Metadata — единственный канал, через
// который контекст покупки возвращается в webhook-события, поэтому
// reconciler полагается на неполную доставку этих полей как на мягкую ошибку.
const (
	MetaAppID          = "app_id"
	MetaUserUID        = "user_uid"
	MetaUserEmail      = "user_email"
	MetaTier           = "tier"
	MetaExpirationDays = "expiration_days"
	MetaIsAccessPass   = "is_access_pass"
)

// CreateSessionRequest запрос на создание сессии оплаты.
type CreateSessionRequest struct {
	PriceID       string            `json:"price_id"`
	Mode          string            `json:"mode"`
	CustomerEmail string            `json:"customer_email"`
	SuccessURL    string            `json:"success_url"`
	CancelURL     string            `json:"cancel_url"`
	Metadata      map[string]string `json:"metadata"`
}

// CreateSessionResponse ответ провайдера на создание сессии.
type CreateSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Типы webhook-событий, которые обрабатывает reconciler.
// Остальные события подтверждаются без действий.
const (
	EventCheckoutCompleted   = "checkout.completed"
	EventSubscriptionUpdated = "subscription.updated"
	EventSubscriptionDeleted = "subscription.deleted"
)

// Статусы подписки провайдера, означающие пропуск платежа.
const (
	SubscriptionStatusPastDue = "past_due"
	SubscriptionStatusUnpaid  = "unpaid"
)

// Event webhook-событие платёжного провайдера. Одно и то же событие может
// быть доставлено более одного раза, обработка должна быть идемпотентной.
type Event struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Object struct {
		SubscriptionID    string            `json:"subscription_id"`
		CustomerID        string            `json:"customer_id"`
		Status            string            `json:"status"`
		CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
		CurrentPeriodEnd  *time.Time        `json:"current_period_end,omitempty"`
		Metadata          map[string]string `json:"metadata"`
	} `json:"object"`
}
