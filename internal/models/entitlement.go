// Package models содержит доменные структуры подсистемы премиум-доступа:
// запись о праве доступа пользователя, промокоды, записи аудита
// и вспомогательные типы для приёма данных из JSON-запросов.
package models

import (
	"strings"
	"time"
)

// Tier обозначает уровень подписки. Уровни упорядочены:
// free < standard < premium, поэтому право на premium покрывает standard.
type Tier string

// Поддерживаемые уровни подписки.
const (
	TierFree     Tier = "free"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

var tierRanks = map[Tier]int{
	TierFree:     0,
	TierStandard: 1,
	TierPremium:  2,
}

// ParseTier приводит строку к Tier без учёта регистра.
// Возвращает false, если значение не входит в список уровней.
func ParseTier(s string) (Tier, bool) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	_, ok := tierRanks[t]
	return t, ok
}

// Rank возвращает порядковый номер уровня для сравнения.
// Неизвестный уровень считается ниже free.
func (t Tier) Rank() int {
	rank, ok := tierRanks[t]
	if !ok {
		return -1
	}
	return rank
}

// Covers возвращает true, если уровень t покрывает требуемый уровень required.
func (t Tier) Covers(required Tier) bool {
	return t.Rank() >= required.Rank()
}

// SubscriptionStatus описывает состояние подписки в записи о праве доступа.
type SubscriptionStatus string

// Возможные состояния подписки.
const (
	StatusActive   SubscriptionStatus = "active"
	StatusCanceled SubscriptionStatus = "canceled"
	StatusExpired  SubscriptionStatus = "expired"
)

// EntitlementRecord хранит право премиум-доступа одного пользователя.
// Ключом служит email в нижнем регистре: он связывает события платёжного
// провайдера с учётной записью. PaymentSubscriptionID непустой только для
// рекуррентных подписок, которыми управляет провайдер; у разовых пропусков
// (access pass) он пуст, а срок действия задаётся ExpirationDate.
// Поле ExpirationDate == nil означает отсутствие локального срока действия.
type EntitlementRecord struct {
	OwnerEmail            string             // Email владельца, нижний регистр, уникальный ключ
	Premium               bool               // Грубый флаг премиум-доступа
	Tier                  Tier               // Уровень подписки
	Status                SubscriptionStatus // Состояние подписки
	ExpirationDate        *time.Time         // Дата окончания доступа, nil — бессрочно
	PaymentSubscriptionID string             // Идентификатор рекуррентной подписки у провайдера
	PaymentCustomerID     string             // Идентификатор покупателя у провайдера
	WarnedForExpiration   *time.Time         // Дата окончания, о которой уже отправлено предупреждение
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// NormalizeEmail приводит email к каноническому виду ключа записи.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
