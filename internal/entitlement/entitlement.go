// Package entitlement реализует вычисление действующего уровня доступа
// пользователя. Функции пакета чистые и только читают данные: они
// применяются на каждом серверном гейте и никогда не пишут в хранилище.
//
// Порядок приоритетов, от высшего к низшему:
//  1. роль admin или tester — полный доступ;
//  2. серверный оверрайд full_unlock — полный доступ;
//  3. серверный оверрайд simulate_tier — ровно симулируемый уровень;
//  4. EntitlementRecord — уровень записи, если premium, дата окончания не
//     наступила и статус active либо canceled с датой окончания: отмена в
//     конце периода сохраняет доступ до самой даты;
//  5. иначе — только free.
//
// Дата окончания проверяется по текущему времени при каждом вычислении:
// просроченная запись не даёт доступа, даже если sweeper её ещё не обработал.
package entitlement

import (
	"time"

	"github.com/magabrotheeeer/entitlement-reconciler/internal/models"
)

// Причины, по которым выбран действующий уровень. Возвращаются
// status-endpoint'ом для отладки на клиенте.
const (
	ReasonRole         = "role"
	ReasonFullUnlock   = "override_full_unlock"
	ReasonSimulated    = "override_simulated"
	ReasonSubscription = "subscription"
	ReasonExpired      = "expired"
	ReasonNone         = "none"
)

// Access описывает результат вычисления действующего уровня доступа.
type Access struct {
	Tier   models.Tier               // Действующий уровень
	Reason string                    // Почему выбран именно он
	Status models.SubscriptionStatus // Статус из записи, если она учитывалась
}

// Effective вычисляет действующий уровень доступа пользователя.
// Роль берётся из провайдера аутентификации, override — серверный тестовый
// оверрайд (может быть nil), rec — запись о праве доступа (может быть nil,
// если запись ещё не создана), now — момент вычисления.
func Effective(role string, override *models.AccessOverride, rec *models.EntitlementRecord, now time.Time) Access {
	if role == models.RoleAdmin || role == models.RoleTester {
		return Access{Tier: models.TierPremium, Reason: ReasonRole}
	}

	if override != nil {
		if override.FullUnlock {
			return Access{Tier: models.TierPremium, Reason: ReasonFullUnlock}
		}
		if tier, ok := models.ParseTier(override.SimulateTier); ok {
			return Access{Tier: tier, Reason: ReasonSimulated}
		}
	}

	if rec == nil {
		return Access{Tier: models.TierFree, Reason: ReasonNone}
	}

	if rec.ExpirationDate != nil && !rec.ExpirationDate.After(now) {
		return Access{Tier: models.TierFree, Reason: ReasonExpired, Status: rec.Status}
	}

	// Отменённая в конце периода подписка держит доступ до даты окончания;
	// её непросроченность гарантирует проверка выше. canceled без даты —
	// немедленный отзыв.
	entitled := rec.Status == models.StatusActive ||
		(rec.Status == models.StatusCanceled && rec.ExpirationDate != nil)
	if rec.Premium && entitled {
		return Access{Tier: rec.Tier, Reason: ReasonSubscription, Status: rec.Status}
	}

	return Access{Tier: models.TierFree, Reason: ReasonNone, Status: rec.Status}
}

// HasTier возвращает true, если действующий уровень доступа пользователя
// покрывает требуемый уровень required.
func HasTier(role string, override *models.AccessOverride, rec *models.EntitlementRecord, required models.Tier, now time.Time) bool {
	return Effective(role, override, rec, now).Tier.Covers(required)
}
