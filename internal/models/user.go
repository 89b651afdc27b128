// Package models содержит узкое представление пользователя внешнего
// провайдера аутентификации. Подсистеме премиум-доступа нужны только
// идентификатор, email и роль — остальные поля провайдера не переносятся.
package models

// Роли пользователей внешнего провайдера аутентификации.
// Роли admin и tester дают безусловный полный доступ независимо
// от содержимого EntitlementRecord.
const (
	RoleUser      = "user"
	RoleTester    = "tester"
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleEditor    = "editor"
)

// AuthUser представляет аутентифицированного пользователя.
type AuthUser struct {
	UID   string // Уникальный идентификатор во внешнем провайдере
	Email string // Электронная почта
	Role  string // Роль пользователя
}

// IsAdmin возвращает true для роли admin.
func (u AuthUser) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// AccessOverride хранит серверный тестовый оверрайд доступа.
// Устанавливается только администратором через отдельный endpoint
// и хранится на сервере; клиентским флагам доступа здесь не доверяют.
type AccessOverride struct {
	FullUnlock   bool   `json:"full_unlock"`             // Полный доступ ко всем уровням
	SimulateTier string `json:"simulate_tier,omitempty"` // Симуляция конкретного уровня
}
