package models

import "time"

// Типы действий, фиксируемых в журнале аудита.
const (
	AuditActionRoleChange         = "role_change"
	AuditActionManualSubscription = "manual_subscription"
	AuditActionWebhookFailure     = "webhook_failure"
)

// AuditEntry описывает запись журнала аудита административных действий.
// Журнал только пополняется: записи не изменяются и не удаляются.
type AuditEntry struct {
	ID          int       `json:"id"`           // Идентификатор записи
	AdminActor  string    `json:"admin_actor"`  // Email администратора, выполнившего действие
	ActionType  string    `json:"action_type"`  // Тип действия
	Details     string    `json:"details"`      // Человекочитаемое описание
	TargetEmail string    `json:"target_email"` // Email пользователя, к которому применено действие
	CreatedAt   time.Time `json:"created_at"`   // Момент записи
}
