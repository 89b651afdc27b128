package models

import "time"

// PurchaseNotice сообщение о завершённой покупке для отправки письма.
type PurchaseNotice struct {
	Email     string     `json:"email"`
	Tier      Tier       `json:"tier"`
	IsPass    bool       `json:"is_pass"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ExpiryWarning сообщение-предупреждение об окончании доступа завтра.
type ExpiryWarning struct {
	Email     string    `json:"email"`
	Tier      Tier      `json:"tier"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExpiryNotice сообщение об уже завершившемся доступе.
type ExpiryNotice struct {
	Email     string    `json:"email"`
	Tier      Tier      `json:"tier"`
	ExpiredAt time.Time `json:"expired_at"`
}

// OperatorAlert сообщение для оператора о сбое, требующем ручной сверки.
type OperatorAlert struct {
	Subject     string    `json:"subject"`
	Details     string    `json:"details"`
	TargetEmail string    `json:"target_email,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
