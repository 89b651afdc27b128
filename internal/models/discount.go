package models

import "time"

// DiscountCode описывает промокод. Промокоды участвуют только в расчёте
// отображаемой цены: серверная цена сессии оплаты берётся из таблицы цен
// без учёта скидки.
type DiscountCode struct {
	Code       string     // Код, верхний регистр
	Percent    int        // Размер скидки в процентах (1..100)
	ExpiresAt  *time.Time // Срок действия, nil — бессрочно
	UsageCount int        // Сколько раз код был применён
	UsageLimit int        // Максимум применений, 0 — без ограничения
	Active     bool       // Активен ли код
	CreatedAt  time.Time
}

// DummyDiscountCode используется для приёма данных из JSON-запроса
// на создание промокода.
type DummyDiscountCode struct {
	Code       string `json:"code" validate:"required,alphanum"`
	Percent    int    `json:"percent" validate:"required,gt=0,lte=100"`
	ExpiresAt  string `json:"expires_at,omitempty"` // Дата в формате 02-01-2006, пусто — бессрочно
	UsageLimit int    `json:"usage_limit,omitempty" validate:"gte=0"`
}
