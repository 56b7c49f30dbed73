// Package models содержит доменные структуры движка квот и подписок,
// а также вспомогательные типы для приёма данных из JSON-запросов.
package models

import "time"

// Статусы подписки аккаунта. Active означает только то, что подписка
// когда-то была активирована — дату истечения нужно проверять отдельно.
const (
	SubscriptionStatusNone   = "none"
	SubscriptionStatusActive = "active"
)

// Account представляет состояние подписки и квот одного пользователя.
// Счётчики RemainingPosts и RemainingPrompts могут быть nil —
// это означает безлимитный тариф (лимит не применяется).
type Account struct {
	UserUID            string     // Уникальный идентификатор пользователя
	SubscriptionStatus string     // none или active
	PackageID          *string    // Последний активированный пакет
	SubscriptionDate   *time.Time // Дата последней активации
	ExpiryDate         *time.Time // Дата истечения подписки, nil — не истекает
	RemainingPosts     *int       // Остаток постов, nil — безлимит
	RemainingPrompts   *int       // Остаток промптов, nil — безлимит
	TrialPostsUsed     int        // Использовано постов в пробном режиме
	TrialPackage       bool       // true, если бесплатный пакет уже активировался
	MaxGroup           int        // Остаток на создание групп
	Storage            int        // Квота хранилища из пакета
	UpdatedAt          time.Time
}

// DummyConsumeRequest используется для приёма запроса на списание квоты.
// ActionID — необязательный идентификатор действия для дедупликации
// повторов при таймаутах на стороне клиента.
type DummyConsumeRequest struct {
	Action   string `json:"action" validate:"required,oneof=post prompt group"` // Вид действия
	ActionID string `json:"action_id" validate:"omitempty,uuid"`                // Ключ идемпотентности
}

// DummyActivateRequest используется для приёма запроса на активацию пакета.
// PaymentID отсутствует при активации бесплатного (пробного) пакета.
type DummyActivateRequest struct {
	PackageID string `json:"package_id" validate:"required"`
	PaymentID string `json:"payment_id" validate:"omitempty"`
	Amount    int64  `json:"amount" validate:"omitempty,gte=0"` // Сумма в минимальных единицах валюты
	Currency  string `json:"currency" validate:"omitempty,len=3"`
}
