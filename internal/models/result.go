package models

import "time"

// Action вид действия, на которое списывается квота.
type Action string

// Поддерживаемые виды действий.
const (
	ActionPost   Action = "post"
	ActionPrompt Action = "prompt"
	ActionGroup  Action = "group"
)

// Mode режим потребления квоты: пробный или платный.
// В момент оценки действием управляет ровно один из режимов.
type Mode string

const (
	ModeTrial Mode = "trial"
	ModePaid  Mode = "paid"
)

// DenyReason причина отказа. Отказы — ожидаемый результат проверки политики,
// а не системная ошибка, поэтому возвращаются в результате, а не через error.
type DenyReason string

const (
	ReasonUserNotFound        DenyReason = "user_not_found"
	ReasonPackageNotFound     DenyReason = "package_not_found"
	ReasonNoSubscription      DenyReason = "no_subscription"
	ReasonExpired             DenyReason = "expired"
	ReasonTrialLimitExceeded  DenyReason = "trial_limit_exceeded"
	ReasonQuotaExhausted      DenyReason = "quota_exhausted"
	ReasonTrialAlreadyUsed    DenyReason = "trial_already_used"
	ReasonPersistenceConflict DenyReason = "persistence_conflict"
)

// EligibilityResult результат классификации аккаунта оценщиком.
type EligibilityResult struct {
	Eligible bool       `json:"eligible"`
	Mode     Mode       `json:"mode,omitempty"`
	Reason   DenyReason `json:"reason,omitempty"`
}

// Denied возвращает отказ с указанной причиной.
func Denied(reason DenyReason) EligibilityResult {
	return EligibilityResult{Eligible: false, Reason: reason}
}

// Eligible возвращает разрешение в указанном режиме.
func Eligible(mode Mode) EligibilityResult {
	return EligibilityResult{Eligible: true, Mode: mode}
}

// ConsumeResult результат списания квоты.
// Deduplicated означает, что запрос с таким action_id уже обрабатывался
// и счётчики повторно не изменялись.
type ConsumeResult struct {
	Consumed     bool       `json:"consumed"`
	Mode         Mode       `json:"mode,omitempty"`
	Reason       DenyReason `json:"reason,omitempty"`
	Deduplicated bool       `json:"deduplicated,omitempty"`
}

// ActivationResult результат активации пакета.
type ActivationResult struct {
	Activated        bool       `json:"activated"`
	Reason           DenyReason `json:"reason,omitempty"`
	UserUID          string     `json:"user_uid,omitempty"`
	PackageID        string     `json:"package_id,omitempty"`
	SubscriptionDate time.Time  `json:"subscription_date,omitempty"`
	ExpiryDate       time.Time  `json:"expiry_date,omitempty"`
	PaymentID        string     `json:"payment_id,omitempty"`
	FreeTier         bool       `json:"free_tier,omitempty"`
}

// ActivationEvent сообщение, публикуемое в очередь уведомлений после активации.
type ActivationEvent struct {
	Email       string    `json:"email"`
	Username    string    `json:"username"`
	PackageName string    `json:"package_name"`
	ExpiryDate  time.Time `json:"expiry_date"`
	FreeTier    bool      `json:"free_tier"`
}
